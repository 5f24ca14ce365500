package services

// PartnerIndex is the table of active calls. Both directions of a pairing are
// written and erased together, so Partner(a) == b exactly when Partner(b) == a.
// Not safe for concurrent use.
type PartnerIndex struct {
	partners map[string]string
}

// NewPartnerIndex creates an empty index
func NewPartnerIndex() *PartnerIndex {
	return &PartnerIndex{partners: make(map[string]string)}
}

// Pair links a and b. Any call either side was in is dropped first.
func (p *PartnerIndex) Pair(a, b string) {
	if a == b {
		return
	}
	p.Unpair(a)
	p.Unpair(b)
	p.partners[a] = b
	p.partners[b] = a
}

// Partner returns the connection paired with id
func (p *PartnerIndex) Partner(id string) (string, bool) {
	partner, ok := p.partners[id]
	return partner, ok
}

// Unpair removes the pairing of id and returns the former partner.
// Calling it for an unpaired id is a no-op.
func (p *PartnerIndex) Unpair(id string) (string, bool) {
	partner, ok := p.partners[id]
	if !ok {
		return "", false
	}
	delete(p.partners, id)
	delete(p.partners, partner)
	return partner, true
}

// Calls returns the number of active pairings
func (p *PartnerIndex) Calls() int {
	return len(p.partners) / 2
}
