package services

import (
	"time"

	"video-match-backend/internal/models"
)

// Keys a client may not overwrite through presence:update or queue:join metadata.
var serverOwnedKeys = map[string]struct{}{
	"currentMode": {},
	"userId":      {},
	"ageVerified": {},
	"dateOfBirth": {},
	"joinedAt":    {},
	"updatedAt":   {},
}

// PresenceRegistry holds the live record of every admitted connection.
// It is not safe for concurrent use; the Matchmaker serializes access.
type PresenceRegistry struct {
	records map[string]*presenceEntry
	now     func() time.Time
}

type presenceEntry struct {
	record models.Presence
	peer   Peer
}

// NewPresenceRegistry creates an empty registry
func NewPresenceRegistry(now func() time.Time) *PresenceRegistry {
	return &PresenceRegistry{
		records: make(map[string]*presenceEntry),
		now:     now,
	}
}

// Register stores the initial record for a connection, replacing any previous one
func (r *PresenceRegistry) Register(peer Peer, record models.Presence) {
	if record.Extra == nil {
		record.Extra = make(map[string]any)
	}
	if record.Mode == "" {
		record.Mode = models.ModeIdle
	}
	if record.JoinedAt.IsZero() {
		record.JoinedAt = r.now()
	}
	r.records[record.ConnectionID] = &presenceEntry{record: record, peer: peer}
}

// Merge shallow-merges caller-supplied fields into the record and stamps
// UpdatedAt. It reports false when the connection is unknown.
func (r *PresenceRegistry) Merge(connectionID string, update map[string]any) bool {
	entry, ok := r.records[connectionID]
	if !ok {
		return false
	}

	for k, v := range update {
		if _, owned := serverOwnedKeys[k]; owned {
			continue
		}
		if k == "displayName" {
			if name, ok := v.(string); ok {
				entry.record.DisplayName = name
			}
			continue
		}
		entry.record.Extra[k] = v
	}
	entry.record.UpdatedAt = r.now()
	return true
}

// SetMode moves a connection between idle, queue and in_call
func (r *PresenceRegistry) SetMode(connectionID, mode string) bool {
	entry, ok := r.records[connectionID]
	if !ok {
		return false
	}
	entry.record.Mode = mode
	entry.record.UpdatedAt = r.now()
	return true
}

// Get returns a copy of the record for a connection
func (r *PresenceRegistry) Get(connectionID string) (models.Presence, bool) {
	entry, ok := r.records[connectionID]
	if !ok {
		return models.Presence{}, false
	}
	rec := entry.record
	rec.Extra = make(map[string]any, len(entry.record.Extra))
	for k, v := range entry.record.Extra {
		rec.Extra[k] = v
	}
	return rec, true
}

// Peer returns the transport of a connection
func (r *PresenceRegistry) Peer(connectionID string) (Peer, bool) {
	entry, ok := r.records[connectionID]
	if !ok {
		return nil, false
	}
	return entry.peer, true
}

// Remove deletes a connection; removing an unknown id is a no-op
func (r *PresenceRegistry) Remove(connectionID string) bool {
	if _, ok := r.records[connectionID]; !ok {
		return false
	}
	delete(r.records, connectionID)
	return true
}

// Len returns the number of admitted connections
func (r *PresenceRegistry) Len() int {
	return len(r.records)
}

// Peers returns every registered transport
func (r *PresenceRegistry) Peers() []Peer {
	peers := make([]Peer, 0, len(r.records))
	for _, entry := range r.records {
		peers = append(peers, entry.peer)
	}
	return peers
}
