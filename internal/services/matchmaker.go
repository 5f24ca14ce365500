package services

import (
	"encoding/json"
	"sync"
	"time"

	"video-match-backend/internal/models"

	"github.com/rs/zerolog/log"
)

// MatchmakerOptions configures a Matchmaker
type MatchmakerOptions struct {
	// StrictSignaling drops match:signal frames not addressed to the sender's partner
	StrictSignaling bool
	Now             func() time.Time
}

// Matchmaker owns the presence registry, the match queue and the partner
// index. Every exported method is one critical section, so a connection can
// never be queued and paired at once, nor be paired twice.
type Matchmaker struct {
	mu       sync.Mutex
	presence *PresenceRegistry
	queue    *MatchQueue
	pairs    *PartnerIndex

	strictSignaling bool
	now             func() time.Time
}

// NewMatchmaker creates an empty matchmaker
func NewMatchmaker(opts MatchmakerOptions) *Matchmaker {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Matchmaker{
		presence:        NewPresenceRegistry(now),
		queue:           NewMatchQueue(),
		pairs:           NewPartnerIndex(),
		strictSignaling: opts.StrictSignaling,
		now:             now,
	}
}

// Admit registers an entitled connection and publishes the new counts
func (m *Matchmaker) Admit(peer Peer, token string, snap *models.SessionSnapshot) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.presence.Register(peer, models.Presence{
		ConnectionID: peer.ID(),
		SessionToken: token,
		UserID:       snap.ID,
		DisplayName:  snap.Username,
		AgeVerified:  snap.AgeVerified,
		DateOfBirth:  snap.DateOfBirth,
		Mode:         models.ModeIdle,
		JoinedAt:     m.now(),
	})

	log.Info().
		Str("connection_id", peer.ID()).
		Str("user_id", snap.ID).
		Msg("Connection admitted")

	m.publishLocked()
}

// UpdatePresence merges client presence fields and publishes the counts
func (m *Matchmaker) UpdatePresence(connectionID string, update map[string]any) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.presence.Merge(connectionID, update) {
		return
	}
	m.publishLocked()
}

// JoinQueue queues a connection and runs a pairing pass. A connection that
// is still in a call leaves it first. The caller checks entitlement.
func (m *Matchmaker) JoinQueue(connectionID string, metadata map[string]any) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.presence.Get(connectionID); !ok {
		return false
	}

	if _, paired := m.pairs.Partner(connectionID); paired {
		m.endCallLocked(connectionID, models.ReasonPartnerLeft)
	}

	m.presence.Merge(connectionID, metadata)
	m.presence.SetMode(connectionID, models.ModeQueue)
	record, _ := m.presence.Get(connectionID)

	snapshot := make(map[string]any, len(metadata)+2)
	for k, v := range metadata {
		if _, owned := serverOwnedKeys[k]; !owned {
			snapshot[k] = v
		}
	}
	snapshot["username"] = record.DisplayName
	snapshot["ageVerified"] = record.AgeVerified

	m.queue.Enqueue(models.QueueEntry{
		ConnectionID: connectionID,
		EnqueuedAt:   m.now(),
		Metadata:     snapshot,
	})

	log.Debug().
		Str("connection_id", connectionID).
		Int("queue_size", m.queue.Len()).
		Msg("Joined queue")

	m.pairLocked()
	m.publishLocked()
	return true
}

// LeaveQueue removes a connection from the queue. A connection in a call
// keeps its in-call mode.
func (m *Matchmaker) LeaveQueue(connectionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.presence.Get(connectionID); !ok {
		return
	}

	m.queue.Leave(connectionID)
	if _, paired := m.pairs.Partner(connectionID); !paired {
		m.presence.SetMode(connectionID, models.ModeIdle)
	}
	m.publishLocked()
}

// Queued reports whether a connection is waiting in the queue
func (m *Matchmaker) Queued(connectionID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.queue.Contains(connectionID)
}

// MarkReady records that the client finished setting up its call
func (m *Matchmaker) MarkReady(connectionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.presence.SetMode(connectionID, models.ModeInCall) {
		return
	}
	m.publishLocked()
}

// EndCall ends the caller's call, telling the partner why
func (m *Matchmaker) EndCall(connectionID, reason string) {
	if reason == "" {
		reason = models.ReasonEnded
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.presence.Get(connectionID); !ok {
		return
	}

	m.endCallLocked(connectionID, reason)
	m.presence.SetMode(connectionID, models.ModeIdle)
	m.publishLocked()
}

// Relay forwards an opaque signaling payload to target, tagged with the
// sender. The payload is not inspected. It reports whether a frame was queued.
func (m *Matchmaker) Relay(from, target string, data json.RawMessage) bool {
	if target == "" || len(data) == 0 {
		return false
	}

	payload, err := models.SignalOut{From: from, Data: data}.Raw()
	if err != nil {
		return false
	}
	frame, err := models.Event{Type: models.EventMatchSignal, Payload: payload}.Encode()
	if err != nil {
		return false
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.presence.Get(from); !ok {
		return false
	}
	if m.strictSignaling {
		if partner, ok := m.pairs.Partner(from); !ok || partner != target {
			log.Debug().
				Str("connection_id", from).
				Str("target_id", target).
				Msg("Dropping signal to non-partner")
			return false
		}
	}

	peer, ok := m.presence.Peer(target)
	if !ok {
		return false
	}
	return peer.Send(frame)
}

// Disconnect reverses every effect of admission. Calling it again is a no-op.
func (m *Matchmaker) Disconnect(connectionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.queue.Leave(connectionID)
	m.endCallLocked(connectionID, models.ReasonDisconnected)
	if !m.presence.Remove(connectionID) {
		return
	}

	log.Info().Str("connection_id", connectionID).Msg("Connection removed")

	m.publishLocked()
}

// Stats returns the current counts
func (m *Matchmaker) Stats() models.Stats {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.statsLocked()
}

// Presence returns a copy of a connection's record
func (m *Matchmaker) Presence(connectionID string) (models.Presence, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.presence.Get(connectionID)
}

// Partner returns the connection paired with connectionID
func (m *Matchmaker) Partner(connectionID string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pairs.Partner(connectionID)
}

// QueueIDs returns the queued connection ids, oldest first
func (m *Matchmaker) QueueIDs() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.queue.IDs()
}

// Shutdown closes every admitted connection. Their read loops then run the
// normal disconnect path.
func (m *Matchmaker) Shutdown() {
	m.mu.Lock()
	peers := m.presence.Peers()
	m.mu.Unlock()

	for _, p := range peers {
		p.Close()
	}
	log.Info().Int("connections", len(peers)).Msg("Matchmaker shut down")
}

// pairLocked drains the queue two entries at a time, oldest first. A live
// entry whose partner turned out dead goes back to the head of the queue.
func (m *Matchmaker) pairLocked() {
	for m.queue.Len() >= 2 {
		a, _ := m.queue.PopFront()
		b, _ := m.queue.PopFront()

		aLive := m.liveLocked(a.ConnectionID)
		bLive := m.liveLocked(b.ConnectionID)

		switch {
		case aLive && bLive:
			m.matchLocked(a, b)
		case aLive:
			m.queue.PushFront(a)
		case bLive:
			m.queue.PushFront(b)
		}
	}
}

func (m *Matchmaker) matchLocked(a, b models.QueueEntry) {
	m.pairs.Pair(a.ConnectionID, b.ConnectionID)

	log.Info().
		Str("connection_a", a.ConnectionID).
		Str("connection_b", b.ConnectionID).
		Msg("Pair matched")

	m.introduceLocked(a.ConnectionID, b)
	m.introduceLocked(b.ConnectionID, a)
}

// introduceLocked sends match:found to id describing partner
func (m *Matchmaker) introduceLocked(id string, partner models.QueueEntry) {
	metadata := map[string]any{}
	if record, ok := m.presence.Get(partner.ConnectionID); ok {
		metadata = record.Metadata()
	}
	for k, v := range partner.Metadata {
		metadata[k] = v
	}

	m.emitLocked(id, models.Event{
		Type: models.EventMatchFound,
		Payload: models.MatchFound{
			PartnerID:       partner.ConnectionID,
			PartnerMetadata: metadata,
		},
	})
}

// endCallLocked unpairs id and tells a still-registered partner why.
func (m *Matchmaker) endCallLocked(id, reason string) {
	partner, ok := m.pairs.Unpair(id)
	if !ok {
		return
	}

	log.Info().
		Str("connection_id", id).
		Str("partner_id", partner).
		Str("reason", reason).
		Msg("Call ended")

	if m.presence.SetMode(partner, models.ModeIdle) {
		m.emitLocked(partner, models.Event{
			Type:    models.EventMatchEnded,
			Payload: models.MatchEnded{Reason: reason},
		})
	}
}

func (m *Matchmaker) liveLocked(id string) bool {
	peer, ok := m.presence.Peer(id)
	return ok && peer.Alive()
}

func (m *Matchmaker) emitLocked(id string, ev models.Event) {
	peer, ok := m.presence.Peer(id)
	if !ok || !peer.Alive() {
		return
	}
	frame, err := ev.Encode()
	if err != nil {
		log.Error().Err(err).Str("type", ev.Type).Msg("Failed to encode event")
		return
	}
	peer.Send(frame)
}

func (m *Matchmaker) statsLocked() models.Stats {
	return models.Stats{
		OnlineCount:     m.presence.Len(),
		QueueSize:       m.queue.Len(),
		ActiveCallCount: m.pairs.Calls(),
	}
}

// publishLocked pushes stats:update to every admitted connection
func (m *Matchmaker) publishLocked() {
	frame, err := models.Event{Type: models.EventStatsUpdate, Payload: m.statsLocked()}.Encode()
	if err != nil {
		log.Error().Err(err).Msg("Failed to encode stats")
		return
	}
	for _, peer := range m.presence.Peers() {
		if peer.Alive() {
			peer.Send(frame)
		}
	}
}
