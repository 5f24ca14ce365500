package services

import (
	"encoding/json"
	"sync"
	"sync/atomic"
	"testing"

	"video-match-backend/internal/models"

	"github.com/stretchr/testify/require"
)

// fakePeer records frames instead of writing them to a socket
type fakePeer struct {
	id     string
	mu     sync.Mutex
	frames [][]byte
	dead   atomic.Bool
}

func newFakePeer(id string) *fakePeer {
	return &fakePeer{id: id}
}

func (p *fakePeer) ID() string { return p.id }

func (p *fakePeer) Send(frame []byte) bool {
	if p.dead.Load() {
		return false
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.frames = append(p.frames, frame)
	return true
}

func (p *fakePeer) Alive() bool { return !p.dead.Load() }

func (p *fakePeer) Close() { p.dead.Store(true) }

func (p *fakePeer) envelopes(t *testing.T) []models.Envelope {
	t.Helper()
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make([]models.Envelope, 0, len(p.frames))
	for _, f := range p.frames {
		var env models.Envelope
		require.NoError(t, json.Unmarshal(f, &env))
		out = append(out, env)
	}
	return out
}

func (p *fakePeer) ofType(t *testing.T, typ string) []json.RawMessage {
	t.Helper()
	var out []json.RawMessage
	for _, env := range p.envelopes(t) {
		if env.Type == typ {
			out = append(out, env.Payload)
		}
	}
	return out
}

func (p *fakePeer) types(t *testing.T) []string {
	t.Helper()
	var out []string
	for _, env := range p.envelopes(t) {
		out = append(out, env.Type)
	}
	return out
}

func (p *fakePeer) reset() {
	p.mu.Lock()
	p.frames = nil
	p.mu.Unlock()
}

func (p *fakePeer) lastStats(t *testing.T) models.Stats {
	t.Helper()
	all := p.ofType(t, models.EventStatsUpdate)
	require.NotEmpty(t, all, "no stats:update for %s", p.id)
	var s models.Stats
	require.NoError(t, json.Unmarshal(all[len(all)-1], &s))
	return s
}

func (p *fakePeer) matchFound(t *testing.T) []models.MatchFound {
	t.Helper()
	var out []models.MatchFound
	for _, raw := range p.ofType(t, models.EventMatchFound) {
		var mf models.MatchFound
		require.NoError(t, json.Unmarshal(raw, &mf))
		out = append(out, mf)
	}
	return out
}

func activeSnapshot(id string) *models.SessionSnapshot {
	return &models.SessionSnapshot{
		ID:                 "user-" + id,
		Username:           id,
		SubscriptionStatus: models.SubscriptionActive,
		AgeVerified:        true,
	}
}

func admit(m *Matchmaker, ids ...string) map[string]*fakePeer {
	peers := make(map[string]*fakePeer, len(ids))
	for _, id := range ids {
		p := newFakePeer(id)
		m.Admit(p, "token-"+id, activeSnapshot(id))
		peers[id] = p
	}
	return peers
}

// checkInvariants asserts the pairing table is symmetric and that no
// connection is both queued and paired
func checkInvariants(t *testing.T, m *Matchmaker) {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()

	seen := map[string]bool{}
	for _, id := range m.queue.IDs() {
		require.False(t, seen[id], "%s queued twice", id)
		seen[id] = true
		_, paired := m.pairs.Partner(id)
		require.False(t, paired, "%s is queued and paired", id)
	}
	for a, b := range m.pairs.partners {
		back, ok := m.pairs.Partner(b)
		require.True(t, ok, "%s -> %s has no reverse entry", a, b)
		require.Equal(t, a, back)
		require.NotEqual(t, a, b)
	}
}
