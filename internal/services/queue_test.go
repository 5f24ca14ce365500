package services

import (
	"testing"

	"video-match-backend/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func entry(id string) models.QueueEntry {
	return models.QueueEntry{ConnectionID: id}
}

func TestMatchQueueOrder(t *testing.T) {
	q := NewMatchQueue()
	q.Enqueue(entry("a"))
	q.Enqueue(entry("b"))
	q.Enqueue(entry("a"))

	assert.Equal(t, []string{"b", "a"}, q.IDs())

	e, ok := q.PopFront()
	require.True(t, ok)
	assert.Equal(t, "b", e.ConnectionID)

	q.Enqueue(entry("c"))
	q.PushFront(entry("b"))
	assert.Equal(t, []string{"b", "a", "c"}, q.IDs())
	assert.True(t, q.Contains("c"))
	assert.Equal(t, 3, q.Len())
}

func TestMatchQueueLeave(t *testing.T) {
	q := NewMatchQueue()
	q.Enqueue(entry("a"))
	q.Enqueue(entry("b"))

	assert.True(t, q.Leave("a"))
	assert.False(t, q.Leave("a"))
	assert.False(t, q.Leave("zzz"))
	assert.Equal(t, []string{"b"}, q.IDs())
}

func TestMatchQueuePopEmpty(t *testing.T) {
	q := NewMatchQueue()
	_, ok := q.PopFront()
	assert.False(t, ok)
	assert.Equal(t, 0, q.Len())
}

func TestPartnerIndexSymmetry(t *testing.T) {
	p := NewPartnerIndex()
	p.Pair("a", "b")
	p.Pair("c", "d")

	partner, ok := p.Partner("b")
	require.True(t, ok)
	assert.Equal(t, "a", partner)
	assert.Equal(t, 2, p.Calls())

	// re-pairing a breaks its old pairing on both sides
	p.Pair("a", "c")
	_, ok = p.Partner("b")
	assert.False(t, ok)
	_, ok = p.Partner("d")
	assert.False(t, ok)
	assert.Equal(t, 1, p.Calls())

	former, ok := p.Unpair("c")
	require.True(t, ok)
	assert.Equal(t, "a", former)
	_, ok = p.Unpair("c")
	assert.False(t, ok)
	assert.Equal(t, 0, p.Calls())
}

func TestPartnerIndexSelfPair(t *testing.T) {
	p := NewPartnerIndex()
	p.Pair("a", "a")
	_, ok := p.Partner("a")
	assert.False(t, ok)
}
