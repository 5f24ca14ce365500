package services

import "video-match-backend/internal/models"

// MatchQueue is the FIFO of connections waiting for a partner. A connection
// id appears at most once. Not safe for concurrent use.
type MatchQueue struct {
	entries []models.QueueEntry
}

// NewMatchQueue creates an empty queue
func NewMatchQueue() *MatchQueue {
	return &MatchQueue{}
}

// Enqueue appends an entry, dropping any earlier entry for the same connection
func (q *MatchQueue) Enqueue(entry models.QueueEntry) {
	q.Leave(entry.ConnectionID)
	q.entries = append(q.entries, entry)
}

// Leave removes a connection from the queue. It reports whether anything was removed.
func (q *MatchQueue) Leave(connectionID string) bool {
	for i, e := range q.entries {
		if e.ConnectionID == connectionID {
			q.entries = append(q.entries[:i], q.entries[i+1:]...)
			return true
		}
	}
	return false
}

// PopFront removes and returns the oldest entry
func (q *MatchQueue) PopFront() (models.QueueEntry, bool) {
	if len(q.entries) == 0 {
		return models.QueueEntry{}, false
	}
	e := q.entries[0]
	q.entries[0] = models.QueueEntry{}
	q.entries = q.entries[1:]
	return e, true
}

// PushFront puts an entry back at the head of the queue, keeping its priority
func (q *MatchQueue) PushFront(entry models.QueueEntry) {
	q.Leave(entry.ConnectionID)
	q.entries = append([]models.QueueEntry{entry}, q.entries...)
}

// Contains reports whether a connection is queued
func (q *MatchQueue) Contains(connectionID string) bool {
	for _, e := range q.entries {
		if e.ConnectionID == connectionID {
			return true
		}
	}
	return false
}

// Len returns the number of waiting connections
func (q *MatchQueue) Len() int {
	return len(q.entries)
}

// IDs returns the queued connection ids, oldest first
func (q *MatchQueue) IDs() []string {
	ids := make([]string, len(q.entries))
	for i, e := range q.entries {
		ids[i] = e.ConnectionID
	}
	return ids
}
