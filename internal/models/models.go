package models

import "time"

// Subscription statuses reported by the account service
const (
	SubscriptionActive   = "active"
	SubscriptionInactive = "inactive"
)

// Presence modes of a live connection
const (
	ModeIdle   = "idle"
	ModeQueue  = "queue"
	ModeInCall = "in_call"
)

// SessionSnapshot is the account state behind a session token. It is owned by
// the account service; the matchmaker only reads it.
type SessionSnapshot struct {
	ID                 string     `json:"id"`
	Username           string     `json:"username"`
	SubscriptionStatus string     `json:"subscriptionStatus"`
	AgeVerified        bool       `json:"ageVerified"`
	AgeVerifiedAt      *time.Time `json:"ageVerifiedAt"`
	DateOfBirth        *time.Time `json:"dateOfBirth"`
}

// SubscriptionActive reports whether the snapshot carries an active subscription
func (s *SessionSnapshot) SubscriptionActive() bool {
	return s.SubscriptionStatus == SubscriptionActive
}

// Presence is the ephemeral state of one admitted connection
type Presence struct {
	ConnectionID string
	SessionToken string
	UserID       string
	DisplayName  string
	AgeVerified  bool
	DateOfBirth  *time.Time
	Mode         string
	JoinedAt     time.Time
	UpdatedAt    time.Time
	// Extra holds caller-supplied presence fields
	Extra map[string]any
}

// Metadata flattens the record into the shape sent to partners.
func (p *Presence) Metadata() map[string]any {
	out := make(map[string]any, len(p.Extra)+7)
	for k, v := range p.Extra {
		out[k] = v
	}
	out["displayName"] = p.DisplayName
	out["ageVerified"] = p.AgeVerified
	out["currentMode"] = p.Mode
	out["userId"] = p.UserID
	out["joinedAt"] = p.JoinedAt.UnixMilli()
	if !p.UpdatedAt.IsZero() {
		out["updatedAt"] = p.UpdatedAt.UnixMilli()
	}
	if p.DateOfBirth != nil {
		out["dateOfBirth"] = p.DateOfBirth.Format(time.RFC3339)
	} else {
		out["dateOfBirth"] = nil
	}
	return out
}

// QueueEntry is a connection waiting for a partner
type QueueEntry struct {
	ConnectionID string
	EnqueuedAt   time.Time
	Metadata     map[string]any
}

// Stats are the aggregate counters broadcast to every connection
type Stats struct {
	OnlineCount     int `json:"onlineCount"`
	QueueSize       int `json:"queueSize"`
	ActiveCallCount int `json:"activeCallCount"`
}

// Report is a moderation complaint filed by one connection against another
type Report struct {
	ID                   string    `json:"id"`
	ReporterConnectionID string    `json:"reporter_connection_id"`
	ReporterUserID       string    `json:"reporter_user_id"`
	ReportedConnectionID string    `json:"reported_connection_id"`
	ReportedUserID       string    `json:"reported_user_id,omitempty"`
	Details              string    `json:"details"`
	CreatedAt            time.Time `json:"created_at"`
}
