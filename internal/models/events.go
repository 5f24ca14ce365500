package models

import (
	"encoding/json"
	"fmt"
)

// Inbound event types (client -> server)
const (
	EventPresenceUpdate = "presence:update"
	EventQueueJoin      = "queue:join"
	EventQueueLeave     = "queue:leave"
	EventMatchReady     = "match:ready"
	EventMatchSignal    = "match:signal"
	EventMatchEnd       = "match:end"
	EventUserReport     = "user:report"
)

// Outbound event types (server -> client)
const (
	EventAuthError            = "auth:error"
	EventSubscriptionInactive = "subscription:inactive"
	EventAgeUnverified        = "age:unverified"
	EventStatsUpdate          = "stats:update"
	EventMatchFound           = "match:found"
	EventMatchEnded           = "match:ended"
	EventUserReportAck        = "user:report:ack"
)

// Call end reasons
const (
	ReasonEnded        = "ended"
	ReasonDisconnected = "disconnected"
	ReasonPartnerLeft  = "partner_left"
)

// Envelope is the wire frame for every websocket message in both directions.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Event is an outbound message before encoding
type Event struct {
	Type    string
	Payload any
}

// Encode marshals the event into an envelope frame. A json.RawMessage
// payload is written as is; encoding/json would compact it.
func (e Event) Encode() ([]byte, error) {
	typ, err := json.Marshal(e.Type)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal event type: %w", err)
	}

	var payload []byte
	switch p := e.Payload.(type) {
	case nil:
	case json.RawMessage:
		payload = p
	default:
		payload, err = json.Marshal(p)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal %s payload: %w", e.Type, err)
		}
	}

	frame := make([]byte, 0, len(typ)+len(payload)+24)
	frame = append(frame, `{"type":`...)
	frame = append(frame, typ...)
	if payload != nil {
		frame = append(frame, `,"payload":`...)
		frame = append(frame, payload...)
	}
	frame = append(frame, '}')
	return frame, nil
}

// MessagePayload carries a human readable notice (auth:error and friends)
type MessagePayload struct {
	Message string `json:"message"`
}

// PresenceUpdate is the payload of presence:update
type PresenceUpdate map[string]any

// QueueJoin is the payload of queue:join
type QueueJoin struct {
	Metadata map[string]any `json:"metadata"`
}

// SignalIn is the payload of an inbound match:signal. Data is kept raw so it
// reaches the target byte for byte.
type SignalIn struct {
	TargetID string          `json:"targetId"`
	Data     json.RawMessage `json:"data"`
}

// SignalOut is the payload of an outbound match:signal
type SignalOut struct {
	From string          `json:"from"`
	Data json.RawMessage `json:"data"`
}

// Raw builds the payload without re-encoding Data.
func (s SignalOut) Raw() (json.RawMessage, error) {
	from, err := json.Marshal(s.From)
	if err != nil {
		return nil, err
	}
	out := make([]byte, 0, len(from)+len(s.Data)+20)
	out = append(out, `{"from":`...)
	out = append(out, from...)
	out = append(out, `,"data":`...)
	out = append(out, s.Data...)
	out = append(out, '}')
	return out, nil
}

// HasData reports whether the signal carries a non-null payload
func (s SignalIn) HasData() bool {
	return len(s.Data) > 0 && string(s.Data) != "null"
}

// MatchEnd is the payload of match:end
type MatchEnd struct {
	Reason string `json:"reason"`
}

// UserReport is the payload of user:report
type UserReport struct {
	PartnerID string `json:"partnerId"`
	Details   string `json:"details"`
}

// MatchFound is the payload of match:found
type MatchFound struct {
	PartnerID       string         `json:"partnerId"`
	PartnerMetadata map[string]any `json:"partnerMetadata"`
}

// MatchEnded is the payload of match:ended
type MatchEnded struct {
	Reason string `json:"reason"`
}

// DecodePayload unmarshals an optional payload. An absent or null payload
// leaves dst untouched.
func DecodePayload(raw json.RawMessage, dst any) error {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	return json.Unmarshal(raw, dst)
}
