package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventEncode(t *testing.T) {
	frame, err := Event{
		Type:    EventStatsUpdate,
		Payload: Stats{OnlineCount: 3, QueueSize: 1, ActiveCallCount: 1},
	}.Encode()
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"stats:update","payload":{"onlineCount":3,"queueSize":1,"activeCallCount":1}}`, string(frame))

	frame, err = Event{Type: EventUserReportAck}.Encode()
	require.NoError(t, err)
	assert.Equal(t, `{"type":"user:report:ack"}`, string(frame))
}

func TestSignalRawKeepsBytes(t *testing.T) {
	data := json.RawMessage(`{ "type": "offer",   "sdp": "v=0\r\n" }`)

	payload, err := SignalOut{From: "conn-a", Data: data}.Raw()
	require.NoError(t, err)

	frame, err := Event{Type: EventMatchSignal, Payload: payload}.Encode()
	require.NoError(t, err)
	assert.Contains(t, string(frame), string(data))

	var env Envelope
	require.NoError(t, json.Unmarshal(frame, &env))
	var out SignalOut
	require.NoError(t, json.Unmarshal(env.Payload, &out))
	assert.Equal(t, "conn-a", out.From)
	assert.Equal(t, string(data), string(out.Data))
}

func TestSignalInHasData(t *testing.T) {
	tests := []struct {
		raw  string
		want bool
	}{
		{`{"targetId":"b","data":{"type":"answer"}}`, true},
		{`{"targetId":"b","data":"candidate"}`, true},
		{`{"targetId":"b","data":null}`, false},
		{`{"targetId":"b"}`, false},
	}

	for _, tt := range tests {
		var in SignalIn
		require.NoError(t, json.Unmarshal([]byte(tt.raw), &in))
		assert.Equal(t, tt.want, in.HasData(), tt.raw)
	}
}

func TestDecodePayloadTolerance(t *testing.T) {
	join := QueueJoin{}
	require.NoError(t, DecodePayload(nil, &join))
	require.NoError(t, DecodePayload(json.RawMessage("null"), &join))
	assert.Nil(t, join.Metadata)

	require.NoError(t, DecodePayload(json.RawMessage(`{"metadata":{"lang":"en"}}`), &join))
	assert.Equal(t, "en", join.Metadata["lang"])

	assert.Error(t, DecodePayload(json.RawMessage(`[1,2]`), &join))
}

func TestPresenceMetadata(t *testing.T) {
	p := &Presence{
		ConnectionID: "c1",
		UserID:       "u1",
		DisplayName:  "alice",
		AgeVerified:  true,
		Mode:         ModeQueue,
		Extra:        map[string]any{"country": "NL", "displayName": "spoof"},
	}

	md := p.Metadata()
	assert.Equal(t, "alice", md["displayName"])
	assert.Equal(t, "NL", md["country"])
	assert.Equal(t, ModeQueue, md["currentMode"])
	assert.Nil(t, md["dateOfBirth"])
	_, hasUpdated := md["updatedAt"]
	assert.False(t, hasUpdated)
}
