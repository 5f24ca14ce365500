package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"runtime/debug"

	"video-match-backend/internal/middleware"
	"video-match-backend/internal/models"
	"video-match-backend/internal/services"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// WebSocketHandler admits real-time connections and dispatches their events
type WebSocketHandler struct {
	matchmaker *services.Matchmaker
	sessions   services.SessionAuthority
	moderation *services.ModerationService
	upgrader   websocket.Upgrader
	clientOpts services.ClientOptions
}

// NewWebSocketHandler creates a new WebSocket handler. An empty allowedOrigins
// accepts any origin.
func NewWebSocketHandler(
	matchmaker *services.Matchmaker,
	sessions services.SessionAuthority,
	moderation *services.ModerationService,
	clientOpts services.ClientOptions,
	allowedOrigins []string,
) *WebSocketHandler {
	origins := make(map[string]struct{}, len(allowedOrigins))
	for _, o := range allowedOrigins {
		origins[o] = struct{}{}
	}

	return &WebSocketHandler{
		matchmaker: matchmaker,
		sessions:   sessions,
		moderation: moderation,
		clientOpts: clientOpts,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				if len(origins) == 0 {
					return true
				}
				origin := r.Header.Get("Origin")
				if origin == "" {
					return true
				}
				_, ok := origins[origin]
				return ok
			},
		},
	}
}

// HandleWebSocket upgrades the connection, checks entitlement and runs the
// event loop until the transport closes
func (h *WebSocketHandler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	token := middleware.BearerToken(r)

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error().Err(err).Msg("Failed to upgrade WebSocket connection")
		return
	}

	client := services.NewClient(conn, h.clientOpts)
	ctx := r.Context()

	var snap *models.SessionSnapshot
	if token != "" {
		snap, err = h.sessions.Validate(ctx, token)
		if err != nil {
			log.Debug().Err(err).Str("connection_id", client.ID()).Msg("Session validation failed")
			snap = nil
		}
	}

	if evType, message := services.RejectionEvent(snap); evType != "" {
		log.Info().
			Str("connection_id", client.ID()).
			Str("reason", evType).
			Msg("Connection rejected")
		client.Reject(models.Event{Type: evType, Payload: models.MessagePayload{Message: message}})
		return
	}

	h.matchmaker.Admit(client, token, snap)
	defer h.matchmaker.Disconnect(client.ID())

	client.Run(func(frame []byte) {
		h.dispatch(ctx, client, token, frame)
	})

	log.Info().Str("connection_id", client.ID()).Msg("WebSocket connection closed")
}

// dispatch handles one inbound frame. Malformed frames are ignored and a
// panic is contained to this event.
func (h *WebSocketHandler) dispatch(ctx context.Context, client services.Peer, token string, frame []byte) {
	id := client.ID()
	defer func() {
		if rec := recover(); rec != nil {
			log.Error().
				Interface("panic", rec).
				Str("connection_id", id).
				Bytes("stack", debug.Stack()).
				Msg("Recovered from panic in event handler")
		}
	}()

	var env models.Envelope
	if err := json.Unmarshal(frame, &env); err != nil {
		log.Debug().Err(err).Str("connection_id", id).Msg("Ignoring malformed frame")
		return
	}

	log.Debug().Str("connection_id", id).Str("type", env.Type).Msg("Event received")

	switch env.Type {
	case models.EventPresenceUpdate:
		var update models.PresenceUpdate
		if err := models.DecodePayload(env.Payload, &update); err != nil {
			return
		}
		h.matchmaker.UpdatePresence(id, update)

	case models.EventQueueJoin:
		h.handleQueueJoin(ctx, client, token, env.Payload)

	case models.EventQueueLeave:
		h.matchmaker.LeaveQueue(id)

	case models.EventMatchReady:
		h.matchmaker.MarkReady(id)

	case models.EventMatchSignal:
		var sig models.SignalIn
		if err := models.DecodePayload(env.Payload, &sig); err != nil {
			return
		}
		if sig.TargetID == "" || !sig.HasData() {
			return
		}
		h.matchmaker.Relay(id, sig.TargetID, sig.Data)

	case models.EventMatchEnd:
		var end models.MatchEnd
		if err := models.DecodePayload(env.Payload, &end); err != nil {
			end = models.MatchEnd{}
		}
		h.matchmaker.EndCall(id, end.Reason)

	case models.EventUserReport:
		h.handleUserReport(ctx, client, env.Payload)

	default:
		log.Debug().Str("connection_id", id).Str("type", env.Type).Msg("Unknown event type")
	}
}

// handleQueueJoin re-reads the session, since a subscription may have lapsed
// after the connection was admitted
func (h *WebSocketHandler) handleQueueJoin(ctx context.Context, client services.Peer, token string, payload json.RawMessage) {
	var join models.QueueJoin
	if err := models.DecodePayload(payload, &join); err != nil {
		return
	}
	if join.Metadata == nil {
		join.Metadata = map[string]any{}
	}

	snap, err := h.sessions.Validate(ctx, token)
	if err != nil || snap == nil || !snap.SubscriptionActive() {
		log.Info().Str("connection_id", client.ID()).Msg("Queue join refused, subscription inactive")
		if h.matchmaker.Queued(client.ID()) {
			h.matchmaker.LeaveQueue(client.ID())
		}
		send(client, models.Event{
			Type:    models.EventSubscriptionInactive,
			Payload: models.MessagePayload{Message: "Your subscription is inactive. Please renew to join the queue."},
		})
		return
	}

	h.matchmaker.JoinQueue(client.ID(), join.Metadata)
}

func (h *WebSocketHandler) handleUserReport(ctx context.Context, client services.Peer, payload json.RawMessage) {
	var report models.UserReport
	if err := models.DecodePayload(payload, &report); err != nil {
		return
	}

	if _, err := h.moderation.Report(ctx, client.ID(), report.PartnerID, report.Details); err != nil {
		log.Error().Err(err).Str("connection_id", client.ID()).Msg("Failed to record report")
	}

	send(client, models.Event{Type: models.EventUserReportAck})
}

func send(peer services.Peer, ev models.Event) {
	frame, err := ev.Encode()
	if err != nil {
		log.Error().Err(err).Str("type", ev.Type).Msg("Failed to encode event")
		return
	}
	peer.Send(frame)
}
