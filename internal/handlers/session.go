package handlers

import (
	"net/http"
	"time"

	"video-match-backend/internal/middleware"
	"video-match-backend/internal/services"
)

// SessionHandler serves the REST view of the caller's session and the
// matchmaker counters
type SessionHandler struct {
	matchmaker *services.Matchmaker
	startedAt  time.Time
}

// NewSessionHandler creates a new session handler
func NewSessionHandler(matchmaker *services.Matchmaker) *SessionHandler {
	return &SessionHandler{
		matchmaker: matchmaker,
		startedAt:  time.Now(),
	}
}

// Health handles GET /health
func (h *SessionHandler) Health(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"status": "ok",
		"uptime": time.Since(h.startedAt).Seconds(),
	})
}

// GetSession handles GET /api/v1/session
func (h *SessionHandler) GetSession(w http.ResponseWriter, r *http.Request) {
	snap := middleware.GetSession(r.Context())
	if snap == nil {
		respondError(w, "Invalid or expired session.", http.StatusUnauthorized)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"user": snap})
}

// GetStats handles GET /api/v1/stats
func (h *SessionHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.matchmaker.Stats())
}
