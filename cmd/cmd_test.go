package cmd

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"video-match-backend/internal/handlers"
	"video-match-backend/internal/models"
	"video-match-backend/internal/services"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticAuthority map[string]*models.SessionSnapshot

func (a staticAuthority) Validate(_ context.Context, token string) (*models.SessionSnapshot, error) {
	snap, ok := a[token]
	if !ok {
		return nil, services.ErrInvalidToken
	}
	return snap, nil
}

func newTestRouter(origins []string) http.Handler {
	auth := staticAuthority{"good": {
		ID:                 "u1",
		Username:           "alice",
		SubscriptionStatus: models.SubscriptionActive,
		AgeVerified:        true,
	}}
	matchmaker := services.NewMatchmaker(services.MatchmakerOptions{})
	moderation := services.NewModerationService(matchmaker)
	ws := handlers.NewWebSocketHandler(matchmaker, auth, moderation, services.DefaultClientOptions(), origins)
	return NewRouter(origins, auth, handlers.NewSessionHandler(matchmaker), ws)
}

func serve(h http.Handler, method, path, token string) *httptest.ResponseRecorder {
	r := httptest.NewRequest(method, path, nil)
	if token != "" {
		r.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)
	return w
}

func TestHealth(t *testing.T) {
	w := serve(newTestRouter(nil), http.MethodGet, "/health", "")

	require.Equal(t, http.StatusOK, w.Code)
	var body map[string]any
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	assert.Equal(t, "ok", body["status"])
}

func TestAPIRequiresSession(t *testing.T) {
	router := newTestRouter(nil)

	assert.Equal(t, http.StatusUnauthorized, serve(router, http.MethodGet, "/api/v1/session", "").Code)
	assert.Equal(t, http.StatusUnauthorized, serve(router, http.MethodGet, "/api/v1/stats", "bad").Code)
}

func TestSessionAndStats(t *testing.T) {
	router := newTestRouter(nil)

	w := serve(router, http.MethodGet, "/api/v1/session", "good")
	require.Equal(t, http.StatusOK, w.Code)
	var session struct {
		User models.SessionSnapshot `json:"user"`
	}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&session))
	assert.Equal(t, "alice", session.User.Username)

	w = serve(router, http.MethodGet, "/api/v1/stats", "good")
	require.Equal(t, http.StatusOK, w.Code)
	var stats models.Stats
	require.NoError(t, json.NewDecoder(w.Body).Decode(&stats))
	assert.Equal(t, models.Stats{}, stats)
}

func TestCORS(t *testing.T) {
	router := newTestRouter([]string{"https://app.example.com"})

	r := httptest.NewRequest(http.MethodOptions, "/api/v1/stats", nil)
	r.Header.Set("Origin", "https://app.example.com")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, r)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "https://app.example.com", w.Header().Get("Access-Control-Allow-Origin"))

	r = httptest.NewRequest(http.MethodOptions, "/api/v1/stats", nil)
	r.Header.Set("Origin", "https://evil.example.com")
	w = httptest.NewRecorder()
	router.ServeHTTP(w, r)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}
