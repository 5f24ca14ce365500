package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"video-match-backend/internal/models"
	"video-match-backend/internal/services"

	"github.com/rs/zerolog/log"
)

type contextKey string

const sessionKey contextKey = "session"

// AuthMiddleware rejects requests without a valid session token and stores
// the resolved snapshot in the request context
func AuthMiddleware(sessions services.SessionAuthority) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := BearerToken(r)
			if token == "" {
				respondError(w, "Authentication required.", http.StatusUnauthorized)
				return
			}

			snap, err := sessions.Validate(r.Context(), token)
			if err != nil {
				log.Debug().Err(err).Msg("Rejected session token")
				respondError(w, "Invalid or expired session.", http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), sessionKey, snap)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetSession extracts the session snapshot from context
func GetSession(ctx context.Context) *models.SessionSnapshot {
	snap, ok := ctx.Value(sessionKey).(*models.SessionSnapshot)
	if !ok {
		return nil
	}
	return snap
}

// BearerToken returns the session token of a request. Browsers cannot set
// headers on websocket handshakes, so the token query parameter is accepted too.
func BearerToken(r *http.Request) string {
	if token := r.URL.Query().Get("token"); token != "" {
		return token
	}

	parts := strings.SplitN(r.Header.Get("Authorization"), " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

// respondError sends an error response
func respondError(w http.ResponseWriter, message string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(map[string]string{"message": message})
}
