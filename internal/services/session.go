package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"video-match-backend/internal/models"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const sessionTTL = 30 * 24 * time.Hour

var (
	// ErrInvalidToken is returned for missing, malformed, expired or forged tokens
	ErrInvalidToken = errors.New("invalid session token")
	// ErrSessionNotFound is returned when a valid token names an unknown account
	ErrSessionNotFound = errors.New("session not found")
)

// SessionAuthority resolves session tokens to the account state behind them.
type SessionAuthority interface {
	Validate(ctx context.Context, token string) (*models.SessionSnapshot, error)
}

// UserStore loads account snapshots
type UserStore interface {
	GetSnapshot(ctx context.Context, id string) (*models.SessionSnapshot, error)
}

// JWTSessionAuthority validates HS256 session tokens and re-reads the account
// on every call, so entitlement changes made after login are visible.
type JWTSessionAuthority struct {
	users  UserStore
	secret []byte
	issuer string
}

// NewJWTSessionAuthority creates a new session authority
func NewJWTSessionAuthority(users UserStore, secret, issuer string) *JWTSessionAuthority {
	return &JWTSessionAuthority{
		users:  users,
		secret: []byte(secret),
		issuer: issuer,
	}
}

// IssueToken signs a session token for a user
func (a *JWTSessionAuthority) IssueToken(userID string) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"user_id": userID,
		"sid":     uuid.New().String(),
		"iss":     a.issuer,
		"iat":     now.Unix(),
		"exp":     now.Add(sessionTTL).Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(a.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}

	return tokenString, nil
}

// Validate parses the token and returns a fresh snapshot of its account
func (a *JWTSessionAuthority) Validate(ctx context.Context, tokenString string) (*models.SessionSnapshot, error) {
	if tokenString == "" {
		return nil, ErrInvalidToken
	}

	userID, err := a.userID(tokenString)
	if err != nil {
		return nil, err
	}

	snap, err := a.users.GetSnapshot(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSessionNotFound, err)
	}
	return snap, nil
}

func (a *JWTSessionAuthority) userID(tokenString string) (string, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if a.issuer != "" {
		opts = append(opts, jwt.WithIssuer(a.issuer))
	}

	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		return a.secret, nil
	}, opts...)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", fmt.Errorf("%w: invalid token claims", ErrInvalidToken)
	}

	userID, ok := claims["user_id"].(string)
	if !ok || userID == "" {
		return "", fmt.Errorf("%w: user_id not found in token", ErrInvalidToken)
	}

	return userID, nil
}

// RejectionEvent returns the outbound event that refuses admission for the
// snapshot, or "" when the snapshot is entitled to match.
func RejectionEvent(snap *models.SessionSnapshot) (string, string) {
	switch {
	case snap == nil:
		return models.EventAuthError, "Session expired or invalid. Please login again."
	case !snap.SubscriptionActive():
		return models.EventSubscriptionInactive, "Active subscription required to join the network."
	case !snap.AgeVerified:
		return models.EventAgeUnverified, "Age verification required before joining the network."
	}
	return "", ""
}
