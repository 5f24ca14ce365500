package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"video-match-backend/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrUserNotFound is returned when no account matches the requested id
var ErrUserNotFound = errors.New("user not found")

// UserRepository reads account state written by the account service
type UserRepository struct {
	db *pgxpool.Pool
}

// NewUserRepository creates a new user repository
func NewUserRepository(db *pgxpool.Pool) *UserRepository {
	return &UserRepository{db: db}
}

// GetSnapshot loads the entitlement-relevant columns of an account
func (r *UserRepository) GetSnapshot(ctx context.Context, id string) (*models.SessionSnapshot, error) {
	query := `
		SELECT id, username, subscription_status, age_verified_at, date_of_birth
		FROM app_users
		WHERE id = $1
	`
	var (
		snap          models.SessionSnapshot
		status        *string
		ageVerifiedAt *time.Time
		dateOfBirth   *time.Time
	)
	err := r.db.QueryRow(ctx, query, id).Scan(
		&snap.ID, &snap.Username, &status, &ageVerifiedAt, &dateOfBirth,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user snapshot: %w", err)
	}

	snap.SubscriptionStatus = models.SubscriptionInactive
	if status != nil && *status != "" {
		snap.SubscriptionStatus = *status
	}
	snap.AgeVerifiedAt = ageVerifiedAt
	snap.AgeVerified = ageVerifiedAt != nil
	snap.DateOfBirth = dateOfBirth

	return &snap, nil
}
