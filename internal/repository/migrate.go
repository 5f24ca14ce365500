package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// app_users belongs to the account service and is not created here.
var migrations = []string{
	`CREATE TABLE IF NOT EXISTS user_reports (
		id                     UUID PRIMARY KEY,
		reporter_connection_id TEXT NOT NULL,
		reporter_user_id       TEXT NOT NULL,
		reported_connection_id TEXT NOT NULL,
		reported_user_id       TEXT,
		details                TEXT NOT NULL DEFAULT '',
		created_at             TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS user_reports_reported_user_idx ON user_reports (reported_user_id)`,
}

// Migrate creates the tables owned by this service
func Migrate(ctx context.Context, db *pgxpool.Pool) error {
	for i, stmt := range migrations {
		if _, err := db.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply migration %d: %w", i, err)
		}
	}
	return nil
}
