package repository

import (
	"context"
	"fmt"

	"video-match-backend/internal/models"

	"github.com/jackc/pgx/v5/pgxpool"
)

// ReportRepository handles database operations for moderation reports
type ReportRepository struct {
	db *pgxpool.Pool
}

// NewReportRepository creates a new report repository
func NewReportRepository(db *pgxpool.Pool) *ReportRepository {
	return &ReportRepository{db: db}
}

// Create stores a new report
func (r *ReportRepository) Create(ctx context.Context, report *models.Report) error {
	query := `
		INSERT INTO user_reports (
			id, reporter_connection_id, reporter_user_id,
			reported_connection_id, reported_user_id, details, created_at
		)
		VALUES ($1, $2, $3, $4, NULLIF($5, ''), $6, $7)
	`
	_, err := r.db.Exec(ctx, query,
		report.ID, report.ReporterConnectionID, report.ReporterUserID,
		report.ReportedConnectionID, report.ReportedUserID, report.Details, report.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create report: %w", err)
	}
	return nil
}
