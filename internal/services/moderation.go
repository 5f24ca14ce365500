package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path"
	"time"

	"video-match-backend/internal/models"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

const reportTimeout = 5 * time.Second

// ReportStore persists moderation reports
type ReportStore interface {
	Create(ctx context.Context, report *models.Report) error
}

// PresenceLookup resolves a connection id to its live record
type PresenceLookup interface {
	Presence(connectionID string) (models.Presence, bool)
}

// ModerationService records user reports in every configured store
type ModerationService struct {
	presence PresenceLookup
	stores   []ReportStore
	now      func() time.Time
}

// NewModerationService creates a new moderation service
func NewModerationService(presence PresenceLookup, stores ...ReportStore) *ModerationService {
	return &ModerationService{
		presence: presence,
		stores:   stores,
		now:      time.Now,
	}
}

// Report files a complaint from reporterID against reportedID. The reported
// account is resolved while its connection is still known.
func (s *ModerationService) Report(ctx context.Context, reporterID, reportedID, details string) (*models.Report, error) {
	report := &models.Report{
		ID:                   uuid.New().String(),
		ReporterConnectionID: reporterID,
		ReportedConnectionID: reportedID,
		Details:              details,
		CreatedAt:            s.now().UTC(),
	}
	if rec, ok := s.presence.Presence(reporterID); ok {
		report.ReporterUserID = rec.UserID
	}
	if reportedID != "" {
		if rec, ok := s.presence.Presence(reportedID); ok {
			report.ReportedUserID = rec.UserID
		}
	}

	log.Warn().
		Str("report_id", report.ID).
		Str("reporter_id", reporterID).
		Str("reported_id", reportedID).
		Str("details", details).
		Msg("User reported")

	ctx, cancel := context.WithTimeout(ctx, reportTimeout)
	defer cancel()

	var errs []error
	for _, store := range s.stores {
		if err := store.Create(ctx, report); err != nil {
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		return report, fmt.Errorf("failed to record report: %w", err)
	}
	return report, nil
}

// objectPutter is the subset of the S3 client used by the archive
type objectPutter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3ReportArchive writes each report as a JSON object to S3
type S3ReportArchive struct {
	client objectPutter
	bucket string
	prefix string
}

// S3ArchiveConfig holds the S3 settings of the report archive
type S3ArchiveConfig struct {
	Bucket    string
	Region    string
	AccessKey string
	SecretKey string
	Endpoint  string
	Prefix    string
}

// NewS3ReportArchive creates an archive backed by an S3 compatible store
func NewS3ReportArchive(ctx context.Context, cfg S3ArchiveConfig) (*S3ReportArchive, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}
	if cfg.AccessKey != "" && cfg.SecretKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	return newS3ReportArchive(client, cfg.Bucket, cfg.Prefix), nil
}

func newS3ReportArchive(client objectPutter, bucket, prefix string) *S3ReportArchive {
	return &S3ReportArchive{
		client: client,
		bucket: bucket,
		prefix: prefix,
	}
}

// Create uploads the report under <prefix>/YYYY/MM/DD/<id>.json
func (a *S3ReportArchive) Create(ctx context.Context, report *models.Report) error {
	body, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("failed to marshal report: %w", err)
	}

	_, err = a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(a.key(report)),
		Body:        bytes.NewReader(body),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("failed to archive report: %w", err)
	}
	return nil
}

func (a *S3ReportArchive) key(report *models.Report) string {
	return path.Join(a.prefix, report.CreatedAt.UTC().Format("2006/01/02"), report.ID+".json")
}
