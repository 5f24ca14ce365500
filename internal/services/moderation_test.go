package services

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"
	"time"

	"video-match-backend/internal/models"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memoryReportStore struct {
	reports []*models.Report
	err     error
}

func (s *memoryReportStore) Create(_ context.Context, r *models.Report) error {
	if s.err != nil {
		return s.err
	}
	s.reports = append(s.reports, r)
	return nil
}

type fakePutter struct {
	key         string
	bucket      string
	contentType string
	body        []byte
}

func (p *fakePutter) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	p.key = aws.ToString(in.Key)
	p.bucket = aws.ToString(in.Bucket)
	p.contentType = aws.ToString(in.ContentType)
	body, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	p.body = body
	return &s3.PutObjectOutput{}, nil
}

func TestReportResolvesUsers(t *testing.T) {
	m := NewMatchmaker(MatchmakerOptions{})
	admit(m, "a", "b")
	store := &memoryReportStore{}
	svc := NewModerationService(m, store)

	report, err := svc.Report(context.Background(), "a", "b", "rude")
	require.NoError(t, err)

	require.Len(t, store.reports, 1)
	assert.Equal(t, report, store.reports[0])
	assert.Equal(t, "user-a", report.ReporterUserID)
	assert.Equal(t, "user-b", report.ReportedUserID)
	assert.Equal(t, "b", report.ReportedConnectionID)
	assert.Equal(t, "rude", report.Details)
	assert.NotEmpty(t, report.ID)
}

func TestReportUnknownPartner(t *testing.T) {
	m := NewMatchmaker(MatchmakerOptions{})
	admit(m, "a")
	store := &memoryReportStore{}
	svc := NewModerationService(m, store)

	report, err := svc.Report(context.Background(), "a", "gone", "")
	require.NoError(t, err)
	assert.Empty(t, report.ReportedUserID)
	assert.Len(t, store.reports, 1)
}

func TestReportStoreFailureStillTriesOthers(t *testing.T) {
	m := NewMatchmaker(MatchmakerOptions{})
	failing := &memoryReportStore{err: errors.New("db down")}
	ok := &memoryReportStore{}
	svc := NewModerationService(m, failing, ok)

	report, err := svc.Report(context.Background(), "a", "b", "spam")
	require.Error(t, err)
	assert.NotNil(t, report)
	assert.Len(t, ok.reports, 1)
}

func TestS3ReportArchive(t *testing.T) {
	putter := &fakePutter{}
	archive := newS3ReportArchive(putter, "moderation", "reports")
	report := &models.Report{
		ID:                   "r-1",
		ReporterConnectionID: "a",
		ReportedConnectionID: "b",
		Details:              "rude",
		CreatedAt:            time.Date(2026, 3, 9, 22, 0, 0, 0, time.UTC),
	}

	require.NoError(t, archive.Create(context.Background(), report))

	assert.Equal(t, "moderation", putter.bucket)
	assert.Equal(t, "reports/2026/03/09/r-1.json", putter.key)
	assert.Equal(t, "application/json", putter.contentType)

	var stored models.Report
	require.NoError(t, json.Unmarshal(putter.body, &stored))
	assert.Equal(t, "rude", stored.Details)
	assert.True(t, report.CreatedAt.Equal(stored.CreatedAt))
}
