package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/doculord/doculord/pkg/database"
	"github.com/doculord/doculord/pkg/models"
)

// statusUpdateAttempts bounds the internal retry on status writes. A lost
// status update must never abort a pipeline run, so exhaustion is logged at
// error level and swallowed by the caller-facing helpers.
const statusUpdateAttempts = 3

// JobService manages job lifecycle records.
type JobService struct {
	db *database.Client
}

// NewJobService creates a new JobService.
func NewJobService(db *database.Client) *JobService {
	return &JobService{db: db}
}

// Create inserts a new job in status queued.
func (s *JobService) Create(ctx context.Context, userID, documentURL string) (*models.Job, error) {
	if userID == "" {
		return nil, NewValidationError("user_id", "required")
	}
	if documentURL == "" {
		return nil, NewValidationError("document_url", "required")
	}

	job := &models.Job{
		ID:          uuid.New(),
		UserID:      userID,
		DocumentURL: documentURL,
		Status:      models.JobStatusQueued,
		CreatedAt:   time.Now().UTC(),
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO jobs (id, user_id, document_url, status, created_at)
		VALUES ($1, $2, $3, $4, $5)`,
		job.ID, job.UserID, job.DocumentURL, job.Status, job.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create job: %w", err)
	}

	slog.Info("Created job", "job_id", job.ID, "user_id", userID)
	return job, nil
}

// UpdateStatus moves a job to the given status, retrying transient database
// failures. The first transition away from queued stamps started_at. Errors
// after all attempts are logged, not returned: pipeline progress must not
// depend on the status row.
func (s *JobService) UpdateStatus(ctx context.Context, jobID uuid.UUID, status models.JobStatus, errorMessage string) {
	var lastErr error
	for attempt := 1; attempt <= statusUpdateAttempts; attempt++ {
		var err error
		if errorMessage != "" {
			_, err = s.db.ExecContext(ctx, `
				UPDATE jobs
				SET status = $2,
				    error_message = $3,
				    started_at = COALESCE(started_at, CASE WHEN $2 <> 'queued' THEN now() END)
				WHERE id = $1`,
				jobID, status, errorMessage)
		} else {
			_, err = s.db.ExecContext(ctx, `
				UPDATE jobs
				SET status = $2,
				    started_at = COALESCE(started_at, CASE WHEN $2 <> 'queued' THEN now() END)
				WHERE id = $1`,
				jobID, status)
		}
		if err == nil {
			slog.Debug("Updated job status", "job_id", jobID, "status", status)
			return
		}
		lastErr = err
		slog.Warn("Job status update attempt failed",
			"job_id", jobID, "status", status, "attempt", attempt, "error", err)
		time.Sleep(time.Duration(attempt) * 100 * time.Millisecond)
	}
	slog.Error("Job status update failed after all attempts; pipeline continues",
		"job_id", jobID, "status", status, "error", lastErr)
}

// Complete marks a job completed with its result references. documentID may
// be nil when the run produced content but no stored document.
func (s *JobService) Complete(ctx context.Context, jobID uuid.UUID, documentID *uuid.UUID, questionCount int) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE jobs
		SET status = 'completed', document_id = $2, question_count = $3, completed_at = now()
		WHERE id = $1`,
		jobID, documentID, questionCount)
	if err != nil {
		return fmt.Errorf("failed to complete job %s: %w", jobID, err)
	}
	slog.Info("Job completed", "job_id", jobID, "document_id", documentID, "questions", questionCount)
	return nil
}

// Fail marks a job failed with a message for the caller.
func (s *JobService) Fail(ctx context.Context, jobID uuid.UUID, errorMessage string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE jobs
		SET status = 'failed', error_message = $2, completed_at = now()
		WHERE id = $1`,
		jobID, errorMessage)
	if err != nil {
		return fmt.Errorf("failed to mark job %s failed: %w", jobID, err)
	}
	slog.Error("Job failed", "job_id", jobID, "error_message", errorMessage)
	return nil
}

// Get fetches a job by ID.
func (s *JobService) Get(ctx context.Context, jobID uuid.UUID) (*models.Job, error) {
	var job models.Job
	err := s.db.GetContext(ctx, &job, `SELECT * FROM jobs WHERE id = $1`, jobID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get job %s: %w", jobID, err)
	}
	return &job, nil
}

// ListByUser returns a user's jobs, newest first.
func (s *JobService) ListByUser(ctx context.Context, userID string, limit, offset int) ([]models.Job, error) {
	if limit <= 0 {
		limit = 20
	}
	jobs := []models.Job{}
	err := s.db.SelectContext(ctx, &jobs, `
		SELECT * FROM jobs
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`,
		userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list jobs for user %s: %w", userID, err)
	}
	return jobs, nil
}
