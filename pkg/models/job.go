// Package models defines the persisted entities and their enumerated values.
package models

import (
	"time"

	"github.com/google/uuid"
)

// JobStatus is the lifecycle state of a processing job. Jobs move
// queued → (one stage status per pipeline stage) → completed|failed.
type JobStatus string

// Job statuses.
const (
	JobStatusQueued      JobStatus = "queued"
	JobStatusIngesting   JobStatus = "ingesting"
	JobStatusParsing     JobStatus = "parsing"
	JobStatusValidating  JobStatus = "validating"
	JobStatusPersisting  JobStatus = "persisting"
	JobStatusClassifying JobStatus = "classifying"
	JobStatusVectorizing JobStatus = "vectorizing"
	JobStatusCompleted   JobStatus = "completed"
	JobStatusFailed      JobStatus = "failed"
)

// Terminal reports whether the status is a terminal state.
func (s JobStatus) Terminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// Job is one record per document-processing submission.
type Job struct {
	ID            uuid.UUID  `db:"id" json:"job_id"`
	UserID        string     `db:"user_id" json:"user_id"`
	DocumentURL   string     `db:"document_url" json:"document_url"`
	Status        JobStatus  `db:"status" json:"status"`
	ErrorMessage  *string    `db:"error_message" json:"error_message,omitempty"`
	DocumentID    *uuid.UUID `db:"document_id" json:"document_id,omitempty"`
	QuestionCount int        `db:"question_count" json:"question_count"`
	CreatedAt     time.Time  `db:"created_at" json:"created_at"`
	StartedAt     *time.Time `db:"started_at" json:"started_at,omitempty"`
	CompletedAt   *time.Time `db:"completed_at" json:"completed_at,omitempty"`
}
