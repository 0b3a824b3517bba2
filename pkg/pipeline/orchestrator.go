package pipeline

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/doculord/doculord/pkg/models"
)

// noContentFailure is the job error recorded when a run finishes without an
// explicit stage error but also without any extracted content.
const noContentFailure = "Processing failed: No content extracted from document. The source URL may be invalid or expired."

// JobRegistry records pipeline progress. Status updates carry their own
// bounded retry and never fail the run.
type JobRegistry interface {
	UpdateStatus(ctx context.Context, jobID uuid.UUID, status models.JobStatus, errorMessage string)
	Complete(ctx context.Context, jobID uuid.UUID, documentID *uuid.UUID, questionCount int) error
	Fail(ctx context.Context, jobID uuid.UUID, errorMessage string) error
}

// Stage is one pipeline step. Stages report fatal problems through the
// state, not an error return; most of them deliberately swallow failures.
type Stage interface {
	Run(ctx context.Context, st *State)
}

// Orchestrator drives one job through the fixed stage graph:
//
//	ingestion → parsing → validation
//	    ▲                    │ (failed review, attempts left)
//	    └──────── retry ─────┤
//	                         ▼
//	                     persistence → classification → vectorization
//
// The retry edge loops back to ingestion, not parsing, so the next
// converter-option override takes effect during conversion.
type Orchestrator struct {
	jobs           JobRegistry
	ingestion      Stage
	parsing        Stage
	validation     Stage
	persistence    Stage
	classification Stage
	vectorization  Stage
}

// NewOrchestrator wires the stages together.
func NewOrchestrator(jobs JobRegistry, ingestion, parsing, validation, persistence, classification, vectorization Stage) *Orchestrator {
	return &Orchestrator{
		jobs:           jobs,
		ingestion:      ingestion,
		parsing:        parsing,
		validation:     validation,
		persistence:    persistence,
		classification: classification,
		vectorization:  vectorization,
	}
}

// Run executes the whole pipeline for one job and records the terminal
// status. It is synchronous; callers run it on their own goroutine.
func (o *Orchestrator) Run(ctx context.Context, st *State) {
	slog.Info("Pipeline started", "job_id", st.JobID, "url", st.DocumentURL)

	for {
		o.jobs.UpdateStatus(ctx, st.JobID, models.JobStatusIngesting, "")
		o.ingestion.Run(ctx, st)

		o.jobs.UpdateStatus(ctx, st.JobID, models.JobStatusParsing, "")
		o.parsing.Run(ctx, st)

		o.jobs.UpdateStatus(ctx, st.JobID, models.JobStatusValidating, "")
		o.validation.Run(ctx, st)

		if st.ValidationPassed {
			break
		}
		slog.Info("Validation requested conversion retry",
			"job_id", st.JobID, "attempt", st.ValidationAttempts)
	}

	o.jobs.UpdateStatus(ctx, st.JobID, models.JobStatusPersisting, "")
	o.persistence.Run(ctx, st)

	o.jobs.UpdateStatus(ctx, st.JobID, models.JobStatusClassifying, "")
	o.classification.Run(ctx, st)

	o.jobs.UpdateStatus(ctx, st.JobID, models.JobStatusVectorizing, "")
	o.vectorization.Run(ctx, st)

	o.finalize(ctx, st)
}

// finalize decides the terminal job state. An explicit stage error fails the
// job; so does a run that produced neither a document nor any content.
func (o *Orchestrator) finalize(ctx context.Context, st *State) {
	switch {
	case st.ErrorMessage != "":
		if err := o.jobs.Fail(ctx, st.JobID, st.ErrorMessage); err != nil {
			slog.Error("Failed to record job failure", "job_id", st.JobID, "error", err)
		}
	case st.DocumentID == nil && !st.HasContent():
		if err := o.jobs.Fail(ctx, st.JobID, noContentFailure); err != nil {
			slog.Error("Failed to record job failure", "job_id", st.JobID, "error", err)
		}
	default:
		if err := o.jobs.Complete(ctx, st.JobID, st.DocumentID, len(st.QuestionIDs)); err != nil {
			slog.Error("Failed to record job completion", "job_id", st.JobID, "error", err)
		}
		slog.Info("Pipeline completed",
			"job_id", st.JobID,
			"document_id", st.DocumentID,
			"questions", len(st.QuestionIDs),
			"classified", st.ClassifiedCount,
			"embedded", st.VectorizedCount)
	}
}
