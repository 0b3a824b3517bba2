package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/doculord/doculord/pkg/database"
	"github.com/doculord/doculord/pkg/models"
	"github.com/doculord/doculord/pkg/pipeline"
)

// WorkerStatus represents the current state of a worker.
type WorkerStatus string

// Worker status constants.
const (
	WorkerStatusIdle    WorkerStatus = "idle"
	WorkerStatusWorking WorkerStatus = "working"
)

// processingFilter matches jobs currently inside the pipeline: neither
// waiting in the queue nor in a terminal state.
const processingFilter = `status NOT IN ('queued', 'completed', 'failed')`

// Worker is a single queue worker that polls for and processes jobs.
type Worker struct {
	id     string
	db     *database.Client
	config Config
	runner Runner
	pool   JobRegistrar

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup

	// Health tracking
	mu            sync.RWMutex
	status        WorkerStatus
	currentJobID  string
	jobsProcessed int
	lastActivity  time.Time
}

// JobRegistrar is the subset of WorkerPool used by Worker for job registration.
type JobRegistrar interface {
	RegisterJob(jobID uuid.UUID, cancel context.CancelFunc)
	UnregisterJob(jobID uuid.UUID)
}

// NewWorker creates a new queue worker.
func NewWorker(id string, db *database.Client, cfg Config, runner Runner, pool JobRegistrar) *Worker {
	return &Worker{
		id:           id,
		db:           db,
		config:       cfg,
		runner:       runner,
		pool:         pool,
		stopCh:       make(chan struct{}),
		status:       WorkerStatusIdle,
		lastActivity: time.Now(),
	}
}

// Start begins the worker polling loop in a goroutine.
func (w *Worker) Start(ctx context.Context) {
	w.wg.Add(1)
	go w.run(ctx)
}

// Stop signals the worker to stop and waits for it to finish.
// It is safe to call Stop multiple times.
func (w *Worker) Stop() {
	w.stopOnce.Do(func() { close(w.stopCh) })
	w.wg.Wait()
}

// Health returns the current worker health status.
func (w *Worker) Health() WorkerHealth {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return WorkerHealth{
		ID:            w.id,
		Status:        string(w.status),
		CurrentJobID:  w.currentJobID,
		JobsProcessed: w.jobsProcessed,
		LastActivity:  w.lastActivity,
	}
}

// run is the main worker loop.
func (w *Worker) run(ctx context.Context) {
	defer w.wg.Done()

	log := slog.With("worker_id", w.id)
	log.Info("Worker started")

	for {
		select {
		case <-w.stopCh:
			log.Info("Worker shutting down")
			return
		case <-ctx.Done():
			log.Info("Context cancelled, worker shutting down")
			return
		default:
			if err := w.pollAndProcess(ctx); err != nil {
				if errors.Is(err, ErrNoJobsAvailable) || errors.Is(err, ErrAtCapacity) {
					w.sleep(w.pollInterval())
					continue
				}
				log.Error("Error processing job", "error", err)
				w.sleep(time.Second) // Brief backoff on error
			}
		}
	}
}

// sleep waits for the given duration or until stop is signalled.
func (w *Worker) sleep(d time.Duration) {
	select {
	case <-w.stopCh:
	case <-time.After(d):
	}
}

// pollAndProcess checks capacity, claims a job, and processes it.
func (w *Worker) pollAndProcess(ctx context.Context) error {
	// Capacity check is best-effort; racy with concurrent workers but bounded
	// by WorkerCount and mitigated by poll jitter.
	var activeCount int
	err := w.db.GetContext(ctx, &activeCount,
		`SELECT COUNT(*) FROM jobs WHERE `+processingFilter)
	if err != nil {
		return fmt.Errorf("checking active jobs: %w", err)
	}
	if activeCount >= w.config.MaxConcurrentJobs {
		return ErrAtCapacity
	}

	job, err := w.claimNextJob(ctx)
	if err != nil {
		return err
	}

	log := slog.With("job_id", job.ID, "worker_id", w.id)
	log.Info("Job claimed", "url", job.DocumentURL)

	w.setStatus(WorkerStatusWorking, job.ID.String())
	defer w.setStatus(WorkerStatusIdle, "")

	// Bound the run and register the cancel function for API-triggered
	// cancellation.
	jobCtx, cancelJob := context.WithTimeout(ctx, w.config.JobTimeout)
	defer cancelJob()
	w.pool.RegisterJob(job.ID, cancelJob)
	defer w.pool.UnregisterJob(job.ID)

	st := pipeline.NewState(job.ID, job.UserID, job.DocumentURL)
	w.runner.Run(jobCtx, st)

	// The runner records the terminal state itself; the backstop only fires
	// when a timeout or cancellation cut the run short. Uses a background
	// context because jobCtx may already be dead.
	w.ensureTerminal(context.Background(), job.ID, jobCtx)

	w.mu.Lock()
	w.jobsProcessed++
	w.mu.Unlock()

	log.Info("Job processing complete")
	return nil
}

// claimNextJob atomically claims the oldest queued job using
// FOR UPDATE SKIP LOCKED, so concurrent workers never double-claim.
func (w *Worker) claimNextJob(ctx context.Context) (*models.Job, error) {
	tx, err := w.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to start transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var job models.Job
	err = tx.GetContext(ctx, &job, `
		SELECT * FROM jobs
		WHERE status = 'queued'
		ORDER BY created_at ASC
		LIMIT 1
		FOR UPDATE SKIP LOCKED`)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNoJobsAvailable
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query queued job: %w", err)
	}

	// Claim: move out of queued so no other worker picks it up between the
	// commit and the first pipeline status update.
	_, err = tx.ExecContext(ctx, `
		UPDATE jobs
		SET status = 'ingesting', started_at = COALESCE(started_at, now())
		WHERE id = $1`,
		job.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to claim job: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit claim: %w", err)
	}

	job.Status = models.JobStatusIngesting
	return &job, nil
}

// ensureTerminal fails a job the runner left in a processing status, which
// only happens when the job context timed out or was cancelled mid-run.
func (w *Worker) ensureTerminal(ctx context.Context, jobID uuid.UUID, jobCtx context.Context) {
	var status models.JobStatus
	err := w.db.GetContext(ctx, &status, `SELECT status FROM jobs WHERE id = $1`, jobID)
	if err != nil {
		slog.Error("Failed to check terminal job status", "job_id", jobID, "error", err)
		return
	}
	if status.Terminal() {
		return
	}

	message := "Processing failed: pipeline exited without a terminal status"
	switch {
	case errors.Is(jobCtx.Err(), context.DeadlineExceeded):
		message = fmt.Sprintf("Processing failed: job timed out after %v", w.config.JobTimeout)
	case errors.Is(jobCtx.Err(), context.Canceled):
		message = "Processing failed: job was cancelled"
	}

	_, err = w.db.ExecContext(ctx, `
		UPDATE jobs
		SET status = 'failed', error_message = $2, completed_at = now()
		WHERE id = $1 AND status NOT IN ('completed', 'failed')`,
		jobID, message)
	if err != nil {
		slog.Error("Failed to record terminal job status", "job_id", jobID, "error", err)
		return
	}
	slog.Warn("Job failed by terminal-status backstop", "job_id", jobID, "message", message)
}

// pollInterval returns the poll duration with jitter.
func (w *Worker) pollInterval() time.Duration {
	base := w.config.PollInterval
	jitter := w.config.PollIntervalJitter
	if jitter <= 0 {
		return base
	}
	// Range: [base - jitter, base + jitter]
	offset := time.Duration(rand.Int64N(int64(2 * jitter)))
	return base - jitter + offset
}

// setStatus updates the worker's health tracking state.
func (w *Worker) setStatus(status WorkerStatus, jobID string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.status = status
	w.currentJobID = jobID
	w.lastActivity = time.Now()
}
