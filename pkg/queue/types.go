// Package queue provides the background worker pool that claims queued jobs
// from the database and drives them through the processing pipeline.
package queue

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/doculord/doculord/pkg/pipeline"
)

// Sentinel errors for queue operations.
var (
	// ErrNoJobsAvailable indicates no queued jobs are waiting.
	ErrNoJobsAvailable = errors.New("no jobs available")

	// ErrAtCapacity indicates the global concurrent job limit has been reached.
	ErrAtCapacity = errors.New("at capacity")
)

// Runner executes the whole pipeline for one claimed job. The runner owns the
// terminal job state: it records completion or failure itself. The worker only
// handles claiming, timeout enforcement, and the terminal-status backstop.
type Runner interface {
	Run(ctx context.Context, st *pipeline.State)
}

// Config contains worker pool configuration.
type Config struct {
	// WorkerCount is the number of worker goroutines per replica.
	// Each worker independently polls and processes jobs.
	WorkerCount int

	// MaxConcurrentJobs is the global limit of jobs being processed across
	// ALL replicas. Enforced by a database COUNT(*) check.
	MaxConcurrentJobs int

	// PollInterval is the base interval for checking queued jobs.
	PollInterval time.Duration

	// PollIntervalJitter is the random jitter added to PollInterval.
	// Actual interval: PollInterval ± PollIntervalJitter.
	PollIntervalJitter time.Duration

	// JobTimeout is the maximum time one job may spend in the pipeline.
	JobTimeout time.Duration

	// StalledScanInterval is how often to scan for stalled jobs.
	StalledScanInterval time.Duration

	// StalledThreshold is how long a job may sit in a processing status
	// before the scan considers it abandoned. Must exceed JobTimeout so the
	// scan never races a live run.
	StalledThreshold time.Duration
}

// DefaultConfig returns the built-in worker pool defaults.
func DefaultConfig() Config {
	return Config{
		WorkerCount:         4,
		MaxConcurrentJobs:   4,
		PollInterval:        1 * time.Second,
		PollIntervalJitter:  500 * time.Millisecond,
		JobTimeout:          30 * time.Minute,
		StalledScanInterval: 5 * time.Minute,
		StalledThreshold:    45 * time.Minute,
	}
}

// LoadConfigFromEnv reads the QUEUE_* environment variables on top of the
// defaults.
func LoadConfigFromEnv() (Config, error) {
	cfg := DefaultConfig()
	if err := intFromEnv("QUEUE_WORKER_COUNT", &cfg.WorkerCount); err != nil {
		return Config{}, err
	}
	if err := intFromEnv("QUEUE_MAX_CONCURRENT_JOBS", &cfg.MaxConcurrentJobs); err != nil {
		return Config{}, err
	}
	if err := durationFromEnv("QUEUE_JOB_TIMEOUT_MINUTES", time.Minute, &cfg.JobTimeout); err != nil {
		return Config{}, err
	}
	if err := durationFromEnv("QUEUE_STALLED_THRESHOLD_MINUTES", time.Minute, &cfg.StalledThreshold); err != nil {
		return Config{}, err
	}
	if cfg.StalledThreshold <= cfg.JobTimeout {
		return Config{}, fmt.Errorf("stalled threshold %v must exceed job timeout %v", cfg.StalledThreshold, cfg.JobTimeout)
	}
	return cfg, nil
}

func intFromEnv(key string, dst *int) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return fmt.Errorf("invalid %s %q", key, v)
	}
	*dst = n
	return nil
}

func durationFromEnv(key string, unit time.Duration, dst *time.Duration) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return fmt.Errorf("invalid %s %q", key, v)
	}
	*dst = time.Duration(n) * unit
	return nil
}

// PoolHealth contains health information for the entire worker pool.
type PoolHealth struct {
	IsHealthy     bool           `json:"is_healthy"`
	DBReachable   bool           `json:"db_reachable"`
	DBError       string         `json:"db_error,omitempty"`
	ActiveWorkers int            `json:"active_workers"`
	TotalWorkers  int            `json:"total_workers"`
	ActiveJobs    int            `json:"active_jobs"`
	MaxConcurrent int            `json:"max_concurrent"`
	QueueDepth    int            `json:"queue_depth"`
	WorkerStats   []WorkerHealth `json:"worker_stats"`
	LastStallScan time.Time      `json:"last_stall_scan"`
	JobsRecovered int            `json:"jobs_recovered"`
}

// WorkerHealth contains health information for a single worker.
type WorkerHealth struct {
	ID            string    `json:"id"`
	Status        string    `json:"status"` // "idle" or "working"
	CurrentJobID  string    `json:"current_job_id,omitempty"`
	JobsProcessed int       `json:"jobs_processed"`
	LastActivity  time.Time `json:"last_activity"`
}
