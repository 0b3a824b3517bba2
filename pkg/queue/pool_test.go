package queue

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPoolRegisterAndCancelJob(t *testing.T) {
	pool := &WorkerPool{
		activeJobs: make(map[uuid.UUID]context.CancelFunc),
	}

	jobID := uuid.New()
	ctx, cancel := context.WithCancel(context.Background())
	pool.RegisterJob(jobID, cancel)

	// Cancel should succeed for a registered job
	assert.True(t, pool.CancelJob(jobID))
	assert.Error(t, ctx.Err()) // Context should be cancelled

	// Cancel should return false for an unknown job
	assert.False(t, pool.CancelJob(uuid.New()))
}

func TestPoolUnregisterJob(t *testing.T) {
	pool := &WorkerPool{
		activeJobs: make(map[uuid.UUID]context.CancelFunc),
	}

	jobID := uuid.New()
	_, cancel := context.WithCancel(context.Background())
	pool.RegisterJob(jobID, cancel)

	// Should find it
	assert.True(t, pool.CancelJob(jobID))

	// Unregister
	pool.UnregisterJob(jobID)

	// Should not find it anymore
	assert.False(t, pool.CancelJob(jobID))
}

func TestPoolActiveJobIDs(t *testing.T) {
	pool := &WorkerPool{
		activeJobs: make(map[uuid.UUID]context.CancelFunc),
	}

	assert.Empty(t, pool.activeJobIDs())

	a, b := uuid.New(), uuid.New()
	_, cancel1 := context.WithCancel(context.Background())
	defer cancel1()
	_, cancel2 := context.WithCancel(context.Background())
	defer cancel2()
	pool.RegisterJob(a, cancel1)
	pool.RegisterJob(b, cancel2)

	ids := pool.activeJobIDs()
	require.Len(t, ids, 2)
	assert.Contains(t, ids, a.String())
	assert.Contains(t, ids, b.String())
}

func TestPoolStopTwiceDoesNotPanic(t *testing.T) {
	pool := &WorkerPool{
		stopCh:     make(chan struct{}),
		activeJobs: make(map[uuid.UUID]context.CancelFunc),
	}

	// First call should close the channel without panic.
	pool.Stop()

	// Second call must not panic (sync.Once guards the close).
	assert.NotPanics(t, func() { pool.Stop() })
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, 4, cfg.WorkerCount)
	assert.Greater(t, cfg.StalledThreshold, cfg.JobTimeout,
		"stalled threshold must exceed the job timeout so live runs are never recovered")
}

func TestLoadConfigFromEnv(t *testing.T) {
	t.Setenv("QUEUE_WORKER_COUNT", "2")
	t.Setenv("QUEUE_MAX_CONCURRENT_JOBS", "6")
	t.Setenv("QUEUE_JOB_TIMEOUT_MINUTES", "10")
	t.Setenv("QUEUE_STALLED_THRESHOLD_MINUTES", "20")

	cfg, err := LoadConfigFromEnv()
	require.NoError(t, err)
	assert.Equal(t, 2, cfg.WorkerCount)
	assert.Equal(t, 6, cfg.MaxConcurrentJobs)
	assert.Equal(t, 10*time.Minute, cfg.JobTimeout)
	assert.Equal(t, 20*time.Minute, cfg.StalledThreshold)
}

func TestLoadConfigFromEnvRejectsInvalidValues(t *testing.T) {
	t.Setenv("QUEUE_WORKER_COUNT", "zero")
	_, err := LoadConfigFromEnv()
	assert.Error(t, err)
}

func TestLoadConfigFromEnvRejectsThresholdBelowTimeout(t *testing.T) {
	t.Setenv("QUEUE_JOB_TIMEOUT_MINUTES", "30")
	t.Setenv("QUEUE_STALLED_THRESHOLD_MINUTES", "10")
	_, err := LoadConfigFromEnv()
	assert.Error(t, err)
}
