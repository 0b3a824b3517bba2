package queue

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/doculord/doculord/pkg/models"
	"github.com/doculord/doculord/pkg/pipeline"
	"github.com/doculord/doculord/pkg/services"
	testdb "github.com/doculord/doculord/test/database"
)

// runnerFunc adapts a function to the Runner interface.
type runnerFunc func(ctx context.Context, st *pipeline.State)

func (f runnerFunc) Run(ctx context.Context, st *pipeline.State) { f(ctx, st) }

func fastConfig() Config {
	cfg := DefaultConfig()
	cfg.WorkerCount = 2
	cfg.PollInterval = 50 * time.Millisecond
	cfg.PollIntervalJitter = 10 * time.Millisecond
	cfg.JobTimeout = 5 * time.Second
	return cfg
}

func TestWorkerPoolProcessesQueuedJobs(t *testing.T) {
	client := testdb.NewTestClient(t)
	ctx := context.Background()
	jobService := services.NewJobService(client)

	var processed atomic.Int32
	runner := runnerFunc(func(ctx context.Context, st *pipeline.State) {
		processed.Add(1)
		assert.NoError(t, jobService.Complete(ctx, st.JobID, nil, 1))
	})

	jobA, err := jobService.Create(ctx, "user-1", "https://example.com/a.pdf")
	require.NoError(t, err)
	jobB, err := jobService.Create(ctx, "user-1", "https://example.com/b.pdf")
	require.NoError(t, err)

	pool := NewWorkerPool(client, fastConfig(), runner)
	require.NoError(t, pool.Start(ctx))
	defer pool.Stop()

	assert.Eventually(t, func() bool {
		a, errA := jobService.Get(ctx, jobA.ID)
		b, errB := jobService.Get(ctx, jobB.ID)
		return errA == nil && errB == nil &&
			a.Status == models.JobStatusCompleted && b.Status == models.JobStatusCompleted
	}, 10*time.Second, 50*time.Millisecond, "both queued jobs should complete")

	assert.Equal(t, int32(2), processed.Load())

	a, err := jobService.Get(ctx, jobA.ID)
	require.NoError(t, err)
	assert.NotNil(t, a.StartedAt, "claiming stamps started_at")
	assert.NotNil(t, a.CompletedAt)

	health := pool.Health()
	assert.True(t, health.DBReachable)
	assert.Equal(t, 2, health.TotalWorkers)
	assert.Equal(t, 0, health.QueueDepth)
}

func TestClaimNextJob(t *testing.T) {
	client := testdb.NewTestClient(t)
	ctx := context.Background()
	jobService := services.NewJobService(client)

	created, err := jobService.Create(ctx, "user-1", "https://example.com/doc.pdf")
	require.NoError(t, err)

	pool := NewWorkerPool(client, fastConfig(), nil)
	worker := NewWorker("worker-0", client, fastConfig(), nil, pool)

	claimed, err := worker.claimNextJob(ctx)
	require.NoError(t, err)
	assert.Equal(t, created.ID, claimed.ID)
	assert.Equal(t, models.JobStatusIngesting, claimed.Status)

	stored, err := jobService.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusIngesting, stored.Status)
	assert.NotNil(t, stored.StartedAt)

	// Nothing left to claim.
	_, err = worker.claimNextJob(ctx)
	assert.ErrorIs(t, err, ErrNoJobsAvailable)
}

func TestWorkerBackstopFailsTimedOutJob(t *testing.T) {
	client := testdb.NewTestClient(t)
	ctx := context.Background()
	jobService := services.NewJobService(client)

	// A runner that hangs until the job context dies and never records a
	// terminal status.
	runner := runnerFunc(func(ctx context.Context, st *pipeline.State) {
		<-ctx.Done()
	})

	job, err := jobService.Create(ctx, "user-1", "https://example.com/slow.pdf")
	require.NoError(t, err)

	cfg := fastConfig()
	cfg.WorkerCount = 1
	cfg.JobTimeout = 100 * time.Millisecond

	pool := NewWorkerPool(client, cfg, runner)
	require.NoError(t, pool.Start(ctx))
	defer pool.Stop()

	assert.Eventually(t, func() bool {
		got, err := jobService.Get(ctx, job.ID)
		return err == nil && got.Status == models.JobStatusFailed
	}, 10*time.Second, 50*time.Millisecond)

	failed, err := jobService.Get(ctx, job.ID)
	require.NoError(t, err)
	require.NotNil(t, failed.ErrorMessage)
	assert.Contains(t, *failed.ErrorMessage, "timed out")
}

func TestCancelJobFailsRunningJob(t *testing.T) {
	client := testdb.NewTestClient(t)
	ctx := context.Background()
	jobService := services.NewJobService(client)

	runner := runnerFunc(func(ctx context.Context, st *pipeline.State) {
		<-ctx.Done()
	})

	job, err := jobService.Create(ctx, "user-1", "https://example.com/doc.pdf")
	require.NoError(t, err)

	cfg := fastConfig()
	cfg.WorkerCount = 1

	pool := NewWorkerPool(client, cfg, runner)
	require.NoError(t, pool.Start(ctx))
	defer pool.Stop()

	// The job registers once a worker claims it.
	assert.Eventually(t, func() bool {
		return pool.CancelJob(job.ID)
	}, 10*time.Second, 20*time.Millisecond)

	assert.Eventually(t, func() bool {
		got, err := jobService.Get(ctx, job.ID)
		return err == nil && got.Status == models.JobStatusFailed
	}, 10*time.Second, 50*time.Millisecond)

	failed, err := jobService.Get(ctx, job.ID)
	require.NoError(t, err)
	require.NotNil(t, failed.ErrorMessage)
	assert.Contains(t, *failed.ErrorMessage, "cancelled")
}

func TestRecoverStalledJobs(t *testing.T) {
	client := testdb.NewTestClient(t)
	ctx := context.Background()
	jobService := services.NewJobService(client)

	stalled, err := jobService.Create(ctx, "user-1", "https://example.com/stalled.pdf")
	require.NoError(t, err)
	fresh, err := jobService.Create(ctx, "user-1", "https://example.com/fresh.pdf")
	require.NoError(t, err)

	// A job abandoned mid-pipeline two hours ago, and one started just now.
	_, err = client.ExecContext(ctx,
		`UPDATE jobs SET status = 'parsing', started_at = now() - interval '2 hours' WHERE id = $1`,
		stalled.ID)
	require.NoError(t, err)
	jobService.UpdateStatus(ctx, fresh.ID, models.JobStatusParsing, "")

	pool := NewWorkerPool(client, DefaultConfig(), nil)
	require.NoError(t, pool.recoverStalledJobs(ctx))

	got, err := jobService.Get(ctx, stalled.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusFailed, got.Status)
	require.NotNil(t, got.ErrorMessage)
	assert.Contains(t, *got.ErrorMessage, "stalled")

	untouched, err := jobService.Get(ctx, fresh.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusParsing, untouched.Status)

	health := pool.Health()
	assert.Equal(t, 1, health.JobsRecovered)
	assert.False(t, health.LastStallScan.IsZero())
}
