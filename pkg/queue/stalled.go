package queue

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// stalledState tracks stalled-job detection metrics (thread-safe).
type stalledState struct {
	mu        sync.Mutex
	lastScan  time.Time
	recovered int
}

// runStalledScan periodically fails jobs abandoned mid-pipeline, e.g. after a
// replica crash or restart. All replicas run this independently: the update
// is idempotent, and the threshold exceeds the job timeout so a live run can
// never be mistaken for a stalled one.
func (p *WorkerPool) runStalledScan(ctx context.Context) {
	ticker := time.NewTicker(p.config.StalledScanInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-p.stopCh:
			return
		case <-ticker.C:
			if err := p.recoverStalledJobs(ctx); err != nil {
				slog.Error("Stalled job scan failed", "error", err)
			}
		}
	}
}

// recoverStalledJobs finds jobs stuck in a processing status past the
// threshold and marks them failed.
func (p *WorkerPool) recoverStalledJobs(ctx context.Context) error {
	threshold := time.Now().Add(-p.config.StalledThreshold)

	var recoveredIDs []string
	err := p.db.SelectContext(ctx, &recoveredIDs, `
		UPDATE jobs
		SET status = 'failed',
		    error_message = 'Processing failed: job stalled with no active worker',
		    completed_at = now()
		WHERE `+processingFilter+`
		  AND started_at IS NOT NULL
		  AND started_at < $1
		RETURNING id`,
		threshold)
	if err != nil {
		return fmt.Errorf("failed to recover stalled jobs: %w", err)
	}

	p.stalled.mu.Lock()
	p.stalled.lastScan = time.Now()
	p.stalled.recovered += len(recoveredIDs)
	p.stalled.mu.Unlock()

	if len(recoveredIDs) > 0 {
		slog.Warn("Recovered stalled jobs", "count", len(recoveredIDs), "job_ids", recoveredIDs)
	}
	return nil
}
