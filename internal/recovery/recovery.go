// Package recovery repairs job state left behind by an unclean shutdown.
package recovery

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"jobscout/internal/lead"
	"jobscout/internal/metrics"
)

// Requeue resets every job stuck in processing back to queued. It runs
// exactly once at startup, before any loop begins. A processing job found
// here means the previous run died mid-enrichment; re-queuing accepts the
// small chance of re-processing an item whose external call actually
// completed (at-least-once, not exactly-once). Running it again is a no-op
// once no processing jobs remain.
func Requeue(ctx context.Context, jobs lead.JobStore, logger *zap.Logger) error {
	n, err := jobs.RequeueProcessing(ctx)
	if err != nil {
		return fmt.Errorf("requeue processing jobs: %w", err)
	}
	metrics.ObserveRecoveredJobs(n)
	if n > 0 {
		logger.Warn("recovered orphaned jobs from previous run", zap.Int("count", n))
	} else {
		logger.Info("no orphaned jobs to recover")
	}
	return nil
}
