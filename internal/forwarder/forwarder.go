// Package forwarder implements the delayed dispatch loop that sends
// completed jobs to the downstream sink.
package forwarder

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"jobscout/internal/lead"
	"jobscout/internal/metrics"
	"jobscout/internal/settings"
)

// Config holds the forwarder's fixed cadence and batch shape.
type Config struct {
	// Interval is the scan cadence.
	Interval time.Duration
	// CallGap spaces consecutive sink calls within one batch so a large
	// batch does not burst the sink.
	CallGap time.Duration
	// BatchMax bounds how many due jobs one cycle may claim.
	BatchMax int
}

// Forwarder scans for jobs whose dispatch delay has elapsed and forwards
// them. Delivery is at-least-once; a failed dispatch is terminal until
// externally reset to pending.
type Forwarder struct {
	jobs     lead.JobStore
	sink     lead.Sink
	settings *settings.Manager
	clock    lead.Clock
	cfg      Config
	logger   *zap.Logger
	pace     *rate.Limiter
}

// New constructs a Forwarder.
func New(
	jobs lead.JobStore,
	sink lead.Sink,
	mgr *settings.Manager,
	clock lead.Clock,
	cfg Config,
	logger *zap.Logger,
) *Forwarder {
	if cfg.Interval <= 0 {
		cfg.Interval = 5 * time.Minute
	}
	if cfg.CallGap <= 0 {
		cfg.CallGap = 2 * time.Second
	}
	if cfg.BatchMax <= 0 {
		cfg.BatchMax = 10
	}
	return &Forwarder{
		jobs:     jobs,
		sink:     sink,
		settings: mgr,
		clock:    clock,
		cfg:      cfg,
		logger:   logger,
		pace:     rate.NewLimiter(rate.Every(cfg.CallGap), 1),
	}
}

// Run blocks, scanning until the context finishes. The in-flight batch
// runs to completion after cancellation.
func (f *Forwarder) Run(ctx context.Context) {
	timer := time.NewTimer(0)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}
		f.Cycle(context.WithoutCancel(ctx))
		timer.Reset(f.cfg.Interval)
	}
}

// Cycle forwards one bounded batch of due jobs.
func (f *Forwarder) Cycle(ctx context.Context) {
	snap := f.settings.Current()
	if snap.Maintenance || !snap.DispatchEnabled {
		return
	}

	batch, err := f.jobs.DueForDispatch(ctx, f.clock.Now(), f.cfg.BatchMax)
	if err != nil {
		f.logger.Error("due dispatch query failed", zap.Error(err))
		return
	}
	for i, job := range batch {
		if i > 0 {
			if err := f.pace.Wait(ctx); err != nil {
				f.logger.Warn("dispatch pacing interrupted", zap.Error(err))
				return
			}
		}
		f.forward(ctx, job)
	}
}

func (f *Forwarder) forward(ctx context.Context, job lead.Job) {
	err := f.sink.Forward(ctx, job.URL, job.Result, job.Fallback)
	if err != nil {
		if serr := f.jobs.SetDispatchStatus(ctx, job.ID, lead.DispatchFailed, err.Error()); serr != nil {
			f.logger.Error("persist dispatch failure failed", zap.String("job_id", job.ID), zap.Error(serr))
		}
		metrics.ObserveDispatch("failed")
		f.logger.Warn("dispatch failed",
			zap.String("job_id", job.ID),
			zap.String("url", job.URL),
			zap.Error(err),
		)
		return
	}
	if serr := f.jobs.SetDispatchStatus(ctx, job.ID, lead.DispatchSent, ""); serr != nil {
		f.logger.Error("persist dispatch success failed", zap.String("job_id", job.ID), zap.Error(serr))
		return
	}
	metrics.ObserveDispatch("sent")
	f.logger.Info("job dispatched", zap.String("job_id", job.ID), zap.String("url", job.URL))
}
