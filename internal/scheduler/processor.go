// Package scheduler implements the primary processing loop: the single
// active consumer of the job queue.
package scheduler

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"jobscout/internal/lead"
	"jobscout/internal/metrics"
	"jobscout/internal/policy/ratelimit"
	"jobscout/internal/settings"
)

// CredentialProvider hands the processor a usable credential. Acquire may
// itself trigger a refresh when the stored credential is near expiry;
// ForceRefresh renews unconditionally after the remote side rejected a
// token the provider still considered valid.
type CredentialProvider interface {
	Acquire(ctx context.Context) (lead.Credential, error)
	ForceRefresh(ctx context.Context) (lead.Credential, error)
}

// Config holds the processor's fixed waits. The working interval between
// successful cycles is sampled by IntervalPolicy from live settings.
type Config struct {
	SettingsRefreshEvery time.Duration
	PausedWait           time.Duration
	IdleWait             time.Duration
	RateLimitedWait      time.Duration
	RetryWait            time.Duration
}

// Processor drives one job at a time through enrichment. It is not
// re-entrant: cycles run strictly sequentially in Run's goroutine, so no
// two cycles ever overlap.
type Processor struct {
	jobs      lead.JobStore
	limiter   *ratelimit.Limiter
	settings  *settings.Manager
	creds     CredentialProvider
	enricher  lead.Enricher
	intervals *IntervalPolicy
	clock     lead.Clock
	cfg       Config
	logger    *zap.Logger

	lastPurgeHour string
}

// New constructs a Processor.
func New(
	jobs lead.JobStore,
	limiter *ratelimit.Limiter,
	mgr *settings.Manager,
	creds CredentialProvider,
	enricher lead.Enricher,
	intervals *IntervalPolicy,
	clock lead.Clock,
	cfg Config,
	logger *zap.Logger,
) *Processor {
	if cfg.SettingsRefreshEvery <= 0 {
		cfg.SettingsRefreshEvery = time.Minute
	}
	if cfg.PausedWait <= 0 {
		cfg.PausedWait = time.Minute
	}
	if cfg.IdleWait <= 0 {
		cfg.IdleWait = 30 * time.Second
	}
	if cfg.RateLimitedWait <= 0 {
		cfg.RateLimitedWait = 5 * time.Minute
	}
	if cfg.RetryWait <= 0 {
		cfg.RetryWait = 30 * time.Second
	}
	return &Processor{
		jobs:      jobs,
		limiter:   limiter,
		settings:  mgr,
		creds:     creds,
		enricher:  enricher,
		intervals: intervals,
		clock:     clock,
		cfg:       cfg,
		logger:    logger,
	}
}

// Run blocks, driving cycles until the context finishes. Cancellation
// prevents the next cycle; the in-flight cycle runs to completion so no
// external call is cut off mid-write.
func (p *Processor) Run(ctx context.Context) {
	timer := time.NewTimer(0)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}
		wait := p.Cycle(context.WithoutCancel(ctx))
		timer.Reset(wait)
	}
}

// Cycle runs one pass of the state machine and returns the wait before the
// next one. Loop-level errors degrade to "wait and retry"; they never
// escape.
func (p *Processor) Cycle(ctx context.Context) time.Duration {
	if err := p.settings.RefreshIfStale(ctx, p.cfg.SettingsRefreshEvery); err != nil {
		metrics.ObserveSettingsRefreshFailure()
		p.logger.Warn("settings refresh failed, using stale snapshot", zap.Error(err))
	}
	snap := p.settings.Current()
	p.purgeBuckets(ctx)

	now := p.clock.Now()
	if snap.Maintenance || !snap.ProcessingEnabled || !snap.WithinWorkingHours(now) {
		return p.cfg.PausedWait
	}

	if !p.limiter.TryReserve(ctx) {
		metrics.ObserveRateLimitedCycle()
		p.logger.Debug("hourly quota exhausted, backing off")
		return p.cfg.RateLimitedWait
	}

	job, err := p.jobs.NextQueued(ctx)
	if err != nil {
		p.logger.Error("select next queued job failed", zap.Error(err))
		return p.cfg.RetryWait
	}
	if job == nil {
		return p.cfg.IdleWait
	}

	// The durable processing mark is the crash-recovery boundary: a job
	// found in this state at startup is assumed orphaned and requeued.
	if err := p.jobs.MarkProcessing(ctx, job.ID); err != nil {
		p.logger.Error("mark processing failed", zap.String("job_id", job.ID), zap.Error(err))
		return p.cfg.RetryWait
	}

	p.process(ctx, *job, snap)
	return p.intervals.Next(snap)
}

func (p *Processor) process(ctx context.Context, job lead.Job, snap settings.Snapshot) {
	cred, err := p.creds.Acquire(ctx)
	if err != nil {
		p.fail(ctx, job, "acquire credential: "+err.Error())
		return
	}

	result, err := p.enricher.Enrich(ctx, job.URL, cred)
	if errors.Is(err, lead.ErrAuthExpired) {
		cred, err = p.creds.ForceRefresh(ctx)
		if err != nil {
			p.fail(ctx, job, "credential refresh after auth expiry: "+err.Error())
			return
		}
		result, err = p.enricher.Enrich(ctx, job.URL, cred)
	}
	if err != nil {
		// No successful external call happened, so the limiter is not
		// charged. The job waits for manual or external reprocessing.
		p.fail(ctx, job, err.Error())
		return
	}

	processedAt := p.clock.Now()
	dispatchDue := processedAt.Add(snap.DispatchDelay)
	if err := p.jobs.Complete(ctx, job.ID, result, processedAt, dispatchDue); err != nil {
		p.logger.Error("persist completion failed",
			zap.String("job_id", job.ID),
			zap.Error(err),
		)
	}
	// The enrichment call happened regardless of whether the completion
	// write landed, so the quota is charged either way.
	if err := p.limiter.Commit(ctx); err != nil {
		p.logger.Error("rate limit commit failed", zap.String("job_id", job.ID), zap.Error(err))
	}
	metrics.ObserveJobProcessed("completed")
	p.logger.Info("job enriched",
		zap.String("job_id", job.ID),
		zap.String("url", job.URL),
		zap.Time("dispatch_due", dispatchDue),
	)
}

func (p *Processor) fail(ctx context.Context, job lead.Job, reason string) {
	if err := p.jobs.Fail(ctx, job.ID, reason); err != nil {
		p.logger.Error("persist failure failed", zap.String("job_id", job.ID), zap.Error(err))
		return
	}
	metrics.ObserveJobProcessed("failed")
	p.logger.Warn("job failed",
		zap.String("job_id", job.ID),
		zap.String("url", job.URL),
		zap.String("reason", reason),
	)
}

// purgeBuckets garbage-collects expired rate buckets at most once per hour.
func (p *Processor) purgeBuckets(ctx context.Context) {
	hour := ratelimit.HourKey(p.clock.Now())
	if hour == p.lastPurgeHour {
		return
	}
	if err := p.limiter.PurgeExpired(ctx); err != nil {
		p.logger.Warn("bucket purge failed", zap.Error(err))
		return
	}
	p.lastPurgeHour = hour
}
