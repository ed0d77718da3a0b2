// Package poller implements the multi-source ingestion loop that feeds the
// job queue.
package poller

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"jobscout/internal/lead"
	"jobscout/internal/metrics"
	"jobscout/internal/settings"
)

// SourceRef binds a source id to its implementation. Poll order follows
// declaration order; for duplicate URLs the first source wins.
type SourceRef struct {
	ID     string
	Source lead.Source
}

// Config holds the poller's fixed knobs. The poll cadence itself is a
// runtime setting re-read at the end of every cycle.
type Config struct {
	// CacheTTL bounds how long fetched candidates are reused, so the loop
	// and a manual test fetch running close together hit a source once.
	CacheTTL time.Duration
}

// Poller periodically queries all enabled sources, deduplicates candidates
// by canonical URL, and enqueues the ones the store has never seen.
type Poller struct {
	sources  []SourceRef
	jobs     lead.JobStore
	settings *settings.Manager
	ids      lead.IDGenerator
	clock    lead.Clock
	cfg      Config
	logger   *zap.Logger

	mu    sync.Mutex
	cache map[string]cacheEntry
}

type cacheEntry struct {
	candidates []lead.Candidate
	fetchedAt  time.Time
}

// New constructs a Poller.
func New(
	sources []SourceRef,
	jobs lead.JobStore,
	mgr *settings.Manager,
	ids lead.IDGenerator,
	clock lead.Clock,
	cfg Config,
	logger *zap.Logger,
) *Poller {
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = time.Minute
	}
	return &Poller{
		sources:  sources,
		jobs:     jobs,
		settings: mgr,
		ids:      ids,
		clock:    clock,
		cfg:      cfg,
		logger:   logger,
		cache:    make(map[string]cacheEntry),
	}
}

// Run blocks, polling until the context finishes. The in-flight cycle runs
// to completion after cancellation.
func (p *Poller) Run(ctx context.Context) {
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

// Cycle runs one ingestion pass and returns the wait before the next one,
// taken from the settings as they stand at the end of the cycle.
func (p *Poller) Cycle(ctx context.Context) time.Duration {
	snap := p.settings.Current()
	now := p.clock.Now()

	if snap.Maintenance || !snap.PollEnabled || !snap.WithinWorkingHours(now) {
		return p.reschedule(ctx)
	}

	merged := p.collect(ctx, snap)
	if snap.AutoEnqueue {
		p.enqueue(ctx, merged)
	}

	return p.reschedule(ctx)
}

type tagged struct {
	candidate lead.Candidate
	sourceID  string
	url       string
}

// collect fetches every enabled source and merges the results, first
// source wins per canonical URL. A source failure contributes zero
// candidates and never aborts the cycle.
func (p *Poller) collect(ctx context.Context, snap settings.Snapshot) []tagged {
	seen := make(map[string]bool)
	var merged []tagged
	for _, ref := range p.sources {
		if !snap.SourceEnabled(ref.ID) {
			continue
		}
		candidates, err := p.FetchCandidates(ctx, ref.ID)
		if err != nil {
			p.logger.Warn("source poll failed", zap.String("source", ref.ID), zap.Error(err))
			continue
		}
		metrics.ObservePollCandidates(ref.ID, len(candidates))
		for _, c := range candidates {
			url, err := lead.CanonicalURL(c.URL)
			if err != nil {
				p.logger.Warn("skipping candidate with bad url",
					zap.String("source", ref.ID),
					zap.String("url", c.URL),
					zap.Error(err),
				)
				continue
			}
			if seen[url] {
				continue
			}
			seen[url] = true
			merged = append(merged, tagged{candidate: c, sourceID: ref.ID, url: url})
		}
	}
	return merged
}

func (p *Poller) enqueue(ctx context.Context, merged []tagged) {
	for _, t := range merged {
		exists, err := p.jobs.ExistsByURL(ctx, t.url)
		if err != nil {
			p.logger.Error("dedup lookup failed", zap.String("url", t.url), zap.Error(err))
			continue
		}
		if exists {
			continue
		}
		job := lead.Job{
			ID:             p.ids.NewID(),
			URL:            t.url,
			Source:         t.sourceID,
			Status:         lead.JobStatusQueued,
			Fallback:       t.candidate.Fallback,
			CreatedAt:      p.clock.Now(),
			DispatchStatus: lead.DispatchNone,
		}
		if err := p.jobs.Create(ctx, job); err != nil {
			// A unique violation here just means a concurrent submission
			// won the race; the item is already tracked.
			p.logger.Warn("enqueue failed", zap.String("url", t.url), zap.Error(err))
			continue
		}
		metrics.ObserveJobEnqueued(t.sourceID)
		p.logger.Info("job enqueued",
			zap.String("job_id", job.ID),
			zap.String("source", t.sourceID),
			zap.String("url", t.url),
		)
	}
}

// FetchCandidates returns one source's current candidates, serving from the
// short-TTL cache when fresh. Also used by the manual test-fetch endpoint.
func (p *Poller) FetchCandidates(ctx context.Context, sourceID string) ([]lead.Candidate, error) {
	p.mu.Lock()
	entry, ok := p.cache[sourceID]
	p.mu.Unlock()
	now := p.clock.Now()
	if ok && now.Sub(entry.fetchedAt) < p.cfg.CacheTTL {
		return entry.candidates, nil
	}

	ref, found := p.lookup(sourceID)
	if !found {
		return nil, lead.ErrNotFound
	}
	candidates, err := ref.Source.Poll(ctx)
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	p.cache[sourceID] = cacheEntry{candidates: candidates, fetchedAt: now}
	p.mu.Unlock()
	return candidates, nil
}

func (p *Poller) lookup(sourceID string) (SourceRef, bool) {
	for _, ref := range p.sources {
		if ref.ID == sourceID {
			return ref, true
		}
	}
	return SourceRef{}, false
}

// reschedule re-reads settings so a poll interval changed mid-cycle takes
// effect immediately.
func (p *Poller) reschedule(ctx context.Context) time.Duration {
	if err := p.settings.Refresh(ctx); err != nil {
		metrics.ObserveSettingsRefreshFailure()
		p.logger.Warn("settings refresh failed, keeping stale snapshot", zap.Error(err))
	}
	return p.settings.Current().PollInterval
}
