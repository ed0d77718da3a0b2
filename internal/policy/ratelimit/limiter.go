// Package ratelimit implements the hour-bucketed quota limiter gating
// external enrichment calls.
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"jobscout/internal/lead"
	"jobscout/internal/settings"
)

// hourKeyLayout addresses buckets by wall-clock hour in UTC.
const hourKeyLayout = "2006-01-02T15"

// Limiter tracks consumption against a rolling hourly quota persisted in
// the bucket store.
//
// Reservation and commit are split: TryReserve only checks headroom, and
// Commit charges the bucket of the hour in which the enrichment finished.
// A reservation taken at HH:59:59 and committed at HH+1:00:01 is therefore
// charged to the new hour. That boundary behavior is accepted and relied
// on by tests; do not "fix" it by carrying the reservation hour across.
type Limiter struct {
	buckets  lead.BucketStore
	settings *settings.Manager
	clock    lead.Clock
	logger   *zap.Logger
}

// New creates a Limiter.
func New(buckets lead.BucketStore, mgr *settings.Manager, clock lead.Clock, logger *zap.Logger) *Limiter {
	return &Limiter{
		buckets:  buckets,
		settings: mgr,
		clock:    clock,
		logger:   logger,
	}
}

// HourKey returns the bucket key for t.
func HourKey(t time.Time) string {
	return t.UTC().Format(hourKeyLayout)
}

// TryReserve reports whether the current hour still has quota headroom. It
// does not increment. If the bucket store is unreachable the limiter fails
// closed and reports no headroom rather than risking runaway external
// calls.
func (l *Limiter) TryReserve(ctx context.Context) bool {
	quota := l.settings.Current().RateLimitPerHour
	if quota <= 0 {
		return false
	}
	key := HourKey(l.clock.Now())
	count, err := l.buckets.Count(ctx, key)
	if err != nil {
		l.logger.Warn("bucket read failed, failing closed",
			zap.String("hour", key),
			zap.Error(err),
		)
		return false
	}
	return count < quota
}

// Commit charges one unit to the current hour's bucket. Called exactly once
// per successfully enriched item, never on failure.
func (l *Limiter) Commit(ctx context.Context) error {
	key := HourKey(l.clock.Now())
	if err := l.buckets.Increment(ctx, key); err != nil {
		return fmt.Errorf("increment bucket %s: %w", key, err)
	}
	return nil
}

// PurgeExpired deletes buckets older than two retention windows.
func (l *Limiter) PurgeExpired(ctx context.Context) error {
	retention := l.settings.Current().BucketRetention
	cutoff := HourKey(l.clock.Now().Add(-2 * retention))
	if err := l.buckets.PurgeBefore(ctx, cutoff); err != nil {
		return fmt.Errorf("purge buckets before %s: %w", cutoff, err)
	}
	return nil
}
