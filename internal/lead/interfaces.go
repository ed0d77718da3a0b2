package lead

import (
	"context"
	"time"
)

// JobStore is the durable store the loops coordinate through. All mutations
// are single-row and idempotent by id; no multi-row transaction spans two
// loops.
type JobStore interface {
	// Create inserts a new queued job. The canonical URL is unique; a
	// second insert for the same URL fails.
	Create(ctx context.Context, job Job) error
	// Get fetches a job by id.
	Get(ctx context.Context, id string) (Job, error)
	// ExistsByURL reports whether a job with the canonical URL exists.
	ExistsByURL(ctx context.Context, url string) (bool, error)
	// NextQueued returns the oldest queued job, or nil when the queue is
	// empty. Oldest-first is a committed ordering decision.
	NextQueued(ctx context.Context) (*Job, error)
	// MarkProcessing transitions a job to processing. This durable write
	// is the crash-recovery boundary.
	MarkProcessing(ctx context.Context, id string) error
	// Complete stores the enrichment result, stamps processed time, and
	// schedules dispatch for dispatchDue.
	Complete(ctx context.Context, id string, result EnrichmentResult, processedAt, dispatchDue time.Time) error
	// Fail transitions a job to failed with a reason kept for inspection.
	Fail(ctx context.Context, id, reason string) error
	// DueForDispatch returns up to limit jobs with dispatch pending and a
	// due time at or before now, oldest due first.
	DueForDispatch(ctx context.Context, now time.Time, limit int) ([]Job, error)
	// SetDispatchStatus records a dispatch outcome for a job.
	SetDispatchStatus(ctx context.Context, id string, status DispatchStatus, reason string) error
	// RequeueProcessing resets every processing job back to queued and
	// returns how many rows were repaired.
	RequeueProcessing(ctx context.Context) (int, error)
}

// BucketStore persists hour-keyed rate-limit counters.
type BucketStore interface {
	// Count returns the consumption recorded for an hour key; zero for a
	// bucket that does not exist yet.
	Count(ctx context.Context, hourKey string) (int, error)
	// Increment upserts the bucket for hourKey and adds one.
	Increment(ctx context.Context, hourKey string) error
	// PurgeBefore deletes buckets whose hour key sorts before cutoffKey.
	PurgeBefore(ctx context.Context, cutoffKey string) error
}

// CredentialStore persists per-principal token pairs.
type CredentialStore interface {
	Get(ctx context.Context, principal string) (Credential, error)
	Save(ctx context.Context, cred Credential) error
	// ExpiringBefore returns credentials whose expiry falls before t.
	ExpiringBefore(ctx context.Context, t time.Time) ([]Credential, error)
}

// SettingsStore persists operator-tunable parameters as key/value pairs.
type SettingsStore interface {
	ReadAll(ctx context.Context) (map[string]string, error)
	Write(ctx context.Context, key, value string) error
}

// Enricher performs the rate-limited external lookup for a job's locator.
type Enricher interface {
	Enrich(ctx context.Context, url string, cred Credential) (EnrichmentResult, error)
}

// Source returns candidate leads from one external listing.
type Source interface {
	Poll(ctx context.Context) ([]Candidate, error)
}

// Sink receives a completed job's result downstream. FallbackData fills
// fields the enrichment never populated.
type Sink interface {
	Forward(ctx context.Context, url string, result EnrichmentResult, fallback []byte) error
}

// CredentialClient exchanges a refresh token for a renewed credential.
type CredentialClient interface {
	Refresh(ctx context.Context, cred Credential) (Credential, error)
}

// IDGenerator issues ids for new jobs.
type IDGenerator interface {
	NewID() string
}
