// Package lead defines core types shared across subsystems.
package lead

import (
	"encoding/json"
	"time"
)

// JobStatus represents the lifecycle state of a job lead.
type JobStatus string

// Job status values persisted in the job store. Transitions are monotonic
// (queued -> processing -> completed|failed) except for the startup
// recovery repair, which resets processing back to queued.
const (
	JobStatusQueued     JobStatus = "queued"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
)

// DispatchStatus represents the downstream forwarding state of a job.
type DispatchStatus string

// Dispatch status values persisted in the job store. A failed dispatch is
// terminal until externally reset to pending.
const (
	DispatchNone    DispatchStatus = "none"
	DispatchPending DispatchStatus = "pending"
	DispatchSent    DispatchStatus = "sent"
	DispatchFailed  DispatchStatus = "failed"
)

// Job is the unit of work tracked by the scheduler. The URL is canonical
// and unique: it is the natural deduplication key across all ingestion
// paths.
type Job struct {
	ID            string          `json:"id"`
	URL           string          `json:"url"`
	Source        string          `json:"source,omitempty"`
	Status        JobStatus       `json:"status"`
	Result        json.RawMessage `json:"result,omitempty"`
	Fallback      json.RawMessage `json:"fallback,omitempty"`
	FailureReason string          `json:"failure_reason,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	ProcessedAt   *time.Time      `json:"processed_at,omitempty"`

	DispatchStatus DispatchStatus `json:"dispatch_status"`
	DispatchDue    *time.Time     `json:"dispatch_due,omitempty"`
	DispatchError  string         `json:"dispatch_error,omitempty"`
}

// Candidate is a job lead surfaced by an ingestion source before it is
// enqueued. Fallback carries the source's raw payload so later dispatch can
// fill fields the enrichment never populated (e.g. client country).
type Candidate struct {
	URL      string          `json:"url"`
	Title    string          `json:"title,omitempty"`
	Fallback json.RawMessage `json:"fallback,omitempty"`
}

// EnrichmentResult is the opaque structured payload produced by the
// enrichment lookup for a completed job.
type EnrichmentResult = json.RawMessage

// Credential is a per-principal token pair with an absolute expiry.
type Credential struct {
	Principal    string    `json:"principal"`
	AccessToken  string    `json:"-"`
	RefreshToken string    `json:"-"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// ExpiresWithin reports whether the credential expires before now+buffer.
func (c Credential) ExpiresWithin(now time.Time, buffer time.Duration) bool {
	return !c.ExpiresAt.After(now.Add(buffer))
}

// Clock abstracts wall-clock time for deterministic tests.
type Clock interface {
	Now() time.Time
}
