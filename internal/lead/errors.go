package lead

import "errors"

// Collaborator error taxonomy. Adapters translate transport-level failures
// into these sentinels; loops branch with errors.Is and never inspect
// transport details themselves.
var (
	// ErrNotFound means the remote side has no record for the locator.
	// Permanent: the owning job is failed and not retried automatically.
	ErrNotFound = errors.New("not found")

	// ErrAuthExpired means the credential used for the call was rejected.
	// The processor attempts one credential refresh before failing the job.
	ErrAuthExpired = errors.New("auth expired")

	// ErrInvalidGrant means a refresh token is no longer usable; the
	// credential cannot be renewed without re-authorization.
	ErrInvalidGrant = errors.New("invalid grant")

	// ErrRejected means the downstream sink refused the payload.
	ErrRejected = errors.New("rejected by sink")

	// ErrTransient covers network errors, timeouts and 5xx responses.
	// Retried only by re-entering the owning loop's cycle.
	ErrTransient = errors.New("transient failure")

	// ErrDuplicateURL signals a second job creation for a canonical URL
	// the store already tracks.
	ErrDuplicateURL = errors.New("job already exists for url")
)
