package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"jobscout/internal/lead"
)

func TestJobStoreCreateEnforcesURLUniqueness(t *testing.T) {
	store := NewJobStore()
	ctx := context.Background()
	now := time.Date(2024, 3, 4, 10, 0, 0, 0, time.UTC)

	require.NoError(t, store.Create(ctx, lead.Job{
		ID: "a", URL: "https://example.com/jobs/1",
		Status: lead.JobStatusQueued, CreatedAt: now,
	}))
	err := store.Create(ctx, lead.Job{
		ID: "b", URL: "https://example.com/jobs/1",
		Status: lead.JobStatusQueued, CreatedAt: now,
	})
	require.ErrorIs(t, err, lead.ErrDuplicateURL)
}

func TestJobStoreNextQueuedOrdering(t *testing.T) {
	store := NewJobStore()
	ctx := context.Background()
	base := time.Date(2024, 3, 4, 10, 0, 0, 0, time.UTC)

	require.NoError(t, store.Create(ctx, lead.Job{
		ID: "newer", URL: "https://example.com/jobs/2",
		Status: lead.JobStatusQueued, CreatedAt: base.Add(time.Minute),
	}))
	require.NoError(t, store.Create(ctx, lead.Job{
		ID: "older", URL: "https://example.com/jobs/1",
		Status: lead.JobStatusQueued, CreatedAt: base,
	}))
	// Same timestamp as "older": the lower id breaks the tie.
	require.NoError(t, store.Create(ctx, lead.Job{
		ID: "aaa", URL: "https://example.com/jobs/3",
		Status: lead.JobStatusQueued, CreatedAt: base,
	}))

	next, err := store.NextQueued(ctx)
	require.NoError(t, err)
	require.NotNil(t, next)
	require.Equal(t, "aaa", next.ID)
}

func TestJobStoreNextQueuedEmpty(t *testing.T) {
	store := NewJobStore()
	next, err := store.NextQueued(context.Background())
	require.NoError(t, err)
	require.Nil(t, next)
}

func TestJobStoreMarkProcessingRequiresQueued(t *testing.T) {
	store := NewJobStore()
	ctx := context.Background()

	require.NoError(t, store.Create(ctx, lead.Job{
		ID: "a", URL: "https://example.com/jobs/1",
		Status:    lead.JobStatusQueued,
		CreatedAt: time.Date(2024, 3, 4, 10, 0, 0, 0, time.UTC),
	}))
	require.NoError(t, store.MarkProcessing(ctx, "a"))
	require.Error(t, store.MarkProcessing(ctx, "a"), "processing is not re-claimable")
	require.ErrorIs(t, store.MarkProcessing(ctx, "ghost"), ErrJobNotFound)
}

func TestJobStoreCompleteAndFail(t *testing.T) {
	store := NewJobStore()
	ctx := context.Background()
	now := time.Date(2024, 3, 4, 10, 0, 0, 0, time.UTC)
	due := now.Add(2 * time.Hour)

	require.NoError(t, store.Create(ctx, lead.Job{
		ID: "a", URL: "https://example.com/jobs/1",
		Status: lead.JobStatusQueued, CreatedAt: now,
	}))
	require.NoError(t, store.Create(ctx, lead.Job{
		ID: "b", URL: "https://example.com/jobs/2",
		Status: lead.JobStatusQueued, CreatedAt: now,
	}))

	require.NoError(t, store.Complete(ctx, "a", []byte(`{"ok":true}`), now, due))
	completed, err := store.Get(ctx, "a")
	require.NoError(t, err)
	require.Equal(t, lead.JobStatusCompleted, completed.Status)
	require.Equal(t, lead.DispatchPending, completed.DispatchStatus)
	require.Equal(t, due, *completed.DispatchDue)

	require.NoError(t, store.Fail(ctx, "b", "remote record gone"))
	failed, err := store.Get(ctx, "b")
	require.NoError(t, err)
	require.Equal(t, lead.JobStatusFailed, failed.Status)
	require.Equal(t, "remote record gone", failed.FailureReason)
	require.Equal(t, lead.DispatchNone, failed.DispatchStatus)
}

func TestJobStoreDueForDispatch(t *testing.T) {
	store := NewJobStore()
	ctx := context.Background()
	now := time.Date(2024, 3, 4, 10, 0, 0, 0, time.UTC)

	seed := func(id, url string, due time.Time) {
		require.NoError(t, store.Create(ctx, lead.Job{
			ID: id, URL: url, Status: lead.JobStatusQueued, CreatedAt: now.Add(-3 * time.Hour),
		}))
		require.NoError(t, store.Complete(ctx, id, []byte(`{}`), due.Add(-2*time.Hour), due))
	}
	seed("later", "https://example.com/jobs/1", now.Add(-10*time.Minute))
	seed("earliest", "https://example.com/jobs/2", now.Add(-30*time.Minute))
	seed("future", "https://example.com/jobs/3", now.Add(30*time.Minute))

	due, err := store.DueForDispatch(ctx, now, 10)
	require.NoError(t, err)
	require.Len(t, due, 2)
	require.Equal(t, "earliest", due[0].ID)
	require.Equal(t, "later", due[1].ID)

	capped, err := store.DueForDispatch(ctx, now, 1)
	require.NoError(t, err)
	require.Len(t, capped, 1)
	require.Equal(t, "earliest", capped[0].ID)

	// Once sent, the job drops out of the due set.
	require.NoError(t, store.SetDispatchStatus(ctx, "earliest", lead.DispatchSent, ""))
	remaining, err := store.DueForDispatch(ctx, now, 10)
	require.NoError(t, err)
	require.Len(t, remaining, 1)
	require.Equal(t, "later", remaining[0].ID)
}
