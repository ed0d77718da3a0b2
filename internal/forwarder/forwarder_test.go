package forwarder

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"jobscout/internal/lead"
	"jobscout/internal/settings"
	"jobscout/internal/storage/memory"
)

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

type fakeSink struct {
	forwarded []string
	err       error
}

func (f *fakeSink) Forward(_ context.Context, url string, _ lead.EnrichmentResult, _ []byte) error {
	f.forwarded = append(f.forwarded, url)
	return f.err
}

type fwdEnv struct {
	jobs      *memory.JobStore
	sink      *fakeSink
	clock     *fakeClock
	forwarder *Forwarder
}

func newFwdEnv(t *testing.T, seed map[string]string, cfg Config) *fwdEnv {
	t.Helper()
	clk := &fakeClock{now: time.Date(2024, 3, 4, 10, 0, 0, 0, time.UTC)}
	jobs := memory.NewJobStore()
	mgr := settings.NewManager(memory.NewSettingsStore(seed), clk, zap.NewNop())
	require.NoError(t, mgr.Refresh(context.Background()))
	sink := &fakeSink{}
	if cfg.CallGap <= 0 {
		cfg.CallGap = time.Millisecond // keep batch pacing out of test runtime
	}
	return &fwdEnv{
		jobs:      jobs,
		sink:      sink,
		clock:     clk,
		forwarder: New(jobs, sink, mgr, clk, cfg, zap.NewNop()),
	}
}

func (e *fwdEnv) seedCompleted(t *testing.T, id, url string, due time.Time) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, e.jobs.Create(ctx, lead.Job{
		ID:        id,
		URL:       url,
		Status:    lead.JobStatusQueued,
		Fallback:  []byte(`{"source":"raw"}`),
		CreatedAt: due.Add(-2 * time.Hour),
	}))
	require.NoError(t, e.jobs.Complete(ctx, id, []byte(`{"ok":true}`), due.Add(-2*time.Hour), due))
}

func TestForwarderHonorsDispatchDelay(t *testing.T) {
	env := newFwdEnv(t, nil, Config{})
	due := env.clock.now.Add(time.Hour)
	env.seedCompleted(t, "a", "https://example.com/jobs/1", due)
	ctx := context.Background()

	env.forwarder.Cycle(ctx)
	require.Empty(t, env.sink.forwarded, "job before its due time must not dispatch")

	env.clock.now = due.Add(time.Second)
	env.forwarder.Cycle(ctx)
	require.Equal(t, []string{"https://example.com/jobs/1"}, env.sink.forwarded)

	job, err := env.jobs.Get(ctx, "a")
	require.NoError(t, err)
	require.Equal(t, lead.DispatchSent, job.DispatchStatus)
	require.Empty(t, job.DispatchError)
}

func TestForwarderDispatchesOldestDueFirstWithinBatchCap(t *testing.T) {
	env := newFwdEnv(t, nil, Config{BatchMax: 2})
	base := env.clock.now
	env.seedCompleted(t, "late", "https://example.com/jobs/3", base.Add(-10*time.Minute))
	env.seedCompleted(t, "early", "https://example.com/jobs/1", base.Add(-30*time.Minute))
	env.seedCompleted(t, "mid", "https://example.com/jobs/2", base.Add(-20*time.Minute))
	ctx := context.Background()

	env.forwarder.Cycle(ctx)

	require.Equal(t, []string{
		"https://example.com/jobs/1",
		"https://example.com/jobs/2",
	}, env.sink.forwarded)

	// The overflow job waits for the next cycle.
	env.forwarder.Cycle(ctx)
	require.Len(t, env.sink.forwarded, 3)
	require.Equal(t, "https://example.com/jobs/3", env.sink.forwarded[2])
}

func TestForwarderFailureIsTerminalUntilReset(t *testing.T) {
	env := newFwdEnv(t, nil, Config{})
	env.seedCompleted(t, "a", "https://example.com/jobs/1", env.clock.now.Add(-time.Minute))
	env.sink.err = lead.ErrRejected
	ctx := context.Background()

	env.forwarder.Cycle(ctx)

	job, err := env.jobs.Get(ctx, "a")
	require.NoError(t, err)
	require.Equal(t, lead.DispatchFailed, job.DispatchStatus)
	require.Contains(t, job.DispatchError, "rejected")

	// Failed dispatches are not retried by the loop.
	env.forwarder.Cycle(ctx)
	require.Len(t, env.sink.forwarded, 1)

	// An external reset back to pending makes it eligible again.
	require.NoError(t, env.jobs.SetDispatchStatus(ctx, "a", lead.DispatchPending, ""))
	env.sink.err = nil
	env.forwarder.Cycle(ctx)
	require.Len(t, env.sink.forwarded, 2)
}

func TestForwarderIdlesWhenDispatchDisabled(t *testing.T) {
	env := newFwdEnv(t, map[string]string{settings.KeyDispatchEnabled: "false"}, Config{})
	env.seedCompleted(t, "a", "https://example.com/jobs/1", env.clock.now.Add(-time.Minute))

	env.forwarder.Cycle(context.Background())

	require.Empty(t, env.sink.forwarded)
}

func TestForwarderIdlesDuringMaintenance(t *testing.T) {
	env := newFwdEnv(t, map[string]string{settings.KeyMaintenanceMode: "true"}, Config{})
	env.seedCompleted(t, "a", "https://example.com/jobs/1", env.clock.now.Add(-time.Minute))

	env.forwarder.Cycle(context.Background())

	require.Empty(t, env.sink.forwarded)
}
