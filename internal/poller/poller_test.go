package poller

import (
	"context"
	"fmt"
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

type fakeSource struct {
	candidates []lead.Candidate
	err        error
	polls      int
}

func (f *fakeSource) Poll(context.Context) ([]lead.Candidate, error) {
	f.polls++
	if f.err != nil {
		return nil, f.err
	}
	return f.candidates, nil
}

type seqIDs struct {
	n int
}

func (s *seqIDs) NewID() string {
	s.n++
	return fmt.Sprintf("id-%d", s.n)
}

func candidate(url string) lead.Candidate {
	return lead.Candidate{URL: url, Title: "posting", Fallback: []byte(`{"url":"` + url + `"}`)}
}

type pollEnv struct {
	jobs          *memory.JobStore
	settingsStore *memory.SettingsStore
	mgr           *settings.Manager
	clock         *fakeClock
	poller        *Poller
}

func newPollEnv(t *testing.T, seed map[string]string, sources []SourceRef) *pollEnv {
	t.Helper()
	clk := &fakeClock{now: time.Date(2024, 3, 4, 10, 0, 0, 0, time.UTC)}
	jobs := memory.NewJobStore()
	store := memory.NewSettingsStore(seed)
	mgr := settings.NewManager(store, clk, zap.NewNop())
	require.NoError(t, mgr.Refresh(context.Background()))
	p := New(sources, jobs, mgr, &seqIDs{}, clk, Config{CacheTTL: time.Minute}, zap.NewNop())
	return &pollEnv{jobs: jobs, settingsStore: store, mgr: mgr, clock: clk, poller: p}
}

func (e *pollEnv) queuedURLs(t *testing.T) map[string]lead.Job {
	t.Helper()
	byURL := make(map[string]lead.Job)
	for _, id := range []string{"id-1", "id-2", "id-3", "id-4", "id-5"} {
		job, err := e.jobs.Get(context.Background(), id)
		if err != nil {
			continue
		}
		byURL[job.URL] = job
	}
	return byURL
}

func TestPollerMergesSourcesFirstWins(t *testing.T) {
	alpha := &fakeSource{candidates: []lead.Candidate{
		candidate("https://example.com/jobs/1"),
		candidate("https://example.com/jobs/2"),
	}}
	beta := &fakeSource{candidates: []lead.Candidate{
		candidate("https://example.com/jobs/2/"), // same canonical URL as alpha's
		candidate("https://example.com/jobs/3"),
	}}
	env := newPollEnv(t, nil, []SourceRef{
		{ID: "alpha", Source: alpha},
		{ID: "beta", Source: beta},
	})

	env.poller.Cycle(context.Background())

	jobs := env.queuedURLs(t)
	require.Len(t, jobs, 3)
	require.Equal(t, "alpha", jobs["https://example.com/jobs/2"].Source,
		"the first source to report a url owns the job")
	require.Equal(t, "beta", jobs["https://example.com/jobs/3"].Source)
}

func TestPollerSkipsURLsTheStoreAlreadyTracks(t *testing.T) {
	src := &fakeSource{candidates: []lead.Candidate{
		candidate("https://example.com/jobs/1"),
		candidate("https://example.com/jobs/2"),
	}}
	env := newPollEnv(t, nil, []SourceRef{{ID: "alpha", Source: src}})
	require.NoError(t, env.jobs.Create(context.Background(), lead.Job{
		ID:        "existing",
		URL:       "https://example.com/jobs/1",
		Status:    lead.JobStatusCompleted,
		CreatedAt: env.clock.now.Add(-24 * time.Hour),
	}))

	env.poller.Cycle(context.Background())

	jobs := env.queuedURLs(t)
	require.Len(t, jobs, 1)
	require.Contains(t, jobs, "https://example.com/jobs/2")
}

func TestPollerSourceFailureDoesNotAbortCycle(t *testing.T) {
	broken := &fakeSource{err: lead.ErrTransient}
	healthy := &fakeSource{candidates: []lead.Candidate{candidate("https://example.com/jobs/9")}}
	env := newPollEnv(t, nil, []SourceRef{
		{ID: "broken", Source: broken},
		{ID: "healthy", Source: healthy},
	})

	env.poller.Cycle(context.Background())

	jobs := env.queuedURLs(t)
	require.Len(t, jobs, 1)
	require.Equal(t, "healthy", jobs["https://example.com/jobs/9"].Source)
}

func TestPollerSkipsDisabledSource(t *testing.T) {
	disabled := &fakeSource{candidates: []lead.Candidate{candidate("https://example.com/jobs/1")}}
	env := newPollEnv(t, map[string]string{"source_disabled_alpha": "true"},
		[]SourceRef{{ID: "alpha", Source: disabled}})

	env.poller.Cycle(context.Background())

	require.Zero(t, disabled.polls)
	require.Empty(t, env.queuedURLs(t))
}

func TestPollerRespectsAutoEnqueueSwitch(t *testing.T) {
	src := &fakeSource{candidates: []lead.Candidate{candidate("https://example.com/jobs/1")}}
	env := newPollEnv(t, map[string]string{settings.KeyAutoEnqueue: "false"},
		[]SourceRef{{ID: "alpha", Source: src}})

	env.poller.Cycle(context.Background())

	require.Equal(t, 1, src.polls, "sources are still polled when enqueueing is off")
	require.Empty(t, env.queuedURLs(t))
}

func TestPollerSkipsWorkDuringMaintenance(t *testing.T) {
	src := &fakeSource{candidates: []lead.Candidate{candidate("https://example.com/jobs/1")}}
	env := newPollEnv(t, map[string]string{settings.KeyMaintenanceMode: "true"},
		[]SourceRef{{ID: "alpha", Source: src}})

	wait := env.poller.Cycle(context.Background())

	require.Zero(t, src.polls)
	require.Equal(t, env.mgr.Current().PollInterval, wait)
}

func TestPollerReadsIntervalAtEndOfCycle(t *testing.T) {
	env := newPollEnv(t, nil, nil)
	require.NoError(t, env.settingsStore.Write(context.Background(),
		settings.KeyPollIntervalMinutes, "3"))

	wait := env.poller.Cycle(context.Background())

	require.Equal(t, 3*time.Minute, wait)
}

func TestFetchCandidatesServesFromCacheWithinTTL(t *testing.T) {
	src := &fakeSource{candidates: []lead.Candidate{candidate("https://example.com/jobs/1")}}
	env := newPollEnv(t, nil, []SourceRef{{ID: "alpha", Source: src}})
	ctx := context.Background()

	first, err := env.poller.FetchCandidates(ctx, "alpha")
	require.NoError(t, err)
	require.Len(t, first, 1)

	env.clock.now = env.clock.now.Add(30 * time.Second)
	_, err = env.poller.FetchCandidates(ctx, "alpha")
	require.NoError(t, err)
	require.Equal(t, 1, src.polls, "second fetch inside the TTL must hit the cache")

	env.clock.now = env.clock.now.Add(time.Minute)
	_, err = env.poller.FetchCandidates(ctx, "alpha")
	require.NoError(t, err)
	require.Equal(t, 2, src.polls)
}

func TestFetchCandidatesUnknownSource(t *testing.T) {
	env := newPollEnv(t, nil, nil)
	_, err := env.poller.FetchCandidates(context.Background(), "ghost")
	require.ErrorIs(t, err, lead.ErrNotFound)
}
