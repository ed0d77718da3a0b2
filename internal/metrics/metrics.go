// Package metrics exposes Prometheus collectors for the scheduler service.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	jobsProcessedTotal      *prometheus.CounterVec
	rateLimitedCyclesTotal  prometheus.Counter
	pollCandidatesTotal     *prometheus.CounterVec
	jobsEnqueuedTotal       *prometheus.CounterVec
	dispatchesTotal         *prometheus.CounterVec
	credentialRefreshTotal  *prometheus.CounterVec
	recoveredJobsTotal      prometheus.Counter
	settingsRefreshFailures prometheus.Counter

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		jobsProcessedTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "jobscout_jobs_processed_total",
				Help: "Total jobs taken through enrichment, labeled by outcome.",
			},
			[]string{"outcome"},
		)

		rateLimitedCyclesTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "jobscout_rate_limited_cycles_total",
				Help: "Processing cycles skipped because the hourly quota was exhausted.",
			},
		)

		pollCandidatesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "jobscout_poll_candidates_total",
				Help: "Candidates returned by ingestion sources, labeled by source.",
			},
			[]string{"source"},
		)

		jobsEnqueuedTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "jobscout_jobs_enqueued_total",
				Help: "New jobs created from ingestion, labeled by source.",
			},
			[]string{"source"},
		)

		dispatchesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "jobscout_dispatches_total",
				Help: "Dispatch attempts to the downstream sink, labeled by outcome.",
			},
			[]string{"outcome"},
		)

		credentialRefreshTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "jobscout_credential_refresh_total",
				Help: "Credential refresh attempts, labeled by outcome.",
			},
			[]string{"outcome"},
		)

		recoveredJobsTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "jobscout_recovered_jobs_total",
				Help: "Jobs reset from processing to queued by startup recovery.",
			},
		)

		settingsRefreshFailures = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "jobscout_settings_refresh_failures_total",
				Help: "Failed attempts to refresh the settings snapshot.",
			},
		)
	})
}

// ObserveJobProcessed records one enrichment outcome ("completed" or "failed").
func ObserveJobProcessed(outcome string) {
	if jobsProcessedTotal != nil {
		jobsProcessedTotal.WithLabelValues(outcome).Inc()
	}
}

// ObserveRateLimitedCycle records a cycle skipped by the quota gate.
func ObserveRateLimitedCycle() {
	if rateLimitedCyclesTotal != nil {
		rateLimitedCyclesTotal.Inc()
	}
}

// ObservePollCandidates records candidates seen from one source.
func ObservePollCandidates(source string, n int) {
	if pollCandidatesTotal != nil && n > 0 {
		pollCandidatesTotal.WithLabelValues(source).Add(float64(n))
	}
}

// ObserveJobEnqueued records a job created from ingestion.
func ObserveJobEnqueued(source string) {
	if jobsEnqueuedTotal != nil {
		jobsEnqueuedTotal.WithLabelValues(source).Inc()
	}
}

// ObserveDispatch records one sink forwarding attempt ("sent" or "failed").
func ObserveDispatch(outcome string) {
	if dispatchesTotal != nil {
		dispatchesTotal.WithLabelValues(outcome).Inc()
	}
}

// ObserveCredentialRefresh records one refresh attempt ("ok" or "failed").
func ObserveCredentialRefresh(outcome string) {
	if credentialRefreshTotal != nil {
		credentialRefreshTotal.WithLabelValues(outcome).Inc()
	}
}

// ObserveRecoveredJobs records jobs repaired at startup.
func ObserveRecoveredJobs(n int) {
	if recoveredJobsTotal != nil && n > 0 {
		recoveredJobsTotal.Add(float64(n))
	}
}

// ObserveSettingsRefreshFailure records a failed snapshot refresh.
func ObserveSettingsRefreshFailure() {
	if settingsRefreshFailures != nil {
		settingsRefreshFailures.Inc()
	}
}
