// Package settings maintains the in-memory snapshot of operator-tunable
// parameters backed by the durable settings store.
//
// A refresh reads every key, parses it with a default fallback, and swaps
// the whole snapshot atomically; consumers never observe a partially
// applied refresh.
package settings

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"jobscout/internal/lead"
)

// Settings store keys. Values are stored as strings and parsed on refresh;
// an unparsable or missing value falls back to its default.
const (
	KeyMaintenanceMode     = "maintenance_mode"
	KeyProcessingEnabled   = "processing_enabled"
	KeyRateLimitPerHour    = "rate_limit_per_hour"
	KeyMinIntervalSeconds  = "min_interval_seconds"
	KeyMaxIntervalSeconds  = "max_interval_seconds"
	KeySlowdownProbability = "slowdown_probability"
	KeySlowdownFactorMin   = "slowdown_factor_min"
	KeySlowdownFactorMax   = "slowdown_factor_max"
	KeyWorkStartHour       = "work_start_hour"
	KeyWorkEndHour         = "work_end_hour"
	KeyWeekdaysOnly        = "weekdays_only"
	KeyPollEnabled         = "poll_enabled"
	KeyPollIntervalMinutes = "poll_interval_minutes"
	KeyAutoEnqueue         = "auto_enqueue"
	KeyDispatchEnabled     = "dispatch_enabled"
	KeyDispatchDelayMin    = "dispatch_delay_minutes"
	KeyBucketRetentionHrs  = "bucket_retention_hours"
	KeyCredLookaheadMin    = "credential_lookahead_minutes"

	// sourceDisabledPrefix marks per-source kill switches, e.g.
	// "source_disabled_remotive" = "true". Sources are enabled by default.
	sourceDisabledPrefix = "source_disabled_"
)

// Snapshot is one immutable view of all tunable parameters.
type Snapshot struct {
	Maintenance       bool
	ProcessingEnabled bool

	RateLimitPerHour int

	// Randomized working interval for the primary processing loop. With
	// probability SlowdownProbability the sampled interval is additionally
	// scaled by a uniform factor in [SlowdownFactorMin, SlowdownFactorMax].
	MinInterval         time.Duration
	MaxInterval         time.Duration
	SlowdownProbability float64
	SlowdownFactorMin   float64
	SlowdownFactorMax   float64

	// Working hours gate external work: [WorkStartHour, WorkEndHour) in
	// UTC, optionally weekdays only.
	WorkStartHour int
	WorkEndHour   int
	WeekdaysOnly  bool

	PollEnabled  bool
	PollInterval time.Duration
	AutoEnqueue  bool

	DispatchEnabled bool
	DispatchDelay   time.Duration

	BucketRetention     time.Duration
	CredentialLookahead time.Duration

	disabledSources map[string]bool
}

// Defaults returns the snapshot used before the first successful refresh
// and as the fallback for missing or malformed keys.
func Defaults() Snapshot {
	return Snapshot{
		Maintenance:         false,
		ProcessingEnabled:   true,
		RateLimitPerHour:    40,
		MinInterval:         90 * time.Second,
		MaxInterval:         300 * time.Second,
		SlowdownProbability: 0.15,
		SlowdownFactorMin:   2,
		SlowdownFactorMax:   3,
		WorkStartHour:       0,
		WorkEndHour:         24,
		WeekdaysOnly:        false,
		PollEnabled:         true,
		PollInterval:        10 * time.Minute,
		AutoEnqueue:         true,
		DispatchEnabled:     true,
		DispatchDelay:       2 * time.Hour,
		BucketRetention:     24 * time.Hour,
		CredentialLookahead: 30 * time.Minute,
	}
}

// SourceEnabled reports whether a source participates in polling.
func (s Snapshot) SourceEnabled(id string) bool {
	return !s.disabledSources[id]
}

// WithinWorkingHours reports whether t falls inside the configured window.
func (s Snapshot) WithinWorkingHours(t time.Time) bool {
	if s.WeekdaysOnly {
		switch t.Weekday() {
		case time.Saturday, time.Sunday:
			return false
		}
	}
	h := t.Hour()
	if s.WorkStartHour <= s.WorkEndHour {
		return h >= s.WorkStartHour && h < s.WorkEndHour
	}
	// Window crossing midnight, e.g. 22 -> 6.
	return h >= s.WorkStartHour || h < s.WorkEndHour
}

// Manager owns the current snapshot and refreshes it from the store.
type Manager struct {
	store  lead.SettingsStore
	clock  lead.Clock
	logger *zap.Logger

	current     atomic.Pointer[Snapshot]
	lastRefresh atomic.Int64 // unix nanos of the last successful refresh
}

// NewManager creates a Manager seeded with defaults.
func NewManager(store lead.SettingsStore, clock lead.Clock, logger *zap.Logger) *Manager {
	m := &Manager{
		store:  store,
		clock:  clock,
		logger: logger,
	}
	snap := Defaults()
	m.current.Store(&snap)
	return m
}

// Current returns the latest snapshot. Never nil; defaults apply before the
// first refresh.
func (m *Manager) Current() Snapshot {
	return *m.current.Load()
}

// Refresh reads the whole settings table and swaps in a new snapshot. On
// store failure the previous snapshot stays in place.
func (m *Manager) Refresh(ctx context.Context) error {
	values, err := m.store.ReadAll(ctx)
	if err != nil {
		return fmt.Errorf("read settings: %w", err)
	}
	snap := parse(values, m.logger)
	m.current.Store(&snap)
	m.lastRefresh.Store(m.clock.Now().UnixNano())
	return nil
}

// RefreshIfStale refreshes only when the last successful refresh is older
// than maxAge. The cadence is independent of the caller's cycle length.
func (m *Manager) RefreshIfStale(ctx context.Context, maxAge time.Duration) error {
	last := time.Unix(0, m.lastRefresh.Load())
	if m.clock.Now().Sub(last) < maxAge {
		return nil
	}
	return m.Refresh(ctx)
}

func parse(values map[string]string, logger *zap.Logger) Snapshot {
	p := parser{values: values, logger: logger}
	s := Defaults()

	s.Maintenance = p.boolVal(KeyMaintenanceMode, s.Maintenance)
	s.ProcessingEnabled = p.boolVal(KeyProcessingEnabled, s.ProcessingEnabled)
	s.RateLimitPerHour = p.intVal(KeyRateLimitPerHour, s.RateLimitPerHour)
	s.MinInterval = p.durationVal(KeyMinIntervalSeconds, time.Second, s.MinInterval)
	s.MaxInterval = p.durationVal(KeyMaxIntervalSeconds, time.Second, s.MaxInterval)
	s.SlowdownProbability = p.floatVal(KeySlowdownProbability, s.SlowdownProbability)
	s.SlowdownFactorMin = p.floatVal(KeySlowdownFactorMin, s.SlowdownFactorMin)
	s.SlowdownFactorMax = p.floatVal(KeySlowdownFactorMax, s.SlowdownFactorMax)
	s.WorkStartHour = p.intVal(KeyWorkStartHour, s.WorkStartHour)
	s.WorkEndHour = p.intVal(KeyWorkEndHour, s.WorkEndHour)
	s.WeekdaysOnly = p.boolVal(KeyWeekdaysOnly, s.WeekdaysOnly)
	s.PollEnabled = p.boolVal(KeyPollEnabled, s.PollEnabled)
	s.PollInterval = p.durationVal(KeyPollIntervalMinutes, time.Minute, s.PollInterval)
	s.AutoEnqueue = p.boolVal(KeyAutoEnqueue, s.AutoEnqueue)
	s.DispatchEnabled = p.boolVal(KeyDispatchEnabled, s.DispatchEnabled)
	s.DispatchDelay = p.durationVal(KeyDispatchDelayMin, time.Minute, s.DispatchDelay)
	s.BucketRetention = p.durationVal(KeyBucketRetentionHrs, time.Hour, s.BucketRetention)
	s.CredentialLookahead = p.durationVal(KeyCredLookaheadMin, time.Minute, s.CredentialLookahead)

	if s.MaxInterval < s.MinInterval {
		s.MaxInterval = s.MinInterval
	}
	if s.SlowdownFactorMax < s.SlowdownFactorMin {
		s.SlowdownFactorMax = s.SlowdownFactorMin
	}

	for key, raw := range values {
		if !strings.HasPrefix(key, sourceDisabledPrefix) {
			continue
		}
		disabled, err := strconv.ParseBool(raw)
		if err != nil {
			continue
		}
		if disabled {
			if s.disabledSources == nil {
				s.disabledSources = make(map[string]bool)
			}
			s.disabledSources[strings.TrimPrefix(key, sourceDisabledPrefix)] = true
		}
	}

	return s
}

type parser struct {
	values map[string]string
	logger *zap.Logger
}

func (p parser) boolVal(key string, def bool) bool {
	raw, ok := p.values[key]
	if !ok {
		return def
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		p.warn(key, raw)
		return def
	}
	return v
}

func (p parser) intVal(key string, def int) int {
	raw, ok := p.values[key]
	if !ok {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		p.warn(key, raw)
		return def
	}
	return v
}

func (p parser) floatVal(key string, def float64) float64 {
	raw, ok := p.values[key]
	if !ok {
		return def
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		p.warn(key, raw)
		return def
	}
	return v
}

func (p parser) durationVal(key string, unit time.Duration, def time.Duration) time.Duration {
	raw, ok := p.values[key]
	if !ok {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		p.warn(key, raw)
		return def
	}
	return time.Duration(v) * unit
}

func (p parser) warn(key, raw string) {
	if p.logger != nil {
		p.logger.Warn("ignoring malformed setting", zap.String("key", key), zap.String("value", raw))
	}
}
