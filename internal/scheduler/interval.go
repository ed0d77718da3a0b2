package scheduler

import (
	"math/rand"
	"sync"
	"time"

	"jobscout/internal/settings"
)

// IntervalPolicy samples the wait between processing cycles.
//
// The base interval is uniform over [MinInterval, MaxInterval]. With
// probability SlowdownProbability the sample is additionally scaled by a
// uniform factor in [SlowdownFactorMin, SlowdownFactorMax], producing an
// occasional longer pause so the external call pattern has no fixed
// cadence. All parameters come from the live settings snapshot.
type IntervalPolicy struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewIntervalPolicy creates a policy seeded from the current time.
func NewIntervalPolicy() *IntervalPolicy {
	return NewIntervalPolicyWithSource(rand.NewSource(time.Now().UnixNano()))
}

// NewIntervalPolicyWithSource creates a policy with a caller-provided seed
// source for deterministic tests.
func NewIntervalPolicyWithSource(src rand.Source) *IntervalPolicy {
	return &IntervalPolicy{rng: rand.New(src)}
}

// Next samples the wait before the next cycle using snap's parameters.
func (p *IntervalPolicy) Next(snap settings.Snapshot) time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()

	min, max := snap.MinInterval, snap.MaxInterval
	if max < min {
		max = min
	}
	base := min + time.Duration(p.rng.Float64()*float64(max-min))

	if p.rng.Float64() < snap.SlowdownProbability {
		span := snap.SlowdownFactorMax - snap.SlowdownFactorMin
		factor := snap.SlowdownFactorMin + p.rng.Float64()*span
		base = time.Duration(float64(base) * factor)
	}
	return base
}
