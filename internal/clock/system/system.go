// Package system provides the real wall-clock implementation of lead.Clock.
package system

import "time"

// Clock returns the current UTC time. All persisted timestamps and rate
// bucket keys are derived from UTC.
type Clock struct{}

// New creates a new Clock.
func New() *Clock {
	return &Clock{}
}

// Now returns the current time in UTC.
func (Clock) Now() time.Time {
	return time.Now().UTC()
}
