package domain

import "time"

// BackoffTable is an ordered list of wait durations indexed by consecutive
// failure count, shortest first.
type BackoffTable []time.Duration

// DefaultBackoffTable returns the table used when none is configured.
func DefaultBackoffTable() BackoffTable {
	return BackoffTable{
		1 * time.Minute,
		5 * time.Minute,
		30 * time.Minute,
		3 * time.Hour,
	}
}

// Delay returns the wait for the given number of prior attempts.
// The last entry is reused once attempts reach the table length.
func (t BackoffTable) Delay(attempts int) time.Duration {
	if len(t) == 0 {
		t = DefaultBackoffTable()
	}
	idx := attempts
	if idx < 0 {
		idx = 0
	}
	if idx > len(t)-1 {
		idx = len(t) - 1
	}
	return t[idx]
}
