package delivery

import "time"

// BackoffStrategy defines the interface for calculating retry delays.
// Implementations should be safe for concurrent use.
type BackoffStrategy interface {
	// NextInterval returns the delay before the given retry.
	// Attempt starts at 1 for the first retry.
	NextInterval(attempt int) time.Duration
}

// FixedBackoff waits the same interval before every retry.
type FixedBackoff struct {
	Interval time.Duration
}

// NextInterval always returns the same interval regardless of attempt number.
func (f FixedBackoff) NextInterval(attempt int) time.Duration {
	if attempt <= 0 {
		return 0
	}
	return f.Interval
}

// DefaultBackoffStrategy returns a constant one second delay
func DefaultBackoffStrategy() BackoffStrategy {
	return FixedBackoff{Interval: time.Second}
}
