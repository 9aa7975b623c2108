// Package clock abstracts wall-clock reads so lease expiry and snapshot
// timestamps are deterministic in tests.
package clock

import "time"

// Clock returns the current time.
type Clock interface {
	Now() time.Time
}

// Real reads the system clock in UTC, truncated to the microsecond precision
// that MySQL DATETIME(6) columns keep.
type Real struct{}

func (Real) Now() time.Time { return time.Now().UTC().Truncate(time.Microsecond) }
