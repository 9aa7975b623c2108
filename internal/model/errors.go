// Package model holds the seating-plan aggregate and the error vocabulary
// shared by every engine component.  Handlers translate these sentinels
// into HTTP responses; anything that does not match one of them is an
// unexpected fault.
package model

import (
	"errors"
	"fmt"
)

// ErrNotFound is the root of every "absent or deleted" condition.  The more
// specific values below wrap it so callers can match either.
var ErrNotFound = errors.New("not found")

var (
	ErrEventNotFound    = fmt.Errorf("event %w", ErrNotFound)
	ErrGuestNotFound    = fmt.Errorf("guest %w", ErrNotFound)
	ErrTableNotFound    = fmt.Errorf("table %w", ErrNotFound)
	ErrSnapshotNotFound = fmt.Errorf("snapshot %w", ErrNotFound)
)

var (
	// ErrForbidden is returned when the caller is neither the owner nor the
	// current lease holder.
	ErrForbidden = errors.New("forbidden")

	// ErrLockHeldByOther is returned to a mutation while another principal
	// holds an unexpired lease.
	ErrLockHeldByOther = errors.New("lock held by another principal")

	// ErrNotLockOwner is returned by Release when the caller does not hold the lease.
	ErrNotLockOwner = errors.New("not lock owner")

	// ErrVersionConflict is carried by *VersionConflictError.
	ErrVersionConflict = errors.New("version conflict")

	ErrTableFull             = errors.New("table full")
	ErrSnapshotEventMismatch = errors.New("snapshot belongs to another event")
	ErrCorruptedSnapshotData = errors.New("corrupted snapshot data")
	ErrInvalidArgument       = errors.New("invalid argument")
)

// VersionConflictError reports a lost compare-and-swap together with the
// version the caller expected and the one actually stored.
type VersionConflictError struct {
	Expected int64
	Actual   int64
}

func (e *VersionConflictError) Error() string {
	return fmt.Sprintf("version conflict: expected %d, actual %d", e.Expected, e.Actual)
}

// Unwrap lets errors.Is(err, ErrVersionConflict) match.
func (e *VersionConflictError) Unwrap() error { return ErrVersionConflict }

// InvalidArgument wraps ErrInvalidArgument with a human readable reason.
func InvalidArgument(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidArgument, fmt.Sprintf(format, args...))
}
