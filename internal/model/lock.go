package model

import "time"

// Lock is the advisory edit lease embedded in an Event.  A lock with no
// holder, or whose ExpiresAt is not in the future, is equivalent to
// "unlocked".  Expiry is evaluated lazily against the caller's clock; no
// background job clears stale leases.
//
// Fields:
//
//	HeldBy     – principal holding (or last holding) the lease; empty when never held.
//	ExpiresAt  – end of the lease; nil when never held.
//	ReleasedAt – set by an explicit release; nil while held and after a
//	             lease that simply ran out.
type Lock struct {
	HeldBy     string     // events.lock_held_by (nullable)
	ExpiresAt  *time.Time // events.lock_expires_at (nullable)
	ReleasedAt *time.Time // events.lock_released_at (nullable)
}

// ActiveAt reports whether the lease is held at the given instant.
func (l Lock) ActiveAt(now time.Time) bool {
	return l.HeldBy != "" && l.ExpiresAt != nil && l.ExpiresAt.After(now)
}

// HolderAt returns the principal holding the lease at now, or "" when the
// lease is effectively unlocked.
func (l Lock) HolderAt(now time.Time) string {
	if l.ActiveAt(now) {
		return l.HeldBy
	}
	return ""
}

// Equal compares two lock values field by field.
func (l Lock) Equal(o Lock) bool {
	return l.HeldBy == o.HeldBy && sameInstant(l.ExpiresAt, o.ExpiresAt) && sameInstant(l.ReleasedAt, o.ReleasedAt)
}

func sameInstant(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Equal(*b)
}

// Clone returns a copy that shares no time pointers with l.
func (l Lock) Clone() Lock {
	l.ExpiresAt = cloneTime(l.ExpiresAt)
	l.ReleasedAt = cloneTime(l.ReleasedAt)
	return l
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}
