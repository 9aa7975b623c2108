package model

import "time"

// Event is the versioned seating-plan document.  Exactly one principal owns
// it; the plan, the version counter and the lease live in one row so a
// single compare-and-swap covers the whole aggregate.
//
// Fields:
//
//	ID        – primary key (UUID).
//	OwnerID   – principal allowed to lock and edit the event.
//	Name      – display name.
//	Plan      – tables, guests and settings.
//	Version   – starts at 0, +1 on every accepted plan mutation.
//	Lock      – advisory edit lease.
//	Deleted   – soft-delete flag; a deleted event rejects all calls.
//	CreatedAt – creation timestamp.
//	UpdatedAt – last plan write.
type Event struct {
	ID        string    // events.id
	OwnerID   string    // events.owner_id
	Name      string    // events.name
	Plan      Plan      // events.plan (JSON)
	Version   int64     // events.version
	Lock      Lock      // events.lock_held_by / lock_expires_at / lock_released_at
	Deleted   bool      // events.deleted
	CreatedAt time.Time // events.created_at
	UpdatedAt time.Time // events.updated_at
}

// Clone returns a deep copy of the event.
func (e Event) Clone() Event {
	out := e
	out.Plan = e.Plan.Clone()
	out.Lock = e.Lock.Clone()
	return out
}
