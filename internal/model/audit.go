package model

import "time"

// Audit action types.
const (
	ActionLockAcquire     = "lock_acquire"
	ActionLockRelease     = "lock_release"
	ActionSeatAssign      = "seat_assign"
	ActionSeatUnassign    = "seat_unassign"
	ActionSnapshotCreate  = "snapshot_create"
	ActionSnapshotRestore = "snapshot_restore"
	ActionPlanReplace     = "plan_replace"
	ActionTableResize     = "table_resize"
	ActionEventCreate     = "event_create"
	ActionEventDelete     = "event_delete"
	ActionEventUndelete   = "event_undelete"
)

// AuditEntry is one observational record of an accepted operation.  Writing
// it is best effort and never affects the operation it describes.
type AuditEntry struct {
	EventID    string         // audit_logs.event_id
	UserID     string         // audit_logs.user_id
	ActionType string         // audit_logs.action_type
	Details    map[string]any // audit_logs.details (JSON)
	CreatedAt  time.Time      // audit_logs.created_at
}
