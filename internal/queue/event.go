// Package queue defines message payloads exchanged over the message broker.
package queue

// AuditQueueName is the durable queue audit events are published to.
const AuditQueueName = "seating.audit"

// AuditEvent is published after an accepted lock, seat, snapshot or plan
// operation.  It carries enough information for downstream consumers to
// log or trigger notifications without querying the primary database.
type AuditEvent struct {
	EventID    string         `json:"event_id"`
	UserID     string         `json:"user_id"`
	ActionType string         `json:"action_type"`
	Details    map[string]any `json:"details,omitempty"`
	OccurredAt string         `json:"occurred_at"`
}
