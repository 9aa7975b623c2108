package model

import (
	"encoding/json"
	"fmt"
	"time"
)

// Snapshot is an immutable copy of an event's plan.  Snapshots of one event
// form a backward-linked chain through PreviousSnapshotID ordered by
// CreatedAt.  The plan is kept as raw JSON so that damaged rows are detected
// when they are decoded rather than when they are loaded.
//
// Fields:
//
//	ID                 – primary key (UUID).
//	EventID            – owning event.
//	CreatedBy          – principal that triggered the snapshot.
//	IsManual           – true for user requests, false for automatic ones.
//	Label              – free text.
//	Plan               – serialized plan copy.
//	PreviousSnapshotID – predecessor in the chain, empty for the first one.
//	CreatedAt          – creation timestamp.
type Snapshot struct {
	ID                 string          // snapshots.id
	EventID            string          // snapshots.event_id
	CreatedBy          string          // snapshots.created_by
	IsManual           bool            // snapshots.is_manual
	Label              string          // snapshots.label
	Plan               json.RawMessage // snapshots.plan (JSON)
	PreviousSnapshotID string          // snapshots.previous_snapshot_id (nullable)
	CreatedAt          time.Time       // snapshots.created_at
}

// EncodePlan serializes a plan for storage in a snapshot.
func EncodePlan(p Plan) (json.RawMessage, error) {
	b, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("encode plan: %w", err)
	}
	return b, nil
}

// DecodePlan parses and validates the stored plan.  Any failure is reported
// as ErrCorruptedSnapshotData.
func (s Snapshot) DecodePlan() (Plan, error) {
	var p Plan
	if len(s.Plan) == 0 {
		return Plan{}, fmt.Errorf("%w: empty plan", ErrCorruptedSnapshotData)
	}
	if err := json.Unmarshal(s.Plan, &p); err != nil {
		return Plan{}, fmt.Errorf("%w: %v", ErrCorruptedSnapshotData, err)
	}
	if err := p.Validate(); err != nil {
		return Plan{}, fmt.Errorf("%w: %v", ErrCorruptedSnapshotData, err)
	}
	return p, nil
}
