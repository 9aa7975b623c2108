// Package snapshot keeps the immutable history of an event's plan.
//
// Every snapshot links to the newest snapshot of the same event that
// existed when it was taken, forming a backward chain ordered by creation
// time.  Two snapshots taken concurrently may share a predecessor; the
// chain is a history aid and nothing depends on it being strictly linear.
package snapshot

import (
	"context"
	"errors"
	"fmt"

	"github.com/iliyamo/seating-planner/internal/audit"
	"github.com/iliyamo/seating-planner/internal/clock"
	"github.com/iliyamo/seating-planner/internal/lock"
	"github.com/iliyamo/seating-planner/internal/model"
	"github.com/iliyamo/seating-planner/internal/utils"
	"github.com/iliyamo/seating-planner/internal/version"
)

// Store is the snapshot persistence.  Rows are append-only.
type Store interface {
	CreateSnapshot(ctx context.Context, s model.Snapshot) error
	GetSnapshot(ctx context.Context, id string) (model.Snapshot, error)
	LatestSnapshot(ctx context.Context, eventID string) (model.Snapshot, error)
	ListSnapshots(ctx context.Context, eventID string, limit int) ([]model.Snapshot, error)
}

// RestoreResult is returned by Restore.
type RestoreResult struct {
	Version          int64  `json:"version"`
	SafetySnapshotID string `json:"safety_snapshot_id"`
}

const DefaultListLimit = 50

type Manager struct {
	counter   *version.Counter
	store     Store
	clock     clock.Clock
	ids       utils.IDGenerator
	audit     audit.Auditor
	listLimit int
}

// NewManager builds a Manager.  listLimit caps List; values < 1 fall back
// to DefaultListLimit.
func NewManager(counter *version.Counter, store Store, clk clock.Clock, ids utils.IDGenerator, aud audit.Auditor, listLimit int) *Manager {
	if listLimit < 1 {
		listLimit = DefaultListLimit
	}
	return &Manager{counter: counter, store: store, clock: clk, ids: ids, audit: aud, listLimit: listLimit}
}

// RestoreLabel is the label of the automatic snapshot taken before a restore.
func RestoreLabel(snapshotID string) string {
	return "Before restore of " + snapshotID
}

// Create copies the current plan of eventID into a new snapshot.  The
// version counter is not touched.
func (m *Manager) Create(ctx context.Context, eventID, requester, label string, manual bool) (model.Snapshot, error) {
	e, err := m.counter.Read(ctx, eventID)
	if err != nil {
		return model.Snapshot{}, err
	}
	if err := lock.CanRead(e, requester, m.clock.Now()); err != nil {
		return model.Snapshot{}, err
	}
	return m.Capture(ctx, e, requester, label, manual)
}

// Capture stores a snapshot of an event the caller has already read and
// authorized.  Structural edits use it to record the prior plan.
func (m *Manager) Capture(ctx context.Context, e model.Event, requester, label string, manual bool) (model.Snapshot, error) {
	prevID := ""
	prev, err := m.store.LatestSnapshot(ctx, e.ID)
	switch {
	case err == nil:
		prevID = prev.ID
	case errors.Is(err, model.ErrSnapshotNotFound):
	default:
		return model.Snapshot{}, fmt.Errorf("latest snapshot of %s: %w", e.ID, err)
	}

	plan, err := model.EncodePlan(e.Plan)
	if err != nil {
		return model.Snapshot{}, err
	}
	s := model.Snapshot{
		ID:                 m.ids.New(),
		EventID:            e.ID,
		CreatedBy:          requester,
		IsManual:           manual,
		Label:              label,
		Plan:               plan,
		PreviousSnapshotID: prevID,
		CreatedAt:          m.clock.Now(),
	}
	if err := m.store.CreateSnapshot(ctx, s); err != nil {
		return model.Snapshot{}, fmt.Errorf("create snapshot of %s: %w", e.ID, err)
	}

	m.audit.Record(ctx, model.AuditEntry{
		EventID: e.ID, UserID: requester, ActionType: model.ActionSnapshotCreate,
		Details: map[string]any{"snapshot_id": s.ID, "is_manual": manual, "label": label, "version": e.Version},
	})
	return s, nil
}

// Restore overwrites the plan of eventID with the plan stored in
// snapshotID.  The current plan is captured first; the write is a
// compare-and-swap against the version read here, so a mutation that lands
// in between turns the restore into a *model.VersionConflictError and
// leaves the plan untouched.  The safety snapshot is kept either way.
func (m *Manager) Restore(ctx context.Context, eventID, requester, snapshotID string) (RestoreResult, error) {
	s, err := m.store.GetSnapshot(ctx, snapshotID)
	if err != nil {
		return RestoreResult{}, err
	}
	if s.EventID != eventID {
		return RestoreResult{}, model.ErrSnapshotEventMismatch
	}
	plan, err := s.DecodePlan()
	if err != nil {
		return RestoreResult{}, err
	}

	e, err := m.counter.Read(ctx, eventID)
	if err != nil {
		return RestoreResult{}, err
	}
	if err := lock.Authorize(e, requester, m.clock.Now()); err != nil {
		return RestoreResult{}, err
	}

	safety, err := m.Capture(ctx, e, requester, RestoreLabel(snapshotID), false)
	if err != nil {
		return RestoreResult{}, err
	}

	v, err := m.counter.Commit(ctx, eventID, e.Version, plan)
	if err != nil {
		return RestoreResult{}, err
	}

	m.audit.Record(ctx, model.AuditEntry{
		EventID: eventID, UserID: requester, ActionType: model.ActionSnapshotRestore,
		Details: map[string]any{"snapshot_id": snapshotID, "safety_snapshot_id": safety.ID, "version": v},
	})
	return RestoreResult{Version: v, SafetySnapshotID: safety.ID}, nil
}

// List returns up to limit snapshots of eventID, newest first.  A limit
// outside 1..listLimit is clamped.
func (m *Manager) List(ctx context.Context, eventID, requester string, limit int) ([]model.Snapshot, error) {
	e, err := m.counter.Read(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if err := lock.CanRead(e, requester, m.clock.Now()); err != nil {
		return nil, err
	}
	if limit < 1 || limit > m.listLimit {
		limit = m.listLimit
	}
	return m.store.ListSnapshots(ctx, eventID, limit)
}

// Get returns one snapshot of eventID.
func (m *Manager) Get(ctx context.Context, eventID, requester, snapshotID string) (model.Snapshot, error) {
	e, err := m.counter.Read(ctx, eventID)
	if err != nil {
		return model.Snapshot{}, err
	}
	if err := lock.CanRead(e, requester, m.clock.Now()); err != nil {
		return model.Snapshot{}, err
	}
	s, err := m.store.GetSnapshot(ctx, snapshotID)
	if err != nil {
		return model.Snapshot{}, err
	}
	if s.EventID != eventID {
		return model.Snapshot{}, model.ErrSnapshotEventMismatch
	}
	return s, nil
}
