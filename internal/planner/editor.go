// Package planner covers the event lifecycle and the structural plan edits
// (whole-plan replace, table resize).  Structural edits record the prior
// plan as an automatic snapshot before the compare-and-swap.
package planner

import (
	"context"
	"strings"
	"time"

	"github.com/iliyamo/seating-planner/internal/audit"
	"github.com/iliyamo/seating-planner/internal/clock"
	"github.com/iliyamo/seating-planner/internal/lock"
	"github.com/iliyamo/seating-planner/internal/model"
	"github.com/iliyamo/seating-planner/internal/utils"
	"github.com/iliyamo/seating-planner/internal/version"
)

// Store is the event persistence used outside the compare-and-swap path.
type Store interface {
	GetEvent(ctx context.Context, id string) (model.Event, error)
	CreateEvent(ctx context.Context, e model.Event) error
	SetDeleted(ctx context.Context, id string, deleted bool, at time.Time) error
}

// Snapshotter records the plan of an already authorized event.
type Snapshotter interface {
	Capture(ctx context.Context, e model.Event, requester, label string, manual bool) (model.Snapshot, error)
}

// ResizeResult is returned by ResizeTable.
type ResizeResult struct {
	Version    int64    `json:"version"`
	Displaced  []string `json:"displaced_guests"`
	SnapshotID string   `json:"snapshot_id,omitempty"`
}

// ReplaceResult is returned by ReplacePlan.
type ReplaceResult struct {
	Version    int64  `json:"version"`
	SnapshotID string `json:"snapshot_id"`
}

const (
	maxNameLen  = 200
	maxCapacity = 1000
)

type Editor struct {
	store   Store
	counter *version.Counter
	snaps   Snapshotter
	clock   clock.Clock
	ids     utils.IDGenerator
	audit   audit.Auditor
}

func NewEditor(store Store, counter *version.Counter, snaps Snapshotter, clk clock.Clock, ids utils.IDGenerator, aud audit.Auditor) *Editor {
	return &Editor{store: store, counter: counter, snaps: snaps, clock: clk, ids: ids, audit: aud}
}

// CreateEvent stores a new event owned by owner at version 0, unlocked.
func (ed *Editor) CreateEvent(ctx context.Context, owner, name string, plan model.Plan) (model.Event, error) {
	name = strings.TrimSpace(name)
	if name == "" || len(name) > maxNameLen {
		return model.Event{}, model.InvalidArgument("name must be 1..%d characters", maxNameLen)
	}
	if err := plan.Validate(); err != nil {
		return model.Event{}, err
	}
	now := ed.clock.Now()
	e := model.Event{
		ID:        ed.ids.New(),
		OwnerID:   owner,
		Name:      name,
		Plan:      plan,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := ed.store.CreateEvent(ctx, e); err != nil {
		return model.Event{}, err
	}
	ed.audit.Record(ctx, model.AuditEntry{
		EventID: e.ID, UserID: owner, ActionType: model.ActionEventCreate,
		Details: map[string]any{"name": name, "tables": len(plan.Tables), "guests": len(plan.Guests)},
	})
	return e, nil
}

// GetEvent returns the event to its owner or active lease holder.
func (ed *Editor) GetEvent(ctx context.Context, eventID, requester string) (model.Event, error) {
	e, err := ed.counter.Read(ctx, eventID)
	if err != nil {
		return model.Event{}, err
	}
	if err := lock.CanRead(e, requester, ed.clock.Now()); err != nil {
		return model.Event{}, err
	}
	return e, nil
}

// SetDeleted soft-deletes or restores an event.  Only the owner may do
// this; a deleted event looks absent to everyone else.  Deleting is refused
// while another principal holds an active lease.  Setting the flag to its
// current value is a no-op.
func (ed *Editor) SetDeleted(ctx context.Context, eventID, requester string, deleted bool) error {
	e, err := ed.store.GetEvent(ctx, eventID)
	if err != nil {
		return err
	}
	if requester != e.OwnerID {
		if e.Deleted {
			return model.ErrEventNotFound
		}
		return model.ErrForbidden
	}
	if e.Deleted == deleted {
		return nil
	}
	if deleted {
		if err := lock.Authorize(e, requester, ed.clock.Now()); err != nil {
			return err
		}
	}
	if err := ed.store.SetDeleted(ctx, eventID, deleted, ed.clock.Now()); err != nil {
		return err
	}
	action := model.ActionEventUndelete
	if deleted {
		action = model.ActionEventDelete
	}
	ed.audit.Record(ctx, model.AuditEntry{EventID: eventID, UserID: requester, ActionType: action})
	return nil
}

// ReplacePlan swaps in a whole new plan.  The prior plan is captured first.
func (ed *Editor) ReplacePlan(ctx context.Context, eventID, requester string, plan model.Plan, expected *int64) (ReplaceResult, error) {
	if err := plan.Validate(); err != nil {
		return ReplaceResult{}, err
	}
	var out ReplaceResult
	guard := func(e model.Event) error { return lock.Authorize(e, requester, ed.clock.Now()) }

	res, err := ed.counter.Apply(ctx, eventID, expected, guard, func(e model.Event, p *model.Plan) error {
		s, err := ed.snaps.Capture(ctx, e, requester, "Before plan replace", false)
		if err != nil {
			return err
		}
		out.SnapshotID = s.ID
		*p = plan.Clone()
		return nil
	})
	if err != nil {
		return ReplaceResult{}, err
	}
	out.Version = res.Version

	ed.audit.Record(ctx, model.AuditEntry{
		EventID: eventID, UserID: requester, ActionType: model.ActionPlanReplace,
		Details: map[string]any{"snapshot_id": out.SnapshotID, "version": out.Version},
	})
	return out, nil
}

// ResizeTable changes a table's capacity.  Guests seated beyond the new
// capacity lose their seat and are reported in Displaced.  Resizing to the
// current capacity writes nothing.
func (ed *Editor) ResizeTable(ctx context.Context, eventID, requester, tableID string, capacity int, expected *int64) (ResizeResult, error) {
	if capacity < 1 || capacity > maxCapacity {
		return ResizeResult{}, model.InvalidArgument("capacity must be between 1 and %d", maxCapacity)
	}
	out := ResizeResult{Displaced: []string{}}
	guard := func(e model.Event) error { return lock.Authorize(e, requester, ed.clock.Now()) }

	res, err := ed.counter.Apply(ctx, eventID, expected, guard, func(e model.Event, p *model.Plan) error {
		t, ok := p.Table(tableID)
		if !ok {
			return model.ErrTableNotFound
		}
		if t.Capacity == capacity {
			return version.ErrUnchanged
		}
		s, err := ed.snaps.Capture(ctx, e, requester, "Before resize of table "+tableID, false)
		if err != nil {
			return err
		}
		out.SnapshotID = s.ID
		if d := t.Resize(capacity); d != nil {
			out.Displaced = d
		}
		return nil
	})
	if err != nil {
		return ResizeResult{}, err
	}
	out.Version = res.Version
	if !res.Changed {
		return out, nil
	}

	ed.audit.Record(ctx, model.AuditEntry{
		EventID: eventID, UserID: requester, ActionType: model.ActionTableResize,
		Details: map[string]any{"table_id": tableID, "capacity": capacity, "displaced": out.Displaced, "snapshot_id": out.SnapshotID},
	})
	return out, nil
}
