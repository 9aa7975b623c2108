// Package version implements the optimistic compare-and-swap every plan
// mutation goes through.  The store's conditional UPDATE is the only
// serialization point; Counter never retries on its own.
package version

import (
	"context"
	"errors"
	"time"

	"github.com/iliyamo/seating-planner/internal/clock"
	"github.com/iliyamo/seating-planner/internal/model"
	"github.com/iliyamo/seating-planner/internal/repository"
)

// Store is the persistence the counter needs.  SwapPlan must return
// repository.ErrConflict when the stored version differs from expected.
type Store interface {
	GetEvent(ctx context.Context, id string) (model.Event, error)
	SwapPlan(ctx context.Context, id string, expected int64, plan model.Plan, at time.Time) (int64, error)
}

// ErrUnchanged may be returned by a Mutation to report that the plan
// already has the requested shape.  Apply then skips the write.
var ErrUnchanged = errors.New("plan unchanged")

// Guard inspects the freshly read event before anything else happens.
// Authorization checks plug in here.
type Guard func(e model.Event) error

// Mutation edits plan in place.  plan is a deep copy of e.Plan.
type Mutation func(e model.Event, plan *model.Plan) error

// Result describes an applied mutation.
type Result struct {
	Before  model.Event // state the mutation was computed from
	Plan    model.Plan  // plan as written (or as read when unchanged)
	Version int64       // version after the call
	Changed bool        // false when the mutation reported ErrUnchanged
}

type Counter struct {
	store Store
	clock clock.Clock
}

func NewCounter(store Store, clk clock.Clock) *Counter {
	return &Counter{store: store, clock: clk}
}

// Read returns the current event.  Soft-deleted events are reported as
// model.ErrEventNotFound.
func (c *Counter) Read(ctx context.Context, eventID string) (model.Event, error) {
	e, err := c.store.GetEvent(ctx, eventID)
	if err != nil {
		return model.Event{}, err
	}
	if e.Deleted {
		return model.Event{}, model.ErrEventNotFound
	}
	return e, nil
}

// Commit persists plan only if the stored version still equals expected
// and returns the new version.  A lost race yields *model.VersionConflictError
// carrying the version found after re-reading.
func (c *Counter) Commit(ctx context.Context, eventID string, expected int64, plan model.Plan) (int64, error) {
	v, err := c.store.SwapPlan(ctx, eventID, expected, plan, c.clock.Now())
	if err == nil {
		return v, nil
	}
	if !errors.Is(err, repository.ErrConflict) {
		return 0, err
	}
	cur, rerr := c.Read(ctx, eventID)
	if rerr != nil {
		return 0, rerr
	}
	return 0, &model.VersionConflictError{Expected: expected, Actual: cur.Version}
}

// Apply runs read -> guard -> expected check -> mutate -> commit.  When
// expected is nil the version just read is used, which makes the call
// "last write wins" against that read.  The commit always uses the read
// version so an interleaved write is still detected.
func (c *Counter) Apply(ctx context.Context, eventID string, expected *int64, guard Guard, fn Mutation) (Result, error) {
	e, err := c.Read(ctx, eventID)
	if err != nil {
		return Result{}, err
	}
	if guard != nil {
		if err := guard(e); err != nil {
			return Result{}, err
		}
	}
	if expected != nil && *expected != e.Version {
		return Result{}, &model.VersionConflictError{Expected: *expected, Actual: e.Version}
	}

	plan := e.Plan.Clone()
	if err := fn(e, &plan); err != nil {
		if errors.Is(err, ErrUnchanged) {
			return Result{Before: e, Plan: e.Plan, Version: e.Version}, nil
		}
		return Result{}, err
	}
	if err := plan.Validate(); err != nil {
		return Result{}, err
	}

	v, err := c.Commit(ctx, eventID, e.Version, plan)
	if err != nil {
		return Result{}, err
	}
	return Result{Before: e, Plan: plan, Version: v, Changed: true}, nil
}
