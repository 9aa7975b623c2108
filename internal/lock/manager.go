// Package lock manages the advisory edit lease embedded in every event.
//
// The lease has two effective states, Unlocked and Locked(holder, expiry).
// Expiry is evaluated lazily against the injected clock whenever a lease is
// read; nothing sweeps stale leases in the background.  Lease writes never
// bump the plan version: they are conditional on the previous lease value
// instead, so two concurrent acquires cannot both win.
package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/iliyamo/seating-planner/internal/audit"
	"github.com/iliyamo/seating-planner/internal/clock"
	"github.com/iliyamo/seating-planner/internal/model"
	"github.com/iliyamo/seating-planner/internal/repository"
)

// Store is the persistence the manager needs.  SwapLock must return
// repository.ErrConflict when the stored lease differs from prev.
type Store interface {
	GetEvent(ctx context.Context, id string) (model.Event, error)
	SwapLock(ctx context.Context, id string, prev, next model.Lock) error
}

// maxAttempts bounds how often a lease write is re-evaluated after losing a
// race with another lease write.
const maxAttempts = 3

// ErrContended is returned when every attempt lost a race.
var ErrContended = errors.New("lock contended")

// Options configures the manager.
type Options struct {
	MinTTL time.Duration // shortest lease accepted by Acquire
	MaxTTL time.Duration // longest lease accepted by Acquire
	// OwnerOnly restricts Acquire to the event owner.  When false any
	// authenticated principal may take a free lease.
	OwnerOnly bool
}

// DefaultOptions allows leases of 1 to 120 minutes, owner only.
func DefaultOptions() Options {
	return Options{MinTTL: time.Minute, MaxTTL: 120 * time.Minute, OwnerOnly: true}
}

// Result is the outcome of Acquire.  A lease held by someone else is a
// result with Acquired=false, not an error.
type Result struct {
	Acquired  bool      `json:"acquired"`
	HeldBy    string    `json:"held_by"`
	ExpiresAt time.Time `json:"expires_at"`
}

// ReleaseResult is the outcome of a successful Release.
type ReleaseResult struct {
	Released bool `json:"released"`
}

type Manager struct {
	store Store
	clock clock.Clock
	audit audit.Auditor
	opts  Options
}

func NewManager(store Store, clk clock.Clock, aud audit.Auditor, opts Options) *Manager {
	return &Manager{store: store, clock: clk, audit: aud, opts: opts}
}

func (m *Manager) load(ctx context.Context, eventID string) (model.Event, error) {
	e, err := m.store.GetEvent(ctx, eventID)
	if err != nil {
		return model.Event{}, err
	}
	if e.Deleted {
		return model.Event{}, model.ErrEventNotFound
	}
	return e, nil
}

// Acquire grants or extends the lease for requester.  An unlocked event,
// an expired lease or a lease already held by requester all move to
// Locked(requester, now+ttl).
func (m *Manager) Acquire(ctx context.Context, eventID, requester string, ttlMinutes int) (Result, error) {
	for attempt := 0; attempt < maxAttempts; attempt++ {
		e, err := m.load(ctx, eventID)
		if err != nil {
			return Result{}, err
		}
		if m.opts.OwnerOnly && e.OwnerID != requester {
			return Result{}, model.ErrForbidden
		}
		ttl := time.Duration(ttlMinutes) * time.Minute
		if ttl < m.opts.MinTTL || ttl > m.opts.MaxTTL {
			return Result{}, model.InvalidArgument("ttl_minutes must be between %d and %d",
				int(m.opts.MinTTL/time.Minute), int(m.opts.MaxTTL/time.Minute))
		}

		now := m.clock.Now()
		if holder := e.Lock.HolderAt(now); holder != "" && holder != requester {
			return Result{Acquired: false, HeldBy: holder, ExpiresAt: *e.Lock.ExpiresAt}, nil
		}

		expires := now.Add(ttl)
		next := model.Lock{HeldBy: requester, ExpiresAt: &expires}
		err = m.store.SwapLock(ctx, eventID, e.Lock, next)
		if errors.Is(err, repository.ErrConflict) {
			continue
		}
		if err != nil {
			return Result{}, err
		}

		m.audit.Record(ctx, model.AuditEntry{
			EventID: eventID, UserID: requester, ActionType: model.ActionLockAcquire,
			Details: map[string]any{"ttl_minutes": ttlMinutes, "expires_at": expires},
		})
		return Result{Acquired: true, HeldBy: requester, ExpiresAt: expires}, nil
	}
	return Result{}, fmt.Errorf("acquire lock on %s: %w", eventID, ErrContended)
}

// Release ends requester's lease by moving its expiry to now and stamping
// the release time.  The holder is kept so that a second release by the same
// principal within repeatWindow also succeeds.  A lease that ran out on its
// own was never released, so releasing it fails with model.ErrNotLockOwner,
// as does releasing a lease never held or held by someone else.
func (m *Manager) Release(ctx context.Context, eventID, requester string) (ReleaseResult, error) {
	for attempt := 0; attempt < maxAttempts; attempt++ {
		e, err := m.load(ctx, eventID)
		if err != nil {
			return ReleaseResult{}, err
		}
		now := m.clock.Now()

		if e.Lock.HeldBy != requester || e.Lock.ExpiresAt == nil {
			return ReleaseResult{}, model.ErrNotLockOwner
		}
		if !e.Lock.ActiveAt(now) {
			if releasedRecently(e.Lock, now) {
				return ReleaseResult{Released: true}, nil
			}
			return ReleaseResult{}, model.ErrNotLockOwner
		}

		next := model.Lock{HeldBy: requester, ExpiresAt: &now, ReleasedAt: &now}
		err = m.store.SwapLock(ctx, eventID, e.Lock, next)
		if errors.Is(err, repository.ErrConflict) {
			continue
		}
		if err != nil {
			return ReleaseResult{}, err
		}

		m.audit.Record(ctx, model.AuditEntry{
			EventID: eventID, UserID: requester, ActionType: model.ActionLockRelease,
		})
		return ReleaseResult{Released: true}, nil
	}
	return ReleaseResult{}, fmt.Errorf("release lock on %s: %w", eventID, ErrContended)
}

// repeatWindow is how long after a release the same principal may release
// again and still get a success.
const repeatWindow = time.Minute

func releasedRecently(l model.Lock, now time.Time) bool {
	return l.ReleasedAt != nil && now.Sub(*l.ReleasedAt) <= repeatWindow
}

// Authorize decides whether requester may mutate e at now.  The owner and
// the active lease holder may; anyone else is model.ErrForbidden.  While a
// different principal holds an active lease the answer is
// model.ErrLockHeldByOther.
func Authorize(e model.Event, requester string, now time.Time) error {
	holder := e.Lock.HolderAt(now)
	if requester == "" || (requester != e.OwnerID && requester != holder) {
		return model.ErrForbidden
	}
	if holder != "" && holder != requester {
		return model.ErrLockHeldByOther
	}
	return nil
}

// CanRead allows the owner and the active lease holder to read an event and
// its snapshots.
func CanRead(e model.Event, requester string, now time.Time) error {
	if requester != "" && (requester == e.OwnerID || requester == e.Lock.HolderAt(now)) {
		return nil
	}
	return model.ErrForbidden
}
