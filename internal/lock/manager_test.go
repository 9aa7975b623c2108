package lock

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/seating-planner/internal/audit"
	"github.com/iliyamo/seating-planner/internal/model"
	"github.com/iliyamo/seating-planner/internal/repository"
	"github.com/iliyamo/seating-planner/internal/testutil"
)

type fixture struct {
	store *repository.MemoryStore
	clock *testutil.StubClock
	mgr   *Manager
}

func newFixture(t *testing.T, opts Options) fixture {
	t.Helper()
	store := repository.NewMemoryStore()
	require.NoError(t, store.CreateEvent(context.Background(), model.Event{ID: "e1", OwnerID: "owner"}))
	clk := testutil.FixedClock()
	return fixture{store: store, clock: clk, mgr: NewManager(store, clk, audit.Nop{}, opts)}
}

func (f fixture) event(t *testing.T) model.Event {
	t.Helper()
	e, err := f.store.GetEvent(context.Background(), "e1")
	require.NoError(t, err)
	return e
}

func TestAcquire_OwnerWhenUnlocked(t *testing.T) {
	f := newFixture(t, DefaultOptions())

	res, err := f.mgr.Acquire(context.Background(), "e1", "owner", 15)
	require.NoError(t, err)
	assert.True(t, res.Acquired)
	assert.Equal(t, "owner", res.HeldBy)
	assert.Equal(t, f.clock.Now().Add(15*time.Minute), res.ExpiresAt)

	e := f.event(t)
	assert.Equal(t, "owner", e.Lock.HolderAt(f.clock.Now()))
	assert.Equal(t, int64(0), e.Version)
}

func TestAcquire_SameHolderExtends(t *testing.T) {
	f := newFixture(t, DefaultOptions())
	ctx := context.Background()

	first, err := f.mgr.Acquire(ctx, "e1", "owner", 15)
	require.NoError(t, err)
	second, err := f.mgr.Acquire(ctx, "e1", "owner", 30)
	require.NoError(t, err)

	assert.True(t, second.Acquired)
	assert.True(t, second.ExpiresAt.After(first.ExpiresAt))
}

func TestAcquire_Rejections(t *testing.T) {
	ctx := context.Background()

	t.Run("non-owner", func(t *testing.T) {
		f := newFixture(t, DefaultOptions())
		_, err := f.mgr.Acquire(ctx, "e1", "mallory", 15)
		assert.ErrorIs(t, err, model.ErrForbidden)
	})

	t.Run("deleted", func(t *testing.T) {
		f := newFixture(t, DefaultOptions())
		require.NoError(t, f.store.SetDeleted(ctx, "e1", true, f.clock.Now()))
		_, err := f.mgr.Acquire(ctx, "e1", "owner", 15)
		assert.ErrorIs(t, err, model.ErrNotFound)
	})

	t.Run("unknown event", func(t *testing.T) {
		f := newFixture(t, DefaultOptions())
		_, err := f.mgr.Acquire(ctx, "nope", "owner", 15)
		assert.ErrorIs(t, err, model.ErrEventNotFound)
	})

	for _, ttl := range []int{0, -5, 121} {
		f := newFixture(t, DefaultOptions())
		_, err := f.mgr.Acquire(ctx, "e1", "owner", ttl)
		assert.ErrorIs(t, err, model.ErrInvalidArgument, "ttl %d", ttl)
	}
}

func TestAcquire_SecondPrincipalGetsConflictResult(t *testing.T) {
	ctx := context.Background()
	opts := DefaultOptions()
	opts.OwnerOnly = false
	f := newFixture(t, opts)

	held, err := f.mgr.Acquire(ctx, "e1", "alice", 20)
	require.NoError(t, err)
	before := f.event(t)

	res, err := f.mgr.Acquire(ctx, "e1", "bob", 10)
	require.NoError(t, err)
	assert.False(t, res.Acquired)
	assert.Equal(t, "alice", res.HeldBy)
	assert.Equal(t, held.ExpiresAt, res.ExpiresAt)

	after := f.event(t)
	assert.True(t, before.Lock.Equal(after.Lock))
	assert.Equal(t, before.Version, after.Version)
}

func TestAcquire_OwnerBlockedByForeignLease(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, DefaultOptions())
	exp := f.clock.Now().Add(5 * time.Minute)
	require.NoError(t, f.store.SwapLock(ctx, "e1", model.Lock{}, model.Lock{HeldBy: "planner", ExpiresAt: &exp}))

	res, err := f.mgr.Acquire(ctx, "e1", "owner", 10)
	require.NoError(t, err)
	assert.False(t, res.Acquired)
	assert.Equal(t, "planner", res.HeldBy)

	f.clock.Advance(5 * time.Minute)
	res, err = f.mgr.Acquire(ctx, "e1", "owner", 10)
	require.NoError(t, err)
	assert.True(t, res.Acquired, "expired lease is treated as unlocked")
}

func TestRelease(t *testing.T) {
	ctx := context.Background()

	t.Run("holder releases twice", func(t *testing.T) {
		f := newFixture(t, DefaultOptions())
		_, err := f.mgr.Acquire(ctx, "e1", "owner", 15)
		require.NoError(t, err)

		res, err := f.mgr.Release(ctx, "e1", "owner")
		require.NoError(t, err)
		assert.True(t, res.Released)
		assert.False(t, f.event(t).Lock.ActiveAt(f.clock.Now()))

		_, err = f.mgr.Release(ctx, "e1", "owner")
		assert.NoError(t, err)

		f.clock.Advance(2 * repeatWindow)
		_, err = f.mgr.Release(ctx, "e1", "owner")
		assert.ErrorIs(t, err, model.ErrNotLockOwner)
	})

	t.Run("lease ran out without a release", func(t *testing.T) {
		f := newFixture(t, DefaultOptions())
		_, err := f.mgr.Acquire(ctx, "e1", "owner", 1)
		require.NoError(t, err)
		f.clock.Advance(90 * time.Second)

		_, err = f.mgr.Release(ctx, "e1", "owner")
		assert.ErrorIs(t, err, model.ErrNotLockOwner)
		assert.Nil(t, f.event(t).Lock.ReleasedAt)
	})

	t.Run("never held", func(t *testing.T) {
		f := newFixture(t, DefaultOptions())
		_, err := f.mgr.Release(ctx, "e1", "owner")
		assert.ErrorIs(t, err, model.ErrNotLockOwner)
	})

	t.Run("held by another", func(t *testing.T) {
		opts := DefaultOptions()
		opts.OwnerOnly = false
		f := newFixture(t, opts)
		_, err := f.mgr.Acquire(ctx, "e1", "alice", 15)
		require.NoError(t, err)
		_, err = f.mgr.Release(ctx, "e1", "bob")
		assert.ErrorIs(t, err, model.ErrNotLockOwner)
		assert.Equal(t, "alice", f.event(t).Lock.HolderAt(f.clock.Now()))
	})

	t.Run("long expired lease", func(t *testing.T) {
		f := newFixture(t, DefaultOptions())
		_, err := f.mgr.Acquire(ctx, "e1", "owner", 1)
		require.NoError(t, err)
		f.clock.Advance(time.Hour)
		_, err = f.mgr.Release(ctx, "e1", "owner")
		assert.ErrorIs(t, err, model.ErrNotLockOwner)
	})

	t.Run("deleted", func(t *testing.T) {
		f := newFixture(t, DefaultOptions())
		require.NoError(t, f.store.SetDeleted(ctx, "e1", true, f.clock.Now()))
		_, err := f.mgr.Release(ctx, "e1", "owner")
		assert.ErrorIs(t, err, model.ErrNotFound)
	})
}

func TestAuthorize(t *testing.T) {
	now := time.Date(2026, 6, 20, 18, 0, 0, 0, time.UTC)
	later := now.Add(time.Minute)
	earlier := now.Add(-time.Minute)

	tests := []struct {
		name      string
		lock      model.Lock
		requester string
		want      error
	}{
		{"owner unlocked", model.Lock{}, "owner", nil},
		{"owner holding", model.Lock{HeldBy: "owner", ExpiresAt: &later}, "owner", nil},
		{"owner blocked by other holder", model.Lock{HeldBy: "planner", ExpiresAt: &later}, "owner", model.ErrLockHeldByOther},
		{"owner after foreign lease expired", model.Lock{HeldBy: "planner", ExpiresAt: &earlier}, "owner", nil},
		{"holder who is not owner", model.Lock{HeldBy: "planner", ExpiresAt: &later}, "planner", nil},
		{"stranger", model.Lock{}, "mallory", model.ErrForbidden},
		{"former holder", model.Lock{HeldBy: "planner", ExpiresAt: &earlier}, "planner", model.ErrForbidden},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := Authorize(model.Event{OwnerID: "owner", Lock: tc.lock}, tc.requester, now)
			if tc.want == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tc.want)
		})
	}
}

type racingStore struct {
	*repository.MemoryStore
	losses int
}

func (r *racingStore) SwapLock(ctx context.Context, id string, prev, next model.Lock) error {
	if r.losses > 0 {
		r.losses--
		return repository.ErrConflict
	}
	return r.MemoryStore.SwapLock(ctx, id, prev, next)
}

func TestAcquire_RetriesLostLeaseRace(t *testing.T) {
	ctx := context.Background()
	mem := repository.NewMemoryStore()
	require.NoError(t, mem.CreateEvent(ctx, model.Event{ID: "e1", OwnerID: "owner"}))

	rs := &racingStore{MemoryStore: mem, losses: 2}
	mgr := NewManager(rs, testutil.FixedClock(), audit.Nop{}, DefaultOptions())
	res, err := mgr.Acquire(ctx, "e1", "owner", 5)
	require.NoError(t, err)
	assert.True(t, res.Acquired)

	rs.losses = maxAttempts
	_, err = mgr.Acquire(ctx, "e1", "owner", 5)
	assert.ErrorIs(t, err, ErrContended)
}
