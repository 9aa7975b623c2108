package seating

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/seating-planner/internal/audit"
	"github.com/iliyamo/seating-planner/internal/logging"
	"github.com/iliyamo/seating-planner/internal/model"
	"github.com/iliyamo/seating-planner/internal/repository"
	"github.com/iliyamo/seating-planner/internal/testutil"
	"github.com/iliyamo/seating-planner/internal/version"
)

type fixture struct {
	store  *repository.MemoryStore
	clock  *testutil.StubClock
	engine *Engine
}

func newFixture(t *testing.T, plan model.Plan) fixture {
	t.Helper()
	store := repository.NewMemoryStore()
	require.NoError(t, store.CreateEvent(context.Background(), model.Event{ID: "e1", OwnerID: "owner", Plan: plan}))
	clk := testutil.FixedClock()
	rec := audit.NewRecorder(store, nil, clk, logging.Nop{})
	return fixture{store: store, clock: clk, engine: NewEngine(version.NewCounter(store, clk), clk, rec)}
}

func (f fixture) plan(t *testing.T) model.Plan {
	t.Helper()
	e, err := f.store.GetEvent(context.Background(), "e1")
	require.NoError(t, err)
	return e.Plan
}

func guests(ids ...string) []model.Guest {
	out := make([]model.Guest, len(ids))
	for i, id := range ids {
		out[i] = model.Guest{ID: id, Name: "Guest " + id}
	}
	return out
}

func seatCount(p model.Plan, guestID string) int {
	n := 0
	for _, t := range p.Tables {
		for _, s := range t.Seats {
			if s.GuestID == guestID {
				n++
			}
		}
	}
	return n
}

func TestPickSeat_IsStableAndInRange(t *testing.T) {
	free := []int{2, 5, 7, 9}
	first := PickSeat("e1", "g1", free)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, PickSeat("e1", "g1", free))
	}
	assert.Contains(t, free, first)
	assert.Equal(t, 4, PickSeat("anything", "anyone", []int{4}))
}

func TestAssign_CapacityThreeScenario(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, model.Plan{
		Tables: []model.Table{{ID: "t", Capacity: 3, Seats: []model.Seat{{SeatNo: 1, GuestID: "g1"}, {SeatNo: 2, GuestID: "g2"}}}},
		Guests: guests("g1", "g2", "g3", "g4"),
	})

	res, err := f.engine.Assign(ctx, "e1", "owner", "g3", "t", nil)
	require.NoError(t, err)
	assert.Equal(t, 3, res.SeatNo)
	assert.Nil(t, res.PreviousSeat)
	assert.Equal(t, int64(1), res.Version)

	_, err = f.engine.Assign(ctx, "e1", "owner", "g4", "t", nil)
	assert.ErrorIs(t, err, model.ErrTableFull)
}

func TestAssign_IdempotentUnderRetry(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, model.Plan{
		Tables: []model.Table{{ID: "t", Capacity: 10}},
		Guests: guests("g1"),
	})

	first, err := f.engine.Assign(ctx, "e1", "owner", "g1", "t", nil)
	require.NoError(t, err)
	second, err := f.engine.Assign(ctx, "e1", "owner", "g1", "t", nil)
	require.NoError(t, err)

	assert.Equal(t, first.SeatNo, second.SeatNo)
	assert.Equal(t, first.Version, second.Version, "retry does not write")
	assert.Len(t, f.store.Audits(), 1)
}

func TestAssign_MovesGuestAndVacatesPreviousSeat(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, model.Plan{
		Tables: []model.Table{
			{ID: "a", Capacity: 4, Seats: []model.Seat{{SeatNo: 2, GuestID: "g1"}}},
			{ID: "b", Capacity: 4},
		},
		Guests: guests("g1", "g2"),
	})

	res, err := f.engine.Assign(ctx, "e1", "owner", "g1", "b", nil)
	require.NoError(t, err)
	require.NotNil(t, res.PreviousSeat)
	assert.Equal(t, model.SeatRef{TableID: "a", SeatNo: 2}, *res.PreviousSeat)

	p := f.plan(t)
	assert.Equal(t, 1, seatCount(p, "g1"))
	ref, ok := p.SeatOf("g1")
	require.True(t, ok)
	assert.Equal(t, "b", ref.TableID)

	rows := f.store.Audits()
	require.Len(t, rows, 1)
	assert.Equal(t, "a", rows[0].Details["previous_table_id"])
}

func TestAssign_GuestNeverHoldsTwoSeats(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, model.Plan{
		Tables: []model.Table{{ID: "a", Capacity: 3}, {ID: "b", Capacity: 3}, {ID: "c", Capacity: 2}},
		Guests: guests("g1", "g2", "g3", "g4"),
	})

	moves := [][2]string{{"g1", "a"}, {"g2", "a"}, {"g1", "b"}, {"g3", "c"}, {"g1", "c"}, {"g4", "a"}, {"g2", "b"}, {"g1", "a"}}
	for _, m := range moves {
		_, err := f.engine.Assign(ctx, "e1", "owner", m[0], m[1], nil)
		require.NoError(t, err, "assign %s to %s", m[0], m[1])
		p := f.plan(t)
		for _, g := range []string{"g1", "g2", "g3", "g4"} {
			assert.LessOrEqual(t, seatCount(p, g), 1, g)
		}
		require.NoError(t, p.Validate())
	}
}

func TestAssign_Errors(t *testing.T) {
	ctx := context.Background()
	plan := model.Plan{Tables: []model.Table{{ID: "t", Capacity: 2}}, Guests: guests("g1")}

	tests := []struct {
		name      string
		requester string
		guest     string
		table     string
		expected  *int64
		want      error
	}{
		{"unknown guest", "owner", "ghost", "t", nil, model.ErrGuestNotFound},
		{"unknown table", "owner", "g1", "nope", nil, model.ErrTableNotFound},
		{"stranger", "mallory", "g1", "t", nil, model.ErrForbidden},
		{"stale version", "owner", "g1", "t", ptr(4), model.ErrVersionConflict},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t, plan)
			_, err := f.engine.Assign(ctx, "e1", tc.requester, tc.guest, tc.table, tc.expected)
			assert.ErrorIs(t, err, tc.want)
			assert.Empty(t, f.store.Audits())
		})
	}

	t.Run("guest and table not found are both NotFound", func(t *testing.T) {
		assert.ErrorIs(t, model.ErrGuestNotFound, model.ErrNotFound)
		assert.ErrorIs(t, model.ErrTableNotFound, model.ErrNotFound)
	})
}

func TestAssign_BlockedWhileOtherPrincipalHoldsLease(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, model.Plan{Tables: []model.Table{{ID: "t", Capacity: 2}}, Guests: guests("g1")})
	exp := f.clock.Now().Add(10 * time.Minute)
	require.NoError(t, f.store.SwapLock(ctx, "e1", model.Lock{}, model.Lock{HeldBy: "planner", ExpiresAt: &exp}))

	_, err := f.engine.Assign(ctx, "e1", "owner", "g1", "t", nil)
	assert.ErrorIs(t, err, model.ErrLockHeldByOther)

	res, err := f.engine.Assign(ctx, "e1", "planner", "g1", "t", nil)
	require.NoError(t, err)
	assert.Equal(t, int64(1), res.Version)
}

func TestAssign_ConcurrentFromSameVersion(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, model.Plan{Tables: []model.Table{{ID: "t", Capacity: 10}}, Guests: guests("g1", "g2")})

	var (
		wg   sync.WaitGroup
		errs [2]error
	)
	for i, g := range []string{"g1", "g2"} {
		wg.Add(1)
		go func(i int, g string) {
			defer wg.Done()
			_, errs[i] = f.engine.Assign(ctx, "e1", "owner", g, "t", ptr(0))
		}(i, g)
	}
	wg.Wait()

	conflicts := 0
	for _, err := range errs {
		if err != nil {
			require.ErrorIs(t, err, model.ErrVersionConflict)
			conflicts++
		}
	}
	assert.Equal(t, 1, conflicts)
}

func TestAssign_InterleavedWriteIsDetected(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, model.Plan{Tables: []model.Table{{ID: "t", Capacity: 10}}, Guests: guests("g1", "g2")})

	fired := false
	f.store.BeforeSwap(func(id string) {
		if fired {
			return
		}
		fired = true
		_, err := f.engine.Assign(ctx, id, "owner", "g2", "t", nil)
		require.NoError(t, err)
	})

	_, err := f.engine.Assign(ctx, "e1", "owner", "g1", "t", nil)
	var vc *model.VersionConflictError
	require.ErrorAs(t, err, &vc)
	assert.Equal(t, int64(0), vc.Expected)
	assert.Equal(t, int64(1), vc.Actual)
	assert.Equal(t, 0, seatCount(f.plan(t), "g1"))
}

func TestUnassign(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, model.Plan{
		Tables: []model.Table{{ID: "t", Capacity: 4, Seats: []model.Seat{{SeatNo: 3, GuestID: "g1"}}}},
		Guests: guests("g1"),
	})

	res, err := f.engine.Unassign(ctx, "e1", "owner", "g1", nil)
	require.NoError(t, err)
	require.NotNil(t, res.PreviousSeat)
	assert.Equal(t, 3, res.PreviousSeat.SeatNo)
	assert.Equal(t, int64(1), res.Version)

	res, err = f.engine.Unassign(ctx, "e1", "owner", "g1", nil)
	require.NoError(t, err)
	assert.Nil(t, res.PreviousSeat)
	assert.Equal(t, int64(1), res.Version)

	_, err = f.engine.Unassign(ctx, "e1", "owner", "ghost", nil)
	assert.ErrorIs(t, err, model.ErrGuestNotFound)
}

func ptr(v int64) *int64 { return &v }
