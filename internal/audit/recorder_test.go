package audit

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/seating-planner/internal/logging"
	"github.com/iliyamo/seating-planner/internal/model"
	"github.com/iliyamo/seating-planner/internal/queue"
	"github.com/iliyamo/seating-planner/internal/repository"
	"github.com/iliyamo/seating-planner/internal/testutil"
)

type fakePublisher struct {
	events []queue.AuditEvent
	err    error
}

func (f *fakePublisher) PublishAuditEvent(_ context.Context, ev queue.AuditEvent) error {
	f.events = append(f.events, ev)
	return f.err
}

type failingStore struct{}

func (failingStore) InsertAudit(context.Context, model.AuditEntry) error {
	return errors.New("db down")
}

func TestRecorder_WritesAndPublishes(t *testing.T) {
	store := repository.NewMemoryStore()
	pub := &fakePublisher{}
	clk := testutil.FixedClock()
	r := NewRecorder(store, pub, clk, logging.Nop{})

	r.Record(context.Background(), model.AuditEntry{
		EventID: "e1", UserID: "u1", ActionType: model.ActionSeatAssign,
		Details: map[string]any{"seat_no": 3},
	})

	rows := store.Audits()
	require.Len(t, rows, 1)
	assert.Equal(t, clk.Now(), rows[0].CreatedAt)

	require.Len(t, pub.events, 1)
	assert.Equal(t, "seat_assign", pub.events[0].ActionType)
	assert.Equal(t, "2026-06-20T18:00:00Z", pub.events[0].OccurredAt)
}

func TestRecorder_SwallowsFailures(t *testing.T) {
	pub := &fakePublisher{err: errors.New("broker down")}
	r := NewRecorder(failingStore{}, pub, testutil.FixedClock(), logging.Nop{})

	assert.NotPanics(t, func() {
		r.Record(context.Background(), model.AuditEntry{EventID: "e1", ActionType: model.ActionLockAcquire})
	})
	assert.Len(t, pub.events, 1)
}

func TestRecorder_NilSinks(t *testing.T) {
	r := NewRecorder(nil, nil, testutil.FixedClock(), logging.Nop{})
	r.Record(context.Background(), model.AuditEntry{EventID: "e1"})
}
