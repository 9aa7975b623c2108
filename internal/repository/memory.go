package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/iliyamo/seating-planner/internal/model"
)

// MemoryStore keeps events, snapshots and audit rows in process memory.  It
// honours the same conditional-update contract as the MySQL repositories and
// backs the service when STORAGE=memory as well as the engine tests.
type MemoryStore struct {
	mu        sync.Mutex
	events    map[string]model.Event
	snapshots []model.Snapshot
	audits    []model.AuditEntry

	beforeSwap func(eventID string)
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{events: make(map[string]model.Event)}
}

// BeforeSwap installs a hook that runs at the start of every SwapPlan,
// outside the store mutex.  Tests use it to interleave a competing write
// between a read and its compare-and-swap.
func (m *MemoryStore) BeforeSwap(fn func(eventID string)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.beforeSwap = fn
}

func (m *MemoryStore) GetEvent(_ context.Context, id string) (model.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.events[id]
	if !ok {
		return model.Event{}, model.ErrEventNotFound
	}
	return e.Clone(), nil
}

func (m *MemoryStore) CreateEvent(_ context.Context, e model.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e = e.Clone()
	e.Version = 0
	e.Lock = model.Lock{}
	e.Deleted = false
	m.events[e.ID] = e
	return nil
}

func (m *MemoryStore) SwapPlan(_ context.Context, id string, expected int64, plan model.Plan, at time.Time) (int64, error) {
	m.mu.Lock()
	hook := m.beforeSwap
	m.mu.Unlock()
	if hook != nil {
		hook(id)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.events[id]
	if !ok || e.Deleted || e.Version != expected {
		return 0, ErrConflict
	}
	e.Plan = plan.Clone()
	e.Version++
	e.UpdatedAt = at
	m.events[id] = e
	return e.Version, nil
}

func (m *MemoryStore) SwapLock(_ context.Context, id string, prev, next model.Lock) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.events[id]
	if !ok || e.Deleted || !e.Lock.Equal(prev) {
		return ErrConflict
	}
	e.Lock = next.Clone()
	m.events[id] = e
	return nil
}

func (m *MemoryStore) SetDeleted(_ context.Context, id string, deleted bool, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.events[id]
	if !ok {
		return model.ErrEventNotFound
	}
	e.Deleted = deleted
	e.UpdatedAt = at
	m.events[id] = e
	return nil
}

func (m *MemoryStore) CreateSnapshot(_ context.Context, s model.Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s.Plan = append([]byte(nil), s.Plan...)
	m.snapshots = append(m.snapshots, s)
	return nil
}

func (m *MemoryStore) GetSnapshot(_ context.Context, id string) (model.Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.snapshots {
		if s.ID == id {
			s.Plan = append([]byte(nil), s.Plan...)
			return s, nil
		}
	}
	return model.Snapshot{}, model.ErrSnapshotNotFound
}

func (m *MemoryStore) LatestSnapshot(ctx context.Context, eventID string) (model.Snapshot, error) {
	list, _ := m.ListSnapshots(ctx, eventID, 1)
	if len(list) == 0 {
		return model.Snapshot{}, model.ErrSnapshotNotFound
	}
	return list[0], nil
}

// ListSnapshots orders by CreatedAt descending; equal timestamps keep
// reverse insertion order.
func (m *MemoryStore) ListSnapshots(_ context.Context, eventID string, limit int) ([]model.Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []model.Snapshot{}
	for i := len(m.snapshots) - 1; i >= 0; i-- {
		if s := m.snapshots[i]; s.EventID == eventID {
			s.Plan = append([]byte(nil), s.Plan...)
			out = append(out, s)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// PutSnapshot stores a snapshot verbatim.  Tests use it to plant damaged rows.
func (m *MemoryStore) PutSnapshot(s model.Snapshot) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snapshots = append(m.snapshots, s)
}

func (m *MemoryStore) InsertAudit(_ context.Context, e model.AuditEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.audits = append(m.audits, e)
	return nil
}

// Audits returns a copy of every recorded audit row in insertion order.
func (m *MemoryStore) Audits() []model.AuditEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]model.AuditEntry(nil), m.audits...)
}
