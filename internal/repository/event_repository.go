package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/iliyamo/seating-planner/internal/model"
)

// EventRepo provides data access to the events table.  The plan is stored
// as a JSON column next to the version counter and the lease so that every
// write is a single-row conditional UPDATE.
type EventRepo struct {
	db *sql.DB
}

// NewEventRepo returns a new EventRepo bound to the provided database.
func NewEventRepo(db *sql.DB) *EventRepo { return &EventRepo{db: db} }

const eventColumns = `id, owner_id, name, plan, version, lock_held_by, lock_expires_at, lock_released_at, deleted, created_at, updated_at`

// GetEvent loads one event including soft-deleted ones; callers check
// Deleted.  It returns model.ErrEventNotFound when no row exists.
func (r *EventRepo) GetEvent(ctx context.Context, id string) (model.Event, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+eventColumns+` FROM events WHERE id = ?`, id)

	var (
		e        model.Event
		plan     []byte
		heldBy   sql.NullString
		expires  sql.NullTime
		released sql.NullTime
	)
	err := row.Scan(&e.ID, &e.OwnerID, &e.Name, &plan, &e.Version, &heldBy, &expires, &released, &e.Deleted, &e.CreatedAt, &e.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Event{}, model.ErrEventNotFound
	}
	if err != nil {
		return model.Event{}, err
	}
	if err := json.Unmarshal(plan, &e.Plan); err != nil {
		return model.Event{}, fmt.Errorf("decode plan of event %s: %w", id, err)
	}
	if heldBy.Valid {
		e.Lock.HeldBy = heldBy.String
	}
	e.Lock.ExpiresAt = timePtr(expires)
	e.Lock.ReleasedAt = timePtr(released)
	return e, nil
}

// CreateEvent inserts a new, unlocked event at version 0.
func (r *EventRepo) CreateEvent(ctx context.Context, e model.Event) error {
	plan, err := json.Marshal(e.Plan)
	if err != nil {
		return fmt.Errorf("encode plan: %w", err)
	}
	const q = `INSERT INTO events (id, owner_id, name, plan, version, deleted, created_at, updated_at)
	           VALUES (?, ?, ?, ?, 0, 0, ?, ?)`
	_, err = r.db.ExecContext(ctx, q, e.ID, e.OwnerID, e.Name, plan, e.CreatedAt.UTC(), e.UpdatedAt.UTC())
	return err
}

// SwapPlan replaces the plan and increments the version only if the stored
// version still equals expected and the event is not deleted.  It returns
// the new version, or ErrConflict when nothing was updated.
func (r *EventRepo) SwapPlan(ctx context.Context, id string, expected int64, plan model.Plan, at time.Time) (int64, error) {
	b, err := json.Marshal(plan)
	if err != nil {
		return 0, fmt.Errorf("encode plan: %w", err)
	}
	const q = `UPDATE events SET plan = ?, version = version + 1, updated_at = ?
	           WHERE id = ? AND version = ? AND deleted = 0`
	res, err := r.db.ExecContext(ctx, q, b, at.UTC(), id, expected)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	if n == 0 {
		return 0, ErrConflict
	}
	return expected + 1, nil
}

// SwapLock replaces the lease only if the stored lease still equals prev.
// The version column is not touched.  It returns ErrConflict when another
// writer changed the lease first or the event was deleted.
func (r *EventRepo) SwapLock(ctx context.Context, id string, prev, next model.Lock) error {
	nextBy, nextAt, nextRel := lockArgs(next)
	prevBy, prevAt, prevRel := lockArgs(prev)
	const q = `UPDATE events SET lock_held_by = ?, lock_expires_at = ?, lock_released_at = ?
	           WHERE id = ? AND deleted = 0 AND lock_held_by <=> ? AND lock_expires_at <=> ? AND lock_released_at <=> ?`
	res, err := r.db.ExecContext(ctx, q, nextBy, nextAt, nextRel, id, prevBy, prevAt, prevRel)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrConflict
	}
	return nil
}

// SetDeleted flips the soft-delete flag.  It returns model.ErrEventNotFound
// when no row matched.
func (r *EventRepo) SetDeleted(ctx context.Context, id string, deleted bool, at time.Time) error {
	res, err := r.db.ExecContext(ctx, `UPDATE events SET deleted = ?, updated_at = ? WHERE id = ?`, deleted, at.UTC(), id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return model.ErrEventNotFound
	}
	return nil
}
