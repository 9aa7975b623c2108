package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/iliyamo/seating-planner/internal/model"
)

// SnapshotRepo provides data access to the append-only snapshots table.
// Rows are never updated or deleted.
type SnapshotRepo struct {
	db *sql.DB
}

// NewSnapshotRepo returns a new SnapshotRepo bound to the provided database.
func NewSnapshotRepo(db *sql.DB) *SnapshotRepo { return &SnapshotRepo{db: db} }

const snapshotColumns = `id, event_id, created_by, is_manual, label, plan, previous_snapshot_id, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSnapshot(rs rowScanner) (model.Snapshot, error) {
	var (
		s    model.Snapshot
		plan []byte
		prev sql.NullString
	)
	if err := rs.Scan(&s.ID, &s.EventID, &s.CreatedBy, &s.IsManual, &s.Label, &plan, &prev, &s.CreatedAt); err != nil {
		return model.Snapshot{}, err
	}
	s.Plan = plan
	s.PreviousSnapshotID = prev.String
	s.CreatedAt = s.CreatedAt.UTC()
	return s, nil
}

// CreateSnapshot inserts an immutable snapshot row.
func (r *SnapshotRepo) CreateSnapshot(ctx context.Context, s model.Snapshot) error {
	const q = `INSERT INTO snapshots (` + snapshotColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := r.db.ExecContext(ctx, q,
		s.ID, s.EventID, s.CreatedBy, s.IsManual, s.Label, []byte(s.Plan),
		nullString(s.PreviousSnapshotID), s.CreatedAt.UTC(),
	)
	return err
}

// GetSnapshot returns model.ErrSnapshotNotFound when the id is unknown.
func (r *SnapshotRepo) GetSnapshot(ctx context.Context, id string) (model.Snapshot, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+snapshotColumns+` FROM snapshots WHERE id = ?`, id)
	s, err := scanSnapshot(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Snapshot{}, model.ErrSnapshotNotFound
	}
	return s, err
}

// LatestSnapshot returns the newest snapshot of an event, or
// model.ErrSnapshotNotFound when the chain is empty.
func (r *SnapshotRepo) LatestSnapshot(ctx context.Context, eventID string) (model.Snapshot, error) {
	const q = `SELECT ` + snapshotColumns + ` FROM snapshots
	           WHERE event_id = ? ORDER BY created_at DESC, id DESC LIMIT 1`
	s, err := scanSnapshot(r.db.QueryRowContext(ctx, q, eventID))
	if errors.Is(err, sql.ErrNoRows) {
		return model.Snapshot{}, model.ErrSnapshotNotFound
	}
	return s, err
}

// ListSnapshots returns up to limit snapshots of an event, newest first.
func (r *SnapshotRepo) ListSnapshots(ctx context.Context, eventID string, limit int) ([]model.Snapshot, error) {
	const q = `SELECT ` + snapshotColumns + ` FROM snapshots
	           WHERE event_id = ? ORDER BY created_at DESC, id DESC LIMIT ?`
	rows, err := r.db.QueryContext(ctx, q, eventID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.Snapshot{}
	for rows.Next() {
		s, err := scanSnapshot(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
