package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/iliyamo/seating-planner/internal/model"
)

// AuditRepo appends rows to audit_logs.
type AuditRepo struct {
	db *sql.DB
}

// NewAuditRepo returns a new AuditRepo bound to the provided database.
func NewAuditRepo(db *sql.DB) *AuditRepo { return &AuditRepo{db: db} }

// InsertAudit writes one audit row.  Details are stored as JSON; nil
// details become SQL NULL.
func (r *AuditRepo) InsertAudit(ctx context.Context, e model.AuditEntry) error {
	var details []byte
	if e.Details != nil {
		b, err := json.Marshal(e.Details)
		if err != nil {
			return fmt.Errorf("encode audit details: %w", err)
		}
		details = b
	}
	const q = `INSERT INTO audit_logs (event_id, user_id, action_type, details, created_at) VALUES (?, ?, ?, ?, ?)`
	_, err := r.db.ExecContext(ctx, q, e.EventID, e.UserID, e.ActionType, details, e.CreatedAt.UTC())
	return err
}
