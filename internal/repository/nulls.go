package repository

import (
	"database/sql"
	"time"

	"github.com/iliyamo/seating-planner/internal/model"
)

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}

// lockArgs returns the column values for a lease.  An empty lease is stored
// as three NULLs.
func lockArgs(l model.Lock) (sql.NullString, sql.NullTime, sql.NullTime) {
	return nullString(l.HeldBy), nullTime(l.ExpiresAt), nullTime(l.ReleasedAt)
}

// timePtr converts a scanned nullable column back to *time.Time.
func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	u := t.Time.UTC()
	return &u
}
