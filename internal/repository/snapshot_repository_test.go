package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/seating-planner/internal/model"
)

var snapshotCols = []string{"id", "event_id", "created_by", "is_manual", "label", "plan", "previous_snapshot_id", "created_at"}

func TestSnapshotRepo_CreateSnapshot(t *testing.T) {
	db, mock := newMock(t)
	at := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO snapshots")).
		WithArgs("s2", "e1", "owner", false, "Before restore of s1", []byte(`{"tables":[]}`), "s1", at).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO snapshots")).
		WithArgs("s1", "e1", "owner", true, "first", []byte(`{}`), nil, at).
		WillReturnResult(sqlmock.NewResult(0, 1))

	repo := NewSnapshotRepo(db)
	require.NoError(t, repo.CreateSnapshot(context.Background(), model.Snapshot{
		ID: "s2", EventID: "e1", CreatedBy: "owner", Label: "Before restore of s1",
		Plan: []byte(`{"tables":[]}`), PreviousSnapshotID: "s1", CreatedAt: at,
	}))
	require.NoError(t, repo.CreateSnapshot(context.Background(), model.Snapshot{
		ID: "s1", EventID: "e1", CreatedBy: "owner", IsManual: true, Label: "first",
		Plan: []byte(`{}`), CreatedAt: at,
	}))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSnapshotRepo_GetSnapshot(t *testing.T) {
	at := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)

	t.Run("found", func(t *testing.T) {
		db, mock := newMock(t)
		mock.ExpectQuery(regexp.QuoteMeta("FROM snapshots WHERE id = ?")).
			WithArgs("s1").
			WillReturnRows(sqlmock.NewRows(snapshotCols).
				AddRow("s1", "e1", "owner", true, "draft", []byte(`{"tables":[]}`), nil, at))

		s, err := NewSnapshotRepo(db).GetSnapshot(context.Background(), "s1")
		require.NoError(t, err)
		assert.Equal(t, "e1", s.EventID)
		assert.Empty(t, s.PreviousSnapshotID)
		assert.JSONEq(t, `{"tables":[]}`, string(s.Plan))
	})

	t.Run("missing", func(t *testing.T) {
		db, mock := newMock(t)
		mock.ExpectQuery(regexp.QuoteMeta("FROM snapshots WHERE id = ?")).
			WithArgs("zz").
			WillReturnRows(sqlmock.NewRows(snapshotCols))

		_, err := NewSnapshotRepo(db).GetSnapshot(context.Background(), "zz")
		assert.ErrorIs(t, err, model.ErrSnapshotNotFound)
	})
}

func TestSnapshotRepo_LatestAndList(t *testing.T) {
	at := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	db, mock := newMock(t)

	mock.ExpectQuery(regexp.QuoteMeta("ORDER BY created_at DESC, id DESC LIMIT 1")).
		WithArgs("e1").
		WillReturnRows(sqlmock.NewRows(snapshotCols))
	mock.ExpectQuery(regexp.QuoteMeta("ORDER BY created_at DESC, id DESC LIMIT ?")).
		WithArgs("e1", 10).
		WillReturnRows(sqlmock.NewRows(snapshotCols).
			AddRow("s2", "e1", "owner", false, "auto", []byte(`{}`), "s1", at.Add(time.Minute)).
			AddRow("s1", "e1", "owner", true, "first", []byte(`{}`), nil, at))

	repo := NewSnapshotRepo(db)
	_, err := repo.LatestSnapshot(context.Background(), "e1")
	assert.ErrorIs(t, err, model.ErrSnapshotNotFound)

	list, err := repo.ListSnapshots(context.Background(), "e1", 10)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "s2", list[0].ID)
	assert.Equal(t, "s1", list[0].PreviousSnapshotID)
	assert.NoError(t, mock.ExpectationsWereMet())
}
