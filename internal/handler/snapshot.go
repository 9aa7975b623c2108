package handler

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/seating-planner/internal/model"
)

// snapshotView is the JSON form of a snapshot.  Plan is omitted from list
// responses and when the stored bytes are not valid JSON.
type snapshotView struct {
	ID                 string          `json:"id"`
	EventID            string          `json:"event_id"`
	CreatedBy          string          `json:"created_by"`
	IsManual           bool            `json:"is_manual"`
	Label              string          `json:"label"`
	PreviousSnapshotID string          `json:"previous_snapshot_id,omitempty"`
	CreatedAt          time.Time       `json:"created_at"`
	Plan               json.RawMessage `json:"plan,omitempty"`
	Corrupted          bool            `json:"corrupted,omitempty"`
}

func toSnapshotView(s model.Snapshot, withPlan bool) snapshotView {
	v := snapshotView{
		ID:                 s.ID,
		EventID:            s.EventID,
		CreatedBy:          s.CreatedBy,
		IsManual:           s.IsManual,
		Label:              s.Label,
		PreviousSnapshotID: s.PreviousSnapshotID,
		CreatedAt:          s.CreatedAt,
	}
	if withPlan {
		if len(s.Plan) > 0 && json.Valid(s.Plan) {
			v.Plan = s.Plan
		} else {
			v.Corrupted = true
		}
	}
	return v
}

// CreateSnapshot handles POST /v1/events/:id/snapshots.
func (h *EventHandler) CreateSnapshot(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return unauthorized(c)
	}
	var body struct {
		Label string `json:"label"`
	}
	if err := c.Bind(&body); err != nil {
		return badRequest(c, "invalid request body")
	}
	if len(body.Label) > 200 {
		return badRequest(c, "label is too long")
	}
	s, err := h.Snapshots.Create(c.Request().Context(), c.Param("id"), uid, body.Label, true)
	if err != nil {
		return h.respondError(c, err)
	}
	return c.JSON(http.StatusCreated, toSnapshotView(s, false))
}

// ListSnapshots handles GET /v1/events/:id/snapshots?limit=N, newest first.
func (h *EventHandler) ListSnapshots(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return unauthorized(c)
	}
	limit := 0
	if raw := c.QueryParam("limit"); raw != "" {
		if limit, err = strconv.Atoi(raw); err != nil {
			return badRequest(c, "invalid limit")
		}
	}
	list, err := h.Snapshots.List(c.Request().Context(), c.Param("id"), uid, limit)
	if err != nil {
		return h.respondError(c, err)
	}
	out := make([]snapshotView, 0, len(list))
	for _, s := range list {
		out = append(out, toSnapshotView(s, false))
	}
	return c.JSON(http.StatusOK, out)
}

// GetSnapshot handles GET /v1/events/:id/snapshots/:sid and includes the plan.
func (h *EventHandler) GetSnapshot(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return unauthorized(c)
	}
	s, err := h.Snapshots.Get(c.Request().Context(), c.Param("id"), uid, c.Param("sid"))
	if err != nil {
		return h.respondError(c, err)
	}
	return c.JSON(http.StatusOK, toSnapshotView(s, true))
}

// RestoreSnapshot handles POST /v1/events/:id/snapshots/:sid/restore.
func (h *EventHandler) RestoreSnapshot(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return unauthorized(c)
	}
	res, err := h.Snapshots.Restore(c.Request().Context(), c.Param("id"), uid, c.Param("sid"))
	if err != nil {
		return h.respondError(c, err)
	}
	return c.JSON(http.StatusOK, res)
}
