package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/seating-planner/internal/model"
)

// lockView is the JSON form of an event's lease.  HeldBy is empty when the
// event was never locked.
type lockView struct {
	HeldBy    string     `json:"held_by,omitempty"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
	Active    bool       `json:"active"`
}

type eventView struct {
	ID        string     `json:"id"`
	OwnerID   string     `json:"owner_id"`
	Name      string     `json:"name"`
	Plan      model.Plan `json:"plan"`
	Version   int64      `json:"version"`
	Lock      lockView   `json:"lock"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

func toEventView(e model.Event, now time.Time) eventView {
	if e.Plan.Tables == nil {
		e.Plan.Tables = []model.Table{}
	}
	if e.Plan.Guests == nil {
		e.Plan.Guests = []model.Guest{}
	}
	return eventView{
		ID:        e.ID,
		OwnerID:   e.OwnerID,
		Name:      e.Name,
		Plan:      e.Plan,
		Version:   e.Version,
		Lock:      lockView{HeldBy: e.Lock.HeldBy, ExpiresAt: e.Lock.ExpiresAt, Active: e.Lock.ActiveAt(now)},
		CreatedAt: e.CreatedAt,
		UpdatedAt: e.UpdatedAt,
	}
}

// CreateEvent handles POST /v1/events.  The caller becomes the owner.
func (h *EventHandler) CreateEvent(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return unauthorized(c)
	}
	var body struct {
		Name string     `json:"name"`
		Plan model.Plan `json:"plan"`
	}
	if err := c.Bind(&body); err != nil {
		return badRequest(c, "invalid request body")
	}
	e, err := h.Editor.CreateEvent(c.Request().Context(), uid, body.Name, body.Plan)
	if err != nil {
		return h.respondError(c, err)
	}
	return c.JSON(http.StatusCreated, toEventView(e, h.Clock.Now()))
}

// GetEvent handles GET /v1/events/:id.
func (h *EventHandler) GetEvent(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return unauthorized(c)
	}
	e, err := h.Editor.GetEvent(c.Request().Context(), c.Param("id"), uid)
	if err != nil {
		return h.respondError(c, err)
	}
	return c.JSON(http.StatusOK, toEventView(e, h.Clock.Now()))
}

// DeleteEvent handles DELETE /v1/events/:id (soft delete).
func (h *EventHandler) DeleteEvent(c echo.Context) error {
	return h.setDeleted(c, true)
}

// UndeleteEvent handles POST /v1/events/:id/undelete.
func (h *EventHandler) UndeleteEvent(c echo.Context) error {
	return h.setDeleted(c, false)
}

func (h *EventHandler) setDeleted(c echo.Context, deleted bool) error {
	uid, err := getUserID(c)
	if err != nil {
		return unauthorized(c)
	}
	if err := h.Editor.SetDeleted(c.Request().Context(), c.Param("id"), uid, deleted); err != nil {
		return h.respondError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// ReplacePlan handles PUT /v1/events/:id/plan.  The expected version comes
// from the body or from an If-Match header.
func (h *EventHandler) ReplacePlan(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return unauthorized(c)
	}
	var body struct {
		Plan            model.Plan `json:"plan"`
		ExpectedVersion *int64     `json:"expected_version"`
	}
	if err := c.Bind(&body); err != nil {
		return badRequest(c, "invalid request body")
	}
	expected, err := expectedVersion(c, body.ExpectedVersion)
	if err != nil {
		return badRequest(c, err.Error())
	}
	res, err := h.Editor.ReplacePlan(c.Request().Context(), c.Param("id"), uid, body.Plan, expected)
	if err != nil {
		return h.respondError(c, err)
	}
	return c.JSON(http.StatusOK, res)
}

// ResizeTable handles PATCH /v1/events/:id/tables/:table_id.
func (h *EventHandler) ResizeTable(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return unauthorized(c)
	}
	var body struct {
		Capacity        *int   `json:"capacity"`
		ExpectedVersion *int64 `json:"expected_version"`
	}
	if err := c.Bind(&body); err != nil {
		return badRequest(c, "invalid request body")
	}
	if body.Capacity == nil {
		return badRequest(c, "capacity is required")
	}
	expected, err := expectedVersion(c, body.ExpectedVersion)
	if err != nil {
		return badRequest(c, err.Error())
	}
	res, err := h.Editor.ResizeTable(c.Request().Context(), c.Param("id"), uid, c.Param("table_id"), *body.Capacity, expected)
	if err != nil {
		return h.respondError(c, err)
	}
	return c.JSON(http.StatusOK, res)
}
