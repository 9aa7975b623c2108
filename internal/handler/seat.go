package handler

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
)

// AssignSeat handles POST /v1/events/:id/seats.  The seat number is chosen
// by the engine; repeating the request returns the same seat.
func (h *EventHandler) AssignSeat(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return unauthorized(c)
	}
	var body struct {
		GuestID         string `json:"guest_id"`
		TableID         string `json:"table_id"`
		ExpectedVersion *int64 `json:"expected_version"`
	}
	if err := c.Bind(&body); err != nil {
		return badRequest(c, "invalid request body")
	}
	guestID := strings.TrimSpace(body.GuestID)
	tableID := strings.TrimSpace(body.TableID)
	if guestID == "" || tableID == "" {
		return badRequest(c, "guest_id and table_id are required")
	}
	expected, err := expectedVersion(c, body.ExpectedVersion)
	if err != nil {
		return badRequest(c, err.Error())
	}
	res, err := h.Seats.Assign(c.Request().Context(), c.Param("id"), uid, guestID, tableID, expected)
	if err != nil {
		return h.respondError(c, err)
	}
	return c.JSON(http.StatusOK, res)
}

// UnassignSeat handles DELETE /v1/events/:id/seats/:guest_id.  An optional
// expected_version query parameter pins the version.
func (h *EventHandler) UnassignSeat(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return unauthorized(c)
	}
	var fromQuery *int64
	if raw := c.QueryParam("expected_version"); raw != "" {
		v, err := parseVersion(raw)
		if err != nil {
			return badRequest(c, "invalid expected_version")
		}
		fromQuery = &v
	}
	expected, err := expectedVersion(c, fromQuery)
	if err != nil {
		return badRequest(c, err.Error())
	}
	res, err := h.Seats.Unassign(c.Request().Context(), c.Param("id"), uid, c.Param("guest_id"), expected)
	if err != nil {
		return h.respondError(c, err)
	}
	return c.JSON(http.StatusOK, res)
}
