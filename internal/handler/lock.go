package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// AcquireLock handles POST /v1/events/:id/lock.  A lease held by someone
// else is answered with 409 and the current holder, not an error body.
func (h *EventHandler) AcquireLock(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return unauthorized(c)
	}
	var body struct {
		TTLMinutes int `json:"ttl_minutes"`
	}
	if err := c.Bind(&body); err != nil {
		return badRequest(c, "invalid request body")
	}
	res, err := h.Locks.Acquire(c.Request().Context(), c.Param("id"), uid, body.TTLMinutes)
	if err != nil {
		return h.respondError(c, err)
	}
	if !res.Acquired {
		return c.JSON(http.StatusConflict, res)
	}
	return c.JSON(http.StatusOK, res)
}

// ReleaseLock handles DELETE /v1/events/:id/lock.
func (h *EventHandler) ReleaseLock(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return unauthorized(c)
	}
	res, err := h.Locks.Release(c.Request().Context(), c.Param("id"), uid)
	if err != nil {
		return h.respondError(c, err)
	}
	return c.JSON(http.StatusOK, res)
}
