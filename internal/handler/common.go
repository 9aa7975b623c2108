package handler // handler translates HTTP requests into engine calls

import (
	"errors"   // errors.Is/As against the model sentinels
	"net/http" // HTTP status codes
	"strconv"  // strconv parses version headers and query limits
	"strings"  // strings trims If-Match values

	"github.com/labstack/echo/v4" // echo provides the request context

	"github.com/iliyamo/seating-planner/internal/clock"      // clock decides whether a lease shown to clients is active
	"github.com/iliyamo/seating-planner/internal/lock"       // lock manager and its contention error
	"github.com/iliyamo/seating-planner/internal/logging"    // structured logging for unexpected faults
	"github.com/iliyamo/seating-planner/internal/middleware" // UserID reads the JWT subject
	"github.com/iliyamo/seating-planner/internal/model"      // error vocabulary
	"github.com/iliyamo/seating-planner/internal/planner"    // event lifecycle and structural edits
	"github.com/iliyamo/seating-planner/internal/seating"    // seat assignment
	"github.com/iliyamo/seating-planner/internal/snapshot"   // snapshot create/list/restore
)

// EventHandler bundles the engines behind the /v1/events routes.
type EventHandler struct {
	Editor    *planner.Editor   // Editor creates, loads, deletes and restructures events
	Locks     *lock.Manager     // Locks grants and releases edit leases
	Seats     *seating.Engine   // Seats places and removes guests
	Snapshots *snapshot.Manager // Snapshots records and restores plan copies
	Clock     clock.Clock       // Clock is the engines' time source
	Log       logging.Logger    // Log receives unexpected failures
}

// NewEventHandler constructs an EventHandler and panics if any dependency is nil.
func NewEventHandler(editor *planner.Editor, locks *lock.Manager, seats *seating.Engine, snaps *snapshot.Manager, clk clock.Clock, log logging.Logger) *EventHandler {
	if editor == nil || locks == nil || seats == nil || snaps == nil || clk == nil || log == nil {
		panic("nil dependency passed to NewEventHandler")
	}
	return &EventHandler{Editor: editor, Locks: locks, Seats: seats, Snapshots: snaps, Clock: clk, Log: log}
}

// getUserID returns the principal set by JWTAuth.
func getUserID(c echo.Context) (string, error) {
	if uid := middleware.UserID(c); uid != "" {
		return uid, nil
	}
	return "", errors.New("missing user_id in context")
}

func unauthorized(c echo.Context) error {
	return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
}

func badRequest(c echo.Context, msg string) error {
	return c.JSON(http.StatusBadRequest, echo.Map{"error": msg})
}

// expectedVersion picks the optimistic-concurrency token for a mutation.
// A value in the body wins; otherwise an If-Match header such as "7" or
// W/"7" is used.  nil means the caller did not pin a version.
func expectedVersion(c echo.Context, fromBody *int64) (*int64, error) {
	if fromBody != nil {
		if *fromBody < 0 {
			return nil, errors.New("expected_version must not be negative")
		}
		return fromBody, nil
	}
	raw := strings.TrimSpace(c.Request().Header.Get("If-Match"))
	if raw == "" || raw == "*" {
		return nil, nil
	}
	v, err := parseVersion(strings.Trim(strings.TrimPrefix(raw, "W/"), `"`))
	if err != nil {
		return nil, errors.New("invalid If-Match header")
	}
	return &v, nil
}

func parseVersion(raw string) (int64, error) {
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, err
	}
	if v < 0 {
		return 0, errors.New("negative version")
	}
	return v, nil
}

// respondError maps an engine error onto a status code.  Anything outside
// the model vocabulary is logged and answered with a generic 500.
func (h *EventHandler) respondError(c echo.Context, err error) error {
	var conflict *model.VersionConflictError
	switch {
	case errors.As(err, &conflict):
		return c.JSON(http.StatusConflict, echo.Map{
			"error":            "version conflict",
			"expected_version": conflict.Expected,
			"actual_version":   conflict.Actual,
		})
	case errors.Is(err, model.ErrNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": err.Error()})
	case errors.Is(err, model.ErrForbidden):
		return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
	case errors.Is(err, model.ErrLockHeldByOther),
		errors.Is(err, model.ErrNotLockOwner),
		errors.Is(err, model.ErrTableFull),
		errors.Is(err, lock.ErrContended):
		return c.JSON(http.StatusConflict, echo.Map{"error": err.Error()})
	case errors.Is(err, model.ErrSnapshotEventMismatch),
		errors.Is(err, model.ErrInvalidArgument):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	case errors.Is(err, model.ErrCorruptedSnapshotData):
		return c.JSON(http.StatusUnprocessableEntity, echo.Map{"error": "corrupted snapshot data"})
	}
	h.Log.Error(c.Request().Context(), "unexpected engine error",
		"method", c.Request().Method, "path", c.Request().URL.Path, "error", err)
	return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal server error"})
}
