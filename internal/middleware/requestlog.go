package middleware

import (
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/seating-planner/internal/logging"
)

// RequestLogger logs one line per request once the handler has run.
// Server errors (5xx) are logged at error level and client errors (4xx) at
// warn level; everything else is info.  The request
// id set by echo's RequestID middleware is attached to the request context
// so engine logs carry it too.
func RequestLogger(log logging.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			req := c.Request()

			rid := c.Response().Header().Get(echo.HeaderXRequestID)
			if rid == "" {
				rid = req.Header.Get(echo.HeaderXRequestID)
			}
			ctx := logging.WithRequestID(req.Context(), rid)
			c.SetRequest(req.WithContext(ctx))

			err := next(c)
			if err != nil {
				// Let echo's error handler write the response first so the
				// logged status is the one the client saw.
				c.Error(err)
			}

			status := c.Response().Status
			args := []any{
				"method", req.Method,
				"path", req.URL.Path,
				"status", status,
				"duration", time.Since(start).String(),
				"client_ip", c.RealIP(),
				"user_id", UserID(c),
			}
			switch {
			case status >= 500:
				log.Error(ctx, "request failed", args...)
			case status >= 400:
				log.Warn(ctx, "request rejected", args...)
			default:
				log.Info(ctx, "request processed", args...)
			}
			return nil
		}
	}
}
