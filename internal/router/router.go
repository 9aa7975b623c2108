package router // package router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4"                   // Echo web framework
	echomw "github.com/labstack/echo/v4/middleware" // Echo's bundled request-id middleware
	"github.com/redis/go-redis/v9"                  // Redis client shared by the limiter and the cache

	"github.com/iliyamo/seating-planner/internal/config"     // rate-limit and cache settings
	"github.com/iliyamo/seating-planner/internal/handler"    // HTTP handlers
	"github.com/iliyamo/seating-planner/internal/logging"    // request logging
	"github.com/iliyamo/seating-planner/internal/middleware" // JWT, rate limit, cache, request log
)

// RegisterRoutes installs the global middleware and the unauthenticated
// routes.  Currently it exposes only a health check.
func RegisterRoutes(e *echo.Echo, log logging.Logger) {
	// Request ids come first so the request logger can attach them.
	e.Use(echomw.RequestID())
	e.Use(middleware.RequestLogger(log))

	// Liveness check for load balancers.
	e.GET("/healthz", handler.Health)
}

// RegisterEvents registers the seating-plan endpoints under /v1.  Every
// route requires a valid access token; the rate limiter runs after JWTAuth
// so per-user keys see the principal.  Only single snapshots are cached
// because they never change once written; delete and undelete invalidate
// them.
func RegisterEvents(e *echo.Echo, h *handler.EventHandler, jwtSecret string, rdb *redis.Client, rl config.RateLimitConfig, cc config.CacheConfig, log logging.Logger) {
	g := e.Group(
		"/v1",
		middleware.JWTAuth(jwtSecret),
		middleware.NewTokenBucket(rl, rdb, log),
	)

	// ---- Events ----
	g.POST("/events", h.CreateEvent)
	g.GET("/events/:id", h.GetEvent)
	invalidate := middleware.NewCacheInvalidator(cc, rdb, log)
	g.DELETE("/events/:id", h.DeleteEvent, invalidate)
	g.POST("/events/:id/undelete", h.UndeleteEvent, invalidate)
	g.PUT("/events/:id/plan", h.ReplacePlan)
	g.PATCH("/events/:id/tables/:table_id", h.ResizeTable)

	// ---- Lock ----
	g.POST("/events/:id/lock", h.AcquireLock)
	g.DELETE("/events/:id/lock", h.ReleaseLock)

	// ---- Seats ----
	g.POST("/events/:id/seats", h.AssignSeat)
	g.DELETE("/events/:id/seats/:guest_id", h.UnassignSeat)

	// ---- Snapshots ----
	g.POST("/events/:id/snapshots", h.CreateSnapshot)
	g.GET("/events/:id/snapshots", h.ListSnapshots)
	g.GET("/events/:id/snapshots/:sid", h.GetSnapshot, middleware.NewRedisCache(cc, rdb, log))
	g.POST("/events/:id/snapshots/:sid/restore", h.RestoreSnapshot)
}
