package middleware

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/seating-planner/internal/config"
	"github.com/iliyamo/seating-planner/internal/logging"
)

// limiterScript refills the bucket by whole intervals, takes one token if
// available and returns {allowed, remaining, retry_after_ms}.
var limiterScript = redis.NewScript(`
	local key = KEYS[1]
	local now_ms = tonumber(ARGV[1])
	local capacity = tonumber(ARGV[2])
	local refill_tokens = tonumber(ARGV[3])
	local interval_ms = tonumber(ARGV[4])
	local ttl_seconds = tonumber(ARGV[5])

	local state = redis.call('HMGET', key, 'tokens', 'last_refill_ms')
	local tokens = tonumber(state[1])
	local last_refill = tonumber(state[2])

	if tokens == nil or last_refill == nil then
		tokens = capacity
		last_refill = now_ms
	end

	if interval_ms > 0 and refill_tokens > 0 then
		local elapsed = math.max(0, now_ms - last_refill)
		local intervals = math.floor(elapsed / interval_ms)
		if intervals > 0 then
			tokens = math.min(capacity, tokens + (intervals * refill_tokens))
			last_refill = last_refill + (intervals * interval_ms)
		end
	end

	local allowed = 0
	local retry_after_ms = 0
	if tokens > 0 then
		allowed = 1
		tokens = tokens - 1
	else
		local until_next = interval_ms - (now_ms - last_refill)
		if until_next < 0 then until_next = 0 end
		retry_after_ms = until_next
	end

	redis.call('HMSET', key, 'tokens', tokens, 'last_refill_ms', last_refill, 'capacity', capacity)
	redis.call('EXPIRE', key, ttl_seconds)

	return { allowed, tokens, retry_after_ms }
`)

func passthrough(next echo.HandlerFunc) echo.HandlerFunc { return next }

// decision is the parsed reply of limiterScript.
type decision struct {
	allowed   bool
	remaining int64
	retryMs   int64
}

// retryAfter rounds the wait up to whole seconds for the Retry-After header.
func (d decision) retryAfter() int {
	secs := int(math.Ceil(float64(d.retryMs) / 1000.0))
	if secs < 0 {
		return 0
	}
	return secs
}

func parseDecision(reply interface{}) (decision, error) {
	arr, ok := reply.([]interface{})
	if !ok || len(arr) != 3 {
		return decision{}, fmt.Errorf("unexpected limiter reply %#v", reply)
	}
	return decision{
		allowed:   fmt.Sprint(arr[0]) == "1",
		remaining: asInt64(arr[1]),
		retryMs:   asInt64(arr[2]),
	}, nil
}

// tokenBucket evaluates limiterScript for one key.
type tokenBucket struct {
	cfg config.RateLimitConfig
	rdb *redis.Client
}

func (b tokenBucket) take(ctx context.Context, key string, now time.Time) (decision, error) {
	reply, err := limiterScript.Run(ctx, b.rdb, []string{key},
		now.UnixMilli(),
		b.cfg.Capacity,
		b.cfg.RefillTokens,
		b.cfg.RefillInterval.Milliseconds(),
		int64(b.cfg.TTL/time.Second),
	).Result()
	if err != nil {
		return decision{}, err
	}
	return parseDecision(reply)
}

// NewTokenBucket limits requests per key with a Redis-backed token bucket.
// Redis errors fail open and are logged when cfg.Debug is set.
func NewTokenBucket(cfg config.RateLimitConfig, rdb *redis.Client, log logging.Logger) echo.MiddlewareFunc {
	if !cfg.Enabled || rdb == nil {
		return passthrough
	}
	bucket := tokenBucket{cfg: cfg, rdb: rdb}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ctx := c.Request().Context()
			key := buildRateKey(cfg, c)

			d, err := bucket.take(ctx, key, time.Now())
			if err != nil {
				if cfg.Debug {
					log.Warn(ctx, "rate limiter unavailable", "key", key, "error", err)
				}
				return next(c)
			}

			h := c.Response().Header()
			h.Set("X-RateLimit-Limit", strconv.Itoa(cfg.Capacity))
			h.Set("X-RateLimit-Remaining", strconv.FormatInt(d.remaining, 10))
			if cfg.Debug {
				h.Set("X-RateLimit-Key", key)
			}

			if !d.allowed {
				h.Set("Retry-After", strconv.Itoa(d.retryAfter()))
				if cfg.Debug {
					log.Info(ctx, "rate limited", "key", key, "retry_ms", d.retryMs)
				}
				return c.JSON(http.StatusTooManyRequests, echo.Map{
					"error":       "too_many_requests",
					"retry_after": d.retryAfter(),
				})
			}
			return next(c)
		}
	}
}

func asInt64(v interface{}) int64 {
	switch t := v.(type) {
	case int64:
		return t
	case int32:
		return int64(t)
	case int:
		return int64(t)
	case float64:
		return int64(t)
	case string:
		if n, err := strconv.ParseInt(t, 10, 64); err == nil {
			return n
		}
	}
	return 0
}

// rateKeyFields lists, per key strategy, the request attributes that form
// the bucket key.  Unknown strategies use ip_user_route.
var rateKeyFields = map[string][]string{
	"ip":            {"ip"},
	"user":          {"user"},
	"route":         {"route"},
	"ip_user":       {"ip", "user"},
	"ip_route":      {"ip", "route"},
	"user_route":    {"user", "route"},
	"ip_user_route": {"ip", "user", "route"},
}

func buildRateKey(cfg config.RateLimitConfig, c echo.Context) string {
	fields, ok := rateKeyFields[strings.ToLower(cfg.KeyStrategy)]
	if !ok {
		fields = rateKeyFields["ip_user_route"]
	}
	parts := []string{cfg.Prefix}
	for _, f := range fields {
		switch f {
		case "ip":
			ip := c.RealIP()
			if ip == "" {
				ip = "unknown"
			}
			parts = append(parts, "ip", ip)
		case "user":
			parts = append(parts, "user", keyUserID(c))
		case "route":
			parts = append(parts, "route", c.Request().Method+" "+c.Path())
		}
	}
	return strings.Join(parts, ":")
}
