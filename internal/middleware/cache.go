package middleware

import (
	"bytes"
	"context"
	"crypto/sha1"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/seating-planner/internal/config"
	"github.com/iliyamo/seating-planner/internal/logging"
)

// captureWriter captures response body/status while forwarding to the client.
type captureWriter struct {
	http.ResponseWriter
	status int
	buf    bytes.Buffer
	size   int64
	limit  int64
}

func (cw *captureWriter) WriteHeader(code int) {
	cw.status = code
	cw.ResponseWriter.WriteHeader(code)
}

func (cw *captureWriter) Write(b []byte) (int, error) {
	if cw.limit <= 0 {
		cw.buf.Write(b)
	} else if remain := cw.limit - cw.size; remain > 0 {
		if int64(len(b)) <= remain {
			cw.buf.Write(b)
		} else {
			cw.buf.Write(b[:remain])
		}
	}
	cw.size += int64(len(b))
	return cw.ResponseWriter.Write(b)
}

// cacheKeyFields lists, per key strategy, the request attributes hashed
// into the cache key.  Unknown strategies use user_route_query.
var cacheKeyFields = map[string][]string{
	"route":              {"route"},
	"method_route":       {"method", "route"},
	"method_route_query": {"method", "route", "q"},
	"route_query":        {"route", "q"},
	"user_route_query":   {"user", "route", "q"},
}

// cacheKeyFrom builds a stable cache key honoring prefix/strategy.  The
// path is the concrete request path, not the route pattern, so
// /snapshots/a and /snapshots/b never share an entry.  gen is the event's
// cache generation; bumping it orphans every entry built under the old one.
func cacheKeyFrom(cfg config.CacheConfig, c echo.Context, gen string) string {
	fields, ok := cacheKeyFields[strings.ToLower(cfg.KeyStrategy)]
	if !ok {
		fields = cacheKeyFields["user_route_query"]
	}
	r := c.Request()
	parts := make([]string, 0, 2*len(fields)+2)
	parts = append(parts, "gen", gen)
	for _, f := range fields {
		switch f {
		case "method":
			parts = append(parts, f, r.Method)
		case "route":
			parts = append(parts, f, r.URL.Path)
		case "q":
			parts = append(parts, f, r.URL.RawQuery)
		case "user":
			parts = append(parts, f, keyUserID(c))
		}
	}
	sum := sha1.Sum([]byte(strings.Join(parts, ":")))
	return fmt.Sprintf("%s:%x", cfg.Prefix, sum[:])
}

// generationKey names the counter holding an event's cache generation.
func generationKey(prefix, eventID string) string {
	return prefix + ":gen:" + eventID
}

// cachedResponse is the value stored under a cache key.
type cachedResponse struct {
	Status int         `json:"status"`
	Header http.Header `json:"header"`
	Body   []byte      `json:"body"`
}

// responseCache reads and writes cachedResponse values in Redis.
type responseCache struct {
	rdb *redis.Client
	ttl time.Duration
}

// get returns the entry under key.  A miss, a Redis error and an
// undecodable value all report ok=false.
func (rc responseCache) get(ctx context.Context, key string) (cachedResponse, bool) {
	bs, err := rc.rdb.Get(ctx, key).Bytes()
	if err != nil {
		return cachedResponse{}, false
	}
	var cr cachedResponse
	if err := json.Unmarshal(bs, &cr); err != nil || cr.Status == 0 {
		return cachedResponse{}, false
	}
	return cr, true
}

// generation reads the event's cache generation.  An unset counter is "0";
// a Redis error yields "" which never matches a stored key's generation.
func (rc responseCache) generation(ctx context.Context, prefix, eventID string) string {
	gen, err := rc.rdb.Get(ctx, generationKey(prefix, eventID)).Result()
	switch {
	case err == redis.Nil:
		return "0"
	case err != nil:
		return ""
	}
	return gen
}

func (rc responseCache) put(ctx context.Context, key string, cr cachedResponse) error {
	bs, err := json.Marshal(cr)
	if err != nil {
		return err
	}
	return rc.rdb.Set(ctx, key, bs, rc.ttl).Err()
}

// replay writes a cached response to the client.
func replay(c echo.Context, cr cachedResponse) error {
	h := c.Response().Header()
	for k, vals := range cr.Header {
		// Echo sets Content-Length itself.
		if strings.EqualFold(k, echo.HeaderContentLength) {
			continue
		}
		for _, v := range vals {
			h.Add(k, v)
		}
	}
	h.Set("X-Cache", "HIT")
	c.Response().WriteHeader(cr.Status)
	if len(cr.Body) > 0 {
		_, err := c.Response().Write(cr.Body)
		return err
	}
	return nil
}

// NewRedisCache stores the status, headers and body of 200 responses.  It
// is mounted only on routes whose response never changes, such as a single
// snapshot.  Redis failures are logged and never fail the request.
func NewRedisCache(cfg config.CacheConfig, rdb *redis.Client, log logging.Logger) echo.MiddlewareFunc {
	if !cfg.Enabled || rdb == nil {
		return passthrough
	}
	rc := responseCache{rdb: rdb, ttl: cfg.TTL}
	if rc.ttl <= 0 {
		rc.ttl = 5 * time.Minute
	}
	maxBody := int64(cfg.MaxBodyBytes)

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if !cfg.Methods[strings.ToUpper(c.Request().Method)] {
				return next(c)
			}
			ctx := c.Request().Context()
			gen := rc.generation(ctx, cfg.Prefix, c.Param("id"))
			if gen == "" {
				return next(c)
			}
			key := cacheKeyFrom(cfg, c, gen)

			if cr, ok := rc.get(ctx, key); ok {
				return replay(c, cr)
			}

			cw := &captureWriter{ResponseWriter: c.Response().Writer, status: http.StatusOK, limit: maxBody}
			c.Response().Writer = cw
			c.Response().Header().Set("X-Cache", "MISS")
			if err := next(c); err != nil {
				return err
			}

			// Truncated bodies are not stored.
			if cw.status != http.StatusOK || (maxBody > 0 && cw.size > maxBody) {
				return nil
			}
			hdr := c.Response().Header().Clone()
			hdr.Del("X-Cache")
			if err := rc.put(context.WithoutCancel(ctx), key, cachedResponse{Status: cw.status, Header: hdr, Body: cw.buf.Bytes()}); err != nil {
				log.Warn(ctx, "cache store failed", "key", key, "error", err)
			}
			return nil
		}
	}
}

// NewCacheInvalidator bumps the cache generation of the event named by the
// :id route parameter after a successful write, so entries cached before
// the write are no longer served.  It is mounted on delete and undelete,
// which change who may read an event's snapshots.
func NewCacheInvalidator(cfg config.CacheConfig, rdb *redis.Client, log logging.Logger) echo.MiddlewareFunc {
	if !cfg.Enabled || rdb == nil {
		return passthrough
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if err := next(c); err != nil {
				return err
			}
			if status := c.Response().Status; status < 200 || status >= 300 {
				return nil
			}
			ctx := context.WithoutCancel(c.Request().Context())
			key := generationKey(cfg.Prefix, c.Param("id"))
			if err := rdb.Incr(ctx, key).Err(); err != nil {
				log.Error(ctx, "cache invalidation failed", "key", key, "error", err)
			}
			return nil
		}
	}
}
