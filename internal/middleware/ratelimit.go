package middleware

import (
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/hotel-booking-lifecycle/internal/config"
)

// tokenBucketScript refills and drains one bucket atomically.  The bucket
// state lives in Redis so every instance behind the load balancer drains
// the same budget per key; a gateway hammering the webhook endpoint is
// throttled no matter which instance its retries land on.
//
// Returns {allowed, tokens_left, retry_after_ms}.
const tokenBucketScript = `
local bucket = KEYS[1]
local now_ms = tonumber(ARGV[1])
local capacity = tonumber(ARGV[2])
local refill = tonumber(ARGV[3])
local interval_ms = tonumber(ARGV[4])
local ttl_s = tonumber(ARGV[5])

local state = redis.call('HMGET', bucket, 'tokens', 'refilled_ms')
local tokens = tonumber(state[1])
local refilled = tonumber(state[2])
if tokens == nil or refilled == nil then
  tokens = capacity
  refilled = now_ms
end

if interval_ms > 0 and refill > 0 then
  local elapsed = math.max(0, now_ms - refilled)
  local ticks = math.floor(elapsed / interval_ms)
  if ticks > 0 then
    tokens = math.min(capacity, tokens + ticks * refill)
    refilled = refilled + ticks * interval_ms
  end
end

local allowed = 0
local retry_ms = 0
if tokens > 0 then
  allowed = 1
  tokens = tokens - 1
else
  retry_ms = math.max(0, interval_ms - (now_ms - refilled))
end

redis.call('HMSET', bucket, 'tokens', tokens, 'refilled_ms', refilled)
redis.call('EXPIRE', bucket, ttl_s)
return { allowed, tokens, retry_ms }
`

// passthrough is the middleware used when a Redis-backed feature is
// disabled or the client is unavailable: requests flow untouched.
func passthrough(next echo.HandlerFunc) echo.HandlerFunc { return next }

// NewTokenBucket limits request rates per key using the shared Redis
// bucket.  It fronts the webhook and booking-creation endpoints.  Redis
// being down fails open: throttling is protection, not correctness, and
// the engine's locks and version guards stay authoritative either way.
func NewTokenBucket(cfg config.RateLimitConfig, rdb *redis.Client) echo.MiddlewareFunc {
	if !cfg.Enabled || rdb == nil {
		return passthrough
	}
	script := redis.NewScript(tokenBucketScript)

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			key := rateKey(cfg, c)
			res, err := script.Run(c.Request().Context(), rdb, []string{key},
				time.Now().UnixMilli(),
				cfg.Capacity,
				cfg.RefillTokens,
				cfg.RefillInterval.Milliseconds(),
				int64(cfg.TTL/time.Second),
			).Result()
			if err != nil {
				if cfg.Debug {
					c.Logger().Warnf("ratelimit: script failed for %s: %v", key, err)
				}
				return next(c)
			}
			arr, ok := res.([]interface{})
			if !ok || len(arr) != 3 {
				return next(c)
			}
			allowed := toInt64(arr[0]) == 1
			remaining := toInt64(arr[1])
			retryMs := toInt64(arr[2])

			h := c.Response().Header()
			h.Set("X-RateLimit-Limit", strconv.Itoa(cfg.Capacity))
			h.Set("X-RateLimit-Remaining", strconv.FormatInt(remaining, 10))
			if cfg.Debug {
				h.Set("X-RateLimit-Key", key)
			}

			if !allowed {
				secs := int(math.Ceil(float64(retryMs) / 1000))
				h.Set("Retry-After", strconv.Itoa(secs))
				return c.JSON(http.StatusTooManyRequests, echo.Map{
					"error":       "too_many_requests",
					"retry_after": secs,
				})
			}
			return next(c)
		}
	}
}

// rateKey namespaces the bucket.  The webhook surface is anonymous, so the
// default strategy buckets by caller IP and route; the admin surface can
// opt into per-user buckets via ip_user_route.
func rateKey(cfg config.RateLimitConfig, c echo.Context) string {
	ip := c.RealIP()
	if ip == "" {
		ip = "unknown"
	}
	route := c.Request().Method + " " + c.Path()

	parts := []string{cfg.Prefix}
	switch strings.ToLower(cfg.KeyStrategy) {
	case "ip":
		parts = append(parts, "ip", ip)
	case "route":
		parts = append(parts, "route", route)
	case "ip_user_route":
		parts = append(parts, "ip", ip, "user", actorKey(c), "route", route)
	default: // ip_route
		parts = append(parts, "ip", ip, "route", route)
	}
	return strings.Join(parts, ":")
}

// actorKey returns the authenticated subject when JWTAuth ran, "anon"
// otherwise.
func actorKey(c echo.Context) string {
	if s, ok := c.Get("user_id").(string); ok && s != "" {
		return s
	}
	return "anon"
}

func toInt64(v interface{}) int64 {
	switch t := v.(type) {
	case int64:
		return t
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
