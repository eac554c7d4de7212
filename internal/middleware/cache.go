package middleware

import (
	"bytes"
	"context"
	"crypto/sha1"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/hotel-booking-lifecycle/internal/config"
)

// responseRecorder tees the response to the client while keeping a bounded
// copy for the cache.  A body that outgrows the limit still reaches the
// client in full; only the cached copy is abandoned.
type responseRecorder struct {
	http.ResponseWriter
	status   int
	buf      bytes.Buffer
	written  int64
	limit    int64
	overflow bool
}

func (r *responseRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *responseRecorder) Write(b []byte) (int, error) {
	r.written += int64(len(b))
	if r.limit > 0 && r.written > r.limit {
		r.overflow = true
	} else {
		r.buf.Write(b)
	}
	return r.ResponseWriter.Write(b)
}

// cacheKey hashes the configured request parts under the prefix.  The
// default route_query strategy keeps per-booking state reads distinct
// while collapsing duplicate polls onto one entry.
func cacheKey(cfg config.CacheConfig, c echo.Context) string {
	r := c.Request()
	var tail string
	switch strings.ToLower(cfg.KeyStrategy) {
	case "route":
		tail = c.Path()
	case "method_route":
		tail = r.Method + ":" + c.Path()
	default: // route_query
		tail = c.Path() + "?" + r.URL.RawQuery
	}
	sum := sha1.Sum([]byte(tail))
	return fmt.Sprintf("%s:%x", cfg.Prefix, sum)
}

// Cache entries pack status, headers and body into one value:
// [4B status][4B header length][header JSON][body].  Replaying all three
// keeps a hit byte-identical to the original response.

func packEntry(status int, header http.Header, body []byte) ([]byte, error) {
	hdr, err := json.Marshal(header)
	if err != nil {
		return nil, err
	}
	out := make([]byte, 8+len(hdr)+len(body))
	binary.BigEndian.PutUint32(out[0:4], uint32(status))
	binary.BigEndian.PutUint32(out[4:8], uint32(len(hdr)))
	copy(out[8:], hdr)
	copy(out[8+len(hdr):], body)
	return out, nil
}

func unpackEntry(raw []byte) (status int, header http.Header, body []byte, ok bool) {
	if len(raw) < 8 {
		return 0, nil, nil, false
	}
	status = int(binary.BigEndian.Uint32(raw[0:4]))
	hlen := int(binary.BigEndian.Uint32(raw[4:8]))
	if hlen < 0 || 8+hlen > len(raw) {
		return 0, nil, nil, false
	}
	header = make(http.Header)
	if hlen > 0 {
		if err := json.Unmarshal(raw[8:8+hlen], &header); err != nil {
			return 0, nil, nil, false
		}
	}
	return status, header, raw[8+hlen:], true
}

// NewRedisCache is the read-through cache for the state read endpoint.
// Only configured methods are considered and only 200 responses are
// stored; the short TTL bounds how stale a snapshot a client can see
// after a transition.  Like the rate limiter it fails open without Redis.
func NewRedisCache(cfg config.CacheConfig, rdb *redis.Client) echo.MiddlewareFunc {
	if !cfg.Enabled || rdb == nil {
		return passthrough
	}
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = 15 * time.Second
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if !cfg.Methods[strings.ToUpper(c.Request().Method)] {
				return next(c)
			}
			key := cacheKey(cfg, c)

			if raw, err := rdb.Get(c.Request().Context(), key).Bytes(); err == nil {
				if status, hdr, body, ok := unpackEntry(raw); ok {
					for k, vals := range hdr {
						if strings.EqualFold(k, "Content-Length") {
							continue
						}
						for _, v := range vals {
							c.Response().Header().Add(k, v)
						}
					}
					c.Response().Header().Set("X-Cache", "HIT")
					c.Response().WriteHeader(status)
					_, err := c.Response().Write(body)
					return err
				}
			}

			rec := &responseRecorder{
				ResponseWriter: c.Response().Writer,
				status:         http.StatusOK,
				limit:          int64(cfg.MaxBodyBytes),
			}
			c.Response().Writer = rec
			c.Response().Header().Set("X-Cache", "MISS")

			if err := next(c); err != nil {
				return err
			}
			if rec.status != http.StatusOK || rec.overflow {
				return nil
			}

			hdr := make(http.Header, len(c.Response().Header()))
			for k, vals := range c.Response().Header() {
				hdr[k] = append([]string(nil), vals...)
			}
			if entry, err := packEntry(rec.status, hdr, rec.buf.Bytes()); err == nil {
				// The request context may be done once the response is
				// written; store with a fresh one.
				_ = rdb.SetEx(context.Background(), key, entry, ttl).Err()
			}
			return nil
		}
	}
}
