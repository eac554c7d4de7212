package config

import (
	"strings"
	"time"
)

// CacheConfig tunes the response cache in front of the booking state
// reads.  The TTL is deliberately short: any transition moves the state,
// and a stale snapshot misleads the gateway and reception clients polling
// it.  Only GET responses are cached, keyed by route and query string.
type CacheConfig struct {
	Enabled      bool
	Methods      map[string]bool
	TTL          time.Duration
	KeyStrategy  string // route, method_route or route_query
	Prefix       string // Redis key namespace
	MaxBodyBytes int    // responses larger than this are never cached
}

// LoadCacheConfig reads CACHE_* variables with defaults suited to state
// reads: fifteen seconds of staleness at most, one megabyte cap.
func LoadCacheConfig() CacheConfig {
	return CacheConfig{
		Enabled:      envBool("CACHE_ENABLED", true),
		Methods:      parseMethods(envStr("CACHE_METHODS", "GET")),
		TTL:          envDur("CACHE_TTL", 15*time.Second),
		KeyStrategy:  envStr("CACHE_KEY_STRATEGY", "route_query"),
		Prefix:       envStr("CACHE_PREFIX", "lifecycle:cache"),
		MaxBodyBytes: envInt("CACHE_MAX_BODY_BYTES", 1<<20),
	}
}

func parseMethods(s string) map[string]bool {
	m := make(map[string]bool)
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(strings.ToUpper(p)); p != "" {
			m[p] = true
		}
	}
	return m
}
