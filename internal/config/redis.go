package config

import (
	"context"
	"crypto/tls"
	"log"
	"os"
	"time"

	"github.com/redis/go-redis/v9"
)

// NewRedisClient builds the Redis client shared by the webhook rate
// limiter and the state-read response cache.  Address resolution accepts
// either REDIS_ADDR or the REDIS_HOST/REDIS_PORT pair; REDIS_PASSWORD,
// REDIS_DB and REDIS_TLS are optional.
//
// Redis is an accelerator here, never a source of truth, so a failed ping
// returns nil and both consumers degrade to pass-through instead of
// blocking transitions.
func NewRedisClient() *redis.Client {
	addr := os.Getenv("REDIS_ADDR")
	if host, port := os.Getenv("REDIS_HOST"), os.Getenv("REDIS_PORT"); host != "" && port != "" {
		addr = host + ":" + port
	}
	if addr == "" {
		addr = "localhost:6379"
	}

	opts := &redis.Options{
		Addr:     addr,
		Password: os.Getenv("REDIS_PASSWORD"),
		DB:       envInt("REDIS_DB", 0),
	}
	if envBool("REDIS_TLS", false) {
		opts.TLSConfig = &tls.Config{InsecureSkipVerify: true}
	}

	client := redis.NewClient(opts)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		log.Printf("config: redis unreachable at %s, rate limiting and caching disabled: %v", addr, err)
		return nil
	}
	return client
}
