package config

// Redis backs the token-bucket rate limiter and the snapshot response
// cache.  Both degrade to pass-through when no client is available, so a
// missing or unreachable server is not fatal.

import (
	"context"
	"crypto/tls"
	"net"
	"os"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// RedisOptions builds client options from environment variables:
//
//	REDIS_URL – full redis:// or rediss:// URL; wins over everything below
//	REDIS_HOST and REDIS_PORT – hostname and port of the Redis server
//	REDIS_ADDR – host:port shorthand (host/port take precedence when both are set)
//	REDIS_PASSWORD – optional password
//	REDIS_DB – database number (default 0)
//	REDIS_TLS – enable TLS when true
func RedisOptions() (*redis.Options, error) {
	if url := os.Getenv("REDIS_URL"); url != "" {
		return redis.ParseURL(url)
	}
	addr := envStr("REDIS_ADDR", "localhost:6379")
	if host, port := os.Getenv("REDIS_HOST"), os.Getenv("REDIS_PORT"); host != "" && port != "" {
		addr = net.JoinHostPort(host, port)
	}
	opts := &redis.Options{
		Addr:         addr,
		Password:     os.Getenv("REDIS_PASSWORD"),
		DB:           envInt("REDIS_DB", 0),
		DialTimeout:  2 * time.Second,
		ReadTimeout:  500 * time.Millisecond,
		WriteTimeout: 500 * time.Millisecond,
	}
	if envBool("REDIS_TLS", false) {
		host, _, _ := net.SplitHostPort(addr)
		opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12, ServerName: host}
	}
	return opts, nil
}

// NewRedisClient connects using RedisOptions.  It returns nil when the
// options are invalid or the server does not answer a ping.
func NewRedisClient() *redis.Client {
	opts, err := RedisOptions()
	if err != nil {
		logrus.WithError(err).Warn("config: invalid REDIS_URL")
		return nil
	}
	client := redis.NewClient(opts)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil
	}
	return client
}
