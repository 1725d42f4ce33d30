// Package cache provides the key-value stores used as read-through caches for
// carts, products and users.
//
// Values are JSON-encoded so entries written by any instance (or by older
// deployments sharing the same Redis) decode to the same shape. Every backend
// honors a per-key TTL.
package cache

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"
)

// Cache is the collaborator interface injected into services.
type Cache interface {
	// Get decodes the value stored at key into dst. hit is false on a miss.
	Get(ctx context.Context, key string, dst any) (hit bool, err error)
	// Set stores value under key for ttl.
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	// Delete removes every given key. Deleting a missing key is not an error.
	Delete(ctx context.Context, keys ...string) error
}

type Config struct {
	RedisURL       string
	MemoryCapacity int
	MemoryTTL      time.Duration
}

// New returns a Redis cache when RedisURL is set and the server answers PING,
// otherwise an in-process memory cache.
func New(ctx context.Context, cfg Config, log *slog.Logger) (Cache, func() error, error) {
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, nil, err
		}
		client := redis.NewClient(opts)

		pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		defer cancel()
		err = client.Ping(pingCtx).Err()
		if err == nil {
			log.Info("using redis cache", slog.String("addr", opts.Addr))
			return NewRedis(client), client.Close, nil
		}
		log.Warn("redis unreachable, falling back to in-process cache", slog.Any("err", err))
		_ = client.Close()
	}

	mem, err := NewMemory(MemoryConfig{Capacity: cfg.MemoryCapacity, TTL: cfg.MemoryTTL})
	if err != nil {
		return nil, nil, err
	}
	log.Info("using in-process cache", slog.Int("capacity", cfg.MemoryCapacity))
	return mem, func() error { return nil }, nil
}

// Noop never stores anything; every Get is a miss.
type Noop struct{}

func (Noop) Get(context.Context, string, any) (bool, error) {
	return false, nil
}

func (Noop) Set(context.Context, string, any, time.Duration) error {
	return nil
}

func (Noop) Delete(context.Context, ...string) error {
	return nil
}

var ErrInvalidTTL = errors.New("cache: ttl must be positive")

func encode(value any) ([]byte, error) {
	return json.Marshal(value)
}

func decode(data []byte, dst any) error {
	return json.Unmarshal(data, dst)
}
