package handlers

import (
	"context"
	"log/slog"
	"time"

	"storefront-backend/cache"

	"github.com/google/uuid"
)

// Cache keys for catalog and user reads.
const UsersKey = "users"

func ProductIDKey(id uuid.UUID) string { return "product:id:" + id.String() }

func ProductSlugKey(slug string) string { return "product:slug:" + slug }

// readThrough fetches key from the cache and falls back to load on a miss or
// a cache failure. Cache failures are logged and never surface to the caller.
func readThrough[T any](ctx context.Context, c cache.Cache, log *slog.Logger, key string, ttl time.Duration, load func() (T, error)) (T, error) {
	var cached T
	hit, err := c.Get(ctx, key, &cached)
	if err != nil {
		log.WarnContext(ctx, "cache read failed", "key", key, "error", err)
	}
	if hit {
		return cached, nil
	}

	value, err := load()
	if err != nil {
		return value, err
	}
	if err := c.Set(ctx, key, value, ttl); err != nil {
		log.WarnContext(ctx, "cache write failed", "key", key, "error", err)
	}
	return value, nil
}

func invalidate(ctx context.Context, c cache.Cache, log *slog.Logger, keys ...string) {
	if err := c.Delete(ctx, keys...); err != nil {
		log.WarnContext(ctx, "cache invalidation failed", "keys", keys, "error", err)
	}
}
