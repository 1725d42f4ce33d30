// Package cart is the shopping-cart engine: owner resolution and the
// guest-to-user merge, per-read validation of line items, and item mutations.
// Every write invalidates the cache keys of the carts it touched.
package cart

import (
	"context"
	"log/slog"
	"time"

	"storefront-backend/cache"
	"storefront-backend/logger"
	"storefront-backend/models"
)

const (
	DefaultTTL = 300 * time.Second

	// maxWriteAttempts bounds optimistic retries on version or unique-key
	// conflicts before giving up with ErrConflict.
	maxWriteAttempts = 5
)

type Service struct {
	store Store
	cache cache.Cache
	log   *slog.Logger
	ttl   time.Duration
}

func NewService(store Store, c cache.Cache, log *slog.Logger, ttl time.Duration) *Service {
	if c == nil {
		c = cache.Noop{}
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Service{
		store: store,
		cache: c,
		log:   logger.OrDefault(log).With(slog.String("component", "cart")),
		ttl:   ttl,
	}
}

// cacheGet reports a hit only when the value decoded cleanly. Cache faults
// are logged and read as a miss.
func (s *Service) cacheGet(ctx context.Context, key string, dst any) bool {
	hit, err := s.cache.Get(ctx, key, dst)
	if err != nil {
		s.log.WarnContext(ctx, "cache read failed", slog.String("key", key), slog.Any("err", err))
		return false
	}
	return hit
}

func (s *Service) cacheSet(ctx context.Context, key string, value any) {
	if err := s.cache.Set(ctx, key, value, s.ttl); err != nil {
		s.log.WarnContext(ctx, "cache write failed", slog.String("key", key), slog.Any("err", err))
	}
}

func (s *Service) invalidate(ctx context.Context, keys ...string) {
	if err := s.cache.Delete(ctx, keys...); err != nil {
		s.log.WarnContext(ctx, "cache invalidation failed", slog.Any("keys", keys), slog.Any("err", err))
	}
}

// invalidateRow drops the keys of a loaded cart row. A row with an invalid
// owner loses only its cart key and is logged.
func (s *Service) invalidateRow(ctx context.Context, c *models.Cart) {
	keys, err := keysFor(c)
	if err != nil {
		s.log.WarnContext(ctx, "cart row has an invalid owner",
			slog.String("cart_id", c.ID.String()), slog.Any("err", err))
	}
	s.invalidate(ctx, keys...)
}
