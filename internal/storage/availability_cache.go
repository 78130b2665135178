package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/arafat-hossain/barberbook/internal/model"
	"github.com/arafat-hossain/barberbook/internal/scheduling"
)

// CachedAvailability decorates an AvailabilityStore with a Redis read-through
// cache on Windows. Availability is read on every slot listing but changes
// rarely. The cache fails open: any Redis error falls back to the inner
// store so booking never depends on cache health.
type CachedAvailability struct {
	inner  scheduling.AvailabilityStore
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

func NewCachedAvailability(inner scheduling.AvailabilityStore, client *redis.Client, ttl time.Duration, logger *slog.Logger) *CachedAvailability {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &CachedAvailability{inner: inner, client: client, ttl: ttl, logger: logger}
}

var _ scheduling.AvailabilityStore = (*CachedAvailability)(nil)

func (c *CachedAvailability) Provider(ctx context.Context, providerID string) (model.Provider, error) {
	return c.inner.Provider(ctx, providerID)
}

func (c *CachedAvailability) Windows(ctx context.Context, providerID string, weekday time.Weekday) ([]model.AvailabilityWindow, error) {
	key := windowsKey(providerID, weekday)
	if raw, err := c.client.Get(ctx, key).Bytes(); err == nil {
		var windows []model.AvailabilityWindow
		if err := json.Unmarshal(raw, &windows); err == nil {
			return windows, nil
		}
		c.logger.Warn("availability cache entry corrupt, bypassing", "key", key)
	} else if err != redis.Nil {
		c.logger.Warn("availability cache read failed, bypassing", "err", err)
	}

	windows, err := c.inner.Windows(ctx, providerID, weekday)
	if err != nil {
		return nil, err
	}
	if raw, err := json.Marshal(windows); err == nil {
		if err := c.client.Set(ctx, key, raw, c.ttl).Err(); err != nil {
			c.logger.Warn("availability cache write failed", "err", err)
		}
	}
	return windows, nil
}

func (c *CachedAvailability) ReplaceWindows(ctx context.Context, providerID string, windows []model.AvailabilityWindow) error {
	if err := c.inner.ReplaceWindows(ctx, providerID, windows); err != nil {
		return err
	}
	keys := make([]string, 0, 7)
	for day := time.Sunday; day <= time.Saturday; day++ {
		keys = append(keys, windowsKey(providerID, day))
	}
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		c.logger.Warn("availability cache invalidation failed", "provider_id", providerID, "err", err)
	}
	return nil
}

func windowsKey(providerID string, weekday time.Weekday) string {
	return fmt.Sprintf("availability:%s:%d", providerID, int(weekday))
}
