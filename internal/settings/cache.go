package settings

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

const cacheKey = "memberline:settings"

// Cache wraps a Provider with a Redis cache. Redis failures degrade to the
// inner provider rather than failing the load.
type Cache struct {
	client *redis.Client
	inner  Provider
	ttl    time.Duration
	logger *slog.Logger
}

// NewCache constructs a caching Provider.
func NewCache(client *redis.Client, inner Provider, ttl time.Duration, logger *slog.Logger) *Cache {
	if logger == nil {
		logger = slog.Default()
	}
	return &Cache{client: client, inner: inner, ttl: ttl, logger: logger}
}

var _ Provider = (*Cache)(nil)

// Load returns cached settings when present, otherwise loads through the
// inner provider and caches the result.
func (c *Cache) Load(ctx context.Context) (Settings, error) {
	if c.client != nil {
		raw, err := c.client.Get(ctx, cacheKey).Bytes()
		if err == nil {
			var s Settings
			if jerr := json.Unmarshal(raw, &s); jerr == nil {
				return s, nil
			}
			// Corrupt entry, fall through to a fresh load.
			c.client.Del(ctx, cacheKey)
		} else if err != redis.Nil {
			c.logger.Warn("settings cache read", slog.Any("error", err))
		}
	}

	s, err := c.inner.Load(ctx)
	if err != nil {
		return Settings{}, err
	}

	if c.client != nil {
		if raw, jerr := json.Marshal(s); jerr == nil {
			if serr := c.client.Set(ctx, cacheKey, raw, c.ttl).Err(); serr != nil {
				c.logger.Warn("settings cache write", slog.Any("error", serr))
			}
		}
	}

	return s, nil
}

// Invalidate drops the cached settings entry.
func (c *Cache) Invalidate(ctx context.Context) {
	if c.client != nil {
		c.client.Del(ctx, cacheKey)
	}
}
