package inventory

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const detailKeyPrefix = "inventory:ingredient:"

// RedisDetailCache caches ingredient detail aggregates in Redis. Failures are
// logged and treated as cache misses so Redis outages never break lookups.
type RedisDetailCache struct {
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

// NewRedisDetailCache builds the cache with the given entry TTL.
func NewRedisDetailCache(client *redis.Client, ttl time.Duration, logger *slog.Logger) *RedisDetailCache {
	return &RedisDetailCache{client: client, ttl: ttl, logger: logger}
}

// Get returns the cached detail for an ingredient, if present.
func (c *RedisDetailCache) Get(ctx context.Context, ingredientID uuid.UUID) (IngredientDetail, bool) {
	payload, err := c.client.Get(ctx, detailKeyPrefix+ingredientID.String()).Bytes()
	if err != nil {
		if err != redis.Nil {
			c.logger.Warn("ingredient cache get", slog.Any("error", err))
		}
		return IngredientDetail{}, false
	}
	var detail IngredientDetail
	if err := json.Unmarshal(payload, &detail); err != nil {
		c.logger.Warn("ingredient cache decode", slog.Any("error", err))
		return IngredientDetail{}, false
	}
	return detail, true
}

// Set stores the detail under its ingredient id.
func (c *RedisDetailCache) Set(ctx context.Context, detail IngredientDetail) {
	payload, err := json.Marshal(detail)
	if err != nil {
		c.logger.Warn("ingredient cache encode", slog.Any("error", err))
		return
	}
	if err := c.client.Set(ctx, detailKeyPrefix+detail.ID.String(), payload, c.ttl).Err(); err != nil {
		c.logger.Warn("ingredient cache set", slog.Any("error", err))
	}
}

// InvalidateAll drops every cached ingredient detail. Stock mutations touch an
// unknown set of ingredients, so the whole prefix is flushed.
func (c *RedisDetailCache) InvalidateAll(ctx context.Context) {
	iter := c.client.Scan(ctx, 0, detailKeyPrefix+"*", 0).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		c.logger.Warn("ingredient cache scan", slog.Any("error", err))
		return
	}
	if len(keys) == 0 {
		return
	}
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		c.logger.Warn("ingredient cache invalidate", slog.Any("error", err))
	}
}
