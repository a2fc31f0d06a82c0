package permission

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"quote-service/internal/models"
	"quote-service/internal/util"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

const missingRow = "none"

// CachedStore caches permission rows in redis, including the absence of a row
type CachedStore struct {
	next   Store
	rdb    *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

// NewCachedStore wraps next with a redis cache
func NewCachedStore(next Store, rdb *redis.Client, ttl time.Duration) *CachedStore {
	return &CachedStore{
		next:   next,
		rdb:    rdb,
		ttl:    ttl,
		logger: util.GetLogger(),
	}
}

func cacheKey(role models.Role, resource string) string {
	return fmt.Sprintf("permission:%s:%s", role, resource)
}

// GetResourcePermission serves from redis and falls back to the wrapped store.
// Redis failures degrade to the wrapped store.
func (c *CachedStore) GetResourcePermission(ctx context.Context, role models.Role, resource string) (*models.ResourcePermission, error) {
	key := cacheKey(role, resource)

	cached, err := c.rdb.Get(ctx, key).Result()
	switch {
	case err == nil && cached == missingRow:
		return nil, nil
	case err == nil:
		var perm models.ResourcePermission
		if jsonErr := json.Unmarshal([]byte(cached), &perm); jsonErr == nil {
			return &perm, nil
		}
	case err != redis.Nil:
		c.logger.Warn("Permission cache read failed, using database",
			zap.String("key", key),
			zap.Error(err))
	}

	perm, err := c.next.GetResourcePermission(ctx, role, resource)
	if err != nil {
		return nil, err
	}

	value := missingRow
	if perm != nil {
		raw, err := json.Marshal(perm)
		if err != nil {
			return perm, nil
		}
		value = string(raw)
	}
	if err := c.rdb.Set(ctx, key, value, c.ttl).Err(); err != nil {
		c.logger.Warn("Permission cache write failed", zap.String("key", key), zap.Error(err))
	}
	return perm, nil
}

// Invalidate drops a cached row after it was changed
func (c *CachedStore) Invalidate(ctx context.Context, role models.Role, resource string) error {
	return c.rdb.Del(ctx, cacheKey(role, resource)).Err()
}
