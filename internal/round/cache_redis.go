package round

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	id "fieldkey/pkg/domain"
)

const infoKeyPrefix = "round:info:"

// RedisCache is a read-through cache over a round Store for the Info
// lookup, which sits on the hot, unauthenticated credential path. Round
// metadata changes rarely; a bounded TTL caps staleness. OpenRound always
// passes through because issuance correctness depends on it.
type RedisCache struct {
	next   Store
	client *redis.Client
	ttl    time.Duration
}

// NewRedisCache wraps a store with a Redis read-through cache.
func NewRedisCache(next Store, client *redis.Client, ttl time.Duration) *RedisCache {
	return &RedisCache{next: next, client: client, ttl: ttl}
}

func (c *RedisCache) OpenRound(ctx context.Context, territoryID id.TerritoryID, now time.Time) (int, error) {
	return c.next.OpenRound(ctx, territoryID, now)
}

func (c *RedisCache) Info(ctx context.Context, tenantID id.TenantID, number int) (*Info, error) {
	key := cacheKey(tenantID, number)

	raw, err := c.client.Get(ctx, key).Bytes()
	if err == nil {
		var info Info
		if jerr := json.Unmarshal(raw, &info); jerr == nil {
			return &info, nil
		}
		// Corrupt entry: fall through to the store and overwrite.
	} else if !errors.Is(err, redis.Nil) {
		// Cache unavailable is not fatal; serve from the store.
		return c.next.Info(ctx, tenantID, number)
	}

	info, err := c.next.Info(ctx, tenantID, number)
	if err != nil {
		return nil, err
	}
	if raw, jerr := json.Marshal(info); jerr == nil {
		_ = c.client.Set(ctx, key, raw, c.ttl).Err()
	}
	return info, nil
}

// Invalidate drops the cached entry for a (tenant, round).
func (c *RedisCache) Invalidate(ctx context.Context, tenantID id.TenantID, number int) error {
	return c.client.Del(ctx, cacheKey(tenantID, number)).Err()
}

func cacheKey(tenantID id.TenantID, number int) string {
	return infoKeyPrefix + tenantID.String() + ":" + strconv.Itoa(number)
}
