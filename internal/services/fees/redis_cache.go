package fees

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"chainvault/internal/models"

	"github.com/redis/go-redis/v9"
)

const (
	defaultCacheTTL = 5 * time.Minute
	absentMarker    = "-"
)

// RedisCache caches fee override lookups, including absences, in Redis.
type RedisCache struct {
	client redis.UniversalClient
	ttl    time.Duration
	prefix string
}

func NewRedisCache(client redis.UniversalClient, ttl time.Duration) *RedisCache {
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	return &RedisCache{client: client, ttl: ttl, prefix: "chainvault:fee_override:"}
}

func (c *RedisCache) key(userID, tokenSymbol, chainID string) string {
	return c.prefix + userID + ":" + tokenSymbol + ":" + chainID
}

func (c *RedisCache) Get(ctx context.Context, userID, tokenSymbol, chainID string) (*models.FeeOverride, bool, error) {
	val, err := c.client.Get(ctx, c.key(userID, tokenSymbol, chainID)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	if val == absentMarker {
		return nil, true, nil
	}
	var f models.FeeOverride
	if err := json.Unmarshal([]byte(val), &f); err != nil {
		return nil, false, err
	}
	return &f, true, nil
}

func (c *RedisCache) Set(ctx context.Context, userID, tokenSymbol, chainID string, f *models.FeeOverride) error {
	val := absentMarker
	if f != nil {
		data, err := json.Marshal(f)
		if err != nil {
			return err
		}
		val = string(data)
	}
	return c.client.Set(ctx, c.key(userID, tokenSymbol, chainID), val, c.ttl).Err()
}

func (c *RedisCache) Delete(ctx context.Context, userID, tokenSymbol, chainID string) error {
	return c.client.Del(ctx, c.key(userID, tokenSymbol, chainID)).Err()
}
