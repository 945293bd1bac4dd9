package stock

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	stockKeyPrefix = "stock:"
	stockKeyTTL    = 5 * time.Minute
)

// ErrCacheMiss is returned by the cache when a variant has no cached level.
var ErrCacheMiss = errors.New("stock cache miss")

// Cache mirrors ledger levels in Redis for cheap storefront availability
// reads. The ledger in Postgres stays authoritative; entries expire and get
// dropped on every mutation so the mirror can only lag, never lie forever.
type Cache interface {
	Get(ctx context.Context, variantID string) (int, error)
	Put(ctx context.Context, variantID string, qty int) error
	Forget(ctx context.Context, variantID string) error
}

type RedisCache struct {
	client *redis.Client
}

func NewRedisCache(client *redis.Client) *RedisCache {
	return &RedisCache{client: client}
}

func (c *RedisCache) Get(ctx context.Context, variantID string) (int, error) {
	v, err := c.client.Get(ctx, stockKeyPrefix+variantID).Result()
	if errors.Is(err, redis.Nil) {
		return 0, ErrCacheMiss
	}
	if err != nil {
		return 0, err
	}
	qty, err := strconv.Atoi(v)
	if err != nil {
		return 0, ErrCacheMiss
	}
	return qty, nil
}

func (c *RedisCache) Put(ctx context.Context, variantID string, qty int) error {
	return c.client.Set(ctx, stockKeyPrefix+variantID, qty, stockKeyTTL).Err()
}

func (c *RedisCache) Forget(ctx context.Context, variantID string) error {
	return c.client.Del(ctx, stockKeyPrefix+variantID).Err()
}
