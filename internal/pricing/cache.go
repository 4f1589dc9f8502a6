package pricing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/josh-kwaku/crypto-transfer-ledger/internal/domain"
)

// RedisCache shares fetched prices between API replicas so only one of them
// needs to hit the remote API per TTL.
type RedisCache struct {
	client redis.UniversalClient
	prefix string
}

func NewRedisCache(client redis.UniversalClient, prefix string) *RedisCache {
	if prefix == "" {
		prefix = "ledger:price"
	}
	return &RedisCache{client: client, prefix: prefix}
}

type cachedQuote struct {
	Price decimal.Decimal `json:"price"`
	AsOf  time.Time       `json:"as_of"`
}

func (c *RedisCache) key(asset domain.Asset) string {
	return c.prefix + ":" + string(asset)
}

// Get reports false on a miss.
func (c *RedisCache) Get(ctx context.Context, asset domain.Asset) (Quote, bool, error) {
	raw, err := c.client.Get(ctx, c.key(asset)).Bytes()
	if errors.Is(err, redis.Nil) {
		return Quote{}, false, nil
	}
	if err != nil {
		return Quote{}, false, fmt.Errorf("Get: %w", err)
	}

	var cq cachedQuote
	if err := json.Unmarshal(raw, &cq); err != nil {
		return Quote{}, false, fmt.Errorf("Get: unmarshal: %w", err)
	}
	return Quote{Price: cq.Price, AsOf: cq.AsOf, Source: SourceCache}, true, nil
}

func (c *RedisCache) Set(ctx context.Context, asset domain.Asset, q Quote, ttl time.Duration) error {
	raw, err := json.Marshal(cachedQuote{Price: q.Price, AsOf: q.AsOf})
	if err != nil {
		return fmt.Errorf("Set: marshal: %w", err)
	}
	if err := c.client.Set(ctx, c.key(asset), raw, ttl).Err(); err != nil {
		return fmt.Errorf("Set: %w", err)
	}
	return nil
}
