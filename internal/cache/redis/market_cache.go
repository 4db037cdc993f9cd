package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/alanyoungcy/polytrade/internal/domain"
	"github.com/redis/go-redis/v9"
)

const defaultMarketTTL = time.Minute

// MarketCache keeps backend market lookups for a short TTL.
//
// Key schema:
//
//	market:{id}            - JSON market
//	market:token:{tokenID} - market id
type MarketCache struct {
	c   *Client
	ttl time.Duration
}

// NewMarketCache creates a MarketCache; ttl <= 0 uses one minute.
func NewMarketCache(c *Client, ttl time.Duration) *MarketCache {
	if ttl <= 0 {
		ttl = defaultMarketTTL
	}
	return &MarketCache{c: c, ttl: ttl}
}

// Set stores market and indexes its token IDs.
func (mc *MarketCache) Set(ctx context.Context, market domain.Market) error {
	data, err := json.Marshal(market)
	if err != nil {
		return fmt.Errorf("redis: marshal market %s: %w", market.ID, err)
	}

	pipe := mc.c.rdb.TxPipeline()
	pipe.Set(ctx, mc.c.key("market:", market.ID), data, mc.ttl)
	for _, tokenID := range market.TokenIDs {
		if tokenID == "" {
			continue
		}
		pipe.Set(ctx, mc.c.key("market:token:", tokenID), market.ID, mc.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis: set market %s: %w", market.ID, err)
	}
	return nil
}

// Get returns domain.ErrNotFound on a miss.
func (mc *MarketCache) Get(ctx context.Context, id string) (domain.Market, error) {
	data, err := mc.c.rdb.Get(ctx, mc.c.key("market:", id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.Market{}, domain.ErrNotFound
		}
		return domain.Market{}, fmt.Errorf("redis: get market %s: %w", id, err)
	}

	var market domain.Market
	if err := json.Unmarshal(data, &market); err != nil {
		return domain.Market{}, fmt.Errorf("redis: unmarshal market %s: %w", id, err)
	}
	return market, nil
}

// GetByToken looks a market up by one of its outcome token IDs.
func (mc *MarketCache) GetByToken(ctx context.Context, tokenID string) (domain.Market, error) {
	id, err := mc.c.rdb.Get(ctx, mc.c.key("market:token:", tokenID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.Market{}, domain.ErrNotFound
		}
		return domain.Market{}, fmt.Errorf("redis: get market by token %s: %w", tokenID, err)
	}
	return mc.Get(ctx, id)
}

var _ domain.MarketCache = (*MarketCache)(nil)
