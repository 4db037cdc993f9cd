package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/alanyoungcy/polytrade/internal/domain"
)

// RateLimiter is a sliding-window log over a sorted set scored by time.
// Each call records itself, then backs out if the window was already full.
type RateLimiter struct {
	c *Client
}

func NewRateLimiter(c *Client) *RateLimiter {
	return &RateLimiter{c: c}
}

// Allow reports whether one more request for key fits in the window.
func (rl *RateLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	k := rl.c.key("ratelimit:", key)
	now := time.Now()
	member := strconv.FormatInt(now.UnixMicro(), 10) + ":" + uuid.NewString()

	var card *redis.IntCmd
	_, err := rl.c.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.ZRemRangeByScore(ctx, k, "-inf", strconv.FormatInt(now.Add(-window).UnixMicro(), 10))
		p.ZAdd(ctx, k, redis.Z{Score: float64(now.UnixMicro()), Member: member})
		card = p.ZCard(ctx, k)
		p.PExpire(ctx, k, window)
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("redis: rate limit %s: %w", key, err)
	}

	if card.Val() <= int64(limit) {
		return true, nil
	}
	if err := rl.c.rdb.ZRem(ctx, k, member).Err(); err != nil {
		return false, fmt.Errorf("redis: rate limit %s: %w", key, err)
	}
	return false, nil
}

var _ domain.RateLimiter = (*RateLimiter)(nil)
