package domain

import (
	"context"
	"time"
)

// Shared state between daemons pointed at the same Redis. All of these
// are optional.

// RateLimiter admits at most limit calls per key within window.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

// LockManager hands out exclusive, expiring locks. Acquire returns
// ErrLockHeld when another holder has key.
type LockManager interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (unlock func(), err error)
}

// SignalBus fans payloads out to every subscriber of a channel. Subscribe
// channels close when ctx ends.
type SignalBus interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
}

// MarketCache holds backend market lookups briefly. Misses are ErrNotFound.
type MarketCache interface {
	Set(ctx context.Context, market Market) error
	Get(ctx context.Context, id string) (Market, error)
	GetByToken(ctx context.Context, tokenID string) (Market, error)
}
