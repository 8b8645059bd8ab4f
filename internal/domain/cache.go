package domain

import (
	"context"
	"time"
)

// MarketCache is a read-through cache for market snapshots. Get returns
// ErrNotFound on a miss; callers fall back to the ledger.
type MarketCache interface {
	Get(ctx context.Context, addr Address) (Market, error)
	Set(ctx context.Context, m Market) error
	Invalidate(ctx context.Context, addr Address) error
}

// LockManager hands out mutual-exclusion locks keyed by record address so
// concurrently submitted instructions touching the same record are serialized.
// Acquire returns an unlock function, or ErrLockHeld when another holder owns
// the key.
type LockManager interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error)
}

// SignalBus is ephemeral pub/sub plus a durable ordered stream for settlement
// events.
type SignalBus interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
	StreamAppend(ctx context.Context, stream string, payload []byte) error
}

// RateLimiter throttles callers per key.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}
