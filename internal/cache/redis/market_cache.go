package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Mardiprk/Mini-MetaDAO/internal/domain"
)

const marketTTL = 5 * time.Minute

// MarketCache implements domain.MarketCache using Redis hashes with JSON-
// serialized Market data and a secondary proposal-to-market index.
//
// Key schema:
//
//	market:{address}           - hash with field "data" containing JSON
//	market:proposal:{address}  - string value of the market address
type MarketCache struct {
	rdb *redis.Client
}

// NewMarketCache creates a MarketCache backed by the given Client.
func NewMarketCache(c *Client) *MarketCache {
	return &MarketCache{rdb: c.Underlying()}
}

func marketKey(addr domain.Address) string         { return "market:" + string(addr) }
func marketProposalKey(addr domain.Address) string { return "market:proposal:" + string(addr) }

// Set stores a Market in the cache with a 5-minute TTL and indexes it by its
// proposal address.
func (mc *MarketCache) Set(ctx context.Context, market domain.Market) error {
	data, err := json.Marshal(market)
	if err != nil {
		return fmt.Errorf("redis: marshal market %s: %w", market.Address, err)
	}

	key := marketKey(market.Address)

	pipe := mc.rdb.TxPipeline()
	pipe.HSet(ctx, key, "data", data)
	pipe.Expire(ctx, key, marketTTL)
	pipe.Set(ctx, marketProposalKey(market.Proposal), string(market.Address), marketTTL)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis: set market %s: %w", market.Address, err)
	}
	return nil
}

// Get retrieves a Market by its address from the cache.
// It returns domain.ErrNotFound when the key does not exist.
func (mc *MarketCache) Get(ctx context.Context, addr domain.Address) (domain.Market, error) {
	data, err := mc.rdb.HGet(ctx, marketKey(addr), "data").Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.Market{}, domain.ErrNotFound
		}
		return domain.Market{}, fmt.Errorf("redis: get market %s: %w", addr, err)
	}

	var market domain.Market
	if err := json.Unmarshal(data, &market); err != nil {
		return domain.Market{}, fmt.Errorf("redis: unmarshal market %s: %w", addr, err)
	}
	return market, nil
}

// GetByProposal looks up a Market by its proposal address.
// It returns domain.ErrNotFound if the index entry or market does not exist.
func (mc *MarketCache) GetByProposal(ctx context.Context, proposal domain.Address) (domain.Market, error) {
	addr, err := mc.rdb.Get(ctx, marketProposalKey(proposal)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.Market{}, domain.ErrNotFound
		}
		return domain.Market{}, fmt.Errorf("redis: get market by proposal %s: %w", proposal, err)
	}

	return mc.Get(ctx, domain.Address(addr))
}

// Invalidate removes a Market and its proposal index entry from the cache.
func (mc *MarketCache) Invalidate(ctx context.Context, addr domain.Address) error {
	market, err := mc.Get(ctx, addr)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return fmt.Errorf("redis: invalidate market %s: %w", addr, err)
	}

	pipe := mc.rdb.TxPipeline()
	pipe.Del(ctx, marketKey(addr))

	// Only delete the index entry if we successfully read the market.
	if err == nil {
		pipe.Del(ctx, marketProposalKey(market.Proposal))
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis: invalidate market %s: %w", addr, err)
	}
	return nil
}

// Compile-time interface check.
var _ domain.MarketCache = (*MarketCache)(nil)
