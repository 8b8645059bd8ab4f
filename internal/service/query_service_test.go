package service_test

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Mardiprk/Mini-MetaDAO/internal/domain"
	"github.com/Mardiprk/Mini-MetaDAO/internal/service"
	"github.com/Mardiprk/Mini-MetaDAO/internal/store/memory"
)

// fakeCache is an in-memory domain.MarketCache that counts hits and misses.
type fakeCache struct {
	markets map[domain.Address]domain.Market
	sets    int
}

func newFakeCache() *fakeCache {
	return &fakeCache{markets: make(map[domain.Address]domain.Market)}
}

func (c *fakeCache) Get(_ context.Context, addr domain.Address) (domain.Market, error) {
	m, ok := c.markets[addr]
	if !ok {
		return domain.Market{}, domain.ErrNotFound
	}
	return m, nil
}

func (c *fakeCache) Set(_ context.Context, m domain.Market) error {
	c.markets[m.Address] = m
	c.sets++
	return nil
}

func (c *fakeCache) Invalidate(_ context.Context, addr domain.Address) error {
	delete(c.markets, addr)
	return nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// seedMarket writes a proposal with an attached market straight into the
// ledger.
func seedMarket(t *testing.T, ledger *memory.Ledger) (domain.Proposal, domain.Market) {
	t.Helper()
	ctx := context.Background()

	prop := domain.Proposal{
		Address: domain.ProposalAddress(1),
		ID:      1,
		Creator: "alice",
	}
	market := domain.Market{
		Address:  domain.MarketAddress(prop.Address),
		Proposal: prop.Address,
		YesPool:  500,
		NoPool:   300,
		ClosesAt: time.Date(2026, 3, 3, 12, 0, 0, 0, time.UTC),
	}
	prop.Market = market.Address

	require.NoError(t, ledger.PutProposal(ctx, prop))
	require.NoError(t, ledger.PutMarket(ctx, market))
	return prop, market
}

func TestGetMarketBackfillsCache(t *testing.T) {
	ctx := context.Background()
	ledger := memory.NewLedger()
	cache := newFakeCache()
	qs := service.NewQueryService(ledger, cache, nil, discardLogger())

	_, market := seedMarket(t, ledger)

	got, err := qs.GetMarket(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, market.Address, got.Address)

	// The miss went to the ledger and the snapshot was written back.
	assert.Equal(t, 1, cache.sets)
	cached, ok := cache.markets[market.Address]
	require.True(t, ok)
	assert.Equal(t, uint64(500), cached.YesPool)
}

func TestGetMarketPrefersCache(t *testing.T) {
	ctx := context.Background()
	ledger := memory.NewLedger()
	cache := newFakeCache()
	qs := service.NewQueryService(ledger, cache, nil, discardLogger())

	_, market := seedMarket(t, ledger)

	// A cached snapshot with different pools proves the ledger was skipped.
	snapshot := market
	snapshot.YesPool = 9999
	cache.markets[market.Address] = snapshot

	got, err := qs.GetMarket(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, uint64(9999), got.YesPool)
	assert.Equal(t, 0, cache.sets)
}

func TestGetMarketNoMarket(t *testing.T) {
	ctx := context.Background()
	ledger := memory.NewLedger()
	qs := service.NewQueryService(ledger, nil, nil, discardLogger())

	require.NoError(t, ledger.PutProposal(ctx, domain.Proposal{
		Address: domain.ProposalAddress(1),
		ID:      1,
		Creator: "alice",
	}))

	_, err := qs.GetMarket(ctx, 1)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = qs.GetMarket(ctx, 42)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestGetPosition(t *testing.T) {
	ctx := context.Background()
	ledger := memory.NewLedger()
	qs := service.NewQueryService(ledger, nil, nil, discardLogger())

	_, market := seedMarket(t, ledger)
	pos := domain.Position{
		Address: domain.PositionAddress(market.Address, "bob"),
		Market:  market.Address,
		Bettor:  "bob",
		Amount:  300,
	}
	require.NoError(t, ledger.PutPosition(ctx, pos))

	got, err := qs.GetPosition(ctx, 1, "bob")
	require.NoError(t, err)
	assert.Equal(t, pos.Address, got.Address)

	_, err = qs.GetPosition(ctx, 1, "nobody")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestListAuditWithoutStore(t *testing.T) {
	qs := service.NewQueryService(memory.NewLedger(), nil, nil, discardLogger())

	entries, err := qs.ListAudit(context.Background(), domain.ListOpts{Limit: 10})
	require.NoError(t, err)
	assert.Nil(t, entries)
}
