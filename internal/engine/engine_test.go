package engine_test

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Mardiprk/Mini-MetaDAO/internal/domain"
	"github.com/Mardiprk/Mini-MetaDAO/internal/engine"
	"github.com/Mardiprk/Mini-MetaDAO/internal/store/memory"
)

const (
	admin   = domain.Address("admin-wallet")
	mint    = domain.Address("gov-mint")
	alice   = domain.Address("alice")
	bob     = domain.Address("bob")
	carol   = domain.Address("carol")
	mallory = domain.Address("mallory")
)

// fixture wires an engine over a fresh in-memory ledger with a controllable
// clock.
type fixture struct {
	t      *testing.T
	ledger *memory.Ledger
	eng    *engine.Engine
	clock  time.Time
}

func newFixture(t *testing.T, params engine.Params) *fixture {
	t.Helper()
	f := &fixture{
		t:      t,
		ledger: memory.NewLedger(),
		clock:  time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	f.eng = engine.New(f.ledger, params, func() time.Time { return f.clock }, logger)
	return f
}

// testParams keeps the worked examples small: no minimum-bet friction beyond
// 100 units and a 2% fee.
func testParams() engine.Params {
	return engine.Params{
		FeeBps:      200,
		MinBet:      100,
		MinDuration: time.Hour,
		MaxDuration: 7 * 24 * time.Hour,
	}
}

// feelessParams removes the fee so pool arithmetic matches the pari-mutuel
// payout examples exactly.
func feelessParams() engine.Params {
	p := testParams()
	p.FeeBps = 0
	return p
}

func (f *fixture) advance(d time.Duration) {
	f.clock = f.clock.Add(d)
}

func (f *fixture) initDao() domain.Dao {
	f.t.Helper()
	dao, err := f.eng.InitializeDao(context.Background(), admin, mint)
	require.NoError(f.t, err)
	return dao
}

func (f *fixture) fund(target domain.Address, native, token uint64) {
	f.t.Helper()
	_, err := f.eng.FundAccount(context.Background(), admin, target, native, token)
	require.NoError(f.t, err)
}

func (f *fixture) createProposal(creator domain.Address) domain.Proposal {
	f.t.Helper()
	prop, err := f.eng.CreateProposal(context.Background(), creator, "move treasury funds to grants")
	require.NoError(f.t, err)
	return prop
}

func (f *fixture) openMarket(proposalID uint64, dur time.Duration) domain.Market {
	f.t.Helper()
	market, err := f.eng.OpenMarket(context.Background(), alice, proposalID, dur)
	require.NoError(f.t, err)
	return market
}

func (f *fixture) nativeBalance(owner domain.Address) uint64 {
	f.t.Helper()
	bal, err := f.ledger.Balance(context.Background(), owner)
	require.NoError(f.t, err)
	return bal.Native
}

func (f *fixture) market(addr domain.Address) domain.Market {
	f.t.Helper()
	m, err := f.ledger.Market(context.Background(), addr)
	require.NoError(f.t, err)
	return m
}

func TestInitializeDao(t *testing.T) {
	f := newFixture(t, testParams())
	ctx := context.Background()

	// Instructions before initialization fail with the structural sentinel.
	_, err := f.eng.CreateProposal(ctx, alice, "too early")
	assert.ErrorIs(t, err, domain.ErrNotInitialized)

	dao := f.initDao()
	assert.Equal(t, domain.DaoAddress(), dao.Address)
	assert.Equal(t, admin, dao.Admin)
	assert.Equal(t, domain.TreasuryAddress(), dao.Treasury)
	assert.Equal(t, mint, dao.GovernanceMint)
	assert.Zero(t, dao.ProposalCount)

	_, err = f.eng.InitializeDao(ctx, mallory, mint)
	assert.ErrorIs(t, err, domain.ErrAlreadyInitialized)

	// The admin is immutable: the failed replay must not have changed it.
	got, err := f.ledger.Dao(ctx)
	require.NoError(t, err)
	assert.Equal(t, admin, got.Admin)
}

func TestCreateProposal(t *testing.T) {
	f := newFixture(t, testParams())
	ctx := context.Background()
	f.initDao()

	first := f.createProposal(alice)
	second := f.createProposal(bob)

	assert.Equal(t, uint64(0), first.ID)
	assert.Equal(t, uint64(1), second.ID)
	assert.Equal(t, domain.ProposalAddress(0), first.Address)
	assert.False(t, first.Executed)
	assert.False(t, first.HasMarket())

	dao, err := f.ledger.Dao(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), dao.ProposalCount)

	long := make([]byte, domain.MaxDescriptionLen+1)
	for i := range long {
		long[i] = 'x'
	}
	_, err = f.eng.CreateProposal(ctx, alice, string(long))
	assert.ErrorIs(t, err, domain.ErrDescriptionTooLong)
}

func TestOpenMarket(t *testing.T) {
	f := newFixture(t, testParams())
	ctx := context.Background()
	f.initDao()
	prop := f.createProposal(alice)

	_, err := f.eng.OpenMarket(ctx, alice, prop.ID, 10*time.Minute)
	assert.ErrorIs(t, err, domain.ErrInvalidDuration)
	_, err = f.eng.OpenMarket(ctx, alice, prop.ID, 30*24*time.Hour)
	assert.ErrorIs(t, err, domain.ErrInvalidDuration)
	_, err = f.eng.OpenMarket(ctx, alice, 99, 48*time.Hour)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	market := f.openMarket(prop.ID, 48*time.Hour)
	assert.Equal(t, domain.MarketAddress(prop.Address), market.Address)
	assert.Equal(t, f.clock.Add(48*time.Hour), market.ClosesAt)
	assert.Zero(t, market.YesPool)
	assert.Zero(t, market.NoPool)
	assert.False(t, market.Resolved)

	updated, err := f.ledger.Proposal(ctx, prop.ID)
	require.NoError(t, err)
	assert.Equal(t, market.Address, updated.Market)

	_, err = f.eng.OpenMarket(ctx, bob, prop.ID, 48*time.Hour)
	assert.ErrorIs(t, err, domain.ErrMarketAlreadyOpen)
}

func TestDepositFeeSplit(t *testing.T) {
	f := newFixture(t, testParams())
	ctx := context.Background()
	f.initDao()
	prop := f.createProposal(alice)
	market := f.openMarket(prop.ID, 48*time.Hour)
	f.fund(alice, 10_000, 0)

	pos, err := f.eng.BuyYes(ctx, alice, prop.ID, 1000)
	require.NoError(t, err)

	// A deposit of 1000 at 2% splits into exactly 20 fee + 980 net.
	assert.Equal(t, uint64(980), pos.Amount)
	assert.True(t, pos.IsYes)

	m := f.market(market.Address)
	assert.Equal(t, uint64(980), m.YesPool)
	assert.Equal(t, uint64(0), m.NoPool)
	assert.Equal(t, uint64(20), m.FeePool)

	assert.Equal(t, uint64(9_000), f.nativeBalance(alice))
	assert.Equal(t, uint64(1000), f.nativeBalance(market.Address))
}

func TestDepositPreconditions(t *testing.T) {
	f := newFixture(t, testParams())
	ctx := context.Background()
	f.initDao()
	prop := f.createProposal(alice)

	// No market opened yet: record-not-found is the legitimate answer.
	_, err := f.eng.BuyYes(ctx, alice, prop.ID, 1000)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	market := f.openMarket(prop.ID, 48*time.Hour)

	_, err = f.eng.BuyYes(ctx, alice, prop.ID, 99)
	assert.ErrorIs(t, err, domain.ErrBetTooSmall)

	_, err = f.eng.BuyYes(ctx, alice, prop.ID, 1000)
	assert.ErrorIs(t, err, domain.ErrInsufficientFunds)

	f.fund(alice, 10_000, 0)
	_, err = f.eng.BuyYes(ctx, alice, prop.ID, 1000)
	require.NoError(t, err)

	// Betting at the close instant is already late.
	f.advance(48 * time.Hour)
	_, err = f.eng.BuyYes(ctx, alice, prop.ID, 1000)
	assert.ErrorIs(t, err, domain.ErrMarketClosed)

	_, err = f.eng.ResolveMarket(ctx, admin, prop.ID, true)
	require.NoError(t, err)
	_, err = f.eng.BuyYes(ctx, alice, prop.ID, 1000)
	assert.ErrorIs(t, err, domain.ErrMarketAlreadyResolved)

	// The failed attempts left the pools untouched.
	m := f.market(market.Address)
	assert.Equal(t, uint64(980), m.YesPool)
	assert.Equal(t, uint64(20), m.FeePool)
}

func TestDepositPositionUpsert(t *testing.T) {
	f := newFixture(t, testParams())
	ctx := context.Background()
	f.initDao()
	prop := f.createProposal(alice)
	market := f.openMarket(prop.ID, 48*time.Hour)
	f.fund(alice, 100_000, 0)

	first, err := f.eng.BuyYes(ctx, alice, prop.ID, 1000)
	require.NoError(t, err)
	second, err := f.eng.BuyYes(ctx, alice, prop.ID, 500)
	require.NoError(t, err)

	// Same-side deposits accumulate into one record.
	assert.Equal(t, first.Address, second.Address)
	assert.Equal(t, uint64(980+490), second.Amount)

	positions, err := f.ledger.ListPositions(ctx, market.Address)
	require.NoError(t, err)
	assert.Len(t, positions, 1)

	// A bettor cannot hold both sides of one market.
	_, err = f.eng.BuyNo(ctx, alice, prop.ID, 1000)
	assert.ErrorIs(t, err, domain.ErrSideMismatch)

	m := f.market(market.Address)
	assert.Equal(t, uint64(1470), m.YesPool)
	assert.Equal(t, uint64(0), m.NoPool)
}

func TestPoolConservation(t *testing.T) {
	f := newFixture(t, testParams())
	ctx := context.Background()
	f.initDao()
	prop := f.createProposal(alice)
	market := f.openMarket(prop.ID, 48*time.Hour)

	for _, b := range []domain.Address{alice, bob, carol} {
		f.fund(b, 1_000_000, 0)
	}

	_, err := f.eng.BuyYes(ctx, alice, prop.ID, 1234)
	require.NoError(t, err)
	_, err = f.eng.BuyNo(ctx, bob, prop.ID, 5678)
	require.NoError(t, err)
	_, err = f.eng.BuyYes(ctx, carol, prop.ID, 999)
	require.NoError(t, err)
	_, err = f.eng.BuyYes(ctx, alice, prop.ID, 777)
	require.NoError(t, err)

	m := f.market(market.Address)
	positions, err := f.ledger.ListPositions(ctx, market.Address)
	require.NoError(t, err)

	var stakes, gross uint64
	for _, p := range positions {
		require.False(t, p.Redeemed)
		stakes += p.Amount
	}
	gross = 1234 + 5678 + 999 + 777

	// yesPool + noPool equals the sum of all live position stakes, and the
	// vault holds every deposited unit: gross == pools + fees.
	assert.Equal(t, stakes, m.YesPool+m.NoPool)
	assert.Equal(t, gross, m.YesPool+m.NoPool+m.FeePool)
	assert.Equal(t, gross, f.nativeBalance(market.Address))
}

func TestResolveMarket(t *testing.T) {
	f := newFixture(t, testParams())
	ctx := context.Background()
	f.initDao()
	prop := f.createProposal(alice)
	f.openMarket(prop.ID, 48*time.Hour)

	_, err := f.eng.ResolveMarket(ctx, admin, prop.ID, true)
	assert.ErrorIs(t, err, domain.ErrMarketStillActive)

	f.advance(48 * time.Hour)

	_, err = f.eng.ResolveMarket(ctx, mallory, prop.ID, true)
	assert.ErrorIs(t, err, domain.ErrUnauthorized)

	market, err := f.eng.ResolveMarket(ctx, admin, prop.ID, true)
	require.NoError(t, err)
	assert.True(t, market.Resolved)
	assert.True(t, market.OutcomeYes)

	_, err = f.eng.ResolveMarket(ctx, admin, prop.ID, false)
	assert.ErrorIs(t, err, domain.ErrMarketAlreadyResolved)
}

func TestFundAccount(t *testing.T) {
	f := newFixture(t, testParams())
	ctx := context.Background()
	f.initDao()

	_, err := f.eng.FundAccount(ctx, mallory, alice, 1000, 0)
	assert.ErrorIs(t, err, domain.ErrUnauthorized)

	bal, err := f.eng.FundAccount(ctx, admin, alice, 1000, 50)
	require.NoError(t, err)
	assert.Equal(t, uint64(1000), bal.Native)
	assert.Equal(t, uint64(50), bal.Token)

	bal, err = f.eng.FundAccount(ctx, admin, alice, 500, 0)
	require.NoError(t, err)
	assert.Equal(t, uint64(1500), bal.Native)
}
