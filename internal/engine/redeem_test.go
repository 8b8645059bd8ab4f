package engine_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Mardiprk/Mini-MetaDAO/internal/domain"
)

// settledMarket builds a fee-free market with alice 200 YES, bob 600 YES, and
// carol 200 NO, advanced past close. The YES pool is 800 and the NO pool 200,
// matching the worked pari-mutuel example.
func settledMarket(t *testing.T) (*fixture, domain.Proposal, domain.Market) {
	t.Helper()
	f := newFixture(t, feelessParams())
	ctx := context.Background()
	f.initDao()
	prop := f.createProposal(alice)
	market := f.openMarket(prop.ID, 48*time.Hour)

	for _, b := range []domain.Address{alice, bob, carol} {
		f.fund(b, 1_000_000, 0)
	}
	_, err := f.eng.BuyYes(ctx, alice, prop.ID, 200)
	require.NoError(t, err)
	_, err = f.eng.BuyYes(ctx, bob, prop.ID, 600)
	require.NoError(t, err)
	_, err = f.eng.BuyNo(ctx, carol, prop.ID, 200)
	require.NoError(t, err)

	f.advance(48 * time.Hour)
	return f, prop, market
}

func TestRedeemRequiresResolution(t *testing.T) {
	f, prop, _ := settledMarket(t)
	_, err := f.eng.Redeem(context.Background(), alice, prop.ID)
	assert.ErrorIs(t, err, domain.ErrMarketNotResolved)
}

func TestRedeemProRataSplit(t *testing.T) {
	f, prop, market := settledMarket(t)
	ctx := context.Background()

	_, err := f.eng.ResolveMarket(ctx, admin, prop.ID, true)
	require.NoError(t, err)

	// alice staked 200 of the 800 YES pool: 200 + floor(200*200/800) = 250.
	payout, err := f.eng.Redeem(ctx, alice, prop.ID)
	require.NoError(t, err)
	assert.Equal(t, uint64(250), payout)
	assert.Equal(t, uint64(1_000_000-200+250), f.nativeBalance(alice))

	// bob staked the remaining 600: 600 + floor(600*200/800) = 750.
	payout, err = f.eng.Redeem(ctx, bob, prop.ID)
	require.NoError(t, err)
	assert.Equal(t, uint64(750), payout)

	// Both pools are fully paid out; nothing is left unaccounted for.
	assert.Equal(t, uint64(0), f.nativeBalance(market.Address))
}

func TestRedeemEntirePool(t *testing.T) {
	f := newFixture(t, feelessParams())
	ctx := context.Background()
	f.initDao()
	prop := f.createProposal(alice)
	market := f.openMarket(prop.ID, 48*time.Hour)
	f.fund(alice, 10_000, 0)
	f.fund(bob, 10_000, 0)

	_, err := f.eng.BuyYes(ctx, alice, prop.ID, 800)
	require.NoError(t, err)
	_, err = f.eng.BuyNo(ctx, bob, prop.ID, 200)
	require.NoError(t, err)

	f.advance(48 * time.Hour)
	_, err = f.eng.ResolveMarket(ctx, admin, prop.ID, true)
	require.NoError(t, err)

	// The sole YES bettor drains both pools: 800 + floor(800*200/800) = 1000.
	payout, err := f.eng.Redeem(ctx, alice, prop.ID)
	require.NoError(t, err)
	assert.Equal(t, uint64(1000), payout)
	assert.Equal(t, uint64(0), f.nativeBalance(market.Address))
}

func TestRedeemLoserForfeits(t *testing.T) {
	f, prop, _ := settledMarket(t)
	ctx := context.Background()

	_, err := f.eng.ResolveMarket(ctx, admin, prop.ID, true)
	require.NoError(t, err)

	before := f.nativeBalance(carol)
	_, err = f.eng.Redeem(ctx, carol, prop.ID)
	assert.ErrorIs(t, err, domain.ErrNotWinner)
	assert.Equal(t, before, f.nativeBalance(carol))

	// Losing never transfers and never flips the redeemed flag.
	pos, err := f.ledger.Position(ctx, domain.MarketAddress(domain.ProposalAddress(prop.ID)), carol)
	require.NoError(t, err)
	assert.False(t, pos.Redeemed)
}

func TestRedeemExclusivity(t *testing.T) {
	f, prop, _ := settledMarket(t)
	ctx := context.Background()

	_, err := f.eng.ResolveMarket(ctx, admin, prop.ID, true)
	require.NoError(t, err)

	_, err = f.eng.Redeem(ctx, alice, prop.ID)
	require.NoError(t, err)

	before := f.nativeBalance(alice)
	_, err = f.eng.Redeem(ctx, alice, prop.ID)
	assert.ErrorIs(t, err, domain.ErrAlreadyRedeemed)
	assert.Equal(t, before, f.nativeBalance(alice))
}

func TestRedeemNoPosition(t *testing.T) {
	f, prop, _ := settledMarket(t)
	ctx := context.Background()

	_, err := f.eng.ResolveMarket(ctx, admin, prop.ID, false)
	require.NoError(t, err)

	_, err = f.eng.Redeem(ctx, mallory, prop.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestExecuteProposalGate(t *testing.T) {
	f, prop, _ := settledMarket(t)
	ctx := context.Background()

	// Unresolved market blocks execution for everyone.
	err := f.eng.ExecuteProposal(ctx, admin, prop.ID, alice, 100, 0)
	assert.ErrorIs(t, err, domain.ErrMarketNotResolved)

	_, err = f.eng.ResolveMarket(ctx, admin, prop.ID, true)
	require.NoError(t, err)

	err = f.eng.ExecuteProposal(ctx, mallory, prop.ID, alice, 100, 0)
	assert.ErrorIs(t, err, domain.ErrUnauthorized)

	// Treasury is empty until funded; the failure must not flip executed.
	err = f.eng.ExecuteProposal(ctx, admin, prop.ID, alice, 100, 10)
	assert.ErrorIs(t, err, domain.ErrInsufficientFunds)
	got, err := f.ledger.Proposal(ctx, prop.ID)
	require.NoError(t, err)
	assert.False(t, got.Executed)

	f.fund(domain.TreasuryAddress(), 1_000, 500)
	aliceBefore := f.nativeBalance(alice)

	err = f.eng.ExecuteProposal(ctx, admin, prop.ID, alice, 100, 10)
	require.NoError(t, err)

	assert.Equal(t, uint64(900), f.nativeBalance(domain.TreasuryAddress()))
	assert.Equal(t, aliceBefore+100, f.nativeBalance(alice))
	treasury, err := f.ledger.Balance(ctx, domain.TreasuryAddress())
	require.NoError(t, err)
	assert.Equal(t, uint64(490), treasury.Token)

	got, err = f.ledger.Proposal(ctx, prop.ID)
	require.NoError(t, err)
	assert.True(t, got.Executed)

	// Execution is one-shot.
	err = f.eng.ExecuteProposal(ctx, admin, prop.ID, alice, 100, 0)
	assert.ErrorIs(t, err, domain.ErrAlreadyExecuted)
}

func TestExecuteProposalNoOutcome(t *testing.T) {
	f, prop, _ := settledMarket(t)
	ctx := context.Background()

	_, err := f.eng.ResolveMarket(ctx, admin, prop.ID, false)
	require.NoError(t, err)

	f.fund(domain.TreasuryAddress(), 1_000, 0)

	// A NO-resolved proposal never executes.
	err = f.eng.ExecuteProposal(ctx, admin, prop.ID, alice, 100, 0)
	assert.ErrorIs(t, err, domain.ErrProposalRejected)

	err = f.eng.ExecuteProposal(ctx, admin, prop.ID, alice, 100, 0)
	assert.ErrorIs(t, err, domain.ErrProposalRejected)
}

func TestExecuteProposalWithoutMarket(t *testing.T) {
	f := newFixture(t, testParams())
	ctx := context.Background()
	f.initDao()
	prop := f.createProposal(alice)

	err := f.eng.ExecuteProposal(ctx, admin, prop.ID, alice, 0, 0)
	assert.ErrorIs(t, err, domain.ErrMarketNotResolved)
}
