package domain

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckedArithmetic(t *testing.T) {
	sum, err := AddU64(1, 2)
	require.NoError(t, err)
	assert.Equal(t, uint64(3), sum)

	_, err = AddU64(math.MaxUint64, 1)
	assert.ErrorIs(t, err, ErrMathOverflow)

	diff, err := SubU64(10, 4)
	require.NoError(t, err)
	assert.Equal(t, uint64(6), diff)

	_, err = SubU64(4, 10)
	assert.ErrorIs(t, err, ErrMathOverflow)
}

func TestMulDivU64(t *testing.T) {
	// The 128-bit intermediate keeps large products exact.
	q, err := MulDivU64(math.MaxUint64, 3, 4)
	require.NoError(t, err)
	assert.Equal(t, uint64(13835058055282163711), q)

	_, err = MulDivU64(1, 1, 0)
	assert.ErrorIs(t, err, ErrMathOverflow)

	_, err = MulDivU64(math.MaxUint64, 2, 1)
	assert.ErrorIs(t, err, ErrMathOverflow)
}

func TestSplitFee(t *testing.T) {
	cases := []struct {
		gross, bps, net, fee uint64
	}{
		{1000, 200, 980, 20},
		{1_000_000, 200, 980_000, 20_000},
		{99, 200, 98, 1},
		{1, 200, 1, 0},
		{1000, 0, 1000, 0},
	}
	for _, tc := range cases {
		net, fee, err := SplitFee(tc.gross, tc.bps)
		require.NoError(t, err)
		assert.Equal(t, tc.net, net, "gross=%d", tc.gross)
		assert.Equal(t, tc.fee, fee, "gross=%d", tc.gross)
		// No value unaccounted for.
		assert.Equal(t, tc.gross, net+fee)
	}

	_, _, err := SplitFee(1000, BpsDenominator)
	assert.ErrorIs(t, err, ErrMathOverflow)
}

func TestProRataPayout(t *testing.T) {
	// Worked example: stake 200 of an 800 winning pool against a 200 losing
	// pool pays 200 + floor(200*200/800) = 250.
	payout, err := ProRataPayout(200, 800, 200)
	require.NoError(t, err)
	assert.Equal(t, uint64(250), payout)

	// The entire winning pool drains both pools exactly.
	payout, err = ProRataPayout(800, 800, 200)
	require.NoError(t, err)
	assert.Equal(t, uint64(1000), payout)

	// Floor, not round, for every bettor.
	payout, err = ProRataPayout(1, 3, 100)
	require.NoError(t, err)
	assert.Equal(t, uint64(34), payout)
}

func TestYesPrice(t *testing.T) {
	m := Market{YesPool: 800, NoPool: 200}
	price, ok := m.YesPrice()
	assert.True(t, ok)
	assert.InDelta(t, 0.8, price, 1e-9)

	_, ok = Market{}.YesPrice()
	assert.False(t, ok)
}

func TestErrorCode(t *testing.T) {
	assert.Equal(t, "MARKET_CLOSED", ErrorCode(ErrMarketClosed))
	assert.Equal(t, "NOT_A_WINNER", ErrorCode(ErrNotWinner))
	assert.Equal(t, "INTERNAL", ErrorCode(assert.AnError))
}
