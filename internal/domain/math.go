package domain

import "math/bits"

// BpsDenominator is the basis-point scale for fee rates.
const BpsDenominator = 10_000

// AddU64 returns a+b or ErrMathOverflow instead of wrapping.
func AddU64(a, b uint64) (uint64, error) {
	sum, carry := bits.Add64(a, b, 0)
	if carry != 0 {
		return 0, ErrMathOverflow
	}
	return sum, nil
}

// SubU64 returns a-b or ErrMathOverflow on underflow.
func SubU64(a, b uint64) (uint64, error) {
	diff, borrow := bits.Sub64(a, b, 0)
	if borrow != 0 {
		return 0, ErrMathOverflow
	}
	return diff, nil
}

// MulDivU64 computes floor(a*b/div) using a 128-bit intermediate so the
// product never truncates. It returns ErrMathOverflow when div is zero or the
// quotient exceeds 64 bits.
func MulDivU64(a, b, div uint64) (uint64, error) {
	if div == 0 {
		return 0, ErrMathOverflow
	}
	hi, lo := bits.Mul64(a, b)
	if hi >= div {
		return 0, ErrMathOverflow
	}
	q, _ := bits.Div64(hi, lo, div)
	return q, nil
}

// SplitFee splits a gross deposit into the net stake and the extracted fee at
// the given basis-point rate. The split is exact: gross == net + fee.
func SplitFee(gross, feeBps uint64) (net, fee uint64, err error) {
	if feeBps >= BpsDenominator {
		return 0, 0, ErrMathOverflow
	}
	fee, err = MulDivU64(gross, feeBps, BpsDenominator)
	if err != nil {
		return 0, 0, err
	}
	net, err = SubU64(gross, fee)
	if err != nil {
		return 0, 0, err
	}
	return net, fee, nil
}

// ProRataPayout computes the pari-mutuel payout for a winning stake: the stake
// back plus floor(stake*losing/winning). The floor applies identically to
// every bettor.
func ProRataPayout(stake, winning, losing uint64) (uint64, error) {
	share, err := MulDivU64(stake, losing, winning)
	if err != nil {
		return 0, err
	}
	return AddU64(stake, share)
}
