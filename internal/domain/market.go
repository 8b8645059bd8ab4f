package domain

import "time"

// BetSide is the side of a binary market a deposit backs.
type BetSide string

const (
	BetSideYes BetSide = "yes"
	BetSideNo  BetSide = "no"
)

// ParseBetSide converts a wire string into a BetSide.
func ParseBetSide(s string) (BetSide, error) {
	switch BetSide(s) {
	case BetSideYes, BetSideNo:
		return BetSide(s), nil
	default:
		return "", ErrInvalidArgument
	}
}

// IsYes reports whether the side is YES.
func (s BetSide) IsYes() bool { return s == BetSideYes }

// Market is the pari-mutuel prediction market attached to a proposal. Pool
// values are native minor units. YesPool+NoPool always equals the sum of all
// non-redeemed position stakes; FeePool only ever grows. Once Resolved flips,
// the pools freeze and OutcomeYes becomes meaningful.
type Market struct {
	Address    Address
	Proposal   Address
	YesPool    uint64
	NoPool     uint64
	FeePool    uint64
	ClosesAt   time.Time
	Resolved   bool
	OutcomeYes bool
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// IsClosed reports whether the deposit window has ended at the given time.
// Deposits are rejected at the close instant, not only after it.
func (m Market) IsClosed(now time.Time) bool {
	return !now.Before(m.ClosesAt)
}

// YesPrice returns the implied probability of YES as yesPool/(yesPool+noPool).
// It reports false while both pools are empty. The price is a pure ratio --
// deposits move it for future observers but never reprice existing stakes.
func (m Market) YesPrice() (float64, bool) {
	total := m.YesPool + m.NoPool
	if total == 0 {
		return 0, false
	}
	return float64(m.YesPool) / float64(total), true
}

// Pools returns the winning and losing pool totals for the resolved outcome.
func (m Market) Pools() (winning, losing uint64) {
	if m.OutcomeYes {
		return m.YesPool, m.NoPool
	}
	return m.NoPool, m.YesPool
}
