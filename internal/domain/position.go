package domain

import "time"

// Position is a bettor's stake on one side of a market. At most one position
// exists per (market, bettor) pair: repeat same-side deposits accumulate into
// Amount, and an opposite-side deposit is rejected outright. Amount is net of
// the deposit fee. Redeemed flips one way on payout.
type Position struct {
	Address   Address
	Market    Address
	Bettor    Address
	Amount    uint64
	IsYes     bool
	Redeemed  bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Side returns the position's side as a BetSide.
func (p Position) Side() BetSide {
	if p.IsYes {
		return BetSideYes
	}
	return BetSideNo
}
