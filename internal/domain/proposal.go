package domain

import "time"

// MaxDescriptionLen bounds proposal descriptions, matching the record's fixed
// storage allocation.
const MaxDescriptionLen = 200

// Proposal is a community proposal. Its fate is decided by the prediction
// market attached to it, not by direct voting; Executed flips one way once the
// treasury action has been carried out.
type Proposal struct {
	Address     Address
	ID          uint64
	Creator     Address
	Description string
	Market      Address // empty until a market is opened
	Executed    bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// HasMarket reports whether a market has been opened for this proposal.
func (p Proposal) HasMarket() bool {
	return p.Market != ""
}
