package domain

import "time"

// Dao is the singleton governance record: the administrator identity, the
// treasury account spendable only through proposal execution, the governance
// token mint, and a monotonically increasing proposal counter.
type Dao struct {
	Address        Address
	Admin          Address
	Treasury       Address
	GovernanceMint Address
	ProposalCount  uint64
	CreatedAt      time.Time
	UpdatedAt      time.Time
}
