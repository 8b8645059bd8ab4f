package domain

import "time"

// Balance is the transferable holdings of an address: native minor units plus
// governance-token units. Market vaults and the treasury are balances like any
// other account; the engine moves value between them and never mints it.
type Balance struct {
	Owner     Address
	Native    uint64
	Token     uint64
	UpdatedAt time.Time
}
