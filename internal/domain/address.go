package domain

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
)

// Address identifies an account or record: 64 lowercase hex characters for
// engine-owned records, or an arbitrary caller identity supplied by the
// authenticated transport.
type Address string

// Seed tags for deterministic record addresses. Any party can recompute a
// record's location from the tag plus its parent identifiers instead of
// storing it separately.
const (
	SeedDao      = "dao"
	SeedTreasury = "treasury"
	SeedProposal = "proposal"
	SeedMarket   = "market"
	SeedPosition = "position"
)

func derive(seed string, parts ...[]byte) Address {
	h := sha256.New()
	h.Write([]byte(seed))
	for _, p := range parts {
		h.Write(p)
	}
	return Address(hex.EncodeToString(h.Sum(nil)))
}

// DaoAddress returns the well-known address of the DAO singleton.
func DaoAddress() Address {
	return derive(SeedDao)
}

// TreasuryAddress returns the well-known address of the DAO treasury account.
func TreasuryAddress() Address {
	return derive(SeedTreasury)
}

// ProposalAddress derives the address of the proposal with the given id.
func ProposalAddress(id uint64) Address {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], id)
	return derive(SeedProposal, buf[:])
}

// MarketAddress derives the address of the market attached to a proposal.
func MarketAddress(proposal Address) Address {
	return derive(SeedMarket, []byte(proposal))
}

// PositionAddress derives the address of a bettor's position on a market.
func PositionAddress(market, bettor Address) Address {
	return derive(SeedPosition, []byte(market), []byte(bettor))
}
