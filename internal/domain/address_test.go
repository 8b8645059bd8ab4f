package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAddressDeterminism(t *testing.T) {
	// Any party must be able to recompute a record's address from the seed
	// tag plus parent identifiers alone.
	assert.Equal(t, DaoAddress(), DaoAddress())
	assert.Equal(t, ProposalAddress(7), ProposalAddress(7))
	assert.NotEqual(t, ProposalAddress(7), ProposalAddress(8))
	assert.NotEqual(t, DaoAddress(), TreasuryAddress())

	prop := ProposalAddress(0)
	market := MarketAddress(prop)
	assert.Equal(t, market, MarketAddress(prop))
	assert.NotEqual(t, market, MarketAddress(ProposalAddress(1)))

	assert.Equal(t, PositionAddress(market, "alice"), PositionAddress(market, "alice"))
	assert.NotEqual(t, PositionAddress(market, "alice"), PositionAddress(market, "bob"))
}

func TestAddressLength(t *testing.T) {
	for _, a := range []Address{DaoAddress(), TreasuryAddress(), ProposalAddress(42)} {
		assert.Len(t, string(a), 64)
	}
}
