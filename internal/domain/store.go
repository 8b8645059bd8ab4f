package domain

import (
	"context"
	"time"
)

// ListOpts provides pagination for list queries.
type ListOpts struct {
	Limit  int
	Offset int
}

// Ledger is keyed access to the five record kinds. Lookups return ErrNotFound
// for absent records; callers treat that as a legitimate state (a market not
// yet opened, a bettor with no position). Balance lookups return a zero-value
// balance instead, since every address implicitly owns an empty account.
type Ledger interface {
	Dao(ctx context.Context) (Dao, error)
	PutDao(ctx context.Context, d Dao) error

	Proposal(ctx context.Context, id uint64) (Proposal, error)
	PutProposal(ctx context.Context, p Proposal) error
	ListProposals(ctx context.Context, opts ListOpts) ([]Proposal, error)

	Market(ctx context.Context, addr Address) (Market, error)
	MarketByProposal(ctx context.Context, proposal Address) (Market, error)
	PutMarket(ctx context.Context, m Market) error
	ListSettledMarkets(ctx context.Context, before time.Time) ([]Market, error)

	Position(ctx context.Context, market, bettor Address) (Position, error)
	PutPosition(ctx context.Context, p Position) error
	ListPositions(ctx context.Context, market Address) ([]Position, error)

	Balance(ctx context.Context, owner Address) (Balance, error)
	PutBalance(ctx context.Context, b Balance) error
}

// LedgerStore is a Ledger that can also run a function atomically: every write
// made through the ledger passed to fn is applied in full when fn returns nil
// and discarded entirely when it returns an error. Instructions validate
// against freshly loaded state inside the transaction, so no partial effects
// ever survive a failure.
type LedgerStore interface {
	Ledger
	InTx(ctx context.Context, fn func(tx Ledger) error) error
}

// AuditEntry is a single append-only audit row.
type AuditEntry struct {
	ID        int64
	Event     string
	Detail    map[string]any
	CreatedAt time.Time
}

// AuditStore persists an append-only audit log of accepted instructions.
type AuditStore interface {
	Log(ctx context.Context, event string, detail map[string]any) error
	List(ctx context.Context, opts ListOpts) ([]AuditEntry, error)
}
