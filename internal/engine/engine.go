// Package engine implements the futarchy settlement engine: the account state
// machine governing DAO registration, proposal lifecycle, market pool
// economics, position accounting, resolution, and payout redemption.
//
// Every instruction is a finite, terminating computation executed atomically
// against the ledger: all preconditions are checked against freshly loaded
// record state before any mutation, and either every write applies or none
// does. The engine assumes the caller identity has already been authenticated
// by the transport.
package engine

import (
	"log/slog"
	"time"

	"github.com/Mardiprk/Mini-MetaDAO/internal/domain"
)

// Economic and lifecycle parameters.
const (
	DefaultFeeBps      = 200           // 2%
	DefaultMinBet      = 1_000_000     // 0.001 unit in minor units
	DefaultMinDuration = 24 * time.Hour
	DefaultMaxDuration = 7 * 24 * time.Hour
)

// Params holds the tunable economic parameters of the engine.
type Params struct {
	FeeBps      uint64
	MinBet      uint64
	MinDuration time.Duration
	MaxDuration time.Duration
}

// DefaultParams returns the production defaults.
func DefaultParams() Params {
	return Params{
		FeeBps:      DefaultFeeBps,
		MinBet:      DefaultMinBet,
		MinDuration: DefaultMinDuration,
		MaxDuration: DefaultMaxDuration,
	}
}

// Clock supplies the engine's notion of current time. Injected so close-time
// enforcement is testable.
type Clock func() time.Time

// Engine executes settlement instructions against a ledger.
type Engine struct {
	ledger domain.LedgerStore
	params Params
	now    Clock
	logger *slog.Logger
}

// New creates an Engine. A nil clock defaults to time.Now and a nil logger to
// slog.Default.
func New(ledger domain.LedgerStore, params Params, clock Clock, logger *slog.Logger) *Engine {
	if clock == nil {
		clock = time.Now
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		ledger: ledger,
		params: params,
		now:    clock,
		logger: logger.With(slog.String("component", "engine")),
	}
}

// Params returns the engine's economic parameters.
func (e *Engine) Params() Params {
	return e.params
}
