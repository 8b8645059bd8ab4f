package domain

import "errors"

// Settlement failures form a closed taxonomy. Every precondition violation is
// signaled with its own sentinel; the engine never degrades a specific failure
// into a generic one.
var (
	ErrNotFound              = errors.New("not found")
	ErrNotInitialized        = errors.New("dao not initialized")
	ErrAlreadyInitialized    = errors.New("dao already initialized")
	ErrUnauthorized          = errors.New("unauthorized action")
	ErrMarketClosed          = errors.New("market is already closed")
	ErrMarketStillActive     = errors.New("market is still active")
	ErrMarketAlreadyResolved = errors.New("market already resolved")
	ErrMarketNotResolved     = errors.New("market not yet resolved")
	ErrMarketAlreadyOpen     = errors.New("market already open")
	ErrInvalidDuration       = errors.New("invalid market duration")
	ErrBetTooSmall           = errors.New("bet amount too small")
	ErrInsufficientFunds     = errors.New("insufficient funds")
	ErrAlreadyExecuted       = errors.New("proposal already executed")
	ErrProposalRejected      = errors.New("proposal rejected by market")
	ErrInvalidOutcome        = errors.New("invalid outcome")
	ErrMathOverflow          = errors.New("math overflow")
	ErrSideMismatch          = errors.New("position is on the opposite side")
	ErrAlreadyRedeemed       = errors.New("position already redeemed")
	ErrNotWinner             = errors.New("position is not on the winning side")
	ErrDescriptionTooLong    = errors.New("description too long")
	ErrInvalidArgument       = errors.New("invalid argument")
	ErrLockHeld              = errors.New("lock already held")
)

// errorCodes assigns a stable wire code to each sentinel. Transport layers map
// codes to human-readable text; the codes themselves never change.
var errorCodes = []struct {
	err  error
	code string
}{
	{ErrNotFound, "NOT_FOUND"},
	{ErrNotInitialized, "NOT_INITIALIZED"},
	{ErrAlreadyInitialized, "ALREADY_INITIALIZED"},
	{ErrUnauthorized, "UNAUTHORIZED"},
	{ErrMarketClosed, "MARKET_CLOSED"},
	{ErrMarketStillActive, "MARKET_STILL_ACTIVE"},
	{ErrMarketAlreadyResolved, "MARKET_ALREADY_RESOLVED"},
	{ErrMarketNotResolved, "MARKET_NOT_RESOLVED"},
	{ErrMarketAlreadyOpen, "MARKET_ALREADY_OPEN"},
	{ErrInvalidDuration, "INVALID_MARKET_DURATION"},
	{ErrBetTooSmall, "BET_TOO_SMALL"},
	{ErrInsufficientFunds, "INSUFFICIENT_FUNDS"},
	{ErrAlreadyExecuted, "PROPOSAL_ALREADY_EXECUTED"},
	{ErrProposalRejected, "PROPOSAL_REJECTED"},
	{ErrInvalidOutcome, "INVALID_OUTCOME"},
	{ErrMathOverflow, "MATH_OVERFLOW"},
	{ErrSideMismatch, "POSITION_SIDE_MISMATCH"},
	{ErrAlreadyRedeemed, "ALREADY_REDEEMED"},
	{ErrNotWinner, "NOT_A_WINNER"},
	{ErrDescriptionTooLong, "DESCRIPTION_TOO_LONG"},
	{ErrInvalidArgument, "INVALID_ARGUMENT"},
	{ErrLockHeld, "LOCK_HELD"},
}

// ErrorCode returns the stable wire code for err, or "INTERNAL" when err is
// not part of the settlement taxonomy.
func ErrorCode(err error) string {
	for _, ec := range errorCodes {
		if errors.Is(err, ec.err) {
			return ec.code
		}
	}
	return "INTERNAL"
}
