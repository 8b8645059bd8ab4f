package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Mardiprk/Mini-MetaDAO/internal/domain"
)

// OpenMarket attaches a fresh pari-mutuel market to a proposal. It may be
// called once per proposal by any identity; the close time is fixed at
// opening and never moves. The duration must fall within the configured
// bounds.
func (e *Engine) OpenMarket(ctx context.Context, caller domain.Address, proposalID uint64, duration time.Duration) (domain.Market, error) {
	if caller == "" {
		return domain.Market{}, fmt.Errorf("engine: open market: %w", domain.ErrInvalidArgument)
	}
	if duration < e.params.MinDuration || duration > e.params.MaxDuration {
		return domain.Market{}, domain.ErrInvalidDuration
	}

	var market domain.Market
	err := e.ledger.InTx(ctx, func(tx domain.Ledger) error {
		if _, err := loadDao(ctx, tx); err != nil {
			return err
		}

		prop, err := tx.Proposal(ctx, proposalID)
		if err != nil {
			return fmt.Errorf("engine: load proposal %d: %w", proposalID, err)
		}
		if prop.HasMarket() {
			return domain.ErrMarketAlreadyOpen
		}

		now := e.now().UTC()
		market = domain.Market{
			Address:   domain.MarketAddress(prop.Address),
			Proposal:  prop.Address,
			ClosesAt:  now.Add(duration),
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := tx.PutMarket(ctx, market); err != nil {
			return fmt.Errorf("engine: put market: %w", err)
		}

		prop.Market = market.Address
		prop.UpdatedAt = now
		return tx.PutProposal(ctx, prop)
	})
	if err != nil {
		return domain.Market{}, err
	}

	e.logger.InfoContext(ctx, "market opened",
		slog.Uint64("proposal", proposalID),
		slog.String("market", string(market.Address)),
		slog.Time("closes_at", market.ClosesAt),
	)
	return market, nil
}

// BuyYes deposits gross native units on the YES side of a proposal's market.
func (e *Engine) BuyYes(ctx context.Context, bettor domain.Address, proposalID uint64, gross uint64) (domain.Position, error) {
	return e.deposit(ctx, bettor, proposalID, gross, true)
}

// BuyNo deposits gross native units on the NO side of a proposal's market.
func (e *Engine) BuyNo(ctx context.Context, bettor domain.Address, proposalID uint64, gross uint64) (domain.Position, error) {
	return e.deposit(ctx, bettor, proposalID, gross, false)
}

// deposit is the shared buy path. It extracts the fee, moves the gross amount
// from the bettor's balance into the market vault, grows the side pool by the
// net stake and the fee pool by the fee, and upserts the bettor's position.
// A deposit on the opposite side of an existing position is rejected rather
// than silently switching sides.
func (e *Engine) deposit(ctx context.Context, bettor domain.Address, proposalID uint64, gross uint64, isYes bool) (domain.Position, error) {
	if bettor == "" {
		return domain.Position{}, fmt.Errorf("engine: deposit: %w", domain.ErrInvalidArgument)
	}

	var pos domain.Position
	err := e.ledger.InTx(ctx, func(tx domain.Ledger) error {
		if _, err := loadDao(ctx, tx); err != nil {
			return err
		}

		prop, err := tx.Proposal(ctx, proposalID)
		if err != nil {
			return fmt.Errorf("engine: load proposal %d: %w", proposalID, err)
		}
		if !prop.HasMarket() {
			return fmt.Errorf("engine: proposal %d has no market: %w", proposalID, domain.ErrNotFound)
		}
		market, err := tx.Market(ctx, prop.Market)
		if err != nil {
			return fmt.Errorf("engine: load market: %w", err)
		}

		if market.Resolved {
			return domain.ErrMarketAlreadyResolved
		}
		if market.IsClosed(e.now()) {
			return domain.ErrMarketClosed
		}
		if gross < e.params.MinBet {
			return domain.ErrBetTooSmall
		}

		bal, err := tx.Balance(ctx, bettor)
		if err != nil {
			return fmt.Errorf("engine: load balance: %w", err)
		}
		if bal.Native < gross {
			return domain.ErrInsufficientFunds
		}

		net, fee, err := domain.SplitFee(gross, e.params.FeeBps)
		if err != nil {
			return err
		}

		now := e.now().UTC()
		pos, err = tx.Position(ctx, market.Address, bettor)
		switch {
		case err == nil:
			if pos.IsYes != isYes {
				return domain.ErrSideMismatch
			}
			if pos.Amount, err = domain.AddU64(pos.Amount, net); err != nil {
				return err
			}
			pos.UpdatedAt = now
		case errors.Is(err, domain.ErrNotFound):
			pos = domain.Position{
				Address:   domain.PositionAddress(market.Address, bettor),
				Market:    market.Address,
				Bettor:    bettor,
				Amount:    net,
				IsYes:     isYes,
				CreatedAt: now,
				UpdatedAt: now,
			}
		default:
			return fmt.Errorf("engine: load position: %w", err)
		}

		if isYes {
			if market.YesPool, err = domain.AddU64(market.YesPool, net); err != nil {
				return err
			}
		} else {
			if market.NoPool, err = domain.AddU64(market.NoPool, net); err != nil {
				return err
			}
		}
		if market.FeePool, err = domain.AddU64(market.FeePool, fee); err != nil {
			return err
		}
		market.UpdatedAt = now

		// Move the gross amount into the market vault.
		vault, err := tx.Balance(ctx, market.Address)
		if err != nil {
			return fmt.Errorf("engine: load vault: %w", err)
		}
		if bal.Native, err = domain.SubU64(bal.Native, gross); err != nil {
			return err
		}
		if vault.Native, err = domain.AddU64(vault.Native, gross); err != nil {
			return err
		}
		vault.Owner = market.Address
		bal.UpdatedAt, vault.UpdatedAt = now, now

		if err := tx.PutBalance(ctx, bal); err != nil {
			return fmt.Errorf("engine: put balance: %w", err)
		}
		if err := tx.PutBalance(ctx, vault); err != nil {
			return fmt.Errorf("engine: put vault: %w", err)
		}
		if err := tx.PutMarket(ctx, market); err != nil {
			return fmt.Errorf("engine: put market: %w", err)
		}
		return tx.PutPosition(ctx, pos)
	})
	if err != nil {
		return domain.Position{}, err
	}

	e.logger.InfoContext(ctx, "deposit accepted",
		slog.Uint64("proposal", proposalID),
		slog.String("bettor", string(bettor)),
		slog.Bool("yes", isYes),
		slog.Uint64("gross", gross),
	)
	return pos, nil
}

// ResolveMarket commits the market outcome. Only the DAO administrator may
// resolve, only at or after the close time, and only once; resolution is
// irreversible and there is no dispute path.
func (e *Engine) ResolveMarket(ctx context.Context, caller domain.Address, proposalID uint64, outcomeYes bool) (domain.Market, error) {
	var market domain.Market
	err := e.ledger.InTx(ctx, func(tx domain.Ledger) error {
		dao, err := loadDao(ctx, tx)
		if err != nil {
			return err
		}
		if caller != dao.Admin {
			return domain.ErrUnauthorized
		}

		prop, err := tx.Proposal(ctx, proposalID)
		if err != nil {
			return fmt.Errorf("engine: load proposal %d: %w", proposalID, err)
		}
		if !prop.HasMarket() {
			return fmt.Errorf("engine: proposal %d has no market: %w", proposalID, domain.ErrNotFound)
		}
		market, err = tx.Market(ctx, prop.Market)
		if err != nil {
			return fmt.Errorf("engine: load market: %w", err)
		}

		if !market.IsClosed(e.now()) {
			return domain.ErrMarketStillActive
		}
		if market.Resolved {
			return domain.ErrMarketAlreadyResolved
		}

		market.Resolved = true
		market.OutcomeYes = outcomeYes
		market.UpdatedAt = e.now().UTC()
		return tx.PutMarket(ctx, market)
	})
	if err != nil {
		return domain.Market{}, err
	}

	e.logger.InfoContext(ctx, "market resolved",
		slog.Uint64("proposal", proposalID),
		slog.Bool("outcome_yes", outcomeYes),
	)
	return market, nil
}
