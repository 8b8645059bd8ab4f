package engine

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Mardiprk/Mini-MetaDAO/internal/domain"
)

// Redeem pays out a winning position: the stake back plus a pro-rata share of
// the losing pool, computed against the pool totals frozen at resolution. A
// losing position is not redeemable; its stake stays inside the fixed pool
// totals, funding the winners. The redeemed flag flips in the same atomic
// mutation as the transfer, so a second redemption can never pay twice. The
// fee pool is never distributed to bettors.
func (e *Engine) Redeem(ctx context.Context, bettor domain.Address, proposalID uint64) (uint64, error) {
	if bettor == "" {
		return 0, fmt.Errorf("engine: redeem: %w", domain.ErrInvalidArgument)
	}

	var payout uint64
	err := e.ledger.InTx(ctx, func(tx domain.Ledger) error {
		if _, err := loadDao(ctx, tx); err != nil {
			return err
		}

		prop, err := tx.Proposal(ctx, proposalID)
		if err != nil {
			return fmt.Errorf("engine: load proposal %d: %w", proposalID, err)
		}
		if !prop.HasMarket() {
			return domain.ErrMarketNotResolved
		}
		market, err := tx.Market(ctx, prop.Market)
		if err != nil {
			return fmt.Errorf("engine: load market: %w", err)
		}
		if !market.Resolved {
			return domain.ErrMarketNotResolved
		}

		pos, err := tx.Position(ctx, market.Address, bettor)
		if err != nil {
			return fmt.Errorf("engine: load position: %w", err)
		}
		if pos.Redeemed {
			return domain.ErrAlreadyRedeemed
		}
		if pos.IsYes != market.OutcomeYes {
			return domain.ErrNotWinner
		}

		winning, losing := market.Pools()
		payout, err = domain.ProRataPayout(pos.Amount, winning, losing)
		if err != nil {
			return err
		}

		vault, err := tx.Balance(ctx, market.Address)
		if err != nil {
			return fmt.Errorf("engine: load vault: %w", err)
		}
		bal, err := tx.Balance(ctx, bettor)
		if err != nil {
			return fmt.Errorf("engine: load balance: %w", err)
		}

		now := e.now().UTC()
		if vault.Native, err = domain.SubU64(vault.Native, payout); err != nil {
			return err
		}
		if bal.Native, err = domain.AddU64(bal.Native, payout); err != nil {
			return err
		}
		bal.Owner = bettor
		vault.UpdatedAt, bal.UpdatedAt = now, now

		pos.Redeemed = true
		pos.UpdatedAt = now

		if err := tx.PutPosition(ctx, pos); err != nil {
			return fmt.Errorf("engine: put position: %w", err)
		}
		if err := tx.PutBalance(ctx, vault); err != nil {
			return fmt.Errorf("engine: put vault: %w", err)
		}
		return tx.PutBalance(ctx, bal)
	})
	if err != nil {
		return 0, err
	}

	e.logger.InfoContext(ctx, "position redeemed",
		slog.Uint64("proposal", proposalID),
		slog.String("bettor", string(bettor)),
		slog.Uint64("payout", payout),
	)
	return payout, nil
}
