package engine

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Mardiprk/Mini-MetaDAO/internal/domain"
)

// CreateProposal records a new proposal. Creation is open to any identity:
// the market, not gatekeeping, filters quality. The proposal takes the DAO's
// current counter as its id and the counter increments.
func (e *Engine) CreateProposal(ctx context.Context, creator domain.Address, description string) (domain.Proposal, error) {
	if creator == "" {
		return domain.Proposal{}, fmt.Errorf("engine: create proposal: %w", domain.ErrInvalidArgument)
	}
	if len(description) > domain.MaxDescriptionLen {
		return domain.Proposal{}, domain.ErrDescriptionTooLong
	}

	var prop domain.Proposal
	err := e.ledger.InTx(ctx, func(tx domain.Ledger) error {
		dao, err := loadDao(ctx, tx)
		if err != nil {
			return err
		}

		now := e.now().UTC()
		prop = domain.Proposal{
			Address:     domain.ProposalAddress(dao.ProposalCount),
			ID:          dao.ProposalCount,
			Creator:     creator,
			Description: description,
			Executed:    false,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		if err := tx.PutProposal(ctx, prop); err != nil {
			return fmt.Errorf("engine: put proposal: %w", err)
		}

		if dao.ProposalCount, err = domain.AddU64(dao.ProposalCount, 1); err != nil {
			return err
		}
		dao.UpdatedAt = now
		return tx.PutDao(ctx, dao)
	})
	if err != nil {
		return domain.Proposal{}, err
	}

	e.logger.InfoContext(ctx, "proposal created",
		slog.Uint64("id", prop.ID),
		slog.String("creator", string(creator)),
	)
	return prop, nil
}

// ExecuteProposal carries out the treasury action a YES-resolved market has
// authorized: it transfers nativeAmount and tokenAmount from the treasury to
// the recipient and flips the proposal's executed flag. Only the DAO
// administrator may call it, it succeeds at most once, and it fails closed:
// any ambiguity about recipient or amounts rejects without a partial transfer.
// A NO-resolved proposal never executes; there is no resubmit path.
func (e *Engine) ExecuteProposal(ctx context.Context, caller domain.Address, proposalID uint64, recipient domain.Address, nativeAmount, tokenAmount uint64) error {
	if recipient == "" {
		return fmt.Errorf("engine: execute proposal: recipient: %w", domain.ErrInvalidArgument)
	}

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
			return domain.ErrMarketNotResolved
		}
		market, err := tx.Market(ctx, prop.Market)
		if err != nil {
			return fmt.Errorf("engine: load market: %w", err)
		}
		if !market.Resolved {
			return domain.ErrMarketNotResolved
		}
		if !market.OutcomeYes {
			return domain.ErrProposalRejected
		}
		if prop.Executed {
			return domain.ErrAlreadyExecuted
		}

		treasury, err := tx.Balance(ctx, dao.Treasury)
		if err != nil {
			return fmt.Errorf("engine: load treasury: %w", err)
		}
		if treasury.Native < nativeAmount || treasury.Token < tokenAmount {
			return domain.ErrInsufficientFunds
		}

		dest, err := tx.Balance(ctx, recipient)
		if err != nil {
			return fmt.Errorf("engine: load recipient: %w", err)
		}

		now := e.now().UTC()
		if treasury.Native, err = domain.SubU64(treasury.Native, nativeAmount); err != nil {
			return err
		}
		if treasury.Token, err = domain.SubU64(treasury.Token, tokenAmount); err != nil {
			return err
		}
		if dest.Native, err = domain.AddU64(dest.Native, nativeAmount); err != nil {
			return err
		}
		if dest.Token, err = domain.AddU64(dest.Token, tokenAmount); err != nil {
			return err
		}
		treasury.UpdatedAt, dest.UpdatedAt = now, now
		dest.Owner = recipient

		if err := tx.PutBalance(ctx, treasury); err != nil {
			return fmt.Errorf("engine: put treasury: %w", err)
		}
		if err := tx.PutBalance(ctx, dest); err != nil {
			return fmt.Errorf("engine: put recipient: %w", err)
		}

		prop.Executed = true
		prop.UpdatedAt = now
		return tx.PutProposal(ctx, prop)
	})
	if err != nil {
		return err
	}

	e.logger.InfoContext(ctx, "proposal executed",
		slog.Uint64("id", proposalID),
		slog.String("recipient", string(recipient)),
		slog.Uint64("native", nativeAmount),
		slog.Uint64("token", tokenAmount),
	)
	return nil
}
