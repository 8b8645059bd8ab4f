package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/Mardiprk/Mini-MetaDAO/internal/domain"
)

// InitializeDao creates the DAO singleton with the given administrator and
// governance token mint. It fails with ErrAlreadyInitialized on replay. The
// administrator, treasury, and mint are immutable afterwards.
func (e *Engine) InitializeDao(ctx context.Context, admin, governanceMint domain.Address) (domain.Dao, error) {
	if admin == "" || governanceMint == "" {
		return domain.Dao{}, fmt.Errorf("engine: initialize dao: %w", domain.ErrInvalidArgument)
	}

	var dao domain.Dao
	err := e.ledger.InTx(ctx, func(tx domain.Ledger) error {
		if _, err := tx.Dao(ctx); err == nil {
			return domain.ErrAlreadyInitialized
		} else if !errors.Is(err, domain.ErrNotFound) {
			return fmt.Errorf("engine: load dao: %w", err)
		}

		now := e.now().UTC()
		dao = domain.Dao{
			Address:        domain.DaoAddress(),
			Admin:          admin,
			Treasury:       domain.TreasuryAddress(),
			GovernanceMint: governanceMint,
			ProposalCount:  0,
			CreatedAt:      now,
			UpdatedAt:      now,
		}
		return tx.PutDao(ctx, dao)
	})
	if err != nil {
		return domain.Dao{}, err
	}

	e.logger.InfoContext(ctx, "dao initialized",
		slog.String("admin", string(admin)),
		slog.String("treasury", string(dao.Treasury)),
	)
	return dao, nil
}

// FundAccount credits native and token units to the target address. It is
// administrator-gated: in production the host substrate deposits value, but
// operators still need a way to seed the treasury and test accounts.
// Funding the treasury address is how the DAO's spendable balance grows.
func (e *Engine) FundAccount(ctx context.Context, caller, target domain.Address, native, token uint64) (domain.Balance, error) {
	if target == "" {
		return domain.Balance{}, fmt.Errorf("engine: fund account: %w", domain.ErrInvalidArgument)
	}

	var bal domain.Balance
	err := e.ledger.InTx(ctx, func(tx domain.Ledger) error {
		dao, err := loadDao(ctx, tx)
		if err != nil {
			return err
		}
		if caller != dao.Admin {
			return domain.ErrUnauthorized
		}

		bal, err = tx.Balance(ctx, target)
		if err != nil {
			return fmt.Errorf("engine: load balance: %w", err)
		}
		if bal.Native, err = domain.AddU64(bal.Native, native); err != nil {
			return err
		}
		if bal.Token, err = domain.AddU64(bal.Token, token); err != nil {
			return err
		}
		bal.Owner = target
		bal.UpdatedAt = e.now().UTC()
		return tx.PutBalance(ctx, bal)
	})
	if err != nil {
		return domain.Balance{}, err
	}

	e.logger.InfoContext(ctx, "account funded",
		slog.String("target", string(target)),
		slog.Uint64("native", native),
		slog.Uint64("token", token),
	)
	return bal, nil
}

// loadDao fetches the DAO singleton, mapping its absence to ErrNotInitialized.
func loadDao(ctx context.Context, tx domain.Ledger) (domain.Dao, error) {
	dao, err := tx.Dao(ctx)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.Dao{}, domain.ErrNotInitialized
		}
		return domain.Dao{}, fmt.Errorf("engine: load dao: %w", err)
	}
	return dao, nil
}
