package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Mardiprk/Mini-MetaDAO/internal/domain"
)

// querier is the subset of pgx shared by pgxpool.Pool and pgx.Tx, so the same
// ledger methods run inside and outside a transaction.
type querier interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Ledger implements domain.LedgerStore using PostgreSQL. A Ledger built over
// the pool starts transactions; a Ledger built over a pgx.Tx runs inside one.
type Ledger struct {
	db   querier
	pool *pgxpool.Pool
}

// NewLedger creates a Ledger backed by the given connection pool.
func NewLedger(pool *pgxpool.Pool) *Ledger {
	return &Ledger{db: pool, pool: pool}
}

var _ domain.LedgerStore = (*Ledger)(nil)

// InTx runs fn inside a database transaction. All ledger writes made through
// the transaction-scoped ledger commit together or not at all. Calling InTx
// on a ledger already inside a transaction reuses that transaction.
func (l *Ledger) InTx(ctx context.Context, fn func(tx domain.Ledger) error) error {
	if l.pool == nil {
		return fn(l)
	}

	tx, err := l.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("postgres: begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(&Ledger{db: tx}); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("postgres: commit tx: %w", err)
	}
	return nil
}

// --- DAO ---

// Dao retrieves the DAO singleton.
func (l *Ledger) Dao(ctx context.Context) (domain.Dao, error) {
	const query = `
		SELECT address, admin_address, treasury_address, governance_mint,
		       proposal_count, created_at, updated_at
		FROM dao LIMIT 1`

	var d domain.Dao
	err := l.db.QueryRow(ctx, query).Scan(
		&d.Address, &d.Admin, &d.Treasury, &d.GovernanceMint,
		&d.ProposalCount, &d.CreatedAt, &d.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Dao{}, domain.ErrNotFound
		}
		return domain.Dao{}, fmt.Errorf("postgres: get dao: %w", err)
	}
	return d, nil
}

// PutDao inserts or updates the DAO singleton.
func (l *Ledger) PutDao(ctx context.Context, d domain.Dao) error {
	const query = `
		INSERT INTO dao (
			address, admin_address, treasury_address, governance_mint,
			proposal_count, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (address) DO UPDATE SET
			proposal_count = EXCLUDED.proposal_count,
			updated_at     = EXCLUDED.updated_at`

	_, err := l.db.Exec(ctx, query,
		d.Address, d.Admin, d.Treasury, d.GovernanceMint,
		d.ProposalCount, d.CreatedAt, d.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: put dao: %w", err)
	}
	return nil
}

// --- Proposals ---

const proposalCols = `address, id, creator, description, market_address,
	executed, created_at, updated_at`

func scanProposal(row pgx.Row) (domain.Proposal, error) {
	var p domain.Proposal
	err := row.Scan(
		&p.Address, &p.ID, &p.Creator, &p.Description, &p.Market,
		&p.Executed, &p.CreatedAt, &p.UpdatedAt,
	)
	return p, err
}

// Proposal retrieves a proposal by its numeric id.
func (l *Ledger) Proposal(ctx context.Context, id uint64) (domain.Proposal, error) {
	row := l.db.QueryRow(ctx,
		`SELECT `+proposalCols+` FROM proposals WHERE id = $1`, id)
	p, err := scanProposal(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Proposal{}, domain.ErrNotFound
		}
		return domain.Proposal{}, fmt.Errorf("postgres: get proposal %d: %w", id, err)
	}
	return p, nil
}

// PutProposal inserts or updates a proposal.
func (l *Ledger) PutProposal(ctx context.Context, p domain.Proposal) error {
	const query = `
		INSERT INTO proposals (
			address, id, creator, description, market_address,
			executed, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (address) DO UPDATE SET
			market_address = EXCLUDED.market_address,
			executed       = EXCLUDED.executed,
			updated_at     = EXCLUDED.updated_at`

	_, err := l.db.Exec(ctx, query,
		p.Address, p.ID, p.Creator, p.Description, p.Market,
		p.Executed, p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: put proposal %d: %w", p.ID, err)
	}
	return nil
}

// ListProposals returns proposals ordered by id with pagination.
func (l *Ledger) ListProposals(ctx context.Context, opts domain.ListOpts) ([]domain.Proposal, error) {
	query := `SELECT ` + proposalCols + ` FROM proposals ORDER BY id`
	args := []any{}
	argIdx := 1

	if opts.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argIdx)
		args = append(args, opts.Limit)
		argIdx++
	}
	if opts.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argIdx)
		args = append(args, opts.Offset)
	}

	rows, err := l.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list proposals: %w", err)
	}
	defer rows.Close()

	var proposals []domain.Proposal
	for rows.Next() {
		p, err := scanProposal(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan proposal: %w", err)
		}
		proposals = append(proposals, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list proposals rows: %w", err)
	}
	return proposals, nil
}

// --- Markets ---

const marketCols = `address, proposal_address, yes_pool, no_pool, fee_pool,
	closes_at, resolved, outcome_yes, created_at, updated_at`

func scanMarket(row pgx.Row) (domain.Market, error) {
	var m domain.Market
	err := row.Scan(
		&m.Address, &m.Proposal, &m.YesPool, &m.NoPool, &m.FeePool,
		&m.ClosesAt, &m.Resolved, &m.OutcomeYes, &m.CreatedAt, &m.UpdatedAt,
	)
	return m, err
}

// Market retrieves a market by its address.
func (l *Ledger) Market(ctx context.Context, addr domain.Address) (domain.Market, error) {
	row := l.db.QueryRow(ctx,
		`SELECT `+marketCols+` FROM markets WHERE address = $1`, addr)
	m, err := scanMarket(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Market{}, domain.ErrNotFound
		}
		return domain.Market{}, fmt.Errorf("postgres: get market %s: %w", addr, err)
	}
	return m, nil
}

// MarketByProposal retrieves the market attached to a proposal address.
func (l *Ledger) MarketByProposal(ctx context.Context, proposal domain.Address) (domain.Market, error) {
	row := l.db.QueryRow(ctx,
		`SELECT `+marketCols+` FROM markets WHERE proposal_address = $1`, proposal)
	m, err := scanMarket(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Market{}, domain.ErrNotFound
		}
		return domain.Market{}, fmt.Errorf("postgres: get market by proposal %s: %w", proposal, err)
	}
	return m, nil
}

// PutMarket inserts or updates a market.
func (l *Ledger) PutMarket(ctx context.Context, m domain.Market) error {
	const query = `
		INSERT INTO markets (
			address, proposal_address, yes_pool, no_pool, fee_pool,
			closes_at, resolved, outcome_yes, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (address) DO UPDATE SET
			yes_pool    = EXCLUDED.yes_pool,
			no_pool     = EXCLUDED.no_pool,
			fee_pool    = EXCLUDED.fee_pool,
			resolved    = EXCLUDED.resolved,
			outcome_yes = EXCLUDED.outcome_yes,
			updated_at  = EXCLUDED.updated_at`

	_, err := l.db.Exec(ctx, query,
		m.Address, m.Proposal, m.YesPool, m.NoPool, m.FeePool,
		m.ClosesAt, m.Resolved, m.OutcomeYes, m.CreatedAt, m.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: put market %s: %w", m.Address, err)
	}
	return nil
}

// ListSettledMarkets returns resolved markets whose close time falls before
// the cutoff, ordered oldest first.
func (l *Ledger) ListSettledMarkets(ctx context.Context, before time.Time) ([]domain.Market, error) {
	rows, err := l.db.Query(ctx,
		`SELECT `+marketCols+` FROM markets
		 WHERE resolved AND closes_at < $1
		 ORDER BY closes_at`, before)
	if err != nil {
		return nil, fmt.Errorf("postgres: list settled markets: %w", err)
	}
	defer rows.Close()

	var markets []domain.Market
	for rows.Next() {
		m, err := scanMarket(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan market: %w", err)
		}
		markets = append(markets, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list settled markets rows: %w", err)
	}
	return markets, nil
}

// --- Positions ---

const positionCols = `address, market_address, bettor, amount, is_yes,
	redeemed, created_at, updated_at`

func scanPosition(row pgx.Row) (domain.Position, error) {
	var p domain.Position
	err := row.Scan(
		&p.Address, &p.Market, &p.Bettor, &p.Amount, &p.IsYes,
		&p.Redeemed, &p.CreatedAt, &p.UpdatedAt,
	)
	return p, err
}

// Position retrieves the position of a bettor on a market.
func (l *Ledger) Position(ctx context.Context, market, bettor domain.Address) (domain.Position, error) {
	row := l.db.QueryRow(ctx,
		`SELECT `+positionCols+` FROM positions
		 WHERE market_address = $1 AND bettor = $2`, market, bettor)
	p, err := scanPosition(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Position{}, domain.ErrNotFound
		}
		return domain.Position{}, fmt.Errorf("postgres: get position %s/%s: %w", market, bettor, err)
	}
	return p, nil
}

// PutPosition inserts or updates a position.
func (l *Ledger) PutPosition(ctx context.Context, p domain.Position) error {
	const query = `
		INSERT INTO positions (
			address, market_address, bettor, amount, is_yes,
			redeemed, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (address) DO UPDATE SET
			amount     = EXCLUDED.amount,
			redeemed   = EXCLUDED.redeemed,
			updated_at = EXCLUDED.updated_at`

	_, err := l.db.Exec(ctx, query,
		p.Address, p.Market, p.Bettor, p.Amount, p.IsYes,
		p.Redeemed, p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: put position %s: %w", p.Address, err)
	}
	return nil
}

// ListPositions returns every position on a market.
func (l *Ledger) ListPositions(ctx context.Context, market domain.Address) ([]domain.Position, error) {
	rows, err := l.db.Query(ctx,
		`SELECT `+positionCols+` FROM positions
		 WHERE market_address = $1 ORDER BY address`, market)
	if err != nil {
		return nil, fmt.Errorf("postgres: list positions %s: %w", market, err)
	}
	defer rows.Close()

	var positions []domain.Position
	for rows.Next() {
		p, err := scanPosition(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan position: %w", err)
		}
		positions = append(positions, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list positions rows: %w", err)
	}
	return positions, nil
}

// --- Balances ---

// Balance retrieves an account balance; unknown owners hold a zero balance.
func (l *Ledger) Balance(ctx context.Context, owner domain.Address) (domain.Balance, error) {
	var b domain.Balance
	err := l.db.QueryRow(ctx,
		`SELECT owner, native, token, updated_at FROM balances WHERE owner = $1`,
		owner,
	).Scan(&b.Owner, &b.Native, &b.Token, &b.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Balance{Owner: owner}, nil
		}
		return domain.Balance{}, fmt.Errorf("postgres: get balance %s: %w", owner, err)
	}
	return b, nil
}

// PutBalance inserts or updates an account balance.
func (l *Ledger) PutBalance(ctx context.Context, b domain.Balance) error {
	const query = `
		INSERT INTO balances (owner, native, token, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (owner) DO UPDATE SET
			native     = EXCLUDED.native,
			token      = EXCLUDED.token,
			updated_at = EXCLUDED.updated_at`

	_, err := l.db.Exec(ctx, query, b.Owner, b.Native, b.Token, b.UpdatedAt)
	if err != nil {
		return fmt.Errorf("postgres: put balance %s: %w", b.Owner, err)
	}
	return nil
}
