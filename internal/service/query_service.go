package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Mardiprk/Mini-MetaDAO/internal/domain"
)

// QueryService serves read paths: DAO state, proposals, markets, positions,
// and balances. Market reads check the cache first and fall back to the
// ledger on a miss.
type QueryService struct {
	ledger domain.Ledger
	cache  domain.MarketCache
	audit  domain.AuditStore
	logger *slog.Logger
}

// NewQueryService creates a QueryService. The cache and audit store may be
// nil; reads then go straight to the ledger and ListAudit returns empty.
func NewQueryService(ledger domain.Ledger, cache domain.MarketCache, audit domain.AuditStore, logger *slog.Logger) *QueryService {
	return &QueryService{
		ledger: ledger,
		cache:  cache,
		audit:  audit,
		logger: logger.With(slog.String("component", "query_service")),
	}
}

// GetDao retrieves the DAO singleton.
func (s *QueryService) GetDao(ctx context.Context) (domain.Dao, error) {
	dao, err := s.ledger.Dao(ctx)
	if err != nil {
		return domain.Dao{}, fmt.Errorf("query_service: get dao: %w", err)
	}
	return dao, nil
}

// GetProposal retrieves a proposal by id.
func (s *QueryService) GetProposal(ctx context.Context, id uint64) (domain.Proposal, error) {
	p, err := s.ledger.Proposal(ctx, id)
	if err != nil {
		return domain.Proposal{}, fmt.Errorf("query_service: get proposal %d: %w", id, err)
	}
	return p, nil
}

// ListProposals returns proposals ordered by id with pagination.
func (s *QueryService) ListProposals(ctx context.Context, opts domain.ListOpts) ([]domain.Proposal, error) {
	proposals, err := s.ledger.ListProposals(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("query_service: list proposals: %w", err)
	}
	return proposals, nil
}

// GetMarket retrieves the market for a proposal, checking the cache first and
// falling back to the ledger on a miss.
func (s *QueryService) GetMarket(ctx context.Context, proposalID uint64) (domain.Market, error) {
	p, err := s.ledger.Proposal(ctx, proposalID)
	if err != nil {
		return domain.Market{}, fmt.Errorf("query_service: get proposal %d: %w", proposalID, err)
	}
	if !p.HasMarket() {
		return domain.Market{}, domain.ErrNotFound
	}

	if s.cache != nil {
		if m, err := s.cache.Get(ctx, domain.MarketAddress(p.Address)); err == nil {
			return m, nil
		}
	}

	m, err := s.ledger.MarketByProposal(ctx, p.Address)
	if err != nil {
		return domain.Market{}, fmt.Errorf("query_service: get market for proposal %d: %w", proposalID, err)
	}

	// Back-fill cache; log but do not fail on cache write errors.
	if s.cache != nil {
		if cacheErr := s.cache.Set(ctx, m); cacheErr != nil {
			s.logger.WarnContext(ctx, "cache set failed",
				slog.String("market", string(m.Address)),
				slog.String("error", cacheErr.Error()),
			)
		}
	}

	return m, nil
}

// GetMarketByAddress retrieves a market directly by its address, checking the
// cache first.
func (s *QueryService) GetMarketByAddress(ctx context.Context, addr domain.Address) (domain.Market, error) {
	if s.cache != nil {
		if m, err := s.cache.Get(ctx, addr); err == nil {
			return m, nil
		}
	}

	m, err := s.ledger.Market(ctx, addr)
	if err != nil {
		return domain.Market{}, fmt.Errorf("query_service: get market %s: %w", addr, err)
	}

	if s.cache != nil {
		if cacheErr := s.cache.Set(ctx, m); cacheErr != nil {
			s.logger.WarnContext(ctx, "cache set failed",
				slog.String("market", string(m.Address)),
				slog.String("error", cacheErr.Error()),
			)
		}
	}

	return m, nil
}

// GetPositionByMarket retrieves one bettor's position by market address.
func (s *QueryService) GetPositionByMarket(ctx context.Context, market, bettor domain.Address) (domain.Position, error) {
	pos, err := s.ledger.Position(ctx, market, bettor)
	if err != nil {
		return domain.Position{}, fmt.Errorf("query_service: get position %s/%s: %w", market, bettor, err)
	}
	return pos, nil
}

// ListPositions returns every position on a proposal's market.
func (s *QueryService) ListPositions(ctx context.Context, proposalID uint64) ([]domain.Position, error) {
	m, err := s.GetMarket(ctx, proposalID)
	if err != nil {
		return nil, err
	}
	positions, err := s.ledger.ListPositions(ctx, m.Address)
	if err != nil {
		return nil, fmt.Errorf("query_service: list positions %s: %w", m.Address, err)
	}
	return positions, nil
}

// GetPosition retrieves one bettor's position on a proposal's market.
func (s *QueryService) GetPosition(ctx context.Context, proposalID uint64, bettor domain.Address) (domain.Position, error) {
	m, err := s.GetMarket(ctx, proposalID)
	if err != nil {
		return domain.Position{}, err
	}
	pos, err := s.ledger.Position(ctx, m.Address, bettor)
	if err != nil {
		return domain.Position{}, fmt.Errorf("query_service: get position %s/%s: %w", m.Address, bettor, err)
	}
	return pos, nil
}

// GetBalance retrieves an account balance. Unknown owners hold zero.
func (s *QueryService) GetBalance(ctx context.Context, owner domain.Address) (domain.Balance, error) {
	bal, err := s.ledger.Balance(ctx, owner)
	if err != nil {
		return domain.Balance{}, fmt.Errorf("query_service: get balance %s: %w", owner, err)
	}
	return bal, nil
}

// ListAudit returns audit entries newest first.
func (s *QueryService) ListAudit(ctx context.Context, opts domain.ListOpts) ([]domain.AuditEntry, error) {
	if s.audit == nil {
		return nil, nil
	}
	entries, err := s.audit.List(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("query_service: list audit: %w", err)
	}
	return entries, nil
}
