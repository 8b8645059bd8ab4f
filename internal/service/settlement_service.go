// Package service coordinates the settlement engine with the cache, lock
// manager, signal bus, audit log, and notifier. Handlers talk to services,
// never to the engine or stores directly.
package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/Mardiprk/Mini-MetaDAO/internal/domain"
	"github.com/Mardiprk/Mini-MetaDAO/internal/engine"
	"github.com/Mardiprk/Mini-MetaDAO/internal/notify"
)

// lockTTL bounds how long an instruction may hold a record lock. Locks are
// released as soon as the instruction finishes; the TTL only guards against
// a crashed holder.
const lockTTL = 10 * time.Second

// channel names for signal bus events.
const (
	ChannelProposals = "ch:proposals"
	ChannelMarkets   = "ch:markets"
	StreamSettlement = "stream:settlement"
)

// SettlementService executes governance instructions through the engine and
// fans the results out to the cache, signal bus, audit log, and notifier.
// Cache, bus, audit, and notifier failures are logged and never fail the
// instruction; the ledger is the source of truth.
type SettlementService struct {
	engine   *engine.Engine
	ledger   domain.LedgerStore
	locks    domain.LockManager
	cache    domain.MarketCache
	bus      domain.SignalBus
	audit    domain.AuditStore
	notifier *notify.Notifier
	logger   *slog.Logger
}

// NewSettlementService creates a SettlementService. The cache, bus, audit
// store, and notifier may be nil; the corresponding side effects are skipped.
func NewSettlementService(
	eng *engine.Engine,
	ledger domain.LedgerStore,
	locks domain.LockManager,
	cache domain.MarketCache,
	bus domain.SignalBus,
	audit domain.AuditStore,
	notifier *notify.Notifier,
	logger *slog.Logger,
) *SettlementService {
	return &SettlementService{
		engine:   eng,
		ledger:   ledger,
		locks:    locks,
		cache:    cache,
		bus:      bus,
		audit:    audit,
		notifier: notifier,
		logger:   logger.With(slog.String("component", "settlement_service")),
	}
}

func daoLockKey() string               { return "dao" }
func proposalLockKey(id uint64) string { return fmt.Sprintf("proposal:%d", id) }

// acquire takes the named lock when a lock manager is configured.
func (s *SettlementService) acquire(ctx context.Context, key string) (func(), error) {
	if s.locks == nil {
		return func() {}, nil
	}
	unlock, err := s.locks.Acquire(ctx, key, lockTTL)
	if err != nil {
		return nil, fmt.Errorf("settlement_service: lock %s: %w", key, err)
	}
	return unlock, nil
}

// InitializeDao creates the DAO singleton with the caller as admin.
func (s *SettlementService) InitializeDao(ctx context.Context, admin, governanceMint domain.Address) (domain.Dao, error) {
	unlock, err := s.acquire(ctx, daoLockKey())
	if err != nil {
		return domain.Dao{}, err
	}
	defer unlock()

	dao, err := s.engine.InitializeDao(ctx, admin, governanceMint)
	if err != nil {
		return domain.Dao{}, err
	}

	s.record(ctx, notify.EventDaoInitialized, map[string]any{
		"dao":      string(dao.Address),
		"admin":    string(dao.Admin),
		"treasury": string(dao.Treasury),
	})
	s.announce(ctx, notify.EventDaoInitialized, "DAO initialized",
		fmt.Sprintf("admin %s, treasury %s", dao.Admin, dao.Treasury))

	return dao, nil
}

// FundAccount credits native and token units to an account. Admin only.
func (s *SettlementService) FundAccount(ctx context.Context, caller, target domain.Address, native, token uint64) (domain.Balance, error) {
	bal, err := s.engine.FundAccount(ctx, caller, target, native, token)
	if err != nil {
		return domain.Balance{}, err
	}

	s.record(ctx, "account.funded", map[string]any{
		"target": string(target),
		"native": native,
		"token":  token,
	})
	return bal, nil
}

// CreateProposal registers a new proposal and assigns it the next id.
func (s *SettlementService) CreateProposal(ctx context.Context, creator domain.Address, description string) (domain.Proposal, error) {
	// The proposal counter lives on the DAO record, so creation serializes
	// on the dao lock.
	unlock, err := s.acquire(ctx, daoLockKey())
	if err != nil {
		return domain.Proposal{}, err
	}
	defer unlock()

	p, err := s.engine.CreateProposal(ctx, creator, description)
	if err != nil {
		return domain.Proposal{}, err
	}

	s.record(ctx, notify.EventProposalCreated, map[string]any{
		"proposal_id": p.ID,
		"creator":     string(p.Creator),
		"description": p.Description,
	})
	s.publish(ctx, ChannelProposals, map[string]any{
		"event":       notify.EventProposalCreated,
		"proposal_id": p.ID,
		"creator":     string(p.Creator),
	})
	s.announce(ctx, notify.EventProposalCreated,
		fmt.Sprintf("Proposal #%d created", p.ID), p.Description)

	return p, nil
}

// OpenMarket opens the prediction market for a proposal.
func (s *SettlementService) OpenMarket(ctx context.Context, caller domain.Address, proposalID uint64, duration time.Duration) (domain.Market, error) {
	unlock, err := s.acquire(ctx, proposalLockKey(proposalID))
	if err != nil {
		return domain.Market{}, err
	}
	defer unlock()

	m, err := s.engine.OpenMarket(ctx, caller, proposalID, duration)
	if err != nil {
		return domain.Market{}, err
	}

	s.cacheSet(ctx, m)
	s.record(ctx, notify.EventMarketOpened, map[string]any{
		"proposal_id": proposalID,
		"market":      string(m.Address),
		"closes_at":   m.ClosesAt.Format(time.RFC3339),
	})
	s.publish(ctx, ChannelMarkets, map[string]any{
		"event":       notify.EventMarketOpened,
		"proposal_id": proposalID,
		"market":      string(m.Address),
		"closes_at":   m.ClosesAt.Format(time.RFC3339),
	})
	s.announce(ctx, notify.EventMarketOpened,
		fmt.Sprintf("Market opened for proposal #%d", proposalID),
		fmt.Sprintf("closes at %s", m.ClosesAt.Format(time.RFC3339)))

	return m, nil
}

// PlaceBet deposits gross units on one side of a proposal's market.
func (s *SettlementService) PlaceBet(ctx context.Context, bettor domain.Address, proposalID uint64, side domain.BetSide, gross uint64) (domain.Position, error) {
	unlock, err := s.acquire(ctx, proposalLockKey(proposalID))
	if err != nil {
		return domain.Position{}, err
	}
	defer unlock()

	var pos domain.Position
	if side.IsYes() {
		pos, err = s.engine.BuyYes(ctx, bettor, proposalID, gross)
	} else {
		pos, err = s.engine.BuyNo(ctx, bettor, proposalID, gross)
	}
	if err != nil {
		return domain.Position{}, err
	}

	s.cacheInvalidate(ctx, pos.Market)
	s.record(ctx, "bet.placed", map[string]any{
		"proposal_id": proposalID,
		"market":      string(pos.Market),
		"bettor":      string(bettor),
		"side":        string(side),
		"gross":       gross,
		"amount":      pos.Amount,
	})
	s.publish(ctx, ChannelMarkets, map[string]any{
		"event":       "bet.placed",
		"proposal_id": proposalID,
		"market":      string(pos.Market),
		"side":        string(side),
		"amount":      pos.Amount,
	})

	return pos, nil
}

// ResolveMarket fixes the outcome of a proposal's market. Admin only.
func (s *SettlementService) ResolveMarket(ctx context.Context, caller domain.Address, proposalID uint64, outcomeYes bool) (domain.Market, error) {
	unlock, err := s.acquire(ctx, proposalLockKey(proposalID))
	if err != nil {
		return domain.Market{}, err
	}
	defer unlock()

	m, err := s.engine.ResolveMarket(ctx, caller, proposalID, outcomeYes)
	if err != nil {
		return domain.Market{}, err
	}

	s.cacheInvalidate(ctx, m.Address)
	s.record(ctx, notify.EventMarketResolved, map[string]any{
		"proposal_id": proposalID,
		"market":      string(m.Address),
		"outcome_yes": m.OutcomeYes,
		"yes_pool":    m.YesPool,
		"no_pool":     m.NoPool,
		"fee_pool":    m.FeePool,
	})
	s.publish(ctx, ChannelMarkets, map[string]any{
		"event":       notify.EventMarketResolved,
		"proposal_id": proposalID,
		"market":      string(m.Address),
		"outcome_yes": m.OutcomeYes,
	})
	outcome := "NO"
	if m.OutcomeYes {
		outcome = "YES"
	}
	s.announce(ctx, notify.EventMarketResolved,
		fmt.Sprintf("Market resolved %s for proposal #%d", outcome, proposalID),
		fmt.Sprintf("yes pool %d, no pool %d", m.YesPool, m.NoPool))

	return m, nil
}

// Redeem pays out a winning position and returns the payout amount.
func (s *SettlementService) Redeem(ctx context.Context, bettor domain.Address, proposalID uint64) (uint64, error) {
	unlock, err := s.acquire(ctx, proposalLockKey(proposalID))
	if err != nil {
		return 0, err
	}
	defer unlock()

	payout, err := s.engine.Redeem(ctx, bettor, proposalID)
	if err != nil {
		return 0, err
	}

	s.record(ctx, "position.redeemed", map[string]any{
		"proposal_id": proposalID,
		"bettor":      string(bettor),
		"payout":      payout,
	})
	s.publish(ctx, ChannelMarkets, map[string]any{
		"event":       "position.redeemed",
		"proposal_id": proposalID,
		"bettor":      string(bettor),
		"payout":      payout,
	})

	return payout, nil
}

// ExecuteProposal carries out an approved proposal's treasury transfer.
// Admin only.
func (s *SettlementService) ExecuteProposal(ctx context.Context, caller domain.Address, proposalID uint64, recipient domain.Address, nativeAmount, tokenAmount uint64) error {
	unlock, err := s.acquire(ctx, proposalLockKey(proposalID))
	if err != nil {
		return err
	}
	defer unlock()

	if err := s.engine.ExecuteProposal(ctx, caller, proposalID, recipient, nativeAmount, tokenAmount); err != nil {
		return err
	}

	s.record(ctx, notify.EventProposalExecuted, map[string]any{
		"proposal_id": proposalID,
		"recipient":   string(recipient),
		"native":      nativeAmount,
		"token":       tokenAmount,
	})
	s.publish(ctx, ChannelProposals, map[string]any{
		"event":       notify.EventProposalExecuted,
		"proposal_id": proposalID,
		"recipient":   string(recipient),
	})
	s.announce(ctx, notify.EventProposalExecuted,
		fmt.Sprintf("Proposal #%d executed", proposalID),
		fmt.Sprintf("transferred %d native, %d token to %s", nativeAmount, tokenAmount, recipient))

	return nil
}

// record writes an audit entry and appends it to the settlement stream.
func (s *SettlementService) record(ctx context.Context, event string, detail map[string]any) {
	if s.audit != nil {
		if err := s.audit.Log(ctx, event, detail); err != nil {
			s.logger.WarnContext(ctx, "audit log failed",
				slog.String("event", event),
				slog.String("error", err.Error()),
			)
		}
	}
	if s.bus != nil {
		payload, err := json.Marshal(map[string]any{"event": event, "detail": detail})
		if err != nil {
			return
		}
		if err := s.bus.StreamAppend(ctx, StreamSettlement, payload); err != nil {
			s.logger.WarnContext(ctx, "stream append failed",
				slog.String("event", event),
				slog.String("error", err.Error()),
			)
		}
	}
}

// publish sends an event on a pub/sub channel.
func (s *SettlementService) publish(ctx context.Context, channel string, body map[string]any) {
	if s.bus == nil {
		return
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return
	}
	if err := s.bus.Publish(ctx, channel, payload); err != nil {
		s.logger.WarnContext(ctx, "publish failed",
			slog.String("channel", channel),
			slog.String("error", err.Error()),
		)
	}
}

// announce delivers an operator notification.
func (s *SettlementService) announce(ctx context.Context, event, title, message string) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.Notify(ctx, event, title, message); err != nil {
		s.logger.WarnContext(ctx, "notify failed",
			slog.String("event", event),
			slog.String("error", err.Error()),
		)
	}
}

func (s *SettlementService) cacheSet(ctx context.Context, m domain.Market) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Set(ctx, m); err != nil {
		s.logger.WarnContext(ctx, "cache set failed",
			slog.String("market", string(m.Address)),
			slog.String("error", err.Error()),
		)
	}
}

func (s *SettlementService) cacheInvalidate(ctx context.Context, addr domain.Address) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, addr); err != nil {
		s.logger.WarnContext(ctx, "cache invalidate failed",
			slog.String("market", string(addr)),
			slog.String("error", err.Error()),
		)
	}
}
