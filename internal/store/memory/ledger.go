// Package memory implements the domain ledger interfaces with in-process
// maps. It backs engine tests and the dev run mode; production deployments
// use the postgres ledger.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/Mardiprk/Mini-MetaDAO/internal/domain"
)

// state holds one consistent snapshot of every record kind.
type state struct {
	dao       *domain.Dao
	proposals map[uint64]domain.Proposal
	markets   map[domain.Address]domain.Market
	byProp    map[domain.Address]domain.Address // proposal -> market
	positions map[domain.Address]domain.Position
	balances  map[domain.Address]domain.Balance
}

func newState() *state {
	return &state{
		proposals: make(map[uint64]domain.Proposal),
		markets:   make(map[domain.Address]domain.Market),
		byProp:    make(map[domain.Address]domain.Address),
		positions: make(map[domain.Address]domain.Position),
		balances:  make(map[domain.Address]domain.Balance),
	}
}

func (s *state) clone() *state {
	c := newState()
	if s.dao != nil {
		dao := *s.dao
		c.dao = &dao
	}
	for k, v := range s.proposals {
		c.proposals[k] = v
	}
	for k, v := range s.markets {
		c.markets[k] = v
	}
	for k, v := range s.byProp {
		c.byProp[k] = v
	}
	for k, v := range s.positions {
		c.positions[k] = v
	}
	for k, v := range s.balances {
		c.balances[k] = v
	}
	return c
}

func (s *state) getDao() (domain.Dao, error) {
	if s.dao == nil {
		return domain.Dao{}, domain.ErrNotFound
	}
	return *s.dao, nil
}

func (s *state) putDao(d domain.Dao) {
	s.dao = &d
}

func (s *state) getProposal(id uint64) (domain.Proposal, error) {
	p, ok := s.proposals[id]
	if !ok {
		return domain.Proposal{}, domain.ErrNotFound
	}
	return p, nil
}

func (s *state) listProposals(opts domain.ListOpts) []domain.Proposal {
	out := make([]domain.Proposal, 0, len(s.proposals))
	for _, p := range s.proposals {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })

	if opts.Offset > 0 {
		if opts.Offset >= len(out) {
			return nil
		}
		out = out[opts.Offset:]
	}
	if opts.Limit > 0 && opts.Limit < len(out) {
		out = out[:opts.Limit]
	}
	return out
}

func (s *state) getMarket(addr domain.Address) (domain.Market, error) {
	m, ok := s.markets[addr]
	if !ok {
		return domain.Market{}, domain.ErrNotFound
	}
	return m, nil
}

func (s *state) putMarket(m domain.Market) {
	s.markets[m.Address] = m
	s.byProp[m.Proposal] = m.Address
}

func (s *state) getPosition(market, bettor domain.Address) (domain.Position, error) {
	p, ok := s.positions[domain.PositionAddress(market, bettor)]
	if !ok {
		return domain.Position{}, domain.ErrNotFound
	}
	return p, nil
}

func (s *state) getBalance(owner domain.Address) domain.Balance {
	if b, ok := s.balances[owner]; ok {
		return b
	}
	return domain.Balance{Owner: owner}
}

// Ledger is a mutex-guarded in-memory LedgerStore. InTx stages every write on
// a cloned snapshot and swaps it in only when the transaction function
// succeeds, so a failed instruction leaves no partial effects.
type Ledger struct {
	mu    sync.RWMutex
	state *state
}

// NewLedger creates an empty in-memory ledger.
func NewLedger() *Ledger {
	return &Ledger{state: newState()}
}

var _ domain.LedgerStore = (*Ledger)(nil)

// InTx runs fn against a staged copy of the ledger, committing the copy when
// fn returns nil and discarding it otherwise. Transactions are serialized.
func (l *Ledger) InTx(_ context.Context, fn func(tx domain.Ledger) error) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	staged := l.state.clone()
	if err := fn(&txLedger{state: staged}); err != nil {
		return err
	}
	l.state = staged
	return nil
}

func (l *Ledger) Dao(context.Context) (domain.Dao, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.state.getDao()
}

func (l *Ledger) PutDao(_ context.Context, d domain.Dao) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.state.putDao(d)
	return nil
}

func (l *Ledger) Proposal(_ context.Context, id uint64) (domain.Proposal, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.state.getProposal(id)
}

func (l *Ledger) PutProposal(_ context.Context, p domain.Proposal) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.state.proposals[p.ID] = p
	return nil
}

func (l *Ledger) ListProposals(_ context.Context, opts domain.ListOpts) ([]domain.Proposal, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.state.listProposals(opts), nil
}

func (l *Ledger) Market(_ context.Context, addr domain.Address) (domain.Market, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.state.getMarket(addr)
}

func (l *Ledger) MarketByProposal(_ context.Context, proposal domain.Address) (domain.Market, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	addr, ok := l.state.byProp[proposal]
	if !ok {
		return domain.Market{}, domain.ErrNotFound
	}
	return l.state.getMarket(addr)
}

func (l *Ledger) PutMarket(_ context.Context, m domain.Market) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.state.putMarket(m)
	return nil
}

func (l *Ledger) ListSettledMarkets(_ context.Context, before time.Time) ([]domain.Market, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	var out []domain.Market
	for _, m := range l.state.markets {
		if m.Resolved && m.ClosesAt.Before(before) {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ClosesAt.Before(out[j].ClosesAt) })
	return out, nil
}

func (l *Ledger) Position(_ context.Context, market, bettor domain.Address) (domain.Position, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.state.getPosition(market, bettor)
}

func (l *Ledger) PutPosition(_ context.Context, p domain.Position) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.state.positions[p.Address] = p
	return nil
}

func (l *Ledger) ListPositions(_ context.Context, market domain.Address) ([]domain.Position, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return positionsByMarket(l.state, market), nil
}

func (l *Ledger) Balance(_ context.Context, owner domain.Address) (domain.Balance, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.state.getBalance(owner), nil
}

func (l *Ledger) PutBalance(_ context.Context, b domain.Balance) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.state.balances[b.Owner] = b
	return nil
}

func positionsByMarket(s *state, market domain.Address) []domain.Position {
	var out []domain.Position
	for _, p := range s.positions {
		if p.Market == market {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Address < out[j].Address })
	return out
}

// txLedger operates directly on a staged state without locking; it lives
// entirely inside one InTx call.
type txLedger struct {
	state *state
}

var _ domain.Ledger = (*txLedger)(nil)

func (t *txLedger) Dao(context.Context) (domain.Dao, error) {
	return t.state.getDao()
}

func (t *txLedger) PutDao(_ context.Context, d domain.Dao) error {
	t.state.putDao(d)
	return nil
}

func (t *txLedger) Proposal(_ context.Context, id uint64) (domain.Proposal, error) {
	return t.state.getProposal(id)
}

func (t *txLedger) PutProposal(_ context.Context, p domain.Proposal) error {
	t.state.proposals[p.ID] = p
	return nil
}

func (t *txLedger) ListProposals(_ context.Context, opts domain.ListOpts) ([]domain.Proposal, error) {
	return t.state.listProposals(opts), nil
}

func (t *txLedger) Market(_ context.Context, addr domain.Address) (domain.Market, error) {
	return t.state.getMarket(addr)
}

func (t *txLedger) MarketByProposal(_ context.Context, proposal domain.Address) (domain.Market, error) {
	addr, ok := t.state.byProp[proposal]
	if !ok {
		return domain.Market{}, domain.ErrNotFound
	}
	return t.state.getMarket(addr)
}

func (t *txLedger) PutMarket(_ context.Context, m domain.Market) error {
	t.state.putMarket(m)
	return nil
}

func (t *txLedger) ListSettledMarkets(_ context.Context, before time.Time) ([]domain.Market, error) {
	var out []domain.Market
	for _, m := range t.state.markets {
		if m.Resolved && m.ClosesAt.Before(before) {
			out = append(out, m)
		}
	}
	return out, nil
}

func (t *txLedger) Position(_ context.Context, market, bettor domain.Address) (domain.Position, error) {
	return t.state.getPosition(market, bettor)
}

func (t *txLedger) PutPosition(_ context.Context, p domain.Position) error {
	t.state.positions[p.Address] = p
	return nil
}

func (t *txLedger) ListPositions(_ context.Context, market domain.Address) ([]domain.Position, error) {
	return positionsByMarket(t.state, market), nil
}

func (t *txLedger) Balance(_ context.Context, owner domain.Address) (domain.Balance, error) {
	return t.state.getBalance(owner), nil
}

func (t *txLedger) PutBalance(_ context.Context, b domain.Balance) error {
	t.state.balances[b.Owner] = b
	return nil
}
