package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/Mardiprk/Mini-MetaDAO/internal/domain"
)

// MarketService defines the market lifecycle methods the handler requires
// from the service layer.
type MarketService interface {
	OpenMarket(ctx context.Context, caller domain.Address, proposalID uint64, duration time.Duration) (domain.Market, error)
	PlaceBet(ctx context.Context, bettor domain.Address, proposalID uint64, side domain.BetSide, gross uint64) (domain.Position, error)
	ResolveMarket(ctx context.Context, caller domain.Address, proposalID uint64, outcomeYes bool) (domain.Market, error)
	Redeem(ctx context.Context, bettor domain.Address, proposalID uint64) (uint64, error)
}

// MarketReader serves market and position reads.
type MarketReader interface {
	GetMarket(ctx context.Context, proposalID uint64) (domain.Market, error)
	GetMarketByAddress(ctx context.Context, addr domain.Address) (domain.Market, error)
	GetPositionByMarket(ctx context.Context, market, bettor domain.Address) (domain.Position, error)
	ListPositions(ctx context.Context, proposalID uint64) ([]domain.Position, error)
}

// MarketHandler serves market-related HTTP endpoints.
type MarketHandler struct {
	svc    MarketService
	reader MarketReader
	logger *slog.Logger
}

// NewMarketHandler creates a MarketHandler with the given services and logger.
func NewMarketHandler(svc MarketService, reader MarketReader, logger *slog.Logger) *MarketHandler {
	return &MarketHandler{
		svc:    svc,
		reader: reader,
		logger: logger,
	}
}

type openMarketRequest struct {
	DurationSeconds int64 `json:"duration_seconds"`
}

// marketResponse augments a market with its implied YES price.
type marketResponse struct {
	Market   domain.Market `json:"market"`
	YesPrice *float64      `json:"yes_price"`
}

func toMarketResponse(m domain.Market) marketResponse {
	resp := marketResponse{Market: m}
	if price, ok := m.YesPrice(); ok {
		resp.YesPrice = &price
	}
	return resp
}

// OpenMarket opens the prediction market for a proposal.
// POST /api/proposals/{id}/market
func (h *MarketHandler) OpenMarket(w http.ResponseWriter, r *http.Request) {
	caller, ok := requireActor(w, r)
	if !ok {
		return
	}
	id, ok := proposalID(w, r)
	if !ok {
		return
	}

	var req openMarketRequest
	if !decodeBody(w, r, &req) {
		return
	}

	m, err := h.svc.OpenMarket(r.Context(), caller, id, time.Duration(req.DurationSeconds)*time.Second)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toMarketResponse(m))
}

// GetMarket returns the market attached to a proposal.
// GET /api/proposals/{id}/market
func (h *MarketHandler) GetMarket(w http.ResponseWriter, r *http.Request) {
	id, ok := proposalID(w, r)
	if !ok {
		return
	}

	m, err := h.reader.GetMarket(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toMarketResponse(m))
}

// GetMarketByAddress returns a market directly by its address.
// GET /api/markets/{address}
func (h *MarketHandler) GetMarketByAddress(w http.ResponseWriter, r *http.Request) {
	addr := pathParam(r, "address")
	if addr == "" {
		writeError(w, http.StatusBadRequest, "missing market address")
		return
	}

	m, err := h.reader.GetMarketByAddress(r.Context(), domain.Address(addr))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toMarketResponse(m))
}

type placeBetRequest struct {
	Side   string `json:"side"`
	Amount uint64 `json:"amount"`
}

// PlaceBet deposits the caller's stake on one side of a proposal's market.
// POST /api/proposals/{id}/bets
func (h *MarketHandler) PlaceBet(w http.ResponseWriter, r *http.Request) {
	bettor, ok := requireActor(w, r)
	if !ok {
		return
	}
	id, ok := proposalID(w, r)
	if !ok {
		return
	}

	var req placeBetRequest
	if !decodeBody(w, r, &req) {
		return
	}

	side, err := domain.ParseBetSide(req.Side)
	if err != nil {
		writeError(w, http.StatusBadRequest, "side must be yes or no")
		return
	}

	pos, err := h.svc.PlaceBet(r.Context(), bettor, id, side, req.Amount)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, pos)
}

// listPositionsResponse wraps the bets endpoint output.
type listPositionsResponse struct {
	Positions []domain.Position `json:"positions"`
}

// ListBets returns every position on a proposal's market.
// GET /api/proposals/{id}/bets
func (h *MarketHandler) ListBets(w http.ResponseWriter, r *http.Request) {
	id, ok := proposalID(w, r)
	if !ok {
		return
	}

	positions, err := h.reader.ListPositions(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, listPositionsResponse{Positions: positions})
}

// GetPosition returns one bettor's position on a market.
// GET /api/markets/{address}/positions/{bettor}
func (h *MarketHandler) GetPosition(w http.ResponseWriter, r *http.Request) {
	addr := pathParam(r, "address")
	bettor := pathParam(r, "bettor")
	if addr == "" || bettor == "" {
		writeError(w, http.StatusBadRequest, "missing market address or bettor")
		return
	}

	pos, err := h.reader.GetPositionByMarket(r.Context(), domain.Address(addr), domain.Address(bettor))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, pos)
}

type resolveRequest struct {
	Outcome string `json:"outcome"`
}

// Resolve fixes the outcome of a proposal's market. Admin only.
// POST /api/proposals/{id}/resolve
func (h *MarketHandler) Resolve(w http.ResponseWriter, r *http.Request) {
	caller, ok := requireActor(w, r)
	if !ok {
		return
	}
	id, ok := proposalID(w, r)
	if !ok {
		return
	}

	var req resolveRequest
	if !decodeBody(w, r, &req) {
		return
	}

	side, err := domain.ParseBetSide(req.Outcome)
	if err != nil {
		writeError(w, http.StatusBadRequest, "outcome must be yes or no")
		return
	}

	m, err := h.svc.ResolveMarket(r.Context(), caller, id, side.IsYes())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toMarketResponse(m))
}

// Redeem pays out the caller's winning position.
// POST /api/proposals/{id}/redeem
func (h *MarketHandler) Redeem(w http.ResponseWriter, r *http.Request) {
	bettor, ok := requireActor(w, r)
	if !ok {
		return
	}
	id, ok := proposalID(w, r)
	if !ok {
		return
	}

	payout, err := h.svc.Redeem(r.Context(), bettor, id)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"proposal_id": id,
		"payout":      payout,
	})
}
