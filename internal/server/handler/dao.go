package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/Mardiprk/Mini-MetaDAO/internal/domain"
)

// DaoService defines the methods the DAO handler requires from the service
// layer. It is declared locally so the handler package does not depend on the
// concrete service implementation.
type DaoService interface {
	InitializeDao(ctx context.Context, admin, governanceMint domain.Address) (domain.Dao, error)
	FundAccount(ctx context.Context, caller, target domain.Address, native, token uint64) (domain.Balance, error)
}

// DaoReader serves DAO and balance reads.
type DaoReader interface {
	GetDao(ctx context.Context) (domain.Dao, error)
	GetBalance(ctx context.Context, owner domain.Address) (domain.Balance, error)
}

// DaoHandler serves DAO lifecycle and treasury endpoints.
type DaoHandler struct {
	svc    DaoService
	reader DaoReader
	logger *slog.Logger
}

// NewDaoHandler creates a DaoHandler with the given services and logger.
func NewDaoHandler(svc DaoService, reader DaoReader, logger *slog.Logger) *DaoHandler {
	return &DaoHandler{
		svc:    svc,
		reader: reader,
		logger: logger,
	}
}

type initDaoRequest struct {
	GovernanceMint string `json:"governance_mint"`
}

// InitDao creates the DAO singleton with the caller as admin.
// POST /api/dao/init
func (h *DaoHandler) InitDao(w http.ResponseWriter, r *http.Request) {
	caller, ok := requireActor(w, r)
	if !ok {
		return
	}

	var req initDaoRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.GovernanceMint == "" {
		writeError(w, http.StatusBadRequest, "missing governance_mint")
		return
	}

	dao, err := h.svc.InitializeDao(r.Context(), caller, domain.Address(req.GovernanceMint))
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: init dao failed",
			slog.String("error", err.Error()),
		)
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, dao)
}

// GetDao returns the DAO singleton.
// GET /api/dao
func (h *DaoHandler) GetDao(w http.ResponseWriter, r *http.Request) {
	dao, err := h.reader.GetDao(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, dao)
}

// GetTreasury returns the treasury balance.
// GET /api/treasury
func (h *DaoHandler) GetTreasury(w http.ResponseWriter, r *http.Request) {
	dao, err := h.reader.GetDao(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}

	bal, err := h.reader.GetBalance(r.Context(), dao.Treasury)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: get treasury balance failed",
			slog.String("error", err.Error()),
		)
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, bal)
}

type fundRequest struct {
	Target string `json:"target"`
	Native uint64 `json:"native"`
	Token  uint64 `json:"token"`
}

// Fund credits native and token units to an account. Admin only.
// POST /api/balances
func (h *DaoHandler) Fund(w http.ResponseWriter, r *http.Request) {
	caller, ok := requireActor(w, r)
	if !ok {
		return
	}

	var req fundRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Target == "" {
		writeError(w, http.StatusBadRequest, "missing target")
		return
	}

	bal, err := h.svc.FundAccount(r.Context(), caller, domain.Address(req.Target), req.Native, req.Token)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, bal)
}

// GetBalance returns an account balance. Unknown owners hold zero.
// GET /api/balances/{address}
func (h *DaoHandler) GetBalance(w http.ResponseWriter, r *http.Request) {
	addr := pathParam(r, "address")
	if addr == "" {
		writeError(w, http.StatusBadRequest, "missing address")
		return
	}

	bal, err := h.reader.GetBalance(r.Context(), domain.Address(addr))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, bal)
}
