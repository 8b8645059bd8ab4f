package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/Mardiprk/Mini-MetaDAO/internal/domain"
)

// ProposalService defines the proposal lifecycle methods the handler requires
// from the service layer.
type ProposalService interface {
	CreateProposal(ctx context.Context, creator domain.Address, description string) (domain.Proposal, error)
	ExecuteProposal(ctx context.Context, caller domain.Address, proposalID uint64, recipient domain.Address, nativeAmount, tokenAmount uint64) error
}

// ProposalReader serves proposal reads.
type ProposalReader interface {
	GetProposal(ctx context.Context, id uint64) (domain.Proposal, error)
	ListProposals(ctx context.Context, opts domain.ListOpts) ([]domain.Proposal, error)
}

// ProposalHandler serves proposal-related HTTP endpoints.
type ProposalHandler struct {
	svc    ProposalService
	reader ProposalReader
	logger *slog.Logger
}

// NewProposalHandler creates a ProposalHandler with the given services and
// logger.
func NewProposalHandler(svc ProposalService, reader ProposalReader, logger *slog.Logger) *ProposalHandler {
	return &ProposalHandler{
		svc:    svc,
		reader: reader,
		logger: logger,
	}
}

type createProposalRequest struct {
	Description string `json:"description"`
}

// CreateProposal registers a new proposal for the caller.
// POST /api/proposals
func (h *ProposalHandler) CreateProposal(w http.ResponseWriter, r *http.Request) {
	creator, ok := requireActor(w, r)
	if !ok {
		return
	}

	var req createProposalRequest
	if !decodeBody(w, r, &req) {
		return
	}

	p, err := h.svc.CreateProposal(r.Context(), creator, req.Description)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, p)
}

// listProposalsResponse wraps the list endpoint output with metadata.
type listProposalsResponse struct {
	Proposals []domain.Proposal `json:"proposals"`
	Limit     int               `json:"limit"`
	Offset    int               `json:"offset"`
}

// ListProposals returns proposals ordered by id with pagination.
// GET /api/proposals?limit=50&offset=0
func (h *ProposalHandler) ListProposals(w http.ResponseWriter, r *http.Request) {
	opts := parseListOpts(r)

	proposals, err := h.reader.ListProposals(r.Context(), opts)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: list proposals failed",
			slog.String("error", err.Error()),
		)
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, listProposalsResponse{
		Proposals: proposals,
		Limit:     opts.Limit,
		Offset:    opts.Offset,
	})
}

// GetProposal returns a single proposal by its id.
// GET /api/proposals/{id}
func (h *ProposalHandler) GetProposal(w http.ResponseWriter, r *http.Request) {
	id, ok := proposalID(w, r)
	if !ok {
		return
	}

	p, err := h.reader.GetProposal(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

type executeRequest struct {
	Recipient string `json:"recipient"`
	Native    uint64 `json:"native"`
	Token     uint64 `json:"token"`
}

// Execute carries out an approved proposal's treasury transfer. Admin only.
// POST /api/proposals/{id}/execute
func (h *ProposalHandler) Execute(w http.ResponseWriter, r *http.Request) {
	caller, ok := requireActor(w, r)
	if !ok {
		return
	}
	id, ok := proposalID(w, r)
	if !ok {
		return
	}

	var req executeRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Recipient == "" {
		writeError(w, http.StatusBadRequest, "missing recipient")
		return
	}

	if err := h.svc.ExecuteProposal(r.Context(), caller, id, domain.Address(req.Recipient), req.Native, req.Token); err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"proposal_id": id,
		"executed":    true,
	})
}
