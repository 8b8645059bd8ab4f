package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/Mardiprk/Mini-MetaDAO/internal/domain"
)

// writeJSON marshals v as JSON and writes it to the response with the given
// HTTP status code. If marshaling fails, it falls back to a plain-text 500.
func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		http.Error(w, `{"error":"internal server error"}`, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	w.Write(data)
}

// writeError sends a JSON-formatted error response.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeDomainError maps a settlement error to its HTTP status and writes the
// stable error code alongside the message.
func writeDomainError(w http.ResponseWriter, err error) {
	writeJSON(w, errorStatus(err), map[string]string{
		"error": err.Error(),
		"code":  domain.ErrorCode(err),
	})
}

// errorStatus maps domain errors to HTTP status codes: authorization failures
// to 403, missing records to 404, state conflicts to 409, validation failures
// to 422, everything else to 500.
func errorStatus(err error) int {
	switch {
	case errors.Is(err, domain.ErrUnauthorized):
		return http.StatusForbidden
	case errors.Is(err, domain.ErrNotFound),
		errors.Is(err, domain.ErrNotInitialized):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrAlreadyInitialized),
		errors.Is(err, domain.ErrMarketAlreadyOpen),
		errors.Is(err, domain.ErrMarketAlreadyResolved),
		errors.Is(err, domain.ErrMarketStillActive),
		errors.Is(err, domain.ErrMarketClosed),
		errors.Is(err, domain.ErrAlreadyExecuted),
		errors.Is(err, domain.ErrAlreadyRedeemed),
		errors.Is(err, domain.ErrLockHeld):
		return http.StatusConflict
	case errors.Is(err, domain.ErrBetTooSmall),
		errors.Is(err, domain.ErrInsufficientFunds),
		errors.Is(err, domain.ErrInvalidDuration),
		errors.Is(err, domain.ErrDescriptionTooLong),
		errors.Is(err, domain.ErrProposalRejected),
		errors.Is(err, domain.ErrMarketNotResolved),
		errors.Is(err, domain.ErrNotWinner),
		errors.Is(err, domain.ErrSideMismatch),
		errors.Is(err, domain.ErrInvalidArgument):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// actor extracts the caller identity from the X-Actor header. The auth
// middleware has already verified the transport; the engine treats the
// identity as authenticated.
func actor(r *http.Request) (domain.Address, bool) {
	a := r.Header.Get("X-Actor")
	if a == "" {
		return "", false
	}
	return domain.Address(a), true
}

// requireActor extracts the caller identity or writes a 400 response.
func requireActor(w http.ResponseWriter, r *http.Request) (domain.Address, bool) {
	a, ok := actor(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "missing X-Actor header")
	}
	return a, ok
}

// decodeBody unmarshals the request body into v, writing a 400 on failure.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

// parseListOpts extracts standard pagination parameters from the query string.
// Defaults: limit=50 (max 500), offset=0.
func parseListOpts(r *http.Request) domain.ListOpts {
	q := r.URL.Query()

	limit := 50
	if v := q.Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	if limit > 500 {
		limit = 500
	}

	offset := 0
	if v := q.Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			offset = n
		}
	}

	return domain.ListOpts{
		Limit:  limit,
		Offset: offset,
	}
}

// pathParam extracts a named path parameter from the request using Go 1.22+
// built-in routing (http.Request.PathValue).
func pathParam(r *http.Request, name string) string {
	return r.PathValue(name)
}

// proposalID parses the {id} path parameter, writing a 400 when it is not a
// non-negative integer.
func proposalID(w http.ResponseWriter, r *http.Request) (uint64, bool) {
	raw := pathParam(r, "id")
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid proposal id")
		return 0, false
	}
	return id, true
}

// logHandler is a convenience to attach slog fields in handler code.
func logHandler(logger *slog.Logger, handler string) *slog.Logger {
	return logger.With(slog.String("handler", handler))
}
