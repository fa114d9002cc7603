package handler

import (
	"encoding/json"
	"errors"
	"math/big"
	"net/http"
	"strconv"

	"github.com/ethereum/go-ethereum/common"

	"github.com/Dimo99/NFT-Lotary/internal/domain"
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

// writeDomainError maps an engine rejection to its HTTP status and sends the
// rejection message as the error body. Unknown errors become a 500 with a
// generic body so internals never leak.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrRoundNotFound),
		errors.Is(err, domain.ErrUnknownTicket),
		errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrNotOperator),
		errors.Is(err, domain.ErrNotOwnerOrApproved):
		writeError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, domain.ErrLotteryNotStarted),
		errors.Is(err, domain.ErrLotteryFinished),
		errors.Is(err, domain.ErrTooEarlyForFinalDraw),
		errors.Is(err, domain.ErrNoFundsToAward),
		errors.Is(err, domain.ErrNoRewardOnTicket),
		errors.Is(err, domain.ErrStartInThePast),
		errors.Is(err, domain.ErrEndNotAfterStart),
		errors.Is(err, domain.ErrZeroPrice):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, domain.ErrInsufficientPayment),
		errors.Is(err, domain.ErrInsufficientBalance):
		writeError(w, http.StatusPaymentRequired, err.Error())
	case errors.Is(err, domain.ErrAccountFrozen):
		writeError(w, http.StatusConflict, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
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

// pathAddress extracts and validates an address path parameter.
func pathAddress(r *http.Request, name string) (common.Address, bool) {
	v := r.PathValue(name)
	if !common.IsHexAddress(v) {
		return common.Address{}, false
	}
	return common.HexToAddress(v), true
}

// pathTicketID extracts a ticket ID path parameter.
func pathTicketID(r *http.Request, name string) (uint64, bool) {
	id, err := strconv.ParseUint(r.PathValue(name), 10, 64)
	if err != nil {
		return 0, false
	}
	return id, true
}

// parseAmount parses a decimal string of the smallest currency unit. Negative
// and malformed values are rejected.
func parseAmount(s string) (*big.Int, bool) {
	n, ok := new(big.Int).SetString(s, 10)
	if !ok || n.Sign() < 0 {
		return nil, false
	}
	return n, true
}

// decodeBody strictly decodes a JSON request body into dst.
func decodeBody(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}
