package handler

import (
	"context"
	"log/slog"
	"math/big"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/Dimo99/NFT-Lotary/internal/domain"
)

// AccountService defines what the account handler requires from the service
// layer: reads and funding of the in-process ledger, plus the reporting view
// of an account's tickets.
type AccountService interface {
	BalanceOf(account common.Address) *big.Int
	Deposit(account common.Address, amount *big.Int)
	TicketsByOwner(ctx context.Context, owner common.Address, opts domain.ListOpts) ([]domain.Ticket, error)
}

// AccountHandler serves ledger account endpoints.
type AccountHandler struct {
	accounts AccountService
	logger   *slog.Logger
}

// NewAccountHandler creates an AccountHandler with the given service and
// logger.
func NewAccountHandler(accounts AccountService, logger *slog.Logger) *AccountHandler {
	return &AccountHandler{
		accounts: accounts,
		logger:   logger,
	}
}

// GetBalance returns an account's ledger balance.
// GET /api/accounts/{address}/balance
func (h *AccountHandler) GetBalance(w http.ResponseWriter, r *http.Request) {
	addr, ok := pathAddress(r, "address")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid account address")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"account": addr.Hex(),
		"balance": h.accounts.BalanceOf(addr).String(),
	})
}

// ListOwnedTickets returns the reporting view of every ticket an account
// holds across rounds, most recent purchases first.
// GET /api/accounts/{address}/tickets?limit=50&offset=0
func (h *AccountHandler) ListOwnedTickets(w http.ResponseWriter, r *http.Request) {
	addr, ok := pathAddress(r, "address")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid account address")
		return
	}

	tickets, err := h.accounts.TicketsByOwner(r.Context(), addr, parseListOpts(r))
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: list owned tickets failed",
			slog.String("account", addr.Hex()),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to list tickets")
		return
	}

	out := make([]ticketResponse, 0, len(tickets))
	for _, t := range tickets {
		out = append(out, ticketResponse{
			ID:       t.ID,
			Round:    t.Round.Hex(),
			Owner:    t.Owner.Hex(),
			BoughtAt: t.BoughtAt.UTC().Format(time.RFC3339),
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"account": addr.Hex(),
		"tickets": out,
		"total":   len(out),
	})
}

// depositRequest is the body of the funding endpoint.
type depositRequest struct {
	Amount string `json:"amount"`
}

// Deposit credits an account. Intended for local and demo deployments; the
// endpoint sits behind the API key like every other mutation.
// POST /api/accounts/{address}/deposit
func (h *AccountHandler) Deposit(w http.ResponseWriter, r *http.Request) {
	addr, ok := pathAddress(r, "address")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid account address")
		return
	}
	var req depositRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	amount, ok := parseAmount(req.Amount)
	if !ok || amount.Sign() == 0 {
		writeError(w, http.StatusBadRequest, "invalid deposit amount")
		return
	}

	h.accounts.Deposit(addr, amount)
	h.logger.InfoContext(r.Context(), "handler: account funded",
		slog.String("account", addr.Hex()),
		slog.String("amount", amount.String()),
	)
	writeJSON(w, http.StatusOK, map[string]any{
		"account": addr.Hex(),
		"balance": h.accounts.BalanceOf(addr).String(),
	})
}
