package handler

import (
	"context"
	"log/slog"
	"math/big"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/Dimo99/NFT-Lotary/internal/domain"
	"github.com/Dimo99/NFT-Lotary/internal/lottery"
)

// TicketService defines what the ticket handler requires from the service
// layer.
type TicketService interface {
	GetRound(addr common.Address) (*lottery.Round, error)
	BuyTicket(ctx context.Context, addr, buyer common.Address, payment *big.Int) (uint64, error)
	WithdrawWins(ctx context.Context, addr, caller common.Address, ticketID uint64) (*big.Int, error)
	Approve(ctx context.Context, addr, caller, spender common.Address, ticketID uint64) error
	TransferTicket(ctx context.Context, addr, caller, from, to common.Address, ticketID uint64) error
	TicketsByRound(ctx context.Context, addr common.Address, opts domain.ListOpts) ([]domain.Ticket, error)
}

// TicketHandler serves ticket purchase, ownership, and payout endpoints.
type TicketHandler struct {
	tickets TicketService
	logger  *slog.Logger
}

// NewTicketHandler creates a TicketHandler with the given service and logger.
func NewTicketHandler(tickets TicketService, logger *slog.Logger) *TicketHandler {
	return &TicketHandler{
		tickets: tickets,
		logger:  logger,
	}
}

// buyTicketRequest is the body of the buy endpoint. Payment is the offered
// amount; only the ticket price is taken from the buyer.
type buyTicketRequest struct {
	Buyer   string `json:"buyer"`
	Payment string `json:"payment"`
}

// BuyTicket sells the next ticket of the round.
// POST /api/lotteries/{address}/tickets
func (h *TicketHandler) BuyTicket(w http.ResponseWriter, r *http.Request) {
	addr, ok := pathAddress(r, "address")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid round address")
		return
	}
	var req buyTicketRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if !common.IsHexAddress(req.Buyer) {
		writeError(w, http.StatusBadRequest, "invalid buyer address")
		return
	}
	payment, ok := parseAmount(req.Payment)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid payment amount")
		return
	}

	id, err := h.tickets.BuyTicket(r.Context(), addr, common.HexToAddress(req.Buyer), payment)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"round":  addr.Hex(),
		"ticket": id,
		"owner":  common.HexToAddress(req.Buyer).Hex(),
	})
}

// ticketResponse is the JSON view of one sold ticket.
type ticketResponse struct {
	ID       uint64 `json:"id"`
	Round    string `json:"round"`
	Owner    string `json:"owner"`
	BoughtAt string `json:"boughtAt"`
}

// ListTickets returns the reporting view of a round's tickets.
// GET /api/lotteries/{address}/tickets?limit=50&offset=0
func (h *TicketHandler) ListTickets(w http.ResponseWriter, r *http.Request) {
	addr, ok := pathAddress(r, "address")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid round address")
		return
	}
	opts := parseListOpts(r)

	tickets, err := h.tickets.TicketsByRound(r.Context(), addr, opts)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: list tickets failed",
			slog.String("round", addr.Hex()),
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
		"tickets": out,
		"limit":   opts.Limit,
		"offset":  opts.Offset,
	})
}

// GetTicket returns the live state of one ticket: owner, approval, reward,
// and metadata URI.
// GET /api/lotteries/{address}/tickets/{id}
func (h *TicketHandler) GetTicket(w http.ResponseWriter, r *http.Request) {
	addr, ok := pathAddress(r, "address")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid round address")
		return
	}
	id, ok := pathTicketID(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid ticket id")
		return
	}

	round, err := h.tickets.GetRound(addr)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	owner, err := round.OwnerOf(id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	approved, err := round.GetApproved(id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	uri, err := round.TokenURI(id)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"id":       id,
		"round":    addr.Hex(),
		"owner":    owner.Hex(),
		"approved": approved.Hex(),
		"reward":   round.RewardOf(id).String(),
		"tokenUri": uri,
	})
}

// withdrawRequest carries the caller identity for a payout.
type withdrawRequest struct {
	Caller string `json:"caller"`
}

// WithdrawWins pays out a ticket's accumulated reward.
// POST /api/lotteries/{address}/tickets/{id}/withdraw
func (h *TicketHandler) WithdrawWins(w http.ResponseWriter, r *http.Request) {
	addr, ok := pathAddress(r, "address")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid round address")
		return
	}
	id, ok := pathTicketID(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid ticket id")
		return
	}
	var req withdrawRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if !common.IsHexAddress(req.Caller) {
		writeError(w, http.StatusBadRequest, "invalid caller address")
		return
	}

	amount, err := h.tickets.WithdrawWins(r.Context(), addr, common.HexToAddress(req.Caller), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"round":  addr.Hex(),
		"ticket": id,
		"amount": amount.String(),
	})
}

// approveRequest is the body of the approval endpoint.
type approveRequest struct {
	Caller  string `json:"caller"`
	Spender string `json:"spender"`
}

// Approve sets the ticket's approved spender.
// POST /api/lotteries/{address}/tickets/{id}/approve
func (h *TicketHandler) Approve(w http.ResponseWriter, r *http.Request) {
	addr, ok := pathAddress(r, "address")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid round address")
		return
	}
	id, ok := pathTicketID(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid ticket id")
		return
	}
	var req approveRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if !common.IsHexAddress(req.Caller) || !common.IsHexAddress(req.Spender) {
		writeError(w, http.StatusBadRequest, "invalid address")
		return
	}

	if err := h.tickets.Approve(r.Context(), addr, common.HexToAddress(req.Caller), common.HexToAddress(req.Spender), id); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"round":    addr.Hex(),
		"ticket":   id,
		"approved": common.HexToAddress(req.Spender).Hex(),
	})
}

// transferRequest is the body of the transfer endpoint.
type transferRequest struct {
	Caller string `json:"caller"`
	From   string `json:"from"`
	To     string `json:"to"`
}

// Transfer moves a ticket between accounts.
// POST /api/lotteries/{address}/tickets/{id}/transfer
func (h *TicketHandler) Transfer(w http.ResponseWriter, r *http.Request) {
	addr, ok := pathAddress(r, "address")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid round address")
		return
	}
	id, ok := pathTicketID(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid ticket id")
		return
	}
	var req transferRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if !common.IsHexAddress(req.Caller) || !common.IsHexAddress(req.From) || !common.IsHexAddress(req.To) {
		writeError(w, http.StatusBadRequest, "invalid address")
		return
	}

	err := h.tickets.TransferTicket(r.Context(), addr,
		common.HexToAddress(req.Caller),
		common.HexToAddress(req.From),
		common.HexToAddress(req.To),
		id,
	)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"round":  addr.Hex(),
		"ticket": id,
		"owner":  common.HexToAddress(req.To).Hex(),
	})
}
