package handler

import (
	"context"
	"errors"
	"log/slog"
	"math/big"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/Dimo99/NFT-Lotary/internal/domain"
	"github.com/Dimo99/NFT-Lotary/internal/lottery"
)

// LotteryService defines what the lottery handler requires from the service
// layer. It is declared locally so the handler package does not depend on the
// concrete service implementation.
type LotteryService interface {
	CreateLottery(ctx context.Context, caller common.Address, params domain.RoundParams) (*lottery.Round, error)
	GetRound(addr common.Address) (*lottery.Round, error)
	ListRounds() []*lottery.Round
	Snapshot(ctx context.Context, addr common.Address) (domain.RoundSnapshot, error)
	DrawSurpriseWinner(ctx context.Context, addr, caller common.Address) (uint64, *big.Int, error)
	DrawFinalWinner(ctx context.Context, addr, caller common.Address) (uint64, *big.Int, error)
	AwardsByRound(ctx context.Context, addr common.Address) ([]domain.AwardRecord, error)
	RoundRecord(ctx context.Context, addr common.Address) (domain.RoundRecord, error)
	RoundHistory(ctx context.Context, opts domain.ListOpts) ([]domain.RoundRecord, int64, error)
}

// LotteryHandler serves round lifecycle endpoints: creation, listing, state
// reads, and the two draws.
type LotteryHandler struct {
	lotteries LotteryService
	logger    *slog.Logger
}

// NewLotteryHandler creates a LotteryHandler with the given service and logger.
func NewLotteryHandler(lotteries LotteryService, logger *slog.Logger) *LotteryHandler {
	return &LotteryHandler{
		lotteries: lotteries,
		logger:    logger,
	}
}

// roundResponse is the JSON view of one round. Money fields travel as decimal
// strings.
type roundResponse struct {
	Address       string `json:"address"`
	Operator      string `json:"operator"`
	Name          string `json:"name"`
	Symbol        string `json:"symbol"`
	StartBlock    uint64 `json:"startBlock"`
	EndBlock      uint64 `json:"endBlock"`
	TicketPrice   string `json:"ticketPrice"`
	Phase         string `json:"phase"`
	Block         uint64 `json:"block"`
	TicketCount   uint64 `json:"ticketCount"`
	GatheredFunds string `json:"gatheredFunds"`
}

func roundView(round *lottery.Round, snap domain.RoundSnapshot) roundResponse {
	return roundResponse{
		Address:       round.Address().Hex(),
		Operator:      round.Operator().Hex(),
		Name:          round.Name(),
		Symbol:        round.Symbol(),
		StartBlock:    round.StartBlock(),
		EndBlock:      round.EndBlock(),
		TicketPrice:   round.TicketPrice().String(),
		Phase:         string(snap.Phase),
		Block:         snap.Block,
		TicketCount:   snap.TicketCount,
		GatheredFunds: snap.GatheredFunds.String(),
	}
}

// recordResponse is the JSON view of a round's reporting row, served for
// rounds that are not live in memory.
type recordResponse struct {
	Address     string `json:"address"`
	Operator    string `json:"operator"`
	Name        string `json:"name"`
	Symbol      string `json:"symbol"`
	StartBlock  uint64 `json:"startBlock"`
	EndBlock    uint64 `json:"endBlock"`
	TicketPrice string `json:"ticketPrice"`
	CreatedAt   string `json:"createdAt"`
	Archived    bool   `json:"archived"`
}

func recordView(rec domain.RoundRecord) recordResponse {
	return recordResponse{
		Address:     rec.Address.Hex(),
		Operator:    rec.Operator.Hex(),
		Name:        rec.Name,
		Symbol:      rec.Symbol,
		StartBlock:  rec.StartBlock,
		EndBlock:    rec.EndBlock,
		TicketPrice: rec.TicketPrice.String(),
		CreatedAt:   rec.CreatedAt.UTC().Format(time.RFC3339),
		Archived:    true,
	}
}

// createLotteryRequest is the body of the round creation endpoint.
type createLotteryRequest struct {
	Caller      string `json:"caller"`
	Name        string `json:"name"`
	Symbol      string `json:"symbol"`
	StartBlock  uint64 `json:"startBlock"`
	EndBlock    uint64 `json:"endBlock"`
	TicketPrice string `json:"ticketPrice"`
	BaseURI     string `json:"baseUri"`
}

// CreateLottery deploys a new round.
// POST /api/lotteries
func (h *LotteryHandler) CreateLottery(w http.ResponseWriter, r *http.Request) {
	var req createLotteryRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if !common.IsHexAddress(req.Caller) {
		writeError(w, http.StatusBadRequest, "invalid caller address")
		return
	}
	price, ok := parseAmount(req.TicketPrice)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid ticket price")
		return
	}

	round, err := h.lotteries.CreateLottery(r.Context(), common.HexToAddress(req.Caller), domain.RoundParams{
		Name:        req.Name,
		Symbol:      req.Symbol,
		StartBlock:  req.StartBlock,
		EndBlock:    req.EndBlock,
		TicketPrice: price,
		BaseURI:     req.BaseURI,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}

	snap, err := h.lotteries.Snapshot(r.Context(), round.Address())
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: snapshot new round failed",
			slog.String("round", round.Address().Hex()),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to read new round")
		return
	}
	writeJSON(w, http.StatusCreated, roundView(round, snap))
}

// ListLotteries returns every deployed round in creation order.
// GET /api/lotteries
func (h *LotteryHandler) ListLotteries(w http.ResponseWriter, r *http.Request) {
	rounds := h.lotteries.ListRounds()

	out := make([]roundResponse, 0, len(rounds))
	for _, round := range rounds {
		snap, err := h.lotteries.Snapshot(r.Context(), round.Address())
		if err != nil {
			h.logger.ErrorContext(r.Context(), "handler: snapshot round failed",
				slog.String("round", round.Address().Hex()),
				slog.String("error", err.Error()),
			)
			writeError(w, http.StatusInternalServerError, "failed to read rounds")
			return
		}
		out = append(out, roundView(round, snap))
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"lotteries": out,
		"total":     len(out),
	})
}

// GetLottery returns one round's current state.
// GET /api/lotteries/{address}
func (h *LotteryHandler) GetLottery(w http.ResponseWriter, r *http.Request) {
	addr, ok := pathAddress(r, "address")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid round address")
		return
	}

	round, err := h.lotteries.GetRound(addr)
	if err != nil {
		// Rounds from previous process lifetimes are no longer live but
		// stay readable through the reporting store.
		if errors.Is(err, domain.ErrRoundNotFound) {
			if rec, recErr := h.lotteries.RoundRecord(r.Context(), addr); recErr == nil {
				writeJSON(w, http.StatusOK, recordView(rec))
				return
			}
		}
		writeDomainError(w, err)
		return
	}
	snap, err := h.lotteries.Snapshot(r.Context(), addr)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: snapshot round failed",
			slog.String("round", addr.Hex()),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to read round")
		return
	}
	writeJSON(w, http.StatusOK, roundView(round, snap))
}

// ListLotteryHistory pages through every recorded round, including rounds
// from previous process lifetimes.
// GET /api/lotteries/history?limit=50&offset=0
func (h *LotteryHandler) ListLotteryHistory(w http.ResponseWriter, r *http.Request) {
	recs, total, err := h.lotteries.RoundHistory(r.Context(), parseListOpts(r))
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: list round history failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to list round history")
		return
	}

	out := make([]recordResponse, 0, len(recs))
	for _, rec := range recs {
		out = append(out, recordView(rec))
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"lotteries": out,
		"total":     total,
	})
}

// drawRequest carries the caller identity for a draw.
type drawRequest struct {
	Caller string `json:"caller"`
}

// drawResponse reports the outcome of a draw.
type drawResponse struct {
	Round  string `json:"round"`
	Ticket uint64 `json:"ticket"`
	Amount string `json:"amount"`
}

// DrawSurpriseWinner runs the operator's mid-window draw.
// POST /api/lotteries/{address}/draws/surprise
func (h *LotteryHandler) DrawSurpriseWinner(w http.ResponseWriter, r *http.Request) {
	h.draw(w, r, h.lotteries.DrawSurpriseWinner)
}

// DrawFinalWinner runs the terminal draw of the remaining pool.
// POST /api/lotteries/{address}/draws/final
func (h *LotteryHandler) DrawFinalWinner(w http.ResponseWriter, r *http.Request) {
	h.draw(w, r, h.lotteries.DrawFinalWinner)
}

func (h *LotteryHandler) draw(w http.ResponseWriter, r *http.Request, fn func(context.Context, common.Address, common.Address) (uint64, *big.Int, error)) {
	addr, ok := pathAddress(r, "address")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid round address")
		return
	}
	var req drawRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if !common.IsHexAddress(req.Caller) {
		writeError(w, http.StatusBadRequest, "invalid caller address")
		return
	}

	ticket, amount, err := fn(r.Context(), addr, common.HexToAddress(req.Caller))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, drawResponse{
		Round:  addr.Hex(),
		Ticket: ticket,
		Amount: amount.String(),
	})
}

// awardResponse is the JSON view of one recorded draw result.
type awardResponse struct {
	ID       string `json:"id"`
	Round    string `json:"round"`
	TicketID uint64 `json:"ticketId"`
	Kind     string `json:"kind"`
	Amount   string `json:"amount"`
	Block    uint64 `json:"block"`
	DrawnAt  string `json:"drawnAt"`
}

// ListAwards returns the recorded draw results of a round.
// GET /api/lotteries/{address}/awards
func (h *LotteryHandler) ListAwards(w http.ResponseWriter, r *http.Request) {
	addr, ok := pathAddress(r, "address")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid round address")
		return
	}

	awards, err := h.lotteries.AwardsByRound(r.Context(), addr)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: list awards failed",
			slog.String("round", addr.Hex()),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to list awards")
		return
	}

	out := make([]awardResponse, 0, len(awards))
	for _, a := range awards {
		out = append(out, awardResponse{
			ID:       a.ID,
			Round:    a.Round.Hex(),
			TicketID: a.TicketID,
			Kind:     string(a.Kind),
			Amount:   a.Amount.String(),
			Block:    a.Block,
			DrawnAt:  a.DrawnAt.UTC().Format(time.RFC3339),
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"awards": out,
		"total":  len(out),
	})
}
