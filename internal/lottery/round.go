// Package lottery implements the ticket-sale-and-settlement engine: one
// Round per lottery, selling uniquely numbered transferable tickets during a
// block window and distributing the collected pool through a mid-window
// surprise draw and a terminal final draw.
//
// Concurrency model: each Round carries a single mutex and every operation
// runs to completion under it, so state mutations never interleave. The block
// counter is read exactly once per operation, and an operation either commits
// all of its changes or none of them.
package lottery

import (
	"context"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"github.com/Dimo99/NFT-Lotary/internal/domain"
)

// Round is one lottery instance. Zero value is unusable; construct with
// NewRound and configure with Initialize.
type Round struct {
	mu    sync.Mutex
	addr  common.Address
	clock domain.BlockClock
	funds domain.FundsLedger
	sink  domain.EventSink

	initialized bool
	operator    common.Address
	name        string
	symbol      string
	startBlock  uint64
	endBlock    uint64
	ticketPrice *big.Int
	baseURI     string

	tickets       *ticketLedger
	gatheredFunds *big.Int
	rewards       map[uint64]*big.Int

	journal []domain.Event
}

// NewRound creates an uninitialized round bound to the given collaborators.
// The sink may be nil when nobody observes events (tests).
func NewRound(addr common.Address, clock domain.BlockClock, funds domain.FundsLedger, sink domain.EventSink) *Round {
	return &Round{
		addr:          addr,
		clock:         clock,
		funds:         funds,
		sink:          sink,
		tickets:       newTicketLedger(),
		gatheredFunds: new(big.Int),
		rewards:       make(map[uint64]*big.Int),
	}
}

// Initialize configures the round exactly once. Parameters are trusted: the
// factory validates them before calling.
func (r *Round) Initialize(params domain.RoundParams) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.initialized {
		return domain.ErrAlreadyInitialized
	}

	r.operator = params.Operator
	r.name = params.Name
	r.symbol = params.Symbol
	r.startBlock = params.StartBlock
	r.endBlock = params.EndBlock
	r.ticketPrice = new(big.Int).Set(params.TicketPrice)
	r.baseURI = params.BaseURI
	r.initialized = true
	return nil
}

// BuyTicket sells the next sequential ticket to buyer. The payment is the
// amount the buyer offers; only the ticket price actually leaves the buyer's
// account, so any overpayment change never moves — the refund is indivisible
// from the mint.
func (r *Round) BuyTicket(ctx context.Context, buyer common.Address, payment *big.Int) (uint64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	block, err := r.phaseCheck(ctx, domain.PhaseActive)
	if err != nil {
		return 0, err
	}
	if payment == nil || payment.Cmp(r.ticketPrice) < 0 {
		return 0, domain.ErrInsufficientPayment
	}

	if err := r.funds.Debit(buyer, r.ticketPrice); err != nil {
		return 0, fmt.Errorf("lottery: debit buyer: %w", err)
	}

	id := r.tickets.mint(buyer)
	r.gatheredFunds.Add(r.gatheredFunds, r.ticketPrice)

	r.emit(domain.NewTransferEvent(r.addr, common.Address{}, buyer, id, block))
	return id, nil
}

// WithdrawWinsForTicket pays the ticket's accumulated reward to the caller,
// who must be the ticket's owner or its approved spender. The reward is
// zeroed before the funds move; a failed transfer restores it, so the
// operation is all-or-nothing and a repeated attempt observes a zero reward.
func (r *Round) WithdrawWinsForTicket(ctx context.Context, caller common.Address, ticketID uint64) (*big.Int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.initialized {
		return nil, domain.ErrLotteryNotStarted
	}

	owner, ok := r.tickets.ownerOf(ticketID)
	if !ok {
		return nil, domain.ErrUnknownTicket
	}
	if caller != owner && caller != r.tickets.approvedFor(ticketID) {
		return nil, domain.ErrNotOwnerOrApproved
	}

	reward := r.rewards[ticketID]
	if reward == nil || reward.Sign() == 0 {
		return nil, domain.ErrNoRewardOnTicket
	}

	amount := new(big.Int).Set(reward)
	reward.SetUint64(0)

	if err := r.funds.Transfer(caller, amount); err != nil {
		reward.Set(amount)
		return nil, fmt.Errorf("lottery: pay out ticket %d: %w", ticketID, err)
	}
	return amount, nil
}

// phaseCheck reads the block counter once and verifies the round is in the
// wanted sub-phase. Callers must hold the lock.
func (r *Round) phaseCheck(ctx context.Context, want domain.Phase) (uint64, error) {
	if !r.initialized {
		return 0, domain.ErrLotteryNotStarted
	}

	block, err := r.clock.BlockNumber(ctx)
	if err != nil {
		return 0, fmt.Errorf("lottery: read block counter: %w", err)
	}

	phase := domain.PhaseAt(block, r.startBlock, r.endBlock)
	if phase == want {
		return block, nil
	}
	if want == domain.PhaseEnded {
		return 0, domain.ErrTooEarlyForFinalDraw
	}
	if phase == domain.PhaseNotStarted {
		return 0, domain.ErrLotteryNotStarted
	}
	return 0, domain.ErrLotteryFinished
}

// emit appends to the journal and forwards to the sink. Lock held.
func (r *Round) emit(e domain.Event) {
	r.journal = append(r.journal, e)
	if r.sink != nil {
		r.sink.Emit(e)
	}
}

// Address returns the round's synthetic address.
func (r *Round) Address() common.Address { return r.addr }

// Operator returns the privileged identity set at creation.
func (r *Round) Operator() common.Address {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.operator
}

// Name returns the round's name.
func (r *Round) Name() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.name
}

// Symbol returns the round's ticker symbol.
func (r *Round) Symbol() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.symbol
}

// StartBlock returns the first block of the sale window.
func (r *Round) StartBlock() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.startBlock
}

// EndBlock returns the first block past the sale window.
func (r *Round) EndBlock() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.endBlock
}

// TicketPrice returns a copy of the price per ticket.
func (r *Round) TicketPrice() *big.Int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return new(big.Int).Set(r.ticketPrice)
}

// TicketCount returns the number of tickets sold so far.
func (r *Round) TicketCount() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.tickets.count()
}

// GatheredFunds returns a copy of the unallocated pool.
func (r *Round) GatheredFunds() *big.Int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return new(big.Int).Set(r.gatheredFunds)
}

// RewardOf returns a copy of the ticket's outstanding reward. Unminted or
// unrewarded tickets read as zero.
func (r *Round) RewardOf(ticketID uint64) *big.Int {
	r.mu.Lock()
	defer r.mu.Unlock()
	if reward := r.rewards[ticketID]; reward != nil {
		return new(big.Int).Set(reward)
	}
	return new(big.Int)
}

// Snapshot returns a consistent view of the round's mutable state at the
// current block reading.
func (r *Round) Snapshot(ctx context.Context) (domain.RoundSnapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	block, err := r.clock.BlockNumber(ctx)
	if err != nil {
		return domain.RoundSnapshot{}, fmt.Errorf("lottery: read block counter: %w", err)
	}
	return domain.RoundSnapshot{
		Address:       r.addr,
		Phase:         domain.PhaseAt(block, r.startBlock, r.endBlock),
		Block:         block,
		TicketCount:   r.tickets.count(),
		GatheredFunds: new(big.Int).Set(r.gatheredFunds),
	}, nil
}

// Journal returns a copy of every event the round has emitted, in order.
func (r *Round) Journal() []domain.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.Event, len(r.journal))
	copy(out, r.journal)
	return out
}
