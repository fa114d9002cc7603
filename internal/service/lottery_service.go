// Package service coordinates the lottery engine with the surrounding
// infrastructure: persistence of the reporting view, event fan-out over the
// signal bus, snapshot caching, archival of drained rounds, and operator
// notifications. The in-memory rounds stay authoritative; everything the
// service writes elsewhere is a view of what the engine already decided.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"

	"github.com/Dimo99/NFT-Lotary/internal/bank"
	"github.com/Dimo99/NFT-Lotary/internal/domain"
	"github.com/Dimo99/NFT-Lotary/internal/lottery"
	"github.com/Dimo99/NFT-Lotary/internal/notify"
)

// eventChannel is the bus channel carrying every round event. Per-round
// copies go to eventChannel + ":" + address.
const eventChannel = "lottery:events"

// Deps are the collaborators of the LotteryService. Clock and Funds are
// required and validated by the constructor; the infrastructure fields may be
// nil, in which case the matching concern is skipped (demo runs without Redis
// or S3, tests without anything).
type Deps struct {
	Clock     domain.BlockClock
	Funds     *bank.Ledger
	Rounds    domain.RoundStore
	Tickets   domain.TicketStore
	Awards    domain.AwardStore
	Audit     domain.AuditStore
	Registry  domain.RegistryStore
	Bus       domain.SignalBus
	Snapshots domain.SnapshotCache
	Archiver  domain.RoundArchiver
	Notifier  *notify.Notifier
	Logger    *slog.Logger
}

// LotteryService owns the factory and exposes every engine operation with
// persistence and fan-out attached.
type LotteryService struct {
	factory *lottery.Factory
	deps    Deps
	logger  *slog.Logger

	events chan domain.Event
}

// NewLotteryService builds the service and its factory. The factory's event
// sink feeds the service's pump; call Run to start draining it. When a
// registry is configured, the factory nonce is advanced past previously
// registered rounds.
func NewLotteryService(ctx context.Context, authority common.Address, deps Deps) (*LotteryService, error) {
	if deps.Clock == nil {
		return nil, fmt.Errorf("lottery_service: block clock is required")
	}
	if deps.Funds == nil {
		return nil, fmt.Errorf("lottery_service: funds ledger is required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	s := &LotteryService{
		deps:   deps,
		logger: logger.With(slog.String("component", "lottery_service")),
		events: make(chan domain.Event, 1024),
	}
	s.factory = lottery.NewFactory(authority, deps.Clock, deps.Funds, domain.EventSinkFunc(s.enqueue))

	if deps.Registry != nil {
		addrs, err := deps.Registry.Addresses(ctx)
		if err != nil {
			return nil, fmt.Errorf("lottery_service: read registry: %w", err)
		}
		s.factory.RestoreNonce(uint64(len(addrs)))
	}
	return s, nil
}

// Factory exposes the underlying factory for read paths that want rounds
// directly.
func (s *LotteryService) Factory() *lottery.Factory { return s.factory }

// enqueue is the engine-side event sink. It must not block: the engine emits
// while holding the round lock, so a full pump buffer drops the event for the
// bus (the round journal still has it).
func (s *LotteryService) enqueue(e domain.Event) {
	select {
	case s.events <- e:
	default:
		s.logger.Warn("event pump full, dropping event",
			slog.String("type", string(e.Type)),
			slog.String("round", e.Round.Hex()),
		)
	}
}

// Run drains the event pump until ctx is cancelled, publishing each event to
// the signal bus. It always returns nil on cancellation.
func (s *LotteryService) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case e := <-s.events:
			s.publish(ctx, e)
		}
	}
}

// publish sends one event to the global and per-round bus channels.
// Publication is best effort; failures are logged and dropped.
func (s *LotteryService) publish(ctx context.Context, e domain.Event) {
	if s.deps.Bus == nil {
		return
	}

	payload, err := e.Marshal()
	if err != nil {
		s.logger.ErrorContext(ctx, "marshal event failed",
			slog.String("type", string(e.Type)),
			slog.String("error", err.Error()),
		)
		return
	}

	for _, ch := range []string{eventChannel, eventChannel + ":" + e.Round.Hex()} {
		if pubErr := s.deps.Bus.Publish(ctx, ch, payload); pubErr != nil {
			s.logger.WarnContext(ctx, "publish event failed",
				slog.String("channel", ch),
				slog.String("error", pubErr.Error()),
			)
		}
	}
}

// CreateLottery validates and deploys a new round, then registers it and
// records the reporting row.
func (s *LotteryService) CreateLottery(ctx context.Context, caller common.Address, params domain.RoundParams) (*lottery.Round, error) {
	round, err := s.factory.CreateLottery(ctx, caller, params)
	if err != nil {
		return nil, err
	}

	rec := domain.RoundRecord{
		Address:     round.Address(),
		Operator:    round.Operator(),
		Name:        params.Name,
		Symbol:      params.Symbol,
		StartBlock:  params.StartBlock,
		EndBlock:    params.EndBlock,
		TicketPrice: round.TicketPrice(),
		BaseURI:     params.BaseURI,
		CreatedAt:   time.Now().UTC(),
	}

	if s.deps.Registry != nil {
		if regErr := s.deps.Registry.Put(ctx, rec); regErr != nil {
			s.logger.ErrorContext(ctx, "register round failed",
				slog.String("round", rec.Address.Hex()),
				slog.String("error", regErr.Error()),
			)
		}
	}
	if s.deps.Rounds != nil {
		if insErr := s.deps.Rounds.Insert(ctx, rec); insErr != nil {
			s.logger.ErrorContext(ctx, "insert round row failed",
				slog.String("round", rec.Address.Hex()),
				slog.String("error", insErr.Error()),
			)
		}
	}
	s.auditLog(ctx, "lottery_created", map[string]any{
		"round":        rec.Address.Hex(),
		"operator":     rec.Operator.Hex(),
		"name":         rec.Name,
		"start_block":  rec.StartBlock,
		"end_block":    rec.EndBlock,
		"ticket_price": rec.TicketPrice.String(),
	})

	s.logger.InfoContext(ctx, "lottery created",
		slog.String("round", rec.Address.Hex()),
		slog.String("name", rec.Name),
		slog.Uint64("start_block", rec.StartBlock),
		slog.Uint64("end_block", rec.EndBlock),
	)
	return round, nil
}

// GetRound returns the live round at addr.
func (s *LotteryService) GetRound(addr common.Address) (*lottery.Round, error) {
	return s.factory.Get(addr)
}

// ListRounds returns every deployed round in creation order.
func (s *LotteryService) ListRounds() []*lottery.Round {
	return s.factory.List()
}

// Snapshot returns a consistent view of the round's state, refreshing the
// snapshot cache on the way out.
func (s *LotteryService) Snapshot(ctx context.Context, addr common.Address) (domain.RoundSnapshot, error) {
	round, err := s.factory.Get(addr)
	if err != nil {
		return domain.RoundSnapshot{}, err
	}
	snap, err := round.Snapshot(ctx)
	if err != nil {
		return domain.RoundSnapshot{}, err
	}
	if s.deps.Snapshots != nil {
		if cacheErr := s.deps.Snapshots.Set(ctx, snap); cacheErr != nil {
			s.logger.WarnContext(ctx, "cache snapshot failed",
				slog.String("round", addr.Hex()),
				slog.String("error", cacheErr.Error()),
			)
		}
	}
	return snap, nil
}

// BuyTicket purchases the next ticket of the round for buyer and records the
// sale.
func (s *LotteryService) BuyTicket(ctx context.Context, addr, buyer common.Address, payment *big.Int) (uint64, error) {
	round, err := s.factory.Get(addr)
	if err != nil {
		return 0, err
	}
	id, err := round.BuyTicket(ctx, buyer, payment)
	if err != nil {
		return 0, err
	}

	if s.deps.Tickets != nil {
		t := domain.Ticket{ID: id, Round: addr, Owner: buyer, BoughtAt: time.Now().UTC()}
		if insErr := s.deps.Tickets.Insert(ctx, t); insErr != nil {
			s.logger.ErrorContext(ctx, "insert ticket row failed",
				slog.String("round", addr.Hex()),
				slog.Uint64("ticket", id),
				slog.String("error", insErr.Error()),
			)
		}
	}
	s.auditLog(ctx, "ticket_bought", map[string]any{
		"round":  addr.Hex(),
		"ticket": id,
		"buyer":  buyer.Hex(),
	})
	return id, nil
}

// DrawSurpriseWinner runs the operator's mid-window draw of half the pool.
func (s *LotteryService) DrawSurpriseWinner(ctx context.Context, addr, caller common.Address) (uint64, *big.Int, error) {
	round, err := s.factory.Get(addr)
	if err != nil {
		return 0, nil, err
	}
	winner, amount, err := round.DrawSurpriseWinner(ctx, caller)
	if err != nil {
		return 0, nil, err
	}
	s.recordAward(ctx, round, domain.AwardSurprise, winner, amount)
	return winner, amount, nil
}

// DrawFinalWinner runs the terminal draw of the entire remaining pool and,
// once the pool is drained, archives the round's journal.
func (s *LotteryService) DrawFinalWinner(ctx context.Context, addr, caller common.Address) (uint64, *big.Int, error) {
	round, err := s.factory.Get(addr)
	if err != nil {
		return 0, nil, err
	}
	winner, amount, err := round.DrawFinalWinner(ctx, caller)
	if err != nil {
		return 0, nil, err
	}
	s.recordAward(ctx, round, domain.AwardFinal, winner, amount)

	if s.deps.Archiver != nil {
		if archErr := s.deps.Archiver.ArchiveRound(ctx, addr, round.Journal()); archErr != nil {
			s.logger.ErrorContext(ctx, "archive round failed",
				slog.String("round", addr.Hex()),
				slog.String("error", archErr.Error()),
			)
		}
	}
	return winner, amount, nil
}

// recordAward persists the draw result and notifies the operator channels.
func (s *LotteryService) recordAward(ctx context.Context, round *lottery.Round, kind domain.AwardKind, winner uint64, amount *big.Int) {
	addr := round.Address()
	block := uint64(0)
	if b, err := s.deps.Clock.BlockNumber(ctx); err == nil {
		block = b
	}

	if s.deps.Awards != nil {
		rec := domain.AwardRecord{
			ID:       newAwardID(),
			Round:    addr,
			TicketID: winner,
			Kind:     kind,
			Amount:   new(big.Int).Set(amount),
			Block:    block,
			DrawnAt:  time.Now().UTC(),
		}
		if insErr := s.deps.Awards.Insert(ctx, rec); insErr != nil {
			s.logger.ErrorContext(ctx, "insert award row failed",
				slog.String("round", addr.Hex()),
				slog.Uint64("ticket", winner),
				slog.String("error", insErr.Error()),
			)
		}
	}
	s.auditLog(ctx, string(kind)+"_winner_drawn", map[string]any{
		"round":  addr.Hex(),
		"ticket": winner,
		"amount": amount.String(),
	})

	if s.deps.Notifier != nil {
		title := "Surprise winner awarded"
		if kind == domain.AwardFinal {
			title = "Final winner awarded"
		}
		msg := fmt.Sprintf("Round %s: ticket %d won %s", addr.Hex(), winner, amount)
		if notifyErr := s.deps.Notifier.Notify(ctx, string(kind)+"_winner", title, msg); notifyErr != nil {
			s.logger.WarnContext(ctx, "notify failed",
				slog.String("round", addr.Hex()),
				slog.String("error", notifyErr.Error()),
			)
		}
	}

	s.logger.InfoContext(ctx, "winner drawn",
		slog.String("round", addr.Hex()),
		slog.String("kind", string(kind)),
		slog.Uint64("ticket", winner),
		slog.String("amount", amount.String()),
	)
}

// WithdrawWins pays out a ticket's accumulated reward to the caller.
func (s *LotteryService) WithdrawWins(ctx context.Context, addr, caller common.Address, ticketID uint64) (*big.Int, error) {
	round, err := s.factory.Get(addr)
	if err != nil {
		return nil, err
	}
	amount, err := round.WithdrawWinsForTicket(ctx, caller, ticketID)
	if err != nil {
		return nil, err
	}

	if s.deps.Awards != nil {
		if markErr := s.deps.Awards.MarkWithdrawn(ctx, addr, ticketID, time.Now().UTC()); markErr != nil {
			s.logger.ErrorContext(ctx, "mark award withdrawn failed",
				slog.String("round", addr.Hex()),
				slog.Uint64("ticket", ticketID),
				slog.String("error", markErr.Error()),
			)
		}
	}
	s.auditLog(ctx, "wins_withdrawn", map[string]any{
		"round":  addr.Hex(),
		"ticket": ticketID,
		"caller": caller.Hex(),
		"amount": amount.String(),
	})
	return amount, nil
}

// Approve sets the ticket's approved spender.
func (s *LotteryService) Approve(ctx context.Context, addr, caller, spender common.Address, ticketID uint64) error {
	round, err := s.factory.Get(addr)
	if err != nil {
		return err
	}
	if err := round.Approve(caller, spender, ticketID); err != nil {
		return err
	}
	s.auditLog(ctx, "ticket_approved", map[string]any{
		"round":   addr.Hex(),
		"ticket":  ticketID,
		"spender": spender.Hex(),
	})
	return nil
}

// TransferTicket moves a ticket between accounts and updates the reporting
// owner.
func (s *LotteryService) TransferTicket(ctx context.Context, addr, caller, from, to common.Address, ticketID uint64) error {
	round, err := s.factory.Get(addr)
	if err != nil {
		return err
	}
	if err := round.TransferFrom(ctx, caller, from, to, ticketID); err != nil {
		return err
	}

	if s.deps.Tickets != nil {
		if updErr := s.deps.Tickets.UpdateOwner(ctx, addr, ticketID, to); updErr != nil {
			s.logger.ErrorContext(ctx, "update ticket owner failed",
				slog.String("round", addr.Hex()),
				slog.Uint64("ticket", ticketID),
				slog.String("error", updErr.Error()),
			)
		}
	}
	s.auditLog(ctx, "ticket_transferred", map[string]any{
		"round":  addr.Hex(),
		"ticket": ticketID,
		"from":   from.Hex(),
		"to":     to.Hex(),
	})
	return nil
}

// TicketsByRound lists the reporting view of a round's tickets.
func (s *LotteryService) TicketsByRound(ctx context.Context, addr common.Address, opts domain.ListOpts) ([]domain.Ticket, error) {
	if s.deps.Tickets == nil {
		return nil, nil
	}
	tickets, err := s.deps.Tickets.ListByRound(ctx, addr, opts)
	if err != nil {
		return nil, fmt.Errorf("lottery_service: list tickets for %s: %w", addr.Hex(), err)
	}
	return tickets, nil
}

// AwardsByRound lists the reporting view of a round's draw results.
func (s *LotteryService) AwardsByRound(ctx context.Context, addr common.Address) ([]domain.AwardRecord, error) {
	if s.deps.Awards == nil {
		return nil, nil
	}
	awards, err := s.deps.Awards.ListByRound(ctx, addr)
	if err != nil {
		return nil, fmt.Errorf("lottery_service: list awards for %s: %w", addr.Hex(), err)
	}
	return awards, nil
}

// TicketsByOwner lists the reporting view of every ticket an account holds
// across rounds.
func (s *LotteryService) TicketsByOwner(ctx context.Context, owner common.Address, opts domain.ListOpts) ([]domain.Ticket, error) {
	if s.deps.Tickets == nil {
		return nil, nil
	}
	tickets, err := s.deps.Tickets.ListByOwner(ctx, owner, opts)
	if err != nil {
		return nil, fmt.Errorf("lottery_service: list tickets for owner %s: %w", owner.Hex(), err)
	}
	return tickets, nil
}

// RoundRecord returns the reporting row of a round. Unlike GetRound it also
// answers for rounds created in previous process lifetimes, which are no
// longer live in memory.
func (s *LotteryService) RoundRecord(ctx context.Context, addr common.Address) (domain.RoundRecord, error) {
	if s.deps.Rounds == nil {
		return domain.RoundRecord{}, domain.ErrRoundNotFound
	}
	rec, err := s.deps.Rounds.GetByAddress(ctx, addr)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.RoundRecord{}, domain.ErrRoundNotFound
		}
		return domain.RoundRecord{}, fmt.Errorf("lottery_service: round record %s: %w", addr.Hex(), err)
	}
	return rec, nil
}

// RoundHistory pages through every recorded round, including ones that
// predate this process, together with the all-time total.
func (s *LotteryService) RoundHistory(ctx context.Context, opts domain.ListOpts) ([]domain.RoundRecord, int64, error) {
	if s.deps.Rounds == nil {
		return nil, 0, nil
	}
	recs, err := s.deps.Rounds.List(ctx, opts)
	if err != nil {
		return nil, 0, fmt.Errorf("lottery_service: list round history: %w", err)
	}
	total, err := s.deps.Rounds.Count(ctx)
	if err != nil {
		return nil, 0, fmt.Errorf("lottery_service: count rounds: %w", err)
	}
	return recs, total, nil
}

// Deposit funds an account in the ledger. Exposed for demo and local use; a
// real deployment funds accounts out of band.
func (s *LotteryService) Deposit(account common.Address, amount *big.Int) {
	s.deps.Funds.Deposit(account, amount)
}

// BalanceOf returns an account's ledger balance.
func (s *LotteryService) BalanceOf(account common.Address) *big.Int {
	return s.deps.Funds.BalanceOf(account)
}

// newAwardID mints the primary key for an award row.
func newAwardID() string { return uuid.NewString() }

// auditLog writes one audit row, logging and dropping failures.
func (s *LotteryService) auditLog(ctx context.Context, event string, detail map[string]any) {
	if s.deps.Audit == nil {
		return
	}
	if err := s.deps.Audit.Log(ctx, event, detail); err != nil {
		s.logger.WarnContext(ctx, "audit log failed",
			slog.String("event", event),
			slog.String("error", err.Error()),
		)
	}
}
