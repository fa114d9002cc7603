package app

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/sync/errgroup"

	"github.com/Dimo99/NFT-Lotary/internal/chain"
	"github.com/Dimo99/NFT-Lotary/internal/domain"
	"github.com/Dimo99/NFT-Lotary/internal/server"
	"github.com/Dimo99/NFT-Lotary/internal/server/handler"
	"github.com/Dimo99/NFT-Lotary/internal/server/ws"
)

// ServeMode runs the long-lived daemon: the engine's event pump, the
// WebSocket hub, the manual block ticker (when the manual chain source is
// configured), and the HTTP API server.
func (a *App) ServeMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting serve mode")

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return deps.Service.Run(ctx)
	})

	hub := ws.NewHub(deps.SignalBus, a.cfg.Mode, a.logger)
	g.Go(func() error {
		return hub.Run(ctx)
	})

	if deps.Manual != nil {
		g.Go(func() error {
			return a.runBlockTicker(ctx, deps.Manual)
		})
	}

	handlers := server.Handlers{
		Health:    handler.NewHealthHandler(deps.Clock, a.logger),
		Lotteries: handler.NewLotteryHandler(deps.Service, a.logger),
		Tickets:   handler.NewTicketHandler(deps.Service, a.logger),
		Accounts:  handler.NewAccountHandler(deps.Service, a.logger),
	}
	srv := server.NewServer(server.Config{
		Port:        a.cfg.Server.Port,
		CORSOrigins: a.cfg.Server.CORSOrigins,
		APIKey:      a.cfg.Server.APIKey,
		RateLimit:   a.cfg.Server.RateLimit,
		RateWindow:  a.cfg.Server.RateWindow.Duration,
	}, handlers, hub, deps.RateLimiter, a.logger)

	g.Go(func() error {
		a.logger.InfoContext(ctx, "HTTP server listening",
			slog.Int("port", a.cfg.Server.Port),
			slog.String("url", fmt.Sprintf("http://localhost:%d", a.cfg.Server.Port)),
		)
		return srv.Start()
	})

	// Announce availability on every configured channel, ignoring the event
	// filter so the operator always hears the daemon come up.
	if deps.Notifier != nil {
		msg := fmt.Sprintf("Serving on port %d as operator %s",
			a.cfg.Server.Port, deps.Operator.Hex())
		if err := deps.Notifier.NotifyAll(ctx, "Lottery daemon online", msg); err != nil {
			a.logger.WarnContext(ctx, "startup notification failed",
				slog.String("error", err.Error()),
			)
		}
	}

	g.Go(func() error {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		a.logger.InfoContext(ctx, "HTTP server shutting down")
		return srv.Shutdown(shutCtx)
	})

	return g.Wait()
}

// runBlockTicker advances the manual block counter on a fixed interval so
// that round windows open and close without an external chain.
func (a *App) runBlockTicker(ctx context.Context, clock *chain.ManualClock) error {
	interval := a.cfg.Chain.BlockInterval.Duration
	if interval <= 0 {
		interval = time.Second
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			block := clock.Advance(1)
			a.logger.DebugContext(ctx, "block advanced", slog.Uint64("block", block))
		}
	}
}

// DemoMode runs a complete lottery lifecycle in-process against the manual
// clock: create a round, fund synthetic buyers, sell tickets, draw the
// surprise winner mid-round, sell more tickets, draw the final winner at the
// window close, and withdraw every reward. It exits when the round is
// settled.
func (a *App) DemoMode(ctx context.Context, deps *Dependencies) error {
	if deps.Manual == nil {
		return fmt.Errorf("app: demo mode requires the manual chain source")
	}

	log := a.logger.With(slog.String("component", "demo"))
	svc := deps.Service
	clock := deps.Manual

	price, ok := new(big.Int).SetString(a.cfg.Demo.TicketPrice, 10)
	if !ok || price.Sign() <= 0 {
		return fmt.Errorf("app: demo: invalid ticket_price %q", a.cfg.Demo.TicketPrice)
	}

	// Keep the event pump running so journal events reach the log.
	pumpCtx, stopPump := context.WithCancel(ctx)
	defer stopPump()
	go func() { _ = svc.Run(pumpCtx) }()

	block, err := clock.BlockNumber(ctx)
	if err != nil {
		return fmt.Errorf("app: demo: block number: %w", err)
	}
	start := block + 2
	end := start + a.cfg.Demo.WindowBlocks

	round, err := svc.CreateLottery(ctx, deps.Operator, domain.RoundParams{
		Operator:    deps.Operator,
		Name:        "Demo Lottery",
		Symbol:      "DEMO",
		StartBlock:  start,
		EndBlock:    end,
		TicketPrice: price,
		BaseURI:     "https://example.com/tickets/",
	})
	if err != nil {
		return fmt.Errorf("app: demo: create lottery: %w", err)
	}
	addr := round.Address()
	log.InfoContext(ctx, "lottery created",
		slog.String("address", addr.Hex()),
		slog.Uint64("start_block", start),
		slog.Uint64("end_block", end),
		slog.String("ticket_price", price.String()),
	)

	// Synthetic buyer accounts, each funded for ten tickets.
	buyers := make([]common.Address, a.cfg.Demo.Buyers)
	stake := new(big.Int).Mul(price, big.NewInt(10))
	for i := range buyers {
		buyers[i] = common.BigToAddress(big.NewInt(int64(i + 1)))
		svc.Deposit(buyers[i], stake)
	}

	clock.AdvanceTo(start)

	// First wave of ticket sales.
	for i, buyer := range buyers {
		payment := price
		if i == 0 {
			// Overpay once; the engine refunds the difference.
			payment = new(big.Int).Mul(price, big.NewInt(2))
		}
		id, err := svc.BuyTicket(ctx, addr, buyer, payment)
		if err != nil {
			return fmt.Errorf("app: demo: buy ticket: %w", err)
		}
		log.InfoContext(ctx, "ticket bought",
			slog.Uint64("ticket", id),
			slog.String("buyer", buyer.Hex()),
		)
	}

	clock.Advance(3)

	ticket, amount, err := svc.DrawSurpriseWinner(ctx, addr, deps.Operator)
	if err != nil {
		return fmt.Errorf("app: demo: surprise draw: %w", err)
	}
	log.InfoContext(ctx, "surprise winner drawn",
		slog.Uint64("ticket", ticket),
		slog.String("amount", amount.String()),
	)

	// Second wave refills the pool before the window closes.
	for _, buyer := range buyers {
		if _, err := svc.BuyTicket(ctx, addr, buyer, price); err != nil {
			return fmt.Errorf("app: demo: buy ticket: %w", err)
		}
	}

	clock.AdvanceTo(end)

	ticket, amount, err = svc.DrawFinalWinner(ctx, addr, buyers[0])
	if err != nil {
		return fmt.Errorf("app: demo: final draw: %w", err)
	}
	log.InfoContext(ctx, "final winner drawn",
		slog.Uint64("ticket", ticket),
		slog.String("amount", amount.String()),
	)

	// Claim every reward.
	for id := uint64(0); id < round.TicketCount(); id++ {
		if round.RewardOf(id).Sign() == 0 {
			continue
		}
		owner, err := round.OwnerOf(id)
		if err != nil {
			return fmt.Errorf("app: demo: owner of ticket %d: %w", id, err)
		}
		won, err := svc.WithdrawWins(ctx, addr, owner, id)
		if err != nil {
			return fmt.Errorf("app: demo: withdraw ticket %d: %w", id, err)
		}
		log.InfoContext(ctx, "reward withdrawn",
			slog.Uint64("ticket", id),
			slog.String("owner", owner.Hex()),
			slog.String("amount", won.String()),
		)
	}

	for _, buyer := range buyers {
		log.InfoContext(ctx, "final balance",
			slog.String("account", buyer.Hex()),
			slog.String("balance", svc.BalanceOf(buyer).String()),
		)
	}
	log.InfoContext(ctx, "demo complete",
		slog.String("remaining_pool", round.GatheredFunds().String()),
	)
	return nil
}
