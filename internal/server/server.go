// Package server exposes the lottery engine over HTTP and WebSocket.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/Dimo99/NFT-Lotary/internal/domain"
	"github.com/Dimo99/NFT-Lotary/internal/server/handler"
	"github.com/Dimo99/NFT-Lotary/internal/server/middleware"
	"github.com/Dimo99/NFT-Lotary/internal/server/ws"
)

// Config holds the HTTP server configuration.
type Config struct {
	Port        int
	CORSOrigins []string
	APIKey      string // if empty, authentication is disabled

	// RateLimit is requests per RateWindow per client IP. Zero disables
	// rate limiting.
	RateLimit  int
	RateWindow time.Duration
}

// Handlers aggregates the HTTP handlers the server registers.
type Handlers struct {
	Health    *handler.HealthHandler
	Lotteries *handler.LotteryHandler
	Tickets   *handler.TicketHandler
	Accounts  *handler.AccountHandler
}

// Server is the HTTP + WebSocket API server for the lottery engine.
type Server struct {
	httpServer *http.Server
	mux        *http.ServeMux
	logger     *slog.Logger
}

// NewServer creates a Server with all routes registered on the ServeMux and
// the middleware chain (rate limit, auth, logging, CORS) applied. limiter may
// be nil to disable rate limiting regardless of config.
func NewServer(cfg Config, handlers Handlers, wsHub *ws.Hub, limiter domain.RateLimiter, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	// Health check.
	mux.HandleFunc("GET /api/health", handlers.Health.HealthCheck)

	// Round lifecycle.
	mux.HandleFunc("GET /api/lotteries", handlers.Lotteries.ListLotteries)
	mux.HandleFunc("POST /api/lotteries", handlers.Lotteries.CreateLottery)
	mux.HandleFunc("GET /api/lotteries/history", handlers.Lotteries.ListLotteryHistory)
	mux.HandleFunc("GET /api/lotteries/{address}", handlers.Lotteries.GetLottery)

	// Draws and their recorded results.
	mux.HandleFunc("POST /api/lotteries/{address}/draws/surprise", handlers.Lotteries.DrawSurpriseWinner)
	mux.HandleFunc("POST /api/lotteries/{address}/draws/final", handlers.Lotteries.DrawFinalWinner)
	mux.HandleFunc("GET /api/lotteries/{address}/awards", handlers.Lotteries.ListAwards)

	// Tickets.
	mux.HandleFunc("POST /api/lotteries/{address}/tickets", handlers.Tickets.BuyTicket)
	mux.HandleFunc("GET /api/lotteries/{address}/tickets", handlers.Tickets.ListTickets)
	mux.HandleFunc("GET /api/lotteries/{address}/tickets/{id}", handlers.Tickets.GetTicket)
	mux.HandleFunc("POST /api/lotteries/{address}/tickets/{id}/withdraw", handlers.Tickets.WithdrawWins)
	mux.HandleFunc("POST /api/lotteries/{address}/tickets/{id}/approve", handlers.Tickets.Approve)
	mux.HandleFunc("POST /api/lotteries/{address}/tickets/{id}/transfer", handlers.Tickets.Transfer)

	// Ledger accounts.
	mux.HandleFunc("GET /api/accounts/{address}/balance", handlers.Accounts.GetBalance)
	mux.HandleFunc("GET /api/accounts/{address}/tickets", handlers.Accounts.ListOwnedTickets)
	mux.HandleFunc("POST /api/accounts/{address}/deposit", handlers.Accounts.Deposit)

	// WebSocket event feed.
	if wsHub != nil {
		mux.HandleFunc("GET /ws", wsHub.HandleWS)
	}

	var h http.Handler = mux
	if limiter != nil && cfg.RateLimit > 0 {
		window := cfg.RateWindow
		if window <= 0 {
			window = time.Second
		}
		h = middleware.RateLimit(limiter, cfg.RateLimit, window)(h)
	}
	h = middleware.Auth(cfg.APIKey)(h)
	h = middleware.Logging(logger)(h)
	h = middleware.CORS(cfg.CORSOrigins)(h)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      h,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &Server{
		httpServer: srv,
		mux:        mux,
		logger:     logger,
	}
}

// Start begins listening for HTTP requests. It blocks until the server
// encounters an error or is shut down.
func (s *Server) Start() error {
	s.logger.Info("server: starting",
		slog.String("addr", s.httpServer.Addr),
	)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server: listen: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server, waiting for in-flight requests
// to complete within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("server: shutting down")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	return nil
}
