// Package server exposes the settlement engine over HTTP and WebSocket.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/Mardiprk/Mini-MetaDAO/internal/domain"
	"github.com/Mardiprk/Mini-MetaDAO/internal/server/handler"
	"github.com/Mardiprk/Mini-MetaDAO/internal/server/middleware"
	"github.com/Mardiprk/Mini-MetaDAO/internal/server/ws"
)

// Config holds the HTTP server configuration.
type Config struct {
	Port        int
	CORSOrigins []string
	APIKey      string // if empty, authentication is disabled

	// RateLimit requests per RateWindow per client IP; 0 disables limiting.
	RateLimit  int
	RateWindow time.Duration
}

// Handlers aggregates all HTTP handlers that the server needs to register.
type Handlers struct {
	Health    *handler.HealthHandler
	Dao       *handler.DaoHandler
	Proposals *handler.ProposalHandler
	Markets   *handler.MarketHandler
	Audit     *handler.AuditHandler
}

// Server is the HTTP + WebSocket API server for the settlement engine.
type Server struct {
	httpServer *http.Server
	mux        *http.ServeMux
	logger     *slog.Logger
}

// NewServer creates a new Server with all routes registered on the ServeMux.
// It wires up middleware (rate limiting, logging, CORS, auth) and attaches
// the WebSocket hub. The limiter may be nil to disable rate limiting.
func NewServer(cfg Config, handlers Handlers, wsHub *ws.Hub, limiter domain.RateLimiter, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	// Health check (no auth required once the auth middleware sees the key).
	mux.HandleFunc("GET /api/health", handlers.Health.HealthCheck)

	// DAO lifecycle and treasury.
	mux.HandleFunc("POST /api/dao/init", handlers.Dao.InitDao)
	mux.HandleFunc("GET /api/dao", handlers.Dao.GetDao)
	mux.HandleFunc("GET /api/treasury", handlers.Dao.GetTreasury)
	mux.HandleFunc("POST /api/balances", handlers.Dao.Fund)
	mux.HandleFunc("GET /api/balances/{address}", handlers.Dao.GetBalance)

	// Proposal lifecycle.
	mux.HandleFunc("POST /api/proposals", handlers.Proposals.CreateProposal)
	mux.HandleFunc("GET /api/proposals", handlers.Proposals.ListProposals)
	mux.HandleFunc("GET /api/proposals/{id}", handlers.Proposals.GetProposal)
	mux.HandleFunc("POST /api/proposals/{id}/execute", handlers.Proposals.Execute)

	// Market lifecycle.
	mux.HandleFunc("POST /api/proposals/{id}/market", handlers.Markets.OpenMarket)
	mux.HandleFunc("GET /api/proposals/{id}/market", handlers.Markets.GetMarket)
	mux.HandleFunc("POST /api/proposals/{id}/bets", handlers.Markets.PlaceBet)
	mux.HandleFunc("GET /api/proposals/{id}/bets", handlers.Markets.ListBets)
	mux.HandleFunc("POST /api/proposals/{id}/resolve", handlers.Markets.Resolve)
	mux.HandleFunc("POST /api/proposals/{id}/redeem", handlers.Markets.Redeem)
	mux.HandleFunc("GET /api/markets/{address}", handlers.Markets.GetMarketByAddress)
	mux.HandleFunc("GET /api/markets/{address}/positions/{bettor}", handlers.Markets.GetPosition)

	// Audit log.
	mux.HandleFunc("GET /api/audit", handlers.Audit.ListAudit)

	// WebSocket endpoint.
	if wsHub != nil {
		mux.HandleFunc("GET /ws", wsHub.HandleWS)
	}

	// Build the middleware chain.
	var h http.Handler = mux

	h = middleware.Auth(cfg.APIKey)(h)

	if limiter != nil && cfg.RateLimit > 0 {
		window := cfg.RateWindow
		if window <= 0 {
			window = time.Second
		}
		h = middleware.RateLimit(limiter, cfg.RateLimit, window)(h)
	}

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

// Handler returns the fully composed HTTP handler, middleware included.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
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
