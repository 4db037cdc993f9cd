// Package server exposes the trading setup, wallet, order ticket and market
// lookups over HTTP, with a WebSocket push channel for state changes.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/alanyoungcy/polytrade/internal/domain"
	"github.com/alanyoungcy/polytrade/internal/server/handler"
	"github.com/alanyoungcy/polytrade/internal/server/middleware"
	"github.com/alanyoungcy/polytrade/internal/server/ws"
)

// Config holds the HTTP server configuration.
type Config struct {
	Addr        string
	CORSOrigins []string
	APIKey      string // if empty, authentication is disabled
}

// Handlers aggregates the HTTP handlers the server registers. Builder and
// Audit are optional.
type Handlers struct {
	Health  *handler.HealthHandler
	Setup   *handler.SetupHandler
	Wallet  *handler.WalletHandler
	Orders  *handler.OrderHandler
	Ticket  *handler.TicketHandler
	Markets *handler.MarketHandler
	Auth    *handler.AuthHandler
	Builder *handler.BuilderHandler
	Audit   *handler.AuditHandler
}

// AuthLimit throttles the sign-in routes per client IP.
type AuthLimit struct {
	Limiter domain.RateLimiter
	Limit   int
	Window  time.Duration
}

// Server is the HTTP + WebSocket API server.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

// NewServer registers all routes and wraps them in the middleware chain.
// authLimit may be nil.
func NewServer(cfg Config, handlers Handlers, hub *ws.Hub, authLimit *AuthLimit, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/health", handlers.Health.HealthCheck)

	mux.HandleFunc("GET /api/setup", handlers.Setup.Status)
	mux.HandleFunc("POST /api/setup/complete", handlers.Setup.Complete)
	mux.HandleFunc("POST /api/setup/credentials", handlers.Setup.GenerateCredentials)
	mux.HandleFunc("POST /api/setup/initialize", handlers.Setup.Initialize)
	mux.HandleFunc("POST /api/setup/reset", handlers.Setup.Reset)
	mux.HandleFunc("POST /api/setup/clear-error", handlers.Setup.ClearError)

	mux.HandleFunc("GET /api/wallet", handlers.Wallet.Current)
	mux.HandleFunc("POST /api/wallet/connect", handlers.Wallet.Connect)
	mux.HandleFunc("POST /api/wallet/chain", handlers.Wallet.SwitchChain)
	mux.HandleFunc("POST /api/wallet/disconnect", handlers.Wallet.Disconnect)

	mux.HandleFunc("POST /api/orders", handlers.Orders.PlaceOrder)
	mux.HandleFunc("GET /api/orders/{id}", handlers.Orders.GetOrder)
	mux.HandleFunc("DELETE /api/orders/{id}", handlers.Orders.CancelOrder)
	mux.HandleFunc("GET /api/book/{tokenID}", handlers.Orders.GetOrderBook)
	mux.HandleFunc("GET /api/quote", handlers.Orders.Quote)

	mux.HandleFunc("GET /api/ticket", handlers.Ticket.Get)
	mux.HandleFunc("POST /api/ticket", handlers.Ticket.Open)
	mux.HandleFunc("PUT /api/ticket", handlers.Ticket.SetAmount)
	mux.HandleFunc("DELETE /api/ticket", handlers.Ticket.Close)
	mux.HandleFunc("POST /api/ticket/submit", handlers.Ticket.Submit)

	mux.HandleFunc("GET /api/markets/{id}", handlers.Markets.GetMarket)
	mux.HandleFunc("GET /api/markets/slug/{slug}", handlers.Markets.GetMarketBySlug)
	mux.HandleFunc("GET /api/prices/{tokenID}", handlers.Markets.GetPrice)

	var signIn http.Handler = http.HandlerFunc(handlers.Auth.SignIn)
	var verify http.Handler = http.HandlerFunc(handlers.Auth.Verify)
	if authLimit != nil && authLimit.Limiter != nil {
		signIn = middleware.RateLimit(authLimit.Limiter, "signin", authLimit.Limit, authLimit.Window, logger)(signIn)
		verify = middleware.RateLimit(authLimit.Limiter, "verify", authLimit.Limit, authLimit.Window, logger)(verify)
	}
	mux.Handle("POST /api/auth/signin", signIn)
	mux.Handle("POST /api/auth/verify", verify)
	mux.HandleFunc("POST /api/auth/signout", handlers.Auth.SignOut)
	mux.HandleFunc("GET /api/auth/me", handlers.Auth.Me)

	if handlers.Builder != nil {
		mux.HandleFunc("POST /api/polymarket/sign", handlers.Builder.Sign)
	}

	if handlers.Audit != nil {
		mux.HandleFunc("GET /api/audit", handlers.Audit.List)
	}

	if hub != nil {
		mux.HandleFunc("GET /ws", hub.HandleWS)
	}

	var h http.Handler = mux
	h = middleware.Auth(cfg.APIKey)(h)
	h = middleware.Logging(logger)(h)
	h = middleware.CORS(cfg.CORSOrigins)(h)

	return &Server{
		httpServer: &http.Server{
			Addr:              cfg.Addr,
			Handler:           h,
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       15 * time.Second,
			WriteTimeout:      30 * time.Second,
			IdleTimeout:       60 * time.Second,
		},
		logger: logger,
	}
}

// Handler returns the root handler, middleware included.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start listens until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server: starting", slog.String("addr", s.httpServer.Addr))
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("server: listen: %w", err)
			return
		}
		errCh <- nil
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	if err := s.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return <-errCh
}

// Shutdown waits for in-flight requests within the ctx deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("server: shutting down")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	return nil
}
