// Package app wires the daemon together and runs it in the configured mode:
// the HTTP server, a one-shot trading setup, or a single CLI order.
package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/alanyoungcy/polytrade/internal/config"
)

// TradeArgs is the order placed by trade mode.
type TradeArgs struct {
	TokenID    string
	Side       string
	PriceCents float64
	Amount     string
	NegRisk    bool
}

// App is the root application object. It owns the configuration, logger and
// the cleanup functions run in reverse order on shutdown.
type App struct {
	cfg     *config.Config
	logger  *slog.Logger
	out     io.Writer
	trade   TradeArgs
	closers []func()
}

// New creates an App from cfg.
func New(cfg *config.Config, logger *slog.Logger) *App {
	return &App{
		cfg:    cfg,
		logger: logger.With(slog.String("component", "app")),
		out:    os.Stdout,
	}
}

// WithTrade sets the order for trade mode.
func (a *App) WithTrade(t TradeArgs) *App {
	a.trade = t
	return a
}

// WithOutput redirects the CLI modes' result output.
func (a *App) WithOutput(w io.Writer) *App {
	a.out = w
	return a
}

// Run wires all dependencies, runs the configured mode and blocks until it
// finishes or ctx is cancelled.
func (a *App) Run(ctx context.Context) error {
	a.logger.InfoContext(ctx, "starting application",
		slog.String("mode", a.cfg.Mode),
		slog.String("log_level", a.cfg.LogLevel),
	)
	for _, w := range a.cfg.Warnings() {
		a.logger.WarnContext(ctx, "config warning", slog.String("warning", w))
	}

	deps, cleanup, err := Wire(ctx, a.cfg, a.logger)
	if err != nil {
		return fmt.Errorf("app: wire dependencies: %w", err)
	}
	a.closers = append(a.closers, cleanup)

	switch strings.ToLower(a.cfg.Mode) {
	case "server":
		return a.ServerMode(ctx, deps)
	case "setup":
		return a.SetupMode(ctx, deps)
	case "trade":
		return a.TradeMode(ctx, deps)
	default:
		return fmt.Errorf("app: unsupported mode %q", a.cfg.Mode)
	}
}

// Close tears down all resources in reverse registration order. Subsequent
// calls are no-ops.
func (a *App) Close() {
	a.logger.Info("shutting down application")
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
