package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/polytrade/internal/domain"
	"github.com/alanyoungcy/polytrade/internal/server"
	"github.com/alanyoungcy/polytrade/internal/server/handler"
	"github.com/alanyoungcy/polytrade/internal/server/ws"
	"github.com/alanyoungcy/polytrade/internal/service"
)

const (
	authRateLimit  = 5
	authRateWindow = time.Minute
)

// ServerMode runs the HTTP API, the push hub, the setup machine and the
// setup event reporter until ctx is cancelled.
func (a *App) ServerMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting server mode", slog.String("addr", a.cfg.Server.Addr()))

	g, ctx := errgroup.WithContext(ctx)

	statusCh, unsubStatus := deps.Setup.Subscribe(16)
	defer unsubStatus()
	reportCh, unsubReport := deps.Setup.Subscribe(16)
	defer unsubReport()
	walletCh, unsubWallet := deps.Wallet.Subscribe(8)
	defer unsubWallet()

	hub := deps.Hub
	hub.Publish(ws.TopicStatus, deps.Setup.Status().Redacted())
	hub.Publish(ws.TopicWallet, deps.Wallet.Current())
	hub.Publish(ws.TopicTicket, deps.Ticket.State())

	g.Go(func() error {
		return hub.Run(ctx)
	})
	g.Go(func() error {
		return deps.Setup.Watch(ctx)
	})
	g.Go(func() error {
		return deps.Reporter.Run(ctx, reportCh)
	})
	g.Go(func() error {
		for {
			select {
			case <-ctx.Done():
				return nil
			case st := <-statusCh:
				hub.Publish(ws.TopicStatus, st.Redacted())
			case conn := <-walletCh:
				hub.Publish(ws.TopicWallet, conn)
			}
		}
	})

	var signer domain.WalletSigner
	if deps.Signer != nil {
		signer = deps.Signer
	}
	handlers := server.Handlers{
		Health:  handler.NewHealthHandler(a.cfg.Mode),
		Setup:   handler.NewSetupHandler(deps.Setup, a.logger),
		Wallet:  handler.NewWalletHandler(deps.Wallet, signer, a.logger),
		Orders:  handler.NewOrderHandler(deps.Flow, deps.Exchange, a.logger),
		Ticket:  handler.NewTicketHandler(deps.Ticket, deps.Backend, a.logger),
		Markets: handler.NewMarketHandler(deps.Backend, a.logger),
		Auth:    handler.NewAuthHandler(deps.Backend, a.logger),
	}
	if deps.LocalBuilder != nil {
		handlers.Builder = handler.NewBuilderHandler(deps.LocalBuilder, a.logger)
	}
	if deps.AuditStore != nil {
		handlers.Audit = handler.NewAuditHandler(deps.AuditStore, a.logger)
	}

	var authLimit *server.AuthLimit
	if deps.RateLimiter != nil {
		authLimit = &server.AuthLimit{Limiter: deps.RateLimiter, Limit: authRateLimit, Window: authRateWindow}
	}

	srv := server.NewServer(server.Config{
		Addr:        a.cfg.Server.Addr(),
		CORSOrigins: a.cfg.Server.CORSOrigins,
		APIKey:      a.cfg.Server.APIKey,
	}, handlers, hub, authLimit, a.logger)

	g.Go(func() error {
		return srv.Start(ctx)
	})

	return g.Wait()
}

// SetupMode connects the local key, completes trading setup once and prints
// the resulting status with secrets masked.
func (a *App) SetupMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting setup mode")

	err := a.connectAndSetup(ctx, deps)
	if perr := a.printJSON(deps.Setup.Status().Redacted()); perr != nil && err == nil {
		err = perr
	}
	return err
}

// TradeMode completes setup and places the order given by WithTrade.
func (a *App) TradeMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting trade mode", slog.String("token_id", a.trade.TokenID))

	in, err := a.trade.toInput()
	if err != nil {
		return err
	}
	if err := a.connectAndSetup(ctx, deps); err != nil {
		return err
	}

	sub, err := deps.Flow.Submit(ctx, in)
	if err != nil {
		return fmt.Errorf("app: place order: %s: %w", domain.UserMessage(err), err)
	}
	return a.printJSON(sub)
}

func (a *App) connectAndSetup(ctx context.Context, deps *Dependencies) error {
	if deps.Signer == nil {
		return errors.New("app: no wallet key configured")
	}

	deps.Wallet.Connect(deps.Signer, a.cfg.Polymarket.ChainID)
	deps.Setup.Observe(ctx, deps.Wallet.Current())

	if err := deps.Setup.CompleteSetup(ctx); err != nil {
		return fmt.Errorf("app: complete setup: %w", err)
	}
	st := deps.Setup.Status()
	a.logger.InfoContext(ctx, "trading setup complete",
		slog.String("address", st.WalletAddress),
		slog.String("step", string(st.CurrentStep)),
	)
	return nil
}

func (a *App) printJSON(v any) error {
	enc := json.NewEncoder(a.out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("app: write result: %w", err)
	}
	return nil
}

func (t TradeArgs) toInput() (service.OrderInput, error) {
	if t.TokenID == "" {
		return service.OrderInput{}, errors.New("app: trade mode requires a token id")
	}
	in := service.OrderInput{
		TokenID:    t.TokenID,
		PriceCents: t.PriceCents,
		Amount:     t.Amount,
		NegRisk:    t.NegRisk,
		Side:       domain.OrderSideBuy,
	}
	if t.Side != "" {
		side, ok := domain.ParseOrderSide(t.Side)
		if !ok {
			return service.OrderInput{}, fmt.Errorf("app: unknown side %q", t.Side)
		}
		in.Side = side
	}
	return in, nil
}
