package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/alanyoungcy/polytrade/internal/domain"
)

// Notification event types emitted by the order flow.
const (
	EventOrderPlaced    = "order_placed"
	EventOrderFailed    = "order_failed"
	EventOrderCancelled = "order_cancelled"
)

// OrdersChannel is the signal bus channel order events are published on.
const OrdersChannel = "orders"

// WalletPrompter asks the user to connect a wallet.
type WalletPrompter interface {
	RequestConnection(ctx context.Context) error
}

// SetupGate exposes the trading setup status the flow is gated on.
type SetupGate interface {
	Status() domain.SetupStatus
	InvalidateCredentials(ctx context.Context) error
}

// OrderPlacer submits and cancels orders on the exchange.
type OrderPlacer interface {
	CreateOrder(ctx context.Context, req domain.OrderRequest) (domain.OrderReceipt, error)
	CancelOrder(ctx context.Context, orderID string) error
}

// EventNotifier delivers operator notifications.
type EventNotifier interface {
	Notify(ctx context.Context, event, title, message string) error
}

// OrderInput is one ticket submission.
type OrderInput struct {
	TokenID    string
	Side       domain.OrderSide
	PriceCents float64
	Amount     string
	NegRisk    bool
	Type       domain.OrderType
}

// Submission is the result of a successful order.
type Submission struct {
	Quote   Quote               `json:"quote"`
	Receipt domain.OrderReceipt `json:"receipt"`
}

// OrderFlow validates a ticket, converts it to exchange units and submits it.
type OrderFlow struct {
	setup    SetupGate
	client   OrderPlacer
	prompter WalletPrompter
	logger   *slog.Logger

	limiter    domain.RateLimiter
	rateLimit  int
	rateWindow time.Duration
	audit      domain.AuditStore
	bus        domain.SignalBus
	notifier   EventNotifier
}

// NewOrderFlow creates an order flow. Rate limiting, auditing, event
// publishing and notifications are off until attached.
func NewOrderFlow(setup SetupGate, client OrderPlacer, prompter WalletPrompter, logger *slog.Logger) *OrderFlow {
	return &OrderFlow{
		setup:    setup,
		client:   client,
		prompter: prompter,
		logger:   logger.With(slog.String("component", "order_flow")),
	}
}

// WithRateLimiter limits submissions per wallet to limit per window.
func (f *OrderFlow) WithRateLimiter(l domain.RateLimiter, limit int, window time.Duration) *OrderFlow {
	f.limiter = l
	f.rateLimit = limit
	f.rateWindow = window
	return f
}

// WithAudit records every submission in the audit log.
func (f *OrderFlow) WithAudit(a domain.AuditStore) *OrderFlow {
	f.audit = a
	return f
}

// WithSignalBus publishes order events for other daemons.
func (f *OrderFlow) WithSignalBus(b domain.SignalBus) *OrderFlow {
	f.bus = b
	return f
}

// WithNotifier sends order events to the operator.
func (f *OrderFlow) WithNotifier(n EventNotifier) *OrderFlow {
	f.notifier = n
	return f
}

// Submit places in. Preconditions are checked in order: wallet connected
// (the user is prompted to connect otherwise), ready to trade, valid amount.
func (f *OrderFlow) Submit(ctx context.Context, in OrderInput) (Submission, error) {
	st := f.setup.Status()
	if !st.IsWalletConnected {
		if f.prompter != nil {
			if err := f.prompter.RequestConnection(ctx); err != nil {
				f.logger.WarnContext(ctx, "wallet connection request failed", slog.String("error", err.Error()))
			}
		}
		return Submission{}, domain.ErrWalletNotConnected
	}
	if !st.IsReadyToTrade {
		return Submission{}, domain.ErrSetupRequired
	}
	amount, err := ParseAmount(in.Amount)
	if err != nil {
		return Submission{}, err
	}
	quote, err := NewQuote(amount, in.PriceCents)
	if err != nil {
		return Submission{}, err
	}

	if err := f.allow(ctx, st.WalletAddress); err != nil {
		return Submission{}, err
	}

	orderType := in.Type
	if orderType == "" {
		orderType = domain.OrderTypeGTC
	}
	side := in.Side
	if side == "" {
		side = domain.OrderSideBuy
	}
	req := domain.OrderRequest{
		TokenID: in.TokenID,
		Price:   quote.Price,
		Size:    quote.Shares,
		Side:    side,
		Type:    orderType,
		NegRisk: in.NegRisk,
	}

	receipt, err := f.client.CreateOrder(ctx, req)
	if err != nil {
		f.onFailure(ctx, st.WalletAddress, req, err)
		return Submission{}, err
	}

	f.record(ctx, EventOrderPlaced, map[string]any{
		"wallet":   st.WalletAddress,
		"order_id": receipt.OrderID,
		"token_id": req.TokenID,
		"side":     string(req.Side),
		"price":    req.Price.String(),
		"size":     req.Size.String(),
		"amount":   amount.String(),
		"status":   receipt.Status,
	})
	f.notify(ctx, EventOrderPlaced, "Order placed",
		fmt.Sprintf("%s %s shares @ %d¢ (order %s)", req.Side, req.Size.StringFixed(2), quote.PriceCents, receipt.OrderID))

	f.logger.InfoContext(ctx, "order placed",
		slog.String("order_id", receipt.OrderID),
		slog.String("token_id", req.TokenID),
		slog.String("side", string(req.Side)),
		slog.String("price", req.Price.String()),
		slog.String("size", req.Size.String()),
		slog.String("status", receipt.Status),
	)
	return Submission{Quote: quote, Receipt: receipt}, nil
}

// Cancel cancels orderID on the exchange.
func (f *OrderFlow) Cancel(ctx context.Context, orderID string) error {
	if err := f.client.CancelOrder(ctx, orderID); err != nil {
		return err
	}
	st := f.setup.Status()
	f.record(ctx, EventOrderCancelled, map[string]any{
		"wallet":   st.WalletAddress,
		"order_id": orderID,
	})
	f.notify(ctx, EventOrderCancelled, "Order cancelled", "order "+orderID)
	f.logger.InfoContext(ctx, "order cancelled", slog.String("order_id", orderID))
	return nil
}

func (f *OrderFlow) allow(ctx context.Context, wallet string) error {
	if f.limiter == nil || f.rateLimit <= 0 {
		return nil
	}
	allowed, err := f.limiter.Allow(ctx, "orders:"+strings.ToLower(wallet), f.rateLimit, f.rateWindow)
	if err != nil {
		return fmt.Errorf("service: rate limiter: %w", err)
	}
	if !allowed {
		return domain.ErrRateLimited
	}
	return nil
}

// onFailure records a rejected order. A 401 means the exchange no longer
// accepts the wallet's credentials, so they are dropped and the next setup
// derives a fresh triple.
func (f *OrderFlow) onFailure(ctx context.Context, wallet string, req domain.OrderRequest, err error) {
	msg := domain.UserMessage(err)
	f.logger.WarnContext(ctx, "order failed",
		slog.String("token_id", req.TokenID),
		slog.String("side", string(req.Side)),
		slog.String("error", err.Error()),
	)
	f.record(ctx, EventOrderFailed, map[string]any{
		"wallet":   wallet,
		"token_id": req.TokenID,
		"side":     string(req.Side),
		"price":    req.Price.String(),
		"size":     req.Size.String(),
		"error":    msg,
	})
	f.notify(ctx, EventOrderFailed, "Order failed", msg)

	if errors.Is(err, domain.ErrUnauthorized) {
		if ierr := f.setup.InvalidateCredentials(ctx); ierr != nil {
			f.logger.WarnContext(ctx, "invalidate credentials failed", slog.String("error", ierr.Error()))
		}
	}
}

// record writes to the audit log and the signal bus. Failures are logged,
// never returned.
func (f *OrderFlow) record(ctx context.Context, event string, detail map[string]any) {
	if f.audit != nil {
		if err := f.audit.Log(ctx, event, detail); err != nil {
			f.logger.WarnContext(ctx, "audit log failed",
				slog.String("event", event),
				slog.String("error", err.Error()),
			)
		}
	}
	if f.bus != nil {
		payload := make(map[string]any, len(detail)+1)
		for k, v := range detail {
			payload[k] = v
		}
		payload["event"] = event
		evt, _ := json.Marshal(payload)
		if err := f.bus.Publish(ctx, OrdersChannel, evt); err != nil {
			f.logger.WarnContext(ctx, "publish order event failed",
				slog.String("event", event),
				slog.String("error", err.Error()),
			)
		}
	}
}

func (f *OrderFlow) notify(ctx context.Context, event, title, message string) {
	if f.notifier == nil {
		return
	}
	if err := f.notifier.Notify(ctx, event, title, message); err != nil {
		f.logger.WarnContext(ctx, "notification failed",
			slog.String("event", event),
			slog.String("error", err.Error()),
		)
	}
}
