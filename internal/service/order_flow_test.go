package service

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/polytrade/internal/domain"
)

type fakeGate struct {
	mu          sync.Mutex
	status      domain.SetupStatus
	invalidated int
}

func (g *fakeGate) Status() domain.SetupStatus {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.status
}

func (g *fakeGate) InvalidateCredentials(context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.invalidated++
	g.status.IsReadyToTrade = false
	return nil
}

func readyGate() *fakeGate {
	return &fakeGate{status: domain.SetupStatus{
		IsWalletConnected: true,
		WalletAddress:     "0xAbC",
		IsReadyToTrade:    true,
	}}
}

type fakePlacer struct {
	mu       sync.Mutex
	requests []domain.OrderRequest
	err      error
}

func (p *fakePlacer) CreateOrder(_ context.Context, req domain.OrderRequest) (domain.OrderReceipt, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.requests = append(p.requests, req)
	if p.err != nil {
		return domain.OrderReceipt{}, p.err
	}
	return domain.OrderReceipt{Success: true, OrderID: "0xorder", Status: "live"}, nil
}

func (p *fakePlacer) CancelOrder(context.Context, string) error { return p.err }

type countingPrompter struct{ calls int }

func (c *countingPrompter) RequestConnection(context.Context) error {
	c.calls++
	return nil
}

type memAudit struct {
	mu     sync.Mutex
	events []string
}

func (a *memAudit) Log(_ context.Context, event string, _ map[string]any) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.events = append(a.events, event)
	return nil
}

func (a *memAudit) List(context.Context, domain.AuditFilter) ([]domain.AuditEntry, error) {
	return nil, nil
}

type memBus struct {
	mu       sync.Mutex
	payloads [][]byte
}

func (b *memBus) Publish(_ context.Context, _ string, payload []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.payloads = append(b.payloads, payload)
	return nil
}

func (b *memBus) Subscribe(context.Context, string) (<-chan []byte, error) {
	return nil, errors.New("unused")
}

type memNotifier struct{ events []string }

func (n *memNotifier) Notify(_ context.Context, event, _, _ string) error {
	n.events = append(n.events, event)
	return nil
}

type fixedLimiter struct{ allow bool }

func (l fixedLimiter) Allow(context.Context, string, int, time.Duration) (bool, error) {
	return l.allow, nil
}

func discard() *slog.Logger { return slog.New(slog.DiscardHandler) }

func TestSubmitPreconditionOrder(t *testing.T) {
	placer := &fakePlacer{}
	prompter := &countingPrompter{}

	// Not connected wins over everything else, and prompts for a wallet.
	flow := NewOrderFlow(&fakeGate{}, placer, prompter, discard())
	_, err := flow.Submit(t.Context(), OrderInput{Amount: "abc", PriceCents: 65})
	require.ErrorIs(t, err, domain.ErrWalletNotConnected)
	assert.Equal(t, 1, prompter.calls)

	// Connected but not ready.
	gate := &fakeGate{status: domain.SetupStatus{IsWalletConnected: true}}
	flow = NewOrderFlow(gate, placer, prompter, discard())
	_, err = flow.Submit(t.Context(), OrderInput{Amount: "abc", PriceCents: 65})
	require.ErrorIs(t, err, domain.ErrSetupRequired)
	assert.Equal(t, "Complete trading setup first", domain.UserMessage(err))

	// Ready, bad amount.
	flow = NewOrderFlow(readyGate(), placer, prompter, discard())
	for _, amount := range []string{"", "0", "-5", "abc"} {
		_, err = flow.Submit(t.Context(), OrderInput{Amount: amount, PriceCents: 65})
		require.ErrorIs(t, err, domain.ErrInvalidAmount)
	}

	assert.Empty(t, placer.requests)
	assert.Equal(t, 1, prompter.calls)
}

func TestSubmitConvertsUnits(t *testing.T) {
	placer := &fakePlacer{}
	audit := &memAudit{}
	bus := &memBus{}
	notifier := &memNotifier{}
	flow := NewOrderFlow(readyGate(), placer, nil, discard()).
		WithAudit(audit).
		WithSignalBus(bus).
		WithNotifier(notifier)

	sub, err := flow.Submit(t.Context(), OrderInput{TokenID: "tok", Side: domain.OrderSideBuy, PriceCents: 65, Amount: "50"})
	require.NoError(t, err)
	assert.Equal(t, "0xorder", sub.Receipt.OrderID)
	assert.Equal(t, "76.92", sub.Quote.Shares.String())
	assert.Equal(t, "26.92", sub.Quote.PotentialReturn.String())

	require.Len(t, placer.requests, 1)
	req := placer.requests[0]
	assert.Equal(t, "0.65", req.Price.String())
	assert.Equal(t, "76.92", req.Size.String())
	assert.Equal(t, domain.OrderTypeGTC, req.Type)
	assert.Equal(t, "tok", req.TokenID)

	assert.Equal(t, []string{EventOrderPlaced}, audit.events)
	assert.Equal(t, []string{EventOrderPlaced}, notifier.events)
	require.Len(t, bus.payloads, 1)
	var evt map[string]any
	require.NoError(t, json.Unmarshal(bus.payloads[0], &evt))
	assert.Equal(t, EventOrderPlaced, evt["event"])
	assert.Equal(t, "0xorder", evt["order_id"])
}

func TestSubmitSurfacesExchangeMessage(t *testing.T) {
	placer := &fakePlacer{err: &domain.ExchangeError{Kind: domain.ErrOrderSubmission, Message: "not enough balance / allowance"}}
	gate := readyGate()
	audit := &memAudit{}
	flow := NewOrderFlow(gate, placer, nil, discard()).WithAudit(audit)

	_, err := flow.Submit(t.Context(), OrderInput{TokenID: "tok", PriceCents: 40, Amount: "10"})
	require.ErrorIs(t, err, domain.ErrOrderSubmission)
	assert.Equal(t, "not enough balance / allowance", domain.UserMessage(err))
	assert.Equal(t, []string{EventOrderFailed}, audit.events)
	assert.Zero(t, gate.invalidated)
}

func TestSubmitUnauthorizedInvalidatesCredentials(t *testing.T) {
	placer := &fakePlacer{err: &domain.ExchangeError{Kind: domain.ErrOrderSubmission, Status: 401, Message: "Unauthorized/Invalid api key"}}
	gate := readyGate()
	flow := NewOrderFlow(gate, placer, nil, discard())

	_, err := flow.Submit(t.Context(), OrderInput{TokenID: "tok", PriceCents: 40, Amount: "10"})
	require.ErrorIs(t, err, domain.ErrUnauthorized)
	assert.Equal(t, 1, gate.invalidated)
	assert.False(t, gate.Status().IsReadyToTrade)
}

func TestSubmitRateLimited(t *testing.T) {
	placer := &fakePlacer{}
	flow := NewOrderFlow(readyGate(), placer, nil, discard()).
		WithRateLimiter(fixedLimiter{allow: false}, 5, time.Minute)

	_, err := flow.Submit(t.Context(), OrderInput{TokenID: "tok", PriceCents: 40, Amount: "10"})
	require.ErrorIs(t, err, domain.ErrRateLimited)
	assert.Empty(t, placer.requests)
}

func TestCancelRecordsEvent(t *testing.T) {
	audit := &memAudit{}
	flow := NewOrderFlow(readyGate(), &fakePlacer{}, nil, discard()).WithAudit(audit)

	require.NoError(t, flow.Cancel(t.Context(), "0xorder"))
	assert.Equal(t, []string{EventOrderCancelled}, audit.events)
}

func TestSubmitRejectsNonFinitePrice(t *testing.T) {
	placer := &fakePlacer{}
	flow := NewOrderFlow(readyGate(), placer, nil, discard())

	for _, cents := range []float64{math.NaN(), math.Inf(1)} {
		_, err := flow.Submit(t.Context(), OrderInput{TokenID: "tok", PriceCents: cents, Amount: "10"})
		require.ErrorIs(t, err, domain.ErrInvalidOrderParams)
	}
	assert.Empty(t, placer.requests)
}
