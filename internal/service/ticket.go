package service

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/alanyoungcy/polytrade/internal/domain"
)

var (
	ErrTicketClosed     = errors.New("service: ticket is not open")
	ErrTicketSubmitting = errors.New("service: ticket submission in progress")
)

// Submitter places a ticket's order.
type Submitter interface {
	Submit(ctx context.Context, in OrderInput) (Submission, error)
}

// TicketState is the order ticket as shown to the user.
type TicketState struct {
	ID         string               `json:"id,omitempty"`
	Open       bool                 `json:"open"`
	TokenID    string               `json:"tokenId,omitempty"`
	Outcome    string               `json:"outcome,omitempty"`
	Side       domain.OrderSide     `json:"side,omitempty"`
	PriceCents float64              `json:"priceCents,omitempty"`
	NegRisk    bool                 `json:"negRisk,omitempty"`
	Amount     string               `json:"amount"`
	Quote      *Quote               `json:"quote,omitempty"`
	Submitting bool                 `json:"submitting"`
	Success    bool                 `json:"success"`
	Error      string               `json:"error,omitempty"`
	Receipt    *domain.OrderReceipt `json:"receipt,omitempty"`
}

// TicketSpec opens a ticket on one outcome.
type TicketSpec struct {
	TokenID    string
	Outcome    string
	Side       domain.OrderSide
	PriceCents float64
	NegRisk    bool
}

// Ticket is the single order ticket of the daemon. After a successful
// submission it shows the success state for successDisplay and then closes.
type Ticket struct {
	submitter      Submitter
	successDisplay time.Duration
	logger         *slog.Logger

	mu       sync.Mutex
	state    TicketState
	timer    *time.Timer
	onChange func(TicketState)
}

// NewTicket creates a closed ticket.
func NewTicket(submitter Submitter, successDisplay time.Duration, logger *slog.Logger) *Ticket {
	if successDisplay <= 0 {
		successDisplay = 2 * time.Second
	}
	return &Ticket{
		submitter:      submitter,
		successDisplay: successDisplay,
		logger:         logger.With(slog.String("component", "ticket")),
	}
}

// OnChange registers fn to receive every state change. fn must not block.
func (t *Ticket) OnChange(fn func(TicketState)) {
	t.mu.Lock()
	t.onChange = fn
	t.mu.Unlock()
}

// State returns the current ticket.
func (t *Ticket) State() TicketState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Open shows a fresh ticket for spec, discarding any previous one.
func (t *Ticket) Open(spec TicketSpec) TicketState {
	side := spec.Side
	if side == "" {
		side = domain.OrderSideBuy
	}

	t.mu.Lock()
	t.stopTimerLocked()
	t.state = TicketState{
		ID:         uuid.NewString(),
		Open:       true,
		TokenID:    spec.TokenID,
		Outcome:    spec.Outcome,
		Side:       side,
		PriceCents: spec.PriceCents,
		NegRisk:    spec.NegRisk,
	}
	return t.commitLocked()
}

// SetAmount updates the amount and its quote. An amount that does not parse
// leaves the quote empty; it is rejected only on submit. Editing during the
// success display keeps the ticket open.
func (t *Ticket) SetAmount(amount string) (TicketState, error) {
	t.mu.Lock()
	if !t.state.Open {
		t.mu.Unlock()
		return TicketState{}, ErrTicketClosed
	}
	t.stopTimerLocked()
	t.state.Amount = amount
	t.state.Error = ""
	t.state.Success = false
	t.state.Quote = nil
	if a, err := ParseAmount(amount); err == nil {
		if q, err := NewQuote(a, t.state.PriceCents); err == nil {
			t.state.Quote = &q
		}
	}
	return t.commitLocked(), nil
}

// Submit places the ticket's order. On success the amount is cleared and the
// ticket closes after the success display. On failure the amount is kept and
// the error is shown.
func (t *Ticket) Submit(ctx context.Context) (TicketState, error) {
	t.mu.Lock()
	if !t.state.Open {
		t.mu.Unlock()
		return TicketState{}, ErrTicketClosed
	}
	if t.state.Submitting {
		t.mu.Unlock()
		return TicketState{}, ErrTicketSubmitting
	}
	id := t.state.ID
	in := OrderInput{
		TokenID:    t.state.TokenID,
		Side:       t.state.Side,
		PriceCents: t.state.PriceCents,
		Amount:     t.state.Amount,
		NegRisk:    t.state.NegRisk,
	}
	t.state.Submitting = true
	t.state.Error = ""
	t.commitLocked()

	sub, err := t.submitter.Submit(ctx, in)

	t.mu.Lock()
	if t.state.ID != id {
		// Closed or reopened while submitting.
		t.mu.Unlock()
		return t.State(), err
	}
	t.state.Submitting = false
	if err != nil {
		t.state.Error = domain.UserMessage(err)
		return t.commitLocked(), err
	}
	t.state.Amount = ""
	t.state.Quote = nil
	t.state.Success = true
	t.state.Receipt = &sub.Receipt
	t.stopTimerLocked()
	t.timer = time.AfterFunc(t.successDisplay, func() { t.closeIf(id) })
	return t.commitLocked(), nil
}

// Close hides the ticket.
func (t *Ticket) Close() TicketState {
	t.mu.Lock()
	t.stopTimerLocked()
	t.state = TicketState{}
	return t.commitLocked()
}

func (t *Ticket) closeIf(id string) {
	t.mu.Lock()
	if t.state.ID != id || !t.state.Success {
		t.mu.Unlock()
		return
	}
	t.timer = nil
	t.state = TicketState{}
	t.commitLocked()
}

func (t *Ticket) stopTimerLocked() {
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
}

// commitLocked releases mu and reports the new state.
func (t *Ticket) commitLocked() TicketState {
	st := t.state
	fn := t.onChange
	t.mu.Unlock()
	if fn != nil {
		fn(st)
	}
	return st
}
