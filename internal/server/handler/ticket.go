package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/alanyoungcy/polytrade/internal/domain"
	"github.com/alanyoungcy/polytrade/internal/service"
)

// TicketControl is the daemon's order ticket.
type TicketControl interface {
	State() service.TicketState
	Open(spec service.TicketSpec) service.TicketState
	SetAmount(amount string) (service.TicketState, error)
	Submit(ctx context.Context) (service.TicketState, error)
	Close() service.TicketState
}

// MarketLookup resolves a market id to its outcome tokens.
type MarketLookup interface {
	GetMarket(ctx context.Context, id string) (domain.Market, error)
}

type openTicketRequest struct {
	MarketID   string  `json:"marketId"`
	Outcome    string  `json:"outcome"`
	TokenID    string  `json:"tokenId"`
	PriceCents float64 `json:"priceCents"`
	NegRisk    bool    `json:"negRisk"`
	Side       string  `json:"side"`
}

type amountRequest struct {
	Amount amountField `json:"amount"`
}

// TicketHandler serves /api/ticket.
type TicketHandler struct {
	ticket  TicketControl
	markets MarketLookup
	logger  *slog.Logger
}

// NewTicketHandler creates a TicketHandler. markets may be nil, in which case
// tickets must be opened with an explicit token and price.
func NewTicketHandler(ticket TicketControl, markets MarketLookup, logger *slog.Logger) *TicketHandler {
	return &TicketHandler{ticket: ticket, markets: markets, logger: logger.With(slog.String("handler", "ticket"))}
}

// GET /api/ticket
func (h *TicketHandler) Get(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.ticket.State())
}

// POST /api/ticket opens a ticket, either on {marketId, outcome} or on an
// explicit {tokenId, priceCents}.
func (h *TicketHandler) Open(w http.ResponseWriter, r *http.Request) {
	var req openTicketRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	spec, err := h.resolve(r.Context(), req)
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, h.ticket.Open(spec))
}

func (h *TicketHandler) resolve(ctx context.Context, req openTicketRequest) (service.TicketSpec, error) {
	spec := service.TicketSpec{
		TokenID:    req.TokenID,
		Outcome:    req.Outcome,
		PriceCents: req.PriceCents,
		NegRisk:    req.NegRisk,
	}
	if req.Side != "" {
		side, ok := domain.ParseOrderSide(req.Side)
		if !ok {
			return service.TicketSpec{}, badRequest("side must be BUY or SELL")
		}
		spec.Side = side
	}

	if req.MarketID != "" {
		if h.markets == nil {
			return service.TicketSpec{}, badRequest("market lookup is not available; send tokenId and priceCents")
		}
		outcome := domain.Outcome(strings.ToLower(strings.TrimSpace(req.Outcome)))
		if outcome != domain.OutcomeYes && outcome != domain.OutcomeNo {
			return service.TicketSpec{}, badRequest("outcome must be yes or no")
		}
		market, err := h.markets.GetMarket(ctx, req.MarketID)
		if err != nil {
			return service.TicketSpec{}, err
		}
		tokenID, priceCents, ok := market.Outcome(outcome)
		if !ok {
			return service.TicketSpec{}, badRequest("market %s has no %s token", req.MarketID, outcome)
		}
		spec.TokenID = tokenID
		spec.PriceCents = priceCents
		spec.NegRisk = market.NegRisk
		if spec.Outcome == "" {
			spec.Outcome = string(outcome)
		}
	}

	if spec.TokenID == "" {
		return service.TicketSpec{}, badRequest("tokenId or marketId is required")
	}
	if !(spec.PriceCents > 0 && spec.PriceCents <= 100) {
		return service.TicketSpec{}, badRequest("priceCents must be between 0 and 100")
	}
	return spec, nil
}

// PUT /api/ticket {"amount": "50"}
func (h *TicketHandler) SetAmount(w http.ResponseWriter, r *http.Request) {
	var req amountRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	st, err := h.ticket.SetAmount(string(req.Amount))
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// POST /api/ticket/submit
func (h *TicketHandler) Submit(w http.ResponseWriter, r *http.Request) {
	st, err := h.ticket.Submit(r.Context())
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// DELETE /api/ticket
func (h *TicketHandler) Close(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.ticket.Close())
}
