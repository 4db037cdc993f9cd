package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/alanyoungcy/polytrade/internal/domain"
	"github.com/alanyoungcy/polytrade/internal/service"
)

// OrderSubmitter places and cancels orders through the order flow.
type OrderSubmitter interface {
	Submit(ctx context.Context, in service.OrderInput) (service.Submission, error)
	Cancel(ctx context.Context, orderID string) error
}

// OrderReader reads orders and books from the exchange.
type OrderReader interface {
	GetOrderByID(ctx context.Context, orderID string) (domain.OpenOrder, bool, error)
	GetOrderBook(ctx context.Context, tokenID string) (domain.OrderBook, error)
}

// amountField accepts the amount as a JSON string or number and keeps the
// text as typed.
type amountField string

func (a *amountField) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*a = amountField(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*a = amountField(n.String())
	return nil
}

type placeOrderRequest struct {
	TokenID    string      `json:"tokenId"`
	Side       string      `json:"side"`
	PriceCents float64     `json:"priceCents"`
	Amount     amountField `json:"amount"`
	NegRisk    bool        `json:"negRisk"`
	OrderType  string      `json:"orderType"`
}

// OrderHandler serves /api/orders, /api/book and /api/quote.
type OrderHandler struct {
	flow   OrderSubmitter
	reader OrderReader
	logger *slog.Logger
}

func NewOrderHandler(flow OrderSubmitter, reader OrderReader, logger *slog.Logger) *OrderHandler {
	return &OrderHandler{flow: flow, reader: reader, logger: logger.With(slog.String("handler", "orders"))}
}

// POST /api/orders
func (h *OrderHandler) PlaceOrder(w http.ResponseWriter, r *http.Request) {
	var req placeOrderRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	in, err := req.toInput()
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}

	sub, err := h.flow.Submit(r.Context(), in)
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, sub)
}

func (req placeOrderRequest) toInput() (service.OrderInput, error) {
	if strings.TrimSpace(req.TokenID) == "" {
		return service.OrderInput{}, badRequest("tokenId is required")
	}
	in := service.OrderInput{
		TokenID:    req.TokenID,
		PriceCents: req.PriceCents,
		Amount:     string(req.Amount),
		NegRisk:    req.NegRisk,
	}
	if req.Side != "" {
		side, ok := domain.ParseOrderSide(req.Side)
		if !ok {
			return service.OrderInput{}, badRequest("side must be BUY or SELL")
		}
		in.Side = side
	}
	if req.OrderType != "" {
		in.Type = domain.OrderType(strings.ToUpper(req.OrderType))
		switch in.Type {
		case domain.OrderTypeGTC, domain.OrderTypeGTD, domain.OrderTypeFOK, domain.OrderTypeFAK:
		default:
			return service.OrderInput{}, badRequest("unknown orderType %q", req.OrderType)
		}
	}
	return in, nil
}

// DELETE /api/orders/{id}
func (h *OrderHandler) CancelOrder(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := h.flow.Cancel(r.Context(), id); err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "cancelled", "orderID": id})
}

// GET /api/orders/{id}
func (h *OrderHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	order, found, err := h.reader.GetOrderByID(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	if !found {
		writeError(w, h.logger, r, domain.ErrNotFound)
		return
	}
	writeJSON(w, http.StatusOK, order)
}

// GET /api/book/{tokenID}
func (h *OrderHandler) GetOrderBook(w http.ResponseWriter, r *http.Request) {
	book, err := h.reader.GetOrderBook(r.Context(), r.PathValue("tokenID"))
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, book)
}

// GET /api/quote?amount=50&priceCents=65
func (h *OrderHandler) Quote(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	priceCents, err := strconv.ParseFloat(q.Get("priceCents"), 64)
	if err != nil {
		writeError(w, h.logger, r, badRequest("priceCents must be a number"))
		return
	}
	amount, err := service.ParseAmount(q.Get("amount"))
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	quote, err := service.NewQuote(amount, priceCents)
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, quote)
}
