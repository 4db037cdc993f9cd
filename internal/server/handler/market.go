package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/alanyoungcy/polytrade/internal/domain"
	"github.com/alanyoungcy/polytrade/internal/platform/backend"
)

// MarketData is the market data backend.
type MarketData interface {
	GetMarket(ctx context.Context, id string) (domain.Market, error)
	GetMarketBySlug(ctx context.Context, slug string) (domain.Market, error)
	GetMarketPrice(ctx context.Context, tokenID string) (backend.Price, error)
}

// Session is the backend sign-in flow.
type Session interface {
	SignIn(ctx context.Context, email string) error
	VerifyOTP(ctx context.Context, email, token string) (backend.User, error)
	CurrentUser(ctx context.Context) (backend.User, error)
	SignOut(ctx context.Context) error
}

// MarketHandler proxies market lookups to the backend.
type MarketHandler struct {
	markets MarketData
	logger  *slog.Logger
}

func NewMarketHandler(markets MarketData, logger *slog.Logger) *MarketHandler {
	return &MarketHandler{markets: markets, logger: logger.With(slog.String("handler", "markets"))}
}

// GET /api/markets/{id}
func (h *MarketHandler) GetMarket(w http.ResponseWriter, r *http.Request) {
	m, err := h.markets.GetMarket(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

// GET /api/markets/slug/{slug}
func (h *MarketHandler) GetMarketBySlug(w http.ResponseWriter, r *http.Request) {
	m, err := h.markets.GetMarketBySlug(r.Context(), r.PathValue("slug"))
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

// GET /api/prices/{tokenID}
func (h *MarketHandler) GetPrice(w http.ResponseWriter, r *http.Request) {
	p, err := h.markets.GetMarketPrice(r.Context(), r.PathValue("tokenID"))
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

type signInRequest struct {
	Email string `json:"email"`
	Token string `json:"token"`
}

// AuthHandler serves the backend email sign-in under /api/auth.
type AuthHandler struct {
	session Session
	logger  *slog.Logger
}

func NewAuthHandler(session Session, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{session: session, logger: logger.With(slog.String("handler", "auth"))}
}

// POST /api/auth/signin {"email": "..."}
func (h *AuthHandler) SignIn(w http.ResponseWriter, r *http.Request) {
	var req signInRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	if strings.TrimSpace(req.Email) == "" {
		writeError(w, h.logger, r, badRequest("email is required"))
		return
	}
	if err := h.session.SignIn(r.Context(), req.Email); err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// POST /api/auth/verify {"email": "...", "token": "123456"}
func (h *AuthHandler) Verify(w http.ResponseWriter, r *http.Request) {
	var req signInRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	if req.Email == "" || req.Token == "" {
		writeError(w, h.logger, r, badRequest("email and token are required"))
		return
	}
	u, err := h.session.VerifyOTP(r.Context(), req.Email, req.Token)
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

// GET /api/auth/me
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	u, err := h.session.CurrentUser(r.Context())
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

// POST /api/auth/signout
func (h *AuthHandler) SignOut(w http.ResponseWriter, r *http.Request) {
	if err := h.session.SignOut(r.Context()); err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}
