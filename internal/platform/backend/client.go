// Package backend is the REST client for the market-data backend: the
// email/OTP session and market lookups used to open order tickets.
package backend

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/alanyoungcy/polytrade/internal/domain"
)

// Config configures the backend client.
type Config struct {
	BaseURL string        // e.g. "http://localhost:3000/api/v1"
	Timeout time.Duration // 15s when zero
}

// Client talks to the backend with the stored bearer token.
type Client struct {
	rc       *resty.Client
	sessions domain.SessionStore
	cache    domain.MarketCache
	logger   *slog.Logger
}

// New creates a client. sessions holds the bearer token between runs.
func New(cfg Config, sessions domain.SessionStore, logger *slog.Logger) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	rc := resty.New().
		SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
		SetTimeout(timeout).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")
	return &Client{
		rc:       rc,
		sessions: sessions,
		logger:   logger.With(slog.String("component", "backend")),
	}
}

// WithCache serves market lookups from cache when possible.
func (c *Client) WithCache(cache domain.MarketCache) *Client {
	c.cache = cache
	return c
}

// SignIn asks the backend to email a one-time code.
func (c *Client) SignIn(ctx context.Context, email string) error {
	if _, err := c.do(ctx, http.MethodPost, "/auth/signin", nil, map[string]string{"email": email}); err != nil {
		return fmt.Errorf("backend: sign in: %w", err)
	}
	return nil
}

// VerifyOTP exchanges the emailed code for a session and stores its token.
func (c *Client) VerifyOTP(ctx context.Context, email, token string) (User, error) {
	data, err := c.do(ctx, http.MethodPost, "/auth/verify", nil, map[string]string{"email": email, "token": token})
	if err != nil {
		return User{}, fmt.Errorf("backend: verify otp: %w", err)
	}
	var ar authResponse
	if err := json.Unmarshal(data, &ar); err != nil {
		return User{}, fmt.Errorf("backend: decode auth response: %w", err)
	}
	if ar.AccessToken == "" {
		return User{}, errors.New("backend: verify otp: no access token in response")
	}
	if err := c.sessions.SetToken(ctx, ar.AccessToken); err != nil {
		return User{}, fmt.Errorf("backend: store session: %w", err)
	}
	c.logger.InfoContext(ctx, "signed in", slog.String("user_id", ar.User.ID))
	return ar.User, nil
}

// CurrentUser returns the signed-in user.
func (c *Client) CurrentUser(ctx context.Context) (User, error) {
	data, err := c.do(ctx, http.MethodGet, "/auth/me", nil, nil)
	if err != nil {
		return User{}, fmt.Errorf("backend: current user: %w", err)
	}
	var u User
	if err := json.Unmarshal(data, &u); err != nil {
		return User{}, fmt.Errorf("backend: decode user: %w", err)
	}
	return u, nil
}

// SignOut ends the session. The local token is cleared even when the backend
// call fails.
func (c *Client) SignOut(ctx context.Context) error {
	_, err := c.do(ctx, http.MethodPost, "/auth/signout", nil, nil)
	if cerr := c.sessions.Clear(ctx); cerr != nil {
		return fmt.Errorf("backend: clear session: %w", cerr)
	}
	if err != nil && !errors.Is(err, domain.ErrSessionExpired) {
		return fmt.Errorf("backend: sign out: %w", err)
	}
	return nil
}

// GetMarket returns one market by id.
func (c *Client) GetMarket(ctx context.Context, id string) (domain.Market, error) {
	if m, ok := c.cached(ctx, id); ok {
		return m, nil
	}
	data, err := c.do(ctx, http.MethodGet, "/markets/{id}", map[string]string{"id": id}, nil)
	if err != nil {
		return domain.Market{}, fmt.Errorf("backend: get market %s: %w", id, err)
	}
	return c.decodeMarket(ctx, data)
}

// GetMarketBySlug returns one market by its URL slug.
func (c *Client) GetMarketBySlug(ctx context.Context, slug string) (domain.Market, error) {
	data, err := c.do(ctx, http.MethodGet, "/markets/slug/{slug}", map[string]string{"slug": slug}, nil)
	if err != nil {
		return domain.Market{}, fmt.Errorf("backend: get market by slug %s: %w", slug, err)
	}
	return c.decodeMarket(ctx, data)
}

// GetMarketPrice returns the last price of tokenID.
func (c *Client) GetMarketPrice(ctx context.Context, tokenID string) (Price, error) {
	data, err := c.do(ctx, http.MethodGet, "/trading/price/{tokenID}", map[string]string{"tokenID": tokenID}, nil)
	if err != nil {
		return Price{}, fmt.Errorf("backend: get price %s: %w", tokenID, err)
	}
	var p apiPrice
	if err := json.Unmarshal(data, &p); err != nil {
		return Price{}, fmt.Errorf("backend: decode price: %w", err)
	}
	return p.toPrice(tokenID), nil
}

func (c *Client) decodeMarket(ctx context.Context, data []byte) (domain.Market, error) {
	var am apiMarket
	if err := json.Unmarshal(data, &am); err != nil {
		return domain.Market{}, fmt.Errorf("backend: decode market: %w", err)
	}
	if am.ID == "" {
		return domain.Market{}, fmt.Errorf("backend: %w: market", domain.ErrNotFound)
	}
	m := am.toDomain()
	if c.cache != nil {
		if err := c.cache.Set(ctx, m); err != nil {
			c.logger.WarnContext(ctx, "cache market failed",
				slog.String("market_id", m.ID),
				slog.String("error", err.Error()),
			)
		}
	}
	return m, nil
}

func (c *Client) cached(ctx context.Context, id string) (domain.Market, bool) {
	if c.cache == nil {
		return domain.Market{}, false
	}
	m, err := c.cache.Get(ctx, id)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			c.logger.WarnContext(ctx, "market cache lookup failed",
				slog.String("market_id", id),
				slog.String("error", err.Error()),
			)
		}
		return domain.Market{}, false
	}
	return m, true
}

// do sends one request and returns the unwrapped payload. A 401 clears the
// stored token and yields ErrSessionExpired.
func (c *Client) do(ctx context.Context, method, path string, pathParams map[string]string, body any) (json.RawMessage, error) {
	req := c.rc.R().SetContext(ctx)
	token, err := c.sessions.Token(ctx)
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	if token != "" {
		req.SetAuthToken(token)
	}
	if pathParams != nil {
		req.SetPathParams(pathParams)
	}
	if body != nil {
		req.SetBody(body)
	}

	resp, err := req.Execute(method, path)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}

	switch status := resp.StatusCode(); {
	case status == http.StatusUnauthorized:
		if cerr := c.sessions.Clear(ctx); cerr != nil {
			c.logger.WarnContext(ctx, "clear expired session failed", slog.String("error", cerr.Error()))
		}
		return nil, domain.ErrSessionExpired
	case status == http.StatusNotFound:
		return nil, domain.ErrNotFound
	case status == http.StatusTooManyRequests:
		return nil, domain.ErrRateLimited
	case status < 200 || status >= 300:
		return nil, fmt.Errorf("HTTP %d: %s", status, errorText(resp.Body()))
	}

	return unwrap(resp.Body())
}

// unwrap returns the data field of an envelope, or the body itself when the
// response is not enveloped.
func unwrap(body []byte) (json.RawMessage, error) {
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil || env.Success == nil {
		return body, nil
	}
	if !*env.Success {
		msg := "request failed"
		if env.Error != nil && env.Error.Message != "" {
			msg = env.Error.Message
		}
		return nil, errors.New(msg)
	}
	return env.Data, nil
}

func errorText(body []byte) string {
	var env envelope
	if err := json.Unmarshal(body, &env); err == nil && env.Error != nil && env.Error.Message != "" {
		return env.Error.Message
	}
	s := strings.TrimSpace(string(body))
	if len(s) > 200 {
		s = s[:200]
	}
	return s
}
