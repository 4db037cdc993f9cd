package backend

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/polytrade/internal/domain"
)

type memSessions struct {
	mu    sync.Mutex
	token string
}

func (m *memSessions) Token(context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.token, nil
}

func (m *memSessions) SetToken(_ context.Context, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.token = token
	return nil
}

func (m *memSessions) Clear(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.token = ""
	return nil
}

type memCache struct {
	markets map[string]domain.Market
}

func (m *memCache) Set(_ context.Context, market domain.Market) error {
	m.markets[market.ID] = market
	return nil
}

func (m *memCache) Get(_ context.Context, id string) (domain.Market, error) {
	if mk, ok := m.markets[id]; ok {
		return mk, nil
	}
	return domain.Market{}, domain.ErrNotFound
}

func (m *memCache) GetByToken(context.Context, string) (domain.Market, error) {
	return domain.Market{}, domain.ErrNotFound
}

func newTestClient(t *testing.T, h http.HandlerFunc) (*Client, *memSessions) {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	sessions := &memSessions{}
	return New(Config{BaseURL: srv.URL + "/"}, sessions, slog.New(slog.DiscardHandler)), sessions
}

func TestVerifyOTPStoresToken(t *testing.T) {
	c, sessions := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/auth/verify", r.URL.Path)
		var body map[string]string
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "a@b.co", body["email"])
		assert.Equal(t, "123456", body["token"])
		_, _ = io.WriteString(w, `{"success":true,"data":{"user":{"id":"u1","email":"a@b.co"},"accessToken":"tok-1"}}`)
	})

	u, err := c.VerifyOTP(t.Context(), "a@b.co", "123456")
	require.NoError(t, err)
	assert.Equal(t, "u1", u.ID)
	assert.Equal(t, "tok-1", sessions.token)
}

func TestBearerTokenAndExpiry(t *testing.T) {
	var auth string
	c, sessions := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		w.WriteHeader(http.StatusUnauthorized)
	})
	sessions.token = "tok-1"

	_, err := c.CurrentUser(t.Context())
	require.ErrorIs(t, err, domain.ErrSessionExpired)
	assert.Equal(t, "Bearer tok-1", auth)
	assert.Empty(t, sessions.token)
}

func TestSignOutClearsToken(t *testing.T) {
	c, sessions := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/auth/signout", r.URL.Path)
		_, _ = io.WriteString(w, `{"success":true}`)
	})
	sessions.token = "tok-1"

	require.NoError(t, c.SignOut(t.Context()))
	assert.Empty(t, sessions.token)
}

func TestGetMarketDecodesStringEncodedArrays(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/markets/m1", r.URL.Path)
		_, _ = io.WriteString(w, `{"success":true,"data":{
			"id":"m1","question":"Will it rain?","slug":"rain",
			"outcomes":"[\"Yes\",\"No\"]",
			"outcomePrices":"[\"0.65\",\"0.35\"]",
			"clobTokenIds":"[\"111\",\"222\"]",
			"active":"true","closed":false,"volume":"1234.5","negRisk":true}}`)
	})

	m, err := c.GetMarket(t.Context(), "m1")
	require.NoError(t, err)
	assert.Equal(t, []string{"Yes", "No"}, m.Outcomes)
	assert.Equal(t, []float64{0.65, 0.35}, m.OutcomePrices)
	assert.Equal(t, []string{"111", "222"}, m.TokenIDs)
	assert.True(t, m.Active)
	assert.True(t, m.NegRisk)
	assert.InDelta(t, 1234.5, m.Volume, 1e-9)

	token, cents, ok := m.Outcome(domain.OutcomeNo)
	require.True(t, ok)
	assert.Equal(t, "222", token)
	assert.InDelta(t, 35, cents, 1e-9)
}

func TestGetMarketBySlugDecodesArrays(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/markets/slug/rain", r.URL.Path)
		_, _ = io.WriteString(w, `{"id":"m1","outcomes":["Yes","No"],"outcomePrices":[0.4,0.6],"clobTokenIds":["111","222"]}`)
	})

	m, err := c.GetMarketBySlug(t.Context(), "rain")
	require.NoError(t, err)
	assert.Equal(t, []float64{0.4, 0.6}, m.OutcomePrices)
	assert.Equal(t, []string{"111", "222"}, m.TokenIDs)
}

func TestGetMarketUsesCache(t *testing.T) {
	calls := 0
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		_, _ = io.WriteString(w, `{"id":"m1","clobTokenIds":"[\"111\",\"222\"]"}`)
	})
	cache := &memCache{markets: map[string]domain.Market{}}
	c.WithCache(cache)

	_, err := c.GetMarket(t.Context(), "m1")
	require.NoError(t, err)
	_, err = c.GetMarket(t.Context(), "m1")
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
	assert.Contains(t, cache.markets, "m1")
}

func TestGetMarketNotFound(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	_, err := c.GetMarket(t.Context(), "missing")
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestGetMarketPrice(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/trading/price/111", r.URL.Path)
		_, _ = io.WriteString(w, `{"success":true,"data":{"market":"0xc","asset_id":"111","price":"0.52","timestamp":1700000000000}}`)
	})

	p, err := c.GetMarketPrice(t.Context(), "111")
	require.NoError(t, err)
	assert.InDelta(t, 0.52, p.Price, 1e-9)
	assert.Equal(t, int64(1700000000), p.Timestamp.Unix())
}

func TestEnvelopeFailure(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"success":false,"error":{"message":"invalid email"}}`)
	})
	err := c.SignIn(t.Context(), "nope")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid email")
}

func TestFlexStrings(t *testing.T) {
	cases := map[string][]string{
		`["a","b"]`:       {"a", "b"},
		`"[\"a\",\"b\"]"`: {"a", "b"},
		`[0.5,1]`:         {"0.5", "1"},
		`"not json"`:      nil,
		`null`:            nil,
		`""`:              nil,
	}
	for in, want := range cases {
		var f flexStrings
		require.NoError(t, json.Unmarshal([]byte(in), &f), in)
		if want == nil {
			assert.Empty(t, f, in)
			continue
		}
		assert.Equal(t, want, []string(f), in)
	}
}
