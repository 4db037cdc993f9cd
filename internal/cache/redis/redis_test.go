package redis

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/alanyoungcy/polytrade/internal/domain"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testClient connects to POLYTRADE_TEST_REDIS_ADDR and namespaces every key
// under a random prefix.
func testClient(t *testing.T) *Client {
	t.Helper()
	addr := os.Getenv("POLYTRADE_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("POLYTRADE_TEST_REDIS_ADDR not set")
	}
	c, err := New(context.Background(), ClientConfig{Addr: addr, PoolSize: 4, KeyPrefix: "test:" + uuid.NewString() + ":"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestCredentialStore(t *testing.T) {
	ctx := context.Background()
	c := testClient(t)
	s := NewCredentialStore(c, "", slog.New(slog.NewTextHandler(io.Discard, nil)))
	creds := domain.ClobCredentials{Key: "k", Secret: "s", Passphrase: "p"}

	require.NoError(t, s.Save(ctx, "0xABC", creds))
	got, ok, err := s.Load(ctx, "0xabc")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, creds, got)

	require.NoError(t, c.rdb.Set(ctx, s.credKey("0xdef"), "garbage", 0).Err())
	_, ok, err = s.Load(ctx, "0xDEF")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.Delete(ctx, "0xAbC"))
	_, ok, err = s.Load(ctx, "0xabc")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestLockManager(t *testing.T) {
	ctx := context.Background()
	lm := NewLockManager(testClient(t))

	unlock, err := lm.Acquire(ctx, "setup:0xabc", time.Minute)
	require.NoError(t, err)

	_, err = lm.Acquire(ctx, "setup:0xabc", time.Minute)
	assert.True(t, errors.Is(err, domain.ErrLockHeld))

	unlock()
	unlock()

	unlock2, err := lm.Acquire(ctx, "setup:0xabc", time.Minute)
	require.NoError(t, err)
	unlock2()
}

func TestRateLimiter(t *testing.T) {
	ctx := context.Background()
	rl := NewRateLimiter(testClient(t))

	for i := 0; i < 3; i++ {
		ok, err := rl.Allow(ctx, "orders:0xabc", 3, time.Minute)
		require.NoError(t, err)
		assert.True(t, ok)
	}
	ok, err := rl.Allow(ctx, "orders:0xabc", 3, time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSignalBusRoundTrip(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	sb := NewSignalBus(testClient(t))

	ch, err := sb.Subscribe(ctx, "polytrade:status")
	require.NoError(t, err)
	require.NoError(t, sb.Publish(ctx, "polytrade:status", []byte("hello")))

	select {
	case msg := <-ch:
		assert.Equal(t, "hello", string(msg))
	case <-ctx.Done():
		t.Fatal("no message received")
	}
}

func TestMarketCache(t *testing.T) {
	ctx := context.Background()
	mc := NewMarketCache(testClient(t), time.Minute)

	_, err := mc.Get(ctx, "m1")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	m := domain.Market{ID: "m1", TokenIDs: []string{"t-yes", "t-no"}, OutcomePrices: []float64{0.65, 0.35}}
	require.NoError(t, mc.Set(ctx, m))

	got, err := mc.GetByToken(ctx, "t-no")
	require.NoError(t, err)
	assert.Equal(t, m, got)
}

func TestClientOptions(t *testing.T) {
	opts, err := ClientConfig{Addr: "localhost:6379", Password: "pw", DB: 2, PoolSize: 8, TLSEnabled: true}.options()
	require.NoError(t, err)
	assert.Equal(t, "localhost:6379", opts.Addr)
	assert.Equal(t, 2, opts.DB)
	assert.NotNil(t, opts.TLSConfig)

	opts, err = ClientConfig{Addr: "rediss://:secret@cache.internal:6380/3", PoolSize: 4}.options()
	require.NoError(t, err)
	assert.Equal(t, "cache.internal:6380", opts.Addr)
	assert.Equal(t, "secret", opts.Password)
	assert.Equal(t, 3, opts.DB)
	assert.Equal(t, 4, opts.PoolSize)
	assert.NotNil(t, opts.TLSConfig)

	_, err = ClientConfig{Addr: "redis://host/notadb"}.options()
	require.Error(t, err)
}
