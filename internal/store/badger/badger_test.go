package badger

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/alanyoungcy/polytrade/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openMem(t *testing.T) *Client {
	t.Helper()
	c, err := Open(Options{InMemory: true})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func discard() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func TestCredentialStoreRoundTripIsCaseInsensitive(t *testing.T) {
	ctx := context.Background()
	s := NewCredentialStore(openMem(t), "", discard())
	creds := domain.ClobCredentials{Key: "k", Secret: "s", Passphrase: "p"}

	addrs := []string{
		"0xAbCdEf0000000000000000000000000000000001",
		"0x2c7536E3605D9C16a7a3D7b1898e529396a65c23",
	}
	for _, a := range addrs {
		require.NoError(t, s.Save(ctx, a, creds))

		for _, variant := range []string{a, strings.ToLower(a), strings.ToUpper(a)} {
			got, ok, err := s.Load(ctx, variant)
			require.NoError(t, err)
			require.True(t, ok, variant)
			assert.Equal(t, creds, got)
		}
	}
}

func TestCredentialStoreAbsentAndCorrupt(t *testing.T) {
	ctx := context.Background()
	c := openMem(t)
	s := NewCredentialStore(c, "ns_", discard())

	_, ok, err := s.Load(ctx, "0x01")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.Set("ns_0x02", []byte("{not json")))
	_, ok, err = s.Load(ctx, "0x02")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.Set("ns_0x03", []byte(`{"key":"k"}`)))
	_, ok, err = s.Load(ctx, "0x03")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCredentialStoreOverwriteAndDelete(t *testing.T) {
	ctx := context.Background()
	s := NewCredentialStore(openMem(t), "", discard())

	require.NoError(t, s.Save(ctx, "0xaa", domain.ClobCredentials{Key: "1", Secret: "1", Passphrase: "1"}))
	require.NoError(t, s.Save(ctx, "0xAA", domain.ClobCredentials{Key: "2", Secret: "2", Passphrase: "2"}))

	got, ok, err := s.Load(ctx, "0xaa")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "2", got.Key)

	require.NoError(t, s.Delete(ctx, "0xAa"))
	_, ok, err = s.Load(ctx, "0xaa")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSessionStore(t *testing.T) {
	ctx := context.Background()
	s := NewSessionStore(openMem(t))

	tok, err := s.Token(ctx)
	require.NoError(t, err)
	assert.Empty(t, tok)

	require.NoError(t, s.SetToken(ctx, "abc"))
	tok, err = s.Token(ctx)
	require.NoError(t, err)
	assert.Equal(t, "abc", tok)

	require.NoError(t, s.Clear(ctx))
	tok, err = s.Token(ctx)
	require.NoError(t, err)
	assert.Empty(t, tok)
}

func TestParseKey(t *testing.T) {
	_, err := parseKey("00112233445566778899aabbccddeeff")
	require.NoError(t, err)
	_, err = parseKey("abc")
	require.Error(t, err)
}
