package app

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/polytrade/internal/config"
	"github.com/alanyoungcy/polytrade/internal/domain"
)

func testConfig(t *testing.T, mode string) *config.Config {
	t.Helper()
	cfg := config.Defaults()
	cfg.Mode = mode
	cfg.Credentials.Path = filepath.Join(t.TempDir(), "credentials")
	return &cfg
}

func TestWireWithoutOptionalInfrastructure(t *testing.T) {
	cfg := testConfig(t, "server")
	deps, cleanup, err := Wire(t.Context(), cfg, slog.New(slog.DiscardHandler))
	require.NoError(t, err)
	defer cleanup()

	assert.Nil(t, deps.Signer)
	assert.Nil(t, deps.AuditStore)
	assert.Nil(t, deps.SignalBus)
	assert.Nil(t, deps.LocalBuilder)
	assert.NotNil(t, deps.Hub)
	assert.False(t, deps.Notifier.Enabled())
	assert.Equal(t, domain.StepDisconnected, deps.Setup.Status().CurrentStep)
}

func TestWireLocalBuilder(t *testing.T) {
	cfg := testConfig(t, "setup")
	cfg.Builder.APIKey = "k"
	cfg.Builder.APISecret = "c2VjcmV0"
	cfg.Builder.APIPassphrase = "p"

	deps, cleanup, err := Wire(t.Context(), cfg, slog.New(slog.DiscardHandler))
	require.NoError(t, err)
	defer cleanup()

	assert.NotNil(t, deps.LocalBuilder)
	assert.Nil(t, deps.Hub)
}

func TestSetupModeRequiresKey(t *testing.T) {
	cfg := testConfig(t, "setup")
	var out bytes.Buffer
	a := New(cfg, slog.New(slog.DiscardHandler)).WithOutput(&out)
	defer a.Close()

	err := a.Run(t.Context())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no wallet key")

	var st domain.SetupStatus
	require.NoError(t, json.Unmarshal(out.Bytes(), &st))
	assert.False(t, st.IsWalletConnected)
}

func TestTradeArgs(t *testing.T) {
	_, err := TradeArgs{}.toInput()
	require.Error(t, err)

	_, err = TradeArgs{TokenID: "111", Side: "hold"}.toInput()
	require.Error(t, err)

	in, err := TradeArgs{TokenID: "111", PriceCents: 40, Amount: "10"}.toInput()
	require.NoError(t, err)
	assert.Equal(t, domain.OrderSideBuy, in.Side)

	in, err = TradeArgs{TokenID: "111", Side: "sell"}.toInput()
	require.NoError(t, err)
	assert.Equal(t, domain.OrderSideSell, in.Side)
}
