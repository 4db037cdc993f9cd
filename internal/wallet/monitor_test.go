package wallet

import (
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/polymarket/go-order-utils/pkg/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/polytrade/internal/domain"
)

type stubSigner struct{ addr common.Address }

func (s stubSigner) Address() common.Address { return s.addr }
func (s stubSigner) SignAuthMessage(string, int64, int64) (string, error) {
	return "", errors.New("unused")
}
func (s stubSigner) SignOrder(*model.OrderData, model.VerifyingContract) (*model.SignedOrder, error) {
	return nil, errors.New("unused")
}

var alice = stubSigner{addr: common.HexToAddress("0x00000000000000000000000000000000000000a1")}

func newMonitor() *Monitor { return NewMonitor(slog.New(slog.DiscardHandler)) }

func recv(t *testing.T, ch <-chan domain.WalletConnection) domain.WalletConnection {
	t.Helper()
	select {
	case c := <-ch:
		return c
	case <-time.After(time.Second):
		t.Fatal("no wallet event")
		return domain.WalletConnection{}
	}
}

func TestMonitorDeliversChangesInOrder(t *testing.T) {
	m := newMonitor()
	ch, unsubscribe := m.Subscribe(8)
	defer unsubscribe()

	m.Connect(alice, 1)
	require.NoError(t, m.SwitchChain(domain.PolygonChainID))
	m.Disconnect()

	assert.Equal(t, domain.WalletConnection{Connected: true, Address: alice.addr.Hex(), ChainID: 1}, recv(t, ch))
	assert.Equal(t, domain.PolygonChainID, recv(t, ch).ChainID)
	assert.False(t, recv(t, ch).Connected)
}

func TestMonitorSkipsNoopChanges(t *testing.T) {
	m := newMonitor()
	ch, unsubscribe := m.Subscribe(4)
	defer unsubscribe()

	m.Disconnect()
	m.Connect(alice, domain.PolygonChainID)
	require.NoError(t, m.SwitchChain(domain.PolygonChainID))
	recv(t, ch)

	select {
	case c := <-ch:
		t.Fatalf("unexpected event %+v", c)
	default:
	}

	// A repeated connect is delivered so observers can resync.
	m.Connect(alice, domain.PolygonChainID)
	assert.True(t, recv(t, ch).Connected)
}

func TestSwitchChainRequiresWallet(t *testing.T) {
	m := newMonitor()
	require.ErrorIs(t, m.SwitchChain(domain.PolygonChainID), domain.ErrWalletNotConnected)
}

func TestSnapshot(t *testing.T) {
	m := newMonitor()
	conn, signer := m.Snapshot()
	assert.False(t, conn.Connected)
	assert.Nil(t, signer)

	m.Connect(alice, domain.PolygonChainID)
	conn, signer = m.Snapshot()
	assert.True(t, conn.Connected)
	assert.Equal(t, alice.addr, signer.Address())
	assert.Equal(t, conn, m.Current())
}

func TestUnsubscribeUnblocksPublisher(t *testing.T) {
	m := newMonitor()
	_, unsubscribe := m.Subscribe(0)

	done := make(chan struct{})
	go func() {
		m.Connect(alice, domain.PolygonChainID)
		close(done)
	}()

	time.Sleep(20 * time.Millisecond)
	unsubscribe()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publisher still blocked after unsubscribe")
	}
	assert.True(t, m.Current().Connected)
}
