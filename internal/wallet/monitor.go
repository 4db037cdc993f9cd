// Package wallet tracks the connected wallet and fans connection changes out
// to subscribers.
package wallet

import (
	"log/slog"
	"sync"

	"github.com/alanyoungcy/polytrade/internal/domain"
)

// Monitor holds the current wallet connection and its signing capability.
// Changes are delivered to every subscriber in the order they happened.
type Monitor struct {
	logger *slog.Logger

	// pubMu serialises state changes with their delivery so subscribers see
	// events in order. mu guards the fields below and is never held while
	// sending.
	pubMu sync.Mutex
	mu    sync.Mutex

	conn   domain.WalletConnection
	signer domain.WalletSigner
	subs   map[int]*subscriber
	nextID int
}

type subscriber struct {
	ch   chan domain.WalletConnection
	done chan struct{}
	once sync.Once
}

// NewMonitor creates a monitor with no wallet connected.
func NewMonitor(logger *slog.Logger) *Monitor {
	return &Monitor{
		logger: logger.With(slog.String("component", "wallet")),
		subs:   make(map[int]*subscriber),
	}
}

// Connect records a wallet connection on chainID.
func (m *Monitor) Connect(signer domain.WalletSigner, chainID int) {
	if signer == nil {
		m.Disconnect()
		return
	}
	m.update(true, func() {
		m.signer = signer
		m.conn = domain.WalletConnection{
			Connected: true,
			Address:   signer.Address().Hex(),
			ChainID:   chainID,
		}
	})
	m.logger.Info("wallet connected",
		slog.String("address", signer.Address().Hex()),
		slog.Int("chain_id", chainID),
	)
}

// SwitchChain records a network change on the connected wallet.
func (m *Monitor) SwitchChain(chainID int) error {
	var err error
	m.update(false, func() {
		if !m.conn.Connected {
			err = domain.ErrWalletNotConnected
			return
		}
		m.conn.ChainID = chainID
	})
	if err != nil {
		return err
	}
	m.logger.Info("wallet switched chain", slog.Int("chain_id", chainID))
	return nil
}

// Disconnect clears the wallet.
func (m *Monitor) Disconnect() {
	m.update(false, func() {
		m.signer = nil
		m.conn = domain.WalletConnection{}
	})
	m.logger.Info("wallet disconnected")
}

// Current returns the latest connection snapshot.
func (m *Monitor) Current() domain.WalletConnection {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.conn
}

// Snapshot returns the connection together with the signer that produced
// it. The signer is nil when disconnected.
func (m *Monitor) Snapshot() (domain.WalletConnection, domain.WalletSigner) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.conn, m.signer
}

// Subscribe registers for connection changes. The returned func stops
// delivery; it does not close the channel. Subscribers must keep draining
// the channel until they unsubscribe.
func (m *Monitor) Subscribe(buffer int) (<-chan domain.WalletConnection, func()) {
	if buffer < 0 {
		buffer = 0
	}
	s := &subscriber{
		ch:   make(chan domain.WalletConnection, buffer),
		done: make(chan struct{}),
	}

	m.mu.Lock()
	id := m.nextID
	m.nextID++
	m.subs[id] = s
	m.mu.Unlock()

	return s.ch, func() {
		s.once.Do(func() { close(s.done) })
		m.mu.Lock()
		delete(m.subs, id)
		m.mu.Unlock()
	}
}

// update applies fn and delivers the resulting snapshot when it changed or
// when force is set. A connect is always delivered so observers can resync.
func (m *Monitor) update(force bool, fn func()) {
	m.pubMu.Lock()
	defer m.pubMu.Unlock()

	m.mu.Lock()
	before := m.conn
	fn()
	after := m.conn
	subs := make([]*subscriber, 0, len(m.subs))
	for _, s := range m.subs {
		subs = append(subs, s)
	}
	m.mu.Unlock()

	if before == after && !force {
		return
	}
	for _, s := range subs {
		select {
		case s.ch <- after:
		case <-s.done:
		}
	}
}
