// Package setup drives a wallet from connection to a trading-ready exchange
// session: network check, credential derivation and client initialization.
package setup

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/alanyoungcy/polytrade/internal/domain"
)

// Wallet is the connection source the machine observes.
type Wallet interface {
	Snapshot() (domain.WalletConnection, domain.WalletSigner)
	Subscribe(buffer int) (<-chan domain.WalletConnection, func())
}

// TradingClient is the exchange client lifecycle the machine drives.
type TradingClient interface {
	DeriveCredentials(ctx context.Context, signer domain.WalletSigner) (domain.ClobCredentials, error)
	Initialize(ctx context.Context, signer domain.WalletSigner, creds domain.ClobCredentials, funder string) error
	IsReady() bool
	Address() string
	Reset()
}

// Config tunes the machine.
type Config struct {
	RequiredChainID int
	// Funder is the maker address for orders. Empty means the wallet itself.
	Funder string
	// Auto runs CompleteSetup whenever a wallet change leaves the machine
	// connected on the right chain but not ready.
	Auto    bool
	LockTTL time.Duration
}

// Ready is the readiness rule. It is evaluated on every snapshot and never
// stored.
func Ready(conn domain.WalletConnection, requiredChainID int, hasCredentials, clientReady bool) bool {
	return conn.Connected && conn.ChainID == requiredChainID && hasCredentials && clientReady
}

// Machine owns the trading setup status. State is guarded by mu, which is
// never held across signature or network calls. Switching or dropping the
// wallet, Reset and InvalidateCredentials bump gen; an operation that
// completes under an older gen discards its result. A chain change on the
// same wallet does not bump gen, so it never orphans a pending prompt.
type Machine struct {
	cfg    Config
	wallet Wallet
	client TradingClient
	store  domain.CredentialStore
	locks  domain.LockManager
	logger *slog.Logger

	flight singleflight.Group
	autoWG sync.WaitGroup

	mu      sync.Mutex
	gen     uint64
	conn    domain.WalletConnection
	creds   *domain.ClobCredentials
	loading bool
	errMsg  string
	step    domain.SetupStep

	subMu   sync.Mutex
	subs    map[int]chan domain.SetupStatus
	nextSub int
}

// New creates a machine in the disconnected state.
func New(cfg Config, wallet Wallet, client TradingClient, store domain.CredentialStore, logger *slog.Logger) *Machine {
	if cfg.RequiredChainID == 0 {
		cfg.RequiredChainID = domain.PolygonChainID
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = 2 * time.Minute
	}
	return &Machine{
		cfg:    cfg,
		wallet: wallet,
		client: client,
		store:  store,
		logger: logger.With(slog.String("component", "setup")),
		step:   domain.StepDisconnected,
		subs:   make(map[int]chan domain.SetupStatus),
	}
}

// SetLockManager enables a per-address distributed lock around
// CompleteSetup so two daemons never prompt the same wallet at once.
func (m *Machine) SetLockManager(l domain.LockManager) {
	m.locks = l
}

// Status returns the current snapshot, credentials included.
func (m *Machine) Status() domain.SetupStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.statusLocked()
}

func (m *Machine) statusLocked() domain.SetupStatus {
	s := domain.SetupStatus{
		IsWalletConnected: m.conn.Connected,
		WalletAddress:     m.conn.Address,
		ChainID:           m.conn.ChainID,
		RequiredChainID:   m.cfg.RequiredChainID,
		IsCorrectChain:    m.conn.Connected && m.conn.ChainID == m.cfg.RequiredChainID,
		HasCredentials:    m.creds != nil,
		IsLoading:         m.loading,
		Error:             m.errMsg,
		CurrentStep:       m.step,
	}
	if m.creds != nil {
		c := *m.creds
		s.Credentials = &c
	}
	s.IsReadyToTrade = Ready(m.conn, m.cfg.RequiredChainID, s.HasCredentials, m.client.IsReady())
	return s
}

// Subscribe streams status snapshots. Slow subscribers miss intermediate
// snapshots but always receive the latest one.
func (m *Machine) Subscribe(buffer int) (<-chan domain.SetupStatus, func()) {
	if buffer < 1 {
		buffer = 1
	}
	ch := make(chan domain.SetupStatus, buffer)

	m.subMu.Lock()
	id := m.nextSub
	m.nextSub++
	m.subs[id] = ch
	m.subMu.Unlock()

	return ch, func() {
		m.subMu.Lock()
		delete(m.subs, id)
		m.subMu.Unlock()
	}
}

// publish sends the current snapshot. The snapshot is taken under subMu so
// concurrent publishers deliver in state order.
func (m *Machine) publish() {
	m.subMu.Lock()
	defer m.subMu.Unlock()
	if len(m.subs) == 0 {
		return
	}
	st := m.Status()
	for _, ch := range m.subs {
		for {
			select {
			case ch <- st:
			default:
				select {
				case <-ch:
				default:
				}
				continue
			}
			break
		}
	}
}

// Watch observes the wallet until ctx is done.
func (m *Machine) Watch(ctx context.Context) error {
	events, unsubscribe := m.wallet.Subscribe(16)
	defer unsubscribe()
	defer m.autoWG.Wait()

	conn, _ := m.wallet.Snapshot()
	m.Observe(ctx, conn)

	for {
		select {
		case <-ctx.Done():
			return nil
		case conn := <-events:
			m.Observe(ctx, conn)
		}
	}
}

// Observe applies a wallet connection change. A disconnect moves to
// disconnected immediately, whatever is in flight.
func (m *Machine) Observe(ctx context.Context, conn domain.WalletConnection) {
	if !conn.Connected {
		conn = domain.WalletConnection{}
	}

	m.mu.Lock()
	if conn == m.conn {
		m.mu.Unlock()
		return
	}
	walletChanged := !conn.Connected || !strings.EqualFold(conn.Address, m.conn.Address)
	if walletChanged {
		m.gen++
		m.loading = false
		m.creds = nil
		m.errMsg = ""
		m.client.Reset()
	}
	gen := m.gen
	m.conn = conn
	// A setup still running for this wallet keeps its step and loading flag.
	if !m.loading {
		m.step = domain.StepDisconnected
		if conn.Connected {
			m.step = domain.StepConnected
			if !walletChanged && Ready(conn, m.cfg.RequiredChainID, m.creds != nil, m.client.IsReady()) {
				m.step = domain.StepReady
			}
		}
	}
	m.mu.Unlock()

	m.logger.InfoContext(ctx, "wallet state changed",
		slog.Bool("connected", conn.Connected),
		slog.String("address", conn.Address),
		slog.Int("chain_id", conn.ChainID),
	)

	if conn.Connected && walletChanged {
		m.loadStored(ctx, gen, conn.Address)
	}

	m.publish()
	if m.cfg.Auto {
		m.maybeAutoSetup(ctx)
	}
}

// loadStored restores persisted credentials for address. A stored triple
// short-circuits derivation for that wallet.
func (m *Machine) loadStored(ctx context.Context, gen uint64, address string) {
	creds, ok, err := m.store.Load(ctx, address)
	if err != nil {
		m.logger.WarnContext(ctx, "load stored credentials failed",
			slog.String("address", address),
			slog.String("error", err.Error()),
		)
		return
	}
	if !ok {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.gen == gen {
		m.creds = &creds
	}
}

func (m *Machine) maybeAutoSetup(ctx context.Context) {
	st := m.Status()
	if !st.IsCorrectChain || st.IsReadyToTrade || st.IsLoading || st.CurrentStep == domain.StepError {
		return
	}
	m.autoWG.Add(1)
	go func() {
		defer m.autoWG.Done()
		if err := m.CompleteSetup(ctx); err != nil {
			m.logger.WarnContext(ctx, "auto setup failed", slog.String("error", err.Error()))
		}
	}()
}

// GenerateCredentials derives and persists credentials for the connected
// wallet. It prompts the wallet for one signature; overlapping calls for
// the same address share that prompt.
func (m *Machine) GenerateCredentials(ctx context.Context) (domain.ClobCredentials, error) {
	m.mu.Lock()
	key := "derive/" + strings.ToLower(m.conn.Address)
	m.mu.Unlock()

	v, err, _ := m.flight.Do(key, func() (any, error) {
		return m.generateCredentials(ctx)
	})
	if err != nil {
		return domain.ClobCredentials{}, err
	}
	return v.(domain.ClobCredentials), nil
}

func (m *Machine) generateCredentials(ctx context.Context) (domain.ClobCredentials, error) {
	m.mu.Lock()
	conn := m.conn
	gen := m.gen
	if !conn.Connected {
		m.mu.Unlock()
		return domain.ClobCredentials{}, domain.ErrWalletNotConnected
	}
	signer := m.signerFor(conn)
	if signer == nil {
		m.mu.Unlock()
		return domain.ClobCredentials{}, domain.ErrWalletNotConnected
	}
	if conn.ChainID != m.cfg.RequiredChainID {
		m.mu.Unlock()
		return domain.ClobCredentials{}, domain.ErrWrongNetwork
	}
	m.loading = true
	m.errMsg = ""
	m.step = domain.StepGeneratingCredentials
	m.mu.Unlock()
	m.publish()

	m.logger.InfoContext(ctx, "deriving trading credentials", slog.String("address", conn.Address))
	creds, err := m.client.DeriveCredentials(ctx, signer)
	if err == nil {
		if m.isStale(gen) {
			return domain.ClobCredentials{}, m.discard(ctx, gen, conn.Address)
		}
		if serr := m.store.Save(ctx, conn.Address, creds); serr != nil {
			err = fmt.Errorf("setup: save credentials: %w", serr)
		}
	}

	m.mu.Lock()
	if m.gen != gen {
		m.mu.Unlock()
		if err == nil {
			m.deleteStored(ctx, conn.Address)
		}
		return domain.ClobCredentials{}, m.discard(ctx, gen, conn.Address)
	}
	m.loading = false
	if err != nil {
		m.errMsg = domain.UserMessage(err)
		m.step = domain.StepError
		m.mu.Unlock()
		m.publish()
		m.logger.ErrorContext(ctx, "credential derivation failed",
			slog.String("address", conn.Address),
			slog.String("error", err.Error()),
		)
		return domain.ClobCredentials{}, err
	}
	m.creds = &creds
	m.step = m.settledStepLocked()
	m.mu.Unlock()
	m.publish()

	m.logger.InfoContext(ctx, "trading credentials stored", slog.String("address", conn.Address))
	return creds, nil
}

// InitializeTradingClient binds the exchange client to the connected wallet
// and its stored credentials.
func (m *Machine) InitializeTradingClient(ctx context.Context) error {
	m.mu.Lock()
	conn := m.conn
	gen := m.gen
	signer := m.signerFor(conn)
	if !conn.Connected || signer == nil || m.creds == nil {
		m.mu.Unlock()
		return domain.ErrSetupIncomplete
	}
	creds := *m.creds
	m.loading = true
	m.errMsg = ""
	m.mu.Unlock()
	m.publish()

	funder := m.cfg.Funder
	if funder == "" {
		funder = conn.Address
	}
	err := m.client.Initialize(ctx, signer, creds, funder)

	m.mu.Lock()
	if m.gen != gen {
		m.mu.Unlock()
		return m.discard(ctx, gen, conn.Address)
	}
	m.loading = false
	if err != nil {
		m.errMsg = domain.UserMessage(err)
		m.step = domain.StepError
		m.mu.Unlock()
		m.publish()
		m.logger.ErrorContext(ctx, "trading client initialization failed",
			slog.String("address", conn.Address),
			slog.String("error", err.Error()),
		)
		return err
	}
	m.step = m.settledStepLocked()
	m.mu.Unlock()
	m.publish()
	return nil
}

// settledStepLocked is the step after a successful operation. The wallet may
// have moved to another chain while it ran.
func (m *Machine) settledStepLocked() domain.SetupStep {
	if m.conn.ChainID != m.cfg.RequiredChainID {
		return domain.StepConnected
	}
	return domain.StepReady
}

// CompleteSetup derives credentials when missing and initializes the
// client. It is a no-op when already ready. Overlapping calls for the same
// address share one run, chain changes included, so the wallet is prompted
// at most once.
func (m *Machine) CompleteSetup(ctx context.Context) error {
	m.mu.Lock()
	key := "complete/" + strings.ToLower(m.conn.Address)
	m.mu.Unlock()

	_, err, _ := m.flight.Do(key, func() (any, error) {
		return nil, m.completeSetup(ctx)
	})
	return err
}

func (m *Machine) completeSetup(ctx context.Context) error {
	st := m.Status()
	if st.IsReadyToTrade {
		return nil
	}
	if !st.IsWalletConnected {
		return domain.ErrWalletNotConnected
	}

	if m.locks != nil {
		unlock, err := m.locks.Acquire(ctx, "setup:"+strings.ToLower(st.WalletAddress), m.cfg.LockTTL)
		if err != nil {
			return fmt.Errorf("setup: acquire lock: %w", err)
		}
		defer unlock()
	}

	if !st.HasCredentials {
		if _, err := m.GenerateCredentials(ctx); err != nil {
			return err
		}
	}
	return m.InitializeTradingClient(ctx)
}

// Reset drops the client binding and returns to the initial status.
func (m *Machine) Reset() {
	m.mu.Lock()
	m.gen++
	m.client.Reset()
	m.conn = domain.WalletConnection{}
	m.creds = nil
	m.loading = false
	m.errMsg = ""
	m.step = domain.StepDisconnected
	m.mu.Unlock()

	m.logger.Info("trading setup reset")
	m.publish()
}

// ClearError clears the error and leaves the error step.
func (m *Machine) ClearError() {
	m.mu.Lock()
	m.errMsg = ""
	if m.step == domain.StepError {
		m.step = domain.StepDisconnected
		if m.conn.Connected {
			m.step = domain.StepConnected
		}
	}
	m.mu.Unlock()
	m.publish()
}

// InvalidateCredentials forgets the connected wallet's credentials after the
// exchange rejected them. The next CompleteSetup derives a fresh triple.
func (m *Machine) InvalidateCredentials(ctx context.Context) error {
	m.mu.Lock()
	address := m.conn.Address
	m.gen++
	m.creds = nil
	m.loading = false
	m.client.Reset()
	if m.conn.Connected {
		m.step = domain.StepConnected
	}
	m.mu.Unlock()
	m.publish()

	if address == "" {
		return nil
	}
	m.logger.WarnContext(ctx, "exchange rejected credentials, forgetting them", slog.String("address", address))
	if err := m.store.Delete(ctx, address); err != nil {
		return fmt.Errorf("setup: delete credentials: %w", err)
	}
	return nil
}

// signerFor returns the wallet's signer when it still matches conn.
func (m *Machine) signerFor(conn domain.WalletConnection) domain.WalletSigner {
	current, signer := m.wallet.Snapshot()
	if signer == nil || !current.Connected || !strings.EqualFold(current.Address, conn.Address) {
		return nil
	}
	return signer
}

func (m *Machine) isStale(gen uint64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.gen != gen
}

// discard handles a result that finished under a superseded generation. A
// client binding it may have produced for a wallet that is no longer the
// connected one is dropped.
func (m *Machine) discard(ctx context.Context, gen uint64, address string) error {
	m.mu.Lock()
	current := m.conn
	if !current.Connected || !strings.EqualFold(current.Address, address) {
		if strings.EqualFold(m.client.Address(), address) {
			m.client.Reset()
		}
	}
	m.mu.Unlock()

	m.logger.InfoContext(ctx, "discarded stale setup result",
		slog.String("address", address),
		slog.Uint64("generation", gen),
	)
	if !current.Connected {
		return domain.ErrWalletNotConnected
	}
	return domain.ErrSetupSuperseded
}

func (m *Machine) deleteStored(ctx context.Context, address string) {
	if err := m.store.Delete(ctx, address); err != nil && !errors.Is(err, domain.ErrNotFound) {
		m.logger.WarnContext(ctx, "remove stale credentials failed",
			slog.String("address", address),
			slog.String("error", err.Error()),
		)
	}
}
