package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/alanyoungcy/polytrade/internal/cache/redis"
	"github.com/alanyoungcy/polytrade/internal/config"
	"github.com/alanyoungcy/polytrade/internal/crypto"
	"github.com/alanyoungcy/polytrade/internal/domain"
	"github.com/alanyoungcy/polytrade/internal/exchange"
	"github.com/alanyoungcy/polytrade/internal/notify"
	"github.com/alanyoungcy/polytrade/internal/platform/backend"
	"github.com/alanyoungcy/polytrade/internal/platform/polymarket"
	"github.com/alanyoungcy/polytrade/internal/server/ws"
	"github.com/alanyoungcy/polytrade/internal/service"
	"github.com/alanyoungcy/polytrade/internal/setup"
	"github.com/alanyoungcy/polytrade/internal/store/badger"
	"github.com/alanyoungcy/polytrade/internal/store/postgres"
	"github.com/alanyoungcy/polytrade/internal/store/sqlite"
	"github.com/alanyoungcy/polytrade/internal/wallet"
)

const marketCacheTTL = 5 * time.Minute

// Dependencies bundles everything the modes need. It is constructed by Wire
// and torn down by the returned cleanup function.
type Dependencies struct {
	// Signer is the local wallet key. Nil when none is configured.
	Signer *crypto.Signer

	Wallet   *wallet.Monitor
	Exchange *exchange.Client
	Setup    *setup.Machine
	Backend  *backend.Client
	Flow     *service.OrderFlow
	Ticket   *service.Ticket
	Hub      *ws.Hub

	// LocalBuilder is set when builder headers are signed in-process.
	LocalBuilder *polymarket.LocalBuilder

	Notifier *notify.Notifier
	Reporter *notify.SetupReporter

	// Optional infrastructure; nil when disabled.
	AuditStore  domain.AuditStore
	RateLimiter domain.RateLimiter
	SignalBus   domain.SignalBus
}

// Wire constructs all concrete implementations from cfg and returns them with
// a cleanup function that releases them in reverse order.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}
	fail := func(format string, err error) (*Dependencies, func(), error) {
		cleanup()
		return nil, nil, fmt.Errorf(format, err)
	}

	deps := &Dependencies{}

	// --- Wallet key ---
	if cfg.Wallet.PrivateKey != "" || cfg.Wallet.KeyFile != "" {
		signer, err := crypto.LoadSigner(crypto.KeyConfig{
			RawPrivateKey:    cfg.Wallet.PrivateKey,
			EncryptedKeyPath: cfg.Wallet.KeyFile,
			KeyPassword:      cfg.KeyPassword(),
		}, cfg.Polymarket.ChainID)
		if err != nil {
			return fail("wire: wallet key: %w", err)
		}
		deps.Signer = signer
		logger.InfoContext(ctx, "wallet key loaded", slog.String("address", signer.Address().Hex()))
	}

	// --- Redis ---
	var rc *redis.Client
	if cfg.Redis.Enabled {
		var err error
		rc, err = redis.New(ctx, redis.ClientConfig{
			Addr:       cfg.Redis.Addr,
			Password:   cfg.Redis.Password,
			DB:         cfg.Redis.DB,
			PoolSize:   cfg.Redis.PoolSize,
			MaxRetries: cfg.Redis.MaxRetries,
			TLSEnabled: cfg.Redis.TLSEnabled,
			KeyPrefix:  cfg.Redis.KeyPrefix,
		})
		if err != nil {
			return fail("wire: redis: %w", err)
		}
		closers = append(closers, func() {
			if err := rc.Close(); err != nil {
				logger.Warn("redis close failed", slog.String("error", err.Error()))
			}
		})
		deps.RateLimiter = redis.NewRateLimiter(rc)
		deps.SignalBus = redis.NewSignalBus(rc)
	}

	// --- PostgreSQL audit log ---
	if cfg.Postgres.Enabled {
		pg, err := postgres.New(ctx, postgres.ClientConfig{
			DSN:      cfg.Postgres.DSN,
			MaxConns: cfg.Postgres.PoolSize,
		})
		if err != nil {
			return fail("wire: postgres: %w", err)
		}
		closers = append(closers, pg.Close)
		if cfg.Postgres.RunMigrations {
			if err := pg.RunMigrations(ctx); err != nil {
				return fail("wire: postgres migrations: %w", err)
			}
		}
		deps.AuditStore = postgres.NewAuditStore(pg.Pool())
	}

	// --- Credential and session stores ---
	creds, sessions, closeStores, err := openStores(ctx, cfg, rc, logger)
	if err != nil {
		return fail("wire: %w", err)
	}
	closers = append(closers, closeStores)

	// --- Exchange ---
	var builder polymarket.BuilderSigner
	switch {
	case cfg.Builder.Local():
		deps.LocalBuilder = polymarket.NewLocalBuilder(crypto.HMACAuth{
			Key:        cfg.Builder.APIKey,
			Secret:     cfg.Builder.APISecret,
			Passphrase: cfg.Builder.APIPassphrase,
		})
		builder = deps.LocalBuilder
	case cfg.Builder.RemoteURL != "":
		builder = polymarket.NewRemoteBuilder(cfg.Builder.RemoteURL, cfg.Backend.Timeout.Duration)
	}
	connector := polymarket.NewConnector(polymarket.ClobConfig{
		BaseURL:       cfg.Polymarket.ClobHost,
		ChainID:       cfg.Polymarket.ChainID,
		SignatureType: cfg.Polymarket.SignatureType,
		Timeout:       cfg.Polymarket.Timeout.Duration,
	}, builder, logger)
	deps.Exchange = exchange.New(connector, logger)

	// --- Setup ---
	deps.Wallet = wallet.NewMonitor(logger)
	deps.Setup = setup.New(setup.Config{
		RequiredChainID: domain.PolygonChainID,
		Funder:          cfg.Polymarket.FunderAddress,
		Auto:            cfg.Setup.Auto,
		LockTTL:         cfg.Setup.LockTTL.Duration,
	}, deps.Wallet, deps.Exchange, creds, logger)
	if rc != nil {
		deps.Setup.SetLockManager(redis.NewLockManager(rc))
	}

	// --- Backend ---
	deps.Backend = backend.New(backend.Config{
		BaseURL: cfg.Backend.BaseURL,
		Timeout: cfg.Backend.Timeout.Duration,
	}, sessions, logger)
	if rc != nil {
		deps.Backend.WithCache(redis.NewMarketCache(rc, marketCacheTTL))
	}

	// --- Notifications ---
	var senders []notify.Sender
	if cfg.Notify.Telegram.Token != "" && cfg.Notify.Telegram.ChatID != "" {
		senders = append(senders, notify.NewTelegramSender(cfg.Notify.Telegram.Token, cfg.Notify.Telegram.ChatID))
	}
	if cfg.Notify.Discord.WebhookURL != "" {
		senders = append(senders, notify.NewDiscordSender(cfg.Notify.Discord.WebhookURL))
	}
	deps.Notifier = notify.NewNotifier(senders, cfg.Notify.Events, logger)

	var sink notify.EventSink
	if deps.Notifier.Enabled() {
		sink = deps.Notifier
	}
	deps.Reporter = notify.NewSetupReporter(sink, deps.AuditStore, logger)

	// --- Orders ---
	if strings.EqualFold(cfg.Mode, "server") {
		deps.Hub = ws.NewHub(ws.Config{
			AllowedOrigins: cfg.Server.CORSOrigins,
			BusChannels:    []string{service.OrdersChannel},
		}, deps.SignalBus, logger)
	}

	deps.Flow = service.NewOrderFlow(deps.Setup, deps.Exchange, &walletPrompter{hub: deps.Hub, logger: logger}, logger)
	if deps.RateLimiter != nil && cfg.Ticket.RateLimit > 0 {
		deps.Flow.WithRateLimiter(deps.RateLimiter, cfg.Ticket.RateLimit, cfg.Ticket.RateWindow.Duration)
	}
	if deps.AuditStore != nil {
		deps.Flow.WithAudit(deps.AuditStore)
	}
	if deps.SignalBus != nil {
		deps.Flow.WithSignalBus(deps.SignalBus)
	}
	if deps.Notifier.Enabled() {
		deps.Flow.WithNotifier(deps.Notifier)
	}

	deps.Ticket = service.NewTicket(deps.Flow, cfg.Ticket.SuccessDisplay.Duration, logger)
	if deps.Hub != nil {
		hub := deps.Hub
		deps.Ticket.OnChange(func(st service.TicketState) { hub.Publish(ws.TopicTicket, st) })
	}

	closers = append(closers, deps.Exchange.Reset)
	return deps, cleanup, nil
}

// openStores opens the credential store selected by cfg and the session
// store. Sessions share the badger database when credentials live there.
func openStores(ctx context.Context, cfg *config.Config, rc *redis.Client, logger *slog.Logger) (domain.CredentialStore, domain.SessionStore, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}
	openBadger := func(path string) (*badger.Client, error) {
		db, err := badger.Open(badger.Options{Path: path, EncryptionKey: cfg.Credentials.EncryptionKey})
		if err != nil {
			return nil, err
		}
		closers = append(closers, func() {
			if err := db.Close(); err != nil {
				logger.Warn("badger close failed", slog.String("path", path), slog.String("error", err.Error()))
			}
		})
		return db, nil
	}

	var (
		creds    domain.CredentialStore
		sessions domain.SessionStore
	)
	switch strings.ToLower(cfg.Credentials.Backend) {
	case "badger":
		db, err := openBadger(cfg.Credentials.Path)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("credential store: %w", err)
		}
		creds = badger.NewCredentialStore(db, cfg.Credentials.Namespace, logger)
		sessions = badger.NewSessionStore(db)
		return creds, sessions, cleanup, nil
	case "redis":
		if rc == nil {
			return nil, nil, nil, errors.New("credential store: the redis backend requires redis.enabled")
		}
		creds = redis.NewCredentialStore(rc, cfg.Credentials.Namespace, logger)
	case "sqlite":
		store, err := sqlite.Open(ctx, cfg.Credentials.SQLitePath, cfg.Credentials.Namespace, logger)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("credential store: %w", err)
		}
		closers = append(closers, func() {
			if err := store.Close(); err != nil {
				logger.Warn("sqlite close failed", slog.String("error", err.Error()))
			}
		})
		creds = store
	default:
		return nil, nil, nil, fmt.Errorf("credential store: unknown backend %q", cfg.Credentials.Backend)
	}

	db, err := openBadger(cfg.Session.Path)
	if err != nil {
		cleanup()
		return nil, nil, nil, fmt.Errorf("session store: %w", err)
	}
	return creds, badger.NewSessionStore(db), cleanup, nil
}

// walletPrompter asks the browser, through the push channel, to connect a
// wallet. Without a hub the request is only logged.
type walletPrompter struct {
	hub    *ws.Hub
	logger *slog.Logger
}

func (p *walletPrompter) RequestConnection(ctx context.Context) error {
	p.logger.InfoContext(ctx, "wallet connection required")
	if p.hub != nil {
		p.hub.Publish(ws.TopicPrompt, map[string]string{"message": domain.UserMessage(domain.ErrWalletNotConnected)})
	}
	return nil
}
