// Package config defines the daemon configuration: TOML over built-in
// defaults, then POLYTRADE_* environment overrides.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the root configuration.
type Config struct {
	Wallet        WalletConfig        `toml:"wallet"`
	Polymarket    PolymarketConfig    `toml:"polymarket"`
	Builder       BuilderConfig       `toml:"builder"`
	Backend       BackendConfig       `toml:"backend"`
	WalletConnect WalletConnectConfig `toml:"walletconnect"`
	Credentials   CredentialsConfig   `toml:"credentials"`
	Session       SessionConfig       `toml:"session"`
	Setup         SetupConfig         `toml:"setup"`
	Ticket        TicketConfig        `toml:"ticket"`
	Redis         RedisConfig         `toml:"redis"`
	Postgres      PostgresConfig      `toml:"postgres"`
	Server        ServerConfig        `toml:"server"`
	Notify        NotifyConfig        `toml:"notify"`
	Log           LogConfig           `toml:"log"`
	Mode          string              `toml:"mode"`
	LogLevel      string              `toml:"log_level"`
}

// WalletConfig locates the local signing key.
type WalletConfig struct {
	PrivateKey string `toml:"private_key"`
	KeyFile    string `toml:"key_file"`
	// KeyPasswordEnv names the environment variable holding the key file
	// password. The password itself never lives in the config file.
	KeyPasswordEnv string `toml:"key_password_env"`
}

// PolymarketConfig holds the CLOB endpoint and order signing parameters.
type PolymarketConfig struct {
	ClobHost      string   `toml:"clob_host"`
	ChainID       int      `toml:"chain_id"`
	SignatureType int      `toml:"signature_type"`
	FunderAddress string   `toml:"funder_address"`
	Timeout       duration `toml:"timeout"`
}

// BuilderConfig configures order attribution. RemoteURL delegates signing to
// the backend; the api_* triple signs locally and enables the sign endpoint.
type BuilderConfig struct {
	RemoteURL     string `toml:"remote_url"`
	APIKey        string `toml:"api_key"`
	APISecret     string `toml:"api_secret"`
	APIPassphrase string `toml:"api_passphrase"`
}

// Local reports whether the local builder triple is configured.
func (b BuilderConfig) Local() bool {
	return b.APIKey != "" && b.APISecret != "" && b.APIPassphrase != ""
}

// BackendConfig points at the market data backend.
type BackendConfig struct {
	BaseURL string   `toml:"base_url"`
	Timeout duration `toml:"timeout"`
}

// WalletConnectConfig is handed to the browser wallet integration.
type WalletConnectConfig struct {
	ProjectID string `toml:"project_id"`
}

// CredentialsConfig selects where CLOB credentials are persisted.
type CredentialsConfig struct {
	Backend       string `toml:"backend"` // badger | redis | sqlite
	Path          string `toml:"path"`
	Namespace     string `toml:"namespace"`
	EncryptionKey string `toml:"encryption_key"`
	SQLitePath    string `toml:"sqlite_path"`
}

// SessionConfig locates the session token store when credentials are not in
// badger.
type SessionConfig struct {
	Path string `toml:"path"`
}

// SetupConfig tunes the trading setup state machine.
type SetupConfig struct {
	Auto    bool     `toml:"auto"`
	LockTTL duration `toml:"lock_ttl"`
}

// TicketConfig tunes the order ticket.
type TicketConfig struct {
	SuccessDisplay duration `toml:"success_display"`
	RateLimit      int      `toml:"rate_limit"`
	RateWindow     duration `toml:"rate_window"`
}

// RedisConfig holds Redis connection parameters.
type RedisConfig struct {
	Enabled    bool   `toml:"enabled"`
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
	TLSEnabled bool   `toml:"tls_enabled"`
	KeyPrefix  string `toml:"key_prefix"`
}

// PostgresConfig holds the audit log database parameters.
type PostgresConfig struct {
	Enabled       bool   `toml:"enabled"`
	DSN           string `toml:"dsn"`
	PoolSize      int    `toml:"pool_size"`
	RunMigrations bool   `toml:"run_migrations"`
}

// ServerConfig holds HTTP server parameters.
type ServerConfig struct {
	Host        string   `toml:"host"`
	Port        int      `toml:"port"`
	APIKey      string   `toml:"api_key"`
	CORSOrigins []string `toml:"cors_origins"`
}

// Addr returns host:port.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// NotifyConfig holds notification channel credentials.
type NotifyConfig struct {
	Telegram TelegramConfig `toml:"telegram"`
	Discord  DiscordConfig  `toml:"discord"`
	Events   []string       `toml:"events"`
}

type TelegramConfig struct {
	Token  string `toml:"token"`
	ChatID string `toml:"chat_id"`
}

type DiscordConfig struct {
	WebhookURL string `toml:"webhook_url"`
}

// LogConfig enables a rotating log file next to stdout.
type LogConfig struct {
	File       string `toml:"file"`
	MaxSizeMB  int    `toml:"max_size_mb"`
	MaxBackups int    `toml:"max_backups"`
	MaxAgeDays int    `toml:"max_age_days"`
	Compress   bool   `toml:"compress"`
}

// duration decodes TOML strings like "30s" or "2m".
type duration struct {
	time.Duration
}

func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Defaults returns the configuration used when a key is absent from the file.
func Defaults() Config {
	return Config{
		Wallet: WalletConfig{
			KeyPasswordEnv: "POLYTRADE_KEY_PASSWORD",
		},
		Polymarket: PolymarketConfig{
			ClobHost:      "https://clob.polymarket.com",
			ChainID:       137,
			SignatureType: 0,
			Timeout:       duration{30 * time.Second},
		},
		Backend: BackendConfig{
			BaseURL: "http://localhost:3000/api/v1",
			Timeout: duration{15 * time.Second},
		},
		Credentials: CredentialsConfig{
			Backend:    "badger",
			Path:       "data/credentials",
			Namespace:  "polymarket_clob_credentials_",
			SQLitePath: "data/credentials.db",
		},
		Session: SessionConfig{
			Path: "data/session",
		},
		Setup: SetupConfig{
			Auto:    false,
			LockTTL: duration{2 * time.Minute},
		},
		Ticket: TicketConfig{
			SuccessDisplay: duration{2 * time.Second},
			RateLimit:      10,
			RateWindow:     duration{time.Minute},
		},
		Redis: RedisConfig{
			Addr:       "localhost:6379",
			PoolSize:   20,
			MaxRetries: 3,
			KeyPrefix:  "polytrade:",
		},
		Postgres: PostgresConfig{
			PoolSize:      5,
			RunMigrations: true,
		},
		Server: ServerConfig{
			Host:        "127.0.0.1",
			Port:        8000,
			CORSOrigins: []string{"http://localhost:3000"},
		},
		Notify: NotifyConfig{
			Events: []string{"order_placed", "order_failed", "setup_ready", "setup_failed"},
		},
		Log: LogConfig{
			MaxSizeMB:  100,
			MaxBackups: 5,
			MaxAgeDays: 30,
			Compress:   true,
		},
		Mode:     "server",
		LogLevel: "info",
	}
}

var validModes = map[string]bool{
	"server": true,
	"setup":  true,
	"trade":  true,
}

var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

var validCredentialBackends = map[string]bool{
	"badger": true,
	"redis":  true,
	"sqlite": true,
}

// Validate returns one error listing every problem found.
func (c *Config) Validate() error {
	var errs []string

	if !validModes[strings.ToLower(c.Mode)] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: server, setup, trade)", c.Mode))
	}
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	// The CLI modes have no browser to connect a wallet through.
	if c.Mode == "setup" || c.Mode == "trade" {
		if c.Wallet.PrivateKey == "" && c.Wallet.KeyFile == "" {
			errs = append(errs, "wallet: either private_key or key_file must be set for mode "+c.Mode)
		}
	}
	if c.Wallet.KeyFile != "" && c.Wallet.KeyPasswordEnv == "" {
		errs = append(errs, "wallet: key_password_env is required when key_file is set")
	}

	if c.Polymarket.ClobHost == "" {
		errs = append(errs, "polymarket: clob_host must not be empty")
	}
	if c.Polymarket.ChainID <= 0 {
		errs = append(errs, "polymarket: chain_id must be positive")
	}
	if c.Polymarket.SignatureType < 0 || c.Polymarket.SignatureType > 2 {
		errs = append(errs, fmt.Sprintf("polymarket: signature_type must be 0 (EOA), 1 (proxy) or 2 (Safe), got %d", c.Polymarket.SignatureType))
	}
	if c.Polymarket.SignatureType != 0 && c.Polymarket.FunderAddress == "" {
		errs = append(errs, "polymarket: funder_address is required for proxy and Safe signature types")
	}

	bk, bs, bp := c.Builder.APIKey != "", c.Builder.APISecret != "", c.Builder.APIPassphrase != ""
	if (bk || bs || bp) && !(bk && bs && bp) {
		errs = append(errs, "builder: api_key, api_secret, and api_passphrase must all be set together")
	}

	if c.Backend.BaseURL == "" {
		errs = append(errs, "backend: base_url must not be empty")
	}

	backend := strings.ToLower(c.Credentials.Backend)
	if !validCredentialBackends[backend] {
		errs = append(errs, fmt.Sprintf("credentials: unknown backend %q (valid: badger, redis, sqlite)", c.Credentials.Backend))
	}
	if c.Credentials.Namespace == "" {
		errs = append(errs, "credentials: namespace must not be empty")
	}
	switch backend {
	case "badger":
		if c.Credentials.Path == "" {
			errs = append(errs, "credentials: path is required for the badger backend")
		}
	case "sqlite":
		if c.Credentials.SQLitePath == "" {
			errs = append(errs, "credentials: sqlite_path is required for the sqlite backend")
		}
	case "redis":
		if !c.Redis.Enabled {
			errs = append(errs, "credentials: the redis backend requires redis.enabled")
		}
	}
	if backend != "badger" && c.Session.Path == "" {
		errs = append(errs, "session: path is required when credentials are not stored in badger")
	}

	if c.Ticket.RateLimit < 0 {
		errs = append(errs, "ticket: rate_limit must be >= 0")
	}
	if c.Ticket.RateLimit > 0 && c.Ticket.RateWindow.Duration <= 0 {
		errs = append(errs, "ticket: rate_window must be positive when rate_limit is set")
	}

	if c.Redis.Enabled {
		if c.Redis.Addr == "" {
			errs = append(errs, "redis: addr must not be empty")
		}
		if c.Redis.PoolSize < 1 {
			errs = append(errs, "redis: pool_size must be >= 1")
		}
	}

	if c.Postgres.Enabled {
		if strings.TrimSpace(c.Postgres.DSN) == "" {
			errs = append(errs, "postgres: dsn must not be empty when enabled")
		}
		if c.Postgres.PoolSize < 1 {
			errs = append(errs, "postgres: pool_size must be >= 1")
		}
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("server: port must be 1-65535, got %d", c.Server.Port))
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

// Warnings lists settings that are allowed but probably unintended.
func (c *Config) Warnings() []string {
	var out []string
	if strings.TrimSpace(c.WalletConnect.ProjectID) == "" {
		out = append(out, "walletconnect: project_id is empty; browser wallet connections will not work")
	}
	if c.Polymarket.ChainID != 137 {
		out = append(out, fmt.Sprintf("polymarket: chain_id %d is not Polygon mainnet (137)", c.Polymarket.ChainID))
	}
	if c.Mode == "server" && c.Wallet.PrivateKey == "" && c.Wallet.KeyFile == "" {
		out = append(out, "wallet: no local key configured; /api/wallet/connect will fail")
	}
	return out
}
