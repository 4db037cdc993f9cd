package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads the TOML file at path over Defaults, loads .env if present and
// applies POLYTRADE_* overrides. A missing file leaves the defaults in place.
// The result is not validated.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("config: decode %s: %w", path, err)
		}
	}

	// .env is optional.
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)
	return &cfg, nil
}

// KeyPassword returns the key file password from the configured variable.
func (c *Config) KeyPassword() string {
	if c.Wallet.KeyPasswordEnv == "" {
		return ""
	}
	return os.Getenv(c.Wallet.KeyPasswordEnv)
}

func applyEnvOverrides(cfg *Config) {
	setStr(&cfg.Wallet.PrivateKey, "POLYTRADE_WALLET_PRIVATE_KEY")
	setStr(&cfg.Wallet.KeyFile, "POLYTRADE_WALLET_KEY_FILE")
	setStr(&cfg.Wallet.KeyPasswordEnv, "POLYTRADE_WALLET_KEY_PASSWORD_ENV")

	setStr(&cfg.Polymarket.ClobHost, "POLYTRADE_POLYMARKET_CLOB_HOST")
	setInt(&cfg.Polymarket.ChainID, "POLYTRADE_POLYMARKET_CHAIN_ID")
	setInt(&cfg.Polymarket.SignatureType, "POLYTRADE_POLYMARKET_SIGNATURE_TYPE")
	setStr(&cfg.Polymarket.FunderAddress, "POLYTRADE_POLYMARKET_FUNDER_ADDRESS")
	setDuration(&cfg.Polymarket.Timeout, "POLYTRADE_POLYMARKET_TIMEOUT")

	setStr(&cfg.Builder.RemoteURL, "POLYTRADE_BUILDER_REMOTE_URL")
	setStr(&cfg.Builder.APIKey, "POLYTRADE_BUILDER_API_KEY")
	setStr(&cfg.Builder.APISecret, "POLYTRADE_BUILDER_API_SECRET")
	setStr(&cfg.Builder.APIPassphrase, "POLYTRADE_BUILDER_API_PASSPHRASE")

	setStr(&cfg.Backend.BaseURL, "POLYTRADE_BACKEND_BASE_URL")
	setDuration(&cfg.Backend.Timeout, "POLYTRADE_BACKEND_TIMEOUT")

	setStr(&cfg.WalletConnect.ProjectID, "POLYTRADE_WALLETCONNECT_PROJECT_ID")

	setStr(&cfg.Credentials.Backend, "POLYTRADE_CREDENTIALS_BACKEND")
	setStr(&cfg.Credentials.Path, "POLYTRADE_CREDENTIALS_PATH")
	setStr(&cfg.Credentials.Namespace, "POLYTRADE_CREDENTIALS_NAMESPACE")
	setStr(&cfg.Credentials.EncryptionKey, "POLYTRADE_CREDENTIALS_ENCRYPTION_KEY")
	setStr(&cfg.Credentials.SQLitePath, "POLYTRADE_CREDENTIALS_SQLITE_PATH")

	setStr(&cfg.Session.Path, "POLYTRADE_SESSION_PATH")

	setBool(&cfg.Setup.Auto, "POLYTRADE_SETUP_AUTO")
	setDuration(&cfg.Setup.LockTTL, "POLYTRADE_SETUP_LOCK_TTL")

	setDuration(&cfg.Ticket.SuccessDisplay, "POLYTRADE_TICKET_SUCCESS_DISPLAY")
	setInt(&cfg.Ticket.RateLimit, "POLYTRADE_TICKET_RATE_LIMIT")
	setDuration(&cfg.Ticket.RateWindow, "POLYTRADE_TICKET_RATE_WINDOW")

	setBool(&cfg.Redis.Enabled, "POLYTRADE_REDIS_ENABLED")
	setStr(&cfg.Redis.Addr, "POLYTRADE_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "POLYTRADE_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "POLYTRADE_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "POLYTRADE_REDIS_POOL_SIZE")
	setBool(&cfg.Redis.TLSEnabled, "POLYTRADE_REDIS_TLS_ENABLED")
	setStr(&cfg.Redis.KeyPrefix, "POLYTRADE_REDIS_KEY_PREFIX")

	setBool(&cfg.Postgres.Enabled, "POLYTRADE_POSTGRES_ENABLED")
	setStr(&cfg.Postgres.DSN, "POLYTRADE_POSTGRES_DSN")
	setInt(&cfg.Postgres.PoolSize, "POLYTRADE_POSTGRES_POOL_SIZE")

	setStr(&cfg.Server.Host, "POLYTRADE_SERVER_HOST")
	setInt(&cfg.Server.Port, "POLYTRADE_SERVER_PORT")
	setStr(&cfg.Server.APIKey, "POLYTRADE_SERVER_API_KEY")
	setStringSlice(&cfg.Server.CORSOrigins, "POLYTRADE_SERVER_CORS_ORIGINS")

	setStr(&cfg.Notify.Telegram.Token, "POLYTRADE_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.Telegram.ChatID, "POLYTRADE_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.Discord.WebhookURL, "POLYTRADE_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "POLYTRADE_NOTIFY_EVENTS")

	setStr(&cfg.Log.File, "POLYTRADE_LOG_FILE")

	setStr(&cfg.Mode, "POLYTRADE_MODE")
	setStr(&cfg.LogLevel, "POLYTRADE_LOG_LEVEL")
}

// Each helper only touches dst when the variable is set and parses.

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	v := os.Getenv(key)
	if v == "" {
		return
	}
	var cleaned []string
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimSpace(p); p != "" {
			cleaned = append(cleaned, p)
		}
	}
	if len(cleaned) > 0 {
		*dst = cleaned
	}
}
