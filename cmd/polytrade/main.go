// Command polytrade runs the trading daemon. It loads configuration, sets up
// logging and signal handling, and starts the application in the configured
// mode.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/alanyoungcy/polytrade/internal/app"
	"github.com/alanyoungcy/polytrade/internal/config"
	"github.com/alanyoungcy/polytrade/internal/crypto"
)

func main() {
	configPath := flag.String("config", "config.toml", "path to configuration file")
	mode := flag.String("mode", "", "override the configured mode (server, setup, trade)")
	tokenID := flag.String("token", "", "trade mode: outcome token id")
	side := flag.String("side", "BUY", "trade mode: BUY or SELL")
	price := flag.Float64("price", 0, "trade mode: price in cents")
	amount := flag.String("amount", "", "trade mode: amount in USDC")
	negRisk := flag.Bool("neg-risk", false, "trade mode: market uses the neg-risk exchange")
	encryptKey := flag.String("encrypt-key", "", "write the configured private key, encrypted, to this path and exit")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
	if *mode != "" {
		cfg.Mode = *mode
	}

	logger, closeLog := newLogger(cfg)
	defer closeLog()
	slog.SetDefault(logger)

	if *encryptKey != "" {
		if err := writeEncryptedKey(cfg, *encryptKey); err != nil {
			logger.Error("encrypt key failed", slog.String("error", err.Error()))
			os.Exit(1)
		}
		logger.Info("encrypted key written", slog.String("path", *encryptKey))
		return
	}

	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	logger.Info("polytrade starting",
		slog.String("mode", cfg.Mode),
		slog.String("config", *configPath),
	)

	application := app.New(cfg, logger).WithTrade(app.TradeArgs{
		TokenID:    *tokenID,
		Side:       *side,
		PriceCents: *price,
		Amount:     *amount,
		NegRisk:    *negRisk,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err = application.Run(ctx)
	stop()
	application.Close()

	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("application exited with error", slog.String("error", err.Error()))
		closeLog()
		os.Exit(1)
	}
	logger.Info("polytrade stopped")
}

// newLogger writes JSON to stderr and, when log.file is set, to a rotating
// file as well.
func newLogger(cfg *config.Config) (*slog.Logger, func()) {
	var level slog.Level
	switch strings.ToLower(cfg.LogLevel) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	var w io.Writer = os.Stderr
	closeFn := func() {}
	if cfg.Log.File != "" {
		lj := &lumberjack.Logger{
			Filename:   cfg.Log.File,
			MaxSize:    cfg.Log.MaxSizeMB,
			MaxBackups: cfg.Log.MaxBackups,
			MaxAge:     cfg.Log.MaxAgeDays,
			Compress:   cfg.Log.Compress,
		}
		w = io.MultiWriter(os.Stderr, lj)
		closeFn = func() { _ = lj.Close() }
	}
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level})), closeFn
}

func writeEncryptedKey(cfg *config.Config, path string) error {
	if cfg.Wallet.PrivateKey == "" {
		return errors.New("wallet.private_key (or POLYTRADE_WALLET_PRIVATE_KEY) must be set")
	}
	password := cfg.KeyPassword()
	if password == "" {
		return fmt.Errorf("set %s to the key file password", cfg.Wallet.KeyPasswordEnv)
	}
	return crypto.WriteEncryptedKey(path, cfg.Wallet.PrivateKey, password)
}
