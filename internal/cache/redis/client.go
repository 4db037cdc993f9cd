// Package redis implements the shared-state backends (credentials, locks,
// rate limits, market cache, signal bus) using go-redis/v9.
package redis

import (
	"context"
	"crypto/tls"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"
)

// ClientConfig holds connection parameters. Addr may also be a
// redis:// or rediss:// URL, in which case it supplies the password, DB and
// TLS settings.
type ClientConfig struct {
	Addr       string
	Password   string
	DB         int
	PoolSize   int
	MaxRetries int
	TLSEnabled bool
	KeyPrefix  string // prepended to every key this package writes
}

func (cfg ClientConfig) options() (*redis.Options, error) {
	if strings.Contains(cfg.Addr, "://") {
		opts, err := redis.ParseURL(cfg.Addr)
		if err != nil {
			return nil, fmt.Errorf("redis: parse url: %w", err)
		}
		opts.PoolSize = cfg.PoolSize
		opts.MaxRetries = cfg.MaxRetries
		return opts, nil
	}
	opts := &redis.Options{
		Addr:       cfg.Addr,
		Password:   cfg.Password,
		DB:         cfg.DB,
		PoolSize:   cfg.PoolSize,
		MaxRetries: cfg.MaxRetries,
	}
	if cfg.TLSEnabled {
		opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	return opts, nil
}

// Client is a connected go-redis client plus the key namespace.
type Client struct {
	rdb    *redis.Client
	prefix string
}

// New connects and pings the server.
func New(ctx context.Context, cfg ClientConfig) (*Client, error) {
	opts, err := cfg.options()
	if err != nil {
		return nil, err
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis: ping %s: %w", opts.Addr, err)
	}
	return &Client{rdb: rdb, prefix: cfg.KeyPrefix}, nil
}

func (c *Client) Close() error { return c.rdb.Close() }

func (c *Client) key(parts ...string) string {
	return c.prefix + strings.Join(parts, "")
}
