// Package badger implements the local credential and session stores on an
// embedded Badger database.
package badger

import (
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	badgerdb "github.com/dgraph-io/badger/v4"
)

// Options configures the embedded database.
type Options struct {
	Path          string
	EncryptionKey string // hex or base64 of 16, 24 or 32 bytes; empty disables encryption
	InMemory      bool
}

// Client wraps a Badger DB with string key/value helpers.
type Client struct {
	db *badgerdb.DB
}

// Open opens (or creates) the database described by opts.
func Open(opts Options) (*Client, error) {
	var bopts badgerdb.Options
	switch {
	case opts.InMemory:
		bopts = badgerdb.DefaultOptions("").WithInMemory(true)
	case strings.TrimSpace(opts.Path) == "":
		return nil, errors.New("badger: path is required")
	default:
		bopts = badgerdb.DefaultOptions(opts.Path)
	}
	bopts = bopts.WithLogger(nil)

	if opts.EncryptionKey != "" {
		key, err := parseKey(opts.EncryptionKey)
		if err != nil {
			return nil, fmt.Errorf("badger: encryption key: %w", err)
		}
		// Encrypted workloads require an index cache.
		bopts = bopts.WithEncryptionKey(key).WithIndexCacheSize(16 << 20)
	}

	db, err := badgerdb.Open(bopts)
	if err != nil {
		return nil, fmt.Errorf("badger: open: %w", err)
	}
	return &Client{db: db}, nil
}

// Close releases the database.
func (c *Client) Close() error {
	if c == nil || c.db == nil {
		return nil
	}
	return c.db.Close()
}

// Get returns the value stored at key. ok is false when the key is absent.
func (c *Client) Get(key string) (val []byte, ok bool, err error) {
	err = c.db.View(func(txn *badgerdb.Txn) error {
		item, err := txn.Get([]byte(key))
		if errors.Is(err, badgerdb.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		ok = true
		val, err = item.ValueCopy(nil)
		return err
	})
	if err != nil {
		return nil, false, fmt.Errorf("badger: get %s: %w", key, err)
	}
	return val, ok, nil
}

// Set overwrites key with val.
func (c *Client) Set(key string, val []byte) error {
	err := c.db.Update(func(txn *badgerdb.Txn) error {
		return txn.Set([]byte(key), val)
	})
	if err != nil {
		return fmt.Errorf("badger: set %s: %w", key, err)
	}
	return nil
}

// Delete removes key. Deleting an absent key is not an error.
func (c *Client) Delete(key string) error {
	err := c.db.Update(func(txn *badgerdb.Txn) error {
		return txn.Delete([]byte(key))
	})
	if err != nil {
		return fmt.Errorf("badger: delete %s: %w", key, err)
	}
	return nil
}

// parseKey accepts hex (optionally 0x-prefixed) or standard base64.
func parseKey(raw string) ([]byte, error) {
	raw = strings.TrimSpace(raw)
	var (
		b   []byte
		err error
	)
	if b, err = hex.DecodeString(strings.TrimPrefix(raw, "0x")); err != nil {
		if b, err = base64.StdEncoding.DecodeString(raw); err != nil {
			return nil, errors.New("must be hex or base64")
		}
	}
	switch len(b) {
	case 16, 24, 32:
		return b, nil
	}
	return nil, fmt.Errorf("decoded length must be 16, 24 or 32 bytes, got %d", len(b))
}
