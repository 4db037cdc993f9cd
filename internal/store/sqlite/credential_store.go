// Package sqlite implements domain.CredentialStore in a single-file SQLite
// database.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/alanyoungcy/polytrade/internal/domain"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS kv (
    k          TEXT PRIMARY KEY,
    v          TEXT NOT NULL,
    updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
)`

// CredentialStore keeps credentials as JSON values in a kv table.
type CredentialStore struct {
	db        *sql.DB
	namespace string
	logger    *slog.Logger
}

// Open opens the database at path (":memory:" for an ephemeral one) and
// creates the schema.
func Open(ctx context.Context, path, namespace string, logger *slog.Logger) (*CredentialStore, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("sqlite: path is required")
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open: %w", err)
	}
	// A single connection keeps ":memory:" databases coherent.
	db.SetMaxOpenConns(1)
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite: migrate: %w", err)
	}
	if namespace == "" {
		namespace = domain.DefaultCredentialNamespace
	}
	return &CredentialStore{db: db, namespace: namespace, logger: logger}, nil
}

// Close closes the database.
func (s *CredentialStore) Close() error {
	return s.db.Close()
}

func (s *CredentialStore) Load(ctx context.Context, address string) (domain.ClobCredentials, bool, error) {
	key := domain.CredentialKey(s.namespace, address)
	var raw string
	err := s.db.QueryRowContext(ctx, `SELECT v FROM kv WHERE k = ?`, key).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ClobCredentials{}, false, nil
	}
	if err != nil {
		return domain.ClobCredentials{}, false, fmt.Errorf("sqlite: load %s: %w", key, err)
	}
	var creds domain.ClobCredentials
	if err := json.Unmarshal([]byte(raw), &creds); err != nil || !creds.Valid() {
		s.logger.Warn("ignoring unreadable stored credentials", slog.String("key", key))
		return domain.ClobCredentials{}, false, nil
	}
	return creds, true, nil
}

func (s *CredentialStore) Save(ctx context.Context, address string, creds domain.ClobCredentials) error {
	raw, err := json.Marshal(creds)
	if err != nil {
		return err
	}
	key := domain.CredentialKey(s.namespace, address)
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO kv (k, v, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
		 ON CONFLICT(k) DO UPDATE SET v = excluded.v, updated_at = excluded.updated_at`,
		key, string(raw))
	if err != nil {
		return fmt.Errorf("sqlite: save %s: %w", key, err)
	}
	return nil
}

func (s *CredentialStore) Delete(ctx context.Context, address string) error {
	key := domain.CredentialKey(s.namespace, address)
	if _, err := s.db.ExecContext(ctx, `DELETE FROM kv WHERE k = ?`, key); err != nil {
		return fmt.Errorf("sqlite: delete %s: %w", key, err)
	}
	return nil
}

// put writes a raw value; tests use it to plant corrupt rows.
func (s *CredentialStore) put(ctx context.Context, key, raw string) error {
	_, err := s.db.ExecContext(ctx, `INSERT OR REPLACE INTO kv (k, v) VALUES (?, ?)`, key, raw)
	return err
}

var _ domain.CredentialStore = (*CredentialStore)(nil)
