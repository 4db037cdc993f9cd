package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/alanyoungcy/polytrade/internal/domain"
	"github.com/redis/go-redis/v9"
)

// CredentialStore implements domain.CredentialStore with plain string keys
// and no TTL, so several daemons can share derived credentials.
type CredentialStore struct {
	c         *Client
	namespace string
	logger    *slog.Logger
}

// NewCredentialStore creates a CredentialStore backed by the given Client.
func NewCredentialStore(c *Client, namespace string, logger *slog.Logger) *CredentialStore {
	if namespace == "" {
		namespace = domain.DefaultCredentialNamespace
	}
	return &CredentialStore{c: c, namespace: namespace, logger: logger}
}

func (s *CredentialStore) credKey(address string) string {
	return s.c.key(domain.CredentialKey(s.namespace, address))
}

func (s *CredentialStore) Load(ctx context.Context, address string) (domain.ClobCredentials, bool, error) {
	key := s.credKey(address)
	raw, err := s.c.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.ClobCredentials{}, false, nil
	}
	if err != nil {
		return domain.ClobCredentials{}, false, fmt.Errorf("redis: load credentials %s: %w", key, err)
	}
	var creds domain.ClobCredentials
	if err := json.Unmarshal(raw, &creds); err != nil || !creds.Valid() {
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
	key := s.credKey(address)
	if err := s.c.rdb.Set(ctx, key, raw, 0).Err(); err != nil {
		return fmt.Errorf("redis: save credentials %s: %w", key, err)
	}
	return nil
}

func (s *CredentialStore) Delete(ctx context.Context, address string) error {
	key := s.credKey(address)
	if err := s.c.rdb.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("redis: delete credentials %s: %w", key, err)
	}
	return nil
}

var _ domain.CredentialStore = (*CredentialStore)(nil)
