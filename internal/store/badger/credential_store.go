package badger

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/alanyoungcy/polytrade/internal/domain"
)

// CredentialStore implements domain.CredentialStore.
type CredentialStore struct {
	c         *Client
	namespace string
	logger    *slog.Logger
}

// NewCredentialStore stores entries under namespace+lowercase(address).
func NewCredentialStore(c *Client, namespace string, logger *slog.Logger) *CredentialStore {
	if namespace == "" {
		namespace = domain.DefaultCredentialNamespace
	}
	return &CredentialStore{c: c, namespace: namespace, logger: logger}
}

func (s *CredentialStore) Load(_ context.Context, address string) (domain.ClobCredentials, bool, error) {
	key := domain.CredentialKey(s.namespace, address)
	raw, ok, err := s.c.Get(key)
	if err != nil || !ok {
		return domain.ClobCredentials{}, false, err
	}
	var creds domain.ClobCredentials
	if err := json.Unmarshal(raw, &creds); err != nil || !creds.Valid() {
		s.logger.Warn("ignoring unreadable stored credentials", slog.String("key", key))
		return domain.ClobCredentials{}, false, nil
	}
	return creds, true, nil
}

func (s *CredentialStore) Save(_ context.Context, address string, creds domain.ClobCredentials) error {
	raw, err := json.Marshal(creds)
	if err != nil {
		return err
	}
	return s.c.Set(domain.CredentialKey(s.namespace, address), raw)
}

func (s *CredentialStore) Delete(_ context.Context, address string) error {
	return s.c.Delete(domain.CredentialKey(s.namespace, address))
}

var _ domain.CredentialStore = (*CredentialStore)(nil)
