package badger

import (
	"context"

	"github.com/alanyoungcy/polytrade/internal/domain"
)

// SessionStore keeps the backend bearer token under a fixed key.
type SessionStore struct {
	c *Client
}

// NewSessionStore creates a SessionStore.
func NewSessionStore(c *Client) *SessionStore {
	return &SessionStore{c: c}
}

// Token returns the stored token, or "" when signed out.
func (s *SessionStore) Token(_ context.Context) (string, error) {
	raw, _, err := s.c.Get(domain.SessionTokenKey)
	return string(raw), err
}

func (s *SessionStore) SetToken(_ context.Context, token string) error {
	return s.c.Set(domain.SessionTokenKey, []byte(token))
}

func (s *SessionStore) Clear(_ context.Context) error {
	return s.c.Delete(domain.SessionTokenKey)
}

var _ domain.SessionStore = (*SessionStore)(nil)
