package domain

import (
	"context"
	"strings"
)

// DefaultCredentialNamespace prefixes every persisted credential key.
const DefaultCredentialNamespace = "polymarket_clob_credentials_"

// SessionTokenKey is the fixed key the backend session token is stored under.
const SessionTokenKey = "X-Token"

// ClobCredentials is the API key triple the CLOB issues for a wallet.
type ClobCredentials struct {
	Key        string `json:"key"`
	Secret     string `json:"secret"`
	Passphrase string `json:"passphrase"`
}

// Valid reports whether all three parts are present.
func (c ClobCredentials) Valid() bool {
	return c.Key != "" && c.Secret != "" && c.Passphrase != ""
}

// Redacted returns a copy safe to hand to clients.
func (c ClobCredentials) Redacted() ClobCredentials {
	return ClobCredentials{Key: c.Key, Secret: mask(c.Secret), Passphrase: mask(c.Passphrase)}
}

func mask(s string) string {
	if s == "" {
		return ""
	}
	return "****"
}

// CredentialKey builds the storage key for address under namespace.
func CredentialKey(namespace, address string) string {
	return namespace + strings.ToLower(strings.TrimSpace(address))
}

// CredentialStore persists CLOB credentials per wallet address.
type CredentialStore interface {
	// Load returns ok=false when nothing usable is stored. Corrupt entries are
	// reported as absent; err is reserved for backend failures.
	Load(ctx context.Context, address string) (creds ClobCredentials, ok bool, err error)
	Save(ctx context.Context, address string, creds ClobCredentials) error
	Delete(ctx context.Context, address string) error
}

// SessionStore holds the market-data backend bearer token.
type SessionStore interface {
	Token(ctx context.Context) (string, error)
	SetToken(ctx context.Context, token string) error
	Clear(ctx context.Context) error
}
