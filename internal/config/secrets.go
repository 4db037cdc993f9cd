package config

import (
	"net/url"
	"slices"
)

const redacted = "***"

// Redacted returns a copy safe to log.
func (c Config) Redacted() Config {
	out := c

	redact(&out.Wallet.PrivateKey)
	redact(&out.Builder.APISecret)
	redact(&out.Builder.APIPassphrase)
	redact(&out.Credentials.EncryptionKey)
	redact(&out.Redis.Password)
	out.Redis.Addr = redactURLPassword(c.Redis.Addr)
	redact(&out.Postgres.DSN)
	redact(&out.Server.APIKey)
	redact(&out.Notify.Telegram.Token)
	redact(&out.Notify.Discord.WebhookURL)

	out.Server.CORSOrigins = slices.Clone(c.Server.CORSOrigins)
	out.Notify.Events = slices.Clone(c.Notify.Events)
	return out
}

func redact(s *string) {
	if *s != "" {
		*s = redacted
	}
}

// redactURLPassword masks the password of a URL-form address and leaves
// plain host:port values alone.
func redactURLPassword(addr string) string {
	u, err := url.Parse(addr)
	if err != nil || u.User == nil {
		return addr
	}
	if _, ok := u.User.Password(); ok {
		u.User = url.UserPassword(u.User.Username(), redacted)
	}
	return u.String()
}
