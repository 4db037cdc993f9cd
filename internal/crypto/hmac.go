package crypto

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/alanyoungcy/polytrade/internal/domain"
)

// HMACAuth holds an API key triple used to sign CLOB L2 and builder
// requests.
type HMACAuth struct {
	Key        string // API key
	Secret     string // base64 (URL-safe or standard) encoded secret
	Passphrase string // API passphrase
}

// FromCredentials adapts a CLOB credential triple.
func FromCredentials(c domain.ClobCredentials) HMACAuth {
	return HMACAuth{Key: c.Key, Secret: c.Secret, Passphrase: c.Passphrase}
}

// L2Headers returns the headers for an authenticated CLOB request signed at
// the current time.
//
// Returned header keys:
//   - POLY_ADDRESS
//   - POLY_API_KEY
//   - POLY_TIMESTAMP
//   - POLY_PASSPHRASE
//   - POLY_SIGNATURE
func (h HMACAuth) L2Headers(address, method, path, body string) map[string]string {
	return h.L2HeadersAt(address, method, path, body, time.Now().Unix())
}

// L2HeadersAt is like L2Headers with an explicit Unix timestamp.
func (h HMACAuth) L2HeadersAt(address, method, path, body string, unixTS int64) map[string]string {
	ts := strconv.FormatInt(unixTS, 10)
	return map[string]string{
		"POLY_ADDRESS":    address,
		"POLY_API_KEY":    h.Key,
		"POLY_TIMESTAMP":  ts,
		"POLY_PASSPHRASE": h.Passphrase,
		"POLY_SIGNATURE":  Sign(h.Secret, ts, method, path, body),
	}
}

// BuilderHeaders returns the builder attribution headers for a request
// signed at the current time.
//
// Returned header keys:
//   - POLY_BUILDER_API_KEY
//   - POLY_BUILDER_TIMESTAMP
//   - POLY_BUILDER_PASSPHRASE
//   - POLY_BUILDER_SIGNATURE
func (h HMACAuth) BuilderHeaders(method, path, body string) map[string]string {
	return h.BuilderHeadersAt(method, path, body, time.Now().Unix())
}

// BuilderHeadersAt is like BuilderHeaders with an explicit Unix timestamp.
func (h HMACAuth) BuilderHeadersAt(method, path, body string, unixTS int64) map[string]string {
	ts := strconv.FormatInt(unixTS, 10)
	return map[string]string{
		"POLY_BUILDER_API_KEY":    h.Key,
		"POLY_BUILDER_TIMESTAMP":  ts,
		"POLY_BUILDER_PASSPHRASE": h.Passphrase,
		"POLY_BUILDER_SIGNATURE":  Sign(h.Secret, ts, method, path, body),
	}
}

// Sign computes the URL-safe base64 HMAC-SHA256 of ts+method+path+body keyed
// by the decoded secret.
func Sign(secret, ts, method, path, body string) string {
	mac := hmac.New(sha256.New, decodeSecret(secret))
	mac.Write([]byte(ts + method + path + body))
	return base64.URLEncoding.EncodeToString(mac.Sum(nil))
}

// decodeSecret accepts URL-safe or standard base64. Anything else is used
// as raw bytes so the caller gets a rejected signature rather than a panic.
func decodeSecret(secret string) []byte {
	if b, err := base64.URLEncoding.DecodeString(secret); err == nil {
		return b
	}
	if b, err := base64.StdEncoding.DecodeString(secret); err == nil {
		return b
	}
	if b, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(secret, "=")); err == nil {
		return b
	}
	return []byte(secret)
}

// String returns a redacted representation suitable for logging.
func (h HMACAuth) String() string {
	redact := func(s string) string {
		if len(s) <= 4 {
			return "****"
		}
		return s[:4] + "****"
	}
	return fmt.Sprintf("HMACAuth{key=%s, secret=%s}", redact(h.Key), redact(h.Secret))
}
