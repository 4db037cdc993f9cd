package crypto

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"testing"

	"github.com/alanyoungcy/polytrade/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestL2HeadersAt(t *testing.T) {
	rawSecret := []byte("super-secret-bytes-for-testing!!")
	auth := FromCredentials(domain.ClobCredentials{
		Key:        "key-1",
		Secret:     base64.URLEncoding.EncodeToString(rawSecret),
		Passphrase: "pass-1",
	})

	h := auth.L2HeadersAt("0xabc", "POST", "/order", `{"a":1}`, 1700000000)

	mac := hmac.New(sha256.New, rawSecret)
	mac.Write([]byte(`1700000000POST/order{"a":1}`))
	want := base64.URLEncoding.EncodeToString(mac.Sum(nil))

	assert.Equal(t, "0xabc", h["POLY_ADDRESS"])
	assert.Equal(t, "key-1", h["POLY_API_KEY"])
	assert.Equal(t, "pass-1", h["POLY_PASSPHRASE"])
	assert.Equal(t, "1700000000", h["POLY_TIMESTAMP"])
	assert.Equal(t, want, h["POLY_SIGNATURE"])
}

func TestSignAcceptsStandardEncoding(t *testing.T) {
	raw := []byte{0xfb, 0xff, 0xfe, 0x01, 0x02}
	url := Sign(base64.URLEncoding.EncodeToString(raw), "1", "GET", "/x", "")
	std := Sign(base64.StdEncoding.EncodeToString(raw), "1", "GET", "/x", "")
	assert.Equal(t, url, std)
}

func TestBuilderHeadersAt(t *testing.T) {
	auth := HMACAuth{Key: "bk", Secret: base64.StdEncoding.EncodeToString([]byte("s")), Passphrase: "bp"}
	h := auth.BuilderHeadersAt("POST", "/order", "{}", 10)
	require.Len(t, h, 4)
	assert.Equal(t, "bk", h["POLY_BUILDER_API_KEY"])
	assert.Equal(t, "bp", h["POLY_BUILDER_PASSPHRASE"])
	assert.Equal(t, "10", h["POLY_BUILDER_TIMESTAMP"])
	assert.Equal(t, Sign(auth.Secret, "10", "POST", "/order", "{}"), h["POLY_BUILDER_SIGNATURE"])
}

func TestHMACAuthStringRedacts(t *testing.T) {
	auth := HMACAuth{Key: "abcdefgh", Secret: "topsecretvalue"}
	s := auth.String()
	assert.NotContains(t, s, "topsecretvalue")
	assert.Contains(t, s, "abcd****")
}
