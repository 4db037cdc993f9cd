package crypto

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncryptedKeyFileRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wallet.json")
	require.NoError(t, WriteEncryptedKey(path, testKey, "hunter2"))

	s, err := LoadSigner(KeyConfig{EncryptedKeyPath: path, KeyPassword: "hunter2"}, 137)
	require.NoError(t, err)
	assert.Equal(t, "0x2c7536E3605D9C16a7a3D7b1898e529396a65c23", s.Address().Hex())

	_, err = LoadKey(KeyConfig{EncryptedKeyPath: path, KeyPassword: "wrong"})
	require.Error(t, err)
}

func TestLoadKeyPrecedence(t *testing.T) {
	k, err := LoadKey(KeyConfig{RawPrivateKey: testKey, EncryptedKeyPath: "/does/not/exist"})
	require.NoError(t, err)
	assert.Equal(t, strings.TrimPrefix(testKey, "0x"), k)

	_, err = LoadKey(KeyConfig{})
	require.Error(t, err)

	_, err = LoadKey(KeyConfig{RawPrivateKey: "zz"})
	require.Error(t, err)
}

func TestEncryptKeyRejectsEmptyPassword(t *testing.T) {
	_, err := EncryptKey(testKey, "")
	require.Error(t, err)
}
