// Package crypto provides the local wallet: key storage, EIP-712 auth and
// order signing, and HMAC request authentication for the CLOB.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"golang.org/x/crypto/pbkdf2"
)

const (
	keyFileVersion = 1
	kdfIterations  = 480_000
	kdfSaltLen     = 16
)

// keyFile is the on-disk form of an encrypted key. Byte fields are base64
// in JSON.
type keyFile struct {
	Version    int    `json:"version"`
	Salt       []byte `json:"salt"`
	Nonce      []byte `json:"nonce"`
	Ciphertext []byte `json:"ciphertext"`
}

// KeyConfig names where the wallet key comes from. A raw key wins over a
// key file.
type KeyConfig struct {
	RawPrivateKey    string // hex, 0x prefix optional
	EncryptedKeyPath string // file written by WriteEncryptedKey
	KeyPassword      string
}

// parseKeyHex normalizes a hex private key and checks it is 32 bytes.
func parseKeyHex(s string) ([]byte, error) {
	raw, err := hex.DecodeString(strings.TrimPrefix(strings.TrimSpace(s), "0x"))
	if err != nil {
		return nil, fmt.Errorf("crypto: private key is not hex: %w", err)
	}
	if len(raw) != 32 {
		return nil, fmt.Errorf("crypto: private key must be 32 bytes, got %d", len(raw))
	}
	return raw, nil
}

// aeadFor derives an AES-256-GCM cipher from password and salt.
func aeadFor(password string, salt []byte) (cipher.AEAD, error) {
	if password == "" {
		return nil, errors.New("crypto: key password must not be empty")
	}
	block, err := aes.NewCipher(pbkdf2.Key([]byte(password), salt, kdfIterations, 32, sha256.New))
	if err != nil {
		return nil, fmt.Errorf("crypto: aes: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("crypto: gcm: %w", err)
	}
	return aead, nil
}

// EncryptKey seals privateKeyHex under password and returns the key file
// contents.
func EncryptKey(privateKeyHex, password string) ([]byte, error) {
	key, err := parseKeyHex(privateKeyHex)
	if err != nil {
		return nil, err
	}

	kf := keyFile{Version: keyFileVersion, Salt: make([]byte, kdfSaltLen)}
	if _, err := rand.Read(kf.Salt); err != nil {
		return nil, fmt.Errorf("crypto: salt: %w", err)
	}
	aead, err := aeadFor(password, kf.Salt)
	if err != nil {
		return nil, err
	}
	kf.Nonce = make([]byte, aead.NonceSize())
	if _, err := rand.Read(kf.Nonce); err != nil {
		return nil, fmt.Errorf("crypto: nonce: %w", err)
	}
	kf.Ciphertext = aead.Seal(nil, kf.Nonce, key, nil)

	return json.MarshalIndent(kf, "", "  ")
}

// DecryptKey opens a key file and returns the key as hex without 0x.
func DecryptKey(data []byte, password string) (string, error) {
	var kf keyFile
	if err := json.Unmarshal(data, &kf); err != nil {
		return "", fmt.Errorf("crypto: parse key file: %w", err)
	}
	if kf.Version != keyFileVersion {
		return "", fmt.Errorf("crypto: unsupported key file version %d", kf.Version)
	}
	aead, err := aeadFor(password, kf.Salt)
	if err != nil {
		return "", err
	}
	if len(kf.Nonce) != aead.NonceSize() {
		return "", errors.New("crypto: key file nonce has the wrong length")
	}
	key, err := aead.Open(nil, kf.Nonce, kf.Ciphertext, nil)
	if err != nil {
		return "", errors.New("crypto: cannot decrypt key file (wrong password?)")
	}
	return hex.EncodeToString(key), nil
}

// LoadKey returns the configured key as hex without 0x.
func LoadKey(cfg KeyConfig) (string, error) {
	switch {
	case cfg.RawPrivateKey != "":
		key, err := parseKeyHex(cfg.RawPrivateKey)
		if err != nil {
			return "", err
		}
		return hex.EncodeToString(key), nil
	case cfg.EncryptedKeyPath != "":
		data, err := os.ReadFile(cfg.EncryptedKeyPath)
		if err != nil {
			return "", fmt.Errorf("crypto: read key file: %w", err)
		}
		return DecryptKey(data, cfg.KeyPassword)
	}
	return "", errors.New("crypto: no wallet key configured")
}

// LoadSigner resolves the key described by cfg and binds it to chainID.
func LoadSigner(cfg KeyConfig, chainID int) (*Signer, error) {
	key, err := LoadKey(cfg)
	if err != nil {
		return nil, err
	}
	return NewSigner(key, chainID)
}

// WriteEncryptedKey encrypts privateKeyHex to path with mode 0600.
func WriteEncryptedKey(path, privateKeyHex, password string) error {
	data, err := EncryptKey(privateKeyHex, password)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("crypto: write key file: %w", err)
	}
	return nil
}
