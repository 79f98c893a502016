package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
)

var (
	ErrInvalidMasterKey = errors.New("master key must be 32 bytes (64 hex chars)")
	ErrCiphertext       = errors.New("malformed credential ciphertext")
)

var randomRead = rand.Read

// CredentialCipher seals provider credentials with a per-tenant key derived
// from one master key. The tenant and provider family are bound as AAD, so a
// ciphertext copied to another tenant row does not open.
type CredentialCipher struct {
	masterKey []byte
}

// NewCredentialCipher creates a cipher from a hex-encoded 32-byte master key
func NewCredentialCipher(masterKeyHex string) (*CredentialCipher, error) {
	key, err := hex.DecodeString(masterKeyHex)
	if err != nil || len(key) != 32 {
		return nil, ErrInvalidMasterKey
	}
	return &CredentialCipher{masterKey: key}, nil
}

// Encrypt returns base64(nonce || sealed)
func (c *CredentialCipher) Encrypt(tenantID, handlerType string, plaintext []byte) (string, error) {
	aead, err := c.aead(tenantID)
	if err != nil {
		return "", err
	}
	nonce := make([]byte, aead.NonceSize())
	if _, err := randomRead(nonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}
	sealed := aead.Seal(nonce, nonce, plaintext, aad(tenantID, handlerType))
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Decrypt opens a value produced by Encrypt
func (c *CredentialCipher) Decrypt(tenantID, handlerType, ciphertext string) ([]byte, error) {
	raw, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return nil, ErrCiphertext
	}
	aead, err := c.aead(tenantID)
	if err != nil {
		return nil, err
	}
	if len(raw) < aead.NonceSize() {
		return nil, ErrCiphertext
	}
	nonce, sealed := raw[:aead.NonceSize()], raw[aead.NonceSize():]
	plain, err := aead.Open(nil, nonce, sealed, aad(tenantID, handlerType))
	if err != nil {
		return nil, ErrCiphertext
	}
	return plain, nil
}

func (c *CredentialCipher) aead(tenantID string) (cipher.AEAD, error) {
	key := make([]byte, 32)
	kdf := hkdf.New(sha256.New, c.masterKey, nil, []byte("payos/credentials/"+tenantID))
	if _, err := io.ReadFull(kdf, key); err != nil {
		return nil, fmt.Errorf("failed to derive key: %w", err)
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

func aad(tenantID, handlerType string) []byte {
	return []byte(tenantID + "|" + handlerType)
}

// GenerateRandomToken generates a random hex token of the given byte length
func GenerateRandomToken(length int) (string, error) {
	bytes := make([]byte, length)
	if _, err := randomRead(bytes); err != nil {
		return "", fmt.Errorf("failed to generate random token: %w", err)
	}
	return hex.EncodeToString(bytes), nil
}
