package service

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"

	"tenantql/internal/core"
)

// Vault handles AES-256-GCM encryption/decryption of connection secrets.
// Plaintext secrets exist only as parameters to these two methods.
type Vault struct {
	key []byte
}

// NewVault derives the cipher key from the first 32 bytes of the master secret.
func NewVault(masterKey string) (*Vault, error) {
	if len(masterKey) < 32 {
		return nil, errors.New("master key must be at least 32 characters")
	}
	return &Vault{key: []byte(masterKey)[:32]}, nil
}

// Encrypt encrypts plaintext and returns base64(nonce || ciphertext).
// The empty string is a valid input.
func (v *Vault) Encrypt(plaintext string) (string, error) {
	block, err := aes.NewCipher(v.key)
	if err != nil {
		return "", err
	}

	aesGCM, err := cipher.NewGCM(block)
	if err != nil {
		return "", err
	}

	nonce := make([]byte, aesGCM.NonceSize())
	if _, err = io.ReadFull(rand.Reader, nonce); err != nil {
		return "", err
	}

	ciphertext := aesGCM.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(ciphertext), nil
}

// Decrypt reverses Encrypt. A malformed token or a token sealed under a
// different master key fails with core.ErrDecryption; callers must treat
// that as a configuration error, never substitute a default.
func (v *Vault) Decrypt(token string) (string, error) {
	data, err := base64.StdEncoding.DecodeString(token)
	if err != nil {
		return "", fmt.Errorf("%w: %v", core.ErrDecryption, err)
	}

	block, err := aes.NewCipher(v.key)
	if err != nil {
		return "", err
	}

	aesGCM, err := cipher.NewGCM(block)
	if err != nil {
		return "", err
	}

	nonceSize := aesGCM.NonceSize()
	if len(data) < nonceSize {
		return "", fmt.Errorf("%w: ciphertext too short", core.ErrDecryption)
	}

	nonce, ciphertext := data[:nonceSize], data[nonceSize:]
	plaintext, err := aesGCM.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", fmt.Errorf("%w: %v", core.ErrDecryption, err)
	}

	return string(plaintext), nil
}
