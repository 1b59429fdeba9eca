package utils

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/gosimple/slug"
)

var ErrInvalidKey = errors.New("encryption key must be 32 bytes")

// EncryptMessage seals message with AES-256-GCM. The output is the hex of
// nonce||ciphertext, so equal plaintexts never produce equal blobs.
func EncryptMessage(key []byte, message string) (string, error) {
	if len(key) != 32 {
		return "", ErrInvalidKey
	}
	plaintext := []byte(message)

	block, err := aes.NewCipher(key)
	if err != nil {
		return "", err
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", err
	}

	cipherText := gcm.Seal(nonce, nonce, plaintext, nil)
	return hex.EncodeToString(cipherText), nil
}

func DecryptMessage(key []byte, message string) (string, error) {
	if len(key) != 32 {
		return "", ErrInvalidKey
	}
	cipherText, err := hex.DecodeString(message)
	if err != nil {
		return "", err
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return "", err
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", err
	}
	if len(cipherText) < gcm.NonceSize() {
		return "", errors.New("ciphertext too short")
	}

	decryptedData, err := gcm.Open(nil, cipherText[:gcm.NonceSize()], cipherText[gcm.NonceSize():], nil)
	if err != nil {
		return "", err
	}
	return string(decryptedData), nil
}

// ParseKey accepts a 32 byte key given as hex, base64 or raw text.
func ParseKey(raw string) ([]byte, error) {
	raw = strings.TrimSpace(raw)
	if b, err := hex.DecodeString(raw); err == nil && len(b) == 32 {
		return b, nil
	}
	if b, err := base64.StdEncoding.DecodeString(raw); err == nil && len(b) == 32 {
		return b, nil
	}
	if len(raw) == 32 {
		return []byte(raw), nil
	}
	return nil, fmt.Errorf("%w: got %d", ErrInvalidKey, len(raw))
}

// Mask keeps the last four characters of a secret visible.
func Mask(secret string) string {
	if len(secret) <= 4 {
		return strings.Repeat("*", len(secret))
	}
	return strings.Repeat("*", 8) + secret[len(secret)-4:]
}

// Subdomain derives a DNS label from a display name.
func Subdomain(name string) string {
	s := slug.Make(name)
	if len(s) > 63 {
		s = strings.Trim(s[:63], "-")
	}
	return s
}
