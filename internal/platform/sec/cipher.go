// Copyright (c) 2026 Albumin. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package sec

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/scrypt"
)

// scrypt parameters for deriving the AES-256 key from the configured secret.
const (
	scryptN      = 1 << 15
	scryptR      = 8
	scryptP      = 1
	keyLength    = 32
	segmentSplit = "|"
)

// ErrMalformedCiphertext is returned when a stored value is not in nonce|sealed form.
var ErrMalformedCiphertext = errors.New("sec: malformed ciphertext")

// Cipher encrypts catalog credentials at rest with AES-GCM.
//
// The key is derived once with scrypt, so a Cipher is cheap to use and safe for
// concurrent use.
type Cipher struct {
	aead cipher.AEAD
}

// NewCipher derives the encryption key from secret and salt.
func NewCipher(secret, salt string) (*Cipher, error) {
	if secret == "" || salt == "" {
		return nil, errors.New("sec: encryption secret and salt are required")
	}

	key, err := scrypt.Key([]byte(secret), []byte(salt), scryptN, scryptR, scryptP, keyLength)
	if err != nil {
		return nil, fmt.Errorf("sec: derive key: %w", err)
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("sec: init aes: %w", err)
	}

	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("sec: init gcm: %w", err)
	}

	return &Cipher{aead: aead}, nil
}

// Encrypt seals plaintext and returns hex(nonce)|hex(ciphertext).
// An empty plaintext stays empty.
func (c *Cipher) Encrypt(plaintext string) (string, error) {
	if plaintext == "" {
		return "", nil
	}

	nonce := make([]byte, c.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("sec: nonce: %w", err)
	}

	sealed := c.aead.Seal(nil, nonce, []byte(plaintext), nil)
	return hex.EncodeToString(nonce) + segmentSplit + hex.EncodeToString(sealed), nil
}

// Decrypt reverses [Cipher.Encrypt].
func (c *Cipher) Decrypt(encoded string) (string, error) {
	if encoded == "" {
		return "", nil
	}

	nonceHex, sealedHex, found := strings.Cut(encoded, segmentSplit)
	if !found {
		return "", ErrMalformedCiphertext
	}

	nonce, err := hex.DecodeString(nonceHex)
	if err != nil || len(nonce) != c.aead.NonceSize() {
		return "", ErrMalformedCiphertext
	}

	sealed, err := hex.DecodeString(sealedHex)
	if err != nil {
		return "", ErrMalformedCiphertext
	}

	plaintext, err := c.aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return "", fmt.Errorf("sec: decrypt: %w", err)
	}

	return string(plaintext), nil
}
