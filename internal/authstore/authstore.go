// Package authstore encrypts the Authentication blob entity's session_key
// field at rest using NaCl secretbox, keyed by a process-wide secret
// (config.AuthBlobEncryptionKey). Auth blobs (Apple UTS tokens, Victory+
// guest sessions, etc.) are singleton per upstream and
// are the only persisted credential material in the catalog, so they get
// their own narrow encryption helper rather than a general-purpose crypto
// package.
package authstore

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"

	"golang.org/x/crypto/nacl/secretbox"
)

const nonceSize = 24

// deriveKey folds an arbitrary-length secret down to the 32-byte key
// secretbox requires.
func deriveKey(secret string) [32]byte {
	return sha256.Sum256([]byte(secret))
}

// Seal encrypts plaintext (a session key) under secret and returns a
// base64-encoded nonce||ciphertext string suitable for storage in the
// auth_blobs.session_key column.
func Seal(secret, plaintext string) (string, error) {
	if secret == "" {
		return "", fmt.Errorf("authstore: encryption key must not be empty")
	}
	key := deriveKey(secret)

	var nonce [nonceSize]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		return "", fmt.Errorf("authstore: generate nonce: %w", err)
	}

	sealed := secretbox.Seal(nonce[:], []byte(plaintext), &nonce, &key)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Open decrypts a value previously produced by Seal.
func Open(secret, stored string) (string, error) {
	if secret == "" {
		return "", fmt.Errorf("authstore: encryption key must not be empty")
	}
	raw, err := base64.StdEncoding.DecodeString(stored)
	if err != nil {
		return "", fmt.Errorf("authstore: decode stored value: %w", err)
	}
	if len(raw) < nonceSize {
		return "", fmt.Errorf("authstore: stored value too short")
	}
	key := deriveKey(secret)

	var nonce [nonceSize]byte
	copy(nonce[:], raw[:nonceSize])

	plaintext, ok := secretbox.Open(nil, raw[nonceSize:], &nonce, &key)
	if !ok {
		return "", fmt.Errorf("authstore: decryption failed (wrong key or corrupt data)")
	}
	return string(plaintext), nil
}
