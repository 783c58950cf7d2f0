// Package cryptox holds the credential primitives: PBKDF2 key derivation,
// salted one-way hashing of passwords and secret answers, and the signed,
// expiring encryption envelope used for data at rest.
//
// Everything here is keyed by a deployment-wide server secret that is
// injected at construction time; an empty secret is rejected up front with
// ErrMissingServerSecret.
package cryptox

import (
	"crypto/aes"
	"crypto/cipher"
	"encoding/base64"
	"errors"
	"io"
)

var (
	// ErrMissingServerSecret is returned by constructors when the server
	// secret is not configured.
	ErrMissingServerSecret = errors.New("server secret is not set")

	errShortContent = errors.New("ciphertext too short")
)

// seal encrypts plaintext with AES-GCM under key. A fresh nonce is read from
// random and prepended; the result is base64 encoded.
func seal(key, plaintext []byte, random io.Reader) (string, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return "", err
	}
	aesgcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", err
	}

	nonce := make([]byte, aesgcm.NonceSize())
	if _, err := io.ReadFull(random, nonce); err != nil {
		return "", err
	}

	out := aesgcm.Seal(nonce, nonce, plaintext, nil)
	return base64.StdEncoding.EncodeToString(out), nil
}

// open reverses seal.
func open(key []byte, content string) ([]byte, error) {
	raw, err := base64.StdEncoding.DecodeString(content)
	if err != nil {
		return nil, err
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	aesgcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}

	if len(raw) < aesgcm.NonceSize()+aesgcm.Overhead() {
		return nil, errShortContent
	}
	nonce, ciphertext := raw[:aesgcm.NonceSize()], raw[aesgcm.NonceSize():]

	return aesgcm.Open(nil, nonce, ciphertext, nil)
}
