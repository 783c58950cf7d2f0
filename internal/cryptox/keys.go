package cryptox

import (
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"fmt"
	"io"

	"golang.org/x/crypto/pbkdf2"
)

const (
	// KeyIterations is the PBKDF2 iteration count.
	KeyIterations = 10000
	// KeyLength is the derived key length in bytes (AES-256).
	KeyLength = 32
	// SaltLength is the number of random bytes in a generated salt.
	SaltLength = 16

	signatureLength = 32
)

// DeriveKey derives a 256-bit key from secret and salt with
// PBKDF2-HMAC-SHA256. The result is deterministic for a given pair.
func DeriveKey(secret, salt string) []byte {
	return pbkdf2.Key([]byte(secret), []byte(salt), KeyIterations, KeyLength, sha256.New)
}

// AppSignature is the deployment signature embedded in every envelope:
// the first 32 hex characters of SHA-512(secret).
func AppSignature(secret string) string {
	sum := sha512.Sum512([]byte(secret))
	return hex.EncodeToString(sum[:])[:signatureLength]
}

// newSalt returns SaltLength random bytes, hex encoded.
func newSalt(random io.Reader) (string, error) {
	buf := make([]byte, SaltLength)
	if _, err := io.ReadFull(random, buf); err != nil {
		return "", fmt.Errorf("generate salt: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
