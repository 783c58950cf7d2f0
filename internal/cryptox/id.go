package cryptox

import (
	"crypto/sha512"
	"encoding/hex"
	"fmt"
	"io"
)

// SecureID returns prefix followed by the first 16 hex characters of
// SHA-512(nowMillis-random-serverSecret).
func (c *EnvelopeCipher) SecureID(prefix string) (string, error) {
	buf := make([]byte, 8)
	if _, err := io.ReadFull(c.opts.random, buf); err != nil {
		return "", fmt.Errorf("generate id: %w", err)
	}

	seed := fmt.Sprintf("%d-%s-%s", c.opts.clock.Now().UnixMilli(), hex.EncodeToString(buf), c.secret)
	sum := sha512.Sum512([]byte(seed))

	return prefix + hex.EncodeToString(sum[:])[:16], nil
}
