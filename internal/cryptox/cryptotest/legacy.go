// Package cryptotest builds credential fixtures for tests in other
// packages. Production code never writes legacy secrets.
package cryptotest

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"

	"github.com/dmitrijs2005/credkeeper/internal/cryptox"
)

// SealLegacy encrypts plain the way releases before the hashing migration
// stored passwords.
func SealLegacy(serverSecret, salt, plain string) (cryptox.LegacySecret, error) {
	block, err := aes.NewCipher(cryptox.DeriveKey(serverSecret, salt))
	if err != nil {
		return cryptox.LegacySecret{}, err
	}
	aesgcm, err := cipher.NewGCM(block)
	if err != nil {
		return cryptox.LegacySecret{}, err
	}

	nonce := make([]byte, aesgcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return cryptox.LegacySecret{}, err
	}

	out := aesgcm.Seal(nonce, nonce, []byte(plain), nil)
	return cryptox.LegacySecret{CipherText: base64.StdEncoding.EncodeToString(out), Salt: salt}, nil
}
