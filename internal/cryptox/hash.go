package cryptox

import (
	"crypto/sha512"
	"crypto/subtle"
	"encoding/hex"
)

// Algorithm versions as persisted next to a credential.
const (
	VersionLegacy = 1
	VersionModern = 2
)

// StoredSecret is a persisted password or answer. It is either a
// LegacySecret (reversible, read-only) or a ModernSecret (salted one-way
// hash); the set is closed.
type StoredSecret interface {
	Version() int
	storedSecret()
}

// LegacySecret is a reversible ciphertext written by an older release.
// It can be verified but is never produced by this package.
type LegacySecret struct {
	CipherText string
	Salt       string
}

func (LegacySecret) Version() int  { return VersionLegacy }
func (LegacySecret) storedSecret() {}

// ModernSecret is hex(SHA-512(text ++ salt ++ serverSecret)) with its salt.
type ModernSecret struct {
	Hash string
	Salt string
}

func (ModernSecret) Version() int  { return VersionModern }
func (ModernSecret) storedSecret() {}

// Hasher hashes and verifies passwords and secret answers.
// It is stateless and safe for concurrent use.
type Hasher struct {
	secret string
	opts   options
}

// NewHasher returns a Hasher bound to the server secret.
func NewHasher(serverSecret string, opts ...Option) (*Hasher, error) {
	if serverSecret == "" {
		return nil, ErrMissingServerSecret
	}
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return &Hasher{secret: serverSecret, opts: o}, nil
}

// Hash returns a fresh ModernSecret for text. It panics only if the random
// source fails, which crypto/rand never does.
func (h *Hasher) Hash(text string) ModernSecret {
	salt, err := newSalt(h.opts.random)
	if err != nil {
		panic(err)
	}
	return ModernSecret{Hash: h.digest(text, salt), Salt: salt}
}

func (h *Hasher) digest(text, salt string) string {
	sum := sha512.Sum512([]byte(text + salt + h.secret))
	return hex.EncodeToString(sum[:])
}

// Verify reports whether text matches stored. Malformed input and internal
// failures yield false.
func (h *Hasher) Verify(text string, stored StoredSecret) (ok bool) {
	defer func() {
		if recover() != nil {
			ok = false
		}
	}()

	switch s := stored.(type) {
	case ModernSecret:
		if s.Hash == "" || s.Salt == "" {
			return false
		}
		return subtle.ConstantTimeCompare([]byte(h.digest(text, s.Salt)), []byte(s.Hash)) == 1
	case LegacySecret:
		if s.CipherText == "" {
			return false
		}
		plain, err := open(DeriveKey(h.secret, s.Salt), s.CipherText)
		if err != nil {
			return false
		}
		return subtle.ConstantTimeCompare(plain, []byte(text)) == 1
	default:
		return false
	}
}

// VerifyVersioned adapts the (hash, salt, version) triple stored by older
// records to Verify. For version 1 hash holds the legacy ciphertext.
func (h *Hasher) VerifyVersioned(text, hash, salt string, version int) bool {
	stored, ok := SecretFromVersion(hash, salt, version)
	if !ok {
		return false
	}
	return h.Verify(text, stored)
}

// SecretFromVersion maps a persisted (hash, salt, version) triple to its
// StoredSecret variant. Unknown versions report false.
func SecretFromVersion(hash, salt string, version int) (StoredSecret, bool) {
	switch version {
	case VersionLegacy:
		return LegacySecret{CipherText: hash, Salt: salt}, true
	case VersionModern:
		return ModernSecret{Hash: hash, Salt: salt}, true
	default:
		return nil, false
	}
}
