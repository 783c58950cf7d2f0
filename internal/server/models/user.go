// Package models defines the records persisted by credkeeper repositories.
package models

import (
	"strings"
	"time"

	"github.com/dmitrijs2005/credkeeper/internal/cryptox"
)

// Credential is a user's password record. Version tells which variant the
// Hash/Salt pair holds; new writes are always cryptox.VersionModern.
type Credential struct {
	Version       int
	Hash          string
	Salt          string
	LastChangedAt time.Time
}

// Secret returns the tagged form of the credential, or false when the
// record holds nothing verifiable.
func (c Credential) Secret() (cryptox.StoredSecret, bool) {
	if c.Hash == "" {
		return nil, false
	}
	return cryptox.SecretFromVersion(c.Hash, c.Salt, c.Version)
}

// ModernCredential builds a version-2 credential from a fresh hash.
func ModernCredential(s cryptox.ModernSecret, changedAt time.Time) Credential {
	return Credential{
		Version:       cryptox.VersionModern,
		Hash:          s.Hash,
		Salt:          s.Salt,
		LastChangedAt: changedAt,
	}
}

// SecretChallenge is the recovery question and its hashed answer.
type SecretChallenge struct {
	Question   string
	AnswerHash string
	AnswerSalt string
}

// Configured reports whether a usable challenge is on file.
func (c *SecretChallenge) Configured() bool {
	return c != nil && strings.TrimSpace(c.Question) != "" && c.AnswerHash != ""
}

// User is the slice of a user record this module reads and writes.
type User struct {
	ID               string
	Username         string
	Email            string
	Name             string
	CompanyID        string
	CompanyName      string
	SectorID         string
	SectorName       string
	Role             string
	Level            string
	Active           bool
	ForceFirstAccess bool

	Credential Credential
	Challenge  *SecretChallenge

	// LegacyPlaintext is the pre-migration clear-text password field.
	// It is nulled on every credential write.
	LegacyPlaintext *string
	// FastPathSecret is only written when the compatibility switch
	// WriteFastPathSecret is enabled.
	FastPathSecret *string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// NormalizeUsername lowercases and trims a username for lookup.
func NormalizeUsername(username string) string {
	return strings.ToLower(strings.TrimSpace(username))
}

// NormalizeAnswer lowercases and trims a secret answer before hashing or
// comparison.
func NormalizeAnswer(answer string) string {
	return strings.ToLower(strings.TrimSpace(answer))
}

// UserPatch is a partial update. Nil fields are left untouched.
// ClearLegacyPlaintext and ClearFastPath null the respective columns.
type UserPatch struct {
	Credential           *Credential
	Challenge            *SecretChallenge
	ForceFirstAccess     *bool
	ClearLegacyPlaintext bool
	FastPathSecret       *string
	ClearFastPath        bool
}

// Empty reports whether the patch changes nothing.
func (p UserPatch) Empty() bool {
	return p.Credential == nil && p.Challenge == nil && p.ForceFirstAccess == nil &&
		!p.ClearLegacyPlaintext && p.FastPathSecret == nil && !p.ClearFastPath
}

// Apply writes the patch onto u. UpdatedAt is set to now.
func (p UserPatch) Apply(u *User, now time.Time) {
	if p.Credential != nil {
		u.Credential = *p.Credential
	}
	if p.Challenge != nil {
		c := *p.Challenge
		u.Challenge = &c
	}
	if p.ForceFirstAccess != nil {
		u.ForceFirstAccess = *p.ForceFirstAccess
	}
	if p.ClearLegacyPlaintext {
		u.LegacyPlaintext = nil
	}
	if p.FastPathSecret != nil {
		v := *p.FastPathSecret
		u.FastPathSecret = &v
	}
	if p.ClearFastPath {
		u.FastPathSecret = nil
	}
	u.UpdatedAt = now
}
