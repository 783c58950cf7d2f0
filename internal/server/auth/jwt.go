// Package auth issues and checks the signed admin tokens that authorize
// reset-code management.
package auth

import (
	"errors"
	"strings"
	"time"

	"github.com/dmitrijs2005/credkeeper/internal/clockx"
	"github.com/dmitrijs2005/credkeeper/internal/common"
	"github.com/golang-jwt/jwt/v5"
)

// Claims carries the standard registered claims plus the user's role.
// The subject is the user ID.
type Claims struct {
	jwt.RegisteredClaims
	Role string `json:"role"`
}

// GenerateToken signs an HS256 token for userID with the given role.
func GenerateToken(userID, role string, secretKey []byte, issuedAt time.Time, validity time.Duration) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(issuedAt.Add(validity)),
		},
		Role: role,
	})

	return token.SignedString(secretKey)
}

// ParseToken verifies the signature and expiry of tokenString at now.
func ParseToken(tokenString string, secretKey []byte, now time.Time) (*Claims, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		return secretKey, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(func() time.Time { return now }),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, common.ErrTokenExpired
		}
		return nil, common.ErrInvalidToken
	}
	if !token.Valid || claims.Subject == "" {
		return nil, common.ErrInvalidToken
	}

	return claims, nil
}

// AdminSession resolves the acting admin from a bearer token.
type AdminSession struct {
	secret []byte
	clock  clockx.Clock
}

func NewAdminSession(secretKey []byte, clock clockx.Clock) *AdminSession {
	if clock == nil {
		clock = clockx.System{}
	}
	return &AdminSession{secret: secretKey, clock: clock}
}

// Issue returns a token for adminID valid for the given duration.
func (s *AdminSession) Issue(adminID string, validity time.Duration) (string, error) {
	return GenerateToken(adminID, common.AdminUserLevel, s.secret, s.clock.Now(), validity)
}

// AdminID returns the subject of a valid admin token. Tokens of any other
// role yield common.ErrForbidden.
func (s *AdminSession) AdminID(token string) (string, error) {
	claims, err := ParseToken(strings.TrimPrefix(strings.TrimSpace(token), "Bearer "), s.secret, s.clock.Now())
	if err != nil {
		return "", err
	}
	if claims.Role != common.AdminUserLevel {
		return "", common.ErrForbidden
	}
	return claims.Subject, nil
}
