// Package common defines shared constants and sentinel errors used across
// repositories and services of credkeeper. Callers should use errors.Is to
// match these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound = errors.New("not found")

	// ErrConflict is returned by conditional writes whose precondition no
	// longer holds (for example a reset code that was already consumed).
	ErrConflict = errors.New("conflict")

	// ErrorUnauthorized covers failed logins and missing admin sessions.
	ErrorUnauthorized = errors.New("unauthorized")

	// ErrStore is surfaced to users as "try again": the backing store failed
	// and the caller may retry the same step.
	ErrStore = errors.New("store unavailable, try again")

	// Auth errors (invalid or malformed token).
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenExpired = errors.New("token expired")
	ErrForbidden    = errors.New("forbidden")
)
