package services

import (
	"errors"
	"fmt"

	"github.com/dmitrijs2005/credkeeper/internal/common"
)

// Lookup and state errors. None of them advance a flow.
var (
	ErrUserNotFound          = errors.New("user not found")
	ErrNoChallengeConfigured = errors.New("no secret question configured for this user")
	ErrIncorrectAnswer       = errors.New("incorrect answer")
	ErrPasswordMismatch      = errors.New("passwords do not match")
	ErrFlowState             = errors.New("step not allowed in the current state")

	ErrCodeNotFound        = errors.New("code is invalid or does not exist")
	ErrCodeAlreadyUsed     = errors.New("code has already been used")
	ErrCodeExpired         = errors.New("code has expired")
	ErrCodeWrongOwner      = errors.New("code cannot be used by this user")
	ErrCodeScopeIncomplete = errors.New("code has no company or sector assigned")
)

// ValidationError is a local input problem. It is shown to the user and
// never logged as a security event.
type ValidationError struct {
	Field   string
	Code    string
	Message string
}

func (e *ValidationError) Error() string {
	if e == nil {
		return ""
	}
	return e.Message
}

// PolicyError is a password policy violation.
type PolicyError struct {
	ValidationError
}

func (e *PolicyError) Unwrap() error { return &e.ValidationError }

func newPolicyError(code, message string) *PolicyError {
	return &PolicyError{ValidationError{Field: "password", Code: code, Message: message}}
}

// storeError marks a backing-store failure as retryable.
func storeError(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", common.ErrStore, op, err)
}
