package services

import (
	"fmt"
	"unicode"
)

// PasswordRule validates a password according to a single policy rule.
type PasswordRule interface {
	Validate(password string) error
}

// PasswordRuleFunc adapts a function to be used as a PasswordRule.
type PasswordRuleFunc func(password string) error

func (f PasswordRuleFunc) Validate(password string) error { return f(password) }

// PasswordPolicy applies rules in order and reports the first violation
// as a *PolicyError.
type PasswordPolicy struct {
	rules []PasswordRule
}

func NewPasswordPolicy(rules ...PasswordRule) *PasswordPolicy {
	copied := make([]PasswordRule, len(rules))
	copy(copied, rules)
	return &PasswordPolicy{rules: copied}
}

// DefaultPasswordPolicy requires six runes with an upper-case letter, a
// lower-case letter and a digit.
func DefaultPasswordPolicy() *PasswordPolicy {
	return NewPasswordPolicy(
		MinLengthRule(6),
		RequireClassRule("uppercase", "password must contain an uppercase letter", unicode.IsUpper),
		RequireClassRule("lowercase", "password must contain a lowercase letter", unicode.IsLower),
		RequireClassRule("digit", "password must contain a number", unicode.IsDigit),
	)
}

func (p *PasswordPolicy) Validate(password string) error {
	for _, rule := range p.rules {
		if err := rule.Validate(password); err != nil {
			return err
		}
	}
	return nil
}

// MinLengthRule counts runes, not bytes.
func MinLengthRule(min int) PasswordRule {
	return PasswordRuleFunc(func(password string) error {
		if len([]rune(password)) < min {
			return newPolicyError("min_length", fmt.Sprintf("password must be at least %d characters long", min))
		}
		return nil
	})
}

// RequireClassRule requires at least one rune for which class is true.
func RequireClassRule(code, message string, class func(rune) bool) PasswordRule {
	return PasswordRuleFunc(func(password string) error {
		for _, r := range password {
			if class(r) {
				return nil
			}
		}
		return newPolicyError(code, message)
	})
}
