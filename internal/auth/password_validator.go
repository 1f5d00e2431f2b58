package auth

import (
	"unicode"
)

// MinPasswordLength is the minimum required admin password length
const MinPasswordLength = 12

// PasswordValidator checks admin passwords against the format policy.
// Format failures and credential mismatches feed the same rate-limit counter
// so the two cannot be told apart by counting attempts.
type PasswordValidator struct{}

// NewPasswordValidator creates a new PasswordValidator instance
func NewPasswordValidator() *PasswordValidator {
	return &PasswordValidator{}
}

// Validate returns the list of policy violations (empty if the password is
// well-formed).
func (v *PasswordValidator) Validate(password string) []string {
	var errs []string

	if len(password) < MinPasswordLength {
		errs = append(errs, "Password must be at least 12 characters long")
	}

	var hasUpper, hasLower, hasNumber, hasSpecial bool
	for _, char := range password {
		switch {
		case unicode.IsUpper(char):
			hasUpper = true
		case unicode.IsLower(char):
			hasLower = true
		case unicode.IsDigit(char):
			hasNumber = true
		case unicode.IsPunct(char) || unicode.IsSymbol(char):
			hasSpecial = true
		}
	}

	if !hasUpper {
		errs = append(errs, "Password must contain at least one uppercase letter")
	}
	if !hasLower {
		errs = append(errs, "Password must contain at least one lowercase letter")
	}
	if !hasNumber {
		errs = append(errs, "Password must contain at least one number")
	}
	if !hasSpecial {
		errs = append(errs, "Password must contain at least one special character")
	}

	return errs
}

// IsValid returns true if the password meets all requirements
func (v *PasswordValidator) IsValid(password string) bool {
	return len(v.Validate(password)) == 0
}
