package principal

import (
	"fmt"
	"strings"
	"unicode"
)

// MinPasswordLength is the shortest accepted password.
const MinPasswordLength = 8

// ValidatePassword enforces the password rules: minimum length, at least one
// digit, one uppercase and one lowercase letter, and not equal to the email.
func ValidatePassword(password, email string) error {
	if len(password) < MinPasswordLength {
		return fmt.Errorf("password must be at least %d characters long", MinPasswordLength)
	}
	var digit, upper, lower bool
	for _, r := range password {
		switch {
		case unicode.IsDigit(r):
			digit = true
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		}
	}
	if !digit {
		return fmt.Errorf("password must contain at least one number")
	}
	if !upper {
		return fmt.Errorf("password must contain at least one uppercase letter")
	}
	if !lower {
		return fmt.Errorf("password must contain at least one lowercase letter")
	}
	if email != "" && strings.EqualFold(password, email) {
		return fmt.Errorf("password must not be the email address")
	}
	return nil
}
