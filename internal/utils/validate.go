package utils

import (
	"errors"
	"regexp"
	"strings"
	"unicode"
)

// Format rules enforced at registration.  The messages name the exact rule
// violated so the client can correct the input; they never echo the value.
var (
	ErrUsernameFormat = errors.New("username must be 3-50 characters of letters, digits or underscore")
	ErrEmailFormat    = errors.New("email address is not valid")
	ErrPasswordWeak   = errors.New("password must be at least 6 characters with upper, lower and digit")
)

var (
	usernameRe = regexp.MustCompile(`^[A-Za-z0-9_]{3,50}$`)
	emailRe    = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)
)

// NormalizeEmail lower-cases and trims an email address so uniqueness checks
// and lookups are case-insensitive.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ValidateUsername checks the handle against the username pattern.
func ValidateUsername(username string) error {
	if !usernameRe.MatchString(username) {
		return ErrUsernameFormat
	}
	return nil
}

// ValidateEmail checks basic email syntax.  The address should already be
// normalized by NormalizeEmail.
func ValidateEmail(email string) error {
	if len(email) > 255 || !emailRe.MatchString(email) {
		return ErrEmailFormat
	}
	return nil
}

// ValidatePassword enforces the complexity rule: at least 6 characters
// containing an upper-case letter, a lower-case letter and a digit.
func ValidatePassword(password string) error {
	if len(password) < 6 {
		return ErrPasswordWeak
	}
	var upper, lower, digit bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsDigit(r):
			digit = true
		}
	}
	if !upper || !lower || !digit {
		return ErrPasswordWeak
	}
	return nil
}
