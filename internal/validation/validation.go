package validation

import (
	"errors"
	"net/mail"
	"regexp"
	"strings"
)

var (
	// ErrNameRequired is returned when a display name is empty
	ErrNameRequired = errors.New("name is required")

	// ErrNameTooLong is returned when a display name exceeds the limit
	ErrNameTooLong = errors.New("name must be at most 200 characters")

	// ErrInvalidEmail is returned when an email address fails parsing
	ErrInvalidEmail = errors.New("invalid email address")

	// ErrEmailTooLong is returned when an email address exceeds RFC limits
	ErrEmailTooLong = errors.New("email is too long")

	// ErrInvalidCurrency is returned when a currency code is not a
	// three-letter ISO 4217 style code
	ErrInvalidCurrency = errors.New("currency must be a three-letter code")

	currencyRegex = regexp.MustCompile(`^[A-Z]{3}$`)
)

// ValidateName validates a display name (gym, franchise, or person).
func ValidateName(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return ErrNameRequired
	}
	if len(name) > 200 {
		return ErrNameTooLong
	}
	return nil
}

// NormalizeEmail trims and validates an email address, returning the
// trimmed form.
func NormalizeEmail(email string) (string, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return "", ErrInvalidEmail
	}
	if len(email) > 320 {
		return "", ErrEmailTooLong
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return "", ErrInvalidEmail
	}
	return email, nil
}

// NormalizeCurrency uppercases and validates a currency code.
func NormalizeCurrency(code string) (string, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if !currencyRegex.MatchString(code) {
		return "", ErrInvalidCurrency
	}
	return code, nil
}
