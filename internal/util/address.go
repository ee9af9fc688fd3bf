package util

import (
	"errors"
	"fmt"
	"net/mail"
	"regexp"
	"strings"
)

// Sentinel errors returned by the address helpers so callers can classify
// failures without string matching.
var (
	ErrInvalidEmail = errors.New("invalid email address")
	ErrInvalidPhone = errors.New("invalid phone number")
)

var e164Pattern = regexp.MustCompile(`^\+[1-9][0-9]{7,14}$`)

// NormalizeEmail validates and normalizes an email address. The returned
// value is lowercased and stripped of surrounding whitespace.
func NormalizeEmail(value string) (string, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return "", fmt.Errorf("%w: value is empty", ErrInvalidEmail)
	}

	addr, err := mail.ParseAddress(trimmed)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidEmail, err)
	}

	// Disallow display names to keep stored addresses deterministic.
	if addr.Name != "" || addr.Address != trimmed {
		return "", fmt.Errorf("%w: must be a bare address", ErrInvalidEmail)
	}

	return strings.ToLower(addr.Address), nil
}

// NormalizeE164 validates a phone number using the E.164 format and returns
// the normalized representation.
func NormalizeE164(value string) (string, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return "", fmt.Errorf("%w: value is empty", ErrInvalidPhone)
	}

	if !e164Pattern.MatchString(trimmed) {
		return "", fmt.Errorf("%w: %q", ErrInvalidPhone, trimmed)
	}

	return trimmed, nil
}
