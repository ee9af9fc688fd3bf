package models

import (
	"errors"
	"fmt"
)

// ValidationError rejects malformed send input before any persistence or
// dispatch happens.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return "validation failed: " + e.Reason
}

// NewValidationError builds a ValidationError from a format string.
func NewValidationError(format string, args ...any) error {
	return &ValidationError{Reason: fmt.Sprintf(format, args...)}
}

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// NotFoundError signals that an operation referenced a message id that does
// not exist.
type NotFoundError struct {
	MessageID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("message %s not found", e.MessageID)
}

// NewNotFound builds a NotFoundError for the given message id.
func NewNotFound(messageID string) error {
	return &NotFoundError{MessageID: messageID}
}

// IsNotFound reports whether err is a NotFoundError.
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}
