package models

import (
	"fmt"
	"strings"
	"testing"
)

func TestIsValidation(t *testing.T) {
	err := NewValidationError("subject is required")

	if !IsValidation(err) {
		t.Fatalf("expected validation error: %v", err)
	}
	if !strings.Contains(err.Error(), "subject is required") {
		t.Fatalf("expected reason in message, got %q", err.Error())
	}

	wrapped := fmt.Errorf("send: %w", err)
	if !IsValidation(wrapped) {
		t.Fatalf("expected wrapped error to remain a validation error")
	}
	if IsNotFound(err) {
		t.Fatalf("validation error must not classify as not-found")
	}
}

func TestIsNotFound(t *testing.T) {
	err := NewNotFound("msg-1")

	if !IsNotFound(err) {
		t.Fatalf("expected not-found error: %v", err)
	}
	if !strings.Contains(err.Error(), "msg-1") {
		t.Fatalf("expected message id in message, got %q", err.Error())
	}
	if IsValidation(err) {
		t.Fatalf("not-found error must not classify as validation")
	}
}
