package email

import (
	"context"
	"time"
)

// Payload is the canonical representation of one outbound email envelope.
// Fan-out produces one envelope per recipient record, so To is a single
// address.
type Payload struct {
	MessageID string
	From      string
	To        string
	Subject   string
	Body      string
}

// RawResponse mirrors the low level provider response the dispatcher inspects
// when classifying failures.
type RawResponse struct {
	ID        string
	Code      int
	Body      string
	Timestamp time.Time
}

// Provider is the contract exposed by email provider implementations.
type Provider interface {
	Send(ctx context.Context, payload *Payload) (*RawResponse, error)
}
