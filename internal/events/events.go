// Package events emits delivery lifecycle events so the surrounding
// application can observe fan-out progress without polling the store.
package events

import (
	"context"
	"time"
)

// Event types emitted for recipient delivery lifecycle updates.
const (
	TypeAttempted = "attempted"
	TypeSent      = "sent"
	TypeFailed    = "failed"
)

// Event describes one delivery lifecycle update for one recipient record.
type Event struct {
	Type        string    `json:"type"`
	MessageID   string    `json:"message_id"`
	RecipientID string    `json:"recipient_id"`
	PersonnelID string    `json:"personnel_id"`
	Channel     string    `json:"channel"`
	Attempt     int       `json:"attempt"`
	Error       string    `json:"error,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}

// Publisher emits delivery lifecycle events. Publishing is best effort: the
// fan-out engine logs publish failures and carries on.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

// Nop discards all events. Used when no broker is configured.
type Nop struct{}

// Publish implements Publisher.
func (Nop) Publish(context.Context, Event) error { return nil }
