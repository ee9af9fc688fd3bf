package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Channel identifies a delivery medium. The set is closed on purpose so
// dispatch code can switch over it exhaustively.
type Channel string

const (
	ChannelEmail Channel = "email"
	ChannelSMS   Channel = "sms"
)

// Channels lists every supported channel.
func Channels() []Channel {
	return []Channel{ChannelEmail, ChannelSMS}
}

// ParseChannel converts user supplied input into a Channel value.
func ParseChannel(value string) (Channel, error) {
	switch Channel(strings.ToLower(strings.TrimSpace(value))) {
	case ChannelEmail:
		return ChannelEmail, nil
	case ChannelSMS:
		return ChannelSMS, nil
	default:
		return "", fmt.Errorf("unsupported channel %q", value)
	}
}

// Valid reports whether c is a known channel.
func (c Channel) Valid() bool {
	return c == ChannelEmail || c == ChannelSMS
}

// Status tracks the delivery state of a single recipient record.
type Status string

const (
	StatusPending Status = "pending"
	StatusSent    Status = "sent"
	StatusFailed  Status = "failed"
)

// Message is the immutable subject/body pair fanned out to recipients.
type Message struct {
	ID        string    `json:"id"`
	Subject   string    `json:"subject"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"created_at"`
}

// Recipient is the durable unit of delivery status for one
// (message, personnel, channel) tuple.
type Recipient struct {
	ID            string     `json:"id"`
	MessageID     string     `json:"message_id"`
	PersonnelID   string     `json:"personnel_id"`
	Channel       Channel    `json:"channel"`
	Address       string     `json:"address,omitempty"`
	Status        Status     `json:"status"`
	Error         string     `json:"error,omitempty"`
	AttemptCount  int        `json:"attempt_count"`
	LastAttemptAt *time.Time `json:"last_attempt_at,omitempty"`
}

// ErrorUnresolvedAddress is recorded on recipients whose personnel id could
// not be resolved to a usable address for the requested channel.
const ErrorUnresolvedAddress = "unresolved address"

// recipientNamespace seeds deterministic recipient id derivation.
var recipientNamespace = uuid.MustParse("8f3c1d6a-2b94-4d37-9c41-5e0f7a6b8d12")

// RecipientID derives the id for a (message, personnel, channel) tuple.
// Re-running fan-out for the same tuple always lands on the same record,
// which is what makes UpsertRecipient idempotent.
func RecipientID(messageID, personnelID string, channel Channel) string {
	name := messageID + "/" + personnelID + "/" + string(channel)
	return uuid.NewSHA1(recipientNamespace, []byte(name)).String()
}
