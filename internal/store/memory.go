package store

import (
	"context"
	"sort"
	"sync"

	"github.com/example/notification-fanout/internal/models"
)

// Memory is an in-process Store. It backs local development and is the
// canonical fake for unit tests.
type Memory struct {
	mu         sync.RWMutex
	messages   map[string]models.Message
	recipients map[string]map[string]models.Recipient // messageID -> recipientID
}

// NewMemory constructs an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		messages:   make(map[string]models.Message),
		recipients: make(map[string]map[string]models.Recipient),
	}
}

// CreateMessage stores the message. Message ids are caller supplied UUIDs;
// creating the same id twice keeps the first write.
func (m *Memory) CreateMessage(_ context.Context, msg *models.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.messages[msg.ID]; ok {
		return nil
	}
	m.messages[msg.ID] = *msg
	return nil
}

// GetMessage returns the stored message or models.NotFoundError.
func (m *Memory) GetMessage(_ context.Context, id string) (*models.Message, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	msg, ok := m.messages[id]
	if !ok {
		return nil, models.NewNotFound(id)
	}
	return &msg, nil
}

// UpsertRecipient replaces the record with the same id, creating it when new.
func (m *Memory) UpsertRecipient(_ context.Context, rec *models.Recipient) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	byID, ok := m.recipients[rec.MessageID]
	if !ok {
		byID = make(map[string]models.Recipient)
		m.recipients[rec.MessageID] = byID
	}
	byID[rec.ID] = *rec
	return nil
}

// ListRecipients returns every recipient record of the message in a stable
// personnel/channel order.
func (m *Memory) ListRecipients(_ context.Context, messageID string) ([]models.Recipient, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.collect(messageID, func(models.Recipient) bool { return true }), nil
}

// FailedRecipients returns only the records currently in the failed state.
func (m *Memory) FailedRecipients(_ context.Context, messageID string) ([]models.Recipient, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.collect(messageID, func(r models.Recipient) bool { return r.Status == models.StatusFailed }), nil
}

func (m *Memory) collect(messageID string, keep func(models.Recipient) bool) []models.Recipient {
	out := make([]models.Recipient, 0, len(m.recipients[messageID]))
	for _, rec := range m.recipients[messageID] {
		if keep(rec) {
			out = append(out, rec)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].PersonnelID != out[j].PersonnelID {
			return out[i].PersonnelID < out[j].PersonnelID
		}
		return out[i].Channel < out[j].Channel
	})
	return out
}
