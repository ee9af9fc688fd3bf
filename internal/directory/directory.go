// Package directory resolves personnel identifiers to channel-specific
// delivery addresses. The personnel records themselves are maintained by the
// surrounding application; this package only performs lookups.
package directory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/example/notification-fanout/internal/models"
	"github.com/example/notification-fanout/internal/util"
)

// ErrAddressNotFound signals that a personnel id has no usable address for
// the requested channel. The fan-out engine records it per recipient; it is
// never a whole-operation failure.
var ErrAddressNotFound = errors.New("directory: address not found")

// Resolver maps a personnel identifier to a delivery address for a channel.
type Resolver interface {
	Resolve(ctx context.Context, personnelID string, channel models.Channel) (string, error)
}

// Entry holds the known delivery addresses for one person. Empty fields mean
// the person cannot be reached over that channel.
type Entry struct {
	Email string `json:"email,omitempty"`
	Phone string `json:"phone,omitempty"`
}

// Static resolves addresses from an in-memory table.
type Static struct {
	mu      sync.RWMutex
	entries map[string]Entry
}

// NewStatic constructs a Static directory from the supplied entries.
func NewStatic(entries map[string]Entry) *Static {
	copied := make(map[string]Entry, len(entries))
	for id, e := range entries {
		copied[id] = e
	}
	return &Static{entries: copied}
}

// LoadFile reads a JSON object of personnel id to Entry mappings. Addresses
// are normalized on load so malformed seed data is caught at startup, not
// mid fan-out.
func LoadFile(path string) (*Static, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("directory: read seed file: %w", err)
	}
	var entries map[string]Entry
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, fmt.Errorf("directory: parse seed file: %w", err)
	}
	for id, e := range entries {
		if e.Email != "" {
			normalized, err := util.NormalizeEmail(e.Email)
			if err != nil {
				return nil, fmt.Errorf("directory: entry %q: %w", id, err)
			}
			e.Email = normalized
		}
		if e.Phone != "" {
			normalized, err := util.NormalizeE164(e.Phone)
			if err != nil {
				return nil, fmt.Errorf("directory: entry %q: %w", id, err)
			}
			e.Phone = normalized
		}
		entries[id] = e
	}
	return NewStatic(entries), nil
}

// Put adds or replaces the entry for a personnel id.
func (s *Static) Put(personnelID string, e Entry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[personnelID] = e
}

// Resolve returns the address for the personnel id on the given channel.
func (s *Static) Resolve(_ context.Context, personnelID string, channel models.Channel) (string, error) {
	s.mu.RLock()
	entry, ok := s.entries[personnelID]
	s.mu.RUnlock()
	if !ok {
		return "", fmt.Errorf("%w: unknown personnel id %q", ErrAddressNotFound, personnelID)
	}

	switch channel {
	case models.ChannelEmail:
		if entry.Email == "" {
			return "", fmt.Errorf("%w: %q has no email address", ErrAddressNotFound, personnelID)
		}
		return entry.Email, nil
	case models.ChannelSMS:
		if entry.Phone == "" {
			return "", fmt.Errorf("%w: %q has no phone number", ErrAddressNotFound, personnelID)
		}
		return entry.Phone, nil
	default:
		return "", fmt.Errorf("%w: unsupported channel %q", ErrAddressNotFound, channel)
	}
}
