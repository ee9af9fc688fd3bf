// Package store persists messages and their per-recipient delivery records.
// The fan-out engine is written entirely against the Store interface; the
// concrete backend is chosen once at construction time.
package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/example/notification-fanout/internal/config"
	"github.com/example/notification-fanout/internal/models"
)

// Store is the persistence contract required by the fan-out engine.
//
// UpsertRecipient must implement replace-by-id semantics: calling it
// repeatedly with the same derived recipient id updates the single existing
// record rather than appending. Writes to distinct recipient records must not
// block one another.
type Store interface {
	CreateMessage(ctx context.Context, msg *models.Message) error
	// GetMessage returns models.NotFoundError when no message exists.
	GetMessage(ctx context.Context, id string) (*models.Message, error)
	UpsertRecipient(ctx context.Context, rec *models.Recipient) error
	ListRecipients(ctx context.Context, messageID string) ([]models.Recipient, error)
	FailedRecipients(ctx context.Context, messageID string) ([]models.Recipient, error)
}

// New constructs the store backend named by the supplied configuration.
func New(ctx context.Context, cfg config.StoreConfig, log zerolog.Logger) (Store, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Backend)) {
	case "", "memory":
		log.Info().Str("backend", "memory").Msg("store initialised")
		return NewMemory(), nil
	case "postgres":
		st, err := OpenPostgres(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("store: postgres init: %w", err)
		}
		log.Info().Str("backend", "postgres").Msg("store initialised")
		return st, nil
	case "sqlite":
		st, err := OpenSQLite(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("store: sqlite init: %w", err)
		}
		log.Info().Str("backend", "sqlite").Str("path", cfg.SQLitePath).Msg("store initialised")
		return st, nil
	default:
		return nil, fmt.Errorf("store: unsupported backend %q", cfg.Backend)
	}
}
