package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/example/notification-fanout/internal/models"
)

// SQLite is the document-oriented Store backend. Entities are stored as JSON
// documents keyed by id; message_id and status are lifted into plain columns
// purely so lookups stay indexable. The JSON document is the source of truth,
// which keeps the persisted field names identical to the postgres backend's
// column-per-field layout.
const sqliteSchema = `
CREATE TABLE IF NOT EXISTS messages (
	id  TEXT PRIMARY KEY,
	doc TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS recipients (
	id         TEXT PRIMARY KEY,
	message_id TEXT NOT NULL,
	status     TEXT NOT NULL,
	doc        TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_recipients_message ON recipients(message_id);
CREATE INDEX IF NOT EXISTS idx_recipients_message_status ON recipients(message_id, status);
`

// SQLite implements Store on a local sqlite database file.
type SQLite struct {
	db *sql.DB
}

// OpenSQLite opens (or creates) the database file and ensures the schema.
func OpenSQLite(ctx context.Context, path string) (*SQLite, error) {
	if path == "" {
		return nil, errors.New("sqlite store: path is required")
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("sqlite store: open: %w", err)
	}
	// modernc sqlite serialises writes; a single connection avoids
	// SQLITE_BUSY under concurrent recipient upserts.
	db.SetMaxOpenConns(1)
	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite store: ensure schema: %w", err)
	}
	return &SQLite{db: db}, nil
}

// Close releases the database handle.
func (s *SQLite) Close() error {
	return s.db.Close()
}

func (s *SQLite) CreateMessage(ctx context.Context, msg *models.Message) error {
	doc, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("sqlite store: encode message: %w", err)
	}
	const query = `INSERT INTO messages (id, doc) VALUES (?, ?) ON CONFLICT(id) DO NOTHING`
	if _, err := s.db.ExecContext(ctx, query, msg.ID, string(doc)); err != nil {
		return fmt.Errorf("sqlite store: create message: %w", err)
	}
	return nil
}

func (s *SQLite) GetMessage(ctx context.Context, id string) (*models.Message, error) {
	const query = `SELECT doc FROM messages WHERE id = ?`
	var doc string
	err := s.db.QueryRowContext(ctx, query, id).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.NewNotFound(id)
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite store: get message: %w", err)
	}
	var msg models.Message
	if err := json.Unmarshal([]byte(doc), &msg); err != nil {
		return nil, fmt.Errorf("sqlite store: decode message: %w", err)
	}
	return &msg, nil
}

func (s *SQLite) UpsertRecipient(ctx context.Context, rec *models.Recipient) error {
	doc, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("sqlite store: encode recipient: %w", err)
	}
	const query = `
		INSERT INTO recipients (id, message_id, status, doc)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			status = excluded.status,
			doc    = excluded.doc
	`
	if _, err := s.db.ExecContext(ctx, query, rec.ID, rec.MessageID, string(rec.Status), string(doc)); err != nil {
		return fmt.Errorf("sqlite store: upsert recipient: %w", err)
	}
	return nil
}

func (s *SQLite) ListRecipients(ctx context.Context, messageID string) ([]models.Recipient, error) {
	const query = `
		SELECT doc FROM recipients
		WHERE message_id = ?
		ORDER BY json_extract(doc, '$.personnel_id'), json_extract(doc, '$.channel')
	`
	return s.queryRecipients(ctx, query, messageID)
}

func (s *SQLite) FailedRecipients(ctx context.Context, messageID string) ([]models.Recipient, error) {
	const query = `
		SELECT doc FROM recipients
		WHERE message_id = ? AND status = ?
		ORDER BY json_extract(doc, '$.personnel_id'), json_extract(doc, '$.channel')
	`
	return s.queryRecipients(ctx, query, messageID, string(models.StatusFailed))
}

func (s *SQLite) queryRecipients(ctx context.Context, query string, args ...any) ([]models.Recipient, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite store: query recipients: %w", err)
	}
	defer rows.Close()

	var out []models.Recipient
	for rows.Next() {
		var doc string
		if err := rows.Scan(&doc); err != nil {
			return nil, fmt.Errorf("sqlite store: scan recipient: %w", err)
		}
		var rec models.Recipient
		if err := json.Unmarshal([]byte(doc), &rec); err != nil {
			return nil, fmt.Errorf("sqlite store: decode recipient: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite store: iterate recipients: %w", err)
	}
	return out, nil
}
