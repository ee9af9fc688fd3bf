package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/lib/pq"

	"github.com/example/notification-fanout/internal/models"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS messages (
	id         TEXT PRIMARY KEY,
	subject    TEXT NOT NULL,
	body       TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS recipients (
	id              TEXT PRIMARY KEY,
	message_id      TEXT NOT NULL REFERENCES messages(id),
	personnel_id    TEXT NOT NULL,
	channel         TEXT NOT NULL,
	address         TEXT NOT NULL DEFAULT '',
	status          TEXT NOT NULL,
	error           TEXT NOT NULL DEFAULT '',
	attempt_count   INTEGER NOT NULL DEFAULT 0,
	last_attempt_at TIMESTAMPTZ
);

CREATE INDEX IF NOT EXISTS idx_recipients_message ON recipients(message_id);
CREATE INDEX IF NOT EXISTS idx_recipients_message_status ON recipients(message_id, status);
`

// Postgres is the relational Store backend.
type Postgres struct {
	db *sql.DB
}

// OpenPostgres connects to the database, verifies connectivity and ensures
// the schema exists.
func OpenPostgres(ctx context.Context, dsn string) (*Postgres, error) {
	if dsn == "" {
		return nil, errors.New("postgres store: dsn is required")
	}
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres store: open: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("postgres store: ping: %w", err)
	}
	if _, err := db.ExecContext(ctx, postgresSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("postgres store: ensure schema: %w", err)
	}
	return &Postgres{db: db}, nil
}

// Close releases the underlying connection pool.
func (p *Postgres) Close() error {
	return p.db.Close()
}

func (p *Postgres) CreateMessage(ctx context.Context, msg *models.Message) error {
	const query = `
		INSERT INTO messages (id, subject, body, created_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO NOTHING
	`
	_, err := p.db.ExecContext(ctx, query, msg.ID, msg.Subject, msg.Body, msg.CreatedAt)
	if err != nil {
		return fmt.Errorf("postgres store: create message: %w", err)
	}
	return nil
}

func (p *Postgres) GetMessage(ctx context.Context, id string) (*models.Message, error) {
	const query = `
		SELECT id, subject, body, created_at
		FROM messages
		WHERE id = $1
	`
	var msg models.Message
	err := p.db.QueryRowContext(ctx, query, id).Scan(&msg.ID, &msg.Subject, &msg.Body, &msg.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.NewNotFound(id)
	}
	if err != nil {
		return nil, fmt.Errorf("postgres store: get message: %w", err)
	}
	return &msg, nil
}

func (p *Postgres) UpsertRecipient(ctx context.Context, rec *models.Recipient) error {
	const query = `
		INSERT INTO recipients
		(id, message_id, personnel_id, channel, address, status, error, attempt_count, last_attempt_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE SET
			address         = EXCLUDED.address,
			status          = EXCLUDED.status,
			error           = EXCLUDED.error,
			attempt_count   = EXCLUDED.attempt_count,
			last_attempt_at = EXCLUDED.last_attempt_at
	`
	var lastAttempt sql.NullTime
	if rec.LastAttemptAt != nil {
		lastAttempt = sql.NullTime{Time: *rec.LastAttemptAt, Valid: true}
	}
	_, err := p.db.ExecContext(ctx, query,
		rec.ID,
		rec.MessageID,
		rec.PersonnelID,
		string(rec.Channel),
		rec.Address,
		string(rec.Status),
		rec.Error,
		rec.AttemptCount,
		lastAttempt,
	)
	if err != nil {
		return fmt.Errorf("postgres store: upsert recipient: %w", err)
	}
	return nil
}

func (p *Postgres) ListRecipients(ctx context.Context, messageID string) ([]models.Recipient, error) {
	const query = `
		SELECT id, message_id, personnel_id, channel, address, status, error, attempt_count, last_attempt_at
		FROM recipients
		WHERE message_id = $1
		ORDER BY personnel_id, channel
	`
	return p.queryRecipients(ctx, query, messageID)
}

func (p *Postgres) FailedRecipients(ctx context.Context, messageID string) ([]models.Recipient, error) {
	const query = `
		SELECT id, message_id, personnel_id, channel, address, status, error, attempt_count, last_attempt_at
		FROM recipients
		WHERE message_id = $1 AND status = $2
		ORDER BY personnel_id, channel
	`
	return p.queryRecipients(ctx, query, messageID, string(models.StatusFailed))
}

func (p *Postgres) queryRecipients(ctx context.Context, query string, args ...any) ([]models.Recipient, error) {
	rows, err := p.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres store: query recipients: %w", err)
	}
	defer rows.Close()

	var out []models.Recipient
	for rows.Next() {
		var rec models.Recipient
		var channel, status string
		var lastAttempt sql.NullTime
		if err := rows.Scan(
			&rec.ID,
			&rec.MessageID,
			&rec.PersonnelID,
			&channel,
			&rec.Address,
			&status,
			&rec.Error,
			&rec.AttemptCount,
			&lastAttempt,
		); err != nil {
			return nil, fmt.Errorf("postgres store: scan recipient: %w", err)
		}
		rec.Channel = models.Channel(channel)
		rec.Status = models.Status(status)
		if lastAttempt.Valid {
			t := lastAttempt.Time
			rec.LastAttemptAt = &t
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres store: iterate recipients: %w", err)
	}
	return out, nil
}
