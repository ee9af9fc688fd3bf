package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/example/notification-fanout/internal/models"
)

// storeContract exercises the behaviour every backend must share. Postgres is
// excluded because it needs a running server; it implements the same
// interface and SQL-level upsert semantics.
func storeContract(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()

	msg := &models.Message{
		ID:        "msg-1",
		Subject:   "shift change",
		Body:      "report at 0800",
		CreatedAt: time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC),
	}
	if err := s.CreateMessage(ctx, msg); err != nil {
		t.Fatalf("create message: %v", err)
	}

	got, err := s.GetMessage(ctx, "msg-1")
	if err != nil {
		t.Fatalf("get message: %v", err)
	}
	if got.Subject != msg.Subject || got.Body != msg.Body {
		t.Fatalf("message round trip mismatch: %+v", got)
	}

	if _, err := s.GetMessage(ctx, "missing"); !models.IsNotFound(err) {
		t.Fatalf("expected not-found for unknown message, got %v", err)
	}

	rec := &models.Recipient{
		ID:          models.RecipientID("msg-1", "p-1", models.ChannelEmail),
		MessageID:   "msg-1",
		PersonnelID: "p-1",
		Channel:     models.ChannelEmail,
		Address:     "p1@example.com",
		Status:      models.StatusPending,
	}
	if err := s.UpsertRecipient(ctx, rec); err != nil {
		t.Fatalf("upsert recipient: %v", err)
	}

	// Replace-by-id: a second upsert with the same derived id must not
	// create a second record.
	at := time.Date(2026, 3, 1, 8, 1, 0, 0, time.UTC)
	rec.Status = models.StatusFailed
	rec.Error = "provider_rejected: mailbox full"
	rec.AttemptCount = 1
	rec.LastAttemptAt = &at
	if err := s.UpsertRecipient(ctx, rec); err != nil {
		t.Fatalf("upsert recipient again: %v", err)
	}

	other := &models.Recipient{
		ID:          models.RecipientID("msg-1", "p-2", models.ChannelSMS),
		MessageID:   "msg-1",
		PersonnelID: "p-2",
		Channel:     models.ChannelSMS,
		Address:     "+15550001234",
		Status:      models.StatusSent,
		AttemptCount: 1,
		LastAttemptAt: &at,
	}
	if err := s.UpsertRecipient(ctx, other); err != nil {
		t.Fatalf("upsert second recipient: %v", err)
	}

	all, err := s.ListRecipients(ctx, "msg-1")
	if err != nil {
		t.Fatalf("list recipients: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("expected 2 recipient records, got %d", len(all))
	}
	if all[0].PersonnelID != "p-1" || all[1].PersonnelID != "p-2" {
		t.Fatalf("expected stable personnel ordering, got %s then %s", all[0].PersonnelID, all[1].PersonnelID)
	}
	if all[0].Status != models.StatusFailed || all[0].AttemptCount != 1 {
		t.Fatalf("expected upsert to replace record, got %+v", all[0])
	}
	if all[0].LastAttemptAt == nil || !all[0].LastAttemptAt.Equal(at) {
		t.Fatalf("expected last attempt timestamp to survive round trip, got %v", all[0].LastAttemptAt)
	}

	failed, err := s.FailedRecipients(ctx, "msg-1")
	if err != nil {
		t.Fatalf("failed recipients: %v", err)
	}
	if len(failed) != 1 || failed[0].PersonnelID != "p-1" {
		t.Fatalf("expected exactly the failed record, got %+v", failed)
	}

	none, err := s.ListRecipients(ctx, "other-message")
	if err != nil {
		t.Fatalf("list recipients of unknown message: %v", err)
	}
	if len(none) != 0 {
		t.Fatalf("expected no recipients for unrelated message, got %d", len(none))
	}
}

func TestMemoryStore(t *testing.T) {
	storeContract(t, NewMemory())
}

func TestSQLiteStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fanout.db")
	s, err := OpenSQLite(context.Background(), path)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	storeContract(t, s)
}
