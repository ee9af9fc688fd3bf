package fanout

import (
	"context"
	"testing"
	"time"

	"github.com/example/notification-fanout/internal/dispatch"
	"github.com/example/notification-fanout/internal/models"
	"github.com/example/notification-fanout/internal/store"
)

func TestRecordAttemptTransitions(t *testing.T) {
	at := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	s := store.NewMemory()
	tr := &tracker{store: s, now: func() time.Time { return at }}

	msg := &models.Message{ID: "m1", Subject: "s", Body: "b", CreatedAt: at}
	if err := s.CreateMessage(context.Background(), msg); err != nil {
		t.Fatalf("CreateMessage: %v", err)
	}

	rec := &models.Recipient{
		ID:          models.RecipientID("m1", "p1", models.ChannelEmail),
		MessageID:   "m1",
		PersonnelID: "p1",
		Channel:     models.ChannelEmail,
		Address:     "p1@corp.example.com",
		Status:      models.StatusPending,
	}

	cerr := &dispatch.ChannelError{Kind: dispatch.KindProviderUnavailable, Message: "421 try later"}
	if err := tr.recordAttempt(context.Background(), rec, cerr); err != nil {
		t.Fatalf("recordAttempt: %v", err)
	}
	if rec.Status != models.StatusFailed {
		t.Errorf("status = %s, want failed", rec.Status)
	}
	if rec.AttemptCount != 1 {
		t.Errorf("attempts = %d, want 1", rec.AttemptCount)
	}
	if rec.Error == "" {
		t.Error("error not recorded on failure")
	}
	if rec.LastAttemptAt == nil || !rec.LastAttemptAt.Equal(at) {
		t.Errorf("last attempt = %v, want %v", rec.LastAttemptAt, at)
	}

	// A later success clears the recorded error and keeps counting.
	if err := tr.recordAttempt(context.Background(), rec, nil); err != nil {
		t.Fatalf("recordAttempt: %v", err)
	}
	if rec.Status != models.StatusSent {
		t.Errorf("status = %s, want sent", rec.Status)
	}
	if rec.AttemptCount != 2 {
		t.Errorf("attempts = %d, want 2", rec.AttemptCount)
	}
	if rec.Error != "" {
		t.Errorf("error = %q, want cleared", rec.Error)
	}

	stored, err := s.ListRecipients(context.Background(), "m1")
	if err != nil {
		t.Fatalf("ListRecipients: %v", err)
	}
	if len(stored) != 1 || stored[0].Status != models.StatusSent {
		t.Fatalf("persisted record mismatch: %+v", stored)
	}
}
