package fanout

import (
	"context"
	"fmt"
	"time"

	"github.com/example/notification-fanout/internal/dispatch"
	"github.com/example/notification-fanout/internal/models"
	"github.com/example/notification-fanout/internal/store"
)

// tracker folds dispatch outcomes into recipient records and persists them.
// Exactly one record is touched per call; concurrent calls for sibling
// recipients are independent.
type tracker struct {
	store store.Store
	now   func() time.Time
}

// recordAttempt applies one dispatch outcome. The attempt counter increases
// on every attempt, success or not; a success clears the recorded error.
func (t *tracker) recordAttempt(ctx context.Context, rec *models.Recipient, cerr *dispatch.ChannelError) error {
	at := t.now().UTC()
	rec.AttemptCount++
	rec.LastAttemptAt = &at

	if cerr == nil {
		rec.Status = models.StatusSent
		rec.Error = ""
	} else {
		rec.Status = models.StatusFailed
		rec.Error = cerr.Error()
	}

	if err := t.store.UpsertRecipient(ctx, rec); err != nil {
		return fmt.Errorf("fanout: persist attempt for recipient %s: %w", rec.ID, err)
	}
	return nil
}
