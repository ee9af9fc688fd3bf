// Package fanout expands a message into per-recipient delivery attempts,
// dispatches them concurrently and tracks a durable outcome per recipient.
// It also hosts the retry path that re-enters dispatch for failed records
// only.
package fanout

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/semaphore"

	"github.com/example/notification-fanout/internal/directory"
	"github.com/example/notification-fanout/internal/dispatch"
	"github.com/example/notification-fanout/internal/events"
	"github.com/example/notification-fanout/internal/models"
	"github.com/example/notification-fanout/internal/store"
)

// Config contains the runtime settings for the fan-out engine.
type Config struct {
	// MaxInFlight bounds concurrent dispatches within one send or retry.
	MaxInFlight int
	// DefaultChannels applies when a send request names no channels.
	// Empty means email only.
	DefaultChannels []models.Channel
}

// Dispatcher is the transmit-and-report contract the engine depends on.
type Dispatcher interface {
	Dispatch(ctx context.Context, channel models.Channel, address, subject, body string) *dispatch.ChannelError
}

// Dependencies collects the collaborators required by the engine.
type Dependencies struct {
	Store      store.Store
	Resolver   directory.Resolver
	Dispatcher Dispatcher
	Events     events.Publisher
	Logger     zerolog.Logger
	Now        func() time.Time
}

// Engine orchestrates recipient expansion, concurrent dispatch, status
// tracking and retries.
type Engine struct {
	cfg        Config
	store      store.Store
	resolver   directory.Resolver
	dispatcher Dispatcher
	events     events.Publisher
	logger     zerolog.Logger
	sem        *semaphore.Weighted
	tracker    *tracker
	now        func() time.Time
}

// NewEngine constructs the engine, validating configuration and dependencies
// so misconfiguration surfaces at startup.
func NewEngine(cfg Config, deps Dependencies) (*Engine, error) {
	if cfg.MaxInFlight < 1 {
		return nil, errors.New("fanout: max in-flight must be >= 1")
	}
	for _, ch := range cfg.DefaultChannels {
		if !ch.Valid() {
			return nil, fmt.Errorf("fanout: unsupported default channel %q", ch)
		}
	}
	if deps.Store == nil {
		return nil, errors.New("fanout: store dependency is required")
	}
	if deps.Resolver == nil {
		return nil, errors.New("fanout: resolver dependency is required")
	}
	if deps.Dispatcher == nil {
		return nil, errors.New("fanout: dispatcher dependency is required")
	}

	pub := deps.Events
	if pub == nil {
		pub = events.Nop{}
	}

	logger := deps.Logger
	if reflect.ValueOf(logger).IsZero() {
		logger = zerolog.Nop()
	}
	logger = logger.With().Str("component", "fanout_engine").Logger()

	nowFunc := deps.Now
	if nowFunc == nil {
		nowFunc = time.Now
	}

	channels := cfg.DefaultChannels
	if len(channels) == 0 {
		channels = []models.Channel{models.ChannelEmail}
	}
	cfg.DefaultChannels = channels

	return &Engine{
		cfg:        cfg,
		store:      deps.Store,
		resolver:   deps.Resolver,
		dispatcher: deps.Dispatcher,
		events:     pub,
		logger:     logger,
		sem:        semaphore.NewWeighted(int64(cfg.MaxInFlight)),
		tracker:    &tracker{store: deps.Store, now: nowFunc},
		now:        nowFunc,
	}, nil
}

// SendRequest describes one message to fan out.
type SendRequest struct {
	Subject      string
	Body         string
	PersonnelIDs []string
	Channels     []models.Channel
}

// SendResult pairs the stored message with its recipient records.
type SendResult struct {
	Message    models.Message     `json:"message"`
	Recipients []models.Recipient `json:"recipients"`
}

// Send validates the request, persists the message, expands it into one
// recipient record per (personnel, channel) pair and dispatches every
// resolvable pair concurrently. Per-recipient failures are recorded on the
// returned records, never raised: once validation passes the call succeeds
// as a whole.
func (e *Engine) Send(ctx context.Context, req SendRequest) (*SendResult, error) {
	personnelIDs, channels, err := e.validate(req)
	if err != nil {
		return nil, err
	}

	msg := models.Message{
		ID:        uuid.NewString(),
		Subject:   req.Subject,
		Body:      req.Body,
		CreatedAt: e.now().UTC(),
	}
	if err := e.store.CreateMessage(ctx, &msg); err != nil {
		return nil, fmt.Errorf("fanout: create message: %w", err)
	}

	var tasks []*models.Recipient
	for _, pid := range personnelIDs {
		for _, ch := range channels {
			rec := &models.Recipient{
				ID:          models.RecipientID(msg.ID, pid, ch),
				MessageID:   msg.ID,
				PersonnelID: pid,
				Channel:     ch,
				Status:      models.StatusPending,
			}

			addr, rerr := e.resolver.Resolve(ctx, pid, ch)
			if rerr != nil {
				// The record is still created so operators can see
				// and fix it; it is never silently dropped.
				rec.Status = models.StatusFailed
				rec.Error = models.ErrorUnresolvedAddress
				e.logger.Warn().
					Str("message_id", msg.ID).
					Str("personnel_id", pid).
					Str("channel", string(ch)).
					Err(rerr).
					Msg("fanout: address resolution failed")
				if err := e.store.UpsertRecipient(ctx, rec); err != nil {
					e.logger.Error().Str("recipient_id", rec.ID).Err(err).Msg("fanout: persist unresolved recipient")
				}
				continue
			}

			rec.Address = addr
			if err := e.store.UpsertRecipient(ctx, rec); err != nil {
				e.logger.Error().Str("recipient_id", rec.ID).Err(err).Msg("fanout: persist pending recipient")
				continue
			}
			tasks = append(tasks, rec)
		}
	}

	e.dispatchAll(ctx, &msg, tasks)

	recipients, err := e.store.ListRecipients(ctx, msg.ID)
	if err != nil {
		return nil, fmt.Errorf("fanout: list recipients: %w", err)
	}
	return &SendResult{Message: msg, Recipients: recipients}, nil
}

// Get returns the message and the current status of all its recipients.
func (e *Engine) Get(ctx context.Context, messageID string) (*SendResult, error) {
	msg, err := e.store.GetMessage(ctx, messageID)
	if err != nil {
		return nil, err
	}
	recipients, err := e.store.ListRecipients(ctx, messageID)
	if err != nil {
		return nil, fmt.Errorf("fanout: list recipients: %w", err)
	}
	return &SendResult{Message: *msg, Recipients: recipients}, nil
}

// RetryFailed re-dispatches exactly the recipients of the message currently
// in the failed state, reusing the address stored at fan-out time. Records
// that failed address resolution carry no address and are skipped; fixing
// those requires a directory correction, not a retry. Sent records are never
// touched.
func (e *Engine) RetryFailed(ctx context.Context, messageID string) (*SendResult, error) {
	msg, err := e.store.GetMessage(ctx, messageID)
	if err != nil {
		return nil, err
	}

	failed, err := e.store.FailedRecipients(ctx, messageID)
	if err != nil {
		return nil, fmt.Errorf("fanout: load failed recipients: %w", err)
	}

	var tasks []*models.Recipient
	for i := range failed {
		rec := &failed[i]
		if rec.Address == "" {
			e.logger.Debug().
				Str("recipient_id", rec.ID).
				Str("personnel_id", rec.PersonnelID).
				Msg("fanout: skipping retry of unresolved recipient")
			continue
		}
		rec.Status = models.StatusPending
		if err := e.store.UpsertRecipient(ctx, rec); err != nil {
			e.logger.Error().Str("recipient_id", rec.ID).Err(err).Msg("fanout: persist retrying recipient")
			continue
		}
		tasks = append(tasks, rec)
	}

	e.dispatchAll(ctx, msg, tasks)

	recipients, err := e.store.ListRecipients(ctx, messageID)
	if err != nil {
		return nil, fmt.Errorf("fanout: list recipients: %w", err)
	}
	return &SendResult{Message: *msg, Recipients: recipients}, nil
}

type outcome struct {
	recipient *models.Recipient
	cerr      *dispatch.ChannelError
}

// dispatchAll runs every task concurrently, bounded by the in-flight
// semaphore, and gathers outcomes over a channel. If the caller cancels
// mid-flight, started dispatches run to completion while unstarted
// recipients stay pending with a zero attempt count.
func (e *Engine) dispatchAll(ctx context.Context, msg *models.Message, tasks []*models.Recipient) {
	if len(tasks) == 0 {
		return
	}

	results := make(chan outcome, len(tasks))
	launched := 0
	for _, rec := range tasks {
		if err := e.sem.Acquire(ctx, 1); err != nil {
			e.logger.Warn().
				Str("message_id", msg.ID).
				Str("recipient_id", rec.ID).
				Err(err).
				Msg("fanout: cancelled before dispatch; recipient left pending")
			continue
		}
		launched++
		go func(rec *models.Recipient) {
			defer e.sem.Release(1)
			results <- outcome{recipient: rec, cerr: e.dispatchOne(ctx, msg, rec)}
		}(rec)
	}

	sent, failed := 0, 0
	for i := 0; i < launched; i++ {
		out := <-results
		if out.cerr == nil {
			sent++
		} else {
			failed++
		}
	}

	e.logger.Info().
		Str("message_id", msg.ID).
		Int("dispatched", launched).
		Int("sent", sent).
		Int("failed", failed).
		Msg("fanout: dispatch round complete")
}

// dispatchOne performs the strictly sequential unit of work for a single
// recipient: dispatch, then record the outcome, then emit lifecycle events.
func (e *Engine) dispatchOne(ctx context.Context, msg *models.Message, rec *models.Recipient) *dispatch.ChannelError {
	attempt := rec.AttemptCount + 1
	e.publish(ctx, events.Event{
		Type:        events.TypeAttempted,
		MessageID:   msg.ID,
		RecipientID: rec.ID,
		PersonnelID: rec.PersonnelID,
		Channel:     string(rec.Channel),
		Attempt:     attempt,
	})

	cerr := e.dispatcher.Dispatch(ctx, rec.Channel, rec.Address, msg.Subject, msg.Body)

	// Outcome persistence must survive caller cancellation: a delivered
	// message recorded as pending would be re-sent on the next retry.
	persistCtx := context.WithoutCancel(ctx)
	if err := e.tracker.recordAttempt(persistCtx, rec, cerr); err != nil {
		e.logger.Error().
			Str("message_id", msg.ID).
			Str("recipient_id", rec.ID).
			Err(err).
			Msg("fanout: failed to persist dispatch outcome")
	}

	event := events.Event{
		Type:        events.TypeSent,
		MessageID:   msg.ID,
		RecipientID: rec.ID,
		PersonnelID: rec.PersonnelID,
		Channel:     string(rec.Channel),
		Attempt:     attempt,
	}
	if cerr != nil {
		event.Type = events.TypeFailed
		event.Error = cerr.Error()
		e.logger.Warn().
			Str("message_id", msg.ID).
			Str("recipient_id", rec.ID).
			Str("kind", string(cerr.Kind)).
			Int("attempt", attempt).
			Msg("fanout: dispatch failed")
	}
	e.publish(persistCtx, event)

	return cerr
}

func (e *Engine) publish(ctx context.Context, event events.Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = e.now().UTC()
	}
	if err := e.events.Publish(ctx, event); err != nil {
		e.logger.Error().
			Str("type", event.Type).
			Str("recipient_id", event.RecipientID).
			Err(err).
			Msg("fanout: failed to publish delivery event")
	}
}

// validate rejects malformed input before anything is persisted or
// dispatched and resolves the effective personnel and channel sets.
func (e *Engine) validate(req SendRequest) ([]string, []models.Channel, error) {
	if strings.TrimSpace(req.Subject) == "" {
		return nil, nil, models.NewValidationError("subject is required")
	}
	if strings.TrimSpace(req.Body) == "" {
		return nil, nil, models.NewValidationError("body is required")
	}

	seen := make(map[string]struct{}, len(req.PersonnelIDs))
	var personnelIDs []string
	for _, pid := range req.PersonnelIDs {
		pid = strings.TrimSpace(pid)
		if pid == "" {
			continue
		}
		if _, ok := seen[pid]; ok {
			continue
		}
		seen[pid] = struct{}{}
		personnelIDs = append(personnelIDs, pid)
	}
	if len(personnelIDs) == 0 {
		return nil, nil, models.NewValidationError("at least one recipient is required")
	}

	channels := req.Channels
	if len(channels) == 0 {
		channels = e.cfg.DefaultChannels
	}
	chSeen := make(map[models.Channel]struct{}, len(channels))
	var resolved []models.Channel
	for _, ch := range channels {
		if !ch.Valid() {
			return nil, nil, models.NewValidationError("unsupported channel %q", ch)
		}
		if _, ok := chSeen[ch]; ok {
			continue
		}
		chSeen[ch] = struct{}{}
		resolved = append(resolved, ch)
	}

	return personnelIDs, resolved, nil
}
