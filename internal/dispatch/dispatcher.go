// Package dispatch transmits single envelopes over a channel provider and
// normalizes provider failures into a common taxonomy. The dispatcher is
// stateless with respect to prior attempts; attempt counting and status
// transitions belong to the fan-out engine.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/example/notification-fanout/internal/models"
	emailprovider "github.com/example/notification-fanout/internal/providers/email"
	smsprovider "github.com/example/notification-fanout/internal/providers/sms"
	"github.com/example/notification-fanout/internal/util"
)

// Config contains the runtime settings for the dispatcher.
type Config struct {
	// Timeout bounds every provider call. A provider that never returns
	// yields a timeout ChannelError instead of hanging the fan-out.
	Timeout time.Duration
	// EmailRate and SMSRate cap provider calls per second. Zero disables
	// limiting for that channel.
	EmailRate float64
	SMSRate   float64
	RateBurst int
}

// Dispatcher routes envelopes to the provider for their channel.
type Dispatcher struct {
	logger   zerolog.Logger
	email    emailprovider.Provider
	sms      smsprovider.Provider
	timeout  time.Duration
	limiters map[models.Channel]*rate.Limiter
}

// New constructs a Dispatcher. At least one provider must be supplied;
// dispatching to a channel without a configured provider reports
// provider_unavailable per recipient rather than failing construction, so a
// deployment can run email-only.
func New(cfg Config, email emailprovider.Provider, sms smsprovider.Provider, logger zerolog.Logger) (*Dispatcher, error) {
	if email == nil && sms == nil {
		return nil, errors.New("dispatch: at least one channel provider is required")
	}
	if cfg.Timeout <= 0 {
		return nil, errors.New("dispatch: timeout must be positive")
	}
	if reflect.ValueOf(logger).IsZero() {
		logger = zerolog.Nop()
	}

	burst := cfg.RateBurst
	if burst < 1 {
		burst = 1
	}
	limiters := make(map[models.Channel]*rate.Limiter)
	if cfg.EmailRate > 0 {
		limiters[models.ChannelEmail] = rate.NewLimiter(rate.Limit(cfg.EmailRate), burst)
	}
	if cfg.SMSRate > 0 {
		limiters[models.ChannelSMS] = rate.NewLimiter(rate.Limit(cfg.SMSRate), burst)
	}

	logger = logger.With().Str("component", "dispatcher").Logger()
	// Announce partially configured channel sets once, at startup, instead
	// of on every affected dispatch.
	if email == nil {
		logger.Warn().Str("channel", string(models.ChannelEmail)).Msg("dispatch: no provider configured; email dispatches will report provider_unavailable")
	}
	if sms == nil {
		logger.Warn().Str("channel", string(models.ChannelSMS)).Msg("dispatch: no provider configured; sms dispatches will report provider_unavailable")
	}

	return &Dispatcher{
		logger:   logger,
		email:    email,
		sms:      sms,
		timeout:  cfg.Timeout,
		limiters: limiters,
	}, nil
}

type sendResult struct {
	code   int
	status string
	err    error
}

// Dispatch transmits one envelope over the requested channel. A nil return
// means the provider accepted the message; every transmission failure comes
// back as a ChannelError value.
func (d *Dispatcher) Dispatch(ctx context.Context, channel models.Channel, address, subject, body string) *ChannelError {
	send, cerr := d.sendFunc(channel, address, subject, body)
	if cerr != nil {
		return cerr
	}

	if lim := d.limiters[channel]; lim != nil {
		if err := lim.Wait(ctx); err != nil {
			return channelError(KindTimeout, "rate limit wait aborted: %v", err)
		}
	}

	// The provider call is detached from the caller's cancellation: an
	// in-flight dispatch is allowed to finish so a delivered message is
	// never recorded as undelivered and re-sent on retry. The per-call
	// timeout still bounds it.
	callCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), d.timeout)
	defer cancel()

	results := make(chan sendResult, 1)
	go func() {
		results <- send(callCtx)
	}()

	select {
	case <-callCtx.Done():
		d.logger.Warn().
			Str("channel", string(channel)).
			Dur("timeout", d.timeout).
			Msg("dispatch: provider call exceeded deadline")
		return channelError(KindTimeout, "%s dispatch exceeded %s", channel, d.timeout)
	case res := <-results:
		if res.err == nil {
			d.logger.Debug().
				Str("channel", string(channel)).
				Int("code", res.code).
				Msg("dispatch: provider accepted envelope")
			return nil
		}
		cerr := classify(channel, res.err, res.code, res.status)
		d.logger.Warn().
			Str("channel", string(channel)).
			Str("kind", string(cerr.Kind)).
			Err(res.err).
			Msg("dispatch: provider call failed")
		return cerr
	}
}

// sendFunc validates the address and binds the provider call for the
// channel. Address validation happens before any provider traffic so a
// malformed address is classified without burning a provider request.
func (d *Dispatcher) sendFunc(channel models.Channel, address, subject, body string) (func(context.Context) sendResult, *ChannelError) {
	switch channel {
	case models.ChannelEmail:
		if d.email == nil {
			return nil, channelError(KindProviderUnavailable, "email provider not configured")
		}
		normalized, err := util.NormalizeEmail(address)
		if err != nil {
			return nil, channelError(KindInvalidAddress, "%v", err)
		}
		return func(ctx context.Context) sendResult {
			raw, err := d.email.Send(ctx, &emailprovider.Payload{
				To:      normalized,
				Subject: subject,
				Body:    body,
			})
			res := sendResult{err: err}
			if raw != nil {
				res.code = raw.Code
				res.status = raw.Body
			}
			return res
		}, nil

	case models.ChannelSMS:
		if d.sms == nil {
			return nil, channelError(KindProviderUnavailable, "sms provider not configured")
		}
		normalized, err := util.NormalizeE164(address)
		if err != nil {
			return nil, channelError(KindInvalidAddress, "%v", err)
		}
		return func(ctx context.Context) sendResult {
			raw, err := d.sms.Send(ctx, &smsprovider.Payload{
				To:   normalized,
				Body: smsBody(subject, body),
			})
			res := sendResult{err: err}
			if raw != nil {
				res.code = raw.Code
				res.status = raw.Status
			}
			return res
		}, nil

	default:
		return nil, channelError(KindUnknown, "unsupported channel %q", channel)
	}
}

// smsBody folds the subject into the text since SMS has no subject line.
func smsBody(subject, body string) string {
	subject = strings.TrimSpace(subject)
	if subject == "" {
		return body
	}
	return fmt.Sprintf("%s: %s", subject, body)
}

// classify maps a provider failure onto the dispatch taxonomy. Response
// codes take precedence over error text, and their meaning depends on the
// channel: email providers report SMTP reply codes (4xx transient, 5xx
// permanent) while SMS providers report HTTP statuses (4xx permanent, 5xx
// transient).
func classify(channel models.Channel, err error, code int, status string) *ChannelError {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return channelError(KindTimeout, "provider call aborted: %v", err)
	}

	if code > 0 {
		switch channel {
		case models.ChannelEmail:
			switch {
			case code >= 500 && code < 600:
				return channelError(KindProviderRejected, "%v", err)
			case code >= 400 && code < 500:
				return channelError(KindProviderUnavailable, "%v", err)
			}
		case models.ChannelSMS:
			switch {
			case code == http.StatusTooManyRequests:
				return channelError(KindProviderUnavailable, "%v", err)
			case code >= http.StatusInternalServerError:
				return channelError(KindProviderUnavailable, "%v", err)
			case code >= http.StatusBadRequest:
				return channelError(KindProviderRejected, "%v", err)
			}
		}
	}

	lowerStatus := strings.ToLower(status)
	lowerErr := strings.ToLower(err.Error())
	switch {
	case strings.Contains(lowerStatus, "invalid") || strings.Contains(lowerErr, "invalid"):
		return channelError(KindProviderRejected, "%v", err)
	case strings.Contains(lowerStatus, "reject") || strings.Contains(lowerErr, "reject"):
		return channelError(KindProviderRejected, "%v", err)
	case strings.Contains(lowerErr, "permanent"):
		return channelError(KindProviderRejected, "%v", err)
	case strings.Contains(lowerErr, "timeout") || strings.Contains(lowerErr, "deadline"):
		return channelError(KindTimeout, "%v", err)
	case strings.Contains(lowerErr, "dial") || strings.Contains(lowerErr, "connection refused"):
		return channelError(KindProviderUnavailable, "%v", err)
	case strings.Contains(lowerErr, "unavailable") || strings.Contains(lowerErr, "transient"):
		return channelError(KindProviderUnavailable, "%v", err)
	}
	return channelError(KindUnknown, "%v", err)
}
