package sms

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/twilio/twilio-go"
	twilioclient "github.com/twilio/twilio-go/client"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"

	"github.com/example/notification-fanout/internal/config"
	"github.com/example/notification-fanout/internal/util"
)

// TwilioProvider implements Provider using the Twilio messaging API.
type TwilioProvider struct {
	logger zerolog.Logger
	client *twilio.RestClient
	from   string
	now    func() time.Time
}

// NewTwilioProvider constructs a Provider backed by Twilio. Missing
// credentials are a configuration error surfaced here, at startup.
func NewTwilioProvider(cfg config.TwilioConfig, logger zerolog.Logger) (*TwilioProvider, error) {
	if strings.TrimSpace(cfg.AccountSID) == "" {
		return nil, errors.New("twilio provider: account sid is required")
	}
	if strings.TrimSpace(cfg.AuthToken) == "" {
		return nil, errors.New("twilio provider: auth token is required")
	}
	from, err := util.NormalizeE164(cfg.FromNumber)
	if err != nil {
		return nil, fmt.Errorf("twilio provider: from number: %w", err)
	}

	if reflect.ValueOf(logger).IsZero() {
		logger = zerolog.Nop()
	}

	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: cfg.AccountSID,
		Password: cfg.AuthToken,
	})

	return &TwilioProvider{
		logger: logger,
		client: client,
		from:   from,
		now:    time.Now,
	}, nil
}

// Send submits the payload to Twilio and normalizes the response.
func (p *TwilioProvider) Send(ctx context.Context, payload *Payload) (*RawResponse, error) {
	if payload == nil {
		return nil, errors.New("twilio provider: payload is required")
	}
	if strings.TrimSpace(payload.To) == "" {
		return nil, errors.New("twilio provider: recipient number is required")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	from := payload.From
	if from == "" {
		from = p.from
	}

	params := &twilioApi.CreateMessageParams{}
	params.SetTo(payload.To)
	params.SetFrom(from)
	params.SetBody(payload.Body)

	resp := &RawResponse{
		ID:        payload.MessageID,
		Timestamp: p.now(),
	}

	msg, err := p.client.Api.CreateMessage(params)
	if err != nil {
		var restErr *twilioclient.TwilioRestError
		if errors.As(err, &restErr) {
			resp.Code = restErr.Status
			resp.Status = "error"
			resp.Body = restErr.Message
		} else {
			resp.Status = "error"
			resp.Body = err.Error()
		}
		p.logger.Warn().
			Str("message_id", payload.MessageID).
			Int("code", resp.Code).
			Err(err).
			Msg("twilio provider: send failed")
		return resp, err
	}

	resp.Code = 201
	resp.Status = "accepted"
	if msg != nil {
		if msg.Sid != nil {
			resp.ID = *msg.Sid
		}
		if msg.Status != nil {
			resp.Status = *msg.Status
		}
	}
	return resp, nil
}
