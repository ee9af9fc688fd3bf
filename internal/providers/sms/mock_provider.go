package sms

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Scenario enumerates the behaviours supported by the mock SMS provider.
type Scenario string

const (
	ScenarioSuccess     Scenario = "success"
	ScenarioRejected    Scenario = "rejected"
	ScenarioUnavailable Scenario = "unavailable"
	ScenarioTimeout     Scenario = "timeout"
)

// MockOption customises the mock provider.
type MockOption func(*MockProvider)

// WithScenario sets the default scenario applied to every send.
func WithScenario(s Scenario) MockOption {
	return func(p *MockProvider) {
		p.defaultScenario = s
	}
}

// WithLatency configures the artificial latency injected before responding.
func WithLatency(d time.Duration) MockOption {
	return func(p *MockProvider) {
		if d < 0 {
			d = 0
		}
		p.latency = d
	}
}

// WithClock overrides the clock used to timestamp responses.
func WithClock(now func() time.Time) MockOption {
	return func(p *MockProvider) {
		if now != nil {
			p.now = now
		}
	}
}

// MockProvider is a deterministic SMS provider used in development and
// tests.
type MockProvider struct {
	logger          zerolog.Logger
	defaultScenario Scenario
	latency         time.Duration
	now             func() time.Time
}

// NewMockProvider constructs a mock SMS provider.
func NewMockProvider(logger zerolog.Logger, opts ...MockOption) *MockProvider {
	if reflect.ValueOf(logger).IsZero() {
		logger = zerolog.Nop()
	}
	p := &MockProvider{
		logger:          logger,
		defaultScenario: ScenarioSuccess,
		latency:         10 * time.Millisecond,
		now:             time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(p)
		}
	}
	return p
}

// Send simulates submitting the payload according to the configured scenario.
func (p *MockProvider) Send(ctx context.Context, payload *Payload) (*RawResponse, error) {
	if payload == nil {
		return nil, errors.New("sms mock: payload is required")
	}
	if strings.TrimSpace(payload.To) == "" {
		return nil, errors.New("sms mock: recipient number is required")
	}

	if p.latency > 0 {
		timer := time.NewTimer(p.latency)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}

	resp := &RawResponse{
		ID:        payload.MessageID,
		Code:      201,
		Status:    "accepted",
		Body:      "mock: message accepted",
		Timestamp: p.now(),
	}

	switch p.defaultScenario {
	case ScenarioSuccess:
		return resp, nil
	case ScenarioRejected:
		resp.Code = 400
		resp.Status = "rejected"
		resp.Body = "mock: invalid destination number"
		return resp, fmt.Errorf("sms mock permanent error: invalid recipient")
	case ScenarioUnavailable:
		resp.Code = 503
		resp.Status = "unavailable"
		resp.Body = "mock: carrier unavailable"
		return resp, fmt.Errorf("sms mock transient error: carrier unavailable")
	case ScenarioTimeout:
		<-ctx.Done()
		return resp, ctx.Err()
	default:
		resp.Code = 0
		resp.Status = "unknown"
		resp.Body = "mock: unknown scenario"
		return resp, fmt.Errorf("sms mock unknown scenario")
	}
}
