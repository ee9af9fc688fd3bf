package email

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Scenario enumerates the behaviours supported by the mock email provider.
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

// MockProvider is a deterministic email provider used in development and
// tests. Besides the default scenario, an address local part suffix selects
// behaviour per recipient: "ops+rejected@example.com" fails permanently,
// "+unavailable" simulates an outage and "+timeout" blocks until the context
// expires.
type MockProvider struct {
	logger          zerolog.Logger
	defaultScenario Scenario
	latency         time.Duration
	now             func() time.Time
}

// NewMockProvider constructs a mock email provider.
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

// Send simulates delivering the payload according to the selected scenario.
func (p *MockProvider) Send(ctx context.Context, payload *Payload) (*RawResponse, error) {
	if payload == nil {
		return nil, errors.New("email mock: payload is required")
	}
	if strings.TrimSpace(payload.To) == "" {
		return nil, errors.New("email mock: recipient address is required")
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
		Code:      250,
		Body:      "mock: message accepted",
		Timestamp: p.now(),
	}

	switch p.scenarioFor(payload.To) {
	case ScenarioSuccess:
		return resp, nil
	case ScenarioRejected:
		resp.Code = 550
		resp.Body = "mock: mailbox unavailable"
		return resp, fmt.Errorf("email mock permanent error: recipient rejected")
	case ScenarioUnavailable:
		resp.Code = 421
		resp.Body = "mock: service not available"
		return resp, fmt.Errorf("email mock transient error: service unavailable")
	case ScenarioTimeout:
		<-ctx.Done()
		return resp, ctx.Err()
	default:
		resp.Code = 0
		resp.Body = "mock: unknown scenario"
		return resp, fmt.Errorf("email mock unknown scenario")
	}
}

func (p *MockProvider) scenarioFor(address string) Scenario {
	local, _, found := strings.Cut(address, "@")
	if found {
		if _, tag, ok := strings.Cut(local, "+"); ok {
			switch Scenario(tag) {
			case ScenarioRejected, ScenarioUnavailable, ScenarioTimeout, ScenarioSuccess:
				return Scenario(tag)
			}
		}
	}
	return p.defaultScenario
}
