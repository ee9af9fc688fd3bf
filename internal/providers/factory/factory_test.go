package factory

import (
	"testing"

	"github.com/rs/zerolog"

	"github.com/example/notification-fanout/internal/config"
	emailprovider "github.com/example/notification-fanout/internal/providers/email"
	smsprovider "github.com/example/notification-fanout/internal/providers/sms"
)

func TestEmailBackendSelection(t *testing.T) {
	t.Run("defaults to mock", func(t *testing.T) {
		p, err := Email(config.ProviderConfig{}, zerolog.Nop())
		if err != nil {
			t.Fatalf("Email: %v", err)
		}
		if _, ok := p.(*emailprovider.MockProvider); !ok {
			t.Fatalf("got %T, want mock provider", p)
		}
	})

	t.Run("smtp", func(t *testing.T) {
		cfg := config.ProviderConfig{
			EmailProvider: "SMTP",
			SMTP: config.SMTPConfig{
				Host: "smtp.example.com",
				Port: 587,
				From: "no-reply@example.com",
			},
		}
		p, err := Email(cfg, zerolog.Nop())
		if err != nil {
			t.Fatalf("Email: %v", err)
		}
		if _, ok := p.(*emailprovider.SMTPProvider); !ok {
			t.Fatalf("got %T, want smtp provider", p)
		}
	})

	t.Run("smtp missing host", func(t *testing.T) {
		if _, err := Email(config.ProviderConfig{EmailProvider: "smtp"}, zerolog.Nop()); err == nil {
			t.Fatal("expected error for missing smtp config")
		}
	})

	t.Run("unknown backend", func(t *testing.T) {
		if _, err := Email(config.ProviderConfig{EmailProvider: "sendgrid"}, zerolog.Nop()); err == nil {
			t.Fatal("expected error for unknown backend")
		}
	})
}

func TestSMSBackendSelection(t *testing.T) {
	t.Run("defaults to mock", func(t *testing.T) {
		p, err := SMS(config.ProviderConfig{}, zerolog.Nop())
		if err != nil {
			t.Fatalf("SMS: %v", err)
		}
		if _, ok := p.(*smsprovider.MockProvider); !ok {
			t.Fatalf("got %T, want mock provider", p)
		}
	})

	t.Run("twilio missing credentials", func(t *testing.T) {
		if _, err := SMS(config.ProviderConfig{SMSProvider: "twilio"}, zerolog.Nop()); err == nil {
			t.Fatal("expected error for missing twilio config")
		}
	})

	t.Run("unknown backend", func(t *testing.T) {
		if _, err := SMS(config.ProviderConfig{SMSProvider: "nexmo"}, zerolog.Nop()); err == nil {
			t.Fatal("expected error for unknown backend")
		}
	})
}
