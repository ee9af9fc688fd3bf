// Package factory constructs the configured channel providers. Selecting a
// backend happens once here, from explicit configuration, so the rest of the
// service never inspects the environment.
package factory

import (
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/example/notification-fanout/internal/config"
	emailprovider "github.com/example/notification-fanout/internal/providers/email"
	smsprovider "github.com/example/notification-fanout/internal/providers/sms"
)

// Email constructs the configured email provider, supporting SMTP and mock backends.
func Email(cfg config.ProviderConfig, logger zerolog.Logger) (emailprovider.Provider, error) {
	backend := normalize(cfg.EmailProvider, "mock")
	switch backend {
	case "smtp":
		provider, err := emailprovider.NewSMTPProvider(cfg.SMTP, logger)
		if err != nil {
			return nil, fmt.Errorf("factory: smtp provider init: %w", err)
		}
		logger.Info().Str("backend", "smtp").Msg("email provider initialised")
		return provider, nil
	case "mock":
		logger.Info().Str("backend", "mock").Msg("email provider initialised")
		return emailprovider.NewMockProvider(logger), nil
	default:
		return nil, fmt.Errorf("factory: unsupported email provider backend %q", cfg.EmailProvider)
	}
}

// SMS constructs the configured SMS provider. Supports Twilio and mock backends.
func SMS(cfg config.ProviderConfig, logger zerolog.Logger) (smsprovider.Provider, error) {
	backend := normalize(cfg.SMSProvider, "mock")
	switch backend {
	case "twilio":
		provider, err := smsprovider.NewTwilioProvider(cfg.Twilio, logger)
		if err != nil {
			return nil, fmt.Errorf("factory: twilio sms provider init: %w", err)
		}
		logger.Info().Str("backend", "twilio").Msg("sms provider initialised")
		return provider, nil
	case "mock":
		logger.Info().Str("backend", "mock").Msg("sms provider initialised")
		return smsprovider.NewMockProvider(logger), nil
	default:
		return nil, fmt.Errorf("factory: unsupported sms provider backend %q", cfg.SMSProvider)
	}
}

func normalize(value, def string) string {
	value = strings.TrimSpace(strings.ToLower(value))
	if value == "" {
		return def
	}
	return value
}
