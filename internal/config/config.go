package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config captures all runtime configuration for the notification fan-out
// service. Backend and provider selection is explicit here rather than being
// read from the environment at the point of use.
type Config struct {
	App       AppConfig
	HTTP      HTTPConfig
	Store     StoreConfig
	Directory DirectoryConfig
	Providers ProviderConfig
	Dispatch  DispatchConfig
	Events    EventsConfig
}

// AppConfig contains generic application level settings.
type AppConfig struct {
	Env      string
	LogLevel string
}

// HTTPConfig configures the HTTP listener.
type HTTPConfig struct {
	Port int
}

// StoreConfig selects and configures the persistence backend.
type StoreConfig struct {
	Backend     string // memory, postgres or sqlite
	PostgresDSN string
	SQLitePath  string
}

// DirectoryConfig points at the personnel address seed data.
type DirectoryConfig struct {
	SeedFile string
}

// SMTPConfig stores SMTP credentials for email delivery.
type SMTPConfig struct {
	Host string
	Port int
	User string
	Pass string
	From string
}

// TwilioConfig stores Twilio credentials for SMS delivery.
type TwilioConfig struct {
	AccountSID string
	AuthToken  string
	FromNumber string
}

// ProviderConfig selects the channel provider backends and their credentials.
type ProviderConfig struct {
	EmailProvider string // smtp or mock
	SMSProvider   string // twilio or mock
	SMTP          SMTPConfig
	Twilio        TwilioConfig
}

// DispatchConfig controls dispatch timeouts, concurrency and rate limits.
type DispatchConfig struct {
	TimeoutSeconds     int
	MaxInFlight        int
	EmailRatePerSecond float64
	SMSRatePerSecond   float64
	RateBurst          int
	DefaultChannels    []string
}

// EventsConfig configures the delivery lifecycle event publisher. Leaving
// Brokers empty disables publishing entirely.
type EventsConfig struct {
	Brokers []string
	Topic   string
}

// Load reads environment variables, applies defaults, validates required
// values and returns a populated Config instance.
func Load() (*Config, error) {
	_ = godotenv.Load()

	ldr := &envLoader{}

	cfg := &Config{}
	cfg.App.Env = ldr.getString("APP_ENV", "development", false)
	cfg.App.LogLevel = ldr.getString("LOG_LEVEL", "info", false)

	cfg.HTTP.Port = ldr.getInt("HTTP_PORT", 8080, false)

	cfg.Store.Backend = strings.ToLower(ldr.getString("STORE_BACKEND", "memory", false))
	cfg.Store.PostgresDSN = ldr.getString("POSTGRES_DSN", "", cfg.Store.Backend == "postgres")
	cfg.Store.SQLitePath = ldr.getString("SQLITE_PATH", "", cfg.Store.Backend == "sqlite")

	cfg.Directory.SeedFile = ldr.getString("DIRECTORY_FILE", "", false)

	cfg.Providers.EmailProvider = strings.ToLower(ldr.getString("EMAIL_PROVIDER", "mock", false))
	cfg.Providers.SMSProvider = strings.ToLower(ldr.getString("SMS_PROVIDER", "mock", false))

	smtpRequired := cfg.Providers.EmailProvider == "smtp"
	cfg.Providers.SMTP.Host = ldr.getString("SMTP_HOST", "", smtpRequired)
	cfg.Providers.SMTP.Port = ldr.getInt("SMTP_PORT", 0, smtpRequired)
	cfg.Providers.SMTP.User = ldr.getString("SMTP_USER", "", false)
	cfg.Providers.SMTP.Pass = ldr.getString("SMTP_PASS", "", false)
	cfg.Providers.SMTP.From = ldr.getString("SMTP_FROM", "", smtpRequired)

	twilioRequired := cfg.Providers.SMSProvider == "twilio"
	cfg.Providers.Twilio.AccountSID = ldr.getString("TWILIO_ACCOUNT_SID", "", twilioRequired)
	cfg.Providers.Twilio.AuthToken = ldr.getString("TWILIO_AUTH_TOKEN", "", twilioRequired)
	cfg.Providers.Twilio.FromNumber = ldr.getString("TWILIO_FROM_NUMBER", "", twilioRequired)

	cfg.Dispatch.TimeoutSeconds = ldr.getInt("DISPATCH_TIMEOUT_SECONDS", 10, false)
	cfg.Dispatch.MaxInFlight = ldr.getInt("MAX_IN_FLIGHT", 8, false)
	cfg.Dispatch.EmailRatePerSecond = ldr.getFloat("EMAIL_RATE_PER_SECOND", 0, false)
	cfg.Dispatch.SMSRatePerSecond = ldr.getFloat("SMS_RATE_PER_SECOND", 0, false)
	cfg.Dispatch.RateBurst = ldr.getInt("RATE_BURST", 1, false)
	cfg.Dispatch.DefaultChannels = ldr.getStringSlice("DEFAULT_CHANNELS", false)
	if len(cfg.Dispatch.DefaultChannels) == 0 {
		cfg.Dispatch.DefaultChannels = []string{"email"}
	}

	cfg.Events.Brokers = ldr.getStringSlice("KAFKA_BROKERS", false)
	cfg.Events.Topic = ldr.getString("DELIVERY_EVENTS_TOPIC", "delivery-events", false)

	switch cfg.Store.Backend {
	case "memory", "postgres", "sqlite":
	default:
		ldr.addError(fmt.Sprintf("STORE_BACKEND must be memory, postgres or sqlite; got %q", cfg.Store.Backend))
	}

	if err := ldr.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

type envLoader struct {
	errs []string
}

func (l *envLoader) validate() error {
	if len(l.errs) == 0 {
		return nil
	}
	return fmt.Errorf("config validation failed: %s", strings.Join(l.errs, "; "))
}

func (l *envLoader) getString(key, def string, required bool) string {
	if val, ok := os.LookupEnv(key); ok {
		val = strings.TrimSpace(val)
		if val == "" {
			if required {
				l.addError(fmt.Sprintf("%s is required", key))
			}
			return def
		}
		return val
	}
	if required {
		l.addError(fmt.Sprintf("%s is required", key))
	}
	return def
}

func (l *envLoader) getInt(key string, def int, required bool) int {
	raw := l.getString(key, "", required)
	if raw == "" {
		return def
	}
	i, err := strconv.Atoi(raw)
	if err != nil {
		l.addError(fmt.Sprintf("%s must be a valid integer", key))
		return def
	}
	return i
}

func (l *envLoader) getFloat(key string, def float64, required bool) float64 {
	raw := l.getString(key, "", required)
	if raw == "" {
		return def
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		l.addError(fmt.Sprintf("%s must be a valid number", key))
		return def
	}
	return f
}

func (l *envLoader) getStringSlice(key string, required bool) []string {
	raw := l.getString(key, "", required)
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	var out []string
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	if required && len(out) == 0 {
		l.addError(fmt.Sprintf("%s must contain at least one entry", key))
	}
	return out
}

func (l *envLoader) addError(err string) {
	l.errs = append(l.errs, err)
}
