package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/example/notification-fanout/internal/config"
	"github.com/example/notification-fanout/internal/directory"
	"github.com/example/notification-fanout/internal/dispatch"
	"github.com/example/notification-fanout/internal/events"
	"github.com/example/notification-fanout/internal/fanout"
	"github.com/example/notification-fanout/internal/logger"
	"github.com/example/notification-fanout/internal/models"
	"github.com/example/notification-fanout/internal/providers/factory"
	"github.com/example/notification-fanout/internal/server"
	"github.com/example/notification-fanout/internal/store"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		fail("config load", err)
	}

	baseLogger, err := logger.New(cfg.App.Env, cfg.App.LogLevel)
	if err != nil {
		fail("logger init", err)
	}
	log := baseLogger.With().Str("service", "notifier").Logger()

	st, err := store.New(ctx, cfg.Store, log.With().Str("component", "store").Logger())
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open message store")
	}
	defer closeQuietly(st, log, "store")

	resolver, err := loadDirectory(cfg.Directory, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load personnel directory")
	}

	emailProvider, err := factory.Email(cfg.Providers, log.With().Str("component", "email-provider").Logger())
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialise email provider")
	}
	smsProvider, err := factory.SMS(cfg.Providers, log.With().Str("component", "sms-provider").Logger())
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialise sms provider")
	}

	dispatcher, err := dispatch.New(dispatch.Config{
		Timeout:   time.Duration(cfg.Dispatch.TimeoutSeconds) * time.Second,
		EmailRate: cfg.Dispatch.EmailRatePerSecond,
		SMSRate:   cfg.Dispatch.SMSRatePerSecond,
		RateBurst: cfg.Dispatch.RateBurst,
	}, emailProvider, smsProvider, log.With().Str("component", "dispatcher").Logger())
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialise dispatcher")
	}

	publisher, err := newPublisher(cfg.Events, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialise event publisher")
	}
	defer closeQuietly(publisher, log, "event publisher")

	defaultChannels, err := parseChannels(cfg.Dispatch.DefaultChannels)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid default channels")
	}

	engine, err := fanout.NewEngine(fanout.Config{
		MaxInFlight:     cfg.Dispatch.MaxInFlight,
		DefaultChannels: defaultChannels,
	}, fanout.Dependencies{
		Store:      st,
		Resolver:   resolver,
		Dispatcher: dispatcher,
		Events:     publisher,
		Logger:     log,
		Now:        time.Now,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialise fan-out engine")
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler:           server.New(engine, log).Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	log.Info().Int("port", cfg.HTTP.Port).Str("store", cfg.Store.Backend).Msg("notifier started")

	select {
	case <-ctx.Done():
		log.Info().Msg("shutdown signal received")
	case err := <-errCh:
		if err != nil {
			log.Error().Err(err).Msg("http server terminated with error")
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http server shutdown failed")
	}
}

func loadDirectory(cfg config.DirectoryConfig, log zerolog.Logger) (directory.Resolver, error) {
	if cfg.SeedFile == "" {
		log.Warn().Msg("no directory seed file configured; starting with an empty directory")
		return directory.NewStatic(nil), nil
	}
	resolver, err := directory.LoadFile(cfg.SeedFile)
	if err != nil {
		return nil, err
	}
	log.Info().Str("file", cfg.SeedFile).Msg("personnel directory loaded")
	return resolver, nil
}

func newPublisher(cfg config.EventsConfig, log zerolog.Logger) (events.Publisher, error) {
	if len(cfg.Brokers) == 0 {
		log.Info().Msg("no kafka brokers configured; delivery events disabled")
		return events.Nop{}, nil
	}
	return events.NewKafkaPublisher(cfg.Brokers, cfg.Topic, log.With().Str("component", "event-publisher").Logger())
}

func parseChannels(raw []string) ([]models.Channel, error) {
	channels := make([]models.Channel, 0, len(raw))
	for _, r := range raw {
		ch, err := models.ParseChannel(r)
		if err != nil {
			return nil, err
		}
		channels = append(channels, ch)
	}
	return channels, nil
}

func closeQuietly(v any, log zerolog.Logger, name string) {
	if c, ok := v.(io.Closer); ok {
		if err := c.Close(); err != nil {
			log.Error().Err(err).Msgf("failed to close %s", name)
		}
	}
}

func fail(stage string, err error) {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	logger.Fatal().Err(err).Str("stage", stage).Msg("notifier init failed")
}
