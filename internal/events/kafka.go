package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"time"

	"github.com/IBM/sarama"
	"github.com/rs/zerolog"
)

// KafkaPublisher writes delivery events to a Kafka topic through a
// synchronous producer. Events for the same recipient share a partition key
// so per-recipient ordering is preserved.
type KafkaPublisher struct {
	producer sarama.SyncProducer
	topic    string
	logger   zerolog.Logger
}

// NewKafkaPublisher connects to the brokers and returns a ready publisher.
func NewKafkaPublisher(brokers []string, topic string, logger zerolog.Logger) (*KafkaPublisher, error) {
	if len(brokers) == 0 {
		return nil, errors.New("kafka events: at least one broker is required")
	}
	if topic == "" {
		return nil, errors.New("kafka events: topic is required")
	}
	if reflect.ValueOf(logger).IsZero() {
		logger = zerolog.Nop()
	}

	cfg := sarama.NewConfig()
	cfg.Version = sarama.V2_5_0_0
	cfg.Producer.RequiredAcks = sarama.WaitForAll
	cfg.Producer.Retry.Max = 3
	cfg.Producer.Return.Successes = true
	cfg.Producer.Timeout = 10 * time.Second

	producer, err := sarama.NewSyncProducer(brokers, cfg)
	if err != nil {
		return nil, fmt.Errorf("kafka events: create producer: %w", err)
	}

	return &KafkaPublisher{
		producer: producer,
		topic:    topic,
		logger:   logger.With().Str("component", "event-publisher").Logger(),
	}, nil
}

// Publish writes the event to the configured topic synchronously.
func (p *KafkaPublisher) Publish(_ context.Context, event Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("kafka events: marshal event: %w", err)
	}

	msg := &sarama.ProducerMessage{
		Topic: p.topic,
		Key:   sarama.StringEncoder(event.RecipientID),
		Value: sarama.ByteEncoder(payload),
	}

	partition, offset, err := p.producer.SendMessage(msg)
	if err != nil {
		return fmt.Errorf("kafka events: send: %w", err)
	}

	p.logger.Debug().
		Str("type", event.Type).
		Str("recipient_id", event.RecipientID).
		Int32("partition", partition).
		Int64("offset", offset).
		Msg("delivery event published")
	return nil
}

// Close shuts down the underlying producer.
func (p *KafkaPublisher) Close() error {
	return p.producer.Close()
}
