package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"

	"github.com/maglo/invoicing/internal/core/domain"
	"github.com/maglo/invoicing/internal/core/ports"
)

const DefaultTopic = "invoice-events"

// KafkaPublisher writes invoice events to a Kafka topic, keyed by invoice ID
// so that a partition sees every event of an invoice in order.
type KafkaPublisher struct {
	w   *kafka.Writer
	log zerolog.Logger
}

func NewKafkaPublisher(log zerolog.Logger, brokers []string, topic string) *KafkaPublisher {
	if topic == "" {
		topic = DefaultTopic
	}
	log = log.With().Str("component", "kafka").Str("topic", topic).Logger()

	w := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireOne,
		BatchTimeout:           10 * time.Millisecond,
		Logger:                 kafka.LoggerFunc(func(msg string, args ...interface{}) { log.Debug().Msgf(msg, args...) }),
		ErrorLogger:            kafka.LoggerFunc(func(msg string, args ...interface{}) { log.Error().Msgf(msg, args...) }),
		AllowAutoTopicCreation: true,
	}
	return &KafkaPublisher{w: w, log: log}
}

var _ ports.EventPublisher = (*KafkaPublisher)(nil)

func (p *KafkaPublisher) Publish(ctx context.Context, event domain.InvoiceEvent) error {
	msg, err := encode(event)
	if err != nil {
		return err
	}
	if err := p.w.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("write kafka message: %w", err)
	}
	return nil
}

func (p *KafkaPublisher) Close() error {
	if err := p.w.Close(); err != nil {
		return fmt.Errorf("close kafka writer: %w", err)
	}
	return nil
}

func encode(event domain.InvoiceEvent) (kafka.Message, error) {
	b, err := json.Marshal(event)
	if err != nil {
		return kafka.Message{}, fmt.Errorf("marshal event: %w", err)
	}
	return kafka.Message{
		Key:   []byte(event.InvoiceID),
		Value: b,
		Time:  event.OccurredAt,
		Headers: []kafka.Header{
			{Key: "event-type", Value: []byte(event.Type)},
		},
	}, nil
}
