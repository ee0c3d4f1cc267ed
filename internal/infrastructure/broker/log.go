package broker

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/maglo/invoicing/internal/core/domain"
	"github.com/maglo/invoicing/internal/core/ports"
)

// LogPublisher writes events to the application log. It is used when no
// Kafka brokers are configured.
type LogPublisher struct {
	log zerolog.Logger
}

func NewLogPublisher(log zerolog.Logger) *LogPublisher {
	return &LogPublisher{log: log}
}

var _ ports.EventPublisher = (*LogPublisher)(nil)

func (p *LogPublisher) Publish(_ context.Context, event domain.InvoiceEvent) error {
	p.log.Info().
		Str("type", string(event.Type)).
		Str("invoice_id", event.InvoiceID).
		Str("user_id", event.UserID).
		Str("status", string(event.Status)).
		Str("previous_status", string(event.PreviousStatus)).
		Float64("total", event.Total).
		Time("occurred_at", event.OccurredAt).
		Msg("invoice event")
	return nil
}

func (p *LogPublisher) Close() error { return nil }
