package ports

import (
	"context"

	"github.com/maglo/invoicing/internal/core/domain"
)

// EventSink accepts invoice events for asynchronous delivery. Emit must not block
// on the downstream broker.
type EventSink interface {
	Emit(event domain.InvoiceEvent)
}

// EventPublisher delivers a single event to the outside world (Kafka, logs).
type EventPublisher interface {
	Publish(ctx context.Context, event domain.InvoiceEvent) error
	Close() error
}

// Mailer sends a rendered invoice to its client.
type Mailer interface {
	SendInvoice(ctx context.Context, from *domain.User, inv domain.Invoice) error
}
