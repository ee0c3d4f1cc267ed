package domain

import "time"

// InvoiceEventType names a lifecycle change of an invoice.
type InvoiceEventType string

const (
	EventInvoiceCreated       InvoiceEventType = "invoice.created"
	EventInvoiceUpdated       InvoiceEventType = "invoice.updated"
	EventInvoiceStatusChanged InvoiceEventType = "invoice.status_changed"
	EventInvoiceDeleted       InvoiceEventType = "invoice.deleted"
)

// InvoiceEvent is emitted after a mutation has been confirmed by the document store.
type InvoiceEvent struct {
	Type           InvoiceEventType `json:"type"`
	InvoiceID      string           `json:"invoice_id"`
	UserID         string           `json:"user_id"`
	InvoiceNumber  string           `json:"invoice_number,omitempty"`
	Status         InvoiceStatus    `json:"status,omitempty"`
	PreviousStatus InvoiceStatus    `json:"previous_status,omitempty"`
	Total          float64          `json:"total"`
	OccurredAt     time.Time        `json:"occurred_at"`
}
