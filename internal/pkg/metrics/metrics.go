// Package metrics defines and registers all custom Prometheus metrics for the
// Maglo invoicing API. It is the single source of truth for metric names,
// labels, and help strings.
//
// Metrics are registered with the default Prometheus registry on package init
// through promauto.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "maglo"

// ── Invoice metrics ───────────────────────────────────────────────────────────

// InvoicesCreatedTotal counts invoices confirmed by the document store.
var InvoicesCreatedTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "invoices_created_total",
		Help:      "Total number of invoices created.",
	},
)

// InvoiceStatusChangesTotal counts status changes.
// Labels:
//   - from: previous status (Paid, Unpaid, Pending)
//   - to:   new status
var InvoiceStatusChangesTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "invoice_status_changes_total",
		Help:      "Total number of invoice status changes.",
	},
	[]string{"from", "to"},
)

// InvoicesDeletedTotal counts deleted invoices.
var InvoicesDeletedTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "invoices_deleted_total",
		Help:      "Total number of invoices deleted.",
	},
)

// ── Document store metrics ────────────────────────────────────────────────────

// RemoteCallDuration measures document store round trips.
// Labels:
//   - op:     list, create, update, delete
//   - result: ok or error
var RemoteCallDuration = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "remote_call_duration_seconds",
		Help:      "Duration of document store calls made by the invoice store.",
		Buckets:   prometheus.DefBuckets,
	},
	[]string{"op", "result"},
)

// ActiveStores tracks how many users currently have a loaded invoice mirror.
var ActiveStores = promauto.NewGauge(
	prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "active_invoice_stores",
		Help:      "Number of users with a loaded invoice store.",
	},
)

// ── Event metrics ─────────────────────────────────────────────────────────────

// EventsPublishedTotal counts invoice events handed to the publisher.
// Labels:
//   - type:   event type (e.g. "invoice.created")
//   - result: ok, error or dropped
var EventsPublishedTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "events_published_total",
		Help:      "Total number of invoice events published.",
	},
	[]string{"type", "result"},
)

// EventsQueueDepth tracks the current number of events waiting in each worker channel.
// Label:
//   - worker_id: numeric worker index (e.g. "0", "1", …)
var EventsQueueDepth = promauto.NewGaugeVec(
	prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "events_queue_depth",
		Help:      "Current number of events pending in each dispatcher worker channel.",
	},
	[]string{"worker_id"},
)

// ── Session metrics ───────────────────────────────────────────────────────────

// AuthAttemptsTotal counts sign-in and sign-up attempts.
// Labels:
//   - kind:   login or signup
//   - result: ok, rejected or error
var AuthAttemptsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "auth_attempts_total",
		Help:      "Total number of sign-in and sign-up attempts.",
	},
	[]string{"kind", "result"},
)
