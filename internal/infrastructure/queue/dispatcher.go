package queue

import (
	"context"
	"hash/fnv"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/maglo/invoicing/internal/core/domain"
	"github.com/maglo/invoicing/internal/core/ports"
	"github.com/maglo/invoicing/internal/pkg/metrics"
)

const (
	defaultWorkers = 8
	channelBuffer  = 256
	publishTimeout = 5 * time.Second
)

// Dispatcher routes invoice events to a fixed set of workers using consistent
// hashing on the invoice ID, guaranteeing per-invoice event ordering.
type Dispatcher struct {
	workers   []chan domain.InvoiceEvent
	publisher ports.EventPublisher
	log       zerolog.Logger
	wg        sync.WaitGroup
}

// NewDispatcher creates a Dispatcher with numWorkers sharded workers.
// If numWorkers <= 0, defaultWorkers is used.
func NewDispatcher(numWorkers int, publisher ports.EventPublisher, log zerolog.Logger) *Dispatcher {
	if numWorkers <= 0 {
		numWorkers = defaultWorkers
	}
	d := &Dispatcher{
		workers:   make([]chan domain.InvoiceEvent, numWorkers),
		publisher: publisher,
		log:       log,
	}
	for i := range d.workers {
		d.workers[i] = make(chan domain.InvoiceEvent, channelBuffer)
	}
	return d
}

var _ ports.EventSink = (*Dispatcher)(nil)

// Start launches all worker goroutines. Workers flush what is already queued
// and stop when ctx is cancelled.
func (d *Dispatcher) Start(ctx context.Context) {
	for i, ch := range d.workers {
		d.wg.Add(1)
		go d.runWorker(ctx, i, ch)
	}
}

// Wait blocks until every worker has stopped.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

// Emit hands event to the worker responsible for its invoice. It never
// blocks: when that worker's buffer is full the event is dropped and logged.
func (d *Dispatcher) Emit(event domain.InvoiceEvent) {
	idx := d.shardIndex(event.InvoiceID)
	select {
	case d.workers[idx] <- event:
		metrics.EventsQueueDepth.WithLabelValues(strconv.Itoa(idx)).Set(float64(len(d.workers[idx])))
	default:
		metrics.EventsPublishedTotal.WithLabelValues(string(event.Type), "dropped").Inc()
		d.log.Warn().
			Str("invoice_id", event.InvoiceID).
			Str("type", string(event.Type)).
			Int("worker_id", idx).
			Msg("event queue full, dropping event")
	}
}

// shardIndex maps an invoice ID deterministically to a worker index.
func (d *Dispatcher) shardIndex(invoiceID string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(invoiceID))
	return int(h.Sum32() % uint32(len(d.workers)))
}

func (d *Dispatcher) runWorker(ctx context.Context, id int, ch <-chan domain.InvoiceEvent) {
	defer d.wg.Done()
	for {
		select {
		case <-ctx.Done():
			d.drain(id, ch)
			return
		case event := <-ch:
			d.publish(ctx, id, event)
		}
	}
}

// drain publishes whatever is still buffered after shutdown was requested.
func (d *Dispatcher) drain(id int, ch <-chan domain.InvoiceEvent) {
	for {
		select {
		case event := <-ch:
			ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
			d.publish(ctx, id, event)
			cancel()
		default:
			return
		}
	}
}

func (d *Dispatcher) publish(ctx context.Context, id int, event domain.InvoiceEvent) {
	metrics.EventsQueueDepth.WithLabelValues(strconv.Itoa(id)).Set(float64(len(d.workers[id])))
	if err := d.publisher.Publish(ctx, event); err != nil {
		metrics.EventsPublishedTotal.WithLabelValues(string(event.Type), "error").Inc()
		d.log.Error().Err(err).
			Str("invoice_id", event.InvoiceID).
			Str("type", string(event.Type)).
			Int("worker_id", id).
			Msg("event publishing failed")
		return
	}
	metrics.EventsPublishedTotal.WithLabelValues(string(event.Type), "ok").Inc()
}
