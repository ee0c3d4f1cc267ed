package service

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/rs/zerolog"

	"github.com/maglo/invoicing/internal/core/domain"
	"github.com/maglo/invoicing/internal/core/ports"
	"github.com/maglo/invoicing/internal/pkg/metrics"
)

const defaultInvoicesCollection = "invoices"

// StoreOptions configures an InvoiceStore. Zero values are usable.
type StoreOptions struct {
	Collection string
	Events     ports.EventSink
	Logger     zerolog.Logger
	Clock      func() time.Time
}

// InvoiceStore is the in-memory mirror of one user's invoices. All writes go
// to the document store first; the mirror is only touched after the store
// confirms. Aggregates are computed from the mirror on every call.
type InvoiceStore struct {
	docs       ports.DocumentStore
	events     ports.EventSink
	log        zerolog.Logger
	collection string
	now        func() time.Time

	// writeMu serializes mutations so they apply in the order they were issued.
	writeMu sync.Mutex

	mu       sync.RWMutex
	user     *domain.User
	invoices []domain.Invoice
	loaded   bool
}

func NewInvoiceStore(docs ports.DocumentStore, opts StoreOptions) *InvoiceStore {
	if opts.Collection == "" {
		opts.Collection = defaultInvoicesCollection
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	return &InvoiceStore{
		docs:       docs,
		events:     opts.Events,
		log:        opts.Logger,
		collection: opts.Collection,
		now:        opts.Clock,
	}
}

// User returns a copy of the held user, or nil when signed out.
func (s *InvoiceStore) User() *domain.User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.user == nil {
		return nil
	}
	u := *s.user
	return &u
}

// Loaded reports whether the invoice list has been fetched for the current user.
func (s *InvoiceStore) Loaded() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loaded
}

// SetUser moves the store between "no user" and "user". The invoice list is
// fetched when a user arrives and discarded when the user leaves; replacing a
// user with the same ID keeps the list.
func (s *InvoiceStore) SetUser(ctx context.Context, u *domain.User) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.mu.Lock()
	prev := s.user
	if u == nil {
		s.user = nil
		s.invoices = nil
		s.loaded = false
		s.mu.Unlock()
		return nil
	}
	cp := *u
	s.user = &cp
	if prev != nil && prev.ID == u.ID {
		s.mu.Unlock()
		return nil
	}
	s.invoices = nil
	s.loaded = false
	s.mu.Unlock()

	return s.load(ctx, cp.ID)
}

// Refresh re-fetches the invoice list from the document store.
func (s *InvoiceStore) Refresh(ctx context.Context) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	user := s.User()
	if user == nil {
		return domain.ErrUnauthenticated
	}
	return s.load(ctx, user.ID)
}

// load must be called with writeMu held.
func (s *InvoiceStore) load(ctx context.Context, userID string) error {
	var docs []ports.Document
	err := s.remote(ctx, "list", "failed to load invoices", func(ctx context.Context) error {
		var err error
		docs, err = s.docs.List(ctx, s.collection, ports.Where(fieldUserID, userID))
		return err
	})
	if err != nil {
		return err
	}

	invoices := make([]domain.Invoice, 0, len(docs))
	for _, doc := range docs {
		inv, err := invoiceFromDocument(doc)
		if err != nil {
			s.log.Warn().Err(err).Str("invoice_id", doc.ID).Msg("skipping malformed invoice document")
			continue
		}
		invoices = append(invoices, inv)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.user == nil || s.user.ID != userID {
		return nil
	}
	s.invoices = invoices
	s.loaded = true
	s.log.Debug().Str("user_id", userID).Int("count", len(invoices)).Msg("invoices loaded")
	return nil
}

// AddInvoice creates an invoice for the current user and prepends it to the list.
func (s *InvoiceStore) AddInvoice(ctx context.Context, draft domain.InvoiceDraft) (domain.Invoice, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	user := s.User()
	if user == nil {
		return domain.Invoice{}, domain.ErrUnauthenticated
	}
	if err := draft.Validate(); err != nil {
		return domain.Invoice{}, err
	}

	issued := draft.IssuedDate
	if issued == "" {
		issued = s.now().UTC().Format(domain.DateLayout)
	}
	inv := domain.Invoice{
		UserID:        user.ID,
		InvoiceNumber: generateInvoiceNumber(),
		ClientName:    draft.ClientName,
		ClientEmail:   draft.ClientEmail,
		ClientAddress: draft.ClientAddress,
		ClientAvatar:  domain.Initials(draft.ClientName),
		Amount:        draft.Amount,
		Discount:      draft.Discount,
		VAT:           draft.VAT,
		Status:        domain.StatusPending,
		IssuedDate:    issued,
		DueDate:       draft.DueDate,
		Items:         withItemIDs(draft.Items),
	}.WithTotals()
	if inv.Items == nil {
		inv.Items = []domain.InvoiceItem{}
	}

	fields, err := invoiceToFields(inv)
	if err != nil {
		return domain.Invoice{}, err
	}

	var doc ports.Document
	err = s.remote(ctx, "create", "failed to create invoice", func(ctx context.Context) error {
		var err error
		doc, err = s.docs.Create(ctx, s.collection, fields)
		return err
	})
	if err != nil {
		return domain.Invoice{}, err
	}
	inv.ID = doc.ID
	inv.CreatedAt = doc.CreatedAt

	s.mu.Lock()
	s.invoices = append([]domain.Invoice{inv}, s.invoices...)
	s.mu.Unlock()

	metrics.InvoicesCreatedTotal.Inc()
	s.emit(domain.EventInvoiceCreated, inv, "")
	s.log.Info().
		Str("invoice_id", inv.ID).
		Str("invoice_number", inv.InvoiceNumber).
		Str("user_id", user.ID).
		Float64("total", inv.Total).
		Msg("invoice created")

	return inv.Clone(), nil
}

// UpdateInvoice writes p to the document store and then merges it into the
// local record. Only invoices present in the list can be updated.
func (s *InvoiceStore) UpdateInvoice(ctx context.Context, id string, p domain.InvoicePatch) (domain.Invoice, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if s.User() == nil {
		return domain.Invoice{}, domain.ErrUnauthenticated
	}
	if err := p.Validate(); err != nil {
		return domain.Invoice{}, err
	}
	before, ok := s.GetInvoiceByID(id)
	if !ok {
		return domain.Invoice{}, domain.ErrInvoiceNotFound
	}
	if p.IsEmpty() {
		return before, nil
	}
	if p.Items != nil {
		items := withItemIDs(*p.Items)
		p.Items = &items
	}

	after := before.Apply(p)
	if err := p.CheckResult(after); err != nil {
		return domain.Invoice{}, err
	}
	fields, err := patchToFields(p, after)
	if err != nil {
		return domain.Invoice{}, err
	}

	notFound := false
	err = s.remote(ctx, "update", "failed to update invoice", func(ctx context.Context) error {
		_, err := s.docs.Update(ctx, s.collection, id, fields)
		if errors.Is(err, ports.ErrDocumentNotFound) {
			notFound = true
			return nil
		}
		return err
	})
	if err != nil {
		return domain.Invoice{}, err
	}
	if notFound {
		return domain.Invoice{}, domain.ErrInvoiceNotFound
	}

	s.mu.Lock()
	for i := range s.invoices {
		if s.invoices[i].ID == id {
			s.invoices[i] = after
			break
		}
	}
	s.mu.Unlock()

	if p.Status != nil && before.Status != after.Status {
		metrics.InvoiceStatusChangesTotal.WithLabelValues(string(before.Status), string(after.Status)).Inc()
		s.emit(domain.EventInvoiceStatusChanged, after, before.Status)
	} else {
		s.emit(domain.EventInvoiceUpdated, after, "")
	}
	s.log.Info().Str("invoice_id", id).Str("status", string(after.Status)).Msg("invoice updated")

	return after.Clone(), nil
}

// DeleteInvoice removes an invoice. Deleting an ID that is not in the list,
// or that the document store no longer has, succeeds without changes.
func (s *InvoiceStore) DeleteInvoice(ctx context.Context, id string) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if s.User() == nil {
		return domain.ErrUnauthenticated
	}
	inv, ok := s.GetInvoiceByID(id)
	if !ok {
		s.log.Debug().Str("invoice_id", id).Msg("delete of unknown invoice ignored")
		return nil
	}

	err := s.remote(ctx, "delete", "failed to delete invoice", func(ctx context.Context) error {
		err := s.docs.Delete(ctx, s.collection, id)
		if errors.Is(err, ports.ErrDocumentNotFound) {
			s.log.Warn().Str("invoice_id", id).Msg("invoice already gone from document store")
			return nil
		}
		return err
	})
	if err != nil {
		return err
	}

	s.mu.Lock()
	kept := s.invoices[:0]
	for _, existing := range s.invoices {
		if existing.ID != id {
			kept = append(kept, existing)
		}
	}
	s.invoices = kept
	s.mu.Unlock()

	metrics.InvoicesDeletedTotal.Inc()
	s.emit(domain.EventInvoiceDeleted, inv, "")
	s.log.Info().Str("invoice_id", id).Msg("invoice deleted")
	return nil
}

// GetInvoiceByID looks an invoice up in the local list.
func (s *InvoiceStore) GetInvoiceByID(id string) (domain.Invoice, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, inv := range s.invoices {
		if inv.ID == id {
			return inv.Clone(), true
		}
	}
	return domain.Invoice{}, false
}

// Invoices returns a copy of the list, newest first.
func (s *InvoiceStore) Invoices() []domain.Invoice {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Invoice, len(s.invoices))
	for i, inv := range s.invoices {
		out[i] = inv.Clone()
	}
	return out
}

// TotalInvoices sums Total across every invoice regardless of status.
func (s *InvoiceStore) TotalInvoices() float64 {
	return s.sum(func(domain.Invoice) bool { return true }, totalOf)
}

// TotalPaid sums Total of Paid invoices.
func (s *InvoiceStore) TotalPaid() float64 {
	return s.sum(isPaid, totalOf)
}

// PendingPayments sums Total of Unpaid and Pending invoices.
func (s *InvoiceStore) PendingPayments() float64 {
	return s.sum(func(inv domain.Invoice) bool { return inv.Status.IsOutstanding() }, totalOf)
}

// TotalVAT sums VATAmount of Paid invoices; VAT counts as collected once paid.
func (s *InvoiceStore) TotalVAT() float64 {
	return s.sum(isPaid, func(inv domain.Invoice) float64 { return inv.VATAmount })
}

func (s *InvoiceStore) sum(keep func(domain.Invoice) bool, value func(domain.Invoice) float64) float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	values := make([]float64, 0, len(s.invoices))
	for _, inv := range s.invoices {
		if keep(inv) {
			values = append(values, value(inv))
		}
	}
	return domain.SumFloat(values...)
}

func isPaid(inv domain.Invoice) bool    { return inv.Status == domain.StatusPaid }
func totalOf(inv domain.Invoice) float64 { return inv.Total }

// remote runs one document store call, recording its duration and wrapping
// any failure as a *domain.RemoteError carrying msg.
func (s *InvoiceStore) remote(ctx context.Context, op, msg string, call func(context.Context) error) error {
	start := time.Now()
	err := call(ctx)
	result := "ok"
	if err != nil {
		result = "error"
	}
	metrics.RemoteCallDuration.WithLabelValues(op, result).Observe(time.Since(start).Seconds())
	if err == nil {
		return nil
	}

	s.log.Error().Err(err).Str("op", op).Msg(msg)
	return &domain.RemoteError{Op: op, Message: msg, Err: err}
}

func (s *InvoiceStore) emit(t domain.InvoiceEventType, inv domain.Invoice, prev domain.InvoiceStatus) {
	if s.events == nil {
		return
	}
	s.events.Emit(domain.InvoiceEvent{
		Type:           t,
		InvoiceID:      inv.ID,
		UserID:         inv.UserID,
		InvoiceNumber:  inv.InvoiceNumber,
		Status:         inv.Status,
		PreviousStatus: prev,
		Total:          inv.Total,
		OccurredAt:     s.now().UTC(),
	})
}

// generateInvoiceNumber returns a number in the format MGL000000.
func generateInvoiceNumber() string {
	n, err := rand.Int(rand.Reader, big.NewInt(1_000_000))
	if err != nil {
		return fmt.Sprintf("MGL%06d", time.Now().UnixNano()%1_000_000)
	}
	return fmt.Sprintf("MGL%06d", n.Int64())
}

func withItemIDs(items []domain.InvoiceItem) []domain.InvoiceItem {
	if items == nil {
		return nil
	}
	out := make([]domain.InvoiceItem, len(items))
	for i, it := range items {
		if it.ID == "" {
			it.ID = uuid.Must(uuid.NewV4()).String()
		}
		out[i] = it
	}
	return out
}
