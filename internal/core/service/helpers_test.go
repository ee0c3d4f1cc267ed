package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/maglo/invoicing/internal/core/domain"
	"github.com/maglo/invoicing/internal/core/ports"
	"github.com/maglo/invoicing/internal/infrastructure/db/memory"
)

var discardLogger = zerolog.Nop()

var fixedNow = time.Date(2025, 3, 15, 10, 0, 0, 0, time.UTC)

// flakyDocs wraps a DocumentStore and fails the operations named in fail.
type flakyDocs struct {
	ports.DocumentStore
	mu   sync.Mutex
	fail map[string]error
}

func newFlakyDocs() *flakyDocs {
	return &flakyDocs{
		DocumentStore: memory.NewDocumentStore(memory.WithUniqueField(usersCollection, fieldEmail)),
		fail:          map[string]error{},
	}
}

func (d *flakyDocs) failOn(op string, err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.fail[op] = err
}

func (d *flakyDocs) err(op string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.fail[op]
}

func (d *flakyDocs) List(ctx context.Context, c string, q ports.Query) ([]ports.Document, error) {
	if err := d.err("list"); err != nil {
		return nil, err
	}
	return d.DocumentStore.List(ctx, c, q)
}

func (d *flakyDocs) Create(ctx context.Context, c string, f ports.Fields) (ports.Document, error) {
	if err := d.err("create"); err != nil {
		return ports.Document{}, err
	}
	return d.DocumentStore.Create(ctx, c, f)
}

func (d *flakyDocs) Update(ctx context.Context, c, id string, f ports.Fields) (ports.Document, error) {
	if err := d.err("update"); err != nil {
		return ports.Document{}, err
	}
	return d.DocumentStore.Update(ctx, c, id, f)
}

func (d *flakyDocs) Delete(ctx context.Context, c, id string) error {
	if err := d.err("delete"); err != nil {
		return err
	}
	return d.DocumentStore.Delete(ctx, c, id)
}

type recordingSink struct {
	mu     sync.Mutex
	events []domain.InvoiceEvent
}

func (s *recordingSink) Emit(e domain.InvoiceEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, e)
}

func (s *recordingSink) types() []domain.InvoiceEventType {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.InvoiceEventType, len(s.events))
	for i, e := range s.events {
		out[i] = e.Type
	}
	return out
}

var testUser = &domain.User{ID: "user-1", Name: "Mahfuzul Nabil", Email: "nabil@maglo.test", Initials: "MA"}

func newSignedInStore(t *testing.T) (*InvoiceStore, *flakyDocs, *recordingSink) {
	t.Helper()
	docs := newFlakyDocs()
	sink := &recordingSink{}
	store := NewInvoiceStore(docs, StoreOptions{
		Events: sink,
		Logger: discardLogger,
		Clock:  func() time.Time { return fixedNow },
	})
	require.NoError(t, store.SetUser(context.Background(), testUser))
	return store, docs, sink
}

func draft(amount, vat float64) domain.InvoiceDraft {
	return domain.InvoiceDraft{
		ClientName:  "Gadget Gallery",
		ClientEmail: "billing@gadget.test",
		Amount:      amount,
		VAT:         vat,
		DueDate:     "2025-04-01",
	}
}

func ptr[T any](v T) *T { return &v }
