package service

import (
	"context"
	"errors"
	"regexp"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maglo/invoicing/internal/core/domain"
	"github.com/maglo/invoicing/internal/core/ports"
)

func TestInvoiceStore_EndToEndScenario(t *testing.T) {
	store, _, sink := newSignedInStore(t)
	ctx := context.Background()

	paidBefore, vatBefore := store.TotalPaid(), store.TotalVAT()

	inv, err := store.AddInvoice(ctx, draft(420.84, 5))
	require.NoError(t, err)
	assert.Equal(t, 21.04, inv.VATAmount)
	assert.Equal(t, 441.88, inv.Total)
	assert.Equal(t, domain.StatusPending, inv.Status)
	assert.Equal(t, "2025-03-15", inv.IssuedDate)
	assert.Equal(t, testUser.ID, inv.UserID)
	assert.Equal(t, "GA", inv.ClientAvatar)
	assert.Regexp(t, regexp.MustCompile(`^MGL\d{6}$`), inv.InvoiceNumber)

	_, err = store.UpdateInvoice(ctx, inv.ID, domain.InvoicePatch{Status: ptr(domain.StatusPaid)})
	require.NoError(t, err)
	assert.Equal(t, domain.SumFloat(paidBefore, 441.88), store.TotalPaid())
	assert.Equal(t, domain.SumFloat(vatBefore, 21.04), store.TotalVAT())

	require.NoError(t, store.DeleteInvoice(ctx, inv.ID))
	assert.Equal(t, paidBefore, store.TotalPaid())
	assert.Equal(t, vatBefore, store.TotalVAT())

	assert.Equal(t, []domain.InvoiceEventType{
		domain.EventInvoiceCreated,
		domain.EventInvoiceStatusChanged,
		domain.EventInvoiceDeleted,
	}, sink.types())
}

func TestInvoiceStore_AddThenGetRoundTrip(t *testing.T) {
	store, _, _ := newSignedInStore(t)
	ctx := context.Background()

	d := draft(0, 10)
	d.ClientAddress = "3471 Rainy Day Drive"
	d.Discount = 5
	d.Items = []domain.InvoiceItem{
		{Name: "Design", Quantity: 2, Rate: 50},
		{Name: "Hosting", Quantity: 1, Rate: 20.5},
	}

	created, err := store.AddInvoice(ctx, d)
	require.NoError(t, err)
	require.NotEmpty(t, created.ID)

	got, ok := store.GetInvoiceByID(created.ID)
	require.True(t, ok)
	assert.Equal(t, created, got)
	assert.Equal(t, d.ClientAddress, got.ClientAddress)
	require.Len(t, got.Items, 2)
	assert.NotEmpty(t, got.Items[0].ID)
	assert.Equal(t, 100.0, got.Items[0].Amount)
	assert.Equal(t, 120.5, got.Amount)
	assert.Equal(t, 5.0, got.Discount)
	assert.Equal(t, 11.55, got.VATAmount)
	assert.Equal(t, 127.05, got.Total)

	// A fresh store for the same user sees the same invoice from the document store.
	reloaded := NewInvoiceStore(storeDocs(store), StoreOptions{Logger: discardLogger})
	require.NoError(t, reloaded.SetUser(ctx, testUser))
	again, ok := reloaded.GetInvoiceByID(created.ID)
	require.True(t, ok)
	assert.Equal(t, created.Items, again.Items)
	assert.Equal(t, created.Total, again.Total)
	assert.Equal(t, created.InvoiceNumber, again.InvoiceNumber)
}

func storeDocs(s *InvoiceStore) ports.DocumentStore { return s.docs }

func TestInvoiceStore_NewestFirst(t *testing.T) {
	store, _, _ := newSignedInStore(t)
	ctx := context.Background()

	first, err := store.AddInvoice(ctx, draft(10, 0))
	require.NoError(t, err)
	second, err := store.AddInvoice(ctx, draft(20, 0))
	require.NoError(t, err)

	list := store.Invoices()
	require.Len(t, list, 2)
	assert.Equal(t, second.ID, list[0].ID)
	assert.Equal(t, first.ID, list[1].ID)
}

func TestInvoiceStore_Aggregates(t *testing.T) {
	store, _, _ := newSignedInStore(t)
	ctx := context.Background()

	a, err := store.AddInvoice(ctx, draft(100, 10))
	require.NoError(t, err)
	b, err := store.AddInvoice(ctx, draft(0.1, 0))
	require.NoError(t, err)
	_, err = store.AddInvoice(ctx, draft(0.2, 0))
	require.NoError(t, err)

	_, err = store.UpdateInvoice(ctx, a.ID, domain.InvoicePatch{Status: ptr(domain.StatusPaid)})
	require.NoError(t, err)
	_, err = store.UpdateInvoice(ctx, b.ID, domain.InvoicePatch{Status: ptr(domain.StatusUnpaid)})
	require.NoError(t, err)

	assert.Equal(t, 110.3, store.TotalInvoices())
	assert.Equal(t, 110.0, store.TotalPaid())
	assert.Equal(t, 0.3, store.PendingPayments())
	assert.Equal(t, 10.0, store.TotalVAT())
	assert.Equal(t, store.TotalInvoices(), domain.SumFloat(store.TotalPaid(), store.PendingPayments()))

	// Paid -> Pending drops collected VAT by exactly that invoice's VAT amount.
	_, err = store.UpdateInvoice(ctx, a.ID, domain.InvoicePatch{Status: ptr(domain.StatusPending)})
	require.NoError(t, err)
	assert.Equal(t, 0.0, store.TotalVAT())
}

func TestInvoiceStore_UpdateRecomputesTotals(t *testing.T) {
	store, _, sink := newSignedInStore(t)
	ctx := context.Background()

	inv, err := store.AddInvoice(ctx, draft(100, 0))
	require.NoError(t, err)

	updated, err := store.UpdateInvoice(ctx, inv.ID, domain.InvoicePatch{
		VAT:        ptr(20.0),
		ClientName: ptr("nova studio"),
		DueDate:    ptr("2025-05-01"),
	})
	require.NoError(t, err)
	assert.Equal(t, 20.0, updated.VATAmount)
	assert.Equal(t, 120.0, updated.Total)
	assert.Equal(t, "NO", updated.ClientAvatar)
	assert.Equal(t, "2025-05-01", updated.DueDate)

	got, _ := store.GetInvoiceByID(inv.ID)
	assert.Equal(t, updated, got)
	assert.Equal(t, domain.EventInvoiceUpdated, sink.types()[1])
}

func TestInvoiceStore_UpdateAmountOfItemizedInvoice(t *testing.T) {
	store, _, sink := newSignedInStore(t)
	ctx := context.Background()

	d := draft(0, 0)
	d.Items = []domain.InvoiceItem{{Name: "Design", Quantity: 2, Rate: 50}}
	inv, err := store.AddInvoice(ctx, d)
	require.NoError(t, err)
	require.Equal(t, 100.0, inv.Amount)

	_, err = store.UpdateInvoice(ctx, inv.ID, domain.InvoicePatch{Amount: ptr(250.0)})
	var ve *domain.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Contains(t, ve.Fields, "amount")
	got, _ := store.GetInvoiceByID(inv.ID)
	assert.Equal(t, 100.0, got.Amount)
	assert.Len(t, sink.types(), 1)

	// the item subtotal alongside new items is accepted
	items := []domain.InvoiceItem{{Name: "Design", Quantity: 3, Rate: 50}}
	updated, err := store.UpdateInvoice(ctx, inv.ID, domain.InvoicePatch{Amount: ptr(150.0), Items: &items})
	require.NoError(t, err)
	assert.Equal(t, 150.0, updated.Amount)

	// dropping the items makes the amount manual again
	none := []domain.InvoiceItem{}
	updated, err = store.UpdateInvoice(ctx, inv.ID, domain.InvoicePatch{Amount: ptr(250.0), Items: &none})
	require.NoError(t, err)
	assert.Equal(t, 250.0, updated.Amount)
}

func TestInvoiceStore_UpdateUnknownID(t *testing.T) {
	store, _, _ := newSignedInStore(t)

	_, err := store.UpdateInvoice(context.Background(), "missing", domain.InvoicePatch{Status: ptr(domain.StatusPaid)})
	assert.ErrorIs(t, err, domain.ErrInvoiceNotFound)
}

func TestInvoiceStore_UpdateRejectsInvalidStatus(t *testing.T) {
	store, _, _ := newSignedInStore(t)
	inv, err := store.AddInvoice(context.Background(), draft(10, 0))
	require.NoError(t, err)

	_, err = store.UpdateInvoice(context.Background(), inv.ID, domain.InvoicePatch{Status: ptr(domain.InvoiceStatus("Void"))})
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestInvoiceStore_DeleteIsIdempotent(t *testing.T) {
	store, docs, sink := newSignedInStore(t)
	ctx := context.Background()

	inv, err := store.AddInvoice(ctx, draft(10, 0))
	require.NoError(t, err)

	require.NoError(t, store.DeleteInvoice(ctx, inv.ID))
	require.NoError(t, store.DeleteInvoice(ctx, inv.ID))
	require.NoError(t, store.DeleteInvoice(ctx, "never-existed"))
	assert.Empty(t, store.Invoices())
	assert.Len(t, sink.types(), 2)

	// Gone remotely but still mirrored locally: treated as deleted.
	other, err := store.AddInvoice(ctx, draft(10, 0))
	require.NoError(t, err)
	require.NoError(t, docs.DocumentStore.Delete(ctx, defaultInvoicesCollection, other.ID))
	require.NoError(t, store.DeleteInvoice(ctx, other.ID))
	_, ok := store.GetInvoiceByID(other.ID)
	assert.False(t, ok)
}

func TestInvoiceStore_RemoteFailureLeavesStateUntouched(t *testing.T) {
	store, docs, sink := newSignedInStore(t)
	ctx := context.Background()

	inv, err := store.AddInvoice(ctx, draft(10, 0))
	require.NoError(t, err)

	boom := errors.New("connection reset")
	docs.failOn("create", boom)
	docs.failOn("update", boom)
	docs.failOn("delete", boom)

	_, err = store.AddInvoice(ctx, draft(20, 0))
	require.ErrorIs(t, err, domain.ErrRemote)
	require.ErrorIs(t, err, boom)
	var remote *domain.RemoteError
	require.ErrorAs(t, err, &remote)
	assert.Equal(t, "failed to create invoice", remote.Message)

	_, err = store.UpdateInvoice(ctx, inv.ID, domain.InvoicePatch{Status: ptr(domain.StatusPaid)})
	assert.ErrorIs(t, err, domain.ErrRemote)

	err = store.DeleteInvoice(ctx, inv.ID)
	assert.ErrorIs(t, err, domain.ErrRemote)

	list := store.Invoices()
	require.Len(t, list, 1)
	assert.Equal(t, domain.StatusPending, list[0].Status)
	assert.Len(t, sink.types(), 1)
}

func TestInvoiceStore_ValidationSkipsRemote(t *testing.T) {
	store, docs, _ := newSignedInStore(t)
	docs.failOn("create", errors.New("must not be called"))

	d := draft(0, 5)
	d.ClientEmail = "not-an-email"
	_, err := store.AddInvoice(context.Background(), d)

	var verr *domain.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields, "client_email")
	assert.Contains(t, verr.Fields, "items")
}

func TestInvoiceStore_SignedOut(t *testing.T) {
	store := NewInvoiceStore(newFlakyDocs(), StoreOptions{Logger: discardLogger})
	ctx := context.Background()

	_, err := store.AddInvoice(ctx, draft(10, 0))
	assert.ErrorIs(t, err, domain.ErrUnauthenticated)
	assert.ErrorIs(t, store.DeleteInvoice(ctx, "x"), domain.ErrUnauthenticated)
	assert.ErrorIs(t, store.Refresh(ctx), domain.ErrUnauthenticated)
	assert.Nil(t, store.User())
	assert.Zero(t, store.TotalInvoices())
}

func TestInvoiceStore_SetUserTransitions(t *testing.T) {
	store, docs, _ := newSignedInStore(t)
	ctx := context.Background()

	_, err := store.AddInvoice(ctx, draft(10, 0))
	require.NoError(t, err)

	// Same user again: list kept without a reload.
	docs.failOn("list", errors.New("must not reload"))
	renamed := *testUser
	renamed.Name = "Nabil"
	require.NoError(t, store.SetUser(ctx, &renamed))
	assert.Len(t, store.Invoices(), 1)
	assert.Equal(t, "Nabil", store.User().Name)

	// Signing out clears the list.
	require.NoError(t, store.SetUser(ctx, nil))
	assert.Empty(t, store.Invoices())
	assert.False(t, store.Loaded())

	// A failed load keeps the user but leaves the store unloaded.
	err = store.SetUser(ctx, testUser)
	assert.ErrorIs(t, err, domain.ErrRemote)
	assert.NotNil(t, store.User())
	assert.False(t, store.Loaded())

	docs.failOn("list", nil)
	require.NoError(t, store.Refresh(ctx))
	assert.True(t, store.Loaded())
	assert.Len(t, store.Invoices(), 1)
}

func TestInvoiceStore_OnlyOwnInvoicesLoaded(t *testing.T) {
	store, docs, _ := newSignedInStore(t)
	ctx := context.Background()

	_, err := store.AddInvoice(ctx, draft(10, 0))
	require.NoError(t, err)

	other := NewInvoiceStore(docs, StoreOptions{Logger: discardLogger})
	require.NoError(t, other.SetUser(ctx, &domain.User{ID: "user-2", Name: "Other"}))
	assert.Empty(t, other.Invoices())
}

func TestInvoiceStore_InvoicesReturnsCopies(t *testing.T) {
	store, _, _ := newSignedInStore(t)
	d := draft(0, 0)
	d.Items = []domain.InvoiceItem{{Name: "A", Quantity: 1, Rate: 1}}
	inv, err := store.AddInvoice(context.Background(), d)
	require.NoError(t, err)

	list := store.Invoices()
	list[0].Items[0].Name = "mutated"
	list[0].Status = domain.StatusPaid

	got, _ := store.GetInvoiceByID(inv.ID)
	assert.Equal(t, "A", got.Items[0].Name)
	assert.Equal(t, domain.StatusPending, got.Status)
}

func TestInvoiceStore_ConcurrentMutationsStayConsistent(t *testing.T) {
	store, docs, sink := newSignedInStore(t)
	ctx := context.Background()

	seeded := make([]domain.Invoice, 5)
	for i := range seeded {
		inv, err := store.AddInvoice(ctx, draft(100, 10))
		require.NoError(t, err)
		seeded[i] = inv
	}

	statuses := []domain.InvoiceStatus{domain.StatusPaid, domain.StatusUnpaid, domain.StatusPending}
	var wg sync.WaitGroup
	for i := 0; i < 30; i++ {
		wg.Add(3)
		go func(i int) {
			defer wg.Done()
			status := statuses[i%len(statuses)]
			if _, err := store.UpdateInvoice(ctx, seeded[i%len(seeded)].ID, domain.InvoicePatch{Status: &status}); err != nil {
				t.Errorf("update: %v", err)
			}
		}(i)
		go func() {
			defer wg.Done()
			_ = store.Invoices()
			_ = store.TotalPaid()
			_ = store.PendingPayments()
			_, _ = store.GetInvoiceByID(seeded[0].ID)
		}()
		go func(i int) {
			defer wg.Done()
			if i%3 != 0 {
				return
			}
			if _, err := store.AddInvoice(ctx, draft(50, 0)); err != nil {
				t.Errorf("add: %v", err)
			}
		}(i)
	}
	wg.Wait()

	require.NoError(t, store.DeleteInvoice(ctx, seeded[4].ID))

	mirror := store.Invoices()
	assert.Len(t, mirror, 5+10-1)

	remote, err := docs.List(ctx, defaultInvoicesCollection, ports.Where(fieldUserID, testUser.ID))
	require.NoError(t, err)
	require.Len(t, remote, len(mirror))
	for _, doc := range remote {
		want, err := invoiceFromDocument(doc)
		require.NoError(t, err)
		got, ok := store.GetInvoiceByID(doc.ID)
		require.True(t, ok, "invoice %s missing from mirror", doc.ID)
		assert.Equal(t, want.Status, got.Status, "invoice %s", doc.ID)
		assert.Equal(t, want.Total, got.Total, "invoice %s", doc.ID)
	}

	assert.Equal(t, domain.SumFloat(totals(mirror)...), store.TotalInvoices())
	assert.Len(t, sink.types(), 5+30+10+1)
}

func totals(invoices []domain.Invoice) []float64 {
	out := make([]float64, len(invoices))
	for i, inv := range invoices {
		out[i] = inv.Total
	}
	return out
}
