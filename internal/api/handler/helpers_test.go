package handler

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/maglo/invoicing/internal/core/domain"
	"github.com/maglo/invoicing/internal/core/service"
	"github.com/maglo/invoicing/internal/infrastructure/db/memory"
)

var fixedNow = time.Date(2025, 3, 15, 10, 0, 0, 0, time.UTC)

func signedInStore(t *testing.T) *service.InvoiceStore {
	t.Helper()
	store := service.NewInvoiceStore(memory.NewDocumentStore(), service.StoreOptions{
		Logger: zerolog.Nop(),
		Clock:  func() time.Time { return fixedNow },
	})
	if err := store.SetUser(context.Background(), &domain.User{ID: "user-1", Name: "Ann Lee", Email: "ann@example.com"}); err != nil {
		t.Fatalf("set user: %v", err)
	}
	return store
}

func addInvoice(t *testing.T, store *service.InvoiceStore, client string, amount float64, status domain.InvoiceStatus) domain.Invoice {
	t.Helper()
	ctx := context.Background()
	inv, err := store.AddInvoice(ctx, domain.InvoiceDraft{
		ClientName:  client,
		ClientEmail: "billing@client.test",
		Amount:      amount,
		VAT:         10,
		IssuedDate:  "2025-03-14",
		DueDate:     "2025-03-17",
	})
	if err != nil {
		t.Fatalf("add invoice: %v", err)
	}
	if status != domain.StatusPending {
		inv, err = store.UpdateInvoice(ctx, inv.ID, domain.InvoicePatch{Status: &status})
		if err != nil {
			t.Fatalf("update status: %v", err)
		}
	}
	return inv
}
