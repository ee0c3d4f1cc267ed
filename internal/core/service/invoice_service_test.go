package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maglo/invoicing/internal/core/domain"
	"github.com/maglo/invoicing/internal/core/ports"
	"github.com/maglo/invoicing/internal/infrastructure/db/memory"
)

type stubMailer struct {
	sent []domain.Invoice
	from *domain.User
	err  error
}

func (m *stubMailer) SendInvoice(_ context.Context, from *domain.User, inv domain.Invoice) error {
	if m.err != nil {
		return m.err
	}
	m.from = from
	m.sent = append(m.sent, inv)
	return nil
}

func TestInvoiceService_CreateIdempotencyReplay(t *testing.T) {
	store, _, _ := newSignedInStore(t)
	svc := NewInvoiceService(memory.NewIdempotencyStore(), &stubMailer{}, discardLogger)
	ctx := context.Background()

	first, err := svc.CreateInvoice(ctx, store, draft(50, 0), "key-abc-123")
	require.NoError(t, err)
	assert.False(t, first.AlreadyExisted)

	second, err := svc.CreateInvoice(ctx, store, draft(50, 0), "key-abc-123")
	require.NoError(t, err)
	assert.True(t, second.AlreadyExisted)
	assert.Equal(t, first.Invoice.ID, second.Invoice.ID)
	assert.Len(t, store.Invoices(), 1)
}

func TestInvoiceService_CreateWithoutKeyAlwaysCreates(t *testing.T) {
	store, _, _ := newSignedInStore(t)
	svc := NewInvoiceService(memory.NewIdempotencyStore(), &stubMailer{}, discardLogger)
	ctx := context.Background()

	_, err := svc.CreateInvoice(ctx, store, draft(50, 0), "")
	require.NoError(t, err)
	_, err = svc.CreateInvoice(ctx, store, draft(50, 0), "")
	require.NoError(t, err)
	assert.Len(t, store.Invoices(), 2)
}

func TestInvoiceService_ReplayOfDeletedInvoiceCreatesAgain(t *testing.T) {
	store, _, _ := newSignedInStore(t)
	svc := NewInvoiceService(memory.NewIdempotencyStore(), &stubMailer{}, discardLogger)
	ctx := context.Background()

	first, err := svc.CreateInvoice(ctx, store, draft(50, 0), "k")
	require.NoError(t, err)
	require.NoError(t, store.DeleteInvoice(ctx, first.Invoice.ID))

	second, err := svc.CreateInvoice(ctx, store, draft(50, 0), "k")
	require.NoError(t, err)
	assert.False(t, second.AlreadyExisted)
	assert.NotEqual(t, first.Invoice.ID, second.Invoice.ID)
}

func TestInvoiceService_SendInvoice(t *testing.T) {
	store, _, _ := newSignedInStore(t)
	mailer := &stubMailer{}
	svc := NewInvoiceService(nil, mailer, discardLogger)
	ctx := context.Background()

	inv, err := store.AddInvoice(ctx, draft(50, 0))
	require.NoError(t, err)

	sent, err := svc.SendInvoice(ctx, store, inv.ID)
	require.NoError(t, err)
	assert.Equal(t, inv.ID, sent.ID)
	require.Len(t, mailer.sent, 1)
	assert.Equal(t, testUser.ID, mailer.from.ID)

	_, err = svc.SendInvoice(ctx, store, "missing")
	assert.ErrorIs(t, err, domain.ErrInvoiceNotFound)

	mailer.err = errors.New("smtp 421")
	_, err = svc.SendInvoice(ctx, store, inv.ID)
	assert.ErrorIs(t, err, domain.ErrRemote)
}

// slowDocs delays every create so that concurrent requests overlap.
type slowDocs struct {
	*flakyDocs
	delay time.Duration
}

func (d slowDocs) Create(ctx context.Context, c string, f ports.Fields) (ports.Document, error) {
	time.Sleep(d.delay)
	return d.flakyDocs.Create(ctx, c, f)
}

func TestInvoiceService_ConcurrentRetriesCreateOneInvoice(t *testing.T) {
	docs := slowDocs{flakyDocs: newFlakyDocs(), delay: 20 * time.Millisecond}
	store := NewInvoiceStore(docs, StoreOptions{Logger: discardLogger, Clock: func() time.Time { return fixedNow }})
	require.NoError(t, store.SetUser(context.Background(), testUser))
	svc := NewInvoiceService(memory.NewIdempotencyStore(), &stubMailer{}, discardLogger)

	const retries = 5
	var (
		wg      sync.WaitGroup
		start   = make(chan struct{})
		results = make([]*CreateResult, retries)
		errs    = make([]error, retries)
	)
	for i := 0; i < retries; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			results[i], errs[i] = svc.CreateInvoice(context.Background(), store, draft(50, 0), "same-key")
		}(i)
	}
	close(start)
	wg.Wait()

	require.Len(t, store.Invoices(), 1)
	created := store.Invoices()[0].ID

	fresh := 0
	for i := range results {
		if errs[i] != nil {
			assert.ErrorIs(t, errs[i], domain.ErrRequestInProgress)
			continue
		}
		assert.Equal(t, created, results[i].Invoice.ID)
		if !results[i].AlreadyExisted {
			fresh++
		}
	}
	assert.Equal(t, 1, fresh)

	// once settled, a retry replays the invoice
	again, err := svc.CreateInvoice(context.Background(), store, draft(50, 0), "same-key")
	require.NoError(t, err)
	assert.True(t, again.AlreadyExisted)
	assert.Equal(t, created, again.Invoice.ID)
}

func TestInvoiceService_FailedCreateReleasesKey(t *testing.T) {
	store, docs, _ := newSignedInStore(t)
	svc := NewInvoiceService(memory.NewIdempotencyStore(), &stubMailer{}, discardLogger)
	ctx := context.Background()

	docs.failOn("create", errors.New("connection reset"))
	_, err := svc.CreateInvoice(ctx, store, draft(50, 0), "k")
	require.ErrorIs(t, err, domain.ErrRemote)

	docs.failOn("create", nil)
	res, err := svc.CreateInvoice(ctx, store, draft(50, 0), "k")
	require.NoError(t, err)
	assert.False(t, res.AlreadyExisted)
	assert.Len(t, store.Invoices(), 1)
}

func TestInvoiceService_KeyInProgress(t *testing.T) {
	store, _, _ := newSignedInStore(t)
	idem := memory.NewIdempotencyStore()
	svc := NewInvoiceService(idem, &stubMailer{}, discardLogger)
	ctx := context.Background()

	claimed, _, err := idem.Claim(ctx, testUser.ID, "k")
	require.NoError(t, err)
	require.True(t, claimed)

	_, err = svc.CreateInvoice(ctx, store, draft(50, 0), "k")
	assert.ErrorIs(t, err, domain.ErrRequestInProgress)
	assert.Empty(t, store.Invoices())
}
