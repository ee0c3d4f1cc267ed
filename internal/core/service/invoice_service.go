package service

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/maglo/invoicing/internal/core/domain"
	"github.com/maglo/invoicing/internal/core/ports"
)

// CreateResult is returned by CreateInvoice. AlreadyExisted is set when the
// idempotency key had been used before and no new invoice was created.
type CreateResult struct {
	Invoice        domain.Invoice
	AlreadyExisted bool
}

// InvoiceService layers request-level behaviour (idempotent creation and
// e-mail delivery) on top of a user's InvoiceStore.
type InvoiceService struct {
	idem   ports.IdempotencyStore
	mailer ports.Mailer
	logger zerolog.Logger
}

func NewInvoiceService(idem ports.IdempotencyStore, mailer ports.Mailer, logger zerolog.Logger) *InvoiceService {
	return &InvoiceService{idem: idem, mailer: mailer, logger: logger}
}

// CreateInvoice adds draft to store. If key is non-empty and was already used
// by this user for an invoice that still exists, that invoice is returned
// without side effects. A key whose first request is still running yields
// domain.ErrRequestInProgress.
func (s *InvoiceService) CreateInvoice(ctx context.Context, store *InvoiceStore, draft domain.InvoiceDraft, key string) (*CreateResult, error) {
	user := store.User()
	if user == nil {
		return nil, domain.ErrUnauthenticated
	}
	if key == "" || s.idem == nil {
		return s.create(ctx, store, draft, user.ID, "")
	}

	// A second pass is needed only when the remembered invoice was deleted.
	for attempt := 0; attempt < 2; attempt++ {
		claimed, id, err := s.idem.Claim(ctx, user.ID, key)
		if err != nil {
			s.logger.Warn().Err(err).Str("idempotency_key", key).Msg("idempotency claim failed, creating anyway")
			return s.create(ctx, store, draft, user.ID, "")
		}
		if claimed {
			return s.create(ctx, store, draft, user.ID, key)
		}
		if id == "" {
			return nil, domain.ErrRequestInProgress
		}
		if existing, found := store.GetInvoiceByID(id); found {
			s.logger.Info().Str("idempotency_key", key).Str("invoice_id", id).Msg("idempotent replay")
			return &CreateResult{Invoice: existing, AlreadyExisted: true}, nil
		}
		if err := s.idem.Release(ctx, user.ID, key, id); err != nil {
			return nil, err
		}
	}
	return nil, domain.ErrRequestInProgress
}

// create adds draft and settles the claim on key, if one is held.
func (s *InvoiceService) create(ctx context.Context, store *InvoiceStore, draft domain.InvoiceDraft, userID, key string) (*CreateResult, error) {
	inv, err := store.AddInvoice(ctx, draft)
	if err != nil {
		if key != "" {
			if rerr := s.idem.Release(ctx, userID, key, ""); rerr != nil {
				s.logger.Warn().Err(rerr).Str("idempotency_key", key).Msg("failed to release idempotency key")
			}
		}
		return nil, err
	}

	if key != "" {
		if err := s.idem.Complete(ctx, userID, key, inv.ID); err != nil {
			s.logger.Warn().Err(err).Str("idempotency_key", key).Msg("failed to store idempotency key")
		}
	}
	return &CreateResult{Invoice: inv}, nil
}

// SendInvoice e-mails invoice id to its client on behalf of the store's user.
func (s *InvoiceService) SendInvoice(ctx context.Context, store *InvoiceStore, id string) (domain.Invoice, error) {
	user := store.User()
	if user == nil {
		return domain.Invoice{}, domain.ErrUnauthenticated
	}
	inv, ok := store.GetInvoiceByID(id)
	if !ok {
		return domain.Invoice{}, domain.ErrInvoiceNotFound
	}

	if err := s.mailer.SendInvoice(ctx, user, inv); err != nil {
		s.logger.Error().Err(err).Str("invoice_id", id).Msg("failed to send invoice")
		return domain.Invoice{}, &domain.RemoteError{Op: "send", Message: "failed to send invoice", Err: err}
	}
	s.logger.Info().Str("invoice_id", id).Str("to", inv.ClientEmail).Msg("invoice sent")
	return inv, nil
}
