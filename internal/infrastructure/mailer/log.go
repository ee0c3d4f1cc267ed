package mailer

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/maglo/invoicing/internal/core/domain"
	"github.com/maglo/invoicing/internal/core/ports"
)

// LogMailer logs the message instead of sending it. Used when SMTP is not configured.
type LogMailer struct {
	log zerolog.Logger
}

func NewLogMailer(log zerolog.Logger) *LogMailer {
	return &LogMailer{log: log}
}

var _ ports.Mailer = (*LogMailer)(nil)

func (m *LogMailer) SendInvoice(_ context.Context, from *domain.User, inv domain.Invoice) error {
	body, err := renderInvoice(from, inv)
	if err != nil {
		return err
	}
	m.log.Info().
		Str("to", inv.ClientEmail).
		Str("subject", subject(inv)).
		Int("body_bytes", len(body)).
		Msg("smtp not configured, invoice email logged only")
	return nil
}
