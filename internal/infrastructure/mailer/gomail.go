package mailer

import (
	"context"
	"crypto/tls"
	"fmt"

	"gopkg.in/gomail.v2"

	"github.com/maglo/invoicing/internal/core/domain"
	"github.com/maglo/invoicing/internal/core/ports"
)

// Config holds the SMTP settings of the outgoing mailer.
type Config struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	FromName string
}

// SMTPMailer sends invoices through an SMTP relay. The signed-in user is set
// as Reply-To so the client answers the issuer directly.
type SMTPMailer struct {
	cfg    Config
	dialer *gomail.Dialer
}

func NewSMTPMailer(cfg Config) *SMTPMailer {
	dialer := gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password)
	dialer.TLSConfig = &tls.Config{
		ServerName: cfg.Host,
		MinVersion: tls.VersionTLS12,
	}
	return &SMTPMailer{cfg: cfg, dialer: dialer}
}

var _ ports.Mailer = (*SMTPMailer)(nil)

func (m *SMTPMailer) SendInvoice(ctx context.Context, from *domain.User, inv domain.Invoice) error {
	msg, err := m.message(from, inv)
	if err != nil {
		return err
	}

	done := make(chan error, 1)
	go func() { done <- m.dialer.DialAndSend(msg) }()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-done:
		if err != nil {
			return fmt.Errorf("failed to send email: %w", err)
		}
		return nil
	}
}

func (m *SMTPMailer) message(from *domain.User, inv domain.Invoice) (*gomail.Message, error) {
	body, err := renderInvoice(from, inv)
	if err != nil {
		return nil, err
	}

	msg := gomail.NewMessage(
		gomail.SetCharset("UTF-8"),
		gomail.SetEncoding(gomail.Base64),
	)
	fromName := m.cfg.FromName
	if from != nil && from.Name != "" {
		fromName = from.Name
	}
	msg.SetAddressHeader("From", m.cfg.From, fromName)
	if from != nil && from.Email != "" {
		msg.SetAddressHeader("Reply-To", from.Email, from.Name)
	}
	msg.SetAddressHeader("To", inv.ClientEmail, inv.ClientName)
	msg.SetHeader("Subject", subject(inv))
	msg.SetBody("text/html", body)
	return msg, nil
}
