package ports

import (
	"context"

	"github.com/maglo/invoicing/internal/core/domain"
)

// Authenticator is the session/authentication boundary consumed by the invoice store.
type Authenticator interface {
	// CurrentSession resolves a presented token to its user. Any failure means "no user".
	CurrentSession(ctx context.Context, token string) (*domain.User, error)
	CreateSession(ctx context.Context, email, password string) (*domain.Session, error)
	DestroySession(ctx context.Context, token string) error
	CreateAccount(ctx context.Context, name, email, password string) (*domain.User, error)
}
