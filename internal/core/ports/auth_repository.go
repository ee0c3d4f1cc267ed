package ports

import (
	"context"
	"time"
)

// SessionRecord is the server-side half of an issued session.
type SessionRecord struct {
	ID     string
	UserID string
}

// SessionRepository keeps the set of live sessions. A token whose record is
// missing is treated as signed out even if its signature is still valid.
type SessionRepository interface {
	Save(ctx context.Context, rec SessionRecord, ttl time.Duration) error
	Find(ctx context.Context, id string) (*SessionRecord, error)
	Delete(ctx context.Context, id string) error
}

// IdempotencyStore remembers which invoice a client-supplied key produced.
// A key is claimed before the invoice is created, so two requests carrying
// the same key never both create one.
type IdempotencyStore interface {
	// Claim reserves key for userID. When the key is already taken, claimed
	// is false and invoiceID is the invoice recorded for it, or "" while the
	// request holding the claim has not completed.
	Claim(ctx context.Context, userID, key string) (claimed bool, invoiceID string, err error)
	// Complete records the invoice created under a claimed key.
	Complete(ctx context.Context, userID, key, invoiceID string) error
	// Release forgets key if it still maps to invoiceID ("" for a claim that
	// never completed).
	Release(ctx context.Context, userID, key, invoiceID string) error
}
