package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/maglo/invoicing/internal/core/ports"
)

const (
	idempotencyTTL = 24 * time.Hour
	// claimTTL bounds how long a claim survives a request that dies before
	// completing or releasing it.
	claimTTL = time.Minute

	pendingClaim = "pending"
)

// releaseScript deletes KEYS[1] only while it still holds ARGV[1].
const releaseScript = `if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`

// IdempotencyStore maps a client-supplied Idempotency-Key to the invoice it
// created. Key format: <prefix>:idem:<user_id>:<key>
type IdempotencyStore struct {
	client   redis.Cmdable
	prefix   string
	ttl      time.Duration
	claimTTL time.Duration
}

func NewIdempotencyStore(client redis.Cmdable, prefix string) *IdempotencyStore {
	return &IdempotencyStore{client: client, prefix: prefix, ttl: idempotencyTTL, claimTTL: claimTTL}
}

var _ ports.IdempotencyStore = (*IdempotencyStore)(nil)

// Claim reserves key with SETNX. A lost race reports the value the winner
// stored.
func (s *IdempotencyStore) Claim(ctx context.Context, userID, key string) (bool, string, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	k := s.key(userID, key)
	ok, err := s.client.SetNX(ctx, k, pendingClaim, s.claimTTL).Result()
	if err != nil {
		return false, "", fmt.Errorf("idempotency claim: %w", err)
	}
	if ok {
		return true, "", nil
	}

	val, err := s.client.Get(ctx, k).Result()
	if errors.Is(err, redis.Nil) {
		// expired between SETNX and GET; the caller retries
		return false, "", nil
	}
	if err != nil {
		return false, "", fmt.Errorf("idempotency claim: %w", err)
	}
	return false, invoiceIDOf(val), nil
}

// Complete stores invoiceID under key for the full retention period.
func (s *IdempotencyStore) Complete(ctx context.Context, userID, key, invoiceID string) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	if err := s.client.Set(ctx, s.key(userID, key), invoiceID, s.ttl).Err(); err != nil {
		return fmt.Errorf("idempotency complete: %w", err)
	}
	return nil
}

// Release deletes key if it still maps to invoiceID.
func (s *IdempotencyStore) Release(ctx context.Context, userID, key, invoiceID string) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	err := s.client.Eval(ctx, releaseScript, []string{s.key(userID, key)}, storedValue(invoiceID)).Err()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("idempotency release: %w", err)
	}
	return nil
}

func (s *IdempotencyStore) key(userID, key string) string {
	return fmt.Sprintf("%s:idem:%s:%s", s.prefix, userID, key)
}

func storedValue(invoiceID string) string {
	if invoiceID == "" {
		return pendingClaim
	}
	return invoiceID
}

func invoiceIDOf(val string) string {
	if val == pendingClaim {
		return ""
	}
	return val
}
