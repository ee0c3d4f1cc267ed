package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/maglo/invoicing/internal/core/ports"
)

// SessionRepository stores live sessions as <prefix>:session:<id> -> user id.
// Redis expiry mirrors the token lifetime.
type SessionRepository struct {
	client redis.Cmdable
	prefix string
}

func NewSessionRepository(client redis.Cmdable, prefix string) *SessionRepository {
	return &SessionRepository{client: client, prefix: prefix}
}

var _ ports.SessionRepository = (*SessionRepository)(nil)

func (r *SessionRepository) Save(ctx context.Context, rec ports.SessionRecord, ttl time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	if err := r.client.Set(ctx, r.key(rec.ID), rec.UserID, ttl).Err(); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

// Find returns nil without error when the session does not exist.
func (r *SessionRepository) Find(ctx context.Context, id string) (*ports.SessionRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	userID, err := r.client.Get(ctx, r.key(id)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find session: %w", err)
	}
	return &ports.SessionRecord{ID: id, UserID: userID}, nil
}

func (r *SessionRepository) Delete(ctx context.Context, id string) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	if err := r.client.Del(ctx, r.key(id)).Err(); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

func (r *SessionRepository) key(id string) string {
	return fmt.Sprintf("%s:session:%s", r.prefix, id)
}
