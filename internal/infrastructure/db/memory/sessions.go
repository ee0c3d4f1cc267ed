package memory

import (
	"context"
	"sync"
	"time"

	"github.com/maglo/invoicing/internal/core/ports"
)

type sessionEntry struct {
	userID    string
	expiresAt time.Time
}

// SessionRepository is the in-process counterpart of the Redis session store.
type SessionRepository struct {
	mu       sync.Mutex
	sessions map[string]sessionEntry
	now      func() time.Time
}

func NewSessionRepository() *SessionRepository {
	return &SessionRepository{sessions: make(map[string]sessionEntry), now: time.Now}
}

var _ ports.SessionRepository = (*SessionRepository)(nil)

func (r *SessionRepository) Save(_ context.Context, rec ports.SessionRecord, ttl time.Duration) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[rec.ID] = sessionEntry{userID: rec.UserID, expiresAt: r.now().Add(ttl)}
	return nil
}

func (r *SessionRepository) Find(_ context.Context, id string) (*ports.SessionRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.sessions[id]
	if !ok {
		return nil, nil
	}
	if !r.now().Before(e.expiresAt) {
		delete(r.sessions, id)
		return nil, nil
	}
	return &ports.SessionRecord{ID: id, UserID: e.userID}, nil
}

func (r *SessionRepository) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, id)
	return nil
}

// IdempotencyStore is the in-process counterpart of the Redis idempotency
// store. An empty value marks a claim that has not completed.
type IdempotencyStore struct {
	mu   sync.Mutex
	keys map[string]string
}

func NewIdempotencyStore() *IdempotencyStore {
	return &IdempotencyStore{keys: make(map[string]string)}
}

var _ ports.IdempotencyStore = (*IdempotencyStore)(nil)

func (s *IdempotencyStore) Claim(_ context.Context, userID, key string) (bool, string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := userID + ":" + key
	if id, ok := s.keys[k]; ok {
		return false, id, nil
	}
	s.keys[k] = ""
	return true, "", nil
}

func (s *IdempotencyStore) Complete(_ context.Context, userID, key, invoiceID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.keys[userID+":"+key] = invoiceID
	return nil
}

func (s *IdempotencyStore) Release(_ context.Context, userID, key, invoiceID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := userID + ":" + key
	if id, ok := s.keys[k]; ok && id == invoiceID {
		delete(s.keys, k)
	}
	return nil
}
