// Package memory is an in-process ports.DocumentStore used for development
// and tests. Nothing survives a restart.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/gofrs/uuid/v5"

	"github.com/maglo/invoicing/internal/core/ports"
)

type record struct {
	doc ports.Document
	seq uint64
}

// DocumentStore keeps collections in maps guarded by a single RW mutex.
type DocumentStore struct {
	mu          sync.RWMutex
	collections map[string]map[string]record
	unique      map[string][]string
	seq         uint64
	now         func() time.Time
}

type Option func(*DocumentStore)

// WithUniqueField rejects a second document in collection with the same value for field.
func WithUniqueField(collection, field string) Option {
	return func(s *DocumentStore) {
		s.unique[collection] = append(s.unique[collection], field)
	}
}

// WithClock overrides the time source for CreatedAt and UpdatedAt.
func WithClock(now func() time.Time) Option {
	return func(s *DocumentStore) { s.now = now }
}

func NewDocumentStore(opts ...Option) *DocumentStore {
	s := &DocumentStore{
		collections: make(map[string]map[string]record),
		unique:      make(map[string][]string),
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

var _ ports.DocumentStore = (*DocumentStore)(nil)

func (s *DocumentStore) List(_ context.Context, collection string, q ports.Query) ([]ports.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	matched := make([]record, 0)
	for _, r := range s.collections[collection] {
		if matches(r.doc.Fields, q.Equal) {
			matched = append(matched, r)
		}
	}
	sort.Slice(matched, func(i, j int) bool {
		a, b := matched[i], matched[j]
		if !a.doc.CreatedAt.Equal(b.doc.CreatedAt) {
			return a.doc.CreatedAt.After(b.doc.CreatedAt)
		}
		return a.seq > b.seq
	})
	if q.Limit > 0 && len(matched) > q.Limit {
		matched = matched[:q.Limit]
	}

	out := make([]ports.Document, len(matched))
	for i, r := range matched {
		out[i] = clone(r.doc)
	}
	return out, nil
}

func (s *DocumentStore) Get(_ context.Context, collection, id string) (ports.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.collections[collection][id]
	if !ok {
		return ports.Document{}, ports.ErrDocumentNotFound
	}
	return clone(r.doc), nil
}

func (s *DocumentStore) Create(_ context.Context, collection string, fields ports.Fields) (ports.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkUnique(collection, "", fields); err != nil {
		return ports.Document{}, err
	}

	col, ok := s.collections[collection]
	if !ok {
		col = make(map[string]record)
		s.collections[collection] = col
	}

	now := s.now().UTC()
	s.seq++
	doc := ports.Document{
		ID:        uuid.Must(uuid.NewV4()).String(),
		CreatedAt: now,
		UpdatedAt: now,
		Fields:    copyFields(fields),
	}
	col[doc.ID] = record{doc: doc, seq: s.seq}
	return clone(doc), nil
}

func (s *DocumentStore) Update(_ context.Context, collection, id string, fields ports.Fields) (ports.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.collections[collection][id]
	if !ok {
		return ports.Document{}, ports.ErrDocumentNotFound
	}
	if err := s.checkUnique(collection, id, fields); err != nil {
		return ports.Document{}, err
	}
	for k, v := range fields {
		r.doc.Fields[k] = v
	}
	r.doc.UpdatedAt = s.now().UTC()
	s.collections[collection][id] = r
	return clone(r.doc), nil
}

func (s *DocumentStore) Delete(_ context.Context, collection, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.collections[collection][id]; !ok {
		return ports.ErrDocumentNotFound
	}
	delete(s.collections[collection], id)
	return nil
}

// Len returns the number of documents in collection.
func (s *DocumentStore) Len(collection string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.collections[collection])
}

func (s *DocumentStore) checkUnique(collection, selfID string, fields ports.Fields) error {
	for _, field := range s.unique[collection] {
		v, ok := fields[field]
		if !ok {
			continue
		}
		for id, r := range s.collections[collection] {
			if id != selfID && equal(r.doc.Fields[field], v) {
				return fmt.Errorf("%s.%s: %w", collection, field, ports.ErrDuplicateDocument)
			}
		}
	}
	return nil
}

func matches(fields ports.Fields, equalTo map[string]any) bool {
	for k, want := range equalTo {
		if !equal(fields[k], want) {
			return false
		}
	}
	return true
}

func equal(a, b any) bool {
	return fmt.Sprint(a) == fmt.Sprint(b)
}

func clone(doc ports.Document) ports.Document {
	doc.Fields = copyFields(doc.Fields)
	return doc
}

func copyFields(f ports.Fields) ports.Fields {
	out := make(ports.Fields, len(f))
	for k, v := range f {
		out[k] = v
	}
	return out
}
