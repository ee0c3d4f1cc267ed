package ports

import (
	"context"
	"errors"
	"time"
)

var (
	ErrDocumentNotFound  = errors.New("document not found")
	ErrDuplicateDocument = errors.New("document already exists")
)

// Fields is the attribute set of a document as the store sees it.
// Values are JSON-compatible scalars: string, float64/int64, bool.
type Fields map[string]any

// Document is a stored record addressed by collection and ID.
type Document struct {
	ID        string
	CreatedAt time.Time
	UpdatedAt time.Time
	Fields    Fields
}

// Query selects documents by field equality. Results are ordered by creation
// time, newest first.
type Query struct {
	Equal map[string]any
	Limit int // 0 means no limit
}

// DocumentStore is the remote document collaborator. Every backend (Mongo,
// SQLite, in-memory) implements it; services never see driver types.
type DocumentStore interface {
	List(ctx context.Context, collection string, q Query) ([]Document, error)
	Get(ctx context.Context, collection, id string) (Document, error)
	Create(ctx context.Context, collection string, fields Fields) (Document, error)
	// Update sets only the given fields and returns the full updated document.
	Update(ctx context.Context, collection, id string, fields Fields) (Document, error)
	Delete(ctx context.Context, collection, id string) error
}

// Where is a small helper for single-field equality queries.
func Where(field string, value any) Query {
	return Query{Equal: map[string]any{field: value}}
}
