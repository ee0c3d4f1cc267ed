// Package sqlite stores documents as JSON bodies in a single SQLite table.
package sqlite

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/gofrs/uuid/v5"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/maglo/invoicing/internal/core/ports"
)

var fieldName = regexp.MustCompile(`^[A-Za-z0-9_]+$`)

type DocumentStore struct {
	db  *sql.DB
	now func() time.Time
}

// Open creates the database file if needed, migrates it and returns a store.
func Open(dbPath string) (*DocumentStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, err
	}
	return &DocumentStore{db: db, now: time.Now}, nil
}

func (s *DocumentStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Ping reports whether the database is reachable.
func (s *DocumentStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

var _ ports.DocumentStore = (*DocumentStore)(nil)

func (s *DocumentStore) List(ctx context.Context, collection string, q ports.Query) ([]ports.Document, error) {
	var (
		where = []string{"collection = ?"}
		args  = []any{collection}
	)
	for k, v := range q.Equal {
		if !fieldName.MatchString(k) {
			return nil, fmt.Errorf("invalid field name %q", k)
		}
		where = append(where, fmt.Sprintf("json_extract(body, '$.%s') = ?", k))
		args = append(args, v)
	}
	query := "SELECT id, created_at, updated_at, body FROM documents WHERE " +
		strings.Join(where, " AND ") +
		" ORDER BY created_at DESC, rowid DESC"
	if q.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", q.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", collection, err)
	}
	defer rows.Close()

	var docs []ports.Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("scan %s: %w", collection, err)
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

func (s *DocumentStore) Get(ctx context.Context, collection, id string) (ports.Document, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT id, created_at, updated_at, body FROM documents WHERE collection = ? AND id = ?",
		collection, id)
	doc, err := scanDocument(row)
	if errors.Is(err, sql.ErrNoRows) {
		return ports.Document{}, ports.ErrDocumentNotFound
	}
	if err != nil {
		return ports.Document{}, fmt.Errorf("get %s/%s: %w", collection, id, err)
	}
	return doc, nil
}

func (s *DocumentStore) Create(ctx context.Context, collection string, fields ports.Fields) (ports.Document, error) {
	body, err := json.Marshal(fields)
	if err != nil {
		return ports.Document{}, fmt.Errorf("encode %s: %w", collection, err)
	}

	now := s.now().UTC()
	doc := ports.Document{
		ID:        strings.ReplaceAll(uuid.Must(uuid.NewV4()).String(), "-", ""),
		CreatedAt: now,
		UpdatedAt: now,
	}
	_, err = s.db.ExecContext(ctx,
		"INSERT INTO documents (collection, id, created_at, updated_at, body) VALUES (?, ?, ?, ?, ?)",
		collection, doc.ID, now.UnixNano(), now.UnixNano(), string(body))
	if err != nil {
		if isUniqueViolation(err) {
			return ports.Document{}, fmt.Errorf("insert %s: %w", collection, ports.ErrDuplicateDocument)
		}
		return ports.Document{}, fmt.Errorf("insert %s: %w", collection, err)
	}

	doc.Fields, err = decodeBody(body)
	if err != nil {
		return ports.Document{}, err
	}
	return doc, nil
}

func (s *DocumentStore) Update(ctx context.Context, collection, id string, fields ports.Fields) (ports.Document, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return ports.Document{}, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	row := tx.QueryRowContext(ctx,
		"SELECT id, created_at, updated_at, body FROM documents WHERE collection = ? AND id = ?",
		collection, id)
	doc, err := scanDocument(row)
	if errors.Is(err, sql.ErrNoRows) {
		return ports.Document{}, ports.ErrDocumentNotFound
	}
	if err != nil {
		return ports.Document{}, fmt.Errorf("get %s/%s: %w", collection, id, err)
	}

	for k, v := range fields {
		doc.Fields[k] = v
	}
	body, err := json.Marshal(doc.Fields)
	if err != nil {
		return ports.Document{}, fmt.Errorf("encode %s: %w", collection, err)
	}
	doc.UpdatedAt = s.now().UTC()

	_, err = tx.ExecContext(ctx,
		"UPDATE documents SET body = ?, updated_at = ? WHERE collection = ? AND id = ?",
		string(body), doc.UpdatedAt.UnixNano(), collection, id)
	if err != nil {
		if isUniqueViolation(err) {
			return ports.Document{}, fmt.Errorf("update %s/%s: %w", collection, id, ports.ErrDuplicateDocument)
		}
		return ports.Document{}, fmt.Errorf("update %s/%s: %w", collection, id, err)
	}
	if err := tx.Commit(); err != nil {
		return ports.Document{}, fmt.Errorf("commit: %w", err)
	}

	doc.Fields, err = decodeBody(body)
	if err != nil {
		return ports.Document{}, err
	}
	return doc, nil
}

func (s *DocumentStore) Delete(ctx context.Context, collection, id string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM documents WHERE collection = ? AND id = ?", collection, id)
	if err != nil {
		return fmt.Errorf("delete %s/%s: %w", collection, id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete %s/%s: %w", collection, id, err)
	}
	if n == 0 {
		return ports.ErrDocumentNotFound
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanDocument(row scanner) (ports.Document, error) {
	var (
		doc              ports.Document
		created, updated int64
		body             string
	)
	if err := row.Scan(&doc.ID, &created, &updated, &body); err != nil {
		return ports.Document{}, err
	}
	doc.CreatedAt = time.Unix(0, created).UTC()
	doc.UpdatedAt = time.Unix(0, updated).UTC()

	fields, err := decodeBody([]byte(body))
	if err != nil {
		return ports.Document{}, err
	}
	doc.Fields = fields
	return doc, nil
}

// decodeBody keeps numbers as json.Number so integer and decimal values
// survive unchanged.
func decodeBody(body []byte) (ports.Fields, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	fields := ports.Fields{}
	if err := dec.Decode(&fields); err != nil {
		return nil, fmt.Errorf("decode document body: %w", err)
	}
	return fields, nil
}

func isUniqueViolation(err error) bool {
	var se *sqlite.Error
	if errors.As(err, &se) {
		return se.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE || se.Code() == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY
	}
	return false
}
