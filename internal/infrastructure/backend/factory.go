// Package backend builds the document store selected by configuration.
package backend

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	mongodriver "go.mongodb.org/mongo-driver/mongo"

	"github.com/maglo/invoicing/internal/core/ports"
	"github.com/maglo/invoicing/internal/infrastructure/db/memory"
	"github.com/maglo/invoicing/internal/infrastructure/db/mongo"
	"github.com/maglo/invoicing/internal/infrastructure/db/sqlite"
)

// Type names a document store implementation.
type Type string

const (
	Mongo  Type = "mongo"
	SQLite Type = "sqlite"
	Memory Type = "memory"
)

func (t Type) IsValid() bool {
	switch t {
	case Mongo, SQLite, Memory:
		return true
	}
	return false
}

// Config holds what any of the backends may need.
type Config struct {
	Type Type

	MongoURI      string
	MongoDatabase string

	SQLitePath string
}

// Pinger reports whether the backend's remote dependency is reachable.
type Pinger = func(ctx context.Context) error

// Result is a ready document store plus its lifecycle hooks. Ping and
// EnsureIndexes are never nil.
type Result struct {
	Docs          ports.DocumentStore
	Ping          Pinger
	EnsureIndexes func(ctx context.Context) error
	Cleanup       func(ctx context.Context) error
}

func noop(context.Context) error { return nil }

// New opens the backend named by cfg.Type.
func New(ctx context.Context, cfg Config, log zerolog.Logger) (*Result, error) {
	if !cfg.Type.IsValid() {
		return nil, fmt.Errorf("invalid backend type: %s", cfg.Type)
	}

	switch cfg.Type {
	case SQLite:
		return newSQLite(cfg, log)
	case Memory:
		return newMemory(log), nil
	default:
		return newMongo(ctx, cfg, log)
	}
}

func newMongo(ctx context.Context, cfg Config, log zerolog.Logger) (*Result, error) {
	client, db, err := mongo.Connect(ctx, mongo.Config{URI: cfg.MongoURI, Database: cfg.MongoDatabase})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize mongo backend: %w", err)
	}
	store := mongo.NewDocumentStore(db)

	log.Info().Str("database", cfg.MongoDatabase).Msg("initialized mongo backend")
	return &Result{
		Docs:          store,
		Ping:          func(ctx context.Context) error { return client.Ping(ctx, nil) },
		EnsureIndexes: store.EnsureIndexes,
		Cleanup:       disconnect(client),
	}, nil
}

func disconnect(client *mongodriver.Client) func(ctx context.Context) error {
	return func(ctx context.Context) error { return client.Disconnect(ctx) }
}

func newSQLite(cfg Config, log zerolog.Logger) (*Result, error) {
	store, err := sqlite.Open(cfg.SQLitePath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize sqlite backend: %w", err)
	}

	log.Info().Str("db_path", cfg.SQLitePath).Msg("initialized sqlite backend")
	return &Result{
		Docs:          store,
		Ping:          store.Ping,
		EnsureIndexes: noop,
		Cleanup:       func(context.Context) error { return store.Close() },
	}, nil
}

func newMemory(log zerolog.Logger) *Result {
	log.Warn().Msg("initialized memory backend, data is lost on restart")
	return &Result{
		Docs:          memory.NewDocumentStore(memory.WithUniqueField("users", "email")),
		Ping:          noop,
		EnsureIndexes: noop,
		Cleanup:       noop,
	}
}
