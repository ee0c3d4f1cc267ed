package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/maglo/invoicing/internal/core/ports"
)

const (
	keyID        = "_id"
	keyCreatedAt = "created_at"
	keyUpdatedAt = "updated_at"
)

// DocumentStore implements ports.DocumentStore with one Mongo collection per
// store collection. Document IDs are ObjectID hex strings.
type DocumentStore struct {
	db *mongo.Database
}

func NewDocumentStore(db *mongo.Database) *DocumentStore {
	return &DocumentStore{db: db}
}

var _ ports.DocumentStore = (*DocumentStore)(nil)

func (s *DocumentStore) List(ctx context.Context, collection string, q ports.Query) ([]ports.Document, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	filter := bson.M{}
	for k, v := range q.Equal {
		filter[k] = v
	}
	opts := options.Find().SetSort(bson.D{{Key: keyCreatedAt, Value: -1}, {Key: keyID, Value: -1}})
	if q.Limit > 0 {
		opts.SetLimit(int64(q.Limit))
	}

	cur, err := s.db.Collection(collection).Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("find %s: %w", collection, err)
	}
	defer cur.Close(ctx)

	var raw []bson.M
	if err := cur.All(ctx, &raw); err != nil {
		return nil, fmt.Errorf("decode %s: %w", collection, err)
	}
	docs := make([]ports.Document, 0, len(raw))
	for _, m := range raw {
		docs = append(docs, toDocument(m))
	}
	return docs, nil
}

func (s *DocumentStore) Get(ctx context.Context, collection, id string) (ports.Document, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return ports.Document{}, ports.ErrDocumentNotFound
	}

	var m bson.M
	err = s.db.Collection(collection).FindOne(ctx, bson.M{keyID: oid}).Decode(&m)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return ports.Document{}, ports.ErrDocumentNotFound
		}
		return ports.Document{}, fmt.Errorf("find %s/%s: %w", collection, id, err)
	}
	return toDocument(m), nil
}

func (s *DocumentStore) Create(ctx context.Context, collection string, fields ports.Fields) (ports.Document, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	now := time.Now().UTC().Truncate(time.Millisecond)
	oid := primitive.NewObjectID()
	m := bson.M{keyID: oid, keyCreatedAt: now, keyUpdatedAt: now}
	for k, v := range fields {
		m[k] = v
	}

	if _, err := s.db.Collection(collection).InsertOne(ctx, m); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ports.Document{}, fmt.Errorf("insert %s: %w", collection, ports.ErrDuplicateDocument)
		}
		return ports.Document{}, fmt.Errorf("insert %s: %w", collection, err)
	}
	return ports.Document{ID: oid.Hex(), CreatedAt: now, UpdatedAt: now, Fields: copyFields(fields)}, nil
}

func (s *DocumentStore) Update(ctx context.Context, collection, id string, fields ports.Fields) (ports.Document, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return ports.Document{}, ports.ErrDocumentNotFound
	}

	set := bson.M{keyUpdatedAt: time.Now().UTC().Truncate(time.Millisecond)}
	for k, v := range fields {
		set[k] = v
	}

	var m bson.M
	err = s.db.Collection(collection).FindOneAndUpdate(ctx,
		bson.M{keyID: oid},
		bson.M{"$set": set},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&m)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return ports.Document{}, ports.ErrDocumentNotFound
		}
		if mongo.IsDuplicateKeyError(err) {
			return ports.Document{}, fmt.Errorf("update %s/%s: %w", collection, id, ports.ErrDuplicateDocument)
		}
		return ports.Document{}, fmt.Errorf("update %s/%s: %w", collection, id, err)
	}
	return toDocument(m), nil
}

func (s *DocumentStore) Delete(ctx context.Context, collection, id string) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return ports.ErrDocumentNotFound
	}
	res, err := s.db.Collection(collection).DeleteOne(ctx, bson.M{keyID: oid})
	if err != nil {
		return fmt.Errorf("delete %s/%s: %w", collection, id, err)
	}
	if res.DeletedCount == 0 {
		return ports.ErrDocumentNotFound
	}
	return nil
}

// EnsureIndexes creates the indexes the invoice and user queries rely on.
func (s *DocumentStore) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	invoices := []mongo.IndexModel{
		{Keys: bson.D{{Key: "userId", Value: 1}, {Key: keyCreatedAt, Value: -1}}},
		{Keys: bson.D{{Key: "invoiceNumber", Value: 1}}},
	}
	if _, err := s.db.Collection("invoices").Indexes().CreateMany(ctx, invoices); err != nil {
		return fmt.Errorf("invoice indexes: %w", err)
	}

	users := []mongo.IndexModel{
		{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true)},
	}
	if _, err := s.db.Collection("users").Indexes().CreateMany(ctx, users); err != nil {
		return fmt.Errorf("user indexes: %w", err)
	}
	return nil
}

func toDocument(m bson.M) ports.Document {
	doc := ports.Document{Fields: ports.Fields{}}
	for k, v := range m {
		switch k {
		case keyID:
			if oid, ok := v.(primitive.ObjectID); ok {
				doc.ID = oid.Hex()
			} else {
				doc.ID = fmt.Sprint(v)
			}
		case keyCreatedAt:
			doc.CreatedAt = toTime(v)
		case keyUpdatedAt:
			doc.UpdatedAt = toTime(v)
		default:
			doc.Fields[k] = v
		}
	}
	return doc
}

func toTime(v any) time.Time {
	switch t := v.(type) {
	case primitive.DateTime:
		return t.Time().UTC()
	case time.Time:
		return t.UTC()
	}
	return time.Time{}
}

func copyFields(f ports.Fields) ports.Fields {
	out := make(ports.Fields, len(f))
	for k, v := range f {
		out[k] = v
	}
	return out
}
