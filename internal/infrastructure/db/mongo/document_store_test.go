package mongo

import (
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestToDocument_SplitsMetadataFromFields(t *testing.T) {
	oid := primitive.NewObjectID()
	created := time.Date(2025, 2, 1, 10, 0, 0, 0, time.UTC)

	doc := toDocument(bson.M{
		keyID:        oid,
		keyCreatedAt: primitive.NewDateTimeFromTime(created),
		keyUpdatedAt: created,
		"status":     "Paid",
		"total":      int32(12),
	})

	if doc.ID != oid.Hex() {
		t.Fatalf("expected id %s, got %s", oid.Hex(), doc.ID)
	}
	if !doc.CreatedAt.Equal(created) {
		t.Fatalf("expected created_at %v, got %v", created, doc.CreatedAt)
	}
	if _, ok := doc.Fields[keyID]; ok {
		t.Fatalf("_id must not leak into fields")
	}
	if doc.Fields["status"] != "Paid" {
		t.Fatalf("unexpected status field: %v", doc.Fields["status"])
	}
	if len(doc.Fields) != 2 {
		t.Fatalf("expected 2 fields, got %d", len(doc.Fields))
	}
}

func TestToTime_UnknownType(t *testing.T) {
	if got := toTime("yesterday"); !got.IsZero() {
		t.Fatalf("expected zero time, got %v", got)
	}
}
