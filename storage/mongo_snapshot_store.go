// Package storage implements optional adapters the backend facade may
// delegate to: snapshot persistence for Save/Load and an encoded-change
// cache for GetChanges (SPEC_FULL.md "Supplemented Features" item 3). Neither adapter is imported by internal/opset or
// internal/changeproc: persistence is a concern of the facade, not of
// the reconciliation engine itself.
package storage

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.uber.org/zap"
)

// DocumentSnapshot is the persisted shape of one document's encoded
// history blob (as produced by codec.Codec.EncodeDocument), keyed by
// the document ID the caller assigns.
type DocumentSnapshot struct {
	ID        string    `bson:"_id"`
	Blob      []byte    `bson:"blob"`
	MaxOp     uint64    `bson:"maxOp"`
	UpdatedAt time.Time `bson:"updatedAt"`
}

// MongoSnapshotStore persists whole-document snapshots to a Mongo
// collection, grounded on the teacher's nodestorage/v2/storage_impl.go
// (collection handle + options-struct constructor + upsert-by-ID save
// path), generalized from a generic Cachable[T] document store to the
// single DocumentSnapshot shape this engine needs.
type MongoSnapshotStore struct {
	collection *mongo.Collection
	logger     *zap.Logger
}

// NewMongoSnapshotStore constructs a store backed by collection.
func NewMongoSnapshotStore(collection *mongo.Collection, logger *zap.Logger) *MongoSnapshotStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MongoSnapshotStore{collection: collection, logger: logger}
}

// Save upserts the document's encoded snapshot by id.
func (s *MongoSnapshotStore) Save(ctx context.Context, id string, blob []byte, maxOp uint64) error {
	filter := bson.M{"_id": id}
	update := bson.M{"$set": bson.M{
		"blob":      blob,
		"maxOp":     maxOp,
		"updatedAt": time.Now(),
	}}
	opts := options.UpdateOne().SetUpsert(true)

	if _, err := s.collection.UpdateOne(ctx, filter, update, opts); err != nil {
		return errors.Wrapf(err, "saving snapshot %s", id)
	}
	s.logger.Debug("saved document snapshot", zap.String("id", id), zap.Uint64("maxOp", maxOp))
	return nil
}

// Load retrieves the most recently saved snapshot for id.
func (s *MongoSnapshotStore) Load(ctx context.Context, id string) (*DocumentSnapshot, error) {
	var doc DocumentSnapshot
	err := s.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrSnapshotNotFound{ID: id}
	}
	if err != nil {
		return nil, errors.Wrapf(err, "loading snapshot %s", id)
	}
	return &doc, nil
}

// ErrSnapshotNotFound reports that no snapshot exists for the given ID.
type ErrSnapshotNotFound struct {
	ID string
}

func (e ErrSnapshotNotFound) Error() string {
	return "snapshot not found: " + e.ID
}
