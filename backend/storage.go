package backend

import (
	"context"

	"crdtbackend/storage"
)

// SnapshotStore persists and retrieves whole-document snapshots,
// optionally backing Save/Load (SPEC_FULL.md "Supplemented Features"
// item 3). storage.MongoSnapshotStore satisfies this.
type SnapshotStore interface {
	Save(ctx context.Context, id string, blob []byte, maxOp uint64) error
	Load(ctx context.Context, id string) (*storage.DocumentSnapshot, error)
}

// ChangeCache optionally accelerates GetChanges by caching encoded
// change blobs keyed by hash, so a peer re-requesting a just-seen
// change is served without re-encoding it. storage.RedisChangeCache
// satisfies this.
type ChangeCache interface {
	Put(ctx context.Context, hash string, blob []byte) error
	Get(ctx context.Context, hash string) ([]byte, error)
}
