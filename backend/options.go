package backend

import (
	"crdtbackend/codec"

	"go.uber.org/zap"
)

// Options configures a Backend at construction time, in the
// functional-options style of the teacher's nodestorage/v2/options.go
// EditOption family.
type Options struct {
	logger              *zap.Logger
	assertions          bool
	versionHistoryLimit int
	codec               codec.Codec
	snapshotStore       SnapshotStore
	changeCache         ChangeCache
}

// Option mutates an Options during Init/Load.
type Option func(*Options)

// WithLogger injects a structured logger; the default is zap.NewNop().
func WithLogger(logger *zap.Logger) Option {
	return func(o *Options) { o.logger = logger }
}

// WithAssertions enables the canonical-change check described in
// spec.md §9's Open Questions: when applyLocalChange is given a reference
// canonical change, the backend's computed change is compared with it
// and ErrAssertion is returned on a mismatch. The check compares actor,
// seq, startOp, the number of ops and the sorted deps; the contents of
// the ops, time and message are not compared. Defaults to false
// (production mode); tests typically enable it.
func WithAssertions(enabled bool) Option {
	return func(o *Options) { o.assertions = enabled }
}

// WithVersionHistoryLimit bounds how many version-registry entries are
// retained (spec.md §4.5); 0 means unbounded.
func WithVersionHistoryLimit(limit int) Option {
	return func(o *Options) { o.versionHistoryLimit = limit }
}

// WithCodec overrides the wire codec used by Save/Load/GetChanges; the
// default is codec.NewJSONCodec.
func WithCodec(c codec.Codec) Option {
	return func(o *Options) { o.codec = c }
}

// WithSnapshotStore configures a durable store (e.g. storage.MongoSnapshotStore)
// that Save/Load persist whole-document snapshots through, in addition to
// the codec-encoded blob they already return/accept directly. Nil (the
// default) disables persistence beyond the returned/given blob.
func WithSnapshotStore(store SnapshotStore) Option {
	return func(o *Options) { o.snapshotStore = store }
}

// WithChangeCache configures a cache (e.g. storage.RedisChangeCache) that
// GetChanges consults before re-encoding an already-seen change. Nil (the
// default) disables caching.
func WithChangeCache(cache ChangeCache) Option {
	return func(o *Options) { o.changeCache = cache }
}

func buildOptions(opts ...Option) Options {
	o := Options{
		logger: zap.NewNop(),
		codec:  codec.NewJSONCodec(nil),
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
