// Package backend is the public facade of the operation-set
// reconciliation engine (spec.md §4.6, §6): it owns the current opSet,
// the version registry, and the object-ID translation table, and
// exposes Init/Clone/Free/ApplyChanges/ApplyLocalChange/Save/Load/
// LoadChanges/GetPatch/GetChanges/GetMissingDeps.
//
// Grounded on the teacher's nodestorage/v2/storage_impl.go: an
// options-struct constructor, a mutex-guarded closed/frozen flag
// checked at the top of every public method, and a small typed-error
// vocabulary surfaced instead of raw fmt.Errorf strings.
package backend

import (
	"context"
	"sync"

	"crdtbackend/internal/changeproc"
	"crdtbackend/internal/opset"
	"crdtbackend/internal/opsetmodel"
	"crdtbackend/internal/predfill"
	"crdtbackend/internal/versionreg"

	"github.com/pkg/errors"
)

// Backend is the container described in spec.md §3 "Backend container":
// the current opSet, the version list, the objectIDs translation table,
// and a frozen flag. Once frozen it rejects further use (spec.md I5);
// every mutating operation freezes its receiver and returns a new,
// independent Backend (spec.md §4.6, §9 "Freeze/ownership").
type Backend struct {
	mu        sync.Mutex
	frozen    bool
	opSet     *opset.OpSet
	registry  *versionreg.Registry
	objectIDs changeproc.ObjectIDs
	opts      Options
}

// Init creates a backend with an empty opSet and a single version entry
// at version 0 (spec.md §6 "init").
func Init(opts ...Option) *Backend {
	o := buildOptions(opts...)
	os := opset.New(o.logger)
	reg := versionreg.New(o.logger, os, o.versionHistoryLimit)
	return &Backend{
		opSet:     os,
		registry:  reg,
		objectIDs: changeproc.ObjectIDs{},
		opts:      o,
	}
}

func (b *Backend) checkFresh() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.frozen {
		return errors.WithStack(ErrStaleBackend{})
	}
	return nil
}

func (b *Backend) freeze() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.frozen = true
}

// Clone returns a new Backend sharing the receiver's current state; the
// receiver itself is left usable, unlike the mutating operations
// ApplyChanges, ApplyLocalChange and LoadChanges (spec.md §4.6 "clone returns a fresh container sharing the same
// state (the original is not frozen)").
func (b *Backend) Clone() (*Backend, error) {
	if err := b.checkFresh(); err != nil {
		return nil, err
	}
	return &Backend{
		opSet:     b.opSet,
		registry:  b.registry,
		objectIDs: b.objectIDs,
		opts:      b.opts,
	}, nil
}

// Free discards the backend's state and freezes it (spec.md §4.6 "free
// nulls the state and freezes").
func (b *Backend) Free() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.opSet = nil
	b.registry = nil
	b.objectIDs = nil
	b.frozen = true
}

func cloneObjectIDs(ids changeproc.ObjectIDs) changeproc.ObjectIDs {
	out := make(changeproc.ObjectIDs, len(ids))
	for k, v := range ids {
		out[k] = v
	}
	return out
}

// ApplyChanges applies a batch of remote changes to the backend's
// current opSet (spec.md §6 "applyChanges"), clears every version
// entry's localOnly flag (spec.md §4.5), and returns the successor
// backend plus the resulting patch.
func (b *Backend) ApplyChanges(changes []opsetmodel.Change) (*Backend, *opset.Patch, error) {
	if err := b.checkFresh(); err != nil {
		return nil, nil, err
	}

	newOS := b.opSet.Clone()
	diffs := opset.NewDiffs()
	for i, c := range changes {
		if err := newOS.AddChange(c, diffs); err != nil {
			return nil, nil, errors.Wrapf(err, "applying remote change %d", i)
		}
	}

	newReg := b.registry.Clone()
	newReg.OnApplyRemote()

	patch := newOS.FinalizePatch(diffs)
	patch.Version = newReg.Latest().Version

	next := &Backend{opSet: newOS, registry: newReg, objectIDs: b.objectIDs, opts: b.opts}
	b.freeze()
	return next, patch, nil
}

// LoadChanges applies changes to rebuild a backend with no patch
// captured (spec.md §6 "loadChanges"), used when reconstructing state
// from stored history rather than reacting to a live update.
func (b *Backend) LoadChanges(changes []opsetmodel.Change) (*Backend, error) {
	next, _, err := b.ApplyChanges(changes)
	return next, err
}

// ApplyLocalChange canonicalizes a front-end change request against the
// version entry it references, applies it to the backend's current
// opSet, advances the version registry, and returns the successor
// backend plus the resulting (incremental, actor/seq-tagged) patch
// (spec.md §4.3, §4.4, §4.5, §6 "applyLocalChange").
//
// expectedCanonical, if non-nil, is compared against the computed
// canonical change when assertions are enabled (WithAssertions, spec.md
// §9 Open Questions); mismatches return ErrAssertion.
func (b *Backend) ApplyLocalChange(req changeproc.Request, expectedCanonical *opsetmodel.Change) (*Backend, *opset.Patch, error) {
	if err := b.checkFresh(); err != nil {
		return nil, nil, err
	}
	if err := validateRequest(req); err != nil {
		return nil, nil, err
	}

	entry, err := b.registry.Find(req.Version)
	if err != nil {
		return nil, nil, errors.WithStack(ErrUnknownBaseVersion{Version: req.Version})
	}

	if recorded := b.opSet.Clock()[req.Actor]; req.Seq <= recorded {
		return nil, nil, errors.WithStack(ErrAlreadyApplied{Actor: string(req.Actor), Seq: req.Seq})
	}

	startOp := entry.OpSet.MaxOp() + 1
	newObjectIDs := cloneObjectIDs(b.objectIDs)

	canonical, err := changeproc.Process(entry.OpSet, newObjectIDs, req, startOp)
	if err != nil {
		return nil, nil, errors.Wrap(err, "canonicalizing local change request")
	}
	canonical.Deps = entry.OpSet.Deps()

	if err := predfill.Fill(entry.OpSet, &canonical); err != nil {
		return nil, nil, errors.Wrap(err, "filling predecessors")
	}

	if expectedCanonical != nil && b.opts.assertions {
		if err := assertCanonicalMatches(canonical, *expectedCanonical); err != nil {
			return nil, nil, err
		}
	}

	newOS := b.opSet.Clone()
	diffs := opset.NewDiffs()
	if err := newOS.AddLocalChange(canonical, diffs); err != nil {
		return nil, nil, errors.Wrap(err, "applying local change")
	}

	newReg := b.registry.Clone()
	if err := newReg.ApplyLocal(req.Version, newOS, func(entryOS *opset.OpSet) error {
		return entryOS.AddLocalChange(canonical, nil)
	}); err != nil {
		return nil, nil, errors.Wrap(err, "advancing version registry")
	}

	patch := newOS.FinalizePatch(diffs)
	patch.Version = newReg.Latest().Version
	patch.Actor = req.Actor
	patch.HasSeq = true
	patch.Seq = req.Seq

	next := &Backend{opSet: newOS, registry: newReg, objectIDs: newObjectIDs, opts: b.opts}
	b.freeze()
	return next, patch, nil
}

func validateRequest(req changeproc.Request) error {
	if req.Actor == "" {
		return errors.WithStack(ErrMalformedRequest{Field: "actor"})
	}
	if req.Seq == 0 {
		return errors.WithStack(ErrMalformedRequest{Field: "seq"})
	}
	if req.Time == 0 {
		return errors.WithStack(ErrMalformedRequest{Field: "time"})
	}
	return nil
}

func assertCanonicalMatches(computed, expected opsetmodel.Change) error {
	if computed.Actor != expected.Actor || computed.Seq != expected.Seq || computed.StartOp != expected.StartOp {
		return errors.WithStack(ErrAssertion{Detail: "actor/seq/startOp mismatch"})
	}
	if len(computed.Ops) != len(expected.Ops) {
		return errors.WithStack(ErrAssertion{Detail: "op count mismatch"})
	}
	if !sortedDepsEqual(computed.Deps, expected.Deps) {
		return errors.WithStack(ErrAssertion{Detail: "deps mismatch"})
	}
	return nil
}

func sortedDepsEqual(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	sa, sb := sortedCopy(a), sortedCopy(b)
	for i := range sa {
		if sa[i] != sb[i] {
			return false
		}
	}
	return true
}

func sortedCopy(s []string) []string {
	out := append([]string(nil), s...)
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j-1] > out[j]; j-- {
			out[j-1], out[j] = out[j], out[j-1]
		}
	}
	return out
}

// Save encodes the backend's full applied history via the configured
// codec (spec.md §6 "save"). When a SnapshotStore is configured
// (WithSnapshotStore), the encoded blob is also persisted under id,
// mirroring the teacher's nodestorage save path (SPEC_FULL.md
// "Supplemented Features" item 3).
func (b *Backend) Save(ctx context.Context, id string) ([]byte, error) {
	if err := b.checkFresh(); err != nil {
		return nil, err
	}
	blob, err := b.opts.codec.EncodeDocument(b.opSet.History())
	if err != nil {
		return nil, errors.Wrap(err, "saving document")
	}
	if b.opts.snapshotStore != nil {
		if err := b.opts.snapshotStore.Save(ctx, id, blob, b.opSet.MaxOp()); err != nil {
			return nil, errors.Wrap(err, "persisting snapshot")
		}
	}
	return blob, nil
}

// Load decodes blob via the configured codec and replays it into a
// fresh backend (spec.md §6 "load"). If blob is nil and a SnapshotStore
// is configured (WithSnapshotStore), the snapshot is fetched from the
// store under id first.
func Load(ctx context.Context, id string, blob []byte, opts ...Option) (*Backend, error) {
	b := Init(opts...)
	if blob == nil && b.opts.snapshotStore != nil {
		snap, err := b.opts.snapshotStore.Load(ctx, id)
		if err != nil {
			return nil, errors.Wrap(err, "loading snapshot from store")
		}
		blob = snap.Blob
	}
	changes, err := b.opts.codec.DecodeDocument(blob)
	if err != nil {
		return nil, errors.Wrap(err, "loading document")
	}
	return b.LoadChanges(changes)
}

// GetPatch rebuilds a patch describing the whole materialized document
// (spec.md §6 "getPatch"). Per spec.md §9's Open Question on this path,
// the in-memory traversal opset.OpSet.GetPatch offers is taken directly
// rather than round-tripping through Save/codec.ConstructPatch.
func (b *Backend) GetPatch() (*opset.Patch, error) {
	if err := b.checkFresh(); err != nil {
		return nil, err
	}
	patch := b.opSet.GetPatch()
	patch.Version = b.registry.Latest().Version
	return patch, nil
}

// GetChanges encodes every applied change not reachable from haveDeps
// (spec.md §6 "getChanges"), one independently-decodable blob per
// change. Each blob is produced via EncodeDocument rather than the bare
// EncodeChange, so a peer can feed it straight into DecodeChanges or
// DecodeDocument without needing to know it holds only one change.
//
// When a ChangeCache is configured (WithChangeCache), each change's
// blob is looked up by hash before re-encoding it, and any blob that
// had to be encoded is stored back under its hash for the next caller
// (SPEC_FULL.md "Supplemented Features" item 3).
func (b *Backend) GetChanges(ctx context.Context, haveDeps []string) ([][]byte, error) {
	if err := b.checkFresh(); err != nil {
		return nil, err
	}
	missing := b.opSet.GetMissingChanges(haveDeps)
	out := make([][]byte, len(missing))
	for i, c := range missing {
		hash := c.Hash()
		if b.opts.changeCache != nil {
			if cached, err := b.opts.changeCache.Get(ctx, hash); err == nil {
				out[i] = cached
				continue
			}
		}
		blob, err := b.opts.codec.EncodeDocument([]opsetmodel.Change{c})
		if err != nil {
			return nil, errors.Wrapf(err, "encoding change %d", i)
		}
		if b.opts.changeCache != nil {
			if err := b.opts.changeCache.Put(ctx, hash, blob); err != nil {
				return nil, errors.Wrapf(err, "caching change %d", i)
			}
		}
		out[i] = blob
	}
	return out, nil
}

// GetMissingDeps returns the hashes referenced by queued changes but
// absent from history (spec.md §6 "getMissingDeps").
func (b *Backend) GetMissingDeps() ([]string, error) {
	if err := b.checkFresh(); err != nil {
		return nil, err
	}
	return b.opSet.GetMissingDeps(), nil
}
