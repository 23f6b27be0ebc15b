// Package versionreg implements the bounded, ordered version-entry
// registry a backend container uses to let a front-end author changes
// against a recent (possibly lagging) snapshot of the document
// (spec.md §4.5, §3 "Version entry").
//
// Grounded on the teacher's eventsync/snapshot.go (bounded history of
// named, numbered snapshots) and eventsync/state_vector.go (per-actor
// frontier bookkeeping), generalized from a single current snapshot to
// an ordered list of entries the front-end can reference by number.
package versionreg

import (
	"crdtbackend/internal/opset"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// Entry is a monotonically numbered snapshot of an opSet a front-end may
// reference as the base for a subsequent local change (spec.md §3).
type Entry struct {
	Version   uint64
	LocalOnly bool
	OpSet     *opset.OpSet
}

// Registry holds the bounded, ordered list of Entries for one backend
// lineage. Entries are ordered ascending by Version.
type Registry struct {
	logger  *zap.Logger
	entries []Entry
	limit   int // 0 means unbounded
}

// ErrUnknownVersion reports that a requested version number is not in
// the registry (spec.md §7 "UnknownBaseVersion").
type ErrUnknownVersion struct {
	Version uint64
}

func (e ErrUnknownVersion) Error() string {
	return "unknown base version"
}

// New creates a registry seeded with a single entry at version 0
// wrapping the given opSet (spec.md §6 "init").
func New(logger *zap.Logger, initial *opset.OpSet, limit int) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		logger:  logger,
		limit:   limit,
		entries: []Entry{{Version: 0, LocalOnly: false, OpSet: initial}},
	}
}

// Clone returns an independent copy of the registry sharing no opSet
// with the original, used by the backend facade before every mutating
// operation (ApplyChanges, ApplyLocalChange). Each
// entry's OpSet is itself deep-copied, so mergeForward mutating a
// surviving entry's OpSet in a later ApplyLocal never reaches back into
// an OpSet a previously-cloned Registry still holds a reference to.
func (r *Registry) Clone() *Registry {
	out := &Registry{
		logger:  r.logger,
		limit:   r.limit,
		entries: make([]Entry, len(r.entries)),
	}
	for i, e := range r.entries {
		e.OpSet = e.OpSet.Clone()
		out.entries[i] = e
	}
	return out
}

// Latest returns the most recently appended entry.
func (r *Registry) Latest() Entry {
	return r.entries[len(r.entries)-1]
}

// Find returns the entry with the given version number.
func (r *Registry) Find(version uint64) (Entry, error) {
	for _, e := range r.entries {
		if e.Version == version {
			return e, nil
		}
	}
	return Entry{}, errors.WithStack(ErrUnknownVersion{Version: version})
}

// OnApplyRemote clears every entry's localOnly flag (spec.md §4.5 "On
// every applyChanges (remote)"): once any remote change lands, no
// surviving entry can still claim to reflect only local changes.
func (r *Registry) OnApplyRemote() {
	for i := range r.entries {
		r.entries[i].LocalOnly = false
	}
}

// ApplyLocal records the bookkeeping side of applying a local change
// referencing baseVersion against newOpSet (the backend's opSet after
// the change was applied): drops entries strictly older than
// baseVersion, merges the change forward into surviving non-local-only
// entries via mergeForward, replaces localOnly entries' opSet wholesale
// with newOpSet, and appends a new localOnly entry at the next version
// number (spec.md §4.5 steps 4-6).
func (r *Registry) ApplyLocal(baseVersion uint64, newOpSet *opset.OpSet, mergeForward func(entryOpSet *opset.OpSet) error) error {
	idx := -1
	for i, e := range r.entries {
		if e.Version == baseVersion {
			idx = i
			break
		}
	}
	if idx < 0 {
		return errors.WithStack(ErrUnknownVersion{Version: baseVersion})
	}

	surviving := r.entries[idx:]

	for i := range surviving {
		if surviving[i].LocalOnly {
			surviving[i].OpSet = newOpSet
			continue
		}
		if err := mergeForward(surviving[i].OpSet); err != nil {
			return errors.Wrapf(err, "merging local change forward into version %d", surviving[i].Version)
		}
	}

	next := r.Latest().Version + 1
	surviving = append(surviving, Entry{Version: next, LocalOnly: true, OpSet: newOpSet})

	r.entries = surviving
	r.enforceLimit()
	return nil
}

func (r *Registry) enforceLimit() {
	if r.limit <= 0 || len(r.entries) <= r.limit {
		return
	}
	drop := len(r.entries) - r.limit
	r.logger.Debug("evicting oldest version entries", zap.Int("count", drop))
	r.entries = r.entries[drop:]
}

// Entries returns a copy of the current ordered entry list, for tests
// and diagnostics.
func (r *Registry) Entries() []Entry {
	out := make([]Entry, len(r.entries))
	copy(out, r.entries)
	return out
}
