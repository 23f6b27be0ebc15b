// Package opset implements the causal history and materialized object
// graph of the operation-set reconciliation engine (spec.md §4.2): the
// OpSet stores every applied operation indexed by object and key, tracks
// per-actor sequence state, the dependency-hash frontier, the maximum op
// counter, and per-object element-ID skip lists.
//
// Grounded on the teacher's luvjson/crdt/document.go (node index + clock
// bookkeeping + per-type applyOperation dispatch) and
// luvjson/crdt/object_node.go (per-key LWW-winner tracking), generalized
// from "one current value per key" to "ordered set of concurrent winners
// with causal predecessor tracking" as spec.md §3/§4.2 require.
package opset

import (
	"sort"

	"crdtbackend/internal/opsetmodel"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// OpSet is the causal history and materialized object graph of one
// document (spec.md §3 "OpSet state").
type OpSet struct {
	logger *zap.Logger

	byObject map[opsetmodel.OpID]*ObjectRecord
	states   map[opsetmodel.Actor][]opsetmodel.Change
	history  []opsetmodel.Change
	applied  map[string]bool // hash -> applied, for O(1) dependency checks
	deps     map[string]bool // frontier: hashes with no successor yet in history
	maxOp    uint64
	queue    []opsetmodel.Change
}

// New creates an empty OpSet with just the implicit root map object.
func New(logger *zap.Logger) *OpSet {
	if logger == nil {
		logger = zap.NewNop()
	}
	os := &OpSet{
		logger:   logger,
		byObject: make(map[opsetmodel.OpID]*ObjectRecord),
		states:   make(map[opsetmodel.Actor][]opsetmodel.Change),
		applied:  make(map[string]bool),
		deps:     make(map[string]bool),
	}
	os.byObject[opsetmodel.RootID] = newObjectRecord(opsetmodel.RootID, opsetmodel.ActionMakeMap, opsetmodel.Operation{})
	return os
}

// MaxOp returns the maximum op counter observed across all applied changes.
func (os *OpSet) MaxOp() uint64 { return os.maxOp }

// Deps returns the sorted dependency-hash frontier.
func (os *OpSet) Deps() []string {
	out := make([]string, 0, len(os.deps))
	for h := range os.deps {
		out = append(out, h)
	}
	sort.Strings(out)
	return out
}

// Clock returns, per actor, the number of that actor's changes applied.
func (os *OpSet) Clock() map[opsetmodel.Actor]uint64 {
	clock := make(map[opsetmodel.Actor]uint64, len(os.states))
	for actor, changes := range os.states {
		clock[actor] = uint64(len(changes))
	}
	return clock
}

// History returns the applied changes in application order.
func (os *OpSet) History() []opsetmodel.Change {
	out := make([]opsetmodel.Change, len(os.history))
	copy(out, os.history)
	return out
}

// Object returns the ObjectRecord for id, or ErrNodeNotFound.
func (os *OpSet) Object(id opsetmodel.OpID) (*ObjectRecord, error) {
	rec, ok := os.byObject[id]
	if !ok {
		return nil, opsetmodel.ErrNodeNotFound{ID: id}
	}
	return rec, nil
}

// GetFieldOps returns the current winners at (obj, key), ordered
// descending by OpID (index 0 is the winner). Multiple entries indicate
// concurrent conflicting assignments (spec.md §4.2). 'inc' ops on a
// counter slot are appended in the order they were applied rather than
// placed by OpID, so such a slot is not strictly descending.
func (os *OpSet) GetFieldOps(obj opsetmodel.OpID, key string) ([]opsetmodel.Operation, error) {
	rec, err := os.Object(obj)
	if err != nil {
		return nil, err
	}
	ops := rec.Fields[key]
	out := make([]opsetmodel.Operation, len(ops))
	copy(out, ops)
	return out, nil
}

// LiveFieldOps is GetFieldOps filtered to winners that represent a live
// value (excludes pure tombstone 'del' winners), used by patch/view
// synthesis.
func (os *OpSet) LiveFieldOps(obj opsetmodel.OpID, key string) ([]opsetmodel.Operation, error) {
	ops, err := os.GetFieldOps(obj, key)
	if err != nil {
		return nil, err
	}
	out := ops[:0:0]
	for _, op := range ops {
		if op.Action != opsetmodel.ActionDel {
			out = append(out, op)
		}
	}
	return out, nil
}

// CounterValue returns the effective value of a counter slot: the base
// 'set' value plus the sum of all 'inc' ops whose Pred includes the base
// (spec.md §4.2).
func (os *OpSet) CounterValue(obj opsetmodel.OpID, key string) (interface{}, error) {
	ops, err := os.GetFieldOps(obj, key)
	if err != nil {
		return nil, err
	}
	var base *opsetmodel.Operation
	for i := range ops {
		if ops[i].Action == opsetmodel.ActionSet {
			base = &ops[i]
			break
		}
	}
	if base == nil {
		return nil, nil
	}
	var total float64
	for _, op := range ops {
		if op.Action != opsetmodel.ActionInc {
			continue
		}
		for _, p := range op.Pred {
			if p == base.ID {
				total += toFloat(op.Value)
				break
			}
		}
	}
	return toFloat(base.Value) + total, nil
}

func toFloat(v interface{}) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case float32:
		return float64(n)
	case int:
		return float64(n)
	case int64:
		return float64(n)
	case uint64:
		return float64(n)
	default:
		return 0
	}
}

// Clone returns a deep, independent copy of the OpSet, used by the
// version registry (spec.md §4.5) and the backend facade's freeze
// protocol (spec.md §4.6, §9 "Freeze/ownership").
func (os *OpSet) Clone() *OpSet {
	clone := &OpSet{
		logger:   os.logger,
		byObject: make(map[opsetmodel.OpID]*ObjectRecord, len(os.byObject)),
		states:   make(map[opsetmodel.Actor][]opsetmodel.Change, len(os.states)),
		applied:  make(map[string]bool, len(os.applied)),
		deps:     make(map[string]bool, len(os.deps)),
		maxOp:    os.maxOp,
		history:  append([]opsetmodel.Change(nil), os.history...),
		queue:    append([]opsetmodel.Change(nil), os.queue...),
	}
	for id, rec := range os.byObject {
		clone.byObject[id] = rec.clone()
	}
	for actor, changes := range os.states {
		clone.states[actor] = append([]opsetmodel.Change(nil), changes...)
	}
	for h := range os.applied {
		clone.applied[h] = true
	}
	for h := range os.deps {
		clone.deps[h] = true
	}
	return clone
}

// GetMissingDeps returns the hashes referenced by queued (not-yet-applied)
// changes but not present in history (spec.md §4.2).
func (os *OpSet) GetMissingDeps() []string {
	missing := make(map[string]bool)
	for _, c := range os.queue {
		for _, h := range c.Deps {
			if !os.applied[h] {
				missing[h] = true
			}
		}
	}
	out := make([]string, 0, len(missing))
	for h := range missing {
		out = append(out, h)
	}
	sort.Strings(out)
	return out
}

// GetMissingChanges returns every applied change whose hash is not
// reachable from haveDeps in the causal graph, in a valid topological
// order (spec.md §4.2): each returned change follows its deps.
//
// "Reachable from haveDeps" means an ancestor-or-self of some hash in
// haveDeps: the caller's frontier implies every causal ancestor of that
// frontier is already known to them.
func (os *OpSet) GetMissingChanges(haveDeps []string) []opsetmodel.Change {
	byHash := make(map[string]opsetmodel.Change, len(os.history))
	for _, c := range os.history {
		byHash[c.Hash()] = c
	}

	known := make(map[string]bool, len(os.history))
	var markKnown func(hash string)
	markKnown = func(hash string) {
		if known[hash] {
			return
		}
		c, ok := byHash[hash]
		if !ok {
			// Not one of our own changes (e.g. a dep the caller has that
			// we've never seen); nothing further to mark from it.
			known[hash] = true
			return
		}
		known[hash] = true
		for _, d := range c.Deps {
			markKnown(d)
		}
	}
	for _, h := range haveDeps {
		markKnown(h)
	}

	var missing []opsetmodel.Change
	for _, c := range os.history {
		if !known[c.Hash()] {
			missing = append(missing, c)
		}
	}
	return missing
}

// errMissingDependency is the sentinel IsMissingDependency recognizes.
// AddChange does not return it: a change with unmet deps is buffered in
// the queue and AddChange returns nil (spec.md §7).
var errMissingDependency = errors.New("change dependencies not satisfied")

// IsMissingDependency reports whether err is the buffering sentinel.
func IsMissingDependency(err error) bool {
	return errors.Cause(err) == errMissingDependency
}
