package opset

import (
	"crdtbackend/internal/opsetmodel"
	"crdtbackend/internal/skiplist"
)

// ObjectRecord is the per-object entry of the OpSet's ObjectTable (spec.md
// §3): the creating operation (fixing the object's type), an element-ID
// skip list when the object is a list/text, and the key-indexed structure
// of surviving field ops.
//
// Grounded on the teacher's luvjson/crdt/document.go index (node ID ->
// node) and luvjson/crdt/object_node.go's per-key LWW-winner tracking,
// generalized from "single winner" to "ordered set of concurrent winners"
// per spec.md §4.2.
type ObjectRecord struct {
	ID   opsetmodel.OpID
	Init opsetmodel.Operation // the creating op; zero-value Action for the implicit root
	Kind opsetmodel.Action    // ActionMakeMap / MakeList / MakeText / MakeTable

	// Elems is non-nil iff Kind is ActionMakeList or ActionMakeText.
	Elems *skiplist.SkipList

	// Fields maps a field key (for maps/tables) or an element-ID (for
	// list/text slots) to its ordered list of current winner ops,
	// descending by OpID: index 0 is the winner, any further entries are
	// concurrent conflicting values still exposed via GetFieldOps. 'inc'
	// ops are the exception: they are appended in application order.
	Fields map[string][]opsetmodel.Operation
}

func newObjectRecord(id opsetmodel.OpID, kind opsetmodel.Action, init opsetmodel.Operation) *ObjectRecord {
	rec := &ObjectRecord{
		ID:     id,
		Init:   init,
		Kind:   kind,
		Fields: make(map[string][]opsetmodel.Operation),
	}
	if kind == opsetmodel.ActionMakeList || kind == opsetmodel.ActionMakeText {
		rec.Elems = skiplist.New()
	}
	return rec
}

func (r *ObjectRecord) isListLike() bool {
	return r.Kind == opsetmodel.ActionMakeList || r.Kind == opsetmodel.ActionMakeText
}

// clone returns a deep copy of the record, used when the owning OpSet is
// cloned at version-registry boundaries.
func (r *ObjectRecord) clone() *ObjectRecord {
	out := &ObjectRecord{
		ID:     r.ID,
		Init:   r.Init,
		Kind:   r.Kind,
		Fields: make(map[string][]opsetmodel.Operation, len(r.Fields)),
	}
	for k, ops := range r.Fields {
		cp := make([]opsetmodel.Operation, len(ops))
		copy(cp, ops)
		out.Fields[k] = cp
	}
	if r.Elems != nil {
		out.Elems = r.Elems.Clone()
	}
	return out
}

// insertWinner inserts op into the ordered winner list at key, removing
// any entries whose OpID appears in op.Pred (they are overwritten by op),
// and keeping the remainder ordered descending by OpID so index 0 is
// always the current winner. Concurrent (non-overwritten) entries survive
// alongside it, surfaced as conflicts by GetFieldOps.
func insertWinner(existing []opsetmodel.Operation, op opsetmodel.Operation) []opsetmodel.Operation {
	overwritten := make(map[opsetmodel.OpID]bool, len(op.Pred))
	for _, p := range op.Pred {
		overwritten[p] = true
	}

	kept := existing[:0:0]
	for _, e := range existing {
		if !overwritten[e.ID] {
			kept = append(kept, e)
		}
	}

	// Insert op keeping descending order (kept[0] is the greatest OpID).
	insertAt := len(kept)
	for i, e := range kept {
		if op.ID.Compare(e.ID) > 0 {
			insertAt = i
			break
		}
	}
	out := make([]opsetmodel.Operation, 0, len(kept)+1)
	out = append(out, kept[:insertAt]...)
	out = append(out, op)
	out = append(out, kept[insertAt:]...)
	return out
}
