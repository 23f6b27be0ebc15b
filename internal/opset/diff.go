package opset

import "crdtbackend/internal/opsetmodel"

// Diffs accumulates the set of objects touched while applying one or more
// changes, so FinalizePatch can resolve only what changed into the patch
// shape the front-end consumes (spec.md §4.2 "finalizePatch").
//
// Per spec.md §9's design note on getPatch ("an in-memory traversal would
// be faster but is not required for correctness"), we track touched
// *objects* rather than building a fully incremental value diff; each
// touched object is re-read from its current ObjectRecord when the patch
// is finalized. This keeps FinalizePatch correct for both incremental
// local patches and a whole-document GetPatch (which simply touches every
// object).
type Diffs struct {
	touched map[opsetmodel.OpID]bool
}

// NewDiffs creates an empty diff accumulator.
func NewDiffs() *Diffs {
	return &Diffs{touched: make(map[opsetmodel.OpID]bool)}
}

// touch records that obj changed during the current apply pass.
func (d *Diffs) touch(obj opsetmodel.OpID) {
	if d == nil {
		return
	}
	d.touched[obj] = true
}

// FieldValue is one (possibly conflicting) winner at a map/table key.
type FieldValue struct {
	OpID  opsetmodel.OpID
	Value interface{}
}

// ElementValue is one live element of a list/text object, in list order.
type ElementValue struct {
	OpID  opsetmodel.OpID
	Value interface{}
}

// ObjectDiff describes the current, post-apply contents of one object.
type ObjectDiff struct {
	ObjID    opsetmodel.OpID
	Kind     opsetmodel.Action
	Fields   map[string][]FieldValue // maps/tables
	Elements []ElementValue          // lists/text, in order
}

// Patch is the structured diff the front-end consumes (spec.md §6).
type Patch struct {
	Version uint64
	Clock   map[opsetmodel.Actor]uint64
	Deps    []string // sorted hash frontier
	Diffs   map[opsetmodel.OpID]*ObjectDiff
	MaxOp   uint64

	// Actor/Seq are set only on incremental local patches (spec.md §6).
	Actor   opsetmodel.Actor
	HasSeq  bool
	Seq     uint64
}
