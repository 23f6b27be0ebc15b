// Package codec defines the wire-format collaborator the backend facade
// delegates encoding/decoding to (spec.md §6 "Binary formats... delegated
// in full to the codec collaborator").
//
// Per SPEC_FULL.md's codec module notes, the real columnar binary format
// is out of scope; this package ships the Codec interface plus one
// concrete, JSON-based implementation so the rest of the module compiles
// and is testable end-to-end.
//
// Grounded on the teacher's luvjson/crdt/document.go, whose
// toVerboseJSON/fromVerboseJSON pair plays the same role (serialize a
// document/change to an interchange format and back) that Codec plays
// here, generalized to the Change/Patch shapes of this engine.
package codec

import "crdtbackend/internal/opsetmodel"

// Codec encodes and decodes changes and documents to and from the wire
// representation a backend persists and exchanges (spec.md §6).
type Codec interface {
	// EncodeChange serializes a single canonical change.
	EncodeChange(change opsetmodel.Change) ([]byte, error)

	// DecodeChanges deserializes one or more changes from a blob. A
	// well-formed codec satisfies encodeChange(decodeChanges(x)) == x up
	// to canonical representation (spec.md §6).
	DecodeChanges(blob []byte) ([]opsetmodel.Change, error)

	// SplitContainers decomposes a multi-change blob into single-change
	// chunks, each independently decodable (spec.md §6).
	SplitContainers(blob []byte) ([][]byte, error)

	// EncodeDocument serializes the full set of history changes composing
	// a document snapshot (spec.md §6 "save").
	EncodeDocument(history []opsetmodel.Change) ([]byte, error)

	// DecodeDocument deserializes a document snapshot back into its
	// history changes (spec.md §6 "load").
	DecodeDocument(blob []byte) ([]opsetmodel.Change, error)

	// ConstructPatch rebuilds a whole-document Patch by replaying history
	// through an OpSet, the reference path spec.md §9 describes for
	// getPatch ("re-serializes... then re-parses via constructPatch").
	// backend.GetPatch instead takes the faster in-memory traversal
	// (spec.md §9 notes both are correct); ConstructPatch remains
	// available for callers that want the replay-from-wire path, e.g. to
	// verify a save/load round-trip.
	ConstructPatch(history []opsetmodel.Change) (*PatchDTO, error)
}

// PatchDTO is the wire-shaped patch ConstructPatch produces: op-IDs are
// strings rather than opsetmodel.OpID, matching what a real front-end
// transport would carry.
type PatchDTO struct {
	Clock map[string]uint64            `json:"clock"`
	Deps  []string                     `json:"deps"`
	MaxOp uint64                       `json:"maxOp"`
	Diffs map[string]*ObjectDiffDTO    `json:"diffs"`
}

// ObjectDiffDTO is the wire shape of one object's diff.
type ObjectDiffDTO struct {
	Kind     string                    `json:"kind"`
	Fields   map[string][]FieldDTO     `json:"fields,omitempty"`
	Elements []FieldDTO                `json:"elements,omitempty"`
}

// FieldDTO is one (op-ID, value) pair in a wire-shaped diff.
type FieldDTO struct {
	OpID  string      `json:"opId"`
	Value interface{} `json:"value"`
}
