package opsetmodel

// Action identifies the kind of mutation an Operation performs.
type Action string

const (
	ActionSet      Action = "set"
	ActionDel      Action = "del"
	ActionInc      Action = "inc"
	ActionLink     Action = "link"
	ActionMakeMap  Action = "makeMap"
	ActionMakeList Action = "makeList"
	ActionMakeText Action = "makeText"
	// ActionMakeTable is carried from spec's action enum (§3) and
	// modeled as a makeMap-shaped container whose rows are themselves
	// objects; see SPEC_FULL.md "Supplemented Features" item 1.
	ActionMakeTable Action = "makeTable"
)

// IsMake reports whether the action creates a new object.
func (a Action) IsMake() bool {
	switch a {
	case ActionMakeMap, ActionMakeList, ActionMakeText, ActionMakeTable:
		return true
	default:
		return false
	}
}

// Operation is an atomic mutation, the unit of CRDT reconciliation.
//
// Key holds, for map fields, a property name; for list/text ops, an
// element-ID string (or the HeadKey sentinel). Insert is true when the
// op introduces a new list element whose ID is the op's own ID. Child is
// transient: used by make* operations while a request still carries
// temporary object IDs, and is erased once the op is canonicalized.
type Operation struct {
	ID     OpID
	Action Action
	Obj    OpID
	Key    string
	Insert bool
	Value  interface{}
	Child  string
	Pred   []OpID
}

// EffectiveKey returns the key this operation's predecessor-resolution and
// byObject indexing should use: for inserts, the op's own ID (the element
// it introduces); otherwise its Key.
func (op Operation) EffectiveKey() string {
	if op.Insert {
		return op.ID.String()
	}
	return op.Key
}

// Change is a causally-linked batch of operations produced by one actor.
type Change struct {
	Actor   Actor
	Seq     uint64
	StartOp uint64
	Deps    []string
	Time    int64
	Message string
	Ops     []Operation
}

// Hash is the content-hash identity of the change. A full content hash
// is delegated to the (out-of-scope) binary codec; this returns a stable,
// deterministic placeholder derived from the change's addressable fields,
// sufficient for the causal graph the engine itself maintains.
func (c Change) Hash() string {
	return changeHash(c)
}

// MaxOp returns the counter of the last op in the change (StartOp + len(Ops) - 1),
// or StartOp-1 if the change has no ops.
func (c Change) MaxOp() uint64 {
	if len(c.Ops) == 0 {
		if c.StartOp == 0 {
			return 0
		}
		return c.StartOp - 1
	}
	return c.StartOp + uint64(len(c.Ops)) - 1
}
