package opset

import (
	"testing"

	"crdtbackend/internal/opsetmodel"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func op(counter uint64, actor, action, obj, key string, insert bool, value interface{}, pred ...opsetmodel.OpID) opsetmodel.Operation {
	objID, err := opsetmodel.ParseOpID(obj)
	if err != nil {
		panic(err)
	}
	return opsetmodel.Operation{
		ID:     opsetmodel.OpID{Counter: counter, Actor: opsetmodel.Actor(actor)},
		Action: opsetmodel.Action(action),
		Obj:    objID,
		Key:    key,
		Insert: insert,
		Value:  value,
		Pred:   pred,
	}
}

func change(actor string, seq, startOp uint64, deps []string, ops ...opsetmodel.Operation) opsetmodel.Change {
	return opsetmodel.Change{Actor: opsetmodel.Actor(actor), Seq: seq, StartOp: startOp, Deps: deps, Time: 1, Ops: ops}
}

// S2: list insert at 0,1,2 then delete index 1; surviving elements keep
// their positional identity.
func TestListInsertThenDelete(t *testing.T) {
	os := New(nil)
	root := opsetmodel.RootID.String()

	makeID := opsetmodel.OpID{Counter: 1, Actor: "A"}
	aID := opsetmodel.OpID{Counter: 2, Actor: "A"}
	bID := opsetmodel.OpID{Counter: 3, Actor: "A"}
	cID := opsetmodel.OpID{Counter: 4, Actor: "A"}
	delID := opsetmodel.OpID{Counter: 5, Actor: "A"}

	c := change("A", 1, 1, nil,
		op(1, "A", string(opsetmodel.ActionMakeList), root, "xs", false, nil),
		opsetmodel.Operation{ID: aID, Action: opsetmodel.ActionSet, Obj: makeID, Key: opsetmodel.HeadKey, Insert: true, Value: "a"},
		opsetmodel.Operation{ID: bID, Action: opsetmodel.ActionSet, Obj: makeID, Key: aID.String(), Insert: true, Value: "b"},
		opsetmodel.Operation{ID: cID, Action: opsetmodel.ActionSet, Obj: makeID, Key: bID.String(), Insert: true, Value: "c"},
		opsetmodel.Operation{ID: delID, Action: opsetmodel.ActionDel, Obj: makeID, Key: bID.String()},
	)

	require.NoError(t, os.AddChange(c, nil))

	list, err := os.Object(makeID)
	require.NoError(t, err)
	require.Equal(t, 2, list.Elems.Len())
	assert.Equal(t, 1, list.Elems.IndexOf(cID.String()))
	assert.Equal(t, 0, list.Elems.IndexOf(aID.String()))
	assert.Equal(t, -1, list.Elems.IndexOf(bID.String()))
}

// S3: concurrent sets from two actors both survive as conflicting
// winners, ordered head-first by counter-then-actor-descending.
func TestConcurrentSetSurvivesAsConflict(t *testing.T) {
	os := New(nil)
	root := opsetmodel.RootID.String()

	aOp := op(1, "A", string(opsetmodel.ActionSet), root, "k", false, "A")
	bOp := op(1, "B", string(opsetmodel.ActionSet), root, "k", false, "B")

	require.NoError(t, os.AddChange(change("A", 1, 1, nil, aOp), nil))
	require.NoError(t, os.AddChange(change("B", 1, 1, nil, bOp), nil))

	ops, err := os.GetFieldOps(opsetmodel.RootID, "k")
	require.NoError(t, err)
	require.Len(t, ops, 2)
	// Same counter: ties break by actor descending, so the smaller actor
	// string ("A") sorts as the greater OpID and wins head position.
	assert.Equal(t, opsetmodel.Actor("A"), ops[0].ID.Actor)
	assert.Equal(t, opsetmodel.Actor("B"), ops[1].ID.Actor)
}

// S4: a base set of 0 plus two concurrent incs of 3 and 4 sums to 7.
func TestCounterIncrementsSumAcrossActors(t *testing.T) {
	os := New(nil)
	root := opsetmodel.RootID.String()

	baseID := opsetmodel.OpID{Counter: 1, Actor: "A"}
	base := opsetmodel.Operation{ID: baseID, Action: opsetmodel.ActionSet, Obj: opsetmodel.RootID, Key: "c", Value: 0.0}
	require.NoError(t, os.AddChange(change("A", 1, 1, nil, base), nil))

	incA := opsetmodel.Operation{ID: opsetmodel.OpID{Counter: 2, Actor: "A"}, Action: opsetmodel.ActionInc, Obj: opsetmodel.RootID, Key: "c", Value: 3.0, Pred: []opsetmodel.OpID{baseID}}
	incB := opsetmodel.Operation{ID: opsetmodel.OpID{Counter: 2, Actor: "B"}, Action: opsetmodel.ActionInc, Obj: opsetmodel.RootID, Key: "c", Value: 4.0, Pred: []opsetmodel.OpID{baseID}}
	require.NoError(t, os.AddChange(change("A", 2, 3, nil, incA), nil))
	require.NoError(t, os.AddChange(change("B", 2, 3, nil, incB), nil))

	val, err := os.CounterValue(opsetmodel.RootID, "c")
	require.NoError(t, err)
	assert.Equal(t, 7.0, val)
}

// S5: a change whose deps are unsatisfied is buffered rather than
// applied; once its dependency lands, both become visible and
// GetMissingDeps returns empty.
func TestMissingDependencyBuffering(t *testing.T) {
	os := New(nil)
	root := opsetmodel.RootID.String()

	c1 := change("A", 1, 1, nil, op(1, "A", string(opsetmodel.ActionSet), root, "x", false, 1.0))
	c2 := change("A", 2, 2, []string{c1.Hash()}, op(2, "A", string(opsetmodel.ActionSet), root, "y", false, 2.0))

	require.NoError(t, os.AddChange(c2, nil))
	yOpsBeforeDep, err := os.GetFieldOps(opsetmodel.RootID, "y")
	require.NoError(t, err)
	assert.Empty(t, yOpsBeforeDep, "y should not be visible before its dependency c1 lands")

	assert.Len(t, os.queue, 1)
	assert.Equal(t, []string{c1.Hash()}, os.GetMissingDeps())

	require.NoError(t, os.AddChange(c1, nil))

	xOps, err := os.GetFieldOps(opsetmodel.RootID, "x")
	require.NoError(t, err)
	require.Len(t, xOps, 1)
	yOps, err := os.GetFieldOps(opsetmodel.RootID, "y")
	require.NoError(t, err)
	require.Len(t, yOps, 1)
	assert.Empty(t, os.GetMissingDeps())
}

// I3: every pred op-ID carries a strictly smaller counter than the op
// referencing it.
func TestPredAlwaysHasSmallerCounter(t *testing.T) {
	os := New(nil)
	baseID := opsetmodel.OpID{Counter: 1, Actor: "A"}
	base := opsetmodel.Operation{ID: baseID, Action: opsetmodel.ActionSet, Obj: opsetmodel.RootID, Key: "k", Value: "x"}
	require.NoError(t, os.AddChange(change("A", 1, 1, nil, base), nil))

	overwriteID := opsetmodel.OpID{Counter: 2, Actor: "B"}
	overwrite := opsetmodel.Operation{ID: overwriteID, Action: opsetmodel.ActionSet, Obj: opsetmodel.RootID, Key: "k", Value: "y", Pred: []opsetmodel.OpID{baseID}}
	require.NoError(t, os.AddChange(change("B", 1, 2, nil, overwrite), nil))

	ops, err := os.GetFieldOps(opsetmodel.RootID, "k")
	require.NoError(t, err)
	require.Len(t, ops, 1)
	for _, p := range ops[0].Pred {
		assert.Less(t, p.Counter, ops[0].ID.Counter)
	}
}

// I1 (convergence, restricted form): applying two causally-independent
// changes in either order produces the same field-ops winners.
func TestConvergenceOrderIndependent(t *testing.T) {
	root := opsetmodel.RootID.String()
	aOp := op(1, "A", string(opsetmodel.ActionSet), root, "k", false, "A")
	bOp := op(1, "B", string(opsetmodel.ActionSet), root, "k", false, "B")

	forward := New(nil)
	require.NoError(t, forward.AddChange(change("A", 1, 1, nil, aOp), nil))
	require.NoError(t, forward.AddChange(change("B", 1, 1, nil, bOp), nil))

	backward := New(nil)
	require.NoError(t, backward.AddChange(change("B", 1, 1, nil, bOp), nil))
	require.NoError(t, backward.AddChange(change("A", 1, 1, nil, aOp), nil))

	fwdOps, err := forward.GetFieldOps(opsetmodel.RootID, "k")
	require.NoError(t, err)
	bwdOps, err := backward.GetFieldOps(opsetmodel.RootID, "k")
	require.NoError(t, err)
	require.Len(t, fwdOps, 2)
	require.Len(t, bwdOps, 2)
	assert.Equal(t, fwdOps[0].ID, bwdOps[0].ID)
	assert.Equal(t, fwdOps[1].ID, bwdOps[1].ID)
}
