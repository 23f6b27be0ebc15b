// Package predfill attaches predecessor sets to a canonicalized change's
// operations (spec.md §4.4): the set of op-IDs each op overwrites,
// computed against the opSet the author's request was built against.
//
// Grounded on the teacher's luvjson/crdt/object_node.go Set/Delete
// pattern (look up the current winner(s) at a key before installing a
// new one), generalized to record the full predecessor set rather than
// replacing a single LWW winner in place.
package predfill

import (
	"crdtbackend/internal/opset"
	"crdtbackend/internal/opsetmodel"
)

type slotKey struct {
	obj opsetmodel.OpID
	key string
}

// Fill computes and assigns Pred for every op in change, in place,
// against base (the opSet the request's author referenced). Within the
// same change, an op writing a slot already written earlier in the same
// change shadows that earlier op: its Pred is just that earlier op's ID,
// not base's prior winners (spec.md §4.4 "within-change shadowing").
func Fill(base *opset.OpSet, change *opsetmodel.Change) error {
	myOps := make(map[slotKey]opsetmodel.OpID)

	for i := range change.Ops {
		op := &change.Ops[i]
		key := op.EffectiveKey()
		sk := slotKey{obj: op.Obj, key: key}

		if shadowing, ok := myOps[sk]; ok {
			op.Pred = []opsetmodel.OpID{shadowing}
		} else {
			ops, err := base.GetFieldOps(op.Obj, key)
			if err != nil {
				if _, isMissing := err.(opsetmodel.ErrNodeNotFound); isMissing {
					// op.Obj was created earlier in this same change (e.g. a
					// makeMap followed by a set into it); base has no record
					// of it yet, so it has no predecessors.
					op.Pred = nil
					myOps[sk] = op.ID
					continue
				}
				return err
			}
			pred := make([]opsetmodel.OpID, len(ops))
			for j, o := range ops {
				pred[j] = o.ID
			}
			op.Pred = pred
		}

		if _, ok := myOps[sk]; !ok {
			myOps[sk] = op.ID
		}
	}

	return nil
}
