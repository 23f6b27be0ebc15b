// Package changeproc translates a front-end change request (temporary
// object IDs, integer list indices) into the canonical Change form the
// OpSet understands (spec.md §4.3).
//
// Grounded on the teacher's luvjson/crdtpatch/builder.go, which walks a
// sequence of author-facing operations and resolves each into a
// concrete patch op against a document; generalized here to also
// resolve temporary object IDs and fold duplicate same-slot writes per
// spec.md §4.3 steps 2 and 4.
package changeproc

import (
	"crdtbackend/internal/opset"
	"crdtbackend/internal/opsetmodel"
	"crdtbackend/internal/skiplist"

	"github.com/pkg/errors"
)

// RequestOp is one operation as authored by the front-end: object and
// child references may be temporary IDs, and list positions are integer
// indices rather than element-ID keys.
type RequestOp struct {
	Action Action
	Obj    string // canonical op-ID string, or a temporary ID registered by an earlier op's Child
	Key    interface{} // string for maps/tables; int for list/text positions
	Insert bool
	Value  interface{}
	Child  string // temporary ID this op's created object will be known as, if Action.IsMake()
}

// Action mirrors opsetmodel.Action for the request-side vocabulary.
type Action = opsetmodel.Action

// Request is a front-end change request (spec.md §6 "change request
// shape"), already validated for required fields by the caller
// (backend facade).
type Request struct {
	Actor   opsetmodel.Actor
	Seq     uint64
	Version uint64
	Time    int64
	Message string
	Ops     []RequestOp
}

// ObjectIDs translates temporary object IDs (as minted by make* ops in
// requests) to their canonical op-ID, persisted across requests in the
// backend container (spec.md §3 "Backend container").
type ObjectIDs map[string]opsetmodel.OpID

// Process canonicalizes req against os (the opSet the author's request
// was built against, which may lag behind the backend's current opSet)
// starting op counters at startOp, per spec.md §4.3. It mutates ids in
// place with any new temporary-ID mappings created by this request's
// make* ops.
func Process(os *opset.OpSet, ids ObjectIDs, req Request, startOp uint64) (opsetmodel.Change, error) {
	change := opsetmodel.Change{
		Actor:   req.Actor,
		Seq:     req.Seq,
		StartOp: startOp,
		Time:    req.Time,
		Message: req.Message,
	}

	working := map[opsetmodel.OpID]*skiplist.SkipList{}
	// slotIndex tracks, for the current request only, the position within
	// change.Ops of the first op written to a given (obj,key) slot, so a
	// later op on the same slot can be folded per step 4.
	type slotKey struct {
		obj opsetmodel.OpID
		key string
	}
	slotIndex := map[slotKey]int{}
	// newKinds records the type of every object created by this request,
	// since os has no record of those objects yet.
	newKinds := map[opsetmodel.OpID]opsetmodel.Action{}

	for i, rop := range req.Ops {
		opID := opsetmodel.OpID{Counter: startOp + uint64(i), Actor: req.Actor}

		objID, err := resolveObj(ids, rop.Obj)
		if err != nil {
			return opsetmodel.Change{}, errors.Wrapf(err, "request op %d", i)
		}

		op := opsetmodel.Operation{
			ID:     opID,
			Action: rop.Action,
			Obj:    objID,
			Insert: rop.Insert,
			Value:  rop.Value,
		}

		if rop.Action.IsMake() {
			if rop.Child != "" {
				ids[rop.Child] = opID
			}
			newKinds[opID] = rop.Action
			if rop.Action == opsetmodel.ActionMakeList || rop.Action == opsetmodel.ActionMakeText {
				working[opID] = skiplist.New()
			}
		}

		if rop.Action == opsetmodel.ActionLink {
			target, err := resolveObj(ids, rop.Child)
			if err != nil {
				return opsetmodel.Change{}, errors.Wrapf(err, "request op %d link target", i)
			}
			op.Value = target.String()
		}

		kind, isNew := newKinds[objID]
		if !isNew {
			container, err := os.Object(objID)
			if err != nil {
				return opsetmodel.Change{}, errors.Wrapf(err, "request op %d references unknown object", i)
			}
			kind = container.Kind
		}

		if kind == opsetmodel.ActionMakeList || kind == opsetmodel.ActionMakeText {
			list, err := workingListFor(working, os, objID)
			if err != nil {
				return opsetmodel.Change{}, errors.Wrapf(err, "request op %d", i)
			}
			if err := resolveListPosition(list, &op, rop.Key); err != nil {
				return opsetmodel.Change{}, errors.Wrapf(err, "request op %d", i)
			}
			if op.Insert {
				if err := list.InsertAfter(headOrKey(op.Key), opID.String(), opID); err != nil {
					return opsetmodel.Change{}, errors.Wrapf(err, "request op %d", i)
				}
			} else if op.Action == opsetmodel.ActionDel {
				_ = list.RemoveKey(op.Key)
			}
		} else {
			if k, ok := rop.Key.(string); ok {
				op.Key = k
			}
		}

		if op.Insert || !isFoldable(op.Action) {
			change.Ops = append(change.Ops, op)
			continue
		}

		sk := slotKey{obj: op.Obj, key: op.EffectiveKey()}
		if idx, seen := slotIndex[sk]; seen {
			prior := &change.Ops[idx]
			if op.Action == opsetmodel.ActionInc {
				prior.Value = addCounters(prior.Value, op.Value)
			} else {
				prior.Action = op.Action
				prior.Value = op.Value
			}
			continue
		}

		slotIndex[sk] = len(change.Ops)
		change.Ops = append(change.Ops, op)
	}

	return change, nil
}

func isFoldable(a opsetmodel.Action) bool {
	switch a {
	case opsetmodel.ActionSet, opsetmodel.ActionDel, opsetmodel.ActionLink, opsetmodel.ActionInc:
		return true
	default:
		return false
	}
}

func resolveObj(ids ObjectIDs, ref string) (opsetmodel.OpID, error) {
	if ref == "" || ref == opsetmodel.RootID.String() {
		return opsetmodel.RootID, nil
	}
	if id, err := opsetmodel.ParseOpID(ref); err == nil {
		return id, nil
	}
	id, ok := ids[ref]
	if !ok {
		return opsetmodel.OpID{}, errors.WithStack(opsetmodel.ErrUnknownObject{Ref: ref})
	}
	return id, nil
}

func workingListFor(working map[opsetmodel.OpID]*skiplist.SkipList, os *opset.OpSet, obj opsetmodel.OpID) (*skiplist.SkipList, error) {
	if l, ok := working[obj]; ok {
		return l, nil
	}
	rec, err := os.Object(obj)
	if err != nil {
		return nil, err
	}
	l := rec.Elems.Clone()
	working[obj] = l
	return l, nil
}

func resolveListPosition(list *skiplist.SkipList, op *opsetmodel.Operation, key interface{}) error {
	index, ok := key.(int)
	if !ok {
		return errors.Errorf("list/text operation requires an integer position, got %T", key)
	}
	if op.Insert {
		if index == 0 {
			op.Key = opsetmodel.HeadKey
			return nil
		}
		prevKey, err := list.KeyOf(index - 1)
		if err != nil {
			return errors.Wrapf(err, "resolving insert position %d", index)
		}
		op.Key = prevKey
		return nil
	}
	k, err := list.KeyOf(index)
	if err != nil {
		return errors.Wrapf(err, "resolving position %d", index)
	}
	op.Key = k
	return nil
}

func headOrKey(key string) *string {
	if key == opsetmodel.HeadKey {
		return nil
	}
	k := key
	return &k
}

func addCounters(a, b interface{}) interface{} {
	return toFloat(a) + toFloat(b)
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
