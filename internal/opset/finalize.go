package opset

import "crdtbackend/internal/opsetmodel"

// FinalizePatch resolves diffs into the shape consumed by the front-end
// (spec.md §4.2 "finalizePatch"): nested object/list/text diffs with
// op-ID identifiers and current values.
func (os *OpSet) FinalizePatch(diffs *Diffs) *Patch {
	patch := &Patch{
		Clock: os.Clock(),
		Deps:  os.Deps(),
		Diffs: make(map[opsetmodel.OpID]*ObjectDiff),
		MaxOp: os.maxOp,
	}

	if diffs == nil {
		return patch
	}

	for objID := range diffs.touched {
		rec, ok := os.byObject[objID]
		if !ok {
			// The object may have been superseded/removed by a later op
			// within the same apply pass; nothing to report.
			continue
		}
		patch.Diffs[objID] = os.objectDiff(rec)
	}
	return patch
}

// GetPatch rebuilds a patch describing the whole materialized document
// (spec.md §6 "getPatch"), by touching every object.
func (os *OpSet) GetPatch() *Patch {
	diffs := NewDiffs()
	for objID := range os.byObject {
		diffs.touch(objID)
	}
	return os.FinalizePatch(diffs)
}

func (os *OpSet) objectDiff(rec *ObjectRecord) *ObjectDiff {
	out := &ObjectDiff{ObjID: rec.ID, Kind: rec.Kind}

	if rec.isListLike() {
		keys := rec.Elems.Keys()
		out.Elements = make([]ElementValue, 0, len(keys))
		for _, k := range keys {
			ops := rec.Fields[k]
			if len(ops) == 0 {
				continue
			}
			winner := ops[0]
			out.Elements = append(out.Elements, ElementValue{OpID: winner.ID, Value: os.resolveValue(winner)})
		}
		return out
	}

	out.Fields = make(map[string][]FieldValue, len(rec.Fields))
	for key, ops := range rec.Fields {
		if fv, ok := counterFieldValue(rec.ID, key, ops, os); ok {
			out.Fields[key] = []FieldValue{fv}
			continue
		}
		var live []FieldValue
		for _, op := range ops {
			if op.Action == opsetmodel.ActionDel {
				continue
			}
			live = append(live, FieldValue{OpID: op.ID, Value: os.resolveValue(op)})
		}
		if len(live) > 0 {
			out.Fields[key] = live
		}
	}
	return out
}

// counterFieldValue collapses a counter slot (a base 'set' plus any
// number of 'inc' ops) into the single accumulated FieldValue
// CounterValue's doc describes (spec.md §4.2). Returns ok=false when the
// slot is not a counter (no 'inc' ops present).
func counterFieldValue(obj opsetmodel.OpID, key string, ops []opsetmodel.Operation, os *OpSet) (FieldValue, bool) {
	var base *opsetmodel.Operation
	hasInc := false
	for i := range ops {
		op := ops[i]
		switch op.Action {
		case opsetmodel.ActionInc:
			hasInc = true
		case opsetmodel.ActionSet:
			if base == nil {
				base = &op
			}
		}
	}
	if !hasInc || base == nil {
		return FieldValue{}, false
	}
	val, err := os.CounterValue(obj, key)
	if err != nil {
		return FieldValue{}, false
	}
	return FieldValue{OpID: base.ID, Value: val}, true
}

// resolveValue returns the user-visible value of op: for make* ops, the
// nested object's materialized value; for counters, the accumulated
// value; otherwise the op's literal value.
func (os *OpSet) resolveValue(op opsetmodel.Operation) interface{} {
	if op.Action.IsMake() {
		if child, ok := os.byObject[op.ID]; ok {
			return os.objectDiff(child)
		}
		return nil
	}
	return op.Value
}
