package opset

import (
	"crdtbackend/internal/opsetmodel"

	"github.com/pkg/errors"
)

// AddChange applies change to the OpSet (spec.md §4.2). If any hash in
// change.Deps is not yet in history, the change is buffered in the queue
// and nil is returned (no error: missing dependencies are non-fatal,
// spec.md §7). Otherwise every op is applied in order, the change is
// appended to history, and any now-unblocked queued changes are applied
// transitively.
func (os *OpSet) AddChange(change opsetmodel.Change, diffs *Diffs) error {
	return os.addChange(change, diffs)
}

// AddLocalChange behaves identically to AddChange (spec.md §4.2); the
// caller (backend facade / version registry) is responsible for tagging
// the resulting Patch with Actor/Seq, since that annotation is a property
// of how the patch is surfaced, not of how the OpSet applies the change.
func (os *OpSet) AddLocalChange(change opsetmodel.Change, diffs *Diffs) error {
	return os.addChange(change, diffs)
}

func (os *OpSet) addChange(change opsetmodel.Change, diffs *Diffs) error {
	if !os.depsSatisfied(change) {
		os.queue = append(os.queue, change)
		os.logger.Debug("buffering change with missing dependencies",
			zapActor(change.Actor), zapSeq(change.Seq))
		return nil
	}

	if err := os.applyChangeOps(change, diffs); err != nil {
		return errors.Wrapf(err, "applying change %s/%d", change.Actor, change.Seq)
	}

	os.commitChange(change)
	os.drainQueue(diffs)
	return nil
}

func (os *OpSet) depsSatisfied(change opsetmodel.Change) bool {
	for _, h := range change.Deps {
		if !os.applied[h] {
			return false
		}
	}
	return true
}

func (os *OpSet) applyChangeOps(change opsetmodel.Change, diffs *Diffs) error {
	for i, op := range change.Ops {
		if err := os.applyOp(op, diffs); err != nil {
			return errors.Wrapf(err, "op %d (%s)", i, op.ID)
		}
	}
	return nil
}

func (os *OpSet) commitChange(change opsetmodel.Change) {
	hash := change.Hash()
	os.history = append(os.history, change)
	os.applied[hash] = true
	os.states[change.Actor] = append(os.states[change.Actor], change)

	for _, d := range change.Deps {
		delete(os.deps, d)
	}
	os.deps[hash] = true

	if m := change.MaxOp(); m > os.maxOp {
		os.maxOp = m
	}
}

// drainQueue re-scans the queue for changes whose dependencies just
// became satisfied and applies them, repeating until a full pass makes
// no progress (spec.md §4.2 step 5, §7 "the queue is re-examined on every
// addChange").
func (os *OpSet) drainQueue(diffs *Diffs) {
	for {
		progressed := false
		remaining := os.queue[:0:0]
		for _, queued := range os.queue {
			if os.depsSatisfied(queued) {
				if err := os.applyChangeOps(queued, diffs); err != nil {
					os.logger.Warn("dropping queued change that failed to apply",
						zapActor(queued.Actor), zapSeq(queued.Seq))
					continue
				}
				os.commitChange(queued)
				progressed = true
			} else {
				remaining = append(remaining, queued)
			}
		}
		os.queue = remaining
		if !progressed {
			return
		}
	}
}

// applyOp applies a single operation to the indexed object graph
// (spec.md §4.2 step 2).
func (os *OpSet) applyOp(op opsetmodel.Operation, diffs *Diffs) error {
	container, err := os.Object(op.Obj)
	if err != nil {
		return err
	}

	if op.Action.IsMake() {
		os.byObject[op.ID] = newObjectRecord(op.ID, op.Action, op)
		diffs.touch(op.ID)
	}

	if container.isListLike() {
		if err := os.applyListPositionChange(container, op); err != nil {
			return err
		}
	}

	key := op.EffectiveKey()
	if op.Action == opsetmodel.ActionInc {
		// inc is additive, not a replacement: it must not evict the base
		// 'set' (or prior incs) from the winners list, since CounterValue
		// sums every inc whose pred includes that base (spec.md §4.2).
		container.Fields[key] = append(container.Fields[key], op)
	} else {
		container.Fields[key] = insertWinner(container.Fields[key], op)
	}
	diffs.touch(op.Obj)
	return nil
}

func (os *OpSet) applyListPositionChange(container *ObjectRecord, op opsetmodel.Operation) error {
	if op.Insert {
		var predKey *string
		if op.Key != opsetmodel.HeadKey {
			k := op.Key
			predKey = &k
		}
		newKey := op.ID.String()
		if err := container.Elems.InsertAfter(predKey, newKey, op.ID); err != nil {
			return errors.Wrapf(err, "inserting list element %s", newKey)
		}
		return nil
	}
	if op.Action == opsetmodel.ActionDel {
		if container.Elems.IndexOf(op.Key) < 0 {
			// Already removed (e.g. replayed/concurrent delete); idempotent.
			return nil
		}
		if err := container.Elems.RemoveKey(op.Key); err != nil {
			return errors.Wrapf(err, "removing list element %s", op.Key)
		}
	}
	return nil
}
