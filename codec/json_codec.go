package codec

import (
	"encoding/json"

	"crdtbackend/internal/opset"
	"crdtbackend/internal/opsetmodel"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// JSONCodec is a concrete, human-readable Codec implementation, the
// stand-in for the out-of-scope binary columnar format (SPEC_FULL.md
// "codec" module). Grounded on the teacher's luvjson/crdt/document.go
// toVerboseJSON/fromVerboseJSON pair.
type JSONCodec struct {
	logger *zap.Logger
}

// NewJSONCodec constructs a JSONCodec. logger may be nil.
func NewJSONCodec(logger *zap.Logger) *JSONCodec {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &JSONCodec{logger: logger}
}

var _ Codec = (*JSONCodec)(nil)

// wireOperation mirrors opsetmodel.Operation with OpIDs as strings, the
// JSON-friendly shape actually put on the wire.
type wireOperation struct {
	ID     string      `json:"id"`
	Action string      `json:"action"`
	Obj    string      `json:"obj"`
	Key    string      `json:"key"`
	Insert bool        `json:"insert,omitempty"`
	Value  interface{} `json:"value,omitempty"`
	Child  string      `json:"child,omitempty"`
	Pred   []string    `json:"pred,omitempty"`
}

type wireChange struct {
	Actor   string          `json:"actor"`
	Seq     uint64          `json:"seq"`
	StartOp uint64          `json:"startOp"`
	Deps    []string        `json:"deps,omitempty"`
	Time    int64           `json:"time"`
	Message string          `json:"message,omitempty"`
	Ops     []wireOperation `json:"ops"`
}

func toWireChange(c opsetmodel.Change) wireChange {
	wc := wireChange{
		Actor:   string(c.Actor),
		Seq:     c.Seq,
		StartOp: c.StartOp,
		Deps:    c.Deps,
		Time:    c.Time,
		Message: c.Message,
		Ops:     make([]wireOperation, len(c.Ops)),
	}
	for i, op := range c.Ops {
		pred := make([]string, len(op.Pred))
		for j, p := range op.Pred {
			pred[j] = p.String()
		}
		wc.Ops[i] = wireOperation{
			ID:     op.ID.String(),
			Action: string(op.Action),
			Obj:    op.Obj.String(),
			Key:    op.Key,
			Insert: op.Insert,
			Value:  op.Value,
			Child:  op.Child,
			Pred:   pred,
		}
	}
	return wc
}

func fromWireChange(wc wireChange) (opsetmodel.Change, error) {
	c := opsetmodel.Change{
		Actor:   opsetmodel.Actor(wc.Actor),
		Seq:     wc.Seq,
		StartOp: wc.StartOp,
		Deps:    wc.Deps,
		Time:    wc.Time,
		Message: wc.Message,
		Ops:     make([]opsetmodel.Operation, len(wc.Ops)),
	}
	for i, wop := range wc.Ops {
		id, err := opsetmodel.ParseOpID(wop.ID)
		if err != nil {
			return opsetmodel.Change{}, errors.Wrapf(err, "decoding op %d id", i)
		}
		obj, err := opsetmodel.ParseOpID(wop.Obj)
		if err != nil {
			return opsetmodel.Change{}, errors.Wrapf(err, "decoding op %d obj", i)
		}
		pred := make([]opsetmodel.OpID, len(wop.Pred))
		for j, p := range wop.Pred {
			pid, err := opsetmodel.ParseOpID(p)
			if err != nil {
				return opsetmodel.Change{}, errors.Wrapf(err, "decoding op %d pred %d", i, j)
			}
			pred[j] = pid
		}
		c.Ops[i] = opsetmodel.Operation{
			ID:     id,
			Action: opsetmodel.Action(wop.Action),
			Obj:    obj,
			Key:    wop.Key,
			Insert: wop.Insert,
			Value:  wop.Value,
			Child:  wop.Child,
			Pred:   pred,
		}
	}
	return c, nil
}

// EncodeChange serializes a single canonical change to JSON.
func (j *JSONCodec) EncodeChange(change opsetmodel.Change) ([]byte, error) {
	b, err := json.Marshal(toWireChange(change))
	if err != nil {
		return nil, errors.Wrap(err, "encoding change")
	}
	return b, nil
}

// DecodeChanges decodes a blob containing a JSON array of changes.
func (j *JSONCodec) DecodeChanges(blob []byte) ([]opsetmodel.Change, error) {
	var wcs []wireChange
	if err := json.Unmarshal(blob, &wcs); err != nil {
		return nil, errors.Wrap(err, "decoding changes")
	}
	out := make([]opsetmodel.Change, len(wcs))
	for i, wc := range wcs {
		c, err := fromWireChange(wc)
		if err != nil {
			return nil, errors.Wrapf(err, "change %d", i)
		}
		out[i] = c
	}
	return out, nil
}

// SplitContainers decomposes a JSON array-of-changes blob into one
// single-change-array blob per element (spec.md §6).
func (j *JSONCodec) SplitContainers(blob []byte) ([][]byte, error) {
	var raws []json.RawMessage
	if err := json.Unmarshal(blob, &raws); err != nil {
		return nil, errors.Wrap(err, "splitting container")
	}
	out := make([][]byte, len(raws))
	for i, raw := range raws {
		chunk, err := json.Marshal([]json.RawMessage{raw})
		if err != nil {
			return nil, errors.Wrapf(err, "re-encoding chunk %d", i)
		}
		out[i] = chunk
	}
	return out, nil
}

// EncodeDocument serializes a full document (its entire applied history)
// to JSON (spec.md §6 "save").
func (j *JSONCodec) EncodeDocument(history []opsetmodel.Change) ([]byte, error) {
	return j.EncodeChanges(history)
}

// EncodeChanges is a small helper shared by EncodeDocument and tests:
// encodes a slice of changes as one JSON array blob.
func (j *JSONCodec) EncodeChanges(changes []opsetmodel.Change) ([]byte, error) {
	wcs := make([]wireChange, len(changes))
	for i, c := range changes {
		wcs[i] = toWireChange(c)
	}
	b, err := json.Marshal(wcs)
	if err != nil {
		return nil, errors.Wrap(err, "encoding changes")
	}
	return b, nil
}

// DecodeDocument deserializes a document snapshot (spec.md §6 "load").
func (j *JSONCodec) DecodeDocument(blob []byte) ([]opsetmodel.Change, error) {
	return j.DecodeChanges(blob)
}

// ConstructPatch rebuilds a whole-document patch by replaying history
// through a fresh OpSet (spec.md §9's reference path for getPatch).
func (j *JSONCodec) ConstructPatch(history []opsetmodel.Change) (*PatchDTO, error) {
	os := opset.New(j.logger)
	diffs := opset.NewDiffs()
	for i, c := range history {
		if err := os.AddChange(c, diffs); err != nil {
			return nil, errors.Wrapf(err, "replaying change %d", i)
		}
	}
	patch := os.GetPatch()
	return toPatchDTO(patch), nil
}

func toPatchDTO(p *opset.Patch) *PatchDTO {
	dto := &PatchDTO{
		Clock: make(map[string]uint64, len(p.Clock)),
		Deps:  p.Deps,
		MaxOp: p.MaxOp,
		Diffs: make(map[string]*ObjectDiffDTO, len(p.Diffs)),
	}
	for actor, seq := range p.Clock {
		dto.Clock[string(actor)] = seq
	}
	for objID, diff := range p.Diffs {
		dto.Diffs[objID.String()] = toObjectDiffDTO(diff)
	}
	return dto
}

func toObjectDiffDTO(d *opset.ObjectDiff) *ObjectDiffDTO {
	out := &ObjectDiffDTO{Kind: string(d.Kind)}
	if len(d.Fields) > 0 {
		out.Fields = make(map[string][]FieldDTO, len(d.Fields))
		for key, values := range d.Fields {
			fvs := make([]FieldDTO, len(values))
			for i, v := range values {
				fvs[i] = FieldDTO{OpID: v.OpID.String(), Value: toWireValue(v.Value)}
			}
			out.Fields[key] = fvs
		}
	}
	if len(d.Elements) > 0 {
		out.Elements = make([]FieldDTO, len(d.Elements))
		for i, e := range d.Elements {
			out.Elements[i] = FieldDTO{OpID: e.OpID.String(), Value: toWireValue(e.Value)}
		}
	}
	return out
}

func toWireValue(v interface{}) interface{} {
	if nested, ok := v.(*opset.ObjectDiff); ok {
		return toObjectDiffDTO(nested)
	}
	return v
}
