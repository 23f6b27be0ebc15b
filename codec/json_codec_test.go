package codec

import (
	"testing"

	"crdtbackend/internal/opset"
	"crdtbackend/internal/opsetmodel"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleChange() opsetmodel.Change {
	return opsetmodel.Change{
		Actor:   "a1",
		Seq:     1,
		StartOp: 1,
		Time:    1000,
		Message: "init",
		Ops: []opsetmodel.Operation{
			{
				ID:     opsetmodel.OpID{Counter: 1, Actor: "a1"},
				Action: opsetmodel.ActionSet,
				Obj:    opsetmodel.RootID,
				Key:    "title",
				Value:  "hello",
			},
		},
	}
}

func TestEncodeDecodeChangeRoundTrip(t *testing.T) {
	c := NewJSONCodec(nil)
	change := sampleChange()

	blob, err := c.EncodeChange(change)
	require.NoError(t, err)

	decoded, err := c.DecodeChanges(mustWrapArray(t, blob))
	require.NoError(t, err)
	require.Len(t, decoded, 1)
	assert.Equal(t, change.Actor, decoded[0].Actor)
	assert.Equal(t, change.Ops[0].Value, decoded[0].Ops[0].Value)
	assert.Equal(t, change.Ops[0].ID, decoded[0].Ops[0].ID)
}

func mustWrapArray(t *testing.T, single []byte) []byte {
	t.Helper()
	return append(append([]byte("["), single...), ']')
}

func TestEncodeDecodeDocumentRoundTrip(t *testing.T) {
	c := NewJSONCodec(nil)
	history := []opsetmodel.Change{sampleChange()}

	blob, err := c.EncodeDocument(history)
	require.NoError(t, err)

	decoded, err := c.DecodeDocument(blob)
	require.NoError(t, err)
	require.Len(t, decoded, 1)
	assert.Equal(t, history[0].Message, decoded[0].Message)
}

func TestSplitContainers(t *testing.T) {
	c := NewJSONCodec(nil)
	blob, err := c.EncodeChanges([]opsetmodel.Change{sampleChange(), sampleChange()})
	require.NoError(t, err)

	chunks, err := c.SplitContainers(blob)
	require.NoError(t, err)
	require.Len(t, chunks, 2)

	decoded, err := c.DecodeChanges(chunks[0])
	require.NoError(t, err)
	require.Len(t, decoded, 1)
}

func TestConstructPatchReplaysHistory(t *testing.T) {
	c := NewJSONCodec(nil)
	history := []opsetmodel.Change{sampleChange()}

	dto, err := c.ConstructPatch(history)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), dto.Clock["a1"])
	assert.Contains(t, dto.Diffs, opsetmodel.RootID.String())
}

func TestConstructPatchMatchesInMemoryGetPatch(t *testing.T) {
	os := opset.New(nil)
	diffs := opset.NewDiffs()
	change := sampleChange()
	require.NoError(t, os.AddLocalChange(change, diffs))

	inMemory := os.GetPatch()
	c := NewJSONCodec(nil)
	dto, err := c.ConstructPatch([]opsetmodel.Change{change})
	require.NoError(t, err)

	assert.Equal(t, inMemory.MaxOp, dto.MaxOp)
}
