package skiplist

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInsertAfterHeadAndPositional(t *testing.T) {
	sl := New()
	require.NoError(t, sl.InsertAfter(nil, "a", "A"))
	require.NoError(t, sl.InsertAfter(strPtr("a"), "b", "B"))
	require.NoError(t, sl.InsertAfter(strPtr("b"), "c", "C"))

	assert.Equal(t, 3, sl.Len())
	assert.Equal(t, []string{"a", "b", "c"}, sl.Keys())

	k0, err := sl.KeyOf(0)
	require.NoError(t, err)
	assert.Equal(t, "a", k0)

	k1, err := sl.KeyOf(1)
	require.NoError(t, err)
	assert.Equal(t, "b", k1)

	k2, err := sl.KeyOf(2)
	require.NoError(t, err)
	assert.Equal(t, "c", k2)

	assert.Equal(t, 0, sl.IndexOf("a"))
	assert.Equal(t, 1, sl.IndexOf("b"))
	assert.Equal(t, 2, sl.IndexOf("c"))
	assert.Equal(t, -1, sl.IndexOf("z"))
}

func TestInsertAtHeadPrepends(t *testing.T) {
	sl := New()
	require.NoError(t, sl.InsertAfter(nil, "a", nil))
	require.NoError(t, sl.InsertAfter(nil, "b", nil))
	require.NoError(t, sl.InsertAfter(nil, "c", nil))

	// Each insert-at-head prepends, so the final order is reverse of insertion.
	assert.Equal(t, []string{"c", "b", "a"}, sl.Keys())
}

func TestRemoveKey(t *testing.T) {
	sl := New()
	require.NoError(t, sl.InsertAfter(nil, "a", nil))
	require.NoError(t, sl.InsertAfter(strPtr("a"), "b", nil))
	require.NoError(t, sl.InsertAfter(strPtr("b"), "c", nil))

	require.NoError(t, sl.RemoveKey("b"))
	assert.Equal(t, 2, sl.Len())
	assert.Equal(t, []string{"a", "c"}, sl.Keys())
	assert.Equal(t, 1, sl.IndexOf("c"))
	assert.Equal(t, -1, sl.IndexOf("b"))

	err := sl.RemoveKey("nope")
	assert.Error(t, err)
}

func TestInsertAfterDuplicateKeyFails(t *testing.T) {
	sl := New()
	require.NoError(t, sl.InsertAfter(nil, "a", nil))
	err := sl.InsertAfter(nil, "a", nil)
	assert.Error(t, err)
}

func TestInsertAfterUnknownPredecessorFails(t *testing.T) {
	sl := New()
	err := sl.InsertAfter(strPtr("missing"), "a", nil)
	assert.Error(t, err)
}

func TestLargeSequenceMaintainsOrderAndRank(t *testing.T) {
	sl := New()
	var prev *string
	const n = 500
	keys := make([]string, n)
	for i := 0; i < n; i++ {
		k := keyFor(i)
		require.NoError(t, sl.InsertAfter(prev, k, i))
		keys[i] = k
		prev = &k
	}

	require.Equal(t, n, sl.Len())
	for i := 0; i < n; i++ {
		k, err := sl.KeyOf(i)
		require.NoError(t, err)
		assert.Equal(t, keys[i], k)
		assert.Equal(t, i, sl.IndexOf(keys[i]))
	}

	// Remove every third element and re-check positional consistency.
	removed := map[string]bool{}
	for i := 0; i < n; i += 3 {
		require.NoError(t, sl.RemoveKey(keys[i]))
		removed[keys[i]] = true
	}

	remaining := make([]string, 0, n)
	for _, k := range keys {
		if !removed[k] {
			remaining = append(remaining, k)
		}
	}
	assert.Equal(t, remaining, sl.Keys())
	for i, k := range remaining {
		assert.Equal(t, i, sl.IndexOf(k))
	}
}

func TestClone(t *testing.T) {
	sl := New()
	require.NoError(t, sl.InsertAfter(nil, "a", 1))
	require.NoError(t, sl.InsertAfter(strPtr("a"), "b", 2))

	clone := sl.Clone()
	require.NoError(t, clone.InsertAfter(strPtr("b"), "c", 3))

	// The clone's mutation must not affect the original.
	assert.Equal(t, []string{"a", "b"}, sl.Keys())
	assert.Equal(t, []string{"a", "b", "c"}, clone.Keys())
}

func strPtr(s string) *string { return &s }

func keyFor(i int) string {
	const letters = "abcdefghijklmnopqrstuvwxyz"
	return string(letters[i%26]) + string(rune('A'+(i/26)%26)) + string(rune('0'+(i/(26*26))%10))
}
