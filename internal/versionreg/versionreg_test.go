package versionreg

import (
	"testing"

	"crdtbackend/internal/opset"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSeedsVersionZero(t *testing.T) {
	os := opset.New(nil)
	reg := New(nil, os, 0)

	entry, err := reg.Find(0)
	require.NoError(t, err)
	assert.False(t, entry.LocalOnly)
	assert.Same(t, os, entry.OpSet)
}

func TestFindUnknownVersion(t *testing.T) {
	reg := New(nil, opset.New(nil), 0)
	_, err := reg.Find(99)
	require.Error(t, err)
	var target ErrUnknownVersion
	require.ErrorAs(t, err, &target)
	assert.Equal(t, uint64(99), target.Version)
}

func TestOnApplyRemoteClearsLocalOnly(t *testing.T) {
	reg := New(nil, opset.New(nil), 0)
	newOS := opset.New(nil)
	require.NoError(t, reg.ApplyLocal(0, newOS, func(*opset.OpSet) error { return nil }))

	entry, err := reg.Find(1)
	require.NoError(t, err)
	assert.True(t, entry.LocalOnly)

	reg.OnApplyRemote()
	entry, err = reg.Find(1)
	require.NoError(t, err)
	assert.False(t, entry.LocalOnly)
}

func TestApplyLocalAppendsAndDropsOlderEntries(t *testing.T) {
	reg := New(nil, opset.New(nil), 0)

	firstUpdated := opset.New(nil)
	require.NoError(t, reg.ApplyLocal(0, firstUpdated, func(*opset.OpSet) error { return nil }))
	require.Len(t, reg.Entries(), 2) // v0, v1(localOnly)

	secondUpdated := opset.New(nil)
	require.NoError(t, reg.ApplyLocal(1, secondUpdated, func(*opset.OpSet) error { return nil }))

	entries := reg.Entries()
	// v0 dropped: it was strictly older than the referenced version 1.
	require.Len(t, entries, 2)
	assert.Equal(t, uint64(1), entries[0].Version)
	assert.Equal(t, uint64(2), entries[1].Version)
}

func TestApplyLocalMergesForwardIntoNonLocalOnlyEntries(t *testing.T) {
	reg := New(nil, opset.New(nil), 0)
	// Produce a second, localOnly entry (v1) alongside v0, then clear
	// every entry's localOnly flag as a remote apply would, so v1 is a
	// surviving non-base, non-localOnly entry for the next local change
	// to merge forward into.
	require.NoError(t, reg.ApplyLocal(0, opset.New(nil), func(*opset.OpSet) error { return nil }))
	reg.OnApplyRemote()

	merged := false
	newOS := opset.New(nil)
	require.NoError(t, reg.ApplyLocal(0, newOS, func(entryOS *opset.OpSet) error {
		merged = true
		return nil
	}))
	assert.True(t, merged, "mergeForward should be called for surviving non-base, non-localOnly entry v1")
}

func TestEnforceLimitEvictsOldest(t *testing.T) {
	reg := New(nil, opset.New(nil), 2)
	for v := uint64(0); v < 3; v++ {
		require.NoError(t, reg.ApplyLocal(v, opset.New(nil), func(*opset.OpSet) error { return nil }))
	}
	assert.LessOrEqual(t, len(reg.Entries()), 2)
}
