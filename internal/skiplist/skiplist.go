// Package skiplist implements the ordered, key-addressed sequence used to
// back CRDT list and text objects (spec.md §4.1): a probabilistic skip
// list keyed by opaque element-IDs, with per-node span counters so
// positional lookup (KeyOf/IndexOf) runs in O(log n).
//
// This generalizes the teacher's RGAArrayNode (an O(n) tombstoned slice
// of element/value/deleted triples) to the O(log n) positional index the
// spec requires, while keeping the same element-ID-keyed, insert-after
// shape.
package skiplist

import (
	"fmt"
	"math/rand"
)

const maxLevel = 32
const probability = 0.25

// node is a skip-list node. span[i] is the number of level-0 hops between
// this node and forward[i] (i.e. forward[i]'s position minus this node's
// position), following the classic indexable-skiplist ("skiplist with
// rank") construction.
type node struct {
	key     string
	value   interface{}
	forward []*node
	span    []int
}

// SkipList is an ordered sequence of (key, value) pairs keyed by opaque
// element-IDs, supporting O(log n) positional lookup.
//
// Tie-breaking in positional iteration is insertion order, never key
// order: this is a list, not a sorted map.
type SkipList struct {
	head   *node
	level  int
	length int
	index  map[string]*node
	rnd    *rand.Rand
}

// New creates an empty skip list.
func New() *SkipList {
	return newWithSource(rand.New(rand.NewSource(1)))
}

func newWithSource(rnd *rand.Rand) *SkipList {
	head := &node{
		forward: make([]*node, maxLevel),
		span:    make([]int, maxLevel),
	}
	return &SkipList{
		head:  head,
		level: 1,
		index: make(map[string]*node),
		rnd:   rnd,
	}
}

func (s *SkipList) randomLevel() int {
	lvl := 1
	for s.rnd.Float64() < probability && lvl < maxLevel {
		lvl++
	}
	return lvl
}

// Len returns the number of elements in the list.
func (s *SkipList) Len() int {
	return s.length
}

// seekToPosition walks the skip list from the head, stopping at the
// rightmost node at or before target (0-based; -1 denotes the head
// itself). It returns, per level, the node reached and the cumulative
// position ("rank") at the point the walk stopped descending from that
// level.
func (s *SkipList) seekToPosition(target int) (update []*node, rank []int) {
	update = make([]*node, maxLevel)
	rank = make([]int, maxLevel)

	x := s.head
	traversed := -1
	for i := s.level - 1; i >= 0; i-- {
		for x.forward[i] != nil && traversed+x.span[i] <= target {
			traversed += x.span[i]
			x = x.forward[i]
		}
		update[i] = x
		rank[i] = traversed
	}
	return update, rank
}

// InsertAfter inserts (key, value) immediately after predKey. A nil
// predKey inserts at the head. It fails if key is already present, or if
// predKey is non-nil and not found.
func (s *SkipList) InsertAfter(predKey *string, key string, value interface{}) error {
	if _, exists := s.index[key]; exists {
		return fmt.Errorf("skiplist: key %q already present", key)
	}

	insertIndex := 0
	if predKey != nil {
		predIndex := s.IndexOf(*predKey)
		if predIndex < 0 {
			return fmt.Errorf("skiplist: predecessor key %q not found", *predKey)
		}
		insertIndex = predIndex + 1
	}

	// The node is inserted at position insertIndex, so its predecessor
	// chain is the node currently at position insertIndex-1 (or the head
	// if insertIndex is 0).
	update, rank := s.seekToPosition(insertIndex - 1)

	lvl := s.randomLevel()
	if lvl > s.level {
		for i := s.level; i < lvl; i++ {
			update[i] = s.head
			rank[i] = -1
		}
		s.level = lvl
	}

	newNode := &node{
		key:     key,
		value:   value,
		forward: make([]*node, lvl),
		span:    make([]int, lvl),
	}

	for i := 0; i < lvl; i++ {
		newNode.forward[i] = update[i].forward[i]
		newNode.span[i] = update[i].span[i] - (rank[0] - rank[i])
		update[i].forward[i] = newNode
		update[i].span[i] = (rank[0] - rank[i]) + 1
	}
	// Levels above the new node's height still point over it, so their
	// span grows by one level-0 element.
	for i := lvl; i < s.level; i++ {
		update[i].span[i]++
	}

	s.index[key] = newNode
	s.length++
	return nil
}

// RemoveKey removes key from the list. It fails if key is absent.
func (s *SkipList) RemoveKey(key string) error {
	target, ok := s.index[key]
	if !ok {
		return fmt.Errorf("skiplist: key %q not found", key)
	}

	// Keys are not ordered, so the predecessors at each level are found
	// by position rather than by comparing keys.
	update, _ := s.seekToPosition(s.IndexOf(key) - 1)

	for i := 0; i < s.level; i++ {
		if update[i].forward[i] == target {
			update[i].span[i] += target.span[i] - 1
			update[i].forward[i] = target.forward[i]
		} else {
			update[i].span[i]--
		}
	}

	for s.level > 1 && s.head.forward[s.level-1] == nil {
		s.level--
	}

	delete(s.index, key)
	s.length--
	return nil
}

// KeyOf returns the key at the given 0-based index, in O(log n).
func (s *SkipList) KeyOf(index int) (string, error) {
	if index < 0 || index >= s.length {
		return "", fmt.Errorf("skiplist: index %d out of bounds (length %d)", index, s.length)
	}

	update, rank := s.seekToPosition(index)
	x := update[0]
	if rank[0] != index {
		return "", fmt.Errorf("skiplist: internal inconsistency resolving index %d", index)
	}
	return x.key, nil
}

// IndexOf returns the 0-based index of key, or -1 if absent.
func (s *SkipList) IndexOf(key string) int {
	target, ok := s.index[key]
	if !ok {
		return -1
	}

	// Keys are not ordered, so a search from the head cannot tell when it
	// has passed target. Instead walk from target to the last node, always
	// taking the highest forward pointer available, and count the hops:
	// target's index is the last index minus that count.
	x := target
	hops := 0
	for {
		i := len(x.forward) - 1
		for i >= 0 && x.forward[i] == nil {
			i--
		}
		if i < 0 {
			return s.length - 1 - hops
		}
		hops += x.span[i]
		x = x.forward[i]
	}
}

// Clone returns an independent copy of the list (copy-on-write at version
// boundaries, per spec.md §9's Design Notes and §5's concurrency model).
func (s *SkipList) Clone() *SkipList {
	clone := newWithSource(s.rnd)
	cur := s.head.forward[0]
	var prevKey *string
	for cur != nil {
		k := cur.key
		if err := clone.InsertAfter(prevKey, cur.key, cur.value); err != nil {
			// Cannot happen: keys are unique and come from a valid list.
			panic(err)
		}
		prevKey = &k
		cur = cur.forward[0]
	}
	return clone
}

// Keys returns all keys in list order. Used by patch synthesis, tests and
// diagnostics.
func (s *SkipList) Keys() []string {
	keys := make([]string, 0, s.length)
	cur := s.head.forward[0]
	for cur != nil {
		keys = append(keys, cur.key)
		cur = cur.forward[0]
	}
	return keys
}
