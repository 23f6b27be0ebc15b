// Package opsetmodel defines the shared data model of the operation-set
// reconciliation engine: operation identifiers, operations, and changes.
package opsetmodel

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// Actor is a stable identifier for an independent source of changes.
type Actor string

// NewActor mints a fresh, globally unique actor identifier, for callers
// that don't already have a stable identity of their own to use (spec.md
// §3 "actor"). Grounded on the teacher's luvjson/common/types.go
// NewSessionID, which mints a session identity the same way.
func NewActor() Actor {
	return Actor(uuid.NewString())
}

// OpID is the canonical identifier of an operation: "<counter>@<actor>".
// Counter is a monotonically increasing positive integer per document
// (not per actor); OpIDs are totally ordered by counter ascending, ties
// broken by actor string descending (Lamport order).
type OpID struct {
	Counter uint64
	Actor   Actor
}

// RootID is the sentinel identifier of the document root object.
var RootID = OpID{Counter: 0, Actor: ""}

// HeadKey is the sentinel predecessor key denoting the start of a list.
const HeadKey = "_head"

// String returns the canonical "<counter>@<actor>" representation.
func (id OpID) String() string {
	return fmt.Sprintf("%d@%s", id.Counter, id.Actor)
}

// ParseOpID parses the canonical "<counter>@<actor>" representation.
func ParseOpID(s string) (OpID, error) {
	at := strings.IndexByte(s, '@')
	if at < 0 {
		return OpID{}, fmt.Errorf("invalid op id %q: missing '@'", s)
	}
	counter, err := strconv.ParseUint(s[:at], 10, 64)
	if err != nil {
		return OpID{}, fmt.Errorf("invalid op id %q: %w", s, err)
	}
	return OpID{Counter: counter, Actor: Actor(s[at+1:])}, nil
}

// Compare orders two OpIDs: counter ascending, then actor descending.
// Returns -1 if id < other, 0 if equal, 1 if id > other.
func (id OpID) Compare(other OpID) int {
	if id.Counter != other.Counter {
		if id.Counter < other.Counter {
			return -1
		}
		return 1
	}
	if id.Actor == other.Actor {
		return 0
	}
	// Ties broken by actor string descending: the greater actor string
	// sorts first (is considered the "smaller" OpID), so for equal
	// counters the smaller actor string is the larger OpID.
	if id.Actor > other.Actor {
		return -1
	}
	return 1
}

// Less reports whether id sorts strictly before other in total OpID order.
func (id OpID) Less(other OpID) bool {
	return id.Compare(other) < 0
}

// IsRoot reports whether id is the document root's identifier.
func (id OpID) IsRoot() bool {
	return id == RootID
}
