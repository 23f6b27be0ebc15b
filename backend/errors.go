package backend

import "fmt"

// ErrStaleBackend is returned when a caller uses a backend handle after
// it has been frozen by a prior mutating operation or by Free (spec.md
// §7 "StaleBackend", §9 "Freeze/ownership").
type ErrStaleBackend struct{}

func (e ErrStaleBackend) Error() string { return "backend is frozen and no longer usable" }

// ErrMalformedRequest is returned when a change request is missing a
// required field or carries a field of the wrong shape (spec.md §7
// "MalformedRequest").
type ErrMalformedRequest struct {
	Field string
}

func (e ErrMalformedRequest) Error() string {
	return fmt.Sprintf("malformed change request: missing or invalid field %q", e.Field)
}

// ErrAlreadyApplied is returned when a local change request's seq is at
// or below the actor's already-recorded sequence (spec.md §7
// "AlreadyApplied").
type ErrAlreadyApplied struct {
	Actor string
	Seq   uint64
}

func (e ErrAlreadyApplied) Error() string {
	return fmt.Sprintf("change %s/%d already applied", e.Actor, e.Seq)
}

// ErrUnknownBaseVersion is returned when a local change request
// references a version number absent from the version registry
// (spec.md §7 "UnknownBaseVersion").
type ErrUnknownBaseVersion struct {
	Version uint64
}

func (e ErrUnknownBaseVersion) Error() string {
	return fmt.Sprintf("unknown base version %d", e.Version)
}

// ErrAssertion is returned when a caller-supplied reference canonical
// change differs from the change this backend computed in actor, seq,
// startOp, op count or sorted deps, and assertions are enabled (spec.md
// §7 "Assertion", §9 Open Questions).
type ErrAssertion struct {
	Detail string
}

func (e ErrAssertion) Error() string {
	return fmt.Sprintf("canonical change assertion failed: %s", e.Detail)
}
