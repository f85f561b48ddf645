// Package pageio implements the PageEngine of spec §4.5: page lifecycle
// (write_page, update_page, read_page), the row-count escape/rounding
// protocol, sparsing with statistics, and the error-ring diagnostics API.
//
// Grounded on the teacher's internal/storage/pager.Pager: a single type
// that owns the file, a superblock-like row-count header, and a recovery
// path that keeps partial state on error rather than aborting outright.
// The page state machine and row-count escape rules are new — they have
// no teacher analogue — and are implemented directly from spec §4.5/§6.2.
package pageio

import (
	"fmt"

	"github.com/google/uuid"
)

// Kind is the error taxonomy of spec §7 (kinds, not identifiers/types).
type Kind int

const (
	KindEndOfFile Kind = iota
	KindShortRead
	KindIO
	KindFormat
	KindSchema
	KindState
	KindAlloc
)

func (k Kind) String() string {
	switch k {
	case KindEndOfFile:
		return "EndOfFile"
	case KindShortRead:
		return "ShortRead"
	case KindIO:
		return "Io"
	case KindFormat:
		return "Format"
	case KindSchema:
		return "Schema"
	case KindState:
		return "State"
	case KindAlloc:
		return "Alloc"
	default:
		return "Unknown"
	}
}

// Error is one diagnostic pushed onto a handle's error ring: the kind, the
// operation that raised it, the wrapped cause, and a stable correlation ID
// (mirrors the teacher's UUID-tagged log correlation in
// internal/storage/uuid_helpers.go, generalized to per-error rather than
// per-transaction IDs).
type Error struct {
	ID  uuid.UUID
	Kind Kind
	Op  string
	Err error
}

func (e *Error) Error() string {
	return fmt.Sprintf("pageio: %s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func newError(kind Kind, op string, err error) *Error {
	return &Error{ID: uuid.New(), Kind: kind, Op: op, Err: err}
}

// errorRing is the bounded per-handle diagnostics buffer spec §7 names:
// inner codec/buffer calls push a message here rather than raising, and
// the public print_errors entry (Errors, below) drains it.
type errorRing struct {
	entries []*Error
	cap     int
}

const defaultErrorRingCapacity = 64

func newErrorRing() *errorRing {
	return &errorRing{cap: defaultErrorRingCapacity}
}

func (r *errorRing) push(e *Error) {
	r.entries = append(r.entries, e)
	if len(r.entries) > r.cap {
		r.entries = r.entries[len(r.entries)-r.cap:]
	}
}

func (r *errorRing) clear() { r.entries = nil }

// drain returns every queued error, oldest first, and empties the ring.
func (r *errorRing) drain() []error {
	if len(r.entries) == 0 {
		return nil
	}
	out := make([]error, len(r.entries))
	for i, e := range r.entries {
		out[i] = e
	}
	r.entries = nil
	return out
}

// Errors drains and returns h's queued diagnostics, oldest first — the
// public print_errors entry of spec §7.
func (h *Handle) Errors() []error { return h.errs.drain() }

func (h *Handle) push(kind Kind, op string, err error) error {
	e := newError(kind, op, err)
	h.errs.push(e)
	return e
}
