package pageio

import (
	"errors"
	"fmt"

	"github.com/SimonWaldherr/sddspage/internal/codec"
	"github.com/SimonWaldherr/sddspage/internal/config"
	"github.com/SimonWaldherr/sddspage/internal/iobuf"
	"github.com/SimonWaldherr/sddspage/internal/layout"
)

// State is a node of the per-handle state machine of spec §4.5:
// Idle → HeaderRead → PageOpen{reading|writing} → PageClosed → ... →
// Terminated.
type State int

const (
	Idle State = iota
	HeaderRead
	PageOpenReading
	PageOpenWriting
	PageClosed
	Terminated
)

func (s State) String() string {
	switch s {
	case Idle:
		return "Idle"
	case HeaderRead:
		return "HeaderRead"
	case PageOpenReading:
		return "PageOpenReading"
	case PageOpenWriting:
		return "PageOpenWriting"
	case PageClosed:
		return "PageClosed"
	case Terminated:
		return "Terminated"
	default:
		return "Unknown"
	}
}

// Handle is the single owner of one file's layout, buffer, and current
// page — the PageEngine's handle object (spec §3 "ownership is linear: a
// page is owned by one handle; the handle owns its layout, buffer, and
// open sink/source"). Grounded on the teacher's Pager struct (file + wal +
// pool + sb + freeMgr as one owning type).
type Handle struct {
	Layout *layout.Layout
	buf    *iobuf.Buffer
	codec  *codec.Codec
	parser codec.FixedValueParser

	state      State
	compressed bool // true disallows update_page and follow-mode (spec §6.4)

	autoRecover          bool
	readRecoveryPossible bool // one-shot latch, spec §7

	rowCountLimit int64
	pageNumber    int

	page *Page

	errs *errorRing
}

// Open constructs a Handle over an already-positioned buffer (right after
// the textual header) for a given layout. compressed must be true for
// gzip/xz-backed buffers, since those reject update_page/follow-mode.
func Open(l *layout.Layout, buf *iobuf.Buffer, compressed bool, parser codec.FixedValueParser) *Handle {
	return &Handle{
		Layout:        l,
		buf:           buf,
		codec:         codec.New(buf, l.DeclaredByteOrder),
		parser:        parser,
		state:         HeaderRead,
		compressed:    compressed,
		rowCountLimit: config.RowCountLimit(),
		errs:          newErrorRing(),
	}
}

// SetAutoRecover toggles auto_recover: on a failed row read, keep already-
// decoded rows and succeed instead of failing the whole read_page call
// (spec §4.5 step 7, §7).
func (h *Handle) SetAutoRecover(v bool) { h.autoRecover = v }

// ReadRecoveryPossible returns the one-shot latch spec §7 describes: true
// if the last read_page failed mid-page with a short read. Reading it
// clears it.
func (h *Handle) ReadRecoveryPossible() bool {
	v := h.readRecoveryPossible
	h.readRecoveryPossible = false
	return v
}

// SetRowCountLimit overrides the process-wide default (config.RowCountLimit)
// for this handle only.
func (h *Handle) SetRowCountLimit(n int64) { h.rowCountLimit = n }

// State returns the handle's current state-machine node.
func (h *Handle) State() State { return h.state }

var errWrongState = errors.New("operation illegal for handle state")

func (h *Handle) requireState(op string, allowed ...State) error {
	for _, s := range allowed {
		if h.state == s {
			return nil
		}
	}
	return h.push(KindState, op, fmt.Errorf("%w: in %s, need one of %v", errWrongState, h.state, allowed))
}

// StartPage allocates a fresh Page and clears the ReadRecoveryPossible
// latch. The handle keeps no separate record of a successful auto-recovery,
// so there is no auto-recovered state for StartPage to clear.
func (h *Handle) StartPage() *Page {
	h.readRecoveryPossible = false
	h.page = NewPage()
	return h.page
}

// CurrentPage returns the page currently open on this handle, or nil.
func (h *Handle) CurrentPage() *Page { return h.page }

// EndPage closes the current page without terminating the handle,
// transitioning to PageClosed. A subsequent start_page/write_page/
// read_page reopens a fresh page.
func (h *Handle) EndPage() error {
	h.page = nil
	h.state = PageClosed
	return nil
}

// Terminate flushes any pending writes and moves the handle to its
// terminal state. The underlying sink/source is the caller's to close.
func (h *Handle) Terminate() error {
	if h.buf != nil {
		if err := h.buf.Flush(); err != nil {
			h.state = Terminated
			return h.push(KindIO, "terminate", err)
		}
	}
	h.state = Terminated
	return nil
}

// lengthenTable grows Rows/Columns/RowFlag in place to accommodate at
// least n rows, matching spec §3's lengthen_table.
func (p *Page) lengthenTable(n int, columnMajor, _ bool) {
	if columnMajor {
		if int64(n) > p.NRows {
			p.NRows = int64(n)
		}
		return
	}
	for len(p.Rows) < n {
		p.Rows = append(p.Rows, nil)
	}
	for len(p.RowFlag) < n {
		p.RowFlag = append(p.RowFlag, true)
	}
	if int64(len(p.Rows)) > p.NRows {
		p.NRows = int64(len(p.Rows))
	}
}
