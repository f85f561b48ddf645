package pageio

import (
	"errors"
	"fmt"
	"io"
)

// ErrRowCountShrank is returned when update_page observes fewer in-memory
// rows than were already written — spec §4.5 step 2 treats this as fatal.
var ErrRowCountShrank = errors.New("pageio: update_page: in-memory row count is less than rows already written")

// ErrEscapeCrossing is returned when an update would need to promote an
// already-i32-written row count across the INT32_MIN escape boundary —
// forbidden by spec §4.5 step 3.
var ErrEscapeCrossing = errors.New("pageio: update_page: cannot cross the i32/i64 row-count boundary on an already-written page")

// UpdateOptions configures UpdatePage.
type UpdateOptions struct {
	// FlushTable, if true, frees buffered row data after the update: the
	// page's in-memory row slice is cleared, FirstRowInMem advances to
	// the new total, and LastRowWritten resets (spec §4.5, "If
	// FLUSH_TABLE... in-memory n_rows = 0").
	FlushTable bool
}

// UpdatePage implements update_page (spec §4.5): legal only on a plain
// (non-compressed), currently-writing page. Repatches the row-count field
// if the stored bucket changed, then appends any newly-flagged rows.
func (h *Handle) UpdatePage(p *Page, opts UpdateOptions) error {
	if h.compressed {
		return h.push(KindState, "update_page", errors.New("update_page is not legal on a compressed sink"))
	}
	if err := h.requireState("update_page", PageOpenWriting); err != nil {
		return err
	}
	if !p.writing {
		return h.push(KindState, "update_page", errors.New("page is not in the writing state"))
	}
	if !h.buf.Seekable() {
		return h.push(KindState, "update_page", errors.New("underlying sink does not support seeking"))
	}

	if err := h.buf.Flush(); err != nil {
		return h.push(KindIO, "update_page:flush", err)
	}
	tail, err := h.buf.Tell()
	if err != nil {
		return h.push(KindIO, "update_page:tell", err)
	}

	newRows := p.FirstRowInMem + p.RowsOfInterest(h.Layout.ColumnMajor)
	if newRows == p.NRowsWritten {
		return nil
	}
	if newRows < p.NRowsWritten {
		return h.push(KindFormat, "update_page", ErrRowCountShrank)
	}

	storedRows := newRows
	bucketChanged := storedRows != p.StoredRowCount
	if h.Layout.FixedRowCount {
		prevBucket := p.StoredRowCount
		h.Layout.FixedRowIncrement = growIncrementIfNeeded(p.NRowsWritten, newRows, h.Layout.FixedRowIncrement)
		storedRows = roundedRowCount(newRows, h.Layout.FixedRowIncrement)
		bucketChanged = storedRows != prevBucket
	}

	if bucketChanged {
		if !p.WrittenAsI64 && storedRows > maxI32 {
			return h.push(KindFormat, "update_page", ErrEscapeCrossing)
		}
		if _, err := h.buf.Seek(p.RowCountOffset, io.SeekStart); err != nil {
			return h.push(KindIO, "update_page:seek_rowcount", err)
		}
		escaped, err := h.writeRowCount(storedRows)
		if err != nil {
			return h.push(KindIO, "update_page:write_rowcount", err)
		}
		p.WrittenAsI64 = p.WrittenAsI64 || escaped
		if err := h.buf.Flush(); err != nil {
			return h.push(KindIO, "update_page:flush_rowcount", err)
		}
		if _, err := h.buf.Seek(tail, io.SeekStart); err != nil {
			return h.push(KindIO, "update_page:seek_tail", err)
		}
	}

	if !h.Layout.ColumnMajor {
		for i := p.LastRowWritten + 1; int(i) < len(p.Rows); i++ {
			if !p.flagged(int(i)) {
				continue
			}
			if err := h.codec.WriteRow(h.Layout, p.Rows[i]); err != nil {
				return h.push(KindFormat, fmt.Sprintf("update_page:row[%d]", i), err)
			}
			p.LastRowWritten = i
		}
	}

	if err := h.buf.Flush(); err != nil {
		return h.push(KindIO, "update_page:final_flush", err)
	}
	p.NRowsWritten = newRows
	p.StoredRowCount = storedRows

	if opts.FlushTable {
		p.Rows = nil
		p.RowFlag = nil
		p.NRows = 0
		p.FirstRowInMem = newRows
		p.LastRowWritten = -1
	}
	return nil
}

const maxI32 = int64(1<<31 - 1)
