package pageio

import (
	"fmt"

	"github.com/SimonWaldherr/sddspage/internal/codec"
	"github.com/SimonWaldherr/sddspage/internal/config"
	"github.com/SimonWaldherr/sddspage/internal/layout"
)

// ensureCodecOrder rebuilds h.codec if the effective declared order has
// changed since it was last bound — cheap, since Codec carries no state
// beyond a handful of scratch arrays.
func (h *Handle) ensureCodecOrder(order layout.ByteOrder) {
	if h.Layout.DeclaredByteOrder == order && h.codec != nil {
		return
	}
	h.Layout.DeclaredByteOrder = order
	h.codec = codec.New(h.buf, order)
}

// effectiveWriteOrder resolves SDDS_OUTPUT_ENDIANESS against the layout's
// declared order, read once per write_page call (spec §4.5 step 1, §6.5).
func (h *Handle) effectiveWriteOrder() layout.ByteOrder {
	if forced, ok := config.OutputEndianess(); ok {
		return forced
	}
	return h.Layout.DeclaredByteOrder
}

// WritePage implements write_page (spec §4.5): record the row-count
// offset, write the row count (with the i32/i64-escape rule and, under
// fixed_row_count, the §6.3 rounding), then parameters, arrays, and either
// columns or rows.
func (h *Handle) WritePage(p *Page) error {
	if err := h.requireState("write_page", HeaderRead, PageClosed, PageOpenWriting); err != nil {
		return err
	}
	h.ensureCodecOrder(h.effectiveWriteOrder())

	offset, err := h.buf.Tell()
	if err != nil {
		return h.push(KindIO, "write_page", err)
	}
	p.RowCountOffset = offset

	rows := p.RowsOfInterest(h.Layout.ColumnMajor)

	storedRows := rows
	if h.Layout.FixedRowCount {
		storedRows = roundedRowCount(rows, h.Layout.FixedRowIncrement)
	}

	escaped, err := h.writeRowCount(storedRows)
	if err != nil {
		return h.push(KindIO, "write_page:row_count", err)
	}
	p.WrittenAsI64 = escaped

	if err := h.codec.WriteParameters(h.Layout, p.Parameters); err != nil {
		return h.push(KindFormat, "write_page:parameters", err)
	}
	if err := h.codec.WriteArrays(h.Layout, p.Arrays); err != nil {
		return h.push(KindFormat, "write_page:arrays", err)
	}

	if h.Layout.ColumnMajor {
		if err := h.codec.WriteColumns(h.Layout, p.Columns, int(p.NRows)); err != nil {
			return h.push(KindFormat, "write_page:columns", err)
		}
	} else {
		var written int64
		for i, row := range p.Rows {
			if !p.flagged(i) {
				continue
			}
			if err := h.codec.WriteRow(h.Layout, row); err != nil {
				return h.push(KindFormat, fmt.Sprintf("write_page:row[%d]", i), err)
			}
			p.LastRowWritten = int64(i)
			written++
		}
		if written != rows {
			return h.push(KindAlloc, "write_page", fmt.Errorf("flagged row count changed mid-write: expected %d, wrote %d", rows, written))
		}
	}

	if err := h.buf.Flush(); err != nil {
		return h.push(KindIO, "write_page:flush", err)
	}

	p.NRowsWritten = rows
	p.StoredRowCount = storedRows
	p.writing = true
	h.state = PageOpenWriting
	return nil
}
