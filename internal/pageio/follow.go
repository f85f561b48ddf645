package pageio

import (
	"errors"
	"io"

	"github.com/SimonWaldherr/sddspage/internal/byteorder"
	"github.com/SimonWaldherr/sddspage/internal/layout"
)

// ErrFollowUnsupported is returned by ReadNewRows when the handle's file
// isn't plain, row-major, and native-byte-order (spec §4.5 "Read-new-rows
// (follow mode)").
var ErrFollowUnsupported = errors.New("pageio: read_new_rows requires a plain, row-major, native-byte-order file")

func (h *Handle) isNativeOrder() bool {
	switch h.Layout.DeclaredByteOrder {
	case layout.OrderBig:
		return byteorder.IsBigEndianHost()
	case layout.OrderLittle:
		return !byteorder.IsBigEndianHost()
	default:
		return true
	}
}

// ReadNewRows implements follow mode: re-reads the on-disk row count at
// p.RowCountOffset and appends any rows beyond what's already in p,
// without disturbing the handle's current stream position otherwise.
func (h *Handle) ReadNewRows(p *Page) (int64, error) {
	if h.compressed || h.Layout.ColumnMajor || !h.isNativeOrder() || !h.buf.Seekable() {
		return 0, h.push(KindState, "read_new_rows", ErrFollowUnsupported)
	}

	cur, err := h.buf.Tell()
	if err != nil {
		return 0, h.push(KindIO, "read_new_rows:tell", err)
	}
	if _, err := h.buf.Seek(p.RowCountOffset, io.SeekStart); err != nil {
		return 0, h.push(KindIO, "read_new_rows:seek_rowcount", err)
	}
	total, err := h.readRowCount()
	if err != nil {
		return 0, h.push(KindIO, "read_new_rows:row_count", err)
	}
	if _, err := h.buf.Seek(cur, io.SeekStart); err != nil {
		return 0, h.push(KindIO, "read_new_rows:seek_back", err)
	}

	newCount := total - p.NRows
	if newCount <= 0 {
		return 0, nil
	}
	for i := int64(0); i < newCount; i++ {
		row, err := h.codec.ReadRow(h.Layout)
		if err != nil {
			return 0, h.push(KindShortRead, "read_new_rows:row", err)
		}
		p.Rows = append(p.Rows, row)
	}
	p.NRows = total
	return newCount, nil
}
