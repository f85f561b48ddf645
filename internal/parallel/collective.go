package parallel

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync/atomic"

	"github.com/SimonWaldherr/sddspage/internal/codec"
	"github.com/SimonWaldherr/sddspage/internal/config"
	"github.com/SimonWaldherr/sddspage/internal/iobuf"
	"github.com/SimonWaldherr/sddspage/internal/layout"
)

// truncatedStringCount is the process-global counter spec §4.6 names:
// "truncation increments a process-global counter" — shared by every
// ParallelHandle in the process, not per-handle, matching the teacher's
// package-level atomic metrics in internal/storage.
var truncatedStringCount atomic.Int64

// TruncatedStringCount returns how many row-mode string values have been
// truncated to fit the fixed column width, across every ParallelHandle in
// this process.
func TruncatedStringCount() int64 { return truncatedStringCount.Load() }

// ErrStringUnsupported is returned when a layout with string columns is
// used in collective or column-major parallel I/O (spec §4.6: "String
// columns are not supported in collective I/O or in column-major writes").
// WriteRowsCollective also returns it for every column-major layout,
// string columns or not.
var ErrStringUnsupported = errors.New("parallel: string columns are not supported in this mode")

// ParallelOptions configures a ParallelHandle.
type ParallelOptions struct {
	MasterRead  bool // spec §4.6 "Row partition": if false, rank 0 never gets rows
	StringWidth int  // fixed width W for row-mode strings; 0 uses config.StringColumnWidth()
}

// ParallelHandle is one rank's view of a shared-file ParallelPageEngine
// (spec §4.6). Every rank opens its own buffer over the same underlying
// file; HeaderEndOffset and ColumnStride must be identical across ranks
// (they are derived from the layout every rank received via the initial
// broadcast, per the "Open" step).
type ParallelHandle struct {
	Layout *layout.Layout
	Comm   Communicator
	buf    *iobuf.Buffer
	codec  *codec.Codec
	parser codec.FixedValueParser

	HeaderEndOffset int64
	ColumnStride    int
	MasterRead      bool
	StringWidth     int

	title     *Title
	partition Partition
}

// OpenParallel constructs a ParallelHandle. buf must already be positioned
// at headerEndOffset for a fresh page (callers reposition it per page via
// Seek since every rank shares one file).
func OpenParallel(l *layout.Layout, comm Communicator, buf *iobuf.Buffer, headerEndOffset int64, parser codec.FixedValueParser, opts ParallelOptions) (*ParallelHandle, error) {
	if l.ColumnMajor {
		for _, c := range l.Columns() {
			if c.Type == layout.String {
				return nil, fmt.Errorf("parallel: OpenParallel: %w", ErrStringUnsupported)
			}
		}
	}
	width := opts.StringWidth
	if width <= 0 {
		width = config.StringColumnWidth()
	}
	return &ParallelHandle{
		Layout:          l,
		Comm:            comm,
		buf:             buf,
		codec:           codec.New(buf, l.DeclaredByteOrder),
		parser:          parser,
		HeaderEndOffset: headerEndOffset,
		ColumnStride:    parallelRowStride(l, width),
		MasterRead:      opts.MasterRead,
		StringWidth:     width,
	}, nil
}

// OpenTitle runs the "Title broadcast per page" step: rank 0 reads the
// row-count field, parameters, and arrays at the buffer's current
// position and broadcasts them; every rank then computes and stores its
// row partition.
func (h *ParallelHandle) OpenTitle(ctx context.Context) (*Title, error) {
	var mine *Title
	if h.Comm.Rank() == 0 {
		t, err := ReadTitle(h.Layout, h.buf, h.parser)
		if err != nil {
			return nil, err
		}
		mine = t
	}
	t, err := BroadcastTitle(ctx, h.Comm, h.Layout, mine, h.parser)
	if err != nil {
		return nil, err
	}
	h.title = t
	parts := PartitionRows(t.TotalRows, h.Comm.Size(), h.MasterRead)
	h.partition = Mine(parts, h.Comm.Rank())
	return t, nil
}

// Title returns the title established by the most recent OpenTitle call.
func (h *ParallelHandle) Title() *Title { return h.title }

// Partition returns this rank's row partition established by OpenTitle.
func (h *ParallelHandle) Partition() Partition { return h.partition }

func (h *ParallelHandle) seekToRow(row int64) error {
	off := h.HeaderEndOffset + row*int64(h.ColumnStride)
	_, err := h.buf.Seek(off, io.SeekStart)
	return err
}

// ReadRows implements the "Read" step: seek to this rank's slice and read
// it row-major. Column-major reads use ReadColumnSlice instead.
func (h *ParallelHandle) ReadRows() ([]codec.Row, error) {
	if h.Layout.ColumnMajor {
		return nil, fmt.Errorf("parallel: ReadRows: layout is column-major, use ReadColumnSlice")
	}
	if err := h.seekToRow(h.partition.StartRow); err != nil {
		return nil, err
	}
	rows := make([]codec.Row, h.partition.NumRows)
	for i := range rows {
		row, err := h.readFixedRow()
		if err != nil {
			return nil, fmt.Errorf("parallel: ReadRows: row %d: %w", i, err)
		}
		rows[i] = row
	}
	return rows, nil
}

// ReadColumnSlice implements the "Read" step for column-major layouts: each
// readable column is itself stored as one contiguous rank-ordered block, so
// a rank's slice of column c starts at headerEnd + c's column offset +
// startRow*sizeof(type) — simpler than the row-major case since there is
// no per-row stride to cross. Strings are already forbidden column-major
// (invariant 2), so every column here is fixed-size.
func (h *ParallelHandle) ReadColumnSlice() ([][]codec.Value, error) {
	if !h.Layout.ColumnMajor {
		return nil, fmt.Errorf("parallel: ReadColumnSlice: layout is not column-major")
	}
	idx := h.Layout.ReadableColumnIndices()
	cols := h.Layout.Columns()
	out := make([][]codec.Value, len(idx))
	colOffset := h.HeaderEndOffset
	for i, ci := range idx {
		t := cols[ci].Type
		size := scalarSize(t)
		start := colOffset + h.partition.StartRow*int64(size)
		if _, err := h.buf.Seek(start, io.SeekStart); err != nil {
			return nil, err
		}
		vals := make([]codec.Value, h.partition.NumRows)
		for r := range vals {
			v, err := h.codec.ReadScalar(t, h.Layout.DeclaredByteOrder)
			if err != nil {
				return nil, fmt.Errorf("parallel: ReadColumnSlice: column %q row %d: %w", cols[ci].Name, r, err)
			}
			vals[r] = v
		}
		out[i] = vals
		colOffset += h.title.TotalRows * int64(size)
	}
	return out, nil
}

// WriteRows implements the non-collective "Write" step: this rank writes
// its local rows at its own slice of the shared file, row-major. Callers
// must supply exactly one row per in-memory row this rank holds; the
// written count feeds the subsequent all-reduce for the new total_rows.
func (h *ParallelHandle) WriteRows(ctx context.Context, rows []codec.Row, rowCountOffset int64) (int64, error) {
	if h.Layout.ColumnMajor {
		return 0, fmt.Errorf("parallel: WriteRows: layout is column-major, use WriteColumnSlice")
	}
	start := h.partition.StartRow
	if err := h.seekToRow(start); err != nil {
		return 0, err
	}
	for i, row := range rows {
		if err := h.writeFixedRow(row); err != nil {
			return 0, fmt.Errorf("parallel: WriteRows: row %d: %w", i, err)
		}
	}
	if err := h.buf.Flush(); err != nil {
		return 0, err
	}
	return h.finalizeRowCount(ctx, int64(len(rows)), rowCountOffset)
}

// WriteColumnSlice is the column-major analogue of WriteRows.
func (h *ParallelHandle) WriteColumnSlice(ctx context.Context, columns [][]codec.Value, rowCountOffset int64) (int64, error) {
	if !h.Layout.ColumnMajor {
		return 0, fmt.Errorf("parallel: WriteColumnSlice: layout is not column-major")
	}
	idx := h.Layout.ReadableColumnIndices()
	if len(columns) != len(idx) {
		return 0, fmt.Errorf("parallel: WriteColumnSlice: got %d column slices for %d readable columns", len(columns), len(idx))
	}
	cols := h.Layout.Columns()
	colOffset := h.HeaderEndOffset
	var localRows int64
	for i, ci := range idx {
		t := cols[ci].Type
		size := scalarSize(t)
		col := columns[i]
		if int64(len(col)) > localRows {
			localRows = int64(len(col))
		}
		start := colOffset + h.partition.StartRow*int64(size)
		if _, err := h.buf.Seek(start, io.SeekStart); err != nil {
			return 0, err
		}
		for r, v := range col {
			if err := h.codec.WriteScalar(t, v); err != nil {
				return 0, fmt.Errorf("parallel: WriteColumnSlice: column %q row %d: %w", cols[ci].Name, r, err)
			}
		}
		colOffset += h.title.TotalRows * int64(size)
	}
	if err := h.buf.Flush(); err != nil {
		return 0, err
	}
	return h.finalizeRowCount(ctx, localRows, rowCountOffset)
}

// WriteRowsCollective implements spec §4.6's "Collective mode": every rank
// must issue the same row-write count. The ranks first agree (via a
// min-reduce) on the largest count every rank can satisfy, write that many
// rows as one collective pass, then each rank writes its own surplus rows
// individually before the final flush.
func (h *ParallelHandle) WriteRowsCollective(ctx context.Context, rows []codec.Row, rowCountOffset int64) (int64, error) {
	if h.Layout.ColumnMajor {
		return 0, fmt.Errorf("parallel: WriteRowsCollective: %w (column-major)", ErrStringUnsupported)
	}
	for _, c := range h.Layout.Columns() {
		if c.Type == layout.String {
			// row-mode strings are fixed-width, so they are allowed outside
			// collective mode, but spec §4.6 forbids them in collective I/O.
			return 0, fmt.Errorf("parallel: WriteRowsCollective: %w", ErrStringUnsupported)
		}
	}
	minCount, err := h.Comm.AllReduceMinInt64(ctx, int64(len(rows)))
	if err != nil {
		return 0, err
	}
	if err := h.seekToRow(h.partition.StartRow); err != nil {
		return 0, err
	}
	for i := int64(0); i < minCount; i++ {
		if err := h.writeFixedRow(rows[i]); err != nil {
			return 0, fmt.Errorf("parallel: WriteRowsCollective: collective row %d: %w", i, err)
		}
	}
	for i := minCount; i < int64(len(rows)); i++ {
		if err := h.writeFixedRow(rows[i]); err != nil {
			return 0, fmt.Errorf("parallel: WriteRowsCollective: surplus row %d: %w", i, err)
		}
	}
	if err := h.buf.Flush(); err != nil {
		return 0, err
	}
	return h.finalizeRowCount(ctx, int64(len(rows)), rowCountOffset)
}

// finalizeRowCount implements the tail of the "Write" step: an all-reduce
// of local row counts, a barrier (spec §5: enforced before rank 0 patches
// the row-count field), and the patch itself by rank 0 alone.
func (h *ParallelHandle) finalizeRowCount(ctx context.Context, localRows int64, rowCountOffset int64) (int64, error) {
	total, err := h.Comm.AllReduceSumInt64(ctx, localRows)
	if err != nil {
		return 0, err
	}
	if err := h.Comm.Barrier(ctx); err != nil {
		return 0, err
	}
	if h.Comm.Rank() == 0 {
		if _, err := h.buf.Seek(rowCountOffset, io.SeekStart); err != nil {
			return 0, err
		}
		if err := writeRowCountRaw(h.codec, total); err != nil {
			return 0, err
		}
		if err := h.buf.Flush(); err != nil {
			return 0, err
		}
	}
	return total, nil
}

func writeRowCountRaw(c *codec.Codec, rows int64) error {
	if rows > (1<<31 - 1) {
		if err := c.WriteScalar(layout.I32, int32MinParallel); err != nil {
			return err
		}
		return c.WriteScalar(layout.I64, rows)
	}
	return c.WriteScalar(layout.I32, int32(rows))
}

// writeFixedRow writes one row-major record using the parallel engine's
// fixed-width string convention instead of the serial engine's length-
// prefixed one: every column occupies exactly its parallelRowStride slot
// regardless of value, so ranks can seek directly to header_end +
// start_row × column_stride without scanning.
func (h *ParallelHandle) writeFixedRow(row codec.Row) error {
	idx := h.Layout.ReadableColumnIndices()
	cols := h.Layout.Columns()
	if len(row) != len(idx) {
		return fmt.Errorf("expected %d values, got %d", len(idx), len(row))
	}
	for i, ci := range idx {
		col := cols[ci]
		if col.Type == layout.String {
			s, _ := row[i].(string)
			if err := h.writeFixedString(s); err != nil {
				return err
			}
			continue
		}
		if err := h.codec.WriteScalar(col.Type, row[i]); err != nil {
			return err
		}
	}
	return nil
}

func (h *ParallelHandle) readFixedRow() (codec.Row, error) {
	idx := h.Layout.ReadableColumnIndices()
	cols := h.Layout.Columns()
	out := make(codec.Row, len(idx))
	for i, ci := range idx {
		col := cols[ci]
		if col.Type == layout.String {
			s, err := h.readFixedString()
			if err != nil {
				return nil, err
			}
			out[i] = s
			continue
		}
		v, err := h.codec.ReadScalar(col.Type, h.Layout.DeclaredByteOrder)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

// writeFixedString right-pads or truncates s to StringWidth bytes (spec
// §4.6: "right-padded or truncated to a fixed width W"); truncation
// increments the process-global counter.
func (h *ParallelHandle) writeFixedString(s string) error {
	buf := make([]byte, h.StringWidth)
	if len(s) > h.StringWidth {
		copy(buf, s[:h.StringWidth])
		truncatedStringCount.Add(1)
	} else {
		copy(buf, s)
		for i := len(s); i < h.StringWidth; i++ {
			buf[i] = ' '
		}
	}
	return h.codec.Buffer().Write(buf)
}

func (h *ParallelHandle) readFixedString() (string, error) {
	buf := make([]byte, h.StringWidth)
	if err := h.codec.Buffer().Read(buf); err != nil {
		return "", err
	}
	end := len(buf)
	for end > 0 && buf[end-1] == ' ' {
		end--
	}
	return string(buf[:end]), nil
}

func scalarSize(t layout.Type) int {
	switch t {
	case layout.I16, layout.U16:
		return 2
	case layout.I32, layout.U32, layout.F32:
		return 4
	case layout.I64, layout.U64, layout.F64:
		return 8
	case layout.F80:
		return 16
	case layout.Char:
		return 1
	default:
		return 0
	}
}

// parallelRowStride computes the row-major on-wire stride for the parallel
// engine's own fixed-width encoding: every readable column contributes its
// scalarSize, with a string column contributing exactly width bytes (no
// length prefix) rather than layout.FixedRowStride's 4+width, since
// writeFixedRow/readFixedRow never write that prefix.
func parallelRowStride(l *layout.Layout, width int) int {
	stride := 0
	for _, ci := range l.ReadableColumnIndices() {
		t := l.Columns()[ci].Type
		if t == layout.String {
			stride += width
			continue
		}
		stride += scalarSize(t)
	}
	return stride
}
