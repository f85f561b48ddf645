package pageio

import "github.com/SimonWaldherr/sddspage/internal/codec"

// Page is the mutable per-page state of spec §3: row count, the typed
// column/row store, the row-of-interest flag vector, and the bookkeeping
// start_page/lengthen_table/end_page needs to track partially-written or
// partially-read pages across write_page/update_page calls.
type Page struct {
	// RowFlag marks which in-memory rows are "of interest" (1) vs
	// suppressed (0); write_page counts rows as |{i : RowFlag[i]}| in
	// row-major mode. Column-major mode ignores it entirely.
	RowFlag []bool

	Parameters []codec.Value
	Arrays     []codec.ArrayValue

	// Rows holds row-major data; Columns holds column-major data. A page
	// uses exactly one of the two, selected by its Layout's ColumnMajor.
	Rows    []codec.Row
	Columns [][]codec.Value

	// NRows is the column-major in-memory row count (the length of each
	// column). ReadPage sets it to the on-disk row count of the page it
	// read, which exceeds len(Rows) after a sparsed read; row-major writes
	// count len(Rows) and RowFlag instead.
	NRows int64

	// RowCountOffset is the sink offset write_page recorded for the
	// row-count field, so update_page can seek back and repatch it.
	RowCountOffset int64

	// NRowsWritten is the raw number of rows written/appended so far
	// (spec's n_rows_written) — NOT the value encoded on disk, which may
	// be rounded up under fixed_row_count; that value is StoredRowCount.
	NRowsWritten int64

	// StoredRowCount is the value actually encoded in the on-disk
	// row-count field (rounded per spec §6.3 when FixedRowCount is set).
	StoredRowCount int64

	// FirstRowInMem/LastRowWritten track the append cursor for update_page:
	// rows [LastRowWritten+1, len(Rows)) with RowFlag set are the ones
	// update_page still needs to append.
	FirstRowInMem  int64
	LastRowWritten int64

	// WrittenAsI64 latches once a page's row count has been written using
	// the INT32_MIN-escape + i64 form. update_page refuses to raise a count
	// above i32::MAX unless it is set, since a page first written in the
	// 4-byte form has no room for the escape (spec §4.5 step 3).
	WrittenAsI64 bool

	writing bool
}

// NewPage allocates an empty page ready for start_page.
func NewPage() *Page {
	return &Page{LastRowWritten: -1}
}

// RowsOfInterest returns the row-major count write_page computes as
// |{i : RowFlag[i]}|. For column-major pages it returns NRows directly,
// since RowFlag is ignored there (spec §4.5 step 3).
func (p *Page) RowsOfInterest(columnMajor bool) int64 {
	if columnMajor {
		return p.NRows
	}
	if p.RowFlag == nil {
		return int64(len(p.Rows))
	}
	var n int64
	for _, f := range p.RowFlag {
		if f {
			n++
		}
	}
	return n
}

// flagged reports whether row i is marked of interest, treating a nil
// RowFlag vector (never explicitly set) as "every row is of interest".
func (p *Page) flagged(i int) bool {
	if p.RowFlag == nil {
		return true
	}
	if i < 0 || i >= len(p.RowFlag) {
		return false
	}
	return p.RowFlag[i]
}
