package pageio

import (
	"encoding/binary"
	"os"
	"testing"

	"github.com/SimonWaldherr/sddspage/internal/codec"
	"github.com/SimonWaldherr/sddspage/internal/iobuf"
	"github.com/SimonWaldherr/sddspage/internal/layout"
)

func tempFile(t *testing.T) (*os.File, func()) {
	t.Helper()
	f, err := os.CreateTemp(t.TempDir(), "sddspage-*.bin")
	if err != nil {
		t.Fatal(err)
	}
	return f, func() { f.Close() }
}

func nativeRowCountBytes(n uint32) []byte {
	b := make([]byte, 4)
	binary.NativeEndian.PutUint32(b, n)
	return b
}

func TestWritePageThenReadPageRoundTrip(t *testing.T) {
	l := layout.New()
	if err := l.DefineParameter(layout.ParameterDef{Name: "step", Type: layout.I32}); err != nil {
		t.Fatal(err)
	}
	if err := l.DefineColumn(layout.ColumnDef{Name: "i", Type: layout.I32}); err != nil {
		t.Fatal(err)
	}
	if err := l.DefineColumn(layout.ColumnDef{Name: "x", Type: layout.F64}); err != nil {
		t.Fatal(err)
	}

	f, closeF := tempFile(t)
	defer closeF()

	wb, err := iobuf.NewWriteBuffer(f, 256, false)
	if err != nil {
		t.Fatal(err)
	}
	wh := Open(l, wb, false, nil)
	wp := wh.StartPage()
	wp.Parameters = []codec.Value{int32(7)}
	wp.Rows = []codec.Row{{int32(1), 1.5}, {int32(2), 2.5}, {int32(3), 3.5}}
	if err := wh.WritePage(wp); err != nil {
		t.Fatalf("WritePage: %v", err)
	}
	if err := wh.Terminate(); err != nil {
		t.Fatal(err)
	}

	raw, err := os.ReadFile(f.Name())
	if err != nil {
		t.Fatal(err)
	}
	if len(raw) < 4 || !bytesEqual(raw[:4], nativeRowCountBytes(3)) {
		t.Fatalf("row-count header bytes = %v, want %v", raw[:4], nativeRowCountBytes(3))
	}

	rf, err := os.Open(f.Name())
	if err != nil {
		t.Fatal(err)
	}
	defer rf.Close()
	rb, err := iobuf.NewReadBuffer(rf, 256, false)
	if err != nil {
		t.Fatal(err)
	}
	rh := Open(l, rb, false, nil)
	num, page, err := rh.ReadPage(ReadOptions{SparseInterval: 1})
	if err != nil {
		t.Fatalf("ReadPage: %v", err)
	}
	if num != 1 {
		t.Errorf("page number = %d, want 1", num)
	}
	if page.Parameters[0].(int32) != 7 {
		t.Errorf("parameter step = %v, want 7", page.Parameters[0])
	}
	want := []codec.Row{{int32(1), 1.5}, {int32(2), 2.5}, {int32(3), 3.5}}
	if len(page.Rows) != len(want) {
		t.Fatalf("got %d rows, want %d", len(page.Rows), len(want))
	}
	for i, row := range page.Rows {
		if row[0].(int32) != want[i][0].(int32) || row[1].(float64) != want[i][1].(float64) {
			t.Errorf("row %d = %v, want %v", i, row, want[i])
		}
	}

	num2, _, err := rh.ReadPage(ReadOptions{SparseInterval: 1})
	if err != nil {
		t.Fatalf("second ReadPage: %v", err)
	}
	if num2 != -1 {
		t.Errorf("second ReadPage = %d, want -1 (EOF)", num2)
	}
}

func bytesEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestWriteRowCountEscapesAboveInt32Max(t *testing.T) {
	l := layout.New()
	if err := l.DefineColumn(layout.ColumnDef{Name: "x", Type: layout.I32}); err != nil {
		t.Fatal(err)
	}

	f, closeF := tempFile(t)
	defer closeF()
	wb, err := iobuf.NewWriteBuffer(f, 256, false)
	if err != nil {
		t.Fatal(err)
	}
	h := Open(l, wb, false, nil)

	const big = int64(1) << 31 // 2_147_483_648, one past i32::MAX
	escaped, err := h.writeRowCount(big)
	if err != nil {
		t.Fatal(err)
	}
	if !escaped {
		t.Fatal("expected the escape form to be used")
	}
	if err := wb.Flush(); err != nil {
		t.Fatal(err)
	}

	raw, err := os.ReadFile(f.Name())
	if err != nil {
		t.Fatal(err)
	}
	if len(raw) != 12 {
		t.Fatalf("expected 12 bytes (i32 sentinel + i64), got %d", len(raw))
	}
	if int32(binary.NativeEndian.Uint32(raw[:4])) != int32Min {
		t.Fatalf("first 4 bytes = %v, want INT32_MIN", raw[:4])
	}
	if int64(binary.NativeEndian.Uint64(raw[4:12])) != big {
		t.Fatalf("next 8 bytes decode to %d, want %d", binary.NativeEndian.Uint64(raw[4:12]), big)
	}
}

func TestUpdatePageFixedRowCountRounding(t *testing.T) {
	l := layout.New()
	if err := l.DefineColumn(layout.ColumnDef{Name: "x", Type: layout.I32}); err != nil {
		t.Fatal(err)
	}
	l.FixedRowCount = true
	l.FixedRowIncrement = 10

	f, closeF := tempFile(t)
	defer closeF()
	wb, err := iobuf.NewWriteBuffer(f, 0, false)
	if err != nil {
		t.Fatal(err)
	}
	h := Open(l, wb, false, nil)
	p := h.StartPage()
	p.Rows = []codec.Row{{int32(1)}, {int32(2)}}
	if err := h.WritePage(p); err != nil {
		t.Fatalf("WritePage: %v", err)
	}
	if p.StoredRowCount != 20 {
		t.Fatalf("initial stored row count = %d, want 20", p.StoredRowCount)
	}

	for i := 0; i < 5; i++ {
		p.Rows = append(p.Rows, codec.Row{int32(10 + i)})
	}
	if err := h.UpdatePage(p, UpdateOptions{}); err != nil {
		t.Fatalf("UpdatePage (first grow): %v", err)
	}
	if p.StoredRowCount != 20 {
		t.Fatalf("after +5 rows stored row count = %d, want still 20", p.StoredRowCount)
	}

	for i := 0; i < 8; i++ {
		p.Rows = append(p.Rows, codec.Row{int32(100 + i)})
	}
	if err := h.UpdatePage(p, UpdateOptions{}); err != nil {
		t.Fatalf("UpdatePage (second grow): %v", err)
	}
	if p.StoredRowCount != 30 {
		t.Fatalf("after +8 more rows stored row count = %d, want 30", p.StoredRowCount)
	}

	raw, err := os.ReadFile(f.Name())
	if err != nil {
		t.Fatal(err)
	}
	if int32(binary.NativeEndian.Uint32(raw[:4])) != 30 {
		t.Fatalf("on-disk row count = %d, want 30", int32(binary.NativeEndian.Uint32(raw[:4])))
	}
}

func TestSparsingWithMedianAggregate(t *testing.T) {
	l := layout.New()
	if err := l.DefineColumn(layout.ColumnDef{Name: "x", Type: layout.F64}); err != nil {
		t.Fatal(err)
	}

	f, closeF := tempFile(t)
	defer closeF()
	wb, err := iobuf.NewWriteBuffer(f, 0, false)
	if err != nil {
		t.Fatal(err)
	}
	h := Open(l, wb, false, nil)
	p := h.StartPage()
	for i := 0; i < 100; i++ {
		p.Rows = append(p.Rows, codec.Row{float64(i)})
	}
	if err := h.WritePage(p); err != nil {
		t.Fatal(err)
	}
	if err := h.Terminate(); err != nil {
		t.Fatal(err)
	}

	rf, err := os.Open(f.Name())
	if err != nil {
		t.Fatal(err)
	}
	defer rf.Close()
	rb, err := iobuf.NewReadBuffer(rf, 0, false)
	if err != nil {
		t.Fatal(err)
	}
	rh := Open(l, rb, false, nil)
	_, page, err := rh.ReadPage(ReadOptions{SparseInterval: 10, SparseStatistics: StatMedian})
	if err != nil {
		t.Fatal(err)
	}
	want := []float64{4.5, 14.5, 24.5, 34.5, 44.5, 54.5, 64.5, 74.5, 84.5, 94.5}
	if len(page.Rows) != len(want) {
		t.Fatalf("got %d sparsed rows, want %d", len(page.Rows), len(want))
	}
	for i, row := range page.Rows {
		if row[0].(float64) != want[i] {
			t.Errorf("window %d median = %v, want %v", i, row[0], want[i])
		}
	}
}

func TestSparsingIdentityWhenIntervalOne(t *testing.T) {
	l := layout.New()
	if err := l.DefineColumn(layout.ColumnDef{Name: "x", Type: layout.I32}); err != nil {
		t.Fatal(err)
	}

	f, closeF := tempFile(t)
	defer closeF()
	wb, err := iobuf.NewWriteBuffer(f, 0, false)
	if err != nil {
		t.Fatal(err)
	}
	h := Open(l, wb, false, nil)
	p := h.StartPage()
	for i := 0; i < 5; i++ {
		p.Rows = append(p.Rows, codec.Row{int32(i)})
	}
	if err := h.WritePage(p); err != nil {
		t.Fatal(err)
	}
	if err := h.Terminate(); err != nil {
		t.Fatal(err)
	}

	rf, err := os.Open(f.Name())
	if err != nil {
		t.Fatal(err)
	}
	defer rf.Close()
	rb, err := iobuf.NewReadBuffer(rf, 0, false)
	if err != nil {
		t.Fatal(err)
	}
	rh := Open(l, rb, false, nil)
	_, page, err := rh.ReadPage(ReadOptions{SparseInterval: 1, SparseOffset: 0})
	if err != nil {
		t.Fatal(err)
	}
	if len(page.Rows) != 5 {
		t.Fatalf("got %d rows, want 5 (identity sparsing)", len(page.Rows))
	}
}

func TestZeroDimensionArrayRoundTrip(t *testing.T) {
	l := layout.New()
	if err := l.DefineArray(layout.ArrayDef{Name: "a", Type: layout.F64, Dimensions: 2}); err != nil {
		t.Fatal(err)
	}

	f, closeF := tempFile(t)
	defer closeF()
	wb, err := iobuf.NewWriteBuffer(f, 0, false)
	if err != nil {
		t.Fatal(err)
	}
	h := Open(l, wb, false, nil)
	p := h.StartPage()
	p.Arrays = []codec.ArrayValue{{Dimensions: []int32{0, 7}}}
	if err := h.WritePage(p); err != nil {
		t.Fatal(err)
	}
	if err := h.Terminate(); err != nil {
		t.Fatal(err)
	}

	rf, err := os.Open(f.Name())
	if err != nil {
		t.Fatal(err)
	}
	defer rf.Close()
	rb, err := iobuf.NewReadBuffer(rf, 0, false)
	if err != nil {
		t.Fatal(err)
	}
	rh := Open(l, rb, false, nil)
	_, page, err := rh.ReadPage(ReadOptions{SparseInterval: 1})
	if err != nil {
		t.Fatal(err)
	}
	if len(page.Arrays[0].Elements) != 0 {
		t.Fatalf("expected zero elements, got %d", len(page.Arrays[0].Elements))
	}
	if page.Arrays[0].Dimensions[1] != 7 {
		t.Fatalf("dimensions not preserved: %v", page.Arrays[0].Dimensions)
	}
}
