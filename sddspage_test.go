package sddspage

import (
	"math"
	"path/filepath"
	"testing"
)

func testLayout() *Layout {
	l := NewLayout()
	l.DefineParameter(ParameterDef{Name: "run_id", Type: I32})
	l.DefineColumn(ColumnDef{Name: "t", Type: F64})
	l.DefineColumn(ColumnDef{Name: "value", Type: F64})
	return l
}

func writeSample(t *testing.T, path string, compress string) {
	t.Helper()
	h, closeFn, err := CreateFile(path, testLayout(), CreateOptions{Compress: compress})
	if err != nil {
		t.Fatal(err)
	}
	defer func() {
		if err := closeFn(); err != nil {
			t.Fatal(err)
		}
	}()

	p := h.StartPage()
	p.Parameters = []Value{int32(7)}
	p.Rows = []Row{
		{0.0, math.Sin(0)},
		{0.1, math.Sin(0.1)},
		{0.2, math.Sin(0.2)},
	}
	p.RowFlag = []bool{true, true, true}
	if err := h.WritePage(p); err != nil {
		t.Fatal(err)
	}
}

func TestCreateThenOpenFileRoundTrips(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sample.sdds")
	writeSample(t, path, "")

	h, closeFn, err := OpenFile(path, OpenOptions{})
	if err != nil {
		t.Fatal(err)
	}
	defer closeFn()

	num, page, err := h.ReadPage(ReadOptions{SparseInterval: 1})
	if err != nil {
		t.Fatal(err)
	}
	if num != 1 {
		t.Fatalf("page number = %d, want 1", num)
	}
	if len(page.Rows) != 3 {
		t.Fatalf("got %d rows, want 3", len(page.Rows))
	}
	if page.Parameters[0].(int32) != 7 {
		t.Fatalf("run_id = %v, want 7", page.Parameters[0])
	}

	_, _, err = h.ReadPage(ReadOptions{SparseInterval: 1})
	if err != nil {
		t.Fatalf("expected clean EOF after the only page, got error: %v", err)
	}
}

func TestCreateThenOpenFileGzipRoundTrips(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sample.sdds.gz")
	writeSample(t, path, "gzip")

	h, closeFn, err := OpenFile(path, OpenOptions{})
	if err != nil {
		t.Fatal(err)
	}
	defer closeFn()

	_, page, err := h.ReadPage(ReadOptions{SparseInterval: 1})
	if err != nil {
		t.Fatal(err)
	}
	if len(page.Rows) != 3 {
		t.Fatalf("got %d rows, want 3", len(page.Rows))
	}
}

func TestOpenFileDetectsCompressionFromExtension(t *testing.T) {
	if got := detectCompression("run.sdds.gz"); got != "gzip" {
		t.Fatalf("detectCompression(.gz) = %q, want gzip", got)
	}
	if got := detectCompression("run.sdds.xz"); got != "xz" {
		t.Fatalf("detectCompression(.xz) = %q, want xz", got)
	}
	if got := detectCompression("run.sdds"); got != "" {
		t.Fatalf("detectCompression(.sdds) = %q, want empty", got)
	}
}

func TestSparseIntervalSkipsRows(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sparse.sdds")
	l := testLayout()
	h, closeFn, err := CreateFile(path, l, CreateOptions{})
	if err != nil {
		t.Fatal(err)
	}
	p := h.StartPage()
	p.Rows = make([]Row, 10)
	p.RowFlag = make([]bool, 10)
	for i := range p.Rows {
		p.Rows[i] = Row{float64(i), float64(i) * 2}
		p.RowFlag[i] = true
	}
	p.Parameters = []Value{int32(1)}
	if err := h.WritePage(p); err != nil {
		t.Fatal(err)
	}
	if err := closeFn(); err != nil {
		t.Fatal(err)
	}

	rh, rCloseFn, err := OpenFile(path, OpenOptions{})
	if err != nil {
		t.Fatal(err)
	}
	defer rCloseFn()

	_, page, err := rh.ReadPage(ReadOptions{SparseInterval: 3})
	if err != nil {
		t.Fatal(err)
	}
	if len(page.Rows) != 4 { // rows 0, 3, 6, 9
		t.Fatalf("sparse read returned %d rows, want 4", len(page.Rows))
	}
}
