package layout

import "testing"

func TestDefineDuplicateNamesRejected(t *testing.T) {
	l := New()
	if err := l.DefineParameter(ParameterDef{Name: "p", Type: I32}); err != nil {
		t.Fatal(err)
	}
	if err := l.DefineParameter(ParameterDef{Name: "p", Type: F64}); err == nil {
		t.Fatal("expected error defining duplicate parameter name")
	}
	if err := l.DefineColumn(ColumnDef{Name: "c", Type: F64}); err != nil {
		t.Fatal(err)
	}
	if err := l.DefineColumn(ColumnDef{Name: "c", Type: I16}); err == nil {
		t.Fatal("expected error defining duplicate column name")
	}
}

func TestColumnMajorRejectsStringColumns(t *testing.T) {
	l := New()
	l.ColumnMajor = true
	if err := l.DefineColumn(ColumnDef{Name: "s", Type: String}); err == nil {
		t.Fatal("expected column-major layout to reject a string column")
	}
}

func TestIndexLookups(t *testing.T) {
	l := New()
	if err := l.DefineParameter(ParameterDef{Name: "p0", Type: I32}); err != nil {
		t.Fatal(err)
	}
	if err := l.DefineArray(ArrayDef{Name: "a0", Type: F64, Dimensions: 1}); err != nil {
		t.Fatal(err)
	}
	if err := l.DefineColumn(ColumnDef{Name: "c0", Type: F64}); err != nil {
		t.Fatal(err)
	}
	if err := l.DefineColumn(ColumnDef{Name: "c1", Type: F64}); err != nil {
		t.Fatal(err)
	}

	if i, ok := l.ParameterIndex("p0"); !ok || i != 0 {
		t.Fatalf("ParameterIndex(p0) = %d, %v", i, ok)
	}
	if i, ok := l.ArrayIndex("a0"); !ok || i != 0 {
		t.Fatalf("ArrayIndex(a0) = %d, %v", i, ok)
	}
	if i, ok := l.ColumnIndex("c1"); !ok || i != 1 {
		t.Fatalf("ColumnIndex(c1) = %d, %v", i, ok)
	}
	if _, ok := l.ColumnIndex("missing"); ok {
		t.Fatal("ColumnIndex(missing) should report not-found")
	}
}

func TestReadableColumnIndicesExcludesWriteOnly(t *testing.T) {
	l := New()
	if err := l.DefineColumn(ColumnDef{Name: "visible", Type: F64}); err != nil {
		t.Fatal(err)
	}
	if err := l.DefineColumn(ColumnDef{Name: "hidden", Type: F64, Flags: WriteOnly}); err != nil {
		t.Fatal(err)
	}
	if err := l.DefineColumn(ColumnDef{Name: "also_visible", Type: I32}); err != nil {
		t.Fatal(err)
	}

	got := l.ReadableColumnIndices()
	want := []int{0, 2}
	if len(got) != len(want) {
		t.Fatalf("ReadableColumnIndices() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("ReadableColumnIndices() = %v, want %v", got, want)
		}
	}
}

func TestFixedRowStrideSumsScalarSizesAndSkipsWriteOnly(t *testing.T) {
	l := New()
	if err := l.DefineColumn(ColumnDef{Name: "a", Type: F64}); err != nil { // 8
		t.Fatal(err)
	}
	if err := l.DefineColumn(ColumnDef{Name: "b", Type: I16}); err != nil { // 2
		t.Fatal(err)
	}
	if err := l.DefineColumn(ColumnDef{Name: "hidden", Type: F32, Flags: WriteOnly}); err != nil {
		t.Fatal(err)
	}
	if err := l.DefineColumn(ColumnDef{Name: "s", Type: String}); err != nil {
		t.Fatal(err)
	}

	got := l.FixedRowStride(16)
	want := 8 + 2 + (4 + 16)
	if got != want {
		t.Fatalf("FixedRowStride(16) = %d, want %d", got, want)
	}
}

func TestTypeFixedSize(t *testing.T) {
	cases := map[Type]int{
		I16: 2, U16: 2,
		I32: 4, U32: 4, F32: 4,
		I64: 8, U64: 8, F64: 8,
		F80:    16,
		Char:   1,
		String: 0,
	}
	for typ, want := range cases {
		if got := typ.FixedSize(); got != want {
			t.Fatalf("%v.FixedSize() = %d, want %d", typ, got, want)
		}
	}
}
