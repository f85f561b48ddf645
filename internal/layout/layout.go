// Package layout holds the immutable, self-describing schema of an SDDS
// file: its parameter/array/column/associate definitions, data-mode flags,
// and the declared byte order that governs every multi-byte field on wire.
//
// A Layout is built once (by the header parser on read, or by the caller on
// write) and otherwise left alone for the life of a handle — mirroring the
// teacher's Superblock, which is parsed or constructed once and carried
// read-only thereafter. Two fields change after construction: pageio's
// WritePage resets DeclaredByteOrder when SDDS_OUTPUT_ENDIANESS forces an
// order, and UpdatePage grows FixedRowIncrement.
package layout

import "fmt"

// Type is the closed scalar type tag set (spec §3).
type Type uint8

const (
	I16 Type = iota
	U16
	I32
	U32
	I64
	U64
	F32
	F64
	F80
	Char
	String
)

func (t Type) String() string {
	switch t {
	case I16:
		return "i16"
	case U16:
		return "u16"
	case I32:
		return "i32"
	case U32:
		return "u32"
	case I64:
		return "i64"
	case U64:
		return "u64"
	case F32:
		return "f32"
	case F64:
		return "f64"
	case F80:
		return "f80"
	case Char:
		return "char"
	case String:
		return "string"
	default:
		return fmt.Sprintf("Type(%d)", uint8(t))
	}
}

// FixedSize returns the on-wire size in bytes of a fixed-size scalar type.
// String is not fixed-size; callers must special-case it.
func (t Type) FixedSize() int {
	switch t {
	case I16, U16:
		return 2
	case I32, U32, F32:
		return 4
	case I64, U64, F64:
		return 8
	case F80:
		return 16
	case Char:
		return 1
	default:
		return 0
	}
}

// ByteOrder is the declared byte order recorded in a file's header.
type ByteOrder uint8

const (
	OrderUnspecified ByteOrder = iota
	OrderBig
	OrderLittle
)

// DataMode selects ASCII or binary page encoding. Only Binary is
// implemented by this module (spec §1 scope).
type DataMode uint8

const (
	Binary DataMode = iota
	ASCII
)

// Flag bits on a definition.
type Flag uint8

const (
	// WriteOnly definitions are skipped on read.
	WriteOnly Flag = 1 << iota
)

// ParameterDef describes one scalar parameter.
type ParameterDef struct {
	Name        string
	Type        Type
	Units       string
	Symbol      string
	Description string
	Format      string
	// FixedValue, if non-empty, is the literal value text, parsed through
	// the external scanner each time a page is read; fixed-value
	// parameters are never stored on wire (spec invariant: Codec skips
	// them in write_binary_parameters).
	FixedValue string
	Flags      Flag
}

// ArrayDef describes one multi-dimensional array field.
type ArrayDef struct {
	Name        string
	Type        Type
	Units       string
	Symbol      string
	Description string
	Format      string
	Dimensions  int // number of dimensions (rank); actual extents are per-page
	Flags       Flag
}

// ColumnDef describes one column of the row table.
type ColumnDef struct {
	Name        string
	Type        Type
	Units       string
	Symbol      string
	Description string
	Format      string
	Flags       Flag
}

// AssociateDef records metadata about a related file; it is layout-only
// (display metadata), never encoded into a page body. The Contents field
// is a free-form description field supplementing spec §3's associate defs,
// surfaced here as a Layout accessor only (see SPEC_FULL.md §3).
type AssociateDef struct {
	Name        string
	Filename    string
	Path        string
	Description string
	Contents    string
}

// Layout is the immutable-during-a-page schema of an SDDS file.
type Layout struct {
	Description string
	Contents    string
	Version     string

	DeclaredByteOrder ByteOrder
	DataMode          DataMode
	ColumnMajor       bool
	FixedRowCount     bool
	FixedRowIncrement uint32

	parameters []ParameterDef
	arrays     []ArrayDef
	columns    []ColumnDef
	associates []AssociateDef

	paramIndex map[string]int
	arrayIndex map[string]int
	colIndex   map[string]int

	rowStride int // cached fixed-row byte stride; -1 if not yet computed or has string columns
}

// New returns an empty Layout ready for DefineParameter/DefineArray/
// DefineColumn calls.
func New() *Layout {
	return &Layout{
		paramIndex: make(map[string]int),
		arrayIndex: make(map[string]int),
		colIndex:   make(map[string]int),
		rowStride:  -1,
	}
}

// DefineParameter appends a parameter definition. Construction-only: must
// not be called after the layout starts backing a page.
func (l *Layout) DefineParameter(d ParameterDef) error {
	if _, exists := l.paramIndex[d.Name]; exists {
		return fmt.Errorf("layout: duplicate parameter name %q", d.Name)
	}
	l.paramIndex[d.Name] = len(l.parameters)
	l.parameters = append(l.parameters, d)
	return nil
}

// DefineArray appends an array definition.
func (l *Layout) DefineArray(d ArrayDef) error {
	if _, exists := l.arrayIndex[d.Name]; exists {
		return fmt.Errorf("layout: duplicate array name %q", d.Name)
	}
	l.arrayIndex[d.Name] = len(l.arrays)
	l.arrays = append(l.arrays, d)
	return nil
}

// DefineColumn appends a column definition.
//
// Invariant 2: column_major ⇒ string-typed columns are forbidden.
func (l *Layout) DefineColumn(d ColumnDef) error {
	if _, exists := l.colIndex[d.Name]; exists {
		return fmt.Errorf("layout: duplicate column name %q", d.Name)
	}
	if l.ColumnMajor && d.Type == String {
		return fmt.Errorf("layout: column %q: string columns are forbidden in column-major layouts", d.Name)
	}
	l.colIndex[d.Name] = len(l.columns)
	l.columns = append(l.columns, d)
	l.rowStride = -1
	return nil
}

// DefineAssociate appends an associate definition.
func (l *Layout) DefineAssociate(d AssociateDef) error {
	l.associates = append(l.associates, d)
	return nil
}

// Parameters returns the ordered parameter definitions.
func (l *Layout) Parameters() []ParameterDef { return l.parameters }

// Arrays returns the ordered array definitions.
func (l *Layout) Arrays() []ArrayDef { return l.arrays }

// Columns returns the ordered column definitions.
func (l *Layout) Columns() []ColumnDef { return l.columns }

// Associates returns the ordered associate definitions.
func (l *Layout) Associates() []AssociateDef { return l.associates }

// ParameterIndex returns the index of the named parameter, or (-1, false).
func (l *Layout) ParameterIndex(name string) (int, bool) {
	i, ok := l.paramIndex[name]
	return i, ok
}

// ArrayIndex returns the index of the named array, or (-1, false).
func (l *Layout) ArrayIndex(name string) (int, bool) {
	i, ok := l.arrayIndex[name]
	return i, ok
}

// ColumnIndex returns the index of the named column, or (-1, false).
func (l *Layout) ColumnIndex(name string) (int, bool) {
	i, ok := l.colIndex[name]
	return i, ok
}

// ReadableColumnIndices returns the indices (into Columns()) of columns
// that actually appear on wire: spec §6.1 excludes WRITE_ONLY columns from
// the row-major data section entirely, and this module applies the same
// exclusion uniformly to column-major data for consistency (see
// DESIGN.md's note on the WRITE_ONLY wire-presence decision).
func (l *Layout) ReadableColumnIndices() []int {
	var out []int
	for i, c := range l.columns {
		if c.Flags&WriteOnly == 0 {
			out = append(out, i)
		}
	}
	return out
}

// FixedRowStride returns the fixed-row on-wire byte stride: the sum of
// each readable column's on-wire size, with string columns contributing
// 4 + maxStringLen. The parallel engine does not use it: its column
// stride charges a string column its fixed width alone.
//
// maxStringLen supplies the assumed max length for string columns; pass 0
// if the layout has no string columns (column-major layouts never do, per
// invariant 2).
func (l *Layout) FixedRowStride(maxStringLen int) int {
	stride := 0
	for _, c := range l.columns {
		if c.Flags&WriteOnly != 0 {
			continue
		}
		if c.Type == String {
			stride += 4 + maxStringLen
			continue
		}
		stride += c.Type.FixedSize()
	}
	return stride
}
