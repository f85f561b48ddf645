package codec

import (
	"fmt"

	"github.com/SimonWaldherr/sddspage/internal/layout"
)

// FixedValueParser is the "string tokenizer for fixed values" external
// collaborator spec §1 names: core consumes it only through this small
// interface, never depending on the MPL-style scanner's own package. A
// reference implementation lives in internal/header.
type FixedValueParser interface {
	ParseFixedValue(t layout.Type, text string) (Value, error)
}

// ArrayValue is one array field's page-time payload: its per-dimension
// extents and flattened element values (row-major over the dimensions).
type ArrayValue struct {
	Dimensions []int32
	Elements   []Value
}

// Row is one row-major record, holding one Value per readable (non-
// WRITE_ONLY) column, in layout.ReadableColumnIndices order.
type Row []Value

// ───────────────────────────────────────────────────────────────────────
// Parameters
// ───────────────────────────────────────────────────────────────────────

// WriteParameters implements write_binary_parameters: every parameter
// without a FixedValue is written in declared order; fixed-value
// parameters are never stored on wire (spec invariant, §4.4).
func (c *Codec) WriteParameters(l *layout.Layout, values []Value) error {
	defs := l.Parameters()
	if len(values) != len(defs) {
		return fmt.Errorf("codec: WriteParameters: got %d values for %d parameter defs", len(values), len(defs))
	}
	for i, d := range defs {
		if d.FixedValue != "" {
			continue
		}
		if err := c.WriteScalar(d.Type, values[i]); err != nil {
			return fmt.Errorf("codec: write parameter %q: %w", d.Name, err)
		}
	}
	return nil
}

// ReadParameters reads every wire-present parameter value, substituting
// the parser's decoded FixedValue for parameters that were never on wire.
// WRITE_ONLY parameters are still consumed from the stream (to stay in
// sync) but their decoded value is replaced with nil in the result —
// see DESIGN.md for why parameters and columns treat WRITE_ONLY
// differently.
func (c *Codec) ReadParameters(l *layout.Layout, parser FixedValueParser) ([]Value, error) {
	defs := l.Parameters()
	out := make([]Value, len(defs))
	for i, d := range defs {
		if d.FixedValue != "" {
			if parser == nil {
				return nil, fmt.Errorf("codec: parameter %q has a fixed value but no FixedValueParser was supplied", d.Name)
			}
			v, err := parser.ParseFixedValue(d.Type, d.FixedValue)
			if err != nil {
				return nil, fmt.Errorf("codec: parse fixed value for parameter %q: %w", d.Name, err)
			}
			out[i] = v
			continue
		}
		v, err := c.ReadScalar(d.Type, l.DeclaredByteOrder)
		if err != nil {
			return nil, fmt.Errorf("codec: read parameter %q: %w", d.Name, err)
		}
		if d.Flags&layout.WriteOnly != 0 {
			out[i] = nil
			continue
		}
		out[i] = v
	}
	return out, nil
}

// ───────────────────────────────────────────────────────────────────────
// Arrays
// ───────────────────────────────────────────────────────────────────────

// WriteArrays implements write_binary_arrays: dimensions (or zeros for a
// null array) followed by elements — strings one-by-one, scalars as a
// contiguous block.
func (c *Codec) WriteArrays(l *layout.Layout, arrays []ArrayValue) error {
	defs := l.Arrays()
	if len(arrays) != len(defs) {
		return fmt.Errorf("codec: WriteArrays: got %d arrays for %d array defs", len(arrays), len(defs))
	}
	for i, d := range defs {
		a := arrays[i]
		dims := a.Dimensions
		if dims == nil {
			dims = make([]int32, d.Dimensions)
		}
		if len(dims) != d.Dimensions {
			return fmt.Errorf("codec: array %q: expected %d dimensions, got %d", d.Name, d.Dimensions, len(dims))
		}
		for _, dim := range dims {
			if err := c.WriteScalar(layout.I32, dim); err != nil {
				return fmt.Errorf("codec: write array %q dimension: %w", d.Name, err)
			}
		}
		elements := arrayElementCount(dims)
		if elements == 0 {
			continue
		}
		if len(a.Elements) != elements {
			return fmt.Errorf("codec: array %q: expected %d elements, got %d", d.Name, elements, len(a.Elements))
		}
		for _, v := range a.Elements {
			if err := c.WriteScalar(d.Type, v); err != nil {
				return fmt.Errorf("codec: write array %q element: %w", d.Name, err)
			}
		}
	}
	return nil
}

// ReadArrays implements the array section of read_page.
func (c *Codec) ReadArrays(l *layout.Layout) ([]ArrayValue, error) {
	defs := l.Arrays()
	out := make([]ArrayValue, len(defs))
	for i, d := range defs {
		dims := make([]int32, d.Dimensions)
		for j := range dims {
			v, err := c.ReadScalar(layout.I32, l.DeclaredByteOrder)
			if err != nil {
				return nil, fmt.Errorf("codec: read array %q dimension: %w", d.Name, err)
			}
			dv, _ := v.(int32)
			if dv < 0 {
				return nil, fmt.Errorf("codec: array %q: negative dimension %d", d.Name, dv)
			}
			dims[j] = dv
		}
		elements := arrayElementCount(dims)
		var vals []Value
		if elements > 0 {
			vals = make([]Value, elements)
			for k := range vals {
				v, err := c.ReadScalar(d.Type, l.DeclaredByteOrder)
				if err != nil {
					return nil, fmt.Errorf("codec: read array %q element %d: %w", d.Name, k, err)
				}
				vals[k] = v
			}
		}
		out[i] = ArrayValue{Dimensions: dims, Elements: vals}
	}
	return out, nil
}

func arrayElementCount(dims []int32) int {
	if len(dims) == 0 {
		return 0
	}
	n := 1
	allZero := true
	for _, d := range dims {
		if d != 0 {
			allZero = false
		}
		n *= int(d)
	}
	if allZero {
		return 0
	}
	return n
}

// ───────────────────────────────────────────────────────────────────────
// Rows (row-major) and columns (column-major)
// ───────────────────────────────────────────────────────────────────────

// WriteRow implements write_binary_row: one scalar (or string) per
// readable column, in layout.ReadableColumnIndices order.
func (c *Codec) WriteRow(l *layout.Layout, row Row) error {
	idx := l.ReadableColumnIndices()
	if len(row) != len(idx) {
		return fmt.Errorf("codec: WriteRow: got %d values for %d readable columns", len(row), len(idx))
	}
	cols := l.Columns()
	for i, ci := range idx {
		if err := c.WriteScalar(cols[ci].Type, row[i]); err != nil {
			return fmt.Errorf("codec: write column %q: %w", cols[ci].Name, err)
		}
	}
	return nil
}

// ReadRow reads one row's worth of readable-column values.
func (c *Codec) ReadRow(l *layout.Layout) (Row, error) {
	idx := l.ReadableColumnIndices()
	cols := l.Columns()
	row := make(Row, len(idx))
	for i, ci := range idx {
		v, err := c.ReadScalar(cols[ci].Type, l.DeclaredByteOrder)
		if err != nil {
			return nil, fmt.Errorf("codec: read column %q: %w", cols[ci].Name, err)
		}
		row[i] = v
	}
	return row, nil
}

// WriteColumns implements write_binary_columns: for each readable column,
// one contiguous block of rows×sizeof(type) bytes. String columns are
// forbidden in column-major layouts (invariant 2, enforced already at
// layout.DefineColumn time).
//
// Per spec §4.4's swap_ends_column_data ("at most one swap pass per page
// per direction"), a batchable column's whole block is assembled in
// host-native order first and swapped with a single pass over the block,
// rather than once per scalar; F80 keeps its existing per-value path since
// its declared order is baked into the conversion itself.
func (c *Codec) WriteColumns(l *layout.Layout, columns [][]Value, rows int) error {
	idx := l.ReadableColumnIndices()
	if len(columns) != len(idx) {
		return fmt.Errorf("codec: WriteColumns: got %d column slices for %d readable columns", len(columns), len(idx))
	}
	cols := l.Columns()
	for i, ci := range idx {
		t := cols[ci].Type
		col := columns[i]
		if len(col) != rows {
			return fmt.Errorf("codec: column %q: expected %d rows, got %d", cols[ci].Name, rows, len(col))
		}
		if !columnBatchable(t) {
			for r := 0; r < rows; r++ {
				if err := c.WriteScalar(t, col[r]); err != nil {
					return fmt.Errorf("codec: write column %q row %d: %w", cols[ci].Name, r, err)
				}
			}
			continue
		}
		size := table[t].size
		buf := make([]byte, rows*size)
		for r, v := range col {
			if err := encodeNative(t, v, buf[r*size:(r+1)*size]); err != nil {
				return fmt.Errorf("codec: write column %q row %d: %w", cols[ci].Name, r, err)
			}
		}
		if !c.native {
			for r := 0; r < rows; r++ {
				table[t].swap(buf[r*size : (r+1)*size])
			}
		}
		if err := c.buf.Write(buf); err != nil {
			return fmt.Errorf("codec: write column %q: %w", cols[ci].Name, err)
		}
	}
	return nil
}

// ReadColumns implements read_binary_columns(sparse_interval, sparse_offset).
// Column-major reads do not support sparse_statistics (spec §4.5 step 5).
func (c *Codec) ReadColumns(l *layout.Layout, rows int, sparseInterval, sparseOffset int) ([][]Value, error) {
	if sparseInterval < 1 {
		sparseInterval = 1
	}
	idx := l.ReadableColumnIndices()
	cols := l.Columns()
	out := make([][]Value, len(idx))
	for i, ci := range idx {
		t := cols[ci].Type
		if !columnBatchable(t) {
			var kept []Value
			for r := 0; r < rows; r++ {
				v, err := c.ReadScalar(t, l.DeclaredByteOrder)
				if err != nil {
					return nil, fmt.Errorf("codec: read column %q row %d: %w", cols[ci].Name, r, err)
				}
				if r < sparseOffset {
					continue
				}
				if (r-sparseOffset)%sparseInterval == 0 {
					kept = append(kept, v)
				}
			}
			out[i] = kept
			continue
		}

		size := table[t].size
		buf := make([]byte, rows*size)
		if err := c.buf.Read(buf); err != nil {
			return nil, fmt.Errorf("codec: read column %q: %w", cols[ci].Name, err)
		}
		if !c.native {
			for r := 0; r < rows; r++ {
				table[t].swap(buf[r*size : (r+1)*size])
			}
		}
		var kept []Value
		for r := 0; r < rows; r++ {
			if r < sparseOffset || (r-sparseOffset)%sparseInterval != 0 {
				continue
			}
			v, err := decodeNative(t, buf[r*size:(r+1)*size])
			if err != nil {
				return nil, fmt.Errorf("codec: read column %q row %d: %w", cols[ci].Name, r, err)
			}
			kept = append(kept, v)
		}
		out[i] = kept
	}
	return out, nil
}
