package pageio

import (
	"sort"

	"github.com/SimonWaldherr/sddspage/internal/codec"
	"github.com/SimonWaldherr/sddspage/internal/layout"
)

// Statistic selects the sparse_statistics aggregate of spec §4.5.
type Statistic int

const (
	StatNone Statistic = iota
	StatMean
	StatMedian
	StatMin
	StatMax
)

// ReadOptions configures ReadPage's sparsing behaviour (spec §4.5 "Sparsing
// semantics").
type ReadOptions struct {
	SparseInterval   int // ≥ 1, default 1
	SparseOffset     int // ≥ 0, default 0
	LastRows         int64
	SparseStatistics Statistic
}

// resolveSparseParams applies the last_rows override (spec: "If
// last_rows > 0: sparse_interval := 1, sparse_offset := row_count -
// last_rows") and clamps offset so last_rows = total_rows+1 never leaks a
// negative offset (spec's boundary-behaviour clause).
func resolveSparseParams(rowCount int64, o ReadOptions) (interval, offset int) {
	interval, offset = o.SparseInterval, o.SparseOffset
	if interval < 1 {
		interval = 1
	}
	if offset < 0 {
		offset = 0
	}
	if o.LastRows > 0 {
		interval = 1
		off := rowCount - o.LastRows
		if off < 0 {
			off = 0
		}
		offset = int(off)
	}
	if int64(offset) > rowCount {
		offset = int(rowCount)
	}
	return interval, offset
}

// isFloatType reports whether t is one of the three floating types
// sparse_statistics aggregates operate on (spec §4.5: "Aggregates are
// defined only on f32/f64/f80").
func isFloatType(t layout.Type) bool {
	return t == layout.F32 || t == layout.F64 || t == layout.F80
}

// aggregateWindow replaces the float-typed fields of first with the
// requested statistic computed over window (which includes first as its
// first element), leaving non-float fields as first's values unchanged.
func aggregateWindow(window []codec.Row, floatCols []bool, stat Statistic) codec.Row {
	first := window[0]
	if stat == StatNone || len(window) == 1 {
		return first
	}
	out := make(codec.Row, len(first))
	copy(out, first)
	for ci, isFloat := range floatCols {
		if !isFloat {
			continue
		}
		vals := make([]float64, len(window))
		for wi, row := range window {
			vals[wi] = toFloat64(row[ci])
		}
		out[ci] = aggregate(vals, stat)
	}
	return out
}

func toFloat64(v codec.Value) float64 {
	switch x := v.(type) {
	case float32:
		return float64(x)
	case float64:
		return x
	default:
		return 0
	}
}

func aggregate(vals []float64, stat Statistic) float64 {
	switch stat {
	case StatMin:
		m := vals[0]
		for _, v := range vals[1:] {
			if v < m {
				m = v
			}
		}
		return m
	case StatMax:
		m := vals[0]
		for _, v := range vals[1:] {
			if v > m {
				m = v
			}
		}
		return m
	case StatMean:
		var sum float64
		for _, v := range vals {
			sum += v
		}
		return sum / float64(len(vals))
	case StatMedian:
		sorted := append([]float64(nil), vals...)
		sort.Float64s(sorted)
		n := len(sorted)
		if n%2 == 1 {
			return sorted[n/2]
		}
		return (sorted[n/2-1] + sorted[n/2]) / 2
	default:
		return vals[0]
	}
}
