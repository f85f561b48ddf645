package pageio

import (
	"fmt"
	"math"

	"github.com/SimonWaldherr/sddspage/internal/layout"
)

// int32Min is the row-count escape sentinel of spec §6.2.
const int32Min = int32(math.MinInt32)

// writeRowCount implements spec §4.5 step 4 / §6.2: write rows as a plain
// i32 unless it exceeds i32::MAX, in which case write the INT32_MIN
// sentinel followed by the full i64 value. Returns whether the escape form
// was used, for WrittenAsI64 bookkeeping.
func (h *Handle) writeRowCount(rows int64) (escaped bool, err error) {
	if rows > math.MaxInt32 {
		if err := h.codec.WriteScalar(layout.I32, int32Min); err != nil {
			return false, err
		}
		if err := h.codec.WriteScalar(layout.I64, rows); err != nil {
			return false, err
		}
		return true, nil
	}
	if err := h.codec.WriteScalar(layout.I32, int32(rows)); err != nil {
		return false, err
	}
	return false, nil
}

// readRowCount implements spec §4.5 step 3: read an i32; if it equals the
// escape sentinel, read the following i64. Negative counts are rejected.
func (h *Handle) readRowCount() (int64, error) {
	v, err := h.codec.ReadScalar(layout.I32, h.Layout.DeclaredByteOrder)
	if err != nil {
		return 0, err
	}
	i32v := v.(int32)
	if i32v == int32Min {
		v64, err := h.codec.ReadScalar(layout.I64, h.Layout.DeclaredByteOrder)
		if err != nil {
			return 0, err
		}
		rows := v64.(int64)
		if rows < 0 {
			return 0, fmt.Errorf("pageio: negative row count %d", rows)
		}
		return rows, nil
	}
	if i32v < 0 {
		return 0, fmt.Errorf("pageio: negative row count %d", i32v)
	}
	return int64(i32v), nil
}

// roundedRowCount implements spec §6.3's fixed_row_count rounding:
// (count / increment + 2) × increment.
func roundedRowCount(count int64, increment uint32) int64 {
	if increment == 0 {
		return count
	}
	inc := int64(increment)
	return (count/inc + 2) * inc
}

// growIncrementIfNeeded implements spec §6.3's growth rule: update_page may
// grow fixed_row_increment so that (new_count - prev_count) + 1 ≤
// increment, never shrink it.
func growIncrementIfNeeded(prevCount, newCount int64, increment uint32) uint32 {
	need := newCount - prevCount + 1
	if need > int64(increment) {
		return uint32(need)
	}
	return increment
}
