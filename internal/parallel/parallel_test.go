package parallel

import (
	"context"
	"encoding/binary"
	"math"
	"os"
	"sync"
	"testing"

	"github.com/SimonWaldherr/sddspage/internal/codec"
	"github.com/SimonWaldherr/sddspage/internal/iobuf"
	"github.com/SimonWaldherr/sddspage/internal/layout"
)

func TestPartitionRowsCoversRangeContiguously(t *testing.T) {
	parts := PartitionRows(103, 4, false)
	if parts[0].NumRows != 0 {
		t.Fatalf("master_read=false: rank 0 should get 0 rows, got %d", parts[0].NumRows)
	}
	var cursor int64
	for r := 1; r < 4; r++ {
		if parts[r].StartRow != cursor {
			t.Fatalf("rank %d StartRow = %d, want %d", r, parts[r].StartRow, cursor)
		}
		cursor += parts[r].NumRows
	}
	if cursor != 103 {
		t.Fatalf("partitions cover %d rows, want 103", cursor)
	}
}

func TestPartitionRowsMasterRead(t *testing.T) {
	parts := PartitionRows(9, 3, true)
	var cursor int64
	for r := 0; r < 3; r++ {
		if parts[r].StartRow != cursor {
			t.Fatalf("rank %d StartRow = %d, want %d", r, parts[r].StartRow, cursor)
		}
		cursor += parts[r].NumRows
	}
	if cursor != 9 {
		t.Fatalf("partitions cover %d rows, want 9", cursor)
	}
}

// TestCollectiveWriteThreeRanks is scenario S5: 3 ranks each supply 100
// f64 rows; the on-disk total must be 300 with rank i's rows occupying
// bytes [header+i*100*stride, header+(i+1)*100*stride), and the row-count
// field (patched by rank 0 after the barrier) must read back as 300.
func TestCollectiveWriteThreeRanks(t *testing.T) {
	l := layout.New()
	if err := l.DefineColumn(layout.ColumnDef{Name: "x", Type: layout.F64}); err != nil {
		t.Fatal(err)
	}

	f, err := os.CreateTemp(t.TempDir(), "sddspage-parallel-*.bin")
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	const headerEnd = int64(16)
	const rowCountOffset = int64(0)
	// Reserve the header region and a placeholder row count.
	if err := f.Truncate(headerEnd); err != nil {
		t.Fatal(err)
	}

	comms := NewLocalCommunicators(3)
	const rowsPerRank = 100
	ctx := context.Background()

	var wg sync.WaitGroup
	totals := make([]int64, 3)
	errs := make([]error, 3)
	for r := 0; r < 3; r++ {
		wg.Add(1)
		go func(rank int) {
			defer wg.Done()
			rf, openErr := os.OpenFile(f.Name(), os.O_RDWR, 0o644)
			if openErr != nil {
				errs[rank] = openErr
				return
			}
			defer rf.Close()
			buf, bufErr := iobuf.NewWriteBuffer(rf, 0, false)
			if bufErr != nil {
				errs[rank] = bufErr
				return
			}
			h, openPHErr := OpenParallel(l, comms[rank], buf, headerEnd, nil, ParallelOptions{MasterRead: true})
			if openPHErr != nil {
				errs[rank] = openPHErr
				return
			}
			h.title = &Title{TotalRows: rowsPerRank * 3} // all 3 ranks hold data (master_read=true)
			parts := PartitionRows(h.title.TotalRows, comms[rank].Size(), true)
			h.partition = Mine(parts, rank)

			rows := make([]codec.Row, h.partition.NumRows)
			for i := range rows {
				rows[i] = codec.Row{float64(rank*1000 + i)}
			}
			total, writeErr := h.WriteRows(ctx, rows, rowCountOffset)
			if writeErr != nil {
				errs[rank] = writeErr
				return
			}
			totals[rank] = total
		}(r)
	}
	wg.Wait()

	for r, e := range errs {
		if e != nil {
			t.Fatalf("rank %d: %v", r, e)
		}
	}
	for r, total := range totals {
		if total != rowsPerRank*3 {
			t.Fatalf("rank %d all-reduce total = %d, want %d", r, total, rowsPerRank*3)
		}
	}

	raw, err := os.ReadFile(f.Name())
	if err != nil {
		t.Fatal(err)
	}
	const f64Stride = 8
	for r := 0; r < 3; r++ {
		first := headerEnd + int64(r*rowsPerRank*f64Stride)
		last := first + int64((rowsPerRank-1)*f64Stride)
		if got := math.Float64frombits(binary.NativeEndian.Uint64(raw[first : first+8])); got != float64(r*1000) {
			t.Fatalf("rank %d first row at byte %d = %v, want %v", r, first, got, float64(r*1000))
		}
		if got := math.Float64frombits(binary.NativeEndian.Uint64(raw[last : last+8])); got != float64(r*1000+rowsPerRank-1) {
			t.Fatalf("rank %d last row at byte %d = %v, want %v", r, last, got, float64(r*1000+rowsPerRank-1))
		}
	}
	gotCount := int32(binary.NativeEndian.Uint32(raw[:4]))
	if gotCount != rowsPerRank*3 {
		t.Fatalf("on-disk row count = %d, want %d", gotCount, rowsPerRank*3)
	}
}
