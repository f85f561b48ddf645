package parallel

// Partition is one rank's contiguous slice of [0, total_rows), computed by
// PartitionRows (spec §4.6 "Row partition").
type Partition struct {
	StartRow int64
	NumRows  int64
}

// PartitionRows implements spec §4.6's row partition: with masterRead
// false, ranks 1..size-1 split totalRows as evenly as possible (the first
// totalRows mod (size-1) of them getting one extra row) and rank 0 gets
// none; with masterRead true all `size` ranks participate identically.
// Invariant 6 of spec §8 requires the partition to cover [0, total_rows)
// exactly once, contiguously per rank — PartitionRows is assembled that
// way by construction: ranks are walked in order and each one's StartRow
// is the running sum of all previous ranks' NumRows.
func PartitionRows(totalRows int64, size int, masterRead bool) []Partition {
	parts := make([]Partition, size)
	if size <= 0 {
		return parts
	}
	if !masterRead && size > 1 {
		workers := size - 1
		base := totalRows / int64(workers)
		rem := totalRows % int64(workers)
		cursor := int64(0)
		parts[0] = Partition{StartRow: 0, NumRows: 0}
		for r := 1; r < size; r++ {
			n := base
			if int64(r-1) < rem {
				n++
			}
			parts[r] = Partition{StartRow: cursor, NumRows: n}
			cursor += n
		}
		return parts
	}

	base := totalRows / int64(size)
	rem := totalRows % int64(size)
	cursor := int64(0)
	for r := 0; r < size; r++ {
		n := base
		if int64(r) < rem {
			n++
		}
		parts[r] = Partition{StartRow: cursor, NumRows: n}
		cursor += n
	}
	return parts
}

// Mine returns this rank's partition out of a full set, or the zero
// Partition if rank is out of range.
func Mine(parts []Partition, rank int) Partition {
	if rank < 0 || rank >= len(parts) {
		return Partition{}
	}
	return parts[rank]
}
