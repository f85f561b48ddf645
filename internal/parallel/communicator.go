// Package parallel implements the ParallelPageEngine of spec §4.6: rank-
// partitioned page I/O over a shared file, collective title broadcast,
// collective or per-rank row writes, and row-count aggregation across
// ranks.
//
// No MPI binding exists anywhere in the reference corpus this module was
// grounded on, so Communicator is a small interface with two
// implementations: LocalCommunicator (goroutines sharing one process) and
// NetCommunicator (separate processes talking over gRPC). Both implement
// the same handful of MPI-like collectives the protocol actually needs —
// broadcast, all-reduce-sum, all-reduce-min, and barrier — rather than a general message-
// passing API.
package parallel

import "context"

// Communicator is the MPI-like collective interface spec §4.6 assumes:
// "Given an MPI-like communicator of N ranks sharing one file."
type Communicator interface {
	Rank() int
	Size() int

	// Broadcast sends data from root to every rank, root included; every
	// rank's call returns the same bytes. Non-root callers may pass nil.
	Broadcast(ctx context.Context, root int, data []byte) ([]byte, error)

	// AllReduceSumInt64 sums local across every rank and returns the total
	// to every rank — used for the post-write row-count aggregation of
	// spec §4.6 ("perform an all-reduce of local row counts").
	AllReduceSumInt64(ctx context.Context, local int64) (int64, error)

	// AllReduceMinInt64 returns the minimum of local across every rank to
	// every rank — used by collective-mode writes to agree on how many
	// rows every rank can write in lockstep (spec §4.6: "reduce to the
	// global minimum row count and write that many collectively").
	AllReduceMinInt64(ctx context.Context, local int64) (int64, error)

	// Barrier blocks every rank until all ranks have called it — used
	// before rank 0 rewrites the row-count field (spec §5: "enforced by a
	// barrier before rank 0 seeks to rowcount_offset").
	Barrier(ctx context.Context) error
}
