package parallel

import (
	"context"
	"sync"
)

// hub is the shared rendezvous point behind a set of LocalCommunicators:
// every collective call blocks until all N ranks have arrived for the
// current generation, then releases them together. Broadcast, all-reduce,
// and barrier share one arrival counter because every rank's goroutine
// runs the identical protocol sequence — the same shape as the teacher's
// goroutine-per-peer loop in cmd/server/main.go, generalized from a
// sync.WaitGroup fan-out (one-shot) to a repeating rendezvous barrier
// (one per page, many times over a handle's life), and grounded
// additionally on internal/storage/pager.Pager's mutex-guarded shared
// state for the locking discipline.
type hub struct {
	mu      sync.Mutex
	cond    *sync.Cond
	n       int
	arrived int
	gen     int

	bcastData []byte
	sum       int64
	min       int64
}

func newHub(n int) *hub {
	h := &hub{n: n}
	h.cond = sync.NewCond(&h.mu)
	return h
}

func (h *hub) broadcast(root, rank int, data []byte) []byte {
	h.mu.Lock()
	gen := h.gen
	if rank == root {
		h.bcastData = append([]byte(nil), data...)
	}
	h.arrive(gen)
	result := h.bcastData
	h.mu.Unlock()
	return result
}

func (h *hub) allReduceSum(local int64) int64 {
	h.mu.Lock()
	gen := h.gen
	if h.arrived == 0 {
		h.sum = 0
	}
	h.sum += local
	h.arrive(gen)
	result := h.sum
	h.mu.Unlock()
	return result
}

func (h *hub) allReduceMin(local int64) int64 {
	h.mu.Lock()
	gen := h.gen
	if h.arrived == 0 || local < h.min {
		h.min = local
	}
	h.arrive(gen)
	result := h.min
	h.mu.Unlock()
	return result
}

func (h *hub) barrier() {
	h.mu.Lock()
	gen := h.gen
	h.arrive(gen)
	h.mu.Unlock()
}

// arrive must be called with h.mu held; it counts the caller in and either
// releases the generation (last arrival) or waits for it.
func (h *hub) arrive(gen int) {
	h.arrived++
	if h.arrived == h.n {
		h.arrived = 0
		h.gen++
		h.cond.Broadcast()
		return
	}
	for h.gen == gen {
		h.cond.Wait()
	}
}

// LocalCommunicator is the in-process Communicator: one goroutine per rank,
// all sharing one hub. Construct a full rank set with NewLocalCommunicators.
type LocalCommunicator struct {
	hub  *hub
	rank int
	size int
}

// NewLocalCommunicators returns n Communicators, one per rank, all sharing
// a single in-process rendezvous hub.
func NewLocalCommunicators(n int) []Communicator {
	h := newHub(n)
	out := make([]Communicator, n)
	for i := 0; i < n; i++ {
		out[i] = &LocalCommunicator{hub: h, rank: i, size: n}
	}
	return out
}

func (c *LocalCommunicator) Rank() int { return c.rank }
func (c *LocalCommunicator) Size() int { return c.size }

func (c *LocalCommunicator) Broadcast(_ context.Context, root int, data []byte) ([]byte, error) {
	return c.hub.broadcast(root, c.rank, data), nil
}

func (c *LocalCommunicator) AllReduceSumInt64(_ context.Context, local int64) (int64, error) {
	return c.hub.allReduceSum(local), nil
}

func (c *LocalCommunicator) AllReduceMinInt64(_ context.Context, local int64) (int64, error) {
	return c.hub.allReduceMin(local), nil
}

func (c *LocalCommunicator) Barrier(_ context.Context) error {
	c.hub.barrier()
	return nil
}
