package primitives

import (
	"context"
	"sync"

	"github.com/rescale-labs/bouncer/internal/clock"
)

// BarrierStats mirrors the JSON shape returned by GET /barrier/{name}/stats.
type BarrierStats struct {
	Waiting     int   `json:"waiting"`
	TimedOut    int64 `json:"timed_out"`
	TotalWaited int   `json:"total_waited"`
	Triggered   int64 `json:"triggered"`
}

// Barrier is a single-shot N-way rendezvous: once size waiters have
// arrived, all are released together and the barrier rejects any further
// wait with a conflict until it is deleted and recreated.
type Barrier struct {
	mu    sync.Mutex
	clock clock.Clock

	bound bool
	size  int
	armed bool // false once the single trigger has fired

	queue waitQueue
	st    BarrierStats
}

func newBarrier(c clock.Clock) *Barrier {
	return &Barrier{clock: c, armed: true}
}

// Wait implements GET /barrier/{name}/wait?size=N&maxwait=M. A timed-out
// waiter is dequeued and does not count toward the rendezvous; the barrier
// stays armed until exactly size waiters are simultaneously queued. Unlike the
// other primitives, maxwait=0 is not try-only here: the waiter is still
// enqueued (so it can complete the rendezvous) and then times out at once.
func (b *Barrier) Wait(ctx context.Context, size int, maxwait *int64) (status int, err error) {
	b.mu.Lock()
	if !b.armed {
		b.mu.Unlock()
		return 409, nil
	}
	if !b.bound {
		b.size = size
		b.bound = true
	}

	w := newWaiter(b.clock.Now())
	elem := b.queue.pushBack(w)
	b.st.Waiting = b.queue.len()

	if b.queue.len() >= b.size {
		b.armed = false
		b.st.Triggered++
		b.st.TotalWaited = b.size
		b.queue.broadcast(Satisfied, "")
		b.st.Waiting = 0
		b.mu.Unlock()
		return 204, nil
	}
	b.mu.Unlock()

	deadline, stop := deadlineChan(maxwait)
	defer stop()

	outcome, _ := suspend(ctx, w, elem, &b.queue, b.mu.Lock, b.mu.Unlock, deadline)
	switch outcome {
	case Satisfied:
		return 204, nil
	case TimedOut:
		b.mu.Lock()
		b.st.TimedOut++
		b.st.Waiting = b.queue.len()
		b.mu.Unlock()
		return 408, nil
	case Deleted:
		return 408, nil
	default:
		return 0, ErrCancelled
	}
}

func (b *Barrier) stats() interface{} {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.st
}

func (b *Barrier) deleteWake() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.queue.broadcast(Deleted, "")
}
