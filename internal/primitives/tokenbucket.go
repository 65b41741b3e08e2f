package primitives

import (
	"context"
	"sync"
	"time"

	"github.com/rescale-labs/bouncer/internal/clock"
)

// TokenBucketStats mirrors the JSON shape returned by GET /tokenbucket/{name}/stats.
type TokenBucketStats struct {
	Acquired          int64   `json:"acquired"`
	TimedOut          int64   `json:"timed_out"`
	TotalWaitTimeMs   int64   `json:"total_wait_time_ms"`
	AverageWaitTimeMs float64 `json:"average_wait_time_ms"`
}

// TokenBucket implements continuous-refill rate limiting with head-of-line
// blocking: only the queue head is ever considered for a refill, so a large
// request can't be starved by a stream of small ones landing behind it.
type TokenBucket struct {
	mu    sync.Mutex
	clock clock.Clock

	bound      bool
	capacity   int
	available  int
	intervalMs int64
	lastRefill time.Time

	queue waitQueue
	timer *time.Timer

	st TokenBucketStats
}

func newTokenBucket(c clock.Clock) *TokenBucket {
	return &TokenBucket{clock: c}
}

// refillLocked advances available by the whole tokens earned since
// lastRefill, carrying the unconsumed fractional remainder forward in
// lastRefill itself so repeated small ticks don't lose tokens to rounding.
func (tb *TokenBucket) refillLocked(now time.Time) {
	if !tb.bound {
		return
	}
	elapsedMs := now.Sub(tb.lastRefill).Milliseconds()
	if elapsedMs <= 0 {
		return
	}
	gained := elapsedMs * int64(tb.capacity) / tb.intervalMs
	if gained <= 0 {
		return
	}
	tb.available += int(gained)
	if tb.available > tb.capacity {
		tb.available = tb.capacity
	}
	consumedMs := gained * tb.intervalMs / int64(tb.capacity)
	tb.lastRefill = tb.lastRefill.Add(time.Duration(consumedMs) * time.Millisecond)
}

// drainLocked refills, then serves the queue head repeatedly while enough
// tokens are available for it.
func (tb *TokenBucket) drainLocked(now time.Time) {
	tb.refillLocked(now)
	for {
		w := tb.queue.front()
		if w == nil || tb.available < w.tokensNeeded {
			return
		}
		tb.queue.popFront()
		tb.available -= w.tokensNeeded
		tb.st.Acquired++
		waitMs := now.Sub(w.enqueuedAt).Milliseconds()
		tb.st.TotalWaitTimeMs += waitMs
		tb.st.AverageWaitTimeMs = float64(tb.st.TotalWaitTimeMs) / float64(tb.st.Acquired)
		w.deliver(Satisfied, "")
	}
}

// armTimerLocked schedules a single wakeup for the instant the queue head
// becomes satisfiable, so refills happen even with no further traffic.
func (tb *TokenBucket) armTimerLocked() {
	if tb.timer != nil {
		tb.timer.Stop()
		tb.timer = nil
	}
	w := tb.queue.front()
	if w == nil {
		return
	}
	deficit := w.tokensNeeded - tb.available
	if deficit <= 0 {
		return
	}
	waitMs := (int64(deficit)*tb.intervalMs + int64(tb.capacity) - 1) / int64(tb.capacity)
	tb.timer = time.AfterFunc(time.Duration(waitMs)*time.Millisecond, tb.onTimerFire)
}

func (tb *TokenBucket) onTimerFire() {
	tb.mu.Lock()
	tb.drainLocked(tb.clock.Now())
	tb.armTimerLocked()
	tb.mu.Unlock()
}

// Acquire implements GET /tokenbucket/{name}/acquire?size=S&maxwait=M&interval=I.
// S only sets capacity on first touch; every acquire, regardless of the S it
// was called with, consumes a single unit (mirroring how the semaphore's
// size parameter fixes capacity at creation rather than per-call demand).
func (tb *TokenBucket) Acquire(ctx context.Context, size int, maxwait *int64, interval int64) (status int, err error) {
	if size < 1 {
		return 0, ErrInvalidParam{"size must be >= 1"}
	}

	tb.mu.Lock()
	now := tb.clock.Now()
	if !tb.bound {
		tb.capacity = size
		tb.available = size
		if interval <= 0 {
			interval = 1000
		}
		tb.intervalMs = interval
		tb.lastRefill = now
		tb.bound = true
	}
	tb.refillLocked(now)

	if tb.available >= 1 && tb.queue.len() == 0 {
		tb.available--
		tb.st.Acquired++
		tb.mu.Unlock()
		return 204, nil
	}
	if maxwait != nil && *maxwait == 0 {
		tb.mu.Unlock()
		return 408, nil
	}

	w := newWaiter(now)
	w.tokensNeeded = 1
	elem := tb.queue.pushBack(w)
	tb.drainLocked(now)
	tb.armTimerLocked()
	tb.mu.Unlock()

	deadline, stop := deadlineChan(maxwait)
	defer stop()

	outcome, _ := suspend(ctx, w, elem, &tb.queue, tb.mu.Lock, tb.mu.Unlock, deadline)
	switch outcome {
	case Satisfied:
		return 204, nil
	case TimedOut:
		tb.mu.Lock()
		tb.st.TimedOut++
		tb.mu.Unlock()
		return 408, nil
	case Deleted:
		return 408, nil
	default:
		return 0, ErrCancelled
	}
}

func (tb *TokenBucket) stats() interface{} {
	tb.mu.Lock()
	defer tb.mu.Unlock()
	return tb.st
}

func (tb *TokenBucket) deleteWake() {
	tb.mu.Lock()
	defer tb.mu.Unlock()
	if tb.timer != nil {
		tb.timer.Stop()
		tb.timer = nil
	}
	tb.queue.broadcast(Deleted, "")
}
