package primitives

import (
	"context"
	"sync"
	"time"

	"github.com/rescale-labs/bouncer/internal/clock"
)

// WatchdogStats mirrors the JSON shape returned by GET /watchdog/{name}/stats.
type WatchdogStats struct {
	Kicks    int64 `json:"kicks"`
	Waited   int64 `json:"waited"`
	TimedOut int64 `json:"timed_out"`
}

// Watchdog wakes its waiters once its deadline passes, and that deadline is
// pushed forward by kicks. A waiter never succeeds before the first kick.
type Watchdog struct {
	mu    sync.Mutex
	clock clock.Clock

	kicked    bool
	expiresAt time.Time

	queue waitQueue
	timer *time.Timer

	st WatchdogStats
}

func newWatchdog(c clock.Clock) *Watchdog {
	return &Watchdog{clock: c}
}

// Kick implements GET /watchdog/{name}/kick?expires=E.
func (wd *Watchdog) Kick(expires int64) int {
	wd.mu.Lock()
	now := wd.clock.Now()
	wd.kicked = true
	wd.expiresAt = now.Add(time.Duration(expires) * time.Millisecond)
	wd.st.Kicks++
	if !wd.expiresAt.After(now) {
		wd.queue.broadcast(Satisfied, "")
	} else {
		wd.armTimerLocked()
	}
	wd.mu.Unlock()
	return 204
}

// armTimerLocked schedules the single wake-on-expiry fire. A kick that
// extends expiresAt forward replaces any timer already in flight.
func (wd *Watchdog) armTimerLocked() {
	if wd.timer != nil {
		wd.timer.Stop()
	}
	d := wd.expiresAt.Sub(wd.clock.Now())
	if d < 0 {
		d = 0
	}
	wd.timer = time.AfterFunc(d, wd.onExpire)
}

func (wd *Watchdog) onExpire() {
	wd.mu.Lock()
	now := wd.clock.Now()
	if wd.kicked && !wd.expiresAt.After(now) {
		wd.queue.broadcast(Satisfied, "")
	}
	wd.mu.Unlock()
}

// Wait implements GET /watchdog/{name}/wait?maxwait=M. A waiter's own
// maxwait timer races the shared expiry broadcast; whichever fires first
// decides the outcome, which is equivalent to arming a per-waiter timer at
// min(expiresAt, now+maxwait) without needing to dynamically re-arm it.
func (wd *Watchdog) Wait(ctx context.Context, maxwait *int64) (status int, err error) {
	wd.mu.Lock()
	now := wd.clock.Now()
	if wd.kicked && !wd.expiresAt.After(now) {
		wd.st.Waited++
		wd.mu.Unlock()
		return 204, nil
	}
	if maxwait != nil && *maxwait == 0 {
		wd.mu.Unlock()
		return 408, nil
	}

	w := newWaiter(now)
	elem := wd.queue.pushBack(w)
	wd.mu.Unlock()

	deadline, stop := deadlineChan(maxwait)
	defer stop()

	outcome, _ := suspend(ctx, w, elem, &wd.queue, wd.mu.Lock, wd.mu.Unlock, deadline)
	switch outcome {
	case Satisfied:
		wd.mu.Lock()
		wd.st.Waited++
		wd.mu.Unlock()
		return 204, nil
	case TimedOut:
		wd.mu.Lock()
		wd.st.TimedOut++
		wd.mu.Unlock()
		return 408, nil
	case Deleted:
		return 408, nil
	default:
		return 0, ErrCancelled
	}
}

func (wd *Watchdog) stats() interface{} {
	wd.mu.Lock()
	defer wd.mu.Unlock()
	return wd.st
}

func (wd *Watchdog) deleteWake() {
	wd.mu.Lock()
	defer wd.mu.Unlock()
	if wd.timer != nil {
		wd.timer.Stop()
		wd.timer = nil
	}
	wd.queue.broadcast(Deleted, "")
}
