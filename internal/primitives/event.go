package primitives

import (
	"context"
	"sync"

	"github.com/rescale-labs/bouncer/internal/clock"
)

// EventStats mirrors the JSON shape returned by GET /event/{name}/stats.
type EventStats struct {
	Triggered int64 `json:"triggered"`
	Waited    int64 `json:"waited"`
	TimedOut  int64 `json:"timed_out"`
}

// Event is a single-shot, sticky broadcast: once sent, it stays triggered
// and every subsequent wait returns immediately with the last message.
type Event struct {
	mu    sync.Mutex
	clock clock.Clock

	triggered bool
	message   string
	queue     waitQueue

	st EventStats
}

func newEvent(c clock.Clock) *Event {
	return &Event{clock: c}
}

// Wait implements GET /event/{name}/wait?maxwait=M.
func (e *Event) Wait(ctx context.Context, maxwait *int64) (status int, message string, err error) {
	e.mu.Lock()
	if e.triggered {
		e.st.Waited++
		msg := e.message
		e.mu.Unlock()
		return 200, msg, nil
	}
	if maxwait != nil && *maxwait == 0 {
		e.mu.Unlock()
		return 408, "", nil
	}

	w := newWaiter(e.clock.Now())
	elem := e.queue.pushBack(w)
	e.mu.Unlock()

	deadline, stop := deadlineChan(maxwait)
	defer stop()

	outcome, payload := suspend(ctx, w, elem, &e.queue, e.mu.Lock, e.mu.Unlock, deadline)
	switch outcome {
	case Satisfied:
		e.mu.Lock()
		e.st.Waited++
		e.mu.Unlock()
		return 200, payload, nil
	case TimedOut:
		e.mu.Lock()
		e.st.TimedOut++
		e.mu.Unlock()
		return 408, "", nil
	case Deleted:
		return 408, "", nil
	default:
		return 0, "", ErrCancelled
	}
}

// Send implements GET /event/{name}/send?message=MSG. It is idempotent in
// the sense that calling it again after the event already triggered still
// updates the message and still counts as a trigger.
func (e *Event) Send(message string) int {
	e.mu.Lock()
	e.triggered = true
	e.message = message
	e.st.Triggered++
	e.queue.broadcast(Satisfied, message)
	e.mu.Unlock()
	return 204
}

func (e *Event) stats() interface{} {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.st
}

func (e *Event) deleteWake() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.queue.broadcast(Deleted, "")
}
