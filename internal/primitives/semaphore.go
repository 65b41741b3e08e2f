package primitives

import (
	"context"
	"sync"
	"time"

	"github.com/rescale-labs/bouncer/internal/clock"
	"github.com/rescale-labs/bouncer/internal/idgen"
)

// SemaphoreStats mirrors the JSON shape returned by GET /semaphore/{name}/stats.
type SemaphoreStats struct {
	Acquired          int64   `json:"acquired"`
	Released          int64   `json:"released"`
	Reacquired        int64   `json:"reacquired"`
	Expired           int64   `json:"expired"`
	TimedOut          int64   `json:"timed_out"`
	MaxEverHeld       int     `json:"max_ever_held"`
	TotalWaitTimeMs   int64   `json:"total_wait_time_ms"`
	AverageWaitTimeMs float64 `json:"average_wait_time_ms"`
}

type lease struct {
	hasExpiry bool
	expiresAt time.Time
}

// Semaphore bounds concurrent holders to size, handed out as opaque lease
// keys with an optional TTL. size is fixed by the first successful acquire.
type Semaphore struct {
	mu     sync.Mutex
	clock  clock.Clock
	keygen idgen.Generator

	bound  bool
	size   int
	leases map[string]lease

	queue waitQueue
	timer *time.Timer

	st SemaphoreStats
}

func newSemaphore(c clock.Clock, g idgen.Generator) *Semaphore {
	return &Semaphore{
		clock:  c,
		keygen: g,
		leases: make(map[string]lease),
	}
}

// reconcileLocked expires any lease whose TTL has passed, then serves as
// many queued waiters as the freed capacity allows.
func (s *Semaphore) reconcileLocked(now time.Time) {
	for k, l := range s.leases {
		if l.hasExpiry && !l.expiresAt.After(now) {
			delete(s.leases, k)
			s.st.Expired++
		}
	}
	for len(s.leases) < s.size {
		w := s.queue.front()
		if w == nil {
			return
		}
		s.queue.popFront()
		key := s.mintLocked(now, w.leaseExpires)
		waitMs := now.Sub(w.enqueuedAt).Milliseconds()
		s.st.TotalWaitTimeMs += waitMs
		s.st.AverageWaitTimeMs = float64(s.st.TotalWaitTimeMs) / float64(s.st.Acquired)
		w.deliver(Satisfied, key)
	}
}

// mintLocked issues a fresh lease key and records it as active. Caller must
// re-arm the expiry timer afterward.
func (s *Semaphore) mintLocked(now time.Time, expires *int64) string {
	key := s.keygen.NewKey()
	l := lease{}
	if expires != nil && *expires > 0 {
		l.hasExpiry = true
		l.expiresAt = now.Add(time.Duration(*expires) * time.Millisecond)
	}
	s.leases[key] = l
	s.st.Acquired++
	if len(s.leases) > s.st.MaxEverHeld {
		s.st.MaxEverHeld = len(s.leases)
	}
	return key
}

func (s *Semaphore) armTimerLocked() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	var earliest time.Time
	found := false
	for _, l := range s.leases {
		if l.hasExpiry && (!found || l.expiresAt.Before(earliest)) {
			earliest = l.expiresAt
			found = true
		}
	}
	if !found {
		return
	}
	d := earliest.Sub(s.clock.Now())
	if d < 0 {
		d = 0
	}
	s.timer = time.AfterFunc(d, s.onTimerFire)
}

func (s *Semaphore) onTimerFire() {
	s.mu.Lock()
	s.reconcileLocked(s.clock.Now())
	s.armTimerLocked()
	s.mu.Unlock()
}

// Acquire implements GET /semaphore/{name}/acquire?size=N&expires=E&maxwait=M.
// On success it returns the lease key as the response body.
func (s *Semaphore) Acquire(ctx context.Context, size int, expires, maxwait *int64) (status int, key string, err error) {
	if size < 1 {
		return 0, "", ErrInvalidParam{"size must be >= 1"}
	}

	s.mu.Lock()
	now := s.clock.Now()
	if !s.bound {
		s.size = size
		s.bound = true
	}
	s.reconcileLocked(now)

	if len(s.leases) < s.size && s.queue.len() == 0 {
		key = s.mintLocked(now, expires)
		s.armTimerLocked()
		s.mu.Unlock()
		return 200, key, nil
	}
	if maxwait != nil && *maxwait == 0 {
		s.mu.Unlock()
		return 408, "", nil
	}

	w := newWaiter(now)
	w.leaseExpires = expires
	elem := s.queue.pushBack(w)
	s.mu.Unlock()

	deadline, stop := deadlineChan(maxwait)
	defer stop()

	outcome, payload := suspend(ctx, w, elem, &s.queue, s.mu.Lock, s.mu.Unlock, deadline)
	switch outcome {
	case Satisfied:
		return 200, payload, nil
	case TimedOut:
		s.mu.Lock()
		s.st.TimedOut++
		s.mu.Unlock()
		return 408, "", nil
	case Deleted:
		return 408, "", nil
	default:
		return 0, "", ErrCancelled
	}
}

// Release implements GET /semaphore/{name}/release?key=K.
func (s *Semaphore) Release(key string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.leases[key]; ok {
		delete(s.leases, key)
		s.st.Released++
		s.reconcileLocked(s.clock.Now())
		s.armTimerLocked()
		return 204
	}
	// A release against an already-expired or never-issued key is always a
	// 409; reacquired is never bumped here (see DESIGN.md open question 2).
	return 409
}

func (s *Semaphore) stats() interface{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st
}

func (s *Semaphore) deleteWake() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.queue.broadcast(Deleted, "")
}
