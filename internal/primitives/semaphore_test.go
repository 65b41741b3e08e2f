package primitives

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rescale-labs/bouncer/internal/clock"
	"github.com/rescale-labs/bouncer/internal/idgen"
)

func TestSemaphoreMutualExclusion(t *testing.T) {
	sem := newSemaphore(clock.System{}, idgen.UUIDGenerator{})

	const holders = 5
	var mu sync.Mutex
	var intervals [][2]time.Time
	var wg sync.WaitGroup

	for i := 0; i < holders; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			status, key, err := sem.Acquire(context.Background(), 1, nil, nil)
			if err != nil || status != 200 {
				t.Errorf("acquire failed: status=%d err=%v", status, err)
				return
			}
			start := time.Now()
			time.Sleep(20 * time.Millisecond)
			end := time.Now()

			mu.Lock()
			intervals = append(intervals, [2]time.Time{start, end})
			mu.Unlock()

			if status := sem.Release(key); status != 204 {
				t.Errorf("release failed: status=%d", status)
			}
		}()
	}
	wg.Wait()

	if len(intervals) != holders {
		t.Fatalf("expected %d holder intervals, got %d", holders, len(intervals))
	}
	for i := 0; i < len(intervals); i++ {
		for j := i + 1; j < len(intervals); j++ {
			a, b := intervals[i], intervals[j]
			overlap := a[0].Before(b[1]) && b[0].Before(a[1])
			if overlap {
				t.Fatalf("holder intervals overlap: %v and %v", a, b)
			}
		}
	}

	st := sem.stats().(SemaphoreStats)
	if st.Acquired != holders || st.Released != holders || st.MaxEverHeld != 1 {
		t.Fatalf("unexpected stats: %+v", st)
	}
}

func TestSemaphoreExpiration(t *testing.T) {
	sem := newSemaphore(clock.System{}, idgen.UUIDGenerator{})

	status, key1, err := sem.Acquire(context.Background(), 1, i64(100), nil)
	if err != nil || status != 200 {
		t.Fatalf("first acquire failed: status=%d err=%v", status, err)
	}

	time.Sleep(200 * time.Millisecond)

	status, key2, err := sem.Acquire(context.Background(), 1, i64(100), nil)
	if err != nil || status != 200 {
		t.Fatalf("second acquire failed: status=%d err=%v", status, err)
	}
	if key1 == key2 {
		t.Fatal("expired lease key must not be reissued verbatim")
	}

	if status := sem.Release(key1); status != 409 {
		t.Fatalf("expected 409 releasing expired key, got %d", status)
	}

	st := sem.stats().(SemaphoreStats)
	if st.Acquired != 2 || st.Released != 0 || st.Expired < 1 {
		t.Fatalf("unexpected stats: %+v", st)
	}

	if status := sem.Release(key2); status != 204 {
		t.Fatalf("expected 204 releasing still-active key, got %d", status)
	}
}

func TestSemaphoreQueueingAndTimeout(t *testing.T) {
	sem := newSemaphore(clock.System{}, idgen.UUIDGenerator{})

	status, _, err := sem.Acquire(context.Background(), 1, nil, nil)
	if err != nil || status != 200 {
		t.Fatalf("first acquire failed: status=%d err=%v", status, err)
	}

	status, _, err = sem.Acquire(context.Background(), 1, nil, i64(0))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if status != 408 {
		t.Fatalf("expected 408 for maxwait=0 against a full semaphore, got %d", status)
	}

	start := time.Now()
	status, _, err = sem.Acquire(context.Background(), 1, nil, i64(30))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if status != 408 {
		t.Fatalf("expected 408 on queued timeout, got %d", status)
	}
	if time.Since(start) < 20*time.Millisecond {
		t.Fatalf("timeout returned suspiciously fast")
	}
}

func TestSemaphoreReleaseUnknownKey(t *testing.T) {
	sem := newSemaphore(clock.System{}, idgen.UUIDGenerator{})
	if status := sem.Release("never-issued"); status != 409 {
		t.Fatalf("expected 409 for unknown key, got %d", status)
	}
}
