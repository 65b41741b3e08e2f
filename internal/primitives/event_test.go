package primitives

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rescale-labs/bouncer/internal/clock"
)

func TestEventTriggeredBeforeWait(t *testing.T) {
	ev := newEvent(clock.System{})

	if status := ev.Send("hurry"); status != 204 {
		t.Fatalf("expected 204 from send, got %d", status)
	}

	const waiters = 10
	var wg sync.WaitGroup
	for i := 0; i < waiters; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			status, msg, err := ev.Wait(context.Background(), nil)
			if err != nil {
				t.Errorf("unexpected error: %v", err)
				return
			}
			if status != 200 || msg != "hurry" {
				t.Errorf("expected 200/hurry, got %d/%q", status, msg)
			}
		}()
	}
	wg.Wait()

	st := ev.stats().(EventStats)
	if st.Triggered != 1 || st.Waited != waiters {
		t.Fatalf("unexpected stats: %+v", st)
	}
}

func TestEventBroadcastWakesQueuedWaiters(t *testing.T) {
	ev := newEvent(clock.System{})

	const waiters = 5
	results := make(chan string, waiters)
	for i := 0; i < waiters; i++ {
		go func() {
			_, msg, err := ev.Wait(context.Background(), nil)
			if err != nil {
				t.Errorf("unexpected error: %v", err)
				return
			}
			results <- msg
		}()
	}

	time.Sleep(20 * time.Millisecond)
	ev.Send("go")

	for i := 0; i < waiters; i++ {
		select {
		case msg := <-results:
			if msg != "go" {
				t.Fatalf("expected message 'go', got %q", msg)
			}
		case <-time.After(time.Second):
			t.Fatal("broadcast did not reach all waiters")
		}
	}
}

func TestEventWaitTimeout(t *testing.T) {
	ev := newEvent(clock.System{})
	status, _, err := ev.Wait(context.Background(), i64(20))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if status != 408 {
		t.Fatalf("expected 408, got %d", status)
	}
	st := ev.stats().(EventStats)
	if st.TimedOut != 1 {
		t.Fatalf("expected timed_out=1, got %d", st.TimedOut)
	}
}
