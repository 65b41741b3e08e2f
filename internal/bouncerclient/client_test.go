package bouncerclient

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rescale-labs/bouncer/internal/clock"
	"github.com/rescale-labs/bouncer/internal/dispatcher"
	"github.com/rescale-labs/bouncer/internal/idgen"
	"github.com/rescale-labs/bouncer/internal/logging"
	"github.com/rescale-labs/bouncer/internal/primitives"
)

func newTestBouncer(t *testing.T) (*Client, func()) {
	t.Helper()
	reg := primitives.NewRegistry(clock.System{}, idgen.UUIDGenerator{})
	d := dispatcher.New(reg, logging.New())
	d.MarkReady()
	srv := httptest.NewServer(d.Handler())
	return New(srv.URL), srv.Close
}

func TestClientReadyAndRegistry(t *testing.T) {
	c, closeFn := newTestBouncer(t)
	defer closeFn()

	ready, err := c.Ready(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ready {
		t.Fatal("expected ready=true")
	}

	if _, _, err := c.Count(context.Background(), "hits"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	entries, err := c.Registry(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	found := false
	for _, e := range entries {
		if e.Kind == "counter" && e.Name == "hits" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected counter/hits in registry, got %+v", entries)
	}
}

func TestClientSemaphoreAcquireRelease(t *testing.T) {
	c, closeFn := newTestBouncer(t)
	defer closeFn()

	status, key, err := c.AcquireSemaphore(context.Background(), "pool", 1, nil, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if status != http.StatusOK || key == "" {
		t.Fatalf("expected 200 with a key, got status=%d key=%q", status, key)
	}

	status, err = c.ReleaseSemaphore(context.Background(), "pool", key)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if status != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", status)
	}
}

func TestClientDelete(t *testing.T) {
	c, closeFn := newTestBouncer(t)
	defer closeFn()

	if _, _, err := c.Count(context.Background(), "temp"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	status, err := c.Delete(context.Background(), "counter", "temp")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if status != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", status)
	}

	var stats primitives.CounterStats
	status, err = c.Stats(context.Background(), "counter", "temp", &stats)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if status != http.StatusNotFound {
		t.Fatalf("expected 404 after delete, got %d", status)
	}
}
