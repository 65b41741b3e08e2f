package primitives

import (
	"sync"
	"testing"

	"github.com/rescale-labs/bouncer/internal/clock"
	"github.com/rescale-labs/bouncer/internal/idgen"
)

func newTestRegistry() *Registry {
	return NewRegistry(clock.System{}, idgen.UUIDGenerator{})
}

func TestRegistryLazyCreationReturnsSameInstance(t *testing.T) {
	r := newTestRegistry()

	c1 := r.Counter("a")
	c2 := r.Counter("a")
	if c1 != c2 {
		t.Fatal("expected the same counter instance on repeated lookup")
	}

	c3 := r.Counter("b")
	if c1 == c3 {
		t.Fatal("expected distinct instances for distinct names")
	}
}

func TestRegistryKindsAreIndependentNamespaces(t *testing.T) {
	r := newTestRegistry()

	r.Counter("shared")
	r.Event("shared")

	if _, ok := r.StatsFor(KindCounter, "shared"); !ok {
		t.Fatal("expected a counter named shared to exist")
	}
	if _, ok := r.StatsFor(KindEvent, "shared"); !ok {
		t.Fatal("expected an event named shared to exist independently")
	}
}

func TestRegistryStatsForMissingResource(t *testing.T) {
	r := newTestRegistry()
	if _, ok := r.StatsFor(KindCounter, "never-created"); ok {
		t.Fatal("expected ok=false for a resource that was never touched")
	}
}

func TestRegistryDelete(t *testing.T) {
	r := newTestRegistry()
	r.Counter("gone")

	if !r.Delete(KindCounter, "gone") {
		t.Fatal("expected delete to report true for an existing resource")
	}
	if r.Delete(KindCounter, "gone") {
		t.Fatal("expected delete to report false the second time")
	}
	if _, ok := r.StatsFor(KindCounter, "gone"); ok {
		t.Fatal("expected the resource to be gone from stats lookup")
	}
}

func TestRegistrySnapshotListsAllLiveResources(t *testing.T) {
	r := newTestRegistry()
	r.Counter("one")
	r.Event("two")
	r.Semaphore("three")

	entries := r.Snapshot()
	if len(entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(entries))
	}

	seen := make(map[string]bool)
	for _, e := range entries {
		seen[string(e.Kind)+"/"+e.Name] = true
	}
	for _, key := range []string{"counter/one", "event/two", "semaphore/three"} {
		if !seen[key] {
			t.Fatalf("expected snapshot to contain %s", key)
		}
	}
}

func TestRegistryConcurrentAccess(t *testing.T) {
	r := newTestRegistry()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.Counter("hot").Count()
		}()
	}
	wg.Wait()

	st, ok := r.StatsFor(KindCounter, "hot")
	if !ok {
		t.Fatal("expected the hot counter to exist")
	}
	if st.(CounterStats).Increments != 50 {
		t.Fatalf("expected 50 increments, got %+v", st)
	}
}

func TestRegistryParseKind(t *testing.T) {
	if _, ok := ParseKind("bogus"); ok {
		t.Fatal("expected ParseKind to reject an unknown kind")
	}
	if k, ok := ParseKind("semaphore"); !ok || k != KindSemaphore {
		t.Fatalf("expected KindSemaphore, got %v ok=%v", k, ok)
	}
}
