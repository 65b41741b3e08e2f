package primitives

import (
	"sync"

	"github.com/rescale-labs/bouncer/internal/clock"
	"github.com/rescale-labs/bouncer/internal/idgen"
)

// Kind identifies a primitive type. It doubles as the first URL path
// segment the dispatcher parses.
type Kind string

const (
	KindTokenBucket Kind = "tokenbucket"
	KindSemaphore   Kind = "semaphore"
	KindEvent       Kind = "event"
	KindCounter     Kind = "counter"
	KindWatchdog    Kind = "watchdog"
	KindBarrier     Kind = "barrier"
)

// ParseKind maps a URL path segment to a Kind, reporting whether it names a
// known primitive type.
func ParseKind(s string) (Kind, bool) {
	switch Kind(s) {
	case KindTokenBucket, KindSemaphore, KindEvent, KindCounter, KindWatchdog, KindBarrier:
		return Kind(s), true
	default:
		return "", false
	}
}

type resourceKey struct {
	kind Kind
	name string
}

// Entry is a point-in-time snapshot of one live resource, used by the
// registry listing endpoint.
type Entry struct {
	Kind  Kind        `json:"kind"`
	Name  string      `json:"name"`
	Stats interface{} `json:"stats"`
}

// Registry is the process-wide mapping (kind, name) -> primitive instance.
// It is the only state shared across primitives; every primitive's own
// state is guarded by its own lock, not the registry's.
type Registry struct {
	mu      sync.RWMutex
	entries map[resourceKey]primitive
	clock   clock.Clock
	keygen  idgen.Generator
}

// NewRegistry constructs an empty registry. clock and keygen are injected so
// tests can substitute deterministic implementations.
func NewRegistry(c clock.Clock, g idgen.Generator) *Registry {
	return &Registry{
		entries: make(map[resourceKey]primitive),
		clock:   c,
		keygen:  g,
	}
}

func getOrCreate[T primitive](r *Registry, kind Kind, name string, create func() T) T {
	k := resourceKey{kind, name}

	r.mu.RLock()
	if p, ok := r.entries[k]; ok {
		r.mu.RUnlock()
		return p.(T)
	}
	r.mu.RUnlock()

	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok := r.entries[k]; ok {
		return p.(T)
	}
	v := create()
	r.entries[k] = v
	return v
}

// TokenBucket returns the named token bucket, creating it on first touch.
func (r *Registry) TokenBucket(name string) *TokenBucket {
	return getOrCreate(r, KindTokenBucket, name, func() *TokenBucket { return newTokenBucket(r.clock) })
}

// Semaphore returns the named semaphore, creating it on first touch.
func (r *Registry) Semaphore(name string) *Semaphore {
	return getOrCreate(r, KindSemaphore, name, func() *Semaphore { return newSemaphore(r.clock, r.keygen) })
}

// Event returns the named event, creating it on first touch.
func (r *Registry) Event(name string) *Event {
	return getOrCreate(r, KindEvent, name, func() *Event { return newEvent(r.clock) })
}

// Counter returns the named counter, creating it on first touch.
func (r *Registry) Counter(name string) *Counter {
	return getOrCreate(r, KindCounter, name, func() *Counter { return newCounter() })
}

// Watchdog returns the named watchdog, creating it on first touch.
func (r *Registry) Watchdog(name string) *Watchdog {
	return getOrCreate(r, KindWatchdog, name, func() *Watchdog { return newWatchdog(r.clock) })
}

// Barrier returns the named barrier, creating it on first touch.
func (r *Registry) Barrier(name string) *Barrier {
	return getOrCreate(r, KindBarrier, name, func() *Barrier { return newBarrier(r.clock) })
}

// StatsFor returns the current stats snapshot for (kind, name), or
// ok == false if no such resource exists (the dispatcher turns that into a
// 404 without creating one).
func (r *Registry) StatsFor(kind Kind, name string) (stats interface{}, ok bool) {
	r.mu.RLock()
	p, found := r.entries[resourceKey{kind, name}]
	r.mu.RUnlock()
	if !found {
		return nil, false
	}
	return p.stats(), true
}

// Delete removes (kind, name) if present, then wakes all of its waiters with
// resource_deleted. Returns false if nothing existed to delete.
func (r *Registry) Delete(kind Kind, name string) bool {
	k := resourceKey{kind, name}

	r.mu.Lock()
	p, ok := r.entries[k]
	if ok {
		delete(r.entries, k)
	}
	r.mu.Unlock()

	if ok {
		p.deleteWake()
	}
	return ok
}

// Snapshot returns every live (kind, name) entry and its current stats, for
// the /.well-known/registry operational endpoint. It never blocks on any
// single primitive's own lock for longer than that primitive's own stats
// snapshot.
func (r *Registry) Snapshot() []Entry {
	r.mu.RLock()
	keys := make([]resourceKey, 0, len(r.entries))
	ps := make([]primitive, 0, len(r.entries))
	for k, p := range r.entries {
		keys = append(keys, k)
		ps = append(ps, p)
	}
	r.mu.RUnlock()

	out := make([]Entry, len(keys))
	for i, k := range keys {
		out[i] = Entry{Kind: k.kind, Name: k.name, Stats: ps[i].stats()}
	}
	return out
}
