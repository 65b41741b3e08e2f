// Package dispatcher is the thin HTTP shell in front of the primitive
// engine: it parses /{kind}/{name}/{op} and query parameters, binds the
// operation to a registry entry, and translates the result into an HTTP
// response. No primitive decision-making lives here.
package dispatcher

import (
	"encoding/json"
	"errors"
	"net/http"
	"runtime/debug"
	"strings"
	"sync/atomic"
	"time"

	"github.com/rescale-labs/bouncer/internal/logging"
	"github.com/rescale-labs/bouncer/internal/primitives"
)

// Dispatcher binds the HTTP surface to a primitive registry.
type Dispatcher struct {
	registry *primitives.Registry
	log      *logging.Logger
	ready    atomic.Bool
}

// New constructs a Dispatcher. It reports not-ready until MarkReady is
// called; the serve command calls it as it starts its listener.
func New(registry *primitives.Registry, log *logging.Logger) *Dispatcher {
	return &Dispatcher{registry: registry, log: log}
}

// MarkReady flips GET /.well-known/ready to 200.
func (d *Dispatcher) MarkReady() { d.ready.Store(true) }

// Handler returns the complete HTTP handler, wrapped with panic recovery.
func (d *Dispatcher) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/.well-known/ready", d.handleReady)
	mux.HandleFunc("/.well-known/registry", d.handleRegistry)
	mux.HandleFunc("/", d.handleResource)
	return d.recover(mux)
}

// recover wraps a handler so a panic in a primitive operation logs and
// responds 500 instead of taking the whole server down; the registry map is
// not touched. A primitive lock held during the panic is released only where
// the method unlocks through defer (stats, Release, the counter operations);
// methods that unlock explicitly keep that primitive's lock held.
func (d *Dispatcher) recover(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				d.log.Error().
					Interface("panic", rec).
					Bytes("stack", debug.Stack()).
					Msg("recovered from panic handling request")
				w.WriteHeader(http.StatusInternalServerError)
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func (d *Dispatcher) handleReady(w http.ResponseWriter, r *http.Request) {
	if !d.ready.Load() {
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (d *Dispatcher) handleRegistry(w http.ResponseWriter, r *http.Request) {
	snap := d.registry.Snapshot()
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(snap)
}

// handleResource parses /{kind}/{name}[/{op}] and routes to the per-kind
// operation table.
func (d *Dispatcher) handleResource(w http.ResponseWriter, r *http.Request) {
	parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
	if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
		http.NotFound(w, r)
		return
	}
	kind, ok := primitives.ParseKind(parts[0])
	if !ok {
		http.NotFound(w, r)
		return
	}
	name := parts[1]

	if r.Method == http.MethodDelete {
		if len(parts) != 2 {
			http.NotFound(w, r)
			return
		}
		d.handleDelete(w, kind, name)
		return
	}
	if r.Method != http.MethodGet || len(parts) != 3 {
		http.NotFound(w, r)
		return
	}
	op := parts[2]

	start := time.Now()
	entry := d.log.With().Str("kind", parts[0]).Str("name", name).Str("op", op).Logger()

	status := d.dispatch(w, r, kind, name, op)

	entry.Debug().
		Int("status", status).
		Dur("latency", time.Since(start)).
		Msg("request handled")
}

func (d *Dispatcher) handleDelete(w http.ResponseWriter, kind primitives.Kind, name string) {
	if !d.registry.Delete(kind, name) {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	d.log.Info().Str("kind", string(kind)).Str("name", name).Msg("resource deleted")
	w.WriteHeader(http.StatusNoContent)
}

// dispatch performs the actual operation and writes the response, returning
// the status code written (for logging only).
func (d *Dispatcher) dispatch(w http.ResponseWriter, r *http.Request, kind primitives.Kind, name, op string) int {
	if op == "stats" {
		stats, ok := d.registry.StatsFor(kind, name)
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return http.StatusNotFound
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(stats)
		return http.StatusOK
	}

	switch kind {
	case primitives.KindTokenBucket:
		return d.dispatchTokenBucket(w, r, name, op)
	case primitives.KindSemaphore:
		return d.dispatchSemaphore(w, r, name, op)
	case primitives.KindEvent:
		return d.dispatchEvent(w, r, name, op)
	case primitives.KindCounter:
		return d.dispatchCounter(w, name, op)
	case primitives.KindWatchdog:
		return d.dispatchWatchdog(w, r, name, op)
	case primitives.KindBarrier:
		return d.dispatchBarrier(w, r, name, op)
	default:
		http.NotFound(w, r)
		return http.StatusNotFound
	}
}

func (d *Dispatcher) dispatchTokenBucket(w http.ResponseWriter, r *http.Request, name, op string) int {
	if op != "acquire" {
		http.NotFound(w, r)
		return http.StatusNotFound
	}
	size, err := intParam(r, "size")
	if err != nil {
		return writeBadRequest(w, err)
	}
	maxwait, err := msParam(r, "maxwait")
	if err != nil {
		return writeBadRequest(w, err)
	}
	interval, err := intMsParam(r, "interval")
	if err != nil {
		return writeBadRequest(w, err)
	}

	tb := d.registry.TokenBucket(name)
	status, err := tb.Acquire(r.Context(), size, maxwait, interval)
	return writeResult(w, status, "", err)
}

func (d *Dispatcher) dispatchSemaphore(w http.ResponseWriter, r *http.Request, name, op string) int {
	sem := d.registry.Semaphore(name)
	switch op {
	case "acquire":
		size, err := intParam(r, "size")
		if err != nil {
			return writeBadRequest(w, err)
		}
		expires, err := msParam(r, "expires")
		if err != nil {
			return writeBadRequest(w, err)
		}
		maxwait, err := msParam(r, "maxwait")
		if err != nil {
			return writeBadRequest(w, err)
		}
		status, key, err := sem.Acquire(r.Context(), size, expires, maxwait)
		return writeResult(w, status, key, err)
	case "release":
		key := r.URL.Query().Get("key")
		status := sem.Release(key)
		return writeResult(w, status, "", nil)
	default:
		http.NotFound(w, r)
		return http.StatusNotFound
	}
}

func (d *Dispatcher) dispatchEvent(w http.ResponseWriter, r *http.Request, name, op string) int {
	ev := d.registry.Event(name)
	switch op {
	case "wait":
		maxwait, err := msParam(r, "maxwait")
		if err != nil {
			return writeBadRequest(w, err)
		}
		status, msg, err := ev.Wait(r.Context(), maxwait)
		return writeResult(w, status, msg, err)
	case "send":
		message := r.URL.Query().Get("message")
		status := ev.Send(message)
		return writeResult(w, status, "", nil)
	default:
		http.NotFound(w, r)
		return http.StatusNotFound
	}
}

func (d *Dispatcher) dispatchCounter(w http.ResponseWriter, name, op string) int {
	c := d.registry.Counter(name)
	switch op {
	case "count":
		status, body := c.Count()
		return writeResult(w, status, body, nil)
	case "value":
		status, body := c.Value()
		return writeResult(w, status, body, nil)
	case "reset":
		status := c.Reset()
		return writeResult(w, status, "", nil)
	default:
		w.WriteHeader(http.StatusNotFound)
		return http.StatusNotFound
	}
}

func (d *Dispatcher) dispatchWatchdog(w http.ResponseWriter, r *http.Request, name, op string) int {
	wd := d.registry.Watchdog(name)
	switch op {
	case "kick":
		expires, err := intMsParam(r, "expires")
		if err != nil {
			return writeBadRequest(w, err)
		}
		status := wd.Kick(expires)
		return writeResult(w, status, "", nil)
	case "wait":
		maxwait, err := msParam(r, "maxwait")
		if err != nil {
			return writeBadRequest(w, err)
		}
		status, err := wd.Wait(r.Context(), maxwait)
		return writeResult(w, status, "", err)
	default:
		w.WriteHeader(http.StatusNotFound)
		return http.StatusNotFound
	}
}

func (d *Dispatcher) dispatchBarrier(w http.ResponseWriter, r *http.Request, name, op string) int {
	if op != "wait" {
		w.WriteHeader(http.StatusNotFound)
		return http.StatusNotFound
	}
	b := d.registry.Barrier(name)
	size, err := intParam(r, "size")
	if err != nil {
		return writeBadRequest(w, err)
	}
	maxwait, err := msParam(r, "maxwait")
	if err != nil {
		return writeBadRequest(w, err)
	}
	status, err := b.Wait(r.Context(), size, maxwait)
	return writeResult(w, status, "", err)
}

func writeBadRequest(w http.ResponseWriter, err error) int {
	http.Error(w, err.Error(), http.StatusBadRequest)
	return http.StatusBadRequest
}

// writeResult translates a primitive operation's (status, body, err) into
// the HTTP response. A cancelled wait writes nothing at all: the client
// connection is assumed gone, and per the error-handling design no stat or
// response is produced for a cancellation.
func writeResult(w http.ResponseWriter, status int, body string, err error) int {
	if err != nil {
		if errors.Is(err, primitives.ErrCancelled) {
			return 0
		}
		var invalid primitives.ErrInvalidParam
		if errors.As(err, &invalid) {
			return writeBadRequest(w, err)
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return http.StatusInternalServerError
	}
	if body == "" {
		w.WriteHeader(status)
		return status
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body))
	return status
}
