package primitives

import (
	"strconv"
	"sync"
)

// CounterStats mirrors the JSON shape returned by GET /counter/{name}/stats.
type CounterStats struct {
	Value      int   `json:"value"`
	Increments int64 `json:"increments"`
	Resets     int64 `json:"resets"`
}

// Counter is a monotonic, resettable integer with no suspension points;
// every operation completes in bounded time under its own lock.
type Counter struct {
	mu sync.Mutex
	st CounterStats
}

func newCounter() *Counter { return &Counter{} }

// Count implements GET /counter/{name}/count, returning the post-increment
// value as the response body.
func (c *Counter) Count() (status int, body string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.st.Value++
	c.st.Increments++
	return 200, strconv.Itoa(c.st.Value)
}

// Value implements GET /counter/{name}/value.
func (c *Counter) Value() (status int, body string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return 200, strconv.Itoa(c.st.Value)
}

// Reset implements GET /counter/{name}/reset.
func (c *Counter) Reset() (status int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.st.Value = 0
	c.st.Resets++
	return 204
}

func (c *Counter) stats() interface{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.st
}

// deleteWake is a no-op: counters have no waiters.
func (c *Counter) deleteWake() {}
