// Package bouncerclient is a small Go client for a running Bouncer
// instance, used by the status subcommand and by integration tests that
// want a real HTTP round trip instead of calling the dispatcher in-process.
package bouncerclient

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/hashicorp/go-retryablehttp"
)

// Client talks to a Bouncer server over HTTP, retrying transient connection
// failures the same way the teacher's API client wires retryablehttp.
type Client struct {
	baseURL string
	http    *http.Client
}

// New constructs a Client. baseURL is the server's origin, e.g.
// "http://localhost:8080".
func New(baseURL string) *Client {
	retryClient := retryablehttp.NewClient()
	retryClient.RetryMax = 5
	retryClient.RetryWaitMin = 100 * time.Millisecond
	retryClient.RetryWaitMax = 2 * time.Second
	retryClient.Logger = &quietLogger{}

	return &Client{
		baseURL: baseURL,
		http:    retryClient.StandardClient(),
	}
}

// quietLogger discards retryablehttp's internal debug chatter; it still
// implements retryablehttp.LeveledLogger so a caller wanting visibility can
// swap it out without changing Client's shape.
type quietLogger struct{}

func (quietLogger) Error(string, ...interface{}) {}
func (quietLogger) Info(string, ...interface{})  {}
func (quietLogger) Debug(string, ...interface{}) {}
func (quietLogger) Warn(string, ...interface{})  {}

func (c *Client) get(ctx context.Context, path string, query url.Values) (int, []byte, error) {
	u := c.baseURL + path
	if query != nil {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return 0, nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, err
	}
	return resp.StatusCode, body, nil
}

func (c *Client) delete(ctx context.Context, path string) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.baseURL+path, nil)
	if err != nil {
		return 0, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	return resp.StatusCode, nil
}

// Ready polls GET /.well-known/ready.
func (c *Client) Ready(ctx context.Context) (bool, error) {
	status, _, err := c.get(ctx, "/.well-known/ready", nil)
	if err != nil {
		return false, err
	}
	return status == http.StatusOK, nil
}

// RegistryEntry mirrors primitives.Entry for client-side decoding.
type RegistryEntry struct {
	Kind  string      `json:"kind"`
	Name  string      `json:"name"`
	Stats interface{} `json:"stats"`
}

// Registry fetches GET /.well-known/registry.
func (c *Client) Registry(ctx context.Context) ([]RegistryEntry, error) {
	status, body, err := c.get(ctx, "/.well-known/registry", nil)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("bouncerclient: registry returned %d", status)
	}
	var entries []RegistryEntry
	if err := json.Unmarshal(body, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

// Stats fetches GET /{kind}/{name}/stats, decoding into out.
func (c *Client) Stats(ctx context.Context, kind, name string, out interface{}) (int, error) {
	status, body, err := c.get(ctx, fmt.Sprintf("/%s/%s/stats", kind, name), nil)
	if err != nil {
		return 0, err
	}
	if status == http.StatusOK {
		if err := json.Unmarshal(body, out); err != nil {
			return status, err
		}
	}
	return status, nil
}

// Delete issues DELETE /{kind}/{name}.
func (c *Client) Delete(ctx context.Context, kind, name string) (int, error) {
	return c.delete(ctx, fmt.Sprintf("/%s/%s", kind, name))
}

// AcquireTokens issues GET /tokenbucket/{name}/acquire.
func (c *Client) AcquireTokens(ctx context.Context, name string, size int, maxwait *int64, interval int64) (int, error) {
	q := url.Values{"size": {strconv.Itoa(size)}}
	if maxwait != nil {
		q.Set("maxwait", strconv.FormatInt(*maxwait, 10))
	}
	if interval > 0 {
		q.Set("interval", strconv.FormatInt(interval, 10))
	}
	status, _, err := c.get(ctx, "/tokenbucket/"+name+"/acquire", q)
	return status, err
}

// AcquireSemaphore issues GET /semaphore/{name}/acquire, returning the
// lease key on success.
func (c *Client) AcquireSemaphore(ctx context.Context, name string, size int, expires, maxwait *int64) (int, string, error) {
	q := url.Values{"size": {strconv.Itoa(size)}}
	if expires != nil {
		q.Set("expires", strconv.FormatInt(*expires, 10))
	}
	if maxwait != nil {
		q.Set("maxwait", strconv.FormatInt(*maxwait, 10))
	}
	status, body, err := c.get(ctx, "/semaphore/"+name+"/acquire", q)
	return status, string(body), err
}

// ReleaseSemaphore issues GET /semaphore/{name}/release?key=K.
func (c *Client) ReleaseSemaphore(ctx context.Context, name, key string) (int, error) {
	status, _, err := c.get(ctx, "/semaphore/"+name+"/release", url.Values{"key": {key}})
	return status, err
}

// WaitEvent issues GET /event/{name}/wait.
func (c *Client) WaitEvent(ctx context.Context, name string, maxwait *int64) (int, string, error) {
	q := url.Values{}
	if maxwait != nil {
		q.Set("maxwait", strconv.FormatInt(*maxwait, 10))
	}
	status, body, err := c.get(ctx, "/event/"+name+"/wait", q)
	return status, string(body), err
}

// SendEvent issues GET /event/{name}/send?message=MSG.
func (c *Client) SendEvent(ctx context.Context, name, message string) (int, error) {
	status, _, err := c.get(ctx, "/event/"+name+"/send", url.Values{"message": {message}})
	return status, err
}

// Count issues GET /counter/{name}/count.
func (c *Client) Count(ctx context.Context, name string) (int, string, error) {
	status, body, err := c.get(ctx, "/counter/"+name+"/count", nil)
	return status, string(body), err
}

// Kick issues GET /watchdog/{name}/kick?expires=E.
func (c *Client) Kick(ctx context.Context, name string, expires int64) (int, error) {
	status, _, err := c.get(ctx, "/watchdog/"+name+"/kick", url.Values{"expires": {strconv.FormatInt(expires, 10)}})
	return status, err
}

// WaitWatchdog issues GET /watchdog/{name}/wait.
func (c *Client) WaitWatchdog(ctx context.Context, name string, maxwait *int64) (int, error) {
	q := url.Values{}
	if maxwait != nil {
		q.Set("maxwait", strconv.FormatInt(*maxwait, 10))
	}
	status, _, err := c.get(ctx, "/watchdog/"+name+"/wait", q)
	return status, err
}

// WaitBarrier issues GET /barrier/{name}/wait?size=N&maxwait=M.
func (c *Client) WaitBarrier(ctx context.Context, name string, size int, maxwait *int64) (int, error) {
	q := url.Values{"size": {strconv.Itoa(size)}}
	if maxwait != nil {
		q.Set("maxwait", strconv.FormatInt(*maxwait, 10))
	}
	status, _, err := c.get(ctx, "/barrier/"+name+"/wait", q)
	return status, err
}
