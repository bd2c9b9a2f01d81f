// Package testutil provides common test utilities and helpers for BioFlow tests.
package testutil

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/BTreeMap/BioFlow/internal/models"
)

// AssertHTTPStatus checks the HTTP status code and fails the test if it doesn't match.
func AssertHTTPStatus(t *testing.T, expected, actual int, context string) {
	t.Helper()
	if actual != expected {
		t.Errorf("%s: expected status %d, got %d", context, expected, actual)
	}
}

// AssertJSONResponse decodes JSON response and validates the status field.
func AssertJSONResponse(t *testing.T, rr *httptest.ResponseRecorder, expectedStatus string) map[string]interface{} {
	t.Helper()
	var response map[string]interface{}
	if err := json.NewDecoder(rr.Body).Decode(&response); err != nil {
		t.Fatalf("failed to decode JSON response: %v", err)
	}

	if status, ok := response["status"].(string); ok {
		if status != expectedStatus {
			t.Errorf("expected status '%s', got '%s'", expectedStatus, status)
		}
	} else {
		t.Error("response missing or invalid 'status' field")
	}

	return response
}

// CreateHTTPRequest creates an HTTP request with optional JSON body for testing.
func CreateHTTPRequest(t *testing.T, method, url string, body interface{}) *http.Request {
	t.Helper()
	var reqBody *bytes.Buffer
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("failed to marshal request body: %v", err)
		}
		reqBody = bytes.NewBuffer(jsonData)
	} else {
		reqBody = bytes.NewBuffer(nil)
	}

	req, err := http.NewRequest(method, url, reqBody)
	if err != nil {
		t.Fatalf("failed to create HTTP request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req
}

// ManualClock is a clock whose time only moves when Advance is called.
// Callbacks due within an Advance run synchronously, in due order.
type ManualClock struct {
	mu      sync.Mutex
	now     time.Time
	pending []*manualTimer
	seq     int
}

type manualTimer struct {
	at  time.Time
	seq int
	fn  func()
}

// NewManualClock creates a clock frozen at start.
func NewManualClock(start time.Time) *ManualClock {
	return &ManualClock{now: start}
}

// Now returns the current manual time.
func (c *ManualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// AfterFunc schedules fn to run once the clock has advanced by d.
func (c *ManualClock) AfterFunc(d time.Duration, fn func()) func() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seq++
	mt := &manualTimer{at: c.now.Add(d), seq: c.seq, fn: fn}
	c.pending = append(c.pending, mt)
	return func() bool {
		c.mu.Lock()
		defer c.mu.Unlock()
		for i, p := range c.pending {
			if p == mt {
				c.pending = append(c.pending[:i], c.pending[i+1:]...)
				return true
			}
		}
		return false
	}
}

// Advance moves the clock forward by d, firing every callback that becomes due.
// Callbacks scheduled by a firing callback also run if they fall within d.
func (c *ManualClock) Advance(d time.Duration) {
	c.mu.Lock()
	target := c.now.Add(d)
	for {
		sort.SliceStable(c.pending, func(i, j int) bool {
			if c.pending[i].at.Equal(c.pending[j].at) {
				return c.pending[i].seq < c.pending[j].seq
			}
			return c.pending[i].at.Before(c.pending[j].at)
		})
		if len(c.pending) == 0 || c.pending[0].at.After(target) {
			break
		}
		next := c.pending[0]
		c.pending = c.pending[1:]
		c.now = next.at
		c.mu.Unlock()
		next.fn()
		c.mu.Lock()
	}
	c.now = target
	c.mu.Unlock()
}

// Set jumps the clock to t without firing anything.
func (c *ManualClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

// Pending returns the number of scheduled callbacks.
func (c *ManualClock) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}

// RecordingNotifier collects toasts instead of printing them.
type RecordingNotifier struct {
	mu     sync.Mutex
	Toasts []models.Toast
}

// Notify records a toast.
func (n *RecordingNotifier) Notify(kind models.ToastKind, message string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.Toasts = append(n.Toasts, models.Toast{Kind: kind, Message: message})
}

// Messages returns the recorded messages of the given kind.
func (n *RecordingNotifier) Messages(kind models.ToastKind) []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []string
	for _, t := range n.Toasts {
		if t.Kind == kind {
			out = append(out, t.Message)
		}
	}
	return out
}

// Has reports whether a toast with this kind and message was recorded.
func (n *RecordingNotifier) Has(kind models.ToastKind, message string) bool {
	for _, m := range n.Messages(kind) {
		if m == message {
			return true
		}
	}
	return false
}

// RecordingIndicator records loading indicator transitions.
type RecordingIndicator struct {
	mu      sync.Mutex
	Phases  []string
	Running bool
	Starts  int
	Stops   int
}

// Start records the first phase and marks the indicator running.
func (r *RecordingIndicator) Start(text string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Running = true
	r.Starts++
	r.Phases = append(r.Phases, text)
}

// Update records a phase change.
func (r *RecordingIndicator) Update(text string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Phases = append(r.Phases, text)
}

// Stop marks the indicator stopped.
func (r *RecordingIndicator) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Running = false
	r.Stops++
}

// IsRunning reports whether Start was called without a matching Stop.
func (r *RecordingIndicator) IsRunning() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.Running
}
