package testutil

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/BTreeMap/BioFlow/internal/models"
)

func TestCreateHTTPRequest(t *testing.T) {
	req := CreateHTTPRequest(t, http.MethodPost, "/water", map[string]int{"amount": 1})
	if req.Method != http.MethodPost || req.URL.Path != "/water" {
		t.Errorf("unexpected request %s %s", req.Method, req.URL.Path)
	}
	if req.Header.Get("Content-Type") != "application/json" {
		t.Errorf("expected JSON content type, got %q", req.Header.Get("Content-Type"))
	}

	empty := CreateHTTPRequest(t, http.MethodGet, "/state", nil)
	if empty.Header.Get("Content-Type") != "" {
		t.Error("expected no content type without a body")
	}
}

func TestAssertJSONResponse(t *testing.T) {
	rr := httptest.NewRecorder()
	rr.WriteString(`{"status":"ok","result":{"water":3}}`)
	resp := AssertJSONResponse(t, rr, "ok")
	if _, ok := resp["result"]; !ok {
		t.Error("expected result field to be returned")
	}
}

func TestManualClockFiresInOrder(t *testing.T) {
	start := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	c := NewManualClock(start)

	var fired []string
	c.AfterFunc(2*time.Second, func() { fired = append(fired, "b") })
	c.AfterFunc(time.Second, func() { fired = append(fired, "a") })
	stop := c.AfterFunc(3*time.Second, func() { fired = append(fired, "c") })

	if !stop() {
		t.Error("expected stop to report a pending callback")
	}
	if stop() {
		t.Error("expected second stop to report nothing pending")
	}

	c.Advance(5 * time.Second)
	if len(fired) != 2 || fired[0] != "a" || fired[1] != "b" {
		t.Errorf("unexpected firing order %v", fired)
	}
	if !c.Now().Equal(start.Add(5 * time.Second)) {
		t.Errorf("unexpected time %v", c.Now())
	}
	if c.Pending() != 0 {
		t.Errorf("expected no pending callbacks, got %d", c.Pending())
	}
}

func TestManualClockRescheduleWithinAdvance(t *testing.T) {
	c := NewManualClock(time.Unix(0, 0))
	count := 0
	var tick func()
	tick = func() {
		count++
		c.AfterFunc(time.Second, tick)
	}
	c.AfterFunc(time.Second, tick)

	c.Advance(3 * time.Second)
	if count != 3 {
		t.Errorf("expected 3 ticks, got %d", count)
	}
	if c.Pending() != 1 {
		t.Errorf("expected the next tick to stay pending, got %d", c.Pending())
	}
}

func TestRecordingNotifier(t *testing.T) {
	n := &RecordingNotifier{}
	n.Notify(models.ToastSuccess, "Settings Saved")
	n.Notify(models.ToastError, "Upload Failed")

	if !n.Has(models.ToastError, "Upload Failed") {
		t.Error("expected error toast to be recorded")
	}
	if n.Has(models.ToastSuccess, "Upload Failed") {
		t.Error("kinds must not be mixed")
	}
	if got := n.Messages(models.ToastSuccess); len(got) != 1 {
		t.Errorf("expected one success toast, got %v", got)
	}
}
