package flow

import (
	"log/slog"
	"sort"
	"sync"
	"time"
)

// Clock abstracts time so tickers and countdowns can be driven by tests.
// AfterFunc returns a stop function reporting whether the call was still pending.
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, fn func()) (stop func() bool)
}

type systemClock struct{}

// SystemClock returns the wall clock.
func SystemClock() Clock { return systemClock{} }

func (systemClock) Now() time.Time { return time.Now() }

func (systemClock) AfterFunc(d time.Duration, fn func()) func() bool {
	return time.AfterFunc(d, fn).Stop
}

// Timer names used by the application.
const (
	TimerFasting    = "fasting"
	TimerRest       = "rest"
	TimerMeditation = "meditation"
	TimerLoading    = "loading"
	TimerDefine     = "define"
)

// timerEntry tracks one armed timer. generation distinguishes a re-armed timer
// from a stale callback of the one it replaced.
type timerEntry struct {
	stop        func() bool
	generation  uint64
	interval    time.Duration
	repeating   bool
	scheduledAt time.Time
}

// TimerInfo describes an active named timer.
type TimerInfo struct {
	Name        string        `json:"name"`
	Interval    time.Duration `json:"interval"`
	Repeating   bool          `json:"repeating"`
	ScheduledAt time.Time     `json:"scheduled_at"`
}

// NamedTimers keeps at most one live timer per name. Arming a name always
// cancels whatever was previously armed under it.
type NamedTimers struct {
	clock  Clock
	mu     sync.Mutex
	timers map[string]*timerEntry
	nextGn uint64
}

// NewNamedTimers creates an empty timer set on the given clock.
func NewNamedTimers(clock Clock) *NamedTimers {
	if clock == nil {
		clock = SystemClock()
	}
	slog.Debug("Creating NamedTimers")
	return &NamedTimers{clock: clock, timers: make(map[string]*timerEntry)}
}

// After runs fn once after delay.
func (t *NamedTimers) After(name string, delay time.Duration, fn func()) {
	t.arm(name, delay, false, fn)
}

// Every runs fn every interval until cancelled.
func (t *NamedTimers) Every(name string, interval time.Duration, fn func()) {
	t.arm(name, interval, true, fn)
}

func (t *NamedTimers) arm(name string, d time.Duration, repeating bool, fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.cancelLocked(name)
	t.nextGn++
	entry := &timerEntry{
		generation:  t.nextGn,
		interval:    d,
		repeating:   repeating,
		scheduledAt: t.clock.Now(),
	}
	t.timers[name] = entry
	entry.stop = t.clock.AfterFunc(d, t.fire(name, entry.generation, fn))
	slog.Debug("NamedTimers armed", "name", name, "interval", d, "repeating", repeating)
}

// fire wraps fn so that a callback belonging to a replaced or cancelled timer
// does nothing, and repeating timers re-arm themselves.
func (t *NamedTimers) fire(name string, generation uint64, fn func()) func() {
	return func() {
		t.mu.Lock()
		entry, ok := t.timers[name]
		if !ok || entry.generation != generation {
			t.mu.Unlock()
			return
		}
		if entry.repeating {
			entry.scheduledAt = t.clock.Now()
			entry.stop = t.clock.AfterFunc(entry.interval, t.fire(name, generation, fn))
		} else {
			delete(t.timers, name)
		}
		t.mu.Unlock()
		fn()
	}
}

// Cancel stops the named timer if armed.
func (t *NamedTimers) Cancel(name string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.cancelLocked(name)
}

func (t *NamedTimers) cancelLocked(name string) {
	if entry, ok := t.timers[name]; ok {
		entry.stop()
		delete(t.timers, name)
		slog.Debug("NamedTimers cancelled", "name", name)
	}
}

// Active reports whether the named timer is armed.
func (t *NamedTimers) Active(name string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.timers[name]
	return ok
}

// Stop cancels all timers.
func (t *NamedTimers) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	for name, entry := range t.timers {
		entry.stop()
		delete(t.timers, name)
	}
	slog.Debug("NamedTimers stopped all timers")
}

// ListActive returns the armed timers ordered by name.
func (t *NamedTimers) ListActive() []TimerInfo {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]TimerInfo, 0, len(t.timers))
	for name, e := range t.timers {
		out = append(out, TimerInfo{Name: name, Interval: e.interval, Repeating: e.repeating, ScheduledAt: e.scheduledAt})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
