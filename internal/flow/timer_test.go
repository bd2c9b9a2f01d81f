package flow

import (
	"testing"
	"time"

	"github.com/BTreeMap/BioFlow/internal/testutil"
)

func TestNamedTimersEveryRearmKeepsOneTicker(t *testing.T) {
	clock := testutil.NewManualClock(time.Unix(0, 0))
	timers := NewNamedTimers(clock)

	first, second := 0, 0
	timers.Every(TimerFasting, time.Minute, func() { first++ })
	timers.Every(TimerFasting, time.Minute, func() { second++ })

	clock.Advance(3 * time.Minute)
	if first != 0 {
		t.Errorf("replaced ticker fired %d times", first)
	}
	if second != 3 {
		t.Errorf("expected 3 ticks, got %d", second)
	}
	if clock.Pending() != 1 {
		t.Errorf("expected exactly one armed callback, got %d", clock.Pending())
	}
}

func TestNamedTimersAfterRunsOnce(t *testing.T) {
	clock := testutil.NewManualClock(time.Unix(0, 0))
	timers := NewNamedTimers(clock)

	calls := 0
	timers.After(TimerDefine, 300*time.Millisecond, func() { calls++ })
	clock.Advance(200 * time.Millisecond)
	timers.After(TimerDefine, 300*time.Millisecond, func() { calls += 10 })
	clock.Advance(time.Second)

	if calls != 10 {
		t.Errorf("expected only the re-armed callback to run, got %d", calls)
	}
	if timers.Active(TimerDefine) {
		t.Error("one-shot timer should be gone after firing")
	}
}

func TestNamedTimersCancelAndStop(t *testing.T) {
	clock := testutil.NewManualClock(time.Unix(0, 0))
	timers := NewNamedTimers(clock)

	fired := false
	timers.Every(TimerRest, time.Second, func() { fired = true })
	timers.Every(TimerMeditation, time.Second, func() { fired = true })
	if got := timers.ListActive(); len(got) != 2 || got[0].Name != TimerMeditation {
		t.Errorf("unexpected active timers %+v", got)
	}

	timers.Cancel(TimerRest)
	if timers.Active(TimerRest) {
		t.Error("expected rest timer to be cancelled")
	}
	timers.Stop()
	clock.Advance(5 * time.Second)
	if fired {
		t.Error("no callback should fire after Stop")
	}
	if len(timers.ListActive()) != 0 {
		t.Error("expected no active timers after Stop")
	}
}

func TestNamedTimersCancelFromCallback(t *testing.T) {
	clock := testutil.NewManualClock(time.Unix(0, 0))
	timers := NewNamedTimers(clock)

	remaining := 3
	timers.Every(TimerRest, time.Second, func() {
		remaining--
		if remaining == 0 {
			timers.Cancel(TimerRest)
		}
	})
	clock.Advance(10 * time.Second)
	if remaining != 0 {
		t.Errorf("expected countdown to stop at zero, got %d", remaining)
	}
	if clock.Pending() != 0 {
		t.Errorf("expected no pending callbacks, got %d", clock.Pending())
	}
}
