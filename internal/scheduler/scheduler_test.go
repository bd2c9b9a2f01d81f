package scheduler

import (
	"context"
	"sync"
	"testing"
)

type countingRollover struct {
	mu    sync.Mutex
	calls int
}

func (c *countingRollover) DailyRollover(context.Context) {
	c.mu.Lock()
	c.calls++
	c.mu.Unlock()
}

func TestSchedulerAddJob(t *testing.T) {
	s := NewScheduler()
	defer s.Stop()

	tests := []struct {
		expr    string
		wantErr bool
	}{
		{"* * * * *", false},
		{MidnightSpec, false},
		{"not a cron", true},
		{"0 0 * * * *", true},
	}
	for _, tt := range tests {
		err := s.AddJob(tt.expr, func() {})
		if (err != nil) != tt.wantErr {
			t.Errorf("AddJob(%q) error = %v, wantErr %v", tt.expr, err, tt.wantErr)
		}
	}
}

func TestScheduleRollover(t *testing.T) {
	s := NewScheduler()
	defer s.Stop()

	r := &countingRollover{}
	if err := s.ScheduleRollover(context.Background(), r); err != nil {
		t.Fatalf("ScheduleRollover: %v", err)
	}
	if got := s.Entries(); got != 1 {
		t.Errorf("Entries() = %d, want 1", got)
	}
	// Nothing fires until midnight.
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.calls != 0 {
		t.Errorf("rollover ran %d times before midnight", r.calls)
	}
}
