package shell

import (
	"io"
	"sync"
	"time"

	"github.com/briandowns/spinner"
)

// SpinnerIndicator shows the rotating loading text behind a terminal spinner.
type SpinnerIndicator struct {
	mu sync.Mutex
	s  *spinner.Spinner
}

// NewSpinnerIndicator creates an indicator writing to out.
func NewSpinnerIndicator(out io.Writer) *SpinnerIndicator {
	s := spinner.New(spinner.CharSets[11], 100*time.Millisecond, spinner.WithWriter(out))
	return &SpinnerIndicator{s: s}
}

// Start implements flow.LoadingIndicator.
func (l *SpinnerIndicator) Start(text string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.s.Suffix = " " + text
	l.s.Start()
}

// Update implements flow.LoadingIndicator.
func (l *SpinnerIndicator) Update(text string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.s.Lock()
	l.s.Suffix = " " + text
	l.s.Unlock()
}

// Stop implements flow.LoadingIndicator.
func (l *SpinnerIndicator) Stop() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.s.Stop()
}
