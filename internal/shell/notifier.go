// Package shell renders BioFlow state for the terminal: toasts, loading
// phases, tool results, calendars and machine-readable output.
package shell

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/BTreeMap/BioFlow/internal/models"
	"github.com/fatih/color"
	"github.com/google/uuid"
)

// ToastRetention is how long a toast stays in the recent list.
const ToastRetention = 3 * time.Second

// Notifier prints coloured toasts and keeps the ones shown in the last
// ToastRetention for the dashboard.
type Notifier struct {
	mu     sync.Mutex
	out    io.Writer
	now    func() time.Time
	toasts []models.Toast
}

// NewNotifier creates a notifier writing to out. A nil out records toasts
// without printing them.
func NewNotifier(out io.Writer) *Notifier {
	return &Notifier{out: out, now: time.Now}
}

// Notify implements flow.Notifier.
func (n *Notifier) Notify(kind models.ToastKind, message string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	toast := models.Toast{
		ID:        uuid.NewString(),
		Kind:      kind,
		Message:   message,
		CreatedAt: n.now(),
	}
	n.pruneLocked()
	n.toasts = append(n.toasts, toast)
	if n.out != nil {
		fmt.Fprintln(n.out, FormatToast(toast))
	}
}

// Recent returns the toasts that have not yet expired, oldest first.
func (n *Notifier) Recent() []models.Toast {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.pruneLocked()
	return append([]models.Toast{}, n.toasts...)
}

func (n *Notifier) pruneLocked() {
	cutoff := n.now().Add(-ToastRetention)
	kept := n.toasts[:0]
	for _, t := range n.toasts {
		if t.CreatedAt.After(cutoff) {
			kept = append(kept, t)
		}
	}
	n.toasts = kept
}

// FormatToast renders a toast as one coloured line.
func FormatToast(t models.Toast) string {
	if t.Kind == models.ToastError {
		return color.RedString("✖ %s", t.Message)
	}
	return color.GreenString("✔ %s", t.Message)
}
