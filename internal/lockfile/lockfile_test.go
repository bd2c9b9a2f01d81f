package lockfile

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestFileName(t *testing.T) {
	tests := []struct {
		profile string
		want    string
	}{
		{"", "bioflow.lock"},
		{"work", "bioflow-work.lock"},
	}
	for _, tt := range tests {
		if got := FileName(tt.profile); got != tt.want {
			t.Errorf("FileName(%q) = %q, want %q", tt.profile, got, tt.want)
		}
	}
}

func TestLockAcquisition(t *testing.T) {
	dir := t.TempDir()

	lock, err := AcquireLock(dir, "")
	if err != nil {
		t.Fatalf("Failed to acquire lock: %v", err)
	}
	defer lock.Release()

	if lock.Path() != filepath.Join(dir, LockFileName) {
		t.Errorf("Path() = %q", lock.Path())
	}
	content, err := os.ReadFile(lock.Path())
	if err != nil {
		t.Fatalf("Failed to read lock file: %v", err)
	}
	fields := parseInfo(string(content))
	if fields["pid"] != fmt.Sprintf("%d", os.Getpid()) {
		t.Errorf("pid = %q, want %d", fields["pid"], os.Getpid())
	}
	if fields["started"] == "" {
		t.Errorf("started missing from lock file: %q", content)
	}
}

func TestLockConflict(t *testing.T) {
	dir := t.TempDir()

	lock1, err := AcquireLock(dir, "home")
	if err != nil {
		t.Fatalf("Failed to acquire first lock: %v", err)
	}
	defer lock1.Release()

	lock2, err := AcquireLock(dir, "home")
	if err == nil {
		lock2.Release()
		t.Fatalf("Second lock acquisition should have failed")
	}

	var lockErr *LockError
	if !errors.As(err, &lockErr) {
		t.Fatalf("Expected LockError, got: %T", err)
	}
	if !strings.Contains(lockErr.Holder, fmt.Sprintf("PID %d (running)", os.Getpid())) {
		t.Errorf("Holder = %q", lockErr.Holder)
	}
	if !strings.Contains(lockErr.Holder, "profile home") {
		t.Errorf("Holder should name the profile: %q", lockErr.Holder)
	}
	msg := err.Error()
	if !strings.Contains(msg, "another bioflow process") || !strings.Contains(msg, dir) {
		t.Errorf("unhelpful error message: %s", msg)
	}

	// A different profile in the same directory is independent.
	other, err := AcquireLock(dir, "other")
	if err != nil {
		t.Fatalf("other profile should lock independently: %v", err)
	}
	other.Release()
}

func TestLockReleaseAndReacquire(t *testing.T) {
	dir := t.TempDir()

	lock, err := AcquireLock(dir, "")
	if err != nil {
		t.Fatalf("Failed to acquire lock: %v", err)
	}
	path := lock.Path()
	if err := lock.Release(); err != nil {
		t.Errorf("Release: %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Errorf("lock file should be removed after release")
	}
	if err := lock.Release(); err != nil {
		t.Errorf("second Release should be a no-op: %v", err)
	}

	again, err := AcquireLock(dir, "")
	if err != nil {
		t.Fatalf("Failed to reacquire lock after release: %v", err)
	}
	again.Release()
}

func TestAcquireCreatesDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "state")

	lock, err := AcquireLock(dir, "")
	if err != nil {
		t.Fatalf("Should create directory and acquire lock: %v", err)
	}
	defer lock.Release()

	if _, err := os.Stat(dir); err != nil {
		t.Errorf("directory should have been created: %v", err)
	}
}

func TestParseInfo(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantPID string
	}{
		{"full", "pid=12345\nprofile=x\nstarted=2024-01-01T00:00:00Z\n", "12345"},
		{"pid only", "pid=67890", "67890"},
		{"no pid", "other=info", ""},
		{"empty", "", ""},
		{"no equals", "pid12345", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := parseInfo(tt.content)["pid"]; got != tt.wantPID {
				t.Errorf("pid = %q, want %q", got, tt.wantPID)
			}
		})
	}
}

func TestIsProcessRunning(t *testing.T) {
	if !isProcessRunning(os.Getpid()) {
		t.Errorf("own process should be detected as running")
	}
}
