// Package lockfile keeps two BioFlow processes from sharing one state directory.
//
// The lock is an flock(2) on a file inside the state directory, so the kernel
// drops it when the holder exits, cleanly or not.
package lockfile

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"
)

// LockFileName is the lock file used when no profile is given.
const LockFileName = "bioflow.lock"

// FileName returns the lock file name for a profile.
func FileName(profile string) string {
	if profile == "" {
		return LockFileName
	}
	return "bioflow-" + profile + ".lock"
}

// Lock is a held state directory lock.
type Lock struct {
	file    *os.File
	path    string
	profile string
}

// Path returns the lock file path.
func (l *Lock) Path() string { return l.path }

// AcquireLock takes the exclusive lock for profile inside stateDir. If another
// process holds it, the returned *LockError describes that process.
func AcquireLock(stateDir, profile string) (*Lock, error) {
	lockPath := filepath.Join(stateDir, FileName(profile))
	slog.Debug("Lockfile AcquireLock attempting", "lock_path", lockPath, "profile", profile)

	if err := os.MkdirAll(stateDir, 0o755); err != nil {
		slog.Error("Lockfile AcquireLock failed to create state directory", "error", err, "state_dir", stateDir)
		return nil, fmt.Errorf("failed to create state directory %s: %w", stateDir, err)
	}

	// Not truncated on open: a refused caller must still be able to read the holder's info.
	file, err := os.OpenFile(lockPath, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		slog.Error("Lockfile AcquireLock failed to open lock file", "error", err, "lock_path", lockPath)
		return nil, fmt.Errorf("failed to open lock file %s: %w", lockPath, err)
	}

	if err := syscall.Flock(int(file.Fd()), syscall.LOCK_EX|syscall.LOCK_NB); err != nil {
		file.Close()
		holder := describeHolder(lockPath)
		slog.Error("Lockfile AcquireLock state directory in use", "error", err, "lock_path", lockPath, "holder", holder)
		return nil, &LockError{LockPath: lockPath, Holder: holder, Cause: err}
	}

	info := fmt.Sprintf("pid=%d\nprofile=%s\nstarted=%s\n", os.Getpid(), profile, time.Now().UTC().Format(time.RFC3339))
	if err := writeInfo(file, info); err != nil {
		syscall.Flock(int(file.Fd()), syscall.LOCK_UN)
		file.Close()
		slog.Error("Lockfile AcquireLock failed to write holder info", "error", err, "lock_path", lockPath)
		return nil, fmt.Errorf("failed to write lock information to %s: %w", lockPath, err)
	}

	slog.Info("Lockfile AcquireLock acquired", "lock_path", lockPath, "pid", os.Getpid())
	return &Lock{file: file, path: lockPath, profile: profile}, nil
}

func writeInfo(f *os.File, info string) error {
	if err := f.Truncate(0); err != nil {
		return err
	}
	if _, err := f.WriteAt([]byte(info), 0); err != nil {
		return err
	}
	if err := f.Sync(); err != nil {
		slog.Warn("Lockfile writeInfo sync failed", "error", err, "lock_path", f.Name())
	}
	return nil
}

// Release unlocks and removes the lock file. It is safe to call more than once.
func (l *Lock) Release() error {
	if l == nil || l.file == nil {
		return nil
	}
	if err := syscall.Flock(int(l.file.Fd()), syscall.LOCK_UN); err != nil {
		slog.Error("Lockfile Release failed to unlock", "error", err, "lock_path", l.path)
	}
	if err := l.file.Close(); err != nil {
		slog.Error("Lockfile Release failed to close", "error", err, "lock_path", l.path)
	}
	if err := os.Remove(l.path); err != nil && !os.IsNotExist(err) {
		slog.Warn("Lockfile Release failed to remove lock file", "error", err, "lock_path", l.path)
	}
	l.file = nil
	slog.Info("Lockfile Release released", "lock_path", l.path)
	return nil
}

// LockError reports a state directory held by another process.
type LockError struct {
	LockPath string
	Holder   string
	Cause    error
}

func (e *LockError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "another bioflow process is using this state directory (lock file: %s)", e.LockPath)
	if e.Holder != "" {
		fmt.Fprintf(&b, "\nholder: %s", e.Holder)
	}
	fmt.Fprintf(&b, "\nif no other bioflow process is running, remove the stale lock with:\n  rm %s", e.LockPath)
	return b.String()
}

func (e *LockError) Unwrap() error {
	return e.Cause
}

// describeHolder summarises the lock file of the current holder.
func describeHolder(lockPath string) string {
	data, err := os.ReadFile(lockPath)
	if err != nil {
		return "unknown"
	}
	fields := parseInfo(string(data))
	pid, _ := strconv.Atoi(fields["pid"])
	if pid <= 0 {
		return "unknown"
	}
	state := "running"
	if !isProcessRunning(pid) {
		state = "not running, stale lock"
	}
	desc := fmt.Sprintf("PID %d (%s)", pid, state)
	if p := fields["profile"]; p != "" {
		desc += ", profile " + p
	}
	if s := fields["started"]; s != "" {
		desc += ", started " + s
	}
	return desc
}

// parseInfo reads the key=value lines of a lock file.
func parseInfo(content string) map[string]string {
	out := map[string]string{}
	for _, line := range strings.Split(content, "\n") {
		k, v, ok := strings.Cut(strings.TrimSpace(line), "=")
		if !ok || k == "" {
			continue
		}
		out[k] = v
	}
	return out
}

// isProcessRunning sends signal 0 to pid.
func isProcessRunning(pid int) bool {
	process, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	return process.Signal(syscall.Signal(0)) == nil
}
