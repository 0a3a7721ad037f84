// Package watch implements the two long-running background loops: the inbox
// watcher (filesystem events on both role inboxes) and the token watcher
// (transcript tail feeding the threshold tracker). Both run in the
// foreground or as PID-file daemons with signal-driven cleanup.
package watch

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
)

// PID file and log names inside the task directory.
const (
	InboxPIDFile = ".watcher_pid"
	TokenPIDFile = ".token_watcher_pid"

	WatcherLogFile    = "watcher.log"
	TokenAlertLogFile = "token-alerts.log"
)

// Exit codes distinguishing a clean stop from an unexpected death. A
// silently-dead watcher looks identical to an idle task, so dying loudly is
// part of the contract.
const (
	ExitClean = 0
	ExitFatal = 2
)

// InboxPIDPath returns the inbox watcher PID file for a task.
func InboxPIDPath(taskDir string) string { return filepath.Join(taskDir, InboxPIDFile) }

// TokenPIDPath returns the token watcher PID file for a task.
func TokenPIDPath(taskDir string) string { return filepath.Join(taskDir, TokenPIDFile) }

// LogDir returns the task's log directory.
func LogDir(taskDir string) string { return filepath.Join(taskDir, "logs") }

// Status represents the liveness of a watcher daemon.
type Status string

const (
	// StatusRunning means the PID file exists and the process is alive.
	StatusRunning Status = "running"
	// StatusStopped means no PID file exists.
	StatusStopped Status = "stopped"
	// StatusStale means the PID file exists but the process is dead.
	StatusStale Status = "stale"
)

// WritePIDFile writes the given PID, creating parent directories as needed.
func WritePIDFile(path string, pid int) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create PID dir: %w", err)
	}
	if err := os.WriteFile(path, []byte(strconv.Itoa(pid)), 0o600); err != nil {
		return fmt.Errorf("write PID file %s: %w", path, err)
	}
	return nil
}

// ReadPIDFile reads and parses the PID from the given file.
func ReadPIDFile(path string) (int, error) {
	data, err := os.ReadFile(path) //nolint:gosec // PID file path is controlled by the application
	if err != nil {
		return 0, fmt.Errorf("read PID file %s: %w", path, err)
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, fmt.Errorf("parse PID from %s: %w", path, err)
	}
	return pid, nil
}

// RemovePIDFile removes the PID file. Idempotent: no error when the file is
// already gone.
func RemovePIDFile(path string) error {
	err := os.Remove(path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove PID file %s: %w", path, err)
	}
	return nil
}

// IsProcessAlive checks whether a process with the given PID is running.
// Signal 0 checks existence without actually signaling.
func IsProcessAlive(pid int) bool {
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	return proc.Signal(syscall.Signal(0)) == nil
}

// DaemonStatus checks the watcher PID file and process liveness.
func DaemonStatus(pidPath string) (status Status, pid int, err error) {
	pid, err = ReadPIDFile(pidPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return StatusStopped, 0, nil
		}
		return StatusStopped, 0, fmt.Errorf("watcher status: %w", err)
	}
	if IsProcessAlive(pid) {
		return StatusRunning, pid, nil
	}
	return StatusStale, pid, nil
}

// ReapStale removes a stale PID file. Returns true when a live watcher
// already holds the PID file; starting another is a no-op for the caller.
func ReapStale(pidPath string) (alreadyRunning bool, err error) {
	status, _, err := DaemonStatus(pidPath)
	if err != nil {
		return false, err
	}
	switch status {
	case StatusRunning:
		return true, nil
	case StatusStale:
		if err := RemovePIDFile(pidPath); err != nil {
			return false, err
		}
	}
	return false, nil
}

// StopDaemon reads the PID file and sends SIGTERM to the watcher process.
func StopDaemon(pidPath string) error {
	pid, err := ReadPIDFile(pidPath)
	if err != nil {
		return fmt.Errorf("stop watcher: %w", err)
	}
	proc, err := os.FindProcess(pid)
	if err != nil {
		return fmt.Errorf("find process %d: %w", pid, err)
	}
	if err := proc.Signal(syscall.SIGTERM); err != nil {
		return fmt.Errorf("send SIGTERM to PID %d: %w", pid, err)
	}
	return nil
}

// SetupSignalHandler installs a SIGTERM/SIGINT handler that cancels the
// returned context. The returned cleanup removes the PID file; callers
// should defer it so a signaled watcher exits without leaving a stale PID.
func SetupSignalHandler(parent context.Context, pidPath string) (shutdownCtx context.Context, cleanup func()) {
	ctx, cancel := context.WithCancel(parent)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)

	go func() {
		select {
		case <-sigCh:
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(sigCh)
	}()

	cleanup = func() {
		cancel()
		_ = RemovePIDFile(pidPath)
	}
	return ctx, cleanup
}
