// Package notify routes inbox messages and threshold alerts to the
// notification channels: OS popups, tmux status/popup primitives, and
// best-effort injection into a peer's live agent session. Every channel sits
// behind a capability check and degrades to a no-op when its underlying tool
// is absent.
package notify

import (
	"context"
	"os/exec"
	"strings"
)

// CmdRunner abstracts command execution for testability.
type CmdRunner interface {
	Run(ctx context.Context, name string, args ...string) (string, error)
}

// ExecRunner implements CmdRunner using os/exec.
type ExecRunner struct{}

// Run executes a command and returns its combined output.
func (e *ExecRunner) Run(ctx context.Context, name string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	out, err := cmd.CombinedOutput()
	return strings.TrimSpace(string(out)), err
}

// lookPathFunc matches exec.LookPath. Channels hold one as a field so tests
// can simulate a missing tool.
type lookPathFunc func(file string) (string, error)

// defaultLookPath is the production lookPathFunc.
func defaultLookPath(file string) (string, error) {
	return exec.LookPath(file)
}
