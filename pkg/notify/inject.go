package notify

import (
	"context"
	"fmt"
	"time"
)

// InboxHint is the fixed follow-up command typed into the peer's session so
// its own tooling performs the actual read. Deliberately conservative: plain
// text, no key sequences that could be read as control characters.
const InboxHint = "You have new courier messages. Run: courier inbox read"

// injectDebounce is the delay between pasting text and pressing Enter, giving
// the agent's TUI time to process the pasted input.
const injectDebounce = 500 * time.Millisecond

// SessionInjector types a short command into a live interactive agent
// session. Injection is advisory and racy by contract: it assumes the target
// session is idle, and its only guarantee is to do nothing harmful when that
// assumption is wrong.
type SessionInjector interface {
	Inject(ctx context.Context, text string) error
	Available() bool
}

// NewInjector returns the SessionInjector for the named agent tool. Unknown
// tools get a no-op injector rather than a runtime dispatch miss.
func NewInjector(agent, paneTarget string, runner CmdRunner) SessionInjector {
	switch agent {
	case "claude":
		return &ClaudeInjector{Target: paneTarget, Runner: runner}
	}
	return NoopInjector{}
}

// ClaudeInjector injects text into a Claude Code pane via tmux set-buffer
// and paste-buffer. Pasting treats the message as completely literal text,
// so nothing in it can be interpreted as a key binding.
type ClaudeInjector struct {
	Target string // tmux pane target, e.g. "task:worker"
	Runner CmdRunner
	Sleep  func(time.Duration) // overridable for tests
}

// Available reports whether the target pane exists.
func (i *ClaudeInjector) Available() bool {
	if _, err := defaultLookPath("tmux"); err != nil {
		return false
	}
	_, err := i.Runner.Run(context.Background(), "tmux", "has-session", "-t", i.Target)
	return err == nil
}

// Inject pastes the text into the target pane and presses Enter.
func (i *ClaudeInjector) Inject(ctx context.Context, text string) error {
	text = sanitizeForTmux(text)

	if _, err := i.Runner.Run(ctx, "tmux", "set-buffer", "-b", "courier-hint", text); err != nil {
		return fmt.Errorf("tmux set-buffer: %w", err)
	}
	if _, err := i.Runner.Run(ctx, "tmux", "paste-buffer", "-b", "courier-hint", "-t", i.Target, "-d"); err != nil {
		return fmt.Errorf("tmux paste-buffer to %s: %w", i.Target, err)
	}

	// Give the TUI's render loop time to see the pasted text before Enter.
	i.sleep(injectDebounce)

	if _, err := i.Runner.Run(ctx, "tmux", "send-keys", "-t", i.Target, "Enter"); err != nil {
		return fmt.Errorf("tmux send-keys Enter to %s: %w", i.Target, err)
	}
	return nil
}

func (i *ClaudeInjector) sleep(d time.Duration) {
	if i.Sleep != nil {
		i.Sleep(d)
		return
	}
	time.Sleep(d)
}

// NoopInjector is used when the peer's agent tool is unknown: injection
// silently does nothing instead of guessing at key sequences.
type NoopInjector struct{}

// Inject does nothing.
func (NoopInjector) Inject(context.Context, string) error { return nil }

// Available always reports false.
func (NoopInjector) Available() bool { return false }
