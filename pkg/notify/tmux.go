package notify

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
)

// popupMinVersion is the first tmux release with display-popup.
const popupMinVersion = 3.2

// popupFallbackMillis is how long the degraded status-line message lingers
// when display-popup is unavailable.
const popupFallbackMillis = 5000

// TmuxClient drives a tmux session's status line and modal popups. All
// operations no-op when tmux or the target session is absent.
type TmuxClient struct {
	Session  string
	Runner   CmdRunner
	LookPath lookPathFunc // defaults to exec.LookPath

	versionOnce sync.Once
	version     float64
}

// NewTmuxClient creates a TmuxClient for the named session.
func NewTmuxClient(session string) *TmuxClient {
	return &TmuxClient{Session: session, Runner: &ExecRunner{}}
}

// Available reports whether tmux exists and the target session is running.
func (c *TmuxClient) Available() bool {
	look := c.LookPath
	if look == nil {
		look = defaultLookPath
	}
	if _, err := look("tmux"); err != nil {
		return false
	}
	_, err := c.Runner.Run(context.Background(), "tmux", "has-session", "-t", c.Session)
	return err == nil
}

// Status shows a transient status-line message to every client attached to
// the session. With no attached clients the message is dropped silently;
// status text is advisory by contract.
func (c *TmuxClient) Status(ctx context.Context, msg string) error {
	msg = sanitizeForTmux(msg)

	out, err := c.Runner.Run(ctx, "tmux", "list-clients", "-t", c.Session, "-F", "#{client_name}")
	if err != nil || strings.TrimSpace(out) == "" {
		// No client list available: let tmux pick the active client.
		if _, err := c.Runner.Run(ctx, "tmux", "display-message", "-t", c.Session, msg); err != nil {
			return fmt.Errorf("tmux display-message: %w", err)
		}
		return nil
	}

	for _, client := range strings.Split(strings.TrimSpace(out), "\n") {
		client = strings.TrimSpace(client)
		if client == "" {
			continue
		}
		if _, err := c.Runner.Run(ctx, "tmux", "display-message", "-c", client, msg); err != nil {
			return fmt.Errorf("tmux display-message to %s: %w", client, err)
		}
	}
	return nil
}

// Popup opens a blocking modal overlay that stays up until a keypress. On
// tmux releases without display-popup it degrades to a longer-lived status
// message instead of failing.
func (c *TmuxClient) Popup(ctx context.Context, title, body string) error {
	if c.tmuxVersion(ctx) < popupMinVersion {
		return c.longStatus(ctx, title+": "+sanitizeForTmux(body))
	}

	// The popup runs a shell that prints the message and waits for one key.
	script := fmt.Sprintf("printf '%%s\\n\\n%%s\\n' %s %s; read -r _",
		shellQuote(title), shellQuote(body))
	_, err := c.Runner.Run(ctx, "tmux", "display-popup", "-t", c.Session, "-T", title, "-E", "sh", "-c", script)
	if err != nil {
		return fmt.Errorf("tmux display-popup: %w", err)
	}
	return nil
}

// longStatus raises display-time before showing the message so the degraded
// popup stays readable, then restores the default.
func (c *TmuxClient) longStatus(ctx context.Context, msg string) error {
	_, _ = c.Runner.Run(ctx, "tmux", "set-option", "-t", c.Session, "display-time", strconv.Itoa(popupFallbackMillis))
	defer func() {
		_, _ = c.Runner.Run(ctx, "tmux", "set-option", "-u", "-t", c.Session, "display-time")
	}()
	return c.Status(ctx, msg)
}

// tmuxVersion probes `tmux -V` once and caches the numeric version.
// Unparseable output is treated as modern tmux.
func (c *TmuxClient) tmuxVersion(ctx context.Context) float64 {
	c.versionOnce.Do(func() {
		c.version = popupMinVersion
		out, err := c.Runner.Run(ctx, "tmux", "-V")
		if err != nil {
			return
		}
		// Output looks like "tmux 3.4" or "tmux 3.3a".
		fields := strings.Fields(out)
		if len(fields) < 2 {
			return
		}
		raw := strings.TrimRight(fields[1], "abcdefghijklmnopqrstuvwxyz")
		if v, err := strconv.ParseFloat(raw, 64); err == nil {
			c.version = v
		}
	})
	return c.version
}

// sanitizeForTmux strips newlines so a message cannot span status lines.
func sanitizeForTmux(msg string) string {
	msg = strings.ReplaceAll(msg, "\n", " ")
	msg = strings.ReplaceAll(msg, "\r", " ")
	return msg
}

// shellQuote wraps s in single quotes, escaping embedded single quotes.
func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
