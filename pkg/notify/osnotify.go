package notify

import (
	"context"
	"fmt"
	"runtime"
	"strings"
	"sync"
)

// defaultSound is the notification sound used for urgent alerts on macOS.
const defaultSound = "Glass"

// OSNotifier posts desktop notifications via osascript on macOS and
// notify-send on Linux. When neither tool is present the channel reports
// itself unavailable and every call is a no-op.
type OSNotifier struct {
	Runner   CmdRunner
	GOOS     string       // defaults to runtime.GOOS
	LookPath lookPathFunc // defaults to exec.LookPath

	once      sync.Once
	tool      string
	available bool
}

// NewOSNotifier creates an OSNotifier with the default runner.
func NewOSNotifier() *OSNotifier {
	return &OSNotifier{Runner: &ExecRunner{}}
}

// Available reports whether a notification tool exists on this platform.
// The probe runs once and is cached.
func (n *OSNotifier) Available() bool {
	n.once.Do(n.probe)
	return n.available
}

func (n *OSNotifier) probe() {
	goos := n.GOOS
	if goos == "" {
		goos = runtime.GOOS
	}
	look := n.LookPath
	if look == nil {
		look = defaultLookPath
	}

	switch goos {
	case "darwin":
		if _, err := look("osascript"); err == nil {
			n.tool = "osascript"
			n.available = true
		}
	default:
		if _, err := look("notify-send"); err == nil {
			n.tool = "notify-send"
			n.available = true
		}
	}
}

// Alert posts a desktop notification. Sound is best-effort and only
// supported where the underlying tool supports it.
func (n *OSNotifier) Alert(ctx context.Context, title, body string, sound bool) error {
	if !n.Available() {
		return nil
	}

	switch n.tool {
	case "osascript":
		script := fmt.Sprintf("display notification %s with title %s",
			appleScriptString(body), appleScriptString(title))
		if sound {
			script += fmt.Sprintf(" sound name %s", appleScriptString(defaultSound))
		}
		if _, err := n.Runner.Run(ctx, "osascript", "-e", script); err != nil {
			return fmt.Errorf("osascript notification: %w", err)
		}
	case "notify-send":
		urgency := "normal"
		if sound {
			// notify-send has no sound of its own; critical urgency is the
			// closest attention-grabbing equivalent.
			urgency = "critical"
		}
		if _, err := n.Runner.Run(ctx, "notify-send", "-u", urgency, title, body); err != nil {
			return fmt.Errorf("notify-send: %w", err)
		}
	}
	return nil
}

// appleScriptString quotes a Go string as an AppleScript string literal.
func appleScriptString(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `"`, `\"`)
	return `"` + s + `"`
}
