package notify

import (
	"context"
	"fmt"

	"courier/internal/logger"
	"courier/pkg/comms"
)

// Alerter is the OS-notification channel: a popup with optional sound.
type Alerter interface {
	Alert(ctx context.Context, title, body string, sound bool) error
	Available() bool
}

// Terminal is the terminal-multiplexer channel: transient status-line
// messages and blocking modal popups.
type Terminal interface {
	Status(ctx context.Context, msg string) error
	Popup(ctx context.Context, title, body string) error
	Available() bool
}

// Router inspects a message's priority and kind and fans out to the
// notification channels. Channel failures are logged and swallowed: a failed
// notification must never stop future messages from being delivered.
type Router struct {
	OS   Alerter
	Term Terminal
	Log  logger.Logger

	// AlwaysUrgent holds kinds promoted to urgent regardless of their
	// declared priority. Default policy: the blocker kind.
	AlwaysUrgent map[comms.Kind]bool
}

// NewRouter creates a Router with the default promotion policy.
func NewRouter(osChannel Alerter, term Terminal, log logger.Logger) *Router {
	if log == nil {
		log = logger.Nop()
	}
	return &Router{
		OS:   osChannel,
		Term: term,
		Log:  log,
		AlwaysUrgent: map[comms.Kind]bool{
			comms.KindBlocker: true,
		},
	}
}

// RouteMessage classifies a message and dispatches it, applying the
// kind-promotion policy first.
func (r *Router) RouteMessage(ctx context.Context, msg comms.Message) {
	priority := msg.Priority
	if r.AlwaysUrgent[msg.Kind] {
		priority = comms.PriorityUrgent
	}
	r.Route(ctx, priority, FormatTitle(msg.Kind, msg.From), msg.Body, msg.SourceFile)
}

// Route dispatches by priority:
//
//	urgent -> OS alert with sound AND blocking modal popup
//	normal -> OS alert AND transient status message
//	low    -> transient status message only
func (r *Router) Route(ctx context.Context, priority comms.Priority, title, body, sourceFile string) {
	log := r.Log.With("priority", priority, "title", title)
	if sourceFile != "" {
		log = log.With("source", sourceFile)
	}

	switch priority {
	case comms.PriorityUrgent:
		r.alert(ctx, log, title, body, true)
		r.popup(ctx, log, title, body)
	case comms.PriorityLow:
		r.status(ctx, log, title, body)
	default:
		r.alert(ctx, log, title, body, false)
		r.status(ctx, log, title, body)
	}
}

func (r *Router) alert(ctx context.Context, log logger.Logger, title, body string, sound bool) {
	if r.OS == nil || !r.OS.Available() {
		log.Debug("os notification channel unavailable")
		return
	}
	if err := r.OS.Alert(ctx, title, body, sound); err != nil {
		log.Warn("os notification failed", "error", err)
	}
}

func (r *Router) popup(ctx context.Context, log logger.Logger, title, body string) {
	if r.Term == nil || !r.Term.Available() {
		log.Debug("terminal channel unavailable")
		return
	}
	if err := r.Term.Popup(ctx, title, body); err != nil {
		log.Warn("terminal popup failed", "error", err)
	}
}

func (r *Router) status(ctx context.Context, log logger.Logger, title, body string) {
	if r.Term == nil || !r.Term.Available() {
		log.Debug("terminal channel unavailable")
		return
	}
	msg := title
	if body != "" {
		msg = title + ": " + firstLine(body)
	}
	if err := r.Term.Status(ctx, msg); err != nil {
		log.Warn("terminal status failed", "error", err)
	}
}

// kindLabels maps each kind to its human-readable label.
var kindLabels = map[comms.Kind]string{ //nolint:gochecknoglobals // fixed display table
	comms.KindBlocker:       "Blocker",
	comms.KindProgress:      "Progress update",
	comms.KindReviewRequest: "Review request",
	comms.KindDirective:     "Directive",
	comms.KindGuidance:      "Guidance",
	comms.KindStop:          "Stop order",
}

// kindIcons maps each kind to a display icon.
var kindIcons = map[comms.Kind]string{ //nolint:gochecknoglobals // fixed display table
	comms.KindBlocker:       "🚧",
	comms.KindProgress:      "📈",
	comms.KindReviewRequest: "👀",
	comms.KindDirective:     "🧭",
	comms.KindGuidance:      "💡",
	comms.KindStop:          "🛑",
}

// FormatTitle renders a notification title for the given kind and sender.
// Unrecognized kinds get a generic label so forward-compatible message kinds
// degrade gracefully instead of erroring.
func FormatTitle(kind comms.Kind, from comms.Role) string {
	label, ok := kindLabels[kind]
	if !ok {
		label = "Message"
	}
	return fmt.Sprintf("%s %s from %s", FormatIcon(kind), label, from)
}

// FormatIcon returns the display icon for a kind, with a generic fallback.
func FormatIcon(kind comms.Kind) string {
	if icon, ok := kindIcons[kind]; ok {
		return icon
	}
	return "📨"
}

// firstLine truncates a body to its first line for status-line display.
func firstLine(s string) string {
	for i, r := range s {
		if r == '\n' {
			return s[:i]
		}
	}
	return s
}
