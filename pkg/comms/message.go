// Package comms implements the file-backed message queue that connects the
// orchestrator and worker roles. Messages are individual files in per-role
// inbox directories; creating a new uniquely-named file and renaming it into
// the archive are the only mutations, so concurrent senders and readers need
// no locking discipline.
package comms

import (
	"bufio"
	"fmt"
	"strings"
	"time"
)

// Role identifies one of the two fixed participants.
type Role string

// Role constants.
const (
	RoleOrchestrator Role = "orchestrator"
	RoleWorker       Role = "worker"
)

// ParseRole converts a string to a Role.
func ParseRole(s string) (Role, error) {
	switch Role(s) {
	case RoleOrchestrator, RoleWorker:
		return Role(s), nil
	}
	return "", fmt.Errorf("unknown role %q (want %q or %q)", s, RoleOrchestrator, RoleWorker)
}

// Peer returns the opposite role.
func (r Role) Peer() Role {
	if r == RoleOrchestrator {
		return RoleWorker
	}
	return RoleOrchestrator
}

// Kind is the semantic type of a message, restricted per sending role.
type Kind string

// Kind constants, partitioned by sender role.
const (
	// Worker-originated kinds.
	KindBlocker       Kind = "blocker"
	KindProgress      Kind = "progress"
	KindReviewRequest Kind = "review-request"

	// Orchestrator-originated kinds.
	KindDirective Kind = "directive"
	KindGuidance  Kind = "guidance"
	KindStop      Kind = "stop"
)

// allowedKinds maps each role to the kinds it may send.
var allowedKinds = map[Role][]Kind{ //nolint:gochecknoglobals // fixed policy table
	RoleWorker:       {KindBlocker, KindProgress, KindReviewRequest},
	RoleOrchestrator: {KindDirective, KindGuidance, KindStop},
}

// AllowedKinds returns the kinds the given role may send.
func AllowedKinds(role Role) []Kind {
	return allowedKinds[role]
}

// KindAllowed reports whether the role may send messages of the given kind.
func KindAllowed(role Role, kind Kind) bool {
	for _, k := range allowedKinds[role] {
		if k == kind {
			return true
		}
	}
	return false
}

// Priority is the declared urgency of a message.
type Priority string

// Priority constants.
const (
	PriorityUrgent Priority = "urgent"
	PriorityNormal Priority = "normal"
	PriorityLow    Priority = "low"
)

// ParsePriority converts a string to a Priority. Empty input defaults to
// normal; anything else unrecognized is an error.
func ParsePriority(s string) (Priority, error) {
	switch Priority(s) {
	case "":
		return PriorityNormal, nil
	case PriorityUrgent, PriorityNormal, PriorityLow:
		return Priority(s), nil
	}
	return "", fmt.Errorf("unknown priority %q (want urgent, normal, or low)", s)
}

// timeLayout is the header timestamp format (UTC, second resolution).
const timeLayout = "2006-01-02 15:04:05"

// Message is the unit of communication between the two roles.
type Message struct {
	Kind      Kind
	From      Role
	Priority  Priority
	CreatedAt time.Time
	Body      string

	// SourceFile is the message's identity: its absolute path at the moment
	// it was read. Archiving moves the file and deliberately changes identity.
	SourceFile string
}

// Encode renders the message in its on-disk format: a header block with
// Type, From, Priority, and Time fields, a blank line, then the body.
func (m Message) Encode() []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "Type: %s\n", m.Kind)
	fmt.Fprintf(&b, "From: %s\n", m.From)
	fmt.Fprintf(&b, "Priority: %s\n", m.Priority)
	fmt.Fprintf(&b, "Time: %s\n", m.CreatedAt.UTC().Format(timeLayout))
	b.WriteString("\n")
	b.WriteString(m.Body)
	return []byte(b.String())
}

// ParseMessage decodes a message from its on-disk representation. Missing
// Priority defaults to normal, and unrecognized header lines are skipped so
// that files written by newer versions still parse.
func ParseMessage(sourceFile string, data []byte) (Message, error) {
	msg := Message{
		Priority:   PriorityNormal,
		SourceFile: sourceFile,
	}

	scanner := bufio.NewScanner(strings.NewReader(string(data)))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	inBody := false
	var body []string
	for scanner.Scan() {
		line := scanner.Text()
		if inBody {
			body = append(body, line)
			continue
		}
		if strings.TrimSpace(line) == "" {
			// Blank line ends the header block.
			inBody = true
			continue
		}

		key, value, found := strings.Cut(line, ":")
		if !found {
			// Malformed header line: tolerate and skip.
			continue
		}
		value = strings.TrimSpace(value)
		switch strings.TrimSpace(key) {
		case "Type":
			msg.Kind = Kind(value)
		case "From":
			msg.From = Role(value)
		case "Priority":
			if p, err := ParsePriority(value); err == nil {
				msg.Priority = p
			}
		case "Time":
			if t, err := time.ParseInLocation(timeLayout, value, time.UTC); err == nil {
				msg.CreatedAt = t
			}
		default:
			// Unknown header field: skip for forward compatibility.
		}
	}
	if err := scanner.Err(); err != nil {
		return Message{}, fmt.Errorf("parse message %s: %w", sourceFile, err)
	}

	msg.Body = strings.Join(body, "\n")
	if msg.Kind == "" {
		return Message{}, fmt.Errorf("parse message %s: missing Type header", sourceFile)
	}
	return msg, nil
}
