package comms

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// messageExt is the file extension for message files.
const messageExt = ".md"

// filenameStamp is the UTC timestamp portion of a message filename. Lexical
// sort order of the full filename equals creation order.
const filenameStamp = "20060102-150405"

// maxSeqPerSecond bounds the per-second sequence suffix. Bursts beyond this
// within a single second fail rather than overwrite.
const maxSeqPerSecond = 999

// Store owns the on-disk message representation under one task directory:
// the inbox/outbox tree, the filename ordering scheme, and the archive.
type Store struct {
	taskDir string
	now     func() time.Time // overridable for tests
}

// NewStore creates a Store rooted at the given task directory.
func NewStore(taskDir string) *Store {
	return &Store{taskDir: taskDir, now: time.Now}
}

// CommsDir returns the root of the comms tree for this task.
func (s *Store) CommsDir() string {
	return filepath.Join(s.taskDir, "comms")
}

// InboxDir returns the inbox directory for the given role.
func (s *Store) InboxDir(role Role) string {
	return filepath.Join(s.CommsDir(), string(role), "inbox")
}

// OutboxDir returns the outbox directory for the given role.
func (s *Store) OutboxDir(role Role) string {
	return filepath.Join(s.CommsDir(), string(role), "outbox")
}

// ArchiveDir returns the shared append-only archive directory.
func (s *Store) ArchiveDir() string {
	return filepath.Join(s.CommsDir(), "archive")
}

// EnsureDirs creates the full comms tree. Idempotent: never errors when the
// directories already exist.
func (s *Store) EnsureDirs() error {
	dirs := []string{
		s.InboxDir(RoleOrchestrator),
		s.OutboxDir(RoleOrchestrator),
		s.InboxDir(RoleWorker),
		s.OutboxDir(RoleWorker),
		s.ArchiveDir(),
	}
	for _, d := range dirs {
		if err := os.MkdirAll(d, 0o755); err != nil {
			return fmt.Errorf("create comms dir %s: %w", d, err)
		}
	}
	return nil
}

// Write validates the message kind against the sender's allowed set, then
// writes it into the recipient's inbox under the next collision-free
// filename. It returns the filename so callers can log and trace it.
func (s *Store) Write(from, to Role, kind Kind, body string, priority Priority) (string, error) {
	if !KindAllowed(from, kind) {
		return "", &InvalidKindError{Role: from, Kind: kind}
	}
	if priority == "" {
		priority = PriorityNormal
	}

	inbox := s.InboxDir(to)
	if err := os.MkdirAll(inbox, 0o755); err != nil {
		return "", fmt.Errorf("create inbox %s: %w", inbox, err)
	}

	now := s.now().UTC()
	msg := Message{
		Kind:      kind,
		From:      from,
		Priority:  priority,
		CreatedAt: now,
		Body:      body,
	}

	// O_EXCL creation guarantees uniqueness even when concurrent senders
	// land on the same second: losers bump the sequence and retry.
	stamp := now.Format(filenameStamp)
	seq := s.nextSeq(inbox, stamp)
	for ; seq <= maxSeqPerSecond; seq++ {
		name := fmt.Sprintf("%s-%03d%s", stamp, seq, messageExt)
		path := filepath.Join(inbox, name)
		f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644) //nolint:gosec // path derived from task dir
		if errors.Is(err, os.ErrExist) {
			continue
		}
		if err != nil {
			return "", fmt.Errorf("create message %s: %w", path, err)
		}
		if _, err := f.Write(msg.Encode()); err != nil {
			_ = f.Close()
			return "", fmt.Errorf("write message %s: %w", path, err)
		}
		if err := f.Close(); err != nil {
			return "", fmt.Errorf("close message %s: %w", path, err)
		}
		return name, nil
	}
	return "", fmt.Errorf("message burst exhausted sequence space for second %s", stamp)
}

// nextSeq scans the inbox for entries from the same second and returns the
// next free sequence number.
func (s *Store) nextSeq(inbox, stamp string) int {
	entries, err := os.ReadDir(inbox)
	if err != nil {
		return 1
	}
	next := 1
	for _, e := range entries {
		name := e.Name()
		if !strings.HasPrefix(name, stamp+"-") || !strings.HasSuffix(name, messageExt) {
			continue
		}
		var n int
		suffix := strings.TrimSuffix(strings.TrimPrefix(name, stamp+"-"), messageExt)
		if _, err := fmt.Sscanf(suffix, "%d", &n); err == nil && n >= next {
			next = n + 1
		}
	}
	return next
}

// Handle identifies a single non-archived message in an inbox.
type Handle struct {
	Name string // filename within the inbox
	Path string // absolute path, the message's identity while in the inbox
}

// List returns all non-archived message files in the role's inbox, sorted by
// filename. Filename order is creation order. An empty or missing inbox
// yields an empty slice, not an error.
func (s *Store) List(role Role) ([]Handle, error) {
	inbox := s.InboxDir(role)
	entries, err := os.ReadDir(inbox)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("list inbox %s: %w", inbox, err)
	}

	var handles []Handle
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), messageExt) {
			continue
		}
		handles = append(handles, Handle{
			Name: e.Name(),
			Path: filepath.Join(inbox, e.Name()),
		})
	}
	sort.Slice(handles, func(i, j int) bool { return handles[i].Name < handles[j].Name })
	return handles, nil
}

// Read lists the role's inbox and parses every message, in creation order.
func (s *Store) Read(role Role) ([]Message, error) {
	handles, err := s.List(role)
	if err != nil {
		return nil, err
	}
	msgs := make([]Message, 0, len(handles))
	for _, h := range handles {
		data, err := os.ReadFile(h.Path) //nolint:gosec // path from controlled inbox listing
		if errors.Is(err, os.ErrNotExist) {
			// Consumed by a concurrent archive between List and Read: benign.
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("read message %s: %w", h.Path, err)
		}
		msg, err := ParseMessage(h.Path, data)
		if err != nil {
			return nil, err
		}
		msgs = append(msgs, msg)
	}
	return msgs, nil
}

// Archive moves the named file from the role's inbox into the archive
// directory, prepending an archival timestamp to the original name for
// traceability. Archiving twice returns NotFoundError on the second call;
// callers treat that as a no-op, not a failure.
func (s *Store) Archive(role Role, filename string) error {
	src := filepath.Join(s.InboxDir(role), filepath.Base(filename))
	if _, err := os.Stat(src); errors.Is(err, os.ErrNotExist) {
		return &NotFoundError{Role: role, Filename: filename}
	} else if err != nil {
		return fmt.Errorf("stat message %s: %w", src, err)
	}

	if err := os.MkdirAll(s.ArchiveDir(), 0o755); err != nil {
		return fmt.Errorf("create archive dir: %w", err)
	}

	stamp := s.now().UTC().Format(filenameStamp)
	dst := filepath.Join(s.ArchiveDir(), stamp+"-"+filepath.Base(filename))
	if err := os.Rename(src, dst); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &NotFoundError{Role: role, Filename: filename}
		}
		return fmt.Errorf("archive message %s: %w", src, err)
	}
	return nil
}
