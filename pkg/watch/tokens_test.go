package watch

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"courier/pkg/comms"
	"courier/pkg/threshold"
)

// usageLine fabricates an assistant transcript line totaling the given tokens.
func usageLine(tokens int) []byte {
	return fmt.Appendf(nil,
		`{"type":"assistant","message":{"usage":{"input_tokens":%d,"cache_creation_input_tokens":0,"cache_read_input_tokens":0,"output_tokens":0}}}`,
		tokens)
}

func newTestTokenWatcher(t *testing.T) (*TokenWatcher, string) {
	t.Helper()
	taskDir := t.TempDir()
	transcript := filepath.Join(taskDir, "transcript.jsonl")
	w := NewTokenWatcher(taskDir, transcript, 1000, nil)
	if err := w.Queue.Store().EnsureDirs(); err != nil {
		t.Fatalf("EnsureDirs failed: %v", err)
	}
	if err := w.Tracker.StartIteration("iter-1"); err != nil {
		t.Fatalf("StartIteration failed: %v", err)
	}
	return w, taskDir
}

func orchestratorMessages(t *testing.T, w *TokenWatcher) []comms.Message {
	t.Helper()
	msgs, err := w.Queue.Read(comms.RoleOrchestrator)
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	return msgs
}

func TestTokenWatcherAlertsOnNewStages(t *testing.T) {
	w, _ := newTestTokenWatcher(t)

	// Below every cut point: no message.
	w.handleLine(usageLine(100))
	if got := orchestratorMessages(t, w); len(got) != 0 {
		t.Fatalf("messages below threshold = %d, want 0", len(got))
	}

	// 35% crosses info: progress message at normal priority.
	w.handleLine(usageLine(350))
	msgs := orchestratorMessages(t, w)
	if len(msgs) != 1 {
		t.Fatalf("messages after info stage = %d, want 1", len(msgs))
	}
	if msgs[0].Kind != comms.KindProgress || msgs[0].From != comms.RoleWorker {
		t.Errorf("alert = %s from %s, want progress from worker", msgs[0].Kind, msgs[0].From)
	}
	if !strings.Contains(msgs[0].Body, "35.0%") {
		t.Errorf("alert body = %q, want usage percentage", msgs[0].Body)
	}

	// Same stage again: no duplicate alert.
	w.handleLine(usageLine(360))
	if got := orchestratorMessages(t, w); len(got) != 1 {
		t.Fatalf("messages after repeat of info stage = %d, want 1", len(got))
	}

	// Drop below info then jump to critical: exactly one more alert, and it
	// rides the blocker kind.
	w.handleLine(usageLine(200))
	w.handleLine(usageLine(650))
	msgs = orchestratorMessages(t, w)
	if len(msgs) != 2 {
		t.Fatalf("messages after critical stage = %d, want 2", len(msgs))
	}
	if msgs[1].Kind != comms.KindBlocker {
		t.Errorf("critical alert kind = %s, want blocker", msgs[1].Kind)
	}
}

func TestTokenWatcherWritesAuditLog(t *testing.T) {
	w, taskDir := newTestTokenWatcher(t)

	w.handleLine(usageLine(350))
	w.handleLine(usageLine(550))

	data, err := os.ReadFile(filepath.Join(LogDir(taskDir), TokenAlertLogFile))
	if err != nil {
		t.Fatalf("read audit log: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 2 {
		t.Fatalf("audit lines = %d, want 2:\n%s", len(lines), data)
	}
	if !strings.Contains(lines[0], "level=info") || !strings.Contains(lines[1], "level=warning") {
		t.Errorf("audit lines missing levels:\n%s", data)
	}
	for _, line := range lines {
		if !strings.Contains(line, "alert=") || !strings.Contains(line, "sent ") {
			t.Errorf("audit line missing id or outcome: %q", line)
		}
	}
}

func TestTokenWatcherResumesFromPersistedRatchet(t *testing.T) {
	w, taskDir := newTestTokenWatcher(t)
	w.handleLine(usageLine(550)) // reaches warning

	// A restarted watcher must not re-announce stages already reached.
	restarted := NewTokenWatcher(taskDir, filepath.Join(taskDir, "transcript.jsonl"), 1000, nil)
	if level, err := restarted.Tracker.CheckThreshold(); err != nil || level != threshold.LevelWarning {
		t.Fatalf("persisted level = %v (err %v), want warning", level, err)
	}
	restarted.prev, _ = restarted.Tracker.CheckThreshold()

	restarted.handleLine(usageLine(560))
	msgs := orchestratorMessages(t, restarted)
	if len(msgs) != 1 {
		t.Fatalf("messages after restart = %d, want 1 (no duplicate)", len(msgs))
	}
}
