package watch

import (
	"os"
	"path/filepath"
	"testing"
)

// drainLines runs one poll cycle and returns the lines it produced.
func drainLines(t *testing.T, tailer *Tailer) []string {
	t.Helper()
	var lines []string
	if err := tailer.drain(func(line []byte) error {
		lines = append(lines, string(line))
		return nil
	}); err != nil {
		t.Fatalf("drain failed: %v", err)
	}
	return lines
}

func appendFile(t *testing.T, path, data string) {
	t.Helper()
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		t.Fatalf("open %s: %v", path, err)
	}
	defer f.Close()
	if _, err := f.WriteString(data); err != nil {
		t.Fatalf("append to %s: %v", path, err)
	}
}

func TestTailerEmitsAppendedLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "transcript.jsonl")
	tailer := NewTailer(path, DefaultTailInterval)

	t.Run("missing file is not an error", func(t *testing.T) {
		if got := drainLines(t, tailer); len(got) != 0 {
			t.Errorf("lines from missing file: %v", got)
		}
	})

	t.Run("complete lines come through once", func(t *testing.T) {
		appendFile(t, path, "one\ntwo\n")
		got := drainLines(t, tailer)
		if len(got) != 2 || got[0] != "one" || got[1] != "two" {
			t.Errorf("lines = %v, want [one two]", got)
		}
		if again := drainLines(t, tailer); len(again) != 0 {
			t.Errorf("re-poll re-emitted lines: %v", again)
		}
	})

	t.Run("partial line held until newline arrives", func(t *testing.T) {
		appendFile(t, path, "thr")
		if got := drainLines(t, tailer); len(got) != 0 {
			t.Errorf("partial line emitted early: %v", got)
		}
		appendFile(t, path, "ee\n")
		got := drainLines(t, tailer)
		if len(got) != 1 || got[0] != "three" {
			t.Errorf("lines = %v, want [three]", got)
		}
	})

	t.Run("blank lines are skipped", func(t *testing.T) {
		appendFile(t, path, "\n  \nfour\n")
		got := drainLines(t, tailer)
		if len(got) != 1 || got[0] != "four" {
			t.Errorf("lines = %v, want [four]", got)
		}
	})
}

func TestTailerResetsAfterTruncation(t *testing.T) {
	path := filepath.Join(t.TempDir(), "transcript.jsonl")
	tailer := NewTailer(path, DefaultTailInterval)

	appendFile(t, path, "first session line\n")
	if got := drainLines(t, tailer); len(got) != 1 {
		t.Fatalf("lines = %v, want one line", got)
	}

	// Replace with a shorter file, as a transcript rotation would.
	if err := os.WriteFile(path, []byte("fresh\n"), 0o644); err != nil {
		t.Fatalf("truncate: %v", err)
	}
	got := drainLines(t, tailer)
	if len(got) != 1 || got[0] != "fresh" {
		t.Errorf("lines after truncation = %v, want [fresh]", got)
	}
}
