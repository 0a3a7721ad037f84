package watch

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"
)

// DefaultTailInterval is how often the tailer polls the file for growth.
const DefaultTailInterval = 500 * time.Millisecond

// Tailer follows a file by polling, emitting complete lines as they are
// appended. It tolerates the file not existing yet, being truncated, or being
// replaced: a shrink resets the read offset to the start so no data after the
// rotation point is lost.
type Tailer struct {
	path     string
	interval time.Duration

	offset  int64
	partial []byte
}

// NewTailer creates a Tailer for the given file. The file does not need to
// exist yet.
func NewTailer(path string, interval time.Duration) *Tailer {
	if interval <= 0 {
		interval = DefaultTailInterval
	}
	return &Tailer{path: path, interval: interval}
}

// Run polls the file until the context is canceled, calling handle for each
// complete line. Handler errors stop the tailer and are returned; read errors
// on a missing file are skipped (the file may not have been created yet).
func (t *Tailer) Run(ctx context.Context, handle func(line []byte) error) error {
	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	for {
		if err := t.drain(handle); err != nil {
			return err
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// drain reads everything appended since the last poll and dispatches the
// complete lines.
func (t *Tailer) drain(handle func(line []byte) error) error {
	f, err := os.Open(t.path) //nolint:gosec // path is the configured transcript file
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("open %s: %w", t.path, err)
	}
	defer func() { _ = f.Close() }()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("stat %s: %w", t.path, err)
	}
	if info.Size() < t.offset {
		// Truncated or replaced. Start over from the top.
		t.offset = 0
		t.partial = nil
	}
	if info.Size() == t.offset {
		return nil
	}

	if _, err := f.Seek(t.offset, io.SeekStart); err != nil {
		return fmt.Errorf("seek %s: %w", t.path, err)
	}
	data, err := io.ReadAll(f)
	if err != nil {
		return fmt.Errorf("read %s: %w", t.path, err)
	}
	t.offset += int64(len(data))

	buf := append(t.partial, data...)
	for {
		i := bytes.IndexByte(buf, '\n')
		if i < 0 {
			break
		}
		line := buf[:i]
		buf = buf[i+1:]
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}
		if err := handle(line); err != nil {
			t.partial = append([]byte(nil), buf...)
			return err
		}
	}
	t.partial = append([]byte(nil), buf...)
	return nil
}
