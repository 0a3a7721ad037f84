package watch

import (
	"context"
	"sync"
)

// Handle owns a running in-process watcher: a cancellation token plus a join
// mechanism. The PID file is a serialization detail for cross-process
// visibility only; in-process callers stop and join through the Handle.
type Handle struct {
	cancel context.CancelFunc
	done   chan struct{}

	mu  sync.Mutex
	err error
}

// newHandle starts fn in a goroutine and returns its Handle.
func newHandle(ctx context.Context, fn func(ctx context.Context) error) *Handle {
	runCtx, cancel := context.WithCancel(ctx)
	h := &Handle{
		cancel: cancel,
		done:   make(chan struct{}),
	}
	go func() {
		defer close(h.done)
		err := fn(runCtx)
		h.mu.Lock()
		h.err = err
		h.mu.Unlock()
	}()
	return h
}

// Stop cancels the watcher and waits for it to exit, returning the loop's
// final error (nil for a clean, cancellation-driven stop).
func (h *Handle) Stop() error {
	h.cancel()
	<-h.done
	return h.Err()
}

// Done is closed when the watcher loop has exited.
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// Err returns the loop's final error once it has exited.
func (h *Handle) Err() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.err
}
