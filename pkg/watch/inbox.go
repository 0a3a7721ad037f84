package watch

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"courier/internal/logger"
	"courier/pkg/comms"
	"courier/pkg/notify"
)

// Defaults for the inbox watcher timing knobs.
const (
	// DefaultGrace is how long the watcher waits after a create event before
	// reading the file, so a non-atomic writer can finish.
	DefaultGrace = 200 * time.Millisecond

	// DefaultPollInterval drives the fallback scan that catches any create
	// events the filesystem watcher missed.
	DefaultPollInterval = 5 * time.Second
)

// InboxWatcher watches both role inboxes for new message files and fans each
// arrival out to the notification router, plus a best-effort nudge into the
// recipient's agent session.
type InboxWatcher struct {
	Store  *comms.Store
	Router *notify.Router
	Log    logger.Logger

	// Injectors maps a recipient role to its session injector. Entries are
	// optional; injection is best-effort.
	Injectors map[comms.Role]notify.SessionInjector

	Grace        time.Duration
	PollInterval time.Duration

	// newWatcher is a seam for simulating an environment without inotify.
	newWatcher func() (*fsnotify.Watcher, error)

	seen map[string]bool
}

// NewInboxWatcher creates an InboxWatcher with default timing.
func NewInboxWatcher(store *comms.Store, router *notify.Router, log logger.Logger) *InboxWatcher {
	if log == nil {
		log = logger.Nop()
	}
	return &InboxWatcher{
		Store:        store,
		Router:       router,
		Log:          log,
		Injectors:    make(map[comms.Role]notify.SessionInjector),
		Grace:        DefaultGrace,
		PollInterval: DefaultPollInterval,
		newWatcher:   fsnotify.NewWatcher,
		seen:         make(map[string]bool),
	}
}

// Start launches the watcher loop and returns its Handle.
func (w *InboxWatcher) Start(ctx context.Context) (*Handle, error) {
	if err := w.Store.EnsureDirs(); err != nil {
		return nil, err
	}
	fsw, err := w.newWatcher()
	if err != nil {
		// Message delivery still works without live events; the caller
		// decides whether to fall back to a plain poll loop.
		return nil, &CapabilityError{Capability: "filesystem events", Reason: err}
	}
	for _, role := range []comms.Role{comms.RoleOrchestrator, comms.RoleWorker} {
		if err := fsw.Add(w.Store.InboxDir(role)); err != nil {
			_ = fsw.Close()
			return nil, &CapabilityError{Capability: "filesystem events", Reason: err}
		}
	}
	return newHandle(ctx, func(ctx context.Context) error {
		defer func() { _ = fsw.Close() }()
		return w.run(ctx, fsw)
	}), nil
}

// run is the event loop. It returns nil on context cancellation and a
// FatalWatcherError when the event stream itself dies.
func (w *InboxWatcher) run(ctx context.Context, fsw *fsnotify.Watcher) error {
	// Catch anything written before the watches were registered.
	w.sweep(ctx)

	ticker := time.NewTicker(w.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-fsw.Events:
			if !ok {
				return &FatalWatcherError{Reason: "event channel closed"}
			}
			// Losing a watched inbox is not an empty inbox: the watch is
			// silently dropped and no future message would ever be seen.
			if event.Op&(fsnotify.Remove|fsnotify.Rename) != 0 && w.isWatchedDir(event.Name) {
				return &FatalWatcherError{Reason: "watched directory removed: " + event.Name}
			}
			if event.Op&fsnotify.Create == 0 {
				continue
			}
			w.handlePath(ctx, event.Name)

		case err, ok := <-fsw.Errors:
			if !ok {
				return &FatalWatcherError{Reason: "error channel closed"}
			}
			w.Log.Warn("inbox watch error", "error", err)

		case <-ticker.C:
			// Safety net for events dropped under load, and for directory
			// removal that raced past the event stream.
			if err := w.checkDirs(); err != nil {
				return err
			}
			w.sweep(ctx)
		}
	}
}

// sweep scans both inboxes and dispatches anything not yet seen.
func (w *InboxWatcher) sweep(ctx context.Context) {
	for _, role := range []comms.Role{comms.RoleOrchestrator, comms.RoleWorker} {
		handles, err := w.Store.List(role)
		if err != nil {
			w.Log.Warn("inbox scan failed", "role", role, "error", err)
			continue
		}
		for _, h := range handles {
			w.handlePath(ctx, h.Path)
		}
	}
}

// handlePath dispatches one candidate message file, deduplicating against
// paths already handled. The watcher never consumes messages; archiving is
// the recipient's job, so dedupe is by path memory rather than file state.
func (w *InboxWatcher) handlePath(ctx context.Context, path string) {
	if !strings.HasSuffix(path, ".md") {
		return
	}
	if w.seen[path] {
		return
	}
	role, ok := w.roleForPath(path)
	if !ok {
		return
	}
	w.seen[path] = true

	// Let a non-atomic writer finish before reading.
	time.Sleep(w.Grace)

	data, err := os.ReadFile(path) //nolint:gosec // path from watched inbox
	if errors.Is(err, os.ErrNotExist) {
		// Consumed before we got to it. Not our problem.
		return
	}
	if err != nil {
		w.Log.Warn("read message failed", "path", path, "error", err)
		return
	}
	msg, err := comms.ParseMessage(path, data)
	if err != nil {
		w.Log.Warn("unparseable message", "path", path, "error", err)
		return
	}

	w.Log.Info("message arrived",
		"to", role, "from", msg.From, "kind", msg.Kind, "priority", msg.Priority,
		"file", filepath.Base(path))
	w.Router.RouteMessage(ctx, msg)

	if inj, ok := w.Injectors[role]; ok && inj.Available() {
		if err := inj.Inject(ctx, notify.InboxHint); err != nil {
			w.Log.Warn("session injection failed", "role", role, "error", err)
		}
	}
}

// isWatchedDir reports whether the path is one of the watched inbox dirs.
func (w *InboxWatcher) isWatchedDir(path string) bool {
	clean := filepath.Clean(path)
	return clean == w.Store.InboxDir(comms.RoleOrchestrator) ||
		clean == w.Store.InboxDir(comms.RoleWorker)
}

// checkDirs verifies both watched inboxes still exist, returning a
// FatalWatcherError when one is gone.
func (w *InboxWatcher) checkDirs() error {
	for _, role := range []comms.Role{comms.RoleOrchestrator, comms.RoleWorker} {
		dir := w.Store.InboxDir(role)
		if _, err := os.Stat(dir); errors.Is(err, os.ErrNotExist) {
			return &FatalWatcherError{Reason: "watched directory removed: " + dir}
		}
	}
	return nil
}

// roleForPath maps an event path back to the inbox's owning role.
func (w *InboxWatcher) roleForPath(path string) (comms.Role, bool) {
	dir := filepath.Dir(path)
	switch dir {
	case w.Store.InboxDir(comms.RoleOrchestrator):
		return comms.RoleOrchestrator, true
	case w.Store.InboxDir(comms.RoleWorker):
		return comms.RoleWorker, true
	}
	return "", false
}
