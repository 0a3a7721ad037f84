package watch

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"courier/internal/logger"
	"courier/pkg/comms"
	"courier/pkg/threshold"
)

// TokenWatcher tails an agent transcript, tracks context usage through the
// threshold ratchet, and sends the orchestrator a synthetic message each time
// the severity climbs to a new stage.
type TokenWatcher struct {
	Queue   *comms.Queue
	Tracker *threshold.Tracker
	Tailer  *Tailer
	Log     logger.Logger

	auditPath string
	prev      threshold.Level
}

// NewTokenWatcher creates a TokenWatcher for the given task directory and
// transcript file.
func NewTokenWatcher(taskDir, transcriptPath string, maxTokens int, log logger.Logger) *TokenWatcher {
	if log == nil {
		log = logger.Nop()
	}
	return &TokenWatcher{
		Queue:     comms.NewQueue(taskDir),
		Tracker:   threshold.NewTracker(taskDir, maxTokens),
		Tailer:    NewTailer(transcriptPath, DefaultTailInterval),
		Log:       log,
		auditPath: filepath.Join(LogDir(taskDir), TokenAlertLogFile),
		prev:      threshold.LevelOK,
	}
}

// Start launches the watcher loop and returns its Handle.
func (w *TokenWatcher) Start(ctx context.Context) (*Handle, error) {
	if err := w.Queue.Store().EnsureDirs(); err != nil {
		return nil, err
	}
	// Resume from persisted state so a restarted watcher does not re-alert
	// stages already announced this iteration.
	if level, err := w.Tracker.CheckThreshold(); err == nil {
		w.prev = level
	}
	return newHandle(ctx, w.run), nil
}

// run tails the transcript until cancellation.
func (w *TokenWatcher) run(ctx context.Context) error {
	return w.Tailer.Run(ctx, func(line []byte) error {
		w.handleLine(line)
		return nil
	})
}

// handleLine feeds one transcript line through the tracker and alerts when a
// new severity stage is reached. Tracker and send failures are logged, not
// fatal: the watcher keeps tailing.
func (w *TokenWatcher) handleLine(line []byte) {
	changed, err := w.Tracker.Update(line)
	if err != nil {
		w.Log.Warn("threshold update failed", "error", err)
		return
	}
	if !changed {
		return
	}

	level, err := w.Tracker.CheckThreshold()
	if err != nil {
		w.Log.Warn("threshold check failed", "error", err)
		return
	}
	if !threshold.ShouldAlert(w.prev, level) {
		return
	}

	pct, err := w.Tracker.Percent()
	if err != nil {
		w.Log.Warn("threshold percent failed", "error", err)
		return
	}
	w.alert(level, pct)
	w.prev = level
}

// alertKinds maps each alerting severity to the message kind the worker
// sends. The two highest stages ride the blocker kind so the router treats
// them as urgent.
var alertKinds = map[threshold.Level]comms.Kind{ //nolint:gochecknoglobals // fixed policy table
	threshold.LevelInfo:     comms.KindProgress,
	threshold.LevelWarning:  comms.KindProgress,
	threshold.LevelCritical: comms.KindBlocker,
	threshold.LevelDanger:   comms.KindBlocker,
}

// alert sends the synthetic worker->orchestrator message for a newly reached
// stage and appends the audit record.
func (w *TokenWatcher) alert(level threshold.Level, pct float64) {
	kind, ok := alertKinds[level]
	if !ok {
		return
	}
	body := fmt.Sprintf("Context usage reached %.1f%% (%s). Consider wrapping up or compacting.", pct, level)

	id := uuid.NewString()
	filename, err := w.Queue.Send(comms.RoleWorker, kind, body, comms.PriorityNormal)
	outcome := "sent " + filename
	if err != nil {
		outcome = "send failed: " + err.Error()
		w.Log.Warn("threshold alert send failed", "level", level, "error", err)
	} else {
		w.Log.Info("threshold alert sent", "level", level, "percent", pct, "file", filename)
	}
	w.audit(fmt.Sprintf("%s alert=%s level=%s percent=%.1f %s",
		time.Now().UTC().Format(time.RFC3339), id, level, pct, outcome))
}

// audit appends one line to the token alert log. Audit failures are logged
// and swallowed; the alert itself already went out.
func (w *TokenWatcher) audit(line string) {
	if err := os.MkdirAll(filepath.Dir(w.auditPath), 0o755); err != nil {
		w.Log.Warn("audit log dir failed", "error", err)
		return
	}
	f, err := os.OpenFile(w.auditPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644) //nolint:gosec // task-local log
	if err != nil {
		w.Log.Warn("audit log open failed", "error", err)
		return
	}
	defer func() { _ = f.Close() }()
	if _, err := fmt.Fprintln(f, line); err != nil {
		w.Log.Warn("audit log write failed", "error", err)
	}
}
