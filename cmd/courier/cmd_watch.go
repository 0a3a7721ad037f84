package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"courier/internal/logger"
	"courier/pkg/comms"
	"courier/pkg/config"
	"courier/pkg/notify"
	"courier/pkg/watch"

	"github.com/spf13/cobra"
)

// stopTimeout is the maximum time "watch stop" waits for the watcher to exit.
const stopTimeout = 5 * time.Second

// stopPollInterval is how often "watch stop" checks for process exit.
const stopPollInterval = 50 * time.Millisecond

// WatcherSpawner abstracts spawning the watcher subprocess for testability.
type WatcherSpawner interface {
	Spawn(args []string) (pid int, err error)
}

// ExecWatcherSpawner spawns a real child process re-executing the current
// binary with --foreground.
type ExecWatcherSpawner struct{}

// Spawn forks a child running the current binary with the given arguments.
func (ExecWatcherSpawner) Spawn(args []string) (int, error) {
	child := exec.CommandContext(context.Background(), os.Args[0], args...) //nolint:gosec // intentionally re-executing self
	child.Stdout = os.Stdout
	child.Stderr = os.Stderr
	if err := child.Start(); err != nil {
		return 0, fmt.Errorf("spawn watcher: %w", err)
	}
	return child.Process.Pid, nil
}

// newWatchCmd creates the "courier watch" command group.
func newWatchCmd(taskDir *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Run and manage the inbox and token watcher daemons",
	}
	cmd.AddCommand(
		newWatchInboxCmd(taskDir),
		newWatchTokensCmd(taskDir),
		newWatchStopCmd(taskDir),
		newWatchStatusCmd(taskDir),
	)
	return cmd
}

// startWatcher implements the shared start flow: reap a stale PID file, bail
// if a live watcher holds it, then either run in the foreground or spawn a
// background child.
func startWatcher(cmd *cobra.Command, spawner WatcherSpawner, name, pidPath string, foreground bool, childArgs []string, run func(ctx context.Context) error) error {
	alreadyRunning, err := watch.ReapStale(pidPath)
	if err != nil {
		return err
	}
	if alreadyRunning {
		pid, _ := watch.ReadPIDFile(pidPath)
		fmt.Fprintf(cmd.OutOrStdout(), "%s watcher already running (PID %d)\n", name, pid)
		return nil
	}

	if !foreground {
		pid, err := spawner.Spawn(childArgs)
		if err != nil {
			return err
		}
		// Claim the PID file on the child's behalf so a second start cannot
		// slip past ReapStale before the child writes it itself. The child's
		// own write is a harmless overwrite with the same PID.
		if err := watch.WritePIDFile(pidPath, pid); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s %s watcher started (PID %d)\n", styled(successStyle, "✓"), name, pid)
		return nil
	}

	if err := watch.WritePIDFile(pidPath, os.Getpid()); err != nil {
		return err
	}
	shutdownCtx, cleanup := watch.SetupSignalHandler(cmd.Context(), pidPath)
	defer cleanup()
	return run(shutdownCtx)
}

// newWatchInboxCmd creates "courier watch inbox".
func newWatchInboxCmd(taskDir *string) *cobra.Command {
	var foreground bool

	cmd := &cobra.Command{
		Use:   "inbox",
		Short: "Watch both inboxes and notify on message arrival",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := resolveTaskDir(*taskDir)
			if err != nil {
				return err
			}
			childArgs := []string{"watch", "inbox", "--foreground", "--task-dir", dir}
			return startWatcher(cmd, ExecWatcherSpawner{}, "inbox", watch.InboxPIDPath(dir), foreground, childArgs,
				func(ctx context.Context) error { return runInboxWatcher(ctx, dir) })
		},
	}

	cmd.Flags().BoolVar(&foreground, "foreground", false, "run in the foreground instead of spawning a daemon")
	return cmd
}

// runInboxWatcher assembles and runs the inbox watcher until shutdown.
func runInboxWatcher(ctx context.Context, dir string) error {
	cfg, err := config.Load(dir)
	if err != nil {
		return err
	}
	log, closeLog, err := logger.OpenFile(filepath.Join(watch.LogDir(dir), watch.WatcherLogFile), slog.LevelInfo)
	if err != nil {
		return err
	}
	defer func() { _ = closeLog() }()

	router := notify.NewRouter(notify.NewOSNotifier(), terminalFor(cfg), log)
	router.AlwaysUrgent = cfg.AlwaysUrgent()

	w := watch.NewInboxWatcher(comms.NewStore(dir), router, log)
	w.Grace = cfg.Grace()
	for _, role := range []comms.Role{comms.RoleOrchestrator, comms.RoleWorker} {
		if target, ok := cfg.Target(role); ok && target.Pane != "" {
			w.Injectors[role] = notify.NewInjector(cfg.Agent, target.Pane, &notify.ExecRunner{})
		}
	}

	handle, err := w.Start(ctx)
	if err != nil {
		log.Error("inbox watcher failed to start", "error", err)
		return err
	}
	log.Info("inbox watcher running", "task_dir", dir, "pid", os.Getpid())
	<-handle.Done()
	if err := handle.Err(); err != nil {
		log.Error("inbox watcher died", "error", err)
		return err
	}
	log.Info("inbox watcher stopped")
	return nil
}

// terminalFor builds the tmux channel from the orchestrator's configured
// session, or nil when none is configured.
func terminalFor(cfg *config.Config) notify.Terminal {
	if target, ok := cfg.Target(comms.RoleOrchestrator); ok && target.Session != "" {
		return notify.NewTmuxClient(target.Session)
	}
	return nil
}

// newWatchTokensCmd creates "courier watch tokens".
func newWatchTokensCmd(taskDir *string) *cobra.Command {
	var (
		foreground bool
		transcript string
		iteration  string
	)

	cmd := &cobra.Command{
		Use:   "tokens",
		Short: "Tail the agent transcript and alert on context usage thresholds",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := resolveTaskDir(*taskDir)
			if err != nil {
				return err
			}
			if transcript == "" {
				return fmt.Errorf("transcript path required: pass --transcript")
			}
			childArgs := []string{
				"watch", "tokens", "--foreground",
				"--task-dir", dir, "--transcript", transcript,
			}
			if iteration != "" {
				childArgs = append(childArgs, "--iteration", iteration)
			}
			return startWatcher(cmd, ExecWatcherSpawner{}, "token", watch.TokenPIDPath(dir), foreground, childArgs,
				func(ctx context.Context) error { return runTokenWatcher(ctx, dir, transcript, iteration) })
		},
	}

	cmd.Flags().BoolVar(&foreground, "foreground", false, "run in the foreground instead of spawning a daemon")
	cmd.Flags().StringVar(&transcript, "transcript", "", "agent transcript file to tail (JSONL)")
	cmd.Flags().StringVar(&iteration, "iteration", "", "reset threshold state for a new iteration before watching")
	return cmd
}

// runTokenWatcher assembles and runs the token watcher until shutdown.
func runTokenWatcher(ctx context.Context, dir, transcript, iteration string) error {
	cfg, err := config.Load(dir)
	if err != nil {
		return err
	}
	log, closeLog, err := logger.OpenFile(filepath.Join(watch.LogDir(dir), watch.WatcherLogFile), slog.LevelInfo)
	if err != nil {
		return err
	}
	defer func() { _ = closeLog() }()

	w := watch.NewTokenWatcher(dir, transcript, cfg.MaxContextTokens, log)
	if iteration != "" {
		if err := w.Tracker.StartIteration(iteration); err != nil {
			return err
		}
	}

	handle, err := w.Start(ctx)
	if err != nil {
		log.Error("token watcher failed to start", "error", err)
		return err
	}
	log.Info("token watcher running", "task_dir", dir, "transcript", transcript, "pid", os.Getpid())
	<-handle.Done()
	if err := handle.Err(); err != nil {
		log.Error("token watcher died", "error", err)
		return err
	}
	log.Info("token watcher stopped")
	return nil
}

// watcherPIDPath maps a watcher name to its PID file.
func watcherPIDPath(dir, name string) (string, error) {
	switch name {
	case "inbox":
		return watch.InboxPIDPath(dir), nil
	case "tokens":
		return watch.TokenPIDPath(dir), nil
	}
	return "", fmt.Errorf("unknown watcher %q (want inbox or tokens)", name)
}

// newWatchStopCmd creates "courier watch stop".
func newWatchStopCmd(taskDir *string) *cobra.Command {
	return &cobra.Command{
		Use:   "stop <inbox|tokens>",
		Short: "Stop a running watcher daemon",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := resolveTaskDir(*taskDir)
			if err != nil {
				return err
			}
			pidPath, err := watcherPIDPath(dir, args[0])
			if err != nil {
				return err
			}
			pid, err := watch.ReadPIDFile(pidPath)
			if err != nil {
				return fmt.Errorf("stop %s watcher: %w", args[0], err)
			}
			if err := watch.StopDaemon(pidPath); err != nil {
				return err
			}

			// Give the watcher time to exit and clean up its PID file.
			deadline := time.Now().Add(stopTimeout)
			for time.Now().Before(deadline) {
				if !watch.IsProcessAlive(pid) {
					fmt.Fprintf(cmd.OutOrStdout(), "%s %s watcher stopped\n", styled(successStyle, "✓"), args[0])
					return nil
				}
				time.Sleep(stopPollInterval)
			}
			return fmt.Errorf("%s watcher (PID %d) did not exit within %v", args[0], pid, stopTimeout)
		},
	}
}

// newWatchStatusCmd creates "courier watch status".
func newWatchStatusCmd(taskDir *string) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show watcher daemon liveness",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := resolveTaskDir(*taskDir)
			if err != nil {
				return err
			}
			for _, name := range []string{"inbox", "tokens"} {
				pidPath, _ := watcherPIDPath(dir, name)
				status, pid, err := watch.DaemonStatus(pidPath)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), formatWatcherStatus(name, status, pid))
			}
			return nil
		},
	}
}

// formatWatcherStatus renders one watcher's status line.
func formatWatcherStatus(name string, status watch.Status, pid int) string {
	switch status {
	case watch.StatusRunning:
		return fmt.Sprintf("%-7s %s (PID %d)", name, styled(successStyle, "running"), pid)
	case watch.StatusStale:
		return fmt.Sprintf("%-7s %s (stale PID %d)", name, styled(warningStyle, "stale"), pid)
	default:
		return fmt.Sprintf("%-7s %s", name, styled(dimStyle, "stopped"))
	}
}
