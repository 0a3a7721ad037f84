package main

import (
	"fmt"

	"courier/pkg/comms"
	"courier/pkg/config"
	"courier/pkg/threshold"
	"courier/pkg/watch"

	"github.com/spf13/cobra"
)

// newStatusCmd creates the "courier status" subcommand.
func newStatusCmd(taskDir *string) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show task comms state at a glance",
		Long:  "Displays pending message counts for both roles, watcher liveness,\nand current context usage.",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := resolveTaskDir(*taskDir)
			if err != nil {
				return err
			}
			cfg, err := config.Load(dir)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			queue := comms.NewQueue(dir)

			fmt.Fprintln(out, styled(headerStyle, "Inboxes"))
			for _, role := range []comms.Role{comms.RoleOrchestrator, comms.RoleWorker} {
				handles, err := queue.Store().List(role)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "  %-13s %d pending\n", role, len(handles))
			}

			fmt.Fprintln(out, styled(headerStyle, "Watchers"))
			for _, name := range []string{"inbox", "tokens"} {
				pidPath, _ := watcherPIDPath(dir, name)
				status, pid, err := watch.DaemonStatus(pidPath)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "  %s\n", formatWatcherStatus(name, status, pid))
			}

			tracker := threshold.NewTracker(dir, cfg.MaxContextTokens)
			pct, err := tracker.Percent()
			if err != nil {
				return err
			}
			level, err := tracker.CheckThreshold()
			if err != nil {
				return err
			}
			fmt.Fprintln(out, styled(headerStyle, "Context"))
			usage := fmt.Sprintf("  %.1f%% of %d tokens (%s)", pct, cfg.MaxContextTokens, level)
			if level >= threshold.LevelCritical {
				usage = styled(urgentStyle, usage)
			} else if level >= threshold.LevelWarning {
				usage = styled(warningStyle, usage)
			}
			fmt.Fprintln(out, usage)
			return nil
		},
	}
}
