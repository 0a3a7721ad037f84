package main

import (
	"fmt"
	"os"

	"courier/internal/appversion"
	"courier/pkg/comms"

	"github.com/spf13/cobra"
)

// taskDirEnv overrides the task directory when the --task-dir flag is unset.
const taskDirEnv = "COURIER_TASK_DIR"

// roleEnv supplies the acting role when the --role/--from flag is unset.
// Orchestrator and worker sessions export it once so every courier call in
// that session acts as the right party.
const roleEnv = "COURIER_ROLE"

// newRootCmd creates the root courier command with all subcommands attached.
func newRootCmd() *cobra.Command {
	var taskDir string

	cmd := &cobra.Command{
		Use:           "courier",
		Short:         "File-based messaging between an orchestrator and its worker",
		Long:          "courier is the communication backbone for a two-party agent task:\na file-based message queue, inbox and token watchers, and notification routing.",
		Version:       fmt.Sprintf("courier %s", appversion.String()),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.SetVersionTemplate("{{.Version}}\n")
	cmd.PersistentFlags().StringVar(&taskDir, "task-dir", "", "task directory (default $COURIER_TASK_DIR or the working directory)")

	cmd.AddCommand(
		newInitCmd(&taskDir),
		newSendCmd(&taskDir),
		newInboxCmd(&taskDir),
		newWatchCmd(&taskDir),
		newStatusCmd(&taskDir),
	)

	return cmd
}

// resolveTaskDir picks the task directory: flag, then environment, then the
// current working directory.
func resolveTaskDir(flagValue string) (string, error) {
	if flagValue != "" {
		return flagValue, nil
	}
	if v := os.Getenv(taskDirEnv); v != "" {
		return v, nil
	}
	wd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("resolve task dir: %w", err)
	}
	return wd, nil
}

// resolveRole picks the acting role: flag, then environment.
func resolveRole(flagValue string) (comms.Role, error) {
	name := flagValue
	if name == "" {
		name = os.Getenv(roleEnv)
	}
	if name == "" {
		return "", fmt.Errorf("role required: pass --role or set %s", roleEnv)
	}
	role, err := comms.ParseRole(name)
	if err != nil {
		return "", err
	}
	return role, nil
}
