package main

import (
	"fmt"
	"os"
	"path/filepath"

	"courier/pkg/comms"
	"courier/pkg/config"
	"courier/pkg/watch"

	"github.com/spf13/cobra"
)

// newInitCmd creates the "courier init" subcommand.
func newInitCmd(taskDir *string) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create the comms tree and default config for a task",
		Long:  "Creates the per-task directory layout (inboxes, outboxes, archive, logs)\nand writes a default courier.toml. Idempotent on an existing task.",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := resolveTaskDir(*taskDir)
			if err != nil {
				return err
			}

			store := comms.NewStore(dir)
			if err := store.EnsureDirs(); err != nil {
				return err
			}
			if err := os.MkdirAll(watch.LogDir(dir), 0o755); err != nil {
				return fmt.Errorf("create log dir: %w", err)
			}

			cfgPath := filepath.Join(dir, config.ConfigFile)
			if _, err := os.Stat(cfgPath); err == nil && !force {
				fmt.Fprintf(cmd.OutOrStdout(), "task already initialized at %s (use --force to rewrite config)\n", dir)
				return nil
			}
			if err := config.Save(dir, config.Default()); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "%s task initialized at %s\n", styled(successStyle, "✓"), dir)
			return nil
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "rewrite courier.toml even if it exists")
	return cmd
}
