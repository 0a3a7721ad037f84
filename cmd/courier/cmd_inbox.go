package main

import (
	"errors"
	"fmt"
	"time"

	"courier/pkg/comms"
	"courier/pkg/notify"

	"github.com/spf13/cobra"
)

// newInboxCmd creates the "courier inbox" command group.
func newInboxCmd(taskDir *string) *cobra.Command {
	var roleFlag string

	cmd := &cobra.Command{
		Use:   "inbox",
		Short: "List, read, and archive the acting role's inbox",
	}
	cmd.PersistentFlags().StringVar(&roleFlag, "role", "", "acting role (default $COURIER_ROLE)")

	cmd.AddCommand(
		newInboxListCmd(taskDir, &roleFlag),
		newInboxReadCmd(taskDir, &roleFlag),
		newInboxArchiveCmd(taskDir, &roleFlag),
		newInboxPendingCmd(taskDir, &roleFlag),
	)
	return cmd
}

// inboxQueue resolves the task dir and role shared by the inbox subcommands.
func inboxQueue(taskDir, roleFlag string) (*comms.Queue, comms.Role, error) {
	dir, err := resolveTaskDir(taskDir)
	if err != nil {
		return nil, "", err
	}
	role, err := resolveRole(roleFlag)
	if err != nil {
		return nil, "", err
	}
	return comms.NewQueue(dir), role, nil
}

// newInboxListCmd creates "courier inbox list".
func newInboxListCmd(taskDir, roleFlag *string) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List pending messages without consuming them",
		RunE: func(cmd *cobra.Command, args []string) error {
			queue, role, err := inboxQueue(*taskDir, *roleFlag)
			if err != nil {
				return err
			}
			msgs, err := queue.Read(role)
			if err != nil {
				return err
			}
			if len(msgs) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), styled(dimStyle, "inbox empty"))
				return nil
			}
			for _, msg := range msgs {
				line := fmt.Sprintf("%s  %-15s %-8s %s",
					msg.CreatedAt.Format(time.DateTime), msg.Kind, msg.Priority, firstLine(msg.Body))
				if msg.Priority == comms.PriorityUrgent {
					line = styled(urgentStyle, line)
				}
				fmt.Fprintln(cmd.OutOrStdout(), line)
			}
			return nil
		},
	}
}

// newInboxReadCmd creates "courier inbox read".
func newInboxReadCmd(taskDir, roleFlag *string) *cobra.Command {
	var archiveAfter bool

	cmd := &cobra.Command{
		Use:   "read",
		Short: "Print all pending messages in full",
		Long:  "Prints every pending message in creation order. With --archive each\nprinted message is moved to the archive afterwards.",
		RunE: func(cmd *cobra.Command, args []string) error {
			queue, role, err := inboxQueue(*taskDir, *roleFlag)
			if err != nil {
				return err
			}
			msgs, err := queue.Read(role)
			if err != nil {
				return err
			}
			if len(msgs) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), styled(dimStyle, "inbox empty"))
				return nil
			}

			for i, msg := range msgs {
				if i > 0 {
					fmt.Fprintln(cmd.OutOrStdout())
				}
				fmt.Fprintln(cmd.OutOrStdout(), styled(headerStyle, notify.FormatTitle(msg.Kind, msg.From)))
				fmt.Fprintln(cmd.OutOrStdout(), styled(dimStyle,
					fmt.Sprintf("%s  priority=%s", msg.CreatedAt.Format(time.DateTime), msg.Priority)))
				fmt.Fprintln(cmd.OutOrStdout(), msg.Body)

				if archiveAfter {
					if err := archiveMessage(queue, role, msg.SourceFile); err != nil {
						return err
					}
				}
			}
			return nil
		},
	}

	cmd.Flags().BoolVarP(&archiveAfter, "archive", "a", false, "archive each message after printing it")
	return cmd
}

// newInboxArchiveCmd creates "courier inbox archive".
func newInboxArchiveCmd(taskDir, roleFlag *string) *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "archive [filename...]",
		Short: "Move consumed messages to the archive",
		RunE: func(cmd *cobra.Command, args []string) error {
			queue, role, err := inboxQueue(*taskDir, *roleFlag)
			if err != nil {
				return err
			}

			names := args
			if all {
				handles, err := queue.Store().List(role)
				if err != nil {
					return err
				}
				for _, h := range handles {
					names = append(names, h.Name)
				}
			}
			if len(names) == 0 {
				return fmt.Errorf("nothing to archive: pass filenames or --all")
			}

			for _, name := range names {
				if err := archiveMessage(queue, role, name); err != nil {
					return err
				}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s archived %d message(s)\n", styled(successStyle, "✓"), len(names))
			return nil
		},
	}

	cmd.Flags().BoolVar(&all, "all", false, "archive every pending message")
	return cmd
}

// newInboxPendingCmd creates "courier inbox pending".
func newInboxPendingCmd(taskDir, roleFlag *string) *cobra.Command {
	return &cobra.Command{
		Use:   "pending",
		Short: "Print the number of pending messages",
		RunE: func(cmd *cobra.Command, args []string) error {
			queue, role, err := inboxQueue(*taskDir, *roleFlag)
			if err != nil {
				return err
			}
			handles, err := queue.Store().List(role)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), len(handles))
			return nil
		},
	}
}

// archiveMessage archives one message, treating an already-archived file as
// done rather than failed.
func archiveMessage(queue *comms.Queue, role comms.Role, name string) error {
	err := queue.Archive(role, name)
	var notFound *comms.NotFoundError
	if errors.As(err, &notFound) {
		return nil
	}
	return err
}

// firstLine truncates a body to its first line for list display.
func firstLine(s string) string {
	for i, r := range s {
		if r == '\n' {
			return s[:i]
		}
	}
	return s
}
