package main

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"courier/pkg/comms"

	"github.com/spf13/cobra"
)

// newSendCmd creates the "courier send" subcommand.
func newSendCmd(taskDir *string) *cobra.Command {
	var (
		fromFlag     string
		priorityFlag string
	)

	cmd := &cobra.Command{
		Use:   "send <kind> [body...]",
		Short: "Send a message to the other role's inbox",
		Long: "Writes a message into the peer's inbox. The kind must belong to the\n" +
			"sending role: workers send blocker, progress, or review-request;\n" +
			"the orchestrator sends directive, guidance, or stop.\n" +
			"With no body arguments the body is read from stdin.",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := resolveTaskDir(*taskDir)
			if err != nil {
				return err
			}
			from, err := resolveRole(fromFlag)
			if err != nil {
				return err
			}
			priority, err := comms.ParsePriority(priorityFlag)
			if err != nil {
				return err
			}

			body, err := messageBody(cmd.InOrStdin(), args[1:])
			if err != nil {
				return err
			}

			queue := comms.NewQueue(dir)
			name, err := queue.Send(from, comms.Kind(args[0]), body, priority)
			var kindErr *comms.InvalidKindError
			if errors.As(err, &kindErr) {
				return fmt.Errorf("%w (allowed for %s: %s)",
					kindErr, from, kindList(from))
			}
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "%s sent %s to %s (%s)\n",
				styled(successStyle, "✓"), args[0], from.Peer(), name)
			return nil
		},
	}

	cmd.Flags().StringVar(&fromFlag, "role", "", "sending role (default $COURIER_ROLE)")
	cmd.Flags().StringVarP(&priorityFlag, "priority", "p", "", "urgent, normal, or low (default normal)")
	return cmd
}

// messageBody joins body arguments, or reads stdin when none are given.
func messageBody(stdin io.Reader, args []string) (string, error) {
	if len(args) > 0 {
		return strings.Join(args, " "), nil
	}
	data, err := io.ReadAll(stdin)
	if err != nil {
		return "", fmt.Errorf("read body from stdin: %w", err)
	}
	return strings.TrimRight(string(data), "\n"), nil
}

// kindList renders a role's allowed kinds for error messages.
func kindList(role comms.Role) string {
	kinds := comms.AllowedKinds(role)
	parts := make([]string, len(kinds))
	for i, k := range kinds {
		parts[i] = string(k)
	}
	return strings.Join(parts, ", ")
}
