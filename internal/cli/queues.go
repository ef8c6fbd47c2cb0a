package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/replayq/replayq/internal/queue"
)

// QueuesOptions holds flags for the queues command.
type QueuesOptions struct {
	*RootOptions
	Database string
}

// NewQueuesCommand creates the queues command: list every queue name with
// at least one durable entry.
func NewQueuesCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &QueuesOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "queues",
		Short: "List queue names present in the database",
		Long: `List the distinct queue names that currently have at least one
durably stored entry.

Examples:
  replayqctl queues --db ./replayq.db`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQueues(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	_ = cmd.MarkFlagRequired("db")

	return cmd
}

func runQueues(opts *QueuesOptions, cmd *cobra.Command) error {
	ctx := context.Background()

	st, err := queue.Open(opts.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer st.Close()

	names, err := st.QueueNames(ctx)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to list queue names", err)
	}

	formatter := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout()}
	if opts.Format == "json" {
		return formatter.Success(names)
	}

	if len(names) == 0 {
		return formatter.Success("no queues found")
	}
	for _, n := range names {
		fmt.Fprintln(cmd.OutOrStdout(), n)
	}
	return nil
}
