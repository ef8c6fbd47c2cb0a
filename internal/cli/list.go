package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/replayq/replayq/internal/queue"
)

// ListOptions holds flags for the list command.
type ListOptions struct {
	*RootOptions
	Database  string
	QueueName string
}

// ListedEntry is the JSON/text payload for one stored entry.
type ListedEntry struct {
	ID        int64  `json:"id"`
	Method    string `json:"method"`
	URL       string `json:"url"`
	Timestamp string `json:"timestamp"`
}

// NewListCommand creates the list command: inspect a queue's entries
// without removing them.
func NewListCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ListOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List a queue's entries",
		Long: `List every durably stored entry for a named queue, oldest first,
without removing anything.

Examples:
  replayqctl list --db ./replayq.db --queue orders`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runList(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.QueueName, "queue", "", "queue name (required)")
	_ = cmd.MarkFlagRequired("queue")

	return cmd
}

func runList(opts *ListOptions, cmd *cobra.Command) error {
	ctx := context.Background()

	st, err := queue.Open(opts.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer st.Close()

	entries, err := st.GetAll(ctx, opts.QueueName)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to list entries", err)
	}

	listed := make([]ListedEntry, 0, len(entries))
	for _, e := range entries {
		listed = append(listed, ListedEntry{
			ID:        e.ID,
			Method:    e.Request.Method,
			URL:       e.Request.URL,
			Timestamp: e.Timestamp.Format("2006-01-02T15:04:05Z07:00"),
		})
	}

	formatter := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout()}
	if opts.Format == "json" {
		return formatter.Success(listed)
	}

	if len(listed) == 0 {
		return formatter.Success(fmt.Sprintf("queue %q is empty", opts.QueueName))
	}
	w := cmd.OutOrStdout()
	for _, e := range listed {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", e.ID, e.Method, e.URL, e.Timestamp)
	}
	return nil
}
