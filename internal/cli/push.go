package cli

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/replayq/replayq/internal/httpreq"
	"github.com/replayq/replayq/internal/queue"
)

// PushOptions holds flags for the push command.
type PushOptions struct {
	*RootOptions
	Database  string
	QueueName string
	URL       string
	Method    string
	Headers   []string
}

// NewPushCommand creates the push command: enqueue one request onto a
// named queue without going through an application's own failure hook.
// Mainly useful for manual testing and recovery operations.
func NewPushCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &PushOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "push",
		Short: "Push a request onto a queue",
		Long: `Manually enqueue a request onto a named queue, as if a prior attempt
to send it had failed.

Examples:
  replayqctl push --db ./replayq.db --queue orders --url https://api.example.com/orders
  replayqctl push --db ./replayq.db --queue orders --url https://api.example.com/orders --method POST --header Content-Type=application/json`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPush(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.QueueName, "queue", "", "queue name (required)")
	_ = cmd.MarkFlagRequired("queue")
	cmd.Flags().StringVar(&opts.URL, "url", "", "request URL (required)")
	_ = cmd.MarkFlagRequired("url")
	cmd.Flags().StringVar(&opts.Method, "method", "GET", "HTTP method")
	cmd.Flags().StringArrayVar(&opts.Headers, "header", nil, "request header as key=value (repeatable)")

	return cmd
}

// runPush writes directly to the Store rather than constructing a *queue.Queue.
// Constructing a Queue with no background-sync trigger available runs a
// synchronous cold-start replay of everything already queued (queue.New);
// a plain enqueue command must not have that side effect, so it talks to
// the Store the same way list.go does.
func runPush(opts *PushOptions, cmd *cobra.Command) error {
	ctx := context.Background()

	st, err := queue.Open(opts.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer st.Close()

	req, err := http.NewRequest(opts.Method, opts.URL, nil)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid request", err)
	}
	for _, h := range opts.Headers {
		k, v, ok := strings.Cut(h, "=")
		if !ok {
			return WrapExitError(ExitCommandError, fmt.Sprintf("invalid --header %q, want key=value", h), nil)
		}
		req.Header.Add(k, v)
	}

	rec, err := httpreq.FromRequest(req)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to serialize request", err)
	}

	if _, err := st.AddLast(ctx, opts.QueueName, queue.Entry{Request: rec, Timestamp: time.Now()}); err != nil {
		return WrapExitError(ExitCommandError, "push failed", err)
	}

	formatter := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout()}
	return formatter.Success(fmt.Sprintf("pushed %s %s onto queue %q", opts.Method, opts.URL, opts.QueueName))
}
