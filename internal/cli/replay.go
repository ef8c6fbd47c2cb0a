package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/replayq/replayq/internal/queue"
)

// ReplayOptions holds flags for the replay command.
type ReplayOptions struct {
	*RootOptions
	Database  string
	QueueName string
}

// ReplayResult is the JSON/text payload reported for one replay run.
type ReplayResult struct {
	Queue    string `json:"queue"`
	Success  bool   `json:"success"`
	Error    string `json:"error,omitempty"`
}

// NewReplayCommand creates the replay command: drive one queue's
// ReplayRequests exactly once against its durable store.
func NewReplayCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReplayOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "replay",
		Short: "Replay a queue's durable entries",
		Long: `Replay every entry in a named queue, oldest first, stopping at the
first failed request and re-queueing it and everything behind it.

Exit codes:
  0 - replay drained the queue with no failures
  1 - a request failed to replay (ReplayFailed)
  2 - command error (database not found, etc.)

Examples:
  replayqctl replay --db ./replayq.db --queue orders
  replayqctl replay --db ./replayq.db --queue orders --format json`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReplay(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.QueueName, "queue", "", "queue name to replay (required)")
	_ = cmd.MarkFlagRequired("queue")

	return cmd
}

func runReplay(opts *ReplayOptions, cmd *cobra.Command) error {
	ctx := context.Background()

	st, err := queue.Open(opts.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer st.Close()

	// A trigger whose Available() reports true keeps queue.New from running
	// its cold-start replay (that path exists for hosts with no
	// background-sync facility at all); this command drives exactly one
	// ReplayRequests call itself below, so the trigger is never Run and
	// never fires on its own.
	reg := queue.NewNameRegistry()
	q, err := queue.New(opts.QueueName, st, queue.WithRegistry(reg), queue.WithSyncTrigger(queue.NewEventBusTrigger(slog.Default())))
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to construct queue", err)
	}
	defer q.Close()

	replayErr := q.ReplayRequests(ctx)
	result := ReplayResult{Queue: opts.QueueName, Success: replayErr == nil}
	if replayErr != nil {
		result.Error = replayErr.Error()
	}

	if opts.Format == "json" {
		return outputReplayJSON(cmd, result, replayErr)
	}
	return outputReplayText(cmd, result, replayErr)
}

func outputReplayJSON(cmd *cobra.Command, result ReplayResult, replayErr error) error {
	response := CLIResponse{Status: "ok", Data: result}
	if replayErr != nil {
		response.Status = "error"
		response.Error = &CLIError{Code: "REPLAY_FAILED", Message: replayErr.Error()}
	}

	encoder := json.NewEncoder(cmd.OutOrStdout())
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(response); err != nil {
		return err
	}

	if replayErr != nil {
		if queue.IsReplayFailed(replayErr) {
			return NewExitError(ExitFailure, "replay failed")
		}
		return NewExitError(ExitCommandError, "replay errored")
	}
	return nil
}

func outputReplayText(cmd *cobra.Command, result ReplayResult, replayErr error) error {
	w := cmd.OutOrStdout()
	if replayErr == nil {
		fmt.Fprintf(w, "✓ queue %q drained\n", result.Queue)
		return nil
	}

	fmt.Fprintf(w, "✗ queue %q: %v\n", result.Queue, replayErr)
	if queue.IsReplayFailed(replayErr) {
		return NewExitError(ExitFailure, "replay failed")
	}
	return NewExitError(ExitCommandError, "replay errored")
}
