package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/replayq/replayq/internal/config"
	"github.com/replayq/replayq/internal/queue"
)

// ServeOptions holds flags for the serve command.
type ServeOptions struct {
	*RootOptions
	Database  string
	ConfigDir string
}

// NewServeCommand creates the serve command: construct every queue
// declared in a config directory against one database and block, replaying
// each as its sync tag fires, until interrupted.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ServeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the queues declared in a config directory",
		Long: `Load queue definitions from a directory of CUE files and run them
against one database until interrupted (SIGINT/SIGTERM), replaying each
queue whenever its sync tag fires.

Examples:
  replayqctl serve --db ./replayq.db --config ./queues`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.ConfigDir, "config", "", "directory of CUE queue definitions (required)")
	_ = cmd.MarkFlagRequired("config")

	return cmd
}

func runServe(opts *ServeOptions, cmd *cobra.Command) error {
	logger := slog.Default()

	queueConfigs, err := config.Load(opts.ConfigDir)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load queue config", err)
	}
	if len(queueConfigs) == 0 {
		return NewExitError(ExitCommandError, fmt.Sprintf("no queues declared in %s", opts.ConfigDir))
	}

	st, err := queue.Open(opts.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer st.Close()

	trigger := queue.NewEventBusTrigger(logger)

	var queues []*queue.Queue
	for _, qc := range queueConfigs {
		qopts := []queue.Option{
			queue.WithSyncTrigger(trigger),
			queue.WithMaxRetentionTime(qc.MaxRetention),
			queue.WithLogger(logger),
		}
		if qc.SyncTagOverride != "" {
			qopts = append(qopts, queue.WithTag(qc.SyncTagOverride))
		}
		q, err := queue.New(qc.Name, st, qopts...)
		if err != nil {
			return WrapExitError(ExitCommandError, fmt.Sprintf("failed to construct queue %q", qc.Name), err)
		}
		queues = append(queues, q)
	}
	defer func() {
		for _, q := range queues {
			q.Close()
		}
	}()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		logger.Info("serve starting", "db", opts.Database, "queues", len(queues))
		if err := trigger.Run(ctx); err != nil && err != context.Canceled {
			logger.Error("dispatch loop stopped", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("serve shutting down")
	cancel()
	trigger.Close()

	return nil
}
