// Command replayqctl operates durable per-name request replay queues from
// the shell: push failed requests onto a queue, inspect what is pending,
// trigger a replay, or run the dispatch loop for a directory of declared
// queues until interrupted.
package main

import (
	"fmt"
	"os"

	"github.com/replayq/replayq/internal/cli"
)

func main() {
	root := cli.NewRootCommand()
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(cli.GetExitCode(err))
	}
}
