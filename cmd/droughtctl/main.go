// Command droughtctl prints the drought dashboard from the terminal.
//
// Every subcommand performs one sync against the backend and renders the
// result:
//
//	droughtctl summary
//	droughtctl villages --status critical --sort wsi --desc
//	droughtctl export -o stress.csv --search ram
//	droughtctl insight V001 --lang Marathi
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		stop()
		os.Exit(1)
	}
}
