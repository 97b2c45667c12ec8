// Command complaintsync mirrors the complaint database of the page store
// into a relational t_complaint table.
//
// Application flow:
//  1. migrate: create the table once
//  2. import: bulk-load a CSV export
//  3. sync: reconcile recently edited pages every SYNC_INTERVAL
//
// SIGINT and SIGTERM cancel the command context: the record in flight
// finishes, no new record starts, and the pool is closed.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"complaintsync/internal/cli"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := cli.NewRootCommand().ExecuteContext(ctx); err != nil {
		stop()
		fmt.Fprintln(os.Stderr, "complaintsync:", err)
		os.Exit(1)
	}
}
