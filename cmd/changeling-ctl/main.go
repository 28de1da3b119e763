// changeling-ctl sends commands to a changeling daemon and reads its status.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/nerrad567/changeling-watch/internal/cli"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := cli.NewRootCmd(cli.Connect).ExecuteContext(ctx); err != nil {
		cli.LogError(os.Stderr, err)
		cancel()
		os.Exit(1)
	}
}
