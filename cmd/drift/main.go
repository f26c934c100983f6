package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/driftsql/drift/cli"
	"github.com/driftsql/drift/genericclioptions"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	cmd := cli.NewDefaultDriftCommand(genericclioptions.NewDefaultIOStreams(), os.Args[1:])
	if err := cmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}
