package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"txsync/internal/config"
	"txsync/internal/interfaces/cli"
)

var (
	version   = "dev"
	commit    = "none"
	buildTime = "unknown"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	env, err := config.LoadEnv()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		cancel()
		os.Exit(1)
	}

	root := cli.NewRootCommand(cli.Deps{
		Env:     env,
		Sync:    runSync,
		Status:  runStatus,
		Version: fmt.Sprintf("%s (commit %s, built %s)", version, commit, buildTime),
	})
	err = root.ExecuteContext(ctx)
	cancel()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
