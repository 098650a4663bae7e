package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "ygctl:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "ygctl",
		Short: "Operator CLI for the ygbackend services",
		Long: `ygctl runs operator tasks against the configured storage.

Configuration is read from the environment (and an optional .env file),
the same way the api and worker processes load it.`,
		SilenceUsage: true,
	}
	root.AddCommand(newMigrateCmd(), newRoyaltyCmd(), newJobsCmd())
	return root
}
