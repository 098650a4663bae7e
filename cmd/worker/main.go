package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"ygbackend/internal/app/bootstrap"
)

// Worker process entrypoint.
// Data flow:
// 1) Load config.
// 2) Build app wiring.
// 3) Start consumers/schedulers (outbox relay, sweeps, email and payout delivery).
func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.BuildWorker(ctx)
	if err != nil {
		slog.Error("bootstrap worker failed", "event", "worker_bootstrap_failed", "error", err.Error())
		os.Exit(1)
	}
	runErr := app.Run(ctx)
	if err := app.Close(); err != nil {
		slog.Error("worker shutdown close failed", "event", "worker_close_failed", "error", err.Error())
	}
	if runErr != nil {
		slog.Error("worker stopped with error", "event", "worker_stopped", "error", runErr.Error())
		os.Exit(1)
	}
}
