package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"ygbackend/internal/platform/config"
	"ygbackend/internal/platform/logging"
	"ygbackend/internal/platform/migrate"
)

func newMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply or roll back the Postgres schema",
	}

	up := &cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			runner, err := migrationRunner()
			if err != nil {
				return err
			}
			return runner.Up()
		},
	}

	var steps int
	down := &cobra.Command{
		Use:   "down",
		Short: "Roll back the most recent migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if steps <= 0 {
				return fmt.Errorf("--steps must be positive")
			}
			runner, err := migrationRunner()
			if err != nil {
				return err
			}
			return runner.Down(steps)
		},
	}
	down.Flags().IntVar(&steps, "steps", 1, "number of migrations to roll back")

	version := &cobra.Command{
		Use:   "version",
		Short: "Print the current schema version",
		RunE: func(cmd *cobra.Command, _ []string) error {
			runner, err := migrationRunner()
			if err != nil {
				return err
			}
			v, dirty, err := runner.Version()
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "version=%d dirty=%t\n", v, dirty)
			return nil
		},
	}

	cmd.AddCommand(up, down, version)
	return cmd
}

func migrationRunner() (migrate.Runner, error) {
	cfg, err := config.Load()
	if err != nil {
		return migrate.Runner{}, err
	}
	if !cfg.UsesPostgres() {
		return migrate.Runner{}, fmt.Errorf("migrations need STORAGE_DRIVER=postgres")
	}
	logger := logging.New(os.Stderr, cfg.LogFormat, cfg.LogLevel)
	slog.SetDefault(logger)
	return migrate.Runner{DSN: cfg.PostgresDSN, Logger: logger}, nil
}
