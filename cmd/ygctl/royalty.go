package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	royaltyports "ygbackend/contexts/finance-core/royalty-service/ports"
	"ygbackend/internal/app/bootstrap"
	"ygbackend/internal/platform/config"
)

const operatorID = "ygctl"

func newRoyaltyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "royalty",
		Short: "Royalty run administration",
	}
	run := &cobra.Command{
		Use:   "run",
		Short: "Create, calculate and lock royalty runs",
	}

	var (
		from string
		to   string
		key  string
	)
	create := &cobra.Command{
		Use:   "create",
		Short: "Create a draft run for a period",
		RunE: func(cmd *cobra.Command, _ []string) error {
			start, end, err := parsePeriod(from, to)
			if err != nil {
				return err
			}
			if strings.TrimSpace(key) == "" {
				key = "ygctl-" + uuid.NewString()
			}
			return withRuntime(cmd.Context(), func(rt *bootstrap.Runtime) error {
				result, err := rt.Modules.Royalty.Service.CreateRun(cmd.Context(), operator(), key, start, end)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), result.Run)
			})
		},
	}
	create.Flags().StringVar(&from, "from", "", "period start, YYYY-MM-DD or RFC3339 (required)")
	create.Flags().StringVar(&to, "to", "", "period end, exclusive (required)")
	create.Flags().StringVar(&key, "idempotency-key", "", "reuse a key to make retries safe")
	_ = create.MarkFlagRequired("from")
	_ = create.MarkFlagRequired("to")

	calculate := &cobra.Command{
		Use:   "calculate <run-id>",
		Short: "Recompute the statements of a run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd.Context(), func(rt *bootstrap.Runtime) error {
				result, err := rt.Modules.Royalty.Service.CalculateRun(cmd.Context(), operator(), args[0])
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), result)
			})
		},
	}

	lock := &cobra.Command{
		Use:   "lock <run-id>",
		Short: "Lock a calculated run and issue its statements",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd.Context(), func(rt *bootstrap.Runtime) error {
				result, err := rt.Modules.Royalty.Service.LockRun(cmd.Context(), operator(), args[0])
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), result)
			})
		},
	}

	run.AddCommand(create, calculate, lock)
	cmd.AddCommand(run)
	return cmd
}

func operator() royaltyports.Actor {
	return royaltyports.Actor{UserID: operatorID, IsAdmin: true}
}

// parsePeriod accepts dates or RFC3339 timestamps; the end must follow the start.
func parsePeriod(from string, to string) (time.Time, time.Time, error) {
	start, err := parseInstant(from)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("--from: %w", err)
	}
	end, err := parseInstant(to)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("--to: %w", err)
	}
	if !end.After(start) {
		return time.Time{}, time.Time{}, fmt.Errorf("--to must be after --from")
	}
	return start, end, nil
}

func parseInstant(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if t, err := time.Parse(time.DateOnly, value); err == nil {
		return t.UTC(), nil
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("expected YYYY-MM-DD or RFC3339, got %q", value)
	}
	return t.UTC(), nil
}

// withRuntime builds the modules against the configured storage without
// starting any background work.
func withRuntime(ctx context.Context, fn func(rt *bootstrap.Runtime) error) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	cfg.OTELEnabled = false
	rt, err := bootstrap.NewRuntime(ctx, cfg, "ygctl", false)
	if err != nil {
		return err
	}
	runErr := fn(rt)
	if err := rt.Close(context.WithoutCancel(ctx)); err != nil && runErr == nil {
		return err
	}
	return runErr
}

func printJSON(w io.Writer, value any) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(value)
}
