package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"ygbackend/internal/app/bootstrap"
)

func newJobsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "jobs",
		Short: "Background job queue inspection",
	}
	var asJSON bool
	health := &cobra.Command{
		Use:   "health",
		Short: "Print the last evaluated health of every queue",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withRuntime(cmd.Context(), func(rt *bootstrap.Runtime) error {
				queues, err := rt.Modules.JobMonitor.Service.ListQueueHealth(cmd.Context())
				if err != nil {
					return err
				}
				if asJSON {
					return printJSON(cmd.OutOrStdout(), queues)
				}
				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "QUEUE\tSTATUS\tWAITING\tACTIVE\tWORKERS\tFAILURE\tOLDEST\tEVALUATED")
				for _, q := range queues {
					fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%d\t%.1f%%\t%s\t%s\n",
						q.Queue,
						q.Status,
						q.Waiting,
						q.Active,
						q.Workers,
						q.FailureRate*100,
						(time.Duration(q.OldestWaitingSeconds) * time.Second).String(),
						q.EvaluatedAt.Format(time.RFC3339),
					)
				}
				return tw.Flush()
			})
		},
	}
	health.Flags().BoolVar(&asJSON, "json", false, "print JSON instead of a table")
	cmd.AddCommand(health)
	return cmd
}
