package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/hibiken/asynq"
	"github.com/spf13/cobra"

	"github.com/odyssey-erp/odyssey-pos/jobs"
)

func newQueueCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "queue",
		Short: "Show worker queue depth",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := loadEnv()
			if err != nil {
				return err
			}
			defer e.Close()
			inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: e.cfg.RedisAddr})
			defer inspector.Close()

			stats, err := jobs.CollectQueueStats(inspector)
			if err != nil {
				return err
			}
			return printQueueStats(cmd, stats)
		},
	}
}

func printQueueStats(cmd *cobra.Command, stats []jobs.QueueStat) error {
	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "QUEUE\tPENDING\tACTIVE\tSCHEDULED\tRETRY\tARCHIVED\tCOMPLETED")
	for _, s := range stats {
		fmt.Fprintf(tw, "%s\t%d\t%d\t%d\t%d\t%d\t%d\n", s.Queue, s.Pending, s.Active, s.Scheduled, s.Retry, s.Archived, s.Completed)
	}
	return tw.Flush()
}
