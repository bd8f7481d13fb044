package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/FranksOps/signlead/internal/report"
)

func newSummaryCmd(a *app) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "summary",
		Short: "Print the last run's summary and the schedule",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := report.LoadSummary(a.cfg.Output.Dir)
			if err != nil {
				return err
			}
			if asJSON {
				return report.WriteJSON(a.stdout, s)
			}
			if err := report.WriteText(a.stdout, s); err != nil {
				return err
			}
			sched, err := report.LoadSchedule(schedulePath(a.cfg))
			if err != nil {
				return err
			}
			if !sched.NextRun.IsZero() {
				due := "no"
				if sched.Due(time.Now()) {
					due = "yes"
				}
				fmt.Fprintf(a.stdout, "\nScheduled: %s (due: %s)\n", sched.NextRun.Format(time.RFC3339), due)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the raw summary JSON")
	return cmd
}
