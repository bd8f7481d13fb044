package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/FranksOps/signlead/internal/lead"
	"github.com/FranksOps/signlead/internal/report"
)

func newStateCmd(a *app) *cobra.Command {
	var (
		write  bool
		asJSON bool
	)
	cmd := &cobra.Command{
		Use:   "state <name>",
		Short: "Harvest one state and print its leads",
		Long: "Harvest one state and print its leads. Nothing is stored or published;\n" +
			"--write also renders the state's page into the output directory.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.state(cmd.Context(), args[0], write, asJSON)
		},
	}
	cmd.Flags().BoolVar(&write, "write", false, "write the state's page into the output directory")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print leads as JSON")
	return cmd
}

func (a *app) state(ctx context.Context, name string, write, asJSON bool) error {
	st, ok := lead.LookupState(name)
	if !ok {
		return fmt.Errorf("unknown state %q", name)
	}
	cfg, err := a.validated()
	if err != nil {
		return err
	}
	search, err := buildSearch(cfg, a.logger)
	if err != nil {
		return err
	}
	sr, err := buildStateRunner(cfg, search.provider, a.logger)
	if err != nil {
		return err
	}

	res, err := sr.Run(ctx, st)
	if err != nil {
		return err
	}
	if res.Exhausted {
		a.logger.Warn("search credentials ran out; results are partial", "state", st.Name)
	}

	if write {
		now := time.Now()
		path, err := report.SavePage(cfg.Output.Dir, report.PageData{
			State:     st,
			Leads:     res.Leads,
			Generated: now,
			NextRun:   report.NextRun(now, cfg.Output.Interval),
		})
		if err != nil {
			return err
		}
		a.logger.Info("page written", "path", path)
	}

	if asJSON {
		enc := json.NewEncoder(a.stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(res.Leads)
	}
	hot, warm := lead.Counts(res.Leads)
	fmt.Fprintf(a.stdout, "%s: %d leads (%d hot, %d warm) from %d queries, %d unique results\n\n",
		st.Name, len(res.Leads), hot, warm, res.Queries, res.UniqueResults)
	return writeLeadTable(a.stdout, res.Leads)
}

func writeLeadTable(w io.Writer, leads []lead.Lead) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "TEMP\tNAME\tLOCATION\tOPENING\tREVENUE\tSOURCE")
	for _, l := range leads {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n", l.Temperature, l.Name, l.Location, l.Opening, l.Revenue, l.Source)
	}
	return tw.Flush()
}
