package main

import (
	"context"
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/FranksOps/signlead/internal/enrich"
	"github.com/FranksOps/signlead/internal/lead"
	"github.com/FranksOps/signlead/internal/pipeline"
)

func newDiagnoseCmd(a *app) *cobra.Command {
	var (
		query  string
		state  string
		asJSON bool
	)
	cmd := &cobra.Command{
		Use:   "diagnose",
		Short: "Probe each search credential and run a sample extraction",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.diagnose(cmd.Context(), query, state, asJSON)
		},
	}
	f := cmd.Flags()
	f.StringVar(&query, "query", "grand opening", "sample query")
	f.StringVar(&state, "state", "Texas", "sample state")
	f.BoolVar(&asJSON, "json", false, "print the report as JSON")
	return cmd
}

func (a *app) diagnose(ctx context.Context, query, stateName string, asJSON bool) error {
	st, ok := lead.LookupState(stateName)
	if !ok {
		return fmt.Errorf("unknown state %q", stateName)
	}
	cfg, err := a.validated()
	if err != nil {
		return err
	}
	search, err := buildSearch(cfg, a.logger)
	if err != nil {
		return err
	}
	_, chains, err := loadPlan(cfg)
	if err != nil {
		return err
	}

	dc := pipeline.DiagnoseConfig{
		Provider:    search.provider,
		Classifier:  buildClassifier(cfg, chains),
		Enricher:    enrich.New(enrich.Config{Chains: chains}),
		SampleQuery: query,
		SampleState: st,
		Logger:      a.logger,
	}
	if search.google != nil {
		dc.Prober = search.google
		dc.Credentials = search.rotor.Credentials()
	}
	d, err := pipeline.Diagnose(ctx, dc)
	if err != nil {
		return err
	}

	if asJSON {
		enc := json.NewEncoder(a.stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(d)
	}

	w := a.stdout
	if len(d.Credentials) > 0 {
		fmt.Fprintf(w, "Credentials: %d of %d working\n", d.Working(), len(d.Credentials))
		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "#\tKEY\tENGINE ID\tSTATUS\tRESULTS\tDETAIL")
		for _, c := range d.Credentials {
			fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\n", c.Index, c.Key, c.EngineID, c.Status, c.TotalResults, c.Detail)
		}
		if err := tw.Flush(); err != nil {
			return err
		}
		fmt.Fprintln(w)
	}

	if s := d.Sample; s != nil {
		fmt.Fprintf(w, "Sample %q in %s: %d raw, %d accepted\n", s.Query, s.State, s.Raw, s.Accepted)
		if s.Error != "" {
			fmt.Fprintf(w, "  error: %s\n", s.Error)
		}
		for reason, n := range s.Rejected {
			fmt.Fprintf(w, "  rejected %-18s %d\n", reason, n)
		}
		if len(s.Leads) > 0 {
			fmt.Fprintln(w)
			return writeLeadTable(w, s.Leads)
		}
	}
	return nil
}
