package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/FranksOps/signlead/internal/lead"
	"github.com/FranksOps/signlead/internal/storage"
)

func newLeadsCmd(a *app) *cobra.Command {
	var (
		filter storage.Filter
		temp   string
		since  time.Duration
		asJSON bool
	)
	cmd := &cobra.Command{
		Use:   "leads",
		Short: "Query the raw lead snapshot",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			switch lead.Temperature(temp) {
			case "", lead.Hot, lead.Warm:
				filter.Temperature = lead.Temperature(temp)
			default:
				return fmt.Errorf("--temp must be hot or warm, got %q", temp)
			}
			if filter.State != "" {
				st, ok := lead.LookupState(filter.State)
				if !ok {
					return fmt.Errorf("unknown state %q", filter.State)
				}
				filter.State = st.Name
			}
			if since > 0 {
				t := time.Now().Add(-since)
				filter.Since = &t
			}

			store, err := openBackend(cmd.Context(), a.cfg)
			if err != nil {
				return err
			}
			if store == nil {
				return errors.New("no snapshot store configured (store.backend=none)")
			}
			defer store.Close()

			leads, err := store.Query(cmd.Context(), filter)
			if err != nil {
				return err
			}
			if asJSON {
				enc := json.NewEncoder(a.stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(leads)
			}
			rows := make([]lead.Lead, len(leads))
			for i, l := range leads {
				rows[i] = *l
			}
			return writeLeadTable(a.stdout, rows)
		},
	}
	f := cmd.Flags()
	f.StringVar(&filter.State, "state", "", "only leads for this state (name or code)")
	f.StringVar(&temp, "temp", "", "only hot or warm leads")
	f.DurationVar(&since, "since", 0, "only leads discovered within this long, e.g. 168h")
	f.IntVar(&filter.Limit, "limit", 50, "maximum leads to print, 0 for all")
	f.IntVar(&filter.Offset, "offset", 0, "skip this many leads")
	f.BoolVar(&asJSON, "json", false, "print leads as JSON")
	return cmd
}
