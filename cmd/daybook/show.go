// Implements: daybook show.
package main

import (
	"fmt"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

type showJSON struct {
	Date       string            `json:"date"`
	Columns    []cell            `json:"columns"`
	Attributes map[string]string `json:"attributes"`
}

func newShowCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "show [DATE]",
		Short: "Show the entry for a date (default today)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.open(cmd.Context()); err != nil {
				return err
			}
			arg := ""
			if len(args) == 1 {
				arg = args[0]
			}
			date, err := parseDateArg(arg, a.loc)
			if err != nil {
				return err
			}
			rec, err := a.svc.Get(cmd.Context(), date)
			if err != nil {
				return storeError(err)
			}

			cells := recordCells(rec, a.loc)
			if a.flagJSON {
				attrs := rec.Attributes
				if attrs == nil {
					attrs = map[string]string{}
				}
				return printJSON(a.stdout, showJSON{Date: date.String(), Columns: cells, Attributes: attrs})
			}

			tw := tabwriter.NewWriter(a.stdout, 0, 4, 2, ' ', 0)
			for _, c := range cells {
				fmt.Fprintf(tw, "%s\t%s\n", c.Name, c.Value)
			}
			keys := make([]string, 0, len(rec.Attributes))
			for k := range rec.Attributes {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			for _, k := range keys {
				fmt.Fprintf(tw, "@%s\t%s\n", k, rec.Attributes[k])
			}
			return tw.Flush()
		},
	}
}
