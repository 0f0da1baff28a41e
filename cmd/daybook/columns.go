// Implements: daybook columns.
package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/daybook/pkg/schema"
)

type columnInfo struct {
	Name     string   `json:"name"`
	Kind     string   `json:"kind"`
	Required bool     `json:"required,omitempty"`
	Min      *float64 `json:"min,omitempty"`
	Max      *float64 `json:"max,omitempty"`
	Default  string   `json:"default,omitempty"`
}

func newColumnsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "columns",
		Short: "List record columns in export order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			infos := make([]columnInfo, len(schema.Columns))
			for i, c := range schema.Columns {
				info := columnInfo{
					Name:     c.Name,
					Kind:     c.Kind.String(),
					Required: c.Required,
					Default:  schema.Encode(c.Default(), nil),
				}
				if lo, hi, ok := c.Bounds(); ok {
					info.Min, info.Max = &lo, &hi
				}
				infos[i] = info
			}
			if a.flagJSON {
				return printJSON(a.stdout, infos)
			}

			tw := tabwriter.NewWriter(a.stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "NAME\tKIND\tRANGE\tDEFAULT")
			for _, info := range infos {
				rng := ""
				if info.Min != nil {
					rng = fmt.Sprintf("%g..%g", *info.Min, *info.Max)
				}
				if info.Required {
					rng = "required"
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", info.Name, info.Kind, rng, info.Default)
			}
			return tw.Flush()
		},
	}
}
