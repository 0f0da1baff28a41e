// Implements: daybook export.
package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
)

func newExportCmd(a *app) *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export every entry as an interchange file",
		Long: `Writes every entry, oldest first, with its rotating answers. Without --out
the file is written to stdout. With --out it is written atomically: the
target is either fully replaced or left untouched.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.open(cmd.Context()); err != nil {
				return err
			}
			if out == "" {
				text, err := a.svc.ExportAll(cmd.Context())
				if err != nil {
					return sysError(err)
				}
				_, err = io.WriteString(a.stdout, text)
				return err
			}
			n, err := a.svc.ExportToFile(cmd.Context(), out)
			if err != nil {
				return sysError(err)
			}
			if a.flagJSON {
				return printJSON(a.stdout, map[string]any{"path": out, "records": n})
			}
			fmt.Fprintf(a.stdout, "exported %s to %s\n", plural(n, "record"), out)
			return nil
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "", "write to this file instead of stdout")
	return cmd
}
