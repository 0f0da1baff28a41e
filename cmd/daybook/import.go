// Implements: daybook import.
package main

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/daybook/pkg/codec"
)

type rejectionJSON struct {
	Line   int    `json:"line"`
	Reason string `json:"reason"`
}

type importJSON struct {
	RunID      string          `json:"run_id"`
	Imported   int             `json:"imported"`
	Rejected   int             `json:"rejected"`
	Rejections []rejectionJSON `json:"rejections"`
}

func newImportCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "import FILE",
		Short: "Import entries from an interchange file",
		Long: `Upserts every valid row of FILE by date. Rows that cannot be parsed or
stored are skipped and reported with their line number; the rest are
imported. Answers already stored under keys the file does not mention are
kept.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.open(cmd.Context()); err != nil {
				return err
			}
			report, err := a.svc.ImportFromFile(cmd.Context(), args[0])
			switch {
			case errors.Is(err, fs.ErrNotExist):
				return userError("import: %v", err)
			case errors.Is(err, codec.ErrUnrecognizedFile):
				return userError("import %s: %v", args[0], err)
			case err != nil && report == nil:
				return sysError(err)
			}

			if a.flagJSON {
				out := importJSON{
					RunID:      report.RunID,
					Imported:   report.Imported,
					Rejected:   report.Rejected,
					Rejections: make([]rejectionJSON, 0, len(report.Rejections)),
				}
				for _, r := range report.Rejections {
					out.Rejections = append(out.Rejections, rejectionJSON{Line: r.Line, Reason: r.Reason.Error()})
				}
				if perr := printJSON(a.stdout, out); perr != nil {
					return perr
				}
			} else {
				for _, r := range report.Rejections {
					fmt.Fprintln(a.stderr, r.String())
				}
				fmt.Fprintf(a.stdout, "imported %s, rejected %s\n",
					plural(report.Imported, "record"), plural(report.Rejected, "row"))
			}
			if err != nil {
				return sysError(err)
			}
			return nil
		},
	}
}
