// Implements: daybook delete.
package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newDeleteCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "delete DATE",
		Short: "Delete the entry for a date and its rotating answers",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.open(cmd.Context()); err != nil {
				return err
			}
			date, err := parseDateArg(args[0], a.loc)
			if err != nil {
				return err
			}
			if err := a.svc.Delete(cmd.Context(), date); err != nil {
				return storeError(err)
			}
			fmt.Fprintf(a.stdout, "deleted %s\n", date)
			return nil
		},
	}
}
