// Implements: daybook streak.
package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/daybook/pkg/streak"
)

type streakJSON struct {
	Current  int                `json:"current"`
	Longest  int                `json:"longest"`
	LastDate string             `json:"last_date,omitempty"`
	Reached  []streak.Milestone `json:"reached"`
	Next     *streak.Milestone  `json:"next,omitempty"`
}

func newStreakCmd(a *app) *cobra.Command {
	var reset, recompute bool
	cmd := &cobra.Command{
		Use:   "streak",
		Short: "Show the current and longest streak",
		Long: `Shows the number of consecutive days with an entry. --reset zeroes the
current streak and keeps the longest. --recompute rebuilds both from the
stored entry dates.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if reset && recompute {
				return userError("--reset and --recompute are mutually exclusive")
			}
			if err := a.open(cmd.Context()); err != nil {
				return err
			}
			ctx := cmd.Context()
			tracker := a.svc.Tracker()

			var (
				st  streak.State
				err error
			)
			switch {
			case reset:
				st, err = tracker.Reset(ctx)
			case recompute:
				st, err = a.svc.RecomputeStreak(ctx)
			default:
				st, err = tracker.State(ctx)
			}
			if err != nil {
				return sysError(err)
			}

			out := streakJSON{Current: st.Current, Longest: st.Longest, Reached: streak.Reached(st.Longest)}
			if out.Reached == nil {
				out.Reached = []streak.Milestone{}
			}
			if st.LastDate != nil {
				out.LastDate = st.LastDate.String()
			}
			if m, ok := streak.Next(st.Current); ok {
				out.Next = &m
			}
			if a.flagJSON {
				return printJSON(a.stdout, out)
			}

			fmt.Fprintf(a.stdout, "current: %s\n", plural(st.Current, "day"))
			fmt.Fprintf(a.stdout, "longest: %s\n", plural(st.Longest, "day"))
			if out.LastDate != "" {
				fmt.Fprintf(a.stdout, "last entry: %s\n", out.LastDate)
			}
			if out.Next != nil {
				fmt.Fprintf(a.stdout, "next milestone: %s at %s (%d to go)\n",
					out.Next.Label, plural(out.Next.Days, "day"), out.Next.Days-st.Current)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&reset, "reset", false, "zero the current streak")
	cmd.Flags().BoolVar(&recompute, "recompute", false, "rebuild the streak from stored entries")
	return cmd
}
