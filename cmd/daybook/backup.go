// Implements: daybook backup and daybook restore.
package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/daybook/internal/sqlite"
)

func newBackupCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "backup DIR",
		Short: "Write a JSONL snapshot of the database to DIR",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.open(cmd.Context()); err != nil {
				return err
			}
			stats, err := a.store.Snapshot(cmd.Context(), args[0])
			if err != nil {
				return sysError(err)
			}
			return printStats(a, "backed up", stats)
		},
	}
}

func newRestoreCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "restore DIR",
		Short: "Replace the database contents with a snapshot from DIR",
		Long: `Replaces every entry, rotating answer and the streak with the snapshot in
DIR, in one transaction. Malformed snapshot lines are skipped and counted.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.open(cmd.Context()); err != nil {
				return err
			}
			stats, err := a.store.Restore(cmd.Context(), args[0])
			if errors.Is(err, sqlite.ErrNoSnapshot) {
				return userError("restore %s: %v", args[0], err)
			}
			if err != nil {
				return sysError(err)
			}
			return printStats(a, "restored", stats)
		},
	}
}

func printStats(a *app, verb string, stats sqlite.SnapshotStats) error {
	if a.flagJSON {
		return printJSON(a.stdout, stats)
	}
	fmt.Fprintf(a.stdout, "%s %s, %s", verb, plural(stats.Records, "record"), plural(stats.Attributes, "answer"))
	if stats.Skipped > 0 {
		fmt.Fprintf(a.stdout, " (%s skipped)", plural(stats.Skipped, "line"))
	}
	fmt.Fprintln(a.stdout)
	return nil
}
