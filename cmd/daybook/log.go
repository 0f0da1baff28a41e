// Implements: daybook log.
package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/daybook/pkg/overlay"
	"github.com/mesh-intelligence/daybook/pkg/schema"
	"github.com/mesh-intelligence/daybook/pkg/types"
)

// managedColumns are set by the store or the attribute flags, never by --set.
var managedColumns = map[string]bool{
	schema.ColID:         true,
	schema.ColDate:       true,
	schema.ColAttributes: true,
	schema.ColCreatedAt:  true,
	schema.ColUpdatedAt:  true,
}

type logFlags struct {
	date    string
	sets    []string
	attrs   []string
	unset   []string
	notes   string
	noteSet bool
}

func newLogCmd(a *app) *cobra.Command {
	var f logFlags
	cmd := &cobra.Command{
		Use:   "log",
		Short: "Create or update the entry for a date",
		Long: `Loads the entry for --date (default today), applies the changes and saves
it. Columns are set with --set using the same text as an export cell, for
example --set stressLevel=4 --set emotions="calm|tired". Rotating answers
are set with --attr KEY=VALUE and removed with --unset-attr KEY.`,
		Example: `  daybook log --set mood=good --set sleepHours=7.5
  daybook log --date 2026-03-01 --attr q17=yes --notes "long walk"`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			f.noteSet = cmd.Flags().Changed("notes")
			if err := a.open(cmd.Context()); err != nil {
				return err
			}
			return runLog(cmd, a, f)
		},
	}
	cmd.Flags().StringVar(&f.date, "date", "", "entry date, YYYY-MM-DD (default today)")
	cmd.Flags().StringArrayVar(&f.sets, "set", nil, "set a column: NAME=VALUE (repeatable)")
	cmd.Flags().StringArrayVar(&f.attrs, "attr", nil, "set a rotating answer: KEY=VALUE (repeatable)")
	cmd.Flags().StringArrayVar(&f.unset, "unset-attr", nil, "remove a rotating answer (repeatable)")
	cmd.Flags().StringVar(&f.notes, "notes", "", "replace the notes")
	return cmd
}

func runLog(cmd *cobra.Command, a *app, f logFlags) error {
	ctx := cmd.Context()
	date, err := parseDateArg(f.date, a.loc)
	if err != nil {
		return err
	}

	rec, err := a.svc.Get(ctx, date)
	switch {
	case errors.Is(err, types.ErrNotFound):
		fresh := types.NewRecord(date)
		rec = &fresh
	case err != nil:
		return sysError(err)
	}

	if err := applySets(rec, f.sets, a); err != nil {
		return err
	}
	answers := make(map[string]string, len(f.attrs))
	for _, kv := range f.attrs {
		key, value, err := splitAssignment(kv)
		if err != nil {
			return err
		}
		answers[key] = value
	}
	rec.Attributes = overlay.Merge(rec.Attributes, answers)
	if f.noteSet {
		rec.Notes = f.notes
	}

	if err := a.svc.Save(ctx, rec); err != nil {
		return storeError(err)
	}
	for _, key := range f.unset {
		if err := a.svc.RemoveAttribute(ctx, date, key); err != nil {
			return storeError(err)
		}
	}

	if a.flagJSON {
		return printJSON(a.stdout, map[string]any{"date": date.String(), "id": rec.ID})
	}
	fmt.Fprintf(a.stdout, "saved %s\n", date)
	if t := a.svc.Tracker(); t != nil {
		if st, err := t.State(ctx); err == nil {
			fmt.Fprintf(a.stdout, "streak: %d (longest %d)\n", st.Current, st.Longest)
		}
	}
	return nil
}

func applySets(rec *types.Record, sets []string, a *app) error {
	for _, kv := range sets {
		name, text, err := splitAssignment(kv)
		if err != nil {
			return err
		}
		col, ok := schema.Lookup(name)
		if !ok {
			return userError("unknown column %q (see daybook columns)", name)
		}
		if managedColumns[name] {
			return userError("column %q cannot be set with --set", name)
		}
		v, err := col.DecodeCell(text, a.loc)
		if err != nil {
			return userError("%v", err)
		}
		if err := col.Set(rec, v); err != nil {
			return userError("%v", err)
		}
	}
	return nil
}
