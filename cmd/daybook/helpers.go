// Shared helpers for daybook commands.
package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/mesh-intelligence/daybook/pkg/codec"
	"github.com/mesh-intelligence/daybook/pkg/overlay"
	"github.com/mesh-intelligence/daybook/pkg/schema"
	"github.com/mesh-intelligence/daybook/pkg/types"
)

// printJSON writes v as indented JSON.
func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}

// parseDateArg parses a YYYY-MM-DD argument. "today" and "yesterday" are
// resolved in loc.
func parseDateArg(s string, loc *time.Location) (types.Date, error) {
	switch strings.ToLower(s) {
	case "", "today":
		return types.Today(loc), nil
	case "yesterday":
		return types.Today(loc).AddDays(-1), nil
	}
	d, err := types.ParseDate(s)
	if err != nil {
		return types.Date{}, userError("invalid date %q: expected YYYY-MM-DD", s)
	}
	return d, nil
}

// splitAssignment splits "name=value" at the first '='.
func splitAssignment(s string) (string, string, error) {
	name, value, ok := strings.Cut(s, "=")
	if !ok || name == "" {
		return "", "", userError("expected name=value, got %q", s)
	}
	return name, value, nil
}

// recordCells renders every non-empty column of rec as cell text, keyed by
// column name.
func recordCells(rec *types.Record, loc *time.Location) []cell {
	cells := make([]cell, 0, len(schema.Columns))
	for _, c := range schema.Columns {
		if c.Name == schema.ColAttributes {
			continue
		}
		text := c.EncodeCell(rec, loc)
		if text == "" {
			continue
		}
		cells = append(cells, cell{Name: c.Name, Value: text})
	}
	return cells
}

type cell struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// storeError classifies a store or service error for the exit code.
func storeError(err error) error {
	switch {
	case errors.Is(err, types.ErrNotFound),
		errors.Is(err, types.ErrInvalidDate),
		errors.Is(err, codec.ErrUnrecognizedFile),
		errors.Is(err, overlay.ErrInvalidKey):
		return userError("%v", err)
	}
	var fe *schema.FieldError
	if errors.As(err, &fe) {
		return userError("%v", err)
	}
	return sysError(err)
}

func plural(n int, word string) string {
	if n == 1 {
		return fmt.Sprintf("%d %s", n, word)
	}
	return fmt.Sprintf("%d %ss", n, word)
}
