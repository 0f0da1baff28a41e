// Package overlay converts between the attribute rows a store keeps per
// record and the single key/value map a record carries on the wire.
//
// Writes are upserts by key. A key missing from an incoming map is left
// alone; removing a key takes an explicit delete.
package overlay

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/mesh-intelligence/daybook/pkg/types"
)

// ErrInvalidKey is returned for keys that cannot round-trip through the
// overlay cell.
var ErrInvalidKey = errors.New("invalid attribute key")

// Loader reads the overlay of one record. types.RecordStore satisfies it.
type Loader interface {
	AttributesForRecord(ctx context.Context, recordID int64) (map[string]string, error)
}

// ValidKey reports whether key is usable: non-empty, no surrounding space,
// and no line breaks.
func ValidKey(key string) error {
	if key == "" || strings.TrimSpace(key) != key {
		return fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	if strings.ContainsAny(key, "\r\n") {
		return fmt.Errorf("%w: %q contains a line break", ErrInvalidKey, key)
	}
	return nil
}

// Flatten folds rows into a map. Later rows win on duplicate keys.
func Flatten(rows []types.AttributeRow) map[string]string {
	m := make(map[string]string, len(rows))
	for _, r := range rows {
		m[r.Key] = r.Value
	}
	return m
}

// Rows expands attrs into rows for recordID, ordered by key.
func Rows(recordID int64, attrs map[string]string) []types.AttributeRow {
	keys := sortedKeys(attrs)
	rows := make([]types.AttributeRow, len(keys))
	for i, k := range keys {
		rows[i] = types.AttributeRow{RecordID: recordID, Key: k, Value: attrs[k]}
	}
	return rows
}

// Attach loads and sets the overlay of every record that has an ID.
func Attach(ctx context.Context, l Loader, records []types.Record) error {
	for i := range records {
		if records[i].ID == 0 {
			continue
		}
		attrs, err := l.AttributesForRecord(ctx, records[i].ID)
		if err != nil {
			return fmt.Errorf("loading attributes for %s: %w", records[i].Date, err)
		}
		if len(attrs) == 0 {
			records[i].Attributes = nil
			continue
		}
		records[i].Attributes = attrs
	}
	return nil
}

// Split separates a record into its fixed columns and its overlay. The
// returned map is a copy.
func Split(rec types.Record) (types.Record, map[string]string) {
	attrs := Copy(rec.Attributes)
	rec.Attributes = nil
	return rec, attrs
}

// Merge returns the overlay after upserting incoming into existing. Neither
// argument is modified.
func Merge(existing, incoming map[string]string) map[string]string {
	out := make(map[string]string, len(existing)+len(incoming))
	for k, v := range existing {
		out[k] = v
	}
	for k, v := range incoming {
		out[k] = v
	}
	return out
}

// Diff returns the subset of incoming that is new or differs from existing.
// Upserting only the diff leaves the same result as upserting incoming.
func Diff(existing, incoming map[string]string) map[string]string {
	out := make(map[string]string)
	for k, v := range incoming {
		if old, ok := existing[k]; ok && old == v {
			continue
		}
		out[k] = v
	}
	return out
}

// Validate checks every key of attrs.
func Validate(attrs map[string]string) error {
	for _, k := range sortedKeys(attrs) {
		if err := ValidKey(k); err != nil {
			return err
		}
	}
	return nil
}

// Copy returns a copy of m, or nil when m is empty.
func Copy(m map[string]string) map[string]string {
	if len(m) == 0 {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
