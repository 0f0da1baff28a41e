package sqlite

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/mesh-intelligence/daybook/internal/fileutil"
	"github.com/mesh-intelligence/daybook/internal/logger"
	"github.com/mesh-intelligence/daybook/pkg/schema"
	"github.com/mesh-intelligence/daybook/pkg/types"
)

// Snapshot file names, in load order.
const (
	RecordsFile    = "records.jsonl"
	AttributesFile = "record_attributes.jsonl"
	StreakFile     = "streak.jsonl"
)

// ErrNoSnapshot is returned by Restore when dir holds no records file.
var ErrNoSnapshot = errors.New("no snapshot found")

// maxLineBytes bounds one JSONL line; notes can be long.
const maxLineBytes = 16 << 20

// SnapshotStats counts what a snapshot or restore handled.
type SnapshotStats struct {
	Records    int `json:"records"`
	Attributes int `json:"attributes"`
	Skipped    int `json:"skipped"`
}

// Snapshot writes every table to JSONL files in dir. Each file is written
// atomically. Records are stored as column name to cell text, with
// date-times in UTC, so a snapshot stays readable without the database.
func (s *Store) Snapshot(ctx context.Context, dir string) (SnapshotStats, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return SnapshotStats{}, fmt.Errorf("creating snapshot dir: %w", err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.open {
		return SnapshotStats{}, types.ErrStoreClosed
	}

	records, err := queryRecords(ctx, s.db)
	if err != nil {
		return SnapshotStats{}, err
	}
	attrs, err := allAttributeRows(ctx, s.db)
	if err != nil {
		return SnapshotStats{}, err
	}
	st, err := loadStreak(ctx, s.db)
	if err != nil {
		return SnapshotStats{}, err
	}

	lines := make([]any, len(records))
	for i := range records {
		lines[i] = recordCells(&records[i])
	}
	if err := writeJSONL(filepath.Join(dir, RecordsFile), lines); err != nil {
		return SnapshotStats{}, err
	}

	lines = make([]any, len(attrs))
	for i := range attrs {
		lines[i] = attrs[i]
	}
	if err := writeJSONL(filepath.Join(dir, AttributesFile), lines); err != nil {
		return SnapshotStats{}, err
	}
	if err := writeJSONL(filepath.Join(dir, StreakFile), []any{st}); err != nil {
		return SnapshotStats{}, err
	}

	logger.Info("snapshot written", "dir", dir, "records", len(records), "attributes", len(attrs))
	return SnapshotStats{Records: len(records), Attributes: len(attrs)}, nil
}

// recordCells renders the fixed columns of rec as wire cells, id included.
func recordCells(rec *types.Record) map[string]string {
	cells := make(map[string]string, len(schema.Columns))
	for _, c := range schema.Columns {
		if c.Kind == schema.KindMap {
			continue
		}
		cells[c.Name] = c.EncodeCell(rec, time.UTC)
	}
	return cells
}

func allAttributeRows(ctx context.Context, q querier) ([]types.AttributeRow, error) {
	rows, err := q.QueryContext(ctx, "SELECT record_id, key, value FROM record_attributes ORDER BY record_id, key")
	if err != nil {
		return nil, fmt.Errorf("listing attributes: %w", err)
	}
	defer rows.Close()

	var out []types.AttributeRow
	for rows.Next() {
		var r types.AttributeRow
		if err := rows.Scan(&r.RecordID, &r.Key, &r.Value); err != nil {
			return nil, fmt.Errorf("listing attributes: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// readJSONL returns each non-empty, well-formed line of path and the number
// of malformed lines skipped. A missing file reads as empty.
func readJSONL(path string) ([]json.RawMessage, int, error) {
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, 0, nil
	}
	if err != nil {
		return nil, 0, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	var (
		lines   []json.RawMessage
		skipped int
	)
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), maxLineBytes)
	for lineNo := 1; scanner.Scan(); lineNo++ {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		if !json.Valid(line) {
			logger.Warn("skipping malformed snapshot line", "file", filepath.Base(path), "line", lineNo)
			skipped++
			continue
		}
		cp := make([]byte, len(line))
		copy(cp, line)
		lines = append(lines, json.RawMessage(cp))
	}
	if err := scanner.Err(); err != nil {
		return nil, skipped, fmt.Errorf("scanning %s: %w", path, err)
	}
	return lines, skipped, nil
}

// writeJSONL atomically writes one JSON value per line.
func writeJSONL(path string, values []any) error {
	return fileutil.WriteAtomic(path, 0o644, func(w io.Writer) error {
		enc := json.NewEncoder(w)
		enc.SetEscapeHTML(false)
		for _, v := range values {
			if err := enc.Encode(v); err != nil {
				return fmt.Errorf("writing %s: %w", filepath.Base(path), err)
			}
		}
		return nil
	})
}
