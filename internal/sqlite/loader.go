package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/mesh-intelligence/daybook/internal/logger"
	"github.com/mesh-intelligence/daybook/pkg/overlay"
	"github.com/mesh-intelligence/daybook/pkg/schema"
	"github.com/mesh-intelligence/daybook/pkg/types"
)

// Restore replaces the database content with the snapshot in dir. Loading
// is transactional: either the whole snapshot lands or nothing changes.
// Malformed lines, records that fail validation, and attributes of unknown
// records are skipped and counted.
func (s *Store) Restore(ctx context.Context, dir string) (SnapshotStats, error) {
	if _, err := os.Stat(filepath.Join(dir, RecordsFile)); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return SnapshotStats{}, fmt.Errorf("%w in %s", ErrNoSnapshot, dir)
		}
		return SnapshotStats{}, err
	}

	recordLines, skippedRecords, err := readJSONL(filepath.Join(dir, RecordsFile))
	if err != nil {
		return SnapshotStats{}, err
	}
	attrLines, skippedAttrs, err := readJSONL(filepath.Join(dir, AttributesFile))
	if err != nil {
		return SnapshotStats{}, err
	}
	streakLines, _, err := readJSONL(filepath.Join(dir, StreakFile))
	if err != nil {
		return SnapshotStats{}, err
	}
	stats := SnapshotStats{Skipped: skippedRecords + skippedAttrs}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.open {
		return SnapshotStats{}, types.ErrStoreClosed
	}

	err = s.withTx(ctx, func(tx *sql.Tx) error {
		for _, table := range []string{"record_attributes", "records", "streak_state"} {
			if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
				return fmt.Errorf("clearing %s: %w", table, err)
			}
		}

		ids, err := insertRecords(ctx, tx, recordLines, &stats)
		if err != nil {
			return err
		}
		if err := insertAttributes(ctx, tx, attrLines, ids, &stats); err != nil {
			return err
		}
		return insertStreak(ctx, tx, streakLines)
	})
	if err != nil {
		return SnapshotStats{}, err
	}
	s.notifyChanged()
	logger.Info("snapshot restored", "dir", dir, "records", stats.Records,
		"attributes", stats.Attributes, "skipped", stats.Skipped)
	return stats, nil
}

func insertRecords(ctx context.Context, tx *sql.Tx, lines []json.RawMessage, stats *SnapshotStats) (map[int64]bool, error) {
	stmt, err := tx.PrepareContext(ctx, insertRecordWithIDSQL)
	if err != nil {
		return nil, fmt.Errorf("preparing record insert: %w", err)
	}
	defer stmt.Close()

	ids := make(map[int64]bool, len(lines))
	for i, line := range lines {
		rec, err := decodeRecordLine(line)
		if err != nil {
			logger.Warn("skipping snapshot record", "index", i, "err", err)
			stats.Skipped++
			continue
		}
		if ids[rec.ID] {
			stats.Skipped++
			continue
		}
		args := append([]any{rec.ID}, recordArgs(&rec)...)
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			// Constraint violations such as a duplicate date.
			logger.Warn("skipping snapshot record", "index", i, "date", rec.Date, "err", err)
			stats.Skipped++
			continue
		}
		ids[rec.ID] = true
		stats.Records++
	}
	return ids, nil
}

// decodeRecordLine parses one records.jsonl line. Unknown keys are ignored;
// missing columns take their defaults.
func decodeRecordLine(line json.RawMessage) (types.Record, error) {
	var cells map[string]string
	if err := json.Unmarshal(line, &cells); err != nil {
		return types.Record{}, err
	}
	id, err := strconv.ParseInt(cells[schema.ColID], 10, 64)
	if err != nil || id <= 0 {
		return types.Record{}, fmt.Errorf("%w: %q", types.ErrInvalidID, cells[schema.ColID])
	}

	rec := types.Record{ID: id}
	for _, c := range recordColumns {
		v := c.Default()
		if cell, ok := cells[c.Name]; ok {
			if v, err = c.DecodeCell(cell, time.UTC); err != nil {
				return types.Record{}, err
			}
		}
		if err := c.Set(&rec, v); err != nil {
			return types.Record{}, err
		}
	}
	if rec.CreatedAt.IsZero() || rec.UpdatedAt.IsZero() {
		return types.Record{}, fmt.Errorf("record %d: missing timestamps", id)
	}
	return rec, nil
}

func insertAttributes(ctx context.Context, tx *sql.Tx, lines []json.RawMessage, ids map[int64]bool, stats *SnapshotStats) error {
	stmt, err := tx.PrepareContext(ctx,
		"INSERT OR REPLACE INTO record_attributes (record_id, key, value) VALUES (?, ?, ?)")
	if err != nil {
		return fmt.Errorf("preparing attribute insert: %w", err)
	}
	defer stmt.Close()

	for _, line := range lines {
		var row types.AttributeRow
		if err := json.Unmarshal(line, &row); err != nil || !ids[row.RecordID] || overlay.ValidKey(row.Key) != nil {
			stats.Skipped++
			continue
		}
		if _, err := stmt.ExecContext(ctx, row.RecordID, row.Key, row.Value); err != nil {
			return fmt.Errorf("restoring attribute %q: %w", row.Key, err)
		}
		stats.Attributes++
	}
	return nil
}

// insertStreak restores the first well-formed streak line, if any.
func insertStreak(ctx context.Context, tx *sql.Tx, lines []json.RawMessage) error {
	for _, line := range lines {
		var st types.StreakState
		if err := json.Unmarshal(line, &st); err != nil {
			continue
		}
		if st.Longest < st.Current {
			st.Longest = st.Current
		}
		if _, err := tx.ExecContext(ctx, upsertStreakSQL, streakArgs(st)...); err != nil {
			return fmt.Errorf("restoring streak: %w", err)
		}
		return nil
	}
	return nil
}
