package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/mesh-intelligence/daybook/pkg/overlay"
	"github.com/mesh-intelligence/daybook/pkg/types"
)

// AttributesForRecord returns the overlay of one record. The map is never
// nil; a record without attributes, or an unknown ID, yields an empty map.
func (s *Store) AttributesForRecord(ctx context.Context, recordID int64) (map[string]string, error) {
	if recordID <= 0 {
		return nil, types.ErrInvalidID
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.open {
		return nil, types.ErrStoreClosed
	}
	return loadAttributes(ctx, s.db, recordID)
}

// UpsertAttributes writes attrs for an existing record.
func (s *Store) UpsertAttributes(ctx context.Context, recordID int64, attrs map[string]string) error {
	if recordID <= 0 {
		return types.ErrInvalidID
	}
	if err := overlay.Validate(attrs); err != nil {
		return err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.open {
		return types.ErrStoreClosed
	}

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if err := requireRecord(ctx, tx, recordID); err != nil {
			return err
		}
		return upsertAttributes(ctx, tx, recordID, attrs)
	})
	if err != nil {
		return err
	}
	s.notifyChanged()
	return nil
}

// DeleteAttribute removes one overlay key. Missing keys are not an error.
func (s *Store) DeleteAttribute(ctx context.Context, recordID int64, key string) error {
	if recordID <= 0 {
		return types.ErrInvalidID
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.open {
		return types.ErrStoreClosed
	}

	res, err := s.db.ExecContext(ctx,
		"DELETE FROM record_attributes WHERE record_id = ? AND key = ?", recordID, key)
	if err != nil {
		return fmt.Errorf("deleting attribute %q: %w", key, err)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		s.notifyChanged()
	}
	return nil
}

type rowQuerier interface {
	querier
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func loadAttributes(ctx context.Context, q querier, recordID int64) (map[string]string, error) {
	rows, err := q.QueryContext(ctx,
		"SELECT key, value FROM record_attributes WHERE record_id = ? ORDER BY key", recordID)
	if err != nil {
		return nil, fmt.Errorf("loading attributes of record %d: %w", recordID, err)
	}
	defer rows.Close()

	var list []types.AttributeRow
	for rows.Next() {
		row := types.AttributeRow{RecordID: recordID}
		if err := rows.Scan(&row.Key, &row.Value); err != nil {
			return nil, fmt.Errorf("loading attributes of record %d: %w", recordID, err)
		}
		list = append(list, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("loading attributes of record %d: %w", recordID, err)
	}
	return overlay.Flatten(list), nil
}

// upsertAttributes writes only the keys whose value differs from what is
// stored. Keys not in attrs are untouched.
func upsertAttributes(ctx context.Context, tx *sql.Tx, recordID int64, attrs map[string]string) error {
	if len(attrs) == 0 {
		return nil
	}
	existing, err := loadAttributes(ctx, tx, recordID)
	if err != nil {
		return err
	}
	changed := overlay.Diff(existing, attrs)
	if len(changed) == 0 {
		return nil
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO record_attributes (record_id, key, value) VALUES (?, ?, ?)
		ON CONFLICT(record_id, key) DO UPDATE SET value = excluded.value`)
	if err != nil {
		return fmt.Errorf("preparing attribute upsert: %w", err)
	}
	defer stmt.Close()

	for _, row := range overlay.Rows(recordID, changed) {
		if _, err := stmt.ExecContext(ctx, row.RecordID, row.Key, row.Value); err != nil {
			return fmt.Errorf("upserting attribute %q: %w", row.Key, err)
		}
	}
	return nil
}

func requireRecord(ctx context.Context, q rowQuerier, recordID int64) error {
	var one int
	err := q.QueryRowContext(ctx, "SELECT 1 FROM records WHERE id = ?", recordID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return types.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("looking up record %d: %w", recordID, err)
	}
	return nil
}
