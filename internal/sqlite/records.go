package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/mesh-intelligence/daybook/internal/logger"
	"github.com/mesh-intelligence/daybook/pkg/overlay"
	"github.com/mesh-intelligence/daybook/pkg/types"
)

var _ types.RecordStore = (*Store)(nil)

// GetByDate returns the record for date with its overlay attached.
func (s *Store) GetByDate(ctx context.Context, date types.Date) (*types.Record, error) {
	if date.IsZero() {
		return nil, types.ErrInvalidDate
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.open {
		return nil, types.ErrStoreClosed
	}

	rec, err := scanRecord(s.db.QueryRowContext(ctx, selectRecordSQL+" WHERE date = ?", date.String()))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, types.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting record %s: %w", date, err)
	}
	attrs, err := loadAttributes(ctx, s.db, rec.ID)
	if err != nil {
		return nil, err
	}
	rec.Attributes = overlay.Copy(attrs)
	return &rec, nil
}

// Upsert inserts rec or replaces the record with the same date, and upserts
// rec.Attributes by key, all in one transaction. Zero timestamps are set to
// the current time. A replace never moves the stored UpdatedAt backwards.
// rec.ID and the timestamps are updated in place with the stored values.
func (s *Store) Upsert(ctx context.Context, rec *types.Record) (int64, error) {
	if rec == nil || rec.Date.IsZero() {
		return 0, types.ErrInvalidDate
	}
	fixed, attrs := overlay.Split(*rec)
	if err := overlay.Validate(attrs); err != nil {
		return 0, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.open {
		return 0, types.ErrStoreClosed
	}

	now := s.now().UTC().Truncate(time.Second)
	if fixed.CreatedAt.IsZero() {
		fixed.CreatedAt = now
	}
	if fixed.UpdatedAt.IsZero() {
		fixed.UpdatedAt = now
	}

	var (
		id      int64
		updated string
	)
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if err := tx.QueryRowContext(ctx, upsertRecordSQL, recordArgs(&fixed)...).Scan(&id, &updated); err != nil {
			return fmt.Errorf("upserting record %s: %w", fixed.Date, err)
		}
		return upsertAttributes(ctx, tx, id, attrs)
	})
	if err != nil {
		return 0, err
	}
	s.notifyChanged()

	if t, perr := time.Parse(storedTimeLayout, updated); perr == nil {
		fixed.UpdatedAt = t
	}

	rec.ID = id
	rec.CreatedAt = fixed.CreatedAt
	rec.UpdatedAt = fixed.UpdatedAt
	logger.Debug("record upserted", "date", fixed.Date, "id", id, "attributes", len(attrs))
	return id, nil
}

// Delete removes the record with rec.Date and its overlay.
func (s *Store) Delete(ctx context.Context, rec *types.Record) error {
	if rec == nil || rec.Date.IsZero() {
		return types.ErrInvalidDate
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.open {
		return types.ErrStoreClosed
	}

	date := rec.Date.String()
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			"DELETE FROM record_attributes WHERE record_id IN (SELECT id FROM records WHERE date = ?)", date); err != nil {
			return fmt.Errorf("deleting attributes of %s: %w", date, err)
		}
		res, err := tx.ExecContext(ctx, "DELETE FROM records WHERE date = ?", date)
		if err != nil {
			return fmt.Errorf("deleting record %s: %w", date, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("deleting record %s: %w", date, err)
		}
		if n == 0 {
			return types.ErrNotFound
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.notifyChanged()
	return nil
}

// AllOrderedByDate returns every record, oldest first, without attributes.
func (s *Store) AllOrderedByDate(ctx context.Context) ([]types.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.open {
		return nil, types.ErrStoreClosed
	}
	return queryRecords(ctx, s.db)
}

type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func queryRecords(ctx context.Context, q querier) ([]types.Record, error) {
	rows, err := q.QueryContext(ctx, selectRecordSQL+" ORDER BY date")
	if err != nil {
		return nil, fmt.Errorf("listing records: %w", err)
	}
	defer rows.Close()

	var out []types.Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing records: %w", err)
	}
	return out, nil
}

// Dates returns the date of every record, oldest first.
func (s *Store) Dates(ctx context.Context) ([]types.Date, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.open {
		return nil, types.ErrStoreClosed
	}

	rows, err := s.db.QueryContext(ctx, "SELECT date FROM records ORDER BY date")
	if err != nil {
		return nil, fmt.Errorf("listing dates: %w", err)
	}
	defer rows.Close()

	var out []types.Date
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("listing dates: %w", err)
		}
		d, err := types.ParseDate(raw)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// Subscribe sends the full record list now and again after every commit.
// Commits that land while the subscriber is busy are coalesced into one
// reload. The channel closes when ctx is done or the store closes.
func (s *Store) Subscribe(ctx context.Context) (<-chan []types.Record, error) {
	s.mu.RLock()
	if !s.open {
		s.mu.RUnlock()
		return nil, types.ErrStoreClosed
	}
	signal := s.changed.SubscribeFrom(ctx, struct{}{})
	s.mu.RUnlock()

	out := make(chan []types.Record)
	go func() {
		defer close(out)
		for range signal {
			records, err := s.AllOrderedByDate(ctx)
			if err != nil {
				if ctx.Err() == nil && !errors.Is(err, types.ErrStoreClosed) {
					logger.Warn("subscription reload failed", "err", err)
				}
				return
			}
			select {
			case out <- records:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}
