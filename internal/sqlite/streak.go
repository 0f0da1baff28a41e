package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/mesh-intelligence/daybook/pkg/streak"
	"github.com/mesh-intelligence/daybook/pkg/types"
)

var _ streak.StateStore = (*Store)(nil)

// LoadStreak returns the stored streak state, or the zero state if none has
// been saved.
func (s *Store) LoadStreak(ctx context.Context) (types.StreakState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.open {
		return types.StreakState{}, types.ErrStoreClosed
	}
	return loadStreak(ctx, s.db)
}

func loadStreak(ctx context.Context, q rowQuerier) (types.StreakState, error) {
	var (
		st   types.StreakState
		last sql.NullString
	)
	err := q.QueryRowContext(ctx,
		"SELECT current, longest, last_date FROM streak_state WHERE id = 1").Scan(&st.Current, &st.Longest, &last)
	if errors.Is(err, sql.ErrNoRows) {
		return types.StreakState{}, nil
	}
	if err != nil {
		return types.StreakState{}, fmt.Errorf("loading streak: %w", err)
	}
	if last.Valid && last.String != "" {
		d, err := types.ParseDate(last.String)
		if err != nil {
			return types.StreakState{}, fmt.Errorf("loading streak: %w", err)
		}
		st.LastDate = &d
	}
	return st, nil
}

// SaveStreak replaces the stored streak state.
func (s *Store) SaveStreak(ctx context.Context, st types.StreakState) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.open {
		return types.ErrStoreClosed
	}
	if _, err := s.db.ExecContext(ctx, upsertStreakSQL, streakArgs(st)...); err != nil {
		return fmt.Errorf("saving streak: %w", err)
	}
	return nil
}

const upsertStreakSQL = `INSERT INTO streak_state (id, current, longest, last_date) VALUES (1, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET current = excluded.current, longest = excluded.longest, last_date = excluded.last_date`

func streakArgs(st types.StreakState) []any {
	var last any
	if st.LastDate != nil {
		last = st.LastDate.String()
	}
	return []any{st.Current, st.Longest, last}
}
