package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/daybook/pkg/schema"
	"github.com/mesh-intelligence/daybook/pkg/types"
)

var fixedNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s := NewStore()
	s.now = func() time.Time { return fixedNow }
	require.NoError(t, s.Open(context.Background(), types.Config{
		Backend: types.BackendSQLite,
		DataDir: t.TempDir(),
	}))
	t.Cleanup(func() { s.Close() })
	return s
}

func sampleRecord(day int) *types.Record {
	rec := types.NewRecord(types.NewDate(2026, time.January, day))
	rec.Mood = "Calm"
	rec.StressLevel = types.Ptr(3)
	rec.SleepHours = types.Ptr(7.5)
	rec.Bedtime = types.Ptr(time.Date(2026, 1, day, 23, 10, 0, 0, time.UTC))
	rec.Emotions = []string{"happy", "tired"}
	rec.Exercised = true
	rec.NextAppointment = types.Ptr(types.NewDate(2026, time.February, 1))
	rec.Notes = `He said "hi", then left.`
	rec.Attributes = map[string]string{"q1": "yes", "q2": "a=b|c"}
	rec.CreatedAt = time.Date(2026, 1, day, 20, 0, 0, 0, time.UTC)
	rec.UpdatedAt = rec.CreatedAt
	return &rec
}

func TestOpenClose(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	cfg := types.Config{Backend: types.BackendSQLite, DataDir: t.TempDir()}

	require.NoError(t, s.Open(ctx, cfg))
	assert.ErrorIs(t, s.Open(ctx, cfg), types.ErrAlreadyOpen)
	assert.NotEmpty(t, s.Path())

	v, err := s.SchemaVersion(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, v)

	require.NoError(t, s.Close())
	require.NoError(t, s.Close(), "close is idempotent")

	_, err = s.AllOrderedByDate(ctx)
	assert.ErrorIs(t, err, types.ErrStoreClosed)
	_, err = s.Upsert(ctx, sampleRecord(1))
	assert.ErrorIs(t, err, types.ErrStoreClosed)

	// Reopening runs no migrations and keeps data.
	require.NoError(t, s.Open(ctx, cfg))
	defer s.Close()
	v, err = s.SchemaVersion(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, v)
}

func TestOpenInvalidConfig(t *testing.T) {
	s := NewStore()
	err := s.Open(context.Background(), types.Config{DataDir: t.TempDir()})
	assert.ErrorIs(t, err, types.ErrBackendEmpty)
}

func TestSchemaHasEveryColumn(t *testing.T) {
	s := newTestStore(t)
	rows, err := s.db.Query("SELECT name FROM pragma_table_info('records')")
	require.NoError(t, err)
	defer rows.Close()

	have := map[string]bool{}
	for rows.Next() {
		var name string
		require.NoError(t, rows.Scan(&name))
		have[name] = true
	}
	require.NoError(t, rows.Err())

	for _, c := range schema.Columns {
		if c.Kind == schema.KindMap {
			continue
		}
		assert.True(t, have[snakeCase(c.Name)], "records table lacks %s", snakeCase(c.Name))
	}
}

func TestSnakeCase(t *testing.T) {
	tests := map[string]string{
		"date":               "date",
		"stressLevel":        "stress_level",
		"wokeUpAtNight":      "woke_up_at_night",
		"weightKg":           "weight_kg",
		"routineCheckPassed": "routine_check_passed",
	}
	for in, want := range tests {
		assert.Equal(t, want, snakeCase(in))
	}
}

func TestUpsertAndGet(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	rec := sampleRecord(5)
	id, err := s.Upsert(ctx, rec)
	require.NoError(t, err)
	assert.Positive(t, id)
	assert.Equal(t, id, rec.ID)

	got, err := s.GetByDate(ctx, rec.Date)
	require.NoError(t, err)
	assert.Equal(t, *rec, *got)
}

func TestUpsertFillsTimestamps(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	rec := types.NewRecord(types.NewDate(2026, time.January, 1))
	_, err := s.Upsert(ctx, &rec)
	require.NoError(t, err)
	assert.Equal(t, fixedNow, rec.CreatedAt)
	assert.Equal(t, fixedNow, rec.UpdatedAt)

	got, err := s.GetByDate(ctx, rec.Date)
	require.NoError(t, err)
	assert.True(t, got.CreatedAt.Equal(fixedNow))
	assert.True(t, got.RoutineCheckPassed)
	assert.Nil(t, got.Attributes)
}

func TestUpsertSameDateReplaces(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	first := sampleRecord(2)
	id1, err := s.Upsert(ctx, first)
	require.NoError(t, err)

	second := sampleRecord(2)
	second.Mood = "Tense"
	second.StressLevel = nil
	second.Attributes = map[string]string{"q2": "changed", "q3": "new"}
	id2, err := s.Upsert(ctx, second)
	require.NoError(t, err)
	assert.Equal(t, id1, id2, "one record per date")

	got, err := s.GetByDate(ctx, first.Date)
	require.NoError(t, err)
	assert.Equal(t, "Tense", got.Mood)
	assert.Nil(t, got.StressLevel)
	assert.Equal(t, map[string]string{"q1": "yes", "q2": "changed", "q3": "new"}, got.Attributes,
		"omitted keys are kept")

	all, err := s.AllOrderedByDate(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestUpsertNeverMovesUpdatedAtBackwards(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	newer := sampleRecord(4)
	newer.UpdatedAt = time.Date(2026, 2, 10, 8, 0, 0, 0, time.UTC)
	_, err := s.Upsert(ctx, newer)
	require.NoError(t, err)

	older := sampleRecord(4)
	older.Mood = "Tense"
	older.UpdatedAt = time.Date(2026, 1, 4, 21, 0, 0, 0, time.UTC)
	_, err = s.Upsert(ctx, older)
	require.NoError(t, err)
	assert.Equal(t, newer.UpdatedAt, older.UpdatedAt, "caller sees the stored time")

	got, err := s.GetByDate(ctx, newer.Date)
	require.NoError(t, err)
	assert.Equal(t, "Tense", got.Mood, "fields still replaced")
	assert.True(t, got.UpdatedAt.Equal(newer.UpdatedAt))

	later := sampleRecord(4)
	later.UpdatedAt = time.Date(2026, 2, 11, 9, 30, 0, 0, time.UTC)
	_, err = s.Upsert(ctx, later)
	require.NoError(t, err)
	got, err = s.GetByDate(ctx, newer.Date)
	require.NoError(t, err)
	assert.True(t, got.UpdatedAt.Equal(later.UpdatedAt))
}

func TestUpsertIdempotentOverlay(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	for i := 0; i < 2; i++ {
		_, err := s.Upsert(ctx, sampleRecord(3))
		require.NoError(t, err)
	}
	var n int
	require.NoError(t, s.db.QueryRow("SELECT COUNT(*) FROM record_attributes").Scan(&n))
	assert.Equal(t, 2, n)
}

func TestUpsertInvalid(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	_, err := s.Upsert(ctx, &types.Record{})
	assert.ErrorIs(t, err, types.ErrInvalidDate)

	rec := sampleRecord(1)
	rec.Attributes = map[string]string{"": "x"}
	_, err = s.Upsert(ctx, rec)
	assert.Error(t, err)

	all, err := s.AllOrderedByDate(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestUpsertAtomic(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	// Break the attribute table so the second half of the upsert fails.
	_, err := s.db.Exec("DROP TABLE record_attributes")
	require.NoError(t, err)

	_, err = s.Upsert(ctx, sampleRecord(4))
	require.Error(t, err)

	var n int
	require.NoError(t, s.db.QueryRow("SELECT COUNT(*) FROM records").Scan(&n))
	assert.Zero(t, n, "record insert must roll back with the attribute failure")
}

func TestGetByDateNotFound(t *testing.T) {
	s := newTestStore(t)
	_, err := s.GetByDate(context.Background(), types.NewDate(2026, time.January, 1))
	assert.ErrorIs(t, err, types.ErrNotFound)
	_, err = s.GetByDate(context.Background(), types.Date{})
	assert.ErrorIs(t, err, types.ErrInvalidDate)
}

func TestDelete(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	rec := sampleRecord(6)
	_, err := s.Upsert(ctx, rec)
	require.NoError(t, err)

	require.NoError(t, s.Delete(ctx, rec))
	_, err = s.GetByDate(ctx, rec.Date)
	assert.ErrorIs(t, err, types.ErrNotFound)

	attrs, err := s.AttributesForRecord(ctx, rec.ID)
	require.NoError(t, err)
	assert.Empty(t, attrs)

	assert.ErrorIs(t, s.Delete(ctx, rec), types.ErrNotFound)
}

func TestAllOrderedByDate(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	for _, d := range []int{9, 2, 5} {
		_, err := s.Upsert(ctx, sampleRecord(d))
		require.NoError(t, err)
	}
	all, err := s.AllOrderedByDate(ctx)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, 2, all[0].Date.Day)
	assert.Equal(t, 5, all[1].Date.Day)
	assert.Equal(t, 9, all[2].Date.Day)
	for _, r := range all {
		assert.Nil(t, r.Attributes, "list excludes the overlay")
	}

	dates, err := s.Dates(ctx)
	require.NoError(t, err)
	assert.Equal(t, []types.Date{all[0].Date, all[1].Date, all[2].Date}, dates)
}

func TestAttributes(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	rec := sampleRecord(7)
	rec.Attributes = nil
	id, err := s.Upsert(ctx, rec)
	require.NoError(t, err)

	attrs, err := s.AttributesForRecord(ctx, id)
	require.NoError(t, err)
	assert.NotNil(t, attrs)
	assert.Empty(t, attrs)

	require.NoError(t, s.UpsertAttributes(ctx, id, map[string]string{"q1": "a", "q2": "b"}))
	require.NoError(t, s.UpsertAttributes(ctx, id, map[string]string{"q2": "c"}))
	attrs, err = s.AttributesForRecord(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"q1": "a", "q2": "c"}, attrs)

	require.NoError(t, s.DeleteAttribute(ctx, id, "q1"))
	require.NoError(t, s.DeleteAttribute(ctx, id, "missing"))
	attrs, err = s.AttributesForRecord(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"q2": "c"}, attrs)

	assert.ErrorIs(t, s.UpsertAttributes(ctx, id+100, map[string]string{"q": "x"}), types.ErrNotFound)
	_, err = s.AttributesForRecord(ctx, 0)
	assert.ErrorIs(t, err, types.ErrInvalidID)
}

func TestForeignKeyCascade(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	rec := sampleRecord(8)
	id, err := s.Upsert(ctx, rec)
	require.NoError(t, err)

	_, err = s.db.Exec("DELETE FROM records WHERE id = ?", id)
	require.NoError(t, err)

	var n int
	require.NoError(t, s.db.QueryRow("SELECT COUNT(*) FROM record_attributes").Scan(&n))
	assert.Zero(t, n)
}

func TestSubscribe(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s := newTestStore(t)

	ch, err := s.Subscribe(ctx)
	require.NoError(t, err)

	initial := receive(t, ch)
	assert.Empty(t, initial)

	_, err = s.Upsert(ctx, sampleRecord(1))
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		select {
		case got := <-ch:
			return len(got) == 1
		default:
			return false
		}
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	require.Eventually(t, func() bool {
		select {
		case _, ok := <-ch:
			return !ok
		default:
			return false
		}
	}, 2*time.Second, 10*time.Millisecond)
}

func TestSubscribeEndsOnClose(t *testing.T) {
	s := newTestStore(t)
	ch, err := s.Subscribe(context.Background())
	require.NoError(t, err)
	receive(t, ch)

	require.NoError(t, s.Close())
	select {
	case _, ok := <-ch:
		assert.False(t, ok)
	case <-time.After(2 * time.Second):
		t.Fatal("subscription not closed")
	}
}

func receive(t *testing.T, ch <-chan []types.Record) []types.Record {
	t.Helper()
	select {
	case got, ok := <-ch:
		require.True(t, ok)
		return got
	case <-time.After(2 * time.Second):
		t.Fatal("no delivery")
		return nil
	}
}

func TestStreakState(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	st, err := s.LoadStreak(ctx)
	require.NoError(t, err)
	assert.Equal(t, types.StreakState{}, st)

	last := types.NewDate(2026, time.January, 2)
	want := types.StreakState{Current: 2, Longest: 5, LastDate: &last}
	require.NoError(t, s.SaveStreak(ctx, want))
	st, err = s.LoadStreak(ctx)
	require.NoError(t, err)
	assert.Equal(t, want, st)

	require.NoError(t, s.SaveStreak(ctx, types.StreakState{Longest: 5}))
	st, err = s.LoadStreak(ctx)
	require.NoError(t, err)
	assert.Nil(t, st.LastDate)
}

func TestFromSQLRejectsUnexpected(t *testing.T) {
	_, err := fromSQL(schema.KindInt, "seven")
	assert.ErrorIs(t, err, errUnexpectedType)
	_, err = fromSQL(schema.KindDateTime, "yesterday")
	assert.ErrorIs(t, err, errUnexpectedType)

	v, err := fromSQL(schema.KindText, []byte("bytes"))
	require.NoError(t, err)
	assert.Equal(t, schema.Text("bytes"), v)
}
