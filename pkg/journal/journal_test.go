package journal

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/daybook/internal/sqlite"
	"github.com/mesh-intelligence/daybook/pkg/codec"
	"github.com/mesh-intelligence/daybook/pkg/streak"
	"github.com/mesh-intelligence/daybook/pkg/types"
)

var clock = time.Date(2026, 1, 10, 9, 30, 0, 0, time.UTC)

func newTestService(t *testing.T) (*Service, *sqlite.Store) {
	t.Helper()
	store, err := sqlite.OpenStore(context.Background(), types.Config{
		Backend: types.BackendSQLite,
		DataDir: t.TempDir(),
	})
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	svc := New(store,
		WithTracker(streak.NewTracker(store)),
		WithLocation(time.UTC),
		WithClock(func() time.Time { return clock }),
	)
	return svc, store
}

func entry(day int) *types.Record {
	rec := types.NewRecord(types.NewDate(2026, time.January, day))
	rec.Mood = "Calm"
	rec.FocusLevel = types.Ptr(6)
	rec.Emotions = []string{"A", "B"}
	rec.Notes = `He said "hi", then left.`
	rec.Attributes = map[string]string{"q1": "yes", "q9": "x=y"}
	return &rec
}

func TestSaveSetsTimestamps(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	rec := entry(1)
	require.NoError(t, svc.Save(ctx, rec))
	assert.Positive(t, rec.ID)
	assert.Equal(t, clock, rec.CreatedAt)
	assert.Equal(t, clock, rec.UpdatedAt)

	later := clock.Add(time.Hour)
	svc.now = func() time.Time { return later }
	again := entry(1)
	again.Mood = "Tense"
	require.NoError(t, svc.Save(ctx, again))
	assert.Equal(t, rec.ID, again.ID)
	assert.Equal(t, clock, again.CreatedAt, "created time is kept")
	assert.Equal(t, later, again.UpdatedAt)

	// A clock that went backwards must not move UpdatedAt back.
	svc.now = func() time.Time { return clock }
	require.NoError(t, svc.Save(ctx, entry(1)))
	got, err := svc.Get(ctx, rec.Date)
	require.NoError(t, err)
	assert.True(t, got.UpdatedAt.Equal(later))
}

func TestSaveFeedsStreak(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	for _, d := range []int{1, 2, 2, 5} {
		require.NoError(t, svc.Save(ctx, entry(d)))
	}
	st, err := svc.Tracker().State(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, st.Current)
	assert.Equal(t, 2, st.Longest)
}

func TestSaveInvalid(t *testing.T) {
	svc, _ := newTestService(t)
	assert.ErrorIs(t, svc.Save(context.Background(), &types.Record{}), types.ErrInvalidDate)
}

func TestExportImportRoundTrip(t *testing.T) {
	ctx := context.Background()
	src, _ := newTestService(t)
	for _, d := range []int{1, 2, 3} {
		require.NoError(t, src.Save(ctx, entry(d)))
	}

	text, err := src.ExportAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, strings.Count(text, "\n"))
	assert.Contains(t, text, `"q1=yes|q9=x\=y"`)

	dst, _ := newTestService(t)
	report, err := dst.ImportAll(ctx, text)
	require.NoError(t, err)
	assert.Equal(t, 3, report.Imported)
	assert.Zero(t, report.Rejected)
	assert.NotEmpty(t, report.RunID)

	again, err := dst.ExportAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, text, again)
}

func TestImportOverlayIdempotent(t *testing.T) {
	ctx := context.Background()
	src, _ := newTestService(t)
	require.NoError(t, src.Save(ctx, entry(1)))
	text, err := src.ExportAll(ctx)
	require.NoError(t, err)

	dst, store := newTestService(t)
	for i := 0; i < 2; i++ {
		report, err := dst.ImportAll(ctx, text)
		require.NoError(t, err)
		assert.Equal(t, 1, report.Imported)
	}

	all, err := store.AllOrderedByDate(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	attrs, err := store.AttributesForRecord(ctx, all[0].ID)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"q1": "yes", "q9": "x=y"}, attrs)
}

func TestImportKeepsOmittedKeys(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	require.NoError(t, svc.Save(ctx, entry(1)))

	rec := entry(1)
	rec.Attributes = map[string]string{"q2": "new"}
	text := codec.New(time.UTC).Encode([]types.Record{*rec})

	_, err := svc.ImportAll(ctx, text)
	require.NoError(t, err)
	got, err := svc.Get(ctx, rec.Date)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"q1": "yes", "q2": "new", "q9": "x=y"}, got.Attributes)
}

func TestImportRejections(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	text := strings.Join([]string{
		`"date","createdAt","stressLevel"`,
		`"2026-01-01","","5"`,
		`"2026-01-02","","eleven"`,
		`"2026-01-03","","5`,
		`"2026-01-04","","2"`,
	}, "\n")
	report, err := svc.ImportAll(ctx, text)
	require.NoError(t, err)
	assert.Equal(t, 2, report.Imported)
	assert.Equal(t, 2, report.Rejected)
	require.Len(t, report.Rejections, 2)
	assert.Equal(t, 3, report.Rejections[0].Line)
	assert.Equal(t, 4, report.Rejections[1].Line)
	assert.ErrorIs(t, report.Rejections[1].Reason, codec.ErrUnclosedQuote)
}

func TestImportUnrecognizedFile(t *testing.T) {
	svc, store := newTestService(t)
	report, err := svc.ImportAll(context.Background(), "name,value\nx,y\n")
	assert.ErrorIs(t, err, codec.ErrUnrecognizedFile)
	assert.Nil(t, report)

	all, err := store.AllOrderedByDate(context.Background())
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestImportIgnoresFileIDs(t *testing.T) {
	ctx := context.Background()
	svc, store := newTestService(t)
	require.NoError(t, svc.Save(ctx, entry(1)))

	rec := entry(1)
	rec.ID = 999
	rec.Mood = "Imported"
	_, err := svc.ImportAll(ctx, codec.New(time.UTC).Encode([]types.Record{*rec}))
	require.NoError(t, err)

	all, err := store.AllOrderedByDate(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.NotEqual(t, int64(999), all[0].ID)
	assert.Equal(t, "Imported", all[0].Mood)
}

func TestImportOlderExportKeepsUpdatedAt(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	stale := entry(3)
	stale.CreatedAt = clock.Add(-48 * time.Hour)
	stale.UpdatedAt = stale.CreatedAt
	stale.Mood = "Old"
	text := codec.New(time.UTC).Encode([]types.Record{*stale})

	require.NoError(t, svc.Save(ctx, entry(3)))

	report, err := svc.ImportAll(ctx, text)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Imported)

	got, err := svc.Get(ctx, stale.Date)
	require.NoError(t, err)
	assert.Equal(t, "Old", got.Mood)
	assert.True(t, got.UpdatedAt.Equal(clock), "UpdatedAt must not move backwards, got %v", got.UpdatedAt)
}

func TestExportToFile(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	require.NoError(t, svc.Save(ctx, entry(1)))

	path := filepath.Join(t.TempDir(), "journal.csv")
	n, err := svc.ExportToFile(ctx, path)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	want, err := svc.ExportAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, want, string(data))

	dst, _ := newTestService(t)
	report, err := dst.ImportFromFile(ctx, path)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Imported)

	_, err = svc.ExportToFile(ctx, filepath.Join(t.TempDir(), "missing", "x.csv"))
	assert.Error(t, err)
	_, err = dst.ImportFromFile(ctx, filepath.Join(t.TempDir(), "none.csv"))
	assert.Error(t, err)
}

func TestAttributesAndDelete(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	rec := entry(4)
	require.NoError(t, svc.Save(ctx, rec))

	require.NoError(t, svc.SetAttribute(ctx, rec.Date, "q3", "later"))
	require.NoError(t, svc.RemoveAttribute(ctx, rec.Date, "q1"))
	got, err := svc.Get(ctx, rec.Date)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"q3": "later", "q9": "x=y"}, got.Attributes)

	require.NoError(t, svc.Delete(ctx, rec.Date))
	_, err = svc.Get(ctx, rec.Date)
	assert.ErrorIs(t, err, types.ErrNotFound)
	assert.ErrorIs(t, svc.SetAttribute(ctx, rec.Date, "q3", "x"), types.ErrNotFound)
}

func TestRecomputeStreak(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	for _, d := range []int{1, 2, 3, 7} {
		require.NoError(t, svc.Save(ctx, entry(d)))
	}
	_, err := svc.Tracker().Reset(ctx)
	require.NoError(t, err)

	st, err := svc.RecomputeStreak(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, st.Current)
	assert.Equal(t, 3, st.Longest)

	_, err = New(nil).RecomputeStreak(ctx)
	assert.ErrorIs(t, err, ErrNoTracker)
}

// failingStore wraps a real store and fails Upsert for chosen dates.
type failingStore struct {
	types.RecordStore
	failOn map[types.Date]bool
	cancel context.CancelFunc
	calls  int
}

var errDiskFull = errors.New("disk full")

func (f *failingStore) Upsert(ctx context.Context, rec *types.Record) (int64, error) {
	f.calls++
	if f.cancel != nil && f.calls == 2 {
		f.cancel()
	}
	if f.failOn[rec.Date] {
		return 0, errDiskFull
	}
	return f.RecordStore.Upsert(ctx, rec)
}

func importText(days ...int) string {
	var recs []types.Record
	for _, d := range days {
		recs = append(recs, *entry(d))
	}
	return codec.New(time.UTC).Encode(recs)
}

func TestImportStoreFailureCounted(t *testing.T) {
	ctx := context.Background()
	_, store := newTestService(t)
	fs := &failingStore{RecordStore: store, failOn: map[types.Date]bool{
		types.NewDate(2026, time.January, 2): true,
	}}
	svc := New(fs, WithLocation(time.UTC))

	report, err := svc.ImportAll(ctx, importText(1, 2, 3))
	require.NoError(t, err)
	assert.Equal(t, 2, report.Imported)
	assert.Equal(t, 1, report.Rejected)
	assert.Equal(t, 3, report.Rejections[0].Line)
	assert.ErrorIs(t, report.Rejections[0].Reason, errDiskFull)

	all, err := store.AllOrderedByDate(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2, "earlier and later rows stay written")
}

func TestImportCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	_, store := newTestService(t)
	fs := &failingStore{RecordStore: store, cancel: cancel}
	svc := New(fs, WithLocation(time.UTC))

	report, err := svc.ImportAll(ctx, importText(1, 2, 3, 4))
	assert.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, report)
	assert.Equal(t, 1, report.Imported)
}
