// Package journal is the entry point collaborators use: it saves single
// records, and imports and exports whole journals through the interchange
// codec, keeping the streak in step with every saved entry.
package journal

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/mesh-intelligence/daybook/internal/fileutil"
	"github.com/mesh-intelligence/daybook/internal/logger"
	"github.com/mesh-intelligence/daybook/pkg/codec"
	"github.com/mesh-intelligence/daybook/pkg/overlay"
	"github.com/mesh-intelligence/daybook/pkg/streak"
	"github.com/mesh-intelligence/daybook/pkg/types"
)

// ErrNoTracker is returned by streak operations on a service built without
// WithTracker.
var ErrNoTracker = errors.New("no streak tracker configured")

// Service coordinates a RecordStore, the codec and an optional streak
// tracker.
type Service struct {
	store   types.RecordStore
	tracker *streak.Tracker
	codec   *codec.Codec
	now     func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithTracker feeds every saved or imported entry to t.
func WithTracker(t *streak.Tracker) Option {
	return func(s *Service) { s.tracker = t }
}

// WithLocation sets the zone date-times are read and written in.
func WithLocation(loc *time.Location) Option {
	return func(s *Service) { s.codec = codec.New(loc) }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// New returns a service over store.
func New(store types.RecordStore, opts ...Option) *Service {
	s := &Service{
		store: store,
		codec: codec.New(nil),
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Tracker returns the streak tracker, or nil.
func (s *Service) Tracker() *streak.Tracker {
	return s.tracker
}

// Codec returns the codec the service encodes with.
func (s *Service) Codec() *codec.Codec {
	return s.codec
}

// newRunID returns a time-ordered ID that tags the log lines of one import
// or export.
func newRunID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.New().String()
	}
	return id.String()
}

// ExportAll returns every record, oldest first, with its overlay, encoded
// as one interchange file.
func (s *Service) ExportAll(ctx context.Context) (string, error) {
	records, err := s.exportRecords(ctx)
	if err != nil {
		return "", err
	}
	return s.codec.Encode(records), nil
}

// ExportToFile writes the export to path atomically and returns the number
// of records written. On failure path is left as it was.
func (s *Service) ExportToFile(ctx context.Context, path string) (int, error) {
	records, err := s.exportRecords(ctx)
	if err != nil {
		return 0, err
	}
	err = fileutil.WriteAtomic(path, 0o644, func(w io.Writer) error {
		return s.codec.Write(w, records)
	})
	if err != nil {
		logger.Error("export failed", "path", path, "err", err)
		return 0, fmt.Errorf("writing export: %w", err)
	}
	return len(records), nil
}

func (s *Service) exportRecords(ctx context.Context) ([]types.Record, error) {
	runID := newRunID()
	records, err := s.store.AllOrderedByDate(ctx)
	if err != nil {
		logger.Error("export failed", "run", runID, "err", err)
		return nil, fmt.Errorf("listing records: %w", err)
	}
	if err := overlay.Attach(ctx, s.store, records); err != nil {
		logger.Error("export failed", "run", runID, "err", err)
		return nil, err
	}
	logger.Info("export", "run", runID, "records", len(records))
	return records, nil
}

// ImportReport summarizes one import run.
type ImportReport struct {
	RunID      string            `json:"run_id"`
	Imported   int               `json:"imported"`
	Rejected   int               `json:"rejected"`
	Rejections []codec.Rejection `json:"-"`
}

// ImportAll decodes text and upserts every valid record by date, one at a
// time. A file-level problem returns the codec error and writes nothing.
// Row problems and store failures are counted in the report; earlier rows
// stay written. When ctx ends between rows the partial report is returned
// with ctx.Err().
func (s *Service) ImportAll(ctx context.Context, text string) (*ImportReport, error) {
	runID := newRunID()
	res, err := s.codec.Decode(text)
	if err != nil {
		logger.Warn("import rejected file", "run", runID, "err", err)
		return nil, err
	}

	report := &ImportReport{RunID: runID}
	for _, r := range res.Rejected {
		s.reject(report, r)
	}

	for i := range res.Records {
		if err := ctx.Err(); err != nil {
			logger.Warn("import interrupted", "run", runID, "imported", report.Imported)
			return report, err
		}
		rec := res.Records[i]
		// Identity is the date; the file's id belongs to another database.
		rec.ID = 0
		if _, err := s.store.Upsert(ctx, &rec); err != nil {
			s.reject(report, codec.Rejection{Line: res.Lines[i], Reason: err})
			continue
		}
		report.Imported++
		s.observe(ctx, rec.Date)
	}

	logger.Info("import", "run", runID, "imported", report.Imported, "rejected", report.Rejected)
	return report, nil
}

func (s *Service) reject(report *ImportReport, r codec.Rejection) {
	report.Rejected++
	report.Rejections = append(report.Rejections, r)
	logger.Warn("import row rejected", "run", report.RunID, "line", r.Line, "reason", r.Reason)
}

// ImportFromFile reads path and imports it.
func (s *Service) ImportFromFile(ctx context.Context, path string) (*ImportReport, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading import file: %w", err)
	}
	return s.ImportAll(ctx, string(data))
}

// Save stores rec as the entry for its date, replacing any existing entry
// and upserting its overlay. CreatedAt is kept from the existing entry;
// UpdatedAt never moves backwards.
func (s *Service) Save(ctx context.Context, rec *types.Record) error {
	if rec == nil || rec.Date.IsZero() {
		return types.ErrInvalidDate
	}
	now := s.now().Truncate(time.Second)

	prev, err := s.store.GetByDate(ctx, rec.Date)
	switch {
	case err == nil:
		rec.ID = prev.ID
		rec.CreatedAt = prev.CreatedAt
		rec.UpdatedAt = now
		if prev.UpdatedAt.After(now) {
			rec.UpdatedAt = prev.UpdatedAt
		}
	case errors.Is(err, types.ErrNotFound):
		rec.ID = 0
		rec.CreatedAt = now
		rec.UpdatedAt = now
	default:
		return fmt.Errorf("loading %s: %w", rec.Date, err)
	}

	if _, err := s.store.Upsert(ctx, rec); err != nil {
		return fmt.Errorf("saving %s: %w", rec.Date, err)
	}
	s.observe(ctx, rec.Date)
	return nil
}

// observe advances the streak. A failure is logged, not returned: the entry
// itself is already saved.
func (s *Service) observe(ctx context.Context, day types.Date) {
	if s.tracker == nil {
		return
	}
	if _, err := s.tracker.Observe(ctx, day); err != nil {
		logger.Warn("streak update failed", "date", day, "err", err)
	}
}

// Get returns the entry for date with its overlay.
func (s *Service) Get(ctx context.Context, date types.Date) (*types.Record, error) {
	return s.store.GetByDate(ctx, date)
}

// Delete removes the entry for date and its overlay.
func (s *Service) Delete(ctx context.Context, date types.Date) error {
	return s.store.Delete(ctx, &types.Record{Date: date})
}

// SetAttribute upserts one overlay answer on an existing entry.
func (s *Service) SetAttribute(ctx context.Context, date types.Date, key, value string) error {
	if err := overlay.ValidKey(key); err != nil {
		return err
	}
	rec, err := s.store.GetByDate(ctx, date)
	if err != nil {
		return err
	}
	return s.store.UpsertAttributes(ctx, rec.ID, map[string]string{key: value})
}

// RemoveAttribute deletes one overlay answer from an existing entry.
func (s *Service) RemoveAttribute(ctx context.Context, date types.Date, key string) error {
	rec, err := s.store.GetByDate(ctx, date)
	if err != nil {
		return err
	}
	return s.store.DeleteAttribute(ctx, rec.ID, key)
}

// RecomputeStreak rebuilds the streak from every stored entry date and
// replaces the tracked state with the result.
func (s *Service) RecomputeStreak(ctx context.Context) (streak.State, error) {
	if s.tracker == nil {
		return streak.State{}, ErrNoTracker
	}
	records, err := s.store.AllOrderedByDate(ctx)
	if err != nil {
		return streak.State{}, fmt.Errorf("listing records: %w", err)
	}
	dates := make([]types.Date, len(records))
	for i := range records {
		dates[i] = records[i].Date
	}
	return s.tracker.Replace(ctx, streak.Recompute(dates))
}
