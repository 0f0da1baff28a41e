package types

import (
	"context"
	"errors"
)

// RecordStore is the durable home of records and their attribute overlay.
// Implementations must make Upsert atomic across the record row and its
// attribute rows, and must delete attribute rows together with their record.
type RecordStore interface {
	// GetByDate returns the record for date with its attributes attached.
	// Returns ErrNotFound if no record exists for that date.
	GetByDate(ctx context.Context, date Date) (*Record, error)

	// Upsert inserts rec, or replaces the record with the same date, and
	// upserts rec.Attributes by key in the same transaction. Keys absent from
	// rec.Attributes are left untouched. A replace keeps the later of the
	// stored and incoming UpdatedAt. Returns the stored record ID.
	Upsert(ctx context.Context, rec *Record) (int64, error)

	// Delete removes the record with rec.Date and all its attribute rows.
	// Returns ErrNotFound if no such record exists.
	Delete(ctx context.Context, rec *Record) error

	// AllOrderedByDate returns every record, oldest first, without attributes.
	AllOrderedByDate(ctx context.Context) ([]Record, error)

	// AttributesForRecord returns the overlay of one record. Never nil.
	AttributesForRecord(ctx context.Context, recordID int64) (map[string]string, error)

	// UpsertAttributes writes attrs for recordID, replacing values of keys
	// that already exist.
	UpsertAttributes(ctx context.Context, recordID int64, attrs map[string]string) error

	// DeleteAttribute removes one overlay key. Missing keys are not an error.
	DeleteAttribute(ctx context.Context, recordID int64, key string) error

	// Subscribe streams the full record list: once on subscription and again
	// after commits. Rapid commits may be coalesced into one delivery. The
	// channel closes when ctx is done.
	Subscribe(ctx context.Context) (<-chan []Record, error)
}

// Store lifecycle and lookup errors.
var (
	ErrNotFound    = errors.New("record not found")
	ErrInvalidID   = errors.New("invalid record ID")
	ErrInvalidDate = errors.New("invalid date")
	ErrStoreClosed = errors.New("store is closed")
	ErrAlreadyOpen = errors.New("store is already open")
)
