// Package sqlite implements the daybook RecordStore and streak StateStore on
// SQLite. The schema is created and upgraded by embedded numbered
// migrations; JSONL snapshots provide a plain-text backup of every table.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/mesh-intelligence/daybook/internal/logger"
	"github.com/mesh-intelligence/daybook/internal/notify"
	"github.com/mesh-intelligence/daybook/internal/paths"
	"github.com/mesh-intelligence/daybook/pkg/types"
)

// Store is the SQLite implementation of types.RecordStore and
// streak.StateStore. A Store is safe for concurrent use once open.
type Store struct {
	mu      sync.RWMutex
	open    bool
	config  types.Config
	path    string
	db      *sql.DB
	changed *notify.Hub[struct{}]

	// now is replaceable in tests.
	now func() time.Time
}

// NewStore returns a closed store. Call Open before use.
func NewStore() *Store {
	return &Store{now: time.Now}
}

// OpenStore is NewStore followed by Open.
func OpenStore(ctx context.Context, cfg types.Config) (*Store, error) {
	s := NewStore()
	if err := s.Open(ctx, cfg); err != nil {
		return nil, err
	}
	return s, nil
}

// Open creates DataDir if needed, opens the database file inside it, and
// applies pending migrations. Returns ErrAlreadyOpen if already open.
func (s *Store) Open(ctx context.Context, cfg types.Config) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.open {
		return types.ErrAlreadyOpen
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	dataDir := cfg.DataDir
	if dataDir == "" {
		dataDir = "."
	}
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return fmt.Errorf("creating data dir: %w", err)
	}

	path := paths.DatabaseFile(dataDir)
	dsn := "file:" + path + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return fmt.Errorf("opening %s: %w", path, err)
	}
	// One connection: every statement sees the same pragmas and SQLite
	// serializes writers anyway.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return fmt.Errorf("opening %s: %w", path, err)
	}
	if _, err := newMigrator(db).apply(ctx); err != nil {
		db.Close()
		return fmt.Errorf("migrating %s: %w", path, err)
	}

	s.db = db
	s.path = path
	s.config = cfg
	s.changed = notify.NewHub[struct{}]()
	s.open = true
	return nil
}

// Close releases the database. Subscriptions end. Close is idempotent.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.open {
		return nil
	}
	logger.Debug("closing store", "path", s.path, "subscribers", s.changed.Len())
	s.changed.Close()
	s.open = false
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("closing database: %w", err)
	}
	s.db = nil
	return nil
}

// Path returns the database file path. Empty while closed.
func (s *Store) Path() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.path
}

// SchemaVersion returns the applied migration version.
func (s *Store) SchemaVersion(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.open {
		return 0, types.ErrStoreClosed
	}
	return newMigrator(s.db).currentVersion(ctx)
}

// withTx runs fn in a transaction and commits when it returns nil. The
// caller must hold s.mu.
func (s *Store) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// notifyChanged wakes subscribers after a commit.
func (s *Store) notifyChanged() {
	s.changed.Publish(struct{}{})
}
