// Package sqlite opens the SQLite record store for use outside this module.
// The implementation stays internal; callers get it through the Store
// interface.
//
// Example:
//
//	store, err := sqlite.Open(ctx, types.Config{
//	    Backend: types.BackendSQLite,
//	    DataDir: dir,
//	})
//	if err != nil {
//	    return err
//	}
//	defer store.Close()
//	svc := journal.New(store, journal.WithTracker(streak.NewTracker(store)))
package sqlite

import (
	"context"

	"github.com/mesh-intelligence/daybook/internal/sqlite"
	"github.com/mesh-intelligence/daybook/pkg/streak"
	"github.com/mesh-intelligence/daybook/pkg/types"
)

// Store is a RecordStore that also keeps the streak state.
type Store interface {
	types.RecordStore
	streak.StateStore
	Close() error
}

// Open opens (creating if needed) the database in cfg.DataDir and applies
// pending migrations.
func Open(ctx context.Context, cfg types.Config) (Store, error) {
	s, err := sqlite.OpenStore(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return s, nil
}
