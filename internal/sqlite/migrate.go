package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/mesh-intelligence/daybook/internal/logger"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// ErrSchemaTooNew is returned when the database was written by a newer build.
var ErrSchemaTooNew = errors.New("database schema is newer than this build supports")

// migration is one numbered schema change, read from NNN_name.sql.
type migration struct {
	version int
	name    string
	sql     string
}

// migrator applies embedded migrations in version order, one transaction each.
type migrator struct {
	db    *sql.DB
	files fs.FS
}

func newMigrator(db *sql.DB) *migrator {
	sub, err := fs.Sub(migrationFiles, "migrations")
	if err != nil {
		// The embed pattern guarantees the directory exists.
		panic(err)
	}
	return &migrator{db: db, files: sub}
}

func (m *migrator) ensureVersionTable(ctx context.Context) error {
	_, err := m.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_version (version INTEGER PRIMARY KEY)`)
	return err
}

// currentVersion returns 0 for a fresh database.
func (m *migrator) currentVersion(ctx context.Context) (int, error) {
	if err := m.ensureVersionTable(ctx); err != nil {
		return 0, fmt.Errorf("ensuring schema_version table: %w", err)
	}
	var version int
	err := m.db.QueryRowContext(ctx, "SELECT version FROM schema_version").Scan(&version)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("reading schema version: %w", err)
	}
	return version, nil
}

// readMigrations parses the embedded files, sorted by version.
func (m *migrator) readMigrations() ([]migration, error) {
	entries, err := fs.ReadDir(m.files, ".")
	if err != nil {
		return nil, fmt.Errorf("reading migrations: %w", err)
	}

	var out []migration
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".sql") {
			continue
		}
		prefix, rest, ok := strings.Cut(e.Name(), "_")
		if !ok {
			return nil, fmt.Errorf("invalid migration filename %s (expected NNN_name.sql)", e.Name())
		}
		version, err := strconv.Atoi(prefix)
		if err != nil || version < 1 {
			return nil, fmt.Errorf("invalid version number in migration filename %s", e.Name())
		}
		content, err := fs.ReadFile(m.files, e.Name())
		if err != nil {
			return nil, fmt.Errorf("reading migration %s: %w", e.Name(), err)
		}
		out = append(out, migration{
			version: version,
			name:    strings.TrimSuffix(rest, ".sql"),
			sql:     string(content),
		})
	}

	sort.Slice(out, func(i, j int) bool { return out[i].version < out[j].version })
	for i := 1; i < len(out); i++ {
		if out[i].version == out[i-1].version {
			return nil, fmt.Errorf("duplicate migration version %d", out[i].version)
		}
	}
	return out, nil
}

// apply runs every pending migration and returns how many were applied.
func (m *migrator) apply(ctx context.Context) (int, error) {
	current, err := m.currentVersion(ctx)
	if err != nil {
		return 0, err
	}
	migrations, err := m.readMigrations()
	if err != nil {
		return 0, err
	}
	if len(migrations) == 0 {
		return 0, nil
	}
	latest := migrations[len(migrations)-1].version
	if current > latest {
		return 0, fmt.Errorf("%w: database at %d, build supports %d", ErrSchemaTooNew, current, latest)
	}

	start := time.Now()
	applied := 0
	for _, mig := range migrations {
		if mig.version <= current {
			continue
		}
		logger.Debug("applying migration", "version", mig.version, "name", mig.name)
		if err := m.applyOne(ctx, mig); err != nil {
			return applied, err
		}
		applied++
	}
	if applied > 0 {
		logger.Info("schema migrated", "from", current, "to", latest, "applied", applied, "took", time.Since(start))
	}
	return applied, nil
}

func (m *migrator) applyOne(ctx context.Context, mig migration) error {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning migration %d: %w", mig.version, err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, mig.sql); err != nil {
		return fmt.Errorf("applying migration %d (%s): %w", mig.version, mig.name, err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM schema_version"); err != nil {
		return fmt.Errorf("clearing version in migration %d: %w", mig.version, err)
	}
	if _, err := tx.ExecContext(ctx, "INSERT INTO schema_version (version) VALUES (?)", mig.version); err != nil {
		return fmt.Errorf("setting version in migration %d: %w", mig.version, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing migration %d: %w", mig.version, err)
	}
	return nil
}
