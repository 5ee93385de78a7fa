// Package store persists the expression graph in an embedded SQLite
// database. Uniqueness constraints on (land, url), (source, target) and
// (expression, url) are the only synchronization between concurrent
// writers; duplicate inserts are treated as success.
package store

import (
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/golang-migrate/migrate/v4"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/landseer/landseer/internal/urlnorm"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Store wraps the database handle. Safe for concurrent use.
type Store struct {
	db   *sqlx.DB
	path string
	heur *urlnorm.Heuristics
}

// Open opens (creating if needed) the database at path. The heuristics
// table governs domain extraction for every graph write; nil means plain
// host extraction.
func Open(path string, heur *urlnorm.Heuristics) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}

	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)", path)
	db, err := sqlx.Connect("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// SQLite allows a single writer; funneling everything through one
	// connection avoids SQLITE_BUSY churn under concurrent batches.
	db.SetMaxOpenConns(1)

	return &Store{db: db, path: path, heur: heur}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

func (s *Store) migrator() (*migrate.Migrate, error) {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return nil, fmt.Errorf("load migrations: %w", err)
	}
	driver, err := migratesqlite.WithInstance(s.db.DB, &migratesqlite.Config{})
	if err != nil {
		return nil, fmt.Errorf("migration driver: %w", err)
	}
	return migrate.NewWithInstance("iofs", src, "sqlite", driver)
}

// Migrate applies pending migrations. Idempotent.
func (s *Store) Migrate() error {
	m, err := s.migrator()
	if err != nil {
		return err
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", err)
	}
	return nil
}

// Reset destroys and recreates the schema.
func (s *Store) Reset() error {
	m, err := s.migrator()
	if err != nil {
		return err
	}
	if err := m.Drop(); err != nil {
		return fmt.Errorf("drop schema: %w", err)
	}
	// Drop removes the migration bookkeeping too; a fresh migrator
	// rebuilds from zero.
	m, err = s.migrator()
	if err != nil {
		return err
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("recreate schema: %w", err)
	}
	return nil
}
