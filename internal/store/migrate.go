package store

import (
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"github.com/matheus3301/convo/internal/store/migrations"
)

// MigrateResult reports the schema version before and after Migrate.
type MigrateResult struct {
	Previous uint
	Version  uint
	Dirty    bool
	Changed  bool
}

// Migrate applies every pending migration. A dirty schema is an error: it means
// an earlier run died mid-migration and needs a manual look.
func (db *DB) Migrate() (*MigrateResult, error) {
	source, err := iofs.New(migrations.FS, ".")
	if err != nil {
		return nil, fmt.Errorf("migration source: %w", err)
	}
	driver, err := sqlite3.WithInstance(db.DB, &sqlite3.Config{})
	if err != nil {
		return nil, fmt.Errorf("migration driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", source, "sqlite3", driver)
	if err != nil {
		return nil, fmt.Errorf("migration instance: %w", err)
	}

	res := &MigrateResult{}
	prev, dirty, err := version(m)
	if err != nil {
		return nil, err
	}
	if dirty {
		return nil, fmt.Errorf("schema of %s is dirty at version %d", db.path, prev)
	}
	res.Previous = prev

	switch err := m.Up(); {
	case errors.Is(err, migrate.ErrNoChange):
	case err != nil:
		return nil, fmt.Errorf("migration up: %w", err)
	default:
		res.Changed = true
	}

	if res.Version, res.Dirty, err = version(m); err != nil {
		return nil, err
	}
	return res, nil
}

// version treats a database that has never been migrated as version 0.
func version(m *migrate.Migrate) (uint, bool, error) {
	v, dirty, err := m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("migration version: %w", err)
	}
	return v, dirty, nil
}
