package storage

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed migrations/*.sql
var dailyRecordsMigrations embed.FS

// MigrateDailyRecords brings the daily_records table at dbPath up to the
// newest embedded schema and returns that schema version. A dirty version
// means an earlier run stopped halfway and needs manual repair.
func MigrateDailyRecords(dbPath string) (uint, error) {
	// migrate closes the *sql.DB it is handed, so it gets its own.
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return 0, fmt.Errorf("open %s for migration: %w", dbPath, err)
	}
	defer db.Close()

	target, err := sqlite.WithInstance(db, &sqlite.Config{})
	if err != nil {
		return 0, fmt.Errorf("wrap daily_records database: %w", err)
	}
	source, err := iofs.New(dailyRecordsMigrations, "migrations")
	if err != nil {
		return 0, fmt.Errorf("load daily_records migrations: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", source, "sqlite", target)
	if err != nil {
		return 0, fmt.Errorf("prepare daily_records migration: %w", err)
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return 0, fmt.Errorf("apply daily_records migrations: %w", err)
	}

	version, dirty, err := m.Version()
	if err != nil {
		return 0, fmt.Errorf("read daily_records schema version: %w", err)
	}
	if dirty {
		return version, fmt.Errorf("daily_records schema version %d is dirty", version)
	}
	return version, nil
}
