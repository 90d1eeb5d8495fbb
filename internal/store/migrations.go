package store

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"sort"
	"strconv"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

const migrationsDir = "migrations"

// MigrationStatus reports the current and available migration versions.
type MigrationStatus struct {
	CurrentVersion   uint            `json:"current_version"`
	AvailableVersion uint            `json:"available_version"`
	Dirty            bool            `json:"dirty"`
	Pending          []MigrationInfo `json:"pending"`
}

// MigrationInfo describes a single migration.
type MigrationInfo struct {
	Version     uint   `json:"version"`
	Description string `json:"description"`
}

// MigrateUp applies all pending migrations.
func MigrateUp(db *sql.DB) error {
	m, err := newMigrate(db)
	if err != nil {
		return err
	}
	// m is not closed: closing it would close db, which the caller owns.
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migrate up: %w", err)
	}
	return nil
}

// MigrationPlan returns the migration status without applying anything.
func MigrationPlan(db *sql.DB) (*MigrationStatus, error) {
	m, err := newMigrate(db)
	if err != nil {
		return nil, err
	}

	status := &MigrationStatus{}
	version, dirty, err := m.Version()
	switch {
	case errors.Is(err, migrate.ErrNilVersion):
	case err != nil:
		return nil, fmt.Errorf("read schema version: %w", err)
	default:
		status.CurrentVersion = version
		status.Dirty = dirty
	}

	available, err := availableMigrations()
	if err != nil {
		return nil, err
	}
	for _, info := range available {
		if info.Version > status.AvailableVersion {
			status.AvailableVersion = info.Version
		}
		if info.Version > status.CurrentVersion {
			status.Pending = append(status.Pending, info)
		}
	}
	return status, nil
}

// MigrationStatus reports the schema state of the opened database.
func (s *Store) MigrationStatus() (*MigrationStatus, error) {
	return MigrationPlan(s.db)
}

func newMigrate(db *sql.DB) (*migrate.Migrate, error) {
	src, err := iofs.New(migrationFiles, migrationsDir)
	if err != nil {
		return nil, fmt.Errorf("open migration source: %w", err)
	}
	driver, err := sqlite.WithInstance(db, &sqlite.Config{})
	if err != nil {
		_ = src.Close()
		return nil, fmt.Errorf("open migration driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "sqlite", driver)
	if err != nil {
		_ = src.Close()
		return nil, fmt.Errorf("create migrator: %w", err)
	}
	return m, nil
}

// availableMigrations lists the embedded up migrations ordered by version.
// File names follow golang-migrate's <version>_<title>.up.sql convention.
func availableMigrations() ([]MigrationInfo, error) {
	entries, err := fs.ReadDir(migrationFiles, migrationsDir)
	if err != nil {
		return nil, err
	}
	infos := []MigrationInfo{}
	for _, entry := range entries {
		name := entry.Name()
		if !strings.HasSuffix(name, ".up.sql") {
			continue
		}
		base := strings.TrimSuffix(name, ".up.sql")
		rawVersion, title, ok := strings.Cut(base, "_")
		if !ok {
			return nil, fmt.Errorf("malformed migration file name: %s", name)
		}
		version, err := strconv.ParseUint(rawVersion, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("malformed migration version in %s: %w", name, err)
		}
		infos = append(infos, MigrationInfo{
			Version:     uint(version),
			Description: strings.ReplaceAll(title, "_", " "),
		})
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Version < infos[j].Version })
	return infos, nil
}
