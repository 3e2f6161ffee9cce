package db

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/rubiojr/jobsearch/pkg/log"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Migration is one numbered schema change, loaded from NNN_name.sql.
type Migration struct {
	Version   int
	Name      string
	SQL       string
	AppliedAt *time.Time
}

// MigrationStatus groups migrations by state.
type MigrationStatus struct {
	Applied   []Migration
	Pending   []Migration
	Available []Migration
}

// MigrationManager applies migrations to a database.
type MigrationManager struct {
	db     *sql.DB
	source fs.FS
	logger *log.Logger
}

// NewMigrationManager uses the migrations compiled into the binary.
func NewMigrationManager(db *sql.DB) *MigrationManager {
	sub, err := fs.Sub(migrationsFS, "migrations")
	if err != nil {
		// The embed pattern guarantees the directory exists.
		panic(err)
	}
	return &MigrationManager{db: db, source: sub, logger: log.ForService("db")}
}

// NewMigrationManagerFromPath loads migrations from a directory instead.
func NewMigrationManagerFromPath(db *sql.DB, dir string) *MigrationManager {
	return &MigrationManager{db: db, source: os.DirFS(dir), logger: log.ForService("db")}
}

func (m *MigrationManager) EnsureMigrationsTable(ctx context.Context) error {
	_, err := m.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS migrations (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`)
	return err
}

func (m *MigrationManager) AppliedMigrations(ctx context.Context) (map[int]time.Time, error) {
	rows, err := m.db.QueryContext(ctx, "SELECT version, applied_at FROM migrations ORDER BY version")
	if err != nil {
		return nil, fmt.Errorf("querying applied migrations: %w", err)
	}
	defer rows.Close()

	applied := make(map[int]time.Time)
	for rows.Next() {
		var version int
		var appliedAt time.Time
		if err := rows.Scan(&version, &appliedAt); err != nil {
			return nil, fmt.Errorf("scanning migration row: %w", err)
		}
		applied[version] = appliedAt
	}
	return applied, rows.Err()
}

func (m *MigrationManager) AvailableMigrations() ([]Migration, error) {
	return readMigrations(m.source)
}

func (m *MigrationManager) PendingMigrations(ctx context.Context) ([]Migration, error) {
	applied, err := m.AppliedMigrations(ctx)
	if err != nil {
		return nil, err
	}
	available, err := m.AvailableMigrations()
	if err != nil {
		return nil, err
	}

	var pending []Migration
	for _, mig := range available {
		if _, ok := applied[mig.Version]; !ok {
			pending = append(pending, mig)
		}
	}
	return pending, nil
}

// Apply runs one migration and records it in the same transaction.
func (m *MigrationManager) Apply(ctx context.Context, mig Migration) error {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, mig.SQL); err != nil {
		return fmt.Errorf("executing migration %d: %w", mig.Version, err)
	}
	if _, err := tx.ExecContext(ctx, "INSERT INTO migrations (version) VALUES (?)", mig.Version); err != nil {
		return fmt.Errorf("recording migration %d: %w", mig.Version, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing migration %d: %w", mig.Version, err)
	}
	return nil
}

func (m *MigrationManager) ApplyPending(ctx context.Context) error {
	if err := m.EnsureMigrationsTable(ctx); err != nil {
		return fmt.Errorf("ensuring migrations table: %w", err)
	}
	pending, err := m.PendingMigrations(ctx)
	if err != nil {
		return fmt.Errorf("getting pending migrations: %w", err)
	}
	for _, mig := range pending {
		m.logger.Debugf("applying migration %d: %s", mig.Version, mig.Name)
		if err := m.Apply(ctx, mig); err != nil {
			return fmt.Errorf("applying migration %d (%s): %w", mig.Version, mig.Name, err)
		}
	}
	if len(pending) > 0 {
		m.logger.Infof("applied %d migrations", len(pending))
	}
	return nil
}

func (m *MigrationManager) Status(ctx context.Context) (*MigrationStatus, error) {
	if err := m.EnsureMigrationsTable(ctx); err != nil {
		return nil, fmt.Errorf("ensuring migrations table: %w", err)
	}
	applied, err := m.AppliedMigrations(ctx)
	if err != nil {
		return nil, err
	}
	available, err := m.AvailableMigrations()
	if err != nil {
		return nil, err
	}

	status := &MigrationStatus{Available: available}
	for _, mig := range available {
		if at, ok := applied[mig.Version]; ok {
			mig.AppliedAt = &at
			status.Applied = append(status.Applied, mig)
		} else {
			status.Pending = append(status.Pending, mig)
		}
	}
	return status, nil
}

// InitializeDatabase brings db up to the embedded schema.
func InitializeDatabase(ctx context.Context, db *sql.DB) error {
	if err := NewMigrationManager(db).ApplyPending(ctx); err != nil {
		return fmt.Errorf("applying migrations: %w", err)
	}
	return nil
}

func readMigrations(source fs.FS) ([]Migration, error) {
	entries, err := fs.ReadDir(source, ".")
	if err != nil {
		return nil, fmt.Errorf("reading migrations directory: %w", err)
	}

	var migrations []Migration
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}
		// 001_initial.sql -> 1, "initial"
		parts := strings.SplitN(entry.Name(), "_", 2)
		if len(parts) != 2 {
			continue
		}
		version, err := strconv.Atoi(parts[0])
		if err != nil {
			continue
		}
		content, err := fs.ReadFile(source, entry.Name())
		if err != nil {
			return nil, fmt.Errorf("reading migration file %s: %w", entry.Name(), err)
		}
		migrations = append(migrations, Migration{
			Version: version,
			Name:    strings.TrimSuffix(parts[1], ".sql"),
			SQL:     string(content),
		})
	}

	sort.Slice(migrations, func(i, j int) bool {
		return migrations[i].Version < migrations[j].Version
	})
	return migrations, nil
}
