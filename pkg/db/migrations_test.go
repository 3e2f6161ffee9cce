package db

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"testing"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
)

func openDB(t *testing.T) *sql.DB {
	t.Helper()
	conn, err := sql.Open("sqlite3", filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestEmbeddedMigrations(t *testing.T) {
	m := NewMigrationManager(openDB(t))
	migs, err := m.AvailableMigrations()
	if err != nil {
		t.Fatal(err)
	}
	if len(migs) == 0 || migs[0].Version != 1 || migs[0].Name != "initial" {
		t.Fatalf("unexpected migrations: %+v", migs)
	}
}

func TestInitializeDatabase(t *testing.T) {
	conn := openDB(t)
	ctx := context.Background()

	if err := InitializeDatabase(ctx, conn); err != nil {
		t.Fatalf("InitializeDatabase() error = %v", err)
	}
	if err := InitializeDatabase(ctx, conn); err != nil {
		t.Fatalf("second InitializeDatabase() error = %v", err)
	}

	for _, table := range []string{"profile", "liked_jobs"} {
		var name string
		err := conn.QueryRow("SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?", table).Scan(&name)
		if err != nil {
			t.Errorf("table %s missing: %v", table, err)
		}
	}

	status, err := NewMigrationManager(conn).Status(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(status.Pending) != 0 || len(status.Applied) != len(status.Available) {
		t.Errorf("status = %+v", status)
	}
}

func TestMigrationsFromPath(t *testing.T) {
	dir := t.TempDir()
	files := map[string]string{
		"002_second.sql": "CREATE TABLE two (id INTEGER);",
		"001_first.sql":  "CREATE TABLE one (id INTEGER);",
		"notes.txt":      "ignored",
		"bad_name.sql":   "ignored",
	}
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0644); err != nil {
			t.Fatal(err)
		}
	}

	conn := openDB(t)
	ctx := context.Background()
	m := NewMigrationManagerFromPath(conn, dir)

	migs, err := m.AvailableMigrations()
	if err != nil {
		t.Fatal(err)
	}
	if len(migs) != 2 || migs[0].Name != "first" || migs[1].Name != "second" {
		t.Fatalf("AvailableMigrations() = %+v", migs)
	}

	if err := m.ApplyPending(ctx); err != nil {
		t.Fatalf("ApplyPending() error = %v", err)
	}
	pending, err := m.PendingMigrations(ctx)
	if err != nil || len(pending) != 0 {
		t.Fatalf("PendingMigrations() = %v, %v", pending, err)
	}
}

func TestApplyFailureRollsBack(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "001_broken.sql"), []byte("CREATE TABLE ok (id INTEGER); NOT SQL;"), 0644); err != nil {
		t.Fatal(err)
	}
	conn := openDB(t)
	ctx := context.Background()
	m := NewMigrationManagerFromPath(conn, dir)

	if err := m.ApplyPending(ctx); err == nil {
		t.Fatal("expected error")
	}
	applied, err := m.AppliedMigrations(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(applied) != 0 {
		t.Errorf("applied = %v, want none", applied)
	}
}
