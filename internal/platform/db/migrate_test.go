package db

import (
	"os"
	"path/filepath"
	"testing"
)

func writeMigration(t *testing.T, dir, name, sql string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(sql), 0o644); err != nil {
		t.Fatalf("write migration: %v", err)
	}
}

func TestLoadMigrations(t *testing.T) {
	dir := t.TempDir()
	writeMigration(t, dir, "001_core.sql", "CREATE TABLE a (id INT)")
	writeMigration(t, dir, "002_slots.sql", "CREATE TABLE b (id INT)")

	m := NewMigrator(nil, dir)
	migrations, err := m.LoadMigrations()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(migrations) != 2 {
		t.Fatalf("expected 2 migrations, got %d", len(migrations))
	}
	if migrations[0].Version != 1 || migrations[0].Name != "001_core.sql" {
		t.Errorf("unexpected first migration: %+v", migrations[0])
	}
	if migrations[1].SQL != "CREATE TABLE b (id INT)" {
		t.Errorf("unexpected SQL content: %s", migrations[1].SQL)
	}
}

func TestLoadMigrations_SortOrder(t *testing.T) {
	dir := t.TempDir()
	writeMigration(t, dir, "010_later.sql", "SELECT 10")
	writeMigration(t, dir, "002_second.sql", "SELECT 2")
	writeMigration(t, dir, "001_first.sql", "SELECT 1")

	m := NewMigrator(nil, dir)
	migrations, err := m.LoadMigrations()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	versions := []int{}
	for _, mig := range migrations {
		versions = append(versions, mig.Version)
	}
	expected := []int{1, 2, 10}
	for i, v := range expected {
		if versions[i] != v {
			t.Errorf("expected version %d at index %d, got %d", v, i, versions[i])
		}
	}
}

func TestLoadMigrations_SkipsInvalidFilenames(t *testing.T) {
	dir := t.TempDir()
	writeMigration(t, dir, "001_ok.sql", "SELECT 1")
	writeMigration(t, dir, "README.sql", "not a migration")
	writeMigration(t, dir, "notes.txt", "not sql")

	m := NewMigrator(nil, dir)
	migrations, err := m.LoadMigrations()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(migrations) != 1 {
		t.Fatalf("expected 1 migration, got %d", len(migrations))
	}
}

func TestLoadMigrations_EmptyDir(t *testing.T) {
	m := NewMigrator(nil, t.TempDir())
	migrations, err := m.LoadMigrations()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(migrations) != 0 {
		t.Errorf("expected no migrations, got %d", len(migrations))
	}
}

func TestLoadMigrations_NonExistentDir(t *testing.T) {
	m := NewMigrator(nil, "/does/not/exist")
	if _, err := m.LoadMigrations(); err == nil {
		t.Error("expected error for missing directory")
	}
}

func TestParseVersion(t *testing.T) {
	cases := []struct {
		filename string
		version  int
		ok       bool
	}{
		{"001_core.sql", 1, true},
		{"010_later.sql", 10, true},
		{"README.sql", 0, false},
		{"notes.txt", 0, false},
		{"nounderscore.sql", 0, false},
	}
	for _, tc := range cases {
		v, ok := parseVersion(tc.filename)
		if ok != tc.ok || v != tc.version {
			t.Errorf("parseVersion(%q) = (%d, %v), expected (%d, %v)", tc.filename, v, ok, tc.version, tc.ok)
		}
	}
}

func TestLoadMigrations_Checksum(t *testing.T) {
	dir := t.TempDir()
	writeMigration(t, dir, "001_core.sql", "CREATE TABLE a (id INT)")

	m := NewMigrator(nil, dir)
	migrations, err := m.LoadMigrations()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(migrations) != 1 {
		t.Fatalf("expected 1 migration, got %d", len(migrations))
	}
	if migrations[0].Checksum != checksum("CREATE TABLE a (id INT)") {
		t.Error("checksum does not match file contents")
	}
	if migrations[0].Checksum == checksum("CREATE TABLE a (id BIGINT)") {
		t.Error("different contents should not share a checksum")
	}
	if len(migrations[0].Checksum) != 64 {
		t.Errorf("expected 64 hex chars, got %d", len(migrations[0].Checksum))
	}
}
