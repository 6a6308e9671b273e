package migrations

import (
	"context"
	"database/sql"
	"io/fs"
	"path/filepath"
	"strings"
	"testing"

	reconcile "github.com/goliatone/go-reconcile"
	_ "github.com/mattn/go-sqlite3"
)

func TestFilesystems_ReturnsPostgresAndSQLite(t *testing.T) {
	filesystems, err := Filesystems()
	if err != nil {
		t.Fatalf("filesystems: %v", err)
	}
	if len(filesystems) != 2 {
		t.Fatalf("expected 2 filesystems, got %d", len(filesystems))
	}

	var postgresFound bool
	var sqliteFound bool
	for _, entry := range filesystems {
		matches, globErr := fs.Glob(entry.FS, "*.up.sql")
		if globErr != nil {
			t.Fatalf("glob %s: %v", entry.Dialect, globErr)
		}
		if len(matches) == 0 {
			t.Fatalf("expected %s migration files, got none", entry.Dialect)
		}
		switch entry.Dialect {
		case DialectPostgres:
			postgresFound = true
		case DialectSQLite:
			sqliteFound = true
		}
	}

	if !postgresFound {
		t.Fatalf("expected postgres filesystem")
	}
	if !sqliteFound {
		t.Fatalf("expected sqlite filesystem")
	}
}

func TestRegister_UsesValidationTargets(t *testing.T) {
	var calls []string
	_, err := Register(context.Background(), func(_ context.Context, dialect string, _ string, _ fs.FS) error {
		calls = append(calls, dialect)
		return nil
	}, WithValidationTargets(DialectSQLite))
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	if len(calls) != 1 {
		t.Fatalf("expected 1 registration call, got %d", len(calls))
	}
	if calls[0] != DialectSQLite {
		t.Fatalf("expected sqlite registration, got %q", calls[0])
	}
}

func TestRegister_SourceLabelOverride(t *testing.T) {
	var labels []string
	_, err := Register(context.Background(), func(_ context.Context, _ string, sourceLabel string, _ fs.FS) error {
		labels = append(labels, sourceLabel)
		return nil
	}, WithSourceLabel("warehouse-recon"), WithValidationTargets(DialectSQLite))
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if len(labels) != 1 || labels[0] != "warehouse-recon" {
		t.Fatalf("expected overridden source label, got %v", labels)
	}
}

func TestCoreSchemaMigrationPair_ExistsForBothDialects(t *testing.T) {
	root := reconcile.GetCoreMigrationsFS()
	paths := []string{
		"data/sql/migrations/0001_reconcile_core.up.sql",
		"data/sql/migrations/0001_reconcile_core.down.sql",
		"data/sql/migrations/sqlite/0001_reconcile_core.up.sql",
		"data/sql/migrations/sqlite/0001_reconcile_core.down.sql",
	}
	for _, migrationPath := range paths {
		content, err := fs.ReadFile(root, migrationPath)
		if err != nil {
			t.Fatalf("read migration %s: %v", migrationPath, err)
		}
		if strings.TrimSpace(string(content)) == "" {
			t.Fatalf("expected migration %s to have SQL content", migrationPath)
		}
	}
}

func TestSQLiteCoreSchemaMigration_ApplyAndRollback(t *testing.T) {
	db, err := sql.Open("sqlite3", "file:migrations-reconcile-core?mode=memory&cache=shared&_foreign_keys=on")
	if err != nil {
		t.Fatalf("open sqlite db: %v", err)
	}
	defer func() { _ = db.Close() }()

	root := reconcile.GetCoreMigrationsFS()
	sqliteMigrations, err := fs.Sub(root, "data/sql/migrations/sqlite")
	if err != nil {
		t.Fatalf("resolve sqlite migrations: %v", err)
	}

	if err := execSQLMigration(context.Background(), db, sqliteMigrations, "0001_reconcile_core.up.sql"); err != nil {
		t.Fatalf("apply core schema up: %v", err)
	}

	requiredTables := []string{
		"recon_normalization_rules",
		"recon_cross_references",
		"recon_runs",
		"recon_quality_assessments",
		"recon_inventory_levels",
		"recon_alerts",
		"recon_rate_limit_states",
	}
	for _, tableName := range requiredTables {
		var count int
		if err := db.QueryRowContext(
			context.Background(),
			`SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?`,
			tableName,
		).Scan(&count); err != nil {
			t.Fatalf("query sqlite_master for %s: %v", tableName, err)
		}
		if count != 1 {
			t.Fatalf("expected table %s to exist after up migration", tableName)
		}
	}

	insertLevel := `
		INSERT INTO recon_inventory_levels (
			id, canonical_id, warehouse_key, available_qty, reserved_qty, total_qty,
			price, product_name, source_tag, observed_at, normalization_confidence,
			created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	if _, err := db.ExecContext(
		context.Background(), insertLevel,
		"row-1", "sku-100", "рфц-москва", 10, 2, 12, 1999.0, "Кофеварка Bork C804", "ozon",
		"2026-01-01T00:00:00Z", 1.0, "2026-01-01T00:00:00Z", "2026-01-01T00:00:00Z",
	); err != nil {
		t.Fatalf("insert inventory level: %v", err)
	}
	if _, err := db.ExecContext(
		context.Background(), insertLevel,
		"row-2", "sku-100", "рфц-москва", 11, 2, 13, 1999.0, "Кофеварка Bork C804", "ozon",
		"2026-01-02T00:00:00Z", 1.0, "2026-01-02T00:00:00Z", "2026-01-02T00:00:00Z",
	); err == nil {
		t.Fatalf("expected (canonical_id, warehouse_key) uniqueness violation")
	}

	if err := execSQLMigration(context.Background(), db, sqliteMigrations, "0001_reconcile_core.down.sql"); err != nil {
		t.Fatalf("apply core schema down: %v", err)
	}

	var count int
	if err := db.QueryRowContext(
		context.Background(),
		`SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?`,
		"recon_runs",
	).Scan(&count); err != nil {
		t.Fatalf("query sqlite_master after down migration: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected recon_runs to be dropped after down migration")
	}
}

func execSQLMigration(ctx context.Context, db *sql.DB, fsys fs.FS, filename string) error {
	content, err := fs.ReadFile(fsys, filepath.Clean(filename))
	if err != nil {
		return err
	}
	_, err = db.ExecContext(ctx, string(content))
	return err
}
