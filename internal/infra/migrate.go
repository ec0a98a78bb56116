package infra

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"sort"
	"strings"
	"time"
)

const migrationTable = "schema_migrations"

// Placeholder styles understood by ApplyMigrations.
const (
	PlaceholderDollar   = "$1"
	PlaceholderQuestion = "?"
)

// ApplyMigrations executes every *.sql file at the root of migrationFS once,
// in lexical order, recording applied names in schema_migrations. Each file
// runs in its own transaction. placeholder is the driver's bind syntax for
// the single parameter of the bookkeeping statements.
func ApplyMigrations(ctx context.Context, db *sql.DB, migrationFS fs.FS, placeholder string) ([]string, error) {
	if db == nil {
		return nil, errors.New("sql db is required")
	}

	entries, err := fs.ReadDir(migrationFS, ".")
	if err != nil {
		return nil, fmt.Errorf("read migrations dir: %w", err)
	}
	var files []string
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".sql") {
			files = append(files, entry.Name())
		}
	}
	sort.Strings(files)

	createSQL := `CREATE TABLE IF NOT EXISTS ` + migrationTable + ` (
    name TEXT PRIMARY KEY,
    applied_at BIGINT NOT NULL
)`
	if _, err := db.ExecContext(ctx, createSQL); err != nil {
		return nil, fmt.Errorf("ensure migration table: %w", err)
	}

	selectSQL := "SELECT 1 FROM " + migrationTable + " WHERE name = " + placeholder
	insertSQL := "INSERT INTO " + migrationTable + " (name, applied_at) VALUES (" + bindList(placeholder, 2) + ")"

	var applied []string
	for _, name := range files {
		var found int
		err := db.QueryRowContext(ctx, selectSQL, name).Scan(&found)
		if err == nil {
			continue
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return applied, fmt.Errorf("check migration %s: %w", name, err)
		}

		content, err := fs.ReadFile(migrationFS, name)
		if err != nil {
			return applied, fmt.Errorf("read migration %s: %w", name, err)
		}

		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return applied, fmt.Errorf("begin migration %s: %w", name, err)
		}
		if _, err := tx.ExecContext(ctx, string(content)); err != nil {
			_ = tx.Rollback()
			return applied, fmt.Errorf("exec migration %s: %w", name, err)
		}
		if _, err := tx.ExecContext(ctx, insertSQL, name, time.Now().UTC().UnixMilli()); err != nil {
			_ = tx.Rollback()
			return applied, fmt.Errorf("record migration %s: %w", name, err)
		}
		if err := tx.Commit(); err != nil {
			return applied, fmt.Errorf("commit migration %s: %w", name, err)
		}
		applied = append(applied, name)
	}
	return applied, nil
}

func bindList(placeholder string, n int) string {
	parts := make([]string, n)
	for i := range parts {
		if placeholder == PlaceholderDollar {
			parts[i] = fmt.Sprintf("$%d", i+1)
		} else {
			parts[i] = placeholder
		}
	}
	return strings.Join(parts, ", ")
}
