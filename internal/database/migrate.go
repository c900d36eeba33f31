package database

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"log/slog"
	"sort"
	"strings"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Migrate applies every embedded *.up.sql file not yet recorded in
// schema_migrations, in file name order. Each file runs in its own transaction.
func Migrate(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (version TEXT PRIMARY KEY)`); err != nil {
		return fmt.Errorf("creating schema_migrations: %w", err)
	}

	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("reading migrations: %w", err)
	}

	var names []string

	for _, e := range entries {
		if strings.HasSuffix(e.Name(), ".up.sql") {
			names = append(names, e.Name())
		}
	}

	sort.Strings(names)

	for _, name := range names {
		if err := apply(ctx, db, name); err != nil {
			return err
		}
	}

	return nil
}

func apply(ctx context.Context, db *sql.DB, name string) error {
	var exists bool

	err := db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM schema_migrations WHERE version = $1)`, name).Scan(&exists)
	if err != nil {
		return fmt.Errorf("checking migration %s: %w", name, err)
	}

	if exists {
		return nil
	}

	body, err := migrationsFS.ReadFile("migrations/" + name)
	if err != nil {
		return fmt.Errorf("reading migration %s: %w", name, err)
	}

	dbTx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning migration %s: %w", name, err)
	}
	defer dbTx.Rollback()

	if _, err := dbTx.ExecContext(ctx, string(body)); err != nil {
		return fmt.Errorf("applying migration %s: %w", name, err)
	}

	if _, err := dbTx.ExecContext(ctx, `INSERT INTO schema_migrations (version) VALUES ($1)`, name); err != nil {
		return fmt.Errorf("recording migration %s: %w", name, err)
	}

	if err := dbTx.Commit(); err != nil {
		return fmt.Errorf("committing migration %s: %w", name, err)
	}

	slog.Info("applied migration", "version", name)

	return nil
}
