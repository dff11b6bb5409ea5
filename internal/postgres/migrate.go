package postgres

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"log/slog"
	"sort"
	"strings"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Migrate applies pending embedded migrations in file-name order, one
// transaction per file. It returns the ids applied by this call.
func Migrate(ctx context.Context, q querier) ([]string, error) {
	if _, err := q.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS talk_schema_migrations (
			id         TEXT PRIMARY KEY,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)
	`); err != nil {
		return nil, fmt.Errorf("create talk_schema_migrations: %w", err)
	}

	names, err := fs.Glob(migrationsFS, "migrations/*.sql")
	if err != nil {
		return nil, fmt.Errorf("list migrations: %w", err)
	}
	sort.Strings(names)

	applied, err := appliedMigrations(ctx, q)
	if err != nil {
		return nil, err
	}

	var done []string
	for _, name := range names {
		id := strings.TrimSuffix(strings.TrimPrefix(name, "migrations/"), ".sql")
		if applied[id] {
			continue
		}
		body, err := migrationsFS.ReadFile(name)
		if err != nil {
			return done, fmt.Errorf("read migration %s: %w", id, err)
		}

		tx, err := q.Begin(ctx)
		if err != nil {
			return done, fmt.Errorf("begin migration %s: %w", id, err)
		}
		if _, err := tx.Exec(ctx, string(body)); err != nil {
			_ = tx.Rollback(ctx)
			return done, fmt.Errorf("apply migration %s: %w", id, err)
		}
		if _, err := tx.Exec(ctx, `INSERT INTO talk_schema_migrations (id) VALUES ($1)`, id); err != nil {
			_ = tx.Rollback(ctx)
			return done, fmt.Errorf("record migration %s: %w", id, err)
		}
		if err := tx.Commit(ctx); err != nil {
			return done, fmt.Errorf("commit migration %s: %w", id, err)
		}
		slog.Info("migration applied", "id", id)
		done = append(done, id)
	}
	return done, nil
}

func appliedMigrations(ctx context.Context, q querier) (map[string]bool, error) {
	rows, err := q.Query(ctx, `SELECT id FROM talk_schema_migrations`)
	if err != nil {
		return nil, fmt.Errorf("query talk_schema_migrations: %w", err)
	}
	defer rows.Close()

	applied := map[string]bool{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan talk_schema_migrations: %w", err)
		}
		applied[id] = true
	}
	return applied, rows.Err()
}
