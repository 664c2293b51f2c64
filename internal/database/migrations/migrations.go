// Package migrations applies additive schema changes to the environment store.
//
// Each migration is registered from its own file named YYYYMMDD-HHmmss-description.go
// and is recorded in schema_migrations once applied, so startup can run Apply
// unconditionally against both fresh and existing databases.
package migrations

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"
)

// Migration is a single, ordered schema change.
type Migration struct {
	Timestamp   string   // YYYYMMDD-HHmmss, used for ordering and tracking
	Description string   // Human-readable description
	Up          []string // SQL statements, executed in one transaction
}

// AppliedMigration is a row of schema_migrations.
type AppliedMigration struct {
	Timestamp   string
	Description string
	AppliedAt   time.Time
}

var registry []Migration

// Register adds a migration. Called from init() in each migration file.
func Register(m Migration) {
	registry = append(registry, m)
}

func sorted() []Migration {
	out := make([]Migration, len(registry))
	copy(out, registry)
	sort.Slice(out, func(i, j int) bool {
		return out[i].Timestamp < out[j].Timestamp
	})
	return out
}

// Run applies every pending migration in timestamp order.
func Run(db *sql.DB, logger *slog.Logger) error {
	return RunContext(context.Background(), db, logger)
}

// RunContext is Run with a caller-supplied context.
func RunContext(ctx context.Context, db *sql.DB, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}

	if _, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version TEXT PRIMARY KEY,
			description TEXT NOT NULL,
			applied_at TEXT NOT NULL
		)
	`); err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	applied, err := appliedVersions(ctx, db)
	if err != nil {
		return fmt.Errorf("failed to read applied migrations: %w", err)
	}

	for _, m := range sorted() {
		if applied[m.Timestamp] {
			continue
		}

		logger.Info("applying migration", "version", m.Timestamp, "description", m.Description)
		if err := apply(ctx, db, m); err != nil {
			return fmt.Errorf("migration %s (%s) failed: %w", m.Timestamp, m.Description, err)
		}
	}

	return nil
}

func appliedVersions(ctx context.Context, db *sql.DB) (map[string]bool, error) {
	rows, err := db.QueryContext(ctx, "SELECT version FROM schema_migrations")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	applied := make(map[string]bool)
	for rows.Next() {
		var version string
		if err := rows.Scan(&version); err != nil {
			return nil, err
		}
		applied[version] = true
	}
	return applied, rows.Err()
}

func apply(ctx context.Context, db *sql.DB, m Migration) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, stmt := range m.Up {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			if isIdempotentFailure(err, stmt) {
				continue
			}
			return fmt.Errorf("failed to execute statement: %w\n%s", err, stmt)
		}
	}

	if _, err := tx.ExecContext(ctx,
		"INSERT INTO schema_migrations (version, description, applied_at) VALUES (?, ?, ?)",
		m.Timestamp, m.Description, time.Now().UTC().Format(time.RFC3339),
	); err != nil {
		return fmt.Errorf("failed to record migration: %w", err)
	}

	return tx.Commit()
}

// isIdempotentFailure reports errors caused by a change that is already present,
// e.g. a column added by hand or by an older build before tracking existed.
func isIdempotentFailure(err error, stmt string) bool {
	msg := err.Error()

	if strings.Contains(msg, "duplicate column") {
		return true
	}
	if strings.Contains(msg, "already exists") && strings.Contains(stmt, "CREATE INDEX") {
		return true
	}
	return false
}

// Applied lists the migrations recorded in the database.
func Applied(db *sql.DB) ([]AppliedMigration, error) {
	rows, err := db.Query("SELECT version, description, applied_at FROM schema_migrations ORDER BY version")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []AppliedMigration
	for rows.Next() {
		var m AppliedMigration
		var appliedAt string
		if err := rows.Scan(&m.Timestamp, &m.Description, &appliedAt); err != nil {
			return nil, err
		}
		m.AppliedAt, _ = time.Parse(time.RFC3339, appliedAt)
		out = append(out, m)
	}
	return out, rows.Err()
}

// Pending lists registered migrations not yet applied.
func Pending(db *sql.DB) ([]Migration, error) {
	applied, err := appliedVersions(context.Background(), db)
	if err != nil {
		return nil, err
	}

	var pending []Migration
	for _, m := range sorted() {
		if !applied[m.Timestamp] {
			pending = append(pending, m)
		}
	}
	return pending, nil
}

// LatestVersion returns the newest applied version, or "" if none.
func LatestVersion(db *sql.DB) (string, error) {
	var version sql.NullString
	err := db.QueryRow("SELECT MAX(version) FROM schema_migrations").Scan(&version)
	if err != nil {
		return "", err
	}
	return version.String, nil
}
