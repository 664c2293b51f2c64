// Package database opens the SQLite environment store and applies migrations.
package database

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite" // Pure Go SQLite driver

	"github.com/jmylchreest/chromenv/internal/database/migrations"
)

// MemoryPath selects a private in-memory database.
const MemoryPath = ":memory:"

// DB wraps the connection pool with the path it was opened from.
type DB struct {
	*sql.DB
	path   string
	logger *slog.Logger
}

// Open connects to the database at path, creating parent directories as needed,
// and brings the schema up to date.
func Open(ctx context.Context, path string, logger *slog.Logger) (*DB, error) {
	if logger == nil {
		logger = slog.Default()
	}

	dsn := dsnFor(path)
	if path != MemoryPath {
		if dir := filepath.Dir(path); dir != "" && dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("failed to create database directory: %w", err)
			}
		}
	}

	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite is single-writer; one connection also keeps an in-memory database alive.
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)
	sqlDB.SetConnMaxLifetime(0)

	if err := sqlDB.PingContext(ctx); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if err := migrations.RunContext(ctx, sqlDB, logger); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	logger.Info("environment store ready", "path", path)
	return &DB{DB: sqlDB, path: path, logger: logger}, nil
}

func dsnFor(path string) string {
	if path == MemoryPath {
		return "file::memory:?_pragma=foreign_keys(1)"
	}
	return "file:" + path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"
}

// Path returns the location the database was opened from.
func (db *DB) Path() string {
	return db.path
}

// Close checkpoints the WAL for file databases and closes the pool.
func (db *DB) Close() error {
	if db.path != MemoryPath {
		if _, err := db.Exec("PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
			db.logger.Warn("failed to checkpoint WAL before close", "error", err)
		}
	}
	return db.DB.Close()
}
