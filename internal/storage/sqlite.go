package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
)

// DB is the feed database. The importer writes it in one transaction and
// DBSource reads it back table by table.
type DB struct {
	*sql.DB
	path   string
	logger *slog.Logger
}

// dataSourceName builds the go-sqlite3 DSN for path. WAL lets a dashboard
// keep reading while an import replaces the tables.
func dataSourceName(path string) string {
	q := url.Values{}
	q.Set("_journal_mode", "WAL")
	q.Set("_busy_timeout", "5000")
	q.Set("_synchronous", "NORMAL")
	q.Set("_txlock", "immediate")
	return "file:" + path + "?" + q.Encode()
}

// Open creates or opens the feed database at path, creating its directory
// if needed, and brings the schema up to date.
func Open(ctx context.Context, path string, logger *slog.Logger) (*DB, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create database dir: %w", err)
		}
	}
	sqlDB, err := sql.Open("sqlite3", dataSourceName(path))
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("ping database %s: %w", path, err)
	}

	db := &DB{DB: sqlDB, path: path, logger: logger.With("db", path)}
	if err := db.migrate(ctx); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("migrate database: %w", err)
	}
	db.logger.Info("database opened")
	return db, nil
}

// Path returns the file the database was opened from.
func (db *DB) Path() string { return db.path }

// Close closes the underlying pool.
func (db *DB) Close() error {
	if err := db.DB.Close(); err != nil {
		return fmt.Errorf("close database: %w", err)
	}
	db.logger.Debug("database closed")
	return nil
}
