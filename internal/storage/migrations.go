package storage

import (
	"context"
	"fmt"
)

// migrate applies the migrations past the database's user_version in one
// transaction and records the new version.
func (db *DB) migrate(ctx context.Context) error {
	from, err := db.SchemaVersion(ctx)
	if err != nil {
		return err
	}
	if from >= len(migrations) {
		db.logger.Debug("database schema current", "version", from)
		return nil
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin migration: %w", err)
	}
	defer tx.Rollback()

	for i := from; i < len(migrations); i++ {
		if _, err := tx.ExecContext(ctx, migrations[i]); err != nil {
			return fmt.Errorf("migration %d: %w", i, err)
		}
	}
	// PRAGMA does not take bind parameters.
	if _, err := tx.ExecContext(ctx, fmt.Sprintf("PRAGMA user_version = %d", len(migrations))); err != nil {
		return fmt.Errorf("set schema version: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit migration: %w", err)
	}
	db.logger.Info("database migrations applied", "from", from, "to", len(migrations))
	return nil
}

// SchemaVersion reports how many migrations the database has applied.
func (db *DB) SchemaVersion(ctx context.Context) (int, error) {
	var v int
	if err := db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&v); err != nil {
		return 0, fmt.Errorf("read schema version: %w", err)
	}
	return v, nil
}

// Raw values are stored as TEXT so rows the aggregator would drop
// (bad dates, unknown exception codes) survive a round trip unchanged.
// Stop coordinates are NULL when the feed left them blank.
var migrations = []string{
	`CREATE TABLE IF NOT EXISTS calendar (
		service_id TEXT NOT NULL,
		monday     TEXT NOT NULL DEFAULT '0',
		tuesday    TEXT NOT NULL DEFAULT '0',
		wednesday  TEXT NOT NULL DEFAULT '0',
		thursday   TEXT NOT NULL DEFAULT '0',
		friday     TEXT NOT NULL DEFAULT '0',
		saturday   TEXT NOT NULL DEFAULT '0',
		sunday     TEXT NOT NULL DEFAULT '0',
		start_date TEXT NOT NULL DEFAULT '',
		end_date   TEXT NOT NULL DEFAULT ''
	)`,

	`CREATE TABLE IF NOT EXISTS calendar_dates (
		service_id     TEXT NOT NULL,
		date           TEXT NOT NULL,
		exception_type TEXT NOT NULL
	)`,

	`CREATE TABLE IF NOT EXISTS stops (
		stop_id   TEXT NOT NULL,
		stop_name TEXT,
		stop_lat  REAL,
		stop_lon  REAL
	)`,

	`CREATE TABLE IF NOT EXISTS frequencies (
		trip_id      TEXT NOT NULL,
		start_time   TEXT NOT NULL,
		end_time     TEXT,
		headway_secs TEXT
	)`,

	`CREATE TABLE IF NOT EXISTS feed_metadata (
		key   TEXT PRIMARY KEY,
		value TEXT NOT NULL
	)`,

	`CREATE INDEX IF NOT EXISTS idx_calendar_dates_date ON calendar_dates(date)`,
}
