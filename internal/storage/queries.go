package storage

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"
	"strings"
)

// tableColumns lists the readable tables and their column order.
var tableColumns = map[string][]string{
	"calendar": {"service_id", "monday", "tuesday", "wednesday", "thursday",
		"friday", "saturday", "sunday", "start_date", "end_date"},
	"calendar_dates": {"service_id", "date", "exception_type"},
	"stops":          {"stop_id", "stop_name", "stop_lat", "stop_lon"},
	"frequencies":    {"trip_id", "start_time", "end_time", "headway_secs"},
}

// GetMetadata retrieves a value from the feed_metadata table.
func (db *DB) GetMetadata(ctx context.Context, key string) (string, error) {
	var value string
	err := db.QueryRowContext(ctx, `SELECT value FROM feed_metadata WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return value, err
}

// SetMetadataTx stores a key-value pair in the feed_metadata table within tx.
func SetMetadataTx(ctx context.Context, tx *sql.Tx, key, value string) error {
	_, err := tx.ExecContext(ctx,
		`INSERT OR REPLACE INTO feed_metadata (key, value) VALUES (?, ?)`,
		key, value)
	return err
}

// HasData returns true if a feed has been imported.
func (db *DB) HasData(ctx context.Context) bool {
	imported, err := db.GetMetadata(ctx, "imported_at")
	return err == nil && imported != ""
}

// ReadTable returns every row of an imported table as strings, in insertion order.
// An unknown table, or a database with nothing imported, reports fs.ErrNotExist.
func (db *DB) ReadTable(ctx context.Context, name string) ([]string, [][]string, error) {
	cols, ok := tableColumns[name]
	if !ok {
		return nil, nil, fmt.Errorf("table %q: %w", name, fs.ErrNotExist)
	}
	if !db.HasData(ctx) {
		return nil, nil, fmt.Errorf("no feed imported: %w", fs.ErrNotExist)
	}

	rows, err := db.QueryContext(ctx, fmt.Sprintf(
		`SELECT %s FROM %s ORDER BY rowid`, strings.Join(cols, ", "), name))
	if err != nil {
		return nil, nil, fmt.Errorf("read %s: %w", name, err)
	}
	defer rows.Close()

	var out [][]string
	for rows.Next() {
		vals := make([]sql.NullString, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, nil, fmt.Errorf("scan %s: %w", name, err)
		}
		rec := make([]string, len(cols))
		for i, v := range vals {
			rec[i] = v.String
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("read %s: %w", name, err)
	}

	header := make([]string, len(cols))
	copy(header, cols)
	return header, out, nil
}
