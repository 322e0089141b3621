package gtfs

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"math"
	"time"

	"transitrisk/internal/storage"
)

// Importer copies the feed tables from a Catalog into SQLite so later
// sessions can read them with DBSource.
type Importer struct {
	db     *storage.DB
	logger *slog.Logger
}

// NewImporter creates an Importer.
func NewImporter(db *storage.DB, logger *slog.Logger) *Importer {
	return &Importer{db: db, logger: logger}
}

// Import replaces the stored tables with the catalog's contents in a single transaction.
func (imp *Importer) Import(ctx context.Context, cat *Catalog, origin string) error {
	start := time.Now()

	calendar, err := cat.Calendar(ctx)
	if err != nil {
		return err
	}
	dates, err := cat.CalendarDates(ctx)
	if err != nil {
		return err
	}
	stops, err := cat.Stops(ctx)
	if err != nil {
		return err
	}
	freqs, err := cat.Frequencies(ctx)
	if err != nil {
		return err
	}

	tx, err := imp.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := imp.clearTables(ctx, tx); err != nil {
		return err
	}
	if err := imp.importCalendar(ctx, tx, calendar); err != nil {
		return err
	}
	if err := imp.importCalendarDates(ctx, tx, dates); err != nil {
		return err
	}
	if err := imp.importStops(ctx, tx, stops); err != nil {
		return err
	}
	if err := imp.importFrequencies(ctx, tx, freqs); err != nil {
		return err
	}

	now := time.Now().UTC().Format(time.RFC3339)
	if err := storage.SetMetadataTx(ctx, tx, "imported_at", now); err != nil {
		return fmt.Errorf("set imported_at: %w", err)
	}
	if err := storage.SetMetadataTx(ctx, tx, "origin", origin); err != nil {
		return fmt.Errorf("set origin: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	imp.logger.Info("feed import complete",
		"duration", time.Since(start).Round(time.Millisecond),
		"calendar", len(calendar),
		"calendar_dates", len(dates),
		"stops", len(stops),
		"frequencies", len(freqs),
	)
	return nil
}

func (imp *Importer) clearTables(ctx context.Context, tx *sql.Tx) error {
	tables := append([]string{"feed_metadata"}, Datasets...)
	for _, t := range tables {
		if _, err := tx.ExecContext(ctx, fmt.Sprintf("DELETE FROM %s", t)); err != nil {
			return fmt.Errorf("clear %s: %w", t, err)
		}
	}
	return nil
}

func (imp *Importer) importCalendar(ctx context.Context, tx *sql.Tx, entries []CalendarEntry) error {
	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO calendar (service_id, monday, tuesday, wednesday, thursday,
		 friday, saturday, sunday, start_date, end_date)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare calendar: %w", err)
	}
	defer stmt.Close()

	for _, c := range entries {
		if _, err := stmt.ExecContext(ctx, c.ServiceID, c.Monday, c.Tuesday, c.Wednesday,
			c.Thursday, c.Friday, c.Saturday, c.Sunday, c.StartDate, c.EndDate); err != nil {
			return fmt.Errorf("insert calendar %s: %w", c.ServiceID, err)
		}
	}
	imp.logger.Info("imported calendar entries", "count", len(entries))
	return nil
}

func (imp *Importer) importCalendarDates(ctx context.Context, tx *sql.Tx, dates []CalendarDate) error {
	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO calendar_dates (service_id, date, exception_type) VALUES (?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare calendar_dates: %w", err)
	}
	defer stmt.Close()

	for _, d := range dates {
		if _, err := stmt.ExecContext(ctx, d.ServiceID, d.Date, d.ExceptionType); err != nil {
			return fmt.Errorf("insert calendar_date %s/%s: %w", d.ServiceID, d.Date, err)
		}
	}
	imp.logger.Info("imported calendar dates", "count", len(dates))
	return nil
}

func (imp *Importer) importStops(ctx context.Context, tx *sql.Tx, stops []Stop) error {
	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO stops (stop_id, stop_name, stop_lat, stop_lon) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare stops: %w", err)
	}
	defer stmt.Close()

	for _, s := range stops {
		if _, err := stmt.ExecContext(ctx, s.StopID, s.StopName, nullCoord(s.StopLat), nullCoord(s.StopLon)); err != nil {
			return fmt.Errorf("insert stop %s: %w", s.StopID, err)
		}
	}
	imp.logger.Info("imported stops", "count", len(stops))
	return nil
}

func (imp *Importer) importFrequencies(ctx context.Context, tx *sql.Tx, freqs []Frequency) error {
	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO frequencies (trip_id, start_time, end_time, headway_secs) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare frequencies: %w", err)
	}
	defer stmt.Close()

	for _, f := range freqs {
		if _, err := stmt.ExecContext(ctx, f.TripID, f.StartTime, f.EndTime, f.HeadwaySecs); err != nil {
			return fmt.Errorf("insert frequency %s: %w", f.TripID, err)
		}
	}
	imp.logger.Info("imported frequencies", "count", len(freqs))
	return nil
}

// nullCoord stores a missing coordinate as NULL.
func nullCoord(v float64) any {
	if math.IsNaN(v) {
		return nil
	}
	return v
}
