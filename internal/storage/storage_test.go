package storage

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"log/slog"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

func openTemp(t *testing.T) *DB {
	t.Helper()
	db, err := Open(context.Background(), filepath.Join(t.TempDir(), "data", "feed.db"), discard)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestDataSourceName(t *testing.T) {
	dsn := dataSourceName("/tmp/feed.db")
	if !strings.HasPrefix(dsn, "file:/tmp/feed.db?") {
		t.Errorf("dsn = %q", dsn)
	}
	for _, p := range []string{"_journal_mode=WAL", "_busy_timeout=5000", "_txlock=immediate"} {
		if !strings.Contains(dsn, p) {
			t.Errorf("dsn %q missing %s", dsn, p)
		}
	}
}

func TestOpen_MigratesOnce(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "feed.db")

	db, err := Open(ctx, path, discard)
	if err != nil {
		t.Fatal(err)
	}
	if v, err := db.SchemaVersion(ctx); err != nil || v != len(migrations) {
		t.Fatalf("SchemaVersion = %d, %v, want %d", v, err, len(migrations))
	}
	if _, err := db.ExecContext(ctx, `INSERT INTO feed_metadata (key, value) VALUES ('origin', 'x')`); err != nil {
		t.Fatal(err)
	}
	if err := db.Close(); err != nil {
		t.Fatal(err)
	}

	db, err = Open(ctx, path, discard)
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()
	if db.Path() != path {
		t.Errorf("Path = %q, want %q", db.Path(), path)
	}
	if origin, _ := db.GetMetadata(ctx, "origin"); origin != "x" {
		t.Errorf("origin after reopen = %q, want x", origin)
	}
}

func TestReadTable_NotImported(t *testing.T) {
	db := openTemp(t)
	ctx := context.Background()

	if db.HasData(ctx) {
		t.Error("HasData = true on a fresh database")
	}
	for _, name := range []string{"stops", "routes"} {
		if _, _, err := db.ReadTable(ctx, name); !errors.Is(err, fs.ErrNotExist) {
			t.Errorf("ReadTable(%s) err = %v, want not-exist", name, err)
		}
	}
}

func TestReadTable_NullCoordinates(t *testing.T) {
	db := openTemp(t)
	ctx := context.Background()

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO stops (stop_id, stop_name, stop_lat, stop_lon) VALUES ('1', 'A', 44.9, -93.3), ('N1', 'node', NULL, NULL)`); err != nil {
		t.Fatal(err)
	}
	if err := SetMetadataTx(ctx, tx, "imported_at", "2024-01-01T00:00:00Z"); err != nil {
		t.Fatal(err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatal(err)
	}

	header, rows, err := db.ReadTable(ctx, "stops")
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(header, tableColumns["stops"]) {
		t.Errorf("header = %v", header)
	}
	want := [][]string{{"1", "A", "44.9", "-93.3"}, {"N1", "node", "", ""}}
	if !reflect.DeepEqual(rows, want) {
		t.Errorf("rows = %q, want %q", rows, want)
	}
}
