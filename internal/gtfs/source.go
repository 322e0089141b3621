package gtfs

import (
	"archive/zip"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"transitrisk/internal/storage"
)

// Source yields whole tables by dataset name.
type Source interface {
	ReadTable(ctx context.Context, name string) (*RawTable, error)
}

// DirSource reads <dir>/<name>.csv, falling back to <dir>/<name>.txt.
type DirSource struct {
	Dir string
}

func (s DirSource) ReadTable(ctx context.Context, name string) (*RawTable, error) {
	var lastErr error
	for _, ext := range []string{".csv", ".txt"} {
		path := filepath.Join(s.Dir, name+ext)
		f, err := os.Open(path)
		if errors.Is(err, fs.ErrNotExist) {
			lastErr = err
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", path, err)
		}
		defer f.Close()
		return ReadCSV(f)
	}
	return nil, fmt.Errorf("no %s.csv or %s.txt in %s: %w", name, name, s.Dir, lastErr)
}

// ZipSource reads tables from a GTFS zip archive. The archive is reopened on
// every read; the catalog caches the decoded result.
type ZipSource struct {
	Path string
}

func (s ZipSource) ReadTable(ctx context.Context, name string) (*RawTable, error) {
	r, err := zip.OpenReader(s.Path)
	if err != nil {
		return nil, fmt.Errorf("open zip: %w", err)
	}
	defer r.Close()

	for _, f := range r.File {
		base := strings.ToLower(filepath.Base(f.Name))
		if base != name+".txt" && base != name+".csv" {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", f.Name, err)
		}
		defer rc.Close()
		return ReadCSV(rc)
	}
	return nil, fmt.Errorf("%s.txt not found in %s: %w", name, filepath.Base(s.Path), fs.ErrNotExist)
}

// DBSource reads tables previously imported into SQLite.
type DBSource struct {
	DB *storage.DB
}

func (s DBSource) ReadTable(ctx context.Context, name string) (*RawTable, error) {
	header, rows, err := s.DB.ReadTable(ctx, name)
	if err != nil {
		return nil, err
	}
	return &RawTable{Header: header, Rows: rows}, nil
}
