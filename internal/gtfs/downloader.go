package gtfs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"
)

// Downloader fetches a static GTFS zip once, when no local copy exists.
// A session never refreshes the file after it has been read.
type Downloader struct {
	client *http.Client
	url    string
	path   string // destination zip
	logger *slog.Logger
}

// NewDownloader creates a Downloader that stores the feed at path.
func NewDownloader(url, path string, logger *slog.Logger) *Downloader {
	return &Downloader{
		client: &http.Client{Timeout: 2 * time.Minute},
		url:    url,
		path:   path,
		logger: logger,
	}
}

// EnsureFeed returns the local zip path, downloading it first if missing.
func (d *Downloader) EnsureFeed(ctx context.Context) (string, error) {
	if _, err := os.Stat(d.path); err == nil {
		d.logger.Info("GTFS feed already present", "path", d.path)
		return d.path, nil
	} else if !errors.Is(err, fs.ErrNotExist) {
		return "", fmt.Errorf("stat feed: %w", err)
	}
	if err := d.download(ctx); err != nil {
		return "", err
	}
	return d.path, nil
}

func (d *Downloader) download(ctx context.Context) error {
	dir := filepath.Dir(d.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create dir: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, d.url, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	d.logger.Info("downloading GTFS feed", "url", d.url)
	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("GET request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}

	tmpFile, err := os.CreateTemp(dir, "gtfs-*.zip")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	written, err := io.Copy(tmpFile, resp.Body)
	if cerr := tmpFile.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(tmpFile.Name())
		return fmt.Errorf("write file: %w", err)
	}
	if err := os.Rename(tmpFile.Name(), d.path); err != nil {
		os.Remove(tmpFile.Name())
		return fmt.Errorf("move feed into place: %w", err)
	}

	d.logger.Info("GTFS feed downloaded",
		"path", filepath.Base(d.path),
		"size_mb", fmt.Sprintf("%.1f", float64(written)/(1024*1024)),
	)
	return nil
}
