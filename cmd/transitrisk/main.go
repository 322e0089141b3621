package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"transitrisk/internal/config"
	"transitrisk/internal/dashboard"
	"transitrisk/internal/gtfs"
	"transitrisk/internal/risk"
	"transitrisk/internal/server"
	"transitrisk/internal/storage"
)

func main() {
	level := slog.LevelInfo
	if config.EnvBool("TRANSITRISK_DEBUG", false) {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))

	// CLI flags
	configPath := flag.String("config", "", "YAML config file (or TRANSITRISK_CONFIG)")
	port := flag.Int("port", 0, "HTTP server port")
	source := flag.String("source", "", "Feed source: dir, zip or sqlite")
	dataDir := flag.String("data-dir", "", "Directory holding the feed CSV/TXT files")
	zipPath := flag.String("zip", "", "GTFS zip archive")
	dbPath := flag.String("db", "", "SQLite database for imported feeds")
	modelPath := flag.String("model", "", "Risk model JSON file")
	gtfsURL := flag.String("gtfs-url", "", "Download the GTFS zip from this URL when it is missing")
	month := flag.Int("month", 0, "Month (1-12) for reports and the default dashboard view")
	importDB := flag.Bool("import-db", false, "Import the configured source into -db, then exit")
	report := flag.Bool("report", false, "Print the report for -month as JSON, then exit")
	predict := flag.Bool("predict", false, "Include a risk prediction in -report")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "port":
			cfg.Port = *port
		case "source":
			cfg.Source = *source
		case "data-dir":
			cfg.DataDir = *dataDir
		case "zip":
			cfg.ZipPath = *zipPath
		case "db":
			cfg.DBPath = *dbPath
		case "model":
			cfg.ModelPath = *modelPath
		case "gtfs-url":
			cfg.GTFSURL = *gtfsURL
		case "month":
			cfg.Month = *month
		}
	})
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid flags", "error", err)
		os.Exit(1)
	}

	// Cancelled on SIGINT/SIGTERM for graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	src, origin, closeSrc, err := openSource(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to open feed source", "source", cfg.Source, "error", err)
		os.Exit(1)
	}
	defer closeSrc()

	cat := gtfs.NewCatalog(src, logger)

	if *importDB {
		if err := importFeed(ctx, cfg, cat, origin, logger); err != nil {
			logger.Error("feed import failed", "error", err)
			os.Exit(1)
		}
		return
	}

	session := dashboard.NewSession(cat, risk.NewAdapter(cfg.ModelPath, logger), cfg.PreviewRows, logger)

	if *report {
		r, err := session.BuildReport(ctx, cfg.Month, *predict)
		if err != nil {
			logger.Error("report failed", "error", err)
			os.Exit(1)
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(r); err != nil {
			logger.Error("write report", "error", err)
			os.Exit(1)
		}
		return
	}

	srv := server.New(cfg, session, logger)
	if err := srv.ListenAndServe(ctx); err != nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
}

// openSource builds the configured table source. The returned func releases it.
func openSource(ctx context.Context, cfg *config.Config, logger *slog.Logger) (gtfs.Source, string, func(), error) {
	noop := func() {}
	switch cfg.Source {
	case config.SourceDir:
		return gtfs.DirSource{Dir: cfg.DataDir}, cfg.DataDir, noop, nil

	case config.SourceZip:
		path := cfg.ZipPath
		if cfg.GTFSURL != "" {
			var err error
			path, err = gtfs.NewDownloader(cfg.GTFSURL, cfg.ZipPath, logger).EnsureFeed(ctx)
			if err != nil {
				return nil, "", noop, fmt.Errorf("fetch feed: %w", err)
			}
		}
		return gtfs.ZipSource{Path: path}, path, noop, nil

	case config.SourceSQLite:
		db, err := storage.Open(ctx, cfg.DBPath, logger)
		if err != nil {
			return nil, "", noop, err
		}
		if !db.HasData(ctx) {
			logger.Warn("database has no imported feed; run with -import-db first", "path", cfg.DBPath)
		}
		return gtfs.DBSource{DB: db}, cfg.DBPath, func() { db.Close() }, nil
	}
	return nil, "", noop, fmt.Errorf("unknown source %q", cfg.Source)
}

func importFeed(ctx context.Context, cfg *config.Config, cat *gtfs.Catalog, origin string, logger *slog.Logger) error {
	if cfg.Source == config.SourceSQLite {
		return errors.New("-import-db needs a dir or zip source")
	}
	db, err := storage.Open(ctx, cfg.DBPath, logger)
	if err != nil {
		return err
	}
	defer db.Close()
	return gtfs.NewImporter(db, logger).Import(ctx, cat, origin)
}
