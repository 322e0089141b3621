package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Source kinds for the feed tables.
const (
	SourceDir    = "dir"
	SourceZip    = "zip"
	SourceSQLite = "sqlite"
)

// Config holds application configuration. Values come from defaults, then an
// optional YAML file, then environment variables, then CLI flags in main.
type Config struct {
	Port        int    `yaml:"port" validate:"gt=0,lt=65536"`
	Source      string `yaml:"source" validate:"oneof=dir zip sqlite"`
	DataDir     string `yaml:"data_dir" validate:"required_if=Source dir"`
	ZipPath     string `yaml:"zip_path" validate:"required_if=Source zip"`
	DBPath      string `yaml:"db_path" validate:"required_if=Source sqlite"`
	ModelPath   string `yaml:"model_path"`
	GTFSURL     string `yaml:"gtfs_url" validate:"omitempty,url"`
	Month       int    `yaml:"month" validate:"min=1,max=12"`
	PreviewRows int    `yaml:"preview_rows" validate:"gt=0"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Port:        8080,
		Source:      SourceDir,
		DataDir:     "./data",
		ZipPath:     "./data/gtfs.zip",
		DBPath:      "./transitrisk.db",
		ModelPath:   "./data/risk_model.json",
		Month:       1,
		PreviewRows: 20,
	}
}

// Load builds the configuration. path names a YAML file; when empty,
// TRANSITRISK_CONFIG is consulted, and with neither no file is read.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		path = os.Getenv("TRANSITRISK_CONFIG")
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	cfg.Port = envInt("TRANSITRISK_PORT", cfg.Port)
	cfg.Source = envStr("TRANSITRISK_SOURCE", cfg.Source)
	cfg.DataDir = envStr("TRANSITRISK_DATA_DIR", cfg.DataDir)
	cfg.ZipPath = envStr("TRANSITRISK_ZIP_PATH", cfg.ZipPath)
	cfg.DBPath = envStr("TRANSITRISK_DB_PATH", cfg.DBPath)
	cfg.ModelPath = envStr("TRANSITRISK_MODEL_PATH", cfg.ModelPath)
	cfg.GTFSURL = envStr("TRANSITRISK_GTFS_URL", cfg.GTFSURL)
	cfg.Month = envInt("TRANSITRISK_MONTH", cfg.Month)
	cfg.PreviewRows = envInt("TRANSITRISK_PREVIEW_ROWS", cfg.PreviewRows)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks field constraints. main calls it again after applying flags.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

// EnvBool reads a boolean environment variable with a fallback.
func EnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}
