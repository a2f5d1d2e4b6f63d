// Package config loads listing-tracker settings from a YAML file with
// environment overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/evcraddock/listing-tracker/internal/db"
	"github.com/evcraddock/listing-tracker/internal/feed"
	"github.com/evcraddock/listing-tracker/internal/listing"
)

// DefaultFile is read from the working directory when no --config is given.
const DefaultFile = "lt.yaml"

// Snapshot backends.
const (
	BackendFile     = "file"
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
)

// Config holds every setting the commands need.
type Config struct {
	DataDir     string           `yaml:"data_dir" validate:"required"`
	FeedsDir    string           `yaml:"feeds_dir" validate:"required"`
	MarketsFile string           `yaml:"markets_file" validate:"required"`
	Providers   []ProviderConfig `yaml:"providers" validate:"required,min=1,unique=Name,dive"`
	Snapshot    SnapshotConfig   `yaml:"snapshot"`
	Delivery    DeliveryConfig   `yaml:"delivery"`
	Server      ServerConfig     `yaml:"server"`
	Log         LogConfig        `yaml:"log"`
}

// ProviderConfig names one feed provider. Order in the list is priority order.
type ProviderConfig struct {
	Name   string `yaml:"name" validate:"required"`
	Format string `yaml:"format" validate:"required,feedformat"`
}

// SnapshotConfig selects where snapshots are persisted.
type SnapshotConfig struct {
	Backend     string `yaml:"backend" validate:"oneof=file sqlite postgres"`
	Dir         string `yaml:"dir" validate:"required_if=Backend file"`
	SQLitePath  string `yaml:"sqlite_path" validate:"required_if=Backend sqlite"`
	PostgresDSN string `yaml:"postgres_dsn" validate:"required_if=Backend postgres"`
}

// DeliveryConfig controls posting each day's records downstream.
// An empty URL disables delivery.
type DeliveryConfig struct {
	URL         string        `yaml:"url" validate:"omitempty,url"`
	MaxAttempts int           `yaml:"max_attempts" validate:"min=1,max=10"`
	Backoff     time.Duration `yaml:"backoff" validate:"gte=0"`
}

// ServerConfig configures lt serve.
type ServerConfig struct {
	Port         int     `yaml:"port" validate:"min=1,max=65535"`
	ReceivedPath string  `yaml:"received_path" validate:"required"`
	RadiusMiles  float64 `yaml:"radius_miles" validate:"gt=0"`
}

// LogConfig configures logging. Dev is nil when it should follow the terminal.
type LogConfig struct {
	Dev *bool `yaml:"dev"`
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("feedformat", func(fl validator.FieldLevel) bool {
		return slices.Contains(listing.Formats(), fl.Field().String())
	})
	return v
}

// Default returns the configuration used when no file is present: the
// data/ layout with the three built-in providers.
func Default() Config {
	providers := feed.DefaultProviders()
	pc := make([]ProviderConfig, len(providers))
	for i, p := range providers {
		pc[i] = ProviderConfig{Name: string(p.Name), Format: p.Format}
	}
	return Config{
		DataDir:   "data",
		Providers: pc,
		Snapshot:  SnapshotConfig{Backend: BackendFile},
		Delivery:  DeliveryConfig{MaxAttempts: 3, Backoff: 2 * time.Second},
		Server:    ServerConfig{Port: 5000, RadiusMiles: 65},
	}
}

// Load reads the config at path. A missing file is only an error when
// required is true; otherwise defaults are used. Environment overrides are
// applied before validation.
func Load(path string, required bool) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist) && !required:
	case err != nil:
		return Config{}, fmt.Errorf("reading config: %w", err)
	default:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parsing config %s: %w", path, err)
		}
	}

	if err := applyEnv(&cfg); err != nil {
		return Config{}, err
	}
	cfg.fillPaths()

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the config for missing or out-of-range values.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// FeedProviders converts the provider list for the feed loader.
func (c *Config) FeedProviders() []feed.Provider {
	out := make([]feed.Provider, len(c.Providers))
	for i, p := range c.Providers {
		out[i] = feed.Provider{Name: listing.Source(p.Name), Format: p.Format}
	}
	return out
}

// DevLogging reports whether logs should be human-readable. An unset value
// defers to isTerminal.
func (c *Config) DevLogging(isTerminal bool) bool {
	if c.Log.Dev != nil {
		return *c.Log.Dev
	}
	return isTerminal
}

// fillPaths derives paths left empty from DataDir.
func (c *Config) fillPaths() {
	if c.FeedsDir == "" {
		c.FeedsDir = filepath.Join(c.DataDir, "company_feeds")
	}
	if c.MarketsFile == "" {
		c.MarketsFile = filepath.Join(c.DataDir, "markets.json")
	}
	if c.Snapshot.Dir == "" {
		c.Snapshot.Dir = filepath.Join(c.DataDir, "snapshots")
	}
	if c.Snapshot.SQLitePath == "" {
		c.Snapshot.SQLitePath = db.DefaultPath(c.DataDir)
	}
	if c.Server.ReceivedPath == "" {
		c.Server.ReceivedPath = filepath.Join(c.DataDir, "received_properties.json")
	}
}

func applyEnv(c *Config) error {
	if v := os.Getenv("LT_DATA_DIR"); v != "" {
		c.DataDir = v
	}
	if v := os.Getenv("LT_SNAPSHOT_BACKEND"); v != "" {
		c.Snapshot.Backend = v
	}
	if v := os.Getenv("LT_POSTGRES_DSN"); v != "" {
		c.Snapshot.PostgresDSN = v
	}
	if v := os.Getenv("LT_DELIVERY_URL"); v != "" {
		c.Delivery.URL = v
	}
	if v := os.Getenv("LT_LOG_DEV"); v != "" {
		dev, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("parsing LT_LOG_DEV: %w", err)
		}
		c.Log.Dev = &dev
	}
	return nil
}
