// Package cli defines the cobra command tree for listing-tracker.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/evcraddock/listing-tracker/internal/client"
	"github.com/evcraddock/listing-tracker/internal/config"
	"github.com/evcraddock/listing-tracker/internal/db"
	"github.com/evcraddock/listing-tracker/internal/feed"
	"github.com/evcraddock/listing-tracker/internal/logging"
	"github.com/evcraddock/listing-tracker/internal/market"
	"github.com/evcraddock/listing-tracker/internal/snapshot"
)

var (
	flagFormat string
	flagConfig string
)

// NewRootCmd creates the root cobra command with global flags.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "lt",
		Short:         "Track real-estate listings across daily feeds",
		Long:          "Merge daily listing feeds from several providers, track which listings are active or off market, and serve the results.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&flagFormat, "format", "text", "output format (text|json)")
	root.PersistentFlags().StringVar(&flagConfig, "config", "", "config file (default: ./"+config.DefaultFile+")")

	root.AddCommand(
		newRunCmd(),
		newSnapshotCmd(),
		newMarketsCmd(),
		newNearbyCmd(),
		newServeCmd(),
		newVersionCmd(),
	)

	return root
}

// loadConfig reads the --config file, or lt.yaml if present, and sets up
// logging on logOut. Commands that print results log to stderr so stdout
// stays parseable.
func loadConfig(logOut io.Writer) (config.Config, error) {
	path, required := flagConfig, true
	if path == "" {
		path, required = config.DefaultFile, false
	}
	cfg, err := config.Load(path, required)
	if err != nil {
		return config.Config{}, err
	}
	logging.Setup(logOut, cfg.DevLogging(logging.IsTerminal()))
	return cfg, nil
}

// openStore opens the configured snapshot backend. The returned close
// function releases any connections.
func openStore(ctx context.Context, cfg config.Config) (snapshot.Store, func(), error) {
	switch cfg.Snapshot.Backend {
	case config.BackendSQLite:
		d, err := db.Open(cfg.Snapshot.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		return snapshot.NewSQLiteStore(d), func() {
			if err := d.Close(); err != nil {
				fmt.Fprintf(os.Stderr, "warning: closing database: %v\n", err)
			}
		}, nil
	case config.BackendPostgres:
		s, err := snapshot.OpenPostgres(ctx, cfg.Snapshot.PostgresDSN)
		if err != nil {
			return nil, nil, err
		}
		return s, s.Close, nil
	default:
		return snapshot.NewFileStore(cfg.Snapshot.Dir), func() {}, nil
	}
}

// loadCatalog reads the configured market catalog.
func loadCatalog(cfg config.Config) (*market.Catalog, error) {
	return market.LoadFile(cfg.MarketsFile)
}

// newFeedLoader builds the feed loader for the configured providers.
func newFeedLoader(cfg config.Config) *feed.Loader {
	return &feed.Loader{Dir: cfg.FeedsDir, Providers: cfg.FeedProviders()}
}

// newDeliverer returns the HTTP deliverer, or nil when no URL is configured.
// A nil deliverer skips delivery and leaves reports marked undelivered.
func newDeliverer(cfg config.Config) client.Deliverer {
	if cfg.Delivery.URL == "" {
		return nil
	}
	c := client.New(cfg.Delivery.URL)
	c.MaxAttempts = cfg.Delivery.MaxAttempts
	c.Backoff = cfg.Delivery.Backoff
	return c
}

// isJSON returns true if the --format flag is set to json.
func isJSON() bool {
	return flagFormat == "json"
}
