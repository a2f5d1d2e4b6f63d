package cli

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/evcraddock/listing-tracker/internal/config"
	"github.com/evcraddock/listing-tracker/internal/logging"
	"github.com/evcraddock/listing-tracker/internal/snapshot"
	"github.com/evcraddock/listing-tracker/internal/web"
)

func newServeCmd() *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the listing server",
		Long:  "Start an HTTP server that receives delivered listings and answers radius queries against the latest snapshot.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd.OutOrStdout())
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("port") {
				cfg.Server.Port = port
			}
			return runServe(cmd.Context(), cfg)
		},
	}

	cmd.Flags().IntVar(&port, "port", 5000, "port to listen on (overrides server.port)")

	return cmd
}

func runServe(ctx context.Context, cfg config.Config) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	// Only file snapshots can be watched; database backends are read through.
	var snaps web.Snapshots = store
	var cache *snapshot.Cache
	if cfg.Snapshot.Backend == config.BackendFile {
		cache = snapshot.NewCache(store)
		snaps = cache
	}

	srv, err := web.NewServer(snaps, web.Options{
		ReceivedPath: cfg.Server.ReceivedPath,
		RadiusMiles:  cfg.Server.RadiusMiles,
		Logger:       logging.For("web"),
	})
	if err != nil {
		return err
	}

	g, ctx := errgroup.WithContext(ctx)
	if cache != nil {
		g.Go(func() error {
			return snapshot.Watch(ctx, cfg.Snapshot.Dir, cache, logging.For("snapshot"))
		})
	}
	g.Go(func() error {
		return srv.ListenAndServe(ctx, cfg.Server.Port)
	})
	return g.Wait()
}
