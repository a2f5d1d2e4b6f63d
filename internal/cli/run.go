package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/evcraddock/listing-tracker/internal/logging"
	"github.com/evcraddock/listing-tracker/internal/pipeline"
)

func newRunCmd() *cobra.Command {
	var (
		day     int
		through int
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Process daily feeds",
		Long: `Process daily feeds into snapshots.

With --day, process exactly that day; its previous day must already have a snapshot.
With --through, process every day after the latest snapshot up to and including N.
With neither, process the next day without a snapshot.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("day") && cmd.Flags().Changed("through") {
				return errors.New("--day and --through are mutually exclusive")
			}
			if (cmd.Flags().Changed("day") && day < 0) || (cmd.Flags().Changed("through") && through < 0) {
				return errors.New("day must not be negative")
			}

			cfg, err := loadConfig(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			catalog, err := loadCatalog(cfg)
			if err != nil {
				return err
			}
			store, closeStore, err := openStore(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer closeStore()

			p := &pipeline.Pipeline{
				Feeds:    newFeedLoader(cfg),
				Store:    store,
				Catalog:  catalog,
				Delivery: newDeliverer(cfg),
				Logger:   logging.For("pipeline"),
			}

			var reports []*pipeline.Report
			switch {
			case cmd.Flags().Changed("through"):
				reports, err = p.RunThrough(cmd.Context(), through)
			default:
				target := day
				if !cmd.Flags().Changed("day") {
					if target, err = p.NextDay(cmd.Context()); err != nil {
						return err
					}
				}
				var rep *pipeline.Report
				rep, err = p.RunDay(cmd.Context(), target)
				if rep != nil {
					reports = append(reports, rep)
				}
			}

			if perr := printReports(cmd.OutOrStdout(), reports); perr != nil {
				return errors.Join(err, perr)
			}
			if err != nil {
				return fmt.Errorf("run: %w", err)
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&day, "day", -1, "process a single day")
	cmd.Flags().IntVar(&through, "through", -1, "process all pending days up to this one")

	return cmd
}
