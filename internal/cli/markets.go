package cli

import (
	"github.com/spf13/cobra"
)

func newMarketsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "markets",
		Short: "List the market catalog",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			catalog, err := loadCatalog(cfg)
			if err != nil {
				return err
			}
			return printMarkets(cmd.OutOrStdout(), catalog.Markets())
		},
	}
}
