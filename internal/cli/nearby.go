package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/evcraddock/listing-tracker/internal/client"
)

func newNearbyCmd() *cobra.Command {
	var (
		server   string
		lat, lon float64
		miles    float64
	)

	cmd := &cobra.Command{
		Use:   "nearby",
		Short: "Query a running server for listings near a point",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if server == "" {
				cfg, err := loadConfig(cmd.ErrOrStderr())
				if err != nil {
					return err
				}
				server = fmt.Sprintf("http://localhost:%d", cfg.Server.Port)
			}

			records, err := client.New(server).WithinRadius(cmd.Context(), lat, lon, miles)
			if err != nil {
				return err
			}
			if isJSON() {
				return printJSON(cmd.OutOrStdout(), records)
			}
			return printRecordTable(cmd.OutOrStdout(), records)
		},
	}

	cmd.Flags().StringVar(&server, "server", "", "server URL (default: http://localhost:<server.port>)")
	cmd.Flags().Float64Var(&lat, "lat", 0, "latitude")
	cmd.Flags().Float64Var(&lon, "lon", 0, "longitude")
	cmd.Flags().Float64Var(&miles, "miles", 0, "search radius in miles (default: server setting)")
	_ = cmd.MarkFlagRequired("lat")
	_ = cmd.MarkFlagRequired("lon")

	return cmd
}
