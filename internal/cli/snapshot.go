package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

func newSnapshotCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Inspect saved snapshots",
	}
	cmd.AddCommand(newSnapshotShowCmd(), newSnapshotLatestCmd())
	return cmd
}

func newSnapshotShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <day>",
		Short: "Show the snapshot for a day",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			day, err := strconv.Atoi(args[0])
			if err != nil || day < 0 {
				return fmt.Errorf("invalid day: %s", args[0])
			}

			cfg, err := loadConfig(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			store, closeStore, err := openStore(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer closeStore()

			records, err := store.Load(cmd.Context(), day)
			if err != nil {
				return err
			}
			return printSnapshot(cmd.OutOrStdout(), day, records)
		},
	}
}

func newSnapshotLatestCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "latest",
		Short: "Show the most recent snapshot",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			store, closeStore, err := openStore(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer closeStore()

			day, records, err := store.Latest(cmd.Context())
			if err != nil {
				return err
			}
			return printSnapshot(cmd.OutOrStdout(), day, records)
		},
	}
}
