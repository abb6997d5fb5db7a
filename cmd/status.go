package main

import (
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var statusLimit int

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the sync log",
	Long:  "Displays recent catalog and measurement sync runs, newest first.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		entries, err := st.ListSyncs(ctx, statusLimit)
		if err != nil {
			return eris.Wrap(err, "status")
		}

		if len(entries) == 0 {
			zap.L().Info("no sync entries found, run 'catalog sync' to start")
			return nil
		}

		formatStatusEntries(os.Stdout, entries)
		return nil
	},
}

func init() {
	statusCmd.Flags().IntVar(&statusLimit, "limit", 50, "maximum number of entries to show")
	rootCmd.AddCommand(statusCmd)
}
