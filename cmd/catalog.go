package main

import (
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/damsync/internal/damsync"
	"github.com/sells-group/damsync/internal/export"
	"github.com/sells-group/damsync/internal/model"
)

var catalogCmd = &cobra.Command{
	Use:   "catalog",
	Short: "Dam catalog commands",
	Long:  "Syncs, lists and exports the dam catalog.",
}

var catalogSyncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Sync the catalog from today's report",
	Long:  "Fetches today's report and creates or overwrites a catalog entry for every dam in it.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		out, err := newEngine(cfg, st, nil).SyncCatalog(ctx)
		if err != nil {
			return eris.Wrap(err, "catalog sync")
		}

		formatCatalogOutcome(os.Stdout, out)
		return nil
	},
}

var catalogState string

var catalogListCmd = &cobra.Command{
	Use:   "list",
	Short: "List catalog entries",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		dams, err := listDams(cmd, damsync.NewQuery(st), catalogState)
		if err != nil {
			return err
		}

		formatDams(os.Stdout, dams)
		return nil
	},
}

var catalogGetCmd = &cobra.Command{
	Use:   "get <sih-key>",
	Short: "Show one catalog entry as JSON",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		dam, err := damsync.NewQuery(st).Dam(ctx, args[0])
		if err != nil {
			return eris.Wrapf(err, "catalog get %s", args[0])
		}
		return printJSON(os.Stdout, dam)
	},
}

var (
	infoState string
	infoStart string
	infoEnd   string
)

var catalogInfoCmd = &cobra.Command{
	Use:   "info [sih-key]",
	Short: "Show dams with their measurement history as JSON",
	Long:  "With a key, shows one dam; with --state, the dams of a state; otherwise every dam. --start and --end bound the measurements.",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		q := damsync.NewQuery(st)
		switch {
		case len(args) == 1:
			info, err := q.Info(ctx, args[0], infoStart, infoEnd)
			if err != nil {
				return eris.Wrapf(err, "catalog info %s", args[0])
			}
			return printJSON(os.Stdout, info)
		case infoState != "":
			infos, err := q.InfoByState(ctx, infoState, infoStart, infoEnd)
			if err != nil {
				return eris.Wrapf(err, "catalog info --state %s", infoState)
			}
			return printJSON(os.Stdout, infos)
		default:
			infos, err := q.InfoAll(ctx, infoStart, infoEnd)
			if err != nil {
				return eris.Wrap(err, "catalog info")
			}
			return printJSON(os.Stdout, infos)
		}
	},
}

var (
	catalogExportFormat string
	catalogExportOut    string
)

var catalogExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the catalog",
	Long:  "Writes the catalog as json, yaml, geojson or shp. Stream formats go to stdout unless --out is set; shp needs --out.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		dams, err := listDams(cmd, damsync.NewQuery(st), catalogState)
		if err != nil {
			return err
		}

		return export.Catalog(export.ParseFormat(catalogExportFormat), catalogExportOut, dams)
	},
}

func listDams(cmd *cobra.Command, q *damsync.Query, state string) ([]model.Dam, error) {
	if state != "" {
		dams, err := q.DamsByState(cmd.Context(), state)
		return dams, eris.Wrapf(err, "list dams in %s", state)
	}
	dams, err := q.Dams(cmd.Context())
	return dams, eris.Wrap(err, "list dams")
}

func init() {
	catalogListCmd.Flags().StringVar(&catalogState, "state", "", "only dams in this state (accents and case ignored)")
	catalogExportCmd.Flags().StringVar(&catalogState, "state", "", "only dams in this state (accents and case ignored)")
	catalogExportCmd.Flags().StringVar(&catalogExportFormat, "format", "json", "output format: json, yaml, geojson, shp")
	catalogExportCmd.Flags().StringVarP(&catalogExportOut, "out", "o", "", "output path (default stdout)")

	catalogInfoCmd.Flags().StringVar(&infoState, "state", "", "only dams in this state")
	catalogInfoCmd.Flags().StringVar(&infoStart, "start", "", "first measurement date (YYYY-MM-DD)")
	catalogInfoCmd.Flags().StringVar(&infoEnd, "end", "", "last measurement date (default --start)")

	catalogCmd.AddCommand(catalogSyncCmd, catalogListCmd, catalogGetCmd, catalogInfoCmd, catalogExportCmd)
	rootCmd.AddCommand(catalogCmd)
}
