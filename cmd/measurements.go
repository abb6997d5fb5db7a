package main

import (
	"context"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/damsync/internal/damsync"
	"github.com/sells-group/damsync/internal/export"
	"github.com/sells-group/damsync/internal/model"
)

var measurementsCmd = &cobra.Command{
	Use:     "measurements",
	Aliases: []string{"m"},
	Short:   "Daily measurement commands",
	Long:    "Syncs, lists and exports daily dam measurements.",
}

var (
	syncDate  string
	syncStart string
	syncEnd   string
)

var measurementsSyncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Sync daily measurements",
	Long: "Syncs today's report by default, one day with --date, or every day from --start to --end " +
		"(inclusive, oldest first, paced by sync.pace_secs).",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		outcomes, err := runMeasurementSync(ctx, newEngine(cfg, st, nil), syncDate, syncStart, syncEnd)
		formatSyncOutcomes(os.Stdout, outcomes)
		if err != nil {
			return err
		}
		return failedDays(outcomes)
	},
}

// measurementSyncer is the part of the engine the sync command drives.
type measurementSyncer interface {
	SyncToday(ctx context.Context) model.SyncOutcome
	SyncDate(ctx context.Context, date string) (model.SyncOutcome, error)
	SyncRange(ctx context.Context, start, end string) ([]model.SyncOutcome, error)
}

func runMeasurementSync(ctx context.Context, e measurementSyncer, date, start, end string) ([]model.SyncOutcome, error) {
	switch {
	case date != "" && start != "":
		return nil, eris.New("measurements sync: use --date or --start, not both")
	case date != "":
		out, err := e.SyncDate(ctx, date)
		if err != nil {
			return nil, eris.Wrap(err, "measurements sync")
		}
		return []model.SyncOutcome{out}, nil
	case start != "":
		outcomes, err := e.SyncRange(ctx, start, end)
		return outcomes, eris.Wrap(err, "measurements sync")
	case end != "":
		return nil, eris.New("measurements sync: --end needs --start")
	default:
		return []model.SyncOutcome{e.SyncToday(ctx)}, nil
	}
}

func failedDays(outcomes []model.SyncOutcome) error {
	var failed int
	for _, o := range outcomes {
		if o.Failed() {
			failed++
			zap.L().Error("sync day failed", zap.String("date", o.Date), zap.Error(o.Err))
		}
	}
	if failed > 0 {
		return eris.Errorf("measurements sync: %d of %d day(s) failed", failed, len(outcomes))
	}
	return nil
}

var (
	listKey   string
	listStart string
	listEnd   string
)

var measurementsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored measurements",
	Long:  "Lists measurements for one dam (--key), a date range (--start/--end), both, or everything.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		ms, err := selectMeasurements(ctx, damsync.NewQuery(st), listKey, listStart, listEnd)
		if err != nil {
			return err
		}

		formatMeasurements(os.Stdout, ms)
		return nil
	},
}

var (
	measurementsExportFormat string
	measurementsExportOut    string
)

var measurementsExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export measurements",
	Long:  "Writes measurements as csv, json or xlsx. csv and json go to stdout unless --out is set; xlsx needs --out.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		ms, err := selectMeasurements(ctx, damsync.NewQuery(st), listKey, listStart, listEnd)
		if err != nil {
			return err
		}

		return export.Measurements(export.ParseFormat(measurementsExportFormat), measurementsExportOut, ms)
	},
}

// selectMeasurements picks the query matching the given filters. A blank end
// means start.
func selectMeasurements(ctx context.Context, q *damsync.Query, key, start, end string) ([]model.Measurement, error) {
	var (
		ms  []model.Measurement
		err error
	)
	switch {
	case key != "" && start != "":
		ms, err = q.MeasurementsByDamAndDates(ctx, key, start, end)
	case start != "":
		ms, err = q.MeasurementsByDates(ctx, start, end)
	case key != "":
		ms, err = q.MeasurementsByDam(ctx, key)
	case end != "":
		return nil, eris.New("measurements: --end needs --start")
	default:
		ms, err = q.Measurements(ctx)
	}
	return ms, eris.Wrap(err, "select measurements")
}

func init() {
	measurementsSyncCmd.Flags().StringVar(&syncDate, "date", "", "sync a single date (YYYY-MM-DD)")
	measurementsSyncCmd.Flags().StringVar(&syncStart, "start", "", "first date of a range (YYYY-MM-DD)")
	measurementsSyncCmd.Flags().StringVar(&syncEnd, "end", "", "last date of a range (default --start)")

	for _, c := range []*cobra.Command{measurementsListCmd, measurementsExportCmd} {
		c.Flags().StringVar(&listKey, "key", "", "only this SIH key")
		c.Flags().StringVar(&listStart, "start", "", "first date (YYYY-MM-DD)")
		c.Flags().StringVar(&listEnd, "end", "", "last date (default --start)")
	}
	measurementsExportCmd.Flags().StringVar(&measurementsExportFormat, "format", "csv", "output format: csv, json, xlsx")
	measurementsExportCmd.Flags().StringVarP(&measurementsExportOut, "out", "o", "", "output path (default stdout)")

	measurementsCmd.AddCommand(measurementsSyncCmd, measurementsListCmd, measurementsExportCmd)
	rootCmd.AddCommand(measurementsCmd)
}
