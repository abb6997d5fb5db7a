package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/damsync/internal/model"
)

func printJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return eris.Wrap(enc.Encode(v), "encode output")
}

// formatDams writes a tabular listing of dams to out.
func formatDams(out io.Writer, dams []model.Dam) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "SIH KEY\tNAME\tSTATE\tMUNICIPALITY\tLAT\tLON")
	_, _ = fmt.Fprintln(w, "-------\t----\t-----\t------------\t---\t---")
	for _, d := range dams {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			d.SIHKey,
			truncate(d.OfficialName, 40),
			d.State,
			d.Municipality,
			strconv.FormatFloat(d.Latitude, 'f', 4, 64),
			strconv.FormatFloat(d.Longitude, 'f', 4, 64),
		)
	}
	_ = w.Flush()
}

// formatMeasurements writes a tabular listing of measurements to out.
func formatMeasurements(out io.Writer, ms []model.Measurement) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "SIH KEY\tDATE\tELEVATION\tCAPACITY\tFILL %")
	_, _ = fmt.Fprintln(w, "-------\t----\t---------\t--------\t------")
	for _, m := range ms {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%.2f\t%.2f\t%.2f\n", m.SIHKey, m.Date(), m.Elevation, m.Capacity, m.FillPct)
	}
	_ = w.Flush()
}

// formatSyncOutcomes writes one row per synced day followed by the skip
// messages.
func formatSyncOutcomes(out io.Writer, outcomes []model.SyncOutcome) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "DATE\tWRITTEN\tSKIPPED\tERROR")
	_, _ = fmt.Fprintln(w, "----\t-------\t-------\t-----")
	for _, o := range outcomes {
		_, _ = fmt.Fprintf(w, "%s\t%d\t%d\t%s\n", o.Date, len(o.Written), len(o.Skipped), truncate(o.Error, 80))
	}
	_ = w.Flush()

	for _, o := range outcomes {
		for _, msg := range o.Skipped {
			_, _ = fmt.Fprintln(out, msg)
		}
	}
}

// formatCatalogOutcome writes a one-line summary of a catalog sync followed
// by the skip messages.
func formatCatalogOutcome(out io.Writer, o model.CatalogOutcome) {
	_, _ = fmt.Fprintf(out, "catalog %s: created %d, updated %d, skipped %d\n",
		o.Date, len(o.Created), len(o.Updated), len(o.Skipped))
	for _, msg := range o.Skipped {
		_, _ = fmt.Fprintln(out, msg)
	}
}

// formatStatusEntries writes a tabular representation of sync log entries to w.
func formatStatusEntries(out io.Writer, entries []model.SyncEntry) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tKIND\tDATE\tSTATUS\tSTARTED\tDURATION\tWRITTEN\tSKIPPED\tERROR")
	_, _ = fmt.Fprintln(w, "--\t----\t----\t------\t-------\t--------\t-------\t-------\t-----")

	for _, e := range entries {
		dur := "-"
		if e.CompletedAt != nil {
			dur = e.CompletedAt.Sub(e.StartedAt).Round(time.Second).String()
		}

		_, _ = fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\t%d\t%d\t%s\n",
			e.ID,
			e.Kind,
			e.SyncDate,
			e.Status,
			e.StartedAt.Format("2006-01-02 15:04"),
			dur,
			e.RowsWritten,
			e.RowsSkipped,
			truncate(e.Error, 60),
		)
	}
	_ = w.Flush()
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}
