package feed

import (
	"context"
	"encoding/json"
	"io"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/damsync/internal/model"
)

// ReportStats summarizes one decoded report.
type ReportStats struct {
	Records int
	// BlankKeys counts rows without a clavesih. They are kept so the
	// reconcilers can reject them.
	BlankKeys int
	// OtherDates counts rows whose fechamonitoreo is not the requested date.
	OtherDates int
}

// DecodeReport reads a report body one row at a time. SIH keys are trimmed
// as rows are read. An empty body or a literal null is an empty report.
func DecodeReport(ctx context.Context, r io.Reader, date string) ([]model.FeedRecord, ReportStats, error) {
	var stats ReportStats
	records := []model.FeedRecord{}
	dec := json.NewDecoder(r)

	tok, err := dec.Token()
	if err == io.EOF {
		return records, stats, nil
	}
	if err != nil {
		return nil, stats, eris.Wrap(err, "feed: read report")
	}
	if tok == nil {
		return records, stats, nil
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '[' {
		return nil, stats, eris.Errorf("feed: report is not an array (got %v)", tok)
	}

	date = strings.TrimSpace(date)
	for dec.More() {
		if err := ctx.Err(); err != nil {
			return nil, stats, eris.Wrap(err, "feed: report decode cancelled")
		}
		var rec model.FeedRecord
		if err := dec.Decode(&rec); err != nil {
			return nil, stats, eris.Wrapf(err, "feed: decode row %d", len(records))
		}
		rec.SIHKey = rec.Key()
		if rec.SIHKey == "" {
			stats.BlankKeys++
		}
		if rec.MonitoringDate != "" && !strings.HasPrefix(strings.TrimSpace(rec.MonitoringDate), date) {
			stats.OtherDates++
		}
		records = append(records, rec)
	}

	// A missing closing bracket means the body was cut off.
	if _, err := dec.Token(); err != nil {
		return nil, stats, eris.Wrap(err, "feed: read end of report")
	}
	stats.Records = len(records)
	return records, stats, nil
}
