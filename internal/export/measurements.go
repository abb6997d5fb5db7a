package export

import (
	"encoding/csv"
	"encoding/json"
	"io"
	"strconv"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/damsync/internal/model"
)

var measurementHeader = []string{"sih_key", "date", "elevation", "capacity", "fill_pct"}

// Measurements writes measurements to path in the given format. Stream
// formats write to stdout when path is blank or "-".
func Measurements(format Format, path string, ms []model.Measurement) error {
	switch format {
	case FormatCSV:
		return toStream(path, func(w io.Writer) error { return WriteMeasurementsCSV(w, ms) })
	case FormatJSON:
		return toStream(path, func(w io.Writer) error { return WriteMeasurementsJSON(w, ms) })
	case FormatXLSX:
		if path == "" || path == "-" {
			return eris.New("export: xlsx export needs an output path")
		}
		return WriteMeasurementsXLSX(path, ms)
	default:
		return eris.Errorf("export: unsupported measurement format %q", format)
	}
}

// WriteMeasurementsCSV writes measurements as CSV with a header row.
func WriteMeasurementsCSV(w io.Writer, ms []model.Measurement) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(measurementHeader); err != nil {
		return eris.Wrap(err, "export: write csv header")
	}
	for _, m := range ms {
		if err := cw.Write(measurementRow(m)); err != nil {
			return eris.Wrapf(err, "export: write csv row %s %s", m.SIHKey, m.Date())
		}
	}
	cw.Flush()
	return eris.Wrap(cw.Error(), "export: flush csv")
}

// WriteMeasurementsJSON writes measurements as an indented JSON array.
func WriteMeasurementsJSON(w io.Writer, ms []model.Measurement) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return eris.Wrap(enc.Encode(nonNil(ms)), "export: encode measurements json")
}

// WriteMeasurementsXLSX writes measurements to a single-sheet workbook.
func WriteMeasurementsXLSX(path string, ms []model.Measurement) error {
	f := xlsx.NewFile()
	sheet, err := f.AddSheet("measurements")
	if err != nil {
		return eris.Wrap(err, "export: add xlsx sheet")
	}

	header := sheet.AddRow()
	for _, h := range measurementHeader {
		header.AddCell().SetString(h)
	}
	for _, m := range ms {
		row := sheet.AddRow()
		row.AddCell().SetString(m.SIHKey)
		row.AddCell().SetString(m.Date())
		row.AddCell().SetFloat(m.Elevation)
		row.AddCell().SetFloat(m.Capacity)
		row.AddCell().SetFloat(m.FillPct)
	}

	return eris.Wrapf(f.Save(path), "export: save xlsx %s", path)
}

func measurementRow(m model.Measurement) []string {
	return []string{
		m.SIHKey,
		m.Date(),
		formatFloat(m.Elevation),
		formatFloat(m.Capacity),
		formatFloat(m.FillPct),
	}
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
