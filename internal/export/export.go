// Package export writes the dam catalog and measurement history to files.
package export

import (
	"io"
	"os"
	"strings"

	"github.com/rotisserie/eris"
)

// Format names an export file format.
type Format string

// Supported formats. Catalog exports accept json, yaml, geojson and shp;
// measurement exports accept csv, json and xlsx.
const (
	FormatJSON    Format = "json"
	FormatYAML    Format = "yaml"
	FormatGeoJSON Format = "geojson"
	FormatSHP     Format = "shp"
	FormatCSV     Format = "csv"
	FormatXLSX    Format = "xlsx"
)

// ParseFormat normalizes a user-supplied format name.
func ParseFormat(s string) Format {
	f := Format(strings.ToLower(strings.TrimSpace(s)))
	if f == "yml" {
		return FormatYAML
	}
	return f
}

// openOutput returns a writer for path. A blank path or "-" means stdout.
func openOutput(path string) (io.Writer, func() error, error) {
	if path == "" || path == "-" {
		return os.Stdout, func() error { return nil }, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, eris.Wrapf(err, "export: create %s", path)
	}
	return f, f.Close, nil
}

func toStream(path string, write func(io.Writer) error) error {
	w, closeFn, err := openOutput(path)
	if err != nil {
		return err
	}
	if err := write(w); err != nil {
		_ = closeFn()
		return err
	}
	return eris.Wrap(closeFn(), "export: close output")
}
