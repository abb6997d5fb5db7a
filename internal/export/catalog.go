package export

import (
	"encoding/json"
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/jonas-p/go-shp"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/damsync/internal/model"
)

// Catalog writes dams to path in the given format. Stream formats write to
// stdout when path is blank or "-".
func Catalog(format Format, path string, dams []model.Dam) error {
	switch format {
	case FormatJSON:
		return toStream(path, func(w io.Writer) error { return WriteCatalogJSON(w, dams) })
	case FormatYAML:
		return toStream(path, func(w io.Writer) error { return WriteCatalogYAML(w, dams) })
	case FormatGeoJSON:
		return toStream(path, func(w io.Writer) error { return WriteCatalogGeoJSON(w, dams) })
	case FormatSHP:
		if path == "" || path == "-" {
			return eris.New("export: shapefile export needs an output path")
		}
		return WriteCatalogShapefile(path, dams)
	default:
		return eris.Errorf("export: unsupported catalog format %q", format)
	}
}

// WriteCatalogJSON writes dams as an indented JSON array.
func WriteCatalogJSON(w io.Writer, dams []model.Dam) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return eris.Wrap(enc.Encode(nonNil(dams)), "export: encode catalog json")
}

// WriteCatalogYAML writes dams as a YAML sequence.
func WriteCatalogYAML(w io.Writer, dams []model.Dam) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(nonNil(dams)); err != nil {
		return eris.Wrap(err, "export: encode catalog yaml")
	}
	return eris.Wrap(enc.Close(), "export: flush catalog yaml")
}

// CatalogFeatures converts dams to a GeoJSON feature collection of points.
// Dams without coordinates are left out.
func CatalogFeatures(dams []model.Dam) *geojson.FeatureCollection {
	fc := &geojson.FeatureCollection{Features: []*geojson.Feature{}}
	for _, d := range dams {
		if !hasLocation(d) {
			continue
		}
		fc.Features = append(fc.Features, &geojson.Feature{
			ID:       d.SIHKey,
			Geometry: geom.NewPointFlat(geom.XY, []float64{d.Longitude, d.Latitude}),
			Properties: map[string]interface{}{
				"sih_key":       d.SIHKey,
				"official_name": d.OfficialName,
				"common_name":   d.CommonName,
				"state":         d.State,
				"municipality":  d.Municipality,
				"cna_region":    d.CNARegion,
				"usage":         d.Usage,
				"name_capacity": d.NAMECapacity,
			},
		})
	}
	return fc
}

// WriteCatalogGeoJSON writes dams as a GeoJSON FeatureCollection.
func WriteCatalogGeoJSON(w io.Writer, dams []model.Dam) error {
	data, err := json.Marshal(CatalogFeatures(dams))
	if err != nil {
		return eris.Wrap(err, "export: encode catalog geojson")
	}
	_, err = w.Write(append(data, '\n'))
	return eris.Wrap(err, "export: write catalog geojson")
}

// DBF limits: field names are at most 10 bytes, character fields at most 254.
var shpFields = []shp.Field{
	shp.StringField("SIH_KEY", 20),
	shp.StringField("NAME", 120),
	shp.StringField("STATE", 60),
	shp.StringField("MUNICIP", 80),
	shp.StringField("REGION", 60),
	shp.StringField("USAGE", 80),
	shp.FloatField("NAME_CAP", 18, 3),
}

// WriteCatalogShapefile writes dams as a point shapefile (.shp, .shx, .dbf).
// Dams without coordinates are left out.
func WriteCatalogShapefile(path string, dams []model.Dam) error {
	w, err := shp.Create(path, shp.POINT)
	if err != nil {
		return eris.Wrapf(err, "export: create shapefile %s", path)
	}
	err = writeShapes(w, dams)
	w.Close()
	if err != nil {
		return err
	}
	return fixDBFName(path)
}

func writeShapes(w *shp.Writer, dams []model.Dam) error {
	if err := w.SetFields(shpFields); err != nil {
		return eris.Wrap(err, "export: shapefile fields")
	}

	for _, d := range dams {
		if !hasLocation(d) {
			continue
		}
		row := int(w.Write(&shp.Point{X: d.Longitude, Y: d.Latitude}))
		attrs := []interface{}{
			d.SIHKey, d.OfficialName, d.State, d.Municipality, d.CNARegion, d.Usage, d.NAMECapacity,
		}
		for i, v := range attrs {
			if s, ok := v.(string); ok {
				v = fitBytes(s, int(shpFields[i].Size))
			}
			if err := w.WriteAttribute(row, i, v); err != nil {
				return eris.Wrapf(err, "export: shapefile attribute %s for %s", shpFields[i].String(), d.SIHKey)
			}
		}
	}
	return nil
}

// fixDBFName moves the attribute table go-shp writes as "<base>dbf" to
// "<base>.dbf" so readers find it next to the .shp.
func fixDBFName(path string) error {
	base := strings.TrimSuffix(path, filepath.Ext(path))
	err := os.Rename(base+"dbf", base+".dbf")
	if errors.Is(err, fs.ErrNotExist) {
		if _, statErr := os.Stat(base + ".dbf"); statErr == nil {
			return nil
		}
	}
	return eris.Wrapf(err, "export: rename dbf for %s", path)
}

func hasLocation(d model.Dam) bool {
	return d.Latitude != 0 || d.Longitude != 0
}

// fitBytes truncates s to at most n bytes without splitting a rune.
func fitBytes(s string, n int) string {
	if len(s) <= n {
		return s
	}
	s = s[:n]
	for len(s) > 0 && !utf8.ValidString(s) {
		s = s[:len(s)-1]
	}
	return s
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
