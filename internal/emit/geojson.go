// Package emit writes resolved sites as a GeoJSON feature collection and,
// when configured, an interactive HTML map.
package emit

import (
	"encoding/json"
	"os"
	"path/filepath"

	geohash "github.com/TomiHiltunen/geohash-golang"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"

	"github.com/sells-group/minesite-cli/internal/model"
)

const geohashPrecision = 9

// FeatureCollection builds one point feature per located site. Unresolved
// sites are left out.
func FeatureCollection(sites []model.ResolvedSite) *geojson.FeatureCollection {
	fc := &geojson.FeatureCollection{Features: []*geojson.Feature{}}
	for _, s := range sites {
		if !s.Located() {
			continue
		}
		fc.Features = append(fc.Features, feature(s))
	}
	return fc
}

func feature(s model.ResolvedSite) *geojson.Feature {
	lat, lng := s.Location.Latitude, s.Location.Longitude
	point := geom.NewPoint(geom.XY).MustSetCoords(geom.Coord{lng, lat})

	props := map[string]any{
		"filing_id":  s.FilingID,
		"cik":        s.CIK,
		"accession":  s.Accession,
		"method":     string(s.Method),
		"confidence": s.Confidence,
		"geohash":    siteGeohash(lat, lng),
	}
	optional := map[string]string{
		"company":      s.Company,
		"project":      s.Project,
		"form":         s.Form,
		"jurisdiction": s.Jurisdiction,
		"matched_name": s.MatchedName,
		"source":       s.Source,
		"document":     s.DocumentPath,
	}
	for k, v := range optional {
		if v != "" {
			props[k] = v
		}
	}

	return &geojson.Feature{
		ID:         s.FilingID,
		Geometry:   point,
		Properties: props,
	}
}

func siteGeohash(lat, lng float64) string {
	h := geohash.Encode(lat, lng)
	if len(h) > geohashPrecision {
		h = h[:geohashPrecision]
	}
	return h
}

// MarshalGeoJSON renders the feature collection for sites as indented JSON.
// Identical input yields identical bytes.
func MarshalGeoJSON(sites []model.ResolvedSite) ([]byte, error) {
	data, err := json.MarshalIndent(FeatureCollection(sites), "", "  ")
	if err != nil {
		return nil, eris.Wrap(err, "emit: marshal geojson")
	}
	return append(data, '\n'), nil
}

// WriteGeoJSON writes the feature collection to path, creating parent
// directories. It returns the number of features written.
func WriteGeoJSON(path string, sites []model.ResolvedSite) (int, error) {
	data, err := MarshalGeoJSON(sites)
	if err != nil {
		return 0, err
	}
	if err := writeFile(path, data); err != nil {
		return 0, eris.Wrapf(err, "emit: write geojson %s", path)
	}
	return countLocated(sites), nil
}

func countLocated(sites []model.ResolvedSite) int {
	n := 0
	for _, s := range sites {
		if s.Located() {
			n++
		}
	}
	return n
}

func writeFile(path string, data []byte) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return os.WriteFile(path, data, 0o644)
}
