package gazetteer

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/minesite-cli/internal/fetcher"
)

// loadJSON handles both a list of objects and a GeoJSON FeatureCollection.
func loadJSON(ctx context.Context, g *Gazetteer, path, display string) error {
	f, err := os.Open(path)
	if err != nil {
		return eris.Wrapf(err, "gazetteer: open %s", display)
	}
	defer f.Close() //nolint:errcheck

	kind, r, err := fetcher.PeekJSONKind(f)
	if err != nil {
		return &FormatError{Path: display, Reason: "empty or unreadable JSON"}
	}

	switch kind {
	case '{':
		return loadGeoJSON(g, r, display)
	case '[':
	default:
		return &FormatError{Path: display, Reason: "expected a JSON list or FeatureCollection"}
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	itemCh, errCh := fetcher.DecodeJSONArray[map[string]any](ctx, r)
	source := sourceName(display)
	row := 0
	for obj := range itemCh {
		row++
		if obj == nil {
			return &FormatError{Path: display, Row: row, Reason: "expected an object"}
		}
		e, err := recordFromObject(obj).entry(display, row, source)
		if err != nil {
			return err
		}
		g.Add(e)
	}
	for err := range errCh {
		if err != nil {
			return streamError(err, display, row+1)
		}
	}
	return nil
}

// loadGeoJSON reads a FeatureCollection of Point features. The feature name
// comes from the "name" property, falling back to "title".
func loadGeoJSON(g *Gazetteer, r io.Reader, display string) error {
	var head struct {
		Type string `json:"type"`
	}
	var raw json.RawMessage
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return &FormatError{Path: display, Reason: "invalid JSON: " + err.Error()}
	}
	if err := json.Unmarshal(raw, &head); err != nil || head.Type != "FeatureCollection" {
		return &FormatError{Path: display, Field: "type", Reason: "expected a FeatureCollection"}
	}

	var fc geojson.FeatureCollection
	if err := json.Unmarshal(raw, &fc); err != nil {
		return &FormatError{Path: display, Reason: "invalid FeatureCollection: " + err.Error()}
	}

	source := sourceName(display)
	for i, feature := range fc.Features {
		row := i + 1
		if feature == nil || feature.Geometry == nil {
			return &FormatError{Path: display, Row: row, Field: "geometry", Reason: "missing geometry"}
		}
		pt, ok := feature.Geometry.(*geom.Point)
		if !ok {
			return &FormatError{Path: display, Row: row, Field: "geometry",
				Reason: fmt.Sprintf("non-point geometry %T", feature.Geometry)}
		}
		if pt.Empty() {
			return &FormatError{Path: display, Row: row, Field: "geometry", Reason: "empty point"}
		}

		props := feature.Properties
		if props == nil {
			props = map[string]any{}
		}
		rec := recordFromObject(props)
		// Geometry is authoritative; property coordinates become metadata.
		if rec.lat != nil {
			rec.setMeta(fieldLatitude, rec.lat)
		}
		if rec.lon != nil {
			rec.setMeta(fieldLongitude, rec.lon)
		}
		rec.lat, rec.lon = pt.Y(), pt.X()
		if feature.ID != "" {
			rec.setMeta("id", feature.ID)
		}

		e, err := rec.entry(display, row, source)
		if err != nil {
			return err
		}
		g.Add(e)
	}
	return nil
}

func (r *record) setMeta(k string, v any) {
	if r.metadata == nil {
		r.metadata = make(map[string]string)
	}
	r.metadata[k] = scalarString(v)
}

// loadYAML reads a list of objects, or a mapping with an "entries" list.
func loadYAML(g *Gazetteer, path, display string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return eris.Wrapf(err, "gazetteer: read %s", display)
	}

	var node yaml.Node
	if err := yaml.Unmarshal(data, &node); err != nil {
		return &FormatError{Path: display, Reason: "invalid YAML: " + err.Error()}
	}
	if len(node.Content) == 0 {
		return nil
	}

	var items []map[string]any
	doc := node.Content[0]
	switch doc.Kind {
	case yaml.SequenceNode:
		err = doc.Decode(&items)
	case yaml.MappingNode:
		var wrapped struct {
			Entries []map[string]any `yaml:"entries"`
		}
		err = doc.Decode(&wrapped)
		items = wrapped.Entries
	default:
		return &FormatError{Path: display, Reason: "expected a list of entries"}
	}
	if err != nil {
		return &FormatError{Path: display, Reason: "invalid YAML: " + err.Error()}
	}

	source := sourceName(display)
	for i, obj := range items {
		if obj == nil {
			return &FormatError{Path: display, Row: i + 1, Reason: "expected a mapping"}
		}
		e, err := recordFromObject(obj).entry(display, i+1, source)
		if err != nil {
			return err
		}
		g.Add(e)
	}
	return nil
}

type kmlPlacemark struct {
	Name        string `xml:"name"`
	Description string `xml:"description"`
	Point       *struct {
		Coordinates string `xml:"coordinates"`
	} `xml:"Point"`
	Data []struct {
		Name  string `xml:"name,attr"`
		Value string `xml:"value"`
	} `xml:"ExtendedData>Data"`
}

// loadKML reads Placemarks with Point geometry. ExtendedData fields are
// bound like table columns.
func loadKML(ctx context.Context, g *Gazetteer, path, display string) error {
	f, err := os.Open(path)
	if err != nil {
		return eris.Wrapf(err, "gazetteer: open %s", display)
	}
	defer f.Close() //nolint:errcheck

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	itemCh, errCh := fetcher.StreamXML[kmlPlacemark](ctx, f, fetcher.XMLOptions{Element: "Placemark", Lenient: true})
	source := sourceName(display)
	row := 0
	for pm := range itemCh {
		row++
		if pm.Point == nil {
			return &FormatError{Path: display, Row: row, Field: "geometry", Reason: "non-point geometry"}
		}
		lon, lat, err := parseKMLCoordinates(pm.Point.Coordinates)
		if err != nil {
			return &FormatError{Path: display, Row: row, Field: "coordinates", Reason: err.Error()}
		}

		obj := map[string]any{fieldName: pm.Name}
		for _, d := range pm.Data {
			if d.Name != "" {
				obj[d.Name] = d.Value
			}
		}
		if pm.Description != "" {
			obj["description"] = strings.TrimSpace(pm.Description)
		}
		rec := recordFromObject(obj)
		rec.lat, rec.lon = lat, lon

		e, err := rec.entry(display, row, source)
		if err != nil {
			return err
		}
		g.Add(e)
	}
	for err := range errCh {
		if err != nil {
			return streamError(err, display, row+1)
		}
	}
	return nil
}

// parseKMLCoordinates parses "lon,lat[,alt]".
func parseKMLCoordinates(s string) (lon, lat float64, err error) {
	parts := strings.Split(strings.TrimSpace(s), ",")
	if len(parts) < 2 {
		return 0, 0, eris.Errorf("expected lon,lat got %q", s)
	}
	if lon, err = strconv.ParseFloat(strings.TrimSpace(parts[0]), 64); err != nil {
		return 0, 0, eris.Errorf("unparseable number %q", parts[0])
	}
	if lat, err = strconv.ParseFloat(strings.TrimSpace(parts[1]), 64); err != nil {
		return 0, 0, eris.Errorf("unparseable number %q", parts[1])
	}
	return lon, lat, nil
}
