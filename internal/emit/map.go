package emit

import (
	"bytes"
	"fmt"
	"html/template"

	"github.com/golang/geo/s2"
	"github.com/rotisserie/eris"

	"github.com/sells-group/minesite-cli/internal/model"
)

// DefaultTileURL is the OpenStreetMap tile template used when none is set.
const DefaultTileURL = "https://{s}.tile.openstreetmap.org/{z}/{x}/{y}.png"

// MapOptions configures the interactive map.
type MapOptions struct {
	// Path is the HTML output file. Empty disables map rendering.
	Path    string
	TileURL string
	Title   string
}

// MapRenderer draws located sites on an interactive map.
type MapRenderer interface {
	Render(sites []model.ResolvedSite) error
	Path() string
}

// NewMapRenderer resolves the map capability. Without an output path it
// returns model.ErrCapabilityUnavailable and callers emit GeoJSON only.
func NewMapRenderer(opts MapOptions) (MapRenderer, error) {
	if opts.Path == "" {
		return nil, eris.Wrap(model.ErrCapabilityUnavailable, "emit: no map output configured")
	}
	if opts.TileURL == "" {
		opts.TileURL = DefaultTileURL
	}
	if opts.Title == "" {
		opts.Title = "Mine sites"
	}
	return &LeafletRenderer{opts: opts}, nil
}

// LeafletRenderer writes a self-contained Leaflet page with one layer group
// per resolution method.
type LeafletRenderer struct {
	opts MapOptions
}

// Path returns the HTML output file.
func (r *LeafletRenderer) Path() string {
	return r.opts.Path
}

// Render writes the map page.
func (r *LeafletRenderer) Render(sites []model.ResolvedSite) error {
	data, err := r.html(sites)
	if err != nil {
		return err
	}
	if err := writeFile(r.opts.Path, data); err != nil {
		return eris.Wrapf(err, "emit: write map %s", r.opts.Path)
	}
	return nil
}

type mapMarker struct {
	Lat        float64 `json:"lat"`
	Lng        float64 `json:"lng"`
	FilingID   string  `json:"filing_id"`
	Company    string  `json:"company,omitempty"`
	Project    string  `json:"project,omitempty"`
	Matched    string  `json:"matched_name,omitempty"`
	Confidence float64 `json:"confidence"`
}

type mapLayer struct {
	Method  string      `json:"method"`
	Color   string      `json:"color"`
	Markers []mapMarker `json:"markers"`
}

type mapPage struct {
	Title   string
	TileURL string
	Layers  []mapLayer
	Bounds  [2][2]float64
	Summary string
}

var methodColors = map[model.ResolutionMethod]string{
	model.MethodExplicit:   "#1b7837",
	model.MethodFuzzyMatch: "#d95f02",
}

func (r *LeafletRenderer) html(sites []model.ResolvedSite) ([]byte, error) {
	page := mapPage{
		Title:   r.opts.Title,
		TileURL: r.opts.TileURL,
	}
	counts := make(map[model.ResolutionMethod]int)

	byMethod := make(map[model.ResolutionMethod][]mapMarker)
	for _, s := range sites {
		counts[s.Method]++
		if !s.Located() {
			continue
		}
		byMethod[s.Method] = append(byMethod[s.Method], mapMarker{
			Lat:        s.Location.Latitude,
			Lng:        s.Location.Longitude,
			FilingID:   s.FilingID,
			Company:    s.Company,
			Project:    s.Project,
			Matched:    s.MatchedName,
			Confidence: s.Confidence,
		})
	}
	for _, m := range []model.ResolutionMethod{model.MethodExplicit, model.MethodFuzzyMatch} {
		page.Layers = append(page.Layers, mapLayer{
			Method:  string(m),
			Color:   methodColors[m],
			Markers: byMethod[m],
		})
	}

	page.Summary = fmt.Sprintf("%d explicit, %d fuzzy-match, %d unresolved",
		counts[model.MethodExplicit], counts[model.MethodFuzzyMatch], counts[model.MethodUnresolved])

	if south, west, north, east, ok := Bounds(sites); ok {
		page.Bounds = [2][2]float64{{south, west}, {north, east}}
	} else {
		page.Bounds = [2][2]float64{{-60, -170}, {75, 170}}
	}

	var buf bytes.Buffer
	if err := mapTemplate.Execute(&buf, page); err != nil {
		return nil, eris.Wrap(err, "emit: render map")
	}
	return buf.Bytes(), nil
}

// Bounds returns the bounding box of the located sites in degrees. A box
// that crosses the antimeridian is widened to all longitudes.
func Bounds(sites []model.ResolvedSite) (south, west, north, east float64, ok bool) {
	rect := s2.EmptyRect()
	for _, s := range sites {
		if !s.Located() {
			continue
		}
		rect = rect.AddPoint(s2.LatLngFromDegrees(s.Location.Latitude, s.Location.Longitude))
	}
	if rect.IsEmpty() {
		return 0, 0, 0, 0, false
	}
	lo, hi := rect.Lo(), rect.Hi()
	south, north = lo.Lat.Degrees(), hi.Lat.Degrees()
	west, east = lo.Lng.Degrees(), hi.Lng.Degrees()
	if rect.Lng.IsInverted() {
		west, east = -180, 180
	}
	return south, west, north, east, true
}

var mapTemplate = template.Must(template.New("map").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>{{.Title}}</title>
<meta name="viewport" content="width=device-width, initial-scale=1">
<link rel="stylesheet" href="https://unpkg.com/leaflet@1.9.4/dist/leaflet.css">
<script src="https://unpkg.com/leaflet@1.9.4/dist/leaflet.js"></script>
<style>
html, body { height: 100%; margin: 0; }
#map { height: calc(100% - 2em); }
#summary { height: 2em; line-height: 2em; padding: 0 1em; font-family: sans-serif; }
</style>
</head>
<body>
<div id="summary">{{.Summary}}</div>
<div id="map"></div>
<script>
var layers = {{.Layers}};
var bounds = {{.Bounds}};
var map = L.map('map');
L.tileLayer({{.TileURL}}, {attribution: '&copy; OpenStreetMap contributors'}).addTo(map);
var overlays = {};
layers.forEach(function (layer) {
  var group = L.layerGroup();
  (layer.markers || []).forEach(function (m) {
    var popup = document.createElement('div');
    [m.filing_id, m.company, m.project, m.matched_name, layer.method + ' ' + m.confidence.toFixed(2)]
      .filter(Boolean)
      .forEach(function (line) {
        var row = document.createElement('div');
        row.textContent = line;
        popup.appendChild(row);
      });
    L.circleMarker([m.lat, m.lng], {radius: 6, color: layer.color, fillColor: layer.color, fillOpacity: 0.8})
      .bindPopup(popup)
      .addTo(group);
  });
  group.addTo(map);
  overlays[layer.method + ' (' + (layer.markers || []).length + ')'] = group;
});
L.control.layers(null, overlays, {collapsed: false}).addTo(map);
map.fitBounds(bounds, {padding: [20, 20], maxZoom: 10});
</script>
</body>
</html>
`))
