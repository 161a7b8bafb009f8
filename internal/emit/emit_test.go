package emit

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/minesite-cli/internal/model"
)

func testSites() *model.SiteCollection {
	var c model.SiteCollection
	c.Append(model.ResolvedSite{
		FilingID: "1:a", CIK: "1", Accession: "a", Company: "Kennecott",
		Location: &model.LatLng{Latitude: 40.5186, Longitude: -112.15},
		Method:   model.MethodExplicit, Confidence: 1, MatchedName: "40.5186 N, 112.1500 W",
	})
	c.Append(model.ResolvedSite{FilingID: "2:b", CIK: "2", Accession: "b", Method: model.MethodUnresolved})
	c.Append(model.ResolvedSite{
		FilingID: "3:c", CIK: "3", Accession: "c", Project: "Bagdad Project",
		Location: &model.LatLng{Latitude: 34.58, Longitude: -113.2},
		Method:   model.MethodFuzzyMatch, Confidence: 0.9, MatchedName: "Bagdad Mine",
	})
	return &c
}

type featureDoc struct {
	Type     string `json:"type"`
	Features []struct {
		Type     string `json:"type"`
		ID       string `json:"id"`
		Geometry struct {
			Type        string    `json:"type"`
			Coordinates []float64 `json:"coordinates"`
		} `json:"geometry"`
		Properties map[string]any `json:"properties"`
	} `json:"features"`
}

func TestMarshalGeoJSON_LocatedOnly(t *testing.T) {
	data, err := MarshalGeoJSON(testSites().Sites())
	require.NoError(t, err)

	var doc featureDoc
	require.NoError(t, json.Unmarshal(data, &doc))
	assert.Equal(t, "FeatureCollection", doc.Type)
	require.Len(t, doc.Features, 2)

	f := doc.Features[0]
	assert.Equal(t, "Feature", f.Type)
	assert.Equal(t, "1:a", f.ID)
	assert.Equal(t, "Point", f.Geometry.Type)
	assert.Equal(t, []float64{-112.15, 40.5186}, f.Geometry.Coordinates)
	assert.Equal(t, "1:a", f.Properties["filing_id"])
	assert.Equal(t, "explicit", f.Properties["method"])
	assert.InDelta(t, 1.0, f.Properties["confidence"], 1e-9)
	assert.Equal(t, "Kennecott", f.Properties["company"])
	assert.Len(t, f.Properties["geohash"], geohashPrecision)
	assert.NotContains(t, f.Properties, "project")

	f = doc.Features[1]
	assert.Equal(t, "fuzzy-match", f.Properties["method"])
	assert.InDelta(t, 0.9, f.Properties["confidence"], 1e-9)
	assert.Equal(t, "Bagdad Mine", f.Properties["matched_name"])
}

func TestMarshalGeoJSON_Empty(t *testing.T) {
	data, err := MarshalGeoJSON(nil)
	require.NoError(t, err)

	var doc featureDoc
	require.NoError(t, json.Unmarshal(data, &doc))
	assert.Equal(t, "FeatureCollection", doc.Type)
	assert.Empty(t, doc.Features)
}

func TestMarshalGeoJSON_Deterministic(t *testing.T) {
	first, err := MarshalGeoJSON(testSites().Sites())
	require.NoError(t, err)
	for range 5 {
		again, err := MarshalGeoJSON(testSites().Sites())
		require.NoError(t, err)
		assert.Equal(t, string(first), string(again))
	}
}

func TestSiteGeohash(t *testing.T) {
	h := siteGeohash(57.64911, 10.40744)
	assert.Equal(t, "u4pruydqq", h)
}

func TestWriteGeoJSON_CreatesParents(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "nested", "sites.geojson")

	n, err := WriteGeoJSON(path, testSites().Sites())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.FileExists(t, path)
}

func TestWriteGeoJSON_Unwritable(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "file")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o644))

	_, err := WriteGeoJSON(filepath.Join(blocker, "sites.geojson"), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "emit: write geojson")
}

func TestNewMapRenderer_Unavailable(t *testing.T) {
	_, err := NewMapRenderer(MapOptions{})
	require.Error(t, err)
	assert.True(t, eris.Is(err, model.ErrCapabilityUnavailable))
}

func TestLeafletRenderer_Render(t *testing.T) {
	path := filepath.Join(t.TempDir(), "map.html")
	r, err := NewMapRenderer(MapOptions{Path: path, Title: "Sites <test>"})
	require.NoError(t, err)
	assert.Equal(t, path, r.Path())

	require.NoError(t, r.Render(testSites().Sites()))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	html := string(data)

	assert.Contains(t, html, "leaflet.js")
	assert.Contains(t, html, "Sites &lt;test&gt;")
	assert.Contains(t, html, `"method":"explicit"`)
	assert.Contains(t, html, `"method":"fuzzy-match"`)
	assert.Contains(t, html, "#1b7837")
	assert.Contains(t, html, "#d95f02")
	assert.Contains(t, html, "1 explicit, 1 fuzzy-match, 1 unresolved")
	assert.Contains(t, html, "L.control.layers")
	assert.False(t, strings.Contains(html, `"filing_id":"2:b"`))
}

func TestBounds(t *testing.T) {
	south, west, north, east, ok := Bounds(testSites().Sites())
	require.True(t, ok)
	assert.InDelta(t, 34.58, south, 1e-6)
	assert.InDelta(t, 40.5186, north, 1e-6)
	assert.InDelta(t, -113.2, west, 1e-6)
	assert.InDelta(t, -112.15, east, 1e-6)

	_, _, _, _, ok = Bounds([]model.ResolvedSite{{Method: model.MethodUnresolved}})
	assert.False(t, ok)
}

func TestBounds_Antimeridian(t *testing.T) {
	sites := []model.ResolvedSite{
		{Method: model.MethodExplicit, Location: &model.LatLng{Latitude: 60, Longitude: 179}},
		{Method: model.MethodExplicit, Location: &model.LatLng{Latitude: 61, Longitude: -179}},
	}
	_, west, _, east, ok := Bounds(sites)
	require.True(t, ok)
	assert.InDelta(t, -180, west, 1e-9)
	assert.InDelta(t, 180, east, 1e-9)
}

func TestEmit_GeoJSONOnly(t *testing.T) {
	dir := t.TempDir()
	res, err := Emit(Options{GeoJSONPath: filepath.Join(dir, "sites.geojson")}, testSites())
	require.NoError(t, err)
	assert.Equal(t, 2, res.Features)
	assert.Empty(t, res.MapPath)
	assert.NoFileExists(t, filepath.Join(dir, "map.html"))
}

func TestEmit_WithMap(t *testing.T) {
	dir := t.TempDir()
	mapPath := filepath.Join(dir, "maps", "sites.html")
	res, err := Emit(Options{
		GeoJSONPath: filepath.Join(dir, "sites.geojson"),
		Map:         MapOptions{Path: mapPath},
	}, testSites())
	require.NoError(t, err)
	assert.Equal(t, mapPath, res.MapPath)
	assert.FileExists(t, mapPath)
}

func TestEmit_MapFailureIsNotFatal(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "file")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o644))

	res, err := Emit(Options{
		GeoJSONPath: filepath.Join(dir, "sites.geojson"),
		Map:         MapOptions{Path: filepath.Join(blocker, "map.html")},
	}, testSites())
	require.NoError(t, err)
	assert.Empty(t, res.MapPath)
	assert.Equal(t, 2, res.Features)
}

func TestEmit_GeoJSONFailureIsFatal(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "file")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o644))

	_, err := Emit(Options{GeoJSONPath: filepath.Join(blocker, "sites.geojson")}, testSites())
	assert.Error(t, err)
}
