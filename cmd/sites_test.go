package main

import (
	"bytes"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/minesite-cli/internal/config"
	"github.com/sells-group/minesite-cli/internal/model"
)

// newSitesFlagCmd mirrors the sites flag set on a fresh command so tests do
// not mutate the global one.
func newSitesFlagCmd() *cobra.Command {
	c := &cobra.Command{Use: "sites"}
	f := c.Flags()
	f.String("edgar-root", "", "")
	f.String("gazetteer", "", "")
	f.Int("limit", 0, "")
	f.Float64("threshold", 0, "")
	f.String("similarity", "", "")
	f.Int("max-window", 0, "")
	f.String("geojson-output", "", "")
	f.String("html-output", "", "")
	f.Bool("jurisdiction-filter", false, "")
	return c
}

func TestApplySitesFlags_OnlyChanged(t *testing.T) {
	sc := config.SitesConfig{
		EdgarRoot:           "data/edgar",
		SimilarityThreshold: 0.8,
		MaxWindow:           5,
		GeoJSONOutput:       "data/edgar/mine_sites.geojson",
	}

	c := newSitesFlagCmd()
	require.NoError(t, c.Flags().Set("gazetteer", "mines.csv"))
	require.NoError(t, c.Flags().Set("threshold", "0.9"))
	require.NoError(t, c.Flags().Set("limit", "25"))
	require.NoError(t, c.Flags().Set("jurisdiction-filter", "true"))

	applySitesFlags(c, &sc)

	assert.Equal(t, "mines.csv", sc.Gazetteer)
	assert.InDelta(t, 0.9, sc.SimilarityThreshold, 0.0001)
	assert.Equal(t, 25, sc.Limit)
	assert.True(t, sc.JurisdictionFilter)
	// Unchanged flags keep configured values.
	assert.Equal(t, "data/edgar", sc.EdgarRoot)
	assert.Equal(t, 5, sc.MaxWindow)
	assert.Equal(t, "data/edgar/mine_sites.geojson", sc.GeoJSONOutput)
}

func TestApplySitesFlags_ZeroValueOverride(t *testing.T) {
	sc := config.SitesConfig{Limit: 10}

	c := newSitesFlagCmd()
	require.NoError(t, c.Flags().Set("limit", "0"))
	applySitesFlags(c, &sc)

	assert.Equal(t, 0, sc.Limit)
}

func TestPipelineOptions(t *testing.T) {
	opts := pipelineOptions(config.SitesConfig{
		EdgarRoot:           "root",
		Gazetteer:           "gaz.csv",
		SimilarityThreshold: 0.75,
		Similarity:          "exact",
		MaxWindow:           3,
		Limit:               7,
		GeoJSONOutput:       "out.geojson",
		HTMLOutput:          "out.html",
		TileURL:             "https://tiles/{z}/{x}/{y}.png",
		JurisdictionFilter:  true,
	})

	assert.Equal(t, "root", opts.EdgarRoot)
	assert.Equal(t, "gaz.csv", opts.Gazetteer)
	assert.Equal(t, 7, opts.Limit)
	assert.InDelta(t, 0.75, opts.Matcher.Threshold, 0.0001)
	assert.Equal(t, "exact", opts.Matcher.Similarity)
	assert.Equal(t, 3, opts.Matcher.MaxWindow)
	assert.True(t, opts.Matcher.Jurisdiction)
	assert.Equal(t, "out.geojson", opts.Emit.GeoJSONPath)
	assert.Equal(t, "out.html", opts.Emit.Map.Path)
	assert.Equal(t, "https://tiles/{z}/{x}/{y}.png", opts.Emit.Map.TileURL)
}

func TestFormatSummary(t *testing.T) {
	var buf bytes.Buffer
	formatSummary(&buf, "run-1", model.RunSummary{
		Filings:    4,
		Explicit:   2,
		FuzzyMatch: 1,
		Unresolved: 1,
		GeoJSON:    "out.geojson",
	})

	out := buf.String()
	assert.Contains(t, out, "run-1")
	assert.Regexp(t, `filings:\s+4`, out)
	assert.Regexp(t, `explicit:\s+2`, out)
	assert.Regexp(t, `fuzzy-match:\s+1`, out)
	assert.Regexp(t, `unresolved:\s+1`, out)
	assert.Contains(t, out, "out.geojson")
	assert.NotContains(t, out, "map:")
}

func TestFormatSummary_NoRunID(t *testing.T) {
	var buf bytes.Buffer
	formatSummary(&buf, "", model.RunSummary{HTMLMap: "map.html"})

	assert.NotContains(t, buf.String(), "run:")
	assert.Contains(t, buf.String(), "map.html")
}
