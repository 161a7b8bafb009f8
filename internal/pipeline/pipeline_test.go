package pipeline

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/minesite-cli/internal/emit"
	"github.com/sells-group/minesite-cli/internal/gazetteer"
	"github.com/sells-group/minesite-cli/internal/matcher"
	"github.com/sells-group/minesite-cli/internal/model"
	"github.com/sells-group/minesite-cli/internal/store"
)

const gazetteerCSV = "name,latitude,longitude,jurisdiction\nBagdad Mine,34.58,-113.20,Arizona\n"

func writeFiling(t *testing.T, root, cik, adsh, body string) {
	t.Helper()
	dir := filepath.Join(root, cik, strings.ReplaceAll(adsh, "-", ""))
	require.NoError(t, os.MkdirAll(dir, 0o755))
	doc := filepath.Join(dir, "ex96.htm")
	require.NoError(t, os.WriteFile(doc, []byte(body), 0o644))
	meta := `{"adsh":"` + adsh + `","file_name":"ex96.htm","cik":"` + cik + `","form":"10-K","file_type":"EX-96.1"}`
	require.NoError(t, os.WriteFile(doc+".metadata.json", []byte(meta), 0o644))
}

// newFixture lays out one explicit, one fuzzy and one unresolved filing.
func newFixture(t *testing.T) (root, gaz string) {
	t.Helper()
	dir := t.TempDir()
	root = filepath.Join(dir, "edgar")
	writeFiling(t, root, "0000000001", "0000000001-24-000001",
		"<html><body><p>The Bingham Canyon Mine is located at 40.5186 N, 112.1500 W.</p></body></html>")
	writeFiling(t, root, "0000000002", "0000000002-24-000002",
		"<html><body><p>The Bagdad Mine is an open pit copper operation.</p></body></html>")
	writeFiling(t, root, "0000000003", "0000000003-24-000003",
		"<html><body><p>annual results for the fiscal year were consistent with guidance.</p></body></html>")

	gaz = filepath.Join(dir, "mines.csv")
	require.NoError(t, os.WriteFile(gaz, []byte(gazetteerCSV), 0o644))
	return root, gaz
}

func testOptions(root, gaz, outDir string) Options {
	return Options{
		EdgarRoot: root,
		Gazetteer: gaz,
		Matcher:   matcher.Options{Threshold: 0.8},
		Emit:      emit.Options{GeoJSONPath: filepath.Join(outDir, "sites.geojson")},
	}
}

func TestPipeline_Run_FullFlow(t *testing.T) {
	root, gaz := newFixture(t)
	out := t.TempDir()

	p := New(nil, nil)
	res, err := p.Run(context.Background(), testOptions(root, gaz, out))
	require.NoError(t, err)

	sites := res.Sites.Sites()
	require.Len(t, sites, 3)

	assert.Equal(t, model.MethodExplicit, sites[0].Method)
	assert.InDelta(t, 1.0, sites[0].Confidence, 1e-9)
	require.NotNil(t, sites[0].Location)
	assert.InDelta(t, 40.5186, sites[0].Location.Latitude, 1e-9)
	assert.InDelta(t, -112.15, sites[0].Location.Longitude, 1e-9)

	assert.Equal(t, model.MethodFuzzyMatch, sites[1].Method)
	assert.Equal(t, "Bagdad Mine", sites[1].MatchedName)
	assert.Equal(t, "Arizona", sites[1].Jurisdiction)
	require.NotNil(t, sites[1].Location)
	assert.InDelta(t, 34.58, sites[1].Location.Latitude, 1e-9)

	assert.Equal(t, model.MethodUnresolved, sites[2].Method)
	assert.Nil(t, sites[2].Location)

	assert.Equal(t, model.RunSummary{
		Filings: 3, Explicit: 1, FuzzyMatch: 1, Unresolved: 1,
		GeoJSON: filepath.Join(out, "sites.geojson"),
	}, res.Summary)
	assert.Empty(t, res.RunID)

	data, err := os.ReadFile(filepath.Join(out, "sites.geojson"))
	require.NoError(t, err)
	var fc struct {
		Features []json.RawMessage `json:"features"`
	}
	require.NoError(t, json.Unmarshal(data, &fc))
	assert.Len(t, fc.Features, 2)
}

func TestPipeline_Run_Limit(t *testing.T) {
	root, gaz := newFixture(t)
	opts := testOptions(root, gaz, t.TempDir())
	opts.Limit = 2

	res, err := New(nil, nil).Run(context.Background(), opts)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Summary.Filings)
}

func TestPipeline_Run_NoGazetteer(t *testing.T) {
	root, _ := newFixture(t)

	res, err := New(nil, nil).Run(context.Background(), testOptions(root, "", t.TempDir()))
	require.NoError(t, err)
	assert.Equal(t, 1, res.Summary.Explicit)
	assert.Equal(t, 0, res.Summary.FuzzyMatch)
	assert.Equal(t, 2, res.Summary.Unresolved)
}

func TestPipeline_Run_EmptyTree(t *testing.T) {
	root := t.TempDir()
	out := t.TempDir()

	res, err := New(nil, nil).Run(context.Background(), testOptions(root, "", out))
	require.NoError(t, err)
	assert.Equal(t, 0, res.Summary.Filings)

	data, err := os.ReadFile(filepath.Join(out, "sites.geojson"))
	require.NoError(t, err)
	assert.Contains(t, string(data), `"features": []`)
}

func TestPipeline_Run_WithMap(t *testing.T) {
	root, gaz := newFixture(t)
	out := t.TempDir()
	opts := testOptions(root, gaz, out)
	opts.Emit.Map = emit.MapOptions{Path: filepath.Join(out, "map.html")}

	res, err := New(nil, nil).Run(context.Background(), opts)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(out, "map.html"), res.Summary.HTMLMap)
	assert.FileExists(t, filepath.Join(out, "map.html"))
}

func TestPipeline_Run_RecordsRun(t *testing.T) {
	root, gaz := newFixture(t)
	opts := testOptions(root, gaz, t.TempDir())

	st := &mockStore{}
	st.On("CreateRun", mock.Anything, root, gaz).Return(&model.Run{ID: "run-1", Status: model.RunStatusRunning}, nil)
	st.On("SaveSites", mock.Anything, "run-1", mock.MatchedBy(func(sites []model.ResolvedSite) bool {
		return len(sites) == 3
	})).Return(nil)
	st.On("CompleteRun", mock.Anything, "run-1", model.RunStatusComplete, mock.MatchedBy(func(s model.RunSummary) bool {
		return s.Filings == 3 && s.Explicit == 1 && s.FuzzyMatch == 1 && s.Unresolved == 1
	})).Return(nil)

	res, err := New(st, nil).Run(context.Background(), opts)
	require.NoError(t, err)
	assert.Equal(t, "run-1", res.RunID)
	st.AssertExpectations(t)
}

func TestPipeline_Run_StoreWriteFailuresAreNotFatal(t *testing.T) {
	root, gaz := newFixture(t)

	st := &mockStore{}
	st.On("CreateRun", mock.Anything, mock.Anything, mock.Anything).Return(&model.Run{ID: "run-1"}, nil)
	st.On("SaveSites", mock.Anything, "run-1", mock.Anything).Return(eris.New("disk full"))
	st.On("CompleteRun", mock.Anything, "run-1", model.RunStatusComplete, mock.Anything).Return(eris.New("disk full"))

	res, err := New(st, nil).Run(context.Background(), testOptions(root, gaz, t.TempDir()))
	require.NoError(t, err)
	assert.Equal(t, 3, res.Summary.Filings)
	st.AssertExpectations(t)
}

func TestPipeline_Run_CreateRunFails(t *testing.T) {
	root, gaz := newFixture(t)

	st := &mockStore{}
	st.On("CreateRun", mock.Anything, mock.Anything, mock.Anything).Return(nil, eris.New("connection refused"))

	_, err := New(st, nil).Run(context.Background(), testOptions(root, gaz, t.TempDir()))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "pipeline: create run")
	st.AssertNotCalled(t, "CompleteRun", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestPipeline_Run_GazetteerFormatErrorIsFatal(t *testing.T) {
	root, _ := newFixture(t)
	bad := filepath.Join(t.TempDir(), "mines.txt")
	require.NoError(t, os.WriteFile(bad, []byte("x"), 0o644))

	st := &mockStore{}
	st.On("CreateRun", mock.Anything, mock.Anything, mock.Anything).Return(&model.Run{ID: "run-1"}, nil)
	st.On("CompleteRun", mock.Anything, "run-1", model.RunStatusFailed, mock.MatchedBy(func(s model.RunSummary) bool {
		return strings.Contains(s.Error, "unsupported file extension")
	})).Return(nil)

	out := t.TempDir()
	_, err := New(st, nil).Run(context.Background(), testOptions(root, bad, out))
	require.Error(t, err)
	var fe *gazetteer.FormatError
	assert.ErrorAs(t, err, &fe)
	assert.NoFileExists(t, filepath.Join(out, "sites.geojson"))
	st.AssertExpectations(t)
}

func TestPipeline_Run_GeoJSONWriteFailureIsFatal(t *testing.T) {
	root, gaz := newFixture(t)
	blocker := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o644))

	opts := testOptions(root, gaz, t.TempDir())
	opts.Emit.GeoJSONPath = filepath.Join(blocker, "sites.geojson")

	res, err := New(nil, nil).Run(context.Background(), opts)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "pipeline: emit")
	assert.Equal(t, 3, res.Summary.Filings)
}

func TestPipeline_Run_SameInputsSameGeoJSON(t *testing.T) {
	root, gaz := newFixture(t)

	var outputs [][]byte
	for range 2 {
		out := t.TempDir()
		_, err := New(nil, nil).Run(context.Background(), testOptions(root, gaz, out))
		require.NoError(t, err)
		data, err := os.ReadFile(filepath.Join(out, "sites.geojson"))
		require.NoError(t, err)
		outputs = append(outputs, data)
	}
	assert.Equal(t, string(outputs[0]), string(outputs[1]))
}

func TestPipeline_Run_Cancelled(t *testing.T) {
	root, gaz := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New(nil, nil).Run(ctx, testOptions(root, gaz, t.TempDir()))
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestPipeline_ResolveDocument(t *testing.T) {
	g := gazetteer.New()
	g.Add(gazetteer.Entry{Name: "Bagdad Mine", Latitude: 34.58, Longitude: -113.2, Source: "mines.csv"})
	m := matcher.New(g, matcher.Options{})
	p := New(nil, nil)

	site := p.ResolveDocument(model.FilingDocument{CIK: "1", Accession: "a", Text: "Bagdad Mines, Arizona"}, m)
	assert.Equal(t, model.MethodFuzzyMatch, site.Method)
	assert.Equal(t, "mines.csv", site.Source)

	site = p.ResolveDocument(model.FilingDocument{CIK: "1", Accession: "a", Text: "Bagdad Mine at 34.5 N, 113.2 W"}, nil)
	assert.Equal(t, model.MethodExplicit, site.Method)
}

var _ store.Store = (*mockStore)(nil)
