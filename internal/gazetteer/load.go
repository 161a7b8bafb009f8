package gazetteer

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/minesite-cli/internal/fetcher"
)

// Loader reads gazetteers from local paths or remote URLs.
type Loader struct {
	// Sources downloads http(s) and ftp locations. Nil restricts the loader
	// to local files.
	Sources *fetcher.Sources
	// Sheet selects an XLSX worksheet by name; the first sheet is used when empty.
	Sheet string
}

// Load reads a local gazetteer file. An empty path yields an empty gazetteer.
func Load(path string) (*Gazetteer, error) {
	return (&Loader{}).Load(context.Background(), path)
}

// Load reads the gazetteer at src, dispatching on its file extension.
// An empty src yields an empty gazetteer.
func (l *Loader) Load(ctx context.Context, src string) (*Gazetteer, error) {
	src = strings.TrimSpace(src)
	if src == "" {
		zap.L().Info("no gazetteer configured, resolving explicit coordinates only",
			zap.String("component", "gazetteer"),
		)
		return New(), nil
	}

	path := src
	if fetcher.IsRemote(src) {
		if l.Sources == nil {
			return nil, eris.Errorf("gazetteer: remote source %s requires a fetcher", src)
		}
		local, cleanup, err := l.Sources.Local(ctx, src)
		if err != nil {
			return nil, eris.Wrap(err, "gazetteer: fetch source")
		}
		defer cleanup()
		path = local
	}

	g := New()
	if err := l.loadFile(ctx, g, path, src); err != nil {
		return nil, err
	}

	zap.L().Info("gazetteer loaded",
		zap.String("component", "gazetteer"),
		zap.String("source", src),
		zap.Int("entries", len(g.entries)),
		zap.Int("keys", g.Len()),
	)
	return g, nil
}

func (l *Loader) loadFile(ctx context.Context, g *Gazetteer, path, display string) error {
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".csv":
		return loadDelimited(ctx, g, path, display, ',')
	case ".tsv", ".tab":
		return loadDelimited(ctx, g, path, display, '\t')
	case ".json", ".geojson":
		return loadJSON(ctx, g, path, display)
	case ".yaml", ".yml":
		return loadYAML(g, path, display)
	case ".xlsx":
		return loadXLSX(g, path, display, l.Sheet)
	case ".shp":
		return loadShapefile(g, path, display)
	case ".kml":
		return loadKML(ctx, g, path, display)
	case ".zip", ".kmz":
		return l.loadArchive(ctx, g, path, display)
	default:
		return &FormatError{Path: display, Reason: "unsupported file extension " + ext}
	}
}

// archivePreference orders the members considered inside a ZIP or KMZ.
var archivePreference = []string{".shp", ".geojson", ".kml", ".json", ".csv", ".tsv", ".xlsx", ".yaml", ".yml"}

// loadArchive extracts a ZIP (a zipped shapefile bundle is the common case)
// or KMZ and loads its most specific gazetteer member.
func (l *Loader) loadArchive(ctx context.Context, g *Gazetteer, path, display string) error {
	dir, err := os.MkdirTemp("", "gazetteer-")
	if err != nil {
		return eris.Wrap(err, "gazetteer: create extract dir")
	}
	defer os.RemoveAll(dir) //nolint:errcheck

	files, err := fetcher.ExtractZIP(path, dir)
	if err != nil {
		return &FormatError{Path: display, Reason: err.Error()}
	}

	for _, want := range archivePreference {
		for _, f := range files {
			if strings.ToLower(filepath.Ext(f)) != want || strings.HasPrefix(filepath.Base(f), ".") {
				continue
			}
			rel, _ := filepath.Rel(dir, f)
			return l.loadFile(ctx, g, f, display+"!"+filepath.ToSlash(rel))
		}
	}
	return &FormatError{Path: display, Reason: "archive contains no gazetteer file"}
}

// sourceName is the default Source recorded on entries: the file's base name.
func sourceName(display string) string {
	if i := strings.LastIndex(display, "!"); i >= 0 {
		display = display[:i]
	}
	if fetcher.IsRemote(display) {
		if i := strings.LastIndex(display, "/"); i >= 0 {
			display = display[i+1:]
		}
		if i := strings.IndexAny(display, "?#"); i >= 0 {
			display = display[:i]
		}
		return display
	}
	return filepath.Base(display)
}
