package emit

import (
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/minesite-cli/internal/model"
)

// Options configures Emit.
type Options struct {
	GeoJSONPath string
	Map         MapOptions
}

// Result reports what Emit wrote.
type Result struct {
	GeoJSONPath string
	Features    int
	// MapPath is empty when no map was written.
	MapPath string
}

// Emit writes the GeoJSON collection and then, if the map capability is
// available, the HTML map. Only GeoJSON failures are returned; map problems
// are logged and skipped.
func Emit(opts Options, sites *model.SiteCollection) (Result, error) {
	log := zap.L().With(zap.String("component", "emit"))
	all := sites.Sites()

	n, err := WriteGeoJSON(opts.GeoJSONPath, all)
	if err != nil {
		return Result{}, err
	}
	res := Result{GeoJSONPath: opts.GeoJSONPath, Features: n}
	log.Info("geojson written",
		zap.String("path", opts.GeoJSONPath),
		zap.Int("features", n),
		zap.Int("omitted", len(all)-n),
	)

	renderer, err := NewMapRenderer(opts.Map)
	if err != nil {
		if eris.Is(err, model.ErrCapabilityUnavailable) {
			log.Debug("map rendering skipped", zap.Error(err))
		} else {
			log.Warn("map renderer unavailable", zap.Error(err))
		}
		return res, nil
	}
	if err := renderer.Render(all); err != nil {
		log.Warn("map rendering failed", zap.String("path", renderer.Path()), zap.Error(err))
		return res, nil
	}
	res.MapPath = renderer.Path()
	log.Info("map written", zap.String("path", res.MapPath))
	return res, nil
}
