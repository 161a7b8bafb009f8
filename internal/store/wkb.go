package store

import (
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/ewkb"

	"github.com/sells-group/minesite-cli/internal/model"
)

const srid = 4326

// encodePoint returns the site location as little-endian EWKB with SRID
// 4326, or nil when the site has no location.
func encodePoint(loc *model.LatLng) ([]byte, error) {
	if loc == nil {
		return nil, nil
	}
	p := geom.NewPointFlat(geom.XY, []float64{loc.Longitude, loc.Latitude}).SetSRID(srid)
	data, err := ewkb.Marshal(p, ewkb.NDR)
	if err != nil {
		return nil, eris.Wrap(err, "store: encode point")
	}
	return data, nil
}

// decodePoint parses EWKB written by encodePoint. Empty input means no
// location.
func decodePoint(data []byte) (*model.LatLng, error) {
	if len(data) == 0 {
		return nil, nil
	}
	g, err := ewkb.Unmarshal(data)
	if err != nil {
		return nil, eris.Wrap(err, "store: decode point")
	}
	p, ok := g.(*geom.Point)
	if !ok {
		return nil, eris.Errorf("store: expected point geometry, got %T", g)
	}
	return &model.LatLng{Latitude: p.Y(), Longitude: p.X()}, nil
}
