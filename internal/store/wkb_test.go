package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/ewkb"

	"github.com/sells-group/minesite-cli/internal/model"
)

func TestEncodePoint_RoundTrip(t *testing.T) {
	data, err := encodePoint(&model.LatLng{Latitude: 40.5186, Longitude: -112.15})
	require.NoError(t, err)
	require.NotEmpty(t, data)
	assert.Equal(t, byte(1), data[0], "little-endian byte order marker")

	g, err := ewkb.Unmarshal(data)
	require.NoError(t, err)
	assert.Equal(t, srid, g.SRID())

	loc, err := decodePoint(data)
	require.NoError(t, err)
	assert.InDelta(t, 40.5186, loc.Latitude, 1e-12)
	assert.InDelta(t, -112.15, loc.Longitude, 1e-12)
}

func TestEncodePoint_Nil(t *testing.T) {
	data, err := encodePoint(nil)
	require.NoError(t, err)
	assert.Nil(t, data)

	loc, err := decodePoint(nil)
	require.NoError(t, err)
	assert.Nil(t, loc)
}

func TestDecodePoint_Errors(t *testing.T) {
	_, err := decodePoint([]byte{0x01, 0x02})
	assert.ErrorContains(t, err, "store: decode point")

	line := geom.NewLineStringFlat(geom.XY, []float64{0, 0, 1, 1}).SetSRID(srid)
	data, err := ewkb.Marshal(line, ewkb.NDR)
	require.NoError(t, err)
	_, err = decodePoint(data)
	assert.ErrorContains(t, err, "expected point geometry")
}
