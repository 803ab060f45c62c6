package geo

import (
	"errors"
	"math"
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustPoint(t *testing.T, from, to CRS, p orb.Point) orb.Point {
	t.Helper()
	tr, err := NewTransformer(from, to)
	require.NoError(t, err)
	q, err := tr.Point(p)
	require.NoError(t, err)
	return q
}

func TestTransformer_UTMKnownPoints(t *testing.T) {
	// Zone 31 has its central meridian at 3°E.
	p := mustPoint(t, WGS84, EPSG(32631), orb.Point{3, 45})
	assert.InDelta(t, 500000.0, p[0], 1e-3)
	// k0 times the WGS84 meridian arc to 45°N (4984944.378 m).
	assert.InDelta(t, 0.9996*4984944.378, p[1], 0.05)

	p = mustPoint(t, WGS84, EPSG(32610), orb.Point{-123, 0})
	assert.InDelta(t, 500000.0, p[0], 1e-3)
	assert.InDelta(t, 0.0, p[1], 1e-3)

	p = mustPoint(t, WGS84, EPSG(32710), orb.Point{-123, 0})
	assert.InDelta(t, 10000000.0, p[1], 1e-3)
}

func TestTransformer_RoundTrip(t *testing.T) {
	tests := []struct {
		name     string
		code     int
		lon, lat float64
	}{
		{name: "san francisco", code: 32610, lon: -122.4194, lat: 37.7749},
		{name: "zone edge", code: 32610, lon: -120.01, lat: 48.5},
		{name: "sydney", code: 32756, lon: 151.2093, lat: -33.8688},
		{name: "high latitude", code: 32633, lon: 15.6, lat: 78.2},
		{name: "nad83 utm", code: 26910, lon: -122.4194, lat: 37.7749},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			xy := mustPoint(t, WGS84, EPSG(tt.code), orb.Point{tt.lon, tt.lat})
			back := mustPoint(t, EPSG(tt.code), WGS84, xy)
			assert.InDelta(t, tt.lon, back[0], 1e-6)
			assert.InDelta(t, tt.lat, back[1], 1e-6)
		})
	}
}

func TestTransformer_SameCRS(t *testing.T) {
	// EPSG:990001 is not a registered system; an identical pair still
	// needs no transform.
	for _, c := range []CRS{EPSG(3310), EPSG(990001), EPSG(32610)} {
		tr, err := NewTransformer(c, c)
		require.NoError(t, err, c.String())
		p, err := tr.Point(orb.Point{12345.5, -678.25})
		require.NoError(t, err)
		assert.Equal(t, orb.Point{12345.5, -678.25}, p)
	}

	tr, err := NewTransformer(EPSG(900913), WebMercator)
	require.NoError(t, err)
	p, err := tr.Point(orb.Point{1, 2})
	require.NoError(t, err)
	assert.Equal(t, orb.Point{1, 2}, p)
}

func TestTransformer_WebMercatorToUTM(t *testing.T) {
	toMerc, err := NewTransformer(WGS84, WebMercator)
	require.NoError(t, err)
	merc, err := toMerc.Point(orb.Point{-122.4194, 37.7749})
	require.NoError(t, err)

	toUTM, err := NewTransformer(WebMercator, EPSG(32610))
	require.NoError(t, err)
	viaMerc, err := toUTM.Point(merc)
	require.NoError(t, err)

	direct, err := NewTransformer(WGS84, EPSG(32610))
	require.NoError(t, err)
	want, err := direct.Point(orb.Point{-122.4194, 37.7749})
	require.NoError(t, err)

	assert.InDelta(t, want[0], viaMerc[0], 1e-3)
	assert.InDelta(t, want[1], viaMerc[1], 1e-3)
}

func TestTransformer_Errors(t *testing.T) {
	_, err := NewTransformer(CRS{}, WGS84)
	var pe *ProjectionError
	require.True(t, errors.As(err, &pe))

	_, err = NewTransformer(WGS84, EPSG(990001))
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, EPSG(990001), pe.To)

	tr, err := NewTransformer(WGS84, EPSG(32610))
	require.NoError(t, err)
	_, err = tr.Point(orb.Point{550000, 4180000})
	assert.Error(t, err, "projected metres read as degrees must be rejected")
}

func TestReproject(t *testing.T) {
	layer := &Layer{
		Name: "sites",
		CRS:  WGS84,
		Features: []Feature{
			{Geometry: orb.Point{-123, 0}, Properties: map[string]string{"kind": "a"}},
			{Geometry: orb.Polygon{{{-123, 0}, {-122.9, 0}, {-122.9, 0.1}, {-123, 0}}}},
		},
	}

	out, err := Reproject(layer, EPSG(32610), CRS{})
	require.NoError(t, err)
	assert.Equal(t, EPSG(32610), out.CRS)
	require.Len(t, out.Features, 2)

	p := out.Features[0].Geometry.(orb.Point)
	assert.InDelta(t, 500000.0, p[0], 1e-3)
	assert.InDelta(t, 0.0, p[1], 1e-3)
	assert.Equal(t, "a", out.Features[0].Properties["kind"])

	// the input is untouched
	assert.Equal(t, orb.Point{-123, 0}, layer.Features[0].Geometry)
	assert.Equal(t, WGS84, layer.CRS)
}

func TestReproject_AssumeCRS(t *testing.T) {
	layer := &Layer{Name: "bare", Features: []Feature{{Geometry: orb.Point{-123, 0}}}}

	_, err := Reproject(layer, EPSG(32610), CRS{})
	var pe *ProjectionError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, "bare", pe.Layer)

	out, err := Reproject(layer, EPSG(32610), WGS84)
	require.NoError(t, err)
	p := out.Features[0].Geometry.(orb.Point)
	assert.False(t, math.IsNaN(p[0]))
}

func TestReproject_BadCoordinate(t *testing.T) {
	layer := &Layer{Name: "mislabelled", CRS: WGS84, Features: []Feature{{Geometry: orb.Point{550000, 4180000}}}}
	_, err := Reproject(layer, EPSG(32610), CRS{})
	var pe *ProjectionError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, "mislabelled", pe.Layer)
}

func TestReproject_AlreadyInTarget(t *testing.T) {
	pts := []Feature{{Geometry: orb.Point{150000, -450000}}}

	declared := &Layer{Name: "albers", CRS: EPSG(990001), Features: pts}
	out, err := Reproject(declared, EPSG(990001), CRS{})
	require.NoError(t, err)
	assert.Equal(t, orb.Point{150000, -450000}, out.Features[0].Geometry)

	bare := &Layer{Name: "bare", Features: pts}
	out, err = Reproject(bare, EPSG(990001), EPSG(990001))
	require.NoError(t, err)
	assert.Equal(t, EPSG(990001), out.CRS)
	assert.Equal(t, orb.Point{150000, -450000}, out.Features[0].Geometry)

	_, err = Reproject(declared, EPSG(32610), CRS{})
	var pe *ProjectionError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, "albers", pe.Layer)
}
