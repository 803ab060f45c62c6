package geo

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const pointsGeoJSON = `{
  "type": "FeatureCollection",
  "crs": {"type": "name", "properties": {"name": "urn:ogc:def:crs:EPSG::32610"}},
  "features": [
    {"type": "Feature", "geometry": {"type": "Point", "coordinates": [1, 2]}, "properties": {"kind": "oak", "n": 3}},
    {"type": "Feature", "geometry": {"type": "MultiPoint", "coordinates": [[3, 4], [5, 6]]}, "properties": {"kind": "elm"}}
  ]
}`

const windowGeoJSON = `{
  "type": "FeatureCollection",
  "features": [
    {"type": "Feature", "geometry": {"type": "Polygon", "coordinates": [[[0, 0], [10, 0], [10, 10], [0, 10], [0, 0]]]}, "properties": null}
  ]
}`

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func TestLayerStore_ReadLayer(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "trees.geojson", pointsGeoJSON)
	writeFile(t, dir, "park.json", windowGeoJSON)
	writeFile(t, dir, "park.crs", "EPSG:32610\n")

	store, err := NewLayerStore(dir)
	require.NoError(t, err)

	names, err := store.ListLayers()
	require.NoError(t, err)
	assert.Equal(t, []string{"park", "trees"}, names)

	trees, err := store.ReadLayer("trees")
	require.NoError(t, err)
	assert.Equal(t, EPSG(32610), trees.CRS)

	pts, attrs, err := trees.Points()
	require.NoError(t, err)
	assert.Equal(t, []orb.Point{{1, 2}, {3, 4}, {5, 6}}, pts)
	assert.Equal(t, "oak", attrs[0]["kind"])
	assert.Equal(t, "3", attrs[0]["n"])
	assert.Equal(t, "elm", attrs[2]["kind"])

	park, err := store.ReadLayer("park")
	require.NoError(t, err)
	assert.Equal(t, EPSG(32610), park.CRS, "sidecar supplies the CRS")

	mp, err := park.MultiPolygon()
	require.NoError(t, err)
	assert.Len(t, mp, 1)

	_, _, err = park.Points()
	var gle *GeometryLoadError
	assert.True(t, errors.As(err, &gle))
}

func TestLayerStore_ReadLayerErrors(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "broken.geojson", `{"type": "FeatureCollection", "features": [`)
	writeFile(t, dir, "notfc.geojson", `{"type": "Feature", "geometry": null}`)

	store, err := NewLayerStore(dir)
	require.NoError(t, err)

	tests := []struct {
		name  string
		layer string
	}{
		{name: "missing", layer: "nope"},
		{name: "parse failure", layer: "broken"},
		{name: "not a collection", layer: "notfc"},
		{name: "path traversal", layer: "../etc"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := store.ReadLayer(tt.layer)
			var gle *GeometryLoadError
			require.True(t, errors.As(err, &gle), "got %v", err)
			assert.Equal(t, tt.layer, gle.Layer)
		})
	}

	_, err = store.ReadLayer("nope")
	assert.ErrorIs(t, err, ErrLayerNotFound)
}

func TestLayer_NoCRS(t *testing.T) {
	layer, err := DecodeLayer("bare", []byte(windowGeoJSON))
	require.NoError(t, err)
	assert.True(t, layer.CRS.IsZero())
}

func TestNewLayerStore_NotADirectory(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "file.txt", "x")
	_, err := NewLayerStore(filepath.Join(dir, "file.txt"))
	assert.Error(t, err)
}
