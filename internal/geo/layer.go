package geo

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// ErrLayerNotFound is returned when no file backs the requested layer.
var ErrLayerNotFound = errors.New("layer not found")

// maxLayerSize caps how much of a layer file is read into memory.
const maxLayerSize = 256 * 1024 * 1024

// Feature is one geometry with its attributes flattened to strings.
type Feature struct {
	Geometry   orb.Geometry
	Properties map[string]string
}

// Layer is a named collection of features sharing one CRS.
type Layer struct {
	Name     string
	CRS      CRS
	Features []Feature
}

// Points returns every point in the layer along with the attributes of the
// feature it came from. MultiPoint features contribute each member. Any other
// geometry type is a *GeometryLoadError.
func (l *Layer) Points() ([]orb.Point, []map[string]string, error) {
	var pts []orb.Point
	var attrs []map[string]string
	for i, f := range l.Features {
		switch g := f.Geometry.(type) {
		case orb.Point:
			pts = append(pts, g)
			attrs = append(attrs, f.Properties)
		case orb.MultiPoint:
			for _, p := range g {
				pts = append(pts, p)
				attrs = append(attrs, f.Properties)
			}
		default:
			return nil, nil, &GeometryLoadError{
				Layer: l.Name,
				Err:   fmt.Errorf("feature %d: expected point geometry, got %s", i, geometryType(f.Geometry)),
			}
		}
	}
	return pts, attrs, nil
}

// MultiPolygon merges the layer's polygon features into one region.
func (l *Layer) MultiPolygon() (orb.MultiPolygon, error) {
	var mp orb.MultiPolygon
	for i, f := range l.Features {
		switch g := f.Geometry.(type) {
		case orb.Polygon:
			mp = append(mp, g)
		case orb.MultiPolygon:
			mp = append(mp, g...)
		default:
			return nil, &GeometryLoadError{
				Layer: l.Name,
				Err:   fmt.Errorf("feature %d: expected polygon geometry, got %s", i, geometryType(f.Geometry)),
			}
		}
	}
	if len(mp) == 0 {
		return nil, &GeometryLoadError{Layer: l.Name, Err: errors.New("no polygon features")}
	}
	return mp, nil
}

func geometryType(g orb.Geometry) string {
	if g == nil {
		return "null"
	}
	return g.GeoJSONType()
}

// LayerStore reads GeoJSON layers from a directory.
type LayerStore struct {
	dir string
}

// NewLayerStore opens dir as a layer store.
func NewLayerStore(dir string) (*LayerStore, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to open layer directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("layer path %s is not a directory", dir)
	}
	return &LayerStore{dir: dir}, nil
}

var layerExtensions = []string{".geojson", ".json"}

// ListLayers returns the names of the layers in the store, sorted.
func (s *LayerStore) ListLayers() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list layers: %w", err)
	}
	seen := make(map[string]bool)
	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(e.Name()))
		for _, want := range layerExtensions {
			if ext == want {
				name := strings.TrimSuffix(e.Name(), filepath.Ext(e.Name()))
				if !seen[name] {
					seen[name] = true
					names = append(names, name)
				}
			}
		}
	}
	sort.Strings(names)
	return names, nil
}

// ReadLayer loads the named layer. The CRS comes from the collection's
// legacy "crs" member, or failing that a "<name>.crs" sidecar file; a layer
// with neither has a zero CRS.
func (s *LayerStore) ReadLayer(name string) (*Layer, error) {
	if name == "" || strings.ContainsAny(name, `/\`) {
		return nil, &GeometryLoadError{Layer: name, Err: fmt.Errorf("invalid layer name")}
	}

	path, err := s.layerPath(name)
	if err != nil {
		return nil, &GeometryLoadError{Layer: name, Err: err}
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, &GeometryLoadError{Layer: name, Err: err}
	}
	if info.Size() > maxLayerSize {
		return nil, &GeometryLoadError{Layer: name, Err: fmt.Errorf("file too large: %d bytes (max %d)", info.Size(), maxLayerSize)}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &GeometryLoadError{Layer: name, Err: err}
	}
	layer, err := DecodeLayer(name, data)
	if err != nil {
		return nil, err
	}

	if layer.CRS.IsZero() {
		sidecar, err := os.ReadFile(filepath.Join(s.dir, name+".crs"))
		switch {
		case err == nil:
			crs, err := ParseCRS(string(sidecar))
			if err != nil {
				return nil, &GeometryLoadError{Layer: name, Err: fmt.Errorf("sidecar crs: %w", err)}
			}
			layer.CRS = crs
		case !errors.Is(err, os.ErrNotExist):
			return nil, &GeometryLoadError{Layer: name, Err: err}
		}
	}
	return layer, nil
}

func (s *LayerStore) layerPath(name string) (string, error) {
	for _, ext := range layerExtensions {
		p := filepath.Join(s.dir, name+ext)
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}
	return "", ErrLayerNotFound
}

// DecodeLayer parses a GeoJSON FeatureCollection.
func DecodeLayer(name string, data []byte) (*Layer, error) {
	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, &GeometryLoadError{Layer: name, Err: err}
	}

	layer := &Layer{Name: name, Features: make([]Feature, 0, len(fc.Features))}
	if raw, ok := fc.ExtraMembers["crs"]; ok {
		crs, err := crsMember(raw)
		if err != nil {
			return nil, &GeometryLoadError{Layer: name, Err: err}
		}
		layer.CRS = crs
	}

	for i, f := range fc.Features {
		if f.Geometry == nil {
			return nil, &GeometryLoadError{Layer: name, Err: fmt.Errorf("feature %d has no geometry", i)}
		}
		if _, ok := f.Geometry.(orb.Collection); ok {
			return nil, &GeometryLoadError{Layer: name, Err: fmt.Errorf("feature %d: geometry collections are not supported", i)}
		}
		props := make(map[string]string, len(f.Properties))
		for k, v := range f.Properties {
			if v == nil {
				continue
			}
			props[k] = fmt.Sprint(v)
		}
		layer.Features = append(layer.Features, Feature{Geometry: f.Geometry, Properties: props})
	}
	return layer, nil
}

// crsMember reads the pre-RFC 7946 named CRS object:
//
//	"crs": {"type": "name", "properties": {"name": "EPSG:26910"}}
func crsMember(raw interface{}) (CRS, error) {
	obj, ok := raw.(map[string]interface{})
	if !ok {
		return CRS{}, fmt.Errorf("crs member is not an object")
	}
	props, ok := obj["properties"].(map[string]interface{})
	if !ok {
		return CRS{}, fmt.Errorf("crs member has no properties")
	}
	name, ok := props["name"].(string)
	if !ok {
		return CRS{}, fmt.Errorf("crs member has no name")
	}
	return ParseCRS(name)
}
