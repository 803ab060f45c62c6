package geo

import (
	"errors"
	"fmt"
	"math"
	"sync"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/project"
	"github.com/wroge/wgs84"
)

// registeredCodes is the set of EPSG codes the wgs84 registry can transform.
var registeredCodes = sync.OnceValue(func() map[int]bool {
	codes := wgs84.EPSG().Codes()
	m := make(map[int]bool, len(codes))
	for _, c := range codes {
		m[c] = true
	}
	return m
})

func checkLonLat(p orb.Point) error {
	if math.IsNaN(p[0]) || math.IsNaN(p[1]) || p[0] < -180 || p[0] > 180 || p[1] < -90 || p[1] > 90 {
		return fmt.Errorf("coordinate (%g, %g) is not a valid longitude/latitude", p[0], p[1])
	}
	return nil
}

// Transformer moves single points from one CRS to another.
type Transformer struct {
	from, to CRS
	// fn is nil when from and to are the same system.
	fn func(a, b, c float64) (float64, float64, float64)
}

// NewTransformer returns a transformer between two systems. Identical
// systems need no registry entry; otherwise both must be Supported.
func NewTransformer(from, to CRS) (*Transformer, error) {
	if from.IsZero() || to.IsZero() {
		return nil, &ProjectionError{From: from, To: to, Reason: "CRS is unknown"}
	}
	if from.canonical() == to.canonical() {
		return &Transformer{from: from, to: to}, nil
	}
	for _, c := range []CRS{from, to} {
		if !c.Supported() {
			return nil, &ProjectionError{From: from, To: to, Err: fmt.Errorf("unsupported CRS %s", c)}
		}
	}
	epsg := wgs84.EPSG()
	fn := epsg.Code(from.canonical().Code).To(epsg.Code(to.canonical().Code))
	return &Transformer{from: from, to: to, fn: fn}, nil
}

// Point transforms one coordinate. Geographic input and output are checked
// against the longitude/latitude range, which catches projected metres in a
// layer labelled as degrees.
func (t *Transformer) Point(p orb.Point) (orb.Point, error) {
	if t.fn == nil {
		return p, nil
	}
	if t.from.IsGeographic() {
		if err := checkLonLat(p); err != nil {
			return p, err
		}
	}
	x, y, _ := t.fn(p[0], p[1], 0)
	q := orb.Point{x, y}
	if math.IsNaN(x) || math.IsNaN(y) || math.IsInf(x, 0) || math.IsInf(y, 0) {
		return p, fmt.Errorf("coordinate (%g, %g) has no image in %s", p[0], p[1], t.to)
	}
	if t.to.IsGeographic() {
		if err := checkLonLat(q); err != nil {
			return p, err
		}
	}
	return q, nil
}

// Geometry transforms a copy of g. The first failing coordinate aborts the
// transform and is reported.
func (t *Transformer) Geometry(g orb.Geometry) (orb.Geometry, error) {
	if t.fn == nil {
		return orb.Clone(g), nil
	}
	var firstErr error
	out := project.Geometry(orb.Clone(g), func(p orb.Point) orb.Point {
		if firstErr != nil {
			return p
		}
		q, err := t.Point(p)
		if err != nil {
			firstErr = err
			return p
		}
		return q
	})
	if firstErr != nil {
		return nil, &ProjectionError{From: t.from, To: t.to, Err: firstErr}
	}
	return out, nil
}

// Reproject returns a copy of layer with every feature moved into target.
// A layer without a declared CRS is read as assume; if assume is also
// unknown a *ProjectionError is returned. A layer already in target is
// copied unchanged whether or not the registry knows its system.
func Reproject(layer *Layer, target, assume CRS) (*Layer, error) {
	from := layer.CRS
	if from.IsZero() {
		from = assume
	}
	if from.IsZero() {
		return nil, &ProjectionError{Layer: layer.Name, To: target, Reason: "layer has no CRS and none was assumed"}
	}

	t, err := NewTransformer(from, target)
	if err != nil {
		var pe *ProjectionError
		if errors.As(err, &pe) {
			pe.Layer = layer.Name
		}
		return nil, err
	}

	out := &Layer{Name: layer.Name, CRS: target, Features: make([]Feature, len(layer.Features))}
	for i, f := range layer.Features {
		g, err := t.Geometry(f.Geometry)
		if err != nil {
			var pe *ProjectionError
			if errors.As(err, &pe) {
				pe.Layer = layer.Name
			}
			return nil, fmt.Errorf("feature %d: %w", i, err)
		}
		out.Features[i] = Feature{Geometry: g, Properties: f.Properties}
	}
	return out, nil
}
