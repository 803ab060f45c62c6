// Package ppp builds planar point patterns inside a study window and computes
// the exploratory statistics run on them: kernel density surfaces, the G, K
// and L distance functions, and Monte Carlo envelopes under complete spatial
// randomness (CSR).
package ppp

import (
	"errors"
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"

	"github.com/banshee-data/pattern.report/internal/geo"
)

// ErrEmptyWindow is returned for windows with no area.
var ErrEmptyWindow = errors.New("window has zero area")

// Window is the closed planar region a pattern was observed in. Holes are
// allowed.
type Window struct {
	region orb.MultiPolygon
	crs    geo.CRS
	bound  orb.Bound
	area   float64
}

// NewWindow wraps region as a study window in crs.
func NewWindow(region orb.MultiPolygon, crs geo.CRS) (*Window, error) {
	area := math.Abs(planar.Area(region))
	if len(region) == 0 || area == 0 || math.IsNaN(area) {
		return nil, ErrEmptyWindow
	}
	return &Window{
		region: region,
		crs:    crs,
		bound:  region.Bound(),
		area:   area,
	}, nil
}

// RectWindow returns the axis-aligned rectangle b as a window.
func RectWindow(b orb.Bound, crs geo.CRS) (*Window, error) {
	return NewWindow(orb.MultiPolygon{b.ToPolygon()}, crs)
}

// Contains reports whether p lies inside the window. Points on the boundary
// count as inside.
func (w *Window) Contains(p orb.Point) bool {
	if !w.bound.Contains(p) {
		return false
	}
	return planar.MultiPolygonContains(w.region, p)
}

// Area is the window area in squared CRS units.
func (w *Window) Area() float64 { return w.area }

// Bound is the window's bounding box.
func (w *Window) Bound() orb.Bound { return w.bound }

// Region returns the window geometry.
func (w *Window) Region() orb.MultiPolygon { return w.region }

// CRS returns the window's coordinate reference system.
func (w *Window) CRS() geo.CRS { return w.crs }

// BoundaryDistance is the distance from p to the nearest window edge,
// including hole edges.
func (w *Window) BoundaryDistance(p orb.Point) float64 {
	return planar.DistanceFrom(w.region, p)
}
