package ppp

import (
	"fmt"

	"github.com/paulmach/orb"

	"github.com/banshee-data/pattern.report/internal/geo"
	"github.com/banshee-data/pattern.report/internal/monitoring"
)

// ObservationSet is a set of located points, all in one CRS, with optional
// per-point categorical marks.
type ObservationSet struct {
	CRS    geo.CRS
	Points []orb.Point
	Marks  []map[string]string
}

// Pattern is an observation set tied to its window. Points outside the
// window are kept and flagged illegal. A Pattern is immutable once built.
type Pattern struct {
	obs     ObservationSet
	window  *Window
	inside  []bool
	nInside int
}

// Summary describes a pattern's composition.
type Summary struct {
	Total     int     `json:"total"`
	Inside    int     `json:"inside"`
	Illegal   int     `json:"illegal"`
	Area      float64 `json:"area"`
	Intensity float64 `json:"intensity"`
}

// NewPattern flags each point as inside or outside w. The observation set
// and window must share a CRS; a mismatch is a *geo.ProjectionError.
func NewPattern(obs ObservationSet, w *Window) (*Pattern, error) {
	if w == nil {
		return nil, fmt.Errorf("pattern requires a window")
	}
	if obs.CRS != w.CRS() {
		return nil, &geo.ProjectionError{
			From:   obs.CRS,
			To:     w.CRS(),
			Reason: "observation set and window are in different coordinate systems",
		}
	}
	if obs.Marks != nil && len(obs.Marks) != len(obs.Points) {
		return nil, fmt.Errorf("marks length %d does not match points length %d", len(obs.Marks), len(obs.Points))
	}

	p := &Pattern{
		obs:    obs,
		window: w,
		inside: make([]bool, len(obs.Points)),
	}
	for i, pt := range obs.Points {
		if w.Contains(pt) {
			p.inside[i] = true
			p.nInside++
		}
	}
	if illegal := p.Illegal(); illegal > 0 {
		monitoring.Logf("point pattern: %d of %d points lie outside the window and are flagged illegal", illegal, p.Len())
	}
	return p, nil
}

// simulated builds a pattern from points known to lie in w.
func simulated(pts []orb.Point, w *Window) *Pattern {
	inside := make([]bool, len(pts))
	for i := range inside {
		inside[i] = true
	}
	return &Pattern{
		obs:     ObservationSet{CRS: w.CRS(), Points: pts},
		window:  w,
		inside:  inside,
		nInside: len(pts),
	}
}

// Len is the total number of points, legal or not.
func (p *Pattern) Len() int { return len(p.obs.Points) }

// Inside is the number of points inside the window.
func (p *Pattern) Inside() int { return p.nInside }

// Illegal is the number of points outside the window.
func (p *Pattern) Illegal() int { return len(p.obs.Points) - p.nInside }

// IsInside reports whether point i lies inside the window.
func (p *Pattern) IsInside(i int) bool { return p.inside[i] }

// Point returns point i.
func (p *Pattern) Point(i int) orb.Point { return p.obs.Points[i] }

// Marks returns the attributes of point i, or nil.
func (p *Pattern) Marks(i int) map[string]string {
	if p.obs.Marks == nil {
		return nil
	}
	return p.obs.Marks[i]
}

// Window returns the pattern's window.
func (p *Pattern) Window() *Window { return p.window }

// CRS returns the pattern's coordinate reference system.
func (p *Pattern) CRS() geo.CRS { return p.obs.CRS }

// InsidePoints returns a copy of the legal points.
func (p *Pattern) InsidePoints() []orb.Point {
	out := make([]orb.Point, 0, p.nInside)
	for i, pt := range p.obs.Points {
		if p.inside[i] {
			out = append(out, pt)
		}
	}
	return out
}

// IllegalPoints returns a copy of the points outside the window.
func (p *Pattern) IllegalPoints() []orb.Point {
	out := make([]orb.Point, 0, p.Illegal())
	for i, pt := range p.obs.Points {
		if !p.inside[i] {
			out = append(out, pt)
		}
	}
	return out
}

// Intensity is the number of legal points per unit area.
func (p *Pattern) Intensity() float64 {
	return float64(p.nInside) / p.window.Area()
}

// Summary reports counts, window area and intensity.
func (p *Pattern) Summary() Summary {
	return Summary{
		Total:     p.Len(),
		Inside:    p.Inside(),
		Illegal:   p.Illegal(),
		Area:      p.window.Area(),
		Intensity: p.Intensity(),
	}
}
