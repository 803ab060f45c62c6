package ppp

import (
	"context"
	"fmt"
	"math"

	"github.com/paulmach/orb"
	"gonum.org/v1/gonum/stat/distuv"
)

// kernelCutoff truncates the Gaussian kernel at this many standard deviations.
const kernelCutoff = 4.0

// DefaultDimension is the default number of pixels along the window's longer
// side.
const DefaultDimension = 128

// DensityOptions controls the pixel grid and edge correction.
type DensityOptions struct {
	Dimension   int  // pixels on the long side of the window bbox
	EdgeCorrect bool // divide by the kernel mass inside the window
}

// DensitySurface is a grid of intensity estimates (points per unit area)
// covering the window's bounding box. Cells whose centre falls outside the
// window hold NaN.
type DensitySurface struct {
	Sigma    float64
	NX, NY   int
	Origin   orb.Point // lower-left corner of cell (0, 0)
	CellSize float64
	Values   []float64 // row-major, index iy*NX + ix
}

// At returns the value of cell (ix, iy).
func (d *DensitySurface) At(ix, iy int) float64 {
	return d.Values[iy*d.NX+ix]
}

// CellCenter returns the coordinate of the centre of cell (ix, iy).
func (d *DensitySurface) CellCenter(ix, iy int) orb.Point {
	return orb.Point{
		d.Origin[0] + (float64(ix)+0.5)*d.CellSize,
		d.Origin[1] + (float64(iy)+0.5)*d.CellSize,
	}
}

// Max returns the largest finite value, or NaN if there is none.
func (d *DensitySurface) Max() float64 {
	hi := math.NaN()
	for _, v := range d.Values {
		if math.IsNaN(v) {
			continue
		}
		if math.IsNaN(hi) || v > hi {
			hi = v
		}
	}
	return hi
}

// Min returns the smallest finite value, or NaN if there is none.
func (d *DensitySurface) Min() float64 {
	lo := math.NaN()
	for _, v := range d.Values {
		if math.IsNaN(v) {
			continue
		}
		if math.IsNaN(lo) || v < lo {
			lo = v
		}
	}
	return lo
}

// Density estimates the intensity of the legal points of p with an isotropic
// Gaussian kernel of standard deviation sigma. Larger sigma spreads each
// point's mass further, lowering peaks and widening hotspots.
func Density(p *Pattern, sigma float64, opts DensityOptions) (*DensitySurface, error) {
	if !(sigma > 0) || math.IsInf(sigma, 0) {
		return nil, fmt.Errorf("density: sigma must be positive, got %g", sigma)
	}
	dim := opts.Dimension
	if dim <= 0 {
		dim = DefaultDimension
	}

	w := p.Window()
	b := w.Bound()
	width, height := b.Max[0]-b.Min[0], b.Max[1]-b.Min[1]
	cell := math.Max(width, height) / float64(dim)
	s := &DensitySurface{
		Sigma:    sigma,
		NX:       max(1, int(math.Ceil(width/cell))),
		NY:       max(1, int(math.Ceil(height/cell))),
		Origin:   b.Min,
		CellSize: cell,
	}
	s.Values = make([]float64, s.NX*s.NY)

	inside := make([]bool, len(s.Values))
	for iy := 0; iy < s.NY; iy++ {
		for ix := 0; ix < s.NX; ix++ {
			inside[iy*s.NX+ix] = w.Contains(s.CellCenter(ix, iy))
		}
	}

	kernel := distuv.Normal{Mu: 0, Sigma: sigma}
	reach := kernelCutoff * sigma
	for _, pt := range p.InsidePoints() {
		ix0 := max(0, int(math.Floor((pt[0]-reach-b.Min[0])/cell)))
		ix1 := min(s.NX-1, int(math.Floor((pt[0]+reach-b.Min[0])/cell)))
		iy0 := max(0, int(math.Floor((pt[1]-reach-b.Min[1])/cell)))
		iy1 := min(s.NY-1, int(math.Floor((pt[1]+reach-b.Min[1])/cell)))
		for iy := iy0; iy <= iy1; iy++ {
			for ix := ix0; ix <= ix1; ix++ {
				c := s.CellCenter(ix, iy)
				dx, dy := c[0]-pt[0], c[1]-pt[1]
				if math.Abs(dx) > reach || math.Abs(dy) > reach {
					continue
				}
				s.Values[iy*s.NX+ix] += kernel.Prob(dx) * kernel.Prob(dy)
			}
		}
	}

	if opts.EdgeCorrect {
		edgeCorrect(s, inside, kernel, reach)
	}

	for i, in := range inside {
		if !in {
			s.Values[i] = math.NaN()
		}
	}
	return s, nil
}

// edgeCorrect divides each cell by the approximate kernel mass that falls
// inside the window when the kernel is centred on that cell (Diggle 1985).
func edgeCorrect(s *DensitySurface, inside []bool, kernel distuv.Normal, reach float64) {
	k := int(math.Ceil(reach / s.CellSize))
	weights := make([]float64, k+1)
	for d := range weights {
		weights[d] = kernel.Prob(float64(d) * s.CellSize)
	}
	area := s.CellSize * s.CellSize

	for iy := 0; iy < s.NY; iy++ {
		for ix := 0; ix < s.NX; ix++ {
			idx := iy*s.NX + ix
			if !inside[idx] {
				continue
			}
			var mass float64
			for jy := max(0, iy-k); jy <= min(s.NY-1, iy+k); jy++ {
				wy := weights[abs(jy-iy)]
				for jx := max(0, ix-k); jx <= min(s.NX-1, ix+k); jx++ {
					if inside[jy*s.NX+jx] {
						mass += wy * weights[abs(jx-ix)]
					}
				}
			}
			mass *= area
			if mass > 0 {
				s.Values[idx] /= math.Min(mass, 1)
			}
		}
	}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

// DensitySweep computes one surface per bandwidth, in order. Cancelling
// ctx stops the sweep between bandwidths.
func DensitySweep(ctx context.Context, p *Pattern, sigmas []float64, opts DensityOptions) ([]*DensitySurface, error) {
	out := make([]*DensitySurface, 0, len(sigmas))
	for _, sigma := range sigmas {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		s, err := Density(p, sigma, opts)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}
