package ppp

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/paulmach/orb"
	"gonum.org/v1/gonum/spatial/kdtree"
)

// Function selects a distance function.
type Function string

const (
	// FunctionG is the nearest-neighbour distance distribution.
	FunctionG Function = "G"
	// FunctionK is Ripley's K.
	FunctionK Function = "K"
	// FunctionL is the variance-stabilised K, sqrt(K/pi).
	FunctionL Function = "L"
)

// ParseFunction accepts "G", "K" or "L" in either case.
func ParseFunction(s string) (Function, error) {
	switch f := Function(strings.ToUpper(strings.TrimSpace(s))); f {
	case FunctionG, FunctionK, FunctionL:
		return f, nil
	}
	return "", fmt.Errorf("unknown distance function %q", s)
}

// DefaultNSim is the default number of envelope simulations. L and K
// consider every pair within the largest r, so they default to fewer.
func (f Function) DefaultNSim() int {
	if f == FunctionG {
		return 100
	}
	return 39
}

// Theoretical is the function's value at r under CSR with intensity lambda.
func (f Function) Theoretical(r, lambda float64) float64 {
	switch f {
	case FunctionG:
		return 1 - math.Exp(-lambda*math.Pi*r*r)
	case FunctionK:
		return math.Pi * r * r
	case FunctionL:
		return r
	}
	return math.NaN()
}

// Correction selects an edge correction.
type Correction string

const (
	// CorrectionNone uses every point as a reference point.
	CorrectionNone Correction = "none"
	// CorrectionBorder uses only points at least r from the window edge as
	// reference points at distance r.
	CorrectionBorder Correction = "border"
)

// ParseCorrection accepts "none" or "border"; empty means border.
func ParseCorrection(s string) (Correction, error) {
	switch c := Correction(strings.ToLower(strings.TrimSpace(s))); c {
	case "":
		return CorrectionBorder, nil
	case CorrectionNone, CorrectionBorder:
		return c, nil
	}
	return "", fmt.Errorf("unknown edge correction %q", s)
}

// pointSet is the per-realisation state shared by the distance functions.
type pointSet struct {
	pts    []orb.Point
	window *Window
	tree   *kdtree.Tree
	bdist  []float64 // distance to the window boundary, per point
}

func newPointSet(pts []orb.Point, w *Window, corr Correction) *pointSet {
	s := &pointSet{pts: pts, window: w}
	if len(pts) > 0 {
		kp := make(kdtree.Points, len(pts))
		for i, p := range pts {
			kp[i] = kdtree.Point{p[0], p[1]}
		}
		s.tree = kdtree.New(kp, false)
	}
	if corr == CorrectionBorder {
		s.bdist = make([]float64, len(pts))
		for i, p := range pts {
			s.bdist[i] = w.BoundaryDistance(p)
		}
	}
	return s
}

// nearestNeighbour returns each point's distance to its nearest other point.
func (s *pointSet) nearestNeighbour() []float64 {
	d := make([]float64, len(s.pts))
	if len(s.pts) < 2 {
		for i := range d {
			d[i] = math.Inf(1)
		}
		return d
	}
	for i, p := range s.pts {
		// The two closest entries are the point itself and its neighbour.
		k := kdtree.NewNKeeper(2)
		s.tree.NearestSet(k, kdtree.Point{p[0], p[1]})
		far := 0.0
		for _, c := range k.Heap {
			if c.Comparable != nil && c.Dist > far {
				far = c.Dist
			}
		}
		d[i] = math.Sqrt(far)
	}
	return d
}

// pairDistances returns, per point, the sorted distances to every other point
// within rmax.
func (s *pointSet) pairDistances(rmax float64) [][]float64 {
	out := make([][]float64, len(s.pts))
	if s.tree == nil {
		return out
	}
	for i, p := range s.pts {
		k := kdtree.NewDistKeeper(rmax * rmax)
		s.tree.NearestSet(k, kdtree.Point{p[0], p[1]})
		ds := make([]float64, 0, len(k.Heap))
		for _, c := range k.Heap {
			if c.Comparable == nil {
				continue
			}
			ds = append(ds, math.Sqrt(c.Dist))
		}
		sort.Float64s(ds)
		// drop the zero distance to the point itself
		if len(ds) > 0 {
			ds = ds[1:]
		}
		out[i] = ds
	}
	return out
}

// evaluate computes fn at each r for the point set.
func (s *pointSet) evaluate(fn Function, r []float64, corr Correction) []float64 {
	switch fn {
	case FunctionG:
		return s.g(r, corr)
	case FunctionK:
		return s.k(r, corr)
	case FunctionL:
		k := s.k(r, corr)
		for i, v := range k {
			k[i] = math.Sqrt(v / math.Pi)
		}
		return k
	}
	return nil
}

func (s *pointSet) g(r []float64, corr Correction) []float64 {
	nn := s.nearestNeighbour()
	out := make([]float64, len(r))
	for j, rj := range r {
		var num, den int
		for i, d := range nn {
			if corr == CorrectionBorder && s.bdist[i] < rj {
				continue
			}
			den++
			if d <= rj {
				num++
			}
		}
		if den == 0 {
			out[j] = math.NaN()
			continue
		}
		out[j] = float64(num) / float64(den)
	}
	return out
}

func (s *pointSet) k(r []float64, corr Correction) []float64 {
	out := make([]float64, len(r))
	n := len(s.pts)
	if n < 2 || len(r) == 0 {
		for j := range out {
			out[j] = math.NaN()
		}
		return out
	}
	area := s.window.Area()
	pairs := s.pairDistances(r[len(r)-1])
	for j, rj := range r {
		var count float64
		refs := 0
		for i, ds := range pairs {
			if corr == CorrectionBorder && s.bdist[i] < rj {
				continue
			}
			refs++
			count += float64(sort.Search(len(ds), func(k int) bool { return ds[k] > rj }))
		}
		if refs == 0 {
			out[j] = math.NaN()
			continue
		}
		// mean neighbours within r per reference point, over (n-1)/A
		out[j] = count / float64(refs) * area / float64(n-1)
	}
	return out
}

// GFunction evaluates the nearest-neighbour distance distribution of the
// legal points at each r.
func GFunction(p *Pattern, r []float64, corr Correction) []float64 {
	return newPointSet(p.InsidePoints(), p.Window(), corr).evaluate(FunctionG, r, corr)
}

// KFunction evaluates Ripley's K for the legal points at each r. r must be
// sorted ascending.
func KFunction(p *Pattern, r []float64, corr Correction) []float64 {
	return newPointSet(p.InsidePoints(), p.Window(), corr).evaluate(FunctionK, r, corr)
}

// LFunction evaluates sqrt(K/pi) for the legal points at each r. r must be
// sorted ascending.
func LFunction(p *Pattern, r []float64, corr Correction) []float64 {
	return newPointSet(p.InsidePoints(), p.Window(), corr).evaluate(FunctionL, r, corr)
}
