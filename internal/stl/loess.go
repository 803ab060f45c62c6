package stl

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// fitter holds scratch space for local regressions so repeated fits do not
// allocate.
type fitter struct {
	x, y, w []float64
}

// estimate fits a local regression of degree deg to y over positions
// nleft..nright (1-based) and evaluates it at xs. Neighbours get tricube
// weights scaled by rw when rw is non-nil. It reports false when every
// weight is zero.
func (f *fitter) estimate(y []float64, span int, deg Degree, xs float64, nleft, nright int, rw []float64) (float64, bool) {
	n := len(y)
	h := math.Max(xs-float64(nleft), float64(nright)-xs)
	if span > n {
		h += float64((span - n) / 2)
	}
	h9, h1 := 0.999*h, 0.001*h

	f.x, f.y, f.w = f.x[:0], f.y[:0], f.w[:0]
	var total float64
	for j := nleft; j <= nright; j++ {
		r := math.Abs(float64(j) - xs)
		if r > h9 {
			continue
		}
		wj := 1.0
		if r > h1 {
			q := r / h
			q = 1 - q*q*q
			wj = q * q * q
		}
		if rw != nil {
			wj *= rw[j-1]
		}
		if wj <= 0 {
			continue
		}
		f.x = append(f.x, float64(j))
		f.y = append(f.y, y[j-1])
		f.w = append(f.w, wj)
		total += wj
	}
	if total <= 0 {
		return 0, false
	}

	if deg == Linear && h > 0 && len(f.x) > 1 {
		// Rescale so the weights sum to the number of points; gonum's
		// weighted variance divides by sum(w)-1.
		scale := float64(len(f.w)) / total
		for i := range f.w {
			f.w[i] *= scale
		}
		_, v := stat.PopMeanVariance(f.x, f.w)
		if math.Sqrt(v) > 0.001*float64(n-1) {
			alpha, beta := stat.LinearRegression(f.x, f.y, f.w, false)
			return alpha + beta*xs, true
		}
	}
	return stat.Mean(f.y, f.w), true
}

// smooth evaluates the loess fit of y with the given span at every position,
// writing into out. Positions with no usable neighbours keep their input
// value.
func (f *fitter) smooth(y []float64, span int, deg Degree, rw []float64, out []float64) {
	n := len(y)
	if n < 2 {
		copy(out, y)
		return
	}
	if span >= n {
		for i := 1; i <= n; i++ {
			v, ok := f.estimate(y, span, deg, float64(i), 1, n, rw)
			if !ok {
				v = y[i-1]
			}
			out[i-1] = v
		}
		return
	}
	half := (span + 1) / 2
	nleft, nright := 1, span
	for i := 1; i <= n; i++ {
		if i > half && nright != n {
			nleft++
			nright++
		}
		v, ok := f.estimate(y, span, deg, float64(i), nleft, nright, rw)
		if !ok {
			v = y[i-1]
		}
		out[i-1] = v
	}
}

// movingAverage writes the length-span running means of x into out, which
// must have room for len(x)-span+1 values.
func movingAverage(x []float64, span int, out []float64) {
	m := len(x) - span + 1
	if m <= 0 {
		return
	}
	var v float64
	for i := 0; i < span; i++ {
		v += x[i]
	}
	fl := float64(span)
	out[0] = v / fl
	for j := 1; j < m; j++ {
		v += x[j+span-1] - x[j-1]
		out[j] = v / fl
	}
}
