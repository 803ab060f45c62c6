// Package stl implements Seasonal-Trend decomposition by Loess (Cleveland,
// Cleveland, McRae and Terpenning, 1990). A series is split into seasonal,
// trend and remainder components that add back to the input.
package stl

import (
	"errors"
	"fmt"
	"math"

	"github.com/montanaflynn/stats"
)

// ErrInsufficientData is wrapped by *InsufficientDataError.
var ErrInsufficientData = errors.New("insufficient data for decomposition")

// InsufficientDataError reports a series too short for its period.
type InsufficientDataError struct {
	N      int
	Period int
}

func (e *InsufficientDataError) Error() string {
	if e.Period < 2 {
		return fmt.Sprintf("stl: period %d must be at least 2", e.Period)
	}
	return fmt.Sprintf("stl: %d observations is fewer than two periods of %d", e.N, e.Period)
}

func (e *InsufficientDataError) Unwrap() error { return ErrInsufficientData }

// Degree is the degree of a local regression.
type Degree int

const (
	// DegreeDefault picks the component's usual degree.
	DegreeDefault Degree = iota
	// Constant fits locally constant (weighted mean) curves.
	Constant
	// Linear fits locally linear curves.
	Linear
)

// DefaultSeasonalWindow is used when Options.SeasonalWindow is zero and the
// decomposition is not periodic.
const DefaultSeasonalWindow = 7

// Options control the decomposition. Zero values select the defaults of
// Cleveland et al.
type Options struct {
	Period         int  // observations per cycle, >= 2
	Periodic       bool // force an identical seasonal pattern in every cycle
	SeasonalWindow int  // odd, >= 3; ignored when Periodic
	SeasonalDegree Degree
	TrendWindow    int
	TrendDegree    Degree
	LowPassWindow  int
	LowPassDegree  Degree
	Inner          int
	Outer          int
	Robust         bool
}

// Result holds the components. Remainder is Observed - Seasonal - Trend, and
// is NaN where the input was missing.
type Result struct {
	Seasonal  []float64
	Trend     []float64
	Remainder []float64
	Weights   []float64 // robustness weights, all 1 without outer iterations
	Options   Options   // effective options after defaults
}

func nextOdd(x int) int {
	if x%2 == 0 {
		return x + 1
	}
	return x
}

// resolve fills in defaults for a series of length n.
func (o Options) resolve(n int) Options {
	if o.Periodic {
		o.SeasonalWindow = 10*n + 1
		o.SeasonalDegree = Constant
	}
	if o.SeasonalWindow <= 0 {
		o.SeasonalWindow = DefaultSeasonalWindow
	}
	o.SeasonalWindow = nextOdd(max(3, o.SeasonalWindow))
	if o.SeasonalDegree == DegreeDefault {
		o.SeasonalDegree = Constant
	}
	if o.TrendWindow <= 0 {
		sw := float64(o.SeasonalWindow)
		o.TrendWindow = int(math.Ceil(1.5 * float64(o.Period) / (1 - 1.5/sw)))
	}
	o.TrendWindow = nextOdd(max(3, o.TrendWindow))
	if o.TrendDegree == DegreeDefault {
		o.TrendDegree = Linear
	}
	if o.LowPassWindow <= 0 {
		o.LowPassWindow = o.Period
	}
	o.LowPassWindow = nextOdd(max(3, o.LowPassWindow))
	if o.LowPassDegree == DegreeDefault {
		o.LowPassDegree = o.TrendDegree
	}
	if o.Inner <= 0 {
		o.Inner = 2
		if o.Robust {
			o.Inner = 1
		}
	}
	if o.Outer <= 0 && o.Robust {
		o.Outer = 15
	}
	return o
}

// Decompose splits values into seasonal, trend and remainder components.
// NaN values are linearly interpolated for fitting. Fewer than two full
// periods, or a period below 2, gives an *InsufficientDataError.
func Decompose(values []float64, opts Options) (*Result, error) {
	n := len(values)
	if opts.Period < 2 || n < 2*opts.Period {
		return nil, &InsufficientDataError{N: n, Period: opts.Period}
	}
	y, err := interpolate(values)
	if err != nil {
		return nil, err
	}
	opts = opts.resolve(n)

	d := newDecomposer(n, opts)
	d.run(y)

	res := &Result{
		Seasonal:  d.season,
		Trend:     d.trend,
		Remainder: make([]float64, n),
		Weights:   d.rw,
		Options:   opts,
	}
	if opts.Periodic {
		periodicMeans(res.Seasonal, opts.Period)
	}
	for i, v := range values {
		res.Remainder[i] = v - res.Seasonal[i] - res.Trend[i]
	}
	return res, nil
}

// periodicMeans replaces each value by the mean of all values at the same
// cycle position.
func periodicMeans(s []float64, period int) {
	sums := make([]float64, period)
	counts := make([]int, period)
	for i, v := range s {
		sums[i%period] += v
		counts[i%period]++
	}
	for i := range s {
		s[i] = sums[i%period] / float64(counts[i%period])
	}
}

// interpolate fills NaN gaps linearly; leading and trailing gaps take the
// nearest observed value.
func interpolate(values []float64) ([]float64, error) {
	y := append([]float64(nil), values...)
	prev := -1
	for i, v := range y {
		if math.IsNaN(v) {
			continue
		}
		switch {
		case prev < 0:
			for j := 0; j < i; j++ {
				y[j] = v
			}
		case i-prev > 1:
			step := (v - y[prev]) / float64(i-prev)
			for j := prev + 1; j < i; j++ {
				y[j] = y[prev] + step*float64(j-prev)
			}
		}
		prev = i
	}
	if prev < 0 {
		return nil, errors.New("stl: series has no observed values")
	}
	for j := prev + 1; j < len(y); j++ {
		y[j] = y[prev]
	}
	return y, nil
}

// decomposer carries the working arrays of one decomposition.
type decomposer struct {
	n      int
	opts   Options
	fit    fitter
	season []float64
	trend  []float64
	rw     []float64

	detrended []float64
	cycle     []float64 // n + 2*period: smoothed cycle-subseries, padded one period each side
	lowPass   []float64
	scratch   []float64
}

func newDecomposer(n int, opts Options) *decomposer {
	np := opts.Period
	return &decomposer{
		n:         n,
		opts:      opts,
		season:    make([]float64, n),
		trend:     make([]float64, n),
		detrended: make([]float64, n),
		cycle:     make([]float64, n+2*np),
		lowPass:   make([]float64, n),
		scratch:   make([]float64, n+2*np),
	}
}

func (d *decomposer) run(y []float64) {
	var rw []float64
	for k := 0; ; k++ {
		d.inner(y, rw)
		if k >= d.opts.Outer {
			break
		}
		rw = d.robustnessWeights(y)
	}
	if rw == nil {
		rw = make([]float64, d.n)
		for i := range rw {
			rw[i] = 1
		}
	}
	d.rw = rw
}

func (d *decomposer) inner(y, rw []float64) {
	np := d.opts.Period
	for it := 0; it < d.opts.Inner; it++ {
		for i := range y {
			d.detrended[i] = y[i] - d.trend[i]
		}
		d.smoothCycles(d.detrended, rw)
		d.lowPassFilter()
		for i := 0; i < d.n; i++ {
			d.season[i] = d.cycle[np+i] - d.lowPass[i]
			d.detrended[i] = y[i] - d.season[i]
		}
		d.fit.smooth(d.detrended, d.opts.TrendWindow, d.opts.TrendDegree, rw, d.trend)
	}
}

// smoothCycles smooths each cycle-subseries and extends it by one value at
// either end, writing the result into d.cycle.
func (d *decomposer) smoothCycles(y, rw []float64) {
	np := d.opts.Period
	ns := d.opts.SeasonalWindow
	deg := d.opts.SeasonalDegree

	maxK := (d.n-1)/np + 1
	sub := make([]float64, 0, maxK)
	smoothed := make([]float64, maxK)
	var subw []float64
	if rw != nil {
		subw = make([]float64, 0, maxK)
	}

	for j := 0; j < np; j++ {
		sub = sub[:0]
		if subw != nil {
			subw = subw[:0]
		}
		for i := j; i < d.n; i += np {
			sub = append(sub, y[i])
			if subw != nil {
				subw = append(subw, rw[i])
			}
		}
		k := len(sub)
		d.fit.smooth(sub, ns, deg, subw, smoothed[:k])

		left, ok := d.fit.estimate(sub, ns, deg, 0, 1, min(ns, k), subw)
		if !ok {
			left = smoothed[0]
		}
		right, ok := d.fit.estimate(sub, ns, deg, float64(k+1), max(1, k-ns+1), k, subw)
		if !ok {
			right = smoothed[k-1]
		}

		d.cycle[j] = left
		for m := 0; m < k; m++ {
			d.cycle[(m+1)*np+j] = smoothed[m]
		}
		d.cycle[(k+1)*np+j] = right
	}
}

// lowPassFilter applies moving averages of length period, period and 3 to
// the padded cycle series followed by a loess smooth, leaving n values in
// d.lowPass.
func (d *decomposer) lowPassFilter() {
	np := d.opts.Period
	total := d.n + 2*np
	first := d.scratch[:total-np+1]
	movingAverage(d.cycle[:total], np, first)
	second := make([]float64, d.n+2)
	movingAverage(first, np, second)
	third := d.detrended // free until the trend step
	movingAverage(second, 3, third)
	d.fit.smooth(third, d.opts.LowPassWindow, d.opts.LowPassDegree, nil, d.lowPass)
}

// robustnessWeights applies the bisquare function to residuals scaled by six
// times their median absolute value.
func (d *decomposer) robustnessWeights(y []float64) []float64 {
	resid := make(stats.Float64Data, d.n)
	for i := range y {
		resid[i] = math.Abs(y[i] - d.season[i] - d.trend[i])
	}
	med, err := stats.Median(resid)
	if err != nil {
		med = 0
	}
	cmad := 6 * med
	c9, c1 := 0.999*cmad, 0.001*cmad

	rw := make([]float64, d.n)
	for i, r := range resid {
		switch {
		case r <= c1:
			rw[i] = 1
		case r <= c9:
			q := r / cmad
			q = 1 - q*q
			rw[i] = q * q
		default:
			rw[i] = 0
		}
	}
	return rw
}
