package series

import (
	"fmt"
	"math"
	"strings"

	"gonum.org/v1/gonum/stat"
)

// ACFPoint is the autocorrelation at one lag. Valid is false when fewer
// than two complete pairs exist at that lag or the series has no variance.
type ACFPoint struct {
	Lag   int     `json:"lag"`
	Value float64 `json:"value"`
	Pairs int     `json:"pairs"`
	Valid bool    `json:"valid"`
}

// ACF estimates the autocorrelation of s for lags 1..maxLag with the usual
// estimator: lag-k autocovariance about the overall mean, divided by the
// overall variance, both normalised by the number of observed values. Pairs
// with a missing value are skipped.
func ACF(s *Series, maxLag int) ([]ACFPoint, error) {
	if maxLag < 1 {
		return nil, fmt.Errorf("max lag must be at least 1, got %d", maxLag)
	}
	x := s.Values
	n := 0
	var sum float64
	for _, v := range x {
		if !math.IsNaN(v) {
			n++
			sum += v
		}
	}
	out := make([]ACFPoint, maxLag)
	for k := range out {
		out[k].Lag = k + 1
		out[k].Value = math.NaN()
	}
	if n == 0 {
		return out, nil
	}
	mean := sum / float64(n)
	var c0 float64
	for _, v := range x {
		if !math.IsNaN(v) {
			d := v - mean
			c0 += d * d
		}
	}
	c0 /= float64(n)

	for k := 1; k <= maxLag; k++ {
		var ck float64
		pairs := 0
		for t := 0; t+k < len(x); t++ {
			a, b := x[t], x[t+k]
			if math.IsNaN(a) || math.IsNaN(b) {
				continue
			}
			ck += (a - mean) * (b - mean)
			pairs++
		}
		p := &out[k-1]
		p.Pairs = pairs
		if pairs < 2 || c0 == 0 {
			continue
		}
		p.Value = (ck / float64(n)) / c0
		p.Valid = true
	}
	return out, nil
}

// ACFPearson computes, for each lag, the Pearson correlation between the
// series and its lagged copy over complete pairs. Unlike ACF it uses the
// means and variances of each overlapping segment.
func ACFPearson(s *Series, maxLag int) ([]ACFPoint, error) {
	if maxLag < 1 {
		return nil, fmt.Errorf("max lag must be at least 1, got %d", maxLag)
	}
	x := s.Values
	out := make([]ACFPoint, maxLag)
	for k := 1; k <= maxLag; k++ {
		var a, b []float64
		for t := 0; t+k < len(x); t++ {
			if math.IsNaN(x[t]) || math.IsNaN(x[t+k]) {
				continue
			}
			a = append(a, x[t])
			b = append(b, x[t+k])
		}
		p := ACFPoint{Lag: k, Value: math.NaN(), Pairs: len(a)}
		if len(a) >= 2 {
			if r := stat.Correlation(a, b, nil); !math.IsNaN(r) {
				p.Value = r
				p.Valid = true
			}
		}
		out[k-1] = p
	}
	return out, nil
}

// Estimator selects the autocorrelation estimator.
type Estimator string

const (
	// EstimatorStandard is ACF.
	EstimatorStandard Estimator = "standard"
	// EstimatorPearson is ACFPearson.
	EstimatorPearson Estimator = "pearson"
)

// ParseEstimator accepts "standard" (the default for an empty name) and
// "pearson".
func ParseEstimator(s string) (Estimator, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "standard":
		return EstimatorStandard, nil
	case "pearson":
		return EstimatorPearson, nil
	}
	return "", fmt.Errorf("unknown ACF estimator %q", s)
}

// Estimate runs the selected estimator.
func (e Estimator) Estimate(s *Series, maxLag int) ([]ACFPoint, error) {
	if e == EstimatorPearson {
		return ACFPearson(s, maxLag)
	}
	return ACF(s, maxLag)
}

// ConfidenceBound is the approximate 95% bound for the autocorrelation of
// white noise of length n.
func ConfidenceBound(n int) float64 {
	if n <= 0 {
		return math.NaN()
	}
	return 1.96 / math.Sqrt(float64(n))
}
