package series

import (
	"fmt"
	"math"
	"strings"

	"github.com/montanaflynn/stats"
)

// Reducer collapses the values of one bucket or window to a single number.
type Reducer string

const (
	Mean   Reducer = "mean"
	Sum    Reducer = "sum"
	Min    Reducer = "min"
	Max    Reducer = "max"
	Median Reducer = "median"
	Count  Reducer = "count"
)

// ParseReducer accepts the reducer names, plus "avg" and "average" for Mean.
func ParseReducer(s string) (Reducer, error) {
	switch r := Reducer(strings.ToLower(strings.TrimSpace(s))); r {
	case Mean, Sum, Min, Max, Median, Count:
		return r, nil
	case "avg", "average":
		return Mean, nil
	}
	return "", fmt.Errorf("unknown reducer %q", s)
}

// Reduce applies r to the non-missing values in vals. With no values left
// the result is NaN, except Count which returns 0.
func (r Reducer) Reduce(vals []float64) float64 {
	var (
		n   int
		sum float64
		lo  = math.Inf(1)
		hi  = math.Inf(-1)
	)
	for _, v := range vals {
		if math.IsNaN(v) {
			continue
		}
		n++
		sum += v
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	if r == Count {
		return float64(n)
	}
	if n == 0 {
		return math.NaN()
	}
	switch r {
	case Mean:
		return sum / float64(n)
	case Sum:
		return sum
	case Min:
		return lo
	case Max:
		return hi
	case Median:
		finite := make(stats.Float64Data, 0, n)
		for _, v := range vals {
			if !math.IsNaN(v) {
				finite = append(finite, v)
			}
		}
		m, err := stats.Median(finite)
		if err != nil {
			return math.NaN()
		}
		return m
	}
	return math.NaN()
}

func (r Reducer) valid() bool {
	switch r {
	case Mean, Sum, Min, Max, Median, Count:
		return true
	}
	return false
}
