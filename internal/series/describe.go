package series

import (
	"math"

	"github.com/montanaflynn/stats"
)

// Summary holds descriptive statistics of the non-missing values.
type Summary struct {
	Count   int     `json:"count"`
	Missing int     `json:"missing"`
	Mean    float64 `json:"mean"`
	StdDev  float64 `json:"std_dev"`
	Min     float64 `json:"min"`
	Q1      float64 `json:"q1"`
	Median  float64 `json:"median"`
	Q3      float64 `json:"q3"`
	Max     float64 `json:"max"`
}

// Describe summarises s. Statistics of a series with no observed values
// are NaN.
func Describe(s *Series) Summary {
	data := make(stats.Float64Data, 0, s.Len())
	for _, v := range s.Values {
		if !math.IsNaN(v) {
			data = append(data, v)
		}
	}
	sum := Summary{
		Count:   len(data),
		Missing: s.Len() - len(data),
		Mean:    math.NaN(),
		StdDev:  math.NaN(),
		Min:     math.NaN(),
		Q1:      math.NaN(),
		Median:  math.NaN(),
		Q3:      math.NaN(),
		Max:     math.NaN(),
	}
	if len(data) == 0 {
		return sum
	}
	sum.Mean, _ = data.Mean()
	sum.Min, _ = data.Min()
	sum.Max, _ = data.Max()
	sum.Median, _ = data.Median()
	if len(data) > 1 {
		sum.StdDev, _ = data.StandardDeviationSample()
	}
	if len(data) >= 4 {
		if q, err := stats.Quartile(data); err == nil {
			sum.Q1, sum.Q3 = q.Q1, q.Q3
		}
	}
	return sum
}
