package series

import (
	"time"

	"github.com/banshee-data/pattern.report/internal/stl"
)

// Decomposition is an STL result aligned to the series index.
type Decomposition struct {
	Index     []time.Time
	Observed  []float64
	Seasonal  []float64
	Trend     []float64
	Remainder []float64
	Options   stl.Options
}

// Decompose runs STL on s. The series must be regular (see
// AggregateOptions.FillGaps); missing values are interpolated for fitting.
func Decompose(s *Series, opts stl.Options) (*Decomposition, error) {
	res, err := stl.Decompose(s.Values, opts)
	if err != nil {
		return nil, err
	}
	return &Decomposition{
		Index:     append([]time.Time(nil), s.Index...),
		Observed:  append([]float64(nil), s.Values...),
		Seasonal:  res.Seasonal,
		Trend:     res.Trend,
		Remainder: res.Remainder,
		Options:   res.Options,
	}, nil
}
