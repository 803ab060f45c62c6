// Package series loads date-indexed tables and runs the time-series side of
// the analysis: calendar aggregation, range filtering, rolling windows,
// autocorrelation, seasonal profiles and decomposition.
package series

import (
	"fmt"
	"math"
	"sort"
	"time"
)

// DuplicateIndexError reports two rows of one series sharing a timestamp.
type DuplicateIndexError struct {
	Series string
	Time   time.Time
}

func (e *DuplicateIndexError) Error() string {
	return fmt.Sprintf("series %q: duplicate index value %s", e.Series, e.Time.Format(time.DateOnly))
}

// Series is a strictly increasing time index with one value per entry.
// Missing values are NaN.
type Series struct {
	Name   string
	Index  []time.Time
	Values []float64
}

// NewSeries sorts the rows by time and rejects duplicate timestamps. The
// input slices are not modified.
func NewSeries(name string, index []time.Time, values []float64) (*Series, error) {
	if len(index) != len(values) {
		return nil, fmt.Errorf("series %q: index length %d does not match values length %d", name, len(index), len(values))
	}
	order := make([]int, len(index))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool { return index[order[a]].Before(index[order[b]]) })

	s := &Series{
		Name:   name,
		Index:  make([]time.Time, len(index)),
		Values: make([]float64, len(values)),
	}
	for i, j := range order {
		s.Index[i] = index[j]
		s.Values[i] = values[j]
		if i > 0 && s.Index[i].Equal(s.Index[i-1]) {
			return nil, &DuplicateIndexError{Series: name, Time: s.Index[i]}
		}
	}
	return s, nil
}

// Len is the number of rows.
func (s *Series) Len() int { return len(s.Index) }

// Observed counts the non-missing values.
func (s *Series) Observed() int {
	n := 0
	for _, v := range s.Values {
		if !math.IsNaN(v) {
			n++
		}
	}
	return n
}

// withValues returns a series sharing s's name and a copy of its index.
func (s *Series) withValues(values []float64) *Series {
	return &Series{
		Name:   s.Name,
		Index:  append([]time.Time(nil), s.Index...),
		Values: values,
	}
}

// slice returns rows [i, j) as a new series.
func (s *Series) slice(i, j int) *Series {
	return &Series{
		Name:   s.Name,
		Index:  append([]time.Time(nil), s.Index[i:j]...),
		Values: append([]float64(nil), s.Values[i:j]...),
	}
}
