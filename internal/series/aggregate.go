package series

import (
	"fmt"
	"time"
)

// AggregateOptions tunes Aggregate.
type AggregateOptions struct {
	// FillGaps inserts rows for empty buckets between the first and last
	// bucket so the output is regular. They hold NaN (0 for Count).
	FillGaps bool
}

// Aggregate reduces s to one row per calendar bucket that holds at least one
// input row. The output index is each bucket's start. Missing values are
// ignored; a bucket whose values are all missing yields NaN.
func Aggregate(s *Series, g Granularity, r Reducer, opts AggregateOptions) (*Series, error) {
	if !g.valid() {
		return nil, fmt.Errorf("%w: %q", ErrUnknownGranularity, g)
	}
	if !r.valid() {
		return nil, fmt.Errorf("unknown reducer %q", r)
	}

	out := &Series{Name: s.Name}
	emit := func(start time.Time, vals []float64) {
		out.Index = append(out.Index, start)
		out.Values = append(out.Values, r.Reduce(vals))
	}

	var (
		bucket time.Time
		vals   []float64
	)
	for i, t := range s.Index {
		b := g.Floor(t)
		if i > 0 && !b.Equal(bucket) {
			emit(bucket, vals)
			if opts.FillGaps {
				for gap := g.Next(bucket); gap.Before(b); gap = g.Next(gap) {
					emit(gap, nil)
				}
			}
			vals = vals[:0]
		}
		bucket = b
		vals = append(vals, s.Values[i])
	}
	if len(s.Index) > 0 {
		emit(bucket, vals)
	}
	return out, nil
}
