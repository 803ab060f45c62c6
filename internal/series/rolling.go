package series

import "fmt"

// Rolling applies r over a positional window of before rows preceding and
// after rows following each row. Windows shrink at the ends of the series;
// missing values inside a window are skipped. The output has the input's
// index and length.
func Rolling(s *Series, before, after int, r Reducer) (*Series, error) {
	if before < 0 || after < 0 {
		return nil, fmt.Errorf("rolling window counts must be non-negative (before=%d, after=%d)", before, after)
	}
	if !r.valid() {
		return nil, fmt.Errorf("unknown reducer %q", r)
	}
	n := s.Len()
	out := make([]float64, n)
	for i := 0; i < n; i++ {
		lo := max(0, i-before)
		hi := min(n, i+after+1)
		out[i] = r.Reduce(s.Values[lo:hi])
	}
	res := s.withValues(out)
	res.Name = fmt.Sprintf("%s rolling %s (-%d/+%d)", s.Name, r, before, after)
	return res, nil
}
