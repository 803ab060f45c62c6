package ppp

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/banshee-data/pattern.report/internal/monitoring"
)

var (
	// ErrInvalidEnvelope is returned for envelope options that cannot
	// produce bounds.
	ErrInvalidEnvelope = errors.New("invalid envelope request")
	// ErrEmptyPattern is returned when a pattern has no legal points.
	ErrEmptyPattern = errors.New("pattern has no points inside the window")
)

// EnvelopeOptions configures a Monte Carlo envelope.
type EnvelopeOptions struct {
	Function   Function
	R          []float64 // strictly increasing, >= 0
	NSim       int
	NRank      int
	Seed       uint64
	Correction Correction
	Workers    int // simulations run concurrently; <= 1 runs them inline
}

// Curve holds a distance function and its CSR envelope, all indexed by R.
type Curve struct {
	Function    Function
	Correction  Correction
	NSim        int
	NRank       int
	R           []float64
	Observed    []float64
	Theoretical []float64
	Lo          []float64
	Hi          []float64
}

func (o EnvelopeOptions) validate() error {
	switch o.Function {
	case FunctionG, FunctionK, FunctionL:
	default:
		return fmt.Errorf("%w: unknown function %q", ErrInvalidEnvelope, o.Function)
	}
	switch o.Correction {
	case CorrectionNone, CorrectionBorder:
	default:
		return fmt.Errorf("%w: unknown correction %q", ErrInvalidEnvelope, o.Correction)
	}
	if o.NRank < 1 {
		return fmt.Errorf("%w: nrank %d < 1", ErrInvalidEnvelope, o.NRank)
	}
	if 2*o.NRank > o.NSim {
		return fmt.Errorf("%w: 2*nrank (%d) exceeds nsim (%d)", ErrInvalidEnvelope, 2*o.NRank, o.NSim)
	}
	if len(o.R) == 0 {
		return fmt.Errorf("%w: no r values", ErrInvalidEnvelope)
	}
	for i, r := range o.R {
		if math.IsNaN(r) || math.IsInf(r, 0) || r < 0 {
			return fmt.Errorf("%w: r[%d] = %g", ErrInvalidEnvelope, i, r)
		}
		if i > 0 && r <= o.R[i-1] {
			return fmt.Errorf("%w: r must be strictly increasing (r[%d] = %g after %g)", ErrInvalidEnvelope, i, r, o.R[i-1])
		}
	}
	return nil
}

// Envelope computes the observed distance function for p together with
// pointwise bounds from NSim CSR simulations with the same number of legal
// points in the same window. At each r the lower bound is the NRank-th
// smallest and the upper bound the NRank-th largest finite simulated value;
// when fewer than NRank finite values exist the bound is NaN.
//
// Simulation i draws from a generator seeded with (Seed, i) and results are
// stored by index, so output does not depend on Workers.
func Envelope(ctx context.Context, p *Pattern, opts EnvelopeOptions) (*Curve, error) {
	if opts.Correction == "" {
		opts.Correction = CorrectionBorder
	}
	if err := opts.validate(); err != nil {
		return nil, err
	}
	n := p.Inside()
	if n == 0 {
		return nil, fmt.Errorf("%w: %w", ErrInvalidEnvelope, ErrEmptyPattern)
	}

	w := p.Window()
	observed := newPointSet(p.InsidePoints(), w, opts.Correction).evaluate(opts.Function, opts.R, opts.Correction)

	sims := make([][]float64, opts.NSim)
	simulate := func(i int) error {
		pts, err := SimulateCSR(w, n, seededSource(opts.Seed, i))
		if err != nil {
			return fmt.Errorf("simulation %d: %w", i, err)
		}
		sims[i] = newPointSet(pts, w, opts.Correction).evaluate(opts.Function, opts.R, opts.Correction)
		return nil
	}
	if err := runIndexed(ctx, opts.NSim, opts.Workers, simulate); err != nil {
		return nil, err
	}

	lambda := float64(n) / w.Area()
	c := &Curve{
		Function:    opts.Function,
		Correction:  opts.Correction,
		NSim:        opts.NSim,
		NRank:       opts.NRank,
		R:           append([]float64(nil), opts.R...),
		Observed:    observed,
		Theoretical: make([]float64, len(opts.R)),
		Lo:          make([]float64, len(opts.R)),
		Hi:          make([]float64, len(opts.R)),
	}
	column := make([]float64, opts.NSim)
	for j, r := range opts.R {
		c.Theoretical[j] = opts.Function.Theoretical(r, lambda)
		for i := range sims {
			column[i] = sims[i][j]
		}
		c.Lo[j], c.Hi[j] = RankBounds(column, opts.NRank)
	}
	monitoring.Logf("envelope %s: n=%d nsim=%d nrank=%d over %d r values", opts.Function, n, opts.NSim, opts.NRank, len(opts.R))
	return c, nil
}

// runIndexed calls fn for 0..n-1 on up to workers goroutines, stopping at the
// first error or when ctx is cancelled.
func runIndexed(ctx context.Context, n, workers int, fn func(int) error) error {
	if workers <= 1 {
		for i := 0; i < n; i++ {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := fn(i); err != nil {
				return err
			}
		}
		return nil
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	jobs := make(chan int)
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		firstErr error
	)
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				if err := fn(i); err != nil {
					mu.Lock()
					if firstErr == nil {
						firstErr = err
					}
					mu.Unlock()
					cancel()
				}
			}
		}()
	}

feed:
	for i := 0; i < n; i++ {
		select {
		case jobs <- i:
		case <-ctx.Done():
			break feed
		}
	}
	close(jobs)
	wg.Wait()

	if firstErr != nil {
		return firstErr
	}
	return ctx.Err()
}

// RankBounds returns the nrank-th smallest and nrank-th largest finite values.
// Either bound is NaN when fewer than nrank finite values are present.
func RankBounds(values []float64, nrank int) (lo, hi float64) {
	finite := make([]float64, 0, len(values))
	for _, v := range values {
		if !math.IsNaN(v) && !math.IsInf(v, 0) {
			finite = append(finite, v)
		}
	}
	if nrank < 1 || len(finite) < nrank {
		return math.NaN(), math.NaN()
	}
	sort.Float64s(finite)
	return finite[nrank-1], finite[len(finite)-nrank]
}

// DefaultR returns n evenly spaced distances from 0 to a quarter of the
// shorter side of the window's bounding box.
func DefaultR(p *Pattern, n int) []float64 {
	if n < 2 {
		n = 2
	}
	b := p.Window().Bound()
	rmax := math.Min(b.Max[0]-b.Min[0], b.Max[1]-b.Min[1]) / 4
	r := make([]float64, n)
	for i := range r {
		r[i] = rmax * float64(i) / float64(n-1)
	}
	return r
}

// Excursions returns the r values at which the observed curve lies outside
// the envelope.
func (c *Curve) Excursions() []float64 {
	var out []float64
	for j, r := range c.R {
		obs := c.Observed[j]
		if math.IsNaN(obs) || math.IsNaN(c.Lo[j]) || math.IsNaN(c.Hi[j]) {
			continue
		}
		if obs < c.Lo[j] || obs > c.Hi[j] {
			out = append(out, r)
		}
	}
	return out
}
