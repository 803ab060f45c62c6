package render

import (
	"github.com/banshee-data/pattern.report/internal/ppp"
	"github.com/banshee-data/pattern.report/internal/series"
)

// DensityMap draws a density surface. When pat is non-nil its window
// outline, legal points and illegal points (red crosses) are overlaid.
func (r *Renderer) DensityMap(name string, s *ppp.DensitySurface, pat *ppp.Pattern) (string, error) {
	if r.Mode == Interactive {
		return r.interactiveDensity(name, s, pat)
	}
	return r.staticDensity(name, s, pat)
}

// Envelope draws an observed distance function against its CSR value and
// simulation envelope.
func (r *Renderer) Envelope(name string, c *ppp.Curve) (string, error) {
	if r.Mode == Interactive {
		return r.interactiveEnvelope(name, c)
	}
	return r.staticEnvelope(name, c)
}

// SeriesLines draws one or more time series on a shared time axis.
func (r *Renderer) SeriesLines(name, title string, ss ...*series.Series) (string, error) {
	if r.Mode == Interactive {
		return r.interactiveSeries(name, title, ss)
	}
	return r.staticSeries(name, title, ss)
}

// Seasonal draws one line per year against cycle position.
func (r *Renderer) Seasonal(name, title string, lines []series.SeasonalLine, xLabel string) (string, error) {
	if r.Mode == Interactive {
		return r.interactiveSeasonal(name, title, lines, xLabel)
	}
	return r.staticSeasonal(name, title, lines, xLabel)
}

// ACF draws autocorrelation bars with horizontal lines at ±bound. A
// non-positive bound omits the lines.
func (r *Renderer) ACF(name, title string, acf []series.ACFPoint, bound float64) (string, error) {
	if r.Mode == Interactive {
		return r.interactiveACF(name, title, acf, bound)
	}
	return r.staticACF(name, title, acf, bound)
}

// Decomposition draws observed, seasonal, trend and remainder panels.
func (r *Renderer) Decomposition(name string, d *series.Decomposition) (string, error) {
	if r.Mode == Interactive {
		return r.interactiveDecomposition(name, d)
	}
	return r.staticDecomposition(name, d)
}
