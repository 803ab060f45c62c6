package render

import (
	"bytes"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/pattern.report/internal/geo"
	"github.com/banshee-data/pattern.report/internal/ppp"
	"github.com/banshee-data/pattern.report/internal/series"
	"github.com/banshee-data/pattern.report/internal/stl"
)

var pngMagic = []byte("\x89PNG")

func testPattern(t *testing.T) *ppp.Pattern {
	t.Helper()
	w, err := ppp.RectWindow(orb.Bound{Min: orb.Point{0, 0}, Max: orb.Point{100, 100}}, geo.EPSG(32610))
	require.NoError(t, err)
	p, err := ppp.NewPattern(ppp.ObservationSet{
		CRS:    geo.EPSG(32610),
		Points: []orb.Point{{10, 10}, {20, 30}, {50, 50}, {52, 48}, {80, 20}, {150, 50}},
	}, w)
	require.NoError(t, err)
	return p
}

func testCurve() *ppp.Curve {
	r := []float64{0, 1, 2, 3, 4}
	return &ppp.Curve{
		Function:    ppp.FunctionG,
		Correction:  ppp.CorrectionBorder,
		NSim:        19,
		NRank:       1,
		R:           r,
		Observed:    []float64{0, 0.1, math.NaN(), 0.5, 0.8},
		Theoretical: []float64{0, 0.12, 0.3, 0.5, 0.7},
		Lo:          []float64{0, 0.05, 0.2, 0.4, 0.6},
		Hi:          []float64{0, 0.2, 0.4, 0.6, 0.85},
	}
}

func monthlySeries(t *testing.T, name string, n int) *series.Series {
	t.Helper()
	idx := make([]time.Time, n)
	vals := make([]float64, n)
	for i := range idx {
		idx[i] = time.Date(2000, time.Month(1+i), 1, 0, 0, 0, 0, time.UTC)
		vals[i] = 10 + math.Sin(2*math.Pi*float64(i)/12)
	}
	vals[3] = math.NaN()
	s, err := series.NewSeries(name, idx, vals)
	require.NoError(t, err)
	return s
}

func testDecomposition(t *testing.T) *series.Decomposition {
	s := monthlySeries(t, "flow", 36)
	n := s.Len()
	d := &series.Decomposition{
		Index:     s.Index,
		Observed:  s.Values,
		Seasonal:  make([]float64, n),
		Trend:     make([]float64, n),
		Remainder: make([]float64, n),
		Options:   stl.Options{Period: 12},
	}
	for i := range d.Trend {
		d.Trend[i] = 10
		d.Seasonal[i] = s.Values[i] - 10
	}
	d.Remainder[3] = math.NaN()
	return d
}

// renderAll exercises every plot kind and returns the artifact paths.
func renderAll(t *testing.T, r *Renderer) []string {
	t.Helper()
	pat := testPattern(t)
	surf, err := ppp.Density(pat, 10, ppp.DensityOptions{Dimension: 16})
	require.NoError(t, err)

	s := monthlySeries(t, "flow", 36)
	lines, err := series.SeasonalProfile(s, series.Month)
	require.NoError(t, err)
	acf, err := series.ACF(s, 12)
	require.NoError(t, err)

	var paths []string
	add := func(path string, err error) {
		t.Helper()
		require.NoError(t, err)
		paths = append(paths, path)
	}
	add(r.DensityMap("density_10", surf, pat))
	add(r.Envelope("envelope_G", testCurve()))
	add(r.SeriesLines("series", "Monthly flow", s))
	add(r.Seasonal("seasonal", "Flow by month", lines, "month"))
	add(r.ACF("acf", "Flow ACF", acf, series.ConfidenceBound(s.Observed())))
	add(r.Decomposition("decomposition", testDecomposition(t)))
	return paths
}

func TestRenderer_Static(t *testing.T) {
	dir := t.TempDir()
	r := New(Static, dir)
	for _, path := range renderAll(t, r) {
		assert.Equal(t, dir, filepath.Dir(path))
		assert.Equal(t, ".png", filepath.Ext(path))
		data, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.True(t, bytes.HasPrefix(data, pngMagic), "%s is not a PNG", path)
	}
}

func TestRenderer_Interactive(t *testing.T) {
	dir := t.TempDir()
	r := New(Interactive, dir)
	for _, path := range renderAll(t, r) {
		assert.Equal(t, ".html", filepath.Ext(path))
		data, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Contains(t, string(data), "echarts", "%s does not load echarts", path)
	}
}

func TestRenderer_InteractiveDensityMarksIllegalPoints(t *testing.T) {
	w, err := ppp.RectWindow(orb.Bound{Min: orb.Point{0, 0}, Max: orb.Point{100, 100}}, geo.EPSG(32610))
	require.NoError(t, err)
	pat, err := ppp.NewPattern(ppp.ObservationSet{
		CRS:    geo.EPSG(32610),
		Points: []orb.Point{{25, 25}, {60, 40}, {777, 888}},
	}, w)
	require.NoError(t, err)
	surf, err := ppp.Density(pat, 10, ppp.DensityOptions{Dimension: 16})
	require.NoError(t, err)

	path, err := New(Interactive, t.TempDir()).DensityMap("density", surf, pat)
	require.NoError(t, err)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	html := string(data)

	assert.Contains(t, html, `"name":"density"`)
	assert.Contains(t, html, `"name":"illegal"`)
	assert.Contains(t, html, `"symbol":"triangle"`)
	assert.Contains(t, html, `[777,888]`)
	assert.Contains(t, html, `[60,40]`)
	assert.Contains(t, html, `"name":"window"`)

	// Without a pattern only the surface is drawn.
	path, err = New(Interactive, t.TempDir()).DensityMap("surface", surf, nil)
	require.NoError(t, err)
	data, err = os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(data), `"name":"illegal"`)
}

func TestRenderer_InteractiveMissingValues(t *testing.T) {
	dir := t.TempDir()
	r := New(Interactive, dir)
	path, err := r.Envelope("env", testCurve())
	require.NoError(t, err)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"-"`)
}

func TestRenderer_CreatesOutputDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "out")
	r := New(Static, dir)
	path, err := r.Envelope("env", testCurve())
	require.NoError(t, err)
	_, err = os.Stat(path)
	assert.NoError(t, err)
}

func TestRenderer_Errors(t *testing.T) {
	t.Run("no output dir", func(t *testing.T) {
		r := &Renderer{}
		_, err := r.Envelope("env", testCurve())
		assert.Error(t, err)
	})

	t.Run("empty surface", func(t *testing.T) {
		surf := &ppp.DensitySurface{Sigma: 1, NX: 2, NY: 1, CellSize: 1, Values: []float64{math.NaN(), math.NaN()}}
		for _, mode := range []Mode{Static, Interactive} {
			r := New(mode, t.TempDir())
			_, err := r.DensityMap("d", surf, nil)
			assert.Error(t, err, mode.String())
		}
	})

	t.Run("empty acf", func(t *testing.T) {
		r := New(Static, t.TempDir())
		_, err := r.ACF("acf", "x", nil, 0.2)
		assert.Error(t, err)
	})
}

func TestRenderer_NameIsSanitised(t *testing.T) {
	dir := t.TempDir()
	r := New(Static, dir)
	path, err := r.Envelope("../../escape", testCurve())
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "escape.png"), path)
}

func TestParseMode(t *testing.T) {
	tests := []struct {
		in      string
		want    Mode
		wantErr bool
	}{
		{"", Static, false},
		{"static", Static, false},
		{"PNG", Static, false},
		{"interactive", Interactive, false},
		{" html ", Interactive, false},
		{"svg", Static, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseMode(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
	assert.Equal(t, "interactive", Interactive.String())
	assert.Equal(t, "Mode(7)", Mode(7).String())
}

func TestSegments(t *testing.T) {
	nan := math.NaN()
	xs := []float64{0, 1, 2, 3, 4, 5}
	ys := []float64{nan, 1, 2, nan, 4, math.Inf(1)}
	segs := segments(xs, ys)
	require.Len(t, segs, 2)
	assert.Len(t, segs[0], 2)
	assert.Equal(t, 1.0, segs[0][0].X)
	assert.Len(t, segs[1], 1)
	assert.Equal(t, 4.0, segs[1][0].Y)

	assert.Empty(t, segments(xs[:2], []float64{nan, nan}))
}

func TestGenerateColors(t *testing.T) {
	assert.Nil(t, generateColors(0))
	require.Len(t, generateColors(1), 1)

	colors := generateColors(3)
	require.Len(t, colors, 3)
	// Hue 0 is red.
	r, g, b, a := colors[0].RGBA()
	assert.Greater(t, r, g)
	assert.Equal(t, g, b)
	assert.Equal(t, uint32(0xffff), a)

	seen := map[string]bool{}
	for _, c := range generateColors(12) {
		seen[hexColor(c)] = true
	}
	assert.Len(t, seen, 12)
}

func TestRenderer_Pixels(t *testing.T) {
	r := New(Interactive, t.TempDir())
	w, h := r.pixels()
	assert.Equal(t, "960px", w)
	assert.Equal(t, "576px", h)
}
