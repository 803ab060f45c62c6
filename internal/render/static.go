package render

import (
	"fmt"
	"image/color"
	"math"
	"os"
	"time"

	"github.com/paulmach/orb"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/palette"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"

	"github.com/banshee-data/pattern.report/internal/ppp"
	"github.com/banshee-data/pattern.report/internal/series"
)

var (
	observedColor = color.RGBA{R: 20, G: 20, B: 20, A: 255}
	envelopeColor = color.RGBA{R: 150, G: 150, B: 150, A: 255}
	theoryColor   = color.RGBA{R: 200, G: 30, B: 30, A: 255}
	illegalColor  = color.RGBA{R: 220, G: 0, B: 0, A: 255}
	boundColor    = color.RGBA{R: 30, G: 90, B: 200, A: 255}
	dashed        = []vg.Length{vg.Points(4), vg.Points(3)}
)

// surfaceGrid adapts a density surface to plotter.GridXYZ.
type surfaceGrid struct {
	s *ppp.DensitySurface
}

func (g surfaceGrid) Dims() (c, r int)   { return g.s.NX, g.s.NY }
func (g surfaceGrid) Z(c, r int) float64 { return g.s.At(c, r) }
func (g surfaceGrid) X(c int) float64    { return g.s.CellCenter(c, 0)[0] }
func (g surfaceGrid) Y(r int) float64    { return g.s.CellCenter(0, r)[1] }

// segments splits a series into runs of finite values so that gaps show
// as breaks in the drawn line.
func segments(xs, ys []float64) []plotter.XYs {
	var out []plotter.XYs
	var cur plotter.XYs
	for i := range xs {
		if math.IsNaN(ys[i]) || math.IsInf(ys[i], 0) {
			if len(cur) > 0 {
				out = append(out, cur)
				cur = nil
			}
			continue
		}
		cur = append(cur, plotter.XY{X: xs[i], Y: ys[i]})
	}
	if len(cur) > 0 {
		out = append(out, cur)
	}
	return out
}

// addLine adds ys against xs as one legend entry, broken at missing values.
func addLine(p *plot.Plot, label string, xs, ys []float64, style draw.LineStyle) error {
	first := true
	for _, seg := range segments(xs, ys) {
		line, err := plotter.NewLine(seg)
		if err != nil {
			return fmt.Errorf("create %s line: %w", label, err)
		}
		line.LineStyle = style
		p.Add(line)
		if first && label != "" {
			p.Legend.Add(label, line)
			first = false
		}
	}
	return nil
}

func unixSeconds(ts []time.Time) []float64 {
	xs := make([]float64, len(ts))
	for i, t := range ts {
		xs[i] = float64(t.Unix())
	}
	return xs
}

func styleLegend(p *plot.Plot) {
	p.Legend.Top = true
	p.Legend.Left = false
	p.Legend.XOffs = -10
	p.Legend.YOffs = -10
}

func (r *Renderer) save(p *plot.Plot, name string) (string, error) {
	path, err := r.artifactPath(name)
	if err != nil {
		return "", err
	}
	w, h := r.size()
	if err := p.Save(w, h, path); err != nil {
		return "", fmt.Errorf("save %s plot: %w", name, err)
	}
	return path, nil
}

func (r *Renderer) staticDensity(name string, s *ppp.DensitySurface, pat *ppp.Pattern) (string, error) {
	if math.IsNaN(s.Max()) {
		return "", fmt.Errorf("density surface %s has no cells inside the window", name)
	}
	p := plot.New()
	p.Title.Text = fmt.Sprintf("Kernel density (sigma=%g)", s.Sigma)
	p.X.Label.Text = "Easting"
	p.Y.Label.Text = "Northing"

	hm := plotter.NewHeatMap(surfaceGrid{s}, palette.Heat(64, 1))
	hm.Min, hm.Max = s.Min(), s.Max()
	hm.NaN = color.Transparent
	hm.Rasterized = true
	p.Add(hm)

	if pat != nil {
		outline := draw.LineStyle{Color: color.Black, Width: vg.Points(1)}
		for _, poly := range pat.Window().Region() {
			for _, ring := range poly {
				if err := addLine(p, "", ringXs(ring), ringYs(ring), outline); err != nil {
					return "", err
				}
			}
		}
		if inside := pat.InsidePoints(); len(inside) > 0 {
			sc, err := plotter.NewScatter(pointXYs(inside))
			if err != nil {
				return "", fmt.Errorf("create point scatter: %w", err)
			}
			sc.GlyphStyle.Shape = draw.CircleGlyph{}
			sc.GlyphStyle.Radius = vg.Points(1.5)
			sc.GlyphStyle.Color = color.Black
			p.Add(sc)
			p.Legend.Add("points", sc)
		}
		if illegal := pat.IllegalPoints(); len(illegal) > 0 {
			sc, err := plotter.NewScatter(pointXYs(illegal))
			if err != nil {
				return "", fmt.Errorf("create illegal scatter: %w", err)
			}
			sc.GlyphStyle.Shape = draw.CrossGlyph{}
			sc.GlyphStyle.Radius = vg.Points(3)
			sc.GlyphStyle.Color = illegalColor
			p.Add(sc)
			p.Legend.Add("illegal", sc)
		}
	}
	styleLegend(p)
	return r.save(p, name)
}

func ringXs(ring orb.Ring) []float64 {
	xs := make([]float64, len(ring))
	for i, pt := range ring {
		xs[i] = pt[0]
	}
	return xs
}

func ringYs(ring orb.Ring) []float64 {
	ys := make([]float64, len(ring))
	for i, pt := range ring {
		ys[i] = pt[1]
	}
	return ys
}

func pointXYs(pts []orb.Point) plotter.XYs {
	xys := make(plotter.XYs, len(pts))
	for i, pt := range pts {
		xys[i] = plotter.XY{X: pt[0], Y: pt[1]}
	}
	return xys
}

func (r *Renderer) staticEnvelope(name string, c *ppp.Curve) (string, error) {
	p := plot.New()
	p.Title.Text = fmt.Sprintf("%s function, %d simulations (rank %d, %s correction)", c.Function, c.NSim, c.NRank, c.Correction)
	p.X.Label.Text = "r"
	p.Y.Label.Text = string(c.Function) + "(r)"

	band := draw.LineStyle{Color: envelopeColor, Width: vg.Points(1)}
	if err := addLine(p, "envelope", c.R, c.Hi, band); err != nil {
		return "", err
	}
	if err := addLine(p, "", c.R, c.Lo, band); err != nil {
		return "", err
	}
	theory := draw.LineStyle{Color: theoryColor, Width: vg.Points(1), Dashes: dashed}
	if err := addLine(p, "CSR", c.R, c.Theoretical, theory); err != nil {
		return "", err
	}
	observed := draw.LineStyle{Color: observedColor, Width: vg.Points(1.5)}
	if err := addLine(p, "observed", c.R, c.Observed, observed); err != nil {
		return "", err
	}
	styleLegend(p)
	p.Legend.Left = true
	p.Legend.XOffs = 10
	return r.save(p, name)
}

func (r *Renderer) staticSeries(name, title string, ss []*series.Series) (string, error) {
	p := plot.New()
	p.Title.Text = title
	p.X.Tick.Marker = plot.TimeTicks{Format: "2006-01-02"}
	colors := generateColors(len(ss))
	for i, s := range ss {
		style := draw.LineStyle{Color: colors[i], Width: vg.Points(1)}
		if err := addLine(p, s.Name, unixSeconds(s.Index), s.Values, style); err != nil {
			return "", err
		}
	}
	styleLegend(p)
	return r.save(p, name)
}

func (r *Renderer) staticSeasonal(name, title string, lines []series.SeasonalLine, xLabel string) (string, error) {
	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = xLabel
	colors := generateColors(len(lines))
	for i, l := range lines {
		xs := make([]float64, len(l.Positions))
		for j, pos := range l.Positions {
			xs[j] = float64(pos)
		}
		style := draw.LineStyle{Color: colors[i], Width: vg.Points(1)}
		if err := addLine(p, fmt.Sprint(l.Year), xs, l.Values, style); err != nil {
			return "", err
		}
	}
	styleLegend(p)
	return r.save(p, name)
}

func (r *Renderer) staticACF(name, title string, acf []series.ACFPoint, bound float64) (string, error) {
	if len(acf) == 0 {
		return "", fmt.Errorf("no autocorrelation values to plot")
	}
	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "lag"
	p.Y.Label.Text = "ACF"

	vals := make(plotter.Values, len(acf))
	for i, a := range acf {
		if a.Valid {
			vals[i] = a.Value
		}
	}
	bars, err := plotter.NewBarChart(vals, vg.Points(4))
	if err != nil {
		return "", fmt.Errorf("create ACF bars: %w", err)
	}
	bars.XMin = float64(acf[0].Lag)
	bars.Color = boundColor
	bars.LineStyle.Width = 0
	p.Add(bars)

	if bound > 0 && !math.IsInf(bound, 0) {
		lo, hi := float64(acf[0].Lag), float64(acf[len(acf)-1].Lag)
		style := draw.LineStyle{Color: theoryColor, Width: vg.Points(1), Dashes: dashed}
		if err := addLine(p, "95% bound", []float64{lo, hi}, []float64{bound, bound}, style); err != nil {
			return "", err
		}
		if err := addLine(p, "", []float64{lo, hi}, []float64{-bound, -bound}, style); err != nil {
			return "", err
		}
	}
	styleLegend(p)
	return r.save(p, name)
}

func (r *Renderer) staticDecomposition(name string, d *series.Decomposition) (string, error) {
	xs := unixSeconds(d.Index)
	panels := []struct {
		label  string
		values []float64
	}{
		{"observed", d.Observed},
		{"seasonal", d.Seasonal},
		{"trend", d.Trend},
		{"remainder", d.Remainder},
	}
	plots := make([][]*plot.Plot, len(panels))
	for i, pn := range panels {
		p := plot.New()
		p.Y.Label.Text = pn.label
		p.X.Tick.Marker = plot.TimeTicks{Format: "2006-01"}
		if i == 0 {
			p.Title.Text = fmt.Sprintf("STL decomposition (period %d)", d.Options.Period)
		}
		style := draw.LineStyle{Color: observedColor, Width: vg.Points(1)}
		if err := addLine(p, "", xs, pn.values, style); err != nil {
			return "", err
		}
		plots[i] = []*plot.Plot{p}
	}

	w, h := r.size()
	img := vgimg.New(w, h*2)
	dc := draw.New(img)
	tiles := draw.Tiles{
		Rows:      len(panels),
		Cols:      1,
		PadY:      vg.Points(6),
		PadTop:    vg.Points(4),
		PadBottom: vg.Points(4),
		PadLeft:   vg.Points(4),
		PadRight:  vg.Points(8),
	}
	canvases := plot.Align(plots, tiles, dc)
	for i := range plots {
		plots[i][0].Draw(canvases[i][0])
	}

	path, err := r.artifactPath(name)
	if err != nil {
		return "", err
	}
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create %s: %w", path, err)
	}
	if _, err := (vgimg.PngCanvas{Canvas: img}).WriteTo(f); err != nil {
		f.Close()
		return "", fmt.Errorf("save %s plot: %w", name, err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("save %s plot: %w", name, err)
	}
	return path, nil
}
