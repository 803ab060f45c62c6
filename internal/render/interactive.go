package render

import (
	"bytes"
	"fmt"
	"io"
	"math"
	"os"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
	"github.com/paulmach/orb"

	"github.com/banshee-data/pattern.report/internal/ppp"
	"github.com/banshee-data/pattern.report/internal/series"
)

// viridis ramp, low to high.
var heatRamp = []string{"#440154", "#482777", "#3e4989", "#31688e", "#26828e", "#1f9e89", "#35b779", "#6ece58", "#b5de2b", "#fde725"}

// missing is how echarts marks an absent data point.
const missing = "-"

type htmlRenderer interface {
	Render(w io.Writer) error
}

func (r *Renderer) initOpts(title string) opts.Initialization {
	w, h := r.pixels()
	return opts.Initialization{PageTitle: title, Width: w, Height: h, AssetsHost: r.AssetsHost}
}

func (r *Renderer) writeHTML(name string, chart htmlRenderer) (string, error) {
	var buf bytes.Buffer
	if err := chart.Render(&buf); err != nil {
		return "", fmt.Errorf("failed to render chart %s: %w", name, err)
	}
	path, err := r.artifactPath(name)
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", path, err)
	}
	return path, nil
}

func valueOrMissing(v float64) interface{} {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return missing
	}
	return v
}

func lineData(xs []interface{}, ys []float64) []opts.LineData {
	data := make([]opts.LineData, len(ys))
	for i, y := range ys {
		data[i] = opts.LineData{Value: []interface{}{xs[i], valueOrMissing(y)}}
	}
	return data
}

func floatsToAny(xs []float64) []interface{} {
	out := make([]interface{}, len(xs))
	for i, x := range xs {
		out[i] = x
	}
	return out
}

func dataZoom() charts.GlobalOpts {
	return charts.WithDataZoomOpts(
		opts.DataZoom{Type: "inside", Start: 0, End: 100},
		opts.DataZoom{Type: "slider", Start: 0, End: 100},
	)
}

func (r *Renderer) interactiveDensity(name string, s *ppp.DensitySurface, pat *ppp.Pattern) (string, error) {
	hi, lo := s.Max(), s.Min()
	if math.IsNaN(hi) {
		return "", fmt.Errorf("density surface %s has no cells inside the window", name)
	}
	xs := make([]string, s.NX)
	for ix := range xs {
		xs[ix] = fmt.Sprintf("%.0f", s.CellCenter(ix, 0)[0])
	}
	ys := make([]string, s.NY)
	for iy := range ys {
		ys[iy] = fmt.Sprintf("%.0f", s.CellCenter(0, iy)[1])
	}
	data := make([]opts.HeatMapData, 0, len(s.Values))
	for iy := 0; iy < s.NY; iy++ {
		for ix := 0; ix < s.NX; ix++ {
			v := s.At(ix, iy)
			if math.IsNaN(v) {
				continue
			}
			data = append(data, opts.HeatMapData{Value: [3]interface{}{ix, iy, v}})
		}
	}

	subtitle := fmt.Sprintf("sigma=%g cells=%d", s.Sigma, len(data))
	if pat != nil {
		subtitle += fmt.Sprintf(" points=%d illegal=%d", pat.Inside(), pat.Illegal())
	}
	hm := charts.NewHeatMap()
	hm.SetGlobalOptions(
		charts.WithInitializationOpts(r.initOpts("Kernel density")),
		charts.WithTitleOpts(opts.Title{Title: "Kernel density", Subtitle: subtitle}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Type: "category", Data: xs, Name: "Easting", NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Type: "category", Data: ys, Name: "Northing", NameLocation: "middle", NameGap: 50}),
		charts.WithVisualMapOpts(opts.VisualMap{
			Show:       opts.Bool(true),
			Calculable: opts.Bool(true),
			Min:        float32(lo),
			Max:        float32(hi),
			InRange:    &opts.VisualMapInRange{Color: heatRamp},
		}),
	)
	hm.SetXAxis(xs).AddSeries("density", data)
	if pat == nil {
		return r.writeHTML(name, hm)
	}

	// The heat map needs category axes and its visual map would recolour
	// overlaid points, so the points get their own panel on value axes.
	page := components.NewPage()
	page.SetPageTitle("Kernel density")
	if r.AssetsHost != "" {
		page.SetAssetsHost(r.AssetsHost)
	}
	page.AddCharts(hm, r.pointMap(pat))
	return r.writeHTML(name, page)
}

func scatterData(pts []orb.Point) []opts.ScatterData {
	data := make([]opts.ScatterData, len(pts))
	for i, p := range pts {
		data[i] = opts.ScatterData{Value: []interface{}{p[0], p[1]}}
	}
	return data
}

// pointMap plots the window outline with the pattern's points. Points
// outside the window are drawn as red triangles.
func (r *Renderer) pointMap(pat *ppp.Pattern) *charts.Scatter {
	sc := charts.NewScatter()
	sc.SetGlobalOptions(
		charts.WithInitializationOpts(r.initOpts("Points")),
		charts.WithTitleOpts(opts.Title{
			Title:    "Points",
			Subtitle: fmt.Sprintf("inside=%d illegal=%d", pat.Inside(), pat.Illegal()),
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Type: "value", Name: "Easting", Scale: opts.Bool(true)}),
		charts.WithYAxisOpts(opts.YAxis{Type: "value", Name: "Northing", Scale: opts.Bool(true)}),
		dataZoom(),
	)
	sc.AddSeries("points", scatterData(pat.InsidePoints()),
		charts.WithScatterChartOpts(opts.ScatterChart{Symbol: "circle", SymbolSize: 5}),
		charts.WithItemStyleOpts(opts.ItemStyle{Color: hexColor(observedColor)}))
	if illegal := pat.IllegalPoints(); len(illegal) > 0 {
		sc.AddSeries("illegal", scatterData(illegal),
			charts.WithScatterChartOpts(opts.ScatterChart{Symbol: "triangle", SymbolSize: 10}),
			charts.WithItemStyleOpts(opts.ItemStyle{Color: hexColor(illegalColor)}))
	}

	outline := charts.NewLine()
	style := []charts.SeriesOpts{
		charts.WithLineChartOpts(opts.LineChart{ShowSymbol: opts.Bool(false)}),
		charts.WithLineStyleOpts(opts.LineStyle{Color: "#000000", Width: 1}),
		charts.WithItemStyleOpts(opts.ItemStyle{Color: "#000000"}),
	}
	for _, poly := range pat.Window().Region() {
		for _, ring := range poly {
			outline.AddSeries("window", lineData(floatsToAny(ringXs(ring)), ringYs(ring)), style...)
		}
	}
	sc.Overlap(outline)
	return sc
}

func (r *Renderer) interactiveEnvelope(name string, c *ppp.Curve) (string, error) {
	xs := floatsToAny(c.R)
	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(r.initOpts(string(c.Function)+" envelope")),
		charts.WithTitleOpts(opts.Title{
			Title:    fmt.Sprintf("%s function", c.Function),
			Subtitle: fmt.Sprintf("nsim=%d nrank=%d correction=%s", c.NSim, c.NRank, c.Correction),
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Type: "value", Name: "r"}),
		charts.WithYAxisOpts(opts.YAxis{Type: "value", Name: string(c.Function) + "(r)"}),
		dataZoom(),
	)
	noSymbol := charts.WithLineChartOpts(opts.LineChart{ShowSymbol: opts.Bool(false)})
	grey := hexColor(envelopeColor)
	line.AddSeries("lo", lineData(xs, c.Lo), noSymbol, charts.WithLineStyleOpts(opts.LineStyle{Color: grey}))
	line.AddSeries("hi", lineData(xs, c.Hi), noSymbol, charts.WithLineStyleOpts(opts.LineStyle{Color: grey}))
	line.AddSeries("CSR", lineData(xs, c.Theoretical), noSymbol,
		charts.WithLineStyleOpts(opts.LineStyle{Color: hexColor(theoryColor), Type: "dashed"}))
	line.AddSeries("observed", lineData(xs, c.Observed), noSymbol,
		charts.WithLineStyleOpts(opts.LineStyle{Color: hexColor(observedColor), Width: 2}))
	return r.writeHTML(name, line)
}

func (r *Renderer) timeLine(title string, ss []*series.Series) *charts.Line {
	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(r.initOpts(title)),
		charts.WithTitleOpts(opts.Title{Title: title}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Type: "time"}),
		charts.WithYAxisOpts(opts.YAxis{Type: "value", Scale: opts.Bool(true)}),
		dataZoom(),
	)
	colors := generateColors(len(ss))
	for i, s := range ss {
		xs := make([]interface{}, len(s.Index))
		for j, t := range s.Index {
			xs[j] = t.UnixMilli()
		}
		line.AddSeries(s.Name, lineData(xs, s.Values),
			charts.WithLineChartOpts(opts.LineChart{ShowSymbol: opts.Bool(false)}),
			charts.WithLineStyleOpts(opts.LineStyle{Color: hexColor(colors[i])}),
			charts.WithItemStyleOpts(opts.ItemStyle{Color: hexColor(colors[i])}))
	}
	return line
}

func (r *Renderer) interactiveSeries(name, title string, ss []*series.Series) (string, error) {
	return r.writeHTML(name, r.timeLine(title, ss))
}

func (r *Renderer) interactiveSeasonal(name, title string, lines []series.SeasonalLine, xLabel string) (string, error) {
	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(r.initOpts(title)),
		charts.WithTitleOpts(opts.Title{Title: title}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true), Type: "scroll"}),
		charts.WithXAxisOpts(opts.XAxis{Type: "value", Name: xLabel, Min: 1}),
		charts.WithYAxisOpts(opts.YAxis{Type: "value", Scale: opts.Bool(true)}),
	)
	colors := generateColors(len(lines))
	for i, l := range lines {
		xs := make([]interface{}, len(l.Positions))
		for j, pos := range l.Positions {
			xs[j] = pos
		}
		line.AddSeries(fmt.Sprint(l.Year), lineData(xs, l.Values),
			charts.WithLineStyleOpts(opts.LineStyle{Color: hexColor(colors[i])}),
			charts.WithItemStyleOpts(opts.ItemStyle{Color: hexColor(colors[i])}))
	}
	return r.writeHTML(name, line)
}

func (r *Renderer) interactiveACF(name, title string, acf []series.ACFPoint, bound float64) (string, error) {
	if len(acf) == 0 {
		return "", fmt.Errorf("no autocorrelation values to plot")
	}
	lags := make([]int, len(acf))
	data := make([]opts.BarData, len(acf))
	for i, a := range acf {
		lags[i] = a.Lag
		if a.Valid {
			data[i] = opts.BarData{Value: a.Value}
		} else {
			data[i] = opts.BarData{Value: missing}
		}
	}
	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(r.initOpts(title)),
		charts.WithTitleOpts(opts.Title{Title: title, Subtitle: fmt.Sprintf("95%% bound ±%.3f", bound)}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Name: "lag"}),
		charts.WithYAxisOpts(opts.YAxis{Min: -1, Max: 1}),
	)
	seriesOpts := []charts.SeriesOpts{charts.WithItemStyleOpts(opts.ItemStyle{Color: hexColor(boundColor)})}
	if bound > 0 && !math.IsInf(bound, 0) {
		seriesOpts = append(seriesOpts, charts.WithMarkLineNameYAxisItemOpts(
			opts.MarkLineNameYAxisItem{Name: "upper", YAxis: bound},
			opts.MarkLineNameYAxisItem{Name: "lower", YAxis: -bound},
		))
	}
	bar.SetXAxis(lags).AddSeries("acf", data, seriesOpts...)
	return r.writeHTML(name, bar)
}

func (r *Renderer) interactiveDecomposition(name string, d *series.Decomposition) (string, error) {
	page := components.NewPage()
	page.SetPageTitle(fmt.Sprintf("STL decomposition (period %d)", d.Options.Period))
	if r.AssetsHost != "" {
		page.SetAssetsHost(r.AssetsHost)
	}
	for _, pn := range []struct {
		label  string
		values []float64
	}{
		{"observed", d.Observed},
		{"seasonal", d.Seasonal},
		{"trend", d.Trend},
		{"remainder", d.Remainder},
	} {
		s := &series.Series{Name: pn.label, Index: d.Index, Values: pn.values}
		page.AddCharts(r.timeLine(pn.label, []*series.Series{s}))
	}
	return r.writeHTML(name, page)
}
