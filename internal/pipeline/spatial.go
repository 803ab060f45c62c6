package pipeline

import (
	"context"
	"fmt"

	"github.com/banshee-data/pattern.report/internal/geo"
	"github.com/banshee-data/pattern.report/internal/monitoring"
	"github.com/banshee-data/pattern.report/internal/ppp"
	"github.com/banshee-data/pattern.report/internal/render"
)

// SpatialParams describes one point-pattern analysis.
type SpatialParams struct {
	LayerDir    string         `json:"layer_dir"`
	Points      string         `json:"points"`
	Window      string         `json:"window"`
	TargetCRS   geo.CRS        `json:"target_crs"`
	AssumeCRS   geo.CRS        `json:"assume_crs"`
	Sigmas      []float64      `json:"sigmas"`
	Dimension   int            `json:"dimension,omitempty"`
	EdgeCorrect bool           `json:"edge_correct,omitempty"`
	Functions   []ppp.Function `json:"functions"`
	NSim        int            `json:"nsim,omitempty"` // 0 picks each function's default
	NRank       int            `json:"nrank"`
	RSteps      int            `json:"r_steps,omitempty"`
	Correction  ppp.Correction `json:"correction"`
	Seed        uint64         `json:"seed"`
	Workers     int            `json:"workers,omitempty"`
}

// DefaultRSteps is the number of distances evaluated when RSteps is zero.
const DefaultRSteps = 64

func (p SpatialParams) validate() error {
	switch {
	case p.LayerDir == "":
		return fmt.Errorf("layer directory is required")
	case p.Points == "":
		return fmt.Errorf("points layer is required")
	case p.Window == "":
		return fmt.Errorf("window layer is required")
	case p.TargetCRS.IsZero():
		return fmt.Errorf("target CRS is required")
	case p.TargetCRS.IsGeographic():
		return fmt.Errorf("target CRS %s is geographic; distances need a projected CRS", p.TargetCRS)
	}
	for _, s := range p.Sigmas {
		if !(s > 0) {
			return fmt.Errorf("sigma must be positive, got %g", s)
		}
	}
	return nil
}

// SpatialResult is everything a spatial run produced.
type SpatialResult struct {
	RunID     string
	Pattern   *ppp.Pattern
	Summary   ppp.Summary
	Surfaces  []*ppp.DensitySurface
	Curves    []*ppp.Curve
	Artifacts []string
}

// RunSpatial loads the point and window layers, reprojects them to the
// target CRS, builds the pattern, estimates one density surface per sigma
// and evaluates each distance function with its simulation envelope. Every
// surface and curve is rendered with r.
func RunSpatial(ctx context.Context, params SpatialParams, r *render.Renderer, rec Recorder) (*SpatialResult, error) {
	if err := params.validate(); err != nil {
		return nil, err
	}
	rn, err := startRun(rec, Spatial, params)
	if err != nil {
		return nil, fmt.Errorf("failed to start run: %w", err)
	}
	res := &SpatialResult{RunID: rn.id}
	err = runSpatial(ctx, params, r, rn, res)
	res.Artifacts = rn.artifacts
	return res, rn.finish(err)
}

func runSpatial(ctx context.Context, params SpatialParams, r *render.Renderer, rn *run, res *SpatialResult) error {
	st := monitoring.StartStage(Spatial, "load")
	store, err := geo.NewLayerStore(params.LayerDir)
	if err != nil {
		return st.Fail(err)
	}
	ptsLayer, err := store.ReadLayer(params.Points)
	if err != nil {
		return st.Fail(err)
	}
	winLayer, err := store.ReadLayer(params.Window)
	if err != nil {
		return st.Fail(err)
	}
	st.Done("%d point features, %d window features", len(ptsLayer.Features), len(winLayer.Features))

	st = monitoring.StartStage(Spatial, "reproject")
	if ptsLayer, err = geo.Reproject(ptsLayer, params.TargetCRS, params.AssumeCRS); err != nil {
		return st.Fail(err)
	}
	if winLayer, err = geo.Reproject(winLayer, params.TargetCRS, params.AssumeCRS); err != nil {
		return st.Fail(err)
	}
	st.Done("to %s", params.TargetCRS)

	st = monitoring.StartStage(Spatial, "pattern")
	region, err := winLayer.MultiPolygon()
	if err != nil {
		return st.Fail(err)
	}
	w, err := ppp.NewWindow(region, winLayer.CRS)
	if err != nil {
		return st.Fail(err)
	}
	pts, marks, err := ptsLayer.Points()
	if err != nil {
		return st.Fail(err)
	}
	pat, err := ppp.NewPattern(ppp.ObservationSet{CRS: ptsLayer.CRS, Points: pts, Marks: marks}, w)
	if err != nil {
		return st.Fail(err)
	}
	res.Pattern = pat
	res.Summary = pat.Summary()
	if err := rn.metrics(map[string]float64{
		"points_total":   float64(res.Summary.Total),
		"points_inside":  float64(res.Summary.Inside),
		"points_illegal": float64(res.Summary.Illegal),
		"window_area":    res.Summary.Area,
		"intensity":      res.Summary.Intensity,
	}); err != nil {
		return st.Fail(err)
	}
	st.Done("%d points, %d illegal", res.Summary.Total, res.Summary.Illegal)

	st = monitoring.StartStage(Spatial, "density")
	surfaces, err := ppp.DensitySweep(ctx, pat, params.Sigmas, ppp.DensityOptions{Dimension: params.Dimension, EdgeCorrect: params.EdgeCorrect})
	if err != nil {
		return st.Fail(err)
	}
	res.Surfaces = surfaces
	for _, surf := range surfaces {
		path, err := r.DensityMap(fmt.Sprintf("density_sigma_%g", surf.Sigma), surf, pat)
		if err != nil {
			return st.Fail(err)
		}
		if err := rn.artifact(KindDensity, path); err != nil {
			return st.Fail(err)
		}
		if err := rn.metrics(map[string]float64{fmt.Sprintf("density_max_sigma_%g", surf.Sigma): surf.Max()}); err != nil {
			return st.Fail(err)
		}
	}
	st.Done("%d surfaces", len(res.Surfaces))

	steps := params.RSteps
	if steps <= 0 {
		steps = DefaultRSteps
	}
	radii := ppp.DefaultR(pat, steps)
	for _, fn := range params.Functions {
		st = monitoring.StartStage(Spatial, string(fn)+" envelope")
		nsim := params.NSim
		if nsim <= 0 {
			nsim = fn.DefaultNSim()
		}
		nrank := params.NRank
		if nrank <= 0 {
			nrank = 1
		}
		curve, err := ppp.Envelope(ctx, pat, ppp.EnvelopeOptions{
			Function:   fn,
			R:          radii,
			NSim:       nsim,
			NRank:      nrank,
			Seed:       params.Seed,
			Correction: params.Correction,
			Workers:    params.Workers,
		})
		if err != nil {
			return st.Fail(err)
		}
		res.Curves = append(res.Curves, curve)
		path, err := r.Envelope("envelope_"+string(fn), curve)
		if err != nil {
			return st.Fail(err)
		}
		if err := rn.artifact(KindEnvelope, path); err != nil {
			return st.Fail(err)
		}
		excursions := curve.Excursions()
		if err := rn.metrics(map[string]float64{string(fn) + "_excursions": float64(len(excursions))}); err != nil {
			return st.Fail(err)
		}
		st.Done("%d of %d distances outside the envelope", len(excursions), len(radii))
	}
	return nil
}
