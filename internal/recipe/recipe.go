// Package recipe reads HCL analysis recipes. A recipe names an output
// directory and render mode and describes at most one spatial and one
// time-series analysis:
//
//	output_dir = "out"
//	mode       = "static"
//
//	spatial {
//	  layers     = "${recipe_dir}/layers"
//	  points     = "sightings"
//	  window     = "boundary"
//	  target_crs = "EPSG:32610"
//	  sigmas     = [500, 1000]
//	}
//
//	series {
//	  csv          = env("SERIES_CSV")
//	  date_column  = "Date"
//	  value_column = "Mean"
//	}
//
// Expressions may use the recipe_dir variable and the env function.
package recipe

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/function"

	"github.com/banshee-data/pattern.report/internal/config"
	"github.com/banshee-data/pattern.report/internal/geo"
	"github.com/banshee-data/pattern.report/internal/pipeline"
	"github.com/banshee-data/pattern.report/internal/ppp"
	"github.com/banshee-data/pattern.report/internal/render"
	"github.com/banshee-data/pattern.report/internal/series"
	"github.com/banshee-data/pattern.report/internal/stl"
)

// Recipe is the root of a recipe file.
type Recipe struct {
	OutputDir *string       `hcl:"output_dir,optional"`
	Mode      *string       `hcl:"mode,optional"`
	Seed      *int64        `hcl:"seed,optional"`
	Workers   *int          `hcl:"workers,optional"`
	Spatial   *SpatialBlock `hcl:"spatial,block"`
	Series    *SeriesBlock  `hcl:"series,block"`
}

// SpatialBlock describes a point-pattern analysis.
type SpatialBlock struct {
	Layers      string    `hcl:"layers"`
	Points      string    `hcl:"points"`
	Window      string    `hcl:"window"`
	TargetCRS   string    `hcl:"target_crs"`
	AssumeCRS   *string   `hcl:"assume_crs,optional"`
	Sigmas      []float64 `hcl:"sigmas,optional"`
	Dimension   *int      `hcl:"dimension,optional"`
	EdgeCorrect *bool     `hcl:"edge_correct,optional"`
	Functions   []string  `hcl:"functions,optional"`
	NSim        *int      `hcl:"nsim,optional"`
	NRank       *int      `hcl:"nrank,optional"`
	RSteps      *int      `hcl:"r_steps,optional"`
	Correction  *string   `hcl:"correction,optional"`
}

// SeriesBlock describes a time-series analysis.
type SeriesBlock struct {
	CSV            string  `hcl:"csv"`
	DateColumn     string  `hcl:"date_column"`
	ValueColumn    string  `hcl:"value_column"`
	GroupColumn    *string `hcl:"group_column,optional"`
	Group          *string `hcl:"group,optional"`
	DateLayout     *string `hcl:"date_layout,optional"`
	Granularity    *string `hcl:"granularity,optional"`
	Reducer        *string `hcl:"reducer,optional"`
	FillGaps       *bool   `hcl:"fill_gaps,optional"`
	Range          *string `hcl:"range,optional"`
	Before         *int    `hcl:"before,optional"`
	After          *int    `hcl:"after,optional"`
	MaxLag         *int    `hcl:"max_lag,optional"`
	ACFEstimator   *string `hcl:"acf_estimator,optional"`
	Period         *int    `hcl:"period,optional"`
	Periodic       *bool   `hcl:"periodic,optional"`
	SeasonalWindow *int    `hcl:"seasonal_window,optional"`
	Robust         *bool   `hcl:"robust,optional"`
}

// Load reads and decodes the recipe at path. recipe_dir evaluates to the
// directory holding the file.
func Load(path string) (*Recipe, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read recipe: %w", err)
	}
	dir, err := filepath.Abs(filepath.Dir(path))
	if err != nil {
		return nil, fmt.Errorf("failed to resolve recipe directory: %w", err)
	}
	return Parse(data, filepath.Base(path), dir)
}

// Parse decodes recipe source. filename is only used in diagnostics.
func Parse(src []byte, filename, dir string) (*Recipe, error) {
	parser := hclparse.NewParser()
	file, diags := parser.ParseHCL(src, filename)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse HCL: %s", diags.Error())
	}

	var r Recipe
	diags = gohcl.DecodeBody(file.Body, evalContext(dir), &r)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode HCL body: %s", diags.Error())
	}
	if r.Spatial == nil && r.Series == nil {
		return nil, fmt.Errorf("%s: recipe has neither a spatial nor a series block", filename)
	}
	if r.Seed != nil && *r.Seed < 0 {
		return nil, fmt.Errorf("%s: seed must be non-negative, got %d", filename, *r.Seed)
	}
	return &r, nil
}

func evalContext(dir string) *hcl.EvalContext {
	return &hcl.EvalContext{
		Variables: map[string]cty.Value{
			"recipe_dir": cty.StringVal(dir),
		},
		Functions: map[string]function.Function{
			"env": function.New(&function.Spec{
				Params: []function.Parameter{
					{
						Name: "name",
						Type: cty.String,
					},
				},
				Type: function.StaticReturnType(cty.String),
				Impl: func(args []cty.Value, retType cty.Type) (cty.Value, error) {
					return cty.StringVal(os.Getenv(args[0].AsString())), nil
				},
			}),
		},
	}
}

func withDefaults(cfg *config.AnalysisConfig) *config.AnalysisConfig {
	if cfg == nil {
		return config.EmptyAnalysisConfig()
	}
	return cfg
}

// OutputDirOr returns the recipe's output directory, or the configured one.
func (r *Recipe) OutputDirOr(cfg *config.AnalysisConfig) string {
	if r.OutputDir != nil && *r.OutputDir != "" {
		return *r.OutputDir
	}
	return withDefaults(cfg).GetOutputDir()
}

// RenderMode returns the recipe's render mode, or the configured one.
func (r *Recipe) RenderMode(cfg *config.AnalysisConfig) (render.Mode, error) {
	mode := withDefaults(cfg).GetMode()
	if r.Mode != nil {
		mode = *r.Mode
	}
	return render.ParseMode(mode)
}

// SpatialParams converts the spatial block into pipeline parameters, with
// unset values taken from cfg.
func (r *Recipe) SpatialParams(cfg *config.AnalysisConfig) (pipeline.SpatialParams, error) {
	b := r.Spatial
	if b == nil {
		return pipeline.SpatialParams{}, fmt.Errorf("recipe has no spatial block")
	}
	cfg = withDefaults(cfg)

	p := pipeline.SpatialParams{
		LayerDir:    b.Layers,
		Points:      b.Points,
		Window:      b.Window,
		Sigmas:      b.Sigmas,
		Dimension:   intOr(b.Dimension, cfg.GetDensityDimension()),
		EdgeCorrect: boolOr(b.EdgeCorrect, cfg.GetEdgeCorrect()),
		NSim:        intOr(b.NSim, 0),
		NRank:       intOr(b.NRank, cfg.GetNRank()),
		RSteps:      intOr(b.RSteps, cfg.GetRSteps()),
		Seed:        cfg.GetSeed(),
		Workers:     intOr(r.Workers, cfg.GetWorkers()),
	}
	if len(p.Sigmas) == 0 {
		p.Sigmas = cfg.GetSigmas()
	}
	if len(p.Sigmas) == 0 {
		return p, fmt.Errorf("spatial: at least one sigma is required")
	}
	if r.Seed != nil {
		p.Seed = uint64(*r.Seed)
	}

	var err error
	if p.TargetCRS, err = geo.ParseCRS(b.TargetCRS); err != nil {
		return p, fmt.Errorf("spatial: target_crs: %w", err)
	}
	if b.AssumeCRS != nil {
		if p.AssumeCRS, err = geo.ParseCRS(*b.AssumeCRS); err != nil {
			return p, fmt.Errorf("spatial: assume_crs: %w", err)
		}
	}

	names := b.Functions
	if len(names) == 0 {
		names = cfg.GetFunctions()
	}
	for _, name := range names {
		fn, err := ppp.ParseFunction(name)
		if err != nil {
			return p, fmt.Errorf("spatial: %w", err)
		}
		p.Functions = append(p.Functions, fn)
	}

	corr := cfg.GetCorrection()
	if b.Correction != nil {
		corr = *b.Correction
	}
	if p.Correction, err = ppp.ParseCorrection(corr); err != nil {
		return p, fmt.Errorf("spatial: %w", err)
	}
	return p, nil
}

// SeriesParams converts the series block into pipeline parameters, with
// unset values taken from cfg.
func (r *Recipe) SeriesParams(cfg *config.AnalysisConfig) (pipeline.SeriesParams, error) {
	b := r.Series
	if b == nil {
		return pipeline.SeriesParams{}, fmt.Errorf("recipe has no series block")
	}
	cfg = withDefaults(cfg)

	p := pipeline.SeriesParams{
		CSV:         b.CSV,
		DateColumn:  b.DateColumn,
		DateLayout:  stringOr(b.DateLayout, cfg.GetDateLayout()),
		ValueColumn: b.ValueColumn,
		GroupColumn: stringOr(b.GroupColumn, ""),
		Group:       stringOr(b.Group, ""),
		FillGaps:    boolOr(b.FillGaps, false),
		Before:      intOr(b.Before, cfg.GetRollingBefore()),
		After:       intOr(b.After, cfg.GetRollingAfter()),
		MaxLag:      intOr(b.MaxLag, cfg.GetMaxLag()),
		STL: stl.Options{
			Period:         intOr(b.Period, 0),
			Periodic:       boolOr(b.Periodic, cfg.GetPeriodic()),
			SeasonalWindow: intOr(b.SeasonalWindow, cfg.GetSeasonalWindow()),
			Robust:         boolOr(b.Robust, cfg.GetRobust()),
		},
	}

	var err error
	if p.Granularity, err = series.ParseGranularity(stringOr(b.Granularity, cfg.GetGranularity())); err != nil {
		return p, fmt.Errorf("series: %w", err)
	}
	if p.Reducer, err = series.ParseReducer(stringOr(b.Reducer, cfg.GetReducer())); err != nil {
		return p, fmt.Errorf("series: %w", err)
	}
	if p.Estimator, err = series.ParseEstimator(stringOr(b.ACFEstimator, "")); err != nil {
		return p, fmt.Errorf("series: %w", err)
	}
	if b.Range != nil {
		if p.Range, err = series.ParseRange(*b.Range); err != nil {
			return p, fmt.Errorf("series: range: %w", err)
		}
	}
	return p, nil
}

func intOr(v *int, def int) int {
	if v == nil {
		return def
	}
	return *v
}

func boolOr(v *bool, def bool) bool {
	if v == nil {
		return def
	}
	return *v
}

func stringOr(v *string, def string) string {
	if v == nil || *v == "" {
		return def
	}
	return *v
}
