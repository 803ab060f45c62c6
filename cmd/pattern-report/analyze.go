package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/banshee-data/pattern.report/internal/pipeline"
	"github.com/banshee-data/pattern.report/internal/recipe"
	"github.com/banshee-data/pattern.report/internal/render"
)

// runSpatialCommand builds a one-block recipe from flags and runs it.
func runSpatialCommand(ctx context.Context, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("spatial", flag.ContinueOnError)
	fs.SetOutput(out)
	var common commonFlags
	common.register(fs)

	var b recipe.SpatialBlock
	fs.StringVar(&b.Layers, "layers", "", "directory of GeoJSON layers")
	fs.StringVar(&b.Points, "points", "", "point layer name")
	fs.StringVar(&b.Window, "window", "", "window (polygon) layer name")
	fs.StringVar(&b.TargetCRS, "target-crs", "", "projected CRS to analyse in, e.g. EPSG:32610")
	assumeCRS := fs.String("assume-crs", "", "CRS of layers that declare none")
	sigmas := fs.String("sigma", "", "comma-separated kernel bandwidths in target units")
	functions := fs.String("functions", "", "comma-separated distance functions (G, K, L)")
	dimension := fs.Int("dimension", 0, "density grid cells along the longer side")
	edgeCorrect := fs.Bool("edge-correct", true, "divide density by the Gaussian kernel mass inside the window")
	nsim := fs.Int("nsim", 0, "CSR simulations per envelope (0 uses the function default)")
	nrank := fs.Int("nrank", 0, "rank of the envelope bounds")
	rSteps := fs.Int("r-steps", 0, "number of distances evaluated")
	correction := fs.String("correction", "", "edge correction for G/K/L: border or none")
	seed := fs.Int64("seed", 0, "random seed for CSR simulations")
	workers := fs.Int("workers", 0, "simulation workers")
	if err := fs.Parse(args); err != nil {
		return err
	}

	set := setFlags(fs)
	r := &recipe.Recipe{Spatial: &b}
	if set["assume-crs"] {
		b.AssumeCRS = assumeCRS
	}
	if set["sigma"] {
		vals, err := parseFloats(*sigmas)
		if err != nil {
			return fmt.Errorf("invalid -sigma: %w", err)
		}
		b.Sigmas = vals
	}
	if set["functions"] {
		b.Functions = splitList(*functions)
	}
	if set["dimension"] {
		b.Dimension = dimension
	}
	if set["edge-correct"] {
		b.EdgeCorrect = edgeCorrect
	}
	if set["nsim"] {
		b.NSim = nsim
	}
	if set["nrank"] {
		b.NRank = nrank
	}
	if set["r-steps"] {
		b.RSteps = rSteps
	}
	if set["correction"] {
		b.Correction = correction
	}
	if set["seed"] {
		if *seed < 0 {
			return fmt.Errorf("invalid -seed: must be non-negative")
		}
		r.Seed = seed
	}
	if set["workers"] {
		r.Workers = workers
	}
	return runRecipe(ctx, r, &common, out)
}

// runSeriesCommand builds a one-block recipe from flags and runs it.
func runSeriesCommand(ctx context.Context, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("series", flag.ContinueOnError)
	fs.SetOutput(out)
	var common commonFlags
	common.register(fs)

	var b recipe.SeriesBlock
	fs.StringVar(&b.CSV, "csv", "", "input CSV file with a header row")
	fs.StringVar(&b.DateColumn, "date-column", "", "name of the date column")
	fs.StringVar(&b.ValueColumn, "value-column", "", "name of the value column")
	groupColumn := fs.String("group-column", "", "column whose values split the table into separate series")
	group := fs.String("group", "", "group to analyse when -group-column is set")
	dateLayout := fs.String("date-layout", "", "Go time layout of the date column")
	granularity := fs.String("granularity", "", "aggregation bucket: day, week, month or year")
	reducer := fs.String("reducer", "", "bucket reducer: mean (avg), sum, min, max, median or count")
	fillGaps := fs.Bool("fill-gaps", false, "emit empty buckets between observations")
	rng := fs.String("range", "", "date range, e.g. 2000-01/2001-12")
	before := fs.Int("before", 0, "rolling window rows before each position")
	after := fs.Int("after", 0, "rolling window rows after each position")
	maxLag := fs.Int("max-lag", 0, "largest ACF lag")
	estimator := fs.String("acf-estimator", "", "ACF estimator: standard or pearson")
	period := fs.Int("period", 0, "STL seasonal period (0 uses the granularity's)")
	periodic := fs.Bool("periodic", false, "force an identical seasonal pattern each cycle")
	seasonalWindow := fs.Int("seasonal-window", 0, "STL seasonal smoothing window (odd)")
	robust := fs.Bool("robust", false, "use robustness iterations in STL")
	if err := fs.Parse(args); err != nil {
		return err
	}

	set := setFlags(fs)
	assign := map[string]func(){
		"group-column":    func() { b.GroupColumn = groupColumn },
		"group":           func() { b.Group = group },
		"acf-estimator":   func() { b.ACFEstimator = estimator },
		"date-layout":     func() { b.DateLayout = dateLayout },
		"granularity":     func() { b.Granularity = granularity },
		"reducer":         func() { b.Reducer = reducer },
		"fill-gaps":       func() { b.FillGaps = fillGaps },
		"range":           func() { b.Range = rng },
		"before":          func() { b.Before = before },
		"after":           func() { b.After = after },
		"max-lag":         func() { b.MaxLag = maxLag },
		"period":          func() { b.Period = period },
		"periodic":        func() { b.Periodic = periodic },
		"seasonal-window": func() { b.SeasonalWindow = seasonalWindow },
		"robust":          func() { b.Robust = robust },
	}
	for name, fn := range assign {
		if set[name] {
			fn()
		}
	}
	return runRecipe(ctx, &recipe.Recipe{Series: &b}, &common, out)
}

// runRecipeCommand runs every block of an HCL recipe file.
func runRecipeCommand(ctx context.Context, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	fs.SetOutput(out)
	var common commonFlags
	common.register(fs)
	path := fs.String("recipe", "", "HCL recipe file")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *path == "" {
		return fmt.Errorf("-recipe is required")
	}

	r, err := recipe.Load(*path)
	if err != nil {
		return err
	}
	return runRecipe(ctx, r, &common, out)
}

// runRecipe resolves r against the config and runs its blocks. Both blocks
// run even when the first fails; the errors are joined.
func runRecipe(ctx context.Context, r *recipe.Recipe, common *commonFlags, out io.Writer) error {
	cfg, err := common.load()
	if err != nil {
		return err
	}
	// Flags outrank the recipe for the output settings.
	if common.outDir != "" {
		r.OutputDir = nil
	}
	if common.mode != "" {
		r.Mode = nil
	}
	mode, err := r.RenderMode(cfg)
	if err != nil {
		return err
	}
	renderer := render.New(mode, r.OutputDirOr(cfg))

	// Resolve every block before recording anything.
	var spatial *pipeline.SpatialParams
	var ts *pipeline.SeriesParams
	if r.Spatial != nil {
		p, err := r.SpatialParams(cfg)
		if err != nil {
			return err
		}
		spatial = &p
	}
	if r.Series != nil {
		p, err := r.SeriesParams(cfg)
		if err != nil {
			return err
		}
		ts = &p
	}

	rec, closeRec, err := common.openRecorder(cfg)
	if err != nil {
		return err
	}
	defer closeRec()

	var errs []error
	if spatial != nil {
		res, err := pipeline.RunSpatial(ctx, *spatial, renderer, rec)
		if res != nil {
			fmt.Fprintf(out, "spatial run %s: %d points (%d inside, %d illegal), intensity %.6g\n",
				res.RunID, res.Summary.Total, res.Summary.Inside, res.Summary.Illegal, res.Summary.Intensity)
			printArtifacts(out, res.Artifacts)
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("spatial: %w", err))
		}
	}
	if ts != nil {
		res, err := pipeline.RunSeries(ctx, *ts, renderer, rec)
		if res != nil {
			fmt.Fprintf(out, "series run %s: %d observed, mean %.6g, median %.6g\n",
				res.RunID, res.Summary.Count, res.Summary.Mean, res.Summary.Median)
			printArtifacts(out, res.Artifacts)
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("series: %w", err))
		}
	}
	return errors.Join(errs...)
}

func printArtifacts(out io.Writer, paths []string) {
	for _, p := range paths {
		fmt.Fprintf(out, "  %s\n", p)
	}
}

func splitList(s string) []string {
	var items []string
	for _, item := range strings.Split(s, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	return items
}

func parseFloats(s string) ([]float64, error) {
	var vals []float64
	for _, item := range splitList(s) {
		v, err := strconv.ParseFloat(item, 64)
		if err != nil {
			return nil, err
		}
		vals = append(vals, v)
	}
	return vals, nil
}
