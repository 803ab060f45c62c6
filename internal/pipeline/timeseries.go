package pipeline

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/banshee-data/pattern.report/internal/monitoring"
	"github.com/banshee-data/pattern.report/internal/render"
	"github.com/banshee-data/pattern.report/internal/series"
	"github.com/banshee-data/pattern.report/internal/stl"
)

// SeriesParams describes one time-series analysis.
type SeriesParams struct {
	CSV         string             `json:"csv"`
	DateColumn  string             `json:"date_column"`
	DateLayout  string             `json:"date_layout,omitempty"`
	ValueColumn string             `json:"value_column"`
	GroupColumn string             `json:"group_column,omitempty"`
	Group       string             `json:"group,omitempty"` // required when the table has several groups
	Granularity series.Granularity `json:"granularity"`
	Reducer     series.Reducer     `json:"reducer"`
	FillGaps    bool               `json:"fill_gaps,omitempty"`
	Range       series.Range       `json:"range"`
	Before      int                `json:"before"`
	After       int                `json:"after"`
	MaxLag      int                `json:"max_lag"`
	Estimator   series.Estimator   `json:"acf_estimator,omitempty"`
	STL         stl.Options        `json:"stl"` // Period 0 takes the granularity's period
}

// validate checks p and normalises the granularity and reducer names.
func (p *SeriesParams) validate() error {
	switch {
	case p.CSV == "":
		return fmt.Errorf("csv file is required")
	case p.DateColumn == "":
		return fmt.Errorf("date column is required")
	case p.ValueColumn == "":
		return fmt.Errorf("value column is required")
	case p.Before < 0 || p.After < 0:
		return fmt.Errorf("rolling window offsets must be non-negative, got -%d/+%d", p.Before, p.After)
	case p.MaxLag < 1:
		return fmt.Errorf("max lag must be at least 1, got %d", p.MaxLag)
	case p.Group != "" && p.GroupColumn == "":
		return fmt.Errorf("group %q needs a group column", p.Group)
	}
	g, err := series.ParseGranularity(string(p.Granularity))
	if err != nil {
		return err
	}
	red, err := series.ParseReducer(string(p.Reducer))
	if err != nil {
		return err
	}
	est, err := series.ParseEstimator(string(p.Estimator))
	if err != nil {
		return err
	}
	p.Granularity, p.Reducer, p.Estimator = g, red, est
	return nil
}

// SeriesResult is everything a time-series run produced.
type SeriesResult struct {
	RunID         string
	Raw           *series.Series
	Aggregated    *series.Series
	Filtered      *series.Series
	Summary       series.Summary
	Seasonal      []series.SeasonalLine
	Rolling       *series.Series
	ACF           []series.ACFPoint
	Decomposition *series.Decomposition
	Artifacts     []string
}

// RunSeries loads the table, indexes the value column by date, aggregates
// it to calendar buckets, filters the date range and then draws the
// seasonal profile, rolling average, autocorrelation and STL decomposition
// of the filtered series. Yearly buckets have no seasonal cycle, so both
// the seasonal profile and the decomposition are skipped unless an STL
// period is given.
func RunSeries(ctx context.Context, params SeriesParams, r *render.Renderer, rec Recorder) (*SeriesResult, error) {
	if err := params.validate(); err != nil {
		return nil, err
	}
	rn, err := startRun(rec, TimeSeries, params)
	if err != nil {
		return nil, fmt.Errorf("failed to start run: %w", err)
	}
	res := &SeriesResult{RunID: rn.id}
	err = runSeries(ctx, params, r, rn, res)
	res.Artifacts = rn.artifacts
	return res, rn.finish(err)
}

func runSeries(ctx context.Context, params SeriesParams, r *render.Renderer, rn *run, res *SeriesResult) error {
	st := monitoring.StartStage(TimeSeries, "load")
	table, err := series.LoadCSVFile(params.CSV, series.CSVOptions{
		DateColumn:   params.DateColumn,
		DateLayout:   params.DateLayout,
		ValueColumns: []string{params.ValueColumn},
		GroupColumn:  params.GroupColumn,
	})
	if err != nil {
		return st.Fail(err)
	}
	st.Done("%d rows", table.Len())

	st = monitoring.StartStage(TimeSeries, "index")
	raw, err := indexSeries(table, params)
	if err != nil {
		return st.Fail(err)
	}
	res.Raw = raw
	st.Done("%d dates from %s", raw.Len(), spanOf(raw))

	st = monitoring.StartStage(TimeSeries, "aggregate")
	agg, err := series.Aggregate(raw, params.Granularity, params.Reducer, series.AggregateOptions{FillGaps: params.FillGaps})
	if err != nil {
		return st.Fail(err)
	}
	res.Aggregated = agg
	st.Done("%d %s buckets (%s)", agg.Len(), params.Granularity, params.Reducer)

	st = monitoring.StartStage(TimeSeries, "filter")
	filtered := series.Filter(agg, params.Range)
	res.Filtered = filtered
	res.Summary = series.Describe(filtered)
	if res.Summary.Count == 0 {
		return st.Fail(fmt.Errorf("no observed values in range %s", params.Range))
	}
	if err := rn.metrics(map[string]float64{
		"rows_loaded":   float64(table.Len()),
		"buckets":       float64(agg.Len()),
		"rows_in_range": float64(filtered.Len()),
		"missing":       float64(res.Summary.Missing),
		"mean":          res.Summary.Mean,
		"std_dev":       res.Summary.StdDev,
		"min":           res.Summary.Min,
		"median":        res.Summary.Median,
		"max":           res.Summary.Max,
	}); err != nil {
		return st.Fail(err)
	}
	title := fmt.Sprintf("%s (%s %s)", filtered.Name, params.Granularity, params.Reducer)
	path, err := r.SeriesLines("series", title, filtered)
	if err != nil {
		return st.Fail(err)
	}
	if err := rn.artifact(KindSeries, path); err != nil {
		return st.Fail(err)
	}
	st.Done("%d rows in %s", filtered.Len(), params.Range)

	if params.Granularity != series.Year {
		st = monitoring.StartStage(TimeSeries, "seasonal")
		lines, err := series.SeasonalProfile(filtered, params.Granularity)
		if err != nil {
			return st.Fail(err)
		}
		res.Seasonal = lines
		xLabel := "day of year"
		if params.Granularity == series.Month {
			xLabel = "month"
		}
		path, err = r.Seasonal("seasonal", filtered.Name+" by year", lines, xLabel)
		if err != nil {
			return st.Fail(err)
		}
		if err := rn.artifact(KindSeasonal, path); err != nil {
			return st.Fail(err)
		}
		st.Done("%d years", len(lines))
	}

	st = monitoring.StartStage(TimeSeries, "rolling")
	rolled, err := series.Rolling(filtered, params.Before, params.After, series.Mean)
	if err != nil {
		return st.Fail(err)
	}
	res.Rolling = rolled
	path, err = r.SeriesLines("rolling", "Rolling mean", filtered, rolled)
	if err != nil {
		return st.Fail(err)
	}
	if err := rn.artifact(KindRolling, path); err != nil {
		return st.Fail(err)
	}
	st.Done("window -%d/+%d", params.Before, params.After)

	st = monitoring.StartStage(TimeSeries, "acf")
	acf, err := params.Estimator.Estimate(filtered, params.MaxLag)
	if err != nil {
		return st.Fail(err)
	}
	res.ACF = acf
	bound := series.ConfidenceBound(filtered.Observed())
	if path, err = r.ACF("acf", filtered.Name+" autocorrelation", acf, bound); err != nil {
		return st.Fail(err)
	}
	if err := rn.artifact(KindACF, path); err != nil {
		return st.Fail(err)
	}
	significant := 0
	for _, a := range acf {
		if a.Valid && (a.Value > bound || a.Value < -bound) {
			significant++
		}
	}
	if err := rn.metrics(map[string]float64{"acf_lag1": acf[0].Value, "acf_significant_lags": float64(significant)}); err != nil {
		return st.Fail(err)
	}
	st.Done("%s: %d of %d lags beyond ±%.3f", params.Estimator, significant, len(acf), bound)

	if err := ctx.Err(); err != nil {
		return err
	}

	opts := params.STL
	if opts.Period == 0 {
		opts.Period = params.Granularity.Period()
	}
	if opts.Period == 0 {
		monitoring.Logf("[%s] decompose: skipped, %s buckets have no seasonal period", TimeSeries, params.Granularity)
		return nil
	}

	st = monitoring.StartStage(TimeSeries, "decompose")
	regular := filtered
	if !params.FillGaps {
		// STL needs one row per bucket.
		full, err := series.Aggregate(raw, params.Granularity, params.Reducer, series.AggregateOptions{FillGaps: true})
		if err != nil {
			return st.Fail(err)
		}
		regular = series.Filter(full, params.Range)
	}
	if params.Granularity == series.Week && params.STL.Period == 0 {
		if long := series.LongISOYears(regular); len(long) > 0 {
			monitoring.Logf("[%s] decompose: ISO years %v have 53 weeks; the 52-week period drifts across them", TimeSeries, long)
		}
	}
	dec, err := series.Decompose(regular, opts)
	if err != nil {
		return st.Fail(err)
	}
	res.Decomposition = dec
	if path, err = r.Decomposition("decomposition", dec); err != nil {
		return st.Fail(err)
	}
	if err := rn.artifact(KindDecomposition, path); err != nil {
		return st.Fail(err)
	}
	st.Done("period %d, seasonal window %d, trend window %d", dec.Options.Period, dec.Options.SeasonalWindow, dec.Options.TrendWindow)
	return nil
}

// indexSeries picks the value column, narrowed to one group when the
// table is grouped.
func indexSeries(table *series.Table, params SeriesParams) (*series.Series, error) {
	if params.GroupColumn == "" {
		return table.Series(params.ValueColumn)
	}
	groups, err := table.GroupedSeries(params.ValueColumn)
	if err != nil {
		return nil, err
	}
	keys := make([]string, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	key := params.Group
	if key == "" {
		if len(keys) != 1 {
			return nil, fmt.Errorf("table has %d groups in %q; choose one of %s", len(keys), params.GroupColumn, strings.Join(keys, ", "))
		}
		key = keys[0]
	}
	s, ok := groups[key]
	if !ok {
		return nil, fmt.Errorf("group %q not found in %q; have %s", key, params.GroupColumn, strings.Join(keys, ", "))
	}
	return s, nil
}

func spanOf(s *series.Series) string {
	if s.Len() == 0 {
		return "an empty table"
	}
	return s.Index[0].Format("2006-01-02") + " to " + s.Index[s.Len()-1].Format("2006-01-02")
}
