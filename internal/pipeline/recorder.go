// Package pipeline runs the spatial point-pattern and time-series analyses
// end to end. It wires the geo, ppp, series, stl and render packages
// together and reports each run to a Recorder; it owns no statistics itself.
package pipeline

import (
	"math"

	"github.com/google/uuid"
)

// Pipeline names used in logs and the run ledger.
const (
	Spatial    = "spatial"
	TimeSeries = "series"
)

// Artifact kinds.
const (
	KindDensity       = "density"
	KindEnvelope      = "envelope"
	KindSeries        = "series"
	KindSeasonal      = "seasonal"
	KindRolling       = "rolling"
	KindACF           = "acf"
	KindDecomposition = "decomposition"
)

// Recorder receives the lifecycle of a run. The run ledger in internal/db
// implements it; NopRecorder discards everything.
type Recorder interface {
	// StartRun registers a run and returns its id.
	StartRun(pipeline string, params interface{}) (string, error)
	// AddArtifact records a file written by the run.
	AddArtifact(runID, kind, path string) error
	// AddMetric records a named scalar result.
	AddMetric(runID, name string, value float64) error
	// FinishRun marks the run complete, or failed when runErr is non-nil.
	FinishRun(runID string, runErr error) error
}

// NopRecorder satisfies Recorder without storing anything. Run ids are still
// unique so logs can correlate stages.
type NopRecorder struct{}

func (NopRecorder) StartRun(string, interface{}) (string, error) { return uuid.NewString(), nil }
func (NopRecorder) AddArtifact(string, string, string) error     { return nil }
func (NopRecorder) AddMetric(string, string, float64) error      { return nil }
func (NopRecorder) FinishRun(string, error) error                { return nil }

// run tracks one pipeline execution against a Recorder.
type run struct {
	rec       Recorder
	id        string
	pipeline  string
	artifacts []string
}

func startRun(rec Recorder, pipeline string, params interface{}) (*run, error) {
	if rec == nil {
		rec = NopRecorder{}
	}
	id, err := rec.StartRun(pipeline, params)
	if err != nil {
		return nil, err
	}
	return &run{rec: rec, id: id, pipeline: pipeline}, nil
}

func (r *run) artifact(kind, path string) error {
	r.artifacts = append(r.artifacts, path)
	return r.rec.AddArtifact(r.id, kind, path)
}

func (r *run) metrics(m map[string]float64) error {
	for name, v := range m {
		if math.IsNaN(v) {
			continue
		}
		if err := r.rec.AddMetric(r.id, name, v); err != nil {
			return err
		}
	}
	return nil
}

// finish closes the run, preferring the pipeline's own error over a
// recorder failure.
func (r *run) finish(runErr error) error {
	if err := r.rec.FinishRun(r.id, runErr); err != nil && runErr == nil {
		return err
	}
	return runErr
}
