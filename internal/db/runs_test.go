package db

import (
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/pattern.report/internal/pipeline"
	"github.com/banshee-data/pattern.report/internal/timeutil"
)

var _ pipeline.Recorder = (*DB)(nil)

var epoch = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func setupTestDB(t *testing.T) (*DB, *timeutil.MockClock) {
	t.Helper()
	db, err := NewDB(filepath.Join(t.TempDir(), "ledger.db"))
	if err != nil {
		t.Fatalf("Failed to create database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	clock := timeutil.NewSteppingClock(epoch, time.Second)
	db.SetClock(clock)
	return db, clock
}

func TestRunLifecycle(t *testing.T) {
	db, _ := setupTestDB(t)

	params := map[string]interface{}{"csv": "daily.csv", "max_lag": 24}
	runID, err := db.StartRun("series", params)
	require.NoError(t, err)
	require.NotEmpty(t, runID)

	run, err := db.GetRun(runID)
	require.NoError(t, err)
	assert.Equal(t, StatusRunning, run.Status)
	assert.Equal(t, "series", run.Pipeline)
	assert.Equal(t, epoch, run.StartedAt)
	assert.Nil(t, run.FinishedAt)
	assert.Zero(t, run.Duration())
	assert.JSONEq(t, `{"csv":"daily.csv","max_lag":24}`, string(run.Params))

	require.NoError(t, db.AddArtifact(runID, "series", "out/series.png"))
	require.NoError(t, db.AddArtifact(runID, "acf", "out/acf.png"))
	require.NoError(t, db.AddMetric(runID, "mean", 10.5))
	require.NoError(t, db.AddMetric(runID, "acf_lag1", 0.8))
	// Re-recording a metric replaces it.
	require.NoError(t, db.AddMetric(runID, "mean", 11))
	require.NoError(t, db.FinishRun(runID, nil))

	run, err = db.GetRun(runID)
	require.NoError(t, err)
	assert.Equal(t, StatusSucceeded, run.Status)
	assert.Nil(t, run.Error)
	require.NotNil(t, run.FinishedAt)
	assert.Equal(t, 3*time.Second, run.Duration())

	artifacts, err := db.ListArtifacts(runID)
	require.NoError(t, err)
	require.Len(t, artifacts, 2)
	assert.Equal(t, "out/series.png", artifacts[0].Path)
	assert.Equal(t, "series", artifacts[0].Kind)
	assert.Equal(t, "acf", artifacts[1].Kind)
	assert.Equal(t, runID, artifacts[1].RunID)
	assert.NotEqual(t, artifacts[0].ArtifactID, artifacts[1].ArtifactID)

	metrics, err := db.ListMetrics(runID)
	require.NoError(t, err)
	want := []Metric{{Name: "acf_lag1", Value: 0.8}, {Name: "mean", Value: 11}}
	if diff := cmp.Diff(want, metrics); diff != "" {
		t.Errorf("ListMetrics mismatch (-want +got):\n%s", diff)
	}
}

func TestFinishRun_Failed(t *testing.T) {
	db, _ := setupTestDB(t)

	runID, err := db.StartRun("spatial", struct{ Points string }{"trees"})
	require.NoError(t, err)
	require.NoError(t, db.FinishRun(runID, errors.New("projection failed")))

	run, err := db.GetRun(runID)
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, run.Status)
	require.NotNil(t, run.Error)
	assert.Equal(t, "projection failed", *run.Error)

	data, err := json.Marshal(run)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"error":"projection failed"`)
	assert.Contains(t, string(data), `"params":{"Points":"trees"}`)
}

func TestRunNotFound(t *testing.T) {
	db, _ := setupTestDB(t)

	_, err := db.GetRun("missing")
	assert.ErrorIs(t, err, ErrRunNotFound)
	assert.ErrorIs(t, db.FinishRun("missing", nil), ErrRunNotFound)
	assert.ErrorIs(t, db.DeleteRun("missing"), ErrRunNotFound)
}

func TestStartRun_UnencodableParams(t *testing.T) {
	db, _ := setupTestDB(t)
	_, err := db.StartRun("series", map[string]interface{}{"bad": make(chan int)})
	assert.Error(t, err)
}

func TestForeignKeys(t *testing.T) {
	db, _ := setupTestDB(t)
	assert.Error(t, db.AddArtifact("no-such-run", "acf", "acf.png"))
	assert.Error(t, db.AddMetric("no-such-run", "mean", 1))
}

func TestListRuns(t *testing.T) {
	db, clock := setupTestDB(t)

	var ids []string
	for i, p := range []string{"spatial", "series", "series"} {
		clock.Set(epoch.Add(time.Duration(i) * time.Hour))
		id, err := db.StartRun(p, nil)
		require.NoError(t, err)
		ids = append(ids, id)
	}

	all, err := db.ListRuns("", 0)
	require.NoError(t, err)
	require.Len(t, all, 3)
	// Newest first.
	assert.Equal(t, []string{ids[2], ids[1], ids[0]}, []string{all[0].RunID, all[1].RunID, all[2].RunID})

	seriesRuns, err := db.ListRuns("series", 0)
	require.NoError(t, err)
	assert.Len(t, seriesRuns, 2)

	limited, err := db.ListRuns("", 1)
	require.NoError(t, err)
	require.Len(t, limited, 1)
	assert.Equal(t, ids[2], limited[0].RunID)

	none, err := db.ListRuns("other", 0)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestDeleteRunCascades(t *testing.T) {
	db, _ := setupTestDB(t)

	runID, err := db.StartRun("series", nil)
	require.NoError(t, err)
	require.NoError(t, db.AddArtifact(runID, "acf", "acf.png"))
	require.NoError(t, db.AddMetric(runID, "mean", 2))

	require.NoError(t, db.DeleteRun(runID))

	artifacts, err := db.ListArtifacts(runID)
	require.NoError(t, err)
	assert.Empty(t, artifacts)
	metrics, err := db.ListMetrics(runID)
	require.NoError(t, err)
	assert.Empty(t, metrics)
}
