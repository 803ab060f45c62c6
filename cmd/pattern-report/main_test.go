package main

import (
	"bytes"
	"context"
	"errors"
	"flag"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/pattern.report/internal/db"
	"github.com/banshee-data/pattern.report/internal/monitoring"
	"github.com/banshee-data/pattern.report/internal/testutil"
)

func quietLogs(t *testing.T) {
	monitoring.SetLogger(t.Logf)
	t.Cleanup(func() { monitoring.SetLogger(nil) })
}

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	err := run(context.Background(), args, &out)
	return out.String(), err
}

func TestRun_Commands(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		wantOut string
		wantErr string
	}{
		{name: "no command", args: nil, wantOut: "Usage: pattern-report", wantErr: "missing command"},
		{name: "unknown command", args: []string{"plot"}, wantOut: "Commands:", wantErr: `unknown command "plot"`},
		{name: "help", args: []string{"help"}, wantOut: "migrate"},
		{name: "version", args: []string{"version"}, wantOut: "pattern-report dev"},
		{name: "recipe required", args: []string{"run"}, wantErr: "-recipe is required"},
		{name: "bad sigma", args: []string{"spatial", "-sigma", "10,abc"}, wantErr: "invalid -sigma"},
		{name: "negative seed", args: []string{"spatial", "-seed", "-1"}, wantErr: "non-negative"},
		{name: "bad estimator", args: []string{"series", "-no-ledger", "-csv", "a.csv", "-date-column", "d", "-value-column", "v", "-acf-estimator", "burg"}, wantErr: "unknown ACF estimator"},
		{name: "missing config", args: []string{"series", "-config", "nope.json"}, wantErr: "failed to stat config"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := runCLI(t, tt.args...)
			if tt.wantErr == "" {
				require.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			}
			assert.Contains(t, out, tt.wantOut)
		})
	}
}

func TestRun_FlagHelp(t *testing.T) {
	out, err := runCLI(t, "series", "-h")
	assert.True(t, errors.Is(err, flag.ErrHelp))
	assert.Contains(t, out, "-value-column")
	assert.Contains(t, out, "-group-column")
	assert.Contains(t, out, "-acf-estimator")
	assert.Contains(t, out, "mean (avg), sum, min, max, median or count")
	assert.NotContains(t, out, "first or last")

	out, err = runCLI(t, "spatial", "-h")
	assert.True(t, errors.Is(err, flag.ErrHelp))
	assert.Contains(t, out, "Gaussian kernel mass")
	assert.NotContains(t, out, "uniform")
}

func TestSeriesCommand_RecordsRun(t *testing.T) {
	quietLogs(t)
	dir := t.TempDir()
	csv := testutil.DailyCSV(t, dir, "daily.csv", time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC), 3*365, testutil.SeasonalValue)
	dbPath := filepath.Join(dir, "ledger.db")
	outDir := filepath.Join(dir, "out")

	out, err := runCLI(t, "series",
		"-db", dbPath, "-out", outDir,
		"-csv", csv, "-date-column", "Date", "-value-column", "Mean",
		"-range", "2000-01/2001-12", "-max-lag", "12", "-periodic")
	require.NoError(t, err)
	assert.Contains(t, out, "series run ")
	assert.FileExists(t, filepath.Join(outDir, "acf.png"))
	assert.FileExists(t, filepath.Join(outDir, "decomposition.png"))

	ledger, err := db.NewDB(dbPath)
	require.NoError(t, err)
	defer ledger.Close()
	runs, err := ledger.ListRuns("series", 0)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, db.StatusSucceeded, runs[0].Status)
	assert.Contains(t, string(runs[0].Params), `"max_lag":12`)

	listing, err := runCLI(t, "runs", "-db", dbPath)
	require.NoError(t, err)
	assert.Contains(t, listing, runs[0].RunID)
	assert.Contains(t, listing, "succeeded")
}

func TestSeriesCommand_FailureIsRecorded(t *testing.T) {
	quietLogs(t)
	dir := t.TempDir()
	// One year of months is too short for a period-12 decomposition.
	csv := testutil.DailyCSV(t, dir, "short.csv", time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC), 365, testutil.SeasonalValue)
	dbPath := filepath.Join(dir, "ledger.db")

	_, err := runCLI(t, "series", "-db", dbPath, "-out", filepath.Join(dir, "out"),
		"-csv", csv, "-date-column", "Date", "-value-column", "Mean", "-max-lag", "6")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "series:")

	listing, err := runCLI(t, "runs", "-db", dbPath, "-pipeline", "series")
	require.NoError(t, err)
	assert.Contains(t, listing, "failed")
}

func TestSpatialCommand_NoLedger(t *testing.T) {
	quietLogs(t)
	dir := t.TempDir()
	layers := filepath.Join(dir, "layers")
	x0, y0 := 500000.0, 4100000.0
	testutil.WriteFile(t, layers, "sightings.geojson", testutil.PointLayer("EPSG:32610", testutil.GridPoints(x0, y0, 100, 6)))
	testutil.WriteFile(t, layers, "boundary.geojson", testutil.PolygonLayer("EPSG:32610", testutil.Square(x0, y0, 600)))
	outDir := filepath.Join(dir, "out")

	out, err := runCLI(t, "spatial", "-no-ledger", "-out", outDir, "-mode", "interactive",
		"-layers", layers, "-points", "sightings", "-window", "boundary",
		"-target-crs", "EPSG:32610", "-sigma", "50, 100", "-functions", "G",
		"-nsim", "19", "-r-steps", "8", "-dimension", "16", "-seed", "3")
	require.NoError(t, err)
	assert.Contains(t, out, "36 points (36 inside, 0 illegal)")
	assert.FileExists(t, filepath.Join(outDir, "density_sigma_50.html"))
	assert.FileExists(t, filepath.Join(outDir, "envelope_G.html"))
	assert.NoFileExists(t, "pattern-report.db")
}

func TestRecipeCommand(t *testing.T) {
	quietLogs(t)
	dir := t.TempDir()
	testutil.DailyCSV(t, dir, "daily.csv", time.Date(2001, 1, 1, 0, 0, 0, 0, time.UTC), 3*365, testutil.SeasonalValue)
	dbPath := filepath.Join(dir, "ledger.db")
	recipePath := testutil.WriteFile(t, dir, "monthly.hcl", `
output_dir = "${recipe_dir}/plots"
mode       = "html"

series {
  csv          = "${recipe_dir}/daily.csv"
  date_column  = "Date"
  value_column = "Mean"
  granularity  = "month"
  max_lag      = 12
  periodic     = true
}
`)

	out, err := runCLI(t, "run", "-recipe", recipePath, "-db", dbPath)
	require.NoError(t, err)
	assert.Contains(t, out, "series run ")
	assert.FileExists(t, filepath.Join(dir, "plots", "seasonal.html"))

	// -out outranks the recipe.
	override := filepath.Join(dir, "override")
	_, err = runCLI(t, "run", "-recipe", recipePath, "-db", dbPath, "-out", override, "-mode", "static")
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(override, "seasonal.png"))

	listing, err := runCLI(t, "runs", "-db", dbPath, "-limit", "1")
	require.NoError(t, err)
	assert.Contains(t, listing, "RUN ID")
}

func TestRecipeCommand_InvalidBlockRecordsNothing(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "ledger.db")
	recipePath := testutil.WriteFile(t, dir, "bad.hcl", `
series {
  csv          = "daily.csv"
  date_column  = "Date"
  value_column = "Mean"
  granularity  = "fortnight"
}
`)
	_, err := runCLI(t, "run", "-recipe", recipePath, "-db", dbPath)
	require.Error(t, err)
	_, statErr := os.Stat(dbPath)
	assert.True(t, os.IsNotExist(statErr), "ledger should not be created")
}

func TestRunsCommand_Empty(t *testing.T) {
	out, err := runCLI(t, "runs", "-db", filepath.Join(t.TempDir(), "empty.db"))
	require.NoError(t, err)
	assert.Contains(t, out, "no runs recorded")
}

func TestMigrateCommand(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "ledger.db")

	out, err := runCLI(t, "migrate", "-db", dbPath, "up")
	require.NoError(t, err)
	assert.Contains(t, out, "All migrations applied")

	out, err = runCLI(t, "migrate", "-db", dbPath, "status")
	require.NoError(t, err)
	assert.Contains(t, out, "up to date")

	_, err = runCLI(t, "migrate", "-db", dbPath)
	assert.Error(t, err)
}

func TestServeCommand_StopsOnCancel(t *testing.T) {
	dir := t.TempDir()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- runServeCommand(ctx, []string{"-db", filepath.Join(dir, "ledger.db"), "-out", dir, "-listen", "127.0.0.1:0"})
	}()

	time.Sleep(100 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("serve did not stop after cancel")
	}
}
