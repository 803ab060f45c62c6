package db

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Run statuses.
const (
	StatusRunning   = "running"
	StatusSucceeded = "succeeded"
	StatusFailed    = "failed"
)

// ErrRunNotFound is returned when a run id is not in the ledger.
var ErrRunNotFound = errors.New("run not found")

// Run is one pipeline execution.
type Run struct {
	RunID      string          `json:"run_id"`
	Pipeline   string          `json:"pipeline"`
	Params     json.RawMessage `json:"params"`
	Status     string          `json:"status"`
	Error      *string         `json:"error,omitempty"`
	StartedAt  time.Time       `json:"started_at"`
	FinishedAt *time.Time      `json:"finished_at,omitempty"`
}

// Duration is the wall time of a finished run, or zero while it runs.
func (r *Run) Duration() time.Duration {
	if r.FinishedAt == nil {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// Artifact is a file a run wrote.
type Artifact struct {
	ArtifactID string    `json:"artifact_id"`
	RunID      string    `json:"run_id"`
	Kind       string    `json:"kind"`
	Path       string    `json:"path"`
	CreatedAt  time.Time `json:"created_at"`
}

// Metric is a named scalar a run produced.
type Metric struct {
	Name  string  `json:"name"`
	Value float64 `json:"value"`
}

// StartRun inserts a running run with params stored as JSON and returns its
// id.
func (db *DB) StartRun(pipeline string, params interface{}) (string, error) {
	paramsJSON, err := json.Marshal(params)
	if err != nil {
		return "", fmt.Errorf("failed to encode run params: %w", err)
	}
	runID := uuid.NewString()
	_, err = db.Exec(`
		INSERT INTO analysis_runs (run_id, pipeline, params_json, status, started_at)
		VALUES (?, ?, ?, ?, ?)
	`, runID, pipeline, string(paramsJSON), StatusRunning, db.clock.Now().UnixNano())
	if err != nil {
		return "", fmt.Errorf("failed to insert run: %w", err)
	}
	return runID, nil
}

// AddArtifact records a file written by runID.
func (db *DB) AddArtifact(runID, kind, path string) error {
	_, err := db.Exec(`
		INSERT INTO run_artifacts (artifact_id, run_id, kind, path, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, uuid.NewString(), runID, kind, path, db.clock.Now().UnixNano())
	if err != nil {
		return fmt.Errorf("failed to insert artifact: %w", err)
	}
	return nil
}

// AddMetric records or replaces a named scalar for runID.
func (db *DB) AddMetric(runID, name string, value float64) error {
	_, err := db.Exec(`
		INSERT INTO run_metrics (run_id, name, value) VALUES (?, ?, ?)
		ON CONFLICT (run_id, name) DO UPDATE SET value = excluded.value
	`, runID, name, value)
	if err != nil {
		return fmt.Errorf("failed to insert metric %s: %w", name, err)
	}
	return nil
}

// FinishRun marks runID succeeded, or failed with runErr's message.
func (db *DB) FinishRun(runID string, runErr error) error {
	status := StatusSucceeded
	var msg sql.NullString
	if runErr != nil {
		status = StatusFailed
		msg = sql.NullString{String: runErr.Error(), Valid: true}
	}
	res, err := db.Exec(`
		UPDATE analysis_runs SET status = ?, error = ?, finished_at = ?
		WHERE run_id = ?
	`, status, msg, db.clock.Now().UnixNano(), runID)
	if err != nil {
		return fmt.Errorf("failed to finish run: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	return nil
}

const runColumns = `run_id, pipeline, params_json, status, error, started_at, finished_at`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRun(row rowScanner) (*Run, error) {
	var (
		r          Run
		params     string
		errMsg     sql.NullString
		startedAt  int64
		finishedAt sql.NullInt64
	)
	if err := row.Scan(&r.RunID, &r.Pipeline, &params, &r.Status, &errMsg, &startedAt, &finishedAt); err != nil {
		return nil, err
	}
	r.Params = json.RawMessage(params)
	if errMsg.Valid {
		r.Error = &errMsg.String
	}
	r.StartedAt = time.Unix(0, startedAt).UTC()
	if finishedAt.Valid {
		t := time.Unix(0, finishedAt.Int64).UTC()
		r.FinishedAt = &t
	}
	return &r, nil
}

// GetRun retrieves a run by id.
func (db *DB) GetRun(runID string) (*Run, error) {
	row := db.QueryRow(`SELECT `+runColumns+` FROM analysis_runs WHERE run_id = ?`, runID)
	r, err := scanRun(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	return r, nil
}

// ListRuns returns the most recent runs first, optionally restricted to one
// pipeline. limit <= 0 returns every run.
func (db *DB) ListRuns(pipeline string, limit int) ([]Run, error) {
	query := `SELECT ` + runColumns + ` FROM analysis_runs`
	var args []interface{}
	if pipeline != "" {
		query += ` WHERE pipeline = ?`
		args = append(args, pipeline)
	}
	query += ` ORDER BY started_at DESC, run_id`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, *r)
	}
	return runs, rows.Err()
}

// ListArtifacts returns the artifacts of runID in creation order.
func (db *DB) ListArtifacts(runID string) ([]Artifact, error) {
	rows, err := db.Query(`
		SELECT artifact_id, run_id, kind, path, created_at
		FROM run_artifacts
		WHERE run_id = ?
		ORDER BY created_at, path
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to list artifacts: %w", err)
	}
	defer rows.Close()

	var artifacts []Artifact
	for rows.Next() {
		var a Artifact
		var createdAt int64
		if err := rows.Scan(&a.ArtifactID, &a.RunID, &a.Kind, &a.Path, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan artifact: %w", err)
		}
		a.CreatedAt = time.Unix(0, createdAt).UTC()
		artifacts = append(artifacts, a)
	}
	return artifacts, rows.Err()
}

// ListMetrics returns the metrics of runID sorted by name.
func (db *DB) ListMetrics(runID string) ([]Metric, error) {
	rows, err := db.Query(`SELECT name, value FROM run_metrics WHERE run_id = ? ORDER BY name`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to list metrics: %w", err)
	}
	defer rows.Close()

	var metrics []Metric
	for rows.Next() {
		var m Metric
		if err := rows.Scan(&m.Name, &m.Value); err != nil {
			return nil, fmt.Errorf("failed to scan metric: %w", err)
		}
		metrics = append(metrics, m)
	}
	return metrics, rows.Err()
}

// DeleteRun removes a run with its artifacts and metrics. The files
// themselves are left on disk.
func (db *DB) DeleteRun(runID string) error {
	res, err := db.Exec(`DELETE FROM analysis_runs WHERE run_id = ?`, runID)
	if err != nil {
		return fmt.Errorf("failed to delete run: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	return nil
}
