package api

import (
	"errors"
	"fmt"
	"log"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/banshee-data/pattern.report/internal/db"
	"github.com/banshee-data/pattern.report/internal/httputil"
	"github.com/banshee-data/pattern.report/internal/security"
	"github.com/banshee-data/pattern.report/internal/version"
)

// ANSI escape codes for cyan and reset
const colorCyan = "\033[36m"
const colorReset = "\033[0m"
const colorYellow = "\033[33m"
const colorBoldGreen = "\033[1;32m"
const colorBoldRed = "\033[1;31m"

// defaultRunLimit caps /api/runs when no limit is given.
const defaultRunLimit = 100

// RunStore is the read side of the run ledger.
type RunStore interface {
	ListRuns(pipeline string, limit int) ([]db.Run, error)
	GetRun(runID string) (*db.Run, error)
	ListArtifacts(runID string) ([]db.Artifact, error)
	ListMetrics(runID string) ([]db.Metric, error)
}

// Server browses past runs and serves the artifacts they wrote.
type Server struct {
	runs        RunStore
	artifactDir string
}

// NewServer returns a Server reading runs from store. Artifact files are
// served only from beneath artifactDir.
func NewServer(store RunStore, artifactDir string) *Server {
	return &Server{
		runs:        store,
		artifactDir: artifactDir,
	}
}

type loggingResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.statusCode = code
	lrw.ResponseWriter.WriteHeader(code)
}

func (lrw *loggingResponseWriter) Flush() {
	if flusher, ok := lrw.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

func statusCodeColor(statusCode int) string {
	switch {
	case statusCode >= 200 && statusCode < 300:
		return colorBoldGreen + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 300 && statusCode < 400:
		return colorYellow + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 400:
		return colorBoldRed + strconv.Itoa(statusCode) + colorReset
	default:
		return strconv.Itoa(statusCode)
	}
}

// LoggingMiddleware logs method, path, query, status, and duration
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lrw := &loggingResponseWriter{w, http.StatusOK}
		next.ServeHTTP(lrw, r)
		log.Printf(
			"[%s] %s %s%s%s %vms",
			statusCodeColor(lrw.statusCode), r.Method,
			colorCyan, r.RequestURI, colorReset,
			float64(time.Since(start).Nanoseconds())/1e6,
		)
	})
}

// ServeMux registers the API routes on a new mux.
func (s *Server) ServeMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/version", s.showVersion)
	mux.HandleFunc("/api/runs", s.listRuns)
	mux.HandleFunc("/api/runs/{id}", s.showRun)
	mux.HandleFunc("/api/runs/{id}/artifacts", s.listArtifacts)
	mux.HandleFunc("/artifacts/{path...}", s.serveArtifact)
	return mux
}

func (s *Server) showVersion(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w, http.MethodGet)
		return
	}
	httputil.WriteJSONOK(w, version.Current())
}

func (s *Server) listRuns(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w, http.MethodGet)
		return
	}

	limit, err := httputil.QueryInt(r, "limit", defaultRunLimit, 1)
	if err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}

	runs, err := s.runs.ListRuns(r.URL.Query().Get("pipeline"), limit)
	if err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("Failed to list runs: %v", err))
		return
	}
	if runs == nil {
		runs = []db.Run{}
	}
	httputil.WriteJSONOK(w, runs)
}

// runDetail is a run with its metrics keyed by name.
type runDetail struct {
	*db.Run
	DurationSeconds float64            `json:"duration_seconds,omitempty"`
	Metrics         map[string]float64 `json:"metrics"`
}

func (s *Server) showRun(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w, http.MethodGet)
		return
	}

	run, ok := s.lookupRun(w, r.PathValue("id"))
	if !ok {
		return
	}
	metrics, err := s.runs.ListMetrics(run.RunID)
	if err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("Failed to list metrics: %v", err))
		return
	}

	detail := runDetail{Run: run, DurationSeconds: run.Duration().Seconds(), Metrics: make(map[string]float64, len(metrics))}
	for _, m := range metrics {
		detail.Metrics[m.Name] = m.Value
	}
	httputil.WriteJSONOK(w, detail)
}

// artifactView adds the download URL of an artifact, empty when the file
// lies outside the served directory.
type artifactView struct {
	db.Artifact
	URL string `json:"url,omitempty"`
}

func (s *Server) listArtifacts(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w, http.MethodGet)
		return
	}

	run, ok := s.lookupRun(w, r.PathValue("id"))
	if !ok {
		return
	}
	artifacts, err := s.runs.ListArtifacts(run.RunID)
	if err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("Failed to list artifacts: %v", err))
		return
	}

	views := make([]artifactView, len(artifacts))
	for i, a := range artifacts {
		views[i] = artifactView{Artifact: a, URL: s.artifactURL(a.Path)}
	}
	httputil.WriteJSONOK(w, views)
}

func (s *Server) lookupRun(w http.ResponseWriter, id string) (*db.Run, bool) {
	run, err := s.runs.GetRun(id)
	if errors.Is(err, db.ErrRunNotFound) {
		httputil.NotFound(w, fmt.Sprintf("run %s not found", id))
		return nil, false
	}
	if err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("Failed to get run: %v", err))
		return nil, false
	}
	return run, true
}

func (s *Server) artifactURL(path string) string {
	rel, err := security.RelWithin(path, s.artifactDir)
	if err != nil {
		return ""
	}
	return "/artifacts/" + rel
}

func (s *Server) serveArtifact(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		httputil.MethodNotAllowed(w, http.MethodGet, http.MethodHead)
		return
	}

	rel := r.PathValue("path")
	if rel == "" || strings.HasSuffix(rel, "/") {
		httputil.NotFound(w, "artifact not found")
		return
	}
	path := filepath.Join(s.artifactDir, filepath.FromSlash(rel))
	if err := security.ValidatePathWithinDirectory(path, s.artifactDir); err != nil {
		httputil.BadRequest(w, "invalid artifact path")
		return
	}
	http.ServeFile(w, r, path)
}
