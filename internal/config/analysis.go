package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// DefaultConfigPath is the path to the canonical analysis defaults file.
const DefaultConfigPath = "config/analysis.defaults.json"

// AnalysisConfig holds the defaults the CLI falls back to when a flag or
// recipe leaves a parameter unset. Every field is optional; the Get*
// accessors supply compiled defaults for anything missing from the file.
type AnalysisConfig struct {
	// Output
	OutputDir *string `json:"output_dir,omitempty"`
	Mode      *string `json:"mode,omitempty"` // "static" or "interactive"
	Database  *string `json:"database,omitempty"`
	Listen    *string `json:"listen,omitempty"`

	// Point pattern params
	Sigmas           []float64 `json:"sigmas,omitempty"`
	DensityDimension *int      `json:"density_dimension,omitempty"`
	EdgeCorrect      *bool     `json:"edge_correct,omitempty"`
	Functions        []string  `json:"functions,omitempty"`
	NRank            *int      `json:"nrank,omitempty"`
	RSteps           *int      `json:"r_steps,omitempty"`
	Correction       *string   `json:"correction,omitempty"`
	Seed             *uint64   `json:"seed,omitempty"`
	Workers          *int      `json:"workers,omitempty"`

	// Time series params
	DateLayout     *string `json:"date_layout,omitempty"`
	Granularity    *string `json:"granularity,omitempty"`
	Reducer        *string `json:"reducer,omitempty"`
	RollingBefore  *int    `json:"rolling_before,omitempty"`
	RollingAfter   *int    `json:"rolling_after,omitempty"`
	MaxLag         *int    `json:"max_lag,omitempty"`
	SeasonalWindow *int    `json:"seasonal_window,omitempty"`
	Periodic       *bool   `json:"periodic,omitempty"`
	Robust         *bool   `json:"robust,omitempty"`
}

// EmptyAnalysisConfig returns an AnalysisConfig with every field unset.
func EmptyAnalysisConfig() *AnalysisConfig {
	return &AnalysisConfig{}
}

// LoadAnalysisConfig loads an AnalysisConfig from a JSON file. The file must
// have a .json extension and be under 1MB. Fields omitted from the file keep
// their compiled defaults, so partial configs are safe.
func LoadAnalysisConfig(path string) (*AnalysisConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyAnalysisConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// MustLoadDefaultConfig loads DefaultConfigPath, searching the current
// directory and its parents. Panics if the file cannot be loaded; intended
// for test setup.
func MustLoadDefaultConfig() *AnalysisConfig {
	candidates := []string{
		DefaultConfigPath,
		"../../" + DefaultConfigPath,    // from internal/config/
		"../../../" + DefaultConfigPath, // deeper packages
	}
	for _, path := range candidates {
		if cfg, err := LoadAnalysisConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

// Validate checks that the configuration values are valid.
func (c *AnalysisConfig) Validate() error {
	if c.Mode != nil {
		switch strings.ToLower(*c.Mode) {
		case "", "static", "png", "interactive", "html":
		default:
			return fmt.Errorf("mode must be static or interactive, got %q", *c.Mode)
		}
	}

	for _, s := range c.Sigmas {
		if !(s > 0) {
			return fmt.Errorf("sigmas must be positive, got %g", s)
		}
	}

	if c.DensityDimension != nil && *c.DensityDimension < 2 {
		return fmt.Errorf("density_dimension must be at least 2, got %d", *c.DensityDimension)
	}

	if c.NRank != nil && *c.NRank < 1 {
		return fmt.Errorf("nrank must be at least 1, got %d", *c.NRank)
	}

	if c.RSteps != nil && *c.RSteps < 2 {
		return fmt.Errorf("r_steps must be at least 2, got %d", *c.RSteps)
	}

	if c.Workers != nil && *c.Workers < 0 {
		return fmt.Errorf("workers must be non-negative, got %d", *c.Workers)
	}

	if c.RollingBefore != nil && *c.RollingBefore < 0 {
		return fmt.Errorf("rolling_before must be non-negative, got %d", *c.RollingBefore)
	}
	if c.RollingAfter != nil && *c.RollingAfter < 0 {
		return fmt.Errorf("rolling_after must be non-negative, got %d", *c.RollingAfter)
	}

	if c.MaxLag != nil && *c.MaxLag < 1 {
		return fmt.Errorf("max_lag must be at least 1, got %d", *c.MaxLag)
	}

	if c.SeasonalWindow != nil {
		if w := *c.SeasonalWindow; w < 3 || w%2 == 0 {
			return fmt.Errorf("seasonal_window must be odd and at least 3, got %d", w)
		}
	}

	return nil
}

// GetOutputDir returns the output_dir value or the default.
func (c *AnalysisConfig) GetOutputDir() string {
	if c.OutputDir == nil || *c.OutputDir == "" {
		return "out" // default
	}
	return *c.OutputDir
}

// GetMode returns the mode value or the default.
func (c *AnalysisConfig) GetMode() string {
	if c.Mode == nil || *c.Mode == "" {
		return "static" // default
	}
	return *c.Mode
}

// GetDatabase returns the database value or the default.
func (c *AnalysisConfig) GetDatabase() string {
	if c.Database == nil || *c.Database == "" {
		return "pattern-report.db" // default
	}
	return *c.Database
}

// GetListen returns the listen value or the default.
func (c *AnalysisConfig) GetListen() string {
	if c.Listen == nil || *c.Listen == "" {
		return ":8080" // default
	}
	return *c.Listen
}

// GetSigmas returns a copy of the sigmas or nil when none are configured.
func (c *AnalysisConfig) GetSigmas() []float64 {
	if len(c.Sigmas) == 0 {
		return nil
	}
	return append([]float64(nil), c.Sigmas...)
}

// GetDensityDimension returns the density_dimension value or the default.
func (c *AnalysisConfig) GetDensityDimension() int {
	if c.DensityDimension == nil {
		return 128 // default
	}
	return *c.DensityDimension
}

// GetEdgeCorrect returns the edge_correct value or the default.
func (c *AnalysisConfig) GetEdgeCorrect() bool {
	if c.EdgeCorrect == nil {
		return true // default
	}
	return *c.EdgeCorrect
}

// GetFunctions returns the distance functions or the default G and L.
func (c *AnalysisConfig) GetFunctions() []string {
	if len(c.Functions) == 0 {
		return []string{"G", "L"} // default
	}
	return append([]string(nil), c.Functions...)
}

// GetNRank returns the nrank value or the default.
func (c *AnalysisConfig) GetNRank() int {
	if c.NRank == nil {
		return 1 // default
	}
	return *c.NRank
}

// GetRSteps returns the r_steps value or the default.
func (c *AnalysisConfig) GetRSteps() int {
	if c.RSteps == nil {
		return 64 // default
	}
	return *c.RSteps
}

// GetCorrection returns the correction value or the default.
func (c *AnalysisConfig) GetCorrection() string {
	if c.Correction == nil || *c.Correction == "" {
		return "border" // default
	}
	return *c.Correction
}

// GetSeed returns the seed value or the default.
func (c *AnalysisConfig) GetSeed() uint64 {
	if c.Seed == nil {
		return 1 // default
	}
	return *c.Seed
}

// GetWorkers returns the workers value or the default.
func (c *AnalysisConfig) GetWorkers() int {
	if c.Workers == nil {
		return 4 // default
	}
	return *c.Workers
}

// GetDateLayout returns the date_layout value or the default.
func (c *AnalysisConfig) GetDateLayout() string {
	if c.DateLayout == nil || *c.DateLayout == "" {
		return "1/2/2006" // default
	}
	return *c.DateLayout
}

// GetGranularity returns the granularity value or the default.
func (c *AnalysisConfig) GetGranularity() string {
	if c.Granularity == nil || *c.Granularity == "" {
		return "month" // default
	}
	return *c.Granularity
}

// GetReducer returns the reducer value or the default.
func (c *AnalysisConfig) GetReducer() string {
	if c.Reducer == nil || *c.Reducer == "" {
		return "mean" // default
	}
	return *c.Reducer
}

// GetRollingBefore returns the rolling_before value or the default.
func (c *AnalysisConfig) GetRollingBefore() int {
	if c.RollingBefore == nil {
		return 3 // default
	}
	return *c.RollingBefore
}

// GetRollingAfter returns the rolling_after value or the default.
func (c *AnalysisConfig) GetRollingAfter() int {
	if c.RollingAfter == nil {
		return 3 // default
	}
	return *c.RollingAfter
}

// GetMaxLag returns the max_lag value or the default.
func (c *AnalysisConfig) GetMaxLag() int {
	if c.MaxLag == nil {
		return 24 // default
	}
	return *c.MaxLag
}

// GetSeasonalWindow returns the seasonal_window value or the default.
func (c *AnalysisConfig) GetSeasonalWindow() int {
	if c.SeasonalWindow == nil {
		return 7 // default
	}
	return *c.SeasonalWindow
}

// GetPeriodic returns the periodic value or the default.
func (c *AnalysisConfig) GetPeriodic() bool {
	if c.Periodic == nil {
		return false // default
	}
	return *c.Periodic
}

// GetRobust returns the robust value or the default.
func (c *AnalysisConfig) GetRobust() bool {
	if c.Robust == nil {
		return false // default
	}
	return *c.Robust
}
