// Package render draws analysis results as static PNG plots (gonum/plot) or
// interactive HTML charts (go-echarts). Every method writes one artifact
// into the renderer's output directory and returns its path.
package render

import (
	"fmt"
	"image/color"
	"os"
	"path/filepath"
	"strings"

	"gonum.org/v1/plot/palette"
	"gonum.org/v1/plot/vg"

	"github.com/banshee-data/pattern.report/internal/security"
)

// Mode selects the output format.
type Mode int

const (
	// Static renders PNG images.
	Static Mode = iota
	// Interactive renders self-contained HTML pages.
	Interactive
)

func (m Mode) String() string {
	switch m {
	case Static:
		return "static"
	case Interactive:
		return "interactive"
	}
	return fmt.Sprintf("Mode(%d)", int(m))
}

// ParseMode accepts "static" (or "png") and "interactive" (or "html").
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "static", "png":
		return Static, nil
	case "interactive", "html":
		return Interactive, nil
	}
	return Static, fmt.Errorf("unknown render mode %q", s)
}

const (
	defaultWidth  = 10 * vg.Inch
	defaultHeight = 6 * vg.Inch
	// screenDPI converts plot lengths to CSS pixels for HTML output.
	screenDPI = 96
)

// Renderer writes plots to OutDir. Width and Height default to 10x6 inches.
type Renderer struct {
	Mode   Mode
	OutDir string
	Width  vg.Length
	Height vg.Length
	// AssetsHost overrides where HTML pages load the echarts script from.
	AssetsHost string
}

// New returns a renderer writing into outDir.
func New(mode Mode, outDir string) *Renderer {
	return &Renderer{Mode: mode, OutDir: outDir}
}

func (r *Renderer) size() (w, h vg.Length) {
	w, h = r.Width, r.Height
	if w <= 0 {
		w = defaultWidth
	}
	if h <= 0 {
		h = defaultHeight
	}
	return w, h
}

func (r *Renderer) pixels() (w, h string) {
	wl, hl := r.size()
	return fmt.Sprintf("%.0fpx", wl.Dots(screenDPI)), fmt.Sprintf("%.0fpx", hl.Dots(screenDPI))
}

func (r *Renderer) ext() string {
	if r.Mode == Interactive {
		return ".html"
	}
	return ".png"
}

// artifactPath builds the output path for name, creating OutDir if needed,
// and rejects anything that would land outside OutDir.
func (r *Renderer) artifactPath(name string) (string, error) {
	if r.OutDir == "" {
		return "", fmt.Errorf("render: output directory not set")
	}
	if err := os.MkdirAll(r.OutDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}
	path := filepath.Join(r.OutDir, security.SanitizeFilename(name)+r.ext())
	if err := security.ValidatePathWithinDirectory(path, r.OutDir); err != nil {
		return "", err
	}
	return path, nil
}

// generateColors returns n distinct colours spaced evenly around the hue wheel.
func generateColors(n int) []color.Color {
	if n <= 0 {
		return nil
	}
	// n+1 stops so the last hue stays short of wrapping back to red.
	return palette.Rainbow(n+1, palette.Red, 1, 0.8, 0.85, 1).Colors()[:n]
}

// hexColor formats c as #rrggbb for echarts.
func hexColor(c color.Color) string {
	r, g, b, _ := c.RGBA()
	return fmt.Sprintf("#%02x%02x%02x", r>>8, g>>8, b>>8)
}
