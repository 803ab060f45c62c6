package testutil

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// WriteFile writes content to dir/name and returns the path.
func WriteFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir %s: %v", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	return path
}

type featureCollection struct {
	Type     string                 `json:"type"`
	CRS      map[string]interface{} `json:"crs,omitempty"`
	Features []feature              `json:"features"`
}

type feature struct {
	Type       string            `json:"type"`
	Geometry   geometry          `json:"geometry"`
	Properties map[string]string `json:"properties"`
}

type geometry struct {
	Type        string      `json:"type"`
	Coordinates interface{} `json:"coordinates"`
}

func collection(crs string, features []feature) string {
	fc := featureCollection{Type: "FeatureCollection", Features: features}
	if crs != "" {
		fc.CRS = map[string]interface{}{
			"type":       "name",
			"properties": map[string]string{"name": crs},
		}
	}
	data, err := json.Marshal(fc)
	if err != nil {
		panic(err)
	}
	return string(data)
}

// PointLayer returns a GeoJSON FeatureCollection of points. A non-empty crs
// is written as the legacy named crs member. Each point gets an "id"
// property.
func PointLayer(crs string, pts [][2]float64) string {
	features := make([]feature, len(pts))
	for i, p := range pts {
		features[i] = feature{
			Type:       "Feature",
			Geometry:   geometry{Type: "Point", Coordinates: []float64{p[0], p[1]}},
			Properties: map[string]string{"id": fmt.Sprint(i)},
		}
	}
	return collection(crs, features)
}

// PolygonLayer returns a GeoJSON FeatureCollection with one polygon. The
// first ring is the exterior; the ring is closed if needed.
func PolygonLayer(crs string, rings ...[][2]float64) string {
	coords := make([][][]float64, len(rings))
	for i, ring := range rings {
		r := make([][]float64, 0, len(ring)+1)
		for _, p := range ring {
			r = append(r, []float64{p[0], p[1]})
		}
		if len(ring) > 0 && ring[0] != ring[len(ring)-1] {
			r = append(r, []float64{ring[0][0], ring[0][1]})
		}
		coords[i] = r
	}
	return collection(crs, []feature{{
		Type:       "Feature",
		Geometry:   geometry{Type: "Polygon", Coordinates: coords},
		Properties: map[string]string{},
	}})
}

// Square returns the exterior ring of an axis-aligned square.
func Square(x0, y0, side float64) [][2]float64 {
	return [][2]float64{{x0, y0}, {x0 + side, y0}, {x0 + side, y0 + side}, {x0, y0 + side}, {x0, y0}}
}

// GridPoints returns an n by n lattice of points spaced step apart,
// starting half a step inside (x0, y0).
func GridPoints(x0, y0, step float64, n int) [][2]float64 {
	pts := make([][2]float64, 0, n*n)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			pts = append(pts, [2]float64{x0 + (float64(i)+0.5)*step, y0 + (float64(j)+0.5)*step})
		}
	}
	return pts
}

// SeasonalValue is a smooth yearly cycle on top of a slow upward trend,
// evaluated at day offset d from the start of a series.
func SeasonalValue(d int) float64 {
	return 10 + 0.002*float64(d) + 3*math.Sin(2*math.Pi*float64(d)/365.25)
}

// DailyCSV writes a two-column "Date,Mean" table with one row per day in
// month/day/year form and returns its path. value is called with the day
// offset; NaN is written as an empty cell.
func DailyCSV(t *testing.T, dir, name string, start time.Time, days int, value func(int) float64) string {
	t.Helper()
	var b strings.Builder
	b.WriteString("Date,Mean\n")
	for d := 0; d < days; d++ {
		day := start.AddDate(0, 0, d)
		v := value(d)
		cell := ""
		if !math.IsNaN(v) {
			cell = fmt.Sprintf("%.4f", v)
		}
		fmt.Fprintf(&b, "%d/%d/%d,%s\n", int(day.Month()), day.Day(), day.Year(), cell)
	}
	return WriteFile(t, dir, name, b.String())
}
