package ppp

import (
	"context"
	"math"
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDensity_SinglePoint(t *testing.T) {
	p := patternOf(t, 128, orb.Point{64.5, 64.5})
	sigma := 3.0

	d, err := Density(p, sigma, DensityOptions{})
	require.NoError(t, err)
	assert.Equal(t, 128, d.NX)
	assert.Equal(t, 128, d.NY)
	assert.Equal(t, 1.0, d.CellSize)

	want := 1 / (2 * math.Pi * sigma * sigma)
	assert.InDelta(t, want, d.At(64, 64), 1e-12)
	assert.InDelta(t, want, d.Max(), 1e-12)

	// the kernel integrates to one point's worth of intensity
	var mass float64
	for _, v := range d.Values {
		mass += v * d.CellSize * d.CellSize
	}
	assert.InDelta(t, 1.0, mass, 1e-3)
}

func TestDensity_LargerSigmaLowersPeak(t *testing.T) {
	pts := []orb.Point{{50, 50}, {50.5, 50}, {50, 50.5}, {49.5, 49.8}, {50.2, 49.6}, {80, 20}}
	p := patternOf(t, 100, pts...)

	surfaces, err := DensitySweep(context.Background(), p, []float64{2, 4, 8, 16}, DensityOptions{Dimension: 100})
	require.NoError(t, err)
	require.Len(t, surfaces, 4)
	for i := 1; i < len(surfaces); i++ {
		assert.Less(t, surfaces[i].Max(), surfaces[i-1].Max(),
			"max density at sigma %g should be below sigma %g", surfaces[i].Sigma, surfaces[i-1].Sigma)
	}
}

func TestDensitySweep_Cancelled(t *testing.T) {
	p := patternOf(t, 100, orb.Point{50, 50})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := DensitySweep(ctx, p, []float64{2, 4}, DensityOptions{Dimension: 20})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestDensity_OutsideWindowIsNaN(t *testing.T) {
	tri, err := NewWindow(orb.MultiPolygon{{{{0, 0}, {10, 0}, {0, 10}, {0, 0}}}}, testCRS)
	require.NoError(t, err)
	p, err := NewPattern(ObservationSet{CRS: testCRS, Points: []orb.Point{{2, 2}, {20, 20}}}, tri)
	require.NoError(t, err)

	d, err := Density(p, 1, DensityOptions{Dimension: 10})
	require.NoError(t, err)
	assert.True(t, math.IsNaN(d.At(9, 9)))
	assert.False(t, math.IsNaN(d.At(0, 0)))
	assert.False(t, math.IsNaN(d.Min()))
}

func TestDensity_EdgeCorrection(t *testing.T) {
	p := patternOf(t, 50, orb.Point{0.5, 0.5}, orb.Point{25.5, 25.5})

	plain, err := Density(p, 2, DensityOptions{Dimension: 50})
	require.NoError(t, err)
	corrected, err := Density(p, 2, DensityOptions{Dimension: 50, EdgeCorrect: true})
	require.NoError(t, err)

	// at the corner cell only about a third of the kernel mass is inside
	assert.Greater(t, corrected.At(0, 0), 2*plain.At(0, 0))
	// in the interior the kernel is fully inside
	assert.InDelta(t, plain.At(25, 25), corrected.At(25, 25), plain.At(25, 25)*1e-3)
}

func TestDensity_InvalidSigma(t *testing.T) {
	p := patternOf(t, 10, orb.Point{5, 5})
	for _, sigma := range []float64{0, -1, math.NaN(), math.Inf(1)} {
		_, err := Density(p, sigma, DensityOptions{})
		assert.Error(t, err, "sigma=%g", sigma)
	}
}
