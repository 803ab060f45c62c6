package series

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/pattern.report/internal/stl"
)

func monthly(t *testing.T, start time.Time, values ...float64) *Series {
	t.Helper()
	idx := make([]time.Time, len(values))
	for i := range idx {
		idx[i] = start.AddDate(0, i, 0)
	}
	s, err := NewSeries("monthly", idx, values)
	require.NoError(t, err)
	return s
}

func TestSeasonalProfile(t *testing.T) {
	vals := make([]float64, 18)
	for i := range vals {
		vals[i] = float64(i)
	}
	s := monthly(t, date(2000, 7, 1), vals...)

	lines, err := SeasonalProfile(s, Month)
	require.NoError(t, err)
	require.Len(t, lines, 2)
	assert.Equal(t, 2000, lines[0].Year)
	assert.Equal(t, []int{7, 8, 9, 10, 11, 12}, lines[0].Positions)
	assert.Equal(t, 2001, lines[1].Year)
	assert.Len(t, lines[1].Positions, 12)
	assert.Equal(t, 6.0, lines[1].Values[0])

	days := daily(t, date(2000, 12, 30), 1, 2, 3)
	dl, err := SeasonalProfile(days, Day)
	require.NoError(t, err)
	assert.Equal(t, []int{365, 366}, dl[0].Positions)
	assert.Equal(t, []int{1}, dl[1].Positions)

	_, err = SeasonalProfile(s, Year)
	assert.Error(t, err)
}

func TestDescribe(t *testing.T) {
	s := daily(t, date(2000, 1, 1), 1, 2, math.NaN(), 3, 4, 5, 6, 7, 8)
	d := Describe(s)
	assert.Equal(t, 8, d.Count)
	assert.Equal(t, 1, d.Missing)
	assert.Equal(t, 4.5, d.Mean)
	assert.Equal(t, 4.5, d.Median)
	assert.Equal(t, 1.0, d.Min)
	assert.Equal(t, 8.0, d.Max)
	assert.Equal(t, 2.5, d.Q1)
	assert.Equal(t, 6.5, d.Q3)
	assert.InDelta(t, 2.449489743, d.StdDev, 1e-9)

	empty := Describe(daily(t, date(2000, 1, 1), math.NaN()))
	assert.Equal(t, 0, empty.Count)
	assert.True(t, math.IsNaN(empty.Mean))
}

func TestDecompose_MonthlyPeriodic(t *testing.T) {
	vals := make([]float64, 24)
	for i := range vals {
		vals[i] = 20 + 5*math.Cos(2*math.Pi*float64(i)/12) + 0.1*float64(i)
	}
	s := monthly(t, date(2000, 1, 1), vals...)

	dec, err := Decompose(s, stl.Options{Period: 12, Periodic: true})
	require.NoError(t, err)
	assert.Equal(t, s.Index, dec.Index)
	for i := 0; i < 12; i++ {
		assert.Equal(t, dec.Seasonal[i], dec.Seasonal[i+12], "calendar month %d", i+1)
	}
	for i, v := range vals {
		got := dec.Seasonal[i] + dec.Trend[i] + dec.Remainder[i]
		assert.InDelta(t, 0, (got-v)/v, 1e-6)
	}

	short := monthly(t, date(2000, 1, 1), vals[:20]...)
	_, err = Decompose(short, stl.Options{Period: 12})
	var ide *stl.InsufficientDataError
	assert.ErrorAs(t, err, &ide)
}
