package series

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const stationCSV = `Date,Station,Mean,Max
7/1/2001,A,10.5,12
7/2/2001,A,NA,13
7/1/2001,B,8,
7/3/2001,A,11,14.5
`

func TestParseDate(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		layout  string
		want    time.Time
		wantErr bool
	}{
		{name: "month day year", in: "7/14/2001", layout: DefaultDateLayout, want: date(2001, 7, 14)},
		{name: "padded", in: " 07/04/2001 ", layout: DefaultDateLayout, want: date(2001, 7, 4)},
		{name: "iso via fallback", in: "2001-07-14", want: date(2001, 7, 14)},
		{name: "text via fallback", in: "Jul 14, 2001", want: date(2001, 7, 14)},
		{name: "day first rejected", in: "14/7/2001", layout: DefaultDateLayout, wantErr: true},
		{name: "empty", in: "", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseDate(tt.in, tt.layout)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLoadCSV_Grouped(t *testing.T) {
	tbl, err := LoadCSV(strings.NewReader(stationCSV), CSVOptions{DateColumn: "Date", GroupColumn: "Station"})
	require.NoError(t, err)
	assert.Equal(t, 4, tbl.Len())
	assert.Equal(t, []string{"Mean", "Max"}, tbl.Columns())

	mean, ok := tbl.Column("Mean")
	require.True(t, ok)
	assert.True(t, math.IsNaN(mean[1]))

	_, err = tbl.Series("Mean")
	var dup *DuplicateIndexError
	assert.True(t, errors.As(err, &dup), "7/1/2001 appears for both stations")

	groups, err := tbl.GroupedSeries("Mean")
	require.NoError(t, err)
	require.Len(t, groups, 2)
	assert.Equal(t, 3, groups["A"].Len())
	assert.Equal(t, []float64{8}, groups["B"].Values)
	assert.Equal(t, "Mean/A", groups["A"].Name)

	maxB, err := tbl.GroupedSeries("Max")
	require.NoError(t, err)
	assert.True(t, math.IsNaN(maxB["B"].Values[0]))
}

func TestLoadCSV_SelectedColumns(t *testing.T) {
	in := "Day;Flow\n1/2/2000;3.5\n1/1/2000;2\n"
	tbl, err := LoadCSV(strings.NewReader(in), CSVOptions{DateColumn: "Day", ValueColumns: []string{"Flow"}, Comma: ';'})
	require.NoError(t, err)

	s, err := tbl.Series("Flow")
	require.NoError(t, err)
	assert.Equal(t, []time.Time{date(2000, 1, 1), date(2000, 1, 2)}, s.Index)
	assert.Equal(t, []float64{2, 3.5}, s.Values)

	_, err = tbl.GroupedSeries("Flow")
	assert.Error(t, err, "no group column")
}

func TestLoadCSV_Errors(t *testing.T) {
	tests := []struct {
		name string
		in   string
		opts CSVOptions
	}{
		{name: "missing date column", in: "A,B\n1,2\n", opts: CSVOptions{DateColumn: "Date"}},
		{name: "missing value column", in: "Date,A\n1/1/2000,2\n", opts: CSVOptions{DateColumn: "Date", ValueColumns: []string{"B"}}},
		{name: "not a number", in: "Date,A\n1/1/2000,abc\n", opts: CSVOptions{DateColumn: "Date"}},
		{name: "no date column given", in: "Date,A\n", opts: CSVOptions{}},
		{name: "empty input", in: "", opts: CSVOptions{DateColumn: "Date"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadCSV(strings.NewReader(tt.in), tt.opts)
			assert.Error(t, err)
		})
	}
}

func TestLoadCSV_DateParseError(t *testing.T) {
	in := "Date,A\n1/1/2000,1\nlast tuesday,2\n"
	_, err := LoadCSV(strings.NewReader(in), CSVOptions{DateColumn: "Date"})
	var dpe *DateParseError
	require.True(t, errors.As(err, &dpe))
	assert.Equal(t, 2, dpe.Row)
	assert.Equal(t, "last tuesday", dpe.Value)
}

func TestLoadCSVFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stations.csv")
	require.NoError(t, os.WriteFile(path, []byte(stationCSV), 0o644))

	tbl, err := LoadCSVFile(path, CSVOptions{DateColumn: "Date", GroupColumn: "Station", ValueColumns: []string{"Max"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"Max"}, tbl.Columns())

	_, err = LoadCSVFile(filepath.Join(t.TempDir(), "missing.csv"), CSVOptions{DateColumn: "Date"})
	assert.Error(t, err)
}
