package series

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"
)

// DefaultDateLayout reads month/day/year dates such as "7/14/2001".
const DefaultDateLayout = "1/2/2006"

// fallbackLayouts are tried by ParseDate when no layout is given.
var fallbackLayouts = []string{
	DefaultDateLayout,
	time.DateOnly,
	"1/2/06",
	"Jan 2, 2006",
	"January 2, 2006",
	"2 Jan 2006",
	"2 January 2006",
	time.RFC3339,
}

// DateParseError reports a date cell that could not be read.
type DateParseError struct {
	Row   int // 1-based data row, excluding the header
	Value string
	Err   error
}

func (e *DateParseError) Error() string {
	return fmt.Sprintf("row %d: cannot parse date %q: %v", e.Row, e.Value, e.Err)
}

func (e *DateParseError) Unwrap() error { return e.Err }

// ParseDate reads s with layout as a calendar date at UTC midnight. An empty
// layout tries a list of common formats.
func ParseDate(s, layout string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, errors.New("empty date")
	}
	layouts := fallbackLayouts
	if layout != "" {
		layouts = []string{layout}
	}
	var firstErr error
	for _, l := range layouts {
		t, err := time.Parse(l, s)
		if err == nil {
			y, m, d := t.Date()
			return time.Date(y, m, d, 0, 0, 0, 0, time.UTC), nil
		}
		if firstErr == nil {
			firstErr = err
		}
	}
	return time.Time{}, firstErr
}

// CSVOptions selects the columns of a delimited table.
type CSVOptions struct {
	DateColumn   string
	DateLayout   string   // default DefaultDateLayout
	ValueColumns []string // default every column other than the date and group columns
	GroupColumn  string   // optional; rows sharing a group form one series
	Comma        rune     // default ','
}

// Table is a parsed delimited file: one date per row, numeric value columns
// and an optional group key.
type Table struct {
	Dates   []time.Time
	Groups  []string // nil without a group column
	columns map[string][]float64
	order   []string
}

// Len is the number of data rows.
func (t *Table) Len() int { return len(t.Dates) }

// Columns lists the value columns in file order.
func (t *Table) Columns() []string { return append([]string(nil), t.order...) }

// Column returns the raw values of col in row order.
func (t *Table) Column(col string) ([]float64, bool) {
	v, ok := t.columns[col]
	return v, ok
}

// Series indexes col by date. Two rows with the same date give a
// *DuplicateIndexError.
func (t *Table) Series(col string) (*Series, error) {
	vals, ok := t.columns[col]
	if !ok {
		return nil, fmt.Errorf("unknown column %q", col)
	}
	return NewSeries(col, t.Dates, vals)
}

// GroupedSeries returns one series of col per group key. Dates only need to
// be unique within a group.
func (t *Table) GroupedSeries(col string) (map[string]*Series, error) {
	if t.Groups == nil {
		return nil, errors.New("table has no group column")
	}
	vals, ok := t.columns[col]
	if !ok {
		return nil, fmt.Errorf("unknown column %q", col)
	}
	idx := make(map[string][]time.Time)
	v := make(map[string][]float64)
	for i, g := range t.Groups {
		idx[g] = append(idx[g], t.Dates[i])
		v[g] = append(v[g], vals[i])
	}
	out := make(map[string]*Series, len(idx))
	keys := make([]string, 0, len(idx))
	for g := range idx {
		keys = append(keys, g)
	}
	sort.Strings(keys)
	for _, g := range keys {
		s, err := NewSeries(col+"/"+g, idx[g], v[g])
		if err != nil {
			return nil, err
		}
		out[g] = s
	}
	return out, nil
}

// LoadCSVFile opens path and parses it with LoadCSV.
func LoadCSVFile(path string, opts CSVOptions) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open table: %w", err)
	}
	defer f.Close()
	return LoadCSV(f, opts)
}

// LoadCSV reads a delimited table with a header row. Empty, "NA" and "NaN"
// cells become NaN.
func LoadCSV(r io.Reader, opts CSVOptions) (*Table, error) {
	if opts.DateColumn == "" {
		return nil, errors.New("date column is required")
	}
	layout := opts.DateLayout
	if layout == "" {
		layout = DefaultDateLayout
	}

	reader := csv.NewReader(r)
	if opts.Comma != 0 {
		reader.Comma = opts.Comma
	}
	reader.TrimLeadingSpace = true

	headers, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV headers: %w", err)
	}
	pos := make(map[string]int, len(headers))
	for i, h := range headers {
		pos[strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))] = i
	}

	dateCol, ok := pos[opts.DateColumn]
	if !ok {
		return nil, fmt.Errorf("date column %q not in header", opts.DateColumn)
	}
	groupCol := -1
	if opts.GroupColumn != "" {
		if groupCol, ok = pos[opts.GroupColumn]; !ok {
			return nil, fmt.Errorf("group column %q not in header", opts.GroupColumn)
		}
	}

	valueCols := opts.ValueColumns
	if len(valueCols) == 0 {
		for _, h := range headers {
			h = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
			if h != opts.DateColumn && h != opts.GroupColumn {
				valueCols = append(valueCols, h)
			}
		}
	}
	valuePos := make([]int, len(valueCols))
	for i, c := range valueCols {
		if valuePos[i], ok = pos[c]; !ok {
			return nil, fmt.Errorf("value column %q not in header", c)
		}
	}

	t := &Table{columns: make(map[string][]float64, len(valueCols)), order: valueCols}
	if groupCol >= 0 {
		t.Groups = []string{}
	}
	for row := 1; ; row++ {
		rec, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", row, err)
		}

		d, err := ParseDate(rec[dateCol], layout)
		if err != nil {
			return nil, &DateParseError{Row: row, Value: rec[dateCol], Err: err}
		}
		t.Dates = append(t.Dates, d)
		if groupCol >= 0 {
			t.Groups = append(t.Groups, strings.TrimSpace(rec[groupCol]))
		}
		for i, c := range valueCols {
			v, err := parseValue(rec[valuePos[i]])
			if err != nil {
				return nil, fmt.Errorf("row %d column %q: %w", row, c, err)
			}
			t.columns[c] = append(t.columns[c], v)
		}
	}
	return t, nil
}

func parseValue(s string) (float64, error) {
	s = strings.TrimSpace(s)
	switch strings.ToUpper(s) {
	case "", "NA", "NAN", "N/A", "NULL":
		return math.NaN(), nil
	}
	return strconv.ParseFloat(s, 64)
}
