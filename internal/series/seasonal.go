package series

import (
	"fmt"
	"sort"
	"time"
)

// SeasonalLine is one year of a series keyed by position in the year.
type SeasonalLine struct {
	Year      int
	Positions []int // 1..12 for monthly data, day of year otherwise
	Values    []float64
}

// SeasonalProfile splits s into one line per calendar year so the years can
// be overlaid. Monthly series are keyed by month, anything finer by day of
// year.
func SeasonalProfile(s *Series, g Granularity) ([]SeasonalLine, error) {
	if g == Year {
		return nil, fmt.Errorf("seasonal profile needs a sub-yearly granularity")
	}
	byYear := make(map[int]*SeasonalLine)
	for i, t := range s.Index {
		y := t.Year()
		line, ok := byYear[y]
		if !ok {
			line = &SeasonalLine{Year: y}
			byYear[y] = line
		}
		line.Positions = append(line.Positions, cyclePosition(t, g))
		line.Values = append(line.Values, s.Values[i])
	}
	years := make([]int, 0, len(byYear))
	for y := range byYear {
		years = append(years, y)
	}
	sort.Ints(years)
	out := make([]SeasonalLine, 0, len(years))
	for _, y := range years {
		out = append(out, *byYear[y])
	}
	return out, nil
}

func cyclePosition(t time.Time, g Granularity) int {
	if g == Month {
		return int(t.Month())
	}
	return t.YearDay()
}
