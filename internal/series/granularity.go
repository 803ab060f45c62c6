package series

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrUnknownGranularity is returned by ParseGranularity for unrecognised names.
var ErrUnknownGranularity = errors.New("unknown granularity")

// Granularity is a calendar bucket size.
type Granularity string

const (
	Day   Granularity = "day"
	Week  Granularity = "week" // ISO weeks, starting Monday
	Month Granularity = "month"
	Year  Granularity = "year"
)

// ParseGranularity accepts day, week, month or year, plus the adverb forms
// daily, weekly, monthly and yearly/annual.
func ParseGranularity(s string) (Granularity, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "day", "daily", "d":
		return Day, nil
	case "week", "weekly", "w":
		return Week, nil
	case "month", "monthly", "m":
		return Month, nil
	case "year", "yearly", "annual", "y":
		return Year, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownGranularity, s)
}

// Floor returns the start of the bucket containing t, at UTC midnight.
func (g Granularity) Floor(t time.Time) time.Time {
	t = t.UTC()
	y, m, d := t.Date()
	switch g {
	case Week:
		day := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
		offset := (int(day.Weekday()) + 6) % 7 // days since Monday
		return day.AddDate(0, 0, -offset)
	case Month:
		return time.Date(y, m, 1, 0, 0, 0, 0, time.UTC)
	case Year:
		return time.Date(y, time.January, 1, 0, 0, 0, 0, time.UTC)
	default:
		return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	}
}

// Next returns the start of the bucket after the one starting at start.
func (g Granularity) Next(start time.Time) time.Time {
	switch g {
	case Week:
		return start.AddDate(0, 0, 7)
	case Month:
		return start.AddDate(0, 1, 0)
	case Year:
		return start.AddDate(1, 0, 0)
	default:
		return start.AddDate(0, 0, 1)
	}
}

// Period is the number of buckets in one yearly cycle, or 0 for Year. Week
// uses 52 although some ISO years have 53 weeks; see LongISOYears.
func (g Granularity) Period() int {
	switch g {
	case Day:
		return 365
	case Week:
		return 52
	case Month:
		return 12
	}
	return 0
}

func (g Granularity) valid() bool {
	switch g {
	case Day, Week, Month, Year:
		return true
	}
	return false
}

// LongISOYears lists the ISO week-numbering years with 53 weeks that s
// touches. A weekly series crossing one drifts a week against a 52-bucket
// period.
func LongISOYears(s *Series) []int {
	var years []int
	seen := make(map[int]bool)
	for _, t := range s.Index {
		y, _ := t.ISOWeek()
		if seen[y] {
			continue
		}
		seen[y] = true
		// 28 December always falls in the last ISO week of its year.
		if _, w := time.Date(y, time.December, 28, 0, 0, 0, 0, time.UTC).ISOWeek(); w == 53 {
			years = append(years, y)
		}
	}
	return years
}
