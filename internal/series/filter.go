package series

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
)

// ErrInvalidRangeToken is returned for range endpoints that are not YYYY,
// YYYY-MM or YYYY-MM-DD.
var ErrInvalidRangeToken = errors.New("invalid range token")

// Range is an inclusive date interval. A zero Start or End leaves that side
// open.
type Range struct {
	Start time.Time
	End   time.Time // last instant included
}

// ParseRange reads "start/end" where either side may be empty, or a single
// token meaning that whole period. Each token covers its full period, so
// "2000-06/2001-05" runs from 1 June 2000 to the end of 31 May 2001.
func ParseRange(s string) (Range, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Range{}, nil
	}
	startTok, endTok, hasSlash := strings.Cut(s, "/")
	if !hasSlash {
		endTok = startTok
	}

	var r Range
	if startTok = strings.TrimSpace(startTok); startTok != "" {
		start, _, err := parseToken(startTok)
		if err != nil {
			return Range{}, err
		}
		r.Start = start
	}
	if endTok = strings.TrimSpace(endTok); endTok != "" {
		_, end, err := parseToken(endTok)
		if err != nil {
			return Range{}, err
		}
		r.End = end
	}
	if !r.Start.IsZero() && !r.End.IsZero() && r.End.Before(r.Start) {
		return Range{}, fmt.Errorf("%w: range %q ends before it starts", ErrInvalidRangeToken, s)
	}
	return r, nil
}

// parseToken returns the first and last instant of the period tok names.
func parseToken(tok string) (start, end time.Time, err error) {
	var next func(time.Time) time.Time
	switch len(tok) {
	case 4:
		start, err = time.Parse("2006", tok)
		next = func(t time.Time) time.Time { return t.AddDate(1, 0, 0) }
	case 7:
		start, err = time.Parse("2006-01", tok)
		next = func(t time.Time) time.Time { return t.AddDate(0, 1, 0) }
	case 10:
		start, err = time.Parse(time.DateOnly, tok)
		next = func(t time.Time) time.Time { return t.AddDate(0, 0, 1) }
	default:
		err = errors.New("unrecognised length")
	}
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("%w %q: %v", ErrInvalidRangeToken, tok, err)
	}
	return start, next(start).Add(-time.Nanosecond), nil
}

// Contains reports whether t falls inside the range.
func (r Range) Contains(t time.Time) bool {
	if !r.Start.IsZero() && t.Before(r.Start) {
		return false
	}
	if !r.End.IsZero() && t.After(r.End) {
		return false
	}
	return true
}

func (r Range) String() string {
	var b strings.Builder
	if !r.Start.IsZero() {
		b.WriteString(r.Start.Format(time.DateOnly))
	}
	b.WriteByte('/')
	if !r.End.IsZero() {
		b.WriteString(r.End.Format(time.DateOnly))
	}
	return b.String()
}

// MarshalText writes the range in the form String uses.
func (r Range) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

// UnmarshalText parses text with ParseRange.
func (r *Range) UnmarshalText(text []byte) error {
	parsed, err := ParseRange(string(text))
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}

// Filter returns the rows of s inside r.
func Filter(s *Series, r Range) *Series {
	lo := 0
	if !r.Start.IsZero() {
		lo = sort.Search(s.Len(), func(i int) bool { return !s.Index[i].Before(r.Start) })
	}
	hi := s.Len()
	if !r.End.IsZero() {
		hi = sort.Search(s.Len(), func(i int) bool { return s.Index[i].After(r.End) })
	}
	if hi < lo {
		hi = lo
	}
	return s.slice(lo, hi)
}
