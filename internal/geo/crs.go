// Package geo loads vector layers and moves their coordinates between the
// coordinate reference systems the analysis pipelines support.
package geo

import (
	"fmt"
	"strconv"
	"strings"
)

// CRS identifies a coordinate reference system by its EPSG code. The zero
// value means "unknown".
type CRS struct {
	Code int
}

// Well-known codes.
const (
	CodeWGS84       = 4326
	CodeNAD83       = 4269
	CodeWebMercator = 3857
)

var (
	WGS84       = CRS{Code: CodeWGS84}
	WebMercator = CRS{Code: CodeWebMercator}
)

// EPSG returns the CRS for an EPSG code.
func EPSG(code int) CRS {
	return CRS{Code: code}
}

// ParseCRS parses an authority string. Accepted forms are "EPSG:32610",
// "epsg:32610", "32610", "urn:ogc:def:crs:EPSG::32610" and the OGC CRS84
// urn, which maps to EPSG:4326.
func ParseCRS(s string) (CRS, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return CRS{}, fmt.Errorf("empty CRS")
	}
	upper := strings.ToUpper(s)
	if strings.HasSuffix(upper, "CRS84") {
		return WGS84, nil
	}
	code := upper
	if i := strings.LastIndex(upper, ":"); i >= 0 {
		if !strings.Contains(upper, "EPSG") {
			return CRS{}, fmt.Errorf("unsupported CRS authority in %q", s)
		}
		code = upper[i+1:]
	}
	n, err := strconv.Atoi(code)
	if err != nil || n <= 0 {
		return CRS{}, fmt.Errorf("invalid EPSG code in %q", s)
	}
	return CRS{Code: n}, nil
}

// IsZero reports whether the CRS is unknown.
func (c CRS) IsZero() bool { return c.Code == 0 }

func (c CRS) String() string {
	if c.IsZero() {
		return "unknown"
	}
	return "EPSG:" + strconv.Itoa(c.Code)
}

// MarshalText writes the "EPSG:n" form; the zero CRS is empty.
func (c CRS) MarshalText() ([]byte, error) {
	if c.IsZero() {
		return []byte{}, nil
	}
	return []byte(c.String()), nil
}

// UnmarshalText accepts anything ParseCRS does. Empty text is the zero CRS.
func (c *CRS) UnmarshalText(text []byte) error {
	if len(text) == 0 {
		*c = CRS{}
		return nil
	}
	parsed, err := ParseCRS(string(text))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// geographicCodes are the supported systems whose coordinates are
// longitude/latitude degrees.
var geographicCodes = map[int]bool{
	CodeWGS84: true,
	CodeNAD83: true,
	4258:      true, // ETRS89
	4283:      true, // GDA94
}

// IsGeographic reports whether coordinates are longitude/latitude degrees.
func (c CRS) IsGeographic() bool {
	return geographicCodes[c.canonical().Code]
}

// canonical folds legacy aliases onto their registered code.
func (c CRS) canonical() CRS {
	if c.Code == 900913 {
		return WebMercator
	}
	return c
}

// Supported reports whether Transform can move coordinates into or out of c.
func (c CRS) Supported() bool {
	return !c.IsZero() && registeredCodes()[c.canonical().Code]
}
