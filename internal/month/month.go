// Package month implements calendar-month buckets used to sample repository
// history at monthly granularity.
//
// A Bucket is year*12 + month with month in 1..12, so consecutive calendar
// months are consecutive integers (2023-12 is 24288, 2024-01 is 24289).
// Parsing and formatting both use 1-based months.
package month

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Bucket identifies one calendar month.
type Bucket int

// Of returns the bucket containing t, evaluated in UTC.
func Of(t time.Time) Bucket {
	t = t.UTC()
	return New(t.Year(), t.Month())
}

// New returns the bucket for the given year and month.
func New(year int, m time.Month) Bucket {
	return Bucket(year*12 + int(m))
}

// Parse parses "YYYY-MM" (also accepts "YYYY/MM").
func Parse(s string) (Bucket, error) {
	s = strings.TrimSpace(s)
	sep := strings.IndexAny(s, "-/")
	if sep <= 0 || sep == len(s)-1 {
		return 0, fmt.Errorf("month: invalid %q: want YYYY-MM", s)
	}
	year, err := strconv.Atoi(s[:sep])
	if err != nil {
		return 0, fmt.Errorf("month: invalid year in %q: %w", s, err)
	}
	m, err := strconv.Atoi(s[sep+1:])
	if err != nil {
		return 0, fmt.Errorf("month: invalid month in %q: %w", s, err)
	}
	if m < 1 || m > 12 {
		return 0, fmt.Errorf("month: month %d out of range in %q", m, s)
	}
	if year < 1 {
		return 0, fmt.Errorf("month: year %d out of range in %q", year, s)
	}
	return New(year, time.Month(m)), nil
}

// MustParse is like Parse but panics on error. Intended for tests and constants.
func MustParse(s string) Bucket {
	b, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return b
}

// Year returns the calendar year of b.
func (b Bucket) Year() int {
	return (int(b) - 1) / 12
}

// Month returns the calendar month of b.
func (b Bucket) Month() time.Month {
	return time.Month((int(b)-1)%12 + 1)
}

// Start returns the first instant of the month in UTC.
func (b Bucket) Start() time.Time {
	return time.Date(b.Year(), b.Month(), 1, 0, 0, 0, 0, time.UTC)
}

// Prev returns the preceding month.
func (b Bucket) Prev() Bucket { return b - 1 }

// String formats b as "YYYY-MM".
func (b Bucket) String() string {
	return fmt.Sprintf("%04d-%02d", b.Year(), int(b.Month()))
}

// Span returns the number of buckets in the inclusive range [start, end], or 0
// when end precedes start.
func Span(start, end Bucket) int {
	if end < start {
		return 0
	}
	return int(end-start) + 1
}
