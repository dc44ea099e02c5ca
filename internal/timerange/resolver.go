// Package timerange resolves relative chart ranges into absolute start instants.
//
// All day arithmetic happens in one fixed offset from UTC chosen at startup
// (UTC+05:30 unless configured otherwise). Monthly windows are UTC calendar
// months so they line up with the rollup buckets.
package timerange

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrInvalidTimestamp is returned when an explicit start instant cannot be parsed
var ErrInvalidTimestamp = errors.New("invalid timestamp")

// Range is a relative range token as accepted by the history endpoints
type Range string

const (
	Range1Day    Range = "1d"
	Range7Days   Range = "7d"
	Range30Days  Range = "30d"
	Range3Months Range = "3m"
	Range6Months Range = "6m"
	Range1Year   Range = "1y"

	// DefaultRange applies when the token is absent or unrecognized
	DefaultRange = Range7Days
)

// span is a calendar distance
type span struct {
	years, months, days int
}

var spans = map[Range]span{
	Range1Day:    {days: 1},
	Range7Days:   {days: 7},
	Range30Days:  {days: 30},
	Range3Months: {months: 3},
	Range6Months: {months: 6},
	Range1Year:   {years: 1},
}

// monthWindows maps the monthly chart selector to a number of calendar months
var monthWindows = map[Range]int{
	Range30Days:  1,
	Range3Months: 3,
	Range6Months: 6,
	Range1Year:   12,
}

// DefaultOffset is the offset used for "now" and day boundaries: UTC+05:30
const DefaultOffset = "+05:30"

// DefaultLocation is the fixed zone for DefaultOffset
var DefaultLocation = time.FixedZone("UTC+05:30", 5*60*60+30*60)

// Resolver maps range tokens to start instants. It is immutable and safe for
// concurrent use.
type Resolver struct {
	loc *time.Location
	now func() time.Time
}

// NewResolver creates a resolver for the given fixed zone and clock.
// A nil zone means DefaultLocation and a nil clock means time.Now.
func NewResolver(loc *time.Location, now func() time.Time) *Resolver {
	if loc == nil {
		loc = DefaultLocation
	}
	if now == nil {
		now = time.Now
	}
	return &Resolver{loc: loc, now: now}
}

// Now returns the current instant of the resolver's clock
func (r *Resolver) Now() time.Time {
	return r.now()
}

// Location returns the resolver's fixed zone
func (r *Resolver) Location() *time.Location {
	return r.loc
}

// Resolve returns the inclusive lower bound for snapshot selection.
//
// A non-empty since takes precedence over the range token and must be a valid
// timestamp, otherwise the error wraps ErrInvalidTimestamp.
func (r *Resolver) Resolve(token string, since string) (time.Time, error) {
	if strings.TrimSpace(since) != "" {
		t, err := r.ParseSince(since)
		if err != nil {
			return time.Time{}, err
		}
		return t, nil
	}
	return r.ResolveRange(token), nil
}

// ResolveRange subtracts the token's span from now and floors to the start of
// that day, both in the resolver's zone.
func (r *Resolver) ResolveRange(token string) time.Time {
	s, ok := spans[Range(token)]
	if !ok {
		s = spans[DefaultRange]
	}

	now := r.now().In(r.loc)
	start := subtractMonths(now, s.years*12+s.months).AddDate(0, 0, -s.days)
	return startOfDay(start).UTC()
}

// MonthWindow returns the UTC start of the first month covered by a monthly
// chart selector: 30d covers the current month, 3m/6m/1y the last 3/6/12
// months including the current one. Unknown tokens cover one month.
func (r *Resolver) MonthWindow(token string) time.Time {
	months, ok := monthWindows[Range(token)]
	if !ok {
		months = 1
	}

	now := r.now().UTC()
	first := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	return first.AddDate(0, -(months - 1), 0)
}

// ParseSince parses an explicit start instant. RFC 3339 values carry their own
// offset; zone-less date-times and plain dates are read in the resolver's zone.
func (r *Resolver) ParseSince(since string) (time.Time, error) {
	s := strings.TrimSpace(since)

	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t.UTC(), nil
	}
	for _, layout := range []string{"2006-01-02T15:04:05.999999999", "2006-01-02 15:04:05", "2006-01-02"} {
		if t, err := time.ParseInLocation(layout, s, r.loc); err == nil {
			return t.UTC(), nil
		}
	}

	return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidTimestamp, since)
}

// ParseUTCOffset builds a fixed zone from "+HH:MM", "-HH:MM", "Z" or "UTC"
func ParseUTCOffset(offset string) (*time.Location, error) {
	s := strings.TrimSpace(offset)
	if s == "" || s == "Z" || strings.EqualFold(s, "UTC") {
		return time.UTC, nil
	}

	t, err := time.Parse("-07:00", s)
	if err != nil {
		return nil, fmt.Errorf("invalid UTC offset %q (want ±HH:MM)", offset)
	}
	_, secs := t.Zone()
	if secs == 0 {
		return time.UTC, nil
	}
	return time.FixedZone("UTC"+s, secs), nil
}

// subtractMonths moves t back n calendar months, clamping the day to the end
// of the target month (May 31 minus 3 months is Feb 28/29).
func subtractMonths(t time.Time, n int) time.Time {
	if n == 0 {
		return t
	}
	y, m, d := t.Date()
	target := time.Date(y, m-time.Month(n), 1, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
	if last := daysIn(target); d > last {
		d = last
	}
	return target.AddDate(0, 0, d-1)
}

func daysIn(t time.Time) int {
	return time.Date(t.Year(), t.Month()+1, 0, 0, 0, 0, 0, t.Location()).Day()
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
