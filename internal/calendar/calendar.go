package calendar

import (
	"errors"
	"fmt"
	"strings"
	"time"
	_ "time/tzdata"
)

// ErrInvalidDay is returned when a value cannot be read as a calendar day.
var ErrInvalidDay = errors.New("calendar: invalid day")

const displayLayout = "Monday, January 2, 2006"

// Day identifies a calendar day by its YYYY-MM-DD key. Keys sort chronologically.
type Day string

func (d Day) String() string {
	return string(d)
}

// Display renders the day as an en-US long label, e.g. "Sunday, January 5, 2025".
func (d Day) Display() string {
	t, err := time.Parse(time.DateOnly, string(d))
	if err != nil {
		return string(d)
	}
	return t.Format(displayLayout)
}

// ValidDay reports whether value is an exact YYYY-MM-DD day or an RFC 3339
// timestamp, the two forms ParseDay accepts.
func ValidDay(value string) bool {
	_, _, err := parse(value)
	return err == nil
}

// parse returns either the literal day or the instant value names.
func parse(value string) (Day, time.Time, error) {
	value = strings.TrimSpace(value)
	if len(value) == len(time.DateOnly) {
		t, err := time.Parse(time.DateOnly, value)
		if err != nil {
			return "", time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDay, value)
		}
		return Day(t.Format(time.DateOnly)), time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDay, value)
	}
	return "", t, nil
}

// Range is an inclusive span of calendar days.
type Range struct {
	Start Day
	End   Day
}

// Calendar buckets instants into days of a reference time zone.
type Calendar struct {
	loc *time.Location
}

// New returns a Calendar for the named IANA zone. An empty name selects UTC.
func New(zone string) (*Calendar, error) {
	zone = strings.TrimSpace(zone)
	if zone == "" {
		return UTC(), nil
	}
	loc, err := time.LoadLocation(zone)
	if err != nil {
		return nil, fmt.Errorf("calendar: load location %q: %w", zone, err)
	}
	return &Calendar{loc: loc}, nil
}

// UTC returns a Calendar bucketing by UTC days.
func UTC() *Calendar {
	return &Calendar{loc: time.UTC}
}

// ParseDay reads value as a calendar day. A bare YYYY-MM-DD is taken as that
// day; an RFC 3339 timestamp falls on its day in the reference zone.
func (c *Calendar) ParseDay(value string) (Day, error) {
	day, instant, err := parse(value)
	if err != nil {
		return "", err
	}
	if day != "" {
		return day, nil
	}
	return c.DayOf(instant), nil
}

// DayOf returns the calendar day containing t in the reference zone.
func (c *Calendar) DayOf(t time.Time) Day {
	return Day(t.In(c.loc).Format(time.DateOnly))
}

// Midnight returns the first instant of d in the reference zone.
func (c *Calendar) Midnight(d Day) time.Time {
	t, err := time.ParseInLocation(time.DateOnly, string(d), c.loc)
	if err != nil {
		return time.Time{}
	}
	return t
}

// Week returns the span from the Sunday starting the week of now through today.
func (c *Calendar) Week(now time.Time) Range {
	local := now.In(c.loc)
	start := time.Date(local.Year(), local.Month(), local.Day()-int(local.Weekday()), 0, 0, 0, 0, c.loc)
	return Range{Start: c.DayOf(start), End: c.DayOf(local)}
}

// Month returns the first through last day of the month containing now.
func (c *Calendar) Month(now time.Time) Range {
	local := now.In(c.loc)
	first := time.Date(local.Year(), local.Month(), 1, 0, 0, 0, 0, c.loc)
	last := first.AddDate(0, 1, -1)
	return Range{Start: c.DayOf(first), End: c.DayOf(last)}
}
