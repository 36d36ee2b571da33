// Package date provides a day-granular Date used to filter the journal by
// calendar ranges from the command line.
package date

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

const readDateFormat = "2006-1-2" // Permissive read date format (allows single-digit month/day).

// DateFormat is the format used to represent dates as strings in ISO-8601 format.
const DateFormat = "2006-01-02"

// Date represents a calendar day, without timezone.
type Date struct {
	y int
	m time.Month
	d int
}

// time returns the canonical instant of that day (midnight UTC).
func (d Date) time() time.Time { return time.Date(d.y, d.m, d.d, 0, 0, 0, 0, time.UTC) }

// New returns a normalized Date for the given year, month, and day.
func New(year int, month time.Month, day int) Date {
	d := Date{year, month, day}
	d.y, d.m, d.d = d.time().Date()
	return d
}

// Of returns the UTC day of t.
func Of(t time.Time) Date { return New(t.UTC().Date()) }

// Today returns the current date.
func Today() Date { return Of(time.Now()) }

func (d Date) Year() int             { return d.y }
func (d Date) Month() time.Month     { return d.m }
func (d Date) Day() int              { return d.d }
func (d Date) Weekday() time.Weekday { return d.time().Weekday() }
func (d Date) IsZero() bool          { return d == Date{} }

// Before reports whether the day d is before x.
func (d Date) Before(x Date) bool { return d.time().Before(x.time()) }

// After reports whether the day d is after x.
func (d Date) After(x Date) bool { return d.time().After(x.time()) }

// Add returns a new Date with the given number of days added.
func (d Date) Add(days int) Date { return New(d.y, d.m, d.d+days) }

// Start returns the first instant of the day.
func (d Date) Start() time.Time { return d.time() }

// End returns the last representable instant of the day.
func (d Date) End() time.Time { return d.time().Add(24*time.Hour - time.Nanosecond) }

// String format the date in its standard format.
func (d Date) String() string { return d.time().Format(DateFormat) }

// Parse parses a Date. Besides "2025-7-1" it accepts "today", "yesterday"
// and day offsets relative to today like "-7" or "+3".
func Parse(str string) (Date, error) {
	str = strings.TrimSpace(str)
	switch str {
	case "today":
		return Today(), nil
	case "yesterday":
		return Today().Add(-1), nil
	}
	if strings.HasPrefix(str, "-") || strings.HasPrefix(str, "+") {
		n, err := strconv.Atoi(str)
		if err != nil {
			return Date{}, fmt.Errorf("invalid day offset %q: %w", str, err)
		}
		return Today().Add(n), nil
	}
	on, err := time.Parse(readDateFormat, str)
	if err != nil {
		return Date{}, fmt.Errorf("invalid date %q want format %q: %w", str, readDateFormat, err)
	}
	return New(on.Date()), nil
}

// MustParse is like Parse but panics on error.
func MustParse(str string) Date {
	d, err := Parse(str)
	if err != nil {
		panic(err.Error())
	}
	return d
}
