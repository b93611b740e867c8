// Package dates provides the day-by-day date arithmetic behind deadline
// computation. Business days are Monday through Friday; no holiday calendar
// is applied.
package dates

import (
	"fmt"
	"time"
)

// DateLayout is the wire format for all date fields.
const DateLayout = "2006-01-02"

// AddDays advances from by n days. When businessDays is true only weekdays
// consume the budget, but the walk still steps one calendar day at a time so
// weekends are skipped without counting. n must be >= 0; n == 0 returns from
// unchanged.
func AddDays(from time.Time, n int, businessDays bool) time.Time {
	to := from
	for n > 0 {
		to = to.AddDate(0, 0, 1)
		if !businessDays || isWeekday(to) {
			n--
		}
	}
	return to
}

// CountDays counts the days strictly after from up to and including to,
// applying the same business-day filter as AddDays. Returns 0 when
// to <= from.
func CountDays(from, to time.Time, businessDays bool) int {
	n := 0
	for from.Before(to) {
		from = from.AddDate(0, 0, 1)
		if !businessDays || isWeekday(from) {
			n++
		}
	}
	return n
}

// AddMonth returns the same day in the following month. December rolls over
// to January of the next year. A day the target month does not have
// normalizes forward per time.Date, so Jan 31 yields Mar 3 (Mar 2 in a
// leap year).
func AddMonth(d time.Time) time.Time {
	year, month, day := d.Date()
	if month == time.December {
		return time.Date(year+1, time.January, day, 0, 0, 0, 0, d.Location())
	}
	return time.Date(year, month+1, day, 0, 0, 0, 0, d.Location())
}

// SubMonth returns the same day in the preceding month. January rolls back
// to December of the previous year. Overflow days normalize forward the same
// way as AddMonth.
func SubMonth(d time.Time) time.Time {
	year, month, day := d.Date()
	if month == time.January {
		return time.Date(year-1, time.December, day, 0, 0, 0, 0, d.Location())
	}
	return time.Date(year, month-1, day, 0, 0, 0, 0, d.Location())
}

// Parse parses a strict YYYY-MM-DD date.
func Parse(s string) (time.Time, error) {
	d, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: %w", s, err)
	}
	return d, nil
}

// Format renders a date in the wire format.
func Format(d time.Time) string {
	return d.Format(DateLayout)
}

func isWeekday(d time.Time) bool {
	wd := d.Weekday()
	return wd != time.Saturday && wd != time.Sunday
}
