// Package dategrid computes month grids: leading padding that aligns day 1
// under its weekday column, followed by one cell per day of the month.
package dategrid

import (
	"fmt"
	"strings"
	"time"

	"calplan/internal/model"
)

var daysPerMonth = [...]int{31, 28, 31, 30, 31, 30, 31, 31, 30, 31, 30, 31}

// IsLeapYear applies the proleptic Gregorian rule.
func IsLeapYear(year int) bool {
	return year%4 == 0 && (year%100 != 0 || year%400 == 0)
}

// DaysInMonth returns 28..31. Month must be valid.
func DaysInMonth(year int, month time.Month) int {
	if month == time.February && IsLeapYear(year) {
		return 29
	}
	return daysPerMonth[month-1]
}

// weekdayOf returns the weekday of year-month-day using Sakamoto's method,
// valid for every proleptic Gregorian date with year >= 1.
func weekdayOf(year int, month time.Month, day int) time.Weekday {
	t := [...]int{0, 3, 2, 5, 0, 3, 5, 1, 4, 6, 2, 4}
	y := year
	if month < time.March {
		y--
	}
	return time.Weekday((y + y/4 - y/100 + y/400 + t[month-1] + day) % 7)
}

// LeadingPadding is the number of blank cells before day 1 when weeks start
// on weekStart.
func LeadingPadding(ym YearMonth, weekStart time.Weekday) int {
	first := weekdayOf(ym.Year, ym.Month, 1)
	return (int(first) - int(weekStart) + 7) % 7
}

// TrailingPolicy controls cells emitted after the last day of the month.
type TrailingPolicy int

const (
	// TrailingNone emits no trailing cells.
	TrailingNone TrailingPolicy = iota
	// TrailingCompleteWeek pads the final row to 7 cells.
	TrailingCompleteWeek
	// TrailingSixWeeks pads to a fixed 42-cell grid.
	TrailingSixWeeks
)

func (p TrailingPolicy) String() string {
	switch p {
	case TrailingCompleteWeek:
		return "complete_week"
	case TrailingSixWeeks:
		return "six_weeks"
	default:
		return "none"
	}
}

func ParseTrailingPolicy(s string) (TrailingPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "none":
		return TrailingNone, nil
	case "complete_week":
		return TrailingCompleteWeek, nil
	case "six_weeks":
		return TrailingSixWeeks, nil
	default:
		return TrailingNone, fmt.Errorf("dategrid: unknown trailing policy %q", s)
	}
}

// ParseWeekStart accepts "sunday" or "monday".
func ParseWeekStart(s string) (time.Weekday, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "sunday":
		return time.Sunday, nil
	case "monday":
		return time.Monday, nil
	default:
		return time.Sunday, fmt.Errorf("dategrid: unsupported week start %q", s)
	}
}

// Grid holds the conventions used to lay out a month.
type Grid struct {
	WeekStart time.Weekday
	Trailing  TrailingPolicy
	// Today marks the matching cell's IsToday. Zero disables marking.
	Today time.Time
}

// Generate returns leading padding, one cell per day, then trailing padding
// per g.Trailing. Indices are contiguous from 0.
func (g Grid) Generate(ym YearMonth) ([]model.DayCell, error) {
	if err := ym.Validate(); err != nil {
		return nil, err
	}
	if g.WeekStart < time.Sunday || g.WeekStart > time.Saturday {
		return nil, fmt.Errorf("dategrid: invalid week start %d", g.WeekStart)
	}

	lead := LeadingPadding(ym, g.WeekStart)
	days := ym.Days()
	total := lead + days
	switch g.Trailing {
	case TrailingCompleteWeek:
		total += (7 - total%7) % 7
	case TrailingSixWeeks:
		total = 42
	}

	todayDay := 0
	if !g.Today.IsZero() && YearMonthOf(g.Today) == ym {
		todayDay = g.Today.Day()
	}

	cells := make([]model.DayCell, total)
	for i := range cells {
		cells[i].Index = i
		if i < lead || i >= lead+days {
			continue
		}
		d := i - lead + 1
		cells[i].Day = d
		cells[i].IsToday = d == todayDay
	}
	return cells, nil
}

// Generate lays out ym with no trailing padding and no today marker.
func Generate(ym YearMonth, weekStart time.Weekday) ([]model.DayCell, error) {
	return Grid{WeekStart: weekStart}.Generate(ym)
}
