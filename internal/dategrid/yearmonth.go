package dategrid

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Representable years. Outside this range month arithmetic fails.
const (
	MinYear = 1
	MaxYear = 9999
)

// ErrDateRange matches every *DateRangeError via errors.Is.
var ErrDateRange = errors.New("date out of representable range")

// DateRangeError reports a year/month that cannot be represented.
type DateRangeError struct {
	Year   int
	Month  int
	Reason string
}

func (e *DateRangeError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("dategrid: %04d-%02d out of range", e.Year, e.Month)
	}
	return fmt.Sprintf("dategrid: %04d-%02d out of range: %s", e.Year, e.Month, e.Reason)
}

func (e *DateRangeError) Is(target error) bool { return target == ErrDateRange }

// YearMonth identifies a calendar month in the proleptic Gregorian calendar.
type YearMonth struct {
	Year  int
	Month time.Month
}

// YearMonthOf returns the month containing t in t's location.
func YearMonthOf(t time.Time) YearMonth {
	return YearMonth{Year: t.Year(), Month: t.Month()}
}

// ParseYearMonth parses "2024-03".
func ParseYearMonth(s string) (YearMonth, error) {
	y, m, ok := strings.Cut(strings.TrimSpace(s), "-")
	if !ok {
		return YearMonth{}, fmt.Errorf("dategrid: invalid month %q, want YYYY-MM", s)
	}
	year, err := strconv.Atoi(y)
	if err != nil {
		return YearMonth{}, fmt.Errorf("dategrid: invalid year in %q: %w", s, err)
	}
	month, err := strconv.Atoi(m)
	if err != nil {
		return YearMonth{}, fmt.Errorf("dategrid: invalid month in %q: %w", s, err)
	}
	ym := YearMonth{Year: year, Month: time.Month(month)}
	if err := ym.Validate(); err != nil {
		return YearMonth{}, err
	}
	return ym, nil
}

func (ym YearMonth) Validate() error {
	if ym.Month < time.January || ym.Month > time.December {
		return &DateRangeError{Year: ym.Year, Month: int(ym.Month), Reason: "month must be 1..12"}
	}
	if ym.Year < MinYear || ym.Year > MaxYear {
		return &DateRangeError{Year: ym.Year, Month: int(ym.Month), Reason: fmt.Sprintf("year must be %d..%d", MinYear, MaxYear)}
	}
	return nil
}

// AddMonths moves by n months. The result must stay representable.
func (ym YearMonth) AddMonths(n int) (YearMonth, error) {
	if err := ym.Validate(); err != nil {
		return YearMonth{}, err
	}
	// Month index since year 0; bounded by MaxYear so n cannot overflow it
	// without first leaving the valid range below.
	const maxDelta = (MaxYear + 1) * 12
	if n > maxDelta || n < -maxDelta {
		return YearMonth{}, &DateRangeError{Year: ym.Year, Month: int(ym.Month), Reason: fmt.Sprintf("offset %d months", n)}
	}
	idx := ym.Year*12 + int(ym.Month-1) + n
	out := YearMonth{Year: floorDiv(idx, 12), Month: time.Month(floorMod(idx, 12) + 1)}
	if err := out.Validate(); err != nil {
		return YearMonth{}, err
	}
	return out, nil
}

// First returns midnight of the first day of the month in loc.
func (ym YearMonth) First(loc *time.Location) time.Time {
	if loc == nil {
		loc = time.Local
	}
	return time.Date(ym.Year, ym.Month, 1, 0, 0, 0, 0, loc)
}

// Range returns [first of month, first of next month) in loc.
func (ym YearMonth) Range(loc *time.Location) (time.Time, time.Time) {
	start := ym.First(loc)
	return start, start.AddDate(0, 1, 0)
}

func (ym YearMonth) Days() int { return DaysInMonth(ym.Year, ym.Month) }

func (ym YearMonth) Before(o YearMonth) bool {
	if ym.Year != o.Year {
		return ym.Year < o.Year
	}
	return ym.Month < o.Month
}

func (ym YearMonth) String() string {
	return fmt.Sprintf("%04d-%02d", ym.Year, int(ym.Month))
}

func (ym YearMonth) MarshalText() ([]byte, error) { return []byte(ym.String()), nil }

func (ym *YearMonth) UnmarshalText(b []byte) error {
	parsed, err := ParseYearMonth(string(b))
	if err != nil {
		return err
	}
	*ym = parsed
	return nil
}

func floorDiv(a, b int) int {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}

func floorMod(a, b int) int {
	return a - floorDiv(a, b)*b
}
