package dategrid

import (
	"errors"
	"testing"
	"time"
)

func TestGenerateMarch2024SundayStart(t *testing.T) {
	cells, err := Generate(YearMonth{2024, time.March}, time.Sunday)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if len(cells) != 36 {
		t.Fatalf("expected 36 cells, got %d", len(cells))
	}
	for i := 0; i < 5; i++ {
		if !cells[i].IsPadding() {
			t.Fatalf("cell %d should be padding: %+v", i, cells[i])
		}
	}
	if cells[5].Day != 1 || cells[35].Day != 31 {
		t.Fatalf("unexpected day placement: first=%+v last=%+v", cells[5], cells[35])
	}
	for i, c := range cells {
		if c.Index != i {
			t.Fatalf("index %d at position %d", c.Index, i)
		}
		if c.HasEvent || c.IsSelected {
			t.Fatalf("fresh grid carries flags: %+v", c)
		}
	}
}

func TestGenerateMondayStart(t *testing.T) {
	// March 1, 2024 is a Friday: Mon..Thu precede it.
	cells, err := Generate(YearMonth{2024, time.March}, time.Monday)
	if err != nil {
		t.Fatal(err)
	}
	if got := LeadingPadding(YearMonth{2024, time.March}, time.Monday); got != 4 {
		t.Fatalf("padding = %d", got)
	}
	if len(cells) != 35 || cells[4].Day != 1 {
		t.Fatalf("len=%d cells[4]=%+v", len(cells), cells[4])
	}
}

func TestCellCountMatchesPaddingPlusDays(t *testing.T) {
	years := []int{1, 2, 4, 99, 100, 400, 1582, 1900, 1970, 2000, 2023, 2024, 2100, 9999}
	for _, y := range years {
		for m := time.January; m <= time.December; m++ {
			for _, ws := range []time.Weekday{time.Sunday, time.Monday} {
				ym := YearMonth{y, m}
				cells, err := Generate(ym, ws)
				if err != nil {
					t.Fatalf("%s: %v", ym, err)
				}
				first := time.Date(y, m, 1, 0, 0, 0, 0, time.UTC)
				wantPad := (int(first.Weekday()) - int(ws) + 7) % 7
				wantDays := first.AddDate(0, 1, -1).Day()

				if got := LeadingPadding(ym, ws); got != wantPad {
					t.Fatalf("%s ws=%s: padding %d want %d", ym, ws, got, wantPad)
				}
				if len(cells) != wantPad+wantDays {
					t.Fatalf("%s ws=%s: %d cells want %d", ym, ws, len(cells), wantPad+wantDays)
				}
			}
		}
	}
}

func TestLeapYears(t *testing.T) {
	tests := []struct {
		year int
		leap bool
	}{
		{2024, true},
		{2000, true},
		{1600, true},
		{1900, false},
		{2100, false},
		{1700, false},
		{2023, false},
		{4, true},
	}
	for _, tt := range tests {
		if got := IsLeapYear(tt.year); got != tt.leap {
			t.Errorf("IsLeapYear(%d) = %v", tt.year, got)
		}
		want := 28
		if tt.leap {
			want = 29
		}
		cells, err := Generate(YearMonth{tt.year, time.February}, time.Sunday)
		if err != nil {
			t.Fatal(err)
		}
		days := 0
		for _, c := range cells {
			if !c.IsPadding() {
				days++
			}
		}
		if days != want {
			t.Errorf("February %d: %d day cells, want %d", tt.year, days, want)
		}
	}
}

func TestTrailingPolicies(t *testing.T) {
	ym := YearMonth{2024, time.March}

	cells, err := Grid{WeekStart: time.Sunday, Trailing: TrailingCompleteWeek}.Generate(ym)
	if err != nil {
		t.Fatal(err)
	}
	if len(cells) != 42 {
		t.Fatalf("complete week: %d cells", len(cells))
	}
	if !cells[41].IsPadding() || cells[35].Day != 31 {
		t.Fatalf("trailing cells wrong: %+v %+v", cells[35], cells[41])
	}

	// February 2015 starts on Sunday and fills exactly four rows.
	cells, err = Grid{WeekStart: time.Sunday, Trailing: TrailingCompleteWeek}.Generate(YearMonth{2015, time.February})
	if err != nil {
		t.Fatal(err)
	}
	if len(cells) != 28 {
		t.Fatalf("complete week for Feb 2015: %d cells", len(cells))
	}

	cells, err = Grid{WeekStart: time.Sunday, Trailing: TrailingSixWeeks}.Generate(YearMonth{2015, time.February})
	if err != nil {
		t.Fatal(err)
	}
	if len(cells) != 42 {
		t.Fatalf("six weeks: %d cells", len(cells))
	}
}

func TestTodayMarker(t *testing.T) {
	today := time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC)
	cells, err := Grid{WeekStart: time.Sunday, Today: today}.Generate(YearMonth{2024, time.March})
	if err != nil {
		t.Fatal(err)
	}
	marked := 0
	for _, c := range cells {
		if c.IsToday {
			marked++
			if c.Day != 15 {
				t.Fatalf("wrong today cell: %+v", c)
			}
		}
	}
	if marked != 1 {
		t.Fatalf("expected one today cell, got %d", marked)
	}

	cells, _ = Grid{WeekStart: time.Sunday, Today: today}.Generate(YearMonth{2024, time.April})
	for _, c := range cells {
		if c.IsToday {
			t.Fatalf("today marked in another month: %+v", c)
		}
	}
}

func TestGenerateRejectsOutOfRange(t *testing.T) {
	for _, ym := range []YearMonth{{0, time.January}, {10000, time.January}, {2024, 13}, {2024, 0}} {
		_, err := Generate(ym, time.Sunday)
		var dre *DateRangeError
		if !errors.As(err, &dre) || !errors.Is(err, ErrDateRange) {
			t.Fatalf("%v: expected DateRangeError, got %v", ym, err)
		}
	}
}

func TestAddMonths(t *testing.T) {
	tests := []struct {
		from YearMonth
		n    int
		want YearMonth
	}{
		{YearMonth{2024, time.March}, 1, YearMonth{2024, time.April}},
		{YearMonth{2024, time.December}, 1, YearMonth{2025, time.January}},
		{YearMonth{2024, time.January}, -1, YearMonth{2023, time.December}},
		{YearMonth{2024, time.March}, -27, YearMonth{2021, time.December}},
		{YearMonth{2024, time.March}, 0, YearMonth{2024, time.March}},
		{YearMonth{1, time.February}, -1, YearMonth{1, time.January}},
	}
	for _, tt := range tests {
		got, err := tt.from.AddMonths(tt.n)
		if err != nil || got != tt.want {
			t.Errorf("%s + %d = %s, %v; want %s", tt.from, tt.n, got, err, tt.want)
		}
	}

	for _, tc := range []struct {
		from YearMonth
		n    int
	}{
		{YearMonth{1, time.January}, -1},
		{YearMonth{9999, time.December}, 1},
		{YearMonth{2024, time.March}, 1 << 40},
		{YearMonth{2024, time.March}, -(1 << 40)},
	} {
		if _, err := tc.from.AddMonths(tc.n); !errors.Is(err, ErrDateRange) {
			t.Errorf("%s + %d: expected ErrDateRange, got %v", tc.from, tc.n, err)
		}
	}
}

func TestParseYearMonth(t *testing.T) {
	ym, err := ParseYearMonth("2024-03")
	if err != nil || ym != (YearMonth{2024, time.March}) {
		t.Fatalf("got %v %v", ym, err)
	}
	if ym.String() != "2024-03" {
		t.Fatalf("String() = %q", ym.String())
	}
	for _, bad := range []string{"2024", "2024-13", "x-01", "0-01"} {
		if _, err := ParseYearMonth(bad); err == nil {
			t.Errorf("ParseYearMonth(%q) should fail", bad)
		}
	}

	var back YearMonth
	text, _ := ym.MarshalText()
	if err := back.UnmarshalText(text); err != nil || back != ym {
		t.Fatalf("text round trip = %v %v", back, err)
	}
}

func TestRange(t *testing.T) {
	loc := time.FixedZone("KST", 9*3600)
	start, end := YearMonth{2024, time.December}.Range(loc)
	if !start.Equal(time.Date(2024, 12, 1, 0, 0, 0, 0, loc)) || !end.Equal(time.Date(2025, 1, 1, 0, 0, 0, 0, loc)) {
		t.Fatalf("range = %v .. %v", start, end)
	}
}

func TestParseWeekStartAndTrailing(t *testing.T) {
	if ws, err := ParseWeekStart("Monday"); err != nil || ws != time.Monday {
		t.Fatalf("monday: %v %v", ws, err)
	}
	if _, err := ParseWeekStart("friday"); err == nil {
		t.Fatal("friday should be rejected")
	}
	if p, err := ParseTrailingPolicy("six_weeks"); err != nil || p != TrailingSixWeeks || p.String() != "six_weeks" {
		t.Fatalf("six_weeks: %v %v", p, err)
	}
	if _, err := ParseTrailingPolicy("forever"); err == nil {
		t.Fatal("unknown policy should be rejected")
	}
}
