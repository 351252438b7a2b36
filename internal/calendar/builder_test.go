package calendar

import (
	"errors"
	"testing"
)

func TestWeekNumbersMatchKnownDates(t *testing.T) {
	b, err := NewBuilder(2020, 2023, "SUN")
	if err != nil {
		t.Fatalf("new builder: %v", err)
	}
	cal := b.Build()

	cases := []struct {
		date string
		week int
	}{
		{"2020-01-01", 1},
		{"2020-01-04", 1},
		{"2020-01-05", 2},
		{"2020-01-11", 2},
		{"2020-01-12", 3},
		{"2021-01-01", 1},
		{"2021-01-02", 1},
		{"2021-01-03", 2},
		{"2021-01-09", 2},
		{"2021-01-10", 3},
		{"2021-01-16", 3},
		{"2021-04-30", 18},
		{"2022-01-01", 1},
		{"2022-01-02", 2},
		{"2022-01-08", 2},
		{"2022-01-09", 3},
		{"2022-01-15", 3},
		{"2023-01-01", 1},
		{"2023-01-07", 1},
	}
	for _, tc := range cases {
		d, err := ParseDate(tc.date)
		if err != nil {
			t.Fatalf("parse %s: %v", tc.date, err)
		}
		w, ok := cal.WeekOf(d)
		if !ok {
			t.Fatalf("no week for %s", tc.date)
		}
		if w.WeekNumber != tc.week {
			t.Fatalf("%s: expected week %d, got %d", tc.date, tc.week, w.WeekNumber)
		}
	}
}

func TestWeekStraddlingNewYearBelongsToLaterYear(t *testing.T) {
	b, err := NewBuilder(2021, 2022, "")
	if err != nil {
		t.Fatalf("new builder: %v", err)
	}
	cal := b.Build()
	w, ok := cal.Week(2022, 1)
	if !ok {
		t.Fatalf("expected week 1 of 2022")
	}
	if w.WeekStart != "2021-12-26" || w.WeekEnd != "2022-01-01" {
		t.Fatalf("unexpected week bounds: %s..%s", w.WeekStart, w.WeekEnd)
	}
	if len(w.WeekDates) != 7 {
		t.Fatalf("expected 7 dates, got %d", len(w.WeekDates))
	}
}

func TestYearMetadata(t *testing.T) {
	b, err := NewBuilder(2020, 2021, "SUN")
	if err != nil {
		t.Fatalf("new builder: %v", err)
	}
	cal := b.Build()
	if len(cal.Years) != 2 {
		t.Fatalf("expected 2 years, got %d", len(cal.Years))
	}
	y := cal.Years[0]
	if y.DaysInYear != 366 {
		t.Fatalf("2020 is a leap year, got %d days", y.DaysInYear)
	}
	if y.JanOneDayName != "WED" || y.JanOneWeekPos != 4 {
		t.Fatalf("unexpected jan one: %s pos %d", y.JanOneDayName, y.JanOneWeekPos)
	}
	if y.DateStart != "01/01/2020" || y.DateEnd != "12/31/2020" {
		t.Fatalf("unexpected bounds: %s..%s", y.DateStart, y.DateEnd)
	}
	if y.MaxWeekNumber != 52 {
		t.Fatalf("expected 52 weeks in 2020, got %d", y.MaxWeekNumber)
	}
}

func TestDayMetadata(t *testing.T) {
	b, err := NewBuilder(2021, 2021, "SUN")
	if err != nil {
		t.Fatalf("new builder: %v", err)
	}
	cal := b.Build()
	if len(cal.Days) != 365 {
		t.Fatalf("expected 365 days, got %d", len(cal.Days))
	}
	var found bool
	for _, d := range cal.Days {
		if d.Date != "2021-04-17" {
			continue
		}
		found = true
		if d.WeekdayName != "Saturday" || d.IndexInWeek != 7 {
			t.Fatalf("unexpected weekday: %s index %d", d.WeekdayName, d.IndexInWeek)
		}
		if d.DayOfYear != "107" || d.MonthInYearInt != "04" || d.MonthInYearStr != "April" {
			t.Fatalf("unexpected day fields: %+v", d)
		}
	}
	if !found {
		t.Fatalf("2021-04-17 missing from days")
	}
}

func TestNewBuilderValidation(t *testing.T) {
	if _, err := NewBuilder(2020, 2020, "MON"); !errors.Is(err, ErrMondayUnsupported) {
		t.Fatalf("expected ErrMondayUnsupported, got %v", err)
	}
	if _, err := NewBuilder(2020, 2020, "TUE"); err == nil {
		t.Fatalf("expected error for TUE")
	}
	if _, err := NewBuilder(2030, 2020, "SUN"); err == nil {
		t.Fatalf("expected error for reversed range")
	}
	if _, err := NewBuilder(1990, 2020, "SUN"); err == nil {
		t.Fatalf("expected error for year below minimum")
	}
	b, err := NewBuilder(0, 0, "SUN")
	if err != nil {
		t.Fatalf("defaults: %v", err)
	}
	if b.StartYear() != 2020 || b.EndYear() != 2050 {
		t.Fatalf("unexpected defaults: %d..%d", b.StartYear(), b.EndYear())
	}
}
