package cache

import (
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/verte-zerg/temporal/internal/calendar"
)

func buildCalendar(t *testing.T, start, end int) calendar.Calendar {
	t.Helper()
	b, err := calendar.NewBuilder(start, end, "SUN")
	if err != nil {
		t.Fatalf("new builder: %v", err)
	}
	return b.Build()
}

func TestCalendarCacheRebuildAndReadWeek(t *testing.T) {
	ctx := context.Background()
	mock := NewMockClient()
	c := NewCalendarCache(mock)

	if err := c.Rebuild(ctx, buildCalendar(t, 2021, 2021)); err != nil {
		t.Fatalf("rebuild: %v", err)
	}

	w, err := c.ReadWeek(ctx, 2021, 18)
	if err != nil {
		t.Fatalf("read week: %v", err)
	}
	if w == nil {
		t.Fatalf("expected week 2021-18 to be cached")
	}
	if w.WeekStart != "2021-04-25" || w.WeekEnd != "2021-05-01" {
		t.Fatalf("unexpected bounds: %s..%s", w.WeekStart, w.WeekEnd)
	}
	if len(w.WeekDates) != 7 || w.WeekDates[5] != "2021-04-30" {
		t.Fatalf("unexpected dates: %v", w.WeekDates)
	}
}

func TestCalendarCacheMissingKeysReadAsNil(t *testing.T) {
	ctx := context.Background()
	c := NewCalendarCache(NewMockClient())

	w, err := c.ReadWeek(ctx, 2099, 1)
	if err != nil || w != nil {
		t.Fatalf("expected nil week without error, got %v, %v", w, err)
	}
	y, err := c.ReadYear(ctx, 2099)
	if err != nil || y != nil {
		t.Fatalf("expected nil year without error, got %v, %v", y, err)
	}
}

func TestCalendarCacheYearsAndDays(t *testing.T) {
	ctx := context.Background()
	c := NewCalendarCache(NewMockClient())
	if err := c.Rebuild(ctx, buildCalendar(t, 2020, 2021)); err != nil {
		t.Fatalf("rebuild: %v", err)
	}

	years, err := c.ReadYears(ctx)
	if err != nil {
		t.Fatalf("read years: %v", err)
	}
	if len(years) != 2 || years[0] != 2020 || years[1] != 2021 {
		t.Fatalf("unexpected years: %v", years)
	}

	y, err := c.ReadYear(ctx, 2020)
	if err != nil || y == nil {
		t.Fatalf("read year: %v %v", y, err)
	}
	if y.MaxWeekNumber != 52 || y.DaysInYear != 366 {
		t.Fatalf("unexpected year: %+v", y)
	}

	d, err := calendar.ParseDate("2021-01-03")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	day, err := c.ReadDay(ctx, d)
	if err != nil || day == nil {
		t.Fatalf("read day: %v %v", day, err)
	}
	if day.WeekNumber != 2 || day.WeekYear != 2021 || day.IndexInWeek != 1 {
		t.Fatalf("unexpected day: %+v", day)
	}

	ids, err := c.ReadWeekIDs(ctx)
	if err != nil {
		t.Fatalf("read week ids: %v", err)
	}
	if len(ids) == 0 || ids[0] != "2020-01" {
		t.Fatalf("unexpected week ids: %v", ids[:1])
	}
}

func TestKeyFormats(t *testing.T) {
	if got := WeekKey(2021, 5); got != "temporal/week/2021-05" {
		t.Fatalf("unexpected week key %q", got)
	}
	if got := YearKey(2020); got != "temporal/year/2020" {
		t.Fatalf("unexpected year key %q", got)
	}
	d, _ := calendar.ParseDate("2020-12-26")
	if got := DayKey(d); got != "temporal/day/2020-12-26" {
		t.Fatalf("unexpected day key %q", got)
	}
}

func TestCalendarCacheReadsBackWhatWasBuilt(t *testing.T) {
	ctx := context.Background()
	c := NewCalendarCache(NewMockClient())
	cal := buildCalendar(t, 2023, 2024)
	if err := c.Rebuild(ctx, cal); err != nil {
		t.Fatalf("rebuild: %v", err)
	}

	for _, want := range cal.Years {
		got, err := c.ReadYear(ctx, want.Year)
		if err != nil || got == nil {
			t.Fatalf("read year %d: %v, %v", want.Year, got, err)
		}
		if diff := cmp.Diff(want, *got); diff != "" {
			t.Fatalf("year %d mismatch (-want +got):\n%s", want.Year, diff)
		}
	}
	for _, want := range cal.Weeks {
		got, err := c.ReadWeek(ctx, want.Year, want.WeekNumber)
		if err != nil || got == nil {
			t.Fatalf("read week %s: %v, %v", WeekID(want.Year, want.WeekNumber), got, err)
		}
		if diff := cmp.Diff(want, *got); diff != "" {
			t.Fatalf("week %s mismatch (-want +got):\n%s", WeekID(want.Year, want.WeekNumber), diff)
		}
	}
	for _, want := range cal.Days[:40] {
		d, err := calendar.ParseDate(want.Date)
		if err != nil {
			t.Fatalf("parse %s: %v", want.Date, err)
		}
		got, err := c.ReadDay(ctx, d)
		if err != nil || got == nil {
			t.Fatalf("read day %s: %v, %v", want.Date, got, err)
		}
		if diff := cmp.Diff(want, *got); diff != "" {
			t.Fatalf("day %s mismatch (-want +got):\n%s", want.Date, diff)
		}
	}
}

// countingClient counts the write batches reaching the client.
type countingClient struct {
	*MockClient
	batches []string
}

func (c *countingClient) ReplaceHashes(ctx context.Context, setKey string, members []string, hashes map[string]map[string]string) error {
	c.batches = append(c.batches, setKey)
	return c.MockClient.ReplaceHashes(ctx, setKey, members, hashes)
}

func TestCalendarCacheRebuildWritesOneBatchPerSet(t *testing.T) {
	ctx := context.Background()
	client := &countingClient{MockClient: NewMockClient()}
	c := NewCalendarCache(client)

	if err := c.Rebuild(ctx, buildCalendar(t, 2020, 2022)); err != nil {
		t.Fatalf("rebuild: %v", err)
	}
	if diff := cmp.Diff([]string{WeeksKey, YearsKey, DaysKey}, client.batches); diff != "" {
		t.Fatalf("unexpected batches (-want +got):\n%s", diff)
	}

	// A second rebuild replaces the sets instead of growing them.
	if err := c.Rebuild(ctx, buildCalendar(t, 2021, 2021)); err != nil {
		t.Fatalf("rebuild: %v", err)
	}
	years, err := c.ReadYears(ctx)
	if err != nil {
		t.Fatalf("read years: %v", err)
	}
	if diff := cmp.Diff([]int{2021}, years); diff != "" {
		t.Fatalf("unexpected years (-want +got):\n%s", diff)
	}
}
