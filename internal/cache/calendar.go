package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/verte-zerg/temporal/internal/calendar"
	"github.com/verte-zerg/temporal/internal/model"
)

// Key layout. Compound keys are built with forward slashes.
const (
	YearsKey      = "temporal/years"
	WeeksKey      = "temporal/weeks"
	DaysKey       = "temporal/days"
	yearKeyFormat = "temporal/year/%d"
	weekKeyFormat = "temporal/week/%s"
	dayKeyFormat  = "temporal/day/%s"
)

// WeekID formats a week identifier such as "2021-05".
func WeekID(year, number int) string {
	return fmt.Sprintf("%d-%02d", year, number)
}

// YearKey returns the hash key of a year.
func YearKey(year int) string {
	return fmt.Sprintf(yearKeyFormat, year)
}

// WeekKey returns the hash key of a week.
func WeekKey(year, number int) string {
	return fmt.Sprintf(weekKeyFormat, WeekID(year, number))
}

// DayKey returns the hash key of a date.
func DayKey(d time.Time) string {
	return fmt.Sprintf(dayKeyFormat, d.Format(calendar.DateLayout))
}

// CalendarCache reads and writes calendar records in Redis.
type CalendarCache struct {
	client Client
}

// NewCalendarCache initializes a CalendarCache with the Redis client.
func NewCalendarCache(client Client) *CalendarCache {
	return &CalendarCache{client: client}
}

// Ping checks the underlying client.
func (c *CalendarCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx)
}

// Rebuild writes weeks, then years, then days.
func (c *CalendarCache) Rebuild(ctx context.Context, cal calendar.Calendar) error {
	if err := c.WriteWeeks(ctx, cal.Weeks); err != nil {
		return err
	}
	if err := c.WriteYears(ctx, cal.Years); err != nil {
		return err
	}
	return c.WriteDays(ctx, cal.Days)
}

// WriteYears replaces the year set and every year hash.
func (c *CalendarCache) WriteYears(ctx context.Context, years []model.Year) error {
	members := make([]string, 0, len(years))
	hashes := make(map[string]map[string]string, len(years))
	for _, y := range years {
		members = append(members, strconv.Itoa(y.Year))
		hashes[YearKey(y.Year)] = yearFields(y)
	}
	if err := c.client.ReplaceHashes(ctx, YearsKey, members, hashes); err != nil {
		return fmt.Errorf("failed to write years: %w", err)
	}
	return nil
}

// WriteWeeks replaces the week set and every week hash.
func (c *CalendarCache) WriteWeeks(ctx context.Context, weeks []model.Week) error {
	ids := make([]string, 0, len(weeks))
	hashes := make(map[string]map[string]string, len(weeks))
	for _, w := range weeks {
		fields, err := weekFields(w)
		if err != nil {
			return err
		}
		ids = append(ids, WeekID(w.Year, w.WeekNumber))
		hashes[WeekKey(w.Year, w.WeekNumber)] = fields
	}
	if err := c.client.ReplaceHashes(ctx, WeeksKey, ids, hashes); err != nil {
		return fmt.Errorf("failed to write weeks: %w", err)
	}
	return nil
}

// WriteDays replaces the day set and every day hash.
func (c *CalendarCache) WriteDays(ctx context.Context, days []model.Day) error {
	keys := make([]string, 0, len(days))
	hashes := make(map[string]map[string]string, len(days))
	for _, d := range days {
		key := fmt.Sprintf(dayKeyFormat, d.Date)
		keys = append(keys, key)
		hashes[key] = dayFields(d)
	}
	if err := c.client.ReplaceHashes(ctx, DaysKey, keys, hashes); err != nil {
		return fmt.Errorf("failed to write days: %w", err)
	}
	return nil
}

// ReadYears returns the cached years in ascending order.
func (c *CalendarCache) ReadYears(ctx context.Context) ([]int, error) {
	members, err := c.client.SMembers(ctx, YearsKey)
	if err != nil {
		return nil, fmt.Errorf("failed to read years: %w", err)
	}
	years := make([]int, 0, len(members))
	for _, m := range members {
		y, err := strconv.Atoi(m)
		if err != nil {
			return nil, fmt.Errorf("invalid year member %q: %w", m, err)
		}
		years = append(years, y)
	}
	sort.Ints(years)
	return years, nil
}

// ReadWeekIDs returns the cached week identifiers in ascending order.
func (c *CalendarCache) ReadWeekIDs(ctx context.Context) ([]string, error) {
	ids, err := c.client.SMembers(ctx, WeeksKey)
	if err != nil {
		return nil, fmt.Errorf("failed to read weeks: %w", err)
	}
	sort.Strings(ids)
	return ids, nil
}

// ReadYear returns nil when the year is not cached.
func (c *CalendarCache) ReadYear(ctx context.Context, year int) (*model.Year, error) {
	hash, err := c.client.HGetAll(ctx, YearKey(year))
	if err != nil {
		return nil, fmt.Errorf("failed to read year %d: %w", year, err)
	}
	if len(hash) == 0 {
		return nil, nil
	}
	y := model.Year{
		DateStart:     hash["date_start"],
		DateEnd:       hash["date_end"],
		JanOneDayName: hash["jan_one_dayname"],
	}
	if err := parseInts(hash, map[string]*int{
		"year":            &y.Year,
		"days_in_year":    &y.DaysInYear,
		"jan_one_weekpos": &y.JanOneWeekPos,
		"max_week_number": &y.MaxWeekNumber,
	}); err != nil {
		return nil, fmt.Errorf("year %d: %w", year, err)
	}
	return &y, nil
}

// ReadWeek returns nil when the week is not cached.
func (c *CalendarCache) ReadWeek(ctx context.Context, year, number int) (*model.Week, error) {
	key := WeekKey(year, number)
	hash, err := c.client.HGetAll(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", key, err)
	}
	if len(hash) == 0 {
		return nil, nil
	}
	w := model.Week{
		WeekStart: hash["week_start"],
		WeekEnd:   hash["week_end"],
	}
	if err := parseInts(hash, map[string]*int{
		"year":        &w.Year,
		"week_number": &w.WeekNumber,
	}); err != nil {
		return nil, fmt.Errorf("%s: %w", key, err)
	}
	if raw := hash["week_dates"]; raw != "" {
		if err := json.Unmarshal([]byte(raw), &w.WeekDates); err != nil {
			return nil, fmt.Errorf("%s: invalid week_dates: %w", key, err)
		}
	}
	return &w, nil
}

// ReadDay returns nil when the date is not cached.
func (c *CalendarCache) ReadDay(ctx context.Context, d time.Time) (*model.Day, error) {
	key := DayKey(d)
	hash, err := c.client.HGetAll(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", key, err)
	}
	if len(hash) == 0 {
		return nil, nil
	}
	day := model.Day{
		Date:             hash["date"],
		WeekdayName:      hash["weekday_name"],
		WeekdayNameShort: hash["weekday_name_short"],
		DayOfMonth:       hash["day_of_month"],
		MonthInYearInt:   hash["month_in_year_int"],
		MonthInYearStr:   hash["month_in_year_str"],
		DayOfYear:        hash["day_of_year"],
	}
	if err := parseInts(hash, map[string]*int{
		"year":          &day.Year,
		"week_year":     &day.WeekYear,
		"week_number":   &day.WeekNumber,
		"index_in_week": &day.IndexInWeek,
	}); err != nil {
		return nil, fmt.Errorf("%s: %w", key, err)
	}
	return &day, nil
}

func yearFields(y model.Year) map[string]string {
	return map[string]string{
		"year":            strconv.Itoa(y.Year),
		"date_start":      y.DateStart,
		"date_end":        y.DateEnd,
		"days_in_year":    strconv.Itoa(y.DaysInYear),
		"jan_one_dayname": y.JanOneDayName,
		"jan_one_weekpos": strconv.Itoa(y.JanOneWeekPos),
		"max_week_number": strconv.Itoa(y.MaxWeekNumber),
	}
}

func weekFields(w model.Week) (map[string]string, error) {
	dates, err := json.Marshal(w.WeekDates)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal week dates: %w", err)
	}
	return map[string]string{
		"year":        strconv.Itoa(w.Year),
		"week_number": strconv.Itoa(w.WeekNumber),
		"week_start":  w.WeekStart,
		"week_end":    w.WeekEnd,
		"week_dates":  string(dates),
	}, nil
}

func dayFields(d model.Day) map[string]string {
	return map[string]string{
		"date":               d.Date,
		"weekday_name":       d.WeekdayName,
		"weekday_name_short": d.WeekdayNameShort,
		"day_of_month":       d.DayOfMonth,
		"month_in_year_int":  d.MonthInYearInt,
		"month_in_year_str":  d.MonthInYearStr,
		"year":               strconv.Itoa(d.Year),
		"day_of_year":        d.DayOfYear,
		"week_year":          strconv.Itoa(d.WeekYear),
		"week_number":        strconv.Itoa(d.WeekNumber),
		"index_in_week":      strconv.Itoa(d.IndexInWeek),
	}
}

func parseInts(hash map[string]string, targets map[string]*int) error {
	for field, target := range targets {
		raw := strings.TrimSpace(hash[field])
		if raw == "" {
			continue
		}
		v, err := strconv.Atoi(raw)
		if err != nil {
			return fmt.Errorf("invalid %s %q: %w", field, raw, err)
		}
		*target = v
	}
	return nil
}
