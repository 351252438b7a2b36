// Package calendar computes Sunday-based week, year and day metadata.
package calendar

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/verte-zerg/temporal/internal/model"
)

// DateLayout is the ISO date layout used for all stored dates.
const DateLayout = "2006-01-02"

const yearDateLayout = "01/02/2006"

// ErrMondayUnsupported is returned for weeks that begin on Monday.
var ErrMondayUnsupported = errors.New("weeks that begin with Monday are not implemented")

// Calendar is the result of a build.
type Calendar struct {
	Years []model.Year
	Weeks []model.Week
	Days  []model.Day
}

// Builder builds calendar data for an inclusive range of years.
type Builder struct {
	startYear int
	endYear   int
}

// NewBuilder validates the range. Zero years fall back to the epoch defaults.
func NewBuilder(startYear, endYear int, startOfWeek string) (*Builder, error) {
	switch strings.ToUpper(strings.TrimSpace(startOfWeek)) {
	case "", "SUN":
	case "MON":
		return nil, ErrMondayUnsupported
	default:
		return nil, fmt.Errorf("start of week must be either 'SUN' or 'MON' (got %q)", startOfWeek)
	}
	if startYear == 0 {
		startYear = model.EpochStartYear
	}
	if endYear == 0 {
		endYear = model.EpochEndYear
	}
	if endYear < startYear {
		return nil, fmt.Errorf("ending year %d cannot be smaller than starting year %d", endYear, startYear)
	}
	if startYear < model.MinYear || endYear > model.MaxYear {
		return nil, fmt.Errorf("years must be between %d and %d", model.MinYear, model.MaxYear)
	}
	return &Builder{startYear: startYear, endYear: endYear}, nil
}

// StartYear returns the first year of the range.
func (b *Builder) StartYear() int { return b.startYear }

// EndYear returns the last year of the range.
func (b *Builder) EndYear() int { return b.endYear }

// Build computes weeks first, then years and days from them.
func (b *Builder) Build() Calendar {
	weeks := b.buildWeeks()
	index := newWeekIndex(weeks)
	return Calendar{
		Years: b.buildYears(weeks),
		Weeks: weeks,
		Days:  b.buildDays(index),
	}
}

func (b *Builder) buildWeeks() []model.Week {
	jan1 := date(b.startYear, time.January, 1)
	start := jan1.AddDate(0, 0, -int(jan1.Weekday()))

	var weeks []model.Week
	number := 0
	for start.Year() <= b.endYear {
		end := start.AddDate(0, 0, 6)
		switch {
		case start.Month() == time.January && start.Day() == 1:
			number = 1
		case end.Year() > start.Year():
			number = 1
		default:
			number++
		}
		dates := make([]string, 0, 7)
		for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
			dates = append(dates, d.Format(DateLayout))
		}
		weeks = append(weeks, model.Week{
			Year:       end.Year(),
			WeekNumber: number,
			WeekStart:  start.Format(DateLayout),
			WeekEnd:    end.Format(DateLayout),
			WeekDates:  dates,
		})
		start = start.AddDate(0, 0, 7)
	}
	return weeks
}

func (b *Builder) buildYears(weeks []model.Week) []model.Year {
	maxWeek := map[int]int{}
	for _, w := range weeks {
		if w.WeekNumber > maxWeek[w.Year] {
			maxWeek[w.Year] = w.WeekNumber
		}
	}
	years := make([]model.Year, 0, b.endYear-b.startYear+1)
	for y := b.startYear; y <= b.endYear; y++ {
		start := date(y, time.January, 1)
		end := date(y, time.December, 31)
		years = append(years, model.Year{
			Year:          y,
			DateStart:     start.Format(yearDateLayout),
			DateEnd:       end.Format(yearDateLayout),
			DaysInYear:    int(end.Sub(start).Hours()/24) + 1,
			JanOneDayName: strings.ToUpper(start.Format("Mon")),
			JanOneWeekPos: int(start.Weekday()) + 1,
			MaxWeekNumber: maxWeek[y],
		})
	}
	return years
}

func (b *Builder) buildDays(index weekIndex) []model.Day {
	start := date(b.startYear, time.January, 1)
	end := date(b.endYear, time.December, 31)
	var days []model.Day
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		days = append(days, DayOf(d, index.lookup(d)))
	}
	return days
}

// DayOf describes a single date given the week that contains it.
func DayOf(d time.Time, w model.Week) model.Day {
	return model.Day{
		Date:             d.Format(DateLayout),
		WeekdayName:      d.Format("Monday"),
		WeekdayNameShort: d.Format("Mon"),
		DayOfMonth:       d.Format("02"),
		MonthInYearInt:   d.Format("01"),
		MonthInYearStr:   d.Format("January"),
		Year:             d.Year(),
		DayOfYear:        fmt.Sprintf("%03d", d.YearDay()),
		WeekYear:         w.Year,
		WeekNumber:       w.WeekNumber,
		IndexInWeek:      int(d.Weekday()) + 1,
	}
}

// WeekOf returns the week containing d, or false when d is outside the calendar.
func (c Calendar) WeekOf(d time.Time) (model.Week, bool) {
	w := newWeekIndex(c.Weeks).lookup(d)
	return w, w.WeekNumber != 0
}

// Week returns the week with the given year and number.
func (c Calendar) Week(year, number int) (model.Week, bool) {
	for _, w := range c.Weeks {
		if w.Year == year && w.WeekNumber == number {
			return w, true
		}
	}
	return model.Week{}, false
}

type weekIndex map[string]model.Week

func newWeekIndex(weeks []model.Week) weekIndex {
	idx := make(weekIndex, len(weeks))
	for _, w := range weeks {
		idx[w.WeekStart] = w
	}
	return idx
}

func (idx weekIndex) lookup(d time.Time) model.Week {
	sunday := d.AddDate(0, 0, -int(d.Weekday()))
	return idx[sunday.Format(DateLayout)]
}

func date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// ParseDate parses an ISO date in UTC.
func ParseDate(s string) (time.Time, error) {
	return time.ParseInLocation(DateLayout, strings.TrimSpace(s), time.UTC)
}
