// Package model defines shared data structures.
package model

import "time"

// Calendar bounds used by every calculation.
const (
	MinYear = 2000
	MaxYear = 2201

	EpochStartYear = 2020
	EpochEndYear   = 2050

	MinWeekNumber = 1
	MaxWeekNumber = 53
)

// Argument names of the get_weeks_as_dict procedure.
const (
	ArgYear        = "year"
	ArgFromWeekNum = "from_week_num"
	ArgToWeekNum   = "to_week_num"
)

// WeekQuery identifies a range of weeks within one year.
type WeekQuery struct {
	Year        int
	FromWeekNum int
	ToWeekNum   int
}

// DefaultWeekQuery returns the prefilled query for the given moment.
func DefaultWeekQuery(now time.Time) WeekQuery {
	return WeekQuery{Year: now.Year(), FromWeekNum: 1, ToWeekNum: 52}
}

// Args returns the procedure arguments. The keys match the remote signature exactly.
func (q WeekQuery) Args() map[string]any {
	return map[string]any{
		ArgYear:        q.Year,
		ArgFromWeekNum: q.FromWeekNum,
		ArgToWeekNum:   q.ToWeekNum,
	}
}

// Week is one Sunday-to-Saturday week. Dates are ISO strings (YYYY-MM-DD).
type Week struct {
	Year       int      `json:"year"`
	WeekNumber int      `json:"week_number"`
	WeekStart  string   `json:"week_start"`
	WeekEnd    string   `json:"week_end"`
	WeekDates  []string `json:"week_dates"`
}

// Year holds per-year calendar metadata.
type Year struct {
	Year          int    `json:"year"`
	DateStart     string `json:"date_start"`
	DateEnd       string `json:"date_end"`
	DaysInYear    int    `json:"days_in_year"`
	JanOneDayName string `json:"jan_one_dayname"`
	JanOneWeekPos int    `json:"jan_one_weekpos"`
	MaxWeekNumber int    `json:"max_week_number"`
}

// Day holds per-date calendar metadata.
type Day struct {
	Date             string `json:"date"`
	WeekdayName      string `json:"weekday_name"`
	WeekdayNameShort string `json:"weekday_name_short"`
	DayOfMonth       string `json:"day_of_month"`
	MonthInYearInt   string `json:"month_in_year_int"`
	MonthInYearStr   string `json:"month_in_year_str"`
	Year             int    `json:"year"`
	DayOfYear        string `json:"day_of_year"`
	WeekYear         int    `json:"week_year"`
	WeekNumber       int    `json:"week_number"`
	IndexInWeek      int    `json:"index_in_week"`
}

// TemporalDate is a row of the Temporal Dates table.
type TemporalDate struct {
	CalendarDate time.Time
	WeekYear     int
	WeekNumber   int
	ScalarValue  int64
}
