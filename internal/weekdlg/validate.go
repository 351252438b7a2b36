package weekdlg

import (
	"strconv"
	"strings"

	"github.com/verte-zerg/temporal/internal/model"
)

// Localization keys of validation messages.
const (
	KeyRequired  = "weeks.error.required"
	KeyInteger   = "weeks.error.integer"
	KeyYearRange = "weeks.error.year_range"
	KeyWeekRange = "weeks.error.week_range"
	KeyWeekOrder = "weeks.error.week_order"
)

// FieldError reports an invalid form field.
type FieldError struct {
	Field string
	Key   string
}

func (e *FieldError) Error() string {
	return e.Field + ": " + e.Key
}

// ParseQuery validates the raw form values.
func ParseQuery(values map[string]string) (model.WeekQuery, error) {
	year, err := intField(values, model.ArgYear)
	if err != nil {
		return model.WeekQuery{}, err
	}
	if year < model.MinYear || year > model.MaxYear {
		return model.WeekQuery{}, &FieldError{Field: model.ArgYear, Key: KeyYearRange}
	}
	from, err := weekField(values, model.ArgFromWeekNum)
	if err != nil {
		return model.WeekQuery{}, err
	}
	to, err := weekField(values, model.ArgToWeekNum)
	if err != nil {
		return model.WeekQuery{}, err
	}
	if from > to {
		return model.WeekQuery{}, &FieldError{Field: model.ArgToWeekNum, Key: KeyWeekOrder}
	}
	return model.WeekQuery{Year: year, FromWeekNum: from, ToWeekNum: to}, nil
}

func weekField(values map[string]string, name string) (int, error) {
	n, err := intField(values, name)
	if err != nil {
		return 0, err
	}
	if n < model.MinWeekNumber || n > model.MaxWeekNumber {
		return 0, &FieldError{Field: name, Key: KeyWeekRange}
	}
	return n, nil
}

func intField(values map[string]string, name string) (int, error) {
	raw := strings.TrimSpace(values[name])
	if raw == "" {
		return 0, &FieldError{Field: name, Key: KeyRequired}
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, &FieldError{Field: name, Key: KeyInteger}
	}
	return n, nil
}
