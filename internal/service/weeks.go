// Package service implements the procedures served to clients.
package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/verte-zerg/temporal/internal/cache"
	"github.com/verte-zerg/temporal/internal/calendar"
	"github.com/verte-zerg/temporal/internal/model"
	"github.com/verte-zerg/temporal/internal/realtime"
)

var (
	// ErrWeekNotFound is returned when a week is missing even after a rebuild.
	ErrWeekNotFound = errors.New("week not found")
	// ErrInvalidQuery wraps argument validation failures.
	ErrInvalidQuery = errors.New("invalid week query")
	// ErrDayNotFound is returned when a date is outside the cached range.
	ErrDayNotFound = errors.New("day not found")
	// ErrNoDates is returned by date operations when no store is configured.
	ErrNoDates = errors.New("temporal dates are not configured")
)

// Publisher pushes realtime events.
type Publisher interface {
	Publish(ctx context.Context, ev realtime.Event) error
}

// Dates is the Temporal Dates table.
type Dates interface {
	InsertDays(ctx context.Context, from, to time.Time) (int, error)
	PopulateWeekNumbers(ctx context.Context, cal calendar.Calendar, through time.Time) (int, error)
	DateToScalar(ctx context.Context, d time.Time) (int64, error)
}

// WeekService answers week queries from the calendar cache.
type WeekService struct {
	cache     *cache.CalendarCache
	builder   *calendar.Builder
	publisher Publisher
	dates     Dates
	logger    *zap.Logger

	rebuildMu sync.Mutex
}

// NewWeekService wires the service. publisher and dates may be nil.
func NewWeekService(c *cache.CalendarCache, b *calendar.Builder, publisher Publisher, dates Dates, logger *zap.Logger) *WeekService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WeekService{
		cache:     c,
		builder:   b,
		publisher: publisher,
		dates:     dates,
		logger:    logger,
	}
}

// ValidateQuery checks the bounds of q.
func ValidateQuery(q model.WeekQuery) error {
	if q.Year < model.MinYear || q.Year > model.MaxYear {
		return fmt.Errorf("%w: year %d is outside %d..%d", ErrInvalidQuery, q.Year, model.MinYear, model.MaxYear)
	}
	for _, n := range []int{q.FromWeekNum, q.ToWeekNum} {
		if n < model.MinWeekNumber || n > model.MaxWeekNumber {
			return fmt.Errorf("%w: week number %d is outside %d..%d", ErrInvalidQuery, n, model.MinWeekNumber, model.MaxWeekNumber)
		}
	}
	if q.FromWeekNum > q.ToWeekNum {
		return fmt.Errorf("%w: from_week_num %d is after to_week_num %d", ErrInvalidQuery, q.FromWeekNum, q.ToWeekNum)
	}
	return nil
}

// GetWeeks returns the weeks of q in order. The range is clamped to the
// last week of the year. A cache miss triggers one rebuild.
func (s *WeekService) GetWeeks(ctx context.Context, q model.WeekQuery) ([]model.Week, error) {
	if err := ValidateQuery(q); err != nil {
		return nil, err
	}
	rebuilt := false

	year, err := s.cache.ReadYear(ctx, q.Year)
	if err != nil {
		return nil, err
	}
	if year == nil {
		s.logger.Warn("year missing from cache, rebuilding", zap.Int("year", q.Year))
		if err := s.Rebuild(ctx); err != nil {
			return nil, err
		}
		rebuilt = true
		if year, err = s.cache.ReadYear(ctx, q.Year); err != nil {
			return nil, err
		}
		if year == nil {
			return nil, fmt.Errorf("%w: year %d", ErrWeekNotFound, q.Year)
		}
	}

	to := q.ToWeekNum
	if year.MaxWeekNumber > 0 && to > year.MaxWeekNumber {
		to = year.MaxWeekNumber
	}
	if q.FromWeekNum > to {
		return nil, fmt.Errorf("%w: %s", ErrWeekNotFound, cache.WeekID(q.Year, q.FromWeekNum))
	}

	weeks := make([]model.Week, 0, to-q.FromWeekNum+1)
	for n := q.FromWeekNum; n <= to; n++ {
		w, err := s.cache.ReadWeek(ctx, q.Year, n)
		if err != nil {
			return nil, err
		}
		if w == nil && !rebuilt {
			s.logger.Warn("week missing from cache, rebuilding", zap.String("week", cache.WeekID(q.Year, n)))
			if err := s.Rebuild(ctx); err != nil {
				return nil, err
			}
			rebuilt = true
			if w, err = s.cache.ReadWeek(ctx, q.Year, n); err != nil {
				return nil, err
			}
		}
		if w == nil {
			return nil, fmt.Errorf("%w: %s", ErrWeekNotFound, cache.WeekID(q.Year, n))
		}
		weeks = append(weeks, *w)
	}
	return weeks, nil
}

// Years lists the cached years, rebuilding an empty cache first.
func (s *WeekService) Years(ctx context.Context) ([]int, error) {
	years, err := s.cache.ReadYears(ctx)
	if err != nil || len(years) > 0 {
		return years, err
	}
	if err := s.Rebuild(ctx); err != nil {
		return nil, err
	}
	return s.cache.ReadYears(ctx)
}

// WeekIDs lists the cached "YYYY-WW" week identifiers.
func (s *WeekService) WeekIDs(ctx context.Context) ([]string, error) {
	ids, err := s.cache.ReadWeekIDs(ctx)
	if err != nil || len(ids) > 0 {
		return ids, err
	}
	if err := s.Rebuild(ctx); err != nil {
		return nil, err
	}
	return s.cache.ReadWeekIDs(ctx)
}

// Day returns the cached record of d. A miss triggers one rebuild.
func (s *WeekService) Day(ctx context.Context, d time.Time) (*model.Day, error) {
	day, err := s.cache.ReadDay(ctx, d)
	if err != nil || day != nil {
		return day, err
	}
	s.logger.Warn("day missing from cache, rebuilding", zap.String("date", d.Format(calendar.DateLayout)))
	if err := s.Rebuild(ctx); err != nil {
		return nil, err
	}
	if day, err = s.cache.ReadDay(ctx, d); err != nil {
		return nil, err
	}
	if day == nil {
		return nil, fmt.Errorf("%w: %s", ErrDayNotFound, d.Format(calendar.DateLayout))
	}
	return day, nil
}

// Rebuild builds the configured range and writes it to the cache.
func (s *WeekService) Rebuild(ctx context.Context) error {
	s.rebuildMu.Lock()
	defer s.rebuildMu.Unlock()

	start := time.Now()
	cal := s.builder.Build()
	if err := s.cache.Rebuild(ctx, cal); err != nil {
		return fmt.Errorf("failed to rebuild calendar cache: %w", err)
	}
	s.logger.Info("calendar cache rebuilt",
		zap.Int("start_year", s.builder.StartYear()),
		zap.Int("end_year", s.builder.EndYear()),
		zap.Int("weeks", len(cal.Weeks)),
		zap.Int("days", len(cal.Days)),
		zap.Duration("elapsed", time.Since(start)))
	return nil
}

// ShowWeeks asks the sessions of user to open the week dialog.
// An empty user reaches every session.
func (s *WeekService) ShowWeeks(ctx context.Context, user string) error {
	if s.publisher == nil {
		return errors.New("realtime publisher is not configured")
	}
	return s.publisher.Publish(ctx, realtime.Event{Name: realtime.EventShowWeeks, User: user})
}

// PopulateDates inserts every date of the configured range and fills in
// missing week numbers up to through.
func (s *WeekService) PopulateDates(ctx context.Context, through time.Time) (inserted, updated int, err error) {
	if s.dates == nil {
		return 0, 0, ErrNoDates
	}
	from := time.Date(s.builder.StartYear(), time.January, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(s.builder.EndYear(), time.December, 31, 0, 0, 0, 0, time.UTC)
	inserted, err = s.dates.InsertDays(ctx, from, to)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to insert dates: %w", err)
	}
	updated, err = s.dates.PopulateWeekNumbers(ctx, s.builder.Build(), through)
	if err != nil {
		return inserted, 0, fmt.Errorf("failed to populate week numbers: %w", err)
	}
	s.logger.Info("temporal dates populated", zap.Int("inserted", inserted), zap.Int("updated", updated))
	return inserted, updated, nil
}

// DateToScalar returns the gapless integer of d.
func (s *WeekService) DateToScalar(ctx context.Context, d time.Time) (int64, error) {
	if s.dates == nil {
		return 0, ErrNoDates
	}
	return s.dates.DateToScalar(ctx, d)
}
