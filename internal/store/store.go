// Package store handles SQLite persistence of the Temporal Dates table.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/verte-zerg/temporal/internal/calendar"
	"github.com/verte-zerg/temporal/internal/model"

	_ "modernc.org/sqlite" // SQLite driver.
)

// ErrNotFound is returned when a date has no row.
var ErrNotFound = errors.New("temporal date not found")

// scalarOrigin is the date whose scalar value is 1.
var scalarOrigin = time.Date(model.MinYear, time.January, 1, 0, 0, 0, 0, time.UTC)

// Store wraps SQLite access for calendar dates.
type Store struct {
	db *sql.DB
}

// Open opens or creates the SQLite database and applies migrations.
func Open(path string) (*Store, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		if cerr := db.Close(); cerr != nil {
			// Best-effort close on migration failure.
			_ = cerr
		}
		return nil, err
	}
	return store, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS temporal_dates (
			calendar_date TEXT PRIMARY KEY,
			week_year INTEGER NOT NULL DEFAULT 0,
			week_number INTEGER NOT NULL DEFAULT 0,
			scalar_value INTEGER NOT NULL UNIQUE
		);`,
		`CREATE INDEX IF NOT EXISTS idx_temporal_dates_week_number ON temporal_dates(week_number);`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// ScalarOf returns the gapless integer assigned to a date.
func ScalarOf(d time.Time) int64 {
	day := time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, time.UTC)
	return int64(day.Sub(scalarOrigin).Hours()/24) + 1
}

// InsertDays adds one row per date in [from, to]. Existing rows are left untouched.
// Week numbers start at 0 and are filled in by PopulateWeekNumbers.
func (s *Store) InsertDays(ctx context.Context, from, to time.Time) (int, error) {
	if to.Before(from) {
		return 0, fmt.Errorf("end date %s is before start date %s", to.Format(calendar.DateLayout), from.Format(calendar.DateLayout))
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() {
		if err != nil {
			if rerr := tx.Rollback(); rerr != nil {
				// Best-effort rollback.
				_ = rerr
			}
		}
	}()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT OR IGNORE INTO temporal_dates (calendar_date, scalar_value) VALUES (?, ?)`)
	if err != nil {
		return 0, err
	}
	defer func() {
		if cerr := stmt.Close(); cerr != nil {
			// Best-effort statement close.
			_ = cerr
		}
	}()

	inserted := 0
	for d := from; !d.After(to); d = d.AddDate(0, 0, 1) {
		res, execErr := stmt.ExecContext(ctx, d.Format(calendar.DateLayout), ScalarOf(d))
		if execErr != nil {
			err = execErr
			return 0, err
		}
		n, affErr := res.RowsAffected()
		if affErr != nil {
			err = affErr
			return 0, err
		}
		inserted += int(n)
	}

	if err = tx.Commit(); err != nil {
		return 0, err
	}
	return inserted, nil
}

// PopulateWeekNumbers fills week_year and week_number for every row on or
// before through that is still missing a week number. It returns the number
// of updated rows. Dates outside cal are skipped.
func (s *Store) PopulateWeekNumbers(ctx context.Context, cal calendar.Calendar, through time.Time) (int, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT calendar_date FROM temporal_dates
		 WHERE calendar_date <= ? AND week_number = 0
		 ORDER BY calendar_date ASC`,
		through.Format(calendar.DateLayout))
	if err != nil {
		return 0, err
	}
	var pending []string
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			_ = rows.Close()
			return 0, err
		}
		pending = append(pending, raw)
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return 0, err
	}
	if err := rows.Close(); err != nil {
		return 0, err
	}
	if len(pending) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	stmt, err := tx.PrepareContext(ctx,
		`UPDATE temporal_dates SET week_year = ?, week_number = ? WHERE calendar_date = ?`)
	if err != nil {
		_ = tx.Rollback()
		return 0, err
	}
	defer func() {
		if cerr := stmt.Close(); cerr != nil {
			// Best-effort statement close.
			_ = cerr
		}
	}()

	updated := 0
	for _, raw := range pending {
		d, err := calendar.ParseDate(raw)
		if err != nil {
			_ = tx.Rollback()
			return 0, fmt.Errorf("invalid calendar date %q: %w", raw, err)
		}
		w, ok := cal.WeekOf(d)
		if !ok {
			continue
		}
		if _, err := stmt.ExecContext(ctx, w.Year, w.WeekNumber, raw); err != nil {
			_ = tx.Rollback()
			return 0, err
		}
		updated++
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return updated, nil
}

// DateToScalar returns the stored scalar value of a date.
func (s *Store) DateToScalar(ctx context.Context, d time.Time) (int64, error) {
	var v int64
	err := s.db.QueryRowContext(ctx,
		`SELECT scalar_value FROM temporal_dates WHERE calendar_date = ?`,
		d.Format(calendar.DateLayout)).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrNotFound
	}
	if err != nil {
		return 0, err
	}
	return v, nil
}

// WeekOf returns the stored row of a date.
func (s *Store) WeekOf(ctx context.Context, d time.Time) (model.TemporalDate, error) {
	var td model.TemporalDate
	var raw string
	err := s.db.QueryRowContext(ctx,
		`SELECT calendar_date, week_year, week_number, scalar_value FROM temporal_dates WHERE calendar_date = ?`,
		d.Format(calendar.DateLayout)).Scan(&raw, &td.WeekYear, &td.WeekNumber, &td.ScalarValue)
	if errors.Is(err, sql.ErrNoRows) {
		return model.TemporalDate{}, ErrNotFound
	}
	if err != nil {
		return model.TemporalDate{}, err
	}
	parsed, err := calendar.ParseDate(raw)
	if err != nil {
		return model.TemporalDate{}, err
	}
	td.CalendarDate = parsed
	return td, nil
}

// MissingWeekNumbers counts rows on or before through without a week number.
func (s *Store) MissingWeekNumbers(ctx context.Context, through time.Time) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM temporal_dates WHERE calendar_date <= ? AND week_number = 0`,
		through.Format(calendar.DateLayout)).Scan(&n)
	return n, err
}
