package store

import (
	"fmt"
	"time"

	"github.com/christopherklint97/dayscore/internal/metrics"
)

// Coding is the GitHub partial of a day.
type Coding struct {
	Commits       int
	PRs           int
	CodingMinutes int
}

// Calendar is the calendar partial of a day.
type Calendar struct {
	MeetingsMinutes    int
	FocusMinutes       int
	HadDeepWorkSession bool
}

// Health is the manually logged partial of a day.
type Health struct {
	ExerciseMinutes      int
	SleepHours           float64
	Steps                int
	ScreenTimeMinutes    int
	ProductiveAppMinutes int
}

// Each source owns its own columns, so upserts from one never clobber another.

func (db *DB) UpsertCoding(date string, c Coding) error {
	_, err := db.Exec(
		`INSERT INTO days (date, commits, prs, coding_minutes, updated_at) VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(date) DO UPDATE SET
			commits = excluded.commits,
			prs = excluded.prs,
			coding_minutes = excluded.coding_minutes,
			updated_at = excluded.updated_at`,
		date, c.Commits, c.PRs, c.CodingMinutes, now(),
	)
	if err != nil {
		return fmt.Errorf("saving coding activity for %s: %w", date, err)
	}
	return nil
}

func (db *DB) UpsertCalendar(date string, c Calendar) error {
	_, err := db.Exec(
		`INSERT INTO days (date, meetings_minutes, focus_minutes, deep_work, updated_at) VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(date) DO UPDATE SET
			meetings_minutes = excluded.meetings_minutes,
			focus_minutes = excluded.focus_minutes,
			deep_work = excluded.deep_work,
			updated_at = excluded.updated_at`,
		date, c.MeetingsMinutes, c.FocusMinutes, c.HadDeepWorkSession, now(),
	)
	if err != nil {
		return fmt.Errorf("saving calendar summary for %s: %w", date, err)
	}
	return nil
}

func (db *DB) UpsertHealth(date string, h Health) error {
	_, err := db.Exec(
		`INSERT INTO days (date, exercise_minutes, sleep_hours, steps, screen_time_minutes, productive_app_minutes, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(date) DO UPDATE SET
			exercise_minutes = excluded.exercise_minutes,
			sleep_hours = excluded.sleep_hours,
			steps = excluded.steps,
			screen_time_minutes = excluded.screen_time_minutes,
			productive_app_minutes = excluded.productive_app_minutes,
			updated_at = excluded.updated_at`,
		date, h.ExerciseMinutes, h.SleepHours, h.Steps, h.ScreenTimeMinutes, h.ProductiveAppMinutes, now(),
	)
	if err != nil {
		return fmt.Errorf("saving health log for %s: %w", date, err)
	}
	return nil
}

const dayColumns = `date, commits, prs, coding_minutes, exercise_minutes, screen_time_minutes,
	productive_app_minutes, meetings_minutes, focus_minutes, deep_work, sleep_hours, steps`

// GetDay returns the stored metrics for date. ok is false when nothing has
// been recorded for it. WorkoutStreak is left zero; see WorkoutStreak.
func (db *DB) GetDay(date string) (m metrics.DailyMetrics, ok bool, err error) {
	days, err := db.queryDays(`SELECT `+dayColumns+` FROM days WHERE date = ?`, date)
	if err != nil {
		return metrics.DailyMetrics{}, false, err
	}
	if len(days) == 0 {
		return metrics.DailyMetrics{Date: date}, false, nil
	}
	return days[0], true, nil
}

// GetDays returns the stored days between from and to inclusive, oldest first.
func (db *DB) GetDays(from, to string) ([]metrics.DailyMetrics, error) {
	return db.queryDays(`SELECT `+dayColumns+` FROM days WHERE date >= ? AND date <= ? ORDER BY date ASC`, from, to)
}

func (db *DB) queryDays(query string, args ...any) ([]metrics.DailyMetrics, error) {
	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying days: %w", err)
	}
	defer rows.Close()

	var days []metrics.DailyMetrics
	for rows.Next() {
		var m metrics.DailyMetrics
		if err := rows.Scan(
			&m.Date, &m.GitHubCommits, &m.GitHubPRs, &m.GitHubCodingMinutes, &m.ExerciseMinutes,
			&m.ScreenTimeMinutes, &m.ProductiveAppMinutes, &m.MeetingsMinutes, &m.FocusTimeMinutes,
			&m.HadDeepWorkSession, &m.SleepHours, &m.Steps,
		); err != nil {
			return nil, fmt.Errorf("scanning day: %w", err)
		}
		m.ExercisedToday = m.ExerciseMinutes > 0
		days = append(days, m)
	}
	return days, rows.Err()
}

// WorkoutStreak counts consecutive days with exercise ending at date. A date
// without exercise has a streak of zero.
func (db *DB) WorkoutStreak(date string) (int, error) {
	end, err := metrics.ParseDate(date)
	if err != nil {
		return 0, err
	}

	rows, err := db.Query(
		`SELECT date FROM days WHERE date <= ? AND exercise_minutes > 0 ORDER BY date DESC`,
		metrics.FormatDate(end),
	)
	if err != nil {
		return 0, fmt.Errorf("querying workout streak: %w", err)
	}
	defer rows.Close()

	streak := 0
	want := end
	for rows.Next() {
		var d string
		if err := rows.Scan(&d); err != nil {
			return 0, fmt.Errorf("scanning workout day: %w", err)
		}
		if d != metrics.FormatDate(want) {
			break
		}
		streak++
		want = want.AddDate(0, 0, -1)
	}
	return streak, rows.Err()
}

func now() string {
	return time.Now().UTC().Format(time.RFC3339)
}
