// Package collector pulls coding and calendar data into the store and reads
// back merged periods of daily metrics.
package collector

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/christopherklint97/dayscore/internal/calendar"
	"github.com/christopherklint97/dayscore/internal/github"
	"github.com/christopherklint97/dayscore/internal/metrics"
	"github.com/christopherklint97/dayscore/internal/observability"
	"github.com/christopherklint97/dayscore/internal/store"
)

// CodingSource reports commit activity per calendar date.
type CodingSource interface {
	FetchActivity(ctx context.Context, repos []string, start, end time.Time) (map[string]github.Activity, error)
}

// CalendarSource reports calendar occupancy per calendar date.
type CalendarSource interface {
	Occupancy(ctx context.Context, start, end time.Time) (map[string]calendar.Occupancy, error)
}

// Collector fills the store from the configured sources. Either source may be nil.
type Collector struct {
	db       *store.DB
	coding   CodingSource
	repos    []string
	calendar CalendarSource
	loc      *time.Location
	logger   *slog.Logger
}

func New(db *store.DB, coding CodingSource, repos []string, cal CalendarSource, logger *slog.Logger) *Collector {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Collector{
		db:       db,
		coding:   coding,
		repos:    repos,
		calendar: cal,
		loc:      time.Local,
		logger:   logger,
	}
}

// WithLocation sets the time zone calendar dates are cut in.
func (c *Collector) WithLocation(loc *time.Location) *Collector {
	c.loc = loc
	return c
}

// Result reports which sources contributed to a collection run.
type Result struct {
	Dates       []string
	CodingOK    bool
	CalendarOK  bool
	CodingDays  int
	MeetingDays int
}

// Collect fetches every source for the dates from..to (inclusive) concurrently
// and writes their partials. A failing source is logged and skipped so the
// rest of the data is still stored; only store errors are returned.
func (c *Collector) Collect(ctx context.Context, from, to string) (Result, error) {
	dates, err := datesBetween(from, to)
	if err != nil {
		return Result{}, err
	}
	start, _, err := metrics.DayBounds(from, c.loc)
	if err != nil {
		return Result{}, err
	}
	_, end, err := metrics.DayBounds(to, c.loc)
	if err != nil {
		return Result{}, err
	}

	var activity map[string]github.Activity
	var occupancy map[string]calendar.Occupancy

	g, gctx := errgroup.WithContext(ctx)

	if c.coding != nil && len(c.repos) > 0 {
		g.Go(func() error {
			a, err := c.coding.FetchActivity(gctx, c.repos, start, end)
			if err != nil {
				c.logger.Warn("skipping GitHub activity", "from", from, "to", to, "error", err)
				observability.RecordSourceFailure("github")
				return nil
			}
			activity = a
			return nil
		})
	}

	if c.calendar != nil {
		g.Go(func() error {
			o, err := c.calendar.Occupancy(gctx, start, end)
			if err != nil {
				c.logger.Warn("skipping calendar", "from", from, "to", to, "error", err)
				observability.RecordSourceFailure("calendar")
				return nil
			}
			occupancy = o
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return Result{}, err
	}
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	res := Result{Dates: dates, CodingOK: activity != nil, CalendarOK: occupancy != nil}

	// Every date in range is written so a day that lost its activity is zeroed.
	for _, d := range dates {
		if activity != nil {
			a := activity[d]
			if err := c.db.UpsertCoding(d, store.Coding{Commits: a.Commits, PRs: a.PRs, CodingMinutes: a.CodingMinutes}); err != nil {
				return res, err
			}
			if a.Commits > 0 {
				res.CodingDays++
			}
		}
		if occupancy != nil {
			o := occupancy[d]
			if err := c.db.UpsertCalendar(d, store.Calendar{
				MeetingsMinutes:    o.MeetingMinutes,
				FocusMinutes:       o.FocusMinutes,
				HadDeepWorkSession: o.HadDeepWorkSession,
			}); err != nil {
				return res, err
			}
			if o.MeetingMinutes > 0 {
				res.MeetingDays++
			}
		}
	}

	c.logger.Debug("collected", "from", from, "to", to, "coding", res.CodingOK, "calendar", res.CalendarOK)
	return res, nil
}

// Week reads the n days ending at end from the store, oldest first. Days with
// no stored data come back carrying only their date.
func (c *Collector) Week(ctx context.Context, end string, n int) ([]metrics.DailyMetrics, error) {
	return Week(ctx, c.db, end, n)
}

// Week reads n days ending at end from db with workout streaks filled in.
func Week(ctx context.Context, db *store.DB, end string, n int) ([]metrics.DailyMetrics, error) {
	dates, err := metrics.DateRange(end, n)
	if err != nil {
		return nil, err
	}

	stored, err := db.GetDays(dates[0], dates[len(dates)-1])
	if err != nil {
		return nil, err
	}
	byDate := make(map[string]metrics.DailyMetrics, len(stored))
	for _, d := range stored {
		byDate[d.Date] = d
	}

	week := make([]metrics.DailyMetrics, len(dates))
	for i, date := range dates {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		m, ok := byDate[date]
		if !ok {
			week[i] = metrics.DailyMetrics{Date: date}
			continue
		}
		streak, err := db.WorkoutStreak(date)
		if err != nil {
			return nil, fmt.Errorf("workout streak for %s: %w", date, err)
		}
		m.WorkoutStreak = streak
		week[i] = m
	}
	return week, nil
}

// Day reads a single stored day with its workout streak.
func Day(ctx context.Context, db *store.DB, date string) (metrics.DailyMetrics, error) {
	week, err := Week(ctx, db, date, 1)
	if err != nil {
		return metrics.DailyMetrics{}, err
	}
	return week[0], nil
}

func datesBetween(from, to string) ([]string, error) {
	start, err := metrics.ParseDate(from)
	if err != nil {
		return nil, err
	}
	end, err := metrics.ParseDate(to)
	if err != nil {
		return nil, err
	}
	if end.Before(start) {
		return nil, fmt.Errorf("end date %s is before start date %s", to, from)
	}
	n := int(end.Sub(start).Hours()/24) + 1
	return metrics.DateRange(to, n)
}
