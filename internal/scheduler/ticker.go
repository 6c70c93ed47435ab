package scheduler

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/christopherklint97/dayscore/internal/ai"
	"github.com/christopherklint97/dayscore/internal/collector"
	"github.com/christopherklint97/dayscore/internal/config"
	"github.com/christopherklint97/dayscore/internal/metrics"
	"github.com/christopherklint97/dayscore/internal/observability"
	"github.com/christopherklint97/dayscore/internal/report"
	"github.com/christopherklint97/dayscore/internal/scoring"
	"github.com/christopherklint97/dayscore/internal/store"
)

const weekDays = 7

type Scheduler struct {
	cfg       *config.Config
	db        *store.DB
	collector *collector.Collector
	scorer    *scoring.Scorer
	builder   *report.Builder
	narrator  ai.Narrator
	logger    *slog.Logger

	// notify and now are replaced in tests.
	notify  func(title, message string) error
	now     func() time.Time
	pidPath string
}

func New(cfg *config.Config, db *store.DB, c *collector.Collector, narrator ai.Narrator, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	scorer := scoring.New(cfg.Scoring)
	return &Scheduler{
		cfg:       cfg,
		db:        db,
		collector: c,
		scorer:    scorer,
		builder:   report.NewBuilder(scorer, logger),
		narrator:  narrator,
		logger:    logger,
		notify:    SendNotification,
		now:       time.Now,
	}
}

func (s *Scheduler) Run(ctx context.Context) error {
	runAt, err := config.ParseClock(s.cfg.Schedule.RunAt)
	if err != nil {
		return fmt.Errorf("schedule.run_at: %w", err)
	}

	if err := s.writePID(); err != nil {
		return fmt.Errorf("writing PID file: %w", err)
	}
	defer s.removePID()

	fmt.Printf("Scheduler started (daily at %s, weekly report on %s)\n",
		s.cfg.Schedule.RunAt, time.Weekday(s.cfg.Schedule.WeeklyReportDay))

	// Catch up on a run missed while the scheduler was down.
	if s.missedRun(s.now(), runAt) {
		s.tick(ctx, s.now())
	}

	for {
		next := NextRun(s.now(), runAt)
		fmt.Printf("Next run at %s\n", next.Format("Mon 15:04"))

		select {
		case <-ctx.Done():
			fmt.Println("\nScheduler stopped.")
			return nil
		case <-time.After(time.Until(next)):
		}

		s.tick(ctx, s.now())
	}
}

// NextRun returns the first moment strictly after now that falls on runAt in
// now's location.
func NextRun(now time.Time, runAt config.Clock) time.Time {
	next := time.Date(now.Year(), now.Month(), now.Day(), runAt.Hour, runAt.Minute, 0, 0, now.Location())
	if !next.After(now) {
		next = time.Date(now.Year(), now.Month(), now.Day()+1, runAt.Hour, runAt.Minute, 0, 0, now.Location())
	}
	return next
}

// missedRun reports whether today's run time has passed without yesterday
// having been scored.
func (s *Scheduler) missedRun(now time.Time, runAt config.Clock) bool {
	today := time.Date(now.Year(), now.Month(), now.Day(), runAt.Hour, runAt.Minute, 0, 0, now.Location())
	if now.Before(today) {
		return false
	}
	last, err := s.db.GetState(store.StateLastDailyRun)
	if err != nil {
		s.logger.Warn("reading scheduler state", "error", err)
		return false
	}
	return last < yesterday(now)
}

func (s *Scheduler) tick(ctx context.Context, now time.Time) {
	if err := s.runDaily(ctx, now); err != nil {
		s.logger.Error("daily run failed", "error", err)
		fmt.Printf("Error scoring yesterday: %v\n", err)
	}
	if now.Weekday() != time.Weekday(s.cfg.Schedule.WeeklyReportDay) {
		return
	}
	if err := s.runWeekly(ctx, now); err != nil {
		s.logger.Error("weekly run failed", "error", err)
		fmt.Printf("Error building weekly report: %v\n", err)
	}
}

// runDaily collects and scores the day before now.
func (s *Scheduler) runDaily(ctx context.Context, now time.Time) error {
	date := yesterday(now)

	if _, err := s.collector.Collect(ctx, date, date); err != nil {
		return fmt.Errorf("collecting %s: %w", date, err)
	}
	m, err := collector.Day(ctx, s.db, date)
	if err != nil {
		return fmt.Errorf("reading %s: %w", date, err)
	}

	result := s.scorer.Evaluate(m)
	if err := s.db.SaveScore(result); err != nil {
		return err
	}
	observability.RecordDailyScore(result.Score, result.Grade)
	s.logger.Info("scored day", "date", date, "score", result.Score, "grade", result.Grade)

	s.send("dayscore", fmt.Sprintf("Yesterday: %d (%s). %s", result.Score, result.Grade, result.Description))

	return s.db.SetState(store.StateLastDailyRun, date)
}

// runWeekly builds and stores the report for the seven days ending yesterday.
// It runs at most once per end date.
func (s *Scheduler) runWeekly(ctx context.Context, now time.Time) error {
	end := yesterday(now)
	last, err := s.db.GetState(store.StateLastWeeklyRun)
	if err != nil {
		return err
	}
	if last == end {
		return nil
	}

	dates, err := metrics.DateRange(end, weekDays)
	if err != nil {
		return err
	}
	if _, err := s.collector.Collect(ctx, dates[0], end); err != nil {
		return fmt.Errorf("collecting week: %w", err)
	}
	week, err := collector.Week(ctx, s.db, end, weekDays)
	if err != nil {
		return err
	}

	rep := s.builder.Build(ctx, week, s.narrator)
	id, err := s.db.SaveReport(rep.StartDate, rep.EndDate, rep.Analysis.AvgDailyScore, rep)
	if err != nil {
		return err
	}
	s.logger.Info("saved weekly report", "id", id, "start", rep.StartDate, "end", rep.EndDate,
		"avg", rep.Analysis.AvgDailyScore, "trend", rep.Analysis.Trend)

	msg := fmt.Sprintf("Last week averaged %d (%s).", rep.Analysis.AvgDailyScore, rep.Analysis.Trend)
	if rep.Narrative != nil && rep.Narrative.Headline != "" {
		msg = rep.Narrative.Headline
	}
	s.send("dayscore weekly report", msg)

	return s.db.SetState(store.StateLastWeeklyRun, end)
}

func (s *Scheduler) send(title, message string) {
	if !s.cfg.Notifications.Enabled || s.notify == nil {
		return
	}
	if err := s.notify(title, message); err != nil {
		s.logger.Warn("notification failed", "error", err)
	}
}

func yesterday(now time.Time) string {
	return metrics.FormatDate(now.AddDate(0, 0, -1))
}

func pidPath() (string, error) {
	dir, err := config.ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "dayscore.pid"), nil
}

func (s *Scheduler) resolvePIDPath() (string, error) {
	if s.pidPath != "" {
		return s.pidPath, nil
	}
	return pidPath()
}

func (s *Scheduler) writePID() error {
	path, err := s.resolvePIDPath()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())), 0644)
}

func (s *Scheduler) removePID() {
	if path, err := s.resolvePIDPath(); err == nil {
		os.Remove(path)
	}
}

func ReadPID() (int, error) {
	path, err := pidPath()
	if err != nil {
		return 0, err
	}
	return readPIDFile(path)
}

// RemovePID deletes a stale PID file.
func RemovePID() error {
	path, err := pidPath()
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

func readPIDFile(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("no running scheduler found")
	}

	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, fmt.Errorf("invalid PID file")
	}

	return pid, nil
}
