package scheduler

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/christopherklint97/dayscore/internal/collector"
	"github.com/christopherklint97/dayscore/internal/config"
	"github.com/christopherklint97/dayscore/internal/scoring"
	"github.com/christopherklint97/dayscore/internal/store"
)

func TestNextRun(t *testing.T) {
	at := config.Clock{Hour: 8, Minute: 0}
	stockholm, err := time.LoadLocation("Europe/Stockholm")
	require.NoError(t, err)

	tests := []struct {
		name string
		now  time.Time
		want time.Time
	}{
		{"before run time", time.Date(2025, 3, 4, 7, 30, 0, 0, time.UTC), time.Date(2025, 3, 4, 8, 0, 0, 0, time.UTC)},
		{"exactly at run time", time.Date(2025, 3, 4, 8, 0, 0, 0, time.UTC), time.Date(2025, 3, 5, 8, 0, 0, 0, time.UTC)},
		{"after run time", time.Date(2025, 3, 4, 21, 0, 0, 0, time.UTC), time.Date(2025, 3, 5, 8, 0, 0, 0, time.UTC)},
		{"month end", time.Date(2025, 2, 28, 9, 0, 0, 0, time.UTC), time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)},
		{"across DST change", time.Date(2025, 3, 29, 12, 0, 0, 0, stockholm), time.Date(2025, 3, 30, 8, 0, 0, 0, stockholm)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NextRun(tt.now, at)
			assert.True(t, tt.want.Equal(got), "got %s, want %s", got, tt.want)
		})
	}
}

type notification struct{ title, message string }

func newTestScheduler(t *testing.T) (*Scheduler, *store.DB, *[]notification) {
	t.Helper()
	db, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	cfg := config.DefaultConfig()
	s := New(&cfg, db, collector.New(db, nil, nil, nil, nil), nil, nil)
	s.pidPath = filepath.Join(t.TempDir(), "dayscore.pid")

	var sent []notification
	s.notify = func(title, message string) error {
		sent = append(sent, notification{title, message})
		return nil
	}
	return s, db, &sent
}

func TestRunDaily(t *testing.T) {
	s, db, sent := newTestScheduler(t)
	require.NoError(t, db.UpsertHealth("2025-03-03", store.Health{ExerciseMinutes: 30, SleepHours: 8}))

	now := time.Date(2025, 3, 4, 8, 0, 0, 0, time.UTC)
	require.NoError(t, s.runDaily(context.Background(), now))

	m, err := collector.Day(context.Background(), db, "2025-03-03")
	require.NoError(t, err)
	want := scoring.Default().Evaluate(m)

	scores, err := db.GetScores("2025-03-03", "2025-03-03")
	require.NoError(t, err)
	require.Len(t, scores, 1)
	assert.Equal(t, want.Score, scores[0].Score)
	assert.Equal(t, want.Grade, scores[0].Grade)

	last, err := db.GetState(store.StateLastDailyRun)
	require.NoError(t, err)
	assert.Equal(t, "2025-03-03", last)

	require.Len(t, *sent, 1)
	assert.Contains(t, (*sent)[0].message, "Yesterday: "+strconv.Itoa(want.Score)+" ("+want.Grade+")")
}

func TestRunDaily_NotificationsDisabled(t *testing.T) {
	s, _, sent := newTestScheduler(t)
	s.cfg.Notifications.Enabled = false

	require.NoError(t, s.runDaily(context.Background(), time.Date(2025, 3, 4, 8, 0, 0, 0, time.UTC)))
	assert.Empty(t, *sent)
}

func TestTick_WeeklyReportOncePerWeek(t *testing.T) {
	s, db, sent := newTestScheduler(t)
	require.NoError(t, db.UpsertHealth("2025-03-07", store.Health{ExerciseMinutes: 45, SleepHours: 7.5}))

	monday := time.Date(2025, 3, 10, 8, 0, 0, 0, time.UTC)
	require.Equal(t, time.Monday, monday.Weekday())

	s.tick(context.Background(), monday)

	rep, err := db.LatestReport()
	require.NoError(t, err)
	require.NotNil(t, rep)
	assert.Equal(t, "2025-03-03", rep.StartDate)
	assert.Equal(t, "2025-03-09", rep.EndDate)
	assert.Len(t, *sent, 2)

	last, err := db.GetState(store.StateLastWeeklyRun)
	require.NoError(t, err)
	assert.Equal(t, "2025-03-09", last)

	// A second tick for the same week rescores the day but keeps the report.
	s.tick(context.Background(), monday.Add(time.Hour))
	again, err := db.LatestReport()
	require.NoError(t, err)
	assert.Equal(t, rep.ID, again.ID)
	assert.Len(t, *sent, 3)
}

func TestTick_NoReportOnOtherDays(t *testing.T) {
	s, db, _ := newTestScheduler(t)

	s.tick(context.Background(), time.Date(2025, 3, 12, 8, 0, 0, 0, time.UTC))

	rep, err := db.LatestReport()
	require.NoError(t, err)
	assert.Nil(t, rep)
}

func TestMissedRun(t *testing.T) {
	s, db, _ := newTestScheduler(t)
	at := config.Clock{Hour: 8}

	assert.False(t, s.missedRun(time.Date(2025, 3, 4, 7, 0, 0, 0, time.UTC), at), "before run time")
	assert.True(t, s.missedRun(time.Date(2025, 3, 4, 9, 0, 0, 0, time.UTC), at), "never ran")

	require.NoError(t, db.SetState(store.StateLastDailyRun, "2025-03-03"))
	assert.False(t, s.missedRun(time.Date(2025, 3, 4, 9, 0, 0, 0, time.UTC), at), "already ran")
	assert.True(t, s.missedRun(time.Date(2025, 3, 6, 9, 0, 0, 0, time.UTC), at), "ran days ago")
}

func TestPIDFile(t *testing.T) {
	s, _, _ := newTestScheduler(t)

	require.NoError(t, s.writePID())
	pid, err := readPIDFile(s.pidPath)
	require.NoError(t, err)
	assert.Equal(t, os.Getpid(), pid)

	s.removePID()
	_, err = readPIDFile(s.pidPath)
	assert.ErrorContains(t, err, "no running scheduler")

	require.NoError(t, os.WriteFile(s.pidPath, []byte("not-a-pid"), 0644))
	_, err = readPIDFile(s.pidPath)
	assert.ErrorContains(t, err, "invalid PID file")
}

func TestReadPID_UsesConfigDir(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	_, err := ReadPID()
	assert.Error(t, err)

	path := filepath.Join(home, ".config", "dayscore", "dayscore.pid")
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte("4242\n"), 0644))

	pid, err := ReadPID()
	require.NoError(t, err)
	assert.Equal(t, 4242, pid)

	require.NoError(t, RemovePID())
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}
