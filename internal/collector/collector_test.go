package collector

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/christopherklint97/dayscore/internal/calendar"
	"github.com/christopherklint97/dayscore/internal/github"
	"github.com/christopherklint97/dayscore/internal/metrics"
	"github.com/christopherklint97/dayscore/internal/store"
)

type fakeCoding struct {
	activity map[string]github.Activity
	err      error
	gotRepos []string
	gotStart time.Time
	gotEnd   time.Time
}

func (f *fakeCoding) FetchActivity(_ context.Context, repos []string, start, end time.Time) (map[string]github.Activity, error) {
	f.gotRepos, f.gotStart, f.gotEnd = repos, start, end
	return f.activity, f.err
}

type fakeCalendar struct {
	occupancy map[string]calendar.Occupancy
	err       error
}

func (f *fakeCalendar) Occupancy(context.Context, time.Time, time.Time) (map[string]calendar.Occupancy, error) {
	return f.occupancy, f.err
}

func openStore(t *testing.T) *store.DB {
	t.Helper()
	db, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestCollect_MergesSources(t *testing.T) {
	db := openStore(t)
	require.NoError(t, db.UpsertHealth("2025-03-04", store.Health{ExerciseMinutes: 45, SleepHours: 7}))

	coding := &fakeCoding{activity: map[string]github.Activity{
		"2025-03-03": {Commits: 4, PRs: 1, CodingMinutes: 120},
		"2025-03-04": {Commits: 2, CodingMinutes: 30},
	}}
	cal := &fakeCalendar{occupancy: map[string]calendar.Occupancy{
		"2025-03-04": {MeetingMinutes: 90, FocusMinutes: 120, HadDeepWorkSession: true},
	}}

	c := New(db, coding, []string{"acme/api"}, cal, nil).WithLocation(time.UTC)
	res, err := c.Collect(context.Background(), "2025-03-03", "2025-03-05")
	require.NoError(t, err)
	assert.Equal(t, []string{"2025-03-03", "2025-03-04", "2025-03-05"}, res.Dates)
	assert.True(t, res.CodingOK)
	assert.True(t, res.CalendarOK)
	assert.Equal(t, 2, res.CodingDays)
	assert.Equal(t, 1, res.MeetingDays)

	assert.Equal(t, []string{"acme/api"}, coding.gotRepos)
	assert.Equal(t, time.Date(2025, 3, 3, 0, 0, 0, 0, time.UTC), coding.gotStart)
	assert.Equal(t, time.Date(2025, 3, 6, 0, 0, 0, 0, time.UTC), coding.gotEnd)

	day, ok, err := db.GetDay("2025-03-04")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 2, day.GitHubCommits)
	assert.Equal(t, 90, day.MeetingsMinutes)
	assert.True(t, day.HadDeepWorkSession)
	assert.Equal(t, 45, day.ExerciseMinutes, "health log survives collection")
}

func TestCollect_FailingSourceIsSkipped(t *testing.T) {
	db := openStore(t)
	require.NoError(t, db.UpsertCalendar("2025-03-03", store.Calendar{MeetingsMinutes: 30}))

	coding := &fakeCoding{err: errors.New("github down")}
	cal := &fakeCalendar{occupancy: map[string]calendar.Occupancy{}}

	c := New(db, coding, []string{"acme/api"}, cal, nil).WithLocation(time.UTC)
	res, err := c.Collect(context.Background(), "2025-03-03", "2025-03-03")
	require.NoError(t, err)
	assert.False(t, res.CodingOK)
	assert.True(t, res.CalendarOK)

	day, _, err := db.GetDay("2025-03-03")
	require.NoError(t, err)
	assert.Zero(t, day.MeetingsMinutes, "an empty calendar day is written as zero")
}

func TestCollect_NoSources(t *testing.T) {
	db := openStore(t)
	res, err := New(db, nil, nil, nil, nil).Collect(context.Background(), "2025-03-03", "2025-03-04")
	require.NoError(t, err)
	assert.False(t, res.CodingOK)
	assert.False(t, res.CalendarOK)
}

func TestCollect_BadRange(t *testing.T) {
	db := openStore(t)
	_, err := New(db, nil, nil, nil, nil).Collect(context.Background(), "2025-03-05", "2025-03-03")
	assert.ErrorContains(t, err, "before start date")
}

func TestWeek(t *testing.T) {
	db := openStore(t)
	require.NoError(t, db.UpsertHealth("2025-03-02", store.Health{ExerciseMinutes: 20}))
	require.NoError(t, db.UpsertHealth("2025-03-03", store.Health{ExerciseMinutes: 30}))
	require.NoError(t, db.UpsertCoding("2025-03-04", store.Coding{Commits: 3}))

	week, err := New(db, nil, nil, nil, nil).Week(context.Background(), "2025-03-05", 4)
	require.NoError(t, err)
	require.Len(t, week, 4)

	assert.Equal(t, "2025-03-02", week[0].Date)
	assert.Equal(t, 1, week[0].WorkoutStreak)
	assert.True(t, week[1].ExercisedToday)
	assert.Equal(t, 2, week[1].WorkoutStreak)
	assert.Equal(t, 3, week[2].GitHubCommits)
	assert.Zero(t, week[2].WorkoutStreak)
	assert.Equal(t, metrics.DailyMetrics{Date: "2025-03-05"}, week[3])
}

func TestDay(t *testing.T) {
	db := openStore(t)
	require.NoError(t, db.UpsertHealth("2025-03-03", store.Health{ExerciseMinutes: 30, Steps: 9000}))

	d, err := Day(context.Background(), db, "2025-03-03")
	require.NoError(t, err)
	assert.Equal(t, 9000, d.Steps)
	assert.Equal(t, 1, d.WorkoutStreak)
}
