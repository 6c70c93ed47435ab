package metrics

import (
	"encoding/json"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanitizedClampsNegatives(t *testing.T) {
	m := DailyMetrics{
		Date:                 "2025-03-03",
		GitHubCommits:        -3,
		GitHubPRs:            2,
		GitHubCodingMinutes:  -60,
		ExerciseMinutes:      -1,
		WorkoutStreak:        -2,
		ScreenTimeMinutes:    -400,
		ProductiveAppMinutes: -5,
		MeetingsMinutes:      -240,
		FocusTimeMinutes:     -20,
		SleepHours:           -7.5,
		Steps:                -8000,
	}

	got := m.Sanitized()

	assert.Equal(t, DailyMetrics{Date: "2025-03-03", GitHubPRs: 2}, got)
	assert.Equal(t, -3, m.GitHubCommits, "original must not be mutated")
}

func TestSanitizedNaNSleep(t *testing.T) {
	got := DailyMetrics{SleepHours: math.NaN()}.Sanitized()
	assert.Equal(t, 0.0, got.SleepHours)
}

func TestWithScoreCopies(t *testing.T) {
	base := DailyMetrics{Date: "2025-03-03"}
	scored := base.WithScore(42)

	require.NotNil(t, scored.ProductivityScore)
	assert.Equal(t, 42, *scored.ProductivityScore)
	assert.Nil(t, base.ProductivityScore)
}

func TestDailyMetricsJSONOmitsAbsentFields(t *testing.T) {
	data, err := json.Marshal(DailyMetrics{Date: "2025-03-03", Steps: 100})
	require.NoError(t, err)
	assert.JSONEq(t, `{"date":"2025-03-03","steps":100}`, string(data))

	var m DailyMetrics
	require.NoError(t, json.Unmarshal([]byte(`{"date":"2025-03-04","exercised_today":true,"sleep_hours":7.5}`), &m))
	assert.True(t, m.ExercisedToday)
	assert.Equal(t, 7.5, m.SleepHours)
}

func TestParseDateIsTimeZoneStable(t *testing.T) {
	d, err := ParseDate("2025-03-02")
	require.NoError(t, err)
	assert.Equal(t, time.Sunday, d.Weekday())
	assert.Equal(t, time.UTC, d.Location())

	_, err = ParseDate("03/02/2025")
	assert.Error(t, err)
}

func TestResolveDate(t *testing.T) {
	now := time.Date(2025, time.March, 5, 15, 30, 0, 0, time.UTC) // Wednesday

	tests := []struct {
		in   string
		want string
	}{
		{"", "2025-03-05"},
		{"today", "2025-03-05"},
		{"2025-01-31", "2025-01-31"},
		{"yesterday", "2025-03-04"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ResolveDate(tt.in, now)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDateRange(t *testing.T) {
	dates, err := DateRange("2025-03-02", 7)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"2025-02-24", "2025-02-25", "2025-02-26", "2025-02-27",
		"2025-02-28", "2025-03-01", "2025-03-02",
	}, dates)

	_, err = DateRange("2025-03-02", 0)
	assert.Error(t, err)
	_, err = DateRange("nope", 3)
	assert.Error(t, err)
}

func TestDayBounds(t *testing.T) {
	loc := time.FixedZone("CET", 3600)
	start, end, err := DayBounds("2025-03-02", loc)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 3, 2, 0, 0, 0, 0, loc), start)
	assert.Equal(t, 24*time.Hour, end.Sub(start))
}
