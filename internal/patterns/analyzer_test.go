package patterns

import (
	"encoding/json"
	"math"
	"strings"
	"testing"

	"github.com/christopherklint97/dayscore/internal/metrics"
	"github.com/christopherklint97/dayscore/internal/scoring"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// day builds a record on date that scores exactly target with the default weights.
func day(t *testing.T, date string, target int, exercised bool) metrics.DailyMetrics {
	t.Helper()

	m := metrics.DailyMetrics{Date: date, ExercisedToday: exercised}
	rem := target
	take := func(limit int) int {
		n := min(rem, limit)
		rem -= n
		return n
	}

	if exercised {
		rem -= 5
		m.ExerciseMinutes = take(15) * 15
		m.WorkoutStreak = take(5)
	}
	m.FocusTimeMinutes = take(15) * 20
	m.GitHubCommits = take(10)
	m.GitHubCodingMinutes = take(10) * 30
	m.Steps = take(5) * 2000
	if rem >= 5 {
		m.HadDeepWorkSession = true
		rem -= 5
	}
	if rem%2 == 1 || rem > 10 {
		for _, s := range []struct {
			points int
			hours  float64
		}{{5, 7.5}, {3, 6.5}, {1, 4}} {
			if left := rem - s.points; left >= 0 && left%2 == 0 && left <= 10 {
				m.SleepHours = s.hours
				rem = left
				break
			}
		}
	}
	if rem > 0 && rem%2 == 0 && rem <= 10 {
		m.GitHubPRs = rem / 2
		rem = 0
	}

	require.Zero(t, rem, "cannot build a day scoring %d", target)
	require.Equal(t, target, scoring.Score(m))
	return m
}

func week(t *testing.T, dates []string, scores []int, exercised []bool) []metrics.DailyMetrics {
	t.Helper()
	require.Len(t, scores, len(dates))
	out := make([]metrics.DailyMetrics, len(dates))
	for i := range dates {
		ex := exercised != nil && exercised[i]
		out[i] = day(t, dates[i], scores[i], ex)
	}
	return out
}

// Monday 2025-03-03 through Sunday 2025-03-09.
var mon2sun = []string{
	"2025-03-03", "2025-03-04", "2025-03-05", "2025-03-06",
	"2025-03-07", "2025-03-08", "2025-03-09",
}

func TestAnalyze_Empty(t *testing.T) {
	for _, in := range [][]metrics.DailyMetrics{nil, {}} {
		a := Analyze(in)
		assert.Equal(t, Analysis{
			BestDay:         NotAvailable,
			WorstDay:        NotAvailable,
			Trend:           TrendStable,
			Insights:        []string{},
			Recommendations: []string{},
		}, a)
	}

	data, err := json.Marshal(Analyze(nil))
	require.NoError(t, err)
	assert.Contains(t, string(data), `"insights":[]`)
	assert.Contains(t, string(data), `"recommendations":[]`)
}

func TestAnalyze_SingleDay(t *testing.T) {
	a := Analyze([]metrics.DailyMetrics{day(t, "2025-03-04", 42, false)})

	assert.Equal(t, 42, a.AvgDailyScore)
	assert.Equal(t, 100, a.Consistency)
	assert.Equal(t, 0.0, a.WorkoutCorrelation)
	assert.Equal(t, "2025-03-04", a.BestDay)
	assert.Equal(t, "2025-03-04", a.WorstDay)
	assert.Equal(t, TrendStable, a.Trend)
	assert.LessOrEqual(t, len(a.Recommendations), 5)
}

func TestAnalyze_IdenticalWeek(t *testing.T) {
	for _, exercised := range []bool{false, true} {
		var w []metrics.DailyMetrics
		for _, d := range mon2sun {
			w = append(w, day(t, d, 55, exercised))
		}

		a := Analyze(w)
		assert.Equal(t, 55, a.AvgDailyScore)
		assert.Equal(t, 100, a.Consistency)
		assert.Equal(t, 0.0, a.WorkoutCorrelation)
		assert.Equal(t, TrendStable, a.Trend)
		assert.Equal(t, "2025-03-03", a.BestDay, "ties keep input order for best")
		assert.Equal(t, "2025-03-09", a.WorstDay, "ties keep input order for worst")
		require.NotEmpty(t, a.Insights)
		assert.Contains(t, a.Insights[0], "highly consistent")
	}
}

func TestAnalyze_IgnoresPrecomputedScores(t *testing.T) {
	w := []metrics.DailyMetrics{
		day(t, "2025-03-03", 10, false).WithScore(99),
		day(t, "2025-03-04", 30, false).WithScore(1),
	}
	a := Analyze(w)
	assert.Equal(t, 20, a.AvgDailyScore)
	assert.Equal(t, "2025-03-04", a.BestDay)
	assert.Equal(t, "2025-03-03", a.WorstDay)
}

func TestAnalyze_WorkoutCorrelation(t *testing.T) {
	tests := []struct {
		name      string
		scores    []int
		exercised []bool
		want      float64
	}{
		{
			name:      "exercised days far higher clamps to one",
			scores:    []int{85, 20, 85, 20, 85, 20, 85},
			exercised: []bool{true, false, true, false, true, false, true},
			want:      1.0,
		},
		{
			name:      "exactly fifty points apart",
			scores:    []int{80, 30, 80, 30},
			exercised: []bool{true, false, true, false},
			want:      1.0,
		},
		{
			name:      "rounded to two decimals",
			scores:    []int{40, 30, 30},
			exercised: []bool{true, false, false},
			want:      0.2,
		},
		{
			name:      "exercised days lower",
			scores:    []int{20, 45, 20, 45},
			exercised: []bool{true, false, true, false},
			want:      -0.5,
		},
		{
			name:      "nobody exercised",
			scores:    []int{20, 45, 60},
			exercised: []bool{false, false, false},
			want:      0,
		},
		{
			name:      "everybody exercised",
			scores:    []int{20, 45, 60},
			exercised: []bool{true, true, true},
			want:      0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := week(t, mon2sun[:len(tt.scores)], tt.scores, tt.exercised)
			a := Analyze(w)
			assert.InDelta(t, tt.want, a.WorkoutCorrelation, 1e-9)
			assert.GreaterOrEqual(t, a.WorkoutCorrelation, -1.0)
			assert.LessOrEqual(t, a.WorkoutCorrelation, 1.0)
		})
	}
}

func TestAnalyze_Trend(t *testing.T) {
	tests := []struct {
		name   string
		scores []int
		want   Trend
	}{
		{"improving", []int{20, 20, 40, 40}, TrendImproving},
		{"declining", []int{40, 40, 20, 20}, TrendDeclining},
		{"exactly ten is stable", []int{20, 20, 30, 30}, TrendStable},
		{"odd length puts the extra day in the second half", []int{10, 10, 30, 30, 30}, TrendImproving},
		{"three days never trend", []int{10, 50, 60}, TrendStable},
		{"seven day decline", []int{60, 60, 60, 30, 30, 30, 30}, TrendDeclining},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := week(t, mon2sun[:len(tt.scores)], tt.scores, nil)
			assert.Equal(t, tt.want, Analyze(w).Trend)
		})
	}
}

func TestAnalyze_Consistency(t *testing.T) {
	tests := []struct {
		name   string
		scores []int
		want   int
	}{
		{"identical", []int{40, 40, 40}, 100},
		{"population stddev", []int{20, 40}, 80},
		{"wide spread", []int{0, 60}, 40},
		{"alternating", []int{0, 50, 0, 50}, 50},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := week(t, mon2sun[:len(tt.scores)], tt.scores, nil)
			assert.Equal(t, tt.want, Analyze(w).Consistency)
		})
	}
}

func TestAnalyze_BestAndWorst(t *testing.T) {
	w := week(t, mon2sun[:5], []int{30, 60, 60, 10, 10}, nil)
	a := Analyze(w)
	assert.Equal(t, "2025-03-04", a.BestDay)
	assert.Equal(t, "2025-03-07", a.WorstDay)
}

func TestAnalyze_InsightOrder(t *testing.T) {
	// Declining, highly variable, and workouts on the strong days.
	scores := []int{85, 80, 85, 10, 0, 5, 0}
	exercised := []bool{true, true, true, false, false, false, false}
	a := Analyze(week(t, mon2sun, scores, exercised))

	assert.Equal(t, TrendDeclining, a.Trend)
	assert.Less(t, a.Consistency, 50)
	assert.Equal(t, 1.0, a.WorkoutCorrelation)

	require.Len(t, a.Insights, 4)
	assert.Contains(t, a.Insights[0], "fluctuates")
	assert.Contains(t, a.Insights[1], "Exercise pays off")
	assert.Contains(t, a.Insights[2], "declining")
	assert.Equal(t, "Monday is your most productive day of the week.", a.Insights[3])
}

func TestAnalyze_CautionaryWorkoutInsight(t *testing.T) {
	w := week(t, mon2sun[:4], []int{20, 45, 20, 45}, []bool{true, false, true, false})
	a := Analyze(w)
	found := false
	for _, ins := range a.Insights {
		if strings.Contains(ins, "Workout days are scoring lower") {
			found = true
		}
	}
	assert.True(t, found, "insights: %v", a.Insights)
}

func TestAnalyze_ImprovingInsight(t *testing.T) {
	a := Analyze(week(t, mon2sun[:4], []int{20, 20, 40, 40}, nil))
	assert.Contains(t, strings.Join(a.Insights, "\n"), "improving")
	assert.NotContains(t, strings.Join(a.Insights, "\n"), "declining")
}

func TestAnalyze_BestWeekday(t *testing.T) {
	// Two Mondays at 30 (60 total) beat one Wednesday at 50.
	w := []metrics.DailyMetrics{
		day(t, "2025-03-03", 30, false), // Monday
		day(t, "2025-03-05", 50, false), // Wednesday
		day(t, "2025-03-10", 30, false), // Monday
	}
	a := Analyze(w)
	assert.Equal(t, "Monday is your most productive day of the week.", a.Insights[len(a.Insights)-1])
}

func TestAnalyze_BestWeekdayTieGoesToEarliest(t *testing.T) {
	w := []metrics.DailyMetrics{
		day(t, "2025-03-07", 40, false), // Friday
		day(t, "2025-03-04", 40, false), // Tuesday
	}
	a := Analyze(w)
	assert.Equal(t, "Tuesday is your most productive day of the week.", a.Insights[len(a.Insights)-1])
}

func TestAnalyze_UnparseableDatesSkipWeekdayInsight(t *testing.T) {
	w := []metrics.DailyMetrics{
		{Date: "someday", GitHubCommits: 5},
		{Date: "another", GitHubCommits: 5},
	}
	a := Analyze(w)
	for _, ins := range a.Insights {
		assert.NotContains(t, ins, "most productive day")
	}
	assert.Equal(t, "someday", a.BestDay)
}

func TestAnalyze_Recommendations(t *testing.T) {
	t.Run("baseline only", func(t *testing.T) {
		w := []metrics.DailyMetrics{day(t, "2025-03-04", 70, true), day(t, "2025-03-03", 70, true)}
		a := Analyze(w)
		assert.Equal(t, []string{
			"Aim for 7-8 hours of sleep.",
			"Schedule deep-work blocks of at least 2 hours.",
			"Cap meetings at 2 hours a day.",
		}, a.Recommendations)
	})

	t.Run("latest day low and idle", func(t *testing.T) {
		w := []metrics.DailyMetrics{day(t, "2025-03-04", 20, false), day(t, "2025-03-03", 25, false)}
		a := Analyze(w)
		require.Len(t, a.Recommendations, 5)
		assert.Contains(t, a.Recommendations[0], "priority")
		assert.Contains(t, a.Recommendations[1], "focus session")
		assert.Contains(t, a.Recommendations[2], "exercise")
		assert.Equal(t, "Aim for 7-8 hours of sleep.", a.Recommendations[3])
		assert.Equal(t, "Schedule deep-work blocks of at least 2 hours.", a.Recommendations[4])
	})

	t.Run("reads week[0] not the last day", func(t *testing.T) {
		w := []metrics.DailyMetrics{day(t, "2025-03-04", 70, true), day(t, "2025-03-03", 10, false)}
		a := Analyze(w)
		for _, r := range a.Recommendations {
			assert.NotContains(t, r, "priority")
			assert.NotContains(t, r, "exercise")
		}
	})

	t.Run("truncated in generation order", func(t *testing.T) {
		// week[0] is low and idle; the period fluctuates and declines.
		scores := []int{0, 85, 85, 85, 0, 0, 0}
		exercised := []bool{false, true, true, true, false, false, false}
		a := Analyze(week(t, mon2sun, scores, exercised))
		require.Len(t, a.Recommendations, 5)
		assert.Contains(t, a.Recommendations[0], "priority")
		assert.Contains(t, a.Recommendations[1], "focus session")
		assert.Contains(t, a.Recommendations[2], "exercise")
		assert.Contains(t, a.Recommendations[3], "fixed start time")
		assert.Contains(t, a.Recommendations[4], "top three tasks")
	})
}

func TestAnalyze_RecommendationsNeverExceedFive(t *testing.T) {
	for first := 0; first <= 60; first += 5 {
		w := week(t, mon2sun, []int{first, 85, 0, 85, 0, 85, 0}, []bool{false, true, false, true, false, true, false})
		assert.LessOrEqual(t, len(Analyze(w).Recommendations), 5)
	}
}

func TestAnalyzer_CustomWeights(t *testing.T) {
	weights := scoring.DefaultWeights()
	weights.CommitPoints = 3
	a := NewAnalyzer(scoring.New(weights))

	res := a.Analyze([]metrics.DailyMetrics{{Date: "2025-03-03", GitHubCommits: 10}})
	assert.Equal(t, 30, res.AvgDailyScore)
	assert.Equal(t, []int{30}, a.Scores([]metrics.DailyMetrics{{GitHubCommits: 10}}))
}

func TestAggregate(t *testing.T) {
	w := []metrics.DailyMetrics{
		{Date: "2025-03-03", GitHubCommits: 4, GitHubCodingMinutes: 120, FocusTimeMinutes: 60, ExerciseMinutes: 30, ExercisedToday: true},
		{Date: "2025-03-04", GitHubCodingMinutes: 45, FocusTimeMinutes: 20},
		{Date: "2025-03-05", GitHubCommits: 1, ExerciseMinutes: -15, GitHubCodingMinutes: -30},
	}

	s := Aggregate(w)
	assert.Equal(t, Summary{
		TotalCodingMinutes:   165,
		TotalExerciseMinutes: 30,
		TotalFocusMinutes:    80,
		AvgScore:             math.Round(float64(scoring.Score(w[0])+scoring.Score(w[1])+scoring.Score(w[2])) / 3),
		DaysWorked:           2,
		DaysExercised:        1,
	}, s)
	assert.Equal(t, float64(Analyze(w).AvgDailyScore), s.AvgScore)
}

func TestAggregate_EmptyWeekIsCallerError(t *testing.T) {
	s := Aggregate(nil)
	assert.True(t, math.IsNaN(s.AvgScore))
	assert.Zero(t, s.DaysWorked)
}

func TestAnalyzer_RecommendMatchesAnalyze(t *testing.T) {
	w := week(t, mon2sun, []int{0, 85, 85, 85, 0, 0, 0}, []bool{false, true, true, true, false, false, false})
	a := Analyze(w)
	assert.Equal(t, a.Recommendations, defaultAnalyzer.Recommend(w[0], a.Insights))

	// The strong exercised Tuesday only gets the fluctuation and decline advice.
	got := defaultAnalyzer.Recommend(w[1], a.Insights)
	assert.Equal(t, []string{
		"Keep a fixed start time every day to steady your routine.",
		"Plan tomorrow's top three tasks the evening before.",
		"Review what changed this week and drop one recurring commitment.",
		"Protect time for recovery; fatigue may be building up.",
		"Aim for 7-8 hours of sleep.",
	}, got)
}
