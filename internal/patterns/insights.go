package patterns

import (
	"fmt"
	"strings"
	"time"

	"github.com/christopherklint97/dayscore/internal/metrics"
)

const maxRecommendations = 5

const (
	highConsistency  = 80
	lowConsistency   = 50
	positiveWorkout  = 0.3
	negativeWorkout  = -0.2
	lowScoreBoundary = 50
)

// Rule trigger words. Recommendations match insights on these.
const (
	fluctuatesMarker = "fluctuates"
	decliningMarker  = "declining"
)

func insights(a Analysis, week []metrics.DailyMetrics, scores []int) []string {
	out := []string{}

	if a.Consistency >= highConsistency {
		out = append(out, fmt.Sprintf(
			"You're highly consistent: your daily scores stay in a narrow band (consistency %d/100).", a.Consistency))
	}
	if a.Consistency < lowConsistency {
		out = append(out, fmt.Sprintf(
			"Your productivity %s significantly from day to day (consistency %d/100).", fluctuatesMarker, a.Consistency))
	}

	if a.WorkoutCorrelation > positiveWorkout {
		out = append(out, fmt.Sprintf(
			"Exercise pays off: days with a workout score higher than days without (correlation %+.2f).", a.WorkoutCorrelation))
	}
	if a.WorkoutCorrelation < negativeWorkout {
		out = append(out, fmt.Sprintf(
			"Workout days are scoring lower than rest days (correlation %+.2f); heavy training may be cutting into focused work.", a.WorkoutCorrelation))
	}

	switch a.Trend {
	case TrendImproving:
		out = append(out, "Your productivity is improving: the second half of the period scored clearly higher than the first.")
	case TrendDeclining:
		out = append(out, "Your productivity is "+decliningMarker+": the second half of the period scored clearly lower than the first.")
	}

	if day, ok := bestWeekday(week, scores); ok {
		out = append(out, fmt.Sprintf("%s is your most productive day of the week.", day))
	}

	return out
}

// bestWeekday sums scores per weekday (from the plain calendar date) and
// returns the weekday with the highest total. Ties go to the earliest weekday,
// Sunday first. Days whose date does not parse are skipped.
func bestWeekday(week []metrics.DailyMetrics, scores []int) (time.Weekday, bool) {
	var totals [7]int
	var present [7]bool

	for i, d := range week {
		t, err := metrics.ParseDate(d.Date)
		if err != nil {
			continue
		}
		wd := t.Weekday()
		totals[wd] += scores[i]
		present[wd] = true
	}

	best, found := time.Sunday, false
	for wd := time.Sunday; wd <= time.Saturday; wd++ {
		if !present[wd] {
			continue
		}
		if !found || totals[wd] > totals[best] {
			best, found = wd, true
		}
	}
	return best, found
}

// Recommend builds recommendations for latest against a period's insights.
// Analyze uses week[0]; callers holding a chronological week use this with the
// last day instead.
func (a *Analyzer) Recommend(latest metrics.DailyMetrics, insights []string) []string {
	return recommendations(latest, a.scorer.Score(latest), insights)
}

func recommendations(latest metrics.DailyMetrics, latestScore int, ins []string) []string {
	out := []string{}

	if latestScore < lowScoreBoundary {
		out = append(out,
			"Start tomorrow with one clearly defined priority and finish it before lunch.",
			"Block a focus session before opening chat or email.",
		)
	}
	if !latest.ExercisedToday {
		out = append(out, "Fit in at least 20 minutes of exercise; even a brisk walk counts.")
	}
	if containsAny(ins, fluctuatesMarker) {
		out = append(out,
			"Keep a fixed start time every day to steady your routine.",
			"Plan tomorrow's top three tasks the evening before.",
		)
	}
	if containsAny(ins, decliningMarker) {
		out = append(out,
			"Review what changed this week and drop one recurring commitment.",
			"Protect time for recovery; fatigue may be building up.",
		)
	}

	out = append(out,
		"Aim for 7-8 hours of sleep.",
		"Schedule deep-work blocks of at least 2 hours.",
		"Cap meetings at 2 hours a day.",
	)

	if len(out) > maxRecommendations {
		out = out[:maxRecommendations]
	}
	return out
}

func containsAny(lines []string, marker string) bool {
	for _, l := range lines {
		if strings.Contains(l, marker) {
			return true
		}
	}
	return false
}
