package patterns

import (
	"math"

	"github.com/christopherklint97/dayscore/internal/metrics"
)

// Summary holds period totals.
type Summary struct {
	TotalCodingMinutes   int     `json:"total_coding_minutes"`
	TotalExerciseMinutes int     `json:"total_exercise_minutes"`
	TotalFocusMinutes    int     `json:"total_focus_minutes"`
	AvgScore             float64 `json:"avg_score"`
	DaysWorked           int     `json:"days_worked"`
	DaysExercised        int     `json:"days_exercised"`
}

// Aggregate totals week with the default weights.
func Aggregate(week []metrics.DailyMetrics) Summary {
	return defaultAnalyzer.Aggregate(week)
}

// Aggregate sums minutes, counts days with commits and days exercised, and
// averages the recomputed daily scores.
//
// The caller must supply at least one day. An empty week is an upstream error
// and is not defaulted: AvgScore comes back as NaN.
func (a *Analyzer) Aggregate(week []metrics.DailyMetrics) Summary {
	var s Summary
	var total float64

	for _, d := range week {
		clean := d.Sanitized()
		s.TotalCodingMinutes += clean.GitHubCodingMinutes
		s.TotalExerciseMinutes += clean.ExerciseMinutes
		s.TotalFocusMinutes += clean.FocusTimeMinutes
		if clean.GitHubCommits > 0 {
			s.DaysWorked++
		}
		if clean.ExercisedToday {
			s.DaysExercised++
		}
		total += float64(a.scorer.Score(d))
	}

	n := float64(len(week))
	s.AvgScore = math.Round(total / n)
	return s
}
