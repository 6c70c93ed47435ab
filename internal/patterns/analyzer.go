// Package patterns analyzes a reporting period of daily metrics: average,
// consistency, trend, exercise correlation, best and worst day, and the
// narrative insights and recommendations derived from them.
package patterns

import (
	"math"
	"sort"

	"github.com/christopherklint97/dayscore/internal/metrics"
	"github.com/christopherklint97/dayscore/internal/scoring"
)

// NotAvailable marks BestDay and WorstDay for an empty period.
const NotAvailable = "N/A"

const (
	// minTrendDays is the shortest period with a meaningful half split.
	minTrendDays    = 4
	trendThreshold  = 10.0
	correlationSpan = 50.0
)

// Trend is the direction of scores between the first and second half of a period.
type Trend string

const (
	TrendImproving Trend = "improving"
	TrendDeclining Trend = "declining"
	TrendStable    Trend = "stable"
)

// Analysis is the pattern analysis of one period.
type Analysis struct {
	AvgDailyScore      int      `json:"avg_daily_score"`
	Consistency        int      `json:"consistency"`
	WorkoutCorrelation float64  `json:"workout_correlation"`
	BestDay            string   `json:"best_day"`
	WorstDay           string   `json:"worst_day"`
	Trend              Trend    `json:"trend"`
	Insights           []string `json:"insights"`
	Recommendations    []string `json:"recommendations"`
}

// Analyzer runs the analysis with a specific scorer.
type Analyzer struct {
	scorer *scoring.Scorer
}

// NewAnalyzer returns an Analyzer. A nil scorer uses the default weights.
func NewAnalyzer(scorer *scoring.Scorer) *Analyzer {
	if scorer == nil {
		scorer = scoring.Default()
	}
	return &Analyzer{scorer: scorer}
}

var defaultAnalyzer = NewAnalyzer(nil)

// Analyze analyzes week with the default weights.
func Analyze(week []metrics.DailyMetrics) Analysis {
	return defaultAnalyzer.Analyze(week)
}

// Analyze scores every day of week (ignoring any precomputed score) and derives
// the period's patterns. The order of week is significant for the trend split,
// the best/worst tie-break and the recommendations, which read week[0].
func (a *Analyzer) Analyze(week []metrics.DailyMetrics) Analysis {
	if len(week) == 0 {
		return Analysis{
			BestDay:         NotAvailable,
			WorstDay:        NotAvailable,
			Trend:           TrendStable,
			Insights:        []string{},
			Recommendations: []string{},
		}
	}

	scores := a.scores(week)

	out := Analysis{
		AvgDailyScore:      int(math.Round(mean(scores))),
		Consistency:        consistency(scores),
		WorkoutCorrelation: workoutCorrelation(week, scores),
		Trend:              trend(scores),
	}
	out.BestDay, out.WorstDay = bestAndWorst(week, scores)
	out.Insights = insights(out, week, scores)
	out.Recommendations = recommendations(week[0], scores[0], out.Insights)

	return out
}

// Scores returns the recomputed score of every day, in input order.
func (a *Analyzer) Scores(week []metrics.DailyMetrics) []int {
	return a.scores(week)
}

func (a *Analyzer) scores(week []metrics.DailyMetrics) []int {
	out := make([]int, len(week))
	for i, d := range week {
		out[i] = a.scorer.Score(d)
	}
	return out
}

// consistency is 100 minus twice the population standard deviation, floored at 0.
func consistency(scores []int) int {
	if len(scores) < 2 {
		return 100
	}
	m := mean(scores)
	var sq float64
	for _, s := range scores {
		d := float64(s) - m
		sq += d * d
	}
	std := math.Sqrt(sq / float64(len(scores)))
	return int(math.Round(math.Max(0, 100-2*std)))
}

func workoutCorrelation(week []metrics.DailyMetrics, scores []int) float64 {
	var exercised, rest []int
	for i, d := range week {
		if d.ExercisedToday {
			exercised = append(exercised, scores[i])
		} else {
			rest = append(rest, scores[i])
		}
	}
	if len(exercised) == 0 || len(rest) == 0 {
		return 0
	}

	diff := (mean(exercised) - mean(rest)) / correlationSpan
	diff = math.Max(-1, math.Min(1, diff))
	return math.Round(diff*100) / 100
}

func bestAndWorst(week []metrics.DailyMetrics, scores []int) (string, string) {
	order := make([]int, len(week))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(i, j int) bool {
		return scores[order[i]] > scores[order[j]]
	})
	return week[order[0]].Date, week[order[len(order)-1]].Date
}

func trend(scores []int) Trend {
	if len(scores) < minTrendDays {
		return TrendStable
	}
	half := len(scores) / 2
	first := mean(scores[:half])
	second := mean(scores[half:])

	switch {
	case second-first > trendThreshold:
		return TrendImproving
	case first-second > trendThreshold:
		return TrendDeclining
	default:
		return TrendStable
	}
}

func mean(xs []int) float64 {
	if len(xs) == 0 {
		return 0
	}
	var sum int
	for _, x := range xs {
		sum += x
	}
	return float64(sum) / float64(len(xs))
}
