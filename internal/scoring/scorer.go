// Package scoring turns one day's metrics into a bounded productivity score,
// a letter grade and a short description.
package scoring

import (
	"math"

	"github.com/christopherklint97/dayscore/internal/metrics"
)

const (
	MinScore = 0
	MaxScore = 100
)

// Breakdown holds each rounded term of a day's score in table order.
// Penalties are stored as non-positive values.
type Breakdown struct {
	Commits        int `json:"commits"`
	PullRequests   int `json:"pull_requests"`
	CodingTime     int `json:"coding_time"`
	ExerciseTime   int `json:"exercise_time"`
	WorkoutStreak  int `json:"workout_streak"`
	ExercisedBonus int `json:"exercised_bonus"`
	FocusTime      int `json:"focus_time"`
	DeepWorkBonus  int `json:"deep_work_bonus"`
	MeetingPenalty int `json:"meeting_penalty"`
	Sleep          int `json:"sleep"`
	Steps          int `json:"steps"`
	ScreenPenalty  int `json:"screen_penalty"`
}

// Coding, Exercise, Focus and Health are the category subtotals. They are not
// clamped individually.
func (b Breakdown) Coding() int   { return b.Commits + b.PullRequests + b.CodingTime }
func (b Breakdown) Exercise() int { return b.ExerciseTime + b.WorkoutStreak + b.ExercisedBonus }
func (b Breakdown) Focus() int    { return b.FocusTime + b.DeepWorkBonus + b.MeetingPenalty }
func (b Breakdown) Health() int   { return b.Sleep + b.Steps }

// Raw is the unclamped sum of every term.
func (b Breakdown) Raw() int {
	return b.Coding() + b.Exercise() + b.Focus() + b.Health() + b.ScreenPenalty
}

// Result is a scored day.
type Result struct {
	Date        string    `json:"date"`
	Score       int       `json:"score"`
	Grade       string    `json:"grade"`
	Description string    `json:"description"`
	Breakdown   Breakdown `json:"breakdown"`
}

// Scorer applies a Weights table. The zero value is not usable; build one with New.
type Scorer struct {
	w Weights
}

// New returns a Scorer for w. Callers should Validate user-supplied tables first.
func New(w Weights) *Scorer {
	return &Scorer{w: w}
}

var defaultScorer = New(DefaultWeights())

// Default returns the scorer built from DefaultWeights.
func Default() *Scorer {
	return defaultScorer
}

// Weights returns the table the scorer was built with.
func (s *Scorer) Weights() Weights {
	return s.w
}

// Breakdown computes every term for m. Negative inputs are clamped to zero first.
func (s *Scorer) Breakdown(m metrics.DailyMetrics) Breakdown {
	m = m.Sanitized()
	w := s.w

	var b Breakdown

	b.Commits = round(math.Min(float64(m.GitHubCommits), w.CommitCap) * w.CommitPoints)
	b.PullRequests = round(math.Min(float64(m.GitHubPRs), w.PRCap) * w.PRPoints)
	b.CodingTime = round(math.Min(float64(m.GitHubCodingMinutes)/w.CodingMinutesPer, w.CodingCap))

	b.ExerciseTime = round(math.Min(float64(m.ExerciseMinutes)/w.ExerciseMinutesPer, w.ExerciseCap))
	b.WorkoutStreak = round(math.Min(float64(m.WorkoutStreak), w.StreakCap))
	if m.ExercisedToday {
		b.ExercisedBonus = round(w.ExercisedBonus)
	}

	b.FocusTime = round(math.Min(float64(m.FocusTimeMinutes)/w.FocusMinutesPer, w.FocusCap))
	if m.HadDeepWorkSession {
		b.DeepWorkBonus = round(w.DeepWorkBonus)
	}
	excessHours := math.Max(0, (float64(m.MeetingsMinutes)-w.MeetingAllowance)/60)
	b.MeetingPenalty = -round(excessHours * w.MeetingPenaltyPerHour)

	b.Sleep = round(s.sleepPoints(m.SleepHours))
	b.Steps = round(math.Min(float64(m.Steps)/w.StepsPer, w.StepsCap))

	if float64(m.ScreenTimeMinutes) > w.ScreenTimeLimit {
		b.ScreenPenalty = -round(w.ScreenTimePenalty)
	}

	return b
}

func (s *Scorer) sleepPoints(h float64) float64 {
	w := s.w
	switch {
	case h >= w.SleepIdealMin && h <= w.SleepIdealMax:
		return w.SleepIdealPoints
	case h >= w.SleepOKMin && h <= w.SleepOKMax:
		return w.SleepOKPoints
	case h > 0:
		return w.SleepAnyPoints
	default:
		return 0
	}
}

// Score returns m's productivity score in [0, 100].
func (s *Scorer) Score(m metrics.DailyMetrics) int {
	return clamp(s.Breakdown(m).Raw(), MinScore, MaxScore)
}

// Evaluate scores m and attaches its grade and description.
func (s *Scorer) Evaluate(m metrics.DailyMetrics) Result {
	b := s.Breakdown(m)
	score := clamp(b.Raw(), MinScore, MaxScore)
	return Result{
		Date:        m.Date,
		Score:       score,
		Grade:       Grade(score),
		Description: Describe(score),
		Breakdown:   b,
	}
}

// Score scores m with the default weights.
func Score(m metrics.DailyMetrics) int {
	return defaultScorer.Score(m)
}

// Evaluate evaluates m with the default weights.
func Evaluate(m metrics.DailyMetrics) Result {
	return defaultScorer.Evaluate(m)
}

// round is half away from zero, matching math.Round.
func round(v float64) int {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return int(math.Round(v))
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
