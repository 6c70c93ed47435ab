package scoring

import "fmt"

// Weights is the point table used by a Scorer. Per-unit divisors turn minutes
// or steps into points; caps bound each term before it is rounded.
type Weights struct {
	CommitPoints     float64 `toml:"commit_points" json:"commit_points"`
	CommitCap        float64 `toml:"commit_cap" json:"commit_cap"`
	PRPoints         float64 `toml:"pr_points" json:"pr_points"`
	PRCap            float64 `toml:"pr_cap" json:"pr_cap"`
	CodingMinutesPer float64 `toml:"coding_minutes_per_point" json:"coding_minutes_per_point"`
	CodingCap        float64 `toml:"coding_cap" json:"coding_cap"`

	ExerciseMinutesPer float64 `toml:"exercise_minutes_per_point" json:"exercise_minutes_per_point"`
	ExerciseCap        float64 `toml:"exercise_cap" json:"exercise_cap"`
	StreakCap          float64 `toml:"streak_cap" json:"streak_cap"`
	ExercisedBonus     float64 `toml:"exercised_bonus" json:"exercised_bonus"`

	FocusMinutesPer       float64 `toml:"focus_minutes_per_point" json:"focus_minutes_per_point"`
	FocusCap              float64 `toml:"focus_cap" json:"focus_cap"`
	DeepWorkBonus         float64 `toml:"deep_work_bonus" json:"deep_work_bonus"`
	MeetingAllowance      float64 `toml:"meeting_allowance_minutes" json:"meeting_allowance_minutes"`
	MeetingPenaltyPerHour float64 `toml:"meeting_penalty_per_hour" json:"meeting_penalty_per_hour"`

	SleepIdealMin    float64 `toml:"sleep_ideal_min" json:"sleep_ideal_min"`
	SleepIdealMax    float64 `toml:"sleep_ideal_max" json:"sleep_ideal_max"`
	SleepOKMin       float64 `toml:"sleep_ok_min" json:"sleep_ok_min"`
	SleepOKMax       float64 `toml:"sleep_ok_max" json:"sleep_ok_max"`
	SleepIdealPoints float64 `toml:"sleep_ideal_points" json:"sleep_ideal_points"`
	SleepOKPoints    float64 `toml:"sleep_ok_points" json:"sleep_ok_points"`
	SleepAnyPoints   float64 `toml:"sleep_any_points" json:"sleep_any_points"`
	StepsPer         float64 `toml:"steps_per_point" json:"steps_per_point"`
	StepsCap         float64 `toml:"steps_cap" json:"steps_cap"`

	ScreenTimeLimit   float64 `toml:"screen_time_limit_minutes" json:"screen_time_limit_minutes"`
	ScreenTimePenalty float64 `toml:"screen_time_penalty" json:"screen_time_penalty"`
}

// DefaultWeights returns the standard point table.
func DefaultWeights() Weights {
	return Weights{
		CommitPoints:     1,
		CommitCap:        10,
		PRPoints:         2,
		PRCap:            5,
		CodingMinutesPer: 30,
		CodingCap:        10,

		ExerciseMinutesPer: 15,
		ExerciseCap:        15,
		StreakCap:          5,
		ExercisedBonus:     5,

		FocusMinutesPer:       20,
		FocusCap:              15,
		DeepWorkBonus:         5,
		MeetingAllowance:      120,
		MeetingPenaltyPerHour: 2,

		SleepIdealMin:    7,
		SleepIdealMax:    8,
		SleepOKMin:       6,
		SleepOKMax:       9,
		SleepIdealPoints: 5,
		SleepOKPoints:    3,
		SleepAnyPoints:   1,
		StepsPer:         2000,
		StepsCap:         5,

		ScreenTimeLimit:   360,
		ScreenTimePenalty: 10,
	}
}

// Validate rejects tables that would divide by zero or invert a penalty.
func (w Weights) Validate() error {
	divisors := map[string]float64{
		"coding_minutes_per_point":   w.CodingMinutesPer,
		"exercise_minutes_per_point": w.ExerciseMinutesPer,
		"focus_minutes_per_point":    w.FocusMinutesPer,
		"steps_per_point":            w.StepsPer,
	}
	for name, v := range divisors {
		if v <= 0 {
			return fmt.Errorf("scoring weight %s must be positive, got %v", name, v)
		}
	}

	nonNegative := map[string]float64{
		"commit_points":             w.CommitPoints,
		"commit_cap":                w.CommitCap,
		"pr_points":                 w.PRPoints,
		"pr_cap":                    w.PRCap,
		"coding_cap":                w.CodingCap,
		"exercise_cap":              w.ExerciseCap,
		"streak_cap":                w.StreakCap,
		"exercised_bonus":           w.ExercisedBonus,
		"focus_cap":                 w.FocusCap,
		"deep_work_bonus":           w.DeepWorkBonus,
		"meeting_allowance_minutes": w.MeetingAllowance,
		"meeting_penalty_per_hour":  w.MeetingPenaltyPerHour,
		"sleep_ideal_points":        w.SleepIdealPoints,
		"sleep_ok_points":           w.SleepOKPoints,
		"sleep_any_points":          w.SleepAnyPoints,
		"steps_cap":                 w.StepsCap,
		"screen_time_limit_minutes": w.ScreenTimeLimit,
		"screen_time_penalty":       w.ScreenTimePenalty,
	}
	for name, v := range nonNegative {
		if v < 0 {
			return fmt.Errorf("scoring weight %s must not be negative, got %v", name, v)
		}
	}

	if w.SleepIdealMin > w.SleepIdealMax || w.SleepOKMin > w.SleepOKMax {
		return fmt.Errorf("sleep ranges are inverted")
	}
	return nil
}
