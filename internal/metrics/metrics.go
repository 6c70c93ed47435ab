package metrics

// DailyMetrics is one calendar day's signal bundle. Every field except Date is
// optional; a zero value means the source had no data for that day.
type DailyMetrics struct {
	Date string `json:"date"`

	// Coding activity
	GitHubCommits       int `json:"github_commits,omitempty"`
	GitHubPRs           int `json:"github_prs,omitempty"`
	GitHubCodingMinutes int `json:"github_coding_minutes,omitempty"`

	// Exercise
	ExerciseMinutes int  `json:"exercise_minutes,omitempty"`
	WorkoutStreak   int  `json:"workout_streak,omitempty"`
	ExercisedToday  bool `json:"exercised_today,omitempty"`

	// Screen time
	ScreenTimeMinutes    int `json:"screen_time_minutes,omitempty"`
	ProductiveAppMinutes int `json:"productive_app_minutes,omitempty"`

	// Calendar
	MeetingsMinutes    int  `json:"meetings_minutes,omitempty"`
	FocusTimeMinutes   int  `json:"focus_time_minutes,omitempty"`
	HadDeepWorkSession bool `json:"had_deep_work_session,omitempty"`

	// Health
	SleepHours float64 `json:"sleep_hours,omitempty"`
	Steps      int     `json:"steps,omitempty"`

	// ProductivityScore is an optional precomputed score. Scoring never reads it.
	ProductivityScore *int `json:"productivity_score,omitempty"`
}

// Sanitized returns a copy with every negative count, duration and sleep value
// clamped to zero.
func (m DailyMetrics) Sanitized() DailyMetrics {
	out := m
	for _, p := range []*int{
		&out.GitHubCommits,
		&out.GitHubPRs,
		&out.GitHubCodingMinutes,
		&out.ExerciseMinutes,
		&out.WorkoutStreak,
		&out.ScreenTimeMinutes,
		&out.ProductiveAppMinutes,
		&out.MeetingsMinutes,
		&out.FocusTimeMinutes,
		&out.Steps,
	} {
		if *p < 0 {
			*p = 0
		}
	}
	// NaN fails every comparison, so check it explicitly.
	if out.SleepHours < 0 || out.SleepHours != out.SleepHours {
		out.SleepHours = 0
	}
	return out
}

// WithScore returns a copy carrying the given precomputed score.
func (m DailyMetrics) WithScore(score int) DailyMetrics {
	out := m
	out.ProductivityScore = &score
	return out
}
