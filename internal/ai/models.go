package ai

// Narrative is the model-written summary of a period.
type Narrative struct {
	Headline   string   `json:"headline" jsonschema_description:"One sentence, at most 12 words, naming the defining pattern of the period"`
	Summary    string   `json:"summary" jsonschema_description:"Two to four sentences in second person describing how the period went"`
	Highlights []string `json:"highlights" jsonschema_description:"Up to three short, concrete observations taken from the numbers"`
}

// Digest is what a narrator sees of a period: the computed numbers only,
// never the raw source data.
type Digest struct {
	StartDate          string      `json:"start_date"`
	EndDate            string      `json:"end_date"`
	AvgDailyScore      int         `json:"avg_daily_score"`
	Consistency        int         `json:"consistency"`
	WorkoutCorrelation float64     `json:"workout_correlation"`
	Trend              string      `json:"trend"`
	BestDay            string      `json:"best_day"`
	WorstDay           string      `json:"worst_day"`
	Days               []DigestDay `json:"days"`
	Insights           []string    `json:"insights"`
	Recommendations    []string    `json:"recommendations"`
}

// DigestDay is one scored day of a Digest.
type DigestDay struct {
	Date            string  `json:"date"`
	Weekday         string  `json:"weekday"`
	Score           int     `json:"score"`
	Grade           string  `json:"grade"`
	Commits         int     `json:"commits"`
	CodingMinutes   int     `json:"coding_minutes"`
	FocusMinutes    int     `json:"focus_minutes"`
	MeetingsMinutes int     `json:"meetings_minutes"`
	ExerciseMinutes int     `json:"exercise_minutes"`
	SleepHours      float64 `json:"sleep_hours"`
}

const maxHighlights = 3
