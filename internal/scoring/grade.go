package scoring

type band struct {
	min         int
	grade       string
	description string
}

// bands are checked top-down; the first whose minimum the score reaches wins.
var bands = []band{
	{90, "A+", "Outstanding day - peak performance"},
	{80, "A", "Excellent day - highly productive"},
	{70, "B", "Good day - solid progress"},
	{60, "C", "Fair day - room for improvement"},
	{50, "D", "Below average - consider adjusting your routine"},
	{MinScore, "F", "Rough day - focus on rest and recovery"},
}

// Grade maps a score to A+, A, B, C, D or F.
func Grade(score int) string {
	return bandFor(score).grade
}

// Describe returns the human-readable phrase for a score's grade band.
func Describe(score int) string {
	return bandFor(score).description
}

// Grades lists every grade from best to worst.
func Grades() []string {
	out := make([]string, len(bands))
	for i, b := range bands {
		out[i] = b.grade
	}
	return out
}

func bandFor(score int) band {
	for _, b := range bands {
		if score >= b.min {
			return b
		}
	}
	return bands[len(bands)-1]
}
