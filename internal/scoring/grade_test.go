package scoring

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGrade(t *testing.T) {
	tests := []struct {
		score int
		want  string
	}{
		{100, "A+"},
		{90, "A+"},
		{89, "A"},
		{80, "A"},
		{79, "B"},
		{70, "B"},
		{69, "C"},
		{60, "C"},
		{59, "D"}, // D starts at 50; 59 is not an F even though it is below C
		{50, "D"},
		{49, "F"},
		{0, "F"},
		{-5, "F"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Grade(tt.score), "Grade(%d)", tt.score)
	}
}

func TestDescribeBandsAreDistinct(t *testing.T) {
	seen := map[string]bool{}
	for _, s := range []int{95, 85, 75, 65, 55, 10} {
		d := Describe(s)
		assert.NotEmpty(t, d)
		assert.False(t, seen[d], "duplicate description %q", d)
		seen[d] = true
	}
	assert.Equal(t, Describe(90), Describe(100))
	assert.Equal(t, Describe(0), Describe(49))
}

func TestGrades(t *testing.T) {
	assert.Equal(t, []string{"A+", "A", "B", "C", "D", "F"}, Grades())
}
