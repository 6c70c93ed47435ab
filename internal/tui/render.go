package tui

import (
	"fmt"
	"math"
	"strings"

	"github.com/christopherklint97/dayscore/internal/metrics"
	"github.com/christopherklint97/dayscore/internal/report"
	"github.com/christopherklint97/dayscore/internal/scoring"
)

const barWidth = 20

// RenderReport renders r for the terminal.
func RenderReport(r report.Report) string {
	var b strings.Builder

	if len(r.Days) == 0 {
		b.WriteString(titleStyle.Render("dayscore"))
		b.WriteString("\n")
		b.WriteString(dimStyle.Render("No data for this period."))
		b.WriteString("\n")
		return b.String()
	}

	a := r.Analysis
	b.WriteString(titleStyle.Render(fmt.Sprintf("dayscore · %s to %s", r.StartDate, r.EndDate)))
	b.WriteString("\n")

	avgGrade := scoring.Grade(a.AvgDailyScore)
	b.WriteString(fmt.Sprintf("Average %s · consistency %d · trend %s · workout correlation %+.2f\n\n",
		gradeStyle(avgGrade).Render(fmt.Sprintf("%d (%s)", a.AvgDailyScore, avgGrade)),
		a.Consistency, a.Trend, a.WorkoutCorrelation))

	for _, d := range r.Days {
		b.WriteString(RenderDayLine(d))
		b.WriteString("\n")
	}
	b.WriteString(dimStyle.Render(fmt.Sprintf("Best: %s · Worst: %s", dayLabel(a.BestDay), dayLabel(a.WorstDay))))
	b.WriteString("\n")

	if s := r.Summary; s != nil {
		b.WriteString("\n")
		b.WriteString(fmt.Sprintf("Totals: coding %s · exercise %s · focus %s · %d days with commits · %d days exercised\n",
			formatMinutes(s.TotalCodingMinutes),
			formatMinutes(s.TotalExerciseMinutes),
			formatMinutes(s.TotalFocusMinutes),
			s.DaysWorked, s.DaysExercised))
	}

	if len(a.Insights) > 0 {
		b.WriteString("\n")
		b.WriteString(sectionStyle.Render("Insights"))
		b.WriteString("\n")
		for _, in := range a.Insights {
			b.WriteString("  • " + in + "\n")
		}
	}

	if len(a.Recommendations) > 0 {
		b.WriteString("\n")
		b.WriteString(sectionStyle.Render("Recommendations"))
		b.WriteString("\n")
		for i, rec := range a.Recommendations {
			b.WriteString(fmt.Sprintf("  %d. %s\n", i+1, rec))
		}
	}

	switch {
	case r.Narrative != nil:
		var nb strings.Builder
		nb.WriteString(highlightStyle.Render(r.Narrative.Headline))
		if r.Narrative.Summary != "" {
			nb.WriteString("\n" + r.Narrative.Summary)
		}
		for _, h := range r.Narrative.Highlights {
			nb.WriteString("\n• " + h)
		}
		b.WriteString("\n")
		b.WriteString(boxStyle.Width(72).Render(nb.String()))
		b.WriteString("\n")
	case r.NarrativeError != "":
		b.WriteString("\n")
		b.WriteString(warningStyle.Render("AI narrative unavailable: " + r.NarrativeError))
		b.WriteString("\n")
	}

	return b.String()
}

// RenderDayLine renders one scored day as a labeled bar.
func RenderDayLine(d scoring.Result) string {
	style := gradeStyle(d.Grade)
	return fmt.Sprintf("%-14s %s %3d %s",
		dayLabel(d.Date), style.Render(scoreBar(d.Score)), d.Score, style.Render(fmt.Sprintf("%-2s", d.Grade)))
}

// RenderDay renders one scored day with its term breakdown.
func RenderDay(d scoring.Result) string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("dayscore · " + dayLabel(d.Date)))
	b.WriteString("\n")
	b.WriteString(RenderDayLine(d))
	b.WriteString("\n")
	b.WriteString(dimStyle.Render(d.Description))
	b.WriteString("\n\n")

	bd := d.Breakdown
	rows := []struct {
		label string
		value int
	}{
		{"Coding", bd.Coding()},
		{"Exercise", bd.Exercise()},
		{"Focus", bd.Focus()},
		{"Health", bd.Health()},
		{"Screen", bd.ScreenPenalty},
	}
	for _, row := range rows {
		b.WriteString(fmt.Sprintf("  %-9s %+4d\n", row.label, row.value))
	}
	return b.String()
}

func scoreBar(score int) string {
	filled := int(math.Round(float64(score) * barWidth / 100))
	filled = max(0, min(barWidth, filled))
	return strings.Repeat("█", filled) + strings.Repeat("░", barWidth-filled)
}

func dayLabel(date string) string {
	t, err := metrics.ParseDate(date)
	if err != nil {
		return date
	}
	return t.Format("Mon") + " " + date
}

func formatMinutes(m int) string {
	h, rem := m/60, m%60
	switch {
	case h == 0:
		return fmt.Sprintf("%dm", rem)
	case rem == 0:
		return fmt.Sprintf("%dh", h)
	default:
		return fmt.Sprintf("%dh%02dm", h, rem)
	}
}
