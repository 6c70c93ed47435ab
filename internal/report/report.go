// Package report assembles a period report: per-day results, the pattern
// analysis, period totals and an optional AI narrative.
package report

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/christopherklint97/dayscore/internal/ai"
	"github.com/christopherklint97/dayscore/internal/metrics"
	"github.com/christopherklint97/dayscore/internal/observability"
	"github.com/christopherklint97/dayscore/internal/patterns"
	"github.com/christopherklint97/dayscore/internal/scoring"
)

// Report is one analyzed period.
type Report struct {
	ID             string            `json:"id,omitempty"`
	StartDate      string            `json:"start_date"`
	EndDate        string            `json:"end_date"`
	Days           []scoring.Result  `json:"days"`
	Analysis       patterns.Analysis `json:"analysis"`
	Summary        *patterns.Summary `json:"summary,omitempty"`
	Narrative      *ai.Narrative     `json:"narrative,omitempty"`
	NarrativeError string            `json:"narrative_error,omitempty"`
	GeneratedAt    time.Time         `json:"generated_at"`
}

// Builder builds reports with one set of weights.
type Builder struct {
	scorer   *scoring.Scorer
	analyzer *patterns.Analyzer
	logger   *slog.Logger
	now      func() time.Time
}

// NewBuilder returns a Builder. A nil scorer uses the default weights.
func NewBuilder(scorer *scoring.Scorer, logger *slog.Logger) *Builder {
	if scorer == nil {
		scorer = scoring.Default()
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Builder{
		scorer:   scorer,
		analyzer: patterns.NewAnalyzer(scorer),
		logger:   logger,
		now:      time.Now,
	}
}

// Build reports on week, which must be in chronological order. The trend
// therefore reads oldest to newest, and recommendations are made for the
// newest day. A nil narrator skips narration; a failing one is logged and the
// report is returned without a narrative.
func (b *Builder) Build(ctx context.Context, week []metrics.DailyMetrics, narrator ai.Narrator) Report {
	r := Report{
		Days:        make([]scoring.Result, len(week)),
		Analysis:    b.analyzer.Analyze(week),
		GeneratedAt: b.now().UTC(),
	}
	for i, d := range week {
		r.Days[i] = b.scorer.Evaluate(d)
	}

	if len(week) == 0 {
		return r
	}

	r.StartDate = week[0].Date
	r.EndDate = week[len(week)-1].Date
	r.Analysis.Recommendations = b.analyzer.Recommend(week[len(week)-1], r.Analysis.Insights)

	summary := b.analyzer.Aggregate(week)
	r.Summary = &summary
	observability.RecordAnalysis(r.Analysis.AvgDailyScore, r.Analysis.Consistency, r.Analysis.WorkoutCorrelation)

	if narrator == nil {
		return r
	}
	n, err := narrator.Narrate(ctx, DigestOf(r, week))
	if err != nil {
		b.logger.Warn("narrative unavailable", "start", r.StartDate, "end", r.EndDate, "error", err)
		r.NarrativeError = err.Error()
		return r
	}
	r.Narrative = n
	return r
}

// Build builds a report with the default weights.
func Build(ctx context.Context, week []metrics.DailyMetrics, narrator ai.Narrator) Report {
	return NewBuilder(nil, nil).Build(ctx, week, narrator)
}

// DigestOf reduces r and its source week to what a narrator needs.
func DigestOf(r Report, week []metrics.DailyMetrics) ai.Digest {
	d := ai.Digest{
		StartDate:          r.StartDate,
		EndDate:            r.EndDate,
		AvgDailyScore:      r.Analysis.AvgDailyScore,
		Consistency:        r.Analysis.Consistency,
		WorkoutCorrelation: r.Analysis.WorkoutCorrelation,
		Trend:              string(r.Analysis.Trend),
		BestDay:            r.Analysis.BestDay,
		WorstDay:           r.Analysis.WorstDay,
		Days:               make([]ai.DigestDay, 0, len(week)),
		Insights:           r.Analysis.Insights,
		Recommendations:    r.Analysis.Recommendations,
	}
	for i, m := range week {
		m = m.Sanitized()
		day := ai.DigestDay{
			Date:            m.Date,
			Commits:         m.GitHubCommits,
			CodingMinutes:   m.GitHubCodingMinutes,
			FocusMinutes:    m.FocusTimeMinutes,
			MeetingsMinutes: m.MeetingsMinutes,
			ExerciseMinutes: m.ExerciseMinutes,
			SleepHours:      m.SleepHours,
		}
		if i < len(r.Days) {
			day.Score = r.Days[i].Score
			day.Grade = r.Days[i].Grade
		}
		if t, err := metrics.ParseDate(m.Date); err == nil {
			day.Weekday = t.Weekday().String()
		}
		d.Days = append(d.Days, day)
	}
	return d
}
