//go:build integration

package ai_test

import (
	"context"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"testing"
	"time"

	"github.com/christopherklint97/dayscore/internal/ai"
)

func skipIfNoClaude(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("claude"); err != nil {
		t.Skip("claude CLI not found in PATH, skipping integration test")
	}
}

func testLogger(t *testing.T) *slog.Logger {
	t.Helper()
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))
}

var testDigest = ai.Digest{
	StartDate:          "2025-03-03",
	EndDate:            "2025-03-09",
	AvgDailyScore:      48,
	Consistency:        62,
	WorkoutCorrelation: 0.42,
	Trend:              "improving",
	BestDay:            "2025-03-07",
	WorstDay:           "2025-03-03",
	Days: []ai.DigestDay{
		{Date: "2025-03-03", Weekday: "Monday", Score: 22, Grade: "F", Commits: 2, MeetingsMinutes: 300},
		{Date: "2025-03-04", Weekday: "Tuesday", Score: 41, Grade: "F", Commits: 6, FocusMinutes: 60},
		{Date: "2025-03-05", Weekday: "Wednesday", Score: 55, Grade: "D", Commits: 8, ExerciseMinutes: 30},
		{Date: "2025-03-06", Weekday: "Thursday", Score: 49, Grade: "F", Commits: 4, SleepHours: 6},
		{Date: "2025-03-07", Weekday: "Friday", Score: 73, Grade: "B", Commits: 10, ExerciseMinutes: 60, FocusMinutes: 180},
	},
	Insights: []string{
		"Exercise pays off: days with a workout score higher than days without (correlation +0.42).",
		"Your productivity is improving: the second half of the period scored clearly higher than the first.",
	},
	Recommendations: []string{"Cap meetings at 2 hours a day."},
}

func TestIntegration_ClaudeCLI_Narrate(t *testing.T) {
	skipIfNoClaude(t)

	cli := ai.NewClaudeCLI("haiku", testLogger(t))
	ctx, cancel := context.WithTimeout(context.Background(), 90*time.Second)
	defer cancel()

	n, err := cli.Narrate(ctx, testDigest)
	if err != nil {
		t.Fatalf("Narrate failed: %v", err)
	}

	t.Logf("Headline: %q", n.Headline)
	t.Logf("Summary: %q", n.Summary)
	for i, h := range n.Highlights {
		t.Logf("Highlight[%d]: %q", i, h)
	}

	if n.Headline == "" {
		t.Error("expected a headline")
	}
	if n.Summary == "" {
		t.Error("expected a summary")
	}
	if len(n.Highlights) > 3 {
		t.Errorf("expected at most 3 highlights, got %d", len(n.Highlights))
	}
}

func TestIntegration_ClaudeCLI_NarrateStreaming(t *testing.T) {
	skipIfNoClaude(t)

	cli := ai.NewClaudeCLI("haiku", testLogger(t))
	var chunks []string
	cli.OnThinking = func(text string) {
		chunks = append(chunks, text)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 90*time.Second)
	defer cancel()

	n, err := cli.Narrate(ctx, testDigest)
	if err != nil {
		t.Fatalf("Narrate (streaming) failed: %v", err)
	}

	t.Logf("Received %d streamed chunks", len(chunks))
	t.Logf("Streamed text: %s", strings.Join(chunks, ""))

	if n.Headline == "" && n.Summary == "" {
		t.Error("expected a non-empty narrative")
	}
}

func TestIntegration_ClaudeCLI_NarrateTimeout(t *testing.T) {
	skipIfNoClaude(t)

	cli := ai.NewClaudeCLI("haiku", testLogger(t))
	cli.Timeout = 10 * time.Millisecond

	_, err := cli.Narrate(context.Background(), testDigest)
	if err == nil {
		t.Fatal("expected a timeout error")
	}
	t.Logf("Got expected error: %v", err)
}
