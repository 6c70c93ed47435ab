package github

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/christopherklint97/dayscore/internal/metrics"
)

const (
	// sessionGap splits commits into separate coding sessions.
	sessionGap = 2 * time.Hour
	// sessionLeadIn is the work assumed before a session's first commit.
	sessionLeadIn = 30 * time.Minute
)

// Activity is one day of coding activity across all tracked repos.
type Activity struct {
	Commits       int `json:"commits"`
	PRs           int `json:"prs"`
	CodingMinutes int `json:"coding_minutes"`
}

// FetchActivity collects commits and merged PRs from every repo between start
// and end and groups them by calendar date in start's location. A repo that
// fails is logged and skipped; the call only fails when every repo does.
func (c *Client) FetchActivity(ctx context.Context, repos []string, start, end time.Time) (map[string]Activity, error) {
	loc := start.Location()
	out := make(map[string]Activity)
	commitTimes := make(map[string][]time.Time)

	var errs []error
	for _, repo := range repos {
		c.logger.Debug("fetching commits", "repo", repo, "since", start.Format(time.RFC3339), "until", end.Format(time.RFC3339))
		commits, err := c.GetCommits(ctx, repo, start, end)
		if err != nil {
			c.logger.Warn("failed to fetch commits", "repo", repo, "error", err)
			errs = append(errs, err)
			continue
		}
		c.logger.Debug("commits fetched", "repo", repo, "count", len(commits))
		for _, cm := range commits {
			date := metrics.FormatDate(cm.Date.In(loc))
			a := out[date]
			a.Commits++
			out[date] = a
			commitTimes[date] = append(commitTimes[date], cm.Date)
		}

		prs, err := c.GetMergedPRs(ctx, repo, start, end)
		if err != nil {
			c.logger.Warn("failed to fetch PRs", "repo", repo, "error", err)
			continue
		}
		c.logger.Debug("PRs fetched", "repo", repo, "count", len(prs))
		for _, pr := range prs {
			date := metrics.FormatDate(pr.MergedAt.In(loc))
			a := out[date]
			a.PRs++
			out[date] = a
		}
	}

	if len(repos) > 0 && len(errs) == len(repos) {
		return nil, fmt.Errorf("fetching GitHub activity: %w", errors.Join(errs...))
	}

	for date, times := range commitTimes {
		a := out[date]
		a.CodingMinutes = EstimateCodingMinutes(times)
		out[date] = a
	}
	return out, nil
}

// EstimateCodingMinutes estimates time spent coding from commit timestamps.
// Commits less than two hours apart belong to one session, and each session
// counts from its first to its last commit plus a 30 minute lead-in.
func EstimateCodingMinutes(times []time.Time) int {
	if len(times) == 0 {
		return 0
	}
	sorted := make([]time.Time, len(times))
	copy(sorted, times)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Before(sorted[j]) })

	var total time.Duration
	first, last := sorted[0], sorted[0]
	for _, t := range sorted[1:] {
		if t.Sub(last) >= sessionGap {
			total += last.Sub(first) + sessionLeadIn
			first = t
		}
		last = t
	}
	total += last.Sub(first) + sessionLeadIn

	return int(total / time.Minute)
}
