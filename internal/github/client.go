package github

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"os"
	"os/exec"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

const defaultBaseURL = "https://api.github.com"

// GitHub allows 5000 authenticated requests an hour; stay a little under.
const (
	defaultRate  = rate.Limit(5000.0 / 3600.0)
	defaultBurst = 10
	maxRetries   = 3
)

// Repo represents a GitHub repository.
type Repo struct {
	FullName    string    `json:"full_name"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Private     bool      `json:"private"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Commit represents a single git commit.
type Commit struct {
	SHA     string
	Message string
	Date    time.Time
	Repo    string
}

// PullRequest represents a merged pull request.
type PullRequest struct {
	Number   int
	Title    string
	MergedAt time.Time
	Repo     string
}

// Client is a GitHub API client with rate limiting and retry logic.
type Client struct {
	token      string
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	retryBase  time.Duration
	logger     *slog.Logger
	username   string // cached after first GetUser call
}

// ResolveToken tries to resolve a GitHub token from multiple sources:
// 1. `gh auth token` CLI command
// 2. GITHUB_TOKEN environment variable
// 3. Config file value passed in
func ResolveToken(configToken string) (string, error) {
	out, err := exec.Command("gh", "auth", "token").Output()
	if err == nil {
		token := strings.TrimSpace(string(out))
		if token != "" {
			return token, nil
		}
	}

	if v := os.Getenv("GITHUB_TOKEN"); v != "" {
		return v, nil
	}

	if configToken != "" {
		return configToken, nil
	}

	return "", fmt.Errorf("no GitHub token found: run 'gh auth login', set GITHUB_TOKEN, or add token to [github] config")
}

// NewClient creates a new GitHub API client.
func NewClient(token string, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Client{
		token:   token,
		baseURL: defaultBaseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		limiter:   rate.NewLimiter(defaultRate, defaultBurst),
		retryBase: time.Second,
		logger:    logger,
	}
}

// WithBaseURL points the client at another API root, such as GitHub Enterprise.
func (c *Client) WithBaseURL(url string) *Client {
	c.baseURL = strings.TrimRight(url, "/")
	return c
}

// WithRateLimit replaces the request limiter.
func (c *Client) WithRateLimit(limit rate.Limit, burst int) *Client {
	c.limiter = rate.NewLimiter(limit, burst)
	return c
}

func (c *Client) doRequest(ctx context.Context, method, path string) ([]byte, error) {
	url := c.baseURL + path
	req, err := http.NewRequestWithContext(ctx, method, url, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/vnd.github+json")

	var resp *http.Response
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("waiting for rate limiter: %w", err)
		}

		resp, err = c.httpClient.Do(req)
		if err != nil {
			if attempt == maxRetries || ctx.Err() != nil {
				c.logger.Error("GitHub API transport error", "method", method, "path", path, "error", err)
				return nil, fmt.Errorf("sending request: %w", err)
			}
			if err := c.sleep(ctx, attempt); err != nil {
				return nil, err
			}
			continue
		}

		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			resp.Body.Close()
			if attempt == maxRetries {
				c.logger.Error("GitHub API failed after retries", "method", method, "path", path, "status", resp.StatusCode)
				return nil, fmt.Errorf("GitHub API returned status %d after %d retries", resp.StatusCode, maxRetries)
			}
			c.logger.Debug("retrying GitHub request", "path", path, "status", resp.StatusCode, "attempt", attempt+1)
			if err := c.sleep(ctx, attempt); err != nil {
				return nil, err
			}
			continue
		}
		break
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.logger.Error("GitHub API error", "method", method, "path", path, "status", resp.StatusCode, "response", truncate(string(body), 200))
		return nil, fmt.Errorf("GitHub API error (status %d): %s", resp.StatusCode, truncate(string(body), 200))
	}

	return body, nil
}

func (c *Client) sleep(ctx context.Context, attempt int) error {
	t := time.NewTimer(c.backoff(attempt))
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func (c *Client) backoff(attempt int) time.Duration {
	return time.Duration(math.Pow(2, float64(attempt))) * c.retryBase
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}

func shortName(repoFullName string) string {
	if parts := strings.SplitN(repoFullName, "/", 2); len(parts) == 2 {
		return parts[1]
	}
	return repoFullName
}

// GetUser returns the authenticated user's login name (cached).
func (c *Client) GetUser(ctx context.Context) (string, error) {
	if c.username != "" {
		return c.username, nil
	}

	data, err := c.doRequest(ctx, http.MethodGet, "/user")
	if err != nil {
		return "", fmt.Errorf("getting GitHub user: %w", err)
	}

	var user struct {
		Login string `json:"login"`
	}
	if err := json.Unmarshal(data, &user); err != nil {
		return "", fmt.Errorf("parsing user response: %w", err)
	}

	c.username = user.Login
	return c.username, nil
}

// GetRepos returns all repos accessible to the authenticated user, sorted by recently updated.
func (c *Client) GetRepos(ctx context.Context) ([]Repo, error) {
	var allRepos []Repo
	page := 1

	for {
		path := fmt.Sprintf("/user/repos?sort=updated&per_page=100&page=%d", page)
		data, err := c.doRequest(ctx, http.MethodGet, path)
		if err != nil {
			return nil, fmt.Errorf("fetching repos: %w", err)
		}

		var repos []Repo
		if err := json.Unmarshal(data, &repos); err != nil {
			return nil, fmt.Errorf("parsing repos: %w", err)
		}

		allRepos = append(allRepos, repos...)

		if len(repos) < 100 {
			break
		}
		page++
	}

	return allRepos, nil
}

// GetCommits returns commits by the authenticated user in the given repo and date range.
func (c *Client) GetCommits(ctx context.Context, repoFullName string, since, until time.Time) ([]Commit, error) {
	user, err := c.GetUser(ctx)
	if err != nil {
		return nil, err
	}

	var allCommits []Commit
	page := 1

	for {
		path := fmt.Sprintf("/repos/%s/commits?author=%s&since=%s&until=%s&per_page=100&page=%d",
			repoFullName, user,
			since.UTC().Format(time.RFC3339),
			until.UTC().Format(time.RFC3339),
			page,
		)

		data, err := c.doRequest(ctx, http.MethodGet, path)
		if err != nil {
			return nil, fmt.Errorf("fetching commits for %s: %w", repoFullName, err)
		}

		var apiCommits []struct {
			SHA    string `json:"sha"`
			Commit struct {
				Message string `json:"message"`
				Author  struct {
					Date time.Time `json:"date"`
				} `json:"author"`
			} `json:"commit"`
		}
		if err := json.Unmarshal(data, &apiCommits); err != nil {
			return nil, fmt.Errorf("parsing commits for %s: %w", repoFullName, err)
		}

		for _, ac := range apiCommits {
			msg := ac.Commit.Message
			if idx := strings.IndexByte(msg, '\n'); idx >= 0 {
				msg = msg[:idx]
			}
			sha := ac.SHA
			if len(sha) > 7 {
				sha = sha[:7]
			}
			allCommits = append(allCommits, Commit{
				SHA:     sha,
				Message: msg,
				Date:    ac.Commit.Author.Date,
				Repo:    shortName(repoFullName),
			})
		}

		if len(apiCommits) < 100 {
			break
		}
		page++
	}

	return allCommits, nil
}

// GetMergedPRs returns pull requests merged by the user in the given repo and date range.
func (c *Client) GetMergedPRs(ctx context.Context, repoFullName string, since, until time.Time) ([]PullRequest, error) {
	var allPRs []PullRequest
	page := 1

	user, err := c.GetUser(ctx)
	if err != nil {
		return nil, err
	}

	for {
		path := fmt.Sprintf("/repos/%s/pulls?state=closed&sort=updated&direction=desc&per_page=100&page=%d",
			repoFullName, page,
		)

		data, err := c.doRequest(ctx, http.MethodGet, path)
		if err != nil {
			return nil, fmt.Errorf("fetching PRs for %s: %w", repoFullName, err)
		}

		var apiPRs []struct {
			Number int    `json:"number"`
			Title  string `json:"title"`
			User   struct {
				Login string `json:"login"`
			} `json:"user"`
			MergedAt  *time.Time `json:"merged_at"`
			UpdatedAt time.Time  `json:"updated_at"`
		}
		if err := json.Unmarshal(data, &apiPRs); err != nil {
			return nil, fmt.Errorf("parsing PRs for %s: %w", repoFullName, err)
		}

		olderThanRange := len(apiPRs) > 0
		for _, pr := range apiPRs {
			if !pr.UpdatedAt.Before(since) {
				olderThanRange = false
			}
			if pr.MergedAt == nil || pr.User.Login != user {
				continue
			}
			if pr.MergedAt.Before(since) || pr.MergedAt.After(until) {
				continue
			}
			allPRs = append(allPRs, PullRequest{
				Number:   pr.Number,
				Title:    pr.Title,
				MergedAt: *pr.MergedAt,
				Repo:     shortName(repoFullName),
			})
		}

		// Sorted by update time, so a page updated entirely before since ends the scan.
		if olderThanRange || len(apiPRs) < 100 {
			break
		}
		page++
	}

	return allPRs, nil
}
