// Package msgraph reads Outlook calendars through Microsoft Graph.
package msgraph

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/christopherklint97/dayscore/internal/calendar"
)

const (
	graphBaseURL = "https://graph.microsoft.com/v1.0"
	maxRetries   = 3
)

// TokenSource supplies bearer tokens for Graph requests.
type TokenSource interface {
	EnsureValidToken(ctx context.Context) (string, error)
}

// Client is a Microsoft Graph API client for calendar operations.
type Client struct {
	auth       TokenSource
	baseURL    string
	classifier calendar.Classifier
	httpClient *http.Client
	retryBase  time.Duration
	logger     *slog.Logger
}

// NewClient creates a new Graph API client that classifies events with c.
func NewClient(auth TokenSource, c calendar.Classifier, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Client{
		auth:       auth,
		baseURL:    graphBaseURL,
		classifier: c,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		retryBase: time.Second,
		logger:    logger,
	}
}

// WithBaseURL points the client at another Graph root.
func (c *Client) WithBaseURL(u string) *Client {
	c.baseURL = strings.TrimRight(u, "/")
	return c
}

type calendarViewResponse struct {
	Value    []graphEvent `json:"value"`
	NextLink string       `json:"@odata.nextLink"`
}

type graphEvent struct {
	Subject     string        `json:"subject"`
	Start       graphDateTime `json:"start"`
	End         graphDateTime `json:"end"`
	IsCancelled bool          `json:"isCancelled"`
	IsAllDay    bool          `json:"isAllDay"`
	ShowAs      string        `json:"showAs"`
}

type graphDateTime struct {
	DateTime string `json:"dateTime"`
	TimeZone string `json:"timeZone"`
}

// Occupancy fetches the signed-in user's calendar and summarizes the days
// between start and end.
func (c *Client) Occupancy(ctx context.Context, start, end time.Time) (map[string]calendar.Occupancy, error) {
	events, err := c.FetchEvents(ctx, start, end)
	if err != nil {
		return nil, err
	}
	return calendar.Summarize(events, c.classifier), nil
}

// FetchEvents retrieves calendar events between start and end, expressed in
// start's location. Cancelled, free and all-day events are dropped.
func (c *Client) FetchEvents(ctx context.Context, start, end time.Time) ([]calendar.Event, error) {
	token, err := c.auth.EnsureValidToken(ctx)
	if err != nil {
		return nil, err
	}

	params := url.Values{
		"startDateTime": {start.UTC().Format("2006-01-02T15:04:05")},
		"endDateTime":   {end.UTC().Format("2006-01-02T15:04:05")},
		"$select":       {"subject,start,end,isCancelled,isAllDay,showAs"},
		"$top":          {"100"},
		"$orderby":      {"start/dateTime"},
	}

	requestURL := c.baseURL + "/me/calendarView?" + params.Encode()
	var allEvents []calendar.Event

	for requestURL != "" {
		events, nextLink, err := c.fetchPage(ctx, token, requestURL, start.Location())
		if err != nil {
			return nil, err
		}
		allEvents = append(allEvents, events...)
		requestURL = nextLink
	}

	c.logger.Debug("graph calendar events fetched", "count", len(allEvents))
	return allEvents, nil
}

func (c *Client) fetchPage(ctx context.Context, token, requestURL string, loc *time.Location) ([]calendar.Event, string, error) {
	body, err := c.get(ctx, token, requestURL)
	if err != nil {
		return nil, "", err
	}

	var viewResp calendarViewResponse
	if err := json.Unmarshal(body, &viewResp); err != nil {
		return nil, "", fmt.Errorf("parsing graph response: %w", err)
	}

	var events []calendar.Event
	for _, ge := range viewResp.Value {
		if ge.IsCancelled || ge.IsAllDay || ge.ShowAs == "free" || ge.Subject == "" {
			continue
		}

		startTime, err := parseGraphDateTime(ge.Start)
		if err != nil {
			c.logger.Debug("skipping event with unparseable start time", "subject", ge.Subject, "error", err)
			continue
		}
		endTime, err := parseGraphDateTime(ge.End)
		if err != nil {
			c.logger.Debug("skipping event with unparseable end time", "subject", ge.Subject, "error", err)
			continue
		}

		events = append(events, calendar.Event{
			Summary:   ge.Subject,
			StartTime: startTime.In(loc),
			EndTime:   endTime.In(loc),
		})
	}

	return events, viewResp.NextLink, nil
}

// get retries 429 and 5xx responses with exponential backoff.
func (c *Client) get(ctx context.Context, token, requestURL string) ([]byte, error) {
	for attempt := 0; ; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
		if err != nil {
			return nil, fmt.Errorf("creating graph request: %w", err)
		}
		req.Header.Set("Authorization", "Bearer "+token)
		req.Header.Set("Prefer", `outlook.timezone="UTC"`)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			if attempt == maxRetries || ctx.Err() != nil {
				return nil, fmt.Errorf("graph API request failed: %w", err)
			}
			if err := c.sleep(ctx, attempt); err != nil {
				return nil, err
			}
			continue
		}

		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			return nil, fmt.Errorf("reading graph response: %w", err)
		}

		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			if attempt == maxRetries {
				return nil, fmt.Errorf("graph API returned status %d after %d retries", resp.StatusCode, maxRetries)
			}
			c.logger.Debug("graph API retrying", "status", resp.StatusCode, "attempt", attempt+1)
			if err := c.sleep(ctx, attempt); err != nil {
				return nil, err
			}
			continue
		}
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return nil, fmt.Errorf("graph API error (status %d): %s", resp.StatusCode, truncateStr(string(body), 200))
		}
		return body, nil
	}
}

func (c *Client) sleep(ctx context.Context, attempt int) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(c.retryBase << attempt):
		return nil
	}
}

func parseGraphDateTime(gdt graphDateTime) (time.Time, error) {
	// With Prefer: outlook.timezone="UTC" times come back in UTC, formatted
	// with or without seven fractional digits.
	loc := time.UTC
	if gdt.TimeZone != "" && gdt.TimeZone != "UTC" {
		l, err := time.LoadLocation(gdt.TimeZone)
		if err == nil {
			loc = l
		}
	}

	for _, layout := range []string{
		"2006-01-02T15:04:05.0000000",
		"2006-01-02T15:04:05",
	} {
		t, err := time.ParseInLocation(layout, gdt.DateTime, loc)
		if err == nil {
			return t, nil
		}
	}

	return time.Time{}, fmt.Errorf("cannot parse datetime %q", gdt.DateTime)
}

func truncateStr(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
