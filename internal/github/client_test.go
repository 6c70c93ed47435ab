package github

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

func testClient(t *testing.T, h http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	c := NewClient("tok", nil).WithBaseURL(srv.URL).WithRateLimit(rate.Inf, 1)
	c.retryBase = time.Millisecond
	return c
}

func writeJSON(t *testing.T, w http.ResponseWriter, v any) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	assert.NoError(t, json.NewEncoder(w).Encode(v))
}

func TestEstimateCodingMinutes(t *testing.T) {
	at := func(hhmm string) time.Time {
		ts, err := time.Parse("15:04", hhmm)
		require.NoError(t, err)
		return ts
	}

	tests := []struct {
		name  string
		times []time.Time
		want  int
	}{
		{"no commits", nil, 0},
		{"single commit is the lead-in", []time.Time{at("10:00")}, 30},
		{"one session", []time.Time{at("09:00"), at("09:45"), at("10:30")}, 120},
		{"unsorted input", []time.Time{at("10:30"), at("09:00"), at("09:45")}, 120},
		{"gap of exactly two hours splits", []time.Time{at("09:00"), at("11:00")}, 60},
		{"gap under two hours joins", []time.Time{at("09:00"), at("10:59")}, 149},
		{"two sessions", []time.Time{at("08:00"), at("09:00"), at("14:00"), at("14:20")}, 90 + 50},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, EstimateCodingMinutes(tt.times))
		})
	}
}

func TestDoRequest_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		writeJSON(t, w, map[string]string{"login": "octo"})
	}))

	user, err := c.GetUser(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "octo", user)
	assert.EqualValues(t, 3, calls.Load())

	// cached
	_, err = c.GetUser(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 3, calls.Load())
}

func TestDoRequest_GivesUpAfterRetries(t *testing.T) {
	var calls atomic.Int32
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))

	_, err := c.GetUser(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 429")
	assert.EqualValues(t, maxRetries+1, calls.Load())
}

func TestDoRequest_ClientErrorIsNotRetried(t *testing.T) {
	var calls atomic.Int32
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, `{"message":"Bad credentials"}`, http.StatusUnauthorized)
	}))

	_, err := c.GetUser(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Bad credentials")
	assert.EqualValues(t, 1, calls.Load())
}

func TestFetchActivity(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/user", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, map[string]string{"login": "octo"})
	})
	mux.HandleFunc("/repos/acme/api/commits", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "octo", r.URL.Query().Get("author"))
		writeJSON(t, w, []map[string]any{
			{"sha": "aaaaaaaaaa", "commit": map[string]any{"message": "one\n\nbody", "author": map[string]any{"date": "2025-03-03T09:00:00Z"}}},
			{"sha": "bbbbbbbbbb", "commit": map[string]any{"message": "two", "author": map[string]any{"date": "2025-03-03T10:00:00Z"}}},
			{"sha": "cccccccccc", "commit": map[string]any{"message": "three", "author": map[string]any{"date": "2025-03-04T15:00:00Z"}}},
		})
	})
	mux.HandleFunc("/repos/acme/api/pulls", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, []map[string]any{
			{"number": 7, "title": "feat", "user": map[string]any{"login": "octo"}, "merged_at": "2025-03-03T11:00:00Z", "updated_at": "2025-03-03T11:00:00Z"},
			{"number": 8, "title": "theirs", "user": map[string]any{"login": "someone"}, "merged_at": "2025-03-03T12:00:00Z", "updated_at": "2025-03-03T12:00:00Z"},
			{"number": 9, "title": "closed", "user": map[string]any{"login": "octo"}, "merged_at": nil, "updated_at": "2025-03-03T12:00:00Z"},
		})
	})
	mux.HandleFunc("/repos/acme/broken/commits", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "not found", http.StatusNotFound)
	})

	c := testClient(t, mux)
	start := time.Date(2025, 3, 3, 0, 0, 0, 0, time.UTC)
	end := time.Date(2025, 3, 5, 0, 0, 0, 0, time.UTC)

	got, err := c.FetchActivity(context.Background(), []string{"acme/api", "acme/broken"}, start, end)
	require.NoError(t, err)
	assert.Equal(t, map[string]Activity{
		"2025-03-03": {Commits: 2, PRs: 1, CodingMinutes: 90},
		"2025-03-04": {Commits: 1, CodingMinutes: 30},
	}, got)
}

func TestFetchActivity_AllReposFail(t *testing.T) {
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/user" {
			writeJSON(t, w, map[string]string{"login": "octo"})
			return
		}
		http.Error(w, "nope", http.StatusForbidden)
	}))

	_, err := c.FetchActivity(context.Background(), []string{"a/b"}, time.Now().Add(-time.Hour), time.Now())
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "fetching GitHub activity"))
}

func TestGetRepos_Paginates(t *testing.T) {
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := 100
		if r.URL.Query().Get("page") == "2" {
			n = 3
		}
		repos := make([]Repo, n)
		for i := range repos {
			repos[i] = Repo{FullName: "acme/r"}
		}
		writeJSON(t, w, repos)
	}))

	repos, err := c.GetRepos(context.Background())
	require.NoError(t, err)
	assert.Len(t, repos, 103)
}
