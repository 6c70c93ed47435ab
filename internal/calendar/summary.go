package calendar

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/christopherklint97/dayscore/internal/metrics"
)

// DeepWorkBlock is the shortest uninterrupted focus block that counts as a
// deep-work session.
const DeepWorkBlock = 2 * time.Hour

// Kind is how an event counts toward a day.
type Kind int

const (
	KindMeeting Kind = iota
	KindFocus
	KindIgnored
)

// Classifier sorts events by keywords in their summary. Matching is
// case-insensitive; ignore keywords win over focus keywords.
type Classifier struct {
	FocusKeywords  []string
	IgnoreKeywords []string
}

// DefaultClassifier returns the built-in keyword lists.
func DefaultClassifier() Classifier {
	return Classifier{
		FocusKeywords:  []string{"focus", "deep work", "heads down", "no meetings"},
		IgnoreKeywords: []string{"lunch", "ooo", "out of office"},
	}
}

// Classify returns the kind of e. All-day events are always ignored.
func (c Classifier) Classify(e Event) Kind {
	if e.AllDay {
		return KindIgnored
	}
	s := strings.ToLower(e.Summary)
	if matchesAny(s, c.IgnoreKeywords) {
		return KindIgnored
	}
	if matchesAny(s, c.FocusKeywords) {
		return KindFocus
	}
	return KindMeeting
}

func matchesAny(s string, keywords []string) bool {
	for _, k := range keywords {
		k = strings.ToLower(strings.TrimSpace(k))
		if k != "" && strings.Contains(s, k) {
			return true
		}
	}
	return false
}

// Occupancy is one day's calendar load.
type Occupancy struct {
	MeetingMinutes     int  `json:"meeting_minutes"`
	FocusMinutes       int  `json:"focus_minutes"`
	HadDeepWorkSession bool `json:"had_deep_work_session"`
}

type interval struct {
	start, end time.Time
}

// Summarize buckets events by the calendar date of their start time and sums
// meeting and focus minutes. Overlapping events of the same kind are merged
// so double-booked slots are counted once.
func Summarize(events []Event, c Classifier) map[string]Occupancy {
	meetings := make(map[string][]interval)
	focus := make(map[string][]interval)

	for _, e := range events {
		if e.Duration() == 0 {
			continue
		}
		date := metrics.FormatDate(e.StartTime)
		iv := interval{e.StartTime, e.EndTime}
		switch c.Classify(e) {
		case KindMeeting:
			meetings[date] = append(meetings[date], iv)
		case KindFocus:
			focus[date] = append(focus[date], iv)
		}
	}

	out := make(map[string]Occupancy)
	for date, ivs := range meetings {
		o := out[date]
		for _, iv := range merge(ivs) {
			o.MeetingMinutes += int(iv.end.Sub(iv.start) / time.Minute)
		}
		out[date] = o
	}
	for date, ivs := range focus {
		o := out[date]
		for _, iv := range merge(ivs) {
			d := iv.end.Sub(iv.start)
			o.FocusMinutes += int(d / time.Minute)
			if d >= DeepWorkBlock {
				o.HadDeepWorkSession = true
			}
		}
		out[date] = o
	}
	return out
}

func merge(ivs []interval) []interval {
	sort.Slice(ivs, func(i, j int) bool { return ivs[i].start.Before(ivs[j].start) })
	var out []interval
	for _, iv := range ivs {
		if n := len(out); n > 0 && !iv.start.After(out[n-1].end) {
			if iv.end.After(out[n-1].end) {
				out[n-1].end = iv.end
			}
			continue
		}
		out = append(out, iv)
	}
	return out
}

// Source is a configured calendar feed.
type Source struct {
	Location   string // ICS URL or file path
	Classifier Classifier
}

// Occupancy fetches the feed and summarizes the days between start and end.
func (s Source) Occupancy(ctx context.Context, start, end time.Time) (map[string]Occupancy, error) {
	events, err := Fetch(ctx, s.Location, start, end)
	if err != nil {
		return nil, err
	}
	return Summarize(events, s.Classifier), nil
}
