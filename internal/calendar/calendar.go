package calendar

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	ical "github.com/emersion/go-ical"
)

var httpClient = &http.Client{Timeout: 30 * time.Second}

// Event represents a parsed calendar event.
type Event struct {
	Summary   string
	StartTime time.Time
	EndTime   time.Time
	AllDay    bool
}

// Duration is the event length, never negative.
func (e Event) Duration() time.Duration {
	if e.EndTime.Before(e.StartTime) {
		return 0
	}
	return e.EndTime.Sub(e.StartTime)
}

// Fetch retrieves and parses iCalendar events from a URL or file path,
// returning events that overlap with the given time window. Event times are
// converted to windowStart's location.
func Fetch(ctx context.Context, source string, windowStart, windowEnd time.Time) ([]Event, error) {
	var r io.ReadCloser

	if strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://") {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, source, nil)
		if err != nil {
			return nil, fmt.Errorf("creating request: %w", err)
		}
		resp, err := httpClient.Do(req)
		if err != nil {
			return nil, fmt.Errorf("fetching calendar: %w", err)
		}
		if resp.StatusCode != http.StatusOK {
			resp.Body.Close()
			return nil, fmt.Errorf("calendar fetch returned status %d", resp.StatusCode)
		}
		r = resp.Body
	} else {
		f, err := os.Open(source)
		if err != nil {
			return nil, fmt.Errorf("opening calendar file: %w", err)
		}
		r = f
	}
	defer r.Close()

	return Parse(r, windowStart, windowEnd)
}

// Parse decodes every calendar in r and keeps the events overlapping the window.
// Recurring events are expanded into one Event per occurrence, honouring
// EXDATE and instances moved by a RECURRENCE-ID override.
func Parse(r io.Reader, windowStart, windowEnd time.Time) ([]Event, error) {
	loc := windowStart.Location()
	dec := ical.NewDecoder(r)
	var events []Event

	for {
		cal, err := dec.Decode()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("parsing calendar: %w", err)
		}

		overridden := overriddenInstances(cal, loc)
		for _, component := range cal.Children {
			if component.Name != ical.CompEvent {
				continue
			}
			event := ical.Event{Component: component}

			start, err := event.DateTimeStart(loc)
			if err != nil {
				continue // skip malformed events
			}
			end, err := event.DateTimeEnd(loc)
			if err != nil {
				continue
			}
			summary, _ := event.Props.Text(ical.PropSummary)
			if summary == "" {
				continue
			}

			allDay := false
			if prop := event.Props.Get(ical.PropDateTimeStart); prop != nil {
				allDay = prop.ValueType() == ical.ValueDate
			}

			starts := []time.Time{start}
			recurring := false
			if event.Props.Get(ical.PropRecurrenceID) == nil {
				set, err := event.RecurrenceSet(loc)
				if err != nil {
					continue
				}
				if set != nil {
					// Occurrences starting before the window can still run into it.
					starts = set.Between(windowStart.Add(-end.Sub(start)), windowEnd, true)
					recurring = true
				}
			}

			uid, _ := event.Props.Text(ical.PropUID)
			for _, s := range starts {
				e := s.Add(end.Sub(start))
				if !s.Before(windowEnd) || !e.After(windowStart) {
					continue
				}
				if recurring && overridden[instanceKey(uid, s)] {
					continue
				}
				events = append(events, Event{
					Summary:   summary,
					StartTime: s.In(loc),
					EndTime:   e.In(loc),
					AllDay:    allDay,
				})
			}
		}
	}

	return events, nil
}

// overriddenInstances collects the occurrences that a RECURRENCE-ID component
// replaces, keyed by UID and original start.
func overriddenInstances(cal *ical.Calendar, loc *time.Location) map[string]bool {
	out := make(map[string]bool)
	for _, component := range cal.Children {
		if component.Name != ical.CompEvent {
			continue
		}
		prop := component.Props.Get(ical.PropRecurrenceID)
		if prop == nil {
			continue
		}
		t, err := prop.DateTime(loc)
		if err != nil {
			continue
		}
		uid, _ := component.Props.Text(ical.PropUID)
		out[instanceKey(uid, t)] = true
	}
	return out
}

func instanceKey(uid string, t time.Time) string {
	return uid + "@" + t.UTC().Format(time.RFC3339)
}
