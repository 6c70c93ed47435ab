package metrics

import (
	"fmt"
	"strings"
	"time"

	"github.com/tj/go-naturaldate"
)

// DateLayout is the canonical calendar-date form used as the DailyMetrics key.
const DateLayout = "2006-01-02"

// ParseDate parses a plain calendar date at UTC midnight so the weekday never
// depends on the host time zone.
func ParseDate(s string) (time.Time, error) {
	t, err := time.ParseInLocation(DateLayout, strings.TrimSpace(s), time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing date %q: %w", s, err)
	}
	return t, nil
}

// FormatDate returns the calendar date of t in t's own location.
func FormatDate(t time.Time) string {
	return t.Format(DateLayout)
}

// ResolveDate accepts either YYYY-MM-DD or a natural-language phrase such as
// "yesterday" or "last friday", resolved relative to now.
func ResolveDate(s string, now time.Time) (string, error) {
	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, "today") {
		return FormatDate(now), nil
	}
	if t, err := ParseDate(s); err == nil {
		return FormatDate(t), nil
	}

	t, err := naturaldate.Parse(s, now, naturaldate.WithDirection(naturaldate.Past))
	if err != nil {
		return "", fmt.Errorf("resolving date %q: %w", s, err)
	}
	return FormatDate(t), nil
}

// DateRange returns the n calendar dates ending at end, oldest first.
func DateRange(end string, n int) ([]string, error) {
	if n <= 0 {
		return nil, fmt.Errorf("day count must be positive, got %d", n)
	}
	last, err := ParseDate(end)
	if err != nil {
		return nil, err
	}
	dates := make([]string, n)
	for i := 0; i < n; i++ {
		dates[i] = FormatDate(last.AddDate(0, 0, i-(n-1)))
	}
	return dates, nil
}

// DayBounds returns the local-time [start, end) interval covering date.
func DayBounds(date string, loc *time.Location) (time.Time, time.Time, error) {
	d, err := ParseDate(date)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	start := time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, loc)
	return start, start.AddDate(0, 0, 1), nil
}
