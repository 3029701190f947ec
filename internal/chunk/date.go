package chunk

import (
	"sort"
	"strings"
	"time"
)

var dateLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	time.RFC3339,
	"2006-01-02 15:04",
	"2006-01-02",
}

// ParseDate parses "YYYY-MM-DD[ HH:MM:SS]" (and RFC 3339) dates in UTC.
func ParseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t, true
		}
	}
	// Fall back to the date portion alone.
	if len(s) >= 10 {
		if t, err := time.ParseInLocation("2006-01-02", s[:10], time.UTC); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// Day truncates t to midnight UTC of its calendar date.
func Day(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// SortByDate orders chunks by date, stable for equal dates. Undated chunks go last
// in either direction.
func SortByDate(chunks []Chunk, descending bool) {
	sort.SliceStable(chunks, func(i, j int) bool {
		ti, oki := chunks[i].Date()
		tj, okj := chunks[j].Date()
		switch {
		case !oki && !okj:
			return false
		case !oki:
			return false
		case !okj:
			return true
		}
		if descending {
			return ti.After(tj)
		}
		return ti.Before(tj)
	})
}
