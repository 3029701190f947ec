// Package timerange turns time keywords ("last_week") and relative durations
// ("past 3 weeks") into inclusive calendar-date ranges.
package timerange

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"mailrag/internal/chunk"
)

// Keywords understood by FromKeyword.
const (
	Yesterday = "yesterday"
	Today     = "today"
	LastWeek  = "last_week"
	LastMonth = "last_month"
	ThisWeek  = "this_week"
	ThisMonth = "this_month"
	Recent    = "recent"
)

// DefaultDays is the window used when no time expression can be resolved.
const DefaultDays = 7

// recentDays is the window covered by the "recent" keyword.
const recentDays = 3

// Range is an inclusive span of calendar dates (both ends at midnight UTC).
type Range struct {
	Start time.Time
	End   time.Time
}

// Contains reports whether the date portion of t falls within the range.
func (r Range) Contains(t time.Time) bool {
	d := chunk.Day(t)
	return !d.Before(r.Start) && !d.After(r.End)
}

// ContainsChunk reports whether the chunk's date falls within the range.
// Undated chunks never match.
func (r Range) ContainsChunk(c chunk.Chunk) bool {
	t, ok := c.Date()
	if !ok {
		return false
	}
	return r.Contains(t)
}

// String renders the range as "YYYY-MM-DD..YYYY-MM-DD".
func (r Range) String() string {
	return r.Start.Format("2006-01-02") + ".." + r.End.Format("2006-01-02")
}

// LastDays returns the range covering the n days before now through today.
func LastDays(n int, now time.Time) Range {
	today := chunk.Day(now)
	return Range{Start: today.AddDate(0, 0, -n), End: today}
}

var relativeKeyword = regexp.MustCompile(`^last_(\d+)_days$`)

// RelativeKeyword renders a day count as the canonical "last_<n>_days" expression.
func RelativeKeyword(days int) string {
	return fmt.Sprintf("last_%d_days", days)
}

// FromKeyword resolves a keyword (or "last_<n>_days") to a range relative to now.
func FromKeyword(keyword string, now time.Time) (Range, bool) {
	today := chunk.Day(now)
	switch strings.ToLower(strings.TrimSpace(keyword)) {
	case Yesterday:
		y := today.AddDate(0, 0, -1)
		return Range{Start: y, End: y}, true
	case Today:
		return Range{Start: today, End: today}, true
	case LastWeek:
		return LastDays(7, now), true
	case LastMonth:
		return LastDays(30, now), true
	case ThisWeek:
		offset := (int(today.Weekday()) + 6) % 7 // days since Monday
		return Range{Start: today.AddDate(0, 0, -offset), End: today}, true
	case ThisMonth:
		return Range{Start: time.Date(today.Year(), today.Month(), 1, 0, 0, 0, 0, time.UTC), End: today}, true
	case Recent:
		return LastDays(recentDays, now), true
	}
	if m := relativeKeyword.FindStringSubmatch(strings.ToLower(strings.TrimSpace(keyword))); m != nil {
		n, err := strconv.Atoi(m[1])
		if err == nil && n > 0 {
			return LastDays(n, now), true
		}
	}
	return Range{}, false
}

// Resolve resolves a keyword, falling back to the last DefaultDays days.
func Resolve(keyword string, now time.Time) Range {
	if r, ok := FromKeyword(keyword, now); ok {
		return r
	}
	return LastDays(DefaultDays, now)
}

// DaysBack converts a keyword into the number of days it reaches back, or 0 if unknown.
// Known keywords reach back at least one day.
func DaysBack(keyword string, now time.Time) int {
	r, ok := FromKeyword(keyword, now)
	if !ok {
		return 0
	}
	days := int(chunk.Day(now).Sub(r.Start).Hours() / 24)
	if days < 1 {
		return 1
	}
	return days
}

var keywordPatterns = []struct {
	keyword string
	re      *regexp.Regexp
}{
	{Yesterday, regexp.MustCompile(`(?i)\byesterday\b`)},
	{Today, regexp.MustCompile(`(?i)\b(today|tonight)\b`)},
	{LastWeek, regexp.MustCompile(`(?i)\b(last|past|previous)\s+week\b`)},
	{LastMonth, regexp.MustCompile(`(?i)\b(last|past|previous)\s+month\b`)},
	{ThisWeek, regexp.MustCompile(`(?i)\bthis\s+week\b`)},
	{ThisMonth, regexp.MustCompile(`(?i)\bthis\s+month\b`)},
	{Recent, regexp.MustCompile(`(?i)\b(recent|recently|lately|latest)\b`)},
}

// DetectKeyword finds the first time keyword mentioned in free text.
func DetectKeyword(text string) (string, bool) {
	for _, p := range keywordPatterns {
		if p.re.MatchString(text) {
			return p.keyword, true
		}
	}
	return "", false
}

var unitDays = map[string]int{"day": 1, "week": 7, "month": 30, "year": 365}

var wordNumbers = buildWordNumbers()

func buildWordNumbers() map[string]int {
	ones := []string{"one", "two", "three", "four", "five", "six", "seven", "eight", "nine", "ten",
		"eleven", "twelve", "thirteen", "fourteen", "fifteen", "sixteen", "seventeen", "eighteen", "nineteen"}
	m := make(map[string]int, 30)
	for i, w := range ones {
		m[w] = i + 1
	}
	m["twenty"] = 20
	for i, w := range ones[:9] {
		m["twenty-"+w] = 21 + i
		m["twenty "+w] = 21 + i
	}
	m["thirty"] = 30
	return m
}

var relativePattern = buildRelativePattern()

func buildRelativePattern() *regexp.Regexp {
	words := make([]string, 0, len(wordNumbers))
	for w := range wordNumbers {
		words = append(words, regexp.QuoteMeta(w))
	}
	// Longest first so "twenty-one" wins over "twenty".
	sort.Slice(words, func(i, j int) bool {
		if len(words[i]) != len(words[j]) {
			return len(words[i]) > len(words[j])
		}
		return words[i] < words[j]
	})
	return regexp.MustCompile(`(?i)\b(?:past|last)\s+(\d+|` + strings.Join(words, "|") + `)\s+(day|week|month|year)s?\b`)
}

// RelativeExpr is a parsed "(past|last) N unit(s)" expression.
type RelativeExpr struct {
	Phrase   string
	DaysBack int
}

// ParseRelative finds a relative-duration expression in free text.
func ParseRelative(text string) (RelativeExpr, bool) {
	m := relativePattern.FindStringSubmatch(text)
	if m == nil {
		return RelativeExpr{}, false
	}
	n, ok := wordNumbers[strings.ToLower(m[1])]
	if !ok {
		v, err := strconv.Atoi(m[1])
		if err != nil || v <= 0 {
			return RelativeExpr{}, false
		}
		n = v
	}
	return RelativeExpr{Phrase: m[0], DaysBack: n * unitDays[strings.ToLower(m[2])]}, true
}

// RelativePattern exposes the relative-duration regexp for intent scoring.
func RelativePattern() *regexp.Regexp {
	return relativePattern
}
