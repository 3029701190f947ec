package intent

import (
	"strings"
	"time"
	"unicode"

	"mailrag/internal/timerange"
)

// extractSender returns the first plausible person named in the query, capitalized.
func extractSender(query string) string {
	for _, capture := range senderCaptures {
		for _, m := range capture.FindAllStringSubmatch(query, -1) {
			candidate := strings.Trim(m[1], ".-")
			if isCandidateName(candidate) {
				return capitalize(candidate)
			}
		}
	}
	return ""
}

// capitalize upper-cases the first letter of each word and lower-cases the rest.
// Email addresses are kept verbatim.
func capitalize(s string) string {
	if s == "" || strings.Contains(s, "@") {
		return s
	}
	words := strings.Fields(strings.ToLower(s))
	for i, w := range words {
		runes := []rune(w)
		runes[0] = unicode.ToUpper(runes[0])
		words[i] = string(runes)
	}
	return strings.Join(words, " ")
}

// extractTime fills the time range, days back and temporal constraint of m.
// A relative duration ("past 3 weeks") wins over a keyword ("last week").
func extractTime(query string, now time.Time, m *Metadata) {
	if rel, ok := timerange.ParseRelative(query); ok {
		m.TimeRange = timerange.RelativeKeyword(rel.DaysBack)
		m.DaysBack = rel.DaysBack
		m.TemporalConstraint = strings.ToLower(rel.Phrase)
		return
	}
	if kw, ok := timerange.DetectKeyword(query); ok {
		m.TimeRange = kw
		m.DaysBack = timerange.DaysBack(kw, now)
		m.TemporalConstraint = kw
		return
	}
	if c := constraintPattern.FindString(query); c != "" {
		m.TemporalConstraint = strings.ToLower(c)
	}
}

// extractTopics returns the distinct non-stopword tokens longer than two characters,
// in order of first appearance, leaving out the sender.
func extractTopics(query, sender string) []string {
	senderToken := strings.ToLower(sender)
	seen := make(map[string]struct{})
	var topics []string
	for _, token := range tokenize(query) {
		if len(token) <= 2 || token == senderToken {
			continue
		}
		if _, stop := topicStopwords[token]; stop {
			continue
		}
		if _, dup := seen[token]; dup {
			continue
		}
		seen[token] = struct{}{}
		topics = append(topics, token)
	}
	return topics
}

// tokenize lowercases text and splits it on anything that is not a letter, digit or apostrophe.
// Possessive suffixes are dropped.
func tokenize(text string) []string {
	if text == "" {
		return nil
	}

	var builder strings.Builder
	builder.Grow(len(text))
	for _, r := range strings.ToLower(text) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '\'' {
			builder.WriteRune(r)
		} else {
			builder.WriteRune(' ')
		}
	}
	fields := strings.Fields(builder.String())
	tokens := make([]string, 0, len(fields))
	for _, f := range fields {
		f = strings.TrimSuffix(f, "'s")
		f = strings.Trim(f, "'")
		if f != "" {
			tokens = append(tokens, f)
		}
	}
	return tokens
}
