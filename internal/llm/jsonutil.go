package llm

import (
	"encoding/json"
	"errors"
	"regexp"
	"strings"
)

var (
	// ErrNoJSON is returned when no JSON object can be found in a completion.
	ErrNoJSON = errors.New("no JSON object in completion")
	// ErrLLMSentinel is returned for completions that carry an explicit "[ERROR] ..." marker.
	ErrLLMSentinel = errors.New("completion reported an error")
)

// ErrorPrefix marks completions that report a failure instead of data.
const ErrorPrefix = "[ERROR]"

var fencedBlock = regexp.MustCompile("(?s)```(?:json|JSON)?\\s*(.*?)```")

// ExtractJSON pulls a JSON object out of a completion that may be wrapped in
// markdown fences or surrounded by prose. The returned bytes are valid JSON.
func ExtractJSON(text string) ([]byte, error) {
	text = strings.TrimSpace(text)
	if strings.HasPrefix(text, ErrorPrefix) {
		return nil, ErrLLMSentinel
	}

	candidates := make([]string, 0, 3)
	if m := fencedBlock.FindStringSubmatch(text); m != nil {
		candidates = append(candidates, strings.TrimSpace(m[1]))
	}
	candidates = append(candidates, text)
	if start, end := strings.Index(text, "{"), strings.LastIndex(text, "}"); start >= 0 && end > start {
		candidates = append(candidates, text[start:end+1])
	}

	for _, c := range candidates {
		if c == "" {
			continue
		}
		if strings.HasPrefix(c, "{") && json.Valid([]byte(c)) {
			return []byte(c), nil
		}
		// A fenced block may still carry prose around the object.
		if start, end := strings.Index(c, "{"), strings.LastIndex(c, "}"); start >= 0 && end > start {
			inner := c[start : end+1]
			if json.Valid([]byte(inner)) {
				return []byte(inner), nil
			}
		}
	}
	return nil, ErrNoJSON
}
