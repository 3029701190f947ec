package chunk

import (
	"regexp"
	"strings"
)

// subjectPrefix matches one leading reply/forward marker or bracketed tag,
// e.g. "re:", "fwd:", "re[2]:", "[external]".
var subjectPrefix = regexp.MustCompile(`^(?:\[[^\]]*\]|(?:re|fw|fwd|aw|sv|antw|tr)(?:\[\d+\])?\s*:)\s*`)

// NormalizeSubject lowercases a subject line, collapses whitespace and strips any
// chain of reply/forward prefixes and bracketed tags. The result is idempotent:
// NormalizeSubject(NormalizeSubject(s)) == NormalizeSubject(s).
func NormalizeSubject(subject string) string {
	s := strings.Join(strings.Fields(strings.ToLower(subject)), " ")
	for {
		stripped := strings.TrimSpace(subjectPrefix.ReplaceAllString(s, ""))
		if stripped == s {
			return s
		}
		s = stripped
	}
}
