package assembler

import (
	"regexp"
	"strings"
)

var (
	originalMessage = regexp.MustCompile(`(?i)^-{2,}\s*original message\s*-{2,}$`)
	underscoreRule  = regexp.MustCompile(`^_{10,}$`)
	forwardMarker   = regexp.MustCompile(`(?i)^(?:-{2,}\s*forwarded message\s*-{2,}|begin forwarded message:?)$`)
	headerLine      = regexp.MustCompile(`(?i)^(?:from|date|sent|to|subject|cc|bcc|reply-to):`)
	attribution     = regexp.MustCompile(`(?i)^on\s.+\swrote:$`)

	// A From: line directly followed by another header line opens an inline reply header.
	replyHeaderStart = regexp.MustCompile(`(?i)^from:`)

	signatureDelimiter = regexp.MustCompile(`^--\s*$`)
	mobileFooter       = regexp.MustCompile(`(?i)^(?:sent from my\b|get outlook for\b|sent from (?:mail|yahoo mail|gmail) for\b)`)
	closingSalutation  = regexp.MustCompile(`(?i)^(?:best|best regards|best wishes|regards|kind regards|warm regards|warmly|thanks|thanks again|thank you|many thanks|cheers|sincerely|yours truly|all the best)[,.!]?$`)
)

// Clean strips quoted replies, forwarded headers and signatures from a message body and
// collapses runs of blank lines. Everything after a signature or a reply header block is dropped.
func Clean(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	lines := strings.Split(text, "\n")

	var kept []string
	inForwardHeader := false
	hasBody := false

scan:
	for i := 0; i < len(lines); i++ {
		line := lines[i]
		trimmed := strings.TrimSpace(line)
		next := ""
		if i+1 < len(lines) {
			next = strings.TrimSpace(lines[i+1])
		}

		switch {
		case originalMessage.MatchString(trimmed), underscoreRule.MatchString(trimmed):
			break scan
		case forwardMarker.MatchString(trimmed):
			inForwardHeader = true
			continue
		}

		if inForwardHeader {
			if headerLine.MatchString(trimmed) {
				continue
			}
			inForwardHeader = false
			if trimmed == "" {
				continue
			}
		}

		switch {
		case replyHeaderStart.MatchString(trimmed) && headerLine.MatchString(next):
			break scan
		case strings.HasPrefix(trimmed, ">"):
			continue
		case attribution.MatchString(trimmed):
			continue
		case wrappedAttribution(trimmed, next):
			i++
			continue
		case signatureDelimiter.MatchString(trimmed), mobileFooter.MatchString(trimmed):
			break scan
		case closingSalutation.MatchString(trimmed):
			if hasBody {
				break scan
			}
			continue
		}

		kept = append(kept, strings.TrimRight(line, " \t"))
		if trimmed != "" {
			hasBody = true
		}
	}

	return collapseBlankLines(kept)
}

// wrappedAttribution reports whether line and next form an "On ... wrote:" line that a mail
// client wrapped after the sender's "<" or a comma.
func wrappedAttribution(line, next string) bool {
	if next == "" || !(strings.HasSuffix(line, "<") || strings.HasSuffix(line, ",")) {
		return false
	}
	return attribution.MatchString(line + " " + next)
}

func collapseBlankLines(lines []string) string {
	out := make([]string, 0, len(lines))
	blank := false
	for _, line := range lines {
		if strings.TrimSpace(line) == "" {
			if blank || len(out) == 0 {
				continue
			}
			blank = true
			out = append(out, "")
			continue
		}
		blank = false
		out = append(out, line)
	}
	for len(out) > 0 && out[len(out)-1] == "" {
		out = out[:len(out)-1]
	}
	return strings.Join(out, "\n")
}

// oneLine collapses all whitespace, including newlines, to single spaces.
func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
