package assembler

import (
	"regexp"
	"strings"

	"mailrag/internal/chunk"
)

var noReplyMarkers = []string{
	"no-reply", "noreply", "donotreply", "do-not-reply", "do_not_reply",
	"mailer-daemon", "postmaster", "notifications@", "notification@", "bounce",
}

var noiseKeywords = regexp.MustCompile(`(?i)\b(?:` +
	`unsubscribe|newsletter|view (?:this email )?in (?:your )?browser|manage (?:your )?(?:subscription|preferences)|` +
	`out of (?:the )?office|auto-?reply|automatic reply|i am currently (?:away|out)|` +
	`this is an automated (?:message|email|notification)|do not reply to this (?:email|message)|` +
	`you are receiving this (?:email|message|because))`)

// IsNoise reports whether a chunk is machine-generated mail: no-reply senders,
// newsletters, auto-replies and notifications.
func IsNoise(c chunk.Chunk) bool {
	sender := strings.ToLower(c.Sender() + " " + c.SenderName())
	for _, marker := range noReplyMarkers {
		if strings.Contains(sender, marker) {
			return true
		}
	}
	return noiseKeywords.MatchString(c.Text()) || noiseKeywords.MatchString(c.Subject())
}
