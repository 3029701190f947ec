package intent

import (
	"regexp"
	"strings"

	"mailrag/internal/timerange"
)

// pattern is one regular expression in an intent's battery.
type pattern struct {
	re *regexp.Regexp
	// nameGroup, when non-zero, is a capture group holding a person's name. The pattern
	// only counts when at least one match captures a name outside the stoplist.
	nameGroup int
}

func (p pattern) matches(query string) bool {
	if p.nameGroup == 0 {
		return p.re.MatchString(query)
	}
	for _, m := range p.re.FindAllStringSubmatch(query, -1) {
		if isCandidateName(m[p.nameGroup]) {
			return true
		}
	}
	return false
}

func re(expr string) pattern {
	return pattern{re: regexp.MustCompile(`(?i)` + expr)}
}

func named(expr string, group int) pattern {
	return pattern{re: regexp.MustCompile(`(?i)` + expr), nameGroup: group}
}

const (
	weekdays = `monday|tuesday|wednesday|thursday|friday|saturday|sunday`
	months   = `january|february|march|april|may|june|july|august|september|october|november|december`
	name     = `([a-z][\w.@-]*)`
)

// constraintPattern matches open-ended time bounds such as "since March" or "before 2024".
var constraintPattern = regexp.MustCompile(`(?i)\b(?:since|before|after|between|until)\s+(?:last\s+\w+|\d[\w-]*|` + weekdays + `|` + months + `)\b`)

var patternGroups = map[Kind][]pattern{
	ThreadSummary: {
		re(`\b(?:summar(?:y|ize|ise)|recap|overview)\b.*\b(?:thread|conversation|discussion|email chain|exchange)s?\b`),
		re(`\b(?:thread|conversation|email chain)\s+(?:about|on|regarding|around)\b`),
		re(`\bwhat\s+(?:was|is)\s+the\s+(?:discussion|conversation)\b`),
		re(`\b(?:catch\s+me\s+up|tl;?dr)\b`),
		re(`\b(?:back[- ]and[- ]forth|(?:entire|whole|full)\s+thread)\b`),
	},
	SenderQuery: {
		named(`\b(?:what|anything)\s+(?:did|has)\s+`+name+`\s+(?:say|said|write|wrote|mention|mentioned|send|sent|suggest|think|propose)\b`, 1),
		named(`\b(?:emails?|messages?|mails?|notes?)\s+(?:from|by|sent\s+by)\s+`+name, 1),
		named(`\b`+name+`'s\s+(?:opinion|view|take|thoughts?|position|stance|feedback|input)\b`, 1),
		named(`\baccording\s+to\s+`+name, 1),
		re(`\bwho\s+(?:said|wrote|mentioned|sent|suggested|proposed)\b`),
	},
	TemporalQuery: {
		re(`\b(?:yesterday|today|tonight)\b`),
		re(`\b(?:last|this|past|previous)\s+(?:week|month|year|quarter|few\s+days)\b`),
		{re: timerange.RelativePattern()},
		re(`\b(?:recent|recently|lately|latest)\b`),
		{re: constraintPattern},
		re(`\bwhen\s+(?:did|was|were)\b`),
	},
	ActionItems: {
		re(`\baction\s+items?\b`),
		re(`\b(?:to-?dos?|tasks?|follow[- ]?ups?|next\s+steps)\b`),
		re(`\b(?:need|needs|have|has)\s+to\s+(?:do|be\s+done|complete|finish)\b`),
		re(`\b(?:assigned|deadlines?|due\s+(?:date|by))\b`),
		re(`\bwhat\s+should\s+(?:we|i)\s+do\b`),
	},
	DecisionTracking: {
		re(`\b(?:decide|decided|decision|decisions)\b`),
		re(`\b(?:agreed|agreement|approved|approval|sign[- ]off)\b`),
		re(`\b(?:finali[sz]ed|settled\s+on|went\s+with|chose|chosen)\b`),
		re(`\b(?:outcome|resolution|conclusion|concluded)\b`),
	},
	AggregationQuery: {
		re(`\b(?:all|every)\s+(?:the\s+)?(?:emails?|messages?|threads?|mentions?)\b`),
		re(`\bhow\s+many\b`),
		re(`\b(?:list|count|compile|aggregate|tally)\b`),
		re(`\bacross\s+(?:all|every)\b`),
		re(`\b(?:everyone|everybody)\b`),
	},
	FactualLookup: {
		re(`\b(?:what|who|where|which)\s+(?:is|are)\b`),
		re(`\bhow\s+(?:do|does|can|to)\b`),
		re(`\b(?:details?\s+(?:of|on|about)|information\s+(?:on|about)|explain)\b`),
		re(`\b(?:price|cost|address|link|url|version|password)\b`),
	},
}

// senderCaptures extract a sender name, tried in order.
var senderCaptures = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\b(?:from|by)\s+` + name),
	regexp.MustCompile(`(?i)\bdid\s+` + name),
	regexp.MustCompile(`(?i)\b` + name + `'s\s+(?:opinion|view|take|thoughts?|position|stance|feedback|input)\b`),
	regexp.MustCompile(`(?i)\baccording\s+to\s+` + name),
}

// nameStopwords are captures that are never a person: time words, pronouns and determiners.
var nameStopwords = toSet(strings.Fields(`
	today yesterday tomorrow tonight last this past previous next week weeks month months
	year years quarter day days recent recently earlier now then ago
	` + strings.ReplaceAll(weekdays, "|", " ") + ` ` + strings.ReplaceAll(months, "|", " ") + `
	the a an any some all every each me us them him her we you they i he she it anyone
	someone everyone anybody somebody everybody who whom whose what which that those these
	email emails message messages mail team people date subject sender topic
`))

func isCandidateName(s string) bool {
	s = strings.ToLower(strings.Trim(s, ".-"))
	if s == "" {
		return false
	}
	_, stop := nameStopwords[s]
	return !stop
}

// topicStopwords extends the usual English stopwords with query scaffolding words.
var topicStopwords = toSet(strings.Fields(`
	a an and are as at be but by for from has have in is it of on or the to was were with
	what when where which who whom why how did does do done say said says tell told about
	any anything all every emails email message messages mail mails thread threads me my
	our we you your they them their this that these those there here show find give get
	please can could would should will last past previous week month year today yesterday
	recent recently lately latest days day weeks months years since before after between
	until been being into over than then just also its not
`))

func toSet(words []string) map[string]struct{} {
	out := make(map[string]struct{}, len(words))
	for _, w := range words {
		out[w] = struct{}{}
	}
	return out
}
