package router

import (
	"regexp"
	"strings"
)

// Hard escalation pattern groups. Any match forces the highest tier and
// skips classification entirely. Grouped so the matched group names end
// up in Decision.MatchedPatterns.
type patternGroup struct {
	name     string
	patterns []*regexp.Regexp
}

var escalationGroups = []patternGroup{
	{
		name: "temporal",
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)\b(today|tomorrow|tonight)\b`),
			regexp.MustCompile(`(?i)\bright now\b`),
			regexp.MustCompile(`(?i)\bthis (week|weekend|month|morning|afternoon|evening)\b`),
			regexp.MustCompile(`(?i)\bnext (week|weekend|month|few days)\b`),
			regexp.MustCompile(`(?i)\b(latest|most recent|up to date|currently)\b`),
		},
	},
	{
		name: "financial",
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)\b(stock|share) (price|market)\b`),
			regexp.MustCompile(`(?i)\b(bitcoin|ethereum|crypto(currency)?)\b`),
			regexp.MustCompile(`(?i)\bexchange rate\b`),
			regexp.MustCompile(`(?i)\bprice of\b`),
			regexp.MustCompile(`(?i)\bhow much (is|does|are)\b.*\b(cost|worth)\b`),
		},
	},
	{
		name: "weather",
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)\bweather\b`),
			regexp.MustCompile(`(?i)\bforecast\b`),
			regexp.MustCompile(`(?i)\b(temperature|humidity) (in|at|outside)\b`),
			regexp.MustCompile(`(?i)\b(will it|is it going to) (rain|snow)\b`),
		},
	},
	{
		name: "travel",
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)\b(book|find)( me)? a (flight|hotel|train|ticket)\b`),
			regexp.MustCompile(`(?i)\bflights? (to|from)\b`),
			regexp.MustCompile(`(?i)\b(travel|fly|drive) to\b`),
			regexp.MustCompile(`(?i)\bitinerary\b`),
		},
	},
	{
		name: "realtime",
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)\b(breaking )?news\b`),
			regexp.MustCompile(`(?i)\b(score|result) of (the )?(game|match)\b`),
			regexp.MustCompile(`(?i)\bwho (won|is winning)\b`),
			regexp.MustCompile(`(?i)\blive (stream|coverage|update)\b`),
		},
	},
	{
		name: "location",
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)\b(near me|nearby|closest|nearest)\b`),
			regexp.MustCompile(`(?i)\bdirections to\b`),
			regexp.MustCompile(`(?i)\bopen (right )?now\b`),
		},
	},
}

// greetingPattern matches short social openers. It runs before hard
// escalation so "how are you today" does not escalate on "today".
var greetingPattern = regexp.MustCompile(`(?i)^(hey|hi|hiya|hello|yo|sup|howdy|good (morning|afternoon|evening|night)|how are you( doing| today| tonight)?|how('s| is) it going|what('s| is) up|wyd|hru)[\s.!?,]*$`)

// isShortGreeting reports whether the message is a short social opener.
func isShortGreeting(message string) bool {
	trimmed := strings.TrimSpace(message)
	if len(trimmed) > 40 {
		return false
	}
	return greetingPattern.MatchString(trimmed)
}

// matchEscalation returns the names of all escalation groups the message
// matches, or nil.
func matchEscalation(message string) []string {
	var matched []string
	for _, group := range escalationGroups {
		for _, p := range group.patterns {
			if p.MatchString(message) {
				matched = append(matched, group.name)
				break
			}
		}
	}
	return matched
}
