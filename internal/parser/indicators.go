package parser

import (
	"regexp"
	"strings"
)

// EventKeywords are the words that mark a search result as describing an event.
var EventKeywords = []string{
	"summit", "conference", "event", "meetup", "demo day",
	"pitch", "competition", "hackathon", "workshop",
}

// Keywords match at a word start so plurals and inflections ("pitches",
// "workshops") count, while words that merely contain one ("prevent") do not.
var eventIndicatorPattern = regexp.MustCompile(`(?i)\b(?:summit|conference|event|meetup|demo\s+day|pitch|competition|hackathon|workshop)`)

// FindEventIndicator returns the first event keyword in text, lowercased.
func FindEventIndicator(text string) (string, bool) {
	m := eventIndicatorPattern.FindString(text)
	if m == "" {
		return "", false
	}
	return strings.Join(strings.Fields(strings.ToLower(m)), " "), true
}

// HasEventIndicator reports whether text contains any event keyword.
func HasEventIndicator(text string) bool {
	return eventIndicatorPattern.MatchString(text)
}
