package parser

import (
	"regexp"
	"strings"

	"github.com/aryannaik/pitch-finder/internal/event"
)

var (
	onlineVenuePattern = regexp.MustCompile(`(?i)\b(?:online|virtual(?:ly)?|webinar|zoom|teams|meet)\b`)
	cityPattern        = regexp.MustCompile(`\bin\s+([A-Z][a-z]+(?:\s+[A-Z][a-z]+)?)`)
)

var notCities = map[string]bool{
	"January": true, "February": true, "March": true, "April": true, "May": true, "June": true,
	"July": true, "August": true, "September": true, "October": true, "November": true, "December": true,
	"Monday": true, "Tuesday": true, "Wednesday": true, "Thursday": true, "Friday": true,
	"Saturday": true, "Sunday": true,
	"The": true, "Our": true, "Person": true, "Partnership": true, "Collaboration": true,
}

// ExtractVenue guesses the venue from free text.
func ExtractVenue(text string) event.Venue {
	if onlineVenuePattern.MatchString(text) {
		return event.Venue{Type: event.VenueOnline, Name: "Online Event"}
	}

	for _, m := range cityPattern.FindAllStringSubmatch(text, -1) {
		words := strings.Fields(m[1])
		if notCities[words[0]] {
			continue
		}
		if len(words) == 2 && notCities[words[1]] {
			words = words[:1]
		}
		return event.Venue{Type: event.VenueInPerson, City: strings.Join(words, " ")}
	}

	return event.Venue{Type: event.VenueOnline}
}
