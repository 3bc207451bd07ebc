package embeddings

import (
	"fmt"
	"strings"

	"github.com/aryannaik/pitch-finder/internal/event"
)

const maxSummaryLen = 400

// Summary is a one-paragraph digest of an event for result cards.
func Summary(ev event.Event) string {
	parts := []string{ev.Title, "on " + ev.StartUTC.Format("January 02, 2006")}

	switch {
	case ev.Venue.Type == event.VenueInPerson && ev.Venue.City != "":
		parts = append(parts, "in "+ev.Venue.City)
	case ev.Venue.Type == event.VenueOnline:
		parts = append(parts, "(online)")
	}

	if ev.HasPitchSlots() {
		if ev.PitchSlots.SlotCount != nil {
			parts = append(parts, fmt.Sprintf("with %d pitch slots available", *ev.PitchSlots.SlotCount))
		} else {
			parts = append(parts, "with pitch slots available")
		}
	}

	if ev.Registration.Price == 0 {
		parts = append(parts, "(free)")
	} else {
		parts = append(parts, fmt.Sprintf("(%s %.2f)", ev.Registration.Currency, ev.Registration.Price))
	}

	if len(ev.Tags) > 0 {
		tags := ev.Tags
		if len(tags) > 3 {
			tags = tags[:3]
		}
		parts = append(parts, "Tags: "+strings.Join(tags, ", "))
	}

	summary := strings.Join(parts, ". ") + "."
	if r := []rune(summary); len(r) > maxSummaryLen {
		summary = string(r[:maxSummaryLen-3]) + "..."
	}
	return summary
}

// EmbeddingText is the string embedded for an event.
func EmbeddingText(ev event.Event) string {
	desc := []rune(ev.Description)
	if len(desc) > 500 {
		desc = desc[:500]
	}

	parts := []string{
		"Title: " + ev.Title,
		"Description: " + string(desc),
		"Organizer: " + ev.Organizer.Name,
	}
	if ev.Venue.City != "" {
		parts = append(parts, "Location: "+ev.Venue.City+", "+ev.Venue.Country)
	}
	if len(ev.Tags) > 0 {
		parts = append(parts, "Tags: "+strings.Join(ev.Tags, ", "))
	}
	if ev.HasPitchSlots() {
		parts = append(parts, "Pitch slots available for founders")
	}
	return strings.Join(parts, " | ")
}

// QueryText is the string embedded for a search intent. It has the same
// shape as EmbeddingText so queries and events share a vector space.
func QueryText(intent string) string {
	return EmbeddingText(event.Event{Title: intent, Description: intent})
}
