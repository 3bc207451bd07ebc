package parser

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aryannaik/pitch-finder/internal/event"
)

const jsonLDPage = `<html><head>
<script type="application/ld+json">
{
  "@context": "https://schema.org",
  "@type": "Event",
  "name": "SF Fintech Pitch Night",
  "description": "Monthly pitch event for seed-stage startups in fintech",
  "startDate": "2026-03-15T18:00:00-07:00",
  "endDate": "2026-03-15T21:00:00-07:00",
  "location": {
    "@type": "Place",
    "name": "WeWork SoMa",
    "address": {
      "@type": "PostalAddress",
      "streetAddress": "600 California St",
      "addressLocality": "San Francisco",
      "addressCountry": "US"
    }
  },
  "organizer": {"@type": "Organization", "name": "SF Founders Network", "email": "hello@sffounders.com"},
  "offers": {"@type": "Offer", "price": "0", "priceCurrency": "USD"}
}
</script></head><body><p>Ignored body text</p></body></html>`

func TestParse_JSONLD(t *testing.T) {
	p := newTestParser(&bytes.Buffer{}, refNow)

	d := p.Parse(SearchResult{
		Title:  "SF Fintech Pitch Night",
		URL:    "https://example.com/sf",
		HTML:   jsonLDPage,
		Source: "tavily",
	})

	require.True(t, d.Accepted())
	assert.Equal(t, ReasonJSONLD, d.Reason)

	ev := d.Event
	assert.Equal(t, "SF Fintech Pitch Night", ev.Title)
	assert.Equal(t, time.Date(2026, 3, 16, 1, 0, 0, 0, time.UTC), ev.StartUTC)
	assert.Equal(t, time.Date(2026, 3, 16, 4, 0, 0, 0, time.UTC), ev.EndUTC)
	assert.Equal(t, event.VenueInPerson, ev.Venue.Type)
	assert.Equal(t, "WeWork SoMa", ev.Venue.Name)
	assert.Equal(t, "San Francisco", ev.Venue.City)
	assert.Equal(t, "US", ev.Venue.Country)
	assert.Equal(t, "SF Founders Network", ev.Organizer.Name)
	assert.Equal(t, "hello@sffounders.com", ev.Organizer.ContactEmail)
	assert.Equal(t, event.RegistrationFree, ev.Registration.Type)
	assert.Zero(t, ev.Registration.Price)
	assert.Contains(t, ev.Tags, "fintech")
	assert.Contains(t, ev.Tags, "seed")
	assert.Equal(t, "fintech", ev.Industry)
	assert.True(t, ev.HasPitchSlots())
	require.Len(t, ev.Sources, 1)
	assert.Equal(t, "tavily", ev.Sources[0].Source)
	require.NoError(t, ev.Validate())
}

func TestParse_JSONLDGraphAndTypeArray(t *testing.T) {
	page := `<script type="application/ld+json">{"@graph":[
		{"@type":"WebPage","name":"Listing"},
		{"@type":["BusinessEvent"],"name":"Series A Demo Day","startDate":"2026-05-01",
		 "location":{"@type":"VirtualLocation","url":"https://zoom.example/j/1"},
		 "offers":[{"price":25,"priceCurrency":"EUR","url":"https://tickets.example"}]}
	]}</script>`
	p := newTestParser(&bytes.Buffer{}, refNow)

	d := p.Parse(SearchResult{Title: "Listing", URL: "https://example.com/l", HTML: page})

	require.Equal(t, ReasonJSONLD, d.Reason)
	ev := d.Event
	assert.Equal(t, "Series A Demo Day", ev.Title)
	assert.Equal(t, day(2026, 5, 1), ev.StartUTC)
	assert.Equal(t, ev.StartUTC, ev.EndUTC)
	assert.Equal(t, event.VenueOnline, ev.Venue.Type)
	assert.Equal(t, "https://zoom.example/j/1", ev.OnlineURL)
	assert.Equal(t, event.RegistrationTicket, ev.Registration.Type)
	assert.Equal(t, 25.0, ev.Registration.Price)
	assert.Equal(t, "EUR", ev.Registration.Currency)
	assert.Equal(t, "https://tickets.example", ev.Registration.URL)
	assert.Equal(t, []string{"series-a"}, ev.Stage)
}

func TestParse_HTMLHeuristic(t *testing.T) {
	page := `<html><head><title>Site title</title></head><body>
		<h1>Boston Pitch Competition</h1>
		<p>We have 10 pitch slots available for early-stage founders.</p>
		<p>Application deadline is January 1, 2026.</p>
		<p>Event date: January 20, 2026 in Boston</p>
		<script>var x = "2025-12-31";</script>
	</body></html>`
	p := newTestParser(&bytes.Buffer{}, refNow)

	d := p.Parse(SearchResult{Title: "Boston Pitch", URL: "https://example.com/b", HTML: page})

	require.Equal(t, ReasonHTMLHeuristic, d.Reason)
	ev := d.Event
	assert.Equal(t, "Boston Pitch Competition", ev.Title)
	assert.Equal(t, day(2026, 1, 1), ev.StartUTC)
	assert.Equal(t, event.VenueInPerson, ev.Venue.Type)
	assert.Equal(t, "Boston", ev.Venue.City)
	require.NotNil(t, ev.PitchSlots)
	require.NotNil(t, ev.PitchSlots.SlotCount)
	assert.Equal(t, 10, *ev.PitchSlots.SlotCount)
	require.NotNil(t, ev.PitchSlots.ApplicationDeadline)
	assert.Equal(t, day(2026, 1, 1), *ev.PitchSlots.ApplicationDeadline)
	assert.Contains(t, ev.Tags, "competition")
}

func TestParse_HTMLWithoutHeadingUsesResultTitle(t *testing.T) {
	p := newTestParser(&bytes.Buffer{}, refNow)

	d := p.Parse(SearchResult{
		Title: "Founders Pitch Night",
		URL:   "https://example.com/f",
		HTML:  "<p>Founders pitch on <b>March 3, 2026</b></p>",
	})

	require.Equal(t, OutcomeConfident, d.Outcome)
	assert.Equal(t, ReasonHTMLHeuristic, d.Reason)
	assert.Equal(t, "Founders Pitch Night", d.Event.Title)
	assert.Equal(t, day(2026, 3, 3), d.Event.StartUTC)
	assert.Equal(t, event.NewID("https://example.com/f", "Founders Pitch Night"), d.Event.ID)
}

func TestParse_HTMLWithoutAnyTitleIsRejected(t *testing.T) {
	p := newTestParser(&bytes.Buffer{}, refNow)

	d := p.Parse(SearchResult{
		URL:  "https://example.com/u",
		HTML: "<p>Founders pitch on March 3, 2026</p>",
	})

	assert.Equal(t, OutcomeRejected, d.Outcome)
	assert.Equal(t, ReasonEmptyTitle, d.Reason)
	assert.Nil(t, d.Event)
}

func TestParse_FallsBackToSnippet(t *testing.T) {
	p := newTestParser(&bytes.Buffer{}, refNow)

	d := p.Parse(SearchResult{
		Title:   "Founder Meetup",
		Snippet: "Monthly meetup for founders",
		URL:     "https://example.com/m",
		HTML:    `<html><body><h1>No dates here</h1><script type="application/ld+json">{not json</script></body></html>`,
	})

	assert.Equal(t, OutcomeUncertain, d.Outcome)
	assert.Equal(t, ReasonNoDatesFound, d.Reason)
}

func TestParse_WithoutHTMLMatchesParseSnippet(t *testing.T) {
	p := newTestParser(&bytes.Buffer{}, refNow)
	res := SearchResult{Title: "Demo Day", Snippet: "on 2026-02-02", URL: "https://example.com/d"}

	assert.Equal(t, p.ParseSnippet(res), p.Parse(res))
}

func TestPlainText(t *testing.T) {
	assert.Equal(t, "Demo day on March 3, 2026 Apply now", PlainText("<p>Demo day on <b>March 3, 2026</b></p>\n<a href='x'>Apply now</a><script>var x;</script>"))
	assert.Equal(t, "plain text", PlainText("plain   text"))
}
