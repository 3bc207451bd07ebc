package parser

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aryannaik/pitch-finder/internal/event"
)

func newTestParser(buf *bytes.Buffer, now time.Time) *Parser {
	return New(
		WithLogger(newTestLogger(buf)),
		WithClock(func() time.Time { return now }),
	)
}

func TestParseSnippet_NoDateWithIndicatorIsUncertain(t *testing.T) {
	var buf bytes.Buffer
	p := newTestParser(&buf, refNow)

	res := SearchResult{
		Title:   "Startup Fundraising Summit",
		Snippet: "Join us for the Startup Fundraising Summit - By Investors, For Founders. Network with top VCs and angel investors. Apply to pitch your startup.",
		URL:     "https://example.com/summit",
		Source:  "tavily",
	}
	d := p.ParseSnippet(res)

	require.True(t, d.Accepted())
	assert.Equal(t, OutcomeUncertain, d.Outcome)
	assert.Equal(t, ReasonNoDatesFound, d.Reason)

	ev := d.Event
	want := refNow.Add(30 * 24 * time.Hour)
	assert.Equal(t, want, ev.StartUTC)
	assert.Equal(t, want, ev.EndUTC)
	assert.True(t, ev.DateUncertain())
	assert.True(t, strings.HasSuffix(ev.Description, event.UncertainDateNote))
	require.NoError(t, ev.Validate())

	e := findLog(logEntries(t, &buf), "accepted search result with uncertain date")
	require.NotNil(t, e)
	assert.Equal(t, "WARN", e["level"])
	assert.Equal(t, ReasonNoDatesFound, e["reason"])
	assert.Equal(t, "Startup Fundraising Summit", e["title"])
}

func TestParseSnippet_DateFound(t *testing.T) {
	var buf bytes.Buffer
	p := newTestParser(&buf, refNow)

	d := p.ParseSnippet(SearchResult{
		Title:   "Demo Day",
		Snippet: "Join us January 15, 2026 for demo day",
		URL:     "https://example.com/demo",
	})

	require.True(t, d.Accepted())
	assert.Equal(t, OutcomeConfident, d.Outcome)
	assert.Equal(t, ReasonDateFound, d.Reason)
	assert.Equal(t, day(2026, 1, 15), d.Event.StartUTC)
	assert.Equal(t, day(2026, 1, 15), d.Event.EndUTC)
	assert.False(t, d.Event.DateUncertain())
	assert.Equal(t, "Join us January 15, 2026 for demo day", d.Event.Description)
	assert.Contains(t, d.Event.Tags, "demo-day")

	e := findLog(logEntries(t, &buf), "accepted search result")
	require.NotNil(t, e)
	assert.Equal(t, "INFO", e["level"])
	assert.Equal(t, ReasonDateFound, e["reason"])
	assert.Equal(t, "2026-01-15", e["start"])
}

func TestParseSnippet_RangeUsesFirstDay(t *testing.T) {
	now := time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC)
	p := newTestParser(&bytes.Buffer{}, now)

	d := p.ParseSnippet(SearchResult{
		Title:   "TechCrunch Disrupt",
		Snippet: "March 20-22, 2026 in San Francisco",
		URL:     "https://example.com/disrupt",
	})

	require.Equal(t, OutcomeConfident, d.Outcome)
	assert.Equal(t, day(2026, 3, 20), d.Event.StartUTC)
	assert.Equal(t, day(2026, 3, 22), d.Event.EndUTC)
	assert.Equal(t, event.VenueInPerson, d.Event.Venue.Type)
	assert.Equal(t, "San Francisco", d.Event.Venue.City)
}

func TestParseSnippet_EarliestDateWins(t *testing.T) {
	p := newTestParser(&bytes.Buffer{}, refNow)

	d := p.ParseSnippet(SearchResult{
		Title:   "Pitch Night",
		Snippet: "Finals on 2026-04-10, qualifiers on March 3, 2026.",
		URL:     "https://example.com/pn",
	})

	require.Equal(t, OutcomeConfident, d.Outcome)
	assert.Equal(t, day(2026, 3, 3), d.Event.StartUTC)
}

func TestParseSnippet_NoDatesNoIndicatorsRejected(t *testing.T) {
	var buf bytes.Buffer
	p := newTestParser(&buf, refNow)

	d := p.ParseSnippet(SearchResult{
		Title:   "Fintech Market Report",
		Snippet: "Analysis of trends in financial technology",
		URL:     "https://example.com/report",
	})

	assert.False(t, d.Accepted())
	assert.Nil(t, d.Event)
	assert.Equal(t, OutcomeRejected, d.Outcome)
	assert.Equal(t, ReasonNoDatesNoIndicators, d.Reason)

	e := findLog(logEntries(t, &buf), "rejected search result")
	require.NotNil(t, e)
	assert.Equal(t, "INFO", e["level"])
	assert.Equal(t, ReasonNoDatesNoIndicators, e["reason"])
	assert.Contains(t, e["sample"], "Fintech Market Report")
}

func TestParseSnippet_EmptyTitleRejected(t *testing.T) {
	p := newTestParser(&bytes.Buffer{}, refNow)

	d := p.ParseSnippet(SearchResult{Title: "   ", Snippet: "Pitch competition January 15, 2026"})
	assert.Equal(t, OutcomeRejected, d.Outcome)
	assert.Equal(t, ReasonEmptyTitle, d.Reason)
}

func TestParseSnippet_EmptySnippet(t *testing.T) {
	p := newTestParser(&bytes.Buffer{}, refNow)

	d := p.ParseSnippet(SearchResult{Title: "Hackathon", URL: "https://example.com/h"})
	require.Equal(t, OutcomeUncertain, d.Outcome)
	assert.Equal(t, event.UncertainDateNote, d.Event.Description)
}

func TestParseSnippet_Provenance(t *testing.T) {
	p := newTestParser(&bytes.Buffer{}, refNow)
	res := SearchResult{
		Title:   "Demo Day",
		Snippet: "Join us January 15, 2026 for demo day",
		URL:     "https://example.com/demo",
		Source:  "tavily",
	}

	for _, d := range []Decision{p.ParseSnippet(res), p.ParseSnippet(SearchResult{Title: "Summit", URL: "u"})} {
		require.True(t, d.Accepted())
		require.Len(t, d.Event.Sources, 1)
		fields := d.Event.Sources[0].RawData.Fields()
		assert.Contains(t, fields, "snippet")
		assert.Contains(t, fields, "title")
		assert.Contains(t, fields, "url")
		assert.Equal(t, refNow, d.Event.Sources[0].FetchedAt)
	}

	d := p.ParseSnippet(res)
	src := d.Event.Sources[0]
	assert.Equal(t, "tavily", src.Source)
	assert.Equal(t, res.Snippet, src.RawData.Snippet)
	assert.Equal(t, res.Title, src.RawData.Title)
	assert.Equal(t, res.URL, src.RawData.URL)
}

func TestParseSnippet_Idempotent(t *testing.T) {
	p := newTestParser(&bytes.Buffer{}, refNow)
	res := SearchResult{
		Title:   "Seed Pitch Competition",
		Snippet: "Seed-stage fintech founders pitch on Sept 5. 12 pitch slots.",
		URL:     "https://example.com/seed",
	}

	a := p.ParseSnippet(res)
	b := p.ParseSnippet(res)
	assert.Equal(t, a, b)
}

func TestParseSnippet_DescriptionTruncated(t *testing.T) {
	p := newTestParser(&bytes.Buffer{}, refNow)

	d := p.ParseSnippet(SearchResult{
		Title:   "Pitch event",
		Snippet: "2026-02-01 " + strings.Repeat("é", 600),
	})
	require.True(t, d.Accepted())
	assert.Equal(t, 500, len([]rune(d.Event.Description)))
}

func TestClassify(t *testing.T) {
	tests := []struct {
		dates, indicator bool
		want             Outcome
	}{
		{true, true, OutcomeConfident},
		{true, false, OutcomeConfident},
		{false, true, OutcomeUncertain},
		{false, false, OutcomeRejected},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Classify(tt.dates, tt.indicator))
	}
}

func TestEventIndicators(t *testing.T) {
	tests := []struct {
		text string
		want bool
	}{
		{"Startup Summit 2026", true},
		{"Founders pitches", true},
		{"Two WORKSHOPS for founders", true},
		{"Investor demo  day", true},
		{"Global hackathon", true},
		{"Community meetup", true},
		{"How to prevent churn", false},
		{"Analysis of trends in financial technology", false},
		{"", false},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			assert.Equal(t, tt.want, HasEventIndicator(tt.text))
		})
	}

	kw, ok := FindEventIndicator("Investor Demo\tDay next week")
	require.True(t, ok)
	assert.Equal(t, "demo day", kw)
}
