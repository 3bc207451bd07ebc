// Package parser turns search results into canonical events.
//
// A result is tried as JSON-LD structured data, then as an HTML page, and
// finally as a bare title and snippet. Snippets are accepted when they carry
// a date, accepted with a placeholder date when they only mention an event
// keyword, and rejected otherwise.
package parser

import (
	"log/slog"
	"strings"
	"time"

	"golang.org/x/net/html"

	"github.com/aryannaik/pitch-finder/internal/event"
)

const (
	// UncertainDateOffset is how far ahead an undated event is placed.
	UncertainDateOffset = 30 * 24 * time.Hour

	maxDescriptionRunes = 500
	maxSampleRunes      = 200

	defaultSource = "unknown"
)

// SearchResult is one hit returned by a search provider.
type SearchResult struct {
	Title   string  `json:"title"`
	Snippet string  `json:"snippet"`
	URL     string  `json:"url"`
	HTML    string  `json:"html,omitempty"`
	Source  string  `json:"source,omitempty"`
	Score   float64 `json:"score,omitempty"`
}

type Outcome string

const (
	OutcomeRejected  Outcome = "rejected"
	OutcomeUncertain Outcome = "accepted_uncertain"
	OutcomeConfident Outcome = "accepted"
)

const (
	ReasonDateFound           = "date_found"
	ReasonNoDatesFound        = "no_dates_found"
	ReasonNoDatesNoIndicators = "no_dates_no_indicators"
	ReasonEmptyTitle          = "empty_title"
	ReasonJSONLD              = "json_ld"
	ReasonHTMLHeuristic       = "html_heuristic"
)

// Decision is the outcome of parsing one search result. Event is nil when
// the result was rejected.
type Decision struct {
	Outcome Outcome      `json:"outcome"`
	Reason  string       `json:"reason"`
	Event   *event.Event `json:"event,omitempty"`
}

func (d Decision) Accepted() bool {
	return d.Outcome != OutcomeRejected && d.Event != nil
}

type Option func(*Parser)

func WithLogger(logger *slog.Logger) Option {
	return func(p *Parser) { p.logger = logger }
}

// WithClock overrides the time source used for year inference and defaults.
func WithClock(now func() time.Time) Option {
	return func(p *Parser) { p.now = now }
}

func WithTagger(t *Tagger) Option {
	return func(p *Parser) { p.tagger = t }
}

func WithSubstringParser(sp SubstringParser) Option {
	return func(p *Parser) { p.substrings = sp }
}

// Parser is safe for concurrent use; it holds no mutable state.
type Parser struct {
	logger     *slog.Logger
	now        func() time.Time
	tagger     *Tagger
	substrings SubstringParser
	dates      *DateExtractor
}

func New(opts ...Option) *Parser {
	p := &Parser{now: time.Now}
	for _, opt := range opts {
		opt(p)
	}
	if p.logger == nil {
		p.logger = slog.Default()
	}
	if p.tagger == nil {
		p.tagger = DefaultTagger()
	}
	p.dates = NewDateExtractor(p.logger, p.substrings)
	return p
}

// Dates exposes the parser's date extractor.
func (p *Parser) Dates() *DateExtractor {
	return p.dates
}

// Parse converts a search result into at most one event. Structured data in
// the result's HTML takes precedence over the snippet.
func (p *Parser) Parse(res SearchResult) Decision {
	now := p.now().UTC()

	if strings.TrimSpace(res.HTML) != "" {
		doc, err := html.Parse(strings.NewReader(res.HTML))
		if err != nil {
			p.logger.Warn("failed to parse html, falling back to snippet", "url", res.URL, "error", err)
		} else {
			if ev, ok := p.eventFromJSONLD(doc, res.URL, now); ok {
				return p.accept(res, ev, ReasonJSONLD, now)
			}
			if ev, ok := p.eventFromPage(doc, res.URL, res.Title, now); ok {
				return p.accept(res, ev, ReasonHTMLHeuristic, now)
			}
		}
	}

	return p.parseSnippet(res, now)
}

// ParseSnippet applies the date/indicator policy to a result's title and snippet.
func (p *Parser) ParseSnippet(res SearchResult) Decision {
	return p.parseSnippet(res, p.now().UTC())
}

func (p *Parser) parseSnippet(res SearchResult, now time.Time) Decision {
	title := strings.TrimSpace(res.Title)
	if title == "" {
		p.logger.Info("rejected search result",
			slog.String("reason", ReasonEmptyTitle),
			slog.String("url", res.URL),
		)
		return Decision{Outcome: OutcomeRejected, Reason: ReasonEmptyTitle}
	}

	text := title + " " + res.Snippet
	dates := p.dates.Extract(text, now)
	_, indicator := FindEventIndicator(text)

	switch Classify(len(dates) > 0, indicator) {
	case OutcomeConfident:
		first, _ := Earliest(dates)
		ev := p.snippetEvent(res, title, text, now)
		ev.StartUTC = first.Date
		ev.EndUTC = first.Date
		if first.HasEnd() {
			ev.EndUTC = first.End
		}
		p.enrich(&ev, res, now)
		p.logger.Info("accepted search result",
			slog.String("reason", ReasonDateFound),
			slog.String("title", title),
			slog.String("start", ev.StartUTC.Format(time.DateOnly)),
		)
		return Decision{Outcome: OutcomeConfident, Reason: ReasonDateFound, Event: &ev}

	case OutcomeUncertain:
		def := now.Add(UncertainDateOffset)
		ev := p.snippetEvent(res, title, text, now)
		ev.StartUTC = def
		ev.EndUTC = def
		ev.Description += event.UncertainDateNote
		ev.Tags = append(ev.Tags, event.TagDateUncertain)
		p.enrich(&ev, res, now)
		p.logger.Warn("accepted search result with uncertain date",
			slog.String("reason", ReasonNoDatesFound),
			slog.String("title", title),
			slog.String("default_date", def.Format(time.RFC3339)),
		)
		return Decision{Outcome: OutcomeUncertain, Reason: ReasonNoDatesFound, Event: &ev}

	default:
		p.logger.Info("rejected search result",
			slog.String("reason", ReasonNoDatesNoIndicators),
			slog.String("title", title),
			slog.String("sample", truncate(text, maxSampleRunes)),
		)
		return Decision{Outcome: OutcomeRejected, Reason: ReasonNoDatesNoIndicators}
	}
}

// Classify maps the presence of dates and event keywords to an outcome.
func Classify(hasDates, hasIndicator bool) Outcome {
	switch {
	case hasDates:
		return OutcomeConfident
	case hasIndicator:
		return OutcomeUncertain
	default:
		return OutcomeRejected
	}
}

func (p *Parser) snippetEvent(res SearchResult, title, text string, now time.Time) event.Event {
	ev := p.baseEvent(title, truncate(res.Snippet, maxDescriptionRunes), res.URL, now)
	ev.Venue = ExtractVenue(text)
	ev.PitchSlots = p.dates.DetectPitchSlots(text, now)
	p.applyTags(&ev, text)
	return ev
}

func (p *Parser) baseEvent(title, description, url string, now time.Time) event.Event {
	return event.Event{
		ID:          event.NewID(url, title),
		Title:       title,
		Description: description,
		Timezone:    "UTC",
		Registration: event.Registration{
			Type:     event.RegistrationRSVP,
			URL:      url,
			Currency: "USD",
		},
		Organizer: event.Organizer{
			Name:             "Unknown",
			CredibilityScore: 0.5,
		},
		Tags:                []string{},
		LastCanonicalizedAt: now,
		Status:              event.StatusActive,
		CredibilityScore:    0.5,
	}
}

func (p *Parser) applyTags(ev *event.Event, text string) {
	ev.Tags = p.tagger.Tags(text)
	ev.Stage = p.tagger.InCategory(ev.Tags, CategoryStage)
	if industries := p.tagger.InCategory(ev.Tags, CategoryIndustry); len(industries) > 0 {
		ev.Industry = industries[0]
	}
}

// enrich attaches the provenance record for res.
func (p *Parser) enrich(ev *event.Event, res SearchResult, now time.Time) {
	source := res.Source
	if source == "" {
		source = defaultSource
	}
	ev.AddSource(source, event.NewSourceRecord(res.Title, res.Snippet, res.URL), now)
}

func (p *Parser) accept(res SearchResult, ev *event.Event, reason string, now time.Time) Decision {
	p.enrich(ev, res, now)
	p.logger.Info("accepted search result",
		slog.String("reason", reason),
		slog.String("title", ev.Title),
		slog.String("start", ev.StartUTC.Format(time.DateOnly)),
	)
	return Decision{Outcome: OutcomeConfident, Reason: reason, Event: ev}
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
