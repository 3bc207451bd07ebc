package parser

import (
	"fmt"
	"log/slog"
	"regexp"
	"sort"
	"strings"
	"time"
)

// PatternKind identifies which date pattern produced a match.
type PatternKind string

const (
	PatternISO          PatternKind = "iso"
	PatternSlash        PatternKind = "slash_mdy"
	PatternDash         PatternKind = "dash_dmy"
	PatternMonthDayYear PatternKind = "month_day_year"
	PatternDayMonthYear PatternKind = "day_month_year"
	PatternMonthDay     PatternKind = "month_day"
	PatternDayMonth     PatternKind = "day_month"
)

// Confidence records whether the year came from the text or was inferred.
type Confidence string

const (
	ExplicitYear Confidence = "explicit-year"
	InferredYear Confidence = "inferred-year"
)

// ExtractedDate is a calendar date recovered from free text.
type ExtractedDate struct {
	Date       time.Time
	End        time.Time // zero unless the match was a day range
	Confidence Confidence
	Pattern    PatternKind
	Matched    string
	Offset     int
}

// HasEnd reports whether the match carried a range end.
func (d ExtractedDate) HasEnd() bool {
	return !d.End.IsZero()
}

// DateParts is a calendar date whose year may be unknown (Year == 0).
type DateParts struct {
	Year  int
	Month time.Month
	Day   int
}

// SubstringParser turns one matched date substring into date parts.
type SubstringParser interface {
	ParseDate(s string, kind PatternKind) (DateParts, error)
}

const monthExpr = `jan(?:uary)?|feb(?:ruary)?|mar(?:ch)?|apr(?:il)?|may|june?|july?|aug(?:ust)?|sep(?:t(?:ember)?)?|oct(?:ober)?|nov(?:ember)?|dec(?:ember)?`

const (
	ordinal  = `(?:st|nd|rd|th)?`
	rangeSep = `\s*(?:-|–|—|to|through)\s*`
	yearSep  = `(?:,\s*|\s+)`
)

type matcher struct {
	kind   PatternKind
	re     *regexp.Regexp
	render func(g []string) (start, end string)
}

// matchers are tried in priority order; a span claimed by an earlier matcher is skipped by later ones.
var matchers = []matcher{
	{
		kind: PatternISO,
		re:   regexp.MustCompile(`\b(\d{4})-(\d{2})-(\d{2})\b`),
		render: func(g []string) (string, string) {
			return g[1] + "-" + g[2] + "-" + g[3], ""
		},
	},
	{
		kind: PatternSlash,
		re:   regexp.MustCompile(`\b(\d{1,2})/(\d{1,2})/(\d{4})\b`),
		render: func(g []string) (string, string) {
			return g[1] + "/" + g[2] + "/" + g[3], ""
		},
	},
	{
		kind: PatternDash,
		re:   regexp.MustCompile(`\b(\d{1,2})-(\d{1,2})-(\d{4})\b`),
		render: func(g []string) (string, string) {
			return g[1] + "-" + g[2] + "-" + g[3], ""
		},
	},
	{
		kind: PatternMonthDayYear,
		re: regexp.MustCompile(`(?i)\b(` + monthExpr + `)\.?\s+(\d{1,2})` + ordinal +
			`(?:` + rangeSep + `(\d{1,2})` + ordinal + `)?` + yearSep + `(\d{4})\b`),
		render: func(g []string) (string, string) {
			start := g[1] + " " + g[2] + " " + g[4]
			if g[3] == "" {
				return start, ""
			}
			return start, g[1] + " " + g[3] + " " + g[4]
		},
	},
	{
		kind: PatternDayMonthYear,
		re: regexp.MustCompile(`(?i)\b(\d{1,2})` + ordinal + `(?:\s*(?:-|–|—)\s*(\d{1,2})` + ordinal + `)?` +
			`\s+(?:of\s+)?(` + monthExpr + `)\.?` + yearSep + `(\d{4})\b`),
		render: func(g []string) (string, string) {
			start := g[1] + " " + g[3] + " " + g[4]
			if g[2] == "" {
				return start, ""
			}
			return start, g[2] + " " + g[3] + " " + g[4]
		},
	},
	{
		kind: PatternMonthDay,
		re:   regexp.MustCompile(`(?i)\b(` + monthExpr + `)\.?\s+(\d{1,2})` + ordinal + `\b`),
		render: func(g []string) (string, string) {
			return g[1] + " " + g[2], ""
		},
	},
	{
		kind: PatternDayMonth,
		re:   regexp.MustCompile(`(?i)\b(\d{1,2})` + ordinal + `\s+(?:of\s+)?(` + monthExpr + `)\b`),
		render: func(g []string) (string, string) {
			return g[1] + " " + g[2], ""
		},
	},
}

var layoutsByKind = map[PatternKind][]string{
	PatternISO:          {"2006-01-02"},
	PatternSlash:        {"1/2/2006", "2/1/2006"},
	PatternDash:         {"2-1-2006"},
	PatternMonthDayYear: {"Jan 2 2006"},
	PatternDayMonthYear: {"2 Jan 2006"},
	PatternMonthDay:     {"Jan 2"},
	PatternDayMonth:     {"2 Jan"},
}

var (
	monthWordPattern = regexp.MustCompile(`(?i)\b(` + monthExpr + `)\b`)
	ordinalPattern   = regexp.MustCompile(`(?i)(\d)(?:st|nd|rd|th)\b`)
	punctPattern     = regexp.MustCompile(`[,.]+`)
	spacePattern     = regexp.MustCompile(`\s+`)
)

// LayoutParser parses date substrings against a fixed set of time layouts per
// pattern kind, after stripping ordinals, punctuation and month-name variants.
type LayoutParser struct{}

func (LayoutParser) ParseDate(s string, kind PatternKind) (DateParts, error) {
	layouts, ok := layoutsByKind[kind]
	if !ok {
		return DateParts{}, fmt.Errorf("unknown pattern kind %q", kind)
	}

	norm := normalizeDateText(s)
	var lastErr error
	for _, layout := range layouts {
		t, err := time.Parse(layout, norm)
		if err != nil {
			lastErr = err
			continue
		}
		parts := DateParts{Month: t.Month(), Day: t.Day()}
		if strings.Contains(layout, "2006") {
			parts.Year = t.Year()
		}
		return parts, nil
	}
	return DateParts{}, fmt.Errorf("parse %q: %w", s, lastErr)
}

func normalizeDateText(s string) string {
	s = ordinalPattern.ReplaceAllString(s, "$1")
	s = punctPattern.ReplaceAllString(s, " ")
	s = monthWordPattern.ReplaceAllStringFunc(s, func(m string) string {
		short := strings.ToLower(m[:3])
		return strings.ToUpper(short[:1]) + short[1:]
	})
	return strings.TrimSpace(spacePattern.ReplaceAllString(s, " "))
}

// DateExtractor recovers calendar dates from free text.
type DateExtractor struct {
	parser SubstringParser
	logger *slog.Logger
}

// NewDateExtractor returns an extractor; a nil parser selects LayoutParser.
func NewDateExtractor(logger *slog.Logger, parser SubstringParser) *DateExtractor {
	if logger == nil {
		logger = slog.Default()
	}
	if parser == nil {
		parser = LayoutParser{}
	}
	return &DateExtractor{parser: parser, logger: logger}
}

type span struct{ start, end int }

func (s span) overlaps(o span) bool {
	return s.start < o.end && o.start < s.end
}

// Extract returns the distinct dates found in text, in order of appearance.
// Dates without a year resolve to their next occurrence on or after now.
func (x *DateExtractor) Extract(text string, now time.Time) []ExtractedDate {
	now = now.UTC()

	var (
		claimed []span
		seen    = make(map[string]bool)
		out     []ExtractedDate
	)

	for _, m := range matchers {
		for _, idx := range m.re.FindAllStringSubmatchIndex(text, -1) {
			sp := span{idx[0], idx[1]}
			if overlapsAny(claimed, sp) {
				continue
			}
			claimed = append(claimed, sp)

			matched := text[sp.start:sp.end]
			startText, endText := m.render(submatches(text, idx))

			d, ok := x.resolve(startText, m.kind, matched, now)
			if !ok {
				continue
			}

			key := d.Date.Format("2006-01-02")
			if seen[key] {
				continue
			}
			seen[key] = true

			if endText != "" {
				if end, ok := x.resolve(endText, m.kind, matched, now); ok {
					endDate := time.Date(d.Date.Year(), end.Date.Month(), end.Date.Day(), 0, 0, 0, 0, time.UTC)
					if endDate.After(d.Date) {
						d.End = endDate
					}
				}
			}

			d.Offset = sp.start
			x.logger.Debug("extracted date",
				slog.String("matched", matched),
				slog.String("date", key),
				slog.String("pattern", string(m.kind)),
				slog.String("confidence", string(d.Confidence)),
			)
			out = append(out, d)
		}
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Offset < out[j].Offset })
	return out
}

func (x *DateExtractor) resolve(s string, kind PatternKind, matched string, now time.Time) (ExtractedDate, bool) {
	parts, err := x.parser.ParseDate(s, kind)
	if err != nil {
		x.logger.Warn("failed to parse date",
			slog.String("matched", matched),
			slog.String("pattern", string(kind)),
			slog.String("error", err.Error()),
		)
		return ExtractedDate{}, false
	}

	if parts.Year != 0 {
		return ExtractedDate{
			Date:       time.Date(parts.Year, parts.Month, parts.Day, 0, 0, 0, 0, time.UTC),
			Confidence: ExplicitYear,
			Pattern:    kind,
			Matched:    matched,
		}, true
	}

	d, ok := NextOccurrence(parts.Month, parts.Day, now)
	if !ok {
		x.logger.Warn("failed to parse date",
			slog.String("matched", matched),
			slog.String("pattern", string(kind)),
			slog.String("error", "no upcoming occurrence of month/day"),
		)
		return ExtractedDate{}, false
	}
	return ExtractedDate{Date: d, Confidence: InferredYear, Pattern: kind, Matched: matched}, true
}

// NextOccurrence returns month/day in now's year, or the following year(s) if
// that date has already passed. Feb 29 skips ahead to the next leap year.
func NextOccurrence(month time.Month, day int, now time.Time) (time.Time, bool) {
	now = now.UTC()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	for y := now.Year(); y <= now.Year()+8; y++ {
		d := time.Date(y, month, day, 0, 0, 0, 0, time.UTC)
		if d.Month() != month || d.Day() != day {
			continue
		}
		if d.Before(today) {
			continue
		}
		return d, true
	}
	return time.Time{}, false
}

// Earliest returns the extracted date with the smallest calendar date.
func Earliest(dates []ExtractedDate) (ExtractedDate, bool) {
	if len(dates) == 0 {
		return ExtractedDate{}, false
	}
	best := dates[0]
	for _, d := range dates[1:] {
		if d.Date.Before(best.Date) {
			best = d
		}
	}
	return best, true
}

func overlapsAny(claimed []span, sp span) bool {
	for _, c := range claimed {
		if c.overlaps(sp) {
			return true
		}
	}
	return false
}

func submatches(text string, idx []int) []string {
	out := make([]string, len(idx)/2)
	for i := range out {
		if idx[2*i] >= 0 {
			out[i] = text[idx[2*i]:idx[2*i+1]]
		}
	}
	return out
}
