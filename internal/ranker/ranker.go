// Package ranker scores candidate events against a user query.
package ranker

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/aryannaik/pitch-finder/internal/event"
	"github.com/aryannaik/pitch-finder/internal/vectordb"
)

const (
	FactorSemantic    = "semantic_similarity"
	FactorRecency     = "recency"
	FactorLogistics   = "logistics"
	FactorPitchSlots  = "pitch_slot_availability"
	FactorCredibility = "credibility"
)

// Weights sum to 1.
var Weights = map[string]float64{
	FactorSemantic:    0.50,
	FactorRecency:     0.15,
	FactorLogistics:   0.15,
	FactorPitchSlots:  0.15,
	FactorCredibility: 0.05,
}

var factorOrder = []string{FactorSemantic, FactorRecency, FactorLogistics, FactorPitchSlots, FactorCredibility}

type Ranker struct {
	matcher LocationMatcher
	now     func() time.Time
	logger  *slog.Logger
}

type Option func(*Ranker)

func WithClock(now func() time.Time) Option {
	return func(r *Ranker) { r.now = now }
}

func WithLogger(logger *slog.Logger) Option {
	return func(r *Ranker) { r.logger = logger }
}

// New returns a ranker. A nil matcher falls back to alias-aware substring matching.
func New(matcher LocationMatcher, opts ...Option) *Ranker {
	if matcher == nil {
		matcher = SubstringMatcher{}
	}
	r := &Ranker{
		matcher: matcher,
		now:     time.Now,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Rank scores every candidate and returns them best first.
func (r *Ranker) Rank(ctx context.Context, q event.Query, candidates []vectordb.Result) []event.Ranked {
	now := r.now().UTC()
	ranked := make([]event.Ranked, 0, len(candidates))

	for _, c := range candidates {
		ev := c.Event
		factors := map[string]float64{
			FactorSemantic:    clamp(c.Score),
			FactorRecency:     recencyScore(ev, now),
			FactorLogistics:   r.logisticsScore(ctx, q, ev),
			FactorPitchSlots:  pitchSlotScore(q, ev, now),
			FactorCredibility: credibilityScore(ev),
		}

		var total float64
		for _, key := range factorOrder {
			total += factors[key] * Weights[key]
		}

		ranked = append(ranked, event.Ranked{
			Event:        ev,
			Score:        total,
			Explanation:  explain(q, ev, factors, now),
			MatchFactors: factors,
		})
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Score > ranked[j].Score
	})

	r.logger.Info("ranked events", "count", len(ranked))
	return ranked
}

// daysUntil counts whole days, rounding toward the past.
func daysUntil(t, now time.Time) int {
	return int(math.Floor(t.Sub(now).Hours() / 24))
}

func recencyScore(ev event.Event, now time.Time) float64 {
	days := daysUntil(ev.StartUTC, now)
	switch {
	case days < 0:
		return 0
	case days <= 7:
		return 1
	case days <= 30:
		return 0.8
	case days <= 90:
		return 0.5
	default:
		return 0.3
	}
}

func (r *Ranker) logisticsScore(ctx context.Context, q event.Query, ev event.Event) float64 {
	score := 0.5
	if ev.Venue.Type == event.VenueOnline {
		score = 1
	}

	if q.Location != "" && r.matcher.Match(ctx, q.Location, ev.Venue.City, ev.Venue.Country) {
		if ev.Venue.City != "" {
			score = 1
		} else {
			score = 0.7
		}
	}

	if q.MaxPrice != nil {
		if ev.Registration.Price <= *q.MaxPrice {
			score = math.Min(score+0.2, 1)
		} else {
			score *= 0.5
		}
	}
	return score
}

func pitchSlotScore(q event.Query, ev event.Event, now time.Time) float64 {
	if q.PitchOnly && ev.PitchSlots == nil {
		return 0
	}
	if !ev.HasPitchSlots() {
		return 0.3
	}

	if d := ev.PitchSlots.ApplicationDeadline; d != nil {
		days := daysUntil(*d, now)
		switch {
		case days < 0:
			return 0
		case days <= 3:
			return 0.7
		case days <= 7:
			return 0.9
		}
	}
	return 1
}

func credibilityScore(ev event.Event) float64 {
	score := ev.Organizer.CredibilityScore
	if len(ev.Sources) > 1 {
		score = math.Min(score+0.2, 1)
	}

	var completeness float64
	if ev.Organizer.ContactEmail != "" {
		completeness += 0.1
	}
	if ev.Registration.URL != "" {
		completeness += 0.1
	}
	if ev.PitchSlots != nil && ev.PitchSlots.ApplicationURL != "" {
		completeness += 0.1
	}
	return math.Min(score+completeness, 1)
}

func explain(q event.Query, ev event.Event, factors map[string]float64, now time.Time) string {
	var reasons []string

	if factors[FactorSemantic] > 0.7 {
		reasons = append(reasons, "strong semantic match to your query")
	}
	if q.Location != "" && ev.Venue.City != "" &&
		strings.Contains(strings.ToLower(ev.Venue.City), strings.ToLower(q.Location)) {
		reasons = append(reasons, "located in "+ev.Venue.City)
	}
	if ev.Venue.Type == event.VenueOnline {
		reasons = append(reasons, "online event (accessible anywhere)")
	}
	if ev.HasPitchSlots() {
		if d := ev.PitchSlots.ApplicationDeadline; d != nil {
			reasons = append(reasons, fmt.Sprintf("pitch slots available (deadline %s)", d.Format("Jan 02")))
		} else {
			reasons = append(reasons, "pitch slots available")
		}
	}
	if matching := intersect(q.Industry, ev.Tags); len(matching) > 0 {
		reasons = append(reasons, "matches "+strings.Join(matching, ", "))
	}
	if ev.Registration.Price == 0 {
		reasons = append(reasons, "free event")
	}
	if days := daysUntil(ev.StartUTC, now); days > 0 && days <= 7 {
		reasons = append(reasons, "happening soon")
	}

	if len(reasons) == 0 {
		reasons = append(reasons, "relevant to your search")
	}
	out := strings.Join(reasons, "; ")
	return strings.ToUpper(out[:1]) + out[1:]
}

// intersect returns the entries of want present in have, in want's order.
func intersect(want, have []string) []string {
	var out []string
	for _, w := range want {
		for _, h := range have {
			if strings.EqualFold(w, h) {
				out = append(out, h)
				break
			}
		}
	}
	return out
}

func clamp(v float64) float64 {
	return math.Max(0, math.Min(v, 1))
}
