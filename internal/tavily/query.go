package tavily

import (
	"strings"

	"github.com/aryannaik/pitch-finder/internal/event"
)

// EventDomains are the listing platforms searches are restricted to.
var EventDomains = []string{
	"eventbrite.com",
	"meetup.com",
	"linkedin.com",
	"facebook.com",
	"luma.com",
	"lu.ma",
	"partiful.com",
	"eventbrite.co.uk",
	"eventbrite.in",
}

const (
	founderTerm  = "pitch opportunity"
	investorTerm = "investor event"
)

// EnhanceQuery expands the user's intent with place, industry and pitch terms.
func EnhanceQuery(q event.Query) string {
	var b strings.Builder
	b.WriteString(strings.TrimSpace(q.Intent))

	switch {
	case q.Location != "":
		b.WriteString(" in " + q.Location)
	case q.Region != "":
		b.WriteString(" in " + q.Region)
	}
	if len(q.Industry) > 0 {
		b.WriteString(" " + strings.Join(q.Industry, " "))
	}

	personaTerm := founderTerm
	if q.Persona == event.PersonaInvestor {
		personaTerm = investorTerm
	}
	b.WriteString(" (startup pitch OR pitch event OR " + personaTerm + ")")

	if q.DateFrom != nil {
		b.WriteString(" after:" + q.DateFrom.Format("2006-01-02"))
	}
	if q.DateTo != nil {
		b.WriteString(" before:" + q.DateTo.Format("2006-01-02"))
	}
	return b.String()
}
