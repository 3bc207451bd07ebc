package parser

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/aryannaik/pitch-finder/internal/event"
)

// jsonLDBlocks returns the bodies of every application/ld+json script in doc.
func jsonLDBlocks(doc *html.Node) []string {
	var blocks []string
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.DataAtom == atom.Script && strings.EqualFold(attr(n, "type"), "application/ld+json") {
			if n.FirstChild != nil && n.FirstChild.Type == html.TextNode {
				blocks = append(blocks, n.FirstChild.Data)
			}
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return blocks
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

// textContent joins the visible text under n, skipping scripts and styles.
func textContent(n *html.Node) string {
	var b strings.Builder
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		switch {
		case n.Type == html.TextNode:
			b.WriteString(n.Data)
			b.WriteByte(' ')
			return
		case n.Type == html.ElementNode && (n.DataAtom == atom.Script || n.DataAtom == atom.Style || n.DataAtom == atom.Noscript):
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return strings.Join(strings.Fields(b.String()), " ")
}

// PlainText strips markup from an HTML fragment. Input that fails to parse is
// returned with whitespace collapsed.
func PlainText(fragment string) string {
	doc, err := html.Parse(strings.NewReader(fragment))
	if err != nil {
		return strings.Join(strings.Fields(fragment), " ")
	}
	return textContent(doc)
}

func findElement(n *html.Node, a atom.Atom) *html.Node {
	if n.Type == html.ElementNode && n.DataAtom == a {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findElement(c, a); found != nil {
			return found
		}
	}
	return nil
}

// findEventObject locates the first schema.org Event in a decoded JSON-LD value.
func findEventObject(v any) map[string]any {
	switch t := v.(type) {
	case []any:
		for _, item := range t {
			if m := findEventObject(item); m != nil {
				return m
			}
		}
	case map[string]any:
		if isEventType(t["@type"]) {
			return t
		}
		if graph, ok := t["@graph"]; ok {
			return findEventObject(graph)
		}
	}
	return nil
}

func isEventType(v any) bool {
	switch t := v.(type) {
	case string:
		return strings.HasSuffix(t, "Event")
	case []any:
		for _, item := range t {
			if isEventType(item) {
				return true
			}
		}
	}
	return false
}

func pickStr(m map[string]any, keys ...string) string {
	for _, k := range keys {
		if s, ok := m[k].(string); ok {
			if s = strings.TrimSpace(s); s != "" {
				return s
			}
		}
	}
	return ""
}

// pickObject returns m[key] as an object, taking the first element of arrays.
func pickObject(m map[string]any, key string) map[string]any {
	switch v := m[key].(type) {
	case map[string]any:
		return v
	case []any:
		for _, item := range v {
			if obj, ok := item.(map[string]any); ok {
				return obj
			}
		}
	}
	return nil
}

func parseTimeFlexible(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range []string{
		time.RFC3339,
		"2006-01-02T15:04:05",
		"2006-01-02T15:04",
		"2006-01-02 15:04:05",
		"2006-01-02",
	} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unsupported time: %s", s)
}

func parseNumber(v any) (float64, bool) {
	switch p := v.(type) {
	case float64:
		return p, true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		return f, err == nil
	}
	return 0, false
}

// eventFromJSONLD builds an event from the first schema.org Event found in the
// page's JSON-LD blocks. Blocks that fail to decode are skipped.
func (p *Parser) eventFromJSONLD(doc *html.Node, url string, now time.Time) (*event.Event, bool) {
	for _, block := range jsonLDBlocks(doc) {
		var v any
		if err := json.Unmarshal([]byte(block), &v); err != nil {
			p.logger.Debug("skipping malformed json-ld", "url", url, "error", err)
			continue
		}
		obj := findEventObject(v)
		if obj == nil {
			continue
		}

		start, err := parseTimeFlexible(pickStr(obj, "startDate"))
		if err != nil {
			p.logger.Debug("json-ld event without usable start date", "url", url, "error", err)
			continue
		}
		end := start
		if e, err := parseTimeFlexible(pickStr(obj, "endDate")); err == nil && !e.Before(start) {
			end = e
		}

		title := pickStr(obj, "name")
		if title == "" {
			title = "Untitled Event"
		}
		description := pickStr(obj, "description")

		ev := p.baseEvent(title, description, url, now)
		ev.StartUTC = start
		ev.EndUTC = end
		ev.Venue = jsonLDVenue(obj)
		if ev.Venue.Type != event.VenueInPerson {
			if loc := pickObject(obj, "location"); loc != nil {
				ev.OnlineURL = pickStr(loc, "url")
			}
		}
		if org := pickObject(obj, "organizer"); org != nil {
			ev.Organizer.Name = firstNonEmpty(pickStr(org, "name"), ev.Organizer.Name)
			ev.Organizer.ContactEmail = pickStr(org, "email")
			ev.Organizer.Website = pickStr(org, "url")
		}
		if offer := pickObject(obj, "offers"); offer != nil {
			price, _ := parseNumber(offer["price"])
			ev.Registration.Price = price
			ev.Registration.Type = event.RegistrationTicket
			if price == 0 {
				ev.Registration.Type = event.RegistrationFree
			}
			ev.Registration.Currency = firstNonEmpty(pickStr(offer, "priceCurrency"), "USD")
			ev.Registration.URL = firstNonEmpty(pickStr(offer, "url"), url)
		}

		text := title + " " + description
		ev.PitchSlots = p.dates.DetectPitchSlots(text, now)
		p.applyTags(&ev, text)
		return &ev, true
	}
	return nil, false
}

func jsonLDVenue(obj map[string]any) event.Venue {
	mode := pickStr(obj, "eventAttendanceMode")
	loc := pickObject(obj, "location")
	if loc == nil {
		if s := pickStr(obj, "location"); s != "" {
			return event.Venue{Type: event.VenueInPerson, Name: s}
		}
		return event.Venue{Type: event.VenueOnline, Name: "Online Event"}
	}

	locType, _ := loc["@type"].(string)
	if locType == "VirtualLocation" {
		return event.Venue{Type: event.VenueOnline, Name: "Online Event"}
	}

	v := event.Venue{Type: event.VenueInPerson, Name: pickStr(loc, "name")}
	if strings.Contains(mode, "Mixed") {
		v.Type = event.VenueHybrid
	}
	switch addr := loc["address"].(type) {
	case string:
		v.Address = strings.TrimSpace(addr)
	case map[string]any:
		v.Address = pickStr(addr, "streetAddress")
		v.City = pickStr(addr, "addressLocality")
		v.Country = pickStr(addr, "addressCountry")
		if country := pickObject(addr, "addressCountry"); country != nil {
			v.Country = pickStr(country, "name")
		}
	}
	if geo := pickObject(loc, "geo"); geo != nil {
		lat, okLat := parseNumber(geo["latitude"])
		lon, okLon := parseNumber(geo["longitude"])
		if okLat && okLon {
			v.Coordinates = &event.Coordinates{Lat: lat, Lon: lon}
		}
	}
	return v
}

// eventFromPage builds an event from page text when it contains at least one date.
// The page heading wins over fallbackTitle; with neither the page is skipped.
func (p *Parser) eventFromPage(doc *html.Node, url, fallbackTitle string, now time.Time) (*event.Event, bool) {
	title := ""
	if h1 := findElement(doc, atom.H1); h1 != nil {
		title = textContent(h1)
	}
	if title == "" {
		if t := findElement(doc, atom.Title); t != nil {
			title = textContent(t)
		}
	}
	if title == "" {
		title = strings.TrimSpace(fallbackTitle)
	}
	if title == "" {
		return nil, false
	}

	body := doc
	if b := findElement(doc, atom.Body); b != nil {
		body = b
	}
	text := textContent(body)

	first, ok := Earliest(p.dates.Extract(text, now))
	if !ok {
		return nil, false
	}

	ev := p.baseEvent(title, truncate(text, maxDescriptionRunes), url, now)
	ev.StartUTC = first.Date
	ev.EndUTC = first.Date
	if first.HasEnd() {
		ev.EndUTC = first.End
	}
	ev.Venue = ExtractVenue(text)
	ev.PitchSlots = p.dates.DetectPitchSlots(text, now)
	p.applyTags(&ev, text)
	return &ev, true
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
