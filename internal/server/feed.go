package server

import (
	"bytes"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/feeds"
	"github.com/labstack/echo/v4"
	"github.com/yuin/goldmark"

	"github.com/aryannaik/pitch-finder/internal/event"
)

// HandleFeed serves stored events ranked against q as an Atom feed. It never
// triggers a web search.
func (h *Handlers) HandleFeed(c echo.Context) error {
	q, err := queryFromParams(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{err.Error()})
	}
	if err := q.Normalize(); err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{err.Error()})
	}

	ranked, err := h.backend.Retrieve(c.Request().Context(), q)
	if err != nil {
		h.logger.Error("feed retrieval failed", "intent", q.Intent, "error", err)
		return c.JSON(http.StatusInternalServerError, errorResponse{"feed unavailable"})
	}

	self := c.Scheme() + "://" + c.Request().Host + c.Request().URL.String()
	atom, err := buildFeed(q, ranked, self, time.Now().UTC())
	if err != nil {
		h.logger.Error("render feed failed", "error", err)
		return c.JSON(http.StatusInternalServerError, errorResponse{"feed unavailable"})
	}
	return c.Blob(http.StatusOK, "application/atom+xml; charset=utf-8", []byte(atom))
}

func buildFeed(q event.Query, ranked []event.Ranked, self string, now time.Time) (string, error) {
	feed := &feeds.Feed{
		Title:       "Pitch events: " + q.Intent,
		Link:        &feeds.Link{Href: self},
		Description: "Startup pitch events ranked for " + q.Intent,
		Id:          self,
		Updated:     now,
		Created:     now,
	}

	for _, r := range ranked {
		ev := r.Event
		content, err := renderDescription(ev, r)
		if err != nil {
			return "", err
		}
		link := ev.Registration.URL
		if link == "" && len(ev.Sources) > 0 {
			link = ev.Sources[0].SourceURL
		}
		feed.Items = append(feed.Items, &feeds.Item{
			Id:          "urn:uuid:" + ev.ID,
			Title:       ev.Title,
			Link:        &feeds.Link{Href: link},
			Description: ev.ShortSummary,
			Content:     content,
			Created:     ev.StartUTC,
			Updated:     ev.LastCanonicalizedAt,
		})
	}
	return feed.ToAtom()
}

// renderDescription builds a small Markdown card for an event and renders it to HTML.
func renderDescription(ev event.Event, r event.Ranked) (string, error) {
	var md strings.Builder
	fmt.Fprintf(&md, "**%s**\n\n", ev.StartUTC.Format("Mon, Jan 2 2006"))
	switch {
	case ev.Venue.City != "" && ev.Venue.Country != "":
		fmt.Fprintf(&md, "%s, %s\n\n", ev.Venue.City, ev.Venue.Country)
	case ev.Venue.City != "":
		md.WriteString(ev.Venue.City + "\n\n")
	case ev.Venue.Type == event.VenueOnline:
		md.WriteString("Online\n\n")
	}
	if ev.Description != "" {
		md.WriteString(ev.Description + "\n\n")
	}
	if ev.HasPitchSlots() {
		md.WriteString("- Pitch slots available\n")
	}
	if len(ev.Tags) > 0 {
		fmt.Fprintf(&md, "- Tags: %s\n", strings.Join(ev.Tags, ", "))
	}
	fmt.Fprintf(&md, "- Match: %.2f (%s)\n", r.Score, r.Explanation)

	var buf bytes.Buffer
	if err := goldmark.Convert([]byte(md.String()), &buf); err != nil {
		return "", fmt.Errorf("render markdown: %w", err)
	}
	return buf.String(), nil
}
