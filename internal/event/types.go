package event

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// TagDateUncertain marks events whose start date was defaulted rather than extracted.
const TagDateUncertain = "date-uncertain"

// UncertainDateNote is appended to the description of events with a defaulted date.
const UncertainDateNote = " [Date uncertain - please verify]"

type VenueType string

const (
	VenueInPerson VenueType = "in-person"
	VenueOnline   VenueType = "online"
	VenueHybrid   VenueType = "hybrid"
)

type RegistrationType string

const (
	RegistrationTicket      RegistrationType = "ticket"
	RegistrationRSVP        RegistrationType = "rsvp"
	RegistrationApplication RegistrationType = "application"
	RegistrationInviteOnly  RegistrationType = "invite-only"
	RegistrationFree        RegistrationType = "free"
)

type Status string

const (
	StatusActive    Status = "active"
	StatusCancelled Status = "cancelled"
	StatusPast      Status = "past"
	StatusFull      Status = "full"
)

type Coordinates struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Venue is the physical or virtual place an event happens.
type Venue struct {
	Type        VenueType    `json:"type"`
	Name        string       `json:"name,omitempty"`
	Address     string       `json:"address,omitempty"`
	City        string       `json:"city,omitempty"`
	Country     string       `json:"country,omitempty"`
	Coordinates *Coordinates `json:"coordinates,omitempty"`
}

type PitchSlots struct {
	Available           bool       `json:"available"`
	SlotCount           *int       `json:"slot_count,omitempty"`
	ApplicationDeadline *time.Time `json:"application_deadline,omitempty"`
	ApplicationURL      string     `json:"application_url,omitempty"`
	Requirements        string     `json:"requirements,omitempty"`
}

type Registration struct {
	Type           RegistrationType `json:"type"`
	URL            string           `json:"url,omitempty"`
	Price          float64          `json:"price"`
	Currency       string           `json:"currency"`
	Deadline       *time.Time       `json:"deadline,omitempty"`
	Capacity       *int             `json:"capacity,omitempty"`
	SpotsRemaining *int             `json:"spots_remaining,omitempty"`
}

type Organizer struct {
	Name             string            `json:"name"`
	ContactEmail     string            `json:"contact_email,omitempty"`
	Website          string            `json:"website,omitempty"`
	SocialMedia      map[string]string `json:"social_media,omitempty"`
	CredibilityScore float64           `json:"credibility_score"`
}

// SourceRecord is the raw search-result data an event was derived from.
type SourceRecord struct {
	Snippet string `json:"snippet"`
	Title   string `json:"title"`
	URL     string `json:"url"`
}

// NewSourceRecord builds the provenance record for a search result.
func NewSourceRecord(title, snippet, url string) SourceRecord {
	return SourceRecord{
		Snippet: snippet,
		Title:   title,
		URL:     url,
	}
}

// Fields returns the record as a key/value mapping.
func (r SourceRecord) Fields() map[string]string {
	return map[string]string{
		"snippet": r.Snippet,
		"title":   r.Title,
		"url":     r.URL,
	}
}

// Source tracks where an event came from.
type Source struct {
	Source    string       `json:"source"`
	SourceID  string       `json:"source_id,omitempty"`
	SourceURL string       `json:"source_url,omitempty"`
	FetchedAt time.Time    `json:"fetched_at"`
	RawData   SourceRecord `json:"raw_data"`
}

// Event is the canonical representation of a startup pitch event.
type Event struct {
	ID           string `json:"event_id"`
	Title        string `json:"title"`
	Description  string `json:"description"`
	ShortSummary string `json:"short_summary,omitempty"`

	StartUTC time.Time `json:"start_utc"`
	EndUTC   time.Time `json:"end_utc"`
	Timezone string    `json:"timezone"`

	Venue     Venue  `json:"venue"`
	OnlineURL string `json:"online_url,omitempty"`

	PitchSlots   *PitchSlots  `json:"pitch_slots,omitempty"`
	Registration Registration `json:"registration"`
	Organizer    Organizer    `json:"organizer"`

	Tags     []string `json:"tags"`
	Industry string   `json:"industry,omitempty"`
	Stage    []string `json:"stage,omitempty"`

	Sources             []Source   `json:"sources"`
	EmbeddingID         string     `json:"embedding_id,omitempty"`
	LastCanonicalizedAt time.Time  `json:"last_canonicalized_at"`
	Status              Status     `json:"status"`
	CredibilityScore    float64    `json:"credibility_score"`
	LastVerifiedAt      *time.Time `json:"last_verified_at,omitempty"`
}

// eventNamespace seeds deterministic event IDs so re-parsing a result yields the same ID.
var eventNamespace = uuid.MustParse("9f1c4d2a-6b7e-4f3a-8c5d-2e1f0a9b8c7d")

// NewID derives a stable event ID from the source URL and title.
func NewID(url, title string) string {
	return uuid.NewSHA1(eventNamespace, []byte(strings.TrimSpace(url)+"\n"+strings.TrimSpace(title))).String()
}

// HasTag reports whether the event carries tag t.
func (e *Event) HasTag(t string) bool {
	for _, tag := range e.Tags {
		if tag == t {
			return true
		}
	}
	return false
}

// HasPitchSlots reports whether pitch slots are known to be available.
func (e *Event) HasPitchSlots() bool {
	return e.PitchSlots != nil && e.PitchSlots.Available
}

// DateUncertain reports whether the event's date was defaulted.
func (e *Event) DateUncertain() bool {
	return e.HasTag(TagDateUncertain)
}

// AddSource appends provenance for a search result.
func (e *Event) AddSource(source string, rec SourceRecord, fetchedAt time.Time) {
	e.Sources = append(e.Sources, Source{
		Source:    source,
		SourceURL: rec.URL,
		FetchedAt: fetchedAt,
		RawData:   rec,
	})
}

var (
	ErrMissingID     = errors.New("event id is required")
	ErrMissingTitle  = errors.New("event title is required")
	ErrInvalidWindow = errors.New("event ends before it starts")
	ErrNoProvenance  = errors.New("event has no source provenance")
)

// Validate checks the invariants downstream storage relies on.
func (e *Event) Validate() error {
	if e.ID == "" {
		return ErrMissingID
	}
	if strings.TrimSpace(e.Title) == "" {
		return ErrMissingTitle
	}
	if e.EndUTC.Before(e.StartUTC) {
		return ErrInvalidWindow
	}
	if len(e.Sources) == 0 {
		return ErrNoProvenance
	}
	for i, s := range e.Sources {
		if s.Source == "" {
			return fmt.Errorf("source %d: missing source name", i)
		}
		if s.RawData.Title == "" && s.RawData.URL == "" && s.RawData.Snippet == "" {
			return fmt.Errorf("source %d: empty raw data record", i)
		}
	}
	switch e.Venue.Type {
	case VenueInPerson, VenueOnline, VenueHybrid:
	default:
		return fmt.Errorf("invalid venue type %q", e.Venue.Type)
	}
	return nil
}
