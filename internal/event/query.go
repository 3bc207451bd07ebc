package event

import (
	"errors"
	"strings"
	"time"
)

type Persona string

const (
	PersonaFounder  Persona = "founder"
	PersonaInvestor Persona = "investor"
)

// Query is a user's search request with filters.
type Query struct {
	Intent  string  `json:"intent"`
	Persona Persona `json:"persona"`

	DateFrom   *time.Time `json:"date_from,omitempty"`
	DateTo     *time.Time `json:"date_to,omitempty"`
	Location   string     `json:"location,omitempty"`
	Region     string     `json:"region,omitempty"`
	Industry   []string   `json:"industry,omitempty"`
	MaxPrice   *float64   `json:"max_price,omitempty"`
	PitchOnly  bool       `json:"pitch_only"`
	OnlineOnly bool       `json:"online_only"`

	MaxResults int `json:"max_results"`
}

// Normalize fills defaults and validates the query.
func (q *Query) Normalize() error {
	q.Intent = strings.TrimSpace(q.Intent)
	if q.Intent == "" {
		return errors.New("query intent is required")
	}
	switch q.Persona {
	case "":
		q.Persona = PersonaFounder
	case PersonaFounder, PersonaInvestor:
	default:
		return errors.New("persona must be founder or investor")
	}
	if q.MaxResults <= 0 {
		q.MaxResults = 10
	}
	if q.DateFrom != nil && q.DateTo != nil && q.DateTo.Before(*q.DateFrom) {
		return errors.New("date_to is before date_from")
	}
	return nil
}

// Ranked is an event scored against a query.
type Ranked struct {
	Event        Event              `json:"event"`
	Score        float64            `json:"score"`
	Explanation  string             `json:"explanation"`
	MatchFactors map[string]float64 `json:"match_factors"`
}
