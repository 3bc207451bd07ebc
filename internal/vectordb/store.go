// Package vectordb stores events with their embeddings and answers
// similarity queries over them.
package vectordb

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/aryannaik/pitch-finder/internal/event"
)

var ErrNotFound = errors.New("event not found")

// Filter narrows a similarity search. Zero values match everything.
type Filter struct {
	Status        event.Status
	HasPitchSlots *bool
	VenueType     event.VenueType
	ExcludeID     string
}

func (f Filter) match(ev *event.Event) bool {
	if f.ExcludeID != "" && ev.ID == f.ExcludeID {
		return false
	}
	if f.Status != "" && ev.Status != f.Status {
		return false
	}
	if f.HasPitchSlots != nil && ev.HasPitchSlots() != *f.HasPitchSlots {
		return false
	}
	if f.VenueType != "" && ev.Venue.Type != f.VenueType {
		return false
	}
	return true
}

// Result is a stored event with its similarity to the query vector.
type Result struct {
	Event event.Event
	Score float64
}

type Store interface {
	// Upsert validates ev and stores it under ev.ID, replacing any previous copy.
	Upsert(ctx context.Context, ev event.Event, embedding []float32) error
	Search(ctx context.Context, vec []float32, topK int, filter Filter) ([]Result, error)
	Get(ctx context.Context, id string) (*event.Event, []float32, error)
	Delete(ctx context.Context, id string) error
	// DeleteEndedBefore removes events whose end time is before t and returns how many were removed.
	DeleteEndedBefore(ctx context.Context, t time.Time) (int, error)
	Count(ctx context.Context) (int, error)
	Close() error
}

type Options struct {
	Backend     string // memory, sqlite or postgres
	DataDir     string
	SQLitePath  string
	PostgresDSN string
	Dimensions  int
}

// Open returns the backend named by opts.Backend.
func Open(ctx context.Context, opts Options) (Store, error) {
	switch opts.Backend {
	case "memory", "":
		s := NewMemory(opts.DataDir)
		if err := s.LoadFromDisk(); err != nil {
			return nil, err
		}
		return s, nil
	case "sqlite":
		return OpenSQLite(ctx, opts.SQLitePath)
	case "postgres":
		return OpenPostgres(ctx, opts.PostgresDSN, opts.Dimensions)
	default:
		return nil, fmt.Errorf("unsupported vector db type: %s", opts.Backend)
	}
}

func validate(ev *event.Event, embedding []float32) error {
	if err := ev.Validate(); err != nil {
		return fmt.Errorf("invalid event %q: %w", ev.ID, err)
	}
	if len(embedding) == 0 {
		return fmt.Errorf("event %q has no embedding", ev.ID)
	}
	return nil
}

// topResults sorts by descending score, ties broken by ID, and keeps k.
func topResults(results []Result, k int) []Result {
	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].Event.ID < results[j].Event.ID
	})
	if k > 0 && k < len(results) {
		results = results[:k]
	}
	return results
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	denom := math.Sqrt(normA) * math.Sqrt(normB)
	if denom == 0 {
		return 0
	}

	return dot / denom
}
