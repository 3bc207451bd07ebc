package tavily

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aryannaik/pitch-finder/internal/cache"
	"github.com/aryannaik/pitch-finder/internal/event"
	"github.com/aryannaik/pitch-finder/internal/parser"
)

const sampleResponse = `{
  "query": "q",
  "results": [
    {"title": "SF Pitch Night", "url": "https://lu.ma/sf", "content": "Pitch on March 3, 2026", "score": 0.91},
    {"title": "SF Pitch Night (dup)", "url": "https://lu.ma/sf", "content": "dup", "score": 0.5},
    {"title": "No URL", "url": "", "content": "x"},
    {"title": "Demo Day", "url": "https://eventbrite.com/d", "content": "Demo day"}
  ],
  "response_time": 0.4
}`

func TestClient_Search(t *testing.T) {
	var got searchRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/search", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "Bearer tvly-key", r.Header.Get("Authorization"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(sampleResponse))
	}))
	defer srv.Close()

	c := NewClient("tvly-key", WithBaseURL(srv.URL), WithMaxResults(20))
	results, err := c.Search(context.Background(), event.Query{Intent: "seed pitch", Location: "SF"})
	require.NoError(t, err)

	assert.Equal(t, "advanced", got.SearchDepth)
	assert.Equal(t, 20, got.MaxResults)
	assert.Equal(t, EventDomains, got.IncludeDomains)
	assert.Contains(t, got.Query, "seed pitch in SF")

	require.Len(t, results, 2)
	assert.Equal(t, parser.SearchResult{
		Title:   "SF Pitch Night",
		Snippet: "Pitch on March 3, 2026",
		URL:     "https://lu.ma/sf",
		Source:  "tavily",
		Score:   0.91,
	}, results[0])
	assert.Equal(t, 0.5, results[1].Score)
}

func TestClient_SearchRetriesServerErrors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(sampleResponse))
	}))
	defer srv.Close()

	c := NewClient("k", WithBaseURL(srv.URL), WithRetryWait(time.Millisecond, 5*time.Millisecond))
	results, err := c.Search(context.Background(), event.Query{Intent: "pitch"})
	require.NoError(t, err)
	assert.Len(t, results, 2)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestClient_SearchClientErrorNotRetried(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"detail":{"error":"Unauthorized: missing or invalid API key."}}`))
	}))
	defer srv.Close()

	c := NewClient("bad", WithBaseURL(srv.URL), WithRetryWait(time.Millisecond, 5*time.Millisecond))
	_, err := c.Search(context.Background(), event.Query{Intent: "pitch"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")
	assert.Contains(t, err.Error(), "invalid API key")
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestClient_SearchUsesCache(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(sampleResponse))
	}))
	defer srv.Close()

	c := NewClient("k", WithBaseURL(srv.URL), WithCache(cache.NewMemory(10, time.Minute), time.Minute), WithRateLimit(100))
	q := event.Query{Intent: "pitch"}

	first, err := c.Search(context.Background(), q)
	require.NoError(t, err)
	second, err := c.Search(context.Background(), q)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))

	_, err = c.Search(context.Background(), event.Query{Intent: "other"})
	require.NoError(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestClient_SearchHonoursContext(t *testing.T) {
	c := NewClient("k", WithBaseURL("http://127.0.0.1:1"), WithRateLimit(0.001))
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, _ = c.Search(ctx, event.Query{Intent: "first"})
	_, err := c.Search(ctx, event.Query{Intent: "second"})
	assert.Error(t, err)
}

func TestEnhanceQuery(t *testing.T) {
	from := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)

	got := EnhanceQuery(event.Query{
		Intent:   "seed pitch",
		Persona:  event.PersonaFounder,
		Location: "Austin",
		Region:   "Texas",
		Industry: []string{"fintech", "ai"},
		DateFrom: &from,
		DateTo:   &to,
	})
	assert.Equal(t, "seed pitch in Austin fintech ai (startup pitch OR pitch event OR pitch opportunity) after:2026-03-01 before:2026-04-01", got)

	got = EnhanceQuery(event.Query{Intent: "deal flow", Persona: event.PersonaInvestor, Region: "Europe"})
	assert.Equal(t, "deal flow in Europe (startup pitch OR pitch event OR investor event)", got)
}

func TestDedupe(t *testing.T) {
	in := []parser.SearchResult{{URL: "a"}, {URL: ""}, {URL: "b"}, {URL: "a", Title: "later"}}
	out := Dedupe(in)
	require.Len(t, out, 2)
	assert.Equal(t, "a", out[0].URL)
	assert.Empty(t, out[0].Title)
	assert.Equal(t, "b", out[1].URL)
}
