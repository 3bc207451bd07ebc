package ranker

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"

	"github.com/aryannaik/pitch-finder/internal/cache"
)

// LocationMatcher decides whether an event's place satisfies a location query.
type LocationMatcher interface {
	Match(ctx context.Context, query, city, country string) bool
}

// aliases maps a lower-case query location to names it also covers.
var aliases = map[string][]string{
	"bay area":       {"san francisco", "san jose", "oakland", "palo alto", "mountain view", "berkeley"},
	"silicon valley": {"san jose", "palo alto", "mountain view", "sunnyvale", "menlo park"},
	"sf":             {"san francisco"},
	"nyc":            {"new york"},
	"la":             {"los angeles"},
	"bengaluru":      {"bangalore"},
	"bangalore":      {"bengaluru"},
	"bombay":         {"mumbai"},
	"usa":            {"us", "united states"},
	"us":             {"usa", "united states"},
	"united states":  {"us", "usa"},
	"uk":             {"united kingdom", "gb"},
}

// SubstringMatcher matches when the query, or one of its aliases, is part of
// the event's city or country.
type SubstringMatcher struct{}

func (SubstringMatcher) Match(_ context.Context, query, city, country string) bool {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return false
	}
	city = strings.ToLower(strings.TrimSpace(city))
	country = strings.ToLower(strings.TrimSpace(country))

	candidates := append([]string{q}, aliases[q]...)
	for _, c := range candidates {
		if city != "" && strings.Contains(city, c) {
			return true
		}
		// Country codes must match exactly so "us" does not hit "Russia".
		if country != "" && (country == c || (len(c) > 3 && strings.Contains(country, c))) {
			return true
		}
	}
	return false
}

const locationPrompt = `Does the query location "%s" match the event location "%s"?

Consider:
- Exact matches (e.g., "Bangalore" matches "Bangalore, India")
- Alternative names (e.g., "Bengaluru" matches "Bangalore")
- Regional matches (e.g., "Bay Area" matches "San Francisco, USA")
- Country matches (e.g., "India" matches "Bangalore, India")
- Nearby cities in the same metro area (e.g., "San Jose" is close to "San Francisco")

Answer with ONLY "yes" or "no".`

// LLMMatcher asks a chat model whether two places match, caching answers and
// falling back to SubstringMatcher when the call fails.
type LLMMatcher struct {
	client   *openai.Client
	model    string
	cache    cache.Cache
	cacheTTL time.Duration
	fallback SubstringMatcher
	logger   *slog.Logger
}

func NewLLMMatcher(apiKey, baseURL, model string, store cache.Cache, logger *slog.Logger) *LLMMatcher {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	if store == nil {
		store = cache.NewMemory(1024, 24*time.Hour)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &LLMMatcher{
		client:   openai.NewClientWithConfig(cfg),
		model:    model,
		cache:    store,
		cacheTTL: 24 * time.Hour,
		logger:   logger,
	}
}

func (m *LLMMatcher) Match(ctx context.Context, query, city, country string) bool {
	query = strings.TrimSpace(query)
	city = strings.TrimSpace(city)
	country = strings.TrimSpace(country)

	key := cache.Key("location", strings.ToLower(query), strings.ToLower(city), strings.ToLower(country))
	if v, ok, err := m.cache.Get(ctx, key); err == nil && ok {
		m.logger.Debug("location match cache hit", "query", query, "city", city)
		return string(v) == "1"
	}

	result, err := m.ask(ctx, query, city, country)
	if err != nil {
		m.logger.Warn("llm location match failed, falling back to substring match", "error", err)
		result = m.fallback.Match(ctx, query, city, country)
	}

	val := []byte("0")
	if result {
		val = []byte("1")
	}
	if err := m.cache.Set(ctx, key, val, m.cacheTTL); err != nil {
		m.logger.Warn("failed to cache location match", "error", err)
	}
	return result
}

func (m *LLMMatcher) ask(ctx context.Context, query, city, country string) (bool, error) {
	var parts []string
	if city != "" {
		parts = append(parts, city)
	}
	if country != "" {
		parts = append(parts, country)
	}
	if len(parts) == 0 {
		return false, nil
	}
	where := strings.Join(parts, ", ")

	resp, err := m.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: m.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: "You are a geography expert. Answer only 'yes' or 'no'."},
			{Role: openai.ChatMessageRoleUser, Content: fmt.Sprintf(locationPrompt, query, where)},
		},
		Temperature: 0,
		MaxTokens:   10,
	})
	if err != nil {
		return false, fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return false, fmt.Errorf("chat completion returned no choices")
	}

	answer := strings.ToLower(strings.TrimSpace(resp.Choices[0].Message.Content))
	result := strings.HasPrefix(answer, "yes")
	m.logger.Info("llm location match", "query", query, "location", where, "match", result)
	return result, nil
}
